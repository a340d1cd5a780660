package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/earlyreg-backend/internal/enrollment"
	"github.com/stemsi/earlyreg-backend/internal/middleware"
	"github.com/stemsi/earlyreg-backend/internal/model"
	"github.com/stemsi/earlyreg-backend/internal/response"
	"github.com/stemsi/earlyreg-backend/internal/service"
	"github.com/stemsi/earlyreg-backend/internal/validator"
)

// StudentPortalHandler handles the student-facing registration page.
type StudentPortalHandler struct {
	subjectService      *service.SubjectService
	registrationService *service.RegistrationService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	subjectService *service.SubjectService,
	registrationService *service.RegistrationService,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		subjectService:      subjectService,
		registrationService: registrationService,
	}
}

// GetRegistrationOptions godoc
// GET /api/v1/student/registration/subjects
// Returns subjects the student has not registered for, each with a status.
func (h *StudentPortalHandler) GetRegistrationOptions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"subjects": h.subjectService.RegistrationOptions(claims.StudentID),
	})
}

// Register godoc
// POST /api/v1/student/registrations
// Enrolls the authenticated student in a subject.
func (h *StudentPortalHandler) Register(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.RegisterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res := h.registrationService.Register(c.Request.Context(), claims.StudentID, req.SubjectID)
	if res.Accepted() {
		response.Success(c, http.StatusCreated, res)
		return
	}

	status, code := registrationFailure(res.Reason)
	response.FailWithData(c, status, code, res)
}

// registrationFailure maps a rejection reason to an HTTP status and error code.
func registrationFailure(reason enrollment.Reason) (int, response.ErrCode) {
	switch reason {
	case enrollment.ReasonStudentNotFound:
		return http.StatusNotFound, response.ErrStudentNotFound
	case enrollment.ReasonSubjectNotFound:
		return http.StatusNotFound, response.ErrSubjectNotFound
	case enrollment.ReasonAlreadyRegistered:
		return http.StatusConflict, response.ErrAlreadyRegistered
	case enrollment.ReasonCapacityFull:
		return http.StatusConflict, response.ErrSubjectFull
	case enrollment.ReasonUnderage:
		return http.StatusUnprocessableEntity, response.ErrAgeRequirement
	case enrollment.ReasonPrerequisiteUnmet:
		return http.StatusUnprocessableEntity, response.ErrPrerequisiteNotMet
	case enrollment.ReasonPersistenceFailed:
		return http.StatusServiceUnavailable, response.ErrPersistenceFailed
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
