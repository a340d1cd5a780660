package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/earlyreg-backend/internal/response"
	"github.com/stemsi/earlyreg-backend/internal/service"
)

type SubjectHandler struct {
	subjectService *service.SubjectService
}

func NewSubjectHandler(subjectService *service.SubjectService) *SubjectHandler {
	return &SubjectHandler{subjectService: subjectService}
}

// GetAll godoc
// GET /api/v1/student/subjects
func (h *SubjectHandler) GetAll(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"subjects": h.subjectService.Details()})
}
