package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidStudentID   ErrCode = "INVALID_STUDENT_ID"
	ErrAgeRequirement     ErrCode = "AGE_REQUIREMENT"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrStudentNotFound ErrCode = "STUDENT_NOT_FOUND"
	ErrSubjectNotFound ErrCode = "SUBJECT_NOT_FOUND"

	// ─── Registration ──────────────────────────────────────────────────
	ErrAlreadyRegistered  ErrCode = "ALREADY_REGISTERED"
	ErrSubjectFull        ErrCode = "SUBJECT_FULL"
	ErrPrerequisiteNotMet ErrCode = "PREREQUISITE_NOT_MET"
	ErrPersistenceFailed  ErrCode = "PERSISTENCE_FAILED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"
	ErrInternal          ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidStudentID:
		return "Invalid student ID (must be 8 digits starting with 69)."
	case ErrAgeRequirement:
		return "Age requirement not met (must be at least 15 years old)."
	case ErrSessionActive:
		return "You are already logged in on another device."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrStudentNotFound:
		return "Student ID not found in system."
	case ErrSubjectNotFound:
		return "Subject not found."

	// ─── Registration ──────────────────────────────────────────────────
	case ErrAlreadyRegistered:
		return "You are already registered for this subject."
	case ErrSubjectFull:
		return "Cannot register: subject is full."
	case ErrPrerequisiteNotMet:
		return "Cannot register: requirements not met."
	case ErrPersistenceFailed:
		return "Registration could not be saved. Please try again."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please slow down."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
