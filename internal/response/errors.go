package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication / Authorization ────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrForbidden     ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrAttemptAlreadyRunning ErrCode = "ATTEMPT_ALREADY_RUNNING"
	ErrAttemptNotRunning     ErrCode = "ATTEMPT_NOT_RUNNING"
	ErrAttemptInProgress     ErrCode = "ATTEMPT_IN_PROGRESS"
	ErrTimeExpired           ErrCode = "TIME_EXPIRED"
	ErrQuestionNotInExam     ErrCode = "QUESTION_NOT_IN_EXAM"

	// ─── Exam access ───────────────────────────────────────────────────
	ErrExamNotAvailable ErrCode = "EXAM_NOT_AVAILABLE"
	ErrUpgradeRequired  ErrCode = "UPGRADE_REQUIRED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal           ErrCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrCode = "SERVICE_UNAVAILABLE"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or has expired."
	case ErrForbidden:
		return "You do not have permission to access this resource."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	case ErrNotFound:
		return "The requested resource was not found."

	case ErrAttemptAlreadyRunning:
		return "You already have an attempt in progress for this exam. Resume it instead of starting a new one."
	case ErrAttemptNotRunning:
		return "This attempt has already been submitted."
	case ErrAttemptInProgress:
		return "This attempt is still in progress. Submit the exam to see results."
	case ErrTimeExpired:
		return "The exam time has expired. Your attempt has been submitted automatically."
	case ErrQuestionNotInExam:
		return "This question does not belong to this exam."

	case ErrExamNotAvailable:
		return "This exam is not available right now."
	case ErrUpgradeRequired:
		return "This exam requires a Pro subscription."

	case ErrServiceUnavailable:
		return "The service is temporarily unavailable. Please try again."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
