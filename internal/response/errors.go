package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden           ErrCode = "FORBIDDEN"
	ErrCandidateAccessOnly ErrCode = "CANDIDATE_ACCESS_ONLY"
	ErrAdminAccessOnly     ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Interview-specific ────────────────────────────────────────────
	ErrNoQuestions         ErrCode = "NO_QUESTIONS_AVAILABLE"
	ErrInterviewActive     ErrCode = "INTERVIEW_ALREADY_ACTIVE"
	ErrInvalidSessionState ErrCode = "INVALID_SESSION_STATE"
	ErrSessionCompleted    ErrCode = "SESSION_COMPLETED"
	ErrNotCodingQuestion   ErrCode = "NOT_A_CODING_QUESTION"
	ErrQuestionNotAssigned ErrCode = "QUESTION_NOT_ASSIGNED"
	ErrMediaAccessDenied   ErrCode = "MEDIA_ACCESS_DENIED"
	ErrInvalidAccessCode   ErrCode = "INVALID_ACCESS_CODE"
	ErrAccessCodeRedeemed  ErrCode = "ACCESS_CODE_REDEEMED"
	ErrPersistence         ErrCode = "PERSISTENCE_FAILURE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid email or password."
	case ErrSessionActive:
		return "You are already logged in on another device."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrCandidateAccessOnly:
		return "This resource is restricted to candidates."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Interview-specific ────────────────────────────────────────────
	case ErrNoQuestions:
		return "No questions are available for this domain and experience level."
	case ErrInterviewActive:
		return "An interview session is already in progress."
	case ErrInvalidSessionState:
		return "The session does not accept this operation in its current state."
	case ErrSessionCompleted:
		return "This interview session is already completed."
	case ErrNotCodingQuestion:
		return "Code can only be executed for coding questions."
	case ErrQuestionNotAssigned:
		return "The question is not part of this interview session."
	case ErrMediaAccessDenied:
		return "Camera and microphone access is required to start the interview."
	case ErrInvalidAccessCode:
		return "The access code is not valid."
	case ErrAccessCodeRedeemed:
		return "The access code has already been used."
	case ErrPersistence:
		return "Saving failed. Your progress is kept in memory — please retry."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
