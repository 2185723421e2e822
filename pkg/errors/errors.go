package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents application-specific error codes
type ErrorCode string

const (
	// Validation errors
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	ErrCodeUnknownEvent ErrorCode = "UNKNOWN_EVENT"

	// Authentication errors
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Authorization errors
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeNotFriends    ErrorCode = "NOT_FRIENDS"
	ErrCodeFriendOffline ErrorCode = "FRIEND_OFFLINE"
	ErrCodeNotPartner    ErrorCode = "NOT_PARTNER"

	// Not found errors
	ErrCodeCallNotFound  ErrorCode = "CALL_NOT_FOUND"
	ErrCodeMatchNotFound ErrorCode = "MATCH_NOT_FOUND"

	// Conflict errors
	ErrCodeBusy           ErrorCode = "BUSY"
	ErrCodeAlreadyInMatch ErrorCode = "ALREADY_IN_MATCH"
	ErrCodeCallAnswered   ErrorCode = "CALL_ALREADY_ANSWERED"
	ErrCodeInvalidState   ErrorCode = "INVALID_STATE"

	// Transport errors
	ErrCodePeerNotConnected ErrorCode = "PEER_NOT_CONNECTED"

	// Rate limiting errors
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal errors
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase       ErrorCode = "DATABASE_ERROR"
	ErrCodeStorage        ErrorCode = "STORAGE_ERROR"
	ErrCodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"
)

// AppError represents a structured application error with code, message, and HTTP status
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Err        error     `json:"-"`
}

// Error implements the error interface, returning a formatted error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code, so sentinel
// comparisons work through errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError with the given code and message
// The status code defaults to 500 Internal Server Error
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewWithStatus creates a new AppError with a specific HTTP status code
func NewWithStatus(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WrapWithStatus wraps an existing error with an AppError and specific status code
func WrapWithStatus(code ErrorCode, message string, statusCode int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// Validation errors
func ValidationError(message string) *AppError {
	return NewWithStatus(ErrCodeValidation, message, http.StatusBadRequest)
}

func MissingFieldError(field string) *AppError {
	return NewWithStatus(ErrCodeMissingField, fmt.Sprintf("Missing required field: %s", field), http.StatusBadRequest)
}

func UnknownEventError(event string) *AppError {
	return NewWithStatus(ErrCodeUnknownEvent, fmt.Sprintf("Unknown event: %s", event), http.StatusBadRequest)
}

// Authentication errors
func UnauthorizedError(message string) *AppError {
	return NewWithStatus(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

// Authorization errors
func ForbiddenError(message string) *AppError {
	return NewWithStatus(ErrCodeForbidden, message, http.StatusForbidden)
}

func NotFriendsError() *AppError {
	return NewWithStatus(ErrCodeNotFriends, "You can only call friends", http.StatusForbidden)
}

func FriendOfflineError() *AppError {
	return NewWithStatus(ErrCodeFriendOffline, "Friend not online", http.StatusConflict)
}

func NotPartnerError() *AppError {
	return NewWithStatus(ErrCodeNotPartner, "Target is not your current partner", http.StatusForbidden)
}

// Not found errors
func CallNotFoundError() *AppError {
	return NewWithStatus(ErrCodeCallNotFound, "Call not found", http.StatusNotFound)
}

func MatchNotFoundError() *AppError {
	return NewWithStatus(ErrCodeMatchNotFound, "No active match", http.StatusNotFound)
}

// Conflict errors
func BusyError() *AppError {
	return NewWithStatus(ErrCodeBusy, "User is busy in another call", http.StatusConflict)
}

func AlreadyInMatchError() *AppError {
	return NewWithStatus(ErrCodeAlreadyInMatch, "Already in an active match", http.StatusConflict)
}

func CallAlreadyAnsweredError() *AppError {
	return NewWithStatus(ErrCodeCallAnswered, "Call already answered", http.StatusConflict)
}

func InvalidStateError(message string) *AppError {
	return NewWithStatus(ErrCodeInvalidState, message, http.StatusConflict)
}

// Transport errors
func PeerNotConnectedError() *AppError {
	return NewWithStatus(ErrCodePeerNotConnected, "Peer is not connected", http.StatusGone)
}

// Rate limiting errors
func RateLimitExceededError() *AppError {
	return NewWithStatus(ErrCodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// Internal errors
func InternalError(message string) *AppError {
	return NewWithStatus(ErrCodeInternal, message, http.StatusInternalServerError)
}

func DatabaseError(err error) *AppError {
	return WrapWithStatus(ErrCodeDatabase, "Database error", http.StatusInternalServerError, err)
}

func StorageError(err error) *AppError {
	return WrapWithStatus(ErrCodeStorage, "Storage error", http.StatusInternalServerError, err)
}

func ServiceUnavailableError(message string) *AppError {
	return NewWithStatus(ErrCodeServiceUnavail, message, http.StatusServiceUnavailable)
}

// HasCode reports whether err is an AppError carrying code
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetAppError extracts AppError from an error, wrapping non-AppErrors as InternalError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return InternalError(err.Error())
}
