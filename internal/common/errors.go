package common

import (
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnavailable  = errors.New("service unavailable")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// FromStatus maps a gRPC error from a Google API onto the sentinels above so
// callers can branch with errors.Is. The ErrorInfo reason, when the server
// sent one, becomes the AppError code. Errors that are not gRPC statuses are
// returned unchanged.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var sentinel error
	switch st.Code() {
	case codes.OK:
		return nil
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		sentinel = ErrInvalidInput
	case codes.NotFound:
		sentinel = ErrNotFound
	case codes.Unauthenticated, codes.PermissionDenied:
		sentinel = ErrUnauthorized
	case codes.ResourceExhausted:
		sentinel = ErrRateLimited
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
		sentinel = ErrUnavailable
	default:
		sentinel = ErrInternal
	}
	reason := st.Code().String()
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetReason() != "" {
			reason = info.GetReason()
			break
		}
	}
	return NewAppError(reason, st.Message(), sentinel)
}
