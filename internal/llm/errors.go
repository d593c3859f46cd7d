package llm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/common"
)

// ErrMalformedResponse means the model answered but the payload could not be
// turned into flight fields. Retrying the same request is unlikely to help.
var ErrMalformedResponse = errors.New("llm: malformed response")

// ErrorClass groups provider failures by how a caller should react.
type ErrorClass string

const (
	ClassAuth        ErrorClass = "auth"
	ClassNotFound    ErrorClass = "not_found"
	ClassRateLimited ErrorClass = "rate_limited"
	ClassServer      ErrorClass = "server"
	ClassBadRequest  ErrorClass = "bad_request"
	ClassTransport   ErrorClass = "transport"
)

// HTTPError is a failed provider call. Status is 0 for transport errors.
type HTTPError struct {
	Status int
	Class  ErrorClass
	Body   string
	Err    error
}

func (e *HTTPError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("llm %s error: %v", e.Class, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("llm %s error: status %d: %s", e.Class, e.Status, e.Body)
	}
	return fmt.Sprintf("llm %s error: status %d", e.Class, e.Status)
}

// Unwrap exposes both the matching common sentinel and the cause, so callers
// can use errors.Is(err, common.ErrRateLimited) without knowing this type.
func (e *HTTPError) Unwrap() []error {
	out := make([]error, 0, 2)
	if s := e.sentinel(); s != nil {
		out = append(out, s)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Retryable reports whether the same request may succeed later. Bad requests
// and unknown models will not.
func (e *HTTPError) Retryable() bool {
	switch e.Class {
	case ClassBadRequest, ClassNotFound:
		return false
	default:
		return true
	}
}

func (e *HTTPError) sentinel() error {
	switch e.Class {
	case ClassAuth:
		return common.ErrUnauthorized
	case ClassNotFound:
		return common.ErrNotFound
	case ClassRateLimited:
		return common.ErrRateLimited
	case ClassServer, ClassTransport:
		return common.ErrUnavailable
	case ClassBadRequest:
		return common.ErrInvalidInput
	default:
		return nil
	}
}

// ClassifyStatus maps a non-2xx HTTP status onto an ErrorClass.
func ClassifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ClassAuth
	case status == http.StatusNotFound:
		return ClassNotFound
	case status == http.StatusTooManyRequests:
		return ClassRateLimited
	case status >= 500:
		return ClassServer
	default:
		return ClassBadRequest
	}
}

// IsRetryable is true for provider errors a caller may retry.
func IsRetryable(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Retryable()
}
