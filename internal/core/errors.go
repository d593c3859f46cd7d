package core

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/common"
)

var (
	// ErrUnsupportedMime is returned before any engine runs.
	ErrUnsupportedMime = fmt.Errorf("%w: unsupported mime type", common.ErrInvalidInput)
	// ErrUnreadableFile is returned before any engine runs.
	ErrUnreadableFile = fmt.Errorf("%w: unreadable file", common.ErrInvalidInput)
	// ErrNoExtraction means every engine ran and none produced a record.
	ErrNoExtraction = errors.New("no extraction method succeeded")
)

// Kind tells callers what went wrong without parsing messages.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindExhausted    Kind = "exhausted"
	KindExternal     Kind = "external"
)

// ExtractionError is the terminal failure of a run. It carries the attempts
// made so far so the caller can explain the outcome.
type ExtractionError struct {
	Kind       Kind
	RunID      string
	Provenance Provenance
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction %s (run %s): %v", e.Kind, e.RunID, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IsExhausted reports whether err is a "nothing could be extracted" failure.
func IsExhausted(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee) && ee.Kind == KindExhausted
}
