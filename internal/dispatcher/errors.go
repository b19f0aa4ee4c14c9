package dispatcher

import (
	"errors"
	"fmt"
)

// ErrCanceled marks a job stopped through the cancel endpoint.
var ErrCanceled = errors.New("job canceled")

// ValidationError represents a fatal validation error
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}
