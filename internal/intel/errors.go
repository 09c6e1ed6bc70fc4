package intel

import (
	"errors"
	"fmt"
)

// IntelligenceError reports a failed classification, summary or
// generation request.
type IntelligenceError struct {
	Op  string
	Err error
}

func (e *IntelligenceError) Error() string {
	return fmt.Sprintf("intel %s: %v", e.Op, e.Err)
}

func (e *IntelligenceError) Unwrap() error {
	return e.Err
}

// IsIntelligenceError checks whether err wraps an IntelligenceError.
func IsIntelligenceError(err error) bool {
	var ie *IntelligenceError
	return errors.As(err, &ie)
}

func wrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IntelligenceError{Op: op, Err: err}
}
