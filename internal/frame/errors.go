// internal/frame/errors.go
package frame

import "fmt"

// CodeValidation is reported by ValidationError.Code.
const CodeValidation uint16 = 4

// ValidationError means a response failed the echo/shape (or CRC) check.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "frame: invalid response: " + e.Reason
}

func (e *ValidationError) Code() uint16 { return CodeValidation }

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
