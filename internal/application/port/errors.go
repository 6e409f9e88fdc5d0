package port

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the scan pipeline. Concrete failures wrap one of
// these so callers can branch with errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrNetwork       = errors.New("network error")
	ErrServer        = errors.New("server error")
	ErrParse         = errors.New("parse error")
	ErrStorage       = errors.New("storage error")
	ErrNotFound      = errors.New("not found")
	ErrSessionClosed = errors.New("scan session closed")
)

// ServerError reports a non-2xx response from the prediction endpoint.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("server error: status %d: %s", e.StatusCode, e.Body)
}

// Is makes errors.Is(err, ErrServer) hold for any *ServerError.
func (e *ServerError) Is(target error) bool {
	return target == ErrServer
}
