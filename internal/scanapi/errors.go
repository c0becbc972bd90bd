package scanapi

import (
	"errors"
	"fmt"
)

// ErrMalformed marks a response that is not valid for its endpoint.
var ErrMalformed = errors.New("malformed response")

// TransportError is any failure to obtain a usable response: connection
// errors, timeouts, non-JSON bodies or bodies missing required fields.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("scanapi: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TriggerError is a well-formed rejection of a trigger-scan request.
type TriggerError struct {
	Message string
}

func (e *TriggerError) Error() string {
	return "scanapi: trigger rejected: " + e.Message
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
