package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrPageLimitExceeded = errors.New("page limit exceeded")
	// ErrSourceUnauthorized is wrapped by sources whose user has not granted access.
	ErrSourceUnauthorized = errors.New("calendar source is not authorized")
)

// TransportError is returned when a remote query fails at the network or HTTP level.
type TransportError struct {
	CalendarID string
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error for calendar %s: %v", e.CalendarID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a page payload cannot be interpreted as events.
type DecodeError struct {
	CalendarID string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error for calendar %s: %v", e.CalendarID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsRemoteError reports whether err originates from a remote calendar source.
func IsRemoteError(err error) bool {
	var transportErr *TransportError
	var decodeErr *DecodeError
	return errors.As(err, &transportErr) || errors.As(err, &decodeErr)
}
