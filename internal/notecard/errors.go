package notecard

import (
	"fmt"
	"time"
)

// ConnectionTimeoutError is returned when the card does not report a
// connection before the wait deadline.
type ConnectionTimeoutError struct {
	Mode    Mode
	Timeout time.Duration
}

func (e *ConnectionTimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s waiting for %s connection", e.Timeout, e.Mode)
}

// DeviceError is a transaction-level error reported by the card.
type DeviceError struct {
	Req string
	Err string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("card reported an error for %s: %s", e.Req, e.Err)
}

// TransportError is a failure of the underlying serial or I2C channel.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("notecard transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
