package serial

import (
	"errors"
	"fmt"
)

// Argument errors. These are returned synchronously by the call that received
// the bad argument and are never delivered through a Future.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrMissingDisconnect = errors.New("disconnect callback is required")
	ErrInvalidBaudRate   = errors.New("invalid baud rate")
	ErrInvalidConfig     = errors.New("invalid serial configuration")
)

// Runtime errors. These reject a Future.
var (
	ErrPortClosed     = errors.New("port is closed")
	ErrPortNotFound   = errors.New("port does not exist")
	ErrPortLocked     = errors.New("port is locked cannot open")
	ErrAlreadyOpen    = errors.New("binding is already open")
	ErrReadPending    = errors.New("a read is already pending")
	ErrNotImplemented = errors.New("function not implemented")

	// ErrDisconnected is passed to the disconnect callback when no cause is given.
	ErrDisconnected = errors.New("disconnected")
)

// ClosedPortError returns ErrPortClosed annotated with the operation that
// was attempted.
func ClosedPortError(op string) error {
	if op == "" {
		op = "unknown method"
	}
	return fmt.Errorf("%w: %s", ErrPortClosed, op)
}

func invalidArgument(name, reason string) error {
	return fmt.Errorf("%w: %q %s", ErrInvalidArgument, name, reason)
}
