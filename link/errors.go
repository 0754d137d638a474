package link

import (
	"errors"
	"fmt"

	"go.bug.st/serial"
)

// ErrTimeout is returned when a read deadline expires before the requested bytes arrive.
var ErrTimeout = errors.New("read deadline expired")

// ErrClosed is returned by operations on a closed Session.
var ErrClosed = errors.New("link is closed")

// PortError indicates that a port could not be opened or ports could not be enumerated.
type PortError struct {
	// Port is the port name, empty for enumeration failures
	Port string

	// Op is the failed operation, "open" when empty
	Op string

	Err error
}

func (e *PortError) Error() string {
	op := e.Op
	if op == "" {
		op = "open"
	}
	if e.Port == "" {
		return fmt.Sprintf("port unavailable: %s: %v", op, e.Err)
	}
	return fmt.Sprintf("port %s unavailable: %s: %v", e.Port, op, e.Err)
}

func (e *PortError) Unwrap() error {
	return e.Err
}

// Busy reports whether the port exists but is held by another process.
func (e *PortError) Busy() bool {
	var portErr *serial.PortError
	if errors.As(e.Err, &portErr) {
		return portErr.Code() == serial.PortBusy
	}
	var portErrValue serial.PortError
	if errors.As(e.Err, &portErrValue) {
		return portErrValue.Code() == serial.PortBusy
	}
	return false
}

// IOError indicates a transport failure on an otherwise valid exchange.
type IOError struct {
	Port string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s on %s: %v", e.Op, e.Port, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
