package protocol

import (
	"errors"
	"fmt"
	"time"
)

// Outcome is the result of one request/response exchange.
type Outcome int

const (
	// OutcomeAck means every expected acknowledgment and response arrived
	OutcomeAck Outcome = iota

	// OutcomeNack means a byte other than Ack arrived, or the response was malformed
	OutcomeNack

	// OutcomeTimeout means nothing arrived before the deadline
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAck:
		return "ack"
	case OutcomeNack:
		return "nack"
	case OutcomeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

var (
	// ErrNack is matched by errors.Is for every negative outcome
	ErrNack = errors.New("bootloader did not acknowledge")

	// ErrTimeout is matched by errors.Is for every deadline expiry
	ErrTimeout = errors.New("no response within deadline")
)

// ProtocolError represents a failed bootloader transaction.
type ProtocolError struct {
	// Operation is the command that failed
	Operation string

	// Step is the stage of the command that failed, such as "command" or "address"
	Step string

	// Outcome is either OutcomeNack or OutcomeTimeout
	Outcome Outcome

	// Received is the offending byte for a nack
	Received byte

	// Timeout is the deadline that expired for a timeout
	Timeout time.Duration

	// Reason describes a malformed response, if any
	Reason string
}

func (e *ProtocolError) Error() string {
	op := e.Operation
	if e.Step != "" {
		op = fmt.Sprintf("%s (%s)", e.Operation, e.Step)
	}

	switch {
	case e.Outcome == OutcomeTimeout:
		return fmt.Sprintf("%s failed: no response within %s", op, e.Timeout)
	case e.Reason != "":
		return fmt.Sprintf("%s failed: %s", op, e.Reason)
	default:
		return fmt.Sprintf("%s failed: %s (0x%02X)", op, getResponseName(e.Received), e.Received)
	}
}

// Unwrap lets errors.Is match ErrNack or ErrTimeout.
func (e *ProtocolError) Unwrap() error {
	if e.Outcome == OutcomeTimeout {
		return ErrTimeout
	}
	return ErrNack
}

// IsProtocolError returns true if the error is a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// OutcomeOf classifies a transaction error. A nil error is an ack.
// Errors that are neither a nack nor a timeout classify as a nack, since the
// exchange did not complete.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeAck
	case errors.Is(err, ErrTimeout):
		return OutcomeTimeout
	default:
		return OutcomeNack
	}
}

// getResponseName returns a human-readable name for a response byte.
func getResponseName(b byte) string {
	switch b {
	case Ack:
		return "ack"
	case Nack:
		return "nack"
	default:
		return "unexpected byte"
	}
}
