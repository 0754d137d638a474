package link

import (
	"context"
	"time"
)

// Transactor is a synchronous framed request/response exchange over a Session.
// The STM32 bootloader client and the hex-record loader both implement it; they
// differ only in what a frame, an acknowledgment and a response look like.
type Transactor interface {
	// Send transmits one complete frame.
	Send(ctx context.Context, frame []byte) error

	// AwaitAck waits up to timeout for the protocol's acknowledgment.
	AwaitAck(ctx context.Context, timeout time.Duration) error

	// AwaitResponse waits up to timeout for a response payload. A count of
	// zero lets the protocol announce the length; a positive count requires
	// exactly that many bytes.
	AwaitResponse(ctx context.Context, count int, timeout time.Duration) ([]byte, error)
}
