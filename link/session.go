package link

import (
	"context"
	"io"
	"time"
)

// Session is an open, exclusively owned serial link.
//
// A Session is not safe for concurrent use; exactly one transaction runs on it
// at a time. Close must be called on every exit path.
type Session struct {
	name   string
	mode   Mode
	port   Port
	closed bool
}

// Open opens the named port through opener and returns a Session owning it.
func Open(opener Opener, name string, mode Mode) (*Session, error) {
	port, err := opener.Open(name, mode)
	if err != nil {
		if _, ok := err.(*PortError); ok {
			return nil, err
		}
		return nil, &PortError{Port: name, Err: err}
	}
	return NewSession(name, mode, port), nil
}

// NewSession wraps an already open port.
func NewSession(name string, mode Mode, port Port) *Session {
	if port == nil {
		panic("port cannot be nil")
	}
	return &Session{name: name, mode: mode, port: port}
}

// Name returns the port name.
func (s *Session) Name() string {
	return s.name
}

// Mode returns the framing the port was opened with.
func (s *Session) Mode() Mode {
	return s.mode
}

// Send writes every byte of p to the link.
func (s *Session) Send(p []byte) error {
	if s.closed {
		return ErrClosed
	}
	for len(p) > 0 {
		n, err := s.port.Write(p)
		if err != nil {
			return &IOError{Port: s.name, Op: "write", Err: err}
		}
		if n == 0 {
			return &IOError{Port: s.name, Op: "write", Err: io.ErrShortWrite}
		}
		p = p[n:]
	}
	return nil
}

// ReceiveByte reads a single byte, waiting at most timeout.
func (s *Session) ReceiveByte(ctx context.Context, timeout time.Duration) (byte, error) {
	var buf [1]byte
	if _, err := s.Receive(ctx, buf[:], timeout); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// Receive reads exactly len(buf) bytes. The whole read is bounded by timeout;
// bytes may arrive split over several port reads. On ErrTimeout the returned
// count tells how many bytes did arrive.
func (s *Session) Receive(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}

	deadline := time.Now().Add(timeout)
	got := 0
	for got < len(buf) {
		if err := ctx.Err(); err != nil {
			return got, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return got, ErrTimeout
		}
		if err := s.port.SetReadTimeout(remaining); err != nil {
			return got, &IOError{Port: s.name, Op: "set read timeout", Err: err}
		}

		n, err := s.port.Read(buf[got:])
		if err != nil {
			return got, &IOError{Port: s.name, Op: "read", Err: err}
		}
		if n == 0 {
			// The port waited for the whole remaining budget.
			return got, ErrTimeout
		}
		got += n
	}
	return got, nil
}

// Discard drops any bytes already received but not yet read.
func (s *Session) Discard() error {
	if s.closed {
		return ErrClosed
	}
	if err := s.port.ResetInputBuffer(); err != nil {
		return &IOError{Port: s.name, Op: "reset input", Err: err}
	}
	return nil
}

// Close closes the underlying port. Calling Close more than once is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.port.Close(); err != nil {
		return &IOError{Port: s.name, Op: "close", Err: err}
	}
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
