package bootloader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moffa90/go-stmflash/link"
	"github.com/moffa90/go-stmflash/protocol"
)

// Client runs single bootloader commands over an open session.
//
// Every method is one complete transaction: it returns nil when all
// acknowledgments arrived, or an error that protocol.OutcomeOf classifies as a
// nack or a timeout. Failed commands are never retried.
//
// A Client is not safe for concurrent use.
type Client struct {
	session *link.Session
	config  Config
}

var _ link.Transactor = (*Client)(nil)

// NewClient creates a Client on an open session. The session should use
// link.BootloaderMode framing.
//
// Example:
//
//	session, _ := link.Open(link.SerialOpener{}, "/dev/ttyUSB0", link.BootloaderMode(115200))
//	defer session.Close()
//
//	client := bootloader.NewClient(session)
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	pid, err := client.GetID(ctx)
func NewClient(session *link.Session, opts ...Option) *Client {
	if session == nil {
		panic("session cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{session: session, config: cfg}
}

func newClient(session *link.Session, cfg Config) *Client {
	return &Client{session: session, config: cfg}
}

// Session returns the session the client talks on.
func (c *Client) Session() *link.Session {
	return c.session
}

// Send transmits one frame. It implements link.Transactor.
func (c *Client) Send(ctx context.Context, frame []byte) error {
	return c.tx(ctx, "send").send("frame", frame)
}

// AwaitAck waits for an acknowledgment byte. It implements link.Transactor.
func (c *Client) AwaitAck(ctx context.Context, timeout time.Duration) error {
	return c.tx(ctx, "await ack").ack("ack", timeout)
}

// AwaitResponse waits for a response payload. A count of zero reads a length
// byte N-1 followed by N bytes; a positive count reads exactly count bytes.
// It implements link.Transactor.
func (c *Client) AwaitResponse(ctx context.Context, count int, timeout time.Duration) ([]byte, error) {
	return c.tx(ctx, "await response").response("response", count, timeout)
}

// Connect sends the entry byte and waits for the bootloader to acknowledge it.
// It must be the first byte the bootloader sees after reset.
func (c *Client) Connect(ctx context.Context) error {
	t := c.tx(ctx, "connect")
	if err := t.send("entry", []byte{protocol.EntryByte}); err != nil {
		return err
	}
	return t.ack("entry", c.config.AckTimeout)
}

// Get reads the bootloader version and its supported commands.
//
// Sequence:
//
//	Host: [0x00][0xFF]  Device: [ACK][N][VERSION][CMD...][ACK]
func (c *Client) Get(ctx context.Context) (*protocol.BootloaderInfo, error) {
	t := c.tx(ctx, "get")
	if err := t.command(protocol.CmdGet); err != nil {
		return nil, err
	}
	data, err := t.response("response", 0, c.config.ResponseTimeout)
	if err != nil {
		return nil, err
	}
	if err := t.ack("complete", c.config.AckTimeout); err != nil {
		return nil, err
	}

	info, err := protocol.ParseGetResponse(data)
	if err != nil {
		return nil, t.malformed(err)
	}

	c.logDebug("bootloader info",
		"version", info.VersionString(),
		"commands", fmt.Sprintf("% X", info.Commands),
		"erase", info.EraseMode.String(),
	)
	return info, nil
}

// GetID reads the product id.
//
// Sequence:
//
//	Host: [0x02][0xFD]  Device: [ACK][N][PID...][ACK]
func (c *Client) GetID(ctx context.Context) (uint16, error) {
	t := c.tx(ctx, "get id")
	if err := t.command(protocol.CmdGetID); err != nil {
		return 0, err
	}
	data, err := t.response("response", 0, c.config.ResponseTimeout)
	if err != nil {
		return 0, err
	}
	if err := t.ack("complete", c.config.AckTimeout); err != nil {
		return 0, err
	}

	pid, err := protocol.ParseGetIDResponse(data)
	if err != nil {
		return 0, t.malformed(err)
	}

	c.logDebug("product id", "pid", fmt.Sprintf("0x%03X", pid))
	return pid, nil
}

// Go starts execution at addr. The bootloader leaves command mode once this
// returns nil.
//
// Sequence:
//
//	Host: [0x21][0xDE]  Device: [ACK]
//	Host: [ADDRESS][XOR] Device: [ACK]
func (c *Client) Go(ctx context.Context, addr uint32) error {
	t := c.tx(ctx, "go")
	if err := t.command(protocol.CmdGo); err != nil {
		return err
	}
	if err := t.send("address", protocol.EncodeAddress(addr)); err != nil {
		return err
	}
	if err := t.ack("address", c.config.AckTimeout); err != nil {
		return err
	}

	c.logDebug("go", "address", fmt.Sprintf("0x%08X", addr))
	return nil
}

// Erase erases pages 0..units-1 with the standard ERASE command.
// protocol.EraseAll erases the whole chip.
//
// Sequence:
//
//	Host: [0x43][0xBC]                Device: [ACK]
//	Host: [N-1][P0]...[PN-1][XOR]     Device: [ACK] (within the erase timeout)
func (c *Client) Erase(ctx context.Context, units int) error {
	if err := protocol.CheckEraseUnits(units, false); err != nil {
		return err
	}
	return c.erase(ctx, "erase", protocol.CmdErase, units, protocol.EncodeErase(units))
}

// ExtendedErase erases pages 0..units-1 with the EXTENDED_ERASE command.
// protocol.EraseAll erases the whole chip.
func (c *Client) ExtendedErase(ctx context.Context, units int) error {
	if err := protocol.CheckEraseUnits(units, true); err != nil {
		return err
	}
	return c.erase(ctx, "extended erase", protocol.CmdExtendedErase, units, protocol.EncodeExtendedErase(units))
}

func (c *Client) erase(ctx context.Context, op string, opcode byte, units int, params []byte) error {
	t := c.tx(ctx, op)
	if err := t.command(opcode); err != nil {
		return err
	}
	if err := t.send("pages", params); err != nil {
		return err
	}
	if err := t.ack("pages", c.config.EraseTimeout); err != nil {
		return err
	}

	c.logDebug("erased", "units", units, "full", units == protocol.EraseAll)
	return nil
}

// Write writes 1 to 256 bytes at addr.
//
// Sequence:
//
//	Host: [0x31][0xCE]                Device: [ACK]
//	Host: [ADDRESS][XOR]              Device: [ACK]
//	Host: [N-1][DATA...][XOR]         Device: [ACK] (within the write timeout)
func (c *Client) Write(ctx context.Context, addr uint32, data []byte) error {
	if err := protocol.CheckDataLength(len(data)); err != nil {
		return err
	}

	address, payload := protocol.EncodeWrite(addr, data)

	t := c.tx(ctx, "write memory")
	if err := t.command(protocol.CmdWriteMemory); err != nil {
		return err
	}
	if err := t.send("address", address); err != nil {
		return err
	}
	if err := t.ack("address", c.config.AckTimeout); err != nil {
		return err
	}
	if err := t.send("data", payload); err != nil {
		return err
	}
	return t.ack("data", c.config.WriteTimeout)
}

// Read reads count bytes, 1 to 256, from addr.
//
// Sequence:
//
//	Host: [0x11][0xEE]                Device: [ACK]
//	Host: [ADDRESS][XOR]              Device: [ACK]
//	Host: [N-1][^(N-1)]               Device: [ACK][DATA(N)]
func (c *Client) Read(ctx context.Context, addr uint32, count int) ([]byte, error) {
	if err := protocol.CheckDataLength(count); err != nil {
		return nil, err
	}

	address, countField := protocol.EncodeRead(addr, count)

	t := c.tx(ctx, "read memory")
	if err := t.command(protocol.CmdReadMemory); err != nil {
		return nil, err
	}
	if err := t.send("address", address); err != nil {
		return nil, err
	}
	if err := t.ack("address", c.config.AckTimeout); err != nil {
		return nil, err
	}
	if err := t.send("count", countField); err != nil {
		return nil, err
	}
	if err := t.ack("count", c.config.AckTimeout); err != nil {
		return nil, err
	}
	return t.response("data", count, c.config.ResponseTimeout)
}

// transaction tags every failure of one command with its name and step.
type transaction struct {
	c   *Client
	ctx context.Context
	op  string
}

func (c *Client) tx(ctx context.Context, op string) *transaction {
	return &transaction{c: c, ctx: ctx, op: op}
}

func (t *transaction) send(step string, frame []byte) error {
	if err := t.ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", t.op, err)
	}
	if err := t.c.session.Send(frame); err != nil {
		return fmt.Errorf("%s (%s): %w", t.op, step, err)
	}
	return nil
}

// command sends an opcode pair and waits for it to be acknowledged.
func (t *transaction) command(opcode byte) error {
	if err := t.send("command", protocol.CommandPair(opcode)); err != nil {
		return err
	}
	return t.ack("command", t.c.config.AckTimeout)
}

func (t *transaction) ack(step string, timeout time.Duration) error {
	b, err := t.c.session.ReceiveByte(t.ctx, timeout)
	if err != nil {
		return t.failed(step, timeout, err)
	}
	if b != protocol.Ack {
		t.c.logDebug("not acknowledged", "op", t.op, "step", step, "byte", fmt.Sprintf("0x%02X", b))
		return &protocol.ProtocolError{
			Operation: t.op,
			Step:      step,
			Outcome:   protocol.OutcomeNack,
			Received:  b,
		}
	}
	return nil
}

func (t *transaction) response(step string, count int, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	if count <= 0 {
		n, err := t.c.session.ReceiveByte(t.ctx, timeout)
		if err != nil {
			return nil, t.failed(step, timeout, err)
		}
		count = int(n) + 1
	}

	// The length byte and the payload share one deadline.
	buf := make([]byte, count)
	if _, err := t.c.session.Receive(t.ctx, buf, time.Until(deadline)); err != nil {
		return nil, t.failed(step, timeout, err)
	}
	return buf, nil
}

// failed converts a link error into a transaction error.
func (t *transaction) failed(step string, timeout time.Duration, err error) error {
	if errors.Is(err, link.ErrTimeout) {
		t.c.logDebug("timed out", "op", t.op, "step", step, "timeout", timeout.String())
		return &protocol.ProtocolError{
			Operation: t.op,
			Step:      step,
			Outcome:   protocol.OutcomeTimeout,
			Timeout:   timeout,
		}
	}
	return fmt.Errorf("%s (%s): %w", t.op, step, err)
}

func (t *transaction) malformed(err error) error {
	return &protocol.ProtocolError{
		Operation: t.op,
		Step:      "response",
		Outcome:   protocol.OutcomeNack,
		Reason:    err.Error(),
	}
}

func (c *Client) logDebug(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, keysAndValues...)
	}
}
