package hexloader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moffa90/go-stmflash/hexrecord"
	"github.com/moffa90/go-stmflash/link"
	"github.com/moffa90/go-stmflash/protocol"
)

// Magic is the sentence that starts the flash loader.
const Magic = "..helloTeachZ80FlashLoader"

const (
	// DefaultRecordSize is the payload size of download records
	DefaultRecordSize = 16

	// MaxImageSize is the largest image the 16-bit record address can place
	MaxImageSize = 0xFFFF
)

// Download phases reported in Progress.Phase.
const (
	PhaseHandshake = "handshake"
	PhaseDownload  = "download"
	PhaseComplete  = "complete"
)

// Progress reports download progress.
type Progress struct {
	Phase string

	// CurrentRecord is the number of confirmed records, the end-of-file record included
	CurrentRecord int

	// TotalRecords is the number of records to send, the end-of-file record included
	TotalRecords int

	// BytesDone is the number of image bytes confirmed
	BytesDone int
}

// ProgressCallback is called after every confirmed record.
type ProgressCallback func(Progress)

// Client talks to the flash loader over a session at 8N1 framing.
//
// A Client is not safe for concurrent use.
type Client struct {
	session *link.Session
	config  Config
	parser  hexrecord.Parser
}

var _ link.Transactor = (*Client)(nil)

// NewClient creates a Client on an open session.
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

// Send transmits one frame. It implements link.Transactor.
func (c *Client) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.session.Send(frame)
}

// SendRecord serializes and transmits one record.
func (c *Client) SendRecord(ctx context.Context, rec hexrecord.Record) error {
	return c.Send(ctx, rec.Encode())
}

// AwaitAck waits for a confirmation record. The first valid record received
// decides: a handshake record carrying 0xA1 is an acknowledgment, anything
// else is a nack. It implements link.Transactor.
func (c *Client) AwaitAck(ctx context.Context, timeout time.Duration) error {
	return c.awaitAck(ctx, "await ack", timeout)
}

func (c *Client) awaitAck(ctx context.Context, op string, timeout time.Duration) error {
	rec, err := c.receive(ctx, op, timeout)
	if err != nil {
		return err
	}
	if !rec.IsHandshake(hexrecord.HandshakeAck) {
		c.logDebug("record refused", "op", op, "reply", rec.String())
		return &protocol.ProtocolError{
			Operation: op,
			Outcome:   protocol.OutcomeNack,
			Reason:    fmt.Sprintf("loader replied %s", rec.String()),
		}
	}
	return nil
}

// AwaitResponse waits for the next valid record and returns its payload.
// A positive count requires a payload of exactly that length. It implements
// link.Transactor.
func (c *Client) AwaitResponse(ctx context.Context, count int, timeout time.Duration) ([]byte, error) {
	rec, err := c.receive(ctx, "await response", timeout)
	if err != nil {
		return nil, err
	}
	if count > 0 && len(rec.Data) != count {
		return nil, &protocol.ProtocolError{
			Operation: "await response",
			Outcome:   protocol.OutcomeNack,
			Reason:    fmt.Sprintf("payload of %d bytes, expected %d", len(rec.Data), count),
		}
	}
	return rec.Data, nil
}

// receive feeds received characters to the parser until a record is accepted
// or the deadline passes. Characters outside records are ignored.
func (c *Client) receive(ctx context.Context, op string, timeout time.Duration) (hexrecord.Record, error) {
	c.parser.Reset()
	deadline := time.Now().Add(timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return hexrecord.Record{}, timeoutError(op, timeout)
		}

		ch, err := c.session.ReceiveByte(ctx, remaining)
		if errors.Is(err, link.ErrTimeout) {
			return hexrecord.Record{}, timeoutError(op, timeout)
		}
		if err != nil {
			return hexrecord.Record{}, fmt.Errorf("%s: %w", op, err)
		}

		switch c.parser.Feed(ch) {
		case hexrecord.Accepted:
			return c.parser.Record(), nil
		case hexrecord.ChecksumMismatch:
			return hexrecord.Record{}, fmt.Errorf("%s: %w", op, hexrecord.ErrChecksumMismatch)
		}
	}
}

func timeoutError(op string, timeout time.Duration) error {
	return &protocol.ProtocolError{
		Operation: op,
		Outcome:   protocol.OutcomeTimeout,
		Timeout:   timeout,
	}
}

// Enter starts the loader: it sends the magic sentence, waits for the loader
// to start, drops whatever it printed meanwhile, and exchanges the welcome
// handshake.
func (c *Client) Enter(ctx context.Context) error {
	c.reportProgress(Progress{Phase: PhaseHandshake})

	if err := c.Send(ctx, []byte(Magic)); err != nil {
		return fmt.Errorf("send magic: %w", err)
	}
	if err := link.Sleep(ctx, c.config.StartupDelay); err != nil {
		return err
	}
	if err := c.session.Discard(); err != nil {
		return err
	}

	if err := c.SendRecord(ctx, hexrecord.Handshake(hexrecord.HandshakeHello)); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}
	if err := c.awaitWelcome(ctx, c.config.HandshakeTimeout); err != nil {
		return err
	}

	c.logInfo("flash loader ready", "port", c.session.Name())
	return nil
}

// awaitWelcome waits for the welcome acknowledgment. Unlike AwaitAck, other
// records and garbled replies are skipped until the deadline passes.
func (c *Client) awaitWelcome(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return timeoutError("welcome", timeout)
		}

		rec, err := c.receive(ctx, "welcome", remaining)
		switch {
		case errors.Is(err, hexrecord.ErrChecksumMismatch):
			c.logDebug("garbled reply skipped", "op", "welcome")
			continue
		case errors.Is(err, protocol.ErrTimeout):
			return timeoutError("welcome", timeout)
		case err != nil:
			return err
		}

		if rec.IsHandshake(hexrecord.HandshakeAck) {
			return nil
		}
		c.logDebug("reply skipped", "op", "welcome", "reply", rec.String())
	}
}

// Download sends the image as data records from address 0 followed by the
// end-of-file record. Each record must be confirmed before the next one is
// sent; the first failure aborts the download.
func (c *Client) Download(ctx context.Context, data []byte) error {
	return c.DownloadAt(ctx, 0, data)
}

// DownloadAt is Download with the image placed at base instead of address 0.
func (c *Client) DownloadAt(ctx context.Context, base int, data []byte) error {
	records, err := BuildRecords(data, base, c.config.RecordSize)
	if err != nil {
		return err
	}

	bytesDone := 0
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		if err := c.SendRecord(ctx, rec); err != nil {
			return fmt.Errorf("record %d/%d at 0x%04X: %w", i+1, len(records), rec.Address, err)
		}
		if err := c.awaitAck(ctx, "download", c.config.RecordTimeout); err != nil {
			return fmt.Errorf("record %d/%d at 0x%04X: %w", i+1, len(records), rec.Address, err)
		}

		bytesDone += len(rec.Data)
		c.reportProgress(Progress{
			Phase:         PhaseDownload,
			CurrentRecord: i + 1,
			TotalRecords:  len(records),
			BytesDone:     bytesDone,
		})
	}

	c.reportProgress(Progress{
		Phase:         PhaseComplete,
		CurrentRecord: len(records),
		TotalRecords:  len(records),
		BytesDone:     bytesDone,
	})
	c.logInfo("download complete", "records", len(records), "bytes", bytesDone)
	return nil
}

// BuildRecords splits data into data records of size bytes at addresses
// base+i*size, followed by an end-of-file record. The image must be 1 to 65535
// bytes long and must end at or below MaxImageSize.
func BuildRecords(data []byte, base, size int) ([]hexrecord.Record, error) {
	if len(data) == 0 || len(data) > MaxImageSize {
		return nil, fmt.Errorf("image size %d out of range: must be 1-%d bytes", len(data), MaxImageSize)
	}
	if base < 0 || base+len(data) > MaxImageSize {
		return nil, fmt.Errorf("image of %d bytes at 0x%04X does not fit below 0x%04X", len(data), base, MaxImageSize)
	}
	if size < 1 || size > hexrecord.MaxPayload {
		return nil, fmt.Errorf("record size %d out of range: must be 1-%d", size, hexrecord.MaxPayload)
	}

	records := make([]hexrecord.Record, 0, (len(data)+size-1)/size+1)
	for off := 0; off < len(data); off += size {
		end := off + size
		if end > len(data) {
			end = len(data)
		}
		rec, err := hexrecord.New(hexrecord.TypeData, uint16(base+off), data[off:end])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return append(records, hexrecord.EOF()), nil
}

func (c *Client) reportProgress(progress Progress) {
	if c.config.ProgressCallback != nil {
		c.config.ProgressCallback(progress)
	}
}

func (c *Client) logDebug(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (c *Client) logInfo(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Info(msg, keysAndValues...)
	}
}
