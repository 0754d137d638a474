package discovery

import (
	"time"

	"github.com/moffa90/go-stmflash/link"
)

// Config holds the discovery configuration.
type Config struct {
	// Opener opens candidate ports
	Opener link.Opener

	// ListPorts enumerates candidate ports in probe order
	ListPorts func() ([]string, error)

	// BaudRate is used for every framing
	BaudRate int

	// AckTimeout bounds each acknowledgment wait of the probe
	AckTimeout time.Duration

	// ResetDelay is the pause after the reset magic while the application reboots
	ResetDelay time.Duration

	// Logger is used for logging operations (optional)
	Logger link.Logger
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Opener:     link.SerialOpener{},
		ListPorts:  link.ListPorts,
		BaudRate:   link.DefaultBaudRate,
		AckTimeout: 200 * time.Millisecond,
		ResetDelay: 200 * time.Millisecond,
	}
}

// Option is a functional option for configuring the Finder.
type Option func(*Config)

// WithOpener replaces the operating-system serial ports, for example with a
// simulated bus.
func WithOpener(opener link.Opener) Option {
	return func(c *Config) {
		if opener != nil {
			c.Opener = opener
		}
	}
}

// WithPortLister replaces port enumeration.
func WithPortLister(list func() ([]string, error)) Option {
	return func(c *Config) {
		if list != nil {
			c.ListPorts = list
		}
	}
}

// WithPorts probes a fixed list of ports instead of enumerating them.
//
// Example:
//
//	finder := discovery.New(discovery.WithPorts("/dev/ttyUSB0", "/dev/ttyUSB1"))
func WithPorts(ports ...string) Option {
	return func(c *Config) {
		c.ListPorts = func() ([]string, error) {
			return append([]string(nil), ports...), nil
		}
	}
}

// WithBaudRate sets the serial speed. Default is 115200.
func WithBaudRate(baud int) Option {
	return func(c *Config) {
		if baud > 0 {
			c.BaudRate = baud
		}
	}
}

// WithAckTimeout sets the acknowledgment timeout of the probe. Default is 200ms.
func WithAckTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.AckTimeout = timeout
	}
}

// WithResetDelay sets the pause after the reset magic. Default is 200ms.
func WithResetDelay(delay time.Duration) Option {
	return func(c *Config) {
		c.ResetDelay = delay
	}
}

// WithLogger sets a logger for the probe.
func WithLogger(logger link.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
