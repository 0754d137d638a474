package hexloader

import (
	"time"

	"github.com/moffa90/go-stmflash/link"
)

// Config holds the loader client configuration.
type Config struct {
	// ProgressCallback is called after every confirmed record (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger link.Logger

	// HandshakeTimeout bounds the answer to the welcome record
	HandshakeTimeout time.Duration

	// RecordTimeout bounds the confirmation of each download record
	RecordTimeout time.Duration

	// StartupDelay is the pause after the magic sentence while the loader starts
	StartupDelay time.Duration

	// RecordSize is the payload size of data records
	RecordSize int
}

func defaultConfig() Config {
	return Config{
		HandshakeTimeout: 200 * time.Millisecond,
		RecordTimeout:    time.Second,
		StartupDelay:     200 * time.Millisecond,
		RecordSize:       DefaultRecordSize,
	}
}

// Option is a functional option for configuring the Client.
type Option func(*Config)

// WithProgressCallback sets a callback function to track download progress.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the loader operations.
func WithLogger(logger link.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithHandshakeTimeout sets how long the loader may take to answer the
// welcome record. Default is 200ms.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.HandshakeTimeout = timeout
	}
}

// WithRecordTimeout sets how long the loader may take to confirm a record.
// Default is 1s.
func WithRecordTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.RecordTimeout = timeout
	}
}

// WithStartupDelay sets the pause after the magic sentence. Default is 200ms.
func WithStartupDelay(delay time.Duration) Option {
	return func(c *Config) {
		c.StartupDelay = delay
	}
}

// WithRecordSize sets the payload size of data records. Default is 16 bytes.
func WithRecordSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size <= 255 {
			c.RecordSize = size
		}
	}
}
