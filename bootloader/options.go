package bootloader

import (
	"time"

	"github.com/moffa90/go-stmflash/image"
	"github.com/moffa90/go-stmflash/protocol"
)

// Config holds the client and programmer configuration.
type Config struct {
	// ProgressCallback is called during programming to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// AckTimeout bounds every acknowledgment wait except the ones below
	AckTimeout time.Duration

	// EraseTimeout bounds the final acknowledgment of ERASE and EXTENDED_ERASE
	EraseTimeout time.Duration

	// WriteTimeout bounds the final acknowledgment of WRITE
	WriteTimeout time.Duration

	// ResponseTimeout bounds the receipt of response payloads
	ResponseTimeout time.Duration

	// ChunkSize is the maximum data size per WRITE and READ command
	ChunkSize int

	// Verify enables reading back every record after the image is written
	Verify bool

	// FullChipErase erases the whole flash instead of the covered pages
	FullChipErase bool

	// LoadAddress is where the image is written and started
	LoadAddress uint32

	// loadAddressSet records an explicit WithLoadAddress, which takes
	// precedence over the address carried by the image
	loadAddressSet bool
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		AckTimeout:      200 * time.Millisecond,
		EraseTimeout:    10 * time.Second,
		WriteTimeout:    time.Second,
		ResponseTimeout: time.Second,
		ChunkSize:       image.MaxRecordSize,
		LoadAddress:     protocol.DefaultLoadAddress,
	}
}

// Option is a functional option for configuring the Client and the Programmer.
type Option func(*Config)

// WithProgressCallback sets a callback function to track programming progress.
//
// Example:
//
//	prog := bootloader.New(session,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the bootloader operations.
//
// Example:
//
//	prog := bootloader.New(session, bootloader.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithAckTimeout sets the acknowledgment timeout. Default is 200ms.
//
// Example:
//
//	prog := bootloader.New(session, bootloader.WithAckTimeout(500*time.Millisecond))
func WithAckTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.AckTimeout = timeout
	}
}

// WithEraseTimeout sets how long an erase may take. Default is 10s.
// Mass erase of large parts can take longer.
//
// Example:
//
//	prog := bootloader.New(session, bootloader.WithEraseTimeout(30*time.Second))
func WithEraseTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.EraseTimeout = timeout
	}
}

// WithWriteTimeout sets how long a record write may take. Default is 1s.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.WriteTimeout = timeout
	}
}

// WithResponseTimeout sets how long a response payload may take. Default is 1s.
func WithResponseTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.ResponseTimeout = timeout
	}
}

// WithChunkSize sets the maximum data size per WRITE command.
// Default is 256 bytes, the protocol maximum.
//
// Example:
//
//	prog := bootloader.New(session, bootloader.WithChunkSize(128))
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size <= image.MaxRecordSize {
			c.ChunkSize = size
		}
	}
}

// WithVerify enables or disables read-back verification. Default is false.
//
// Example:
//
//	prog := bootloader.New(session, bootloader.WithVerify(true))
func WithVerify(verify bool) Option {
	return func(c *Config) {
		c.Verify = verify
	}
}

// WithFullChipErase selects a full-chip erase instead of erasing only the
// pages the image covers.
func WithFullChipErase(full bool) Option {
	return func(c *Config) {
		c.FullChipErase = full
	}
}

// WithLoadAddress sets the address the image is written to and started at.
// Default is 0x08000000, or the address carried by an Intel HEX image.
//
// Example:
//
//	prog := bootloader.New(session, bootloader.WithLoadAddress(0x08000000))
func WithLoadAddress(addr uint32) Option {
	return func(c *Config) {
		c.LoadAddress = addr
		c.loadAddressSet = true
	}
}
