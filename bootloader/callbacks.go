package bootloader

import (
	"time"

	"github.com/moffa90/go-stmflash/link"
)

// Programming phases reported in Progress.Phase.
const (
	PhaseIdentify = "identify"
	PhaseErase    = "erase"
	PhaseWrite    = "write"
	PhaseVerify   = "verify"
	PhaseGo       = "go"
	PhaseComplete = "complete"
)

// Progress contains information about the programming progress.
// Passed to ProgressCallback during programming operations.
type Progress struct {
	// Phase describes the current operation phase:
	//   "identify" - Reading the bootloader commands and product id
	//   "erase"    - Erasing flash
	//   "write"    - Writing records
	//   "verify"   - Reading records back
	//   "go"       - Starting the application
	//   "complete" - Operation completed successfully
	Phase string

	// CurrentRecord is the number of records done in this phase
	CurrentRecord int

	// TotalRecords is the number of records in the image
	TotalRecords int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// BytesDone is the number of bytes written or verified in this phase
	BytesDone int

	// ElapsedTime is the time elapsed since programming started
	ElapsedTime time.Duration
}

// ProgressCallback is called periodically during programming to report progress.
// Implementations should return quickly to avoid blocking the programming operation.
//
// Example:
//
//	prog := bootloader.New(session,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] %.1f%% - Record %d/%d\n",
//	            p.Phase, p.Percentage, p.CurrentRecord, p.TotalRecords)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional logging interface that can be provided to the programmer.
//
// Example with standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
//
//	prog := bootloader.New(session, bootloader.WithLogger(&StdLogger{}))
type Logger = link.Logger
