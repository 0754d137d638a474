package bootloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moffa90/go-stmflash/device"
	"github.com/moffa90/go-stmflash/image"
	"github.com/moffa90/go-stmflash/link"
	"github.com/moffa90/go-stmflash/protocol"
)

// Target describes the identified device.
type Target struct {
	// Info is the GET response
	Info *protocol.BootloaderInfo

	// ID is the product id
	ID uint16

	// Profile is the registry entry for ID
	Profile device.Profile
}

// Programmer orchestrates flash programming of STM32 parts through the system
// bootloader. It handles identification, erase planning, writing, verification
// and the final jump to the application.
//
// A Programmer must not be used concurrently.
type Programmer struct {
	client *Client
	config Config
}

// New creates a new Programmer on a session that is already connected to the
// bootloader (see discovery.Probe).
//
// Example:
//
//	result, err := discovery.New().AutoDiscover(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer result.Session.Close()
//
//	prog := bootloader.New(result.Session,
//	    bootloader.WithVerify(true),
//	    bootloader.WithProgressCallback(progressFunc),
//	)
func New(session *link.Session, opts ...Option) *Programmer {
	if session == nil {
		panic("session cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Programmer{
		client: newClient(session, cfg),
		config: cfg,
	}
}

// Client returns the command client the programmer uses.
func (p *Programmer) Client() *Client {
	return p.client
}

// Identify reads the command set and the product id, and looks the id up in
// the device registry. An unregistered id returns *UnsupportedDeviceError
// together with the partially filled Target.
func (p *Programmer) Identify(ctx context.Context) (*Target, error) {
	info, err := p.client.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("identify: %w", err)
	}

	id, err := p.client.GetID(ctx)
	if err != nil {
		return nil, fmt.Errorf("identify: %w", err)
	}

	target := &Target{Info: info, ID: id}
	profile, ok := device.Lookup(id)
	if !ok {
		return target, &UnsupportedDeviceError{ID: id}
	}
	target.Profile = profile

	p.logInfo("device identified",
		"pid", fmt.Sprintf("0x%03X", id),
		"name", profile.Name,
		"bootloader", info.VersionString(),
		"erase", info.EraseMode.String(),
	)
	return target, nil
}

// Release starts the application at the load address, leaving the bootloader.
func (p *Programmer) Release(ctx context.Context) error {
	return p.client.Go(ctx, p.config.LoadAddress)
}

// Program performs the complete programming sequence:
//  1. Identify the device (GET, GET_ID, registry lookup)
//  2. Plan and run the erase
//  3. Write every record
//  4. Read back and compare every record, if verification is enabled
//  5. Start the application with GO
//
// An unsupported device is sent GO at the load address so that it keeps
// running, and *UnsupportedDeviceError is returned. Any other failure aborts
// at once without GO; the device stays in the bootloader.
//
// The operation can be cancelled via context between records.
//
// Example:
//
//	img, _ := image.Load("firmware.bin")
//	err := prog.Program(context.Background(), img)
func (p *Programmer) Program(ctx context.Context, img *image.Image) error {
	if img == nil {
		return fmt.Errorf("image cannot be nil")
	}
	if img.Size() == 0 {
		return image.ErrEmptyImage
	}

	load := p.config.LoadAddress
	if img.HasAddress && !p.config.loadAddressSet {
		load = img.Address
	}

	startTime := time.Now()

	// Phase 1: Identify
	p.reportProgress(Progress{Phase: PhaseIdentify})

	target, err := p.Identify(ctx)
	if err != nil {
		var unsupported *UnsupportedDeviceError
		if errors.As(err, &unsupported) {
			p.logError("unsupported device, starting application", "pid", fmt.Sprintf("0x%03X", unsupported.ID))
			if goErr := p.client.Go(ctx, load); goErr != nil {
				p.logError("go failed", "error", goErr)
			}
		}
		return err
	}

	// Phase 2: Erase
	plan, err := device.PlanErase(target.Profile, img.Size(), load, p.config.FullChipErase)
	if err != nil {
		return fmt.Errorf("plan erase: %w", err)
	}
	records, err := image.Chunk(img.Data, load, p.config.ChunkSize)
	if err != nil {
		return fmt.Errorf("chunk image: %w", err)
	}

	p.reportProgress(Progress{
		Phase:        PhaseErase,
		TotalRecords: len(records),
		Percentage:   2,
		ElapsedTime:  time.Since(startTime),
	})

	p.logDebug("erase plan",
		"units", plan.Units,
		"full", plan.Full,
		"top", fmt.Sprintf("0x%08X", plan.TopAddress),
	)

	if err := p.erase(ctx, target.Info.EraseMode, plan); err != nil {
		return err
	}

	// Phase 3: Write
	writeEnd := 95.0
	if p.config.Verify {
		writeEnd = 50
	}

	bytesWritten := 0
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		if err := p.client.Write(ctx, rec.Address, rec.Data); err != nil {
			return &RecordError{Phase: PhaseWrite, Index: i, Total: len(records), Address: rec.Address, Err: err}
		}

		bytesWritten += len(rec.Data)
		p.reportProgress(Progress{
			Phase:         PhaseWrite,
			CurrentRecord: i + 1,
			TotalRecords:  len(records),
			Percentage:    5 + float64(i+1)/float64(len(records))*(writeEnd-5),
			BytesDone:     bytesWritten,
			ElapsedTime:   time.Since(startTime),
		})
	}

	// Phase 4: Verify
	if p.config.Verify {
		bytesVerified := 0
		for i, rec := range records {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("cancelled: %w", err)
			}

			if err := p.verifyRecord(ctx, rec, len(records)); err != nil {
				return err
			}

			bytesVerified += len(rec.Data)
			p.reportProgress(Progress{
				Phase:         PhaseVerify,
				CurrentRecord: i + 1,
				TotalRecords:  len(records),
				Percentage:    50 + float64(i+1)/float64(len(records))*45,
				BytesDone:     bytesVerified,
				ElapsedTime:   time.Since(startTime),
			})
		}
	}

	// Phase 5: Go
	p.reportProgress(Progress{
		Phase:         PhaseGo,
		CurrentRecord: len(records),
		TotalRecords:  len(records),
		Percentage:    97,
		BytesDone:     bytesWritten,
		ElapsedTime:   time.Since(startTime),
	})

	if err := p.client.Go(ctx, load); err != nil {
		return fmt.Errorf("start application: %w", err)
	}

	p.reportProgress(Progress{
		Phase:         PhaseComplete,
		CurrentRecord: len(records),
		TotalRecords:  len(records),
		Percentage:    100,
		BytesDone:     bytesWritten,
		ElapsedTime:   time.Since(startTime),
	})

	p.logInfo("programming complete",
		"records", len(records),
		"bytes", bytesWritten,
		"verified", p.config.Verify,
		"elapsed", time.Since(startTime).String(),
	)

	return nil
}

// erase runs the erase command the bootloader advertises. Bootloaders that
// list neither erase command get the standard one.
func (p *Programmer) erase(ctx context.Context, mode protocol.EraseMode, plan device.ErasePlan) error {
	var err error
	if mode == protocol.EraseExtended {
		err = p.client.ExtendedErase(ctx, plan.Units)
	} else {
		err = p.client.Erase(ctx, plan.Units)
	}
	if err != nil {
		if plan.Full {
			return fmt.Errorf("erase full chip: %w", err)
		}
		return fmt.Errorf("erase %d units: %w", plan.Units, err)
	}
	return nil
}

// verifyRecord reads one record back and compares it with the image.
func (p *Programmer) verifyRecord(ctx context.Context, rec image.Record, total int) error {
	got, err := p.client.Read(ctx, rec.Address, len(rec.Data))
	if err != nil {
		return &RecordError{Phase: PhaseVerify, Index: rec.Index, Total: total, Address: rec.Address, Err: err}
	}
	if bytes.Equal(got, rec.Data) {
		return nil
	}

	for off := range rec.Data {
		if got[off] != rec.Data[off] {
			p.logError("verify mismatch",
				"record", rec.Index,
				"address", fmt.Sprintf("0x%08X", rec.Address+uint32(off)),
			)
			return &VerifyMismatchError{
				Index:    rec.Index,
				Address:  rec.Address,
				Offset:   off,
				Expected: rec.Data[off],
				Actual:   got[off],
			}
		}
	}
	return nil
}

// reportProgress calls the progress callback if configured.
func (p *Programmer) reportProgress(progress Progress) {
	if p.config.ProgressCallback != nil {
		p.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (p *Programmer) logDebug(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (p *Programmer) logInfo(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (p *Programmer) logError(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Error(msg, keysAndValues...)
	}
}
