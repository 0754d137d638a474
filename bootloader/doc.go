// Package bootloader provides a high-level API for programming STM32
// microcontrollers through the USART system bootloader (AN3155).
//
// # Overview
//
// This package orchestrates the complete programming sequence:
//   - Identifying the bootloader and the part (GET, GET_ID)
//   - Looking the part up in the device registry
//   - Erasing only the flash the image covers, or the whole chip
//   - Writing the image in records of up to 256 bytes
//   - Reading every record back and comparing it, when enabled
//   - Starting the application with GO
//
// # Basic Usage
//
// The simplest way to program a device:
//
//	// Find the device and enter its bootloader
//	result, err := discovery.New().AutoDiscover(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer result.Session.Close()
//
//	img, err := image.Load("firmware.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	prog := bootloader.New(result.Session, bootloader.WithVerify(true))
//	if err := prog.Program(ctx, img); err != nil {
//	    log.Fatal(err)
//	}
//
// # Single Commands
//
// Client exposes each bootloader command as one method:
//
//	client := bootloader.NewClient(session)
//	info, err := client.Get(ctx)
//	err = client.ExtendedErase(ctx, protocol.EraseAll)
//	err = client.Write(ctx, 0x08000000, data)
//	data, err := client.Read(ctx, 0x08000000, 256)
//	err = client.Go(ctx, 0x08000000)
//
// # Progress Tracking
//
// Track programming progress with a callback:
//
//	prog := bootloader.New(session,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] %.1f%% - Record %d/%d\n",
//	            p.Phase, p.Percentage, p.CurrentRecord, p.TotalRecords)
//	    }),
//	)
//
// # Configuration Options
//
//	prog := bootloader.New(session,
//	    bootloader.WithProgressCallback(progressFunc),
//	    bootloader.WithLogger(myLogger),
//	    bootloader.WithAckTimeout(500*time.Millisecond),
//	    bootloader.WithEraseTimeout(30*time.Second),
//	    bootloader.WithChunkSize(128),
//	    bootloader.WithVerify(true),
//	    bootloader.WithFullChipErase(true),
//	)
//
// # Context Support
//
// All operations support context for cancellation. Reads are additionally
// bounded by the configured timeouts, so a silent device never blocks:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
//	defer cancel()
//
//	err := prog.Program(ctx, img)
//
// # Error Handling
//
// The package provides structured error types:
//   - UnsupportedDeviceError: the product id is not registered
//   - VerifyMismatchError: a record read back differs from the image
//   - RecordError: a command failed on one record; wraps the cause
//   - protocol.ProtocolError: a command was not acknowledged or timed out
//
// Failed commands are not retried. The outcome of any error can be checked
// with protocol.OutcomeOf or errors.Is(err, protocol.ErrTimeout).
package bootloader
