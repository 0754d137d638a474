// Package discovery finds a serial port with an STM32 bootloader behind it and
// leaves that bootloader synchronized and ready for commands.
//
// # Probe Sequence
//
// Each candidate port is probed in three steps, stopping at the first success:
//  1. Open at 8E1 and send the entry byte 0x7F (device already reset into the
//     bootloader)
//  2. Send GET_ID on the same link (bootloader already synchronized by an
//     earlier session)
//  3. Reopen at 8N1, send the reset magic so the application reboots into
//     the bootloader, wait, then reopen at 8E1 and send 0x7F again
//
// A port that cannot be opened fails only its own probe:
//
//	finder := discovery.New(discovery.WithBaudRate(115200))
//	result, err := finder.AutoDiscover(ctx)
//	if errors.Is(err, discovery.ErrNoDevice) {
//	    // nothing answered
//	}
//	defer result.Session.Close()
package discovery
