// Package bootsim simulates serial devices for tests and examples.
//
// A Bus maps port names to simulated endpoints and implements link.Opener, so
// code under test opens ports exactly as it would on real hardware. Two
// endpoints are provided:
//   - Device, an STM32 running application firmware with the USART system
//     bootloader behind it
//   - HexLoader, the Z80 board flash loader speaking colon-hex records
//
// Devices answer synchronously: every response is queued while the host
// writes, and a read on an empty queue waits out the read timeout and returns
// zero bytes, like a real port.
//
//	bus := bootsim.NewBus()
//	dev := bootsim.NewDevice(bootsim.WithID(0x435))
//	bus.Attach("sim0", dev)
//	session, err := link.Open(bus, "sim0", link.BootloaderMode(115200))
package bootsim
