// Command flashload programs STM32 parts through the system bootloader and
// Z80 boards through the hex flash loader, over a serial link.
//
// Usage:
//
//	flashload stm32 firmware.bin -p /dev/ttyUSB0 -v
//	flashload z80 rom.hex
//	flashload info -p auto
//	flashload ports
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	err := newRootCmd(newApp()).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
