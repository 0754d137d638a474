package protocol

import "fmt"

// EraseMode tells which erase command a bootloader supports.
type EraseMode int

const (
	// EraseUnknown means neither erase opcode was listed by GET
	EraseUnknown EraseMode = iota

	// EraseStandard uses the ERASE command (one-byte page numbers)
	EraseStandard

	// EraseExtended uses the EXTENDED_ERASE command (two-byte page numbers)
	EraseExtended
)

func (m EraseMode) String() string {
	switch m {
	case EraseStandard:
		return "Standard"
	case EraseExtended:
		return "Extended"
	default:
		return "Unknown"
	}
}

// BootloaderInfo contains the bootloader identification returned by GET.
type BootloaderInfo struct {
	// Version is the raw protocol version byte (major in the high nibble)
	Version byte

	// Commands lists the opcodes the bootloader accepts
	Commands []byte

	// EraseMode is derived from the erase opcode present in Commands
	EraseMode EraseMode
}

// VersionString formats Version as "major.minor".
func (b *BootloaderInfo) VersionString() string {
	return fmt.Sprintf("%d.%d", b.Version>>4, b.Version&0x0F)
}

// Supports reports whether the bootloader listed the given opcode.
func (b *BootloaderInfo) Supports(opcode byte) bool {
	for _, c := range b.Commands {
		if c == opcode {
			return true
		}
	}
	return false
}
