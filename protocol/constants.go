package protocol

// ProtocolVersion is the STM32 USART bootloader command set implemented by this library (AN3155).
const ProtocolVersion = "3.1"

// Link-level control bytes per AN3155.
const (
	// Ack is the positive acknowledgment byte (0x79)
	Ack = 0x79

	// Nack is the negative acknowledgment byte (0x1F)
	Nack = 0x1F

	// EntryByte starts baud detection and selects the USART bootloader (0x7F)
	EntryByte = 0x7F
)

// Command opcodes. Every opcode is sent followed by its bitwise complement.
const (
	// CmdGet reads the bootloader version and the supported commands
	CmdGet = 0x00

	// CmdGetVersion reads the bootloader version and read protection status
	CmdGetVersion = 0x01

	// CmdGetID reads the 12-bit product identifier
	CmdGetID = 0x02

	// CmdReadMemory reads up to 256 bytes from a memory address
	CmdReadMemory = 0x11

	// CmdGo jumps to user code at an address
	CmdGo = 0x21

	// CmdWriteMemory writes up to 256 bytes to a memory address
	CmdWriteMemory = 0x31

	// CmdErase erases pages using one-byte page numbers
	CmdErase = 0x43

	// CmdExtendedErase erases pages using two-byte page numbers
	CmdExtendedErase = 0x44
)

// EraseAll is the unit-count sentinel requesting a full-chip erase.
const EraseAll = 0xFFFF

// Transfer limits.
const (
	// MaxDataSize is the maximum payload of a single WRITE or READ (256 bytes)
	MaxDataSize = 256

	// MaxEraseUnits is the largest explicit page list for the standard ERASE command.
	// N-1 = 0xFF is reserved for the full-chip form.
	MaxEraseUnits = 255

	// MaxExtendedEraseUnits is the largest explicit page list for EXTENDED_ERASE.
	// N-1 values 0xFFF0-0xFFFF are reserved for special erase codes.
	MaxExtendedEraseUnits = 0xFFF0

	// AddressFieldSize is the size of an encoded address: 4 bytes + checksum
	AddressFieldSize = 5

	// ProductIDSize is the number of bytes in a GET_ID response payload
	ProductIDSize = 2
)

// DefaultLoadAddress is the STM32 main flash base where images are written and started.
const DefaultLoadAddress = 0x08000000

// ResetMagic is the ASCII sentence that makes the application firmware reboot into
// the system bootloader. It is sent at 8N1 framing before retrying the entry byte.
const ResetMagic = "heySTM32StartYourDFUMode"
