// Package protocol implements the byte-level framing of the STM32 USART bootloader.
//
// This package provides pure functions that build command frames and parse
// response payloads according to ST application note AN3155.
//
// # Protocol Overview
//
// Every command starts with an opcode and its complement, and each step is
// confirmed by a single acknowledgment byte:
//
//	Host:   [OPCODE][^OPCODE]
//	Device: [ACK]
//	Host:   [A3][A2][A1][A0][XOR]          (address-taking commands)
//	Device: [ACK]
//	Host:   [N-1][DATA...][XOR]             (WRITE)
//	Device: [ACK]
//
// Where:
//   - ACK = 0x79, NACK = 0x1F
//   - Addresses are 32-bit big-endian
//   - Checksums are the XOR of the bytes they protect
//
// # Frame Builders
//
// Use the Encode* functions to create frames:
//
//	pair := protocol.CommandPair(protocol.CmdWriteMemory)
//	addr, payload := protocol.EncodeWrite(0x08000000, data)
//	params := protocol.EncodeExtendedErase(protocol.EraseAll)
//
// Encoders do not validate their inputs. Call CheckDataLength and
// CheckEraseUnits first.
//
// # Response Parsers
//
//	info, err := protocol.ParseGetResponse(data)
//	pid, err := protocol.ParseGetIDResponse(data)
//
// # Error Handling
//
// A failed transaction is reported as a *ProtocolError. It matches ErrNack or
// ErrTimeout with errors.Is, and OutcomeOf maps any transaction error to an
// Outcome:
//
//	if protocol.OutcomeOf(err) == protocol.OutcomeTimeout {
//	    // the device stopped talking
//	}
//
// # Reference
//
// AN3155 Application note: USART protocol used in the STM32 bootloader.
package protocol
