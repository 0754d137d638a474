package protocol

import (
	"encoding/binary"
	"fmt"
)

// CommandPair returns the two bytes that open every command: the opcode and its complement.
//
// Frame structure:
//
//	[OPCODE][^OPCODE]
func CommandPair(opcode byte) []byte {
	return []byte{opcode, Complement(opcode)}
}

// EncodeAddress encodes a 32-bit address the way GO, READ and WRITE expect it.
//
// Frame structure:
//
//	[A31..24][A23..16][A15..8][A7..0][XOR]
func EncodeAddress(addr uint32) []byte {
	frame := make([]byte, AddressFieldSize)
	binary.BigEndian.PutUint32(frame, addr)
	frame[4] = addressChecksum(addr)
	return frame
}

// EncodeWrite returns the address block and the data block of a WRITE command.
// The data length must already be checked with CheckDataLength.
//
// Data block structure:
//
//	[N-1][DATA(N)][XOR(N-1, DATA...)]
func EncodeWrite(addr uint32, data []byte) (address, payload []byte) {
	payload = make([]byte, 0, len(data)+2)
	payload = append(payload, byte(len(data)-1))
	payload = append(payload, data...)
	payload = append(payload, XORChecksum(payload))
	return EncodeAddress(addr), payload
}

// EncodeRead returns the address block and the count block of a READ command.
// The count must already be checked with CheckDataLength.
//
// Count block structure:
//
//	[N-1][^(N-1)]
func EncodeRead(addr uint32, count int) (address, countField []byte) {
	n := byte(count - 1)
	return EncodeAddress(addr), []byte{n, Complement(n)}
}

// EncodeErase returns the parameter block of a standard ERASE command.
// Units are page numbers 0..units-1. EraseAll selects the full-chip form.
//
// Frame structure:
//
//	[N-1][P0][P1]...[PN-1][XOR]   or   [0xFF][0x00]
func EncodeErase(units int) []byte {
	if units == EraseAll {
		return []byte{0xFF, 0x00}
	}

	frame := make([]byte, 0, units+2)
	frame = append(frame, byte(units-1))
	for i := 0; i < units; i++ {
		frame = append(frame, byte(i))
	}
	return append(frame, XORChecksum(frame))
}

// EncodeExtendedErase returns the parameter block of an EXTENDED_ERASE command.
// Units are page numbers 0..units-1 encoded on two bytes, big-endian.
// EraseAll selects the full-chip (mass erase) form.
//
// Frame structure:
//
//	[(N-1)hi][(N-1)lo][P0hi][P0lo]...[XOR]   or   [0xFF][0xFF][0x00]
func EncodeExtendedErase(units int) []byte {
	if units == EraseAll {
		return []byte{0xFF, 0xFF, 0x00}
	}

	frame := make([]byte, 0, 2*units+3)
	frame = binary.BigEndian.AppendUint16(frame, uint16(units-1))
	for i := 0; i < units; i++ {
		frame = binary.BigEndian.AppendUint16(frame, uint16(i))
	}
	return append(frame, XORChecksum(frame))
}

// CheckDataLength validates the byte count of a WRITE payload or READ request.
func CheckDataLength(n int) error {
	if n < 1 || n > MaxDataSize {
		return fmt.Errorf("data length %d out of range: must be 1-%d bytes", n, MaxDataSize)
	}
	return nil
}

// CheckEraseUnits validates an erase unit count for the standard or extended command.
func CheckEraseUnits(units int, extended bool) error {
	if units == EraseAll {
		return nil
	}
	limit := MaxEraseUnits
	if extended {
		limit = MaxExtendedEraseUnits
	}
	if units < 1 || units > limit {
		return fmt.Errorf("erase unit count %d out of range: must be 1-%d or full chip", units, limit)
	}
	return nil
}
