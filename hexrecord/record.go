package hexrecord

import (
	"errors"
	"fmt"
)

// Record types understood by the flash loader.
const (
	TypeData      byte = 0x00
	TypeEOF       byte = 0x01
	TypeHandshake byte = 0xAA
)

// Handshake payloads.
const (
	// HandshakeHello opens a download session
	HandshakeHello byte = 0xF0

	// HandshakeAck confirms the previous record
	HandshakeAck byte = 0xA1
)

// MaxPayload is the largest payload a record can carry.
const MaxPayload = 255

// StartCode begins every record.
const StartCode = ':'

// ErrChecksumMismatch is returned when a record's trailing checksum does not
// match its content.
var ErrChecksumMismatch = errors.New("hex record checksum mismatch")

// ErrMalformed is returned for text that is not a well-formed record.
var ErrMalformed = errors.New("malformed hex record")

// Record is a single hex record.
type Record struct {
	Type    byte
	Address uint16
	Data    []byte
}

// New returns a record carrying a copy of data.
func New(typ byte, address uint16, data []byte) (Record, error) {
	if len(data) > MaxPayload {
		return Record{}, fmt.Errorf("payload of %d bytes exceeds %d", len(data), MaxPayload)
	}
	r := Record{Type: typ, Address: address}
	if len(data) > 0 {
		r.Data = make([]byte, len(data))
		copy(r.Data, data)
	}
	return r, nil
}

// Checksum returns the two's complement of the sum of the length, address,
// type and payload bytes.
func (r Record) Checksum() byte {
	sum := byte(len(r.Data)) + byte(r.Address>>8) + byte(r.Address) + r.Type
	for _, b := range r.Data {
		sum += b
	}
	return -sum
}

const hexDigits = "0123456789ABCDEF"

func appendHex(dst []byte, b byte) []byte {
	return append(dst, hexDigits[b>>4], hexDigits[b&0x0F])
}

// Encode returns the serialized record, without a line terminator.
//
// Example: type 0xAA, address 0, payload F0 encodes as ":01000000AAF065".
func (r Record) Encode() []byte {
	out := make([]byte, 0, 11+2*len(r.Data))
	out = append(out, StartCode)
	out = appendHex(out, byte(len(r.Data)))
	out = appendHex(out, byte(r.Address>>8))
	out = appendHex(out, byte(r.Address))
	out = appendHex(out, r.Type)
	for _, b := range r.Data {
		out = appendHex(out, b)
	}
	return appendHex(out, r.Checksum())
}

func (r Record) String() string {
	return string(r.Encode())
}

// IsHandshake reports whether r is a handshake record whose first payload
// byte is code.
func (r Record) IsHandshake(code byte) bool {
	return r.Type == TypeHandshake && len(r.Data) > 0 && r.Data[0] == code
}

// Handshake returns the handshake record carrying code.
func Handshake(code byte) Record {
	return Record{Type: TypeHandshake, Data: []byte{code}}
}

// EOF returns the end-of-file record.
func EOF() Record {
	return Record{Type: TypeEOF}
}

// Parse decodes exactly one record from line. Characters before the start
// code are ignored; anything after the checksum is an error.
func Parse(line string) (Record, error) {
	var p Parser
	for i := 0; i < len(line); i++ {
		switch p.Feed(line[i]) {
		case Accepted:
			if i != len(line)-1 {
				return Record{}, fmt.Errorf("%w: %d trailing characters", ErrMalformed, len(line)-1-i)
			}
			return p.Record(), nil
		case ChecksumMismatch:
			return Record{}, ErrChecksumMismatch
		case Malformed:
			return Record{}, fmt.Errorf("%w: unexpected %q at offset %d", ErrMalformed, line[i], i)
		}
	}
	return Record{}, fmt.Errorf("%w: truncated", ErrMalformed)
}
