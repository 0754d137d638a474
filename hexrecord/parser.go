package hexrecord

import "fmt"

// State is the field the parser expects next.
type State int

const (
	WaitStart State = iota
	LengthField
	AddressField
	TypeField
	PayloadField
	ChecksumField
)

func (s State) String() string {
	switch s {
	case WaitStart:
		return "wait-start"
	case LengthField:
		return "length"
	case AddressField:
		return "address"
	case TypeField:
		return "type"
	case PayloadField:
		return "payload"
	case ChecksumField:
		return "checksum"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is the result of feeding one character.
type Status int

const (
	// Incomplete means more characters are needed
	Incomplete Status = iota

	// Accepted means a record with a valid checksum was completed
	Accepted

	// ChecksumMismatch means a record was completed but its checksum is wrong
	ChecksumMismatch

	// Malformed means the record was abandoned: a non-hex character arrived,
	// a new start code interrupted it, or it exceeded the payload limit
	Malformed
)

func (s Status) String() string {
	switch s {
	case Incomplete:
		return "incomplete"
	case Accepted:
		return "accepted"
	case ChecksumMismatch:
		return "checksum mismatch"
	case Malformed:
		return "malformed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Parser decodes records from a character stream. The zero value is ready to
// use and accepts payloads up to MaxPayload bytes.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	// Limit, when positive, rejects records whose payload is longer
	Limit int

	state   State
	nibbles int
	acc     uint16
	sum     byte
	length  int
	rec     Record
	done    Record
}

// State returns the field the parser is waiting for.
func (p *Parser) State() State {
	return p.state
}

// Record returns the most recently accepted record.
func (p *Parser) Record() Record {
	return p.done
}

// Reset abandons any partial record.
func (p *Parser) Reset() {
	p.state = WaitStart
	p.nibbles = 0
	p.acc = 0
}

// Feed consumes one character. Every status other than Incomplete leaves the
// parser at WaitStart.
func (p *Parser) Feed(c byte) Status {
	if p.state == WaitStart {
		if c == StartCode {
			p.begin()
		}
		return Incomplete
	}

	if c == StartCode {
		// An interrupted record is dropped and the new one is tracked.
		p.begin()
		return Malformed
	}

	v, ok := hexValue(c)
	if !ok {
		p.Reset()
		return Malformed
	}

	p.acc = p.acc<<4 | uint16(v)
	p.nibbles++

	switch p.state {
	case LengthField:
		if p.nibbles < 2 {
			return Incomplete
		}
		p.length = int(p.acc)
		p.sum += byte(p.acc)
		if p.Limit > 0 && p.length > p.Limit {
			p.Reset()
			return Malformed
		}
		p.next(AddressField)

	case AddressField:
		if p.nibbles < 4 {
			return Incomplete
		}
		p.rec.Address = p.acc
		p.sum += byte(p.acc>>8) + byte(p.acc)
		p.next(TypeField)

	case TypeField:
		if p.nibbles < 2 {
			return Incomplete
		}
		p.rec.Type = byte(p.acc)
		p.sum += byte(p.acc)
		if p.length > 0 {
			p.rec.Data = make([]byte, 0, p.length)
			p.next(PayloadField)
		} else {
			p.next(ChecksumField)
		}

	case PayloadField:
		if p.nibbles < 2 {
			return Incomplete
		}
		p.rec.Data = append(p.rec.Data, byte(p.acc))
		p.sum += byte(p.acc)
		if len(p.rec.Data) == p.length {
			p.next(ChecksumField)
		} else {
			p.next(PayloadField)
		}

	case ChecksumField:
		if p.nibbles < 2 {
			return Incomplete
		}
		received := byte(p.acc)
		p.Reset()
		if received != -p.sum {
			return ChecksumMismatch
		}
		p.done = p.rec
		return Accepted
	}

	return Incomplete
}

func (p *Parser) begin() {
	p.state = LengthField
	p.nibbles = 0
	p.acc = 0
	p.sum = 0
	p.length = 0
	p.rec = Record{}
}

func (p *Parser) next(s State) {
	p.state = s
	p.nibbles = 0
	p.acc = 0
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
