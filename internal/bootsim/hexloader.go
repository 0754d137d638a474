package bootsim

import (
	"sync"

	"github.com/moffa90/go-stmflash/hexrecord"
	"github.com/moffa90/go-stmflash/link"
)

// LoaderMagic is the sentence that starts the Z80 board flash loader.
const LoaderMagic = "..helloTeachZ80FlashLoader"

// LoaderBanner is printed by the flash loader when it starts.
const LoaderBanner = "Z80 flash loader ready\r\n"

// HandshakeReject is the handshake payload the simulated loader sends for a
// refused record.
const HandshakeReject = 0xA0

// HexLoader is a simulated Z80 board flash loader. It only listens at 8N1.
type HexLoader struct {
	mu sync.Mutex

	active   bool
	greeted  bool
	done     bool
	window   []byte
	parser   hexrecord.Parser
	q        queue
	memory   []byte
	high     int
	received []hexrecord.Record

	silent   bool
	mute     bool
	rejectAt int
	data     int
}

// HexOption configures a simulated HexLoader.
type HexOption func(*HexLoader)

// LoaderSilent makes the loader never answer.
func LoaderSilent() HexOption {
	return func(h *HexLoader) {
		h.silent = true
	}
}

// LoaderMute makes the loader accept the welcome record but never confirm
// data records.
func LoaderMute() HexOption {
	return func(h *HexLoader) {
		h.mute = true
	}
}

// RejectRecord makes the loader refuse the data record with the given
// zero-based index.
func RejectRecord(index int) HexOption {
	return func(h *HexLoader) {
		h.rejectAt = index
	}
}

// NewHexLoader returns a simulated loader with 64 KiB of target memory.
func NewHexLoader(opts ...HexOption) *HexLoader {
	h := &HexLoader{
		memory:   make([]byte, 0x10000),
		rejectAt: -1,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Memory returns a copy of the first n bytes of target memory.
func (h *HexLoader) Memory(n int) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]byte(nil), h.memory[:n]...)
}

// Received returns every valid record the loader accepted.
func (h *HexLoader) Received() []hexrecord.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]hexrecord.Record(nil), h.received...)
}

// Done reports whether the end-of-file record arrived.
func (h *HexLoader) Done() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// HighWater returns one past the highest address written.
func (h *HexLoader) HighWater() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.high
}

func (h *HexLoader) take(p []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.q.pop(p)
}

func (h *HexLoader) discard() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.q.clear()
}

func (h *HexLoader) receive(mode link.Mode, p []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.silent || mode.Parity != link.ParityNone {
		return
	}
	for _, c := range p {
		h.feed(c)
	}
}

func (h *HexLoader) feed(c byte) {
	if !h.active {
		h.window = append(h.window, c)
		if len(h.window) > len(LoaderMagic) {
			h.window = h.window[1:]
		}
		if string(h.window) == LoaderMagic {
			h.window = nil
			h.active = true
			h.q.push([]byte(LoaderBanner)...)
		}
		return
	}

	switch h.parser.Feed(c) {
	case hexrecord.Accepted:
		h.handle(h.parser.Record())
	case hexrecord.ChecksumMismatch:
		h.reply(HandshakeReject)
	}
}

func (h *HexLoader) handle(rec hexrecord.Record) {
	switch {
	case rec.IsHandshake(hexrecord.HandshakeHello):
		h.greeted = true
		h.done = false
		h.received = append(h.received, rec)
		h.reply(hexrecord.HandshakeAck)

	case !h.greeted || h.mute:
		return

	case rec.Type == hexrecord.TypeData:
		index := h.data
		h.data++
		if index == h.rejectAt || int(rec.Address)+len(rec.Data) > len(h.memory) {
			h.reply(HandshakeReject)
			return
		}
		copy(h.memory[rec.Address:], rec.Data)
		if end := int(rec.Address) + len(rec.Data); end > h.high {
			h.high = end
		}
		h.received = append(h.received, rec)
		h.reply(hexrecord.HandshakeAck)

	case rec.Type == hexrecord.TypeEOF:
		h.done = true
		h.received = append(h.received, rec)
		h.reply(hexrecord.HandshakeAck)
	}
}

func (h *HexLoader) reply(code byte) {
	h.q.push(hexrecord.Handshake(code).Encode()...)
	h.q.push('\r', '\n')
}
