package bootsim

import (
	"encoding/binary"
	"sync"

	"github.com/moffa90/go-stmflash/device"
	"github.com/moffa90/go-stmflash/link"
	"github.com/moffa90/go-stmflash/protocol"
)

// Command is one bootloader command the simulated device accepted or refused.
type Command struct {
	Op byte

	// Address is set for GO, READ and WRITE
	Address uint32

	// Length is the byte count of READ and WRITE
	Length int

	// Units lists the erased pages or sectors
	Units []int

	// Full is set for a full-chip erase
	Full bool

	// Nacked is set when the device refused the command
	Nacked bool
}

type stmState int

const (
	stateApp stmState = iota
	stateAwaitSync
	stateOpcode
	stateComplement
	stateCollect
)

// Device is a simulated STM32 with application firmware and the system
// bootloader. The application enters the bootloader when it receives the reset
// magic at 8N1; the bootloader synchronizes on 0x7F at 8E1.
type Device struct {
	mu sync.Mutex

	id        uint16
	version   byte
	eraseMode protocol.EraseMode
	profile   device.Profile
	known     bool
	flash     []byte

	state  stmState
	op     byte
	buf    []byte
	need   int
	then   func([]byte)
	window []byte
	q      queue

	silent      bool
	silentAfter int
	nackWriteAt int
	corruptAt   int

	commands []Command
	accepted int
	writes   int
	reads    int
	running  bool
	started  uint32
	syncs    int
	resets   int
}

// Option configures a simulated Device.
type Option func(*Device)

// WithID sets the product id reported by GET_ID. Registered ids also select
// the erase layout.
func WithID(id uint16) Option {
	return func(d *Device) {
		d.id = id
	}
}

// WithEraseMode selects which erase command GET advertises.
func WithEraseMode(m protocol.EraseMode) Option {
	return func(d *Device) {
		d.eraseMode = m
	}
}

// WithFlashSize sets the simulated flash size in bytes.
func WithFlashSize(n int) Option {
	return func(d *Device) {
		d.flash = make([]byte, n)
	}
}

// InBootloader starts the device in the system bootloader, waiting for 0x7F,
// as if it was reset with BOOT0 held high.
func InBootloader() Option {
	return func(d *Device) {
		d.state = stateAwaitSync
	}
}

// Synchronized starts the device in the bootloader, already past the 0x7F
// entry byte.
func Synchronized() Option {
	return func(d *Device) {
		d.state = stateOpcode
	}
}

// Silent makes the device never answer.
func Silent() Option {
	return func(d *Device) {
		d.silent = true
	}
}

// SilentAfter makes the device stop answering once n commands were accepted.
func SilentAfter(n int) Option {
	return func(d *Device) {
		d.silentAfter = n
	}
}

// NackWrite makes the device refuse the WRITE with the given zero-based index.
func NackWrite(index int) Option {
	return func(d *Device) {
		d.nackWriteAt = index
	}
}

// CorruptRead makes the device flip the first byte returned by the READ with
// the given zero-based index.
func CorruptRead(index int) Option {
	return func(d *Device) {
		d.corruptAt = index
	}
}

// NewDevice returns a simulated STM32L43x with 256 KiB of erased flash running
// its application.
func NewDevice(opts ...Option) *Device {
	d := &Device{
		id:          0x435,
		version:     0x31,
		eraseMode:   protocol.EraseExtended,
		silentAfter: -1,
		nackWriteAt: -1,
		corruptAt:   -1,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.flash == nil {
		d.flash = make([]byte, 256*1024)
	}
	for i := range d.flash {
		d.flash[i] = 0xFF
	}
	d.profile, d.known = device.Lookup(d.id)
	return d
}

// Commands returns every command received after synchronization.
func (d *Device) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Command(nil), d.commands...)
}

// Ops returns the opcodes of Commands in order.
func (d *Device) Ops() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	ops := make([]byte, len(d.commands))
	for i, c := range d.commands {
		ops[i] = c.Op
	}
	return ops
}

// Flash returns a copy of n bytes of flash at addr.
func (d *Device) Flash(addr uint32, n int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	off := int(addr - device.FlashBase)
	out := make([]byte, n)
	copy(out, d.flash[off:off+n])
	return out
}

// Running reports whether a GO was accepted, and its address.
func (d *Device) Running() (bool, uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running, d.started
}

// Syncs returns how many times the bootloader acknowledged the entry byte.
func (d *Device) Syncs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.syncs
}

// Resets returns how many times the application received the reset magic.
func (d *Device) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}

func (d *Device) take(p []byte) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.q.pop(p)
}

func (d *Device) discard() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.q.clear()
}

func (d *Device) receive(mode link.Mode, p []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range p {
		d.feed(mode, b)
	}
}

func (d *Device) feed(mode link.Mode, b byte) {
	if d.silent {
		return
	}

	switch d.state {
	case stateApp:
		if mode.Parity != link.ParityNone {
			return
		}
		d.window = append(d.window, b)
		if len(d.window) > len(protocol.ResetMagic) {
			d.window = d.window[1:]
		}
		if string(d.window) == protocol.ResetMagic {
			d.window = nil
			d.resets++
			d.state = stateAwaitSync
		}

	case stateAwaitSync:
		if mode.Parity == link.ParityEven && b == protocol.EntryByte {
			d.syncs++
			d.q.push(protocol.Ack)
			d.state = stateOpcode
		}

	case stateOpcode:
		if mode.Parity != link.ParityEven {
			return
		}
		if b == protocol.EntryByte {
			// Already synchronized.
			d.q.push(protocol.Nack)
			return
		}
		d.op = b
		d.state = stateComplement

	case stateComplement:
		if b != protocol.Complement(d.op) || !d.supports(d.op) {
			d.refuse(Command{Op: d.op})
			return
		}
		d.start()

	case stateCollect:
		d.buf = append(d.buf, b)
		if len(d.buf) == d.need {
			d.state = stateOpcode
			d.then(d.buf)
		}
	}
}

// commandList is the GET payload after the version byte.
func (d *Device) commandList() []byte {
	cmds := []byte{
		protocol.CmdGet, protocol.CmdGetVersion, protocol.CmdGetID,
		protocol.CmdReadMemory, protocol.CmdGo, protocol.CmdWriteMemory,
	}
	switch d.eraseMode {
	case protocol.EraseStandard:
		cmds = append(cmds, protocol.CmdErase)
	case protocol.EraseExtended:
		cmds = append(cmds, protocol.CmdExtendedErase)
	}
	return cmds
}

func (d *Device) supports(op byte) bool {
	if op == protocol.CmdErase && d.eraseMode == protocol.EraseUnknown {
		return true
	}
	for _, c := range d.commandList() {
		if c == op {
			return true
		}
	}
	return false
}

func (d *Device) start() {
	if d.silentAfter >= 0 && d.accepted >= d.silentAfter {
		d.silent = true
		return
	}
	d.accepted++
	d.q.push(protocol.Ack)
	d.state = stateOpcode

	switch d.op {
	case protocol.CmdGet:
		cmds := d.commandList()
		d.q.push(byte(len(cmds)), d.version)
		d.q.push(cmds...)
		d.q.push(protocol.Ack)
		d.log(Command{Op: d.op})

	case protocol.CmdGetVersion:
		d.q.push(d.version, 0x00, 0x00, protocol.Ack)
		d.log(Command{Op: d.op})

	case protocol.CmdGetID:
		d.q.push(0x01, byte(d.id>>8), byte(d.id), protocol.Ack)
		d.log(Command{Op: d.op})

	case protocol.CmdGo:
		d.collect(protocol.AddressFieldSize, d.goAddress)

	case protocol.CmdReadMemory:
		d.collect(protocol.AddressFieldSize, d.readAddress)

	case protocol.CmdWriteMemory:
		d.collect(protocol.AddressFieldSize, d.writeAddress)

	case protocol.CmdErase:
		d.collect(1, d.eraseCount)

	case protocol.CmdExtendedErase:
		d.collect(2, d.extendedEraseCount)
	}
}

func (d *Device) collect(n int, then func([]byte)) {
	d.buf = d.buf[:0]
	d.need = n
	d.then = then
	d.state = stateCollect
}

func (d *Device) log(c Command) {
	d.commands = append(d.commands, c)
}

func (d *Device) refuse(c Command) {
	c.Nacked = true
	d.log(c)
	d.q.push(protocol.Nack)
	d.state = stateOpcode
}

// address decodes and checks an address block.
func (d *Device) address(buf []byte) (uint32, bool) {
	addr := binary.BigEndian.Uint32(buf)
	return addr, protocol.EncodeAddress(addr)[4] == buf[4]
}

func (d *Device) inFlash(addr uint32, n int) bool {
	return addr >= device.FlashBase && uint64(addr)+uint64(n) <= uint64(device.FlashBase)+uint64(len(d.flash))
}

func (d *Device) goAddress(buf []byte) {
	addr, ok := d.address(buf)
	if !ok {
		d.refuse(Command{Op: protocol.CmdGo, Address: addr})
		return
	}
	d.q.push(protocol.Ack)
	d.log(Command{Op: protocol.CmdGo, Address: addr})
	d.running = true
	d.started = addr
	d.state = stateApp
}

func (d *Device) readAddress(buf []byte) {
	addr, ok := d.address(buf)
	if !ok || !d.inFlash(addr, 1) {
		d.refuse(Command{Op: protocol.CmdReadMemory, Address: addr})
		return
	}
	d.q.push(protocol.Ack)
	d.collect(2, func(buf []byte) {
		n := int(buf[0]) + 1
		if buf[1] != protocol.Complement(buf[0]) || !d.inFlash(addr, n) {
			d.refuse(Command{Op: protocol.CmdReadMemory, Address: addr, Length: n})
			return
		}
		off := int(addr - device.FlashBase)
		data := append([]byte(nil), d.flash[off:off+n]...)
		if d.reads == d.corruptAt {
			data[0] ^= 0xFF
		}
		d.reads++
		d.q.push(protocol.Ack)
		d.q.push(data...)
		d.log(Command{Op: protocol.CmdReadMemory, Address: addr, Length: n})
	})
}

func (d *Device) writeAddress(buf []byte) {
	addr, ok := d.address(buf)
	if !ok || !d.inFlash(addr, 1) {
		d.refuse(Command{Op: protocol.CmdWriteMemory, Address: addr})
		return
	}
	d.q.push(protocol.Ack)
	d.collect(1, func(buf []byte) {
		n := int(buf[0]) + 1
		header := buf[0]
		d.collect(n+1, func(buf []byte) {
			data, sum := buf[:n], buf[n]
			cmd := Command{Op: protocol.CmdWriteMemory, Address: addr, Length: n}
			index := d.writes
			d.writes++

			block := append([]byte{header}, data...)
			if protocol.XORChecksum(block) != sum || !d.inFlash(addr, n) || index == d.nackWriteAt {
				d.refuse(cmd)
				return
			}
			off := int(addr - device.FlashBase)
			for i, v := range data {
				// Flash cells only clear bits until erased.
				d.flash[off+i] &= v
			}
			d.q.push(protocol.Ack)
			d.log(cmd)
		})
	})
}

func (d *Device) eraseCount(buf []byte) {
	n := buf[0]
	if n == 0xFF {
		d.collect(1, func(buf []byte) {
			if buf[0] != 0x00 {
				d.refuse(Command{Op: protocol.CmdErase, Full: true})
				return
			}
			d.eraseAll(protocol.CmdErase)
		})
		return
	}

	units := int(n) + 1
	d.collect(units+1, func(buf []byte) {
		block := append([]byte{n}, buf[:units]...)
		pages := make([]int, units)
		for i := range pages {
			pages[i] = int(buf[i])
		}
		if protocol.XORChecksum(block) != buf[units] {
			d.refuse(Command{Op: protocol.CmdErase, Units: pages})
			return
		}
		d.erasePages(protocol.CmdErase, pages)
	})
}

func (d *Device) extendedEraseCount(buf []byte) {
	n := binary.BigEndian.Uint16(buf)
	if n >= 0xFFF0 {
		// Special erase codes: only the mass erase is simulated.
		want := buf[0] ^ buf[1]
		d.collect(1, func(sum []byte) {
			if n != protocol.EraseAll || sum[0] != want {
				d.refuse(Command{Op: protocol.CmdExtendedErase, Full: true})
				return
			}
			d.eraseAll(protocol.CmdExtendedErase)
		})
		return
	}

	header := append([]byte(nil), buf...)
	units := int(n) + 1
	d.collect(2*units+1, func(buf []byte) {
		block := append(header, buf[:2*units]...)
		pages := make([]int, units)
		for i := range pages {
			pages[i] = int(binary.BigEndian.Uint16(buf[2*i:]))
		}
		if protocol.XORChecksum(block) != buf[2*units] {
			d.refuse(Command{Op: protocol.CmdExtendedErase, Units: pages})
			return
		}
		d.erasePages(protocol.CmdExtendedErase, pages)
	})
}

func (d *Device) eraseAll(op byte) {
	for i := range d.flash {
		d.flash[i] = 0xFF
	}
	d.q.push(protocol.Ack)
	d.log(Command{Op: op, Full: true})
}

func (d *Device) erasePages(op byte, pages []int) {
	cmd := Command{Op: op, Units: pages}
	if !d.known {
		d.refuse(cmd)
		return
	}
	for _, page := range pages {
		start, size := 0, 0
		for i := 0; i <= page; i++ {
			start += size
			size = d.profile.Granularity.UnitSize(i)
		}
		if size == 0 || start+size > len(d.flash) {
			d.refuse(cmd)
			return
		}
		for i := start; i < start+size; i++ {
			d.flash[i] = 0xFF
		}
	}
	d.q.push(protocol.Ack)
	d.log(cmd)
}
