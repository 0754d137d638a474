package bootsim

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/moffa90/go-stmflash/link"
	"github.com/moffa90/go-stmflash/protocol"
)

func openSim(t *testing.T, bus *Bus, mode link.Mode) *link.Session {
	t.Helper()
	s, err := link.Open(bus, "sim0", mode)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func expect(t *testing.T, s *link.Session, want ...byte) {
	t.Helper()
	buf := make([]byte, len(want))
	if _, err := s.Receive(context.Background(), buf, 50*time.Millisecond); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !bytes.Equal(buf, want) {
		t.Fatalf("received % X, want % X", buf, want)
	}
}

func TestBusExclusiveOpen(t *testing.T) {
	bus := NewBus()
	bus.Attach("sim0", NewDevice())

	s := openSim(t, bus, link.BootloaderMode(115200))
	if _, err := bus.Open("sim0", link.BootloaderMode(115200)); !errors.Is(err, ErrPortBusy) {
		t.Errorf("second open error = %v, want ErrPortBusy", err)
	}
	if bus.OpenCount() != 1 {
		t.Errorf("OpenCount() = %d, want 1", bus.OpenCount())
	}

	_ = s.Close()
	if bus.OpenCount() != 0 {
		t.Errorf("OpenCount() after close = %d", bus.OpenCount())
	}
}

func TestBusFailingPort(t *testing.T) {
	bus := NewBus()
	bus.Fail("COM1", errors.New("access denied"))
	bus.Attach("COM2", NewDevice())

	if _, err := bus.Open("COM1", link.BootloaderMode(115200)); err == nil {
		t.Error("expected open failure")
	}
	if got := bus.Ports(); len(got) != 2 || got[0] != "COM1" || got[1] != "COM2" {
		t.Errorf("Ports() = %v", got)
	}
}

func TestDeviceEntersBootloaderOnMagic(t *testing.T) {
	bus := NewBus()
	dev := NewDevice()
	bus.Attach("sim0", dev)

	// The application ignores the entry byte.
	s := openSim(t, bus, link.BootloaderMode(115200))
	_ = s.Send([]byte{protocol.EntryByte})
	if _, err := s.ReceiveByte(context.Background(), 10*time.Millisecond); !errors.Is(err, link.ErrTimeout) {
		t.Fatalf("application answered the entry byte: %v", err)
	}
	_ = s.Close()

	s = openSim(t, bus, link.ApplicationMode(115200))
	_ = s.Send([]byte("garbage" + protocol.ResetMagic))
	_ = s.Close()

	s = openSim(t, bus, link.BootloaderMode(115200))
	_ = s.Send([]byte{protocol.EntryByte})
	expect(t, s, protocol.Ack)

	if dev.Resets() != 1 || dev.Syncs() != 1 {
		t.Errorf("resets=%d syncs=%d", dev.Resets(), dev.Syncs())
	}
}

func TestDeviceCommands(t *testing.T) {
	bus := NewBus()
	dev := NewDevice(WithID(0x452), WithEraseMode(protocol.EraseStandard), Synchronized())
	bus.Attach("sim0", dev)
	s := openSim(t, bus, link.BootloaderMode(115200))

	_ = s.Send(protocol.CommandPair(protocol.CmdGetID))
	expect(t, s, protocol.Ack, 0x01, 0x04, 0x52, protocol.Ack)

	// Bad complement.
	_ = s.Send([]byte{protocol.CmdGetID, 0x00})
	expect(t, s, protocol.Nack)

	// Extended erase is not advertised in standard mode.
	_ = s.Send(protocol.CommandPair(protocol.CmdExtendedErase))
	expect(t, s, protocol.Nack)

	_ = s.Send(protocol.CommandPair(protocol.CmdErase))
	_ = s.Send(protocol.EncodeErase(1))
	expect(t, s, protocol.Ack, protocol.Ack)

	addr, payload := protocol.EncodeWrite(0x08000010, []byte{0xDE, 0xAD})
	_ = s.Send(protocol.CommandPair(protocol.CmdWriteMemory))
	_ = s.Send(addr)
	_ = s.Send(payload)
	expect(t, s, protocol.Ack, protocol.Ack, protocol.Ack)

	addr, count := protocol.EncodeRead(0x08000010, 3)
	_ = s.Send(protocol.CommandPair(protocol.CmdReadMemory))
	_ = s.Send(addr)
	_ = s.Send(count)
	expect(t, s, protocol.Ack, protocol.Ack, protocol.Ack, 0xDE, 0xAD, 0xFF)

	_ = s.Send(protocol.CommandPair(protocol.CmdGo))
	_ = s.Send(protocol.EncodeAddress(0x08000000))
	expect(t, s, protocol.Ack, protocol.Ack)

	if running, at := dev.Running(); !running || at != 0x08000000 {
		t.Errorf("Running() = %v, 0x%08X", running, at)
	}

	want := []byte{protocol.CmdGetID, protocol.CmdGetID, protocol.CmdExtendedErase, protocol.CmdErase,
		protocol.CmdWriteMemory, protocol.CmdReadMemory, protocol.CmdGo}
	if got := dev.Ops(); !bytes.Equal(got, want) {
		t.Errorf("Ops() = % X, want % X", got, want)
	}
}

func TestDeviceExtendedMassErase(t *testing.T) {
	bus := NewBus()
	dev := NewDevice(Synchronized())
	bus.Attach("sim0", dev)
	s := openSim(t, bus, link.BootloaderMode(115200))

	_ = s.Send(protocol.CommandPair(protocol.CmdExtendedErase))
	_ = s.Send(protocol.EncodeExtendedErase(protocol.EraseAll))
	expect(t, s, protocol.Ack, protocol.Ack)

	cmds := dev.Commands()
	if len(cmds) != 1 || !cmds[0].Full {
		t.Errorf("Commands() = %+v", cmds)
	}
}

func TestHexLoaderHandshake(t *testing.T) {
	bus := NewBus()
	h := NewHexLoader()
	bus.Attach("sim0", h)
	s := openSim(t, bus, link.ApplicationMode(115200))

	_ = s.Send([]byte(LoaderMagic))
	expect(t, s, []byte(LoaderBanner)...)

	_ = s.Send([]byte(":01000000AAF065"))
	expect(t, s, []byte(":01000000AAA1B4\r\n")...)

	_ = s.Send([]byte(":0400000001020304F2"))
	expect(t, s, []byte(":01000000AAA1B4\r\n")...)

	_ = s.Send([]byte(":00000001FF"))
	expect(t, s, []byte(":01000000AAA1B4\r\n")...)

	if !h.Done() || !bytes.Equal(h.Memory(4), []byte{1, 2, 3, 4}) {
		t.Errorf("done=%v memory=% X", h.Done(), h.Memory(4))
	}
}
