package main

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/moffa90/go-stmflash/discovery"
	"github.com/moffa90/go-stmflash/protocol"
	"github.com/moffa90/go-stmflash/internal/bootsim"
	"github.com/moffa90/go-stmflash/link"
)

// run executes the command line against a simulated bus.
func run(t *testing.T, bus *bootsim.Bus, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	a := newApp()
	a.opener = bus
	a.listPorts = func() ([]string, error) { return bus.Ports(), nil }
	a.listDetails = func() ([]link.PortInfo, error) { return nil, nil }

	var out, errOut bytes.Buffer
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeImage(t *testing.T, name string, n int) (string, []byte) {
	t.Helper()
	data := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(data)
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path, data
}

func TestSTM32Command(t *testing.T) {
	path, data := writeImage(t, "firmware.bin", 5000)

	dev := bootsim.NewDevice(bootsim.InBootloader())
	bus := bootsim.NewBus()
	bus.Attach("sim0", dev)

	_, stderr, err := run(t, bus, "stm32", path, "-p", "sim0", "-v", "-q", "--log-format", "json")
	if err != nil {
		t.Fatalf("stm32: %v", err)
	}

	if got := dev.Flash(protocol.DefaultLoadAddress, len(data)); !bytes.Equal(got, data) {
		t.Error("flash does not hold the image")
	}
	if running, addr := dev.Running(); !running || addr != protocol.DefaultLoadAddress {
		t.Errorf("Running() = %v, 0x%08X", running, addr)
	}
	if !strings.Contains(stderr, `"message":"programming complete"`) {
		t.Errorf("log does not report completion:\n%s", stderr)
	}
	if bus.OpenCount() != 0 {
		t.Errorf("%d ports left open", bus.OpenCount())
	}
}

func TestSTM32CommandAutoScan(t *testing.T) {
	path, data := writeImage(t, "firmware.bin", 300)

	dev := bootsim.NewDevice(bootsim.InBootloader())
	bus := bootsim.NewBus()
	bus.Fail("COM1", errors.New("access denied"))
	bus.Attach("COM2", dev)

	if _, _, err := run(t, bus, "stm32", path, "-q"); err != nil {
		t.Fatalf("stm32: %v", err)
	}
	if got := dev.Flash(protocol.DefaultLoadAddress, len(data)); !bytes.Equal(got, data) {
		t.Error("flash does not hold the image")
	}
}

func TestSTM32CommandErrors(t *testing.T) {
	path, _ := writeImage(t, "firmware.bin", 64)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing image", []string{"stm32"}, "accepts 1 arg"},
		{"unreadable image", []string{"stm32", filepath.Join(t.TempDir(), "none.bin"), "-p", "COM1"}, "none.bin"},
		{"bad address", []string{"stm32", path, "-p", "COM1", "--address", "boot"}, `invalid address "boot"`},
		{"bad log format", []string{"--log-format", "xml", "ports"}, `unknown log format "xml"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, bootsim.NewBus(), tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestNoDeviceKeepsPortError(t *testing.T) {
	path, _ := writeImage(t, "firmware.bin", 64)

	for _, command := range []string{"stm32", "z80"} {
		t.Run(command, func(t *testing.T) {
			bus := bootsim.NewBus()
			bus.Fail("COM7", errors.New("access denied"))

			_, _, err := run(t, bus, command, path, "-p", "COM7", "-q")
			if !errors.Is(err, discovery.ErrNoDevice) {
				t.Fatalf("error = %v, want ErrNoDevice", err)
			}
			var portErr *link.PortError
			if !errors.As(err, &portErr) || portErr.Port != "COM7" {
				t.Errorf("error = %v, want a *link.PortError for COM7", err)
			}
			if !strings.Contains(err.Error(), "access denied") {
				t.Errorf("error = %q, want the port failure in the message", err)
			}
		})
	}
}

func TestZ80Command(t *testing.T) {
	path, data := writeImage(t, "rom.bin", 100)

	loader := bootsim.NewHexLoader()
	bus := bootsim.NewBus()
	bus.Fail("COM1", errors.New("access denied"))
	bus.Attach("COM2", loader)

	if _, _, err := run(t, bus, "z80", path, "-q"); err != nil {
		t.Fatalf("z80: %v", err)
	}
	if !loader.Done() {
		t.Error("end-of-file record not received")
	}
	if got := loader.Memory(len(data)); !bytes.Equal(got, data) {
		t.Error("target memory does not hold the image")
	}
	if bus.OpenCount() != 0 {
		t.Errorf("%d ports left open", bus.OpenCount())
	}
}

func TestZ80CommandHexAddress(t *testing.T) {
	tests := []struct {
		name    string
		hex     string
		wantErr string
	}{
		{"placed at its base", ":04010000DEADBEEFC3\n:00000001FF\n", ""},
		{"ends past 0xFFFF", ":04FFFC00DEADBEEFC9\n:00000001FF\n", "ends past 0xFFFF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rom.hex")
			if err := os.WriteFile(path, []byte(tt.hex), 0o644); err != nil {
				t.Fatal(err)
			}

			loader := bootsim.NewHexLoader()
			bus := bootsim.NewBus()
			bus.Attach("sim0", loader)

			_, _, err := run(t, bus, "z80", path, "-p", "sim0", "-q")
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				if len(bus.Opens()) != 0 {
					t.Error("port opened for an image that does not fit")
				}
				return
			}
			if err != nil {
				t.Fatalf("z80: %v", err)
			}

			mem := loader.Memory(0x0104)
			if want := []byte{0xDE, 0xAD, 0xBE, 0xEF}; !bytes.Equal(mem[0x0100:], want) {
				t.Errorf("memory at 0x0100 = % X, want % X", mem[0x0100:], want)
			}
			if !bytes.Equal(mem[:4], make([]byte, 4)) {
				t.Errorf("memory at 0x0000 = % X, want zeros", mem[:4])
			}
		})
	}
}

func TestZ80CommandTooLarge(t *testing.T) {
	path, _ := writeImage(t, "rom.bin", 0x10000)

	bus := bootsim.NewBus()
	bus.Attach("sim0", bootsim.NewHexLoader())

	_, _, err := run(t, bus, "z80", path, "-p", "sim0", "-q")
	if err == nil || !strings.Contains(err.Error(), "at most 65535") {
		t.Errorf("error = %v", err)
	}
	if len(bus.Opens()) != 0 {
		t.Error("port opened for an oversized image")
	}
}

func TestInfoCommand(t *testing.T) {
	tests := []struct {
		name string
		id   uint16
		want []string
	}{
		{"supported", 0x435, []string{"Product ID: 0x435\n", "Device:", "Flash:      0x08000000, 2048-byte pages"}},
		{"unsupported", 0x999, []string{"Product ID: 0x999 (not supported)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := bootsim.NewDevice(bootsim.InBootloader(), bootsim.WithID(tt.id))
			bus := bootsim.NewBus()
			bus.Attach("sim0", dev)

			stdout, _, err := run(t, bus, "info", "-p", "sim0")
			if err != nil {
				t.Fatalf("info: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(stdout, want) {
					t.Errorf("output missing %q:\n%s", want, stdout)
				}
			}
			if running, _ := dev.Running(); !running {
				t.Error("application not started")
			}
		})
	}
}

func TestPortsCommand(t *testing.T) {
	a := newApp()
	a.listDetails = func() ([]link.PortInfo, error) {
		return []link.PortInfo{
			{Name: "/dev/ttyS0"},
			{Name: "/dev/ttyACM0", IsUSB: true, VID: "0483", PID: "5740", SerialNumber: "A1B2", Product: "Nucleo"},
		}, nil
	}

	var out bytes.Buffer
	cmd := newRootCmd(a)
	cmd.SetArgs([]string{"ports"})
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("ports: %v", err)
	}

	for _, want := range []string{"PORT", "/dev/ttyS0", "0483:5740", "A1B2", "Nucleo"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"0x08000000", 0x08000000, false},
		{"134217728", 0x08000000, false},
		{"0X20000000", 0x20000000, false},
		{"0x100000000", 0, true},
		{"-1", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAddress(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAddress(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseAddress(%q) = 0x%X, want 0x%X", tt.in, got, tt.want)
			}
		})
	}
}
