package link

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaudRate is the serial speed used when none is configured.
const DefaultBaudRate = 115200

// Parity selects the parity bit of the serial framing.
type Parity int

const (
	// ParityNone is 8N1 framing, used by application firmware and the hex loader
	ParityNone Parity = iota

	// ParityEven is 8E1 framing, required by the STM32 system bootloader
	ParityEven
)

func (p Parity) String() string {
	if p == ParityEven {
		return "8E1"
	}
	return "8N1"
}

// Mode is the serial framing a port is opened with.
type Mode struct {
	BaudRate int
	Parity   Parity
}

// BootloaderMode returns the 8E1 framing used while talking to the system bootloader.
func BootloaderMode(baud int) Mode {
	return Mode{BaudRate: baud, Parity: ParityEven}
}

// ApplicationMode returns the 8N1 framing used for magic words and the hex protocol.
func ApplicationMode(baud int) Mode {
	return Mode{BaudRate: baud, Parity: ParityNone}
}

// Port is the subset of a serial port a Session needs.
// A Read that returns zero bytes and a nil error means the read timeout expired.
// go.bug.st/serial ports satisfy this interface.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Opener opens a named port with the given framing.
type Opener interface {
	Open(name string, mode Mode) (Port, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(name string, mode Mode) (Port, error)

// Open calls f(name, mode).
func (f OpenerFunc) Open(name string, mode Mode) (Port, error) {
	return f(name, mode)
}

// SerialOpener opens operating-system serial ports through go.bug.st/serial.
type SerialOpener struct{}

// Open opens the port with 8 data bits and 1 stop bit.
func (SerialOpener) Open(name string, mode Mode) (Port, error) {
	parity := serial.NoParity
	if mode.Parity == ParityEven {
		parity = serial.EvenParity
	}

	baud := mode.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	p, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   parity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, &PortError{Port: name, Err: err}
	}
	return p, nil
}

// ListPorts returns the names of the serial ports present on the system, in
// enumeration order.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, &PortError{Op: "enumerate", Err: err}
	}
	return ports, nil
}

// PortInfo describes an enumerated serial port.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

func (p PortInfo) String() string {
	if !p.IsUSB {
		return p.Name
	}
	return fmt.Sprintf("%s (USB %s:%s %s %s)", p.Name, p.VID, p.PID, p.Product, p.SerialNumber)
}

// ListPortDetails returns the serial ports with their USB descriptors when available.
func ListPortDetails() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, &PortError{Op: "enumerate", Err: err}
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return ports, nil
}
