package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/moffa90/go-stmflash/bootloader"
	"github.com/moffa90/go-stmflash/link"
	"github.com/moffa90/go-stmflash/protocol"
)

// ErrNoDevice is returned when no probed port answered.
var ErrNoDevice = errors.New("no bootloader found")

// NoDeviceError lists every port probed without finding a device. It matches
// ErrNoDevice with errors.Is, and errors.As reaches the error of each port,
// such as a *link.PortError for a port that could not be opened.
type NoDeviceError struct {
	Results []link.ProbeResult
}

func (e *NoDeviceError) Error() string {
	switch len(e.Results) {
	case 0:
		return ErrNoDevice.Error() + ": no serial ports"
	case 1:
		return fmt.Sprintf("%s: %s", ErrNoDevice, e.Results[0])
	}

	ports := make([]string, len(e.Results))
	for i, r := range e.Results {
		ports[i] = r.String()
	}
	return fmt.Sprintf("%s: probed %d ports: %s", ErrNoDevice, len(e.Results), strings.Join(ports, "; "))
}

// Is reports whether target is ErrNoDevice.
func (e *NoDeviceError) Is(target error) bool {
	return target == ErrNoDevice
}

// Unwrap returns the error of every port that reported one.
func (e *NoDeviceError) Unwrap() []error {
	var errs []error
	for _, r := range e.Results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}

// Finder probes serial ports for an STM32 bootloader.
type Finder struct {
	config Config
}

// New creates a Finder with the given options.
func New(opts ...Option) *Finder {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Finder{config: cfg}
}

// Probe runs the three-step handshake on one port. A Connected result carries
// an open session at 8E1 framing that the caller must close; every other result
// has already released the port.
func (f *Finder) Probe(ctx context.Context, port string) link.ProbeResult {
	result := f.probe(ctx, port)
	f.logDebug("probed", "port", port, "status", result.Status.String())
	return result
}

func (f *Finder) probe(ctx context.Context, port string) link.ProbeResult {
	baud := f.config.BaudRate

	// Step 1: the device may already wait for the entry byte.
	s, err := link.Open(f.config.Opener, port, link.BootloaderMode(baud))
	if err != nil {
		return failure(port, err)
	}
	client := f.client(s)

	err = client.Connect(ctx)
	if err == nil {
		return connected(port, s)
	}
	if !protocol.IsProtocolError(err) {
		_ = s.Close()
		return failure(port, err)
	}

	// Step 2: the bootloader may already be synchronized.
	_, err = client.GetID(ctx)
	if err == nil {
		return connected(port, s)
	}
	_ = s.Close()
	if !protocol.IsProtocolError(err) {
		return failure(port, err)
	}

	// Step 3: ask the application to reboot into the bootloader.
	if err := f.sendResetMagic(ctx, port); err != nil {
		return failure(port, err)
	}

	s, err = link.Open(f.config.Opener, port, link.BootloaderMode(baud))
	if err != nil {
		return failure(port, err)
	}
	err = f.client(s).Connect(ctx)
	if err == nil {
		return connected(port, s)
	}
	_ = s.Close()
	if !protocol.IsProtocolError(err) {
		return failure(port, err)
	}
	return link.ProbeResult{Port: port, Status: link.NoResponse, Err: err}
}

func (f *Finder) sendResetMagic(ctx context.Context, port string) error {
	s, err := link.Open(f.config.Opener, port, link.ApplicationMode(f.config.BaudRate))
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	f.logDebug("sending reset magic", "port", port)
	if err := s.Send([]byte(protocol.ResetMagic)); err != nil {
		return err
	}
	return link.Sleep(ctx, f.config.ResetDelay)
}

func (f *Finder) client(s *link.Session) *bootloader.Client {
	return bootloader.NewClient(s,
		bootloader.WithAckTimeout(f.config.AckTimeout),
		bootloader.WithResponseTimeout(f.config.AckTimeout),
		bootloader.WithLogger(f.config.Logger),
	)
}

// AutoDiscover enumerates ports and probes them one after another. The first
// Connected result is returned with its open session. When nothing answers,
// the error is a *NoDeviceError carrying the result of every port.
func (f *Finder) AutoDiscover(ctx context.Context) (link.ProbeResult, error) {
	ports, err := f.config.ListPorts()
	if err != nil {
		return link.ProbeResult{}, err
	}
	if len(ports) == 0 {
		return link.ProbeResult{}, &NoDeviceError{}
	}

	result, all, ok := link.Scan(ctx, ports, f.Probe)
	if !ok {
		for _, r := range all {
			f.logInfo("port skipped", "port", r.Port, "status", r.Status.String())
		}
		if err := ctx.Err(); err != nil {
			return link.ProbeResult{}, err
		}
		return link.ProbeResult{}, &NoDeviceError{Results: all}
	}

	f.logInfo("bootloader found", "port", result.Port)
	return result, nil
}

func connected(port string, s *link.Session) link.ProbeResult {
	return link.ProbeResult{Port: port, Status: link.Connected, Session: s}
}

func failure(port string, err error) link.ProbeResult {
	return link.ProbeResult{Port: port, Status: link.PortFailure, Err: err}
}

func (f *Finder) logDebug(msg string, keysAndValues ...interface{}) {
	if f.config.Logger != nil {
		f.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (f *Finder) logInfo(msg string, keysAndValues ...interface{}) {
	if f.config.Logger != nil {
		f.config.Logger.Info(msg, keysAndValues...)
	}
}
