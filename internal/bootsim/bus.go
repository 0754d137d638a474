package bootsim

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/moffa90/go-stmflash/link"
)

// ErrPortBusy is returned when a port is opened twice.
var ErrPortBusy = errors.New("port busy")

// ErrPortClosed is returned by operations on a closed simulated port.
var ErrPortClosed = errors.New("port closed")

// Endpoint is a simulated device reachable through a Bus.
type Endpoint interface {
	// receive handles bytes written by the host with the given framing.
	receive(mode link.Mode, p []byte)

	// take moves queued response bytes into p.
	take(p []byte) int

	// discard drops queued response bytes.
	discard()
}

// OpenEvent records one successful Open call.
type OpenEvent struct {
	Port string
	Mode link.Mode
}

// Bus is a set of named simulated ports.
type Bus struct {
	mu       sync.Mutex
	devices  map[string]Endpoint
	failures map[string]error
	open     map[string]bool
	events   []OpenEvent
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{
		devices:  make(map[string]Endpoint),
		failures: make(map[string]error),
		open:     make(map[string]bool),
	}
}

// Attach connects an endpoint to the named port.
func (b *Bus) Attach(name string, e Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices[name] = e
}

// Fail makes every Open of the named port return err.
func (b *Bus) Fail(name string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[name] = err
}

// Ports returns every attached or failing port name, sorted.
func (b *Bus) Ports() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[string]bool)
	for name := range b.devices {
		seen[name] = true
	}
	for name := range b.failures {
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open implements link.Opener.
func (b *Bus) Open(name string, mode link.Mode) (link.Port, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err, ok := b.failures[name]; ok {
		return nil, err
	}
	dev, ok := b.devices[name]
	if !ok {
		return nil, fmt.Errorf("no such port %q", name)
	}
	if b.open[name] {
		return nil, ErrPortBusy
	}

	b.open[name] = true
	b.events = append(b.events, OpenEvent{Port: name, Mode: mode})
	return &port{bus: b, name: name, dev: dev, mode: mode}, nil
}

// Opens returns every successful Open in call order.
func (b *Bus) Opens() []OpenEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]OpenEvent(nil), b.events...)
}

// OpenCount returns the number of ports currently open.
func (b *Bus) OpenCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, open := range b.open {
		if open {
			n++
		}
	}
	return n
}

func (b *Bus) release(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open[name] = false
}

// port is one open handle on a Bus.
type port struct {
	bus     *Bus
	name    string
	dev     Endpoint
	mode    link.Mode
	timeout time.Duration
	closed  bool
}

func (p *port) Read(buf []byte) (int, error) {
	if p.closed {
		return 0, ErrPortClosed
	}
	if n := p.dev.take(buf); n > 0 {
		return n, nil
	}
	// Nothing else can arrive while the host is blocked in Read.
	time.Sleep(p.timeout)
	return p.dev.take(buf), nil
}

func (p *port) Write(buf []byte) (int, error) {
	if p.closed {
		return 0, ErrPortClosed
	}
	p.dev.receive(p.mode, buf)
	return len(buf), nil
}

func (p *port) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

func (p *port) ResetInputBuffer() error {
	if p.closed {
		return ErrPortClosed
	}
	p.dev.discard()
	return nil
}

func (p *port) Close() error {
	if p.closed {
		return ErrPortClosed
	}
	p.closed = true
	p.bus.release(p.name)
	return nil
}

// queue is a response buffer shared by the endpoints.
type queue struct {
	out []byte
}

func (q *queue) push(b ...byte) {
	q.out = append(q.out, b...)
}

func (q *queue) pop(p []byte) int {
	n := copy(p, q.out)
	q.out = q.out[n:]
	return n
}

func (q *queue) clear() {
	q.out = nil
}
