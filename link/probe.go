package link

import (
	"context"
	"fmt"
)

// ProbeStatus is the outcome of probing one candidate port.
type ProbeStatus int

const (
	// NoResponse means the port opened but no device answered
	NoResponse ProbeStatus = iota

	// Connected means a device answered and the session is left open
	Connected

	// PortFailure means the port could not be opened or failed during the probe
	PortFailure
)

func (s ProbeStatus) String() string {
	switch s {
	case Connected:
		return "connected"
	case PortFailure:
		return "port error"
	default:
		return "no response"
	}
}

// ProbeResult reports what happened on one port.
//
// When Status is Connected, Session is open and owned by the caller. For any
// other status the probe has already closed the port and Session is nil.
type ProbeResult struct {
	Port    string
	Status  ProbeStatus
	Err     error
	Session *Session
}

func (r ProbeResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s: %v", r.Port, r.Status, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.Port, r.Status)
}

// ProbeFunc probes a single named port.
type ProbeFunc func(ctx context.Context, port string) ProbeResult

// Scan probes ports one after another in the given order and returns the first
// Connected result. Failures on a port only eliminate that port. The results of
// every probe, including the winning one, are returned for reporting.
func Scan(ctx context.Context, ports []string, probe ProbeFunc) (ProbeResult, []ProbeResult, bool) {
	results := make([]ProbeResult, 0, len(ports))
	for _, name := range ports {
		if ctx.Err() != nil {
			break
		}
		r := probe(ctx, name)
		results = append(results, r)
		if r.Status == Connected {
			return r, results, true
		}
	}
	return ProbeResult{}, results, false
}
