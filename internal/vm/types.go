package vm

import (
	"fmt"
	"io"
)

// DebugLevel controls how much guest diagnostic output the host captures.
type DebugLevel int

const (
	DebugNone    DebugLevel = iota // no capture
	DebugPartial                   // lifecycle events only, no stream capture
	DebugFull                      // console and log streams forwarded
)

func (l DebugLevel) String() string {
	switch l {
	case DebugNone:
		return "none"
	case DebugPartial:
		return "partial"
	case DebugFull:
		return "full"
	default:
		return "unknown"
	}
}

// ParseDebugLevel converts a config string into a DebugLevel. An empty
// string means full capture, matching the config default.
func ParseDebugLevel(s string) (DebugLevel, error) {
	switch s {
	case "none":
		return DebugNone, nil
	case "partial":
		return DebugPartial, nil
	case "full", "":
		return DebugFull, nil
	default:
		return DebugNone, fmt.Errorf("unknown debug level %q (want none, partial, or full)", s)
	}
}

// Instance is the surface a running guest exposes to the host. Both streams
// become unreadable (EOF or error) once the guest terminates; closing them
// from the guest side is the only guaranteed way to unblock a forwarding
// read.
type Instance interface {
	// ConsoleOutput returns the raw byte stream of the guest's primary
	// console device. The caller owns the returned reader.
	ConsoleOutput() (io.ReadCloser, error)

	// LogOutput returns the guest's structured log stream, distinct from
	// the console. The caller owns the returned reader.
	LogOutput() (io.ReadCloser, error)

	// Name identifies the guest; used as the host log tag.
	Name() string

	// DebugLevel reports the verbosity the guest was started with.
	DebugLevel() DebugLevel
}

// PortEvent is a guest-reported change in port binding state.
type PortEvent struct {
	Port   uint16
	Active bool
}

// PortReporter is implemented by instances that can observe guest port
// binds. The channel closes when the guest stops. Backends with no way to
// see guest listeners simply don't implement it.
type PortReporter interface {
	PortEvents() <-chan PortEvent
}
