package vm

import (
	"io"
	"sync"
)

// PipeInstance is an in-process Instance backed by pipes. It stands in for
// a hypervisor in tests and local development: whatever is written to
// ConsoleWriter and LogWriter appears on the corresponding output stream,
// and port bind state can be reported by hand.
type PipeInstance struct {
	name  string
	level DebugLevel

	consoleR *io.PipeReader
	consoleW *io.PipeWriter
	logR     *io.PipeReader
	logW     *io.PipeWriter

	events    chan PortEvent
	closeOnce sync.Once
}

// NewPipeInstance creates a pipe-backed instance.
func NewPipeInstance(name string, level DebugLevel) *PipeInstance {
	consoleR, consoleW := io.Pipe()
	logR, logW := io.Pipe()
	return &PipeInstance{
		name:     name,
		level:    level,
		consoleR: consoleR,
		consoleW: consoleW,
		logR:     logR,
		logW:     logW,
		events:   make(chan PortEvent, 16),
	}
}

func (p *PipeInstance) Name() string           { return p.name }
func (p *PipeInstance) DebugLevel() DebugLevel { return p.level }

func (p *PipeInstance) ConsoleOutput() (io.ReadCloser, error) { return p.consoleR, nil }
func (p *PipeInstance) LogOutput() (io.ReadCloser, error)     { return p.logR, nil }

// ConsoleWriter is the guest-side end of the console stream.
func (p *PipeInstance) ConsoleWriter() io.Writer { return p.consoleW }

// LogWriter is the guest-side end of the log stream.
func (p *PipeInstance) LogWriter() io.Writer { return p.logW }

// PortEvents implements PortReporter.
func (p *PipeInstance) PortEvents() <-chan PortEvent { return p.events }

// ReportPort simulates a guest bind-state change.
func (p *PipeInstance) ReportPort(port uint16, active bool) {
	p.events <- PortEvent{Port: port, Active: active}
}

// Close ends both streams (readers see EOF) and closes the event channel.
// Safe to call more than once.
func (p *PipeInstance) Close() {
	p.closeOnce.Do(func() {
		p.consoleW.Close()
		p.logW.Close()
		close(p.events)
	})
}
