// Package bridge forwards a guest VM's console and log streams to
// host-side sinks for the lifetime of one session: console bytes to a
// per-session file, log lines to a structured log sink. The two tasks run
// on independent goroutines so a wedged sink on one side can never stall
// the other.
package bridge

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/vmbridge/vmbridge/internal/vm"
)

// LogSink accepts decoded guest log lines tagged with the guest's name.
// Delivery is best-effort; the bridge never checks for success.
type LogSink interface {
	Append(tag, line string)
}

// Handle tracks the two forwarding tasks of one session. An inert Handle
// (debug level below full) has no tasks; Stop and Wait are no-ops on it.
type Handle struct {
	active      bool
	consolePath string
	cancel      context.CancelFunc
	stopOnce    sync.Once
	wg          sync.WaitGroup

	mu         sync.Mutex
	consoleOut Outcome
	logOut     Outcome
}

// Start wires a running instance to its host sinks. Below DebugFull it is
// a deliberate no-op: no goroutines, no file. At DebugFull it creates a
// fresh console file at consolePath (truncating any previous session's
// content) and spawns the two forwarding tasks.
//
// Failure to open the file or to acquire either stream is returned as a
// hard error with nothing started and nothing leaked; an unavailable
// stream on a running instance is a session invariant violation, not
// something to paper over.
func Start(inst vm.Instance, consolePath string, sink LogSink) (*Handle, error) {
	if inst.DebugLevel() != vm.DebugFull {
		return &Handle{}, nil
	}

	f, err := os.OpenFile(consolePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open console file: %w", err)
	}

	console, err := inst.ConsoleOutput()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("acquire console stream: %w", err)
	}
	logStream, err := inst.LogOutput()
	if err != nil {
		console.Close()
		f.Close()
		return nil, fmt.Errorf("acquire log stream: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		active:      true,
		consolePath: consolePath,
		cancel:      cancel,
	}

	fileSink := NewLineWriter(f)
	tag := inst.Name()

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		out := Forward(ctx, console, fileSink)
		h.mu.Lock()
		h.consoleOut = out
		h.mu.Unlock()
	}()
	go func() {
		defer h.wg.Done()
		out := EmitLines(ctx, logStream, func(line string) error {
			sink.Append(tag, line)
			return nil
		})
		h.mu.Lock()
		h.logOut = out
		h.mu.Unlock()
	}()

	return h, nil
}

// Active reports whether forwarding tasks were started.
func (h *Handle) Active() bool {
	return h.active
}

// ConsolePath returns the console file path, empty for an inert Handle.
func (h *Handle) ConsolePath() string {
	return h.consolePath
}

// Stop signals cancellation to both tasks without blocking. Idempotent;
// calling it after the tasks have settled is a no-op. A task blocked on a
// read settles only once the guest closes its stream.
func (h *Handle) Stop() {
	if !h.active {
		return
	}
	h.stopOnce.Do(h.cancel)
}

// Wait blocks until both tasks have settled.
func (h *Handle) Wait() {
	if !h.active {
		return
	}
	h.wg.Wait()
}

// Outcomes returns the terminal outcome of each task. Meaningful only
// after Wait returns. A failed console outcome is reported here for leak
// auditing, never treated as a stop failure.
func (h *Handle) Outcomes() (console, log Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.consoleOut, h.logOut
}
