package bridge

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// EmitLines decodes src as text and calls emit once per completed line, in
// order, with the terminator stripped. A stream ending exactly on a
// terminator produces no trailing empty line; a final unterminated line is
// emitted when the stream ends.
//
// Cancellation is checked before each line, so it takes effect with at most
// one line of latency and never mid-line. Emit failures are swallowed:
// structured logging is best-effort and must not abort forwarding. A read
// error counts as end-of-stream (the VM surface makes its streams
// unreadable at termination), so the Outcome is only ever Completed or
// Cancelled. src is closed exactly once.
func EmitLines(ctx context.Context, src io.ReadCloser, emit func(line string) error) Outcome {
	defer src.Close()

	r := bufio.NewReader(src)
	for {
		select {
		case <-ctx.Done():
			return Outcome{State: StateCancelled}
		default:
		}

		line, err := r.ReadString('\n')
		if err == nil {
			_ = emit(trimTerminator(line))
			continue
		}
		if line != "" {
			_ = emit(trimTerminator(line))
		}
		return Outcome{State: StateCompleted}
	}
}

func trimTerminator(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
