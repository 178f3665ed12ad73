package bridge

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"sync"
)

// LineWriter buffers writes to an underlying sink and flushes whenever a
// written chunk contains a line terminator. Guest console output is
// line-oriented, so this keeps a live tail of the file usable without
// paying a flush per byte during high-throughput boot logs.
//
// The terminator scan covers only the bytes of a single Write call. A
// terminator that arrives as the first byte of a later call flushes that
// later call, not the line written before it.
type LineWriter struct {
	mu     sync.Mutex
	w      *bufio.Writer
	c      io.Closer // nil when the underlying sink is not a Closer
	closed bool
}

// NewLineWriter wraps w. If w is also an io.Closer, Close closes it.
func NewLineWriter(w io.Writer) *LineWriter {
	lw := &LineWriter{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		lw.c = c
	}
	return lw
}

// Write forwards p to the underlying sink, then flushes if p contains at
// least one '\n'. No other implicit flushing occurs.
func (lw *LineWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if lw.closed {
		return 0, os.ErrClosed
	}

	n, err := lw.w.Write(p)
	if err != nil {
		return n, err
	}
	if bytes.IndexByte(p, '\n') >= 0 {
		if err := lw.w.Flush(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Close flushes buffered bytes and closes the underlying sink exactly once.
// A second Close is a no-op, not an error.
func (lw *LineWriter) Close() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if lw.closed {
		return nil
	}
	lw.closed = true

	err := lw.w.Flush()
	if lw.c != nil {
		if cerr := lw.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
