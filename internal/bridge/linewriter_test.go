package bridge

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink counts the writes and closes it receives. Because
// LineWriter buffers, each underlying write corresponds to one flush.
type recordingSink struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	writes int
	closes int
}

func (s *recordingSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	return s.buf.Write(p)
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func TestLineWriterFlushesOnTerminator(t *testing.T) {
	sink := &recordingSink{}
	lw := NewLineWriter(sink)

	// "ab", "c\nd", "e": only the second chunk holds a terminator, so
	// exactly one flush happens before Close.
	_, err := lw.Write([]byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, 0, sink.writes, "no flush without a terminator")

	_, err = lw.Write([]byte("c\nd"))
	require.NoError(t, err)
	assert.Equal(t, 1, sink.writes, "chunk containing a terminator flushes")
	assert.Equal(t, "abc\nd", sink.buf.String())

	_, err = lw.Write([]byte("e"))
	require.NoError(t, err)
	assert.Equal(t, 1, sink.writes, "trailing partial line stays buffered")

	require.NoError(t, lw.Close())
	assert.Equal(t, "abc\nde", sink.buf.String())
	assert.Equal(t, 1, sink.closes)
}

func TestLineWriterSplitTerminatorNotDetected(t *testing.T) {
	sink := &recordingSink{}
	lw := NewLineWriter(sink)

	// The scan is per-call: a terminator opening a later call flushes
	// that call, it does not retroactively flush the earlier one.
	_, err := lw.Write([]byte("line without end"))
	require.NoError(t, err)
	assert.Equal(t, 0, sink.writes)

	_, err = lw.Write([]byte("\nnext"))
	require.NoError(t, err)
	assert.Equal(t, 1, sink.writes)
	assert.Equal(t, "line without end\nnext", sink.buf.String())

	require.NoError(t, lw.Close())
}

func TestLineWriterCloseIdempotent(t *testing.T) {
	sink := &recordingSink{}
	lw := NewLineWriter(sink)

	_, err := lw.Write([]byte("partial"))
	require.NoError(t, err)

	require.NoError(t, lw.Close())
	require.NoError(t, lw.Close(), "second close is a no-op, not an error")
	assert.Equal(t, 1, sink.closes)
	assert.Equal(t, "partial", sink.buf.String(), "close flushes buffered bytes")

	_, err = lw.Write([]byte("after close"))
	assert.Error(t, err)
}
