package bridge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader serves a byte sequence in deliberately uneven chunks and
// counts closes.
type chunkReader struct {
	data   []byte
	pos    int
	rng    *rand.Rand
	closes int
}

func newChunkReader(data []byte, seed int64) *chunkReader {
	return &chunkReader{data: data, rng: rand.New(rand.NewSource(seed))}
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := 1 + r.rng.Intn(len(p))
	if n > len(r.data)-r.pos {
		n = len(r.data) - r.pos
	}
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

func (r *chunkReader) Close() error {
	r.closes++
	return nil
}

// closeCountingWriter wraps a bytes.Buffer and counts closes.
type closeCountingWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closes int
	failAt int // fail the write once this many bytes were accepted; 0 = never
}

func (w *closeCountingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAt > 0 && w.buf.Len() >= w.failAt {
		return 0, errors.New("sink rejected write")
	}
	return w.buf.Write(p)
}

func (w *closeCountingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closes++
	return nil
}

func TestForwardRoundTripIdentity(t *testing.T) {
	// Byte-for-byte identity must hold regardless of the chunk
	// boundaries the source picks.
	payload := make([]byte, 64*1024)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	for _, seed := range []int64{1, 7, 42} {
		src := newChunkReader(payload, seed)
		dst := &closeCountingWriter{}

		out := Forward(context.Background(), src, dst)

		require.Equal(t, StateCompleted, out.State)
		require.NoError(t, out.Err)
		assert.Equal(t, payload, dst.buf.Bytes())
		assert.Equal(t, 1, src.closes)
		assert.Equal(t, 1, dst.closes)
	}
}

func TestForwardCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := newChunkReader([]byte("unread"), 1)
	dst := &closeCountingWriter{}

	out := Forward(ctx, src, dst)

	assert.Equal(t, StateCancelled, out.State)
	assert.Equal(t, 1, src.closes, "source closed exactly once on cancellation")
	assert.Equal(t, 1, dst.closes, "sink closed exactly once on cancellation")
}

func TestForwardWriteFailureIsTerminal(t *testing.T) {
	src := newChunkReader(bytes.Repeat([]byte("x"), 8192), 3)
	dst := &closeCountingWriter{failAt: 1}

	out := Forward(context.Background(), src, dst)

	require.Equal(t, StateFailed, out.State)
	assert.ErrorContains(t, out.Err, "write to sink")
	assert.Equal(t, 1, src.closes)
	assert.Equal(t, 1, dst.closes)
}

type failingReader struct{ closes int }

func (r *failingReader) Read(p []byte) (int, error) { return 0, errors.New("stream torn down") }
func (r *failingReader) Close() error               { r.closes++; return nil }

func TestForwardReadFailureIsTerminal(t *testing.T) {
	src := &failingReader{}
	dst := &closeCountingWriter{}

	out := Forward(context.Background(), src, dst)

	require.Equal(t, StateFailed, out.State)
	assert.ErrorContains(t, out.Err, "read from source")
	assert.Equal(t, 1, src.closes)
	assert.Equal(t, 1, dst.closes)
}

func TestForwardThroughLineWriter(t *testing.T) {
	// The usual stack: forwarder writing into a line-buffered sink.
	payload := []byte("boot: starting\nboot: mounted /\npartial tail")
	src := newChunkReader(payload, 11)
	sink := &recordingSink{}

	out := Forward(context.Background(), src, NewLineWriter(sink))

	require.Equal(t, StateCompleted, out.State)
	assert.Equal(t, payload, sink.buf.Bytes())
	assert.Equal(t, 1, sink.closes, "forwarder closes the sink exactly once")
}
