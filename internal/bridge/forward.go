package bridge

import (
	"context"
	"fmt"
	"io"
)

const copyBufSize = 4096

// Forward copies src to dst in chunks until the source ends, a read or
// write fails, or ctx is cancelled. Bytes reach dst in source order,
// byte-for-byte, with nothing inserted, duplicated, or reordered.
//
// Both src and dst are closed exactly once, on every exit path. I/O errors
// are terminal: bytes already consumed from a live guest stream cannot be
// replayed, so nothing is retried.
//
// Cancellation is soft. It is observed before each read, never during one;
// a read blocked on a silent stream unblocks only when the stream itself is
// closed out-of-band.
func Forward(ctx context.Context, src io.ReadCloser, dst io.WriteCloser) Outcome {
	defer src.Close()
	defer dst.Close()

	buf := make([]byte, copyBufSize)
	for {
		select {
		case <-ctx.Done():
			return Outcome{State: StateCancelled}
		default:
		}

		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return Outcome{State: StateFailed, Err: fmt.Errorf("write to sink: %w", werr)}
			}
		}
		if err == io.EOF {
			return Outcome{State: StateCompleted}
		}
		if err != nil {
			return Outcome{State: StateFailed, Err: fmt.Errorf("read from source: %w", err)}
		}
	}
}
