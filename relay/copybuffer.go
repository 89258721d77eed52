// Package relay implements the single-direction buffered copy and the
// two-way relay with independent half-close timers that the dispatcher
// uses once an outbound handshake has completed.
package relay

import (
	"io"

	"github.com/pkg/errors"
)

// ErrWriteZero is returned when a writer reports (0, nil) progress while
// the buffer still has data pending — a fatal invariant violation: a
// writer that accepts no bytes and raises no error cannot be driven
// forward.
var ErrWriteZero = errors.New("relay: write accepted zero bytes")

// Flusher is implemented by writers that buffer internally (e.g. a TLS
// or h2 stream) and need an explicit flush to put written bytes on the
// wire.
type Flusher interface {
	Flush() error
}

const defaultBufferSize = 32 * 1024

// readResult is delivered by the background reader goroutine that makes
// Read calls appear non-blocking to the copy loop.
type readResult struct {
	n   int
	err error
}

// CopyBuffer is the single-direction copy state machine. It pumps bytes
// from r to w until r reports EOF, flushes w, and reports the total
// bytes transferred.
//
// Go's blocking Read doesn't have a native "would block" signal the way
// a poll-based future does, so the pending/ready distinction the
// algorithm depends on (see the flush-on-read-pending rule below) is
// reconstructed with a background goroutine that performs the blocking
// Read and reports back over a channel; the copy loop only blocks on
// that channel once it has nothing better to do.
type CopyBuffer struct {
	buf      []byte
	pos, cap int
	readDone bool
	needFlush bool
	transferred int64

	pending    chan readResult
	readErr    error
}

// NewCopyBuffer allocates a CopyBuffer with the given buffer size.
func NewCopyBuffer(size int) *CopyBuffer {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &CopyBuffer{buf: make([]byte, size)}
}

// AmountTransferred returns the running count of bytes successfully
// delivered to the writer so far.
func (c *CopyBuffer) AmountTransferred() int64 {
	return c.transferred
}

func (c *CopyBuffer) startRead(r io.Reader) {
	c.pending = make(chan readResult, 1)
	buf := c.buf
	ch := c.pending
	go func() {
		n, err := r.Read(buf)
		ch <- readResult{n: n, err: err}
	}()
}

// Copy drives the full single-direction pump to completion (EOF + final
// flush) or to the first fatal error, returning the total bytes written.
//
// The algorithm, per step:
//  1. If the buffer is empty and EOF hasn't been seen, start (or wait on)
//     a read. If a read is outstanding and a previous write left data
//     unflushed, flush first without blocking on the read — this is the
//     flush-on-read-pending rule: a reader waiting on bytes the writer
//     has buffered but not transmitted must not stall behind that read.
//  2. A read of 0 bytes marks EOF (readDone). Otherwise update pos/cap.
//  3. While pos < cap, write; a zero-length write is fatal (ErrWriteZero).
//     Otherwise advance pos, add to the counter, mark needFlush.
//  4. Once pos == cap and readDone, flush one last time and return.
func (c *CopyBuffer) Copy(r io.Reader, w io.Writer) (int64, error) {
	for {
		if c.pos == c.cap && !c.readDone {
			if c.pending == nil {
				c.startRead(r)
			}
			select {
			case res := <-c.pending:
				c.pending = nil
				c.applyRead(res)
			default:
				// Read hasn't completed yet. If the writer is holding
				// unflushed bytes, drain them now instead of stalling
				// behind the in-flight read.
				if c.needFlush {
					if err := c.flush(w); err != nil {
						return c.transferred, err
					}
				}
				res := <-c.pending
				c.pending = nil
				c.applyRead(res)
			}
		}

		for c.pos < c.cap {
			n, err := w.Write(c.buf[c.pos:c.cap])
			if err != nil {
				return c.transferred, err
			}
			if n == 0 {
				return c.transferred, ErrWriteZero
			}
			c.pos += n
			c.transferred += int64(n)
			c.needFlush = true
		}

		// A non-EOF read error is reported only after whatever bytes it
		// came with have been fully written, so a (n>0, err) read never
		// loses data.
		if c.readErr != nil {
			return c.transferred, c.readErr
		}

		if c.pos == c.cap && c.readDone {
			if err := c.flush(w); err != nil {
				return c.transferred, err
			}
			return c.transferred, nil
		}
	}
}

// applyRead folds a completed read into buffer state. EOF (either a
// 0-byte read with no error, or io.EOF) sets readDone; any other error
// is held in readErr and surfaced once the bytes read alongside it (if
// any) have been written out.
func (c *CopyBuffer) applyRead(res readResult) {
	if res.n > 0 {
		c.pos, c.cap = 0, res.n
	}
	if res.err == nil {
		if res.n == 0 {
			c.readDone = true
		}
		return
	}
	if res.err == io.EOF {
		c.readDone = true
		return
	}
	c.readErr = res.err
}

func (c *CopyBuffer) flush(w io.Writer) error {
	if !c.needFlush {
		return nil
	}
	if f, ok := w.(Flusher); ok {
		if err := f.Flush(); err != nil {
			return err
		}
	}
	c.needFlush = false
	return nil
}
