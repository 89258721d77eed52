package relay

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// finitePeer has nothing to say: Read reports EOF immediately. Models
// the "A" side of the half-close scenario whose a->b direction finishes
// right away with buffers drained.
type finitePeer struct{}

func (finitePeer) Read(p []byte) (int, error)  { return 0, io.EOF }
func (finitePeer) Write(p []byte) (int, error) { return len(p), nil }
func (finitePeer) Shutdown() error             { return nil }

// foreverPeer never stops producing: models "B" continuing to send
// after A→B has already completed. Close models the underlying
// connection's fd release: once closed, the blocked Read unblocks and
// reports an error instead of looping forever.
type foreverPeer struct {
	produced atomic.Int64
	closed   atomic.Bool
}

func (f *foreverPeer) Read(p []byte) (int, error) {
	if f.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	time.Sleep(2 * time.Millisecond)
	if f.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	p[0] = 'y'
	f.produced.Add(1)
	return 1, nil
}
func (f *foreverPeer) Write(p []byte) (int, error) { return len(p), nil }
func (f *foreverPeer) Shutdown() error              { return nil }
func (f *foreverPeer) Close() error                 { f.closed.Store(true); return nil }

// Testable property 4: half-close timer — once A→B completes with
// buffers drained, B→A must terminate no later than T + downlinkTimeout
// even if B keeps producing.
func TestHalfCloseTimerBound(t *testing.T) {
	a := finitePeer{}
	b := &foreverPeer{}

	start := time.Now()
	downlinkTimeout := 100 * time.Millisecond
	_, _, err := CopyBidirectional(context.Background(), a, b, 4096, time.Second, downlinkTimeout, nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.LessOrEqual(t, elapsed, downlinkTimeout+300*time.Millisecond)

	require.True(t, b.closed.Load(), "the still-running peer must be closed once its idle timeout forces a shutdown, or its copy goroutine leaks forever")

	producedAtReturn := b.produced.Load()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, producedAtReturn, b.produced.Load(), "foreverPeer kept producing after CopyBidirectional returned: its copy goroutine was never torn down")
}

// echoPeer is a finite, well-behaved peer used for the clean bilateral
// exchange sanity check: it yields a fixed payload once, then EOFs.
type echoPeer struct {
	payload []byte
	sent    bool
	out     []byte
}

func (e *echoPeer) Read(p []byte) (int, error) {
	if e.sent {
		return 0, io.EOF
	}
	e.sent = true
	n := copy(p, e.payload)
	return n, nil
}

func (e *echoPeer) Write(p []byte) (int, error) {
	e.out = append(e.out, p...)
	return len(p), nil
}

func (e *echoPeer) Shutdown() error { return nil }

func TestCopyBidirectionalCleanExchange(t *testing.T) {
	a := &echoPeer{payload: []byte("hello")}
	b := &echoPeer{payload: []byte("world")}

	counters := &AtomicCounters{}
	upTotal, downTotal, err := CopyBidirectional(context.Background(), a, b, 4096, time.Second, time.Second, counters)
	require.NoError(t, err)

	require.EqualValues(t, 5, upTotal)
	require.EqualValues(t, 5, downTotal)
	require.Equal(t, "hello", string(b.out))
	require.Equal(t, "world", string(a.out))
	require.EqualValues(t, 5, counters.Uplink.Load())
	require.EqualValues(t, 5, counters.Downlink.Load())
}
