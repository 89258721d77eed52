package relay

import (
	"context"
	"io"
	"sync/atomic"
	"time"
)

// Peer is the duplex endpoint CopyBidirectional relays between. Shutdown
// closes only the write half, emitting FIN to the remote end without
// releasing read resources — exactly outbound.ProxyStream's shape.
type Peer interface {
	io.Reader
	io.Writer
	Shutdown() error
}

// Counters receives the final byte totals for each direction as they
// complete, in the order uplink (a->b) then downlink (b->a). Passing nil
// disables counting. Implementations must be safe to call concurrently;
// CopyBidirectional calls Add for whichever direction finishes first,
// which may be either one.
type Counters interface {
	AddUplink(n int64)
	AddDownlink(n int64)
}

// AtomicCounters is a ready-to-use Counters backed by atomic.Int64,
// sufficient for the statistics consumers described in the spec; a
// plain atomic add is all the ordering guarantee this needs (SeqCst and
// relaxed are equivalent on Go's memory model for a single counter).
type AtomicCounters struct {
	Uplink   atomic.Int64
	Downlink atomic.Int64
}

func (c *AtomicCounters) AddUplink(n int64)   { c.Uplink.Add(n) }
func (c *AtomicCounters) AddDownlink(n int64) { c.Downlink.Add(n) }

type directionState int

const (
	stateRunning directionState = iota
	stateShuttingDown
	stateDone
)

// direction drives one CopyBuffer from src to dst, then shuts down the
// opposite peer's write half. Once it is Done, CopyBidirectional arms
// the peer direction's idle timer.
type direction struct {
	name   string
	src    Peer
	dst    Peer
	copier *CopyBuffer

	state  directionState
	amount int64
	err    error
}

func newDirection(name string, src, dst Peer, bufSize int) *direction {
	return &direction{name: name, src: src, dst: dst, copier: NewCopyBuffer(bufSize), state: stateRunning}
}

// forceShutdown is invoked by CopyBidirectional when this direction's
// grace timer fires while it is still running. It shuts down dst exactly
// as a clean completion would, and closes src if it supports a full
// Close — src's own run() goroutine is blocked on a read from it, and
// Shutdown (half-close of our write side) cannot wake a blocked Read;
// only fully closing the underlying connection can. Without this, a
// quiet peer past its idle timeout is never actually disconnected and
// its copy goroutine leaks for the life of the process.
func (d *direction) forceShutdown() {
	_ = d.dst.Shutdown()
	if c, ok := d.src.(io.Closer); ok {
		_ = c.Close()
	}
}

// run pumps this direction to completion. It is called from its own
// goroutine; CopyBidirectional waits on the pair.
func (d *direction) run(done chan<- *direction) {
	n, err := d.copier.Copy(d.src, d.dst)
	d.amount = n
	if err != nil {
		d.state = stateDone
		d.err = err
		done <- d
		return
	}
	d.state = stateShuttingDown
	if shutErr := d.dst.Shutdown(); shutErr != nil {
		d.state = stateDone
		d.err = shutErr
		done <- d
		return
	}
	d.state = stateDone
	done <- d
}

// CopyBidirectional relays bytes between a and b until both directions
// reach Done, honoring independent half-close timers: once a->b
// finishes, b->a gets downlinkTimeout to also finish before it is force-
// promoted to shutdown; symmetrically a->b gets uplinkTimeout once b->a
// finishes. It returns (a_to_b_total, b_to_a_total).
func CopyBidirectional(ctx context.Context, a, b Peer, bufSize int, uplinkTimeout, downlinkTimeout time.Duration, counters Counters) (int64, int64, error) {
	ab := newDirection("a->b", a, b, bufSize)
	ba := newDirection("b->a", b, a, bufSize)

	doneCh := make(chan *direction, 2)
	go ab.run(doneCh)
	go ba.run(doneCh)

	var abTotal, baTotal int64
	var abDone, baDone bool
	var abTimer, baTimer <-chan time.Time

	armTimer := func(dur time.Duration) <-chan time.Time {
		if dur <= 0 {
			return nil
		}
		return time.After(dur)
	}

	for !abDone || !baDone {
		select {
		case <-ctx.Done():
			return abTotal, baTotal, ctx.Err()

		case d := <-doneCh:
			if d == ab {
				abDone = true
				abTotal = d.amount
				if d.err != nil {
					return abTotal, baTotal, d.err
				}
				if counters != nil {
					counters.AddUplink(abTotal)
				}
				// a->b is Done: give b->a downlinkTimeout grace to drain.
				baTimer = armTimer(downlinkTimeout)
			} else {
				baDone = true
				baTotal = d.amount
				if d.err != nil {
					return abTotal, baTotal, d.err
				}
				if counters != nil {
					counters.AddDownlink(baTotal)
				}
				abTimer = armTimer(uplinkTimeout)
			}

		case <-abTimer:
			abTimer = nil
			// Firing while ab is still running forces it to shutdown
			// immediately; firing after Done is harmless.
			if !abDone {
				abDone = true
				// The amount transferred so far is whatever the copier
				// has accumulated; the in-flight copy goroutine will
				// still deliver its own result on doneCh eventually,
				// but the caller is not made to wait for it.
				abTotal = ab.copier.AmountTransferred()
				ab.forceShutdown()
			}

		case <-baTimer:
			baTimer = nil
			if !baDone {
				baDone = true
				baTotal = ba.copier.AmountTransferred()
				ba.forceShutdown()
			}
		}
	}

	return abTotal, baTotal, nil
}
