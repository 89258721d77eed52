package outbound

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/wraithproxy/dispatch/session"
)

// fakeStream is a no-op ProxyStream good enough to flow through handlers
// under test without touching a real socket.
type fakeStream struct {
	*bytes.Buffer
}

func (f fakeStream) Shutdown() error { return nil }

func newFakeStream() ProxyStream { return fakeStream{Buffer: &bytes.Buffer{}} }

// fakeDialer never performs a real dial; DialTCP hands back a fresh fake
// stream whenever the handler declares a ConnectAddr, and nil when it
// doesn't (mirroring transport.Dialer's contract). DialUDP always
// returns nil.
type fakeDialer struct{}

func (fakeDialer) DialTCP(ctx context.Context, sess *session.Session, h Handler) (ProxyStream, error) {
	if h.ConnectAddr() == nil {
		return nil, nil
	}
	return newFakeStream(), nil
}

func (fakeDialer) DialUDP(ctx context.Context, sess *session.Session, h Handler) (OutboundDatagram, error) {
	return nil, nil
}

// countingHandler records how many times HandleTCP was invoked and
// either fails every call or succeeds, for exercising Retry/RoundRobin.
type countingHandler struct {
	tag     string
	fail    bool
	invoked int
}

func (c *countingHandler) Tag() string                   { return c.tag }
func (c *countingHandler) Color() Color                  { return ColorNone }
func (c *countingHandler) ConnectAddr() *OutboundConnect { return nil }

func (c *countingHandler) HandleTCP(ctx context.Context, sess *session.Session, pre ProxyStream) (ProxyStream, error) {
	c.invoked++
	if c.fail {
		return nil, errTestFailure
	}
	return newFakeStream(), nil
}

var errTestFailure = io.ErrUnexpectedEOF

func testSession() *session.Session {
	return session.New("in", session.TCP, nil, session.NewIPAddr(nil, 80))
}

func TestDropAlwaysFails(t *testing.T) {
	d := NewDrop("drop")
	_, err := d.HandleTCP(context.Background(), testSession(), nil)
	require.ErrorIs(t, err, ErrDropped)
	require.Nil(t, d.ConnectAddr())
}

func TestNullFailsButCarriesConnectHint(t *testing.T) {
	addr := session.NewIPAddr(nil, 443)
	n := NewNull("null", &addr, TransportStream)
	require.NotNil(t, n.ConnectAddr())

	_, err := n.HandleTCP(context.Background(), testSession(), nil)
	require.ErrorIs(t, err, ErrNullHandler)
}

func TestCheckAcyclicRejectsSelfReference(t *testing.T) {
	cyclic := &cyclicComposed{tag: "cyclic"}
	cyclic.inner = []Handler{cyclic}
	require.ErrorIs(t, checkAcyclic(cyclic, cyclic.innerHandlers()), ErrCyclicHandler)
}

func TestCheckAcyclicAllowsSharedPeer(t *testing.T) {
	shared, err := NewRetry("shared", nil, 1, fakeDialer{})
	require.NoError(t, err)

	// Wiring the same already-built handler twice as a peer (not a
	// descendant) is legal: it appears twice in the inner list but never
	// as its own ancestor.
	_, err = NewRetry("outer", []Handler{shared, shared}, 1, fakeDialer{})
	require.NoError(t, err)
}

// cyclicComposed is a minimal composedHandler used only to exercise
// checkAcyclic's self-reference detection.
type cyclicComposed struct {
	tag   string
	inner []Handler
}

func (c *cyclicComposed) Tag() string                   { return c.tag }
func (c *cyclicComposed) Color() Color                  { return ColorNone }
func (c *cyclicComposed) ConnectAddr() *OutboundConnect { return nil }
func (c *cyclicComposed) innerHandlers() []Handler      { return c.inner }

// Testable property 5: round-robin fairness — N=3 handlers, 300 calls,
// each selected exactly 100 times.
func TestRoundRobinFairness(t *testing.T) {
	a := &countingHandler{tag: "a"}
	b := &countingHandler{tag: "b"}
	c := &countingHandler{tag: "c"}

	rr, err := NewRoundRobin("rr", []Handler{a, b, c}, fakeDialer{}, zerolog.Nop())
	require.NoError(t, err)

	for i := 0; i < 300; i++ {
		_, err := rr.HandleTCP(context.Background(), testSession(), nil)
		require.NoError(t, err)
	}

	require.Equal(t, 100, a.invoked)
	require.Equal(t, 100, b.invoked)
	require.Equal(t, 100, c.invoked)
}

// Testable property 6: retry order — [fail_A, fail_B, ok_C], attempts=1,
// result is ok_C's success; A and B each invoked exactly once, in order.
func TestRetryOrder(t *testing.T) {
	a := &countingHandler{tag: "a", fail: true}
	b := &countingHandler{tag: "b", fail: true}
	c := &countingHandler{tag: "c"}

	r, err := NewRetry("r", []Handler{a, b, c}, 1, fakeDialer{})
	require.NoError(t, err)

	_, err = r.HandleTCP(context.Background(), testSession(), nil)
	require.NoError(t, err)

	require.Equal(t, 1, a.invoked)
	require.Equal(t, 1, b.invoked)
	require.Equal(t, 1, c.invoked)
}

// Testable property 7: retry exhaustion — all-failing inners,
// attempts=2, each inner invoked twice, final error is
// ErrAllAttemptsFailed.
func TestRetryExhaustion(t *testing.T) {
	a := &countingHandler{tag: "a", fail: true}
	b := &countingHandler{tag: "b", fail: true}

	r, err := NewRetry("r", []Handler{a, b}, 2, fakeDialer{})
	require.NoError(t, err)

	_, err = r.HandleTCP(context.Background(), testSession(), nil)
	require.ErrorIs(t, err, ErrAllAttemptsFailed)

	require.Equal(t, 2, a.invoked)
	require.Equal(t, 2, b.invoked)
}

func TestRetryDoesNotRetryDialErrors(t *testing.T) {
	// A handler that declares a ConnectAddr but whose dialer always fails
	// must not be retried past the first dial error, per the preserved
	// connect_*_outbound boundary (spec.md §9 open question).
	addr := session.NewIPAddr(nil, 80)
	neverDialed := NewNull("never-dialed", &addr, TransportStream)

	r, err := NewRetry("r", []Handler{neverDialed}, 3, alwaysFailDialer{})
	require.NoError(t, err)

	_, err = r.HandleTCP(context.Background(), testSession(), nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAllAttemptsFailed)
}

func TestRandomOnlyPicksFromInner(t *testing.T) {
	a := &countingHandler{tag: "a"}
	b := &countingHandler{tag: "b"}

	r, err := NewRandom("rand", []Handler{a, b}, fakeDialer{})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		_, err := r.HandleTCP(context.Background(), testSession(), nil)
		require.NoError(t, err)
	}

	require.Equal(t, 50, a.invoked+b.invoked)
}

type alwaysFailDialer struct{}

func (alwaysFailDialer) DialTCP(ctx context.Context, sess *session.Session, h Handler) (ProxyStream, error) {
	return nil, io.ErrClosedPipe
}

func (alwaysFailDialer) DialUDP(ctx context.Context, sess *session.Session, h Handler) (OutboundDatagram, error) {
	return nil, io.ErrClosedPipe
}
