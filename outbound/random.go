package outbound

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"

	"github.com/wraithproxy/dispatch/session"
)

// Random uniformly samples one inner handler per invocation. Each call
// seeds a fresh source from entropy; no state is carried between calls.
type Random struct {
	tag    string
	inner  []Handler
	dialer Dialer
}

// NewRandom builds a Random handler over inner, rejecting a set that
// would make the handler graph cyclic.
func NewRandom(tag string, inner []Handler, dialer Dialer) (*Random, error) {
	r := &Random{tag: tag, inner: inner, dialer: dialer}
	if err := checkAcyclic(r, inner); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Random) Tag() string                  { return r.tag }
func (r *Random) Color() Color                  { return ColorCyan }
func (r *Random) ConnectAddr() *OutboundConnect { return nil }
func (r *Random) innerHandlers() []Handler      { return r.inner }

func (r *Random) pick() Handler {
	var seed [8]byte
	_, _ = crand.Read(seed[:])
	rng := rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(seed[:]))))
	return r.inner[rng.Intn(len(r.inner))]
}

func (r *Random) HandleTCP(ctx context.Context, sess *session.Session, pre ProxyStream) (ProxyStream, error) {
	picked := r.pick()
	th, ok := picked.(TCPHandler)
	if !ok {
		return nil, ErrNullHandler
	}
	dialed, err := r.dialer.DialTCP(ctx, sess, picked)
	if err != nil {
		return nil, err
	}
	return th.HandleTCP(ctx, sess, dialed)
}

func (r *Random) HandleUDP(ctx context.Context, sess *session.Session, pre OutboundDatagram) (OutboundDatagram, error) {
	picked := r.pick()
	uh, ok := picked.(UDPHandler)
	if !ok {
		return nil, ErrNullHandler
	}
	dialed, err := r.dialer.DialUDP(ctx, sess, picked)
	if err != nil {
		return nil, err
	}
	return uh.HandleUDP(ctx, sess, dialed)
}
