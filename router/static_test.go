package router

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wraithproxy/dispatch/session"
)

func mustRule(t *testing.T, cidr, tag string, ports []int, deny bool) Rule {
	t.Helper()
	r, err := NewCIDRRule(cidr, ports, tag, deny)
	require.NoError(t, err)
	return r
}

func TestStaticPickRouteMatchesFirstRule(t *testing.T) {
	rules := []Rule{
		mustRule(t, "10.0.0.0/8", "internal", nil, false),
		mustRule(t, "0.0.0.0/0", "everything-else", nil, false),
	}
	s := NewStatic(rules, "")

	sess := session.New("in", session.TCP, nil, session.NewIPAddr(net.ParseIP("10.1.2.3"), 80))
	tag, err := s.PickRoute(sess)
	require.NoError(t, err)
	require.Equal(t, "internal", tag)

	sess2 := session.New("in", session.TCP, nil, session.NewIPAddr(net.ParseIP("8.8.8.8"), 80))
	tag2, err := s.PickRoute(sess2)
	require.NoError(t, err)
	require.Equal(t, "everything-else", tag2)
}

func TestStaticPickRouteDenyFallsBackToDefault(t *testing.T) {
	rules := []Rule{
		mustRule(t, "192.168.0.0/16", "", nil, true),
	}
	s := NewStatic(rules, "direct")

	sess := session.New("in", session.TCP, nil, session.NewIPAddr(net.ParseIP("192.168.1.1"), 80))
	tag, err := s.PickRoute(sess)
	require.NoError(t, err)
	require.Equal(t, "direct", tag)
}

// Testable property 9: default-route fallback — with no matching rule
// and no default tag configured, PickRoute surfaces ErrNoRoute so the
// dispatcher's own default-handler fallback can take over.
func TestStaticPickRouteNoRoute(t *testing.T) {
	s := NewStatic(nil, "")
	sess := session.New("in", session.TCP, nil, session.NewIPAddr(net.ParseIP("1.2.3.4"), 80))
	_, err := s.PickRoute(sess)
	require.ErrorIs(t, err, ErrNoRoute)
}

func TestStaticPickRouteDomainDestinationSkipsToDefault(t *testing.T) {
	rules := []Rule{mustRule(t, "0.0.0.0/0", "matched-by-ip-only", nil, false)}
	s := NewStatic(rules, "domain-default")

	domainAddr, err := session.NewDomainAddr("example.com", 443)
	require.NoError(t, err)
	sess := session.New("in", session.TCP, nil, domainAddr)

	tag, err := s.PickRoute(sess)
	require.NoError(t, err)
	require.Equal(t, "domain-default", tag)
}
