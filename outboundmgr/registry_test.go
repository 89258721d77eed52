package outboundmgr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wraithproxy/dispatch/outbound"
)

func TestRegistryGetAndDefault(t *testing.T) {
	reg := NewRegistry()

	_, ok := reg.Get("direct")
	require.False(t, ok)

	_, hasDefault := reg.DefaultHandler()
	require.False(t, hasDefault)

	direct := outbound.NewDrop("direct")
	reg.Register("direct", direct)
	reg.SetDefault("direct")

	h, ok := reg.Get("direct")
	require.True(t, ok)
	require.Same(t, direct, h)

	tag, hasDefault := reg.DefaultHandler()
	require.True(t, hasDefault)
	require.Equal(t, "direct", tag)
}

func TestRegistryRegisterOverwrites(t *testing.T) {
	reg := NewRegistry()
	first := outbound.NewDrop("a")
	second := outbound.NewDrop("b")

	reg.Register("tag", first)
	reg.Register("tag", second)

	h, ok := reg.Get("tag")
	require.True(t, ok)
	require.Same(t, second, h)
}
