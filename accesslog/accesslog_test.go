package accesslog

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wraithproxy/dispatch/outbound"
	"github.com/wraithproxy/dispatch/session"
)

func testSession() *session.Session {
	return session.New("in", session.TCP, nil, session.NewIPAddr(net.ParseIP("10.0.0.1"), 80))
}

func TestLogSuccessLineShape(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)

	l.LogSuccess(testSession(), "r", outbound.ColorYellow, 42*time.Millisecond)

	require.Equal(t, "[in] [tcp] [r] [42ms] 10.0.0.1:80\n", buf.String())
}

func TestLogFailureLineShape(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)

	l.LogFailure(testSession(), "r", outbound.ColorRed)

	require.Equal(t, "[in] [tcp] [r] [failed] 10.0.0.1:80\n", buf.String())
}

func TestColorizeWrapsWithAnsi(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, true)

	l.LogFailure(testSession(), "r", outbound.ColorRed)

	out := buf.String()
	require.Contains(t, out, "\x1b[31m")
	require.Contains(t, out, "\x1b[0m")
}
