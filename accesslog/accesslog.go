// Package accesslog renders the single-line dispatch summary described
// in spec.md §4.5 step 6:
//
//	[inbound_tag] [network] [outbound_tag] [Nms|failed] destination
//
// Colorization, when enabled, follows the same convention as the
// teacher's console logger: wrapping os.Stdout in
// github.com/mattn/go-colorable so ANSI sequences render correctly on
// Windows consoles too.
package accesslog

import (
	"fmt"
	"io"
	"time"

	"github.com/mattn/go-colorable"

	"github.com/wraithproxy/dispatch/outbound"
	"github.com/wraithproxy/dispatch/session"
)

const (
	ansiReset   = "\x1b[0m"
	ansiBlue    = "\x1b[34m"
	ansiYellow  = "\x1b[33m"
	ansiGreen   = "\x1b[32m"
	ansiRed     = "\x1b[31m"
	ansiCyan    = "\x1b[36m"
	ansiMagenta = "\x1b[35m"
)

// Logger writes access log lines to an underlying writer, optionally
// colorized.
type Logger struct {
	out      io.Writer
	colorize bool
}

// NewStdout builds a Logger writing to os.Stdout, colorized when
// requested.
func NewStdout(colorize bool) *Logger {
	return &Logger{out: colorable.NewColorableStdout(), colorize: colorize}
}

// New builds a Logger writing to an arbitrary writer (colorization still
// applies if requested — useful for tests asserting on plain text by
// passing colorize=false).
func New(out io.Writer, colorize bool) *Logger {
	return &Logger{out: out, colorize: colorize}
}

func networkColor(n session.Network) string {
	if n == session.UDP {
		return ansiYellow
	}
	return ansiBlue
}

func handlerColor(c outbound.Color) string {
	switch c {
	case outbound.ColorRed:
		return ansiRed
	case outbound.ColorGreen:
		return ansiGreen
	case outbound.ColorYellow:
		return ansiYellow
	case outbound.ColorCyan:
		return ansiCyan
	case outbound.ColorMagenta:
		return ansiMagenta
	default:
		return ansiBlue
	}
}

func (l *Logger) colorTag(color, text string) string {
	if !l.colorize || color == "" {
		return fmt.Sprintf("[%s]", text)
	}
	return fmt.Sprintf("[%s%s%s]", color, text, ansiReset)
}

// LogSuccess emits the access log line for a flow whose handshake
// succeeded in elapsed time.
func (l *Logger) LogSuccess(sess *session.Session, outboundTag string, outboundColor outbound.Color, elapsed time.Duration) {
	fmt.Fprintf(l.out, "%s %s %s %s %s\n",
		l.colorTag("", sess.InboundTag),
		l.colorTag(networkColor(sess.Network), sess.Network.String()),
		l.colorTag(handlerColor(outboundColor), outboundTag),
		l.colorTag("", fmt.Sprintf("%dms", elapsed.Milliseconds())),
		sess.Destination.String(),
	)
}

// LogFailure emits the access log line for a flow whose handshake or
// dial failed.
func (l *Logger) LogFailure(sess *session.Session, outboundTag string, outboundColor outbound.Color) {
	fmt.Fprintf(l.out, "%s %s %s %s %s\n",
		l.colorTag("", sess.InboundTag),
		l.colorTag(networkColor(sess.Network), sess.Network.String()),
		l.colorTag(handlerColor(outboundColor), outboundTag),
		l.colorTag(ansiRed, "failed"),
		sess.Destination.String(),
	)
}
