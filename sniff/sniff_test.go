package sniff

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// buildClientHello assembles a minimal TLS 1.2 ClientHello record
// carrying a single server_name extension, byte-for-byte per RFC 6066 /
// RFC 5246 §7.4.1.2, good enough to exercise parseSNI's field walk.
func buildClientHello(t *testing.T, sni string) []byte {
	t.Helper()

	var ext bytes.Buffer
	ext.WriteByte(0x00) // host_name
	binary.Write(&ext, binary.BigEndian, uint16(len(sni)))
	ext.WriteString(sni)

	var serverNameExt bytes.Buffer
	binary.Write(&serverNameExt, binary.BigEndian, uint16(ext.Len()))
	serverNameExt.Write(ext.Bytes())

	var extensions bytes.Buffer
	binary.Write(&extensions, binary.BigEndian, uint16(0x0000)) // server_name
	binary.Write(&extensions, binary.BigEndian, uint16(serverNameExt.Len()))
	extensions.Write(serverNameExt.Bytes())

	var body bytes.Buffer
	body.Write([]byte{0x03, 0x03})     // client_version
	body.Write(make([]byte, 32))       // random
	body.WriteByte(0x00)               // session_id_len
	binary.Write(&body, binary.BigEndian, uint16(2))
	body.Write([]byte{0x00, 0x2f}) // one cipher suite
	body.WriteByte(0x01)           // comp_methods_len
	body.WriteByte(0x00)           // null compression
	binary.Write(&body, binary.BigEndian, uint16(extensions.Len()))
	body.Write(extensions.Bytes())

	var handshake bytes.Buffer
	handshake.WriteByte(0x01) // client_hello
	length := body.Len()
	handshake.WriteByte(byte(length >> 16))
	handshake.WriteByte(byte(length >> 8))
	handshake.WriteByte(byte(length))
	handshake.Write(body.Bytes())

	var record bytes.Buffer
	record.WriteByte(0x16) // handshake content type
	record.Write([]byte{0x03, 0x01})
	binary.Write(&record, binary.BigEndian, uint16(handshake.Len()))
	record.Write(handshake.Bytes())

	return record.Bytes()
}

func TestParseSNIExtractsServerName(t *testing.T) {
	buf := buildClientHello(t, "example.com")
	name, err := parseSNI(buf)
	require.NoError(t, err)
	require.Equal(t, "example.com", name)
}

func TestParseSNINonTLSTraffic(t *testing.T) {
	name, err := parseSNI([]byte("GET / HTTP/1.1\r\n"))
	require.NoError(t, err)
	require.Equal(t, "", name)
}

// fakeConn is a net.Conn backed by an in-memory reader, sufficient for
// exercising Stream's peek-then-replay behavior without a real socket.
type fakeConn struct {
	net.Conn
	r io.Reader
}

func (c *fakeConn) Read(p []byte) (int, error)                { return c.r.Read(p) }
func (c *fakeConn) SetReadDeadline(time.Time) error            { return nil }

// Testable property 8 (sniff half): SniffSNI recovers the SNI hostname
// and Read afterward replays exactly what was peeked, so no
// application-visible bytes are lost.
func TestSniffSNIReplaysApplicationBytes(t *testing.T) {
	hello := buildClientHello(t, "example.com")
	trailing := []byte("POST-HANDSHAKE-APPLICATION-DATA")
	full := append(append([]byte(nil), hello...), trailing...)

	s := New(&fakeConn{r: bytes.NewReader(full)})
	domain, err := s.SniffSNI()
	require.NoError(t, err)
	require.Equal(t, "example.com", domain)

	replay, err := io.ReadAll(s)
	require.NoError(t, err)
	require.Equal(t, full, replay)
}
