// Package sniff recovers the TLS SNI hostname from a freshly accepted
// inbound stream without consuming application-visible bytes: the
// wrapper replays whatever it peeked before draining the underlying
// connection for any subsequent read.
package sniff

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
)

// ErrMalformedRecord is returned when the first bytes look like a TLS
// record but cannot be parsed as one.
var ErrMalformedRecord = errors.New("sniff: malformed tls record")

// peekDeadline bounds how long sniffing waits for the first record; if
// it doesn't arrive in time SniffSNI returns the read error, which the
// dispatcher treats as a failed sniff and abandons the flow.
const peekDeadline = 300 * time.Millisecond

const maxClientHelloRecord = 16*1024 + 5

// Stream wraps an inbound net.Conn so its first record can be peeked for
// SNI recovery, then replayed transparently to later Read calls.
type Stream struct {
	net.Conn
	peeked bytes.Reader
	haveReplay bool
}

// New wraps conn for sniffing.
func New(conn net.Conn) *Stream {
	return &Stream{Conn: conn}
}

// Read first drains any peeked-but-unconsumed prefix, then falls
// through to the underlying connection.
func (s *Stream) Read(p []byte) (int, error) {
	if s.haveReplay {
		n, err := s.peeked.Read(p)
		if err == io.EOF {
			s.haveReplay = false
			if n > 0 {
				return n, nil
			}
		} else if err != nil || n > 0 {
			return n, err
		}
	}
	return s.Conn.Read(p)
}

// SniffSNI peeks the initial client record. It returns ("", nil) for
// non-TLS or SNI-less traffic, and a non-nil error for a malformed record
// or a failed peek (a timeout, or the stream ending before a 5-byte
// record header); the dispatcher closes the inbound and abandons the
// flow on any error. The peeked bytes are buffered for Read to replay.
func (s *Stream) SniffSNI() (string, error) {
	if err := s.Conn.SetReadDeadline(time.Now().Add(peekDeadline)); err != nil {
		return "", err
	}
	defer s.Conn.SetReadDeadline(time.Time{})

	buf := make([]byte, maxClientHelloRecord)
	n, err := io.ReadAtLeast(s.Conn, buf, 5)
	if err != nil {
		return "", err
	}
	buf = buf[:n]

	s.peeked = *bytes.NewReader(append([]byte(nil), buf...))
	s.haveReplay = true

	return parseSNI(buf)
}

// parseSNI parses a single TLS record containing (or prefixing) a
// ClientHello and extracts the server_name extension, if present.
func parseSNI(buf []byte) (string, error) {
	if len(buf) < 5 {
		return "", nil
	}
	if buf[0] != 0x16 { // handshake content type
		return "", nil
	}
	recordLen := int(binary.BigEndian.Uint16(buf[3:5]))
	if 5+recordLen > len(buf) {
		// Caller only peeked one record's worth; treat a record that
		// looks truncated as "not enough to sniff" rather than fatal.
		recordLen = len(buf) - 5
	}
	hs := buf[5 : 5+recordLen]
	if len(hs) < 4 || hs[0] != 0x01 { // handshake type: client_hello
		return "", nil
	}
	body := hs[4:]

	// session id
	if len(body) < 2+32+1 {
		return "", ErrMalformedRecord
	}
	pos := 2 + 32 // version(2) + random(32)
	if pos >= len(body) {
		return "", ErrMalformedRecord
	}
	sidLen := int(body[pos])
	pos++
	pos += sidLen
	if pos+2 > len(body) {
		return "", ErrMalformedRecord
	}

	cipherSuitesLen := int(binary.BigEndian.Uint16(body[pos : pos+2]))
	pos += 2 + cipherSuitesLen
	if pos+1 > len(body) {
		return "", ErrMalformedRecord
	}

	compMethodsLen := int(body[pos])
	pos += 1 + compMethodsLen
	if pos+2 > len(body) {
		// No extensions present: valid ClientHello, just no SNI.
		return "", nil
	}

	extTotalLen := int(binary.BigEndian.Uint16(body[pos : pos+2]))
	pos += 2
	if pos+extTotalLen > len(body) {
		return "", ErrMalformedRecord
	}
	extensions := body[pos : pos+extTotalLen]

	for len(extensions) >= 4 {
		extType := binary.BigEndian.Uint16(extensions[0:2])
		extLen := int(binary.BigEndian.Uint16(extensions[2:4]))
		if 4+extLen > len(extensions) {
			return "", ErrMalformedRecord
		}
		extBody := extensions[4 : 4+extLen]
		if extType == 0x0000 { // server_name
			return parseServerNameExtension(extBody)
		}
		extensions = extensions[4+extLen:]
	}

	return "", nil
}

func parseServerNameExtension(body []byte) (string, error) {
	if len(body) < 2 {
		return "", ErrMalformedRecord
	}
	listLen := int(binary.BigEndian.Uint16(body[0:2]))
	if 2+listLen > len(body) {
		return "", ErrMalformedRecord
	}
	list := body[2 : 2+listLen]
	for len(list) >= 3 {
		nameType := list[0]
		nameLen := int(binary.BigEndian.Uint16(list[1:3]))
		if 3+nameLen > len(list) {
			return "", ErrMalformedRecord
		}
		name := list[3 : 3+nameLen]
		if nameType == 0x00 { // host_name
			return string(name), nil
		}
		list = list[3+nameLen:]
	}
	return "", nil
}
