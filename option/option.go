// Package option centralizes the tunable constants the dispatcher and
// transport layers read from the environment, mirroring the teacher's
// preference for small directly-read config structs over a generic
// settings framework.
package option

import (
	"os"
	"strconv"
	"time"
)

// Options holds every environment-tunable constant from the spec's
// configuration surface, resolved once at process start.
type Options struct {
	TCPUplinkTimeout   time.Duration
	TCPDownlinkTimeout time.Duration
	LinkBufferSize     int // bytes, already multiplied by 1024
	OutboundDialConcurrency int
	EnableIPv6         bool
	PreferIPv6         bool
	OutboundInterface  string
	UnspecifiedBindAddr4 string
	UnspecifiedBindAddr6 string
	DNSTimeout         time.Duration
	MaxDNSRetries      int
}

// UDP session bookkeeping constants are not environment-overridable.
const (
	UDPSessionIdleTimeout = 30 * time.Second
	UDPSweepInterval      = 10 * time.Second
)

// FromEnv resolves Options from the process environment, falling back
// to the documented defaults for anything unset or unparsable.
func FromEnv() Options {
	return Options{
		TCPUplinkTimeout:        envSeconds("TCP_UPLINK_TIMEOUT", 2),
		TCPDownlinkTimeout:      envSeconds("TCP_DOWNLINK_TIMEOUT", 4),
		LinkBufferSize:          envInt("LINK_BUFFER_SIZE", 2) * 1024,
		OutboundDialConcurrency: envInt("OUTBOUND_DIAL_CONCURRENCY", 1),
		EnableIPv6:              envBool("ENABLE_IPV6", false),
		PreferIPv6:              envBool("PREFER_IPV6", false),
		OutboundInterface:       os.Getenv("OUTBOUND_INTERFACE"),
		UnspecifiedBindAddr4:    envString("UNSPECIFIED_BIND_ADDR", "0.0.0.0:0"),
		UnspecifiedBindAddr6:    "[::]:0",
		DNSTimeout:              4 * time.Second,
		MaxDNSRetries:           3,
	}
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envSeconds(key string, defSeconds int) time.Duration {
	return time.Duration(envInt(key, defSeconds)) * time.Second
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
