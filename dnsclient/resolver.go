// Package dnsclient is a concrete, shared, internally synchronized
// SyncDnsClient implementation. Name resolution is explicitly out of
// scope for the dispatch/relay core (spec.md treats it as an opaque
// collaborator); this package exists only so the contract has one real
// implementation to compile and test against, built on the same
// low-level DNS library (github.com/miekg/dns) the rest of this corpus
// reaches for.
package dnsclient

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"

	"github.com/wraithproxy/dispatch/retry"
)

// Resolver is a SyncDnsClient: a shared client performing A/AAAA lookups
// with a bounded timeout and retry budget, safe for concurrent use.
type Resolver struct {
	mu       sync.Mutex
	client   *dns.Client
	servers  []string
	timeout  time.Duration
	maxRetries int
	next     int
}

// New builds a Resolver that queries servers round-robin. servers are
// "host:port" nameserver addresses (e.g. "1.1.1.1:53").
func New(servers []string, timeout time.Duration, maxRetries int) *Resolver {
	if len(servers) == 0 {
		servers = []string{"1.1.1.1:53"}
	}
	return &Resolver{
		client:     &dns.Client{Timeout: timeout},
		servers:    servers,
		timeout:    timeout,
		maxRetries: maxRetries,
	}
}

// Lookup resolves host to its A (and, when wantAAAA is set, AAAA)
// records, retrying up to maxRetries times against the configured
// servers before giving up.
func (r *Resolver) Lookup(ctx context.Context, host string, wantAAAA bool) ([]net.IP, error) {
	backoff := retry.BackoffHandler{MaxRetries: uint(r.maxRetries), BaseTime: 50 * time.Millisecond}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		ips, err := r.lookupOnce(ctx, host, dns.TypeA)
		if err == nil && len(ips) > 0 && !wantAAAA {
			return ips, nil
		}
		if wantAAAA {
			aaaa, aerr := r.lookupOnce(ctx, host, dns.TypeAAAA)
			if err == nil || aerr == nil {
				combined := append(ips, aaaa...)
				if len(combined) > 0 {
					return combined, nil
				}
			}
		}
		if err != nil {
			lastErr = err
		}
		if attempt < r.maxRetries {
			if !backoff.Backoff(ctx) {
				break
			}
		}
	}
	if lastErr == nil {
		lastErr = errors.Errorf("dnsclient: no records for %s", host)
	}
	return nil, errors.Wrapf(lastErr, "resolve %s after %d attempts", host, r.maxRetries+1)
}

func (r *Resolver) lookupOnce(ctx context.Context, host string, qtype uint16) ([]net.IP, error) {
	server := r.pickServer()

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	deadline, ok := ctx.Deadline()
	client := r.client
	if ok {
		timeout := time.Until(deadline)
		if timeout > 0 && timeout < r.timeout {
			c := *r.client
			c.Timeout = timeout
			client = &c
		}
	}

	resp, _, err := client.Exchange(msg, server)
	if err != nil {
		return nil, errors.Wrap(err, "dns exchange")
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, errors.Errorf("dns rcode %s", dns.RcodeToString[resp.Rcode])
	}

	var ips []net.IP
	for _, rr := range resp.Answer {
		switch rec := rr.(type) {
		case *dns.A:
			ips = append(ips, rec.A)
		case *dns.AAAA:
			ips = append(ips, rec.AAAA)
		}
	}
	return ips, nil
}

func (r *Resolver) pickServer() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.servers[r.next%len(r.servers)]
	r.next++
	return s
}
