package router

import (
	"net"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/wraithproxy/dispatch/session"
)

// Rule matches a destination CIDR (and, optionally, a specific port set)
// to an outbound tag, or marks the destination as denied outright.
type Rule struct {
	net   *net.IPNet
	ports []int
	deny  bool
	tag   string
}

// NewCIDRRule builds a Rule matching destinations inside prefix. An
// empty ports list matches any port.
func NewCIDRRule(prefix string, ports []int, tag string, deny bool) (Rule, error) {
	_, ipnet, err := net.ParseCIDR(prefix)
	if err != nil {
		return Rule{}, errors.Wrapf(err, "parse cidr %q", prefix)
	}
	sorted := append([]int(nil), ports...)
	sort.Ints(sorted)
	return Rule{net: ipnet, ports: sorted, tag: tag, deny: deny}, nil
}

func (r Rule) matches(ip net.IP, port int) bool {
	if !r.net.Contains(ip) {
		return false
	}
	if len(r.ports) == 0 {
		return true
	}
	pos := sort.SearchInts(r.ports, port)
	return pos < len(r.ports) && r.ports[pos] == port
}

// Static is an ordered-rule Router reference implementation: the first
// matching rule wins; a destination matched by a deny rule is treated
// like an unmatched one: it gets the router's default tag when one is
// set, and ErrNoRoute otherwise (leaving the dispatcher's default-handler
// fallback, spec.md §4.5 step 2, to take over). Guarded by a
// RWMutex so it can be swapped out for a reloaded rule set without
// disrupting in-flight PickRoute calls, matching the read-mostly shared
// state model the dispatcher assumes.
type Static struct {
	mu          sync.RWMutex
	rules       []Rule
	defaultTag  string
	hasDefault  bool
}

// NewStatic builds a Static router. defaultTag, when non-empty, is
// returned whenever no rule routes the destination: nothing matches, a
// deny rule matches, or the destination is a domain (rules only ever
// match IP destinations; see PickRoute).
func NewStatic(rules []Rule, defaultTag string) *Static {
	return &Static{rules: rules, defaultTag: defaultTag, hasDefault: defaultTag != ""}
}

// SetRules atomically replaces the rule set, e.g. on a config reload.
func (s *Static) SetRules(rules []Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rules
}

// PickRoute matches the session's destination IP/port against the rule
// set in order. Domain destinations (including ones set by SNI
// sniffing) skip straight to the default tag, since there's no IP to test against
// a CIDR.
func (s *Static) PickRoute(sess *session.Session) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dest := sess.Destination
	if !dest.IsDomain() {
		for _, r := range s.rules {
			if r.matches(dest.IP, int(dest.Port)) {
				if r.deny {
					break
				}
				return r.tag, nil
			}
		}
	}
	if s.hasDefault {
		return s.defaultTag, nil
	}
	return "", ErrNoRoute
}
