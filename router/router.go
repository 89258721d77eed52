// Package router defines the routing-policy collaborator the dispatcher
// consults for every flow, plus a reference implementation exercised by
// tests and the demo binary. A production deployment would normally
// inject something backed by parsed configuration (out of scope here;
// see spec.md §1); Static stands in for it.
package router

import (
	"github.com/pkg/errors"
	"github.com/wraithproxy/dispatch/session"
)

// ErrNoRoute is returned when no rule matches and no default is set.
var ErrNoRoute = errors.New("router: no route")

// Router picks an outbound tag for a session. pick_route must not block
// indefinitely — implementations backed by I/O should apply their own
// timeout.
type Router interface {
	PickRoute(sess *session.Session) (string, error)
}
