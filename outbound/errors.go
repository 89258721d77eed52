package outbound

import "github.com/pkg/errors"

var (
	// ErrDropped is returned by the Drop handler for every flow.
	ErrDropped = errors.New("dropped")
	// ErrNullHandler is returned by the Null handler for every flow.
	ErrNullHandler = errors.New("null handler")
	// ErrAllAttemptsFailed is returned by Retry once every pass over every
	// inner handler has failed.
	ErrAllAttemptsFailed = errors.New("all attempts failed")
	// ErrCyclicHandler is returned at construction time when a composed
	// handler would be wired into its own descendant set.
	ErrCyclicHandler = errors.New("handler graph is cyclic")
)
