// Package outboundmgr is the OutboundManager collaborator: a
// read-mostly registry mapping outbound tags to handlers, plus an
// optional default tag consulted when routing fails to pick one.
package outboundmgr

import (
	"sync"

	"github.com/wraithproxy/dispatch/outbound"
)

// Registry is a concurrency-safe OutboundManager. Dispatcher takes only
// read access; mutation (hot-reloading a config) is expected to be rare
// and is serialized by the embedded RWMutex.
type Registry struct {
	mu         sync.RWMutex
	handlers   map[string]outbound.Handler
	defaultTag string
	hasDefault bool
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]outbound.Handler)}
}

// Register wires tag to h, overwriting any previous handler for tag.
func (r *Registry) Register(tag string, h outbound.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[tag] = h
}

// SetDefault designates tag as the fallback used when routing fails.
func (r *Registry) SetDefault(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultTag = tag
	r.hasDefault = true
}

// Get resolves tag to its handler, if registered.
func (r *Registry) Get(tag string) (outbound.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[tag]
	return h, ok
}

// DefaultHandler returns the default tag, if one was set.
func (r *Registry) DefaultHandler() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultTag, r.hasDefault
}
