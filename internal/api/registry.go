package api

import (
	"fmt"
	"sync"

	"github.com/contdb/queryview/internal/container"
)

// entry pairs a registered container with its read context.
type entry struct {
	c    container.Container
	rcxt container.ReadContext
}

// Registry is a name-addressed lookup of open Containers, the handler
// layer's substitute for a filesystem's notion of an open file. queryviewd
// registers its configured backends (a pgcontainer store, and optionally a
// chregion store) under this before starting the router.
type Registry struct {
	mu         sync.RWMutex
	containers map[string]entry
	host       container.Container
}

// NewRegistry creates an empty registry. host is the container new
// materialized views are written into.
func NewRegistry(host container.Container) *Registry {
	return &Registry{containers: make(map[string]entry), host: host}
}

// Register adds or replaces the container reachable under name, paired
// with the ReadContext its backend expects (each Container implementation
// defines its own small ReadContext type; callers pass the matching one).
func (r *Registry) Register(name string, c container.Container, rcxt container.ReadContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.containers[name] = entry{c: c, rcxt: rcxt}
}

// Lookup returns the container and read context registered under name.
func (r *Registry) Lookup(name string) (container.Container, container.ReadContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.containers[name]
	if !ok {
		return nil, nil, fmt.Errorf("api: no container registered under %q", name)
	}
	return e.c, e.rcxt, nil
}

// Host returns the materialization target container.
func (r *Registry) Host() container.Container { return r.host }
