// Package actions provides the pluggable handlers a policy's remediation
// chain executes. The registry is an open extension point: deployments add
// custom handler types alongside the built-ins.
package actions

import (
	"context"
	"sort"
	"sync"

	"github.com/wardlabs/ward/types"
)

// Context carries the triggering event into a handler.
type Context struct {
	Event      types.Event
	PolicyID   string
	PolicyName string
	TenantID   string
}

// Result is a handler's structured outcome.
type Result struct {
	Success bool
	Data    map[string]any
	Error   string
}

// Handler executes one action type.
type Handler interface {
	Type() string
	Execute(ctx context.Context, config map[string]any, actx Context) (Result, error)
}

// Registry maps action-type strings to handlers. Owned by application
// startup; no global instance.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds or replaces a handler for its type.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Type()] = h
}

// Get returns the handler for an action type, if one is registered.
func (r *Registry) Get(actionType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[actionType]
	return h, ok
}

// Types returns the registered action types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
