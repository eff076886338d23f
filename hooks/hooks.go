// Package hooks implements the host-side hook registry extensions attach to.
//
// Handlers subscribe to a core.HookEvent with a priority and a name. When the
// host emits an event, handlers run sequentially in ascending priority order
// (ties keep registration order) and their results are collected for the host
// to act upon.
//
// A panicking handler is recovered, logged and treated as core.Continue(): an
// extension must never be able to break the host request/response cycle.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentguard/core"
	"github.com/hupe1980/agentguard/logging"
)

// Handler reacts to a hook event and returns a result for the host.
type Handler func(ctx context.Context, data core.HookData) core.HookResult

// RegisterOptions tunes a single registration.
type RegisterOptions struct {
	// Priority orders handlers of the same event; lower runs first.
	Priority int
	// Name identifies the handler in logs and Registrations.
	Name string
}

// Registration describes a registered handler.
type Registration struct {
	ID       string
	Event    core.HookEvent
	Name     string
	Priority int

	seq     uint64
	handler Handler
}

// Options configures a Registry.
type Options struct {
	Logger logging.Logger
}

// Registry routes emitted events to registered handlers.
// It is safe for concurrent registration and emission.
type Registry struct {
	mu       sync.RWMutex
	handlers map[core.HookEvent][]*Registration
	seq      uint64
	logger   logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(o *Options)) *Registry {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{
		handlers: make(map[core.HookEvent][]*Registration),
		logger:   logging.OrNoOp(opts.Logger),
	}
}

// Register subscribes handler to event and returns a function that removes
// the registration again. Calling the returned function more than once is a
// no-op.
func (r *Registry) Register(event core.HookEvent, handler Handler, optFns ...func(o *RegisterOptions)) func() {
	opts := RegisterOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	r.mu.Lock()
	r.seq++
	reg := &Registration{
		ID:       core.NewID(),
		Event:    event,
		Name:     opts.Name,
		Priority: opts.Priority,
		seq:      r.seq,
		handler:  handler,
	}
	list := append(r.handlers[event], reg)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].seq < list[j].seq
	})
	r.handlers[event] = list
	r.mu.Unlock()

	r.logger.Debug("hooks.register", "event", string(event), "name", opts.Name, "priority", opts.Priority, "id", reg.ID)

	var once sync.Once
	return func() {
		once.Do(func() { r.unregister(event, reg.ID) })
	}
}

func (r *Registry) unregister(event core.HookEvent, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.handlers[event]
	for i, reg := range list {
		if reg.ID == id {
			r.handlers[event] = append(list[:i:i], list[i+1:]...)
			r.logger.Debug("hooks.unregister", "event", string(event), "name", reg.Name, "id", id)
			return
		}
	}
}

// Registrations returns a copy of the registrations for event in execution order.
func (r *Registry) Registrations(event core.HookEvent) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Registration, 0, len(r.handlers[event]))
	for _, reg := range r.handlers[event] {
		out = append(out, *reg)
	}
	return out
}

// Emit runs every handler registered for event and returns the results of
// those that did not simply continue, in execution order.
func (r *Registry) Emit(ctx context.Context, event core.HookEvent, data core.HookData) []core.HookResult {
	r.mu.RLock()
	list := make([]*Registration, len(r.handlers[event]))
	copy(list, r.handlers[event])
	r.mu.RUnlock()

	var results []core.HookResult
	for _, reg := range list {
		res := r.run(ctx, reg, data)
		if res.IsContinue() {
			continue
		}
		results = append(results, res)
	}
	return results
}

func (r *Registry) run(ctx context.Context, reg *Registration, data core.HookData) (res core.HookResult) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("hooks.handler.panic", "event", string(reg.Event), "name", reg.Name, "panic", fmt.Sprint(p))
			res = core.Continue()
		}
	}()

	return reg.handler(ctx, data)
}

// WithPriority sets the handler priority.
func WithPriority(p int) func(o *RegisterOptions) {
	return func(o *RegisterOptions) { o.Priority = p }
}

// WithName sets the handler name.
func WithName(name string) func(o *RegisterOptions) {
	return func(o *RegisterOptions) { o.Name = name }
}
