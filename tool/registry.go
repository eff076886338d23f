package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentguard/core"
	"github.com/hupe1980/agentguard/logging"
)

// ErrDuplicateTool is returned by Mount when the name is already taken.
var ErrDuplicateTool = errors.New("tool: name already mounted")

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Logger logging.Logger
}

// MountOptions tunes a single mount.
type MountOptions struct {
	// Name overrides Tool.Name() as the routing key.
	Name string
}

// Registry routes tool invocations by name. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{
		tools:  make(map[string]Tool),
		logger: logging.OrNoOp(opts.Logger),
	}
}

// Mount adds t under its name (or the MountOptions override).
func (r *Registry) Mount(t Tool, optFns ...func(o *MountOptions)) error {
	opts := MountOptions{Name: t.Name()}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Name == "" {
		return NewToolError("", "tool name must not be empty", CodeValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[opts.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, opts.Name)
	}

	r.tools[opts.Name] = t
	r.logger.Info("tool.mounted", "tool", opts.Name)

	return nil
}

// Unmount removes the tool mounted under name and reports whether it existed.
func (r *Registry) Unmount(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[name]; !ok {
		return false
	}
	delete(r.tools, name)

	return true
}

// Get returns the tool mounted under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]

	return t, ok
}

// Names returns the mounted tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Execute runs the tool mounted under name. A missing tool or a panicking
// tool yields an error result.
func (r *Registry) Execute(ctx context.Context, name string, input map[string]any) (res core.ToolResult) {
	t, ok := r.Get(name)
	if !ok {
		err := NewToolError(name, fmt.Sprintf("tool %q not found", name), CodeNotFound)
		r.logger.Warn("tool.call.not_found", "tool", name)
		return err.Result()
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err := NewToolError(name, fmt.Sprintf("%s panicked: %v", name, p), CodeExecution)
			logging.ErrorWithStack(r.logger, err, "tool.call.panic", "tool", name)
			res = err.Result()
		}
		r.record(name, time.Since(start), res)
	}()

	return t.Execute(ctx, input)
}

func (r *Registry) record(name string, dur time.Duration, res core.ToolResult) {
	var err error
	if !res.Success() {
		err = errors.New(res.Error)
	}

	if tl, ok := r.logger.(logging.ToolCallLogger); ok {
		tl.LogToolCall(name, dur, res.Success(), err)
		return
	}

	if err != nil {
		r.logger.Debug("tool.call.error", "tool", name, "error", err.Error())
		return
	}
	r.logger.Debug("tool.call.success", "tool", name, "duration_ms", dur.Milliseconds())
}

// WithMountName overrides the routing name of a mounted tool.
func WithMountName(name string) func(o *MountOptions) {
	return func(o *MountOptions) { o.Name = name }
}
