package hooks

import (
	"context"
	"sync"
	"testing"

	"github.com/hupe1980/agentguard/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inject(text string) Handler {
	return func(context.Context, core.HookData) core.HookResult { return core.InjectSystem(text) }
}

func TestRegistry_PriorityOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(core.EventProviderRequest, inject("late"), WithPriority(20), WithName("late"))
	r.Register(core.EventProviderRequest, inject("early"), WithPriority(5), WithName("early"))
	r.Register(core.EventProviderRequest, inject("tie"), WithPriority(5), WithName("tie"))

	results := r.Emit(context.Background(), core.EventProviderRequest, nil)
	require.Len(t, results, 3)
	assert.Equal(t, "early", results[0].ContextInjection)
	assert.Equal(t, "tie", results[1].ContextInjection)
	assert.Equal(t, "late", results[2].ContextInjection)

	regs := r.Registrations(core.EventProviderRequest)
	require.Len(t, regs, 3)
	assert.Equal(t, "early", regs[0].Name)
	assert.NotEmpty(t, regs[0].ID)
}

func TestRegistry_ContinueIsFiltered(t *testing.T) {
	r := NewRegistry()
	r.Register(core.EventProviderResponse, func(context.Context, core.HookData) core.HookResult {
		return core.Continue()
	})

	assert.Empty(t, r.Emit(context.Background(), core.EventProviderResponse, core.HookData{"usage": nil}))
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	unregister := r.Register(core.EventProviderRequest, inject("x"))
	require.Len(t, r.Registrations(core.EventProviderRequest), 1)

	unregister()
	unregister()
	assert.Empty(t, r.Registrations(core.EventProviderRequest))
	assert.Empty(t, r.Emit(context.Background(), core.EventProviderRequest, nil))
}

func TestRegistry_PanickingHandlerContinues(t *testing.T) {
	r := NewRegistry()
	r.Register(core.EventProviderRequest, func(context.Context, core.HookData) core.HookResult {
		panic("boom")
	}, WithPriority(1))
	r.Register(core.EventProviderRequest, inject("after"), WithPriority(2))

	results := r.Emit(context.Background(), core.EventProviderRequest, nil)
	require.Len(t, results, 1)
	assert.Equal(t, "after", results[0].ContextInjection)
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register(core.EventProviderRequest, inject("x"))
		}()
		go func() {
			defer wg.Done()
			_ = r.Emit(context.Background(), core.EventProviderRequest, nil)
		}()
	}
	wg.Wait()
	assert.Len(t, r.Registrations(core.EventProviderRequest), 20)
}
