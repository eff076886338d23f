package guardian

import (
	"github.com/hupe1980/agentguard/core"
	"github.com/hupe1980/agentguard/hooks"
)

// Handler priorities and names used when mounting on a host registry.
const (
	ResponseHookPriority = 10
	RequestHookPriority  = 5

	ResponseHookName = "guardian_tracker"
	RequestHookName  = "guardian_injector"
)

// Registrar is the part of the host hook registry the guardian needs.
type Registrar interface {
	Register(event core.HookEvent, handler hooks.Handler, optFns ...func(o *hooks.RegisterOptions)) func()
}

// Mount subscribes the tracker to provider:response and provider:request and
// returns a cleanup function that removes both handlers.
func Mount(reg Registrar, t *Tracker) func() {
	unregResponse := reg.Register(core.EventProviderResponse, t.OnResponse,
		hooks.WithPriority(ResponseHookPriority), hooks.WithName(ResponseHookName))
	unregRequest := reg.Register(core.EventProviderRequest, t.OnRequest,
		hooks.WithPriority(RequestHookPriority), hooks.WithName(RequestHookName))

	t.logger.Info("guardian.mounted",
		"window", t.contextWindow,
		"soft_pct", t.softThreshold*100,
		"hard_pct", t.hardThreshold*100,
	)

	return func() {
		unregResponse()
		unregRequest()
	}
}
