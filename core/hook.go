package core

import (
	"github.com/google/uuid"
)

// HookEvent names a lifecycle point published by the host.
type HookEvent string

const (
	// EventProviderRequest fires right before a request is sent to the model
	// provider. Handlers may inject context into the outgoing request.
	EventProviderRequest HookEvent = "provider:request"

	// EventProviderResponse fires after a provider response was received.
	// The payload carries the provider usage under the "usage" key.
	EventProviderResponse HookEvent = "provider:response"
)

// HookData is the loosely typed payload the host attaches to a hook event.
type HookData map[string]any

// Get returns the value stored under key. It is safe to call on a nil map.
func (d HookData) Get(key string) (any, bool) {
	if d == nil {
		return nil, false
	}

	v, ok := d[key]

	return v, ok
}

// HookAction tells the host how to proceed after a handler ran.
type HookAction string

const (
	// ActionContinue leaves the host control flow untouched.
	ActionContinue HookAction = "continue"
	// ActionInjectContext asks the host to add ContextInjection to the request.
	ActionInjectContext HookAction = "inject_context"
)

// MessageLevel is the severity of a user-facing message.
type MessageLevel string

const (
	LevelInfo    MessageLevel = "info"
	LevelWarning MessageLevel = "warning"
	LevelError   MessageLevel = "error"
)

// RoleSystem is the role used for injected guidance.
const RoleSystem = "system"

// HookResult is returned by hook handlers to the host. Zero values of the
// optional fields mean "not set"; the host decides how to render them.
// Ephemeral injections are not persisted into the transcript history.
type HookResult struct {
	Action               HookAction   `json:"action"`
	ContextInjection     string       `json:"context_injection,omitempty"`
	ContextInjectionRole string       `json:"context_injection_role,omitempty"`
	Ephemeral            bool         `json:"ephemeral,omitempty"`
	UserMessage          string       `json:"user_message,omitempty"`
	UserMessageLevel     MessageLevel `json:"user_message_level,omitempty"`
}

// Continue returns the result that leaves the host request untouched.
func Continue() HookResult { return HookResult{Action: ActionContinue} }

// InjectSystem builds an ephemeral system-role context injection.
func InjectSystem(text string) HookResult {
	return HookResult{
		Action:               ActionInjectContext,
		ContextInjection:     text,
		ContextInjectionRole: RoleSystem,
		Ephemeral:            true,
	}
}

// WithUserMessage returns a copy of r carrying a user-visible message.
func (r HookResult) WithUserMessage(msg string, level MessageLevel) HookResult {
	r.UserMessage = msg
	r.UserMessageLevel = level

	return r
}

// IsContinue reports whether the result leaves the host untouched.
func (r HookResult) IsContinue() bool { return r.Action == "" || r.Action == ActionContinue }

// HasUserMessage reports whether a user-visible message is attached.
func (r HookResult) HasUserMessage() bool { return r.UserMessage != "" }

// NewID generates a new unique identifier.
func NewID() string { return uuid.NewString() }
