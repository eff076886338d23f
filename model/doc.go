// Package model holds the provider-agnostic pieces shared by the guarded
// provider adapters in model/anthropic and model/openai.
//
// An adapter wraps a vendor SDK client and runs every request through a
// Guard:
//   - BeforeRequest is published first; system injections it returns are
//     appended to the outgoing system prompt for that request only
//   - AfterResponse is published with the SDK response so the budget tracker
//     sees the reported usage
//   - Tool calls are normalized into ToolCall values and can be executed
//     against a ToolExecutor with RunTools
//
// Notices (user-facing messages returned by hooks) are surfaced on the turn
// so hosts can display them however they like.
package model
