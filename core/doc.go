// Package core provides the small set of types shared between the host and
// the components mounted onto it:
//
//   - HookEvent / HookData / HookResult: the provider lifecycle boundary
//   - ToolResult: what a tool hands back to the host
//
// The package has no behavior of its own beyond constructors and helpers on
// these values, so every other package can depend on it without cycles.
package core
