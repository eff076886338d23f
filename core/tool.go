package core

// ToolResult is what a tool hands back to the host: either textual output or
// an error string. Tools never return Go errors across the host boundary.
type ToolResult struct {
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// OutputResult wraps successful tool output.
func OutputResult(output string) ToolResult { return ToolResult{Output: output} }

// ErrorResult wraps a user-facing tool failure.
func ErrorResult(msg string) ToolResult { return ToolResult{Error: msg} }

// Success reports whether the result carries no error.
func (r ToolResult) Success() bool { return r.Error == "" }
