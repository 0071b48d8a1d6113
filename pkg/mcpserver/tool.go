package mcpserver

import (
	"context"
	"fmt"
)

// ToolHandler is an MCP tool.
type ToolHandler interface {
	Name() string
	Description() string
	// InputSchema is the JSON Schema of the arguments object.
	InputSchema() map[string]any
	Execute(ctx context.Context, args map[string]any) (*ToolCallResult, error)
}

// BaseTool provides the descriptive half of a ToolHandler. Embed it and
// implement Execute.
type BaseTool struct {
	ToolName        string
	ToolDescription string
	ToolSchema      map[string]any
}

func (t *BaseTool) Name() string        { return t.ToolName }
func (t *BaseTool) Description() string { return t.ToolDescription }

func (t *BaseTool) InputSchema() map[string]any {
	if t.ToolSchema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return t.ToolSchema
}

// FuncTool adapts a function into a ToolHandler.
type FuncTool struct {
	BaseTool
	Fn func(ctx context.Context, args map[string]any) (*ToolCallResult, error)
}

func (t *FuncTool) Execute(ctx context.Context, args map[string]any) (*ToolCallResult, error) {
	return t.Fn(ctx, args)
}

// StringArg returns args[key] as a string. Missing keys give "" unless
// required.
func StringArg(args map[string]any, key string, required bool) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing argument %q", key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

// Middleware wraps a request handler.
type Middleware func(next HandlerFunc) HandlerFunc

// HandlerFunc handles a JSON-RPC request.
type HandlerFunc func(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse
