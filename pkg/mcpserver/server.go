// Package mcpserver is a small MCP (Model Context Protocol) server: JSON-RPC
// 2.0 over stdio or HTTP, session tracking, middleware and tool
// registration.
//
//	server := mcpserver.New("morningnews", version)
//	server.RegisterTool(tool)
//	server.Serve(ctx, os.Stdin, os.Stdout) // or mount server.Handler()
package mcpserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ProtocolVersion is the MCP revision the server speaks.
const ProtocolVersion = "2024-11-05"

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

// Server manages tools and handles JSON-RPC requests.
type Server struct {
	name       string
	version    string
	mu         sync.RWMutex
	tools      map[string]ToolHandler
	sessions   map[string]time.Time
	middleware []Middleware
	logger     *slog.Logger
}

// New creates a server with the given name and version.
func New(name, version string) *Server {
	return &Server{
		name:     name,
		version:  version,
		tools:    make(map[string]ToolHandler),
		sessions: make(map[string]time.Time),
		logger:   slog.Default(),
	}
}

// RegisterTool adds a tool, replacing any tool with the same name.
func (s *Server) RegisterTool(tool ToolHandler) {
	s.mu.Lock()
	s.tools[tool.Name()] = tool
	s.mu.Unlock()
	s.logger.Debug("registered tool", "name", tool.Name())
}

// RegisterTools adds multiple tools.
func (s *Server) RegisterTools(tools ...ToolHandler) {
	for _, tool := range tools {
		s.RegisterTool(tool)
	}
}

// Use appends middleware to the processing chain. The first added runs
// outermost.
func (s *Server) Use(mw Middleware) {
	s.middleware = append(s.middleware, mw)
}

// Serve reads newline-delimited requests from r and writes responses to w
// until r is exhausted or ctx is done.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.logger.Info("starting MCP server (stdio)", "name", s.name, "version", s.version, "tools", len(s.tools))

	decoder := json.NewDecoder(r)
	encoder := json.NewEncoder(w)
	for ctx.Err() == nil {
		var req JSONRPCRequest
		if err := decoder.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode request: %w", err)
		}

		resp := s.HandleRequest(ctx, &req)
		if resp == nil {
			continue // notification
		}
		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
	}
	return ctx.Err()
}

// HandleRequest processes one request. Notifications return nil.
func (s *Server) HandleRequest(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	handler := s.coreHandler
	for i := len(s.middleware) - 1; i >= 0; i-- {
		handler = s.middleware[i](handler)
	}
	return handler(ctx, req)
}

func (s *Server) coreHandler(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	resp := &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		resp.Result = s.handleInitialize()
	case "notifications/initialized":
		return nil
	case "ping":
		resp.Result = struct{}{}
	case "tools/list":
		resp.Result = s.toolsList()
	case "tools/call":
		resp.Result = s.handleToolCall(ctx, req.Params)
	default:
		resp.Error = &RPCError{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
	}
	return resp
}

func (s *Server) handleInitialize() *InitializeResult {
	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    ServerCapabilities{Tools: ToolsCapability{}},
		ServerInfo:      ServerInfo{Name: s.name, Version: s.version},
		SessionID:       s.createSession(),
	}
}

// toolsList returns the tools ordered by name.
func (s *Server) toolsList() *ToolsListResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tools := make([]ToolDef, 0, len(s.tools))
	for _, h := range s.tools {
		tools = append(tools, ToolDef{
			Name:        h.Name(),
			Description: h.Description(),
			InputSchema: h.InputSchema(),
		})
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return &ToolsListResult{Tools: tools}
}

func (s *Server) handleToolCall(ctx context.Context, params json.RawMessage) *ToolCallResult {
	var call struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(params, &call); err != nil {
		return ErrorResult(fmt.Errorf("parse params: %w", err))
	}
	return s.CallTool(ctx, call.Name, call.Arguments)
}

// CallTool runs a registered tool. Tool errors are reported in the result,
// not as protocol errors.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) *ToolCallResult {
	s.mu.RLock()
	tool, ok := s.tools[name]
	s.mu.RUnlock()
	if !ok {
		return ErrorResult(fmt.Errorf("tool not found: %s", name))
	}
	if args == nil {
		args = map[string]any{}
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		return ErrorResult(err)
	}
	return result
}

func (s *Server) createSession() string {
	id := generateSessionID()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = time.Now()
	return id
}

// CheckSession reports whether id was issued by initialize.
func (s *Server) CheckSession(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("sess-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
