package mcpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/RobinCoderZhao/morning-news/pkg/mcpserver"
)

func newEchoTool() mcpserver.ToolHandler {
	return &mcpserver.FuncTool{
		BaseTool: mcpserver.BaseTool{
			ToolName:        "echo",
			ToolDescription: "Echoes back the input message",
			ToolSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{"type": "string"},
				},
				"required": []string{"message"},
			},
		},
		Fn: func(ctx context.Context, args map[string]any) (*mcpserver.ToolCallResult, error) {
			msg, err := mcpserver.StringArg(args, "message", true)
			if err != nil {
				return nil, err
			}
			return mcpserver.TextResult("Echo: " + msg), nil
		},
	}
}

func call(s *mcpserver.Server, method, params string) *mcpserver.JSONRPCResponse {
	req := &mcpserver.JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: method}
	if params != "" {
		req.Params = json.RawMessage(params)
	}
	return s.HandleRequest(context.Background(), req)
}

func TestServer_Initialize(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")
	resp := call(s, "initialize", "")
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	result, ok := resp.Result.(*mcpserver.InitializeResult)
	if !ok {
		t.Fatal("expected InitializeResult")
	}
	if result.ServerInfo.Name != "test-server" || result.ProtocolVersion != mcpserver.ProtocolVersion {
		t.Errorf("unexpected result %+v", result)
	}
	if !s.CheckSession(result.SessionID) || s.CheckSession("invalid-session") {
		t.Error("session tracking broken")
	}
}

func TestServer_ToolsListSorted(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")
	s.RegisterTools(newEchoTool(), &mcpserver.FuncTool{BaseTool: mcpserver.BaseTool{ToolName: "alpha"}})

	result := call(s, "tools/list", "").Result.(*mcpserver.ToolsListResult)
	if len(result.Tools) != 2 || result.Tools[0].Name != "alpha" || result.Tools[1].Name != "echo" {
		t.Fatalf("unexpected tools %+v", result.Tools)
	}
	if result.Tools[0].InputSchema["type"] != "object" {
		t.Errorf("default schema missing: %v", result.Tools[0].InputSchema)
	}
}

func TestServer_ToolCall(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")
	s.RegisterTool(newEchoTool())

	result := call(s, "tools/call", `{"name":"echo","arguments":{"message":"hello world"}}`).Result.(*mcpserver.ToolCallResult)
	if result.IsError || result.Content[0].Text != "Echo: hello world" {
		t.Fatalf("unexpected result: %+v", result)
	}

	result = call(s, "tools/call", `{"name":"echo","arguments":{}}`).Result.(*mcpserver.ToolCallResult)
	if !result.IsError || !strings.Contains(result.Content[0].Text, "message") {
		t.Errorf("expected a missing-argument error, got %+v", result)
	}

	result = call(s, "tools/call", `{"name":"nonexistent"}`).Result.(*mcpserver.ToolCallResult)
	if !result.IsError {
		t.Error("expected error result for an unknown tool")
	}
}

func TestServer_MethodNotFoundAndNotification(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")
	resp := call(s, "unknown/method", "")
	if resp.Error == nil || resp.Error.Code != mcpserver.CodeMethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", resp)
	}
	if call(s, "notifications/initialized", "") != nil {
		t.Error("notifications must not be answered")
	}
}

func TestServer_Middleware(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")
	s.Use(mcpserver.RecoveryMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil))))
	var order []string
	s.Use(func(next mcpserver.HandlerFunc) mcpserver.HandlerFunc {
		return func(ctx context.Context, req *mcpserver.JSONRPCRequest) *mcpserver.JSONRPCResponse {
			order = append(order, req.Method)
			return next(ctx, req)
		}
	})
	s.RegisterTool(&mcpserver.FuncTool{
		BaseTool: mcpserver.BaseTool{ToolName: "boom"},
		Fn: func(ctx context.Context, args map[string]any) (*mcpserver.ToolCallResult, error) {
			panic("boom")
		},
	})

	resp := call(s, "tools/call", `{"name":"boom"}`)
	if resp.Error == nil || resp.Error.Code != mcpserver.CodeInternalError {
		t.Fatalf("expected a recovered internal error, got %+v", resp)
	}
	if len(order) != 1 || order[0] != "tools/call" {
		t.Errorf("middleware not applied: %v", order)
	}
}

func TestServer_ServeStdio(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")
	s.RegisterTool(newEchoTool())

	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"message":"hi"}}}`,
	}, "\n"))
	var out bytes.Buffer
	if err := s.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 responses, got %d: %s", len(lines), out.String())
	}
	if !strings.Contains(lines[1], "Echo: hi") {
		t.Errorf("unexpected tool response %s", lines[1])
	}
}

func TestHandler_Sessions(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")
	s.RegisterTool(newEchoTool())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	post := func(body, session, accept string) *http.Response {
		req, _ := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(body))
		if session != "" {
			req.Header.Set(mcpserver.SessionHeader, session)
		}
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		return resp
	}

	resp := post(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, "", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 without a session, got %d", resp.StatusCode)
	}

	resp = post(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`, "", "")
	resp.Body.Close()
	session := resp.Header.Get(mcpserver.SessionHeader)
	if session == "" {
		t.Fatal("initialize should issue a session")
	}

	resp = post(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"message":"sse"}}}`, session, "text/event-stream")
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.Header.Get("Content-Type") != "text/event-stream" || !strings.Contains(string(body), "Echo: sse") {
		t.Errorf("unexpected SSE response %q (%s)", body, resp.Header.Get("Content-Type"))
	}
}

func TestStringArg(t *testing.T) {
	args := map[string]any{"a": "x", "n": 3.0}
	if v, err := mcpserver.StringArg(args, "a", true); err != nil || v != "x" {
		t.Errorf("StringArg(a) = %q, %v", v, err)
	}
	if v, err := mcpserver.StringArg(args, "missing", false); err != nil || v != "" {
		t.Errorf("optional missing = %q, %v", v, err)
	}
	if _, err := mcpserver.StringArg(args, "n", false); err == nil {
		t.Error("expected a type error")
	}
	if _, err := mcpserver.StringArg(args, "missing", true); err == nil || errors.Unwrap(err) != nil {
		t.Errorf("expected a plain missing-argument error, got %v", err)
	}
}
