package mcpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// SessionHeader carries the session issued by initialize.
const SessionHeader = "Mcp-Session-Id"

// Handler serves the MCP endpoint over HTTP. Every request except
// initialize must carry a known session. Clients accepting
// text/event-stream get the response as a single SSE event.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req JSONRPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, &JSONRPCResponse{JSONRPC: "2.0", Error: &RPCError{Code: CodeParseError, Message: "Parse error"}})
			return
		}

		if req.Method != "initialize" {
			id := r.Header.Get(SessionHeader)
			if id == "" || !s.CheckSession(id) {
				http.Error(w, "Session not found", http.StatusNotFound)
				return
			}
		}

		resp := s.HandleRequest(r.Context(), &req)
		if resp == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		if result, ok := resp.Result.(*InitializeResult); ok && result.SessionID != "" {
			w.Header().Set(SessionHeader, result.SessionID)
		}

		if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
			writeSSE(w, resp)
			return
		}
		writeJSON(w, resp)
	})
}

func writeJSON(w http.ResponseWriter, resp *JSONRPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeSSE(w http.ResponseWriter, resp *JSONRPCResponse) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, resp)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	b, _ := json.Marshal(resp)
	fmt.Fprintf(w, "event: message\ndata: %s\n\n", b)
	flusher.Flush()
}
