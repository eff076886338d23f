package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// ProviderServer is a fake model provider endpoint. It answers every request
// with the next queued JSON body and records the decoded request bodies.
type ProviderServer struct {
	*httptest.Server

	mu        sync.Mutex
	responses []string
	requests  []map[string]any
}

// NewProviderServer starts a server that replays responses in order. Requests
// beyond the queue get a 500.
func NewProviderServer(t testing.TB, responses ...string) *ProviderServer {
	t.Helper()

	ps := &ProviderServer{responses: responses}
	ps.Server = httptest.NewServer(http.HandlerFunc(ps.handle))
	t.Cleanup(ps.Close)

	return ps
}

func (ps *ProviderServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	var req map[string]any
	_ = json.Unmarshal(body, &req)

	ps.mu.Lock()
	ps.requests = append(ps.requests, req)
	var resp string
	ok := len(ps.responses) > 0
	if ok {
		resp, ps.responses = ps.responses[0], ps.responses[1:]
	}
	ps.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"type":"api_error","message":"no response queued"}}`)
		return
	}
	_, _ = io.WriteString(w, resp)
}

// Requests returns the decoded bodies received so far.
func (ps *ProviderServer) Requests() []map[string]any {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	return append([]map[string]any(nil), ps.requests...)
}
