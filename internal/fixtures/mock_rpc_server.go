// Package fixtures provides an in-process JSON-RPC server for tests.
package fixtures

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/rpcwire/rpcwire/internal/domain/rpc"
)

// MethodFunc answers one call. A non-nil error object is sent instead of the result.
type MethodFunc func(params json.RawMessage, header http.Header) (any, *rpc.ErrorObject)

// Received records one HTTP request seen by the server.
type Received struct {
	Query  map[string]string
	Header http.Header
	Body   json.RawMessage
}

// MockRPCServer dispatches JSON-RPC calls to registered methods.
type MockRPCServer struct {
	mu       sync.RWMutex
	methods  map[string]MethodFunc
	received []Received
	reverse  bool
	server   *httptest.Server
}

// NewMockRPCServer creates and starts a mock server.
func NewMockRPCServer() *MockRPCServer {
	s := &MockRPCServer{methods: make(map[string]MethodFunc)}
	s.server = httptest.NewServer(s)
	return s
}

// URL returns the endpoint of the server.
func (s *MockRPCServer) URL() string {
	return s.server.URL + "/v1/rpc/"
}

// Close stops the server.
func (s *MockRPCServer) Close() {
	s.server.Close()
}

// Handle registers fn for method.
func (s *MockRPCServer) Handle(method string, fn MethodFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[method] = fn
}

// SetResult registers a method that always returns result.
func (s *MockRPCServer) SetResult(method string, result any) {
	s.Handle(method, func(json.RawMessage, http.Header) (any, *rpc.ErrorObject) {
		return result, nil
	})
}

// ReverseBatches makes batch responses come back in reverse order.
func (s *MockRPCServer) ReverseBatches(reverse bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reverse = reverse
}

// Received returns the requests seen so far.
func (s *MockRPCServer) Received() []Received {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Received, len(s.received))
	copy(res, s.received)
	return res
}

type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

func (s *MockRPCServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	query := make(map[string]string)
	for k := range r.URL.Query() {
		query[k] = r.URL.Query().Get(k)
	}
	s.mu.Lock()
	s.received = append(s.received, Received{Query: query, Header: r.Header.Clone(), Body: body})
	reverse := s.reverse
	s.mu.Unlock()

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var reqs []envelope
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var responses []map[string]any
		for _, req := range reqs {
			if resp := s.dispatch(req, r.Header); resp != nil {
				responses = append(responses, resp)
			}
		}
		if len(responses) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if reverse {
			for i, j := 0, len(responses)-1; i < j; i, j = i+1, j-1 {
				responses[i], responses[j] = responses[j], responses[i]
			}
		}
		writeJSON(w, responses)
		return
	}

	var req envelope
	if err := json.Unmarshal(trimmed, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := s.dispatch(req, r.Header)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, resp)
}

// dispatch returns nil for notifications.
func (s *MockRPCServer) dispatch(req envelope, header http.Header) map[string]any {
	s.mu.RLock()
	fn, ok := s.methods[req.Method]
	s.mu.RUnlock()

	var (
		result any
		rpcErr *rpc.ErrorObject
	)
	if ok {
		result, rpcErr = fn(req.Params, header)
	} else {
		rpcErr = rpc.NewError(rpc.MethodNotFound, "Method not found", nil)
	}

	if len(req.ID) == 0 {
		return nil
	}
	resp := map[string]any{
		"jsonrpc": rpc.Version,
		"id":      req.ID,
	}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	return resp
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
