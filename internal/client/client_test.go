package client_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rpcwire/rpcwire/internal/client"
	"github.com/rpcwire/rpcwire/internal/domain/rpc"
	"github.com/rpcwire/rpcwire/internal/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func rawServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func requireKind(t *testing.T, err error, want client.Kind) *client.Error {
	t.Helper()
	require.Error(t, err)
	var e *client.Error
	require.True(t, errors.As(err, &e), "expected *client.Error, got %T", err)
	require.Equal(t, want, e.Kind)
	return e
}

func TestClient_SequentialIDs(t *testing.T) {
	srv := fixtures.NewMockRPCServer()
	defer srv.Close()
	srv.SetResult("echo", "ok")

	c := client.New(client.Config{URL: srv.URL()})
	for i := 0; i < 3; i++ {
		_, err := c.Call(context.Background(), "echo", nil)
		require.NoError(t, err)
	}

	received := srv.Received()
	require.Len(t, received, 3)
	for i, r := range received {
		var body struct {
			ID     int            `json:"id"`
			Params map[string]any `json:"params"`
		}
		require.NoError(t, json.Unmarshal(r.Body, &body))
		assert.Equal(t, i+1, body.ID)
		assert.NotNil(t, body.Params, "nil params are sent as an empty object")
	}
}

func TestClient_SeparateInstancesHaveOwnCounters(t *testing.T) {
	srv := fixtures.NewMockRPCServer()
	defer srv.Close()
	srv.SetResult("echo", "ok")

	for i := 0; i < 2; i++ {
		c := client.New(client.Config{URL: srv.URL()})
		_, err := c.Call(context.Background(), "echo", nil)
		require.NoError(t, err)
	}
	for _, r := range srv.Received() {
		assert.JSONEq(t, `1`, string(mustField(t, r.Body, "id")))
	}
}

func TestClient_CallResult(t *testing.T) {
	srv := fixtures.NewMockRPCServer()
	defer srv.Close()
	srv.Handle("sum", func(params json.RawMessage, _ http.Header) (any, *rpc.ErrorObject) {
		var nums []int
		require.NoError(t, json.Unmarshal(params, &nums))
		total := 0
		for _, n := range nums {
			total += n
		}
		return map[string]int{"total": total}, nil
	})

	c := client.New(client.Config{URL: srv.URL()})
	var out struct {
		Total int `json:"total"`
	}
	require.NoError(t, c.CallResult(context.Background(), "sum", []int{1, 2, 3}, &out))
	assert.Equal(t, 6, out.Total)
}

func TestClient_Notify(t *testing.T) {
	srv := fixtures.NewMockRPCServer()
	defer srv.Close()
	srv.SetResult("log.write", true)

	c := client.New(client.Config{URL: srv.URL()})
	require.NoError(t, c.Notify(context.Background(), "log.write", map[string]any{"msg": "hi"}))

	received := srv.Received()
	require.Len(t, received, 1)
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(received[0].Body, &fields))
	assert.NotContains(t, fields, "id")
	assert.Equal(t, "log.write", received[0].Query["method"])

	// notifications do not consume ids
	_, err := c.Call(context.Background(), "log.write", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `1`, string(mustField(t, srv.Received()[1].Body, "id")))
}

func TestClient_EmptyBody(t *testing.T) {
	srv := rawServer(t, http.StatusOK, "")
	c := client.New(client.Config{URL: srv.URL})

	require.NoError(t, c.Notify(context.Background(), "ping", nil))

	result, err := c.Call(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestClient_MissingBody(t *testing.T) {
	srv := rawServer(t, http.StatusNoContent, "")
	c := client.New(client.Config{URL: srv.URL})

	require.NoError(t, c.Notify(context.Background(), "ping", nil))

	_, err := c.Call(context.Background(), "ping", nil)
	e := requireKind(t, err, client.KindRPC)
	assert.Equal(t, rpc.ParseError, e.Code)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   client.Kind
		code   int
	}{
		{name: "missing protocol marker", status: 200, body: `{"id":1,"result":1}`, kind: client.KindRPC, code: rpc.ParseError},
		{name: "no result or error", status: 200, body: `{"jsonrpc":"2.0","id":1}`, kind: client.KindRPC, code: rpc.ParseError},
		{name: "array for single call", status: 200, body: `[]`, kind: client.KindRPC, code: rpc.ParseError},
		{name: "rpc error", status: 200, body: `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`, kind: client.KindRPC, code: rpc.MethodNotFound},
		{name: "error and result", status: 200, body: `{"jsonrpc":"2.0","id":1,"result":1,"error":{"code":7,"message":"both"}}`, kind: client.KindRPC, code: 7},
		{name: "not json", status: 200, body: `<html>oops</html>`, kind: client.KindConnection},
		{name: "server error with valid body", status: 502, body: `{"jsonrpc":"2.0","id":1,"result":1}`, kind: client.KindServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := rawServer(t, tt.status, tt.body)
			c := client.New(client.Config{URL: srv.URL})

			_, err := c.Call(context.Background(), "review.get", map[string]any{"id": 1})
			e := requireKind(t, err, tt.kind)
			assert.Equal(t, "review.get", e.Method)
			switch tt.kind {
			case client.KindRPC:
				assert.Equal(t, tt.code, e.Code)
			case client.KindServer:
				assert.Equal(t, tt.status, e.Status)
				assert.Equal(t, `Method "review.get" returned status 502`, e.Error())
			}
		})
	}
}

func TestClient_ErrorMessageFallback(t *testing.T) {
	srv := rawServer(t, http.StatusOK, `{"jsonrpc":"2.0","id":1,"error":{"code":42}}`)
	c := client.New(client.Config{URL: srv.URL})

	_, err := c.Call(context.Background(), "x.y", nil)
	e := requireKind(t, err, client.KindRPC)
	assert.Equal(t, `Method "x.y" returned code: 42`, e.Error())
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := client.New(client.Config{URL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Call(context.Background(), "slow", nil)
	e := requireKind(t, err, client.KindConnection)
	assert.NotNil(t, e.Unwrap())
}

func TestClient_HeadersAndQuery(t *testing.T) {
	srv := fixtures.NewMockRPCServer()
	defer srv.Close()
	srv.SetResult("project.list", []string{})

	c := client.New(client.Config{
		URL:      srv.URL(),
		User:     "admin",
		Password: "secret",
		Tokens:   client.NewMemoryTokenStore("tok-1"),
	})
	c.SetHeader("X-Client", "rpcwire-test")

	_, err := c.Call(context.Background(), "project.list", nil)
	require.NoError(t, err)

	r := srv.Received()[0]
	assert.Equal(t, "project.list", r.Query["method"])
	assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", r.Header.Get("Accept"))
	assert.Equal(t, "tok-1", r.Header.Get("Authorization2"))
	assert.Equal(t, "rpcwire-test", r.Header.Get("X-Client"))
	assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:secret")), r.Header.Get("Authorization"))
}

func TestClient_CustomSessionHeader(t *testing.T) {
	c := client.New(client.Config{
		URL:           "http://localhost",
		SessionHeader: "X-Session",
		Tokens:        client.NewMemoryTokenStore("abc"),
	})
	headers := c.Headers()
	assert.Equal(t, "abc", headers["X-Session"])
	assert.NotContains(t, headers, "Authorization2")
	assert.NotContains(t, headers, "Authorization")
}

func TestClient_ResponseHook(t *testing.T) {
	srv := fixtures.NewMockRPCServer()
	defer srv.Close()
	srv.SetResult("echo", "ok")

	var (
		mu   sync.Mutex
		logs []client.ResponseLog
	)
	c := client.New(client.Config{
		URL:    srv.URL(),
		Tokens: client.NewMemoryTokenStore("tok"),
		OnResponse: func(l client.ResponseLog) {
			mu.Lock()
			logs = append(logs, l)
			mu.Unlock()
		},
	})

	_, err := c.Call(context.Background(), "echo", []any{1})
	require.NoError(t, err)
	_, err = c.Call(context.Background(), "missing", nil)
	requireKind(t, err, client.KindRPC)

	require.Len(t, logs, 2)
	assert.Equal(t, "echo", logs[0].Method)
	assert.Equal(t, []any{1}, logs[0].Params)
	assert.Equal(t, "tok", logs[0].Token)
	assert.Equal(t, "tok", logs[0].Headers["Authorization2"])
	assert.False(t, logs[0].StartTime.IsZero())
	assert.NotEmpty(t, logs[0].RequestID)
	require.NotNil(t, logs[0].Response)
	assert.JSONEq(t, `"ok"`, string(logs[0].Response.Result))
	require.NotNil(t, logs[1].Response.Error, "rpc errors are observed before they are returned")
}

func mustField(t *testing.T, body json.RawMessage, key string) json.RawMessage {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &fields))
	return fields[key]
}

func TestClient_LimiterRejection(t *testing.T) {
	srv := fixtures.NewMockRPCServer()
	defer srv.Close()

	c := client.New(client.Config{URL: srv.URL(), Limiter: rate.NewLimiter(1, 0)})
	_, err := c.Call(context.Background(), "echo", nil)
	requireKind(t, err, client.KindConnection)
	assert.Empty(t, srv.Received())
}
