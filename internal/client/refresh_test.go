package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rpcwire/rpcwire/internal/client"
	"github.com/rpcwire/rpcwire/internal/domain/rpc"
	"github.com/rpcwire/rpcwire/internal/fixtures"
	"github.com/rpcwire/rpcwire/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// barrier holds the first n arrivals until all of them are present.
type barrier struct {
	n     int32
	count atomic.Int32
	ch    chan struct{}
}

func newBarrier(n int32) *barrier {
	return &barrier{n: n, ch: make(chan struct{})}
}

func (b *barrier) arrive() {
	c := b.count.Add(1)
	if c == b.n {
		close(b.ch)
	}
	if c <= b.n {
		<-b.ch
	}
}

// secureServer answers "secure" with 401 unless the session header is "new".
// The first `hold` requests are held until all of them arrived, so they are
// all sent with the stale token.
func secureServer(t *testing.T, hold int32) *fixtures.MockRPCServer {
	t.Helper()
	srv := fixtures.NewMockRPCServer()
	t.Cleanup(srv.Close)
	b := newBarrier(hold)
	srv.Handle("secure", func(_ json.RawMessage, h http.Header) (any, *rpc.ErrorObject) {
		if h.Get("Authorization2") == "new" {
			return "granted", nil
		}
		b.arrive()
		return nil, rpc.NewError(rpc.Unauthorized, "Unauthorized", nil)
	})
	return srv
}

func callConcurrently(c *client.Client, n int) ([]json.RawMessage, []error) {
	results := make([]json.RawMessage, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Call(context.Background(), "secure", nil)
		}(i)
	}
	wg.Wait()
	return results, errs
}

func TestRefresh_CoalescesConcurrentFailures(t *testing.T) {
	srv := secureServer(t, 2)

	var refreshes atomic.Int32
	c := client.New(client.Config{
		URL:    srv.URL(),
		Tokens: client.NewMemoryTokenStore("old"),
		Refresher: func(ctx context.Context, req client.RefreshRequest) (string, error) {
			refreshes.Add(1)
			assert.Equal(t, "old", req.Headers["Authorization2"])
			return "new", nil
		},
	})

	results, errs := callConcurrently(c, 2)
	for i := range errs {
		require.NoError(t, errs[i])
		assert.JSONEq(t, `"granted"`, string(results[i]))
	}
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, "new", c.Token())
	assert.False(t, c.RefreshedAt().IsZero())
}

func TestRefresh_FailureIsNotSticky(t *testing.T) {
	srv := secureServer(t, 2)

	errRefresh := errors.New("refresh endpoint down")
	var (
		refreshes atomic.Int32
		failing   atomic.Bool
	)
	failing.Store(true)
	c := client.New(client.Config{
		URL:    srv.URL(),
		Tokens: client.NewMemoryTokenStore("old"),
		Refresher: func(ctx context.Context, req client.RefreshRequest) (string, error) {
			refreshes.Add(1)
			if failing.Load() {
				return "", errRefresh
			}
			return "new", nil
		},
	})

	_, errs := callConcurrently(c, 2)
	for _, err := range errs {
		assert.ErrorIs(t, err, errRefresh)
		requireKind(t, err, client.KindConnection)
	}
	failedAttempts := refreshes.Load()
	assert.GreaterOrEqual(t, failedAttempts, int32(1))
	assert.Equal(t, "old", c.Token())
	assert.True(t, c.RefreshedAt().IsZero())

	failing.Store(false)
	result, err := c.Call(context.Background(), "secure", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `"granted"`, string(result))
	assert.Equal(t, failedAttempts+1, refreshes.Load())
}

func TestRefresh_RetriesOnlyOnce(t *testing.T) {
	srv := secureServer(t, 1)

	var refreshes atomic.Int32
	c := client.New(client.Config{
		URL:    srv.URL(),
		Tokens: client.NewMemoryTokenStore("old"),
		Refresher: func(ctx context.Context, req client.RefreshRequest) (string, error) {
			refreshes.Add(1)
			return "still-wrong", nil
		},
	})

	_, err := c.Call(context.Background(), "secure", nil)
	e := requireKind(t, err, client.KindRPC)
	assert.True(t, e.IsAuthFailure())
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Len(t, srv.Received(), 2)
}

func TestRefresh_SkippedWithoutToken(t *testing.T) {
	srv := secureServer(t, 1)

	var refreshes atomic.Int32
	c := client.New(client.Config{
		URL: srv.URL(),
		Refresher: func(ctx context.Context, req client.RefreshRequest) (string, error) {
			refreshes.Add(1)
			return "new", nil
		},
	})

	_, err := c.Call(context.Background(), "secure", nil)
	requireKind(t, err, client.KindRPC)
	assert.Zero(t, refreshes.Load())
}

func TestRefresh_EmptyTokenInvalidatesInteractiveSession(t *testing.T) {
	srv := secureServer(t, 1)

	var invalidated atomic.Int32
	c := client.New(client.Config{
		URL:         srv.URL(),
		Tokens:      client.NewMemoryTokenStore("old"),
		Interactive: true,
		Refresher: func(ctx context.Context, req client.RefreshRequest) (string, error) {
			return "", nil
		},
		OnSessionInvalidated: func() { invalidated.Add(1) },
	})

	_, err := c.Call(context.Background(), "secure", nil)
	e := requireKind(t, err, client.KindRPC)
	assert.Equal(t, rpc.Unauthorized, e.Code)
	assert.Equal(t, int32(1), invalidated.Load())
	assert.Empty(t, c.Token())

	received := srv.Received()
	require.Len(t, received, 2)
	assert.Empty(t, received[1].Header.Get("Authorization2"))
}

func TestRefresh_BatchWithUnauthorizedMember(t *testing.T) {
	srv := secureServer(t, 1)
	srv.SetResult("public", "open")

	var bodies []any
	c := client.New(client.Config{
		URL:    srv.URL(),
		Tokens: client.NewMemoryTokenStore("old"),
		Refresher: func(ctx context.Context, req client.RefreshRequest) (string, error) {
			bodies = append(bodies, req.Body)
			return "new", nil
		},
	})

	results, err := c.Batch(context.Background(), func(b *client.Batch) []*rpc.Request {
		return []*rpc.Request{b.Call("public", nil), b.Call("secure", nil)}
	})
	require.NoError(t, err)
	assert.JSONEq(t, `"open"`, string(results[0]))
	assert.JSONEq(t, `"granted"`, string(results[1]))

	require.Len(t, bodies, 1)
	reqs, ok := bodies[0].([]*rpc.Request)
	require.True(t, ok)
	assert.Len(t, reqs, 2)
	// the resend keeps the original ids
	assert.JSONEq(t, string(srv.Received()[0].Body), string(srv.Received()[1].Body))
}

func TestRefresh_FloatUnauthorizedCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization2") != "new" {
			w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":{"code":401.0,"message":"Unauthorized"}}`))
			return
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":"granted"}`))
	}))
	t.Cleanup(srv.Close)

	var refreshes atomic.Int32
	c := client.New(client.Config{
		URL:    srv.URL,
		Tokens: client.NewMemoryTokenStore("old"),
		Refresher: func(ctx context.Context, req client.RefreshRequest) (string, error) {
			refreshes.Add(1)
			return "new", nil
		},
	})

	result, err := c.Call(context.Background(), "secure", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `"granted"`, string(result))
	assert.Equal(t, int32(1), refreshes.Load())
}

func TestRefresh_OutlivesLeaderCancellation(t *testing.T) {
	srv := secureServer(t, 2)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	defer cancelLeader()

	var refreshErr atomic.Value
	c := client.New(client.Config{
		URL:    srv.URL(),
		Tokens: client.NewMemoryTokenStore("old"),
		Refresher: func(ctx context.Context, req client.RefreshRequest) (string, error) {
			cancelLeader()
			if err := ctx.Err(); err != nil {
				refreshErr.Store(err)
			}
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return "new", nil
		},
	})

	var (
		wg        sync.WaitGroup
		cancelled error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, cancelled = c.Call(leaderCtx, "secure", nil)
	}()
	result, err := c.Call(context.Background(), "secure", nil)
	wg.Wait()

	require.NoError(t, err)
	assert.JSONEq(t, `"granted"`, string(result))
	assert.Nil(t, refreshErr.Load())
	assert.Equal(t, "new", c.Token())
	assert.Error(t, cancelled)
}

func TestRefresh_RedactsTokens(t *testing.T) {
	srv := secureServer(t, 1)

	client.New(client.Config{
		URL:    srv.URL(),
		Tokens: client.NewMemoryTokenStore("initial-session-token"),
	})

	c := client.New(client.Config{
		URL:    srv.URL(),
		Tokens: client.NewMemoryTokenStore("stale-session-token"),
		Refresher: func(ctx context.Context, req client.RefreshRequest) (string, error) {
			return "renewed-session-token", nil
		},
	})
	_, _ = c.Call(context.Background(), "secure", nil)
	assert.Equal(t, "renewed-session-token", c.Token())

	tests := []struct {
		name   string
		secret string
	}{
		{name: "constructed", secret: "initial-session-token"},
		{name: "refreshed", secret: "renewed-session-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger.Warnf("token %s", tt.secret)
			logs := logger.GetLogs()
			require.NotEmpty(t, logs)
			assert.Equal(t, "token REDACTED", logs[len(logs)-1].Message)
		})
	}
}
