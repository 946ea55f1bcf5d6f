package metrics_test

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rpcwire/rpcwire/internal/client"
	"github.com/rpcwire/rpcwire/internal/domain/rpc"
	"github.com/rpcwire/rpcwire/internal/fixtures"
	"github.com/rpcwire/rpcwire/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Observe(t *testing.T) {
	c := metrics.NewCollector()

	c.Observe(client.ResponseLog{
		Method:   "review.get",
		Duration: 120 * time.Millisecond,
		Response: &rpc.Response{Result: []byte(`{}`)},
	})
	c.Observe(client.ResponseLog{
		Method:   "review.get",
		Duration: 80 * time.Millisecond,
		Response: &rpc.Response{Error: rpc.NewError(rpc.MethodNotFound, "Method not found", nil)},
	})
	// second member of a batch: counted, no duration sample
	c.Observe(client.ResponseLog{Method: "review.list", Batch: "1-2"})

	expected := `
# HELP rpcwire_responses_total Resolved calls by method and outcome.
# TYPE rpcwire_responses_total counter
rpcwire_responses_total{method="review.get",outcome="error"} 1
rpcwire_responses_total{method="review.get",outcome="ok"} 1
rpcwire_responses_total{method="review.list",outcome="empty"} 1
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "rpcwire_responses_total"))

	expected = `
# HELP rpcwire_rpc_errors_total JSON-RPC error responses by method and code.
# TYPE rpcwire_rpc_errors_total counter
rpcwire_rpc_errors_total{code="-32601",method="review.get"} 1
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "rpcwire_rpc_errors_total"))

	count, err := testutil.GatherAndCount(c.Registry(), "rpcwire_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "only review.get has duration samples")
}

func TestCollector_ObserveError(t *testing.T) {
	c := metrics.NewCollector()

	c.ObserveError("a.b", nil)
	c.ObserveError("a.b", &client.Error{Kind: client.KindServer, Status: 502})
	c.ObserveError("a.b", &client.Error{Kind: client.KindServer, Status: 503})
	c.ObserveError("a.b", context.Canceled)

	expected := `
# HELP rpcwire_failures_total Failed calls by method and error kind.
# TYPE rpcwire_failures_total counter
rpcwire_failures_total{kind="other",method="a.b"} 1
rpcwire_failures_total{kind="server",method="a.b"} 2
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "rpcwire_failures_total"))
}

func TestCollector_WiredAsHook(t *testing.T) {
	srv := fixtures.NewMockRPCServer()
	defer srv.Close()
	srv.SetResult("echo", "ok")

	c := metrics.NewCollector()
	rc := client.New(client.Config{URL: srv.URL(), OnResponse: c.Observe})

	_, err := rc.Call(context.Background(), "echo", nil)
	require.NoError(t, err)
	_, err = rc.Batch(context.Background(), func(b *client.Batch) []*rpc.Request {
		return []*rpc.Request{b.Call("echo", nil), b.Call("echo", nil)}
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rpcwire_responses_total{method="echo",outcome="ok"} 3`)
	assert.Contains(t, string(body), `rpcwire_request_duration_seconds_count{method="echo"} 2`)
}
