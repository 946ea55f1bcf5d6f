package client

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rpcwire/rpcwire/internal/domain/rpc"
)

// Batch builds requests for one batching window. Its methods never perform
// I/O; the requests they return are sent together by Client.Batch.
type Batch struct {
	c *Client
}

// Call builds a request that takes the next id of the client.
func (b *Batch) Call(method string, params any) *rpc.Request {
	return b.c.newCall(method, params)
}

// Notify builds a notification. Its slot always resolves to nil.
func (b *Batch) Notify(method string, params any) *rpc.Request {
	return b.c.newNotify(method, params)
}

// Producer returns the requests of one batch. A nil entry reserves a slot
// without sending anything.
type Producer func(b *Batch) []*rpc.Request

// Batch runs produce, sends every non-nil request in one POST and returns a
// slice aligned with the producer output. Skipped slots, notifications and
// ids the server did not answer resolve to nil. If any member fails, the
// whole batch fails; members that already took effect on the server are not
// undone.
func (c *Client) Batch(ctx context.Context, produce Producer) ([]json.RawMessage, error) {
	slots := produce(&Batch{c: c})
	results := make([]json.RawMessage, len(slots))

	sent := make([]*rpc.Request, 0, len(slots))
	for _, req := range slots {
		if req != nil {
			sent = append(sent, req)
		}
	}
	if len(sent) == 0 {
		return results, nil
	}

	p := batchPayload(sent)
	start := time.Now()
	r, err := c.fetch(ctx, p, false)
	if err != nil {
		return nil, err
	}
	duration := time.Since(start)

	byID := make(map[string]*rpc.Response, len(r.batch))
	for _, resp := range r.batch {
		key := resp.Key()
		if key == "" {
			continue
		}
		if _, seen := byID[key]; !seen {
			byID[key] = resp
		}
	}

	if err := c.batchError(p, r.batch, byID); err != nil {
		return nil, err
	}

	for i, req := range slots {
		if req == nil || req.IsNotification() {
			continue
		}
		if resp, ok := byID[req.Key()]; ok {
			results[i] = resp.Result
		}
	}

	c.observeBatch(sent, byID, start, duration, r.requestID)
	return results, nil
}

// batchError picks the error of the lowest-index request that failed. Errors
// that correlate to no request are reported in response order afterwards.
func (c *Client) batchError(p payload, responses []*rpc.Response, byID map[string]*rpc.Response) error {
	for _, req := range p.requests {
		if resp, ok := byID[req.Key()]; ok && resp.Error != nil {
			return rpcError(req.Method, req.Params, resp.Error, c.Headers())
		}
	}
	for _, resp := range responses {
		if resp.Error == nil {
			continue
		}
		if req := p.find(resp.Key()); req != nil {
			return rpcError(req.Method, req.Params, resp.Error, c.Headers())
		}
		return rpcError(p.method(), p.params(), resp.Error, c.Headers())
	}
	return nil
}

func (c *Client) observeBatch(sent []*rpc.Request, byID map[string]*rpc.Response, start time.Time, duration time.Duration, requestID string) {
	ids := make([]string, 0, len(sent))
	for _, req := range sent {
		if key := req.Key(); key != "" {
			ids = append(ids, key)
		}
	}
	batchID := strings.Join(ids, "-")

	for i, req := range sent {
		l := ResponseLog{
			Method:    req.Method,
			Params:    req.Params,
			StartTime: start,
			Batch:     batchID,
			RequestID: requestID,
			Response:  byID[req.Key()],
		}
		if i == 0 {
			l.Duration = duration
		}
		c.observe(l)
	}
}
