package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rpcwire/rpcwire/internal/domain/rpc"
	"github.com/rpcwire/rpcwire/internal/logger"
)

// Call invokes method and returns its raw result. An empty response body
// yields a nil result and a nil error.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.do(ctx, c.newCall(method, params))
}

// Notify sends a notification. No response body is required.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	_, err := c.do(ctx, c.newNotify(method, params))
	return err
}

// CallResult invokes method and decodes the result into v.
func (c *Client) CallResult(ctx context.Context, method string, params any, v any) error {
	result, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if len(result) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(result, v); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, req *rpc.Request) (json.RawMessage, error) {
	start := time.Now()
	r, err := c.fetch(ctx, singlePayload(req), false)
	if err != nil {
		return nil, err
	}
	duration := time.Since(start)

	logger.Debugf("%s %dms", req.Method, duration.Milliseconds())
	c.observe(ResponseLog{
		Method:    req.Method,
		Params:    req.Params,
		StartTime: start,
		Duration:  duration,
		Response:  r.single,
		RequestID: r.requestID,
	})

	if r.single == nil {
		return nil, nil
	}
	if r.single.Error != nil {
		logger.Debugf("rpc error %s: %d %s", req.Method, r.single.Error.Code, r.single.Error.Message)
		return nil, rpcError(req.Method, req.Params, r.single.Error, c.Headers())
	}
	return r.single.Result, nil
}
