package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rpcwire/rpcwire/internal/domain/rpc"
	"github.com/rpcwire/rpcwire/internal/logger"
)

// payload is one logical send: a single request or a batch.
type payload struct {
	requests []*rpc.Request
	batch    bool
}

func singlePayload(req *rpc.Request) payload {
	return payload{requests: []*rpc.Request{req}}
}

func batchPayload(reqs []*rpc.Request) payload {
	return payload{requests: reqs, batch: true}
}

func (p payload) body() any {
	if p.batch {
		return p.requests
	}
	return p.requests[0]
}

// method returns the method name, comma-joined for batches.
func (p payload) method() string {
	names := make([]string, len(p.requests))
	for i, r := range p.requests {
		names[i] = r.Method
	}
	return strings.Join(names, ",")
}

func (p payload) params() any {
	if !p.batch {
		return p.requests[0].Params
	}
	params := make([]any, len(p.requests))
	for i, r := range p.requests {
		params[i] = r.Params
	}
	return params
}

func (p payload) label() string {
	if p.batch {
		return "batch"
	}
	return p.requests[0].Method
}

func (p payload) allNotifications() bool {
	for _, r := range p.requests {
		if !r.IsNotification() {
			return false
		}
	}
	return true
}

func (p payload) find(key string) *rpc.Request {
	if key == "" {
		return nil
	}
	for _, r := range p.requests {
		if r.Key() == key {
			return r
		}
	}
	return nil
}

// reply is a validated answer to a payload. Both fields are nil for empty bodies.
type reply struct {
	single    *rpc.Response
	batch     []*rpc.Response
	requestID string
}

func (r *reply) hasAuthFailure() bool {
	if r.single != nil && r.single.Error != nil && r.single.Error.Code == rpc.Unauthorized {
		return true
	}
	for _, resp := range r.batch {
		if resp.Error != nil && resp.Error.Code == rpc.Unauthorized {
			return true
		}
	}
	return false
}

func (c *Client) endpoint(p payload) (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if p.batch {
		q.Set("methods", p.method())
	} else {
		q.Set("method", p.method())
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// fetch performs one POST for p. retried marks the resend after a token
// refresh; a 401 on a retried send is returned to the caller.
func (c *Client) fetch(ctx context.Context, p payload, retried bool) (*reply, error) {
	method, params := p.method(), p.params()
	logger.Debugf("fetch %s", p.label())

	c.awaitRefresh(ctx)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, connectionError(method, params, err)
		}
	}

	body, err := json.Marshal(p.body())
	if err != nil {
		return nil, connectionError(method, params, fmt.Errorf("encode request: %w", err))
	}
	endpoint, err := c.endpoint(p)
	if err != nil {
		return nil, connectionError(method, params, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, connectionError(method, params, err)
	}

	headers := c.Headers()
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, connectionError(method, params, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, connectionError(method, params, err)
	}

	if resp.StatusCode >= 400 {
		logger.Warnf("server error %s: status %d", method, resp.StatusCode)
		return nil, serverError(method, params, resp.StatusCode, headers)
	}

	r, err := decodeReply(p, resp.StatusCode, data, headers)
	if err != nil {
		return nil, err
	}
	r.requestID = requestID

	sentToken := headers[c.sessionHeader]
	if !retried && c.refresher != nil && sentToken != "" && r.hasAuthFailure() {
		return c.refresh(ctx, p, sentToken)
	}
	return r, nil
}
