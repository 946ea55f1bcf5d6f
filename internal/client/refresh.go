package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpcwire/rpcwire/internal/logger"
)

// RefreshRequest describes the send that hit the authorization failure.
// Body is a *rpc.Request or a []*rpc.Request.
type RefreshRequest struct {
	Headers map[string]string
	Body    any
}

// RefreshFunc obtains a new session token. An empty token with a nil error
// means the session cannot be renewed.
type RefreshFunc func(ctx context.Context, req RefreshRequest) (string, error)

// refreshHandle is resolved exactly once by the goroutine that installed it.
type refreshHandle struct {
	done chan struct{}
	err  error
}

func newRefreshHandle() *refreshHandle {
	return &refreshHandle{done: make(chan struct{})}
}

func (h *refreshHandle) resolve(err error) {
	h.err = err
	close(h.done)
}

func (h *refreshHandle) wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// joinRefresh returns the in-flight handle or installs a new one. Only the
// caller that gets leader == true may resolve it.
func (c *Client) joinRefresh() (h *refreshHandle, leader bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refreshing != nil {
		return c.refreshing, false
	}
	c.refreshing = newRefreshHandle()
	return c.refreshing, true
}

// awaitRefresh blocks a send that is about to start while a refresh is in
// flight. A failed refresh does not stop the send.
func (c *Client) awaitRefresh(ctx context.Context) {
	c.mu.Lock()
	h := c.refreshing
	c.mu.Unlock()
	if h == nil {
		return
	}
	if err := h.wait(ctx); err != nil {
		logger.Warnf("failed by refresh token operation: %v", err)
	}
}

// refresh renews the session token once for all concurrent authorization
// failures and resends p a single time.
func (c *Client) refresh(ctx context.Context, p payload, staleToken string) (*reply, error) {
	h, leader := c.joinRefresh()
	if !leader {
		logger.Debugf("wait refresh %s", p.label())
		if err := h.wait(ctx); err != nil {
			return nil, asError(p, err)
		}
		return c.fetch(ctx, p, true)
	}

	logger.Debugf("refresh %s", p.label())
	refreshed, err := c.renewToken(ctx, p, staleToken)

	c.mu.Lock()
	c.refreshing = nil
	switch {
	case err != nil:
		c.refreshedAt = time.Time{}
	case refreshed:
		c.refreshedAt = time.Now()
	}
	c.mu.Unlock()
	h.resolve(err)

	if err != nil {
		logger.Warnf("refresh failed %s: %v", p.label(), err)
		return nil, err
	}
	return c.fetch(ctx, p, true)
}

func (c *Client) renewToken(ctx context.Context, p payload, staleToken string) (bool, error) {
	// a refresh finished after this send went out
	if c.tokens.Token() != staleToken {
		return false, nil
	}

	// waiters share the outcome, so it outlives the leader's context
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	token, err := c.refresher(rctx, RefreshRequest{Headers: c.Headers(), Body: p.body()})
	if err != nil {
		return false, asError(p, err)
	}
	logger.Redact(token)
	if err := c.tokens.SetToken(token); err != nil {
		return false, connectionError(p.method(), p.params(), fmt.Errorf("store refreshed token: %w", err))
	}

	if token == "" && c.interactive && c.onSessionInvalidated != nil {
		c.onSessionInvalidated()
	}
	return true, nil
}

func asError(p payload, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return connectionError(p.method(), p.params(), err)
}
