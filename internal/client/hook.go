package client

import (
	"time"

	"github.com/rpcwire/rpcwire/internal/domain/rpc"
	"github.com/rpcwire/rpcwire/internal/logger"
)

// ResponseLog is passed to the ResponseHook after a call resolves. For batch
// entries Batch holds the joined ids and only the first entry carries Duration.
type ResponseLog struct {
	Method    string
	Params    any
	StartTime time.Time
	Duration  time.Duration
	Response  *rpc.Response
	Batch     string
	RequestID string
	Token     string
	Headers   map[string]string
}

// ResponseHook observes responses. It must not block.
type ResponseHook func(ResponseLog)

// ChainHooks calls every non-nil hook in order.
func ChainHooks(hooks ...ResponseHook) ResponseHook {
	return func(l ResponseLog) {
		for _, h := range hooks {
			if h != nil {
				h(l)
			}
		}
	}
}

func (c *Client) observe(l ResponseLog) {
	if l.Duration > SlowRequestThreshold {
		logger.Warnf("slow request %s: %d", l.Method, l.Duration.Milliseconds())
	}

	hook := c.hook()
	if hook == nil {
		return
	}
	headers := c.Headers()
	l.Headers = headers
	l.Token = headers[c.sessionHeader]
	hook(l)
}
