package client

import "github.com/rpcwire/rpcwire/internal/domain/rpc"

// newCall builds a request with the next id of this client.
func (c *Client) newCall(method string, params any) *rpc.Request {
	id := c.nextID.Add(1)
	return &rpc.Request{
		JSONRPC: rpc.Version,
		ID:      &id,
		Method:  method,
		Params:  normalizeParams(params),
	}
}

// newNotify builds a notification; it never consumes an id.
func (c *Client) newNotify(method string, params any) *rpc.Request {
	return &rpc.Request{
		JSONRPC: rpc.Version,
		Method:  method,
		Params:  normalizeParams(params),
	}
}

func normalizeParams(params any) any {
	if params == nil {
		return map[string]any{}
	}
	return params
}
