package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rpcwire/rpcwire/internal/domain/rpc"
)

const maxBodyInError = 256

// decodeReply validates a response body against the payload that produced it.
// Malformed envelopes become PARSE_ERROR rpc errors; bodies that are not JSON
// at all are connection errors.
func decodeReply(p payload, status int, data []byte, headers map[string]string) (*reply, error) {
	method, params := p.method(), p.params()

	// 204 means the server sent no body at all
	if status == http.StatusNoContent {
		if p.allNotifications() {
			return &reply{}, nil
		}
		return nil, parseError(method, params, "Invalid JSON-RPC response", data, headers)
	}

	body := bytes.TrimSpace(data)
	if len(body) == 0 {
		return &reply{}, nil
	}
	if !json.Valid(body) {
		return nil, connectionError(method, params, fmt.Errorf("response is not JSON: %q", truncate(body)))
	}

	if !p.batch {
		if !rpc.ValidResponse(body) {
			return nil, parseError(method, params, "Invalid JSON-RPC response", body, headers)
		}
		var resp rpc.Response
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, parseError(method, params, "Invalid JSON-RPC response", body, headers)
		}
		return &reply{single: &resp}, nil
	}

	var elems []json.RawMessage
	if !rpc.IsArray(body) || json.Unmarshal(body, &elems) != nil {
		return nil, parseError(method, params, "Invalid JSON-RPC response array structure", body, headers)
	}

	responses := make([]*rpc.Response, 0, len(elems))
	for _, elem := range elems {
		var resp rpc.Response
		if !rpc.ValidResponse(elem) || json.Unmarshal(elem, &resp) != nil {
			blamedMethod, blamedParams := method, params
			if req := p.find(rpc.IDKey(rpc.ProbeID(elem))); req != nil {
				blamedMethod, blamedParams = req.Method, req.Params
			}
			return nil, parseError(blamedMethod, blamedParams, "Invalid JSON-RPC response in batch", body, headers)
		}
		responses = append(responses, &resp)
	}
	return &reply{batch: responses}, nil
}

func truncate(b []byte) string {
	if len(b) > maxBodyInError {
		return string(b[:maxBodyInError]) + "..."
	}
	return string(b)
}
