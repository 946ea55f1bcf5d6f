package rpc

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Version is the only protocol marker accepted on the wire.
const Version = "2.0"

// Standard JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Unauthorized is the application error code that triggers a session token refresh.
const Unauthorized = 401

// Request represents a JSON-RPC request or, when ID is nil, a notification.
type Request struct {
	JSONRPC string  `json:"jsonrpc"`
	ID      *uint64 `json:"id,omitempty"`
	Method  string  `json:"method"`
	Params  any     `json:"params"`
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// Key returns the correlation key of the request id, or "" for notifications.
func (r *Request) Key() string {
	if r == nil || r.ID == nil {
		return ""
	}
	return strconv.FormatUint(*r.ID, 10)
}

// Response represents a JSON-RPC response. Result keeps the raw bytes so that
// an explicit null result stays distinguishable from an absent one.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// Key returns the correlation key of the response id. Null ids yield "".
func (r *Response) Key() string {
	if r == nil {
		return ""
	}
	return IDKey(r.ID)
}

// ErrorObject represents a standard JSON-RPC error object.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ErrorObject) Error() string {
	return e.Message
}

// UnmarshalJSON accepts loosely typed error members. Integral numeric codes
// such as 401.0 decode to their int value and any other code decodes to zero.
// A message that is not a string keeps its raw JSON text.
func (e *ErrorObject) UnmarshalJSON(data []byte) error {
	var raw struct {
		Code    json.RawMessage `json:"code"`
		Message json.RawMessage `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = ErrorObject{Data: raw.Data}
	if n, ok := integral(raw.Code); ok {
		e.Code = int(n)
	}

	msg := bytes.TrimSpace(raw.Message)
	switch {
	case len(msg) == 0 || bytes.Equal(msg, []byte("null")):
	case msg[0] == '"':
		if err := json.Unmarshal(msg, &e.Message); err != nil {
			e.Message = string(msg)
		}
	default:
		e.Message = string(msg)
	}
	return nil
}

// NewError builds an error object, encoding data when it is not already raw JSON.
func NewError(code int, message string, data any) *ErrorObject {
	e := &ErrorObject{Code: code, Message: message}
	switch v := data.(type) {
	case nil:
	case json.RawMessage:
		e.Data = v
	default:
		if b, err := json.Marshal(v); err == nil {
			e.Data = b
		}
	}
	return e
}

// IDKey normalizes a raw id so that numeric ids match the keys produced by
// Request.Key. String ids keep their quotes and never collide with numbers.
func IDKey(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		return string(raw)
	}
	if n, ok := integral(raw); ok {
		return strconv.FormatInt(n, 10)
	}
	return string(raw)
}

// integral reports the value of a JSON number with no fractional part.
func integral(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' {
		return 0, false
	}
	n := json.Number(raw)
	if i, err := n.Int64(); err == nil {
		return i, true
	}
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		return int64(f), true
	}
	return 0, false
}
