package output

import (
	"bytes"
	"encoding/json"
	"strings"
)

// CallResult is the raw result of one call as printed by the CLI.
type CallResult struct {
	Method string          `json:"method"`
	Raw    json.RawMessage `json:"result"`
}

func NewCallResult(method string, raw json.RawMessage) *CallResult {
	return &CallResult{
		Method: method,
		Raw:    raw,
	}
}

// Text renders strings unquoted and everything else as indented JSON.
func (r *CallResult) Text() string {
	if r.IsEmpty() {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Raw, &s); err == nil {
		return s
	}
	return r.indent()
}

// JSON renders the result with its method.
func (r *CallResult) JSON() (string, error) {
	data, err := json.MarshalIndent(struct {
		Method string          `json:"method"`
		Result json.RawMessage `json:"result"`
	}{r.Method, r.rawOrNull()}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Compact renders the result exactly as a single JSON line.
func (r *CallResult) Compact() string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, r.rawOrNull()); err != nil {
		return string(r.Raw)
	}
	return buf.String()
}

func (r *CallResult) IsEmpty() bool {
	return len(bytes.TrimSpace(r.Raw)) == 0 || string(r.Raw) == "null"
}

func (r *CallResult) indent() string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.Raw, "", "  "); err != nil {
		return strings.TrimSpace(string(r.Raw))
	}
	return buf.String()
}

func (r *CallResult) rawOrNull() json.RawMessage {
	if len(bytes.TrimSpace(r.Raw)) == 0 {
		return json.RawMessage("null")
	}
	return r.Raw
}
