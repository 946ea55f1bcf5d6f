package rpc

import (
	"bytes"
	"encoding/json"
)

// ValidResponse reports whether raw is a conforming response envelope.
//
// The error member must be an object but its code, message and data are not
// checked because misbehaving servers omit them. A response carrying both
// result and error is accepted.
func ValidResponse(raw json.RawMessage) bool {
	var fields map[string]json.RawMessage
	if !isKind(raw, '{') || json.Unmarshal(raw, &fields) != nil {
		return false
	}

	var version string
	if err := json.Unmarshal(fields["jsonrpc"], &version); err != nil || version != Version {
		return false
	}

	id, ok := fields["id"]
	if !ok || !(isKind(id, '"') || isNumber(id) || isNull(id)) {
		return false
	}

	_, hasResult := fields["result"]
	errObj, hasError := fields["error"]
	if !hasResult && !hasError {
		return false
	}
	if hasError && !isKind(errObj, '{') {
		return false
	}

	return true
}

// IsArray reports whether raw holds a JSON array.
func IsArray(raw json.RawMessage) bool {
	return isKind(raw, '[')
}

// ProbeID extracts the id member of a possibly malformed envelope.
func ProbeID(raw json.RawMessage) json.RawMessage {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if !isKind(raw, '{') || json.Unmarshal(raw, &probe) != nil {
		return nil
	}
	return probe.ID
}

func isKind(raw json.RawMessage, first byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == first
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isNumber(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	c := raw[0]
	return c == '-' || (c >= '0' && c <= '9')
}
