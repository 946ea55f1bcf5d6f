package commands

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseParams builds call params from key=value pairs or a JSON document.
// Values that parse as JSON keep their type, anything else is a string.
func parseParams(pairs []string, raw string) (any, error) {
	if raw != "" {
		if len(pairs) > 0 {
			return nil, fmt.Errorf("use either --params or key=value arguments")
		}
		var params any
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return nil, fmt.Errorf("invalid --params: %w", err)
		}
		switch params.(type) {
		case map[string]any, []any:
			return params, nil
		default:
			return nil, fmt.Errorf("--params must be a JSON object or array")
		}
	}

	params := make(map[string]any, len(pairs))
	for _, arg := range pairs {
		kv := strings.SplitN(arg, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, fmt.Errorf("invalid argument %q, expected key=value", arg)
		}
		params[kv[0]] = parseValue(kv[1])
	}
	return params, nil
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

// parseBatchArg splits "method" or "method=JSON" into a method and params.
func parseBatchArg(arg string) (string, any, error) {
	method, raw, found := strings.Cut(arg, "=")
	if method == "" {
		return "", nil, fmt.Errorf("invalid batch entry %q", arg)
	}
	if !found {
		return method, nil, nil
	}
	var params any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return "", nil, fmt.Errorf("batch entry %s: invalid params: %w", method, err)
	}
	return method, params, nil
}
