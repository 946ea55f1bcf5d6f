package inference

import (
	"slices"
	"strings"
)

// InferCommand returns "call" when the first argument looks like a dotted
// method name rather than one of the known commands.
func InferCommand(args []string, known []string) (string, []string) {
	if len(args) == 0 {
		return "", args
	}

	first := args[0]
	if strings.HasPrefix(first, "-") || slices.Contains(known, first) {
		return "", args
	}

	// If contains dot, it's likely a method call: review.get
	if strings.Contains(first, ".") {
		return "call", args
	}

	return "", args
}
