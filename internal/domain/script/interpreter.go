// Package script builds JSON-RPC batches from JavaScript.
package script

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/dop251/goja"
	"github.com/rpcwire/rpcwire/internal/client"
	"github.com/rpcwire/rpcwire/internal/domain/rpc"
	"github.com/rpcwire/rpcwire/internal/logger"
)

// BatchScript runs a JS function body that returns the slots of one batch.
// The script sees `args`, `log(msg)`, `rpc.call(method, params)` and
// `rpc.notify(method, params)`. Falsy array entries reserve a slot without
// sending anything.
type BatchScript struct {
	name   string
	source string
	args   map[string]interface{}

	slots []*rpc.Request
	err   error
}

func NewBatchScript(name, source string, args map[string]interface{}) *BatchScript {
	return &BatchScript{name: name, source: source, args: args}
}

// LoadBatchScript reads the script at path.
func LoadBatchScript(path string, args map[string]interface{}) (*BatchScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return NewBatchScript(path, string(data), args), nil
}

// Producer returns a client.Producer that evaluates the script. A script
// error produces an empty batch; it is reported by Err.
func (s *BatchScript) Producer(ctx context.Context) client.Producer {
	return func(b *client.Batch) []*rpc.Request {
		s.slots, s.err = s.evaluate(ctx, b)
		if s.err != nil {
			return nil
		}
		return s.slots
	}
}

// Run evaluates the script and sends the batch it describes.
func (s *BatchScript) Run(ctx context.Context, c *client.Client) ([]json.RawMessage, error) {
	results, err := c.Batch(ctx, s.Producer(ctx))
	if s.err != nil {
		return nil, s.err
	}
	return results, err
}

// Slots returns the requests of the last evaluation, nil for skipped slots.
func (s *BatchScript) Slots() []*rpc.Request {
	return s.slots
}

// Err returns the error of the last evaluation.
func (s *BatchScript) Err() error {
	return s.err
}

func (s *BatchScript) evaluate(ctx context.Context, b *client.Batch) ([]*rpc.Request, error) {
	vm := goja.New()
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	args := s.args
	if args == nil {
		args = map[string]interface{}{}
	}
	vm.Set("args", args)

	vm.Set("log", func(msg interface{}) {
		logger.Infof("[script %s] %v", s.name, msg)
	})

	vm.Set("rpc", map[string]interface{}{
		"call": func(method string, params interface{}) *rpc.Request {
			return b.Call(method, params)
		},
		"notify": func(method string, params interface{}) *rpc.Request {
			return b.Notify(method, params)
		},
	})

	// Wrap script in an IIFE to support 'return'
	fullScript := fmt.Sprintf("(function() { %s\n})()", s.source)
	value, err := vm.RunScript(s.name, fullScript)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", s.name, err)
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, fmt.Errorf("script %s: must return an array of requests", s.name)
	}

	exported, ok := value.Export().([]interface{})
	if !ok {
		return nil, fmt.Errorf("script %s: must return an array of requests, got %T", s.name, value.Export())
	}

	slots := make([]*rpc.Request, len(exported))
	for i, v := range exported {
		switch entry := v.(type) {
		case *rpc.Request:
			slots[i] = entry
		case nil:
		case bool:
			if entry {
				return nil, fmt.Errorf("script %s: slot %d: true is not a request", s.name, i)
			}
		case string:
			if entry != "" {
				return nil, fmt.Errorf("script %s: slot %d: %q is not a request", s.name, i, entry)
			}
		case int64:
			if entry != 0 {
				return nil, fmt.Errorf("script %s: slot %d: %d is not a request", s.name, i, entry)
			}
		case float64:
			if entry != 0 && !math.IsNaN(entry) {
				return nil, fmt.Errorf("script %s: slot %d: %v is not a request", s.name, i, entry)
			}
		default:
			return nil, fmt.Errorf("script %s: slot %d: %T is not a request", s.name, i, v)
		}
	}
	return slots, nil
}
