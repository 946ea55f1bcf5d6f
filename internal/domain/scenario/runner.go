// Package scenario runs scripted sequences of JSON-RPC calls defined in YAML
// and checks their outcomes.
package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rpcwire/rpcwire/internal/client"
	"github.com/rpcwire/rpcwire/internal/domain/rpc"
	"gopkg.in/yaml.v3"
)

// Scenario represents a scenario defined in YAML.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Timeout     string `yaml:"timeout"`
	Steps       []Step `yaml:"steps"`
}

// Step is one action. Action is call, notify, batch or wait.
type Step struct {
	Name   string                 `yaml:"name"`
	Action string                 `yaml:"action"`
	Method string                 `yaml:"method,omitempty"`
	Params interface{}            `yaml:"params,omitempty"`
	Batch  []BatchEntry           `yaml:"batch,omitempty"`
	Wait   string                 `yaml:"wait,omitempty"`
	Expect map[string]interface{} `yaml:"expect"`
}

// BatchEntry is one slot of a batch step. Skip reserves an empty slot.
type BatchEntry struct {
	Method string      `yaml:"method"`
	Params interface{} `yaml:"params,omitempty"`
	Notify bool        `yaml:"notify,omitempty"`
	Skip   bool        `yaml:"skip,omitempty"`
}

// Runner executes scenarios against one client.
type Runner struct {
	Client *client.Client
	Out    io.Writer
}

// LoadScenario loads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	return &s, nil
}

// Run executes a single scenario and stops at the first failed step.
func (r *Runner) Run(ctx context.Context, s *Scenario) error {
	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return fmt.Errorf("scenario %s: invalid timeout %q", s.Name, s.Timeout)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	r.printf("Running scenario: %s\n", s.Name)

	for i, step := range s.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("#%d %s", i+1, step.Action)
		}
		r.printf("  Step: %s\n", name)

		var (
			result json.RawMessage
			err    error
		)

		switch step.Action {
		case "call":
			result, err = r.Client.Call(ctx, step.Method, step.Params)
		case "notify":
			err = r.Client.Notify(ctx, step.Method, step.Params)
		case "batch":
			result, err = r.batch(ctx, step.Batch)
		case "wait":
			d, perr := time.ParseDuration(step.Wait)
			if perr != nil {
				return fmt.Errorf("step %s: invalid wait %q", name, step.Wait)
			}
			r.printf("  Waiting %s...\n", d)
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return fmt.Errorf("step %s: %w", name, ctx.Err())
			}
			continue
		default:
			return fmt.Errorf("unknown action: %s", step.Action)
		}

		if err := validateExpectations(step.Expect, result, err); err != nil {
			return fmt.Errorf("step %s expectation failed: %w", name, err)
		}
	}

	return nil
}

func (r *Runner) batch(ctx context.Context, entries []BatchEntry) (json.RawMessage, error) {
	results, err := r.Client.Batch(ctx, func(b *client.Batch) []*rpc.Request {
		slots := make([]*rpc.Request, len(entries))
		for i, e := range entries {
			switch {
			case e.Skip:
			case e.Notify:
				slots[i] = b.Notify(e.Method, e.Params)
			default:
				slots[i] = b.Call(e.Method, e.Params)
			}
		}
		return slots
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(results)
}

func (r *Runner) printf(format string, args ...interface{}) {
	if r.Out != nil {
		fmt.Fprintf(r.Out, format, args...)
	}
}

// validateExpectations checks one step outcome. Without an "error"
// expectation any failure fails the step.
func validateExpectations(expect map[string]interface{}, result json.RawMessage, callErr error) error {
	if _, ok := expect["error"]; !ok && callErr != nil {
		return callErr
	}

	for key, expectedValue := range expect {
		switch key {
		case "error":
			if err := checkError(expectedValue, callErr); err != nil {
				return err
			}
		case "result_contains":
			expectedStr := fmt.Sprint(expectedValue)
			if !strings.Contains(string(result), expectedStr) {
				return fmt.Errorf("expected result to contain '%s', but it didn't. Result: %s", expectedStr, string(result))
			}
		case "result_not_contains":
			unexpectedStr := fmt.Sprint(expectedValue)
			if strings.Contains(string(result), unexpectedStr) {
				return fmt.Errorf("expected result NOT to contain '%s', but it did. Result: %s", unexpectedStr, string(result))
			}
		case "result":
			if err := checkResult(expectedValue, result); err != nil {
				return err
			}
		case "result_empty":
			empty := len(result) == 0 || string(result) == "null"
			if want, _ := expectedValue.(bool); want != empty {
				return fmt.Errorf("expected result_empty %v, got %s", want, string(result))
			}
		default:
			return fmt.Errorf("unknown expectation %q", key)
		}
	}
	return nil
}

// checkError accepts null (no error), a JSON-RPC code, or one of the
// kinds "connection", "server" and "rpc".
func checkError(expected interface{}, err error) error {
	if expected == nil {
		if err != nil {
			return fmt.Errorf("expected no error, got: %v", err)
		}
		return nil
	}
	if err == nil {
		return fmt.Errorf("expected error %v, got none", expected)
	}

	var ce *client.Error
	if !errors.As(err, &ce) {
		return fmt.Errorf("expected error %v, got: %v", expected, err)
	}

	switch want := expected.(type) {
	case int:
		if ce.Kind != client.KindRPC || ce.Code != want {
			return fmt.Errorf("expected error code %d, got: %v", want, err)
		}
	case string:
		if string(ce.Kind) != want {
			return fmt.Errorf("expected %s error, got %s: %v", want, ce.Kind, err)
		}
	default:
		return fmt.Errorf("unsupported error expectation %v", expected)
	}
	return nil
}

func checkResult(expected interface{}, result json.RawMessage) error {
	want, err := json.Marshal(expected)
	if err != nil {
		return fmt.Errorf("expected result: %w", err)
	}
	var gotValue, wantValue interface{}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &gotValue); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	if err := json.Unmarshal(want, &wantValue); err != nil {
		return err
	}
	if !jsonEqual(gotValue, wantValue) {
		return fmt.Errorf("expected result %s, got %s", want, string(result))
	}
	return nil
}

func jsonEqual(a, b interface{}) bool {
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return string(ab) == string(bb)
}
