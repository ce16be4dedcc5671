package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// DefaultScriptTimeout bounds variables script execution when no explicit
// timeout is configured.
const DefaultScriptTimeout = 10 * time.Second

// Evaluator executes recipe variables scripts in a sandboxed Starlark
// thread. Scripts receive the compile-time inputs as predeclared names and
// export variables through their module globals; names starting with "_"
// stay private to the script.
type Evaluator struct {
	timeout time.Duration
}

// NewEvaluator creates a script evaluator. A zero timeout selects
// DefaultScriptTimeout.
func NewEvaluator(timeout time.Duration) *Evaluator {
	if timeout == 0 {
		timeout = DefaultScriptTimeout
	}
	return &Evaluator{timeout: timeout}
}

// Evaluate runs script with the given inputs and returns the exported
// globals converted to plain Go values. Execution is cut off at the
// evaluator timeout or when ctx is done, whichever comes first.
func (e *Evaluator) Evaluate(ctx context.Context, script string, input map[string]any) (*ScriptResult, error) {
	start := time.Now()

	resultCh := make(chan map[string]any, 1)
	errCh := make(chan error, 1)

	go func() {
		vars, err := e.evaluateSync(script, input)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- vars
	}()

	select {
	case vars := <-resultCh:
		return &ScriptResult{Vars: vars, ExecutionTime: time.Since(start)}, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("variables script cancelled: %w", ctx.Err())
	case <-time.After(e.timeout):
		return nil, fmt.Errorf("variables script timed out after %v", e.timeout)
	}
}

// evaluateSync runs the script on the calling goroutine.
func (e *Evaluator) evaluateSync(script string, input map[string]any) (map[string]any, error) {
	thread := &starlark.Thread{
		Name: "orgforge-variables",
		// Suppress print output from scripts.
		Print: func(*starlark.Thread, string) {},
	}

	predeclared := starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
	for name, value := range input {
		sv, err := toStarlarkValue(value)
		if err != nil {
			return nil, fmt.Errorf("converting input %q: %w", name, err)
		}
		predeclared[name] = sv
	}

	globals, err := starlark.ExecFile(thread, "variables.star", script, predeclared)
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return nil, fmt.Errorf("variables script failed: %s", evalErr.Backtrace())
		}
		return nil, fmt.Errorf("variables script failed: %w", err)
	}

	vars := make(map[string]any)
	for name, value := range globals {
		if strings.HasPrefix(name, "_") {
			continue
		}
		// Helper functions are usable inside the script but are not
		// exported as variables.
		if _, isCallable := value.(starlark.Callable); isCallable {
			continue
		}
		goVal, err := fromStarlarkValue(value)
		if err != nil {
			return nil, fmt.Errorf("converting variable %q: %w", name, err)
		}
		vars[name] = goVal
	}
	return vars, nil
}

// toStarlarkValue converts a Go value into its Starlark representation.
func toStarlarkValue(v any) (starlark.Value, error) {
	switch val := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []string:
		elems := make([]starlark.Value, len(val))
		for i, item := range val {
			elems[i] = starlark.String(item)
		}
		return starlark.NewList(elems), nil
	case []any:
		elems := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			elems[i] = sv
		}
		return starlark.NewList(elems), nil
	case map[string]string:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			if err := dict.SetKey(starlark.String(k), starlark.String(item)); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported input type %T", v)
	}
}

// fromStarlarkValue converts a Starlark value back into a plain Go value.
func fromStarlarkValue(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		if i, ok := val.Int64(); ok {
			return i, nil
		}
		return val.String(), nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		out := make([]any, 0, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case starlark.Tuple:
		out := make([]any, 0, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case *starlark.Dict:
		out := make(map[string]any, val.Len())
		for _, key := range val.Keys() {
			str, ok := starlark.AsString(key)
			if !ok {
				return nil, fmt.Errorf("dict key %s is not a string", key.String())
			}
			item, _, err := val.Get(key)
			if err != nil {
				return nil, err
			}
			goVal, err := fromStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			out[str] = goVal
		}
		return out, nil
	case *starlarkstruct.Struct:
		dict := starlark.StringDict{}
		val.ToStringDict(dict)
		out := make(map[string]any, len(dict))
		for name, item := range dict {
			goVal, err := fromStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			out[name] = goVal
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported variable type %s", v.Type())
	}
}
