package executors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/orgforge/orgforge/pkg/telemetry"
)

// defaultWASMTimeout bounds plugin runs that set no explicit timeout.
const defaultWASMTimeout = 30 * time.Second

// WASM runs WASI plugin modules. The request payload is marshaled to
// JSON on the module's stdin; the module's stdout is its reply. Modules
// are compiled once and cached for the life of the executor.
type WASM struct {
	log     *telemetry.Logger
	runtime wazero.Runtime

	mu       sync.Mutex
	compiled map[string]wazero.CompiledModule
}

// NewWASM builds the wazero runtime with WASI instantiated. A nil
// logger falls back to the ambient logger.
func NewWASM(ctx context.Context, log *telemetry.Logger) (*WASM, error) {
	if log == nil {
		log = telemetry.FromContext(context.Background())
	}

	runtimeConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	return &WASM{
		log:      log.NewComponentLogger("executor-wasm"),
		runtime:  runtime,
		compiled: make(map[string]wazero.CompiledModule),
	}, nil
}

// Kind reports the executor kind.
func (w *WASM) Kind() Kind {
	return KindWASM
}

// Run instantiates the module and lets its entrypoint consume the JSON
// payload from stdin. The module's exit code comes back in the response.
func (w *WASM) Run(ctx context.Context, req Request) (*Response, error) {
	if req.Module == "" {
		return nil, fmt.Errorf("wasm executor: module path is required")
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultWASMTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	module, err := w.compile(ctx, req.Module)
	if err != nil {
		return nil, err
	}

	payload, err := w.encodePayload(req)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	moduleConfig := wazero.NewModuleConfig().
		WithName(""). // anonymous, so the same module can run repeatedly
		WithArgs(append([]string{filepath.Base(req.Module)}, req.Args...)...).
		WithStdin(bytes.NewReader(payload)).
		WithStdout(&stdout).
		WithStderr(&stderr)
	for k, v := range req.Env {
		moduleConfig = moduleConfig.WithEnv(k, v)
	}

	w.log.WithField("module", req.Module).Trace("running wasm plugin")

	started := time.Now()
	instance, runErr := w.runtime.InstantiateModule(ctx, module, moduleConfig)
	finished := time.Now()
	if instance != nil {
		instance.Close(ctx)
	}

	exitCode := 0
	if runErr != nil {
		// A WASI module reports its exit status by trapping out of
		// _start; wazero surfaces that as an ExitError, code zero
		// included.
		var exitErr *sys.ExitError
		if !errors.As(runErr, &exitErr) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("wasm plugin timed out after %s: %w", timeout, ctxErr)
			}
			return nil, fmt.Errorf("run wasm module %s: %w", req.Module, runErr)
		}
		exitCode = int(exitErr.ExitCode())
	}

	out := strings.TrimSpace(stdout.String())
	return &Response{
		Kind:       KindWASM,
		ExitCode:   exitCode,
		Stdout:     out,
		Stderr:     strings.TrimSpace(stderr.String()),
		Output:     decodeOutput(out),
		StartedAt:  started,
		FinishedAt: finished,
		Duration:   finished.Sub(started),
	}, nil
}

// compile returns the cached compiled module for path, compiling it on
// first use.
func (w *WASM) compile(ctx context.Context, path string) (wazero.CompiledModule, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if module, ok := w.compiled[path]; ok {
		return module, nil
	}

	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wasm module: %w", err)
	}
	module, err := w.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compile wasm module %s: %w", path, err)
	}
	w.compiled[path] = module
	return module, nil
}

func (w *WASM) encodePayload(req Request) ([]byte, error) {
	if req.Payload == nil {
		return []byte(req.Stdin), nil
	}
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal wasm payload: %w", err)
	}
	return payload, nil
}

// decodeOutput keeps a plugin's stdout as structured output when it is
// valid JSON.
func decodeOutput(stdout string) json.RawMessage {
	if stdout == "" || !json.Valid([]byte(stdout)) {
		return nil
	}
	return json.RawMessage(stdout)
}

// Close releases the runtime and every cached module.
func (w *WASM) Close() error {
	return w.runtime.Close(context.Background())
}
