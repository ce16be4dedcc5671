package executors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/orgforge/orgforge/pkg/results"
	"github.com/orgforge/orgforge/pkg/telemetry"
)

// Set is the per-run executor collection handed to actions through the
// engine context. Engines register the executors a target needs during
// initialization; actions look them up by kind.
type Set struct {
	log *telemetry.Logger

	mu    sync.RWMutex
	execs map[Kind]Executor
}

// NewSet returns an empty executor set. A nil logger falls back to the
// ambient logger.
func NewSet(log *telemetry.Logger) *Set {
	if log == nil {
		log = telemetry.FromContext(context.Background())
	}
	return &Set{
		log:   log.NewComponentLogger("executors"),
		execs: make(map[Kind]Executor),
	}
}

// Register adds an executor to the set. Registering a second executor of
// the same kind is an error.
func (s *Set) Register(e Executor) error {
	if e == nil {
		return fmt.Errorf("cannot register nil executor")
	}
	kind := e.Kind()
	if err := kind.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.execs[kind]; exists {
		return fmt.Errorf("executor kind already registered: %s", kind)
	}
	s.execs[kind] = e
	return nil
}

// Get returns the executor of the given kind.
func (s *Set) Get(kind Kind) (Executor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.execs[kind]
	if !ok {
		return nil, &NotRegisteredError{Kind: kind}
	}
	return e, nil
}

// Has reports whether an executor of the given kind is registered.
func (s *Set) Has(kind Kind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.execs[kind]
	return ok
}

// Kinds lists the registered executor kinds, sorted.
func (s *Set) Kinds() []Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kinds := make([]Kind, 0, len(s.execs))
	for k := range s.execs {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Run dispatches the request to the executor of the given kind.
func (s *Set) Run(ctx context.Context, kind Kind, req Request) (*Response, error) {
	e, err := s.Get(kind)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, req)
}

// Close releases every executor that holds resources (SSH connections,
// the WASM runtime). The first failure is reported; the rest still
// close.
func (s *Set) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, kind := range []Kind{KindLocal, KindSSH, KindWASM} {
		e, ok := s.execs[kind]
		if !ok {
			continue
		}
		closer, ok := e.(interface{ Close() error })
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s executor: %w", kind, err)
		}
	}
	return firstErr
}

// ResultNode turns one executor outcome into the EXECUTOR-typed result
// node actions attach to their own result. An executor error finalizes
// the node as ERROR; a non-zero exit as FAILURE; otherwise SUCCESS. The
// response rides along as the node detail.
func ResultNode(name string, resp *Response, err error) *results.Node {
	node := results.NewNode(name, results.TypeExecutor, results.Options{
		StartNow: true,
		Detail:   resp,
	})
	if resp != nil && !resp.StartedAt.IsZero() {
		node.StartedAt = resp.StartedAt
	}

	switch {
	case err != nil:
		_ = node.Error(err)
	case resp == nil:
		_ = node.Error(errors.New("executor returned no response"))
	case !resp.Ok():
		_ = node.Failure(nil)
	default:
		_ = node.Success(nil)
	}
	return node
}
