package actions

import (
	"context"
	"io/fs"
	"testing"
	"time"

	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/executors"
	"github.com/orgforge/orgforge/pkg/recipes"
	"github.com/orgforge/orgforge/pkg/results"
	"github.com/orgforge/orgforge/pkg/telemetry"
	"github.com/orgforge/orgforge/pkg/transports/ssh"
)

// fakeExecutor serves canned responses and records the requests it
// saw.
type fakeExecutor struct {
	kind executors.Kind
	resp *executors.Response
	err  error
	reqs []executors.Request
}

func (f *fakeExecutor) Kind() executors.Kind { return f.kind }

func (f *fakeExecutor) Run(ctx context.Context, req executors.Request) (*executors.Response, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		resp := *f.resp
		resp.Kind = f.kind
		return &resp, nil
	}
	now := time.Now()
	return &executors.Response{
		Kind:       f.kind,
		Stdout:     "ok",
		StartedAt:  now,
		FinishedAt: now,
		Duration:   time.Millisecond,
	}, nil
}

// transportExecutor is a fake SSH executor that also carries a
// transport, the way the real one does.
type transportExecutor struct {
	fakeExecutor
	transport *stubTransport
}

func (f *transportExecutor) Transport() ssh.Transport { return f.transport }

// stubTransport satisfies ssh.Transport with canned values. Only
// Checksum matters to these tests.
type stubTransport struct {
	checksum    string
	checksumErr error
}

func (s *stubTransport) Connect(context.Context) error     { return nil }
func (s *stubTransport) Close() error                      { return nil }
func (s *stubTransport) Connected() bool                   { return true }
func (s *stubTransport) HealthCheck(context.Context) error { return nil }
func (s *stubTransport) Info() ssh.ConnectionInfo          { return ssh.ConnectionInfo{} }

func (s *stubTransport) Exec(context.Context, string) (*ssh.ExecResult, error) {
	return &ssh.ExecResult{}, nil
}

func (s *stubTransport) ExecSudo(context.Context, string, string) (*ssh.ExecResult, error) {
	return &ssh.ExecResult{}, nil
}

func (s *stubTransport) ExecScript(context.Context, string, string, bool, string) (*ssh.ExecResult, error) {
	return &ssh.ExecResult{}, nil
}

func (s *stubTransport) Upload(context.Context, string, string, fs.FileMode) (int64, error) {
	return 0, nil
}

func (s *stubTransport) UploadDir(context.Context, string, string) (int64, error) { return 0, nil }
func (s *stubTransport) Download(context.Context, string, string) (int64, error)  { return 0, nil }
func (s *stubTransport) Chmod(context.Context, string, fs.FileMode) error         { return nil }
func (s *stubTransport) Chown(context.Context, string, int, int) error            { return nil }

func (s *stubTransport) Checksum(context.Context, string) (string, error) {
	return s.checksum, s.checksumErr
}

func testLogger(t *testing.T) *telemetry.Logger {
	t.Helper()
	log, err := telemetry.NewLogger(telemetry.LoggingConfig{Level: "fatal", Output: "stderr"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	return log
}

// newSet registers the given executors into a fresh set.
func newSet(t *testing.T, execs ...executors.Executor) *executors.Set {
	t.Helper()
	set := executors.NewSet(testLogger(t))
	for _, e := range execs {
		if err := set.Register(e); err != nil {
			t.Fatalf("Register(%s) error = %v", e.Kind(), err)
		}
	}
	return set
}

func scratchContext(t *testing.T, set *executors.Set) *engine.Context {
	t.Helper()
	return &engine.Context{
		RunID:      "run-1",
		EngineName: "org-build",
		TargetOrg: recipes.TargetOrg{
			OrgName:        "QA Sandbox",
			Alias:          "qa",
			IsScratchOrg:   true,
			ScratchDefJSON: "scratch-def.json",
		},
		TargetRequirements: map[string]any{},
		Executors:          set,
		Log:                testLogger(t),
	}
}

func persistentContext(t *testing.T, set *executors.Set) *engine.Context {
	t.Helper()
	ec := scratchContext(t, set)
	ec.TargetOrg = recipes.TargetOrg{
		OrgName:     "QA Host",
		Alias:       "qa-host",
		OrgReqsJSON: "org-reqs.json",
	}
	return ec
}

// withProject swaps a real project rooted at dir into the context so
// actions can read files through the loader.
func withProject(t *testing.T, ec *engine.Context, dir string) {
	t.Helper()
	prj, err := recipes.NewProject(recipes.ProjectConfig{
		RootFolder: dir,
		Registry:   recipes.NewRegistry(),
		Logger:     testLogger(t),
	})
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}
	ec.Project = prj
}

func step(action string, options map[string]any) engine.PlanStep {
	return engine.PlanStep{
		Name:    action + " step",
		Action:  action,
		Options: options,
	}
}

// wantStatus fails unless the node finished with the given status.
func wantStatus(t *testing.T, node *results.Node, status results.Status) {
	t.Helper()
	if node == nil {
		t.Fatal("node is nil")
	}
	if node.Status != status {
		t.Fatalf("node status = %s, want %s (err=%v)", node.Status, status, node.Err)
	}
}

// detailMap unwraps a node detail written as map[string]any.
func detailMap(t *testing.T, node *results.Node) map[string]any {
	t.Helper()
	detail, ok := node.Detail.(map[string]any)
	if !ok {
		t.Fatalf("node detail = %T, want map", node.Detail)
	}
	return detail
}
