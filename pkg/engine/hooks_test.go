package engine

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/orgforge/orgforge/pkg/config"
	"github.com/orgforge/orgforge/pkg/recipes"
)

func TestDefaults_InitializeContext_EvaluatesVariablesScript(t *testing.T) {
	rec := buildRecipe()
	rec.Variables = `
org_prefix = recipeName + "-" + recipeType
admin_email = "admin@example.com"
retries = 3
_scratch = "private"
`
	ec := &Context{
		Recipe: rec,
		Options: recipes.CompileOptions{
			Variables: map[string]any{"admin_email": "override@example.com"},
		},
	}

	if err := (Defaults{}).InitializeContext(context.Background(), ec); err != nil {
		t.Fatalf("InitializeContext: %v", err)
	}

	if got := ec.Variables["org_prefix"]; got != "qa-sandbox-org-build" {
		t.Errorf("org_prefix = %v, want qa-sandbox-org-build", got)
	}
	if got := ec.Variables["retries"]; got != int64(3) {
		t.Errorf("retries = %v (%T), want int64 3", got, got)
	}
	if got := ec.Variables["admin_email"]; got != "override@example.com" {
		t.Errorf("Caller-supplied variables must win, got %v", got)
	}
	if _, ok := ec.Variables["_scratch"]; ok {
		t.Error("Underscore-prefixed globals must stay private")
	}
}

func TestDefaults_InitializeContext_NoScript(t *testing.T) {
	ec := &Context{
		Recipe:  buildRecipe(),
		Options: recipes.CompileOptions{DryRun: true},
	}

	if err := (Defaults{}).InitializeContext(context.Background(), ec); err != nil {
		t.Fatalf("InitializeContext: %v", err)
	}
	if ec.Variables == nil || len(ec.Variables) != 0 {
		t.Errorf("Expected an empty non-nil variable map, got %v", ec.Variables)
	}
	if !ec.DryRun {
		t.Error("Expected the dry-run flag to come from the compile options")
	}
}

func TestDefaults_InitializeContext_ScriptError(t *testing.T) {
	rec := buildRecipe()
	rec.Variables = `broken(`

	ec := &Context{Recipe: rec}
	err := (Defaults{}).InitializeContext(context.Background(), ec)
	if err == nil || !strings.Contains(err.Error(), "evaluate recipe variables") {
		t.Fatalf("Expected a script evaluation error, got %v", err)
	}
}

func TestDefaults_InitializeTargetOrg(t *testing.T) {
	t.Run("loads requirement documents", func(t *testing.T) {
		prj := newTestProject(t)
		content := []byte(`{"edition": "Developer", "features": ["API"]}`)
		if err := os.WriteFile(filepath.Join(prj.RootFolder(), "org-reqs.json"), content, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}

		rec := buildRecipe()
		rec.Options.TargetOrgs[0].OrgReqsJSON = "org-reqs.json"
		ec := &Context{
			EngineName: "org-build",
			Recipe:     rec,
			Project:    prj,
			Options:    recipes.CompileOptions{TargetOrgAlias: "qa"},
		}

		if err := (Defaults{}).InitializeTargetOrg(context.Background(), ec); err != nil {
			t.Fatalf("InitializeTargetOrg: %v", err)
		}
		if ec.TargetOrg.Alias != "qa" {
			t.Errorf("TargetOrg.Alias = %q, want qa", ec.TargetOrg.Alias)
		}
		doc, ok := ec.TargetRequirements["org-reqs.json"].(map[string]any)
		if !ok || doc["edition"] != "Developer" {
			t.Errorf("Expected the parsed requirements document, got %v", ec.TargetRequirements)
		}
	})

	t.Run("defaults to the first declared org", func(t *testing.T) {
		ec := &Context{
			EngineName: "org-build",
			Recipe:     buildRecipe(),
			Project:    newTestProject(t),
		}

		if err := (Defaults{}).InitializeTargetOrg(context.Background(), ec); err != nil {
			t.Fatalf("InitializeTargetOrg: %v", err)
		}
		if ec.TargetOrg.Alias != "qa" {
			t.Errorf("Expected the first declared org, got %q", ec.TargetOrg.Alias)
		}
		if ec.TargetRequirements == nil || len(ec.TargetRequirements) != 0 {
			t.Errorf("Expected an empty non-nil requirements map, got %v", ec.TargetRequirements)
		}
	})

	t.Run("unknown alias", func(t *testing.T) {
		ec := &Context{
			EngineName: "org-build",
			Recipe:     buildRecipe(),
			Project:    newTestProject(t),
			Options:    recipes.CompileOptions{TargetOrgAlias: "prod"},
		}

		err := (Defaults{}).InitializeTargetOrg(context.Background(), ec)
		if !IsUnknownTargetOrg(err) {
			t.Fatalf("Expected unknown-target-org error, got %v", err)
		}
		ee, _ := AsEngineError(err)
		if ee.Engine != "org-build" || ee.Recipe != "qa-sandbox" {
			t.Errorf("Expected run coordinates on the error, got %+v", ee)
		}
	})

	t.Run("missing requirements document", func(t *testing.T) {
		rec := buildRecipe()
		rec.Options.TargetOrgs[0].OrgReqsJSON = "absent.json"
		ec := &Context{
			EngineName: "org-build",
			Recipe:     rec,
			Project:    newTestProject(t),
			Options:    recipes.CompileOptions{TargetOrgAlias: "qa"},
		}

		err := (Defaults{}).InitializeTargetOrg(context.Background(), ec)
		if err == nil || !strings.Contains(err.Error(), "load target requirements") {
			t.Fatalf("Expected a load error, got %v", err)
		}
		if !config.IsNotFound(err) {
			t.Errorf("Expected the missing file to be detectable through the chain, got %v", err)
		}
	})
}

func TestDefaults_SkipListsMergeRecipeAndOptions(t *testing.T) {
	rec := buildRecipe()
	rec.Options.SkipActions = []string{"verify-target", "install-package"}
	rec.Options.SkipGroups = []string{"org-prep"}

	ec := &Context{
		Recipe: rec,
		Options: recipes.CompileOptions{
			SkipActions: []string{"install-package", "record-org-state"},
			SkipGroups:  []string{"org-final"},
		},
	}

	actions, err := (Defaults{}).InitializeSkipActions(context.Background(), ec)
	if err != nil {
		t.Fatalf("InitializeSkipActions: %v", err)
	}
	wantActions := []string{"verify-target", "install-package", "record-org-state"}
	if !reflect.DeepEqual(actions, wantActions) {
		t.Errorf("Skip actions = %v, want %v", actions, wantActions)
	}

	groups, err := (Defaults{}).InitializeSkipGroups(context.Background(), ec)
	if err != nil {
		t.Fatalf("InitializeSkipGroups: %v", err)
	}
	wantGroups := []string{"org-prep", "org-final"}
	if !reflect.DeepEqual(groups, wantGroups) {
		t.Errorf("Skip groups = %v, want %v", groups, wantGroups)
	}
}

func TestMergeSkipList(t *testing.T) {
	tests := []struct {
		name  string
		base  []string
		extra []string
		want  []string
	}{
		{"both empty", nil, nil, []string{}},
		{"base only", []string{"a", "b"}, nil, []string{"a", "b"}},
		{"dedup preserves first appearance", []string{"a", "b"}, []string{"b", "c", "a"}, []string{"a", "b", "c"}},
		{"duplicates within one list", []string{"a", "a"}, nil, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mergeSkipList(tt.base, tt.extra); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("mergeSkipList(%v, %v) = %v, want %v", tt.base, tt.extra, got, tt.want)
			}
		})
	}
}

func TestDefaults_FinalizeResultDetail(t *testing.T) {
	ec := &Context{
		RunID:      "run-9",
		EngineName: "org-build",
		Recipe:     buildRecipe(),
		TargetOrg:  recipes.TargetOrg{Alias: "qa", IsScratchOrg: true},
		DryRun:     true,
	}

	detail, err := (Defaults{}).FinalizeResultDetail(context.Background(), ec)
	if err != nil {
		t.Fatalf("FinalizeResultDetail: %v", err)
	}
	summary, ok := detail.(ContextSummary)
	if !ok {
		t.Fatalf("Expected a context summary, got %T", detail)
	}
	if summary.Engine != "org-build" || summary.Recipe != "qa-sandbox" || summary.RunID != "run-9" {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	if summary.Target != "qa" || !summary.ScratchOrg || !summary.DryRun {
		t.Errorf("Unexpected summary flags: %+v", summary)
	}
}
