package recipes

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/orgforge/orgforge/pkg/config"
)

const validRecipeJSON = `{
  "recipeName": "build-dev-org",
  "description": "Provision the shared development org",
  "recipeType": "org-build",
  "recipeVersion": "1.2.0",
  "schemaVersion": "1",
  "options": {
    "skipGroups": [],
    "skipActions": [],
    "haltOnError": false,
    "targetOrgs": [
      {
        "orgName": "Dev Scratch",
        "alias": "dev",
        "description": "Ephemeral development org",
        "isScratchOrg": true,
        "scratchDefJson": "scratch-def.json"
      }
    ]
  },
  "recipeStepGroups": [
    {
      "stepGroupName": "Prepare",
      "alias": "prepare",
      "description": "Create and verify the org",
      "recipeSteps": [
        {
          "stepName": "Create org",
          "description": "Create the scratch org",
          "action": "create-scratch-org",
          "options": {"shape": "developer"}
        }
      ]
    },
    {
      "stepGroupName": "Deploy",
      "alias": "deploy",
      "description": "Push the org bundle",
      "recipeSteps": [
        {"stepName": "Push bundle", "action": "deploy-org-bundle"}
      ]
    }
  ],
  "handlers": []
}`

const validRecipeYAML = `recipeName: build-dev-org
description: Provision the shared development org
recipeType: org-build
recipeVersion: 1.2.0
schemaVersion: "1"
options:
  skipGroups: []
  skipActions: []
  haltOnError: false
  targetOrgs:
    - orgName: Dev Scratch
      alias: dev
      description: Ephemeral development org
      isScratchOrg: true
      scratchDefJson: scratch-def.json
recipeStepGroups:
  - stepGroupName: Prepare
    alias: prepare
    description: Create and verify the org
    recipeSteps:
      - stepName: Create org
        action: create-scratch-org
handlers: []
`

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// mutateRecipeDoc returns the valid fixture with mutate applied.
func mutateRecipeDoc(t *testing.T, mutate func(doc map[string]any)) string {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal([]byte(validRecipeJSON), &doc); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	mutate(doc)
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return string(raw)
}

func newTestRegistry(t *testing.T, registration Registration) *Registry {
	t.Helper()
	if registration.New == nil {
		registration.New = func(prj *Project, r *Recipe, opts CompileOptions) (Engine, error) {
			return &fakeEngine{}, nil
		}
	}
	reg := NewRegistry()
	if err := reg.Register("org-build", registration); err != nil {
		t.Fatalf("register org-build: %v", err)
	}
	return reg
}

func newTestProject(t *testing.T, dir string, reg *Registry) *Project {
	t.Helper()
	if reg == nil {
		reg = newTestRegistry(t, Registration{})
	}
	prj, err := NewProject(ProjectConfig{RootFolder: dir, Registry: reg})
	if err != nil {
		t.Fatalf("new project: %v", err)
	}
	return prj
}

func TestReadRecipeValid(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "build.json", validRecipeJSON)
	prj := newTestProject(t, dir, nil)

	r, err := prj.ReadRecipe(context.Background(), "build.json")
	if err != nil {
		t.Fatalf("ReadRecipe: %v", err)
	}

	if r.Name != "build-dev-org" || r.Type != "org-build" || r.Version != "1.2.0" {
		t.Errorf("unexpected identity fields: %q %q %q", r.Name, r.Type, r.Version)
	}
	if r.SchemaVersion != "1" {
		t.Errorf("SchemaVersion = %q, want 1", r.SchemaVersion)
	}
	if !r.Validated() {
		t.Error("recipe should be validated after read")
	}
	if r.Compiled() {
		t.Error("recipe should not be compiled after read")
	}
	if r.Filename() != "build.json" {
		t.Errorf("Filename = %q", r.Filename())
	}
	if len(r.StepGroups) != 2 {
		t.Fatalf("got %d step groups, want 2", len(r.StepGroups))
	}
	if got := r.StepGroups[0].Steps[0].Action; got != "create-scratch-org" {
		t.Errorf("first step action = %q", got)
	}
	if got := r.StepGroups[0].Steps[0].Options["shape"]; got != "developer" {
		t.Errorf("step option shape = %v", got)
	}
	if got := r.StepGroups[1].Actions(); !reflect.DeepEqual(got, []string{"deploy-org-bundle"}) {
		t.Errorf("second group actions = %v", got)
	}

	org, ok := r.TargetOrg("dev")
	if !ok || !org.IsScratchOrg || org.ScratchDefJSON != "scratch-def.json" {
		t.Errorf("target org lookup: %+v ok=%v", org, ok)
	}
	if first, ok := r.TargetOrg(""); !ok || first.Alias != "dev" {
		t.Errorf("empty alias should select first org, got %+v ok=%v", first, ok)
	}
	if _, ok := r.TargetOrg("missing"); ok {
		t.Error("unknown alias should not resolve")
	}
}

func TestReadRecipeYAML(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "build.yaml", validRecipeYAML)
	prj := newTestProject(t, dir, nil)

	r, err := prj.ReadRecipe(context.Background(), "build.yaml")
	if err != nil {
		t.Fatalf("ReadRecipe: %v", err)
	}
	if r.Name != "build-dev-org" || len(r.StepGroups) != 1 {
		t.Errorf("unexpected decode: name=%q groups=%d", r.Name, len(r.StepGroups))
	}
}

func TestReadRecipeMissingKeys(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		missing []string
	}{
		{
			name:    "almost everything absent",
			doc:     `{"recipeName": "x"}`,
			missing: []string{"description", "recipeType", "recipeVersion", "schemaVersion", "options", "recipeStepGroups", "handlers"},
		},
		{
			name: "options and handlers absent",
			doc: mutateRecipeDoc(t, func(doc map[string]any) {
				delete(doc, "options")
				delete(doc, "handlers")
			}),
			missing: []string{"options", "handlers"},
		},
		{
			name: "empty string counts as absent",
			doc: mutateRecipeDoc(t, func(doc map[string]any) {
				doc["description"] = ""
			}),
			missing: []string{"description"},
		},
		{
			name: "null counts as absent",
			doc: mutateRecipeDoc(t, func(doc map[string]any) {
				doc["options"] = nil
			}),
			missing: []string{"options"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeDoc(t, dir, "bad.json", tt.doc)
			prj := newTestProject(t, dir, nil)

			_, err := prj.ReadRecipe(context.Background(), "bad.json")
			if !IsInvalidRecipe(err) {
				t.Fatalf("want InvalidRecipeError, got %v", err)
			}
			var invalid *InvalidRecipeError
			if !errors.As(err, &invalid) {
				t.Fatalf("cannot extract InvalidRecipeError from %v", err)
			}
			if !reflect.DeepEqual(invalid.MissingKeys, tt.missing) {
				t.Errorf("MissingKeys = %v, want %v", invalid.MissingKeys, tt.missing)
			}
		})
	}
}

func TestReadRecipeNotFound(t *testing.T) {
	prj := newTestProject(t, t.TempDir(), nil)

	_, err := prj.ReadRecipe(context.Background(), "absent.json")
	if err == nil {
		t.Fatal("want error for missing recipe file")
	}
	if !config.IsNotFound(err) {
		t.Errorf("want config not-found error, got %v", err)
	}
}

func TestReadRecipeSchemaViolations(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		mentions string
	}{
		{
			name: "scratch org without scratch definition",
			doc: mutateRecipeDoc(t, func(doc map[string]any) {
				options := doc["options"].(map[string]any)
				org := options["targetOrgs"].([]any)[0].(map[string]any)
				delete(org, "scratchDefJson")
			}),
			mentions: "scratchDefJson",
		},
		{
			name: "persistent org without requirements document",
			doc: mutateRecipeDoc(t, func(doc map[string]any) {
				options := doc["options"].(map[string]any)
				org := options["targetOrgs"].([]any)[0].(map[string]any)
				org["isScratchOrg"] = false
				delete(org, "scratchDefJson")
			}),
			mentions: "orgReqsJson",
		},
		{
			name: "step group without alias",
			doc: mutateRecipeDoc(t, func(doc map[string]any) {
				group := doc["recipeStepGroups"].([]any)[0].(map[string]any)
				group["alias"] = ""
			}),
			mentions: "alias",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeDoc(t, dir, "bad.json", tt.doc)
			prj := newTestProject(t, dir, nil)

			_, err := prj.ReadRecipe(context.Background(), "bad.json")
			var invalid *InvalidRecipeError
			if !errors.As(err, &invalid) {
				t.Fatalf("want InvalidRecipeError, got %v", err)
			}
			if len(invalid.Problems) == 0 {
				t.Fatal("want at least one validation problem")
			}
			if !problemsMention(invalid.Problems, tt.mentions) {
				t.Errorf("problems do not mention %q: %v", tt.mentions, invalid.Problems)
			}
		})
	}
}

func TestReadRecipeEmptyTargetOrgs(t *testing.T) {
	dir := t.TempDir()
	doc := mutateRecipeDoc(t, func(doc map[string]any) {
		doc["options"].(map[string]any)["targetOrgs"] = []any{}
	})
	writeDoc(t, dir, "bad.json", doc)
	prj := newTestProject(t, dir, nil)

	_, err := prj.ReadRecipe(context.Background(), "bad.json")
	var invalid *InvalidRecipeError
	if !errors.As(err, &invalid) {
		t.Fatalf("want InvalidRecipeError, got %v", err)
	}
	if !problemsMention(invalid.Problems, "TargetOrgs") {
		t.Errorf("problems do not mention TargetOrgs: %v", invalid.Problems)
	}
}

func TestReadRecipeUnknownType(t *testing.T) {
	dir := t.TempDir()
	doc := mutateRecipeDoc(t, func(doc map[string]any) {
		doc["recipeType"] = "org-demolish"
	})
	writeDoc(t, dir, "bad.json", doc)
	prj := newTestProject(t, dir, nil)

	_, err := prj.ReadRecipe(context.Background(), "bad.json")
	if !IsUnknownEngine(err) {
		t.Fatalf("want UnknownEngineError, got %v", err)
	}
	var unknown *UnknownEngineError
	if !errors.As(err, &unknown) {
		t.Fatal("cannot extract UnknownEngineError")
	}
	if unknown.RecipeType != "org-demolish" {
		t.Errorf("RecipeType = %q", unknown.RecipeType)
	}
	if !reflect.DeepEqual(unknown.Known, []string{"org-build"}) {
		t.Errorf("Known = %v", unknown.Known)
	}
}

func TestReadRecipeEngineFamilyChecks(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "build.json", validRecipeJSON)

	reg := newTestRegistry(t, Registration{
		ValidateRecipe: func(r *Recipe) []config.ValidationError {
			return []config.ValidationError{{
				Path:     "recipeStepGroups",
				Message:  "org-build recipes must deploy a bundle",
				Severity: "error",
			}}
		},
	})
	prj := newTestProject(t, dir, reg)

	_, err := prj.ReadRecipe(context.Background(), "build.json")
	var invalid *InvalidRecipeError
	if !errors.As(err, &invalid) {
		t.Fatalf("want InvalidRecipeError from engine family check, got %v", err)
	}
	if !problemsMention(invalid.Problems, "deploy a bundle") {
		t.Errorf("engine family problem missing: %v", invalid.Problems)
	}
}

func TestReadRecipeCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "build.json", validRecipeJSON)
	prj := newTestProject(t, dir, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := prj.ReadRecipe(ctx, "build.json"); err != context.Canceled {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestNewProjectRequiredFields(t *testing.T) {
	if _, err := NewProject(ProjectConfig{Registry: NewRegistry()}); err == nil {
		t.Error("want error for empty root folder")
	}
	if _, err := NewProject(ProjectConfig{RootFolder: "."}); err == nil {
		t.Error("want error for missing registry")
	}
}

func problemsMention(problems []config.ValidationError, needle string) bool {
	for _, p := range problems {
		if strings.Contains(p.Path, needle) || strings.Contains(p.Message, needle) {
			return true
		}
	}
	return false
}
