package config

import (
	"strings"
	"testing"
)

func validRecipeDoc() map[string]any {
	return map[string]any{
		"recipeName":    "demo-build",
		"description":   "provision the demo org",
		"recipeType":    "org-build",
		"recipeVersion": "1.2.0",
		"schemaVersion": "1.0",
		"options": map[string]any{
			"skipGroups":  []any{},
			"skipActions": []any{"install-package"},
			"haltOnError": false,
			"targetOrgs": []any{
				map[string]any{
					"orgName":      "Demo Staging",
					"alias":        "staging",
					"description":  "shared staging org",
					"isScratchOrg": false,
					"orgReqsJson":  "orgs/staging.json",
				},
			},
		},
		"recipeStepGroups": []any{
			map[string]any{
				"stepGroupName": "Prepare",
				"alias":         "prepare",
				"description":   "baseline setup",
				"recipeSteps": []any{
					map[string]any{
						"stepName": "verify",
						"action":   "verify-target",
						"options":  map[string]any{"retries": float64(3)},
					},
				},
			},
		},
		"handlers": []any{},
	}
}

// joinErrors renders validation errors for substring assertions.
func joinErrors(errs []ValidationError) string {
	var sb strings.Builder
	for _, e := range errs {
		sb.WriteString(e.Path)
		sb.WriteString(" ")
		sb.WriteString(e.Message)
		sb.WriteString("\n")
	}
	return sb.String()
}

func TestBuiltInSchemasCompile(t *testing.T) {
	sr := NewSchemaRegistry()

	sources := map[string]string{
		SchemaRecipe:          builtinRecipeSchema,
		SchemaOrgRequirements: builtinOrgRequirementsSchema,
		SchemaScratchDef:      builtinScratchDefSchema,
	}
	for name, source := range sources {
		if err := sr.Register(name+"-check", source); err != nil {
			t.Errorf("schema %s does not compile: %v", name, err)
		}
		if _, ok := sr.Get(name); !ok {
			t.Errorf("built-in schema %s is not registered", name)
		}
	}
}

func TestSchemaRegistry_ValidRecipe(t *testing.T) {
	sr := NewSchemaRegistry()

	if errs := sr.ValidateRecipeDocument(validRecipeDoc()); len(errs) > 0 {
		t.Fatalf("valid recipe rejected:\n%s", joinErrors(errs))
	}
}

func TestSchemaRegistry_ReportsAllMissingFields(t *testing.T) {
	sr := NewSchemaRegistry()

	doc := validRecipeDoc()
	delete(doc, "recipeVersion")
	delete(doc, "schemaVersion")

	errs := sr.ValidateRecipeDocument(doc)
	if len(errs) < 2 {
		t.Fatalf("got %d errors, want at least 2:\n%s", len(errs), joinErrors(errs))
	}
	all := joinErrors(errs)
	if !strings.Contains(all, "recipeVersion") {
		t.Errorf("missing recipeVersion not reported:\n%s", all)
	}
	if !strings.Contains(all, "schemaVersion") {
		t.Errorf("missing schemaVersion not reported:\n%s", all)
	}
}

func TestSchemaRegistry_WrongType(t *testing.T) {
	sr := NewSchemaRegistry()

	doc := validRecipeDoc()
	doc["recipeStepGroups"] = "not-a-list"

	errs := sr.ValidateRecipeDocument(doc)
	if len(errs) == 0 {
		t.Fatal("expected type error for recipeStepGroups")
	}
	if !strings.Contains(joinErrors(errs), "recipeStepGroups") {
		t.Errorf("error does not name the field:\n%s", joinErrors(errs))
	}
}

func TestSchemaRegistry_ScratchOrgRequiresDefinition(t *testing.T) {
	sr := NewSchemaRegistry()

	doc := validRecipeDoc()
	opts := doc["options"].(map[string]any)
	opts["targetOrgs"] = []any{
		map[string]any{
			"orgName":      "Ephemeral",
			"alias":        "scratch",
			"description":  "throwaway org",
			"isScratchOrg": true,
		},
	}

	errs := sr.ValidateRecipeDocument(doc)
	if len(errs) == 0 {
		t.Fatal("expected error for scratch org without scratchDefJson")
	}
	if !strings.Contains(joinErrors(errs), "scratchDefJson") {
		t.Errorf("error does not name scratchDefJson:\n%s", joinErrors(errs))
	}
}

func TestSchemaRegistry_PersistentOrgRequiresRequirements(t *testing.T) {
	sr := NewSchemaRegistry()

	doc := validRecipeDoc()
	opts := doc["options"].(map[string]any)
	opts["targetOrgs"] = []any{
		map[string]any{
			"orgName":      "Prod",
			"alias":        "prod",
			"description":  "production org",
			"isScratchOrg": false,
		},
	}

	errs := sr.ValidateRecipeDocument(doc)
	if len(errs) == 0 {
		t.Fatal("expected error for persistent org without orgReqsJson")
	}
	if !strings.Contains(joinErrors(errs), "orgReqsJson") {
		t.Errorf("error does not name orgReqsJson:\n%s", joinErrors(errs))
	}
}

func TestSchemaRegistry_ScratchOrgWithDefinitionPasses(t *testing.T) {
	sr := NewSchemaRegistry()

	doc := validRecipeDoc()
	opts := doc["options"].(map[string]any)
	opts["targetOrgs"] = []any{
		map[string]any{
			"orgName":        "Ephemeral",
			"alias":          "scratch",
			"description":    "throwaway org",
			"isScratchOrg":   true,
			"scratchDefJson": "orgs/scratch-def.json",
		},
	}

	if errs := sr.ValidateRecipeDocument(doc); len(errs) > 0 {
		t.Fatalf("scratch org rejected:\n%s", joinErrors(errs))
	}
}

func TestSchemaRegistry_UnknownKeysTolerated(t *testing.T) {
	sr := NewSchemaRegistry()

	doc := validRecipeDoc()
	doc["x-custom-annotation"] = "kept"

	if errs := sr.ValidateRecipeDocument(doc); len(errs) > 0 {
		t.Fatalf("unknown top-level key rejected:\n%s", joinErrors(errs))
	}
}

func TestSchemaRegistry_OrgRequirements(t *testing.T) {
	sr := NewSchemaRegistry()

	doc := map[string]any{
		"orgName": "staging",
		"connection": map[string]any{
			"host": "staging.example.com",
			"user": "deploy",
			"port": float64(2222),
		},
		"bundle": map[string]any{
			"localPath":  "bundles/app",
			"remotePath": "/srv/app",
		},
		"packages": []any{"postgresql", "redis"},
	}
	if errs := sr.ValidateOrgRequirements(doc); len(errs) > 0 {
		t.Fatalf("valid org requirements rejected:\n%s", joinErrors(errs))
	}

	delete(doc["connection"].(map[string]any), "host")
	errs := sr.ValidateOrgRequirements(doc)
	if len(errs) == 0 {
		t.Fatal("expected error for missing connection.host")
	}
	if !strings.Contains(joinErrors(errs), "host") {
		t.Errorf("error does not name host:\n%s", joinErrors(errs))
	}
}

func TestSchemaRegistry_ScratchDef(t *testing.T) {
	sr := NewSchemaRegistry()

	doc := map[string]any{
		"edition":      "developer",
		"durationDays": float64(7),
		"features":     []any{"api", "sandbox-data"},
	}
	if errs := sr.ValidateScratchDef(doc); len(errs) > 0 {
		t.Fatalf("valid scratch def rejected:\n%s", joinErrors(errs))
	}

	doc["durationDays"] = float64(90)
	if errs := sr.ValidateScratchDef(doc); len(errs) == 0 {
		t.Fatal("expected error for durationDays out of range")
	}
}

func TestSchemaRegistry_UnregisteredSchema(t *testing.T) {
	sr := NewSchemaRegistry()

	errs := sr.Validate("no-such-schema", map[string]any{})
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if !strings.Contains(errs[0].Message, "not registered") {
		t.Errorf("unexpected message: %s", errs[0].Message)
	}
}

func TestSchemaRegistry_CustomSchema(t *testing.T) {
	sr := NewSchemaRegistry()

	if err := sr.Register("pipeline", "name: string & !=\"\"\nstages: [...string]\n"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if errs := sr.Validate("pipeline", map[string]any{"name": "ci", "stages": []any{"build"}}); len(errs) > 0 {
		t.Fatalf("valid custom doc rejected:\n%s", joinErrors(errs))
	}
	if errs := sr.Validate("pipeline", map[string]any{"stages": []any{"build"}}); len(errs) == 0 {
		t.Fatal("expected error for missing name")
	}
}

func TestSchemaRegistry_RegisterRejectsBadSource(t *testing.T) {
	sr := NewSchemaRegistry()

	if err := sr.Register("broken", "name: string &"); err == nil {
		t.Fatal("expected compile error")
	}
}
