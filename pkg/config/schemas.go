package config

import (
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// Names of the built-in schemas.
const (
	SchemaRecipe          = "recipe"
	SchemaOrgRequirements = "org-requirements"
	SchemaScratchDef      = "scratch-def"
)

// SchemaRegistry manages CUE schemas for document validation.
//
// Each schema is a CUE source whose top-level regular fields constrain the
// document; helper definitions may be declared alongside them. Validation
// unifies the raw document with the schema and requires every regular field
// to be concrete, so missing required fields and type mismatches are all
// reported in a single pass.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a schema registry with the built-in schemas
// registered.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	sr.registerBuiltInSchemas()
	return sr
}

// registerBuiltInSchemas installs the schemas shipped with orgforge. The
// sources are compile-checked by the package tests, so errors here are
// ignored.
func (sr *SchemaRegistry) registerBuiltInSchemas() {
	sr.Register(SchemaRecipe, builtinRecipeSchema)
	sr.Register(SchemaOrgRequirements, builtinOrgRequirementsSchema)
	sr.Register(SchemaScratchDef, builtinScratchDefSchema)
}

// Register compiles source and stores it under name, replacing any schema
// previously registered with that name.
func (sr *SchemaRegistry) Register(name, source string) error {
	val := sr.ctx.CompileString(source, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("compiling schema %s: %w", name, err)
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.schemas[name] = val
	return nil
}

// Get retrieves a compiled schema by name.
func (sr *SchemaRegistry) Get(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	val, ok := sr.schemas[name]
	return val, ok
}

// List returns the names of all registered schemas.
func (sr *SchemaRegistry) List() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	return names
}

// Validate checks doc against the named schema and returns every violation
// found. An empty result means the document conforms.
func (sr *SchemaRegistry) Validate(name string, doc any) []ValidationError {
	schema, ok := sr.Get(name)
	if !ok {
		return []ValidationError{{
			Message:  fmt.Sprintf("schema %q is not registered", name),
			Severity: "error",
		}}
	}

	val := sr.ctx.Encode(doc)
	if err := val.Err(); err != nil {
		return convertCUEErrors(err)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return convertCUEErrors(err)
	}
	return nil
}

// ValidateRecipeDocument validates a raw recipe document.
func (sr *SchemaRegistry) ValidateRecipeDocument(doc map[string]any) []ValidationError {
	return sr.Validate(SchemaRecipe, doc)
}

// ValidateOrgRequirements validates an org requirements document.
func (sr *SchemaRegistry) ValidateOrgRequirements(doc map[string]any) []ValidationError {
	return sr.Validate(SchemaOrgRequirements, doc)
}

// ValidateScratchDef validates a scratch org definition document.
func (sr *SchemaRegistry) ValidateScratchDef(doc map[string]any) []ValidationError {
	return sr.Validate(SchemaScratchDef, doc)
}

// convertCUEErrors flattens a CUE error into ValidationError entries with
// source positions and document paths.
func convertCUEErrors(err error) []ValidationError {
	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		var file string
		var line, column int
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		format, args := e.Msg()
		out = append(out, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Path:     strings.Join(e.Path(), "."),
			Message:  fmt.Sprintf(format, args...),
			Severity: "error",
		})
	}
	return out
}

// Built-in schema definitions.

const builtinRecipeSchema = `
// Recipe document schema.
recipeName:    string & !=""
description:   string
recipeType:    string & !=""
recipeVersion: string & !=""
schemaVersion: string & !=""
options:       #Options
recipeStepGroups: [...#StepGroup]
handlers: [...#Handler]

// Optional Starlark script exporting engine context variables.
variables?: string

#Options: {
	// Group aliases to skip during compilation.
	skipGroups: [...string]

	// Action names to skip during compilation.
	skipActions: [...string]

	// Reserved for future halting semantics.
	haltOnError: bool

	// Orgs this recipe can run against.
	targetOrgs: [...#TargetOrg]

	...
}

#TargetOrg: {
	orgName:      string & !=""
	alias:        string & !=""
	description:  string
	isScratchOrg: bool

	// Scratch org definition file, required for scratch orgs.
	scratchDefJson?: string

	// Org requirements file, required for persistent orgs.
	orgReqsJson?: string

	if isScratchOrg {
		scratchDefJson: string & !=""
	}
	if !isScratchOrg {
		orgReqsJson: string & !=""
	}

	...
}

#StepGroup: {
	stepGroupName: string & !=""
	alias:         string & !=""
	description:   string & !=""
	recipeSteps: [...#Step]

	...
}

#Step: {
	stepName:    string & !=""
	action:      string & !=""
	description?: string
	options?: {...}

	// Reserved handler references.
	onSuccess?: string
	onError?:   string

	...
}

// Handler shape is reserved; only structural checks apply.
#Handler: {
	handlerName?: string
	...
}
`

const builtinOrgRequirementsSchema = `
// Org requirements document schema, describing a persistent target org.
orgName?:     string
description?: string

connection: {
	host:            string & !=""
	user:            string & !=""
	port?:           number & >0 & <65536
	authMethod?:     "private-key" | "password" | "agent"
	privateKeyPath?: string
	knownHostsFile?: string
	timeoutSeconds?: number & >0
	...
}

// Bundle to deploy onto the org host.
bundle?: {
	localPath:  string & !=""
	remotePath: string & !=""
	...
}

// Administrative account the org should end up with.
adminUser?: {
	username: string & !=""
	role?:    string
	shell?:   string
	...
}

packages?: [...string]
features?: [...string]
setupScripts?: [...string]
`

const builtinScratchDefSchema = `
// Scratch org definition schema.
orgName?:      string
edition?:      string
description?:  string
durationDays?: number & >0 & <=30
features?: [...string]
settings?: {...}
`
