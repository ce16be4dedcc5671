package recipes

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/orgforge/orgforge/pkg/config"
	"github.com/orgforge/orgforge/pkg/telemetry"
)

// ConfigLoader reads raw documents relative to a project root. Satisfied by
// config.Loader; tests substitute fakes.
type ConfigLoader interface {
	// ReadConfigFile loads and parses a JSON or YAML document.
	ReadConfigFile(rootFolder, filename string) (map[string]any, error)

	// ReadRawFile loads a document without parsing it.
	ReadRawFile(rootFolder, filename string) ([]byte, error)
}

// Project is the context recipes are read and run in: the folder recipe and
// org documents live in, the engine registry, and the validation plumbing.
type Project struct {
	rootFolder string
	loader     ConfigLoader
	schemas    *config.SchemaRegistry
	registry   *Registry
	validate   *validator.Validate
	log        *telemetry.Logger
}

// ProjectConfig configures NewProject. RootFolder and Registry are
// required; the rest default to the standard implementations.
type ProjectConfig struct {
	// RootFolder anchors every recipe and org document lookup.
	RootFolder string

	// Registry maps recipe types to engine registrations.
	Registry *Registry

	// Loader reads documents. Defaults to config.NewLoader().
	Loader ConfigLoader

	// Schemas validates documents. Defaults to config.NewSchemaRegistry().
	Schemas *config.SchemaRegistry

	// Logger receives read, compile, and execute logs. Defaults to the
	// ambient logger.
	Logger *telemetry.Logger
}

// NewProject builds a project from cfg.
func NewProject(cfg ProjectConfig) (*Project, error) {
	if cfg.RootFolder == "" {
		return nil, fmt.Errorf("project root folder must not be empty")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("project requires an engine registry")
	}

	loader := cfg.Loader
	if loader == nil {
		loader = config.NewLoader()
	}
	schemas := cfg.Schemas
	if schemas == nil {
		schemas = config.NewSchemaRegistry()
	}
	log := cfg.Logger
	if log == nil {
		log = telemetry.FromContext(context.Background())
	}

	return &Project{
		rootFolder: cfg.RootFolder,
		loader:     loader,
		schemas:    schemas,
		registry:   cfg.Registry,
		validate:   validator.New(),
		log:        log.NewComponentLogger("recipes"),
	}, nil
}

// RootFolder returns the folder documents are read from.
func (p *Project) RootFolder() string {
	return p.rootFolder
}

// Loader returns the project's document loader.
func (p *Project) Loader() ConfigLoader {
	return p.loader
}

// Schemas returns the project's schema registry.
func (p *Project) Schemas() *config.SchemaRegistry {
	return p.schemas
}

// Registry returns the project's engine registry.
func (p *Project) Registry() *Registry {
	return p.registry
}

// Logger returns the project's component logger.
func (p *Project) Logger() *telemetry.Logger {
	return p.log
}
