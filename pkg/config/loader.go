package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// NotFoundError is returned when a requested configuration file does not
// exist under the project root.
type NotFoundError struct {
	// Root is the folder the lookup was anchored at.
	Root string

	// Filename is the relative path that was requested.
	Filename string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("config file %q not found under %q", e.Filename, e.Root)
}

// IsNotFound reports whether err indicates a missing configuration file.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Loader reads raw configuration documents from disk.
//
// Documents are returned as generic maps so callers can run schema
// validation before committing to a typed decode.
type Loader struct{}

// NewLoader creates a configuration file loader.
func NewLoader() *Loader {
	return &Loader{}
}

// ReadConfigFile resolves filename against rootFolder, reads the file, and
// decodes it as JSON or YAML depending on the extension. Unknown extensions
// are decoded as JSON.
//
// A missing file yields a *NotFoundError; malformed content yields a decode
// error naming the file.
func (l *Loader) ReadConfigFile(rootFolder, filename string) (map[string]any, error) {
	path := filepath.Join(rootFolder, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Root: rootFolder, Filename: filename}
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	doc, err := decodeDocument(data, filepath.Ext(filename))
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return doc, nil
}

// ReadRawFile reads a file under rootFolder without decoding it. Used for
// artifacts that engines pass through verbatim, such as scratch org
// definition payloads.
func (l *Loader) ReadRawFile(rootFolder, filename string) ([]byte, error) {
	path := filepath.Join(rootFolder, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Root: rootFolder, Filename: filename}
		}
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return data, nil
}

func decodeDocument(data []byte, ext string) (map[string]any, error) {
	var doc map[string]any

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}

	if doc == nil {
		return nil, errors.New("document is empty")
	}
	return doc, nil
}
