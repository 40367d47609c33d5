// Package manifest loads the YAML file listing what goes into a bundle.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/ldemailly/luabundle/minify"
)

const (
	SupportedSchema = "v1"
	DefaultOutput   = "MTATD.bundle.lua"
	DefaultFile     = "bundle.yaml"
)

// Manifest is the ordered list of sources and where the bundle goes.
type Manifest struct {
	SchemaVersion string   `yaml:"schema_version"`
	Version       string   `yaml:"version,omitempty"`
	Output        string   `yaml:"output"`
	Minify        bool     `yaml:"minify"`
	Files         []string `yaml:"files"`

	// Dir is the directory of the manifest file; relative paths are resolved against it.
	Dir string `yaml:"-"`
}

// Load parses and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	m.Dir = filepath.Dir(abs)
	return m, nil
}

// Parse decodes and validates a manifest; Dir is left empty.
func Parse(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m.SchemaVersion == "" {
		m.SchemaVersion = SupportedSchema
	}
	if m.SchemaVersion != SupportedSchema {
		return nil, fmt.Errorf("schema_version %q not supported (want %q)", m.SchemaVersion, SupportedSchema)
	}
	if m.Version != "" && !semver.IsValid(m.Version) {
		return nil, fmt.Errorf("version %q is not a valid semantic version (e.g. v1.2.3)", m.Version)
	}
	if m.Output == "" {
		m.Output = DefaultOutput
	}
	if len(m.Files) == 0 {
		return nil, errors.New("no files listed")
	}
	for i, f := range m.Files {
		if f == "" {
			return nil, fmt.Errorf("files[%d] is empty", i)
		}
	}
	return &m, nil
}

// Mode is the mode to use when none is given on the command line.
func (m *Manifest) Mode() minify.Mode {
	if m.Minify {
		return minify.Minify
	}
	return minify.Raw
}

// OutputPath resolves Output against the manifest directory.
func (m *Manifest) OutputPath() string {
	if filepath.IsAbs(m.Output) || m.Dir == "" {
		return m.Output
	}
	return filepath.Join(m.Dir, m.Output)
}

// Label is the manifest version in canonical form, or "unversioned".
func (m *Manifest) Label() string {
	if m.Version == "" {
		return "unversioned"
	}
	return semver.Canonical(m.Version)
}
