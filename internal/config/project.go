package config

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/funvibe/c4c/internal/diagnostics"
)

// Project is the c4c.yaml project file.
type Project struct {
	// Entry is the module compiled when none is given on the command line.
	Entry string `yaml:"entry,omitempty"`

	// SearchPaths are the directories searched for <module>.tree.yaml,
	// relative to the project file. Defaults to the project directory.
	SearchPaths []string `yaml:"search_paths,omitempty"`

	// Schema is the attribute schema file, relative to the project file.
	Schema string `yaml:"schema,omitempty"`

	// FoldConstants enables compile-time evaluation. Defaults to true.
	FoldConstants *bool `yaml:"fold_constants,omitempty"`

	// Cache is the SQLite build history file. Empty disables history.
	Cache string `yaml:"cache,omitempty"`

	// Severity overrides the default severity of diagnostic codes. Keys
	// are short codes (W001) or names (use-without-def); values are error,
	// warning, note or ignore.
	Severity map[string]string `yaml:"severity,omitempty"`

	// Color is auto, always or never.
	Color string `yaml:"color,omitempty"`

	dir       string
	overrides map[diagnostics.Code]diagnostics.Severity
	color     diagnostics.ColorMode
}

// LoadProject reads and validates a project file.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading project %s", path)
	}
	return ParseProject(data, path)
}

// ParseProject parses project file content. Relative paths are resolved
// against the directory of path.
func ParseProject(data []byte, path string) (*Project, error) {
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	p.dir = filepath.Dir(path)
	if err := p.validate(path); err != nil {
		return nil, err
	}
	p.setDefaults()
	return &p, nil
}

// DefaultProject is the configuration used when no project file exists.
func DefaultProject() *Project {
	p := &Project{dir: "."}
	p.setDefaults()
	return p
}

func (p *Project) validate(path string) error {
	p.overrides = make(map[diagnostics.Code]diagnostics.Severity, len(p.Severity))
	keys := make([]string, 0, len(p.Severity))
	for k := range p.Severity {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		code, ok := diagnostics.ParseCode(k)
		if !ok {
			return errors.Errorf("%s: severity: unknown diagnostic %q", path, k)
		}
		sev, ok := diagnostics.ParseSeverity(p.Severity[k])
		if !ok {
			return errors.Errorf("%s: severity: %s: unknown severity %q", path, k, p.Severity[k])
		}
		p.overrides[code] = sev
	}
	mode, ok := diagnostics.ParseColorMode(p.Color)
	if !ok {
		return errors.Errorf("%s: color must be auto, always or never, got %q", path, p.Color)
	}
	p.color = mode
	for i, sp := range p.SearchPaths {
		if sp == "" {
			return errors.Errorf("%s: search_paths[%d] is empty", path, i)
		}
	}
	return nil
}

func (p *Project) setDefaults() {
	if p.FoldConstants == nil {
		on := true
		p.FoldConstants = &on
	}
	if len(p.SearchPaths) == 0 {
		p.SearchPaths = []string{"."}
	}
	if p.overrides == nil {
		p.overrides = map[diagnostics.Code]diagnostics.Severity{}
	}
}

// Resolve makes a project-relative path absolute-ish: absolute paths and
// the empty string are returned unchanged.
func (p *Project) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.dir, path)
}

// Dirs returns the search paths resolved against the project directory.
func (p *Project) Dirs() []string {
	out := make([]string, len(p.SearchPaths))
	for i, sp := range p.SearchPaths {
		out[i] = p.Resolve(sp)
	}
	return out
}

// Fold reports whether constant folding is enabled.
func (p *Project) Fold() bool { return p.FoldConstants == nil || *p.FoldConstants }

// Overrides returns the parsed severity overrides.
func (p *Project) Overrides() map[diagnostics.Code]diagnostics.Severity { return p.overrides }

// ColorMode returns the parsed colour mode.
func (p *Project) ColorMode() diagnostics.ColorMode { return p.color }
