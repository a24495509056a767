package modules

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/config"
)

// Source produces the parse tree of a named module. It stands in for the
// external lexer and parser.
type Source interface {
	// Load returns the tree and the file it came from.
	Load(name string) (*ast.Node, string, error)
}

// ErrNotFound is returned (wrapped) when no source has the module.
var ErrNotFound = errors.New("module not found")

// DirSource reads <dir>/<name>.tree.yaml from the first search path that
// has it. Dotted module names map to subdirectories: net.http is looked
// up as net/http.tree.yaml.
type DirSource struct {
	Paths []string
}

func (d DirSource) Load(name string) (*ast.Node, string, error) {
	rel := filepath.FromSlash(strings.ReplaceAll(name, config.ModuleSeparator, "/"))
	for _, dir := range d.Paths {
		for _, ext := range config.SourceFileExtensions {
			path := filepath.Join(dir, rel+ext)
			data, err := os.ReadFile(path)
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				return nil, path, errors.Wrapf(err, "read %s", path)
			}
			tree, err := ast.DecodeTree(data, path)
			if err != nil {
				return nil, path, err
			}
			return tree, path, nil
		}
	}
	return nil, "", errors.Wrapf(ErrNotFound, "%s (searched %s)", name, strings.Join(d.Paths, ", "))
}

// MapSource serves trees from memory.
type MapSource map[string]*ast.Node

func (m MapSource) Load(name string) (*ast.Node, string, error) {
	tree, ok := m[name]
	if !ok {
		return nil, "", errors.Wrap(ErrNotFound, name)
	}
	file := name + config.SourceFileExt
	ast.SetFile(tree, file)
	return tree, file, nil
}

// Names lists the modules of m in sorted order.
func (m MapSource) Names() []string {
	out := make([]string, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Chain tries each source in turn and returns the first hit.
type Chain []Source

func (c Chain) Load(name string) (*ast.Node, string, error) {
	var last error = errors.Wrap(ErrNotFound, name)
	for _, s := range c {
		tree, file, err := s.Load(name)
		if err == nil {
			return tree, file, nil
		}
		if errors.Cause(err) != ErrNotFound {
			return nil, file, err
		}
		last = err
	}
	return nil, "", last
}

// Loader turns source trees into Modules.
type Loader struct {
	Source Source
}

func NewLoader(src Source) *Loader {
	return &Loader{Source: src}
}

// Load reads a module and scans its imports. The returned module has no
// scope yet; declaration collection happens in the analyzer.
func (l *Loader) Load(name string) (*Module, error) {
	tree, file, err := l.Source.Load(name)
	if err != nil {
		return nil, errors.Wrapf(err, "load module %s", name)
	}
	if err := ast.Validate(tree); err != nil {
		return nil, errors.Wrapf(err, "load module %s", name)
	}
	if tree.Kind != ast.Module {
		return nil, errors.Errorf("load module %s: root node is %s, want module", name, tree.Kind)
	}
	mod := New(name, file, tree)
	mod.Imports = ScanImports(tree)
	return mod, nil
}
