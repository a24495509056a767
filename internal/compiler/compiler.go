// Package compiler drives a whole compilation: it resolves modules depth
// first in dependency order, runs the analysis stages on each, performs the
// program-wide passes and hands the result to code generation.
package compiler

import (
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/funvibe/c4c/internal/analyzer"
	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/diagnostics"
	"github.com/funvibe/c4c/internal/modules"
	"github.com/funvibe/c4c/internal/pipeline"
	"github.com/funvibe/c4c/internal/schema"
	"github.com/funvibe/c4c/internal/typesystem"
	"github.com/funvibe/c4c/internal/vm"
)

// Options configures New. Zero values select the defaults: an empty
// source, an empty schema, a fresh registry and a discarding logger.
type Options struct {
	Source        modules.Source
	Schema        *schema.Schema
	Registry      *typesystem.Registry
	Logger        *log.Logger
	FoldConstants bool
	Severity      map[diagnostics.Code]diagnostics.Severity
}

// CompileContext is the cross-module state of one compilation.
type CompileContext struct {
	ID       uuid.UUID
	Session  *pipeline.Session
	Ordering []*modules.Module // dependencies before dependents
	Fatal    bool

	loader    *modules.Loader
	cache     map[string]*modules.Module
	backlog   map[string]bool // resolution started, not finished
	processed map[string]bool
	stack     []string // names in backlog, in resolution order
	loose     []*diagnostics.DiagnosticError
}

// Result is what Compile produces.
type Result struct {
	ID          uuid.UUID
	Entry       string
	Modules     []*modules.Module
	Diagnostics []*diagnostics.DiagnosticError
	Programs    []*vm.Program // empty when Fatal
	Pool        *vm.ConstPool
	Fatal       bool
}

func New(opts Options) *CompileContext {
	src := opts.Source
	if src == nil {
		src = modules.MapSource{}
	}
	s := pipeline.NewSession(pipeline.SessionOptions{
		Schema:        opts.Schema,
		Registry:      opts.Registry,
		Logger:        opts.Logger,
		FoldConstants: opts.FoldConstants,
		Severity:      opts.Severity,
	})
	analyzer.RegisterBuiltins(s)
	return &CompileContext{
		ID:        uuid.New(),
		Session:   s,
		loader:    modules.NewLoader(src),
		cache:     make(map[string]*modules.Module),
		backlog:   make(map[string]bool),
		processed: make(map[string]bool),
	}
}

// Module returns a module resolved earlier.
func (c *CompileContext) Module(name string) (*modules.Module, bool) {
	m, ok := c.cache[name]
	return m, ok && !m.LoadFailed
}

// Resolve returns the analyzed module name, loading and analyzing it and
// its imports first if needed. importer and pos locate the import that
// asked for it; importer is nil for the entry module. The result is nil
// when the module cannot be loaded or closes a dependency cycle.
func (c *CompileContext) Resolve(name string, importer *modules.Module, pos ast.Pos) *modules.Module {
	if c.backlog[name] {
		c.cycle(name, importer, pos)
		return nil
	}
	if m, ok := c.cache[name]; ok {
		if m.LoadFailed {
			return nil
		}
		return m
	}

	mod, err := c.loader.Load(name)
	if err != nil {
		c.cache[name] = &modules.Module{Name: name, LoadFailed: true}
		c.report(importer, diagnostics.Errorf(diagnostics.ErrModuleLoad, pos, "%v", err))
		c.Session.Logf("load %s failed: %v", name, err)
		return nil
	}
	c.Session.Logf("resolving %s (%s)", name, mod.File)
	c.cache[name] = mod
	c.backlog[name] = true
	c.stack = append(c.stack, name)

	ctx := pipeline.NewContext(c.Session, mod)
	analyzer.Declarations().Run(ctx)
	for _, imp := range mod.Imports {
		if dep := c.Resolve(imp, mod, importPos(mod, imp)); dep != nil {
			mod.Deps[imp] = dep
		}
	}
	analyzer.Analysis().Run(ctx)

	c.stack = c.stack[:len(c.stack)-1]
	delete(c.backlog, name)
	c.processed[name] = true
	c.Ordering = append(c.Ordering, mod)
	c.Session.Logf("resolved %s: %d diagnostics", name, len(mod.Errors))
	return mod
}

func (c *CompileContext) cycle(name string, importer *modules.Module, pos ast.Pos) {
	start := 0
	for i, n := range c.stack {
		if n == name {
			start = i
			break
		}
	}
	path := append(append([]string(nil), c.stack[start:]...), name)
	chain := strings.Join(path, " -> ")
	c.report(importer, diagnostics.Errorf(diagnostics.ErrDependencyCycle, pos, "import cycle: %s", chain))
	c.Session.Logf("dependency cycle %s", chain)
}

func (c *CompileContext) report(importer *modules.Module, err *diagnostics.DiagnosticError) {
	if importer == nil {
		if diagnostics.Adjust(c.Session.Severity, err) {
			c.loose = append(c.loose, err)
		}
		return
	}
	pipeline.NewContext(c.Session, importer).Report(err)
}

func importPos(mod *modules.Module, name string) ast.Pos {
	for _, st := range mod.Tree.Children {
		if st.Kind == ast.Import && st.Value == name {
			return st.Pos
		}
	}
	return mod.Tree.Pos
}

// Compile resolves entry and everything it imports, finalizes the program
// and, when no fatal diagnostic was reported, generates code. The error is
// reserved for internal failures; problems in the program are diagnostics.
func (c *CompileContext) Compile(entry string) (*Result, error) {
	c.Session.Logf("session %s: compiling %s", c.ID, entry)
	root := c.Resolve(entry, nil, ast.Pos{})

	c.Session.Logf("re-inferring %d modules", len(c.Ordering))
	for _, m := range c.Ordering {
		analyzer.Reinference().Run(pipeline.NewContext(c.Session, m))
	}
	for _, m := range c.Ordering {
		analyzer.Layout().Run(pipeline.NewContext(c.Session, m))
	}
	analyzer.LayoutAttributes(c.Session)
	if root != nil {
		analyzer.CheckRequired(c.Session, c.Ordering, root)
	}

	bag := diagnostics.NewBag(c.Session.Severity)
	bag.AddAll(c.loose)
	for _, m := range c.Ordering {
		bag.AddAll(m.Errors)
	}
	c.Fatal = bag.HasFatal()

	res := &Result{
		ID:          c.ID,
		Entry:       entry,
		Modules:     c.Ordering,
		Diagnostics: bag.Items(),
		Pool:        c.Session.Pool,
		Fatal:       c.Fatal,
	}
	if c.Fatal {
		c.Session.Logf("stopping before code generation: fatal diagnostics")
		return res, nil
	}
	for _, m := range c.Ordering {
		prog, err := vm.Generate(m, c.Session.Pool, c.Session.Registry)
		if err != nil {
			return res, errors.Wrapf(err, "generate %s", m.Name)
		}
		res.Programs = append(res.Programs, prog)
	}
	return res, nil
}

// Compile is a shorthand for New(opts).Compile(entry).
func Compile(entry string, opts Options) (*Result, error) {
	return New(opts).Compile(entry)
}
