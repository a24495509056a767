package modules

import (
	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/cfg"
	"github.com/funvibe/c4c/internal/diagnostics"
	"github.com/funvibe/c4c/internal/symbols"
	"github.com/funvibe/c4c/internal/typesystem"
)

// Module is the per-module compilation state: the parse tree and every
// analysis result attached to it.
type Module struct {
	Name    string
	File    string
	Tree    *ast.Node
	Scope   *symbols.Scope
	Imports []string           // imported module names in source order
	Deps    map[string]*Module // resolved imports

	Body   *cfg.Graph            // module top level
	Funcs  []*cfg.Graph          // one per function, in declaration order
	Params []*symbols.Symbol     // module parameters (param declarations)
	Scopes map[*ast.Node]*symbols.Scope

	TypeMap  map[*ast.Node]typesystem.TypeRef // inferred type of every expression
	Resolved map[*ast.Node]*symbols.Symbol    // name-bearing node -> symbol
	Errors   []*diagnostics.DiagnosticError

	Declared   bool
	Inferred   bool
	Analyzed   bool
	Finalized  bool
	LoadFailed bool
}

// New creates an empty module around tree.
func New(name, file string, tree *ast.Node) *Module {
	return &Module{
		Name:     name,
		File:     file,
		Tree:     tree,
		Deps:     make(map[string]*Module),
		Scopes:   make(map[*ast.Node]*symbols.Scope),
		TypeMap:  make(map[*ast.Node]typesystem.TypeRef),
		Resolved: make(map[*ast.Node]*symbols.Symbol),
	}
}

// AddError attaches a diagnostic to the module.
func (m *Module) AddError(err *diagnostics.DiagnosticError) {
	if err.File == "" {
		err.File = m.File
	}
	m.Errors = append(m.Errors, err)
}

// HasFatal reports whether any attached diagnostic is error class.
func (m *Module) HasFatal() bool {
	for _, e := range m.Errors {
		if e.IsFatal() {
			return true
		}
	}
	return false
}

// Bind records that n names sym.
func (m *Module) Bind(n *ast.Node, sym *symbols.Symbol) {
	m.Resolved[n] = sym
}

// SymbolOf returns the symbol bound to n.
func (m *Module) SymbolOf(n *ast.Node) *symbols.Symbol {
	return m.Resolved[n]
}

// SetType records the inferred type of n.
func (m *Module) SetType(n *ast.Node, t typesystem.TypeRef) { m.TypeMap[n] = t }

// TypeOf returns the inferred type of n, NoType when unknown.
func (m *Module) TypeOf(n *ast.Node) typesystem.TypeRef { return m.TypeMap[n] }

// Graphs returns the module body graph followed by the function graphs.
func (m *Module) Graphs() []*cfg.Graph {
	var out []*cfg.Graph
	if m.Body != nil {
		out = append(out, m.Body)
	}
	return append(out, m.Funcs...)
}

// Exports returns the module-level symbols visible to importers.
func (m *Module) Exports() []*symbols.Symbol {
	if m.Scope == nil {
		return nil
	}
	var out []*symbols.Symbol
	for _, s := range m.Scope.Symbols() {
		if s.Has(symbols.Exported) {
			out = append(out, s)
		}
	}
	return out
}

// ScanImports lists the import statements of the tree without duplicates.
func ScanImports(tree *ast.Node) []string {
	seen := make(map[string]bool)
	var out []string
	for _, st := range tree.Children {
		if st.Kind == ast.Import && st.Value != "" && !seen[st.Value] {
			seen[st.Value] = true
			out = append(out, st.Value)
		}
	}
	return out
}
