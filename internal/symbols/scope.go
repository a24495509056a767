package symbols

import (
	"fmt"
	"strings"

	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/schema"
	"github.com/funvibe/c4c/internal/typesystem"
)

type ScopeType int

const (
	ScopeGlobal ScopeType = iota // builtins shared by every module
	ScopeModule
	ScopeFunction
	ScopeFormals
	ScopeBlock
	ScopeAttribute // resolves dotted paths through the schema
)

func (t ScopeType) String() string {
	switch t {
	case ScopeGlobal:
		return "global"
	case ScopeModule:
		return "module"
	case ScopeFunction:
		return "function"
	case ScopeFormals:
		return "formals"
	case ScopeBlock:
		return "block"
	case ScopeAttribute:
		return "attribute"
	}
	return "unknown"
}

// ScopeOptions configures NewScope.
type ScopeOptions struct {
	Type   ScopeType
	Name   string // module or function name, used in messages
	Module string // owning module stamped on declared symbols
	Outer  *Scope

	// Attribute scopes only.
	Schema    *schema.Schema
	FieldType func(info schema.AttrInfo) typesystem.TypeRef
}

// Scope maps names to symbols and chains to an outer scope.
type Scope struct {
	scopeType ScopeType
	name      string
	module    string
	outer     *Scope
	store     map[string]*Symbol
	order     []*Symbol
	imports   []*Scope

	schema    *schema.Schema
	fieldType func(info schema.AttrInfo) typesystem.TypeRef
}

// NewScope creates a scope. The module name is inherited from Outer when
// not given.
func NewScope(opts ScopeOptions) *Scope {
	s := &Scope{
		scopeType: opts.Type,
		name:      opts.Name,
		module:    opts.Module,
		outer:     opts.Outer,
		store:     make(map[string]*Symbol),
		schema:    opts.Schema,
		fieldType: opts.FieldType,
	}
	if s.module == "" && s.outer != nil {
		s.module = s.outer.module
	}
	return s
}

// Enclosed is shorthand for a nested scope of type t.
func (s *Scope) Enclosed(t ScopeType, name string) *Scope {
	return NewScope(ScopeOptions{Type: t, Name: name, Outer: s})
}

func (s *Scope) Type() ScopeType { return s.scopeType }

func (s *Scope) Name() string { return s.name }

func (s *Scope) Module() string { return s.module }

func (s *Scope) Outer() *Scope { return s.outer }

// InFunction reports whether s is nested inside a function body.
func (s *Scope) InFunction() bool {
	for c := s; c != nil; c = c.outer {
		switch c.scopeType {
		case ScopeFunction, ScopeFormals:
			return true
		case ScopeModule, ScopeGlobal:
			return false
		}
	}
	return false
}

// Import makes the symbols of other visible to lookups in s, after s's own
// entries and before its outer scopes.
func (s *Scope) Import(other *Scope) {
	for _, o := range s.imports {
		if o == other {
			return
		}
	}
	s.imports = append(s.imports, other)
}

// DuplicateError reports a conflicting redeclaration.
type DuplicateError struct {
	Name     string
	Kind     SymbolKind
	Existing *Symbol
}

func (e *DuplicateError) Error() string {
	where := ""
	if e.Existing.DeclNode != nil {
		where = fmt.Sprintf(" (previous declaration at %s)", e.Existing.DeclNode.Pos)
	}
	return fmt.Sprintf("%s %q redeclared as %s%s", e.Existing.Kind, e.Name, e.Kind, where)
}

// redeclarable reports whether a second declaration of kind k may reuse an
// existing symbol of the same kind. Variables and attributes are declared
// implicitly by assignment, so every assignment after the first lands here.
func redeclarable(k SymbolKind) bool {
	return k == VariableSymbol || k == AttrSymbol
}

// Declare adds name to s. Redeclaring a variable or attribute returns the
// existing symbol; any other clash in the same scope is a DuplicateError.
// Shadowing a name from an outer scope is always allowed.
func (s *Scope) Declare(name string, kind SymbolKind, decl *ast.Node) (*Symbol, error) {
	if existing, ok := s.store[name]; ok {
		if existing.Kind == kind && redeclarable(kind) {
			return existing, nil
		}
		return existing, &DuplicateError{Name: name, Kind: kind, Existing: existing}
	}
	sym := &Symbol{
		Name:     name,
		Kind:     kind,
		Scope:    s,
		Offset:   -1,
		DeclNode: decl,
		Module:   s.module,
	}
	s.storageFor(sym)
	s.store[name] = sym
	s.order = append(s.order, sym)
	return sym, nil
}

func (s *Scope) storageFor(sym *Symbol) {
	if s.InFunction() {
		sym.Set(FunctionScope)
	}
	switch sym.Kind {
	case FormalSymbol:
		sym.Set(Register)
	case VariableSymbol:
		if sym.Has(FunctionScope) {
			sym.Set(Stack)
		} else {
			sym.Set(Static)
		}
	case AttrSymbol:
		sym.Set(Static)
	}
}

// LookupLocal finds name in s only.
func (s *Scope) LookupLocal(name string) (*Symbol, bool) {
	sym, ok := s.store[name]
	return sym, ok
}

// Lookup walks s, its imports, then the outer chain.
func (s *Scope) Lookup(name string) (*Symbol, bool) {
	for c := s; c != nil; c = c.outer {
		if sym, ok := c.store[name]; ok {
			return sym, true
		}
		for _, imp := range c.imports {
			if sym, ok := imp.store[name]; ok && sym.importable() {
				return sym, true
			}
		}
	}
	return nil, false
}

func (sym *Symbol) importable() bool {
	return sym.Kind != FormalSymbol && !sym.Has(FunctionScope)
}

// LookupAttr resolves a dotted attribute path in an attribute scope.
// The schema is consulted instead of the lexical chain; a field path that
// resolves is materialized as an AttrSymbol on first use. Paths that do not
// resolve to a field yield a nil symbol and the AttrInfo explaining why.
func (s *Scope) LookupAttr(path []string, decl *ast.Node) (*Symbol, schema.AttrInfo) {
	attr := s.attributeScope()
	if attr == nil || attr.schema == nil {
		return nil, schema.AttrInfo{Path: path, Err: schema.ErrNoSuchSection, Segment: 0}
	}
	info := schema.GetAttrInfo(attr.schema, path)
	if !info.OK() {
		return nil, info
	}
	if info.Kind != schema.AttrField && info.Kind != schema.AttrUserField {
		return nil, info
	}
	key := strings.Join(path, ".")
	if sym, ok := attr.store[key]; ok {
		return sym, info
	}
	sym, _ := attr.Declare(key, AttrSymbol, decl)
	if info.Field != nil && info.Field.Lock {
		sym.Set(UserImmutable)
	}
	if attr.fieldType != nil {
		sym.Declared = attr.fieldType(info)
	}
	return sym, info
}

func (s *Scope) attributeScope() *Scope {
	for c := s; c != nil; c = c.outer {
		if c.scopeType == ScopeAttribute {
			return c
		}
		for _, imp := range c.imports {
			if imp.scopeType == ScopeAttribute {
				return imp
			}
		}
	}
	return nil
}

// Symbols returns the entries of s in declaration order.
func (s *Scope) Symbols() []*Symbol {
	out := make([]*Symbol, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of entries declared directly in s.
func (s *Scope) Len() int { return len(s.order) }
