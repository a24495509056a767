// Package symbols implements the chained scope model: global, module,
// function, formals, block and attribute scopes holding Symbols.
package symbols

import (
	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/typesystem"
)

type SymbolKind int

const (
	ModuleSymbol SymbolKind = iota
	FuncSymbol
	ExternFuncSymbol
	EnumTypeSymbol
	EnumValueSymbol
	AttrSymbol
	VariableSymbol
	FormalSymbol
)

func (k SymbolKind) String() string {
	switch k {
	case ModuleSymbol:
		return "module"
	case FuncSymbol:
		return "function"
	case ExternFuncSymbol:
		return "extern function"
	case EnumTypeSymbol:
		return "enum type"
	case EnumValueSymbol:
		return "enum value"
	case AttrSymbol:
		return "attribute"
	case VariableSymbol:
		return "variable"
	case FormalSymbol:
		return "parameter"
	}
	return "unknown"
}

// Flags is the symbol flag bitset.
type Flags uint16

const (
	HasInitializer Flags = 1 << iota
	Const                // declared with const; at most one def
	UserImmutable        // attribute locked by the schema
	Static               // stored in the module's static area
	Stack                // stored in the function frame
	Register             // passed in a register (formals)
	FunctionScope        // declared inside a function body
	Placeholder          // error-typed stand-in for an unresolved name
	Exported             // visible to importing modules
)

// Symbol is a scope entry.
//
// Declared is the annotation type (NoType when absent); Type is the
// inferred type and is unified with Declared whenever both exist.
type Symbol struct {
	Name     string
	Kind     SymbolKind
	Scope    *Scope
	Declared typesystem.TypeRef
	Type     typesystem.TypeRef
	Flags    Flags
	Uses     []*ast.Node
	Defs     []*ast.Node
	Offset   int // -1 until layout
	DeclNode *ast.Node
	Module   string // owning module name
	ConstID  uint32 // constant pool id of the folded value, 0 when not folded
}

// Has reports whether every flag in f is set.
func (s *Symbol) Has(f Flags) bool { return s.Flags&f == f }

// Set sets f.
func (s *Symbol) Set(f Flags) { s.Flags |= f }

// RecordUse appends a read site.
func (s *Symbol) RecordUse(n *ast.Node) { s.Uses = append(s.Uses, n) }

// RecordDef appends an assignment site.
func (s *Symbol) RecordDef(n *ast.Node) { s.Defs = append(s.Defs, n) }

// IsStorage reports whether the symbol occupies a runtime slot.
func (s *Symbol) IsStorage() bool {
	switch s.Kind {
	case VariableSymbol, FormalSymbol, AttrSymbol:
		return true
	}
	return false
}

// QualifiedName returns module.name for module-level symbols.
func (s *Symbol) QualifiedName() string {
	if s.Module == "" || s.Has(FunctionScope) || s.Kind == FormalSymbol {
		return s.Name
	}
	return s.Module + "." + s.Name
}
