package typesystem

import (
	"fmt"
)

// TypeRef identifies a type node inside an Env. Type variables carry VarBit
// so a reference alone tells whether it names a variable or a concrete node.
// The zero TypeRef means "no type".
type TypeRef uint64

// VarBit marks references to type variables.
const VarBit TypeRef = 1 << 63

// NoType is the zero reference.
const NoType TypeRef = 0

// IsVar reports whether r names a type variable (bound or not).
func (r TypeRef) IsVar() bool { return r&VarBit != 0 }

func (r TypeRef) index() int { return int(r &^ VarBit) }

func (r TypeRef) String() string {
	if r == NoType {
		return "<none>"
	}
	if r.IsVar() {
		return fmt.Sprintf("var#%d", r.index())
	}
	return fmt.Sprintf("type#%d", r.index())
}

// TypeKind is the variant tag of a type node.
type TypeKind uint8

const (
	KindVariable TypeKind = iota
	KindPrimitive
	KindContainer
	KindFunction
	KindTuple
	KindError
)

func (k TypeKind) String() string {
	switch k {
	case KindVariable:
		return "variable"
	case KindPrimitive:
		return "primitive"
	case KindContainer:
		return "container"
	case KindFunction:
		return "function"
	case KindTuple:
		return "tuple"
	case KindError:
		return "error"
	}
	return "unknown"
}

// BaseType enumerates the built-in type constructors.
type BaseType uint8

const (
	BaseNone BaseType = iota // type variables
	BaseError
	BaseVoid
	BaseBool
	BaseInt
	BaseFloat
	BaseString
	BaseDuration
	BaseSize
	BaseList
	BaseDict
	BaseTuple
	BaseFunc
)

var baseNames = [...]string{
	BaseNone:     "none",
	BaseError:    "error",
	BaseVoid:     "void",
	BaseBool:     "bool",
	BaseInt:      "int",
	BaseFloat:    "float",
	BaseString:   "string",
	BaseDuration: "duration",
	BaseSize:     "size",
	BaseList:     "list",
	BaseDict:     "dict",
	BaseTuple:    "tuple",
	BaseFunc:     "func",
}

func (b BaseType) String() string {
	if int(b) < len(baseNames) {
		return baseNames[b]
	}
	return fmt.Sprintf("base(%d)", int(b))
}

// Kind returns the node variant that base type constructs.
func (b BaseType) Kind() TypeKind {
	switch b {
	case BaseNone:
		return KindVariable
	case BaseError:
		return KindError
	case BaseList, BaseDict:
		return KindContainer
	case BaseTuple:
		return KindTuple
	case BaseFunc:
		return KindFunction
	}
	return KindPrimitive
}

// Arity returns the fixed parameter count of a container base type, or -1
// when the count is variable (tuples, functions) or not applicable.
func (b BaseType) Arity() int {
	switch b {
	case BaseList:
		return 1
	case BaseDict:
		return 2
	case BaseTuple, BaseFunc:
		return -1
	}
	return 0
}

// IsNumeric reports whether arithmetic operators apply to b.
func (b BaseType) IsNumeric() bool {
	switch b {
	case BaseInt, BaseFloat, BaseDuration, BaseSize:
		return true
	}
	return false
}

// TypeFlags holds per-node flags.
type TypeFlags uint8

const (
	FlagLocked TypeFlags = 1 << iota // no further narrowing allowed
	FlagError                        // the error type
	FlagGeneric                      // variable came from a user annotation (`t)
)

// Type is a node in the Env table.
//
// For functions Params holds the formal parameter types followed by the
// return type, so a function of n parameters has n+1 entries.
type Type struct {
	ID     TypeRef
	Kind   TypeKind
	Base   BaseType
	Params []TypeRef
	Flags  TypeFlags
	Name   string // annotation name for generic variables

	link TypeRef // variables only: forward alias, NoType when unbound
}

// Locked reports whether the node refuses further narrowing.
func (t *Type) Locked() bool { return t.Flags&FlagLocked != 0 }

// IsError reports whether the node is the error type.
func (t *Type) IsError() bool { return t.Flags&FlagError != 0 }

// Bound reports whether a variable has been aliased to another node.
func (t *Type) Bound() bool { return t.link != NoType }

// FuncParams splits a function node into its parameters and return type.
func (t *Type) FuncParams() ([]TypeRef, TypeRef) {
	if t.Kind != KindFunction || len(t.Params) == 0 {
		return nil, NoType
	}
	return t.Params[:len(t.Params)-1], t.Params[len(t.Params)-1]
}
