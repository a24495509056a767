package ast

import "fmt"

// NodeKind tags a parse tree node.
type NodeKind int

const (
	Invalid NodeKind = iota

	// Structure
	Module     // children: statements
	Block      // children: statements
	Import     // Value: module name
	Section    // Value: dotted section path; children: [Block]
	Param      // Value: name; Type: annotation; children: [default expr]?
	Enum       // children: Ident values
	FuncDecl   // Value: name; Type: return annotation; children: [Formals, Block]
	Formals    // children: Formal
	Formal     // Value: name; Type: annotation
	ExternDecl // Value: name; Type: func annotation

	// Statements
	VarDecl    // Value: name; Type: annotation
	ConstDecl  // Value: name; Type: annotation; children: [expr]
	Assign     // Type: annotation; children: [Ident|AttrRef, expr]
	ExprStmt   // children: [expr]
	If         // children: [cond, Block, (Block|If)?]
	While      // children: [cond, Block]
	For        // Value: loop variable; children: [from, to, Block]
	Break      //
	Continue   //
	Return     // children: [expr]?

	// Expressions
	Ident     // Value: name
	AttrRef   // Value: dotted path
	IntLit    // Value: digits; Modifier: literal modifier
	FloatLit  // Value: text; Modifier
	StringLit // Value: text
	BoolLit   // Value: "true" | "false"
	ListLit   // children: elements
	DictLit   // children: KeyValue
	KeyValue  // children: [key, value]
	TupleLit  // children: elements
	Binary    // Value: operator; children: [left, right]
	Unary     // Value: operator; children: [operand]
	Call      // Value: callee name; children: arguments
	Index     // children: [container, index]
)

var kindNames = map[NodeKind]string{
	Invalid:    "invalid",
	Module:     "module",
	Block:      "block",
	Import:     "import",
	Section:    "section",
	Param:      "param",
	Enum:       "enum",
	FuncDecl:   "func",
	Formals:    "formals",
	Formal:     "formal",
	ExternDecl: "extern",
	VarDecl:    "var",
	ConstDecl:  "const",
	Assign:     "assign",
	ExprStmt:   "expr",
	If:         "if",
	While:      "while",
	For:        "for",
	Break:      "break",
	Continue:   "continue",
	Return:     "return",
	Ident:      "ident",
	AttrRef:    "attr",
	IntLit:     "int",
	FloatLit:   "float",
	StringLit:  "string",
	BoolLit:    "bool",
	ListLit:    "list",
	DictLit:    "dict",
	KeyValue:   "kv",
	TupleLit:   "tuple",
	Binary:     "binary",
	Unary:      "unary",
	Call:       "call",
	Index:      "index",
}

var kindsByName map[string]NodeKind

func init() {
	kindsByName = make(map[string]NodeKind, len(kindNames))
	for k, name := range kindNames {
		kindsByName[name] = k
	}
}

func (k NodeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a kind name back to its NodeKind.
func ParseKind(name string) (NodeKind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}

// IsExpression reports whether nodes of kind k produce a value.
func (k NodeKind) IsExpression() bool {
	return k >= Ident && k <= Index
}

// IsLiteral reports whether k is a scalar literal.
func (k NodeKind) IsLiteral() bool {
	switch k {
	case IntLit, FloatLit, StringLit, BoolLit:
		return true
	}
	return false
}
