package ast

// Constructors used by embedders and tests to assemble trees without a
// parser. Positions are left zero; use At to set them.

func NewModule(stmts ...*Node) *Node { return &Node{Kind: Module, Children: stmts} }

func NewBlock(stmts ...*Node) *Node { return &Node{Kind: Block, Children: stmts} }

func NewImport(name string) *Node { return &Node{Kind: Import, Value: name} }

func NewIdent(name string) *Node { return &Node{Kind: Ident, Value: name} }

func NewAttrRef(path string) *Node { return &Node{Kind: AttrRef, Value: path} }

func NewInt(text string) *Node { return &Node{Kind: IntLit, Value: text} }

func NewFloat(text string) *Node { return &Node{Kind: FloatLit, Value: text} }

func NewString(text string) *Node { return &Node{Kind: StringLit, Value: text} }

func NewBool(v bool) *Node {
	if v {
		return &Node{Kind: BoolLit, Value: "true"}
	}
	return &Node{Kind: BoolLit, Value: "false"}
}

// NewModLit builds a literal carrying a modifier, e.g. NewModLit("10", "s").
func NewModLit(text, modifier string) *Node {
	return &Node{Kind: IntLit, Value: text, Modifier: modifier}
}

func NewList(elems ...*Node) *Node  { return &Node{Kind: ListLit, Children: elems} }
func NewTuple(elems ...*Node) *Node { return &Node{Kind: TupleLit, Children: elems} }

func NewDict(pairs ...*Node) *Node { return &Node{Kind: DictLit, Children: pairs} }

func NewKV(k, v *Node) *Node { return &Node{Kind: KeyValue, Children: []*Node{k, v}} }

func NewBinary(op string, l, r *Node) *Node {
	return &Node{Kind: Binary, Value: op, Children: []*Node{l, r}}
}

func NewUnary(op string, operand *Node) *Node {
	return &Node{Kind: Unary, Value: op, Children: []*Node{operand}}
}

func NewCall(name string, args ...*Node) *Node {
	return &Node{Kind: Call, Value: name, Children: args}
}

func NewIndex(container, idx *Node) *Node {
	return &Node{Kind: Index, Children: []*Node{container, idx}}
}

// NewAssign builds `name = value`; annotation may be empty.
func NewAssign(name string, annotation string, value *Node) *Node {
	n := &Node{Kind: Assign, Children: []*Node{NewIdent(name), value}}
	if annotation != "" {
		n.Type = MustParseTypeExpr(annotation)
	}
	return n
}

// NewAttrAssign builds `a.b.c = value`.
func NewAttrAssign(path string, value *Node) *Node {
	return &Node{Kind: Assign, Children: []*Node{NewAttrRef(path), value}}
}

func NewConst(name string, value *Node) *Node {
	return &Node{Kind: ConstDecl, Value: name, Children: []*Node{value}}
}

func NewVar(name, annotation string) *Node {
	n := &Node{Kind: VarDecl, Value: name}
	if annotation != "" {
		n.Type = MustParseTypeExpr(annotation)
	}
	return n
}

func NewExprStmt(e *Node) *Node { return &Node{Kind: ExprStmt, Children: []*Node{e}} }

func NewIf(cond, then, els *Node) *Node {
	n := &Node{Kind: If, Children: []*Node{cond, then}}
	if els != nil {
		n.Children = append(n.Children, els)
	}
	return n
}

func NewWhile(cond, body *Node) *Node {
	return &Node{Kind: While, Children: []*Node{cond, body}}
}

func NewFor(v string, from, to, body *Node) *Node {
	return &Node{Kind: For, Value: v, Children: []*Node{from, to, body}}
}

func NewBreak() *Node    { return &Node{Kind: Break} }
func NewContinue() *Node { return &Node{Kind: Continue} }

func NewReturn(e *Node) *Node {
	n := &Node{Kind: Return}
	if e != nil {
		n.Children = []*Node{e}
	}
	return n
}

// NewFormal builds a formal parameter; annotation may be empty.
func NewFormal(name, annotation string) *Node {
	n := &Node{Kind: Formal, Value: name}
	if annotation != "" {
		n.Type = MustParseTypeExpr(annotation)
	}
	return n
}

// NewFunc builds a function declaration; ret may be empty.
func NewFunc(name string, formals []*Node, ret string, body *Node) *Node {
	n := &Node{Kind: FuncDecl, Value: name, Children: []*Node{{Kind: Formals, Children: formals}, body}}
	if ret != "" {
		n.Type = MustParseTypeExpr(ret)
	}
	return n
}

func NewExtern(name, signature string) *Node {
	return &Node{Kind: ExternDecl, Value: name, Type: MustParseTypeExpr(signature)}
}

func NewEnum(names ...string) *Node {
	n := &Node{Kind: Enum}
	for _, name := range names {
		n.Children = append(n.Children, NewIdent(name))
	}
	return n
}

func NewSection(path string, body *Node) *Node {
	return &Node{Kind: Section, Value: path, Children: []*Node{body}}
}

// NewParam declares a module parameter with an optional default.
func NewParam(name, annotation string, def *Node) *Node {
	n := &Node{Kind: Param, Value: name}
	if annotation != "" {
		n.Type = MustParseTypeExpr(annotation)
	}
	if def != nil {
		n.Children = []*Node{def}
	}
	return n
}

// At sets the node position and returns the node.
func (n *Node) At(line, col int) *Node {
	n.Pos.Line = line
	n.Pos.Column = col
	return n
}
