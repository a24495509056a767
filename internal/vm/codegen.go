package vm

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/cfg"
	"github.com/funvibe/c4c/internal/modules"
	"github.com/funvibe/c4c/internal/symbols"
	"github.com/funvibe/c4c/internal/typesystem"
)

// Function is the compiled form of one function declaration.
type Function struct {
	Name   string
	Arity  int
	Locals int
	Chunk  *Chunk
}

// Program is the bytecode of one module. Init runs the module top level.
type Program struct {
	Module string
	Init   *Chunk
	Funcs  []*Function
}

// Function returns the compiled function called name.
func (p *Program) Function(name string) *Function {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

type loopState struct {
	start     int
	breaks    []int
	continues []int // forward jumps patched at the step of a for loop
	forward   bool  // continue jumps forward instead of looping back
	parent    *loopState
}

type generator struct {
	mod    *modules.Module
	pool   *ConstPool
	reg    *typesystem.Registry
	chunk  *Chunk
	graph  *cfg.Graph
	dead   map[*ast.Node]bool
	loop   *loopState
	locals int
	err    error // first operand that overflowed its encoding
}

// Generate emits bytecode for an analyzed module. Statements recorded as
// unreachable are skipped and folded definitions load their pooled value.
func Generate(mod *modules.Module, pool *ConstPool, reg *typesystem.Registry) (*Program, error) {
	g := &generator{
		mod:  mod,
		pool: pool,
		reg:  reg,
		dead: make(map[*ast.Node]bool),
	}
	for _, graph := range mod.Graphs() {
		for _, n := range graph.Nodes {
			if j, ok := n.(*cfg.Jump); ok {
				for _, st := range j.DeadCode {
					g.dead[st] = true
				}
			}
		}
	}

	prog := &Program{Module: mod.Name}

	g.chunk = NewChunk()
	g.chunk.File = mod.File
	g.graph = mod.Body
	for _, st := range mod.Tree.Children {
		switch st.Kind {
		case ast.FuncDecl, ast.ExternDecl, ast.Import, ast.Enum:
			continue
		}
		if g.dead[st] {
			continue
		}
		if err := g.stmt(st); err != nil {
			return nil, err
		}
	}
	g.chunk.WriteOp(OP_HALT, lastLine(mod.Tree))
	if g.err != nil {
		return nil, g.err
	}
	prog.Init = g.chunk

	for _, st := range mod.Tree.Children {
		if st.Kind != ast.FuncDecl {
			continue
		}
		fn, err := g.function(st)
		if err == nil {
			err = g.err
		}
		if err != nil {
			return nil, errors.Wrapf(err, "function %s", st.Value)
		}
		prog.Funcs = append(prog.Funcs, fn)
	}
	return prog, nil
}

func (g *generator) function(decl *ast.Node) (*Function, error) {
	g.chunk = NewChunk()
	g.chunk.File = g.mod.File
	g.graph = nil
	for _, fg := range g.mod.Funcs {
		if fg.Decl == decl {
			g.graph = fg
			break
		}
	}
	arity := decl.Child(0).NumChildren()
	g.locals = arity
	g.loop = nil

	if body := decl.Child(1); body != nil {
		if err := g.stmt(body); err != nil {
			return nil, err
		}
	}
	line := lastLine(decl)
	g.chunk.WriteOp(OP_NIL, line)
	g.chunk.WriteOp(OP_RETURN, line)

	name := decl.Value
	if sym := g.mod.SymbolOf(decl); sym != nil {
		name = sym.QualifiedName()
	}
	return &Function{Name: name, Arity: arity, Locals: g.locals, Chunk: g.chunk}, nil
}

func lastLine(n *ast.Node) int {
	line := n.Pos.Line
	ast.Walk(n, func(c *ast.Node) bool {
		if c.Pos.Line > line {
			line = c.Pos.Line
		}
		return true
	})
	return line
}

func (g *generator) stmts(list []*ast.Node) error {
	for _, st := range list {
		if g.dead[st] {
			// The rest of the list follows a jump.
			return nil
		}
		if err := g.stmt(st); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) stmt(n *ast.Node) error {
	line := n.Pos.Line
	switch n.Kind {
	case ast.Block:
		return g.stmts(n.Children)
	case ast.Section:
		if body := n.Child(0); body != nil {
			return g.stmts(body.Children)
		}
		return nil
	case ast.Assign:
		target := g.mod.SymbolOf(n.Child(0))
		if target == nil {
			return errors.Errorf("%s: unresolved assignment target %s", n.Pos, n.Child(0).Value)
		}
		return g.define(n, target, n.Child(1))
	case ast.VarDecl, ast.ConstDecl, ast.Param:
		init := n.Child(0)
		if init == nil {
			return nil
		}
		sym := g.mod.SymbolOf(n)
		if sym == nil {
			return errors.Errorf("%s: unresolved declaration %s", n.Pos, n.Value)
		}
		return g.define(n, sym, init)
	case ast.ExprStmt:
		if err := g.expr(n.Child(0)); err != nil {
			return err
		}
		g.chunk.WriteOp(OP_POP, line)
		return nil
	case ast.If:
		return g.ifStmt(n)
	case ast.While:
		return g.whileStmt(n)
	case ast.For:
		return g.forStmt(n)
	case ast.Break:
		if g.loop != nil {
			g.loop.breaks = append(g.loop.breaks, g.emitJump(OP_JUMP, line))
		}
		return nil
	case ast.Continue:
		if g.loop == nil {
			return nil
		}
		if g.loop.forward {
			g.loop.continues = append(g.loop.continues, g.emitJump(OP_JUMP, line))
		} else {
			g.emitLoop(g.loop.start, line)
		}
		return nil
	case ast.Return:
		if e := n.Child(0); e != nil {
			if err := g.expr(e); err != nil {
				return err
			}
		} else {
			g.chunk.WriteOp(OP_NIL, line)
		}
		g.chunk.WriteOp(OP_RETURN, line)
		return nil
	case ast.FuncDecl, ast.ExternDecl, ast.Import, ast.Enum:
		return nil
	}
	return errors.Errorf("%s: cannot generate code for %s", n.Pos, n.Kind)
}

// define evaluates value, or loads its folded constant, and stores it.
func (g *generator) define(stmt *ast.Node, sym *symbols.Symbol, value *ast.Node) error {
	var folded uint32
	if g.graph != nil {
		if d := g.graph.DefAt(stmt); d != nil {
			folded = d.ConstID
		}
	}
	if folded != 0 {
		g.constant(folded, stmt.Pos.Line)
	} else if err := g.expr(value); err != nil {
		return err
	}
	return g.store(sym, stmt.Pos.Line)
}

func (g *generator) ifStmt(n *ast.Node) error {
	line := n.Pos.Line
	if err := g.expr(n.Child(0)); err != nil {
		return err
	}
	elseJump := g.emitJump(OP_JUMP_IF_FALSE, line)
	if err := g.stmt(n.Child(1)); err != nil {
		return err
	}
	els := n.Child(2)
	if els == nil {
		g.patchJump(elseJump)
		return nil
	}
	endJump := g.emitJump(OP_JUMP, line)
	g.patchJump(elseJump)
	if err := g.stmt(els); err != nil {
		return err
	}
	g.patchJump(endJump)
	return nil
}

func (g *generator) whileStmt(n *ast.Node) error {
	line := n.Pos.Line
	start := g.chunk.Len()
	if err := g.expr(n.Child(0)); err != nil {
		return err
	}
	exitJump := g.emitJump(OP_JUMP_IF_FALSE, line)

	g.loop = &loopState{start: start, parent: g.loop}
	if err := g.stmt(n.Child(1)); err != nil {
		return err
	}
	g.emitLoop(start, line)
	g.patchJump(exitJump)
	for _, b := range g.loop.breaks {
		g.patchJump(b)
	}
	g.loop = g.loop.parent
	return nil
}

// forStmt compiles an inclusive integer range loop. The bound is
// re-evaluated on every iteration.
func (g *generator) forStmt(n *ast.Node) error {
	line := n.Pos.Line
	v := g.mod.SymbolOf(n)
	if v == nil {
		return errors.Errorf("%s: unresolved loop variable %s", n.Pos, n.Value)
	}
	if err := g.define(n, v, n.Child(0)); err != nil {
		return err
	}

	start := g.chunk.Len()
	if err := g.load(v, line); err != nil {
		return err
	}
	if err := g.expr(n.Child(1)); err != nil {
		return err
	}
	g.chunk.WriteOp(OP_LE, line)
	exitJump := g.emitJump(OP_JUMP_IF_FALSE, line)

	g.loop = &loopState{start: start, forward: true, parent: g.loop}
	if err := g.stmt(n.Child(2)); err != nil {
		return err
	}
	for _, c := range g.loop.continues {
		g.patchJump(c)
	}
	if err := g.load(v, line); err != nil {
		return err
	}
	g.constant(g.pool.Intern(IntVal(1)), line)
	g.chunk.WriteOp(OP_ADD, line)
	if err := g.store(v, line); err != nil {
		return err
	}
	g.emitLoop(start, line)
	g.patchJump(exitJump)
	for _, b := range g.loop.breaks {
		g.patchJump(b)
	}
	g.loop = g.loop.parent
	return nil
}

func (g *generator) expr(n *ast.Node) error {
	if n == nil {
		return errors.New("missing operand")
	}
	line := n.Pos.Line
	switch n.Kind {
	case ast.BoolLit:
		if n.Value == "true" {
			g.chunk.WriteOp(OP_TRUE, line)
		} else {
			g.chunk.WriteOp(OP_FALSE, line)
		}
	case ast.IntLit, ast.FloatLit, ast.StringLit:
		v, err := LiteralValue(n, g.reg)
		if err != nil {
			return errors.Wrapf(err, "%s", n.Pos)
		}
		g.constant(g.pool.Intern(v), line)
	case ast.Ident, ast.AttrRef:
		sym := g.mod.SymbolOf(n)
		if sym == nil {
			return errors.Errorf("%s: unresolved name %s", n.Pos, n.Value)
		}
		return g.load(sym, line)
	case ast.Unary:
		if err := g.expr(n.Child(0)); err != nil {
			return err
		}
		if n.Value == "-" {
			g.chunk.WriteOp(OP_NEG, line)
		} else {
			g.chunk.WriteOp(OP_NOT, line)
		}
	case ast.Binary:
		op, ok := BinaryOpcode(n.Value)
		if !ok {
			return errors.Errorf("%s: unknown operator %s", n.Pos, n.Value)
		}
		if err := g.expr(n.Child(0)); err != nil {
			return err
		}
		if err := g.expr(n.Child(1)); err != nil {
			return err
		}
		g.chunk.WriteOp(op, line)
	case ast.Call:
		for _, a := range n.Children {
			if err := g.expr(a); err != nil {
				return err
			}
		}
		name := n.Value
		if sym := g.mod.SymbolOf(n); sym != nil {
			name = sym.QualifiedName()
		}
		g.chunk.WriteOp(OP_CALL, line)
		g.u16(int(g.pool.Intern(StringVal(name))), "constant id", line)
		g.u8(len(n.Children), "argument count", line)
	case ast.ListLit, ast.TupleLit:
		for _, e := range n.Children {
			if err := g.expr(e); err != nil {
				return err
			}
		}
		op := OP_MAKE_LIST
		if n.Kind == ast.TupleLit {
			op = OP_MAKE_TUPLE
		}
		g.chunk.WriteOp(op, line)
		g.u8(len(n.Children), "element count", line)
	case ast.DictLit:
		for _, kv := range n.Children {
			if err := g.expr(kv.Child(0)); err != nil {
				return err
			}
			if err := g.expr(kv.Child(1)); err != nil {
				return err
			}
		}
		g.chunk.WriteOp(OP_MAKE_MAP, line)
		g.u8(len(n.Children), "entry count", line)
	case ast.Index:
		if err := g.expr(n.Child(0)); err != nil {
			return err
		}
		if err := g.expr(n.Child(1)); err != nil {
			return err
		}
		g.chunk.WriteOp(OP_INDEX, line)
	default:
		return errors.Errorf("%s: %s is not an expression", n.Pos, n.Kind)
	}
	return nil
}

func (g *generator) load(sym *symbols.Symbol, line int) error {
	switch {
	case sym.Has(symbols.Placeholder):
		// Only reached when unresolved names were downgraded below error.
		g.chunk.WriteOp(OP_NIL, line)
	case sym.Has(symbols.Const) && sym.ConstID != 0:
		g.constant(sym.ConstID, line)
	case sym.Kind == symbols.AttrSymbol:
		g.chunk.WriteOp(OP_GET_ATTR, line)
		g.u16(int(g.pool.Intern(StringVal(sym.Name))), "constant id", line)
	case sym.Has(symbols.Static) && sym.Module != g.mod.Name:
		g.chunk.WriteOp(OP_GET_EXTERN, line)
		g.u16(int(g.pool.Intern(StringVal(sym.QualifiedName()))), "constant id", line)
	case sym.Has(symbols.Static):
		g.chunk.WriteOp(OP_GET_GLOBAL, line)
		g.u16(sym.Offset, "static offset", line)
	case sym.Has(symbols.Stack), sym.Has(symbols.Register):
		g.chunk.WriteOp(OP_GET_LOCAL, line)
		g.u8(g.slot(sym), "local slot", line)
	default:
		return errors.Errorf("%s %s has no storage", sym.Kind, sym.Name)
	}
	return nil
}

func (g *generator) store(sym *symbols.Symbol, line int) error {
	switch {
	case sym.Kind == symbols.AttrSymbol:
		g.chunk.WriteOp(OP_SET_ATTR, line)
		g.u16(int(g.pool.Intern(StringVal(sym.Name))), "constant id", line)
	case sym.Has(symbols.Static) && sym.Module != g.mod.Name:
		g.chunk.WriteOp(OP_SET_EXTERN, line)
		g.u16(int(g.pool.Intern(StringVal(sym.QualifiedName()))), "constant id", line)
	case sym.Has(symbols.Static):
		g.chunk.WriteOp(OP_SET_GLOBAL, line)
		g.u16(sym.Offset, "static offset", line)
	case sym.Has(symbols.Stack), sym.Has(symbols.Register):
		g.chunk.WriteOp(OP_SET_LOCAL, line)
		g.u8(g.slot(sym), "local slot", line)
	default:
		return errors.Errorf("cannot assign to %s %s", sym.Kind, sym.Name)
	}
	return nil
}

// slot returns the frame slot of a local. Formals occupy the first slots
// and stack variables follow them.
func (g *generator) slot(sym *symbols.Symbol) int {
	if sym.Offset+1 > g.locals {
		g.locals = sym.Offset + 1
	}
	return sym.Offset
}

func (g *generator) fail(line int, format string, args ...interface{}) {
	if g.err == nil {
		g.err = errors.Errorf("%s:%d: %s", g.mod.File, line, fmt.Sprintf(format, args...))
	}
}

// u8 writes a one-byte operand. Values that do not fit are recorded as
// the generator's error.
func (g *generator) u8(v int, what string, line int) {
	if v < 0 || v > 0xff {
		g.fail(line, "%s %d does not fit in one byte", what, v)
	}
	g.chunk.Write(byte(v), line)
}

// u16 writes a two-byte operand.
func (g *generator) u16(v int, what string, line int) {
	if v < 0 || v > 0xffff {
		g.fail(line, "%s %d does not fit in two bytes", what, v)
	}
	g.chunk.WriteU16(v, line)
}

func (g *generator) constant(id uint32, line int) {
	g.chunk.WriteOp(OP_CONST, line)
	g.u16(int(id), "constant id", line)
}

func (g *generator) emitJump(op Opcode, line int) int {
	g.chunk.WriteOp(op, line)
	g.chunk.Write(0xff, line)
	g.chunk.Write(0xff, line)
	return g.chunk.Len() - 2
}

func (g *generator) patchJump(offset int) {
	jump := g.chunk.Len() - offset - 2
	if jump > 0xffff {
		g.fail(g.chunk.Lines[offset], "jump of %d bytes is too far", jump)
	}
	g.chunk.Code[offset] = byte(jump >> 8)
	g.chunk.Code[offset+1] = byte(jump)
}

// emitLoop emits a backward jump to loopStart
func (g *generator) emitLoop(loopStart int, line int) {
	g.chunk.WriteOp(OP_LOOP, line)
	offset := g.chunk.Len() - loopStart + 2
	if offset > 0xffff {
		g.fail(line, "loop body of %d bytes is too large", offset)
	}
	g.chunk.Write(byte(offset>>8), line)
	g.chunk.Write(byte(offset), line)
}
