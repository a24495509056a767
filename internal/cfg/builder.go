package cfg

import (
	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/symbols"
)

// BuildOptions configures Build.
type BuildOptions struct {
	Name string
	Body *ast.Node // Module or Block node
	Decl *ast.Node // enclosing FuncDecl, nil for a module body

	// Resolve maps the node that names a symbol (Ident, AttrRef, VarDecl,
	// ConstDecl, Param, For, Call) to the symbol found by inference.
	Resolve func(*ast.Node) *symbols.Symbol

	// Track selects the symbols checked for definite assignment. The
	// default tracks variables that are not error placeholders.
	Track func(*symbols.Symbol) bool
}

type loopContext struct {
	breakTarget    Node
	continueTarget Node
	parent         *loopContext
}

type builder struct {
	g        *Graph
	opts     BuildOptions
	cur      Node // nil after an unconditional jump
	dead     bool // cur is inside a region that follows a jump
	lastJump *Jump
	loop     *loopContext
}

// Build constructs the graph of one body. Nested function declarations
// are skipped; each function gets its own graph.
func Build(opts BuildOptions) *Graph {
	if opts.Track == nil {
		opts.Track = func(s *symbols.Symbol) bool {
			return s.Kind == symbols.VariableSymbol && !s.Has(symbols.Placeholder)
		}
	}
	b := &builder{
		g:    &Graph{Name: opts.Name, Decl: opts.Decl, tracked: make(map[*symbols.Symbol]bool)},
		opts: opts,
	}
	b.g.Entry = &BlockEntrance{}
	b.add(b.g.Entry, opts.Body)
	b.g.Exit = &BlockExit{}
	b.cur = b.g.Entry

	if opts.Body != nil {
		b.stmts(opts.Body.Children)
	}
	if b.cur != nil && !b.dead {
		link(b.cur, b.g.Exit)
	}
	b.add(b.g.Exit, opts.Body)
	return b.g
}

func (b *builder) add(n Node, origin *ast.Node) Node {
	base := n.Base()
	base.ID = len(b.g.Nodes)
	base.Origin = origin
	b.g.Nodes = append(b.g.Nodes, n)
	return n
}

// emit appends n after the current node.
func (b *builder) emit(n Node, origin *ast.Node) Node {
	b.add(n, origin)
	link(b.cur, n)
	b.cur = n
	return n
}

func (b *builder) resolve(n *ast.Node) *symbols.Symbol {
	if b.opts.Resolve == nil || n == nil {
		return nil
	}
	return b.opts.Resolve(n)
}

func (b *builder) track(sym *symbols.Symbol) {
	if sym != nil && b.opts.Track(sym) {
		b.g.tracked[sym] = true
	}
}

func (b *builder) stmts(list []*ast.Node) {
	for i, st := range list {
		if b.cur == nil {
			if !b.dead && b.lastJump != nil {
				b.lastJump.DeadCode = append(b.lastJump.DeadCode, list[i:]...)
			}
			b.cur = b.add(&BlockEntrance{}, st)
			b.dead = true
		}
		b.stmt(st)
	}
}

func (b *builder) stmt(n *ast.Node) {
	switch n.Kind {
	case ast.Block:
		b.stmts(n.Children)
	case ast.Section:
		if body := n.Child(0); body != nil {
			b.stmts(body.Children)
		}
	case ast.Assign:
		b.def(n, n.Child(0), n.Child(1))
	case ast.VarDecl, ast.ConstDecl, ast.Param:
		if init := n.Child(0); init != nil {
			b.def(n, n, init)
		}
	case ast.ExprStmt:
		b.expr(n.Child(0), nil)
	case ast.If:
		b.ifStmt(n)
	case ast.While:
		b.whileStmt(n)
	case ast.For:
		b.forStmt(n)
	case ast.Break:
		if b.loop != nil {
			b.jump(n, JumpBreak, b.loop.breakTarget)
		}
	case ast.Continue:
		if b.loop != nil {
			b.jump(n, JumpContinue, b.loop.continueTarget)
		}
	case ast.Return:
		if e := n.Child(0); e != nil {
			b.expr(e, nil)
		}
		b.jump(n, JumpReturn, b.g.Exit)
	}
}

func (b *builder) def(stmt, target, value *ast.Node) {
	deps := make(map[*symbols.Symbol]bool)
	var order []*symbols.Symbol
	b.expr(value, func(s *symbols.Symbol) {
		if !deps[s] {
			deps[s] = true
			order = append(order, s)
		}
	})
	sym := b.resolve(target)
	if sym == nil {
		return
	}
	b.track(sym)
	b.emit(&Def{Sym: sym, Deps: order, Value: value}, stmt)
}

// expr emits Use and Call nodes in evaluation order. read is told about
// every storage symbol the expression reads.
func (b *builder) expr(n *ast.Node, read func(*symbols.Symbol)) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.Ident, ast.AttrRef:
		sym := b.resolve(n)
		if sym == nil || !sym.IsStorage() {
			return
		}
		b.track(sym)
		b.emit(&Use{Sym: sym}, n)
		if read != nil {
			read(sym)
		}
	case ast.Call:
		for _, a := range n.Children {
			b.expr(a, read)
		}
		b.emit(&Call{Callee: b.resolve(n)}, n)
	default:
		for _, c := range n.Children {
			b.expr(c, read)
		}
	}
}

func (b *builder) jump(n *ast.Node, kind JumpKind, target Node) {
	j := &Jump{Kind: kind, Target: target}
	b.emit(j, n)
	link(j, target)
	b.lastJump = j
	b.cur = nil
}

// arm builds one branch body starting at entry and reports whether it
// falls through to the merge point.
func (b *builder) arm(entry Node, body *ast.Node) (Node, bool) {
	saved := b.dead
	b.dead = false
	b.cur = entry
	if body != nil {
		b.stmt(body)
	}
	live := b.cur != nil && !b.dead
	end := b.cur
	b.dead = saved
	return end, live
}

func (b *builder) ifStmt(n *ast.Node) {
	b.expr(n.Child(0), nil)
	br := &Branch{NumBranches: 2}
	b.emit(br, n)
	merge := &BlockExit{}
	br.Merge = merge

	thenEntry := b.add(&BlockEntrance{}, n.Child(1))
	link(br, thenEntry)
	br.Targets = append(br.Targets, thenEntry)
	thenEnd, thenLive := b.arm(thenEntry, n.Child(1))

	var elseEnd Node
	elseLive := true
	if els := n.Child(2); els != nil {
		elseEntry := b.add(&BlockEntrance{}, els)
		link(br, elseEntry)
		br.Targets = append(br.Targets, elseEntry)
		elseEnd, elseLive = b.arm(elseEntry, els)
	} else {
		br.Targets = append(br.Targets, merge)
		link(br, merge)
	}

	b.add(merge, n)
	if thenLive {
		link(thenEnd, merge)
	}
	if elseEnd != nil && elseLive {
		link(elseEnd, merge)
	}
	if !thenLive && !elseLive {
		b.cur = nil
		return
	}
	b.cur = merge
}

func (b *builder) whileStmt(n *ast.Node) {
	head := b.emit(&BlockEntrance{}, n)
	b.expr(n.Child(0), nil)
	br := &Branch{NumBranches: 2}
	b.emit(br, n)
	exit := &BlockExit{}
	br.Merge = exit

	bodyEntry := b.add(&BlockEntrance{}, n.Child(1))
	link(br, bodyEntry)
	br.Targets = append(br.Targets, bodyEntry)

	b.loop = &loopContext{breakTarget: exit, continueTarget: head, parent: b.loop}
	end, live := b.arm(bodyEntry, n.Child(1))
	b.loop = b.loop.parent
	if live {
		link(end, head)
	}

	b.add(exit, n)
	br.Targets = append(br.Targets, exit)
	link(br, exit)
	b.cur = exit
}

func (b *builder) forStmt(n *ast.Node) {
	loopVar := b.resolve(n)
	deps := make(map[*symbols.Symbol]bool)
	var order []*symbols.Symbol
	read := func(s *symbols.Symbol) {
		if !deps[s] {
			deps[s] = true
			order = append(order, s)
		}
	}
	b.expr(n.Child(0), read)
	b.expr(n.Child(1), read)
	if loopVar != nil {
		b.track(loopVar)
		b.emit(&Def{Sym: loopVar, Deps: order, Value: n.Child(0)}, n)
	}

	head := b.emit(&BlockEntrance{}, n)
	if loopVar != nil {
		b.emit(&Use{Sym: loopVar}, n)
	}
	br := &Branch{NumBranches: 2}
	b.emit(br, n)
	exit := &BlockExit{}
	br.Merge = exit

	var step Node
	if loopVar != nil {
		step = &Def{Sym: loopVar, Deps: []*symbols.Symbol{loopVar}}
	} else {
		step = &BlockEntrance{}
	}
	bodyEntry := b.add(&BlockEntrance{}, n.Child(2))
	link(br, bodyEntry)
	br.Targets = append(br.Targets, bodyEntry)

	b.loop = &loopContext{breakTarget: exit, continueTarget: step, parent: b.loop}
	end, live := b.arm(bodyEntry, n.Child(2))
	b.loop = b.loop.parent

	b.add(step, n)
	if live {
		link(end, step)
	}
	link(step, head)

	b.add(exit, n)
	br.Targets = append(br.Targets, exit)
	link(br, exit)
	b.cur = exit
}
