package analyzer

import (
	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/diagnostics"
	"github.com/funvibe/c4c/internal/modules"
	"github.com/funvibe/c4c/internal/pipeline"
	"github.com/funvibe/c4c/internal/schema"
	"github.com/funvibe/c4c/internal/symbols"
	"github.com/funvibe/c4c/internal/typesystem"
)

// InferenceProcessor walks statements and expressions, resolving names and
// unifying types. Every expression node gets an entry in the module's type
// map; unification failures are reported and replaced by the error type.
type InferenceProcessor struct{}

func (ip *InferenceProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	mod := ctx.Module
	if mod.Inferred || !mod.Declared {
		return ctx
	}
	mod.Inferred = true

	w := newWalker(ctx)
	for _, st := range mod.Tree.Children {
		if st.Kind != ast.FuncDecl {
			w.stmt(st, mod.Scope)
		}
	}
	for _, st := range mod.Tree.Children {
		if st.Kind == ast.FuncDecl {
			w.function(st)
		}
	}
	return ctx
}

type funcState struct {
	ret     typesystem.TypeRef
	returns int
	scope   *symbols.Scope // function scope holding hoisted locals
}

type walker struct {
	ctx     *pipeline.PipelineContext
	mod     *modules.Module
	env     *typesystem.Env
	fn      *funcState
	loops   int
	section []string // path of the enclosing section
}

func newWalker(ctx *pipeline.PipelineContext) *walker {
	return &walker{ctx: ctx, mod: ctx.Module, env: ctx.Env}
}

func (w *walker) errorf(code diagnostics.Code, n *ast.Node, format string, args ...interface{}) {
	w.ctx.Errorf(code, n.Pos, format, args...)
}

// unify merges a and b, reporting a failure at n.
func (w *walker) unify(a, b typesystem.TypeRef, n *ast.Node) typesystem.TypeRef {
	t, err := w.env.Unify(a, b)
	if err == nil {
		return t
	}
	code := diagnostics.ErrUnifyMismatch
	if ue, ok := err.(*typesystem.UnifyError); ok {
		switch ue.Kind {
		case typesystem.LockedType:
			code = diagnostics.ErrLockedType
		case typesystem.InfiniteType:
			code = diagnostics.ErrInfiniteType
		}
	}
	w.errorf(code, n, "%v", err)
	return w.env.Error
}

// typeOf returns the inferred type of sym. A symbol seen for the first
// time starts from its annotation, or from a fresh variable.
func (w *walker) typeOf(sym *symbols.Symbol) typesystem.TypeRef {
	if sym.Type == typesystem.NoType {
		sym.Type = sym.Declared
	}
	if sym.Type == typesystem.NoType {
		sym.Type = w.env.NewVar()
	}
	return sym.Type
}

func (w *walker) annotate(sym *symbols.Symbol, expr *ast.TypeExpr, n *ast.Node) {
	t := annotation(w.ctx, expr, nil, n)
	if sym.Declared != typesystem.NoType {
		t = w.unify(sym.Declared, t, n)
	}
	sym.Declared = t
	w.unify(w.typeOf(sym), t, n)
}

func (w *walker) function(decl *ast.Node) {
	sym := w.mod.SymbolOf(decl)
	formals := w.mod.Scopes[decl]
	body := decl.Child(1)
	if sym == nil || formals == nil || body == nil {
		return
	}
	_, ret := w.env.Lookup(sym.Type).FuncParams()
	if ret == typesystem.NoType {
		ret = w.env.NewVar()
	}
	w.fn = &funcState{ret: ret, scope: formals.Outer()}
	w.loops = 0

	block := symbols.NewScope(symbols.ScopeOptions{Type: symbols.ScopeBlock, Name: decl.Value, Outer: formals})
	w.mod.Scopes[body] = block
	hoist(w.ctx, block, w.fn.scope, body.Children)
	w.stmts(body.Children, block)

	if w.fn.returns == 0 && !w.env.IsConcrete(ret) {
		w.unify(ret, w.env.Void, decl)
	}
	w.fn = nil
}

func (w *walker) stmts(list []*ast.Node, scope *symbols.Scope) {
	for _, st := range list {
		w.stmt(st, scope)
	}
}

func (w *walker) block(n *ast.Node, scope *symbols.Scope) {
	if n == nil {
		return
	}
	if n.Kind != ast.Block {
		w.stmt(n, scope)
		return
	}
	inner := scope.Enclosed(symbols.ScopeBlock, "")
	w.mod.Scopes[n] = inner
	w.stmts(n.Children, inner)
}

func (w *walker) stmt(n *ast.Node, scope *symbols.Scope) {
	switch n.Kind {
	case ast.Import, ast.Enum, ast.ExternDecl:
	case ast.FuncDecl:
		if w.fn != nil {
			w.errorf(diagnostics.ErrInvalidOperand, n, "nested function %s is not supported", n.Value)
		}
	case ast.Param:
		w.param(n, scope)
	case ast.Block:
		w.block(n, scope)
	case ast.Section:
		w.sectionStmt(n, scope)
	case ast.Assign:
		w.assign(n, scope)
	case ast.VarDecl, ast.ConstDecl:
		w.declaration(n, scope)
	case ast.ExprStmt:
		w.expr(n.Child(0), scope)
	case ast.If:
		w.condition(n.Child(0), scope)
		w.block(n.Child(1), scope)
		w.block(n.Child(2), scope)
	case ast.While:
		w.condition(n.Child(0), scope)
		w.loops++
		w.block(n.Child(1), scope)
		w.loops--
	case ast.For:
		w.forStmt(n, scope)
	case ast.Break, ast.Continue:
		if w.loops == 0 {
			w.errorf(diagnostics.ErrBreakOutsideLoop, n, "%s outside of a loop", n.Kind)
		}
	case ast.Return:
		w.returnStmt(n, scope)
	default:
		w.errorf(diagnostics.ErrInvalidOperand, n, "%s is not a statement", n.Kind)
	}
}

func (w *walker) condition(n *ast.Node, scope *symbols.Scope) {
	if n == nil {
		return
	}
	w.unify(w.env.Bool, w.expr(n, scope), n)
}

func (w *walker) param(n *ast.Node, scope *symbols.Scope) {
	sym := w.mod.SymbolOf(n)
	if sym == nil {
		return
	}
	if def := n.Child(0); def != nil {
		w.define(sym, n, w.expr(def, scope), def)
	}
}

func (w *walker) forStmt(n *ast.Node, scope *symbols.Scope) {
	for _, bound := range n.Children[:min(2, len(n.Children))] {
		w.unify(w.env.Int, w.expr(bound, scope), bound)
	}
	loopScope := scope.Enclosed(symbols.ScopeBlock, n.Value)
	w.mod.Scopes[n] = loopScope
	if sym := declare(w.ctx, loopScope, n.Value, symbols.VariableSymbol, n); sym != nil {
		sym.Type = w.env.Int
		sym.Set(symbols.HasInitializer)
		sym.RecordDef(n)
		w.mod.Bind(n, sym)
	}
	w.loops++
	w.block(n.Child(2), loopScope)
	w.loops--
}

func (w *walker) returnStmt(n *ast.Node, scope *symbols.Scope) {
	t := w.env.Void
	if e := n.Child(0); e != nil {
		t = w.expr(e, scope)
	}
	if w.fn == nil {
		w.errorf(diagnostics.ErrReturnOutsideFunc, n, "return outside of a function")
		return
	}
	w.fn.returns++
	w.unify(w.fn.ret, t, n)
}

// sectionStmt checks that the section path names a section instance and
// analyzes the body with the path as attribute prefix.
func (w *walker) sectionStmt(n *ast.Node, scope *symbols.Scope) {
	path := append(append([]string(nil), w.section...), n.Path()...)
	info := schema.GetAttrInfo(w.ctx.Schema, path)
	switch {
	case !info.OK():
		w.attrError(info, n)
	case info.Kind != schema.AttrSingleton && info.Kind != schema.AttrInstance:
		w.errorf(diagnostics.ErrInvalidOperand, n, "%s is a %s, not a section instance", n.Value, info.Kind)
	}
	saved := w.section
	w.section = path
	w.block(n.Child(0), scope)
	w.section = saved
}

func (w *walker) attrError(info schema.AttrInfo, n *ast.Node) {
	code := diagnostics.ErrNoSuchSection
	switch info.Err {
	case schema.ErrSectionUnderField:
		code = diagnostics.ErrSectionUnderField
	case schema.ErrFieldNotAllowed:
		code = diagnostics.ErrFieldNotAllowed
	case schema.ErrSectionNotAllowed:
		code = diagnostics.ErrSectionNotAllowed
	}
	w.errorf(code, n, "%s", info.Message())
}

// attr resolves a full attribute path to its symbol.
func (w *walker) attr(path []string, n *ast.Node) *symbols.Symbol {
	sym, info := w.mod.Scope.LookupAttr(path, n)
	if sym != nil {
		w.mod.Bind(n, sym)
		return sym
	}
	if !info.OK() {
		w.attrError(info, n)
	} else {
		w.errorf(diagnostics.ErrInvalidOperand, n, "%s is a %s, not a field", n.Value, info.Kind)
	}
	return nil
}

// declScope is where an assignment to an unknown name declares it.
func (w *walker) declScope(scope *symbols.Scope) *symbols.Scope {
	if w.fn != nil {
		return w.fn.scope
	}
	return w.mod.Scope
}

func (w *walker) assign(n *ast.Node, scope *symbols.Scope) {
	target, value := n.Child(0), n.Child(1)
	if target == nil || value == nil {
		w.errorf(diagnostics.ErrInvalidOperand, n, "malformed assignment")
		return
	}
	vt := w.expr(value, scope)

	var sym *symbols.Symbol
	switch target.Kind {
	case ast.Ident:
		if len(w.section) > 0 {
			sym = w.attr(append(append([]string(nil), w.section...), target.Value), target)
			break
		}
		found, ok := scope.Lookup(target.Value)
		if !ok {
			found = declare(w.ctx, w.declScope(scope), target.Value, symbols.VariableSymbol, target)
		}
		sym = found
	case ast.AttrRef:
		sym = w.attr(target.Path(), target)
	default:
		w.errorf(diagnostics.ErrInvalidOperand, target, "cannot assign to %s", target.Kind)
		return
	}
	if sym == nil {
		return
	}
	if !sym.IsStorage() {
		w.errorf(diagnostics.ErrInvalidOperand, target, "cannot assign to %s %s", sym.Kind, sym.Name)
		return
	}
	w.mod.Bind(target, sym)
	if n.Type != nil {
		w.annotate(sym, n.Type, n)
	}
	w.define(sym, n, vt, value)
}

func (w *walker) declaration(n *ast.Node, scope *symbols.Scope) {
	sym := declare(w.ctx, scope, n.Value, symbols.VariableSymbol, n)
	if sym == nil {
		return
	}
	if n.Kind == ast.ConstDecl {
		sym.Set(symbols.Const)
	}
	w.mod.Bind(n, sym)
	if n.Type != nil {
		w.annotate(sym, n.Type, n)
	}
	if init := n.Child(0); init != nil {
		w.define(sym, n, w.expr(init, scope), init)
		return
	}
	w.typeOf(sym)
}

// define records an assignment of a value of type vt to sym.
func (w *walker) define(sym *symbols.Symbol, stmt *ast.Node, vt typesystem.TypeRef, value *ast.Node) {
	if (sym.Has(symbols.Const) || sym.Has(symbols.UserImmutable)) && len(sym.Defs) > 0 {
		w.errorf(diagnostics.ErrConstRedefined, stmt, "%s %s is already defined at %s", sym.Kind, sym.Name, sym.Defs[0].Pos)
	}
	sym.RecordDef(stmt)
	sym.Set(symbols.HasInitializer)
	w.unify(w.typeOf(sym), vt, value)
}
