package analyzer

import (
	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/diagnostics"
	"github.com/funvibe/c4c/internal/pipeline"
	"github.com/funvibe/c4c/internal/symbols"
	"github.com/funvibe/c4c/internal/typesystem"
	"github.com/funvibe/c4c/internal/vm"
)

// DeclarationProcessor collects the top-level declarations of a module
// into its scope: functions with their signatures, externs, enums, module
// parameters, imports and every module variable assigned at top level.
type DeclarationProcessor struct{}

func (dp *DeclarationProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	mod := ctx.Module
	if mod.Declared || mod.Tree == nil {
		return ctx
	}
	mod.Declared = true
	if mod.Scope == nil {
		mod.Scope = symbols.NewScope(symbols.ScopeOptions{
			Type:   symbols.ScopeModule,
			Name:   mod.Name,
			Module: mod.Name,
			Outer:  ctx.Global,
		})
	}

	for _, st := range mod.Tree.Children {
		switch st.Kind {
		case ast.Import:
			declare(ctx, mod.Scope, st.Value, symbols.ModuleSymbol, st)
		case ast.FuncDecl:
			declareFunction(ctx, st)
		case ast.ExternDecl:
			declareExtern(ctx, st)
		case ast.Enum:
			declareEnum(ctx, st)
		case ast.Param:
			declareParam(ctx, st)
		}
	}
	hoist(ctx, mod.Scope, mod.Scope, mod.Tree.Children)
	return ctx
}

// declare adds name to scope, reporting conflicts. The returned symbol is
// nil when the name is taken by a declaration of another kind.
func declare(ctx *pipeline.PipelineContext, scope *symbols.Scope, name string, kind symbols.SymbolKind, decl *ast.Node) *symbols.Symbol {
	sym, err := scope.Declare(name, kind, decl)
	if err != nil {
		pos := ast.Pos{}
		if decl != nil {
			pos = decl.Pos
		}
		ctx.Errorf(diagnostics.ErrDuplicateDeclare, pos, "%s", err.Error())
		return nil
	}
	if scope.Type() == symbols.ScopeModule && kind != symbols.ModuleSymbol {
		sym.Set(symbols.Exported)
	}
	return sym
}

// annotation converts a type annotation; a missing one is a fresh variable.
func annotation(ctx *pipeline.PipelineContext, expr *ast.TypeExpr, vars map[string]typesystem.TypeRef, n *ast.Node) typesystem.TypeRef {
	if expr == nil {
		return ctx.Env.NewVar()
	}
	t, err := ctx.Env.FromExpr(ctx.Registry, expr, vars)
	if err != nil {
		ctx.Errorf(diagnostics.ErrUnresolvedName, n.Pos, "%v", err)
		return ctx.Env.Error
	}
	return t
}

func declareFunction(ctx *pipeline.PipelineContext, n *ast.Node) {
	mod := ctx.Module
	sym := declare(ctx, mod.Scope, n.Value, symbols.FuncSymbol, n)
	if sym == nil {
		return
	}
	mod.Bind(n, sym)

	fnScope := symbols.NewScope(symbols.ScopeOptions{Type: symbols.ScopeFunction, Name: n.Value, Outer: mod.Scope})
	formals := symbols.NewScope(symbols.ScopeOptions{Type: symbols.ScopeFormals, Name: n.Value, Outer: fnScope})
	mod.Scopes[n] = formals

	vars := make(map[string]typesystem.TypeRef)
	annotated := n.Type != nil
	var params []typesystem.TypeRef
	for _, f := range n.Child(0).Children {
		t := annotation(ctx, f.Type, vars, f)
		annotated = annotated && f.Type != nil
		params = append(params, t)
		fs := declare(ctx, formals, f.Value, symbols.FormalSymbol, f)
		if fs == nil {
			continue
		}
		fs.Type = t
		if f.Type != nil {
			fs.Declared = t
		}
		mod.Bind(f, fs)
	}
	ret := annotation(ctx, n.Type, vars, n)
	sym.Type = ctx.Env.Func(params, ret)
	if annotated {
		sym.Declared = sym.Type
	}
}

func declareExtern(ctx *pipeline.PipelineContext, n *ast.Node) {
	if n.Type == nil || n.Type.Name != "func" {
		ctx.Errorf(diagnostics.ErrNotCallable, n.Pos, "extern %s needs a function signature", n.Value)
		return
	}
	sym := declare(ctx, ctx.Module.Scope, n.Value, symbols.ExternFuncSymbol, n)
	if sym == nil {
		return
	}
	sym.Declared = annotation(ctx, n.Type, nil, n)
	sym.Type = sym.Declared
	ctx.Module.Bind(n, sym)
}

// declareEnum declares the enum type, when named, and its values. Values
// are int constants numbered from zero.
func declareEnum(ctx *pipeline.PipelineContext, n *ast.Node) {
	mod := ctx.Module
	if n.Value != "" {
		if sym := declare(ctx, mod.Scope, n.Value, symbols.EnumTypeSymbol, n); sym != nil {
			sym.Type = ctx.Env.Int
			mod.Bind(n, sym)
		}
	}
	for i, v := range n.Children {
		sym := declare(ctx, mod.Scope, v.Value, symbols.EnumValueSymbol, v)
		if sym == nil {
			continue
		}
		sym.Type = ctx.Env.Int
		sym.Set(symbols.Const)
		sym.ConstID = ctx.Pool.Intern(vm.IntVal(int64(i)))
		mod.Bind(v, sym)
	}
}

func declareParam(ctx *pipeline.PipelineContext, n *ast.Node) {
	mod := ctx.Module
	sym := declare(ctx, mod.Scope, n.Value, symbols.VariableSymbol, n)
	if sym == nil {
		return
	}
	sym.Type = ctx.Env.NewVar()
	if n.Type != nil {
		sym.Declared = annotation(ctx, n.Type, nil, n)
		sym.Type = sym.Declared
	}
	if n.NumChildren() > 0 {
		sym.Set(symbols.HasInitializer)
	}
	mod.Bind(n, sym)
	mod.Params = append(mod.Params, sym)
}

// hoist declares the plain assignment targets found in list, outside
// section bodies and nested functions, in into. Names already visible from
// lookup are left alone. Hoisting lets a read that precedes the first
// assignment resolve, so flow analysis reports it as use-without-def.
func hoist(ctx *pipeline.PipelineContext, lookup, into *symbols.Scope, list []*ast.Node) {
	for _, st := range list {
		switch st.Kind {
		case ast.Assign:
			target := st.Child(0)
			if target == nil || target.Kind != ast.Ident {
				continue
			}
			if _, ok := lookup.Lookup(target.Value); ok {
				continue
			}
			if sym := declare(ctx, into, target.Value, symbols.VariableSymbol, target); sym != nil {
				sym.Type = ctx.Env.NewVar()
			}
		case ast.Block:
			hoist(ctx, lookup, into, st.Children)
		case ast.If, ast.While:
			hoist(ctx, lookup, into, after(st, 1))
		case ast.For:
			hoist(ctx, lookup, into, after(st, 2))
		}
	}
}

// after returns the children of n from index i on.
func after(n *ast.Node, i int) []*ast.Node {
	if i >= len(n.Children) {
		return nil
	}
	return n.Children[i:]
}
