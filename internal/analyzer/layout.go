package analyzer

import (
	"strings"

	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/diagnostics"
	"github.com/funvibe/c4c/internal/pipeline"
	"github.com/funvibe/c4c/internal/symbols"
	"github.com/funvibe/c4c/internal/typesystem"
)

// ReinferProcessor revisits the sites that use symbols of other modules.
// Those modules may have narrowed their exports after this module was
// analyzed, so the call and read sites are unified again.
type ReinferProcessor struct{}

func (rp *ReinferProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	mod := ctx.Module
	if mod.Finalized || !mod.Analyzed {
		return ctx
	}
	w := newWalker(ctx)
	sites := 0
	ast.Walk(mod.Tree, func(n *ast.Node) bool {
		if n.Kind != ast.Call && n.Kind != ast.Ident {
			return true
		}
		sym := mod.SymbolOf(n)
		if sym == nil || sym.Module == "" || sym.Module == mod.Name || sym.Type == typesystem.NoType {
			return true
		}
		switch sym.Kind {
		case symbols.ModuleSymbol, symbols.EnumTypeSymbol:
			return true
		}
		sites++
		if n.Kind == ast.Call {
			args := make([]typesystem.TypeRef, len(n.Children))
			for i, a := range n.Children {
				args[i] = mod.TypeOf(a)
			}
			w.unify(w.env.Instantiate(sym.Type), w.env.Func(args, mod.TypeOf(n)), n)
			return true
		}
		w.unify(mod.TypeOf(n), sym.Type, n)
		return true
	})
	if sites > 0 {
		ctx.Logf("%s: re-inferred %d cross-module sites", mod.Name, sites)
	}
	return ctx
}

// LayoutProcessor assigns storage offsets, warns about unused locals and
// open types, and locks every type of the module.
type LayoutProcessor struct{}

func (lp *LayoutProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	mod := ctx.Module
	if mod.Finalized || !mod.Analyzed {
		return ctx
	}
	mod.Finalized = true

	var statics []*symbols.Symbol
	if mod.Scope != nil {
		statics = append(statics, mod.Scope.Symbols()...)
	}
	var funcs []*ast.Node
	for _, st := range mod.Tree.Children {
		if st.Kind == ast.FuncDecl {
			funcs = append(funcs, st)
			continue
		}
		statics = append(statics, nestedSymbols(ctx, st)...)
	}
	offset := 0
	for _, sym := range statics {
		if sym.Kind != symbols.VariableSymbol || !sym.Has(symbols.Static) || sym.Has(symbols.Placeholder) {
			continue
		}
		sym.Offset = offset
		offset++
		checkResolved(ctx, sym)
	}

	for _, decl := range funcs {
		layoutFunction(ctx, decl)
	}

	for _, sym := range statics {
		lockSymbol(ctx, sym)
	}
	for _, t := range mod.TypeMap {
		ctx.Env.Lock(t)
	}
	return ctx
}

// nestedSymbols lists the symbols of the block and loop scopes under n in
// tree order.
func nestedSymbols(ctx *pipeline.PipelineContext, n *ast.Node) []*symbols.Symbol {
	var out []*symbols.Symbol
	ast.Walk(n, func(c *ast.Node) bool {
		if c.Kind == ast.FuncDecl {
			return false
		}
		if sc, ok := ctx.Module.Scopes[c]; ok {
			out = append(out, sc.Symbols()...)
		}
		return true
	})
	return out
}

// layoutFunction numbers formals from zero and stack locals after them.
func layoutFunction(ctx *pipeline.PipelineContext, decl *ast.Node) {
	formals := ctx.Module.Scopes[decl]
	if formals == nil {
		return
	}
	slot := 0
	for _, sym := range formals.Symbols() {
		sym.Offset = slot
		slot++
		checkResolved(ctx, sym)
		lockSymbol(ctx, sym)
	}
	locals := formals.Outer().Symbols()
	if body := decl.Child(1); body != nil {
		locals = append(locals, nestedSymbols(ctx, body)...)
	}
	for _, sym := range locals {
		if sym.Kind != symbols.VariableSymbol || sym.Has(symbols.Placeholder) {
			continue
		}
		sym.Offset = slot
		slot++
		if len(sym.Uses) == 0 && !strings.HasPrefix(sym.Name, "_") && sym.DeclNode != nil {
			ctx.Errorf(diagnostics.WarnUnusedVariable, sym.DeclNode.Pos, "%s is assigned but never used", sym.Name)
		}
		checkResolved(ctx, sym)
		lockSymbol(ctx, sym)
	}
	if sym := ctx.Module.SymbolOf(decl); sym != nil {
		lockSymbol(ctx, sym)
	}
}

func checkResolved(ctx *pipeline.PipelineContext, sym *symbols.Symbol) {
	if sym.Type == typesystem.NoType || ctx.Env.IsError(sym.Type) || ctx.Env.FullyResolved(sym.Type) {
		return
	}
	pos := ast.Pos{}
	if sym.DeclNode != nil {
		pos = sym.DeclNode.Pos
	}
	ctx.Errorf(diagnostics.WarnUnresolvedGeneric, pos, "type of %s is still open: %s", sym.Name, ctx.Env.TypeString(sym.Type))
}

func lockSymbol(ctx *pipeline.PipelineContext, sym *symbols.Symbol) {
	if sym.Type != typesystem.NoType {
		ctx.Env.Lock(sym.Type)
	}
}

// LayoutAttributes numbers the attribute slots in first-use order and
// locks their types. It runs once, after every module is finalized.
func LayoutAttributes(s *pipeline.Session) {
	for i, sym := range s.Attributes.Symbols() {
		sym.Offset = i
		if sym.Type != typesystem.NoType {
			s.Env.Lock(sym.Type)
		}
	}
}
