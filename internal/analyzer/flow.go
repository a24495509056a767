package analyzer

import (
	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/cfg"
	"github.com/funvibe/c4c/internal/diagnostics"
	"github.com/funvibe/c4c/internal/modules"
	"github.com/funvibe/c4c/internal/pipeline"
	"github.com/funvibe/c4c/internal/symbols"
)

// FlowProcessor builds the control-flow graphs of a module and reports
// reads on paths without an assignment and statements that follow a jump.
type FlowProcessor struct{}

func (fp *FlowProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	mod := ctx.Module
	if mod.Analyzed || !mod.Inferred {
		return ctx
	}
	mod.Analyzed = true

	params := make(map[*symbols.Symbol]bool, len(mod.Params))
	for _, p := range mod.Params {
		params[p] = true
	}
	mod.Body = cfg.Build(cfg.BuildOptions{
		Name:    mod.Name,
		Body:    mod.Tree,
		Resolve: mod.SymbolOf,
		Track: func(s *symbols.Symbol) bool {
			return s.Kind == symbols.VariableSymbol && !s.Has(symbols.Placeholder) &&
				!s.Has(symbols.FunctionScope) && s.Module == mod.Name && !params[s]
		},
	})
	mod.Funcs = mod.Funcs[:0]
	for _, st := range mod.Tree.Children {
		if st.Kind != ast.FuncDecl {
			continue
		}
		mod.Funcs = append(mod.Funcs, cfg.Build(cfg.BuildOptions{
			Name:    qualified(mod, st),
			Body:    st.Child(1),
			Decl:    st,
			Resolve: mod.SymbolOf,
			Track: func(s *symbols.Symbol) bool {
				return s.Kind == symbols.VariableSymbol && s.Has(symbols.FunctionScope) && !s.Has(symbols.Placeholder)
			},
		}))
	}

	for _, g := range mod.Graphs() {
		g.Analyze()
		report(ctx, g)
	}
	ctx.Logf("%s: %d flow graphs", mod.Name, len(mod.Graphs()))
	return ctx
}

func qualified(mod *modules.Module, decl *ast.Node) string {
	if sym := mod.SymbolOf(decl); sym != nil {
		return sym.QualifiedName()
	}
	return mod.Name + "." + decl.Value
}

func report(ctx *pipeline.PipelineContext, g *cfg.Graph) {
	for _, f := range g.Findings() {
		switch f.Kind {
		case cfg.FindingUseWithoutDef:
			ctx.Errorf(diagnostics.WarnUseWithoutDef, f.Node.Pos, "%s may be used before it is assigned", f.Sym.Name)
		case cfg.FindingUnreachable:
			ctx.Errorf(diagnostics.WarnUnreachable, f.Node.Pos, "unreachable code")
		}
	}
}
