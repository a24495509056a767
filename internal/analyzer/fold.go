package analyzer

import (
	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/cfg"
	"github.com/funvibe/c4c/internal/config"
	"github.com/funvibe/c4c/internal/pipeline"
	"github.com/funvibe/c4c/internal/symbols"
	"github.com/funvibe/c4c/internal/vm"
)

// FoldProcessor evaluates definitions whose operands are all known at
// compile time and interns the results in the constant pool. A read is
// known when exactly one folded definition reaches it, or when it names a
// folded constant of another graph.
type FoldProcessor struct{}

func (fp *FoldProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if !ctx.FoldConstants {
		return ctx
	}
	folded := 0
	for _, g := range ctx.Module.Graphs() {
		folded += foldGraph(ctx, g)
	}
	if folded > 0 {
		ctx.Logf("%s: folded %d definitions", ctx.Module.Name, folded)
	}
	return ctx
}

func foldGraph(ctx *pipeline.PipelineContext, g *cfg.Graph) int {
	n := 0
	for _, node := range g.Order() {
		d, ok := node.(*cfg.Def)
		if !ok || d.Value == nil || !d.Reached || d.ConstID != config.NoConstant {
			continue
		}
		v, err := vm.Evaluate(d.Value, ctx.Registry, constLookup(ctx, g, d))
		if err != nil {
			continue
		}
		d.ConstID = ctx.Pool.Intern(v)
		if d.Sym.Has(symbols.Const) {
			d.Sym.ConstID = d.ConstID
		}
		n++
	}
	return n
}

// constLookup resolves the reads of d's right-hand side to pool values.
func constLookup(ctx *pipeline.PipelineContext, g *cfg.Graph, d *cfg.Def) func(*ast.Node) (vm.Value, bool) {
	return func(n *ast.Node) (vm.Value, bool) {
		sym := ctx.Module.SymbolOf(n)
		if sym == nil {
			return vm.Value{}, false
		}
		id := knownConstant(g, d, sym)
		if id == config.NoConstant {
			return vm.Value{}, false
		}
		v, err := ctx.Pool.Get(id)
		return v, err == nil
	}
}

func knownConstant(g *cfg.Graph, d *cfg.Def, sym *symbols.Symbol) uint32 {
	if !g.Tracked(sym) {
		if sym.Has(symbols.Const) {
			return sym.ConstID
		}
		return config.NoConstant
	}
	r, ok := d.In[sym]
	if !ok {
		return config.NoConstant
	}
	if def := r.Single(); def != nil {
		return def.ConstID
	}
	return config.NoConstant
}
