// Package analyzer holds the per-module analysis stages: declaration
// collection, type inference, flow analysis, constant folding, the final
// re-inference pass and layout.
package analyzer

import (
	"github.com/funvibe/c4c/internal/pipeline"
)

// Declarations returns the stage run when a module is first loaded.
func Declarations() *pipeline.Pipeline {
	return pipeline.New(&DeclarationProcessor{})
}

// Analysis returns the stages run once every import of a module has been
// analyzed.
func Analysis() *pipeline.Pipeline {
	return pipeline.New(
		&ImportProcessor{},
		&InferenceProcessor{},
		&FlowProcessor{},
		&FoldProcessor{},
	)
}

// Reinference returns the stage run over every module once all of them are
// analyzed. It must complete for the whole program before Layout locks any
// type.
func Reinference() *pipeline.Pipeline {
	return pipeline.New(&ReinferProcessor{})
}

// Layout returns the final per-module stage.
func Layout() *pipeline.Pipeline {
	return pipeline.New(&LayoutProcessor{})
}

// ImportProcessor makes the scopes of resolved imports visible in the
// importing module.
type ImportProcessor struct{}

func (ip *ImportProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	mod := ctx.Module
	if mod.Scope == nil {
		return ctx
	}
	for _, name := range mod.Imports {
		dep, ok := mod.Deps[name]
		if !ok || dep.Scope == nil {
			continue
		}
		mod.Scope.Import(dep.Scope)
	}
	return ctx
}
