package analyzer

import (
	"strings"

	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/diagnostics"
	"github.com/funvibe/c4c/internal/modules"
	"github.com/funvibe/c4c/internal/pipeline"
	"github.com/funvibe/c4c/internal/schema"
	"github.com/funvibe/c4c/internal/symbols"
)

type instance struct {
	path    []string
	section *schema.Section
	mod     *modules.Module
	pos     ast.Pos
}

// CheckRequired reports required fields that no module assigns and
// required top-level sections that have no instance. Root requirements are
// reported against entry, instance requirements against the module that
// first opens the instance.
func CheckRequired(s *pipeline.Session, mods []*modules.Module, entry *modules.Module) {
	insts := collectInstances(s, mods, entry)

	if entry != nil && entry.Tree != nil {
		ctx := pipeline.NewContext(s, entry)
		for _, name := range s.Schema.Root.RequiredFields() {
			if !assigned(s, name) {
				ctx.Errorf(diagnostics.ErrMissingRequired, entry.Tree.Pos, "required field %s is never set", name)
			}
		}
		for _, name := range s.Schema.Root.Required {
			if !hasInstance(insts, name) {
				ctx.Errorf(diagnostics.ErrMissingRequired, entry.Tree.Pos, "required section %s has no instance", name)
			}
		}
	}

	for _, in := range insts {
		if in.mod == nil || in.section == nil {
			continue
		}
		ctx := pipeline.NewContext(s, in.mod)
		prefix := strings.Join(in.path, ".")
		for _, name := range in.section.RequiredFields() {
			if !assigned(s, prefix+"."+name) {
				ctx.Errorf(diagnostics.ErrMissingRequired, in.pos, "required field %s.%s is never set", prefix, name)
			}
		}
	}
}

func assigned(s *pipeline.Session, key string) bool {
	sym, ok := s.Attributes.LookupLocal(key)
	return ok && len(sym.Defs) > 0
}

func hasInstance(insts []instance, section string) bool {
	for _, in := range insts {
		if len(in.path) > 0 && in.path[0] == section {
			return true
		}
	}
	return false
}

// collectInstances finds every section instance opened by a section block
// or implied by an assigned attribute, deduplicated by path.
func collectInstances(s *pipeline.Session, mods []*modules.Module, entry *modules.Module) []instance {
	seen := make(map[string]bool)
	var out []instance
	add := func(path []string, mod *modules.Module, pos ast.Pos) {
		key := strings.Join(path, ".")
		if len(path) == 0 || seen[key] {
			return
		}
		info := schema.GetAttrInfo(s.Schema, path)
		if !info.OK() || (info.Kind != schema.AttrSingleton && info.Kind != schema.AttrInstance) {
			return
		}
		seen[key] = true
		out = append(out, instance{path: path, section: info.Section, mod: mod, pos: pos})
	}

	for _, mod := range mods {
		if mod.Tree == nil {
			continue
		}
		var visit func(list []*ast.Node, prefix []string)
		visit = func(list []*ast.Node, prefix []string) {
			for _, st := range list {
				switch st.Kind {
				case ast.Section:
					path := append(append([]string(nil), prefix...), st.Path()...)
					add(path, mod, st.Pos)
					if body := st.Child(0); body != nil {
						visit(body.Children, path)
					}
				case ast.Block:
					visit(st.Children, prefix)
				case ast.If, ast.While:
					visit(after(st, 1), prefix)
				case ast.For:
					visit(after(st, 2), prefix)
				}
			}
		}
		visit(mod.Tree.Children, nil)
	}

	for _, sym := range s.Attributes.Symbols() {
		if sym.Kind != symbols.AttrSymbol || len(sym.Defs) == 0 {
			continue
		}
		path := strings.Split(sym.Name, ".")
		for i := 1; i < len(path); i++ {
			add(path[:i], owner(mods, entry, sym.Defs[0]), sym.Defs[0].Pos)
		}
	}
	return out
}

// owner returns the module whose file contains n, falling back to entry.
func owner(mods []*modules.Module, entry *modules.Module, n *ast.Node) *modules.Module {
	for _, m := range mods {
		if m.File != "" && m.File == n.Pos.File {
			return m
		}
	}
	return entry
}
