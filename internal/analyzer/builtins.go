package analyzer

import (
	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/config"
	"github.com/funvibe/c4c/internal/pipeline"
	"github.com/funvibe/c4c/internal/symbols"
)

var builtinSignatures = []struct {
	name string
	sig  string
}{
	{config.PrintFuncName, "func(`a) -> void"},
	{config.LenFuncName, "func(`a) -> int"},
	{config.StrFuncName, "func(`a) -> string"},
	{config.IntFuncName, "func(`a) -> int"},
	{config.FloatFuncName, "func(`a) -> float"},
	{config.AppendFuncName, "func(list[`a], `a) -> list[`a]"},
	{config.KeysFuncName, "func(dict[`k, `v]) -> list[`k]"},
	{config.AbortFuncName, "func(string) -> void"},
}

// RegisterBuiltins declares the built-in functions in the session's global
// scope. Their signatures are generic and instantiated at each call.
func RegisterBuiltins(s *pipeline.Session) {
	for _, b := range builtinSignatures {
		if _, ok := s.Global.LookupLocal(b.name); ok {
			continue
		}
		sym, err := s.Global.Declare(b.name, symbols.ExternFuncSymbol, nil)
		if err != nil {
			continue
		}
		t, err := s.Env.FromExpr(s.Registry, ast.MustParseTypeExpr(b.sig), nil)
		if err != nil {
			panic("bad builtin signature " + b.sig + ": " + err.Error())
		}
		sym.Declared = t
		sym.Type = t
	}
}
