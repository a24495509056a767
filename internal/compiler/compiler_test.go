package compiler

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/diagnostics"
	"github.com/funvibe/c4c/internal/modules"
	"github.com/funvibe/c4c/internal/vm"
)

func names(mods []*modules.Module) []string {
	var out []string
	for _, m := range mods {
		out = append(out, m.Name)
	}
	return out
}

func compile(t *testing.T, src modules.MapSource, entry string, fold bool) *Result {
	t.Helper()
	res, err := Compile(entry, Options{Source: src, FoldConstants: fold})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return res
}

func withCode(res *Result, code diagnostics.Code) []*diagnostics.DiagnosticError {
	var out []*diagnostics.DiagnosticError
	for _, d := range res.Diagnostics {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

func TestDependencyOrder(t *testing.T) {
	src := modules.MapSource{
		"main": ast.NewModule(
			ast.NewImport("util").At(1, 1),
			ast.NewAssign("y", "", ast.NewCall("double", ast.NewInt("21"))).At(2, 1),
			ast.NewExprStmt(ast.NewCall("print", ast.NewIdent("y"))).At(3, 1),
		),
		"util": ast.NewModule(
			ast.NewImport("base").At(1, 1),
			ast.NewAssign("scale", "", ast.NewBinary("*", ast.NewIdent("limit"), ast.NewInt("2"))).At(2, 1),
			ast.NewFunc("double", []*ast.Node{ast.NewFormal("n", "")}, "",
				ast.NewBlock(ast.NewReturn(ast.NewBinary("*", ast.NewIdent("n"), ast.NewInt("2"))))).At(3, 1),
		),
		"base": ast.NewModule(
			ast.NewAssign("limit", "", ast.NewInt("10")).At(1, 1),
		),
	}
	res := compile(t, src, "main", false)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics)
	}
	if got := strings.Join(names(res.Modules), ","); got != "base,util,main" {
		t.Errorf("ordering = %s, want base,util,main", got)
	}
	if len(res.Programs) != 3 {
		t.Fatalf("got %d programs, want 3", len(res.Programs))
	}
	if res.ID == uuid.Nil {
		t.Error("session id not set")
	}
	util := res.Programs[1]
	if util.Function("util.double") == nil {
		t.Error("util.double was not generated")
	}
	if !strings.Contains(vm.Disassemble(util.Init, "util", res.Pool), "GET_EXTERN") {
		t.Error("util should read base.limit through GET_EXTERN")
	}
}

func TestDiamondResolvesOnce(t *testing.T) {
	src := modules.MapSource{
		"main": ast.NewModule(ast.NewImport("a"), ast.NewImport("b")),
		"a":    ast.NewModule(ast.NewImport("base")),
		"b":    ast.NewModule(ast.NewImport("base")),
		"base": ast.NewModule(),
	}
	res := compile(t, src, "main", false)
	if got := strings.Join(names(res.Modules), ","); got != "base,a,b,main" {
		t.Errorf("ordering = %s, want base,a,b,main", got)
	}
}

func TestDependencyCycle(t *testing.T) {
	src := modules.MapSource{
		"a": ast.NewModule(ast.NewImport("b").At(1, 1)),
		"b": ast.NewModule(ast.NewImport("a").At(1, 1)),
	}
	res := compile(t, src, "a", false)
	cycles := withCode(res, diagnostics.ErrDependencyCycle)
	if len(cycles) != 1 {
		t.Fatalf("got %d cycle diagnostics, want 1: %v", len(cycles), res.Diagnostics)
	}
	if !strings.Contains(cycles[0].Message, "a -> b -> a") {
		t.Errorf("cycle message %q does not name the path", cycles[0].Message)
	}
	if !res.Fatal || len(res.Programs) != 0 {
		t.Error("a cycle must stop code generation")
	}
}

func TestLoadFailures(t *testing.T) {
	tests := []struct {
		name  string
		src   modules.MapSource
		entry string
	}{
		{"missing import", modules.MapSource{"main": ast.NewModule(ast.NewImport("missing").At(1, 1))}, "main"},
		{"missing entry", modules.MapSource{}, "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compile(t, tt.src, tt.entry, false)
			if len(withCode(res, diagnostics.ErrModuleLoad)) != 1 {
				t.Errorf("want one %s, got %v", diagnostics.ErrModuleLoad, res.Diagnostics)
			}
			if !res.Fatal {
				t.Error("load failure should be fatal")
			}
		})
	}
}

func TestCrossModuleNarrowing(t *testing.T) {
	src := modules.MapSource{
		"main": ast.NewModule(
			ast.NewImport("lib"),
			ast.NewAssign("v", "", ast.NewCall("id", ast.NewInt("3"))),
			ast.NewExprStmt(ast.NewCall("print", ast.NewIdent("v"))),
		),
		"lib": ast.NewModule(
			ast.NewFunc("id", []*ast.Node{ast.NewFormal("x", "")}, "", ast.NewBlock(ast.NewReturn(ast.NewIdent("x")))),
		),
	}
	c := New(Options{Source: src})
	res, err := c.Compile("main")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics)
	}
	lib, ok := c.Module("lib")
	if !ok {
		t.Fatal("lib not resolved")
	}
	id, _ := lib.Scope.LookupLocal("id")
	if got := c.Session.Env.TypeString(id.Type); got != "func(int) -> int" {
		t.Errorf("id: got %s, want func(int) -> int", got)
	}
}

func TestSeverityOverridesAcrossModules(t *testing.T) {
	src := modules.MapSource{
		"main": ast.NewModule(
			ast.NewFunc("f", nil, "", ast.NewBlock(ast.NewAssign("unused", "", ast.NewInt("1")))),
		),
	}
	res := compile(t, src, "main", false)
	if len(withCode(res, diagnostics.WarnUnusedVariable)) != 1 || res.Fatal {
		t.Fatalf("want one non-fatal W003, got %v", res.Diagnostics)
	}

	res, err := Compile("main", Options{
		Source:   src,
		Severity: map[diagnostics.Code]diagnostics.Severity{diagnostics.WarnUnusedVariable: diagnostics.SeverityError},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fatal {
		t.Error("W003 raised to error should be fatal")
	}
}

func TestEndToEndFolding(t *testing.T) {
	src := modules.MapSource{
		"main": ast.NewModule(
			ast.NewAssign("x", "int", ast.NewBinary("+", ast.NewInt("1"), ast.NewInt("2"))).At(1, 1),
		),
	}
	res := compile(t, src, "main", true)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics)
	}
	if res.Pool.Len() != 1 {
		t.Fatalf("pool holds %d constants, want 1", res.Pool.Len())
	}
	if v, _ := res.Pool.Get(1); !v.Equal(vm.IntVal(3)) {
		t.Errorf("constant 1 = %v, want 3", v)
	}
	want := []byte{byte(vm.OP_CONST), 0, 1, byte(vm.OP_SET_GLOBAL), 0, 0, byte(vm.OP_HALT)}
	got := res.Programs[0].Init.Code
	if string(got) != string(want) {
		t.Errorf("code = %v, want %v", got, want)
	}
}
