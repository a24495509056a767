package analyzer

import (
	"testing"

	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/diagnostics"
	"github.com/funvibe/c4c/internal/modules"
	"github.com/funvibe/c4c/internal/pipeline"
	"github.com/funvibe/c4c/internal/schema"
	"github.com/funvibe/c4c/internal/symbols"
	"github.com/funvibe/c4c/internal/typesystem"
	"github.com/funvibe/c4c/internal/vm"
)

// analyze runs every stage over a single module named main.
func analyze(t *testing.T, opts pipeline.SessionOptions, stmts ...*ast.Node) (*pipeline.Session, *modules.Module) {
	t.Helper()
	s := pipeline.NewSession(opts)
	RegisterBuiltins(s)
	mod := modules.New("main", "main", ast.NewModule(stmts...))
	ctx := pipeline.NewContext(s, mod)
	Declarations().Run(ctx)
	Analysis().Run(ctx)
	Reinference().Run(ctx)
	Layout().Run(ctx)
	LayoutAttributes(s)
	CheckRequired(s, []*modules.Module{mod}, mod)
	return s, mod
}

func count(mod *modules.Module, code diagnostics.Code) int {
	n := 0
	for _, e := range mod.Errors {
		if e.Code == code {
			n++
		}
	}
	return n
}

func lookup(t *testing.T, mod *modules.Module, name string) *symbols.Symbol {
	t.Helper()
	sym, ok := mod.Scope.LookupLocal(name)
	if !ok {
		t.Fatalf("%s not declared in module scope", name)
	}
	return sym
}

func folding() pipeline.SessionOptions { return pipeline.SessionOptions{FoldConstants: true} }

func TestFoldedAnnotatedAssignment(t *testing.T) {
	s, mod := analyze(t, folding(),
		ast.NewAssign("x", "int", ast.NewBinary("+", ast.NewInt("1"), ast.NewInt("2"))),
	)
	if len(mod.Errors) != 0 {
		t.Fatalf("unexpected diagnostics: %v", mod.Errors)
	}
	x := lookup(t, mod, "x")
	if !s.Env.Equal(x.Type, s.Env.Int) {
		t.Errorf("x: got %s, want int", s.Env.TypeString(x.Type))
	}
	if s.Pool.Len() != 1 {
		t.Fatalf("pool holds %d constants, want 1", s.Pool.Len())
	}
	d := mod.Body.DefAt(mod.Tree.Children[0])
	if d == nil || d.ConstID == 0 {
		t.Fatal("definition of x was not folded")
	}
	v, err := s.Pool.Get(d.ConstID)
	if err != nil || !v.Equal(vm.IntVal(3)) {
		t.Errorf("folded value = %v, %v; want 3", v, err)
	}
	if x.Offset != 0 {
		t.Errorf("x offset = %d, want 0", x.Offset)
	}
}

func TestFoldingDisabled(t *testing.T) {
	s, _ := analyze(t, pipeline.SessionOptions{},
		ast.NewAssign("x", "", ast.NewBinary("*", ast.NewInt("6"), ast.NewInt("7"))),
	)
	if s.Pool.Len() != 0 {
		t.Errorf("pool holds %d constants with folding off", s.Pool.Len())
	}
}

func TestFoldingFollowsSingleDefinition(t *testing.T) {
	s, mod := analyze(t, folding(),
		ast.NewAssign("a", "", ast.NewInt("4")),
		ast.NewAssign("b", "", ast.NewBinary("*", ast.NewIdent("a"), ast.NewInt("10"))),
		ast.NewIf(ast.NewBool(true), ast.NewBlock(ast.NewAssign("a", "", ast.NewInt("5"))), nil),
		ast.NewAssign("c", "", ast.NewBinary("+", ast.NewIdent("a"), ast.NewInt("1"))),
	)
	b := mod.Body.DefAt(mod.Tree.Children[1])
	if b == nil || b.ConstID == 0 {
		t.Fatal("b should fold through the single reaching definition of a")
	}
	if v, _ := s.Pool.Get(b.ConstID); !v.Equal(vm.IntVal(40)) {
		t.Errorf("b = %v, want 40", v)
	}
	if c := mod.Body.DefAt(mod.Tree.Children[3]); c == nil || c.ConstID != 0 {
		t.Error("c must not fold: two definitions of a reach it")
	}
}

func TestCallsHideStaticsAssignedInFunctions(t *testing.T) {
	s, mod := analyze(t, folding(),
		ast.NewAssign("x", "", ast.NewInt("1")),
		ast.NewFunc("bump", nil, "", ast.NewBlock(ast.NewAssign("x", "", ast.NewInt("5")))),
		ast.NewAssign("before", "", ast.NewBinary("+", ast.NewIdent("x"), ast.NewInt("1"))),
		ast.NewExprStmt(ast.NewCall("bump")),
		ast.NewAssign("y", "", ast.NewBinary("+", ast.NewIdent("x"), ast.NewInt("1"))),
		ast.NewExprStmt(ast.NewCall("print", ast.NewIdent("y"))),
	)
	if len(mod.Errors) != 0 {
		t.Fatalf("unexpected diagnostics: %v", mod.Errors)
	}
	before := mod.Body.DefAt(mod.Tree.Children[2])
	if before == nil || before.ConstID == 0 {
		t.Fatal("before should fold: no call runs between x = 1 and its read")
	}
	if v, _ := s.Pool.Get(before.ConstID); !v.Equal(vm.IntVal(2)) {
		t.Errorf("before = %v, want 2", v)
	}
	if y := mod.Body.DefAt(mod.Tree.Children[4]); y == nil || y.ConstID != 0 {
		t.Error("y must not fold: bump() may have reassigned x")
	}
}

func TestBuiltinCallsKeepFolding(t *testing.T) {
	_, mod := analyze(t, folding(),
		ast.NewAssign("x", "", ast.NewInt("1")),
		ast.NewFunc("bump", nil, "", ast.NewBlock(ast.NewAssign("x", "", ast.NewInt("5")))),
		ast.NewExprStmt(ast.NewCall("print", ast.NewIdent("x"))),
		ast.NewAssign("y", "", ast.NewBinary("+", ast.NewIdent("x"), ast.NewInt("1"))),
		ast.NewExprStmt(ast.NewCall("print", ast.NewIdent("y"))),
	)
	if y := mod.Body.DefAt(mod.Tree.Children[3]); y == nil || y.ConstID == 0 {
		t.Error("print cannot assign x, y should fold")
	}
}

func TestMalformedOperandsDoNotFold(t *testing.T) {
	tests := []struct {
		name  string
		value *ast.Node
	}{
		{"unary without operand", &ast.Node{Kind: ast.Unary, Value: "-"}},
		{"binary without right operand", &ast.Node{Kind: ast.Binary, Value: "+", Children: []*ast.Node{ast.NewInt("1")}}},
		{"negated nothing", ast.NewUnary("-", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mod := analyze(t, folding(), ast.NewAssign("y", "", tt.value))
			if count(mod, diagnostics.ErrInvalidOperand) == 0 {
				t.Errorf("no E013 in %v", mod.Errors)
			}
			if s.Pool.Len() != 0 {
				t.Errorf("pool holds %d constants", s.Pool.Len())
			}
		})
	}
}

func TestConstantsFoldIntoLaterGraphs(t *testing.T) {
	_, mod := analyze(t, folding(),
		ast.NewConst("limit", ast.NewInt("8")),
		ast.NewFunc("f", nil, "int", ast.NewBlock(
			ast.NewAssign("n", "", ast.NewBinary("*", ast.NewIdent("limit"), ast.NewInt("2"))),
			ast.NewReturn(ast.NewIdent("n")),
		)),
	)
	limit := lookup(t, mod, "limit")
	if limit.ConstID == 0 {
		t.Fatal("const limit was not folded")
	}
	fn := mod.Funcs[0]
	n := fn.DefAt(mod.Tree.Children[1].Child(1).Children[0])
	if n == nil || n.ConstID == 0 {
		t.Error("n should fold using the module constant")
	}
}

func TestFunctionInference(t *testing.T) {
	s, mod := analyze(t, pipeline.SessionOptions{},
		ast.NewAssign("x", "", ast.NewCall("add", ast.NewInt("1"), ast.NewInt("2"))),
		ast.NewExprStmt(ast.NewCall("print", ast.NewIdent("x"))),
		ast.NewFunc("add", []*ast.Node{ast.NewFormal("a", ""), ast.NewFormal("b", "")}, "",
			ast.NewBlock(ast.NewReturn(ast.NewBinary("+", ast.NewIdent("a"), ast.NewIdent("b"))))),
	)
	if len(mod.Errors) != 0 {
		t.Fatalf("unexpected diagnostics: %v", mod.Errors)
	}
	if got := s.Env.TypeString(lookup(t, mod, "x").Type); got != "int" {
		t.Errorf("x: got %s, want int", got)
	}
	if got := s.Env.TypeString(lookup(t, mod, "add").Type); got != "func(int, int) -> int" {
		t.Errorf("add: got %s", got)
	}
}

func TestDiagnostics(t *testing.T) {
	tests := []struct {
		name  string
		stmts []*ast.Node
		code  diagnostics.Code
		fatal bool
	}{
		{
			"use without def in a function",
			[]*ast.Node{ast.NewFunc("f", nil, "", ast.NewBlock(
				ast.NewExprStmt(ast.NewCall("print", ast.NewIdent("x"))),
				ast.NewAssign("x", "", ast.NewInt("1")),
			))},
			diagnostics.WarnUseWithoutDef, false,
		},
		{
			"unreachable code after return",
			[]*ast.Node{ast.NewFunc("f", nil, "int", ast.NewBlock(
				ast.NewReturn(ast.NewInt("1")),
				ast.NewExprStmt(ast.NewCall("print", ast.NewString("never"))),
			))},
			diagnostics.WarnUnreachable, false,
		},
		{
			"unused local",
			[]*ast.Node{ast.NewFunc("f", nil, "", ast.NewBlock(ast.NewAssign("y", "", ast.NewInt("1"))))},
			diagnostics.WarnUnusedVariable, false,
		},
		{
			"open type",
			[]*ast.Node{ast.NewAssign("xs", "", ast.NewList())},
			diagnostics.WarnUnresolvedGeneric, false,
		},
		{
			"unresolved name",
			[]*ast.Node{ast.NewAssign("x", "", ast.NewBinary("+", ast.NewIdent("y"), ast.NewInt("1")))},
			diagnostics.ErrUnresolvedName, true,
		},
		{
			"duplicate function",
			[]*ast.Node{
				ast.NewFunc("f", nil, "", ast.NewBlock()),
				ast.NewFunc("f", nil, "", ast.NewBlock()),
			},
			diagnostics.ErrDuplicateDeclare, true,
		},
		{
			"const redefined",
			[]*ast.Node{
				ast.NewConst("c", ast.NewInt("1")),
				ast.NewAssign("c", "", ast.NewInt("2")),
			},
			diagnostics.ErrConstRedefined, true,
		},
		{
			"type mismatch",
			[]*ast.Node{
				ast.NewAssign("x", "", ast.NewInt("1")),
				ast.NewAssign("x", "", ast.NewString("one")),
			},
			diagnostics.ErrUnifyMismatch, true,
		},
		{
			"break outside loop",
			[]*ast.Node{ast.NewBreak()},
			diagnostics.ErrBreakOutsideLoop, true,
		},
		{
			"return outside function",
			[]*ast.Node{ast.NewReturn(nil)},
			diagnostics.ErrReturnOutsideFunc, true,
		},
		{
			"unknown modifier",
			[]*ast.Node{ast.NewAssign("t", "", ast.NewModLit("3", "fortnights"))},
			diagnostics.ErrUnknownModifier, true,
		},
		{
			"call of a non-function",
			[]*ast.Node{
				ast.NewAssign("n", "", ast.NewInt("1")),
				ast.NewExprStmt(ast.NewCall("n")),
			},
			diagnostics.ErrNotCallable, true,
		},
		{
			"wrong argument count",
			[]*ast.Node{ast.NewExprStmt(ast.NewCall("len", ast.NewString("a"), ast.NewString("b")))},
			diagnostics.ErrInvalidOperand, true,
		},
		{
			"string subtraction",
			[]*ast.Node{ast.NewAssign("s", "", ast.NewBinary("-", ast.NewString("a"), ast.NewString("b")))},
			diagnostics.ErrInvalidOperand, true,
		},
		{
			"generic builtin mismatch",
			[]*ast.Node{ast.NewAssign("xs", "", ast.NewCall("append", ast.NewList(ast.NewInt("1")), ast.NewString("x")))},
			diagnostics.ErrUnifyMismatch, true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mod := analyze(t, pipeline.SessionOptions{}, tt.stmts...)
			if count(mod, tt.code) == 0 {
				t.Fatalf("no %s reported; got %v", tt.code, mod.Errors)
			}
			if mod.HasFatal() != tt.fatal {
				t.Errorf("HasFatal = %v, want %v (%v)", mod.HasFatal(), tt.fatal, mod.Errors)
			}
		})
	}
}

func TestCleanProgram(t *testing.T) {
	_, mod := analyze(t, folding(),
		ast.NewEnum("Red", "Green"),
		ast.NewAssign("total", "", ast.NewInt("0")),
		ast.NewFor("i", ast.NewInt("0"), ast.NewInt("3"), ast.NewBlock(
			ast.NewAssign("total", "", ast.NewBinary("+", ast.NewIdent("total"), ast.NewIdent("i"))),
		)),
		ast.NewWhile(ast.NewBinary("<", ast.NewIdent("total"), ast.NewInt("100")), ast.NewBlock(
			ast.NewIf(ast.NewBinary("==", ast.NewIdent("total"), ast.NewIdent("Green")),
				ast.NewBlock(ast.NewBreak()), nil),
			ast.NewAssign("total", "", ast.NewBinary("*", ast.NewIdent("total"), ast.NewInt("2"))),
		)),
		ast.NewAssign("names", "", ast.NewDict(ast.NewKV(ast.NewString("a"), ast.NewInt("1")))),
		ast.NewAssign("first", "", ast.NewIndex(ast.NewCall("keys", ast.NewIdent("names")), ast.NewInt("0"))),
		ast.NewExprStmt(ast.NewCall("print", ast.NewIdent("first"))),
	)
	if len(mod.Errors) != 0 {
		t.Fatalf("unexpected diagnostics: %v", mod.Errors)
	}
}

func TestGenericBuiltinsInstantiatePerCall(t *testing.T) {
	s, mod := analyze(t, pipeline.SessionOptions{},
		ast.NewAssign("a", "", ast.NewCall("len", ast.NewString("abc"))),
		ast.NewAssign("b", "", ast.NewCall("len", ast.NewList(ast.NewInt("1")))),
		ast.NewAssign("c", "", ast.NewCall("str", ast.NewFloat("1.5"))),
	)
	if len(mod.Errors) != 0 {
		t.Fatalf("unexpected diagnostics: %v", mod.Errors)
	}
	for name, want := range map[string]string{"a": "int", "b": "int", "c": "string"} {
		if got := s.Env.TypeString(lookup(t, mod, name).Type); got != want {
			t.Errorf("%s: got %s, want %s", name, got, want)
		}
	}
}

func TestFunctionLayout(t *testing.T) {
	_, mod := analyze(t, pipeline.SessionOptions{},
		ast.NewExprStmt(ast.NewCall("print", ast.NewCall("g", ast.NewInt("1"), ast.NewInt("2")))),
		ast.NewFunc("g", []*ast.Node{ast.NewFormal("a", ""), ast.NewFormal("b", "")}, "", ast.NewBlock(
			ast.NewAssign("c", "", ast.NewIdent("a")),
			ast.NewAssign("d", "", ast.NewIdent("b")),
			ast.NewReturn(ast.NewBinary("+", ast.NewIdent("c"), ast.NewIdent("d"))),
		)),
	)
	if len(mod.Errors) != 0 {
		t.Fatalf("unexpected diagnostics: %v", mod.Errors)
	}
	formals := mod.Scopes[mod.Tree.Children[1]]
	want := map[string]int{"a": 0, "b": 1, "c": 2, "d": 3}
	for name, off := range want {
		sym, ok := formals.Lookup(name)
		if !ok {
			t.Fatalf("%s not visible from the function", name)
		}
		if sym.Offset != off {
			t.Errorf("%s offset = %d, want %d", name, sym.Offset, off)
		}
	}
	if !mod.Finalized {
		t.Error("module not finalized")
	}
}

func TestLockedAfterLayout(t *testing.T) {
	s, mod := analyze(t, pipeline.SessionOptions{},
		ast.NewAssign("xs", "", ast.NewList()),
	)
	xs := lookup(t, mod, "xs")
	if _, err := s.Env.Unify(xs.Type, s.Env.List(s.Env.Int)); err == nil {
		t.Error("finalized type should refuse narrowing")
	}
}

func TestSeverityOverride(t *testing.T) {
	body := func() []*ast.Node {
		return []*ast.Node{ast.NewFunc("f", nil, "", ast.NewBlock(
			ast.NewExprStmt(ast.NewCall("print", ast.NewIdent("x"))),
			ast.NewAssign("x", "", ast.NewInt("1")),
		))}
	}
	_, mod := analyze(t, pipeline.SessionOptions{
		Severity: map[diagnostics.Code]diagnostics.Severity{diagnostics.WarnUseWithoutDef: diagnostics.SeverityError},
	}, body()...)
	if !mod.HasFatal() {
		t.Error("W001 raised to error should be fatal")
	}
	_, mod = analyze(t, pipeline.SessionOptions{
		Severity: map[diagnostics.Code]diagnostics.Severity{diagnostics.WarnUseWithoutDef: -1},
	}, body()...)
	if count(mod, diagnostics.WarnUseWithoutDef) != 0 {
		t.Error("W001 switched off should be dropped")
	}
}

func netSchema() *schema.Schema {
	s := schema.New()
	s.Root.AddField("name", "string", true)
	s.Root.Allow("net", "user")
	s.AddSection("net", true).AddField("timeout", "duration", false)
	s.AddSection("user", false).AddField("shell", "string", true)
	return s
}

func TestSections(t *testing.T) {
	tests := []struct {
		name  string
		stmts []*ast.Node
		codes []diagnostics.Code
	}{
		{
			"valid",
			[]*ast.Node{
				ast.NewAttrAssign("name", ast.NewString("box")),
				ast.NewSection("net", ast.NewBlock(ast.NewAssign("timeout", "", ast.NewModLit("5", "s")))),
				ast.NewSection("user.alice", ast.NewBlock(ast.NewAssign("shell", "", ast.NewString("/bin/sh")))),
			},
			nil,
		},
		{
			"missing required field",
			[]*ast.Node{
				ast.NewSection("user.bob", ast.NewBlock()),
			},
			[]diagnostics.Code{diagnostics.ErrMissingRequired, diagnostics.ErrMissingRequired},
		},
		{
			"field type mismatch",
			[]*ast.Node{
				ast.NewAttrAssign("name", ast.NewString("box")),
				ast.NewAttrAssign("net.timeout", ast.NewString("soon")),
			},
			[]diagnostics.Code{diagnostics.ErrUnifyMismatch},
		},
		{
			"unknown field",
			[]*ast.Node{
				ast.NewAttrAssign("name", ast.NewString("box")),
				ast.NewAttrAssign("net.retries", ast.NewInt("3")),
			},
			[]diagnostics.Code{diagnostics.ErrFieldNotAllowed},
		},
		{
			"unknown section",
			[]*ast.Node{
				ast.NewAttrAssign("name", ast.NewString("box")),
				ast.NewAttrAssign("disk.size", ast.NewInt("3")),
			},
			[]diagnostics.Code{diagnostics.ErrNoSuchSection},
		},
		{
			"section below a field",
			[]*ast.Node{
				ast.NewAttrAssign("name", ast.NewString("box")),
				ast.NewAttrAssign("net.timeout.ms", ast.NewInt("3")),
			},
			[]diagnostics.Code{diagnostics.ErrSectionUnderField},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mod := analyze(t, pipeline.SessionOptions{Schema: netSchema()}, tt.stmts...)
			if len(mod.Errors) != len(tt.codes) {
				t.Fatalf("got %v, want codes %v", mod.Errors, tt.codes)
			}
			for i, e := range mod.Errors {
				if e.Code != tt.codes[i] {
					t.Errorf("diagnostic %d: got %s, want %s", i, e.Code, tt.codes[i])
				}
			}
		})
	}
}

func TestSectionFieldTypes(t *testing.T) {
	s, _ := analyze(t, pipeline.SessionOptions{Schema: netSchema()},
		ast.NewAttrAssign("name", ast.NewString("box")),
		ast.NewSection("net", ast.NewBlock(ast.NewAssign("timeout", "", ast.NewModLit("5", "s")))),
	)
	sym, ok := s.Attributes.LookupLocal("net.timeout")
	if !ok {
		t.Fatal("net.timeout not materialized")
	}
	if !s.Env.Equal(sym.Type, s.Env.TypeOf(typesystem.BaseDuration)) {
		t.Errorf("net.timeout: got %s", s.Env.TypeString(sym.Type))
	}
	if len(sym.Defs) != 1 {
		t.Errorf("net.timeout has %d defs, want 1", len(sym.Defs))
	}
	if sym.Offset < 0 {
		t.Error("attribute was not laid out")
	}
}
