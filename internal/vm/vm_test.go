package vm

import (
	"strings"
	"testing"

	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/cfg"
	"github.com/funvibe/c4c/internal/modules"
	"github.com/funvibe/c4c/internal/symbols"
	"github.com/funvibe/c4c/internal/typesystem"
)

func TestConstPoolIDs(t *testing.T) {
	p := NewConstPool()
	a := p.Intern(IntVal(3))
	b := p.Intern(StringVal("x"))
	c := p.Intern(IntVal(3))
	if a != 1 || b != 2 {
		t.Fatalf("ids = %d, %d, want 1, 2", a, b)
	}
	if c != a {
		t.Errorf("duplicate value got id %d, want %d", c, a)
	}
	if p.Len() != 2 {
		t.Errorf("Len() = %d, want 2", p.Len())
	}
	// Same payload, different type.
	if d := p.Intern(DurationVal(3)); d == a {
		t.Errorf("duration 3 shares id with int 3")
	}
	if _, ok := p.Lookup(BoolVal(true)); ok {
		t.Errorf("Lookup inserted or found a missing value")
	}
	if _, err := p.Get(0); err == nil {
		t.Errorf("Get(0) should fail")
	}
}

func TestConstPoolRoundTrip(t *testing.T) {
	p := NewConstPool()
	values := []Value{
		IntVal(-42),
		FloatVal(2.5),
		BoolVal(true),
		StringVal("hello, world"),
		StringVal(""),
		DurationVal(1500000),
		SizeVal(4096),
		NilVal(),
	}
	for _, v := range values {
		id := p.Intern(v)
		got, err := p.Get(id)
		if err != nil {
			t.Fatalf("Get(%d): %v", id, err)
		}
		if !got.Equal(v) {
			t.Errorf("Get(%d) = %s, want %s", id, got, v)
		}
	}
	if got := p.Values(); len(got) != len(values) {
		t.Errorf("Values() returned %d entries, want %d", len(got), len(values))
	}
	if p.Offset(1) != 0 || p.Offset(2) != 9 {
		t.Errorf("offsets = %d, %d, want 0, 9", p.Offset(1), p.Offset(2))
	}
}

func TestLiteralValue(t *testing.T) {
	reg := typesystem.NewRegistry()
	tests := []struct {
		node *ast.Node
		want Value
	}{
		{ast.NewInt("42"), IntVal(42)},
		{ast.NewInt("0x10"), IntVal(16)},
		{ast.NewFloat("1.5"), FloatVal(1.5)},
		{ast.NewBool(true), BoolVal(true)},
		{ast.NewString("s"), StringVal("s")},
		{ast.NewModLit("10", "s"), DurationVal(10 * 1000 * 1000)},
		{ast.NewModLit("1.5", "ms"), DurationVal(1500)},
		{ast.NewModLit("4", "kib"), SizeVal(4096)},
	}
	for _, tt := range tests {
		got, err := LiteralValue(tt.node, reg)
		if err != nil {
			t.Errorf("LiteralValue(%s%s): %v", tt.node.Value, tt.node.Modifier, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("LiteralValue(%s%s) = %s, want %s", tt.node.Value, tt.node.Modifier, got, tt.want)
		}
	}
	if _, err := LiteralValue(ast.NewModLit("1", "parsecs"), reg); err == nil {
		t.Errorf("unknown modifier should fail")
	}
	// 2^63 bytes is one past the largest size.
	if _, err := LiteralValue(ast.NewModLit("9223372036854775808", "b"), reg); err == nil {
		t.Errorf("literal scaling to 2^63 should overflow")
	}
	if _, err := LiteralValue(ast.NewModLit("8589934592", "gib"), reg); err == nil {
		t.Errorf("8589934592gib is 2^63 bytes and should overflow")
	}
}

func TestFoldBinary(t *testing.T) {
	tests := []struct {
		op   string
		a, b Value
		want Value
	}{
		{"+", IntVal(1), IntVal(2), IntVal(3)},
		{"-", IntVal(1), IntVal(2), IntVal(-1)},
		{"*", IntVal(6), IntVal(7), IntVal(42)},
		{"/", IntVal(7), IntVal(2), IntVal(3)},
		{"%", IntVal(7), IntVal(2), IntVal(1)},
		{"+", DurationVal(1), DurationVal(2), DurationVal(3)},
		{"/", FloatVal(1), FloatVal(4), FloatVal(0.25)},
		{"+", StringVal("a"), StringVal("b"), StringVal("ab")},
		{"<", IntVal(1), IntVal(2), BoolVal(true)},
		{">=", StringVal("a"), StringVal("b"), BoolVal(false)},
		{"==", SizeVal(8), SizeVal(8), BoolVal(true)},
		{"and", BoolVal(true), BoolVal(false), BoolVal(false)},
		{"or", BoolVal(true), BoolVal(false), BoolVal(true)},
	}
	for _, tt := range tests {
		got, err := FoldBinary(tt.op, tt.a, tt.b)
		if err != nil {
			t.Errorf("%s %s %s: %v", tt.a, tt.op, tt.b, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("%s %s %s = %s, want %s", tt.a, tt.op, tt.b, got, tt.want)
		}
	}

	failures := []struct {
		op   string
		a, b Value
	}{
		{"/", IntVal(1), IntVal(0)},
		{"+", IntVal(1), FloatVal(1)},
		{"-", StringVal("a"), StringVal("b")},
		{"and", IntVal(1), IntVal(1)},
		{"<", BoolVal(true), BoolVal(false)},
	}
	for _, tt := range failures {
		if _, err := FoldBinary(tt.op, tt.a, tt.b); err == nil {
			t.Errorf("%s %s %s should fail", tt.a, tt.op, tt.b)
		}
	}
}

func TestEvaluate(t *testing.T) {
	reg := typesystem.NewRegistry()
	expr := ast.NewBinary("*", ast.NewUnary("-", ast.NewIdent("k")), ast.NewInt("2"))
	lookup := func(n *ast.Node) (Value, bool) {
		if n.Value == "k" {
			return IntVal(5), true
		}
		return Value{}, false
	}
	got, err := Evaluate(expr, reg, lookup)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !got.Equal(IntVal(-10)) {
		t.Errorf("Evaluate = %s, want -10", got)
	}
	if _, err := Evaluate(ast.NewCall("f"), reg, lookup); err == nil {
		t.Errorf("calls are not constant")
	}
}

func TestEvaluateMissingOperands(t *testing.T) {
	reg := typesystem.NewRegistry()
	none := func(*ast.Node) (Value, bool) { return Value{}, false }
	tests := []struct {
		name string
		node *ast.Node
	}{
		{"nil", nil},
		{"unary without operand", &ast.Node{Kind: ast.Unary, Value: "-"}},
		{"binary without right", &ast.Node{Kind: ast.Binary, Value: "+", Children: []*ast.Node{ast.NewInt("1")}}},
		{"binary without operands", &ast.Node{Kind: ast.Binary, Value: "*"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Evaluate(tt.node, reg, none); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

// moduleWithStatic builds a module whose top level assigns the static x.
func moduleWithStatic(t *testing.T, stmts ...*ast.Node) (*modules.Module, *symbols.Symbol) {
	t.Helper()
	tree := ast.NewModule(stmts...)
	mod := modules.New("main", "main.tree.yaml", tree)
	mod.Scope = symbols.NewScope(symbols.ScopeOptions{Type: symbols.ScopeModule, Name: "main", Module: "main"})
	x, err := mod.Scope.Declare("x", symbols.VariableSymbol, nil)
	if err != nil {
		t.Fatalf("Declare: %v", err)
	}
	x.Offset = 0
	ast.Walk(tree, func(n *ast.Node) bool {
		if n.Kind == ast.Ident && n.Value == "x" {
			mod.Bind(n, x)
		}
		return true
	})
	return mod, x
}

func TestGenerateUnfolded(t *testing.T) {
	assign := ast.NewAssign("x", "", ast.NewBinary("+", ast.NewInt("1"), ast.NewInt("2"))).At(1, 1)
	mod, _ := moduleWithStatic(t, assign)
	pool := NewConstPool()

	prog, err := Generate(mod, pool, typesystem.NewRegistry())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []byte{
		byte(OP_CONST), 0, 1,
		byte(OP_CONST), 0, 2,
		byte(OP_ADD),
		byte(OP_SET_GLOBAL), 0, 0,
		byte(OP_HALT),
	}
	if string(prog.Init.Code) != string(want) {
		t.Errorf("code = %v, want %v", prog.Init.Code, want)
	}
	if pool.Len() != 2 {
		t.Errorf("pool has %d entries, want 2", pool.Len())
	}
}

func TestGenerateFolded(t *testing.T) {
	assign := ast.NewAssign("x", "", ast.NewBinary("+", ast.NewInt("1"), ast.NewInt("2"))).At(1, 1)
	mod, _ := moduleWithStatic(t, assign)
	mod.Body = cfg.Build(cfg.BuildOptions{Name: "main", Body: mod.Tree, Resolve: mod.SymbolOf})
	pool := NewConstPool()
	def := mod.Body.DefAt(assign)
	if def == nil {
		t.Fatal("no def for the assignment")
	}
	def.ConstID = pool.Intern(IntVal(3))

	prog, err := Generate(mod, pool, typesystem.NewRegistry())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []byte{
		byte(OP_CONST), 0, 1,
		byte(OP_SET_GLOBAL), 0, 0,
		byte(OP_HALT),
	}
	if string(prog.Init.Code) != string(want) {
		t.Errorf("code = %v, want %v", prog.Init.Code, want)
	}
	if pool.Len() != 1 {
		t.Errorf("pool has %d entries, want 1", pool.Len())
	}
}

func TestGenerateSkipsDeadCode(t *testing.T) {
	body := ast.NewBlock(
		ast.NewReturn(ast.NewIdent("a")),
		ast.NewExprStmt(ast.NewCall("print", ast.NewIdent("a"))),
	)
	decl := ast.NewFunc("f", []*ast.Node{ast.NewFormal("a", "int")}, "int", body)
	tree := ast.NewModule(decl)
	mod := modules.New("main", "main.tree.yaml", tree)
	mod.Scope = symbols.NewScope(symbols.ScopeOptions{Type: symbols.ScopeModule, Name: "main", Module: "main"})
	fn, _ := mod.Scope.Declare("f", symbols.FuncSymbol, decl)
	mod.Bind(decl, fn)
	formals := mod.Scope.Enclosed(symbols.ScopeFormals, "f")
	a, _ := formals.Declare("a", symbols.FormalSymbol, decl.Child(0).Child(0))
	a.Offset = 0
	ast.Walk(body, func(n *ast.Node) bool {
		if n.Kind == ast.Ident && n.Value == "a" {
			mod.Bind(n, a)
		}
		return true
	})
	mod.Funcs = append(mod.Funcs, cfg.Build(cfg.BuildOptions{Name: "f", Body: body, Decl: decl, Resolve: mod.SymbolOf}))

	pool := NewConstPool()
	prog, err := Generate(mod, pool, typesystem.NewRegistry())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	f := prog.Function("main.f")
	if f == nil {
		t.Fatalf("function main.f missing, have %d functions", len(prog.Funcs))
	}
	if f.Arity != 1 || f.Locals != 1 {
		t.Errorf("arity/locals = %d/%d, want 1/1", f.Arity, f.Locals)
	}
	for _, b := range f.Chunk.Code {
		if Opcode(b) == OP_CALL {
			t.Fatalf("dead call was generated: %v", f.Chunk.Code)
		}
	}
	if pool.Len() != 0 {
		t.Errorf("dead code interned %d constants", pool.Len())
	}
}

func TestGenerateLoops(t *testing.T) {
	loop := ast.NewWhile(
		ast.NewBinary("<", ast.NewIdent("x"), ast.NewInt("10")),
		ast.NewBlock(
			ast.NewIf(ast.NewBinary("==", ast.NewIdent("x"), ast.NewInt("5")), ast.NewBlock(ast.NewBreak()), nil),
			ast.NewAssign("x", "", ast.NewBinary("+", ast.NewIdent("x"), ast.NewInt("1"))),
		),
	).At(2, 1)
	mod, _ := moduleWithStatic(t, ast.NewAssign("x", "", ast.NewInt("0")).At(1, 1), loop)
	pool := NewConstPool()
	prog, err := Generate(mod, pool, typesystem.NewRegistry())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	out := Disassemble(prog.Init, "main", pool)
	for _, want := range []string{"== main ==", "JUMP_IF_FALSE", "LOOP", "JUMP ", "HALT"} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
}

func TestDisassemble(t *testing.T) {
	pool := NewConstPool()
	c := NewChunk()
	c.WriteConstant(pool.Intern(IntVal(7)), 1)
	c.WriteOp(OP_CALL, 1)
	c.WriteU16(int(pool.Intern(StringVal("main.f"))), 1)
	c.Write(1, 1)
	c.WriteOp(OP_RETURN, 2)

	out := Disassemble(c, "test", pool)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "CONST") || !strings.Contains(lines[1], "'7'") {
		t.Errorf("constant line = %q", lines[1])
	}
	if !strings.Contains(lines[2], `'"main.f"'`) || !strings.Contains(lines[2], "argc=1") {
		t.Errorf("call line = %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "0007    2 RETURN") {
		t.Errorf("return line = %q", lines[3])
	}
}

func TestGenerateOperandOverflow(t *testing.T) {
	ints := func(n int) []*ast.Node {
		out := make([]*ast.Node, n)
		for i := range out {
			out[i] = ast.NewInt("0")
		}
		return out
	}
	tests := []struct {
		name   string
		value  *ast.Node
		offset int
		want   string
	}{
		{"list of 256", ast.NewList(ints(256)...).At(3, 5), 0, "element count 256"},
		{"call with 256 arguments", ast.NewCall("f", ints(256)...).At(3, 5), 0, "argument count 256"},
		{"static offset", ast.NewInt("1").At(3, 5), 70000, "static offset 70000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod, x := moduleWithStatic(t, ast.NewAssign("x", "", tt.value).At(3, 1))
			x.Offset = tt.offset
			_, err := Generate(mod, NewConstPool(), typesystem.NewRegistry())
			if err == nil {
				t.Fatal("expected an overflow error")
			}
			if !strings.Contains(err.Error(), tt.want) || !strings.Contains(err.Error(), "main.tree.yaml:3") {
				t.Errorf("error %q does not mention %q at main.tree.yaml:3", err, tt.want)
			}
		})
	}

	mod, _ := moduleWithStatic(t, ast.NewAssign("x", "", ast.NewList(ints(255)...)))
	if _, err := Generate(mod, NewConstPool(), typesystem.NewRegistry()); err != nil {
		t.Errorf("255 elements fit: %v", err)
	}
}
