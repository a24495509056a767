package cache

import (
	"path/filepath"
	"testing"

	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/compiler"
	"github.com/funvibe/c4c/internal/diagnostics"
	"github.com/funvibe/c4c/internal/modules"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	src := modules.MapSource{
		"main": ast.NewModule(
			ast.NewImport("lib").At(1, 1),
			ast.NewAssign("x", "", ast.NewBinary("+", ast.NewInt("1"), ast.NewIdent("y").At(2, 9))).At(2, 1),
		),
		"lib": ast.NewModule(ast.NewAssign("k", "", ast.NewInt("7")).At(1, 1)),
	}
	res, err := compiler.Compile("main", compiler.Options{Source: src, FoldConstants: true})
	if err != nil {
		t.Fatal(err)
	}

	s := open(t)
	if err := s.Record(res); err != nil {
		t.Fatalf("Record: %v", err)
	}
	sessions, err := s.Sessions(0)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	got := sessions[0]
	if got.ID != res.ID.String() || got.Entry != "main" || !got.Fatal {
		t.Errorf("session = %+v", got)
	}
	if len(got.Modules) != 2 || got.Modules[0] != "lib" || got.Modules[1] != "main" {
		t.Errorf("modules = %v, want [lib main]", got.Modules)
	}
	if got.Constants != res.Pool.Len() {
		t.Errorf("constants = %d, want %d", got.Constants, res.Pool.Len())
	}
	if got.CompiledAt.IsZero() {
		t.Error("compile time not recorded")
	}

	diags, err := s.Diagnostics(got.ID)
	if err != nil {
		t.Fatalf("Diagnostics: %v", err)
	}
	if len(diags) != len(res.Diagnostics) || len(diags) == 0 {
		t.Fatalf("got %d diagnostics, want %d", len(diags), len(res.Diagnostics))
	}
	if diags[0].Code != diagnostics.ErrUnresolvedName || diags[0].Pos.Line != 2 {
		t.Errorf("first diagnostic = %v", diags[0])
	}
}

func TestSessionsNewestFirst(t *testing.T) {
	s := open(t)
	src := modules.MapSource{"main": ast.NewModule()}
	var ids []string
	for i := 0; i < 3; i++ {
		res, err := compiler.Compile("main", compiler.Options{Source: src})
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Record(res); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, res.ID.String())
	}
	sessions, err := s.Sessions(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("limit ignored: %d sessions", len(sessions))
	}
	if sessions[0].ID != ids[2] || sessions[1].ID != ids[1] {
		t.Errorf("order = %s, %s; want %s, %s", sessions[0].ID, sessions[1].ID, ids[2], ids[1])
	}
}

func TestRecordTwiceFails(t *testing.T) {
	s := open(t)
	res, err := compiler.Compile("main", compiler.Options{Source: modules.MapSource{"main": ast.NewModule()}})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Record(res); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(res); err == nil {
		t.Error("recording the same session twice should fail")
	}
}
