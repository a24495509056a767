package diagnostics

import (
	"bytes"
	"strings"
	"testing"

	"github.com/funvibe/c4c/internal/ast"
)

func pos(line, col int) ast.Pos { return ast.Pos{File: "main", Line: line, Column: col} }

func TestBagDeduplicates(t *testing.T) {
	b := NewBag(nil)
	b.Add(NewError(ErrUnresolvedName, pos(3, 1), "first"))
	b.Add(NewError(ErrUnresolvedName, pos(3, 1), "second"))
	b.Add(NewError(ErrUnifyMismatch, pos(3, 1), "other code"))
	if b.Len() != 2 {
		t.Fatalf("Len = %d, want 2", b.Len())
	}
	for _, e := range b.Items() {
		if e.Code == ErrUnresolvedName && e.Message != "second" {
			t.Errorf("later diagnostic should replace the earlier one, got %q", e.Message)
		}
	}
}

func TestBagSortedAndFatal(t *testing.T) {
	b := NewBag(nil)
	b.Add(NewError(WarnUnreachable, pos(9, 2), "dead"))
	b.Add(NewError(WarnUseWithoutDef, pos(2, 5), "maybe"))
	if b.HasFatal() {
		t.Error("warnings alone must not be fatal")
	}
	b.Add(NewError(ErrDependencyCycle, pos(1, 1), "cycle"))
	if !b.HasFatal() {
		t.Error("error class diagnostic should be fatal")
	}
	items := b.Items()
	for i := 1; i < len(items); i++ {
		if items[i-1].Pos.Line > items[i].Pos.Line {
			t.Errorf("items not sorted: %v", items)
		}
	}
}

func TestSeverityOverrides(t *testing.T) {
	b := NewBag(map[Code]Severity{
		WarnUseWithoutDef:  SeverityError,
		WarnUnusedVariable: -1,
	})
	b.Add(NewError(WarnUseWithoutDef, pos(1, 1), "x"))
	b.Add(NewError(WarnUnusedVariable, pos(2, 1), "y"))
	if b.Len() != 1 {
		t.Fatalf("ignored code should be dropped, Len = %d", b.Len())
	}
	if !b.HasFatal() {
		t.Error("override to error should make the bag fatal")
	}
}

func TestParseCodeAndSeverity(t *testing.T) {
	if c, ok := ParseCode("use-without-def"); !ok || c != WarnUseWithoutDef {
		t.Errorf("ParseCode by name = %v, %v", c, ok)
	}
	if c, ok := ParseCode("E009"); !ok || c != ErrDependencyCycle {
		t.Errorf("ParseCode by code = %v, %v", c, ok)
	}
	if _, ok := ParseCode("nope"); ok {
		t.Error("unknown code accepted")
	}
	if s, ok := ParseSeverity("ignore"); !ok || s >= 0 {
		t.Errorf("ignore = %v, %v", s, ok)
	}
	if WarnUnreachable.DefaultSeverity() != SeverityWarning || ErrLockedType.DefaultSeverity() != SeverityError {
		t.Error("default severities wrong")
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	errs := []*DiagnosticError{
		Errorf(ErrUnifyMismatch, pos(4, 7), "cannot unify %s with %s", "int", "string"),
		NewError(WarnUnreachable, pos(5, 1), "unreachable code"),
	}
	Render(&buf, errs, false)
	out := buf.String()
	if !strings.Contains(out, "main:4:7: error[E002 unify-mismatch]: cannot unify int with string") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "1 error(s), 1 warning(s)") {
		t.Errorf("missing summary:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("colour emitted with color=false")
	}
}
