package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const libTree = `
kind: module
children:
  - kind: assign
    line: 1
    children:
      - {kind: ident, value: k}
      - {kind: int, value: "7"}
`

const mainTree = `
kind: module
children:
  - {kind: import, value: lib, line: 1}
  - kind: assign
    line: 2
    children:
      - {kind: ident, value: x}
      - kind: binary
        value: "+"
        children:
          - {kind: ident, value: k}
          - {kind: int, value: "1"}
`

const brokenTree = `
kind: module
children:
  - kind: assign
    line: 1
    children:
      - {kind: ident, value: x}
      - {kind: ident, value: nowhere, line: 1, col: 5}
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCompileAndDump(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.tree.yaml": mainTree, "lib.tree.yaml": libTree})

	code, out, errOut := run("-dump", "-I", dir, "main")
	if code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, errOut)
	}
	if errOut != "" {
		t.Errorf("unexpected diagnostics:\n%s", errOut)
	}
	lib := strings.Index(out, "== lib ==")
	main := strings.Index(out, "== main ==")
	if lib < 0 || main < 0 || lib > main {
		t.Errorf("dump should list lib before main:\n%s", out)
	}
}

func TestEntryAsPath(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.tree.yaml": mainTree, "lib.tree.yaml": libTree})
	if code, _, errOut := run(filepath.Join(dir, "main.tree.yaml")); code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, errOut)
	}
}

func TestFatalExitStatus(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.tree.yaml": brokenTree})
	code, out, errOut := run("-dump", "-I"+dir, "main")
	if code != 1 {
		t.Errorf("exit %d, want 1", code)
	}
	if !strings.Contains(errOut, "E004") || !strings.Contains(errOut, "nowhere") {
		t.Errorf("stderr lacks the unresolved name:\n%s", errOut)
	}
	if out != "" {
		t.Errorf("nothing should be dumped after a fatal diagnostic:\n%s", out)
	}
}

func TestSchemaFlag(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.tree.yaml": libTree,
		"schema.yaml":    "root:\n  fields:\n    hostname: {type: string, required: true}\n",
	})
	code, _, errOut := run("-I", dir, "-schema", filepath.Join(dir, "schema.yaml"), "main")
	if code != 1 || !strings.Contains(errOut, "E018") {
		t.Errorf("exit %d, stderr:\n%s", code, errOut)
	}
}

func TestProjectFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.tree.yaml": brokenTree,
		"c4c.yaml":       "entry: main\nseverity:\n  E004: warning\ncolor: never\n",
	})
	code, _, errOut := run("-config", filepath.Join(dir, "c4c.yaml"))
	if code != 0 {
		t.Errorf("E004 lowered to a warning should not fail, exit %d:\n%s", code, errOut)
	}
	if !strings.Contains(errOut, "warning[E004") {
		t.Errorf("stderr:\n%s", errOut)
	}
}

func TestHistory(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.tree.yaml": brokenTree, "lib.tree.yaml": libTree})
	db := filepath.Join(t.TempDir(), "history.db")

	if code, _, _ := run("-db", db, "-I", dir, "lib"); code != 0 {
		t.Fatalf("compiling lib failed: exit %d", code)
	}
	if code, _, _ := run("-db", db, "-I", dir, "main"); code != 1 {
		t.Fatalf("compiling main: exit %d, want 1", code)
	}

	code, out, errOut := run("history", "-db", db)
	if code != 0 {
		t.Fatalf("history: exit %d, stderr:\n%s", code, errOut)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 sessions, got:\n%s", out)
	}
	if !strings.Contains(lines[0], "fatal") || !strings.Contains(lines[0], "main") {
		t.Errorf("newest session should be the failed main build: %s", lines[0])
	}
	if !strings.Contains(lines[1], "ok") || !strings.Contains(lines[1], "lib") {
		t.Errorf("oldest session should be the lib build: %s", lines[1])
	}

	id := strings.Fields(lines[0])[0]
	code, out, _ = run("history", "-db", db, id)
	if code != 0 || !strings.Contains(out, "E004") {
		t.Errorf("session diagnostics: exit %d\n%s", code, out)
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"-frobnicate", "main"}, "unknown flag"},
		{"missing value", []string{"main", "-db"}, "needs an argument"},
		{"two entries", []string{"a", "b"}, "more than one entry"},
		{"history without db", []string{"history", "-config", "/nonexistent/c4c.yaml"}, "c4c.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := run(tt.args...)
			if code != 1 {
				t.Errorf("exit %d, want 1", code)
			}
			if !strings.Contains(errOut, tt.want) {
				t.Errorf("stderr %q does not mention %q", errOut, tt.want)
			}
		})
	}
}

func TestHelp(t *testing.T) {
	code, out, _ := run("-help")
	if code != 0 || !strings.Contains(out, "Usage:") {
		t.Errorf("exit %d, output:\n%s", code, out)
	}
}
