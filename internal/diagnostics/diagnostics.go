// Package diagnostics defines compiler messages and the bag that collects
// them during a compilation.
package diagnostics

import (
	"fmt"

	"github.com/funvibe/c4c/internal/ast"
)

// Code identifies the kind of a diagnostic.
type Code string

const (
	ErrDuplicateDeclare   Code = "E001" // name declared twice in one scope
	ErrUnifyMismatch      Code = "E002" // incompatible types
	ErrLockedType         Code = "E003" // narrowing a finalized type
	ErrUnresolvedName     Code = "E004" // unknown identifier
	ErrNoSuchSection      Code = "E005"
	ErrFieldNotAllowed    Code = "E006"
	ErrSectionNotAllowed  Code = "E007"
	ErrSectionUnderField  Code = "E008"
	ErrDependencyCycle    Code = "E009"
	ErrModuleLoad         Code = "E010"
	ErrConstRedefined     Code = "E011"
	ErrUnknownModifier    Code = "E012" // unknown literal modifier
	ErrInvalidOperand     Code = "E013"
	ErrNotCallable        Code = "E014"
	ErrBreakOutsideLoop   Code = "E015"
	ErrReturnOutsideFunc  Code = "E016"
	ErrInfiniteType       Code = "E017"
	ErrMissingRequired    Code = "E018" // required schema field never set
	WarnUseWithoutDef     Code = "W001" // read of a variable on a path with no definition
	WarnUnreachable       Code = "W002"
	WarnUnusedVariable    Code = "W003"
	WarnUnresolvedGeneric Code = "W004" // type still open after final inference
)

var codeNames = map[Code]string{
	ErrDuplicateDeclare:   "duplicate-declare",
	ErrUnifyMismatch:      "unify-mismatch",
	ErrLockedType:         "locked-type",
	ErrUnresolvedName:     "unresolved-name",
	ErrNoSuchSection:      "no-such-section",
	ErrFieldNotAllowed:    "field-not-allowed",
	ErrSectionNotAllowed:  "section-not-allowed",
	ErrSectionUnderField:  "section-under-field",
	ErrDependencyCycle:    "dependency-cycle",
	ErrModuleLoad:         "module-load-failure",
	ErrConstRedefined:     "const-redefined",
	ErrUnknownModifier:    "unknown-literal-modifier",
	ErrInvalidOperand:     "invalid-operand",
	ErrNotCallable:        "not-callable",
	ErrBreakOutsideLoop:   "break-outside-loop",
	ErrReturnOutsideFunc:  "return-outside-function",
	ErrInfiniteType:       "infinite-type",
	ErrMissingRequired:    "missing-required-field",
	WarnUseWithoutDef:     "use-without-def",
	WarnUnreachable:       "unreachable-code",
	WarnUnusedVariable:    "unused-variable",
	WarnUnresolvedGeneric: "unresolved-type",
}

// Name returns the kebab-case name of c, used in configuration files.
func (c Code) Name() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return string(c)
}

// ParseCode accepts either the short code (E002) or its name (unify-mismatch).
func ParseCode(s string) (Code, bool) {
	if _, ok := codeNames[Code(s)]; ok {
		return Code(s), true
	}
	for c, n := range codeNames {
		if n == s {
			return c, true
		}
	}
	return "", false
}

// DefaultSeverity is the severity a code carries unless overridden.
func (c Code) DefaultSeverity() Severity {
	if len(c) > 0 && c[0] == 'W' {
		return SeverityWarning
	}
	return SeverityError
}

// Severity orders diagnostics by importance.
type Severity int

const (
	SeverityNote Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityNote:
		return "note"
	case SeverityWarning:
		return "warning"
	}
	return "error"
}

// ParseSeverity maps "error", "warning", "note" and "ignore" to a
// severity. ignore reports ok with a negative severity.
func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "error":
		return SeverityError, true
	case "warning", "warn":
		return SeverityWarning, true
	case "note", "info":
		return SeverityNote, true
	case "ignore", "off":
		return -1, true
	}
	return 0, false
}

// DiagnosticError is a single compiler message.
type DiagnosticError struct {
	Code     Code
	Severity Severity
	Pos      ast.Pos
	File     string
	Message  string
}

// NewError builds a diagnostic with the code's default severity.
func NewError(code Code, pos ast.Pos, msg string) *DiagnosticError {
	return &DiagnosticError{
		Code:     code,
		Severity: code.DefaultSeverity(),
		Pos:      pos,
		File:     pos.File,
		Message:  msg,
	}
}

// Errorf is NewError with formatting.
func Errorf(code Code, pos ast.Pos, format string, args ...interface{}) *DiagnosticError {
	return NewError(code, pos, fmt.Sprintf(format, args...))
}

func (e *DiagnosticError) Error() string {
	loc := e.Pos.String()
	if e.File != "" && e.Pos.File == "" {
		loc = e.File + ":" + loc
	}
	return fmt.Sprintf("%s: %s[%s]: %s", loc, e.Severity, e.Code, e.Message)
}

// IsFatal reports whether e stops code generation.
func (e *DiagnosticError) IsFatal() bool { return e.Severity >= SeverityError }

func (e *DiagnosticError) key() string {
	return fmt.Sprintf("%s:%d:%d:%s", e.File, e.Pos.Line, e.Pos.Column, e.Code)
}
