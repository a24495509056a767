package pipeline

import (
	"fmt"
	"io"
	"log"

	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/config"
	"github.com/funvibe/c4c/internal/diagnostics"
	"github.com/funvibe/c4c/internal/modules"
	"github.com/funvibe/c4c/internal/schema"
	"github.com/funvibe/c4c/internal/symbols"
	"github.com/funvibe/c4c/internal/typesystem"
	"github.com/funvibe/c4c/internal/vm"
)

// SessionOptions configures NewSession. Zero values select the defaults.
type SessionOptions struct {
	Schema        *schema.Schema
	Registry      *typesystem.Registry
	Logger        *log.Logger
	FoldConstants bool
	Severity      map[diagnostics.Code]diagnostics.Severity
}

// Session is the state shared by every module of one compilation: the
// type environment, the registry, the constant pool and the global and
// attribute scopes.
type Session struct {
	Env        *typesystem.Env
	Registry   *typesystem.Registry
	Pool       *vm.ConstPool
	Global     *symbols.Scope
	Attributes *symbols.Scope
	Schema     *schema.Schema
	Logger     *log.Logger

	FoldConstants bool
	Severity      map[diagnostics.Code]diagnostics.Severity
}

// NewSession builds the shared state. The attribute scope is imported into
// the global scope so every module can reach it.
func NewSession(opts SessionOptions) *Session {
	s := &Session{
		Env:           typesystem.NewEnv(),
		Registry:      opts.Registry,
		Pool:          vm.NewConstPool(),
		Schema:        opts.Schema,
		Logger:        opts.Logger,
		FoldConstants: opts.FoldConstants,
		Severity:      opts.Severity,
	}
	if s.Registry == nil {
		s.Registry = typesystem.NewRegistry()
	}
	if s.Schema == nil {
		s.Schema = schema.New()
	}
	if s.Logger == nil {
		s.Logger = log.New(io.Discard, "", 0)
	}
	s.Global = symbols.NewScope(symbols.ScopeOptions{Type: symbols.ScopeGlobal, Name: config.GlobalScopeName})
	s.Attributes = symbols.NewScope(symbols.ScopeOptions{
		Type:      symbols.ScopeAttribute,
		Name:      config.AttrScopeName,
		Schema:    s.Schema,
		FieldType: s.fieldType,
	})
	s.Global.Import(s.Attributes)
	return s
}

// fieldType converts a schema field's annotation. User-defined fields get
// a fresh variable that the first assignment narrows.
func (s *Session) fieldType(info schema.AttrInfo) typesystem.TypeRef {
	if info.Field == nil || info.Field.Type == "" {
		return s.Env.NewVar()
	}
	expr, err := ast.ParseTypeExpr(info.Field.Type)
	if err != nil {
		s.Logger.Printf("schema field %s: %v", info.Field.Name, err)
		return s.Env.Error
	}
	t, err := s.Env.FromExpr(s.Registry, expr, nil)
	if err != nil {
		s.Logger.Printf("schema field %s: %v", info.Field.Name, err)
		return s.Env.Error
	}
	return t
}

// Logf writes a debug line through the session logger.
func (s *Session) Logf(format string, args ...interface{}) {
	s.Logger.Output(2, fmt.Sprintf(format, args...))
}

// PipelineContext carries one module through the analysis stages.
type PipelineContext struct {
	*Session
	Module *modules.Module
}

// NewContext pairs a module with the session.
func NewContext(s *Session, m *modules.Module) *PipelineContext {
	return &PipelineContext{Session: s, Module: m}
}

// Report attaches err to the module after applying severity overrides.
// Diagnostics whose code is switched off are dropped.
func (c *PipelineContext) Report(err *diagnostics.DiagnosticError) {
	if !diagnostics.Adjust(c.Severity, err) {
		return
	}
	c.Module.AddError(err)
}

// Errorf reports a formatted diagnostic at pos.
func (c *PipelineContext) Errorf(code diagnostics.Code, pos ast.Pos, format string, args ...interface{}) {
	c.Report(diagnostics.Errorf(code, pos, format, args...))
}
