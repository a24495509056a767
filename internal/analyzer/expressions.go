package analyzer

import (
	"strconv"

	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/diagnostics"
	"github.com/funvibe/c4c/internal/symbols"
	"github.com/funvibe/c4c/internal/typesystem"
)

// expr infers the type of n and records it in the type map.
func (w *walker) expr(n *ast.Node, scope *symbols.Scope) typesystem.TypeRef {
	if n == nil {
		return w.env.Error
	}
	t := w.inferExpr(n, scope)
	w.mod.SetType(n, t)
	return t
}

func (w *walker) inferExpr(n *ast.Node, scope *symbols.Scope) typesystem.TypeRef {
	switch n.Kind {
	case ast.IntLit, ast.FloatLit:
		return w.number(n)
	case ast.StringLit:
		return w.env.String
	case ast.BoolLit:
		return w.env.Bool
	case ast.Ident:
		return w.ident(n, scope)
	case ast.AttrRef:
		sym := w.attr(n.Path(), n)
		if sym == nil {
			return w.env.Error
		}
		sym.RecordUse(n)
		return w.typeOf(sym)
	case ast.ListLit:
		elem := w.env.NewVar()
		for _, c := range n.Children {
			elem = w.unify(elem, w.expr(c, scope), c)
		}
		return w.env.List(elem)
	case ast.DictLit:
		key, value := w.env.NewVar(), w.env.NewVar()
		for _, kv := range n.Children {
			if kv.Kind != ast.KeyValue || kv.NumChildren() != 2 {
				w.errorf(diagnostics.ErrInvalidOperand, kv, "dict entries must be key/value pairs")
				continue
			}
			key = w.unify(key, w.expr(kv.Child(0), scope), kv.Child(0))
			value = w.unify(value, w.expr(kv.Child(1), scope), kv.Child(1))
		}
		return w.env.Dict(key, value)
	case ast.TupleLit:
		if n.NumChildren() == 0 {
			w.errorf(diagnostics.ErrInvalidOperand, n, "empty tuple")
			return w.env.Error
		}
		elems := make([]typesystem.TypeRef, len(n.Children))
		for i, c := range n.Children {
			elems[i] = w.expr(c, scope)
		}
		return w.env.Tuple(elems...)
	case ast.Binary:
		return w.binary(n, scope)
	case ast.Unary:
		return w.unary(n, scope)
	case ast.Call:
		return w.call(n, scope)
	case ast.Index:
		return w.index(n, scope)
	}
	w.errorf(diagnostics.ErrInvalidOperand, n, "%s is not an expression", n.Kind)
	return w.env.Error
}

func (w *walker) number(n *ast.Node) typesystem.TypeRef {
	if n.Modifier != "" {
		m, ok := w.ctx.Registry.Modifier(n.Modifier)
		if !ok {
			w.errorf(diagnostics.ErrUnknownModifier, n, "unknown literal modifier %q", n.Modifier)
			return w.env.Error
		}
		return w.env.TypeOf(m.Base)
	}
	if n.Kind == ast.FloatLit {
		return w.env.Float
	}
	return w.env.Int
}

// ident resolves a name read. Inside a section an unknown name is tried as
// a field of the section. Unknown names are reported once and replaced by
// an error-typed placeholder.
func (w *walker) ident(n *ast.Node, scope *symbols.Scope) typesystem.TypeRef {
	sym, ok := scope.Lookup(n.Value)
	if !ok && len(w.section) > 0 {
		path := append(append([]string(nil), w.section...), n.Value)
		if s, _ := w.mod.Scope.LookupAttr(path, n); s != nil {
			sym, ok = s, true
		}
	}
	if !ok {
		w.errorf(diagnostics.ErrUnresolvedName, n, "undefined name %s", n.Value)
		sym, _ = w.mod.Scope.Declare(n.Value, symbols.VariableSymbol, n)
		if sym == nil {
			return w.env.Error
		}
		sym.Set(symbols.Placeholder)
		sym.Type = w.env.Error
	}
	w.mod.Bind(n, sym)
	sym.RecordUse(n)

	switch sym.Kind {
	case symbols.ModuleSymbol, symbols.EnumTypeSymbol:
		w.errorf(diagnostics.ErrInvalidOperand, n, "%s %s is not a value", sym.Kind, sym.Name)
		return w.env.Error
	}
	return w.typeOf(sym)
}

func (w *walker) binary(n *ast.Node, scope *symbols.Scope) typesystem.TypeRef {
	left, right := n.Child(0), n.Child(1)
	if left == nil || right == nil {
		w.errorf(diagnostics.ErrInvalidOperand, n, "operator %s needs two operands", n.Value)
		return w.env.Error
	}
	lt, rt := w.expr(left, scope), w.expr(right, scope)

	switch n.Value {
	case "and", "or":
		w.unify(w.env.Bool, lt, left)
		w.unify(w.env.Bool, rt, right)
		return w.env.Bool
	case "==", "!=":
		w.unify(lt, rt, n)
		return w.env.Bool
	case "<", "<=", ">", ">=":
		t := w.unify(lt, rt, n)
		w.operand(n, t, true)
		return w.env.Bool
	case "+", "-", "*", "/", "%":
		t := w.unify(lt, rt, n)
		if !w.operand(n, t, n.Value == "+") {
			return w.env.Error
		}
		return t
	}
	w.errorf(diagnostics.ErrInvalidOperand, n, "unknown operator %s", n.Value)
	return w.env.Error
}

// operand checks that operator n applies to values of type t. Open and
// erroneous types pass.
func (w *walker) operand(n *ast.Node, t typesystem.TypeRef, strings bool) bool {
	tt := w.env.Lookup(t)
	if tt == nil || tt.Kind == typesystem.KindVariable || tt.IsError() {
		return true
	}
	if tt.Base.IsNumeric() || strings && tt.Base == typesystem.BaseString {
		return true
	}
	w.errorf(diagnostics.ErrInvalidOperand, n, "operator %s does not apply to %s", n.Value, w.env.TypeString(t))
	return false
}

func (w *walker) unary(n *ast.Node, scope *symbols.Scope) typesystem.TypeRef {
	operand := n.Child(0)
	if operand == nil {
		w.errorf(diagnostics.ErrInvalidOperand, n, "operator %s needs an operand", n.Value)
		return w.env.Error
	}
	t := w.expr(operand, scope)
	switch n.Value {
	case "-":
		if !w.operand(n, t, false) {
			return w.env.Error
		}
		return t
	case "!", "not":
		w.unify(w.env.Bool, t, operand)
		return w.env.Bool
	}
	w.errorf(diagnostics.ErrInvalidOperand, n, "unknown operator %s", n.Value)
	return w.env.Error
}

// call instantiates the callee's signature and unifies it with the
// argument types. Generic signatures get fresh variables per call.
func (w *walker) call(n *ast.Node, scope *symbols.Scope) typesystem.TypeRef {
	args := make([]typesystem.TypeRef, len(n.Children))
	for i, a := range n.Children {
		args[i] = w.expr(a, scope)
	}
	sym, ok := scope.Lookup(n.Value)
	if !ok {
		w.errorf(diagnostics.ErrUnresolvedName, n, "undefined function %s", n.Value)
		return w.env.Error
	}
	w.mod.Bind(n, sym)
	sym.RecordUse(n)

	switch sym.Kind {
	case symbols.FuncSymbol, symbols.ExternFuncSymbol, symbols.VariableSymbol, symbols.FormalSymbol, symbols.AttrSymbol:
	default:
		w.errorf(diagnostics.ErrNotCallable, n, "%s %s is not callable", sym.Kind, sym.Name)
		return w.env.Error
	}
	return w.apply(n, w.env.Instantiate(w.typeOf(sym)), args)
}

// apply checks a call of a function of type ft with argument types args and
// returns the result type.
func (w *walker) apply(n *ast.Node, ft typesystem.TypeRef, args []typesystem.TypeRef) typesystem.TypeRef {
	if w.env.IsError(ft) {
		return w.env.Error
	}
	if t := w.env.Lookup(ft); t != nil && t.Kind != typesystem.KindVariable {
		if t.Kind != typesystem.KindFunction {
			w.errorf(diagnostics.ErrNotCallable, n, "%s is not callable (type %s)", n.Value, w.env.TypeString(ft))
			return w.env.Error
		}
		if params, _ := t.FuncParams(); len(params) != len(args) {
			w.errorf(diagnostics.ErrInvalidOperand, n, "%s expects %d arguments, got %d", n.Value, len(params), len(args))
			return w.env.Error
		}
	}
	ret := w.env.NewVar()
	if w.env.IsError(w.unify(ft, w.env.Func(args, ret), n)) {
		return w.env.Error
	}
	return w.env.Resolve(ret)
}

func (w *walker) index(n *ast.Node, scope *symbols.Scope) typesystem.TypeRef {
	container, idx := n.Child(0), n.Child(1)
	if container == nil || idx == nil {
		w.errorf(diagnostics.ErrInvalidOperand, n, "index needs a container and an index")
		return w.env.Error
	}
	ct := w.expr(container, scope)
	it := w.expr(idx, scope)

	t := w.env.Lookup(ct)
	switch {
	case t == nil || t.IsError():
		return w.env.Error
	case t.Kind == typesystem.KindVariable:
		elem := w.env.NewVar()
		w.unify(ct, w.env.List(elem), container)
		w.unify(w.env.Int, it, idx)
		return elem
	case t.Base == typesystem.BaseList:
		w.unify(w.env.Int, it, idx)
		return t.Params[0]
	case t.Base == typesystem.BaseDict:
		w.unify(t.Params[0], it, idx)
		return t.Params[1]
	case t.Base == typesystem.BaseString:
		w.unify(w.env.Int, it, idx)
		return w.env.String
	case t.Base == typesystem.BaseTuple:
		if idx.Kind != ast.IntLit {
			w.errorf(diagnostics.ErrInvalidOperand, idx, "tuple index must be an integer literal")
			return w.env.Error
		}
		i, err := strconv.Atoi(idx.Value)
		if err != nil || i < 0 || i >= len(t.Params) {
			w.errorf(diagnostics.ErrInvalidOperand, idx, "tuple index %s out of range for %s", idx.Value, w.env.TypeString(ct))
			return w.env.Error
		}
		return t.Params[i]
	}
	w.errorf(diagnostics.ErrInvalidOperand, n, "cannot index %s", w.env.TypeString(ct))
	return w.env.Error
}
