package vm

import (
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/typesystem"
)

// LiteralValue converts a literal node to a constant. A literal modifier
// scales the number and retypes it through the registry.
func LiteralValue(n *ast.Node, reg *typesystem.Registry) (Value, error) {
	switch n.Kind {
	case ast.BoolLit:
		return BoolVal(n.Value == "true"), nil
	case ast.StringLit:
		return StringVal(n.Value), nil
	case ast.IntLit, ast.FloatLit:
		if n.Modifier != "" {
			return modifiedValue(n, reg)
		}
		if n.Kind == ast.FloatLit {
			f, err := strconv.ParseFloat(n.Value, 64)
			if err != nil {
				return Value{}, errors.Wrapf(err, "float literal %q", n.Value)
			}
			return FloatVal(f), nil
		}
		i, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return Value{}, errors.Wrapf(err, "int literal %q", n.Value)
		}
		return IntVal(i), nil
	}
	return Value{}, errors.Errorf("%s is not a scalar literal", n.Kind)
}

func modifiedValue(n *ast.Node, reg *typesystem.Registry) (Value, error) {
	m, ok := reg.Modifier(n.Modifier)
	if !ok {
		return Value{}, errors.Errorf("unknown literal modifier %q", n.Modifier)
	}
	f, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return Value{}, errors.Wrapf(err, "literal %q", n.Value+n.Modifier)
	}
	scaled := f * float64(m.Scale)
	if scaled >= math.MaxInt64 || scaled < math.MinInt64 {
		return Value{}, errors.Errorf("literal %s%s overflows", n.Value, n.Modifier)
	}
	switch m.Base {
	case typesystem.BaseDuration:
		return DurationVal(int64(scaled)), nil
	case typesystem.BaseSize:
		return SizeVal(int64(scaled)), nil
	case typesystem.BaseFloat:
		return FloatVal(scaled), nil
	case typesystem.BaseInt:
		return IntVal(int64(scaled)), nil
	}
	return Value{}, errors.Errorf("modifier %q produces %s, which has no constant form", m.Name, m.Base)
}

// FoldUnary evaluates a unary operator on a constant.
func FoldUnary(op string, v Value) (Value, error) {
	switch op {
	case "-":
		switch {
		case v.IsIntegral():
			return Value{Type: v.Type, Data: uint64(-v.AsInt())}, nil
		case v.Type == ValFloat:
			return FloatVal(-v.AsFloat()), nil
		}
	case "!", "not":
		if v.Type == ValBool {
			return BoolVal(!v.AsBool()), nil
		}
	}
	return Value{}, errors.Errorf("operator %s does not apply to %s", op, v.Type)
}

// FoldBinary evaluates a binary operator on two constants of one type.
func FoldBinary(op string, a, b Value) (Value, error) {
	if a.Type != b.Type {
		return Value{}, errors.Errorf("operands of %s have different types %s and %s", op, a.Type, b.Type)
	}
	switch op {
	case "==":
		return BoolVal(a.Equal(b)), nil
	case "!=":
		return BoolVal(!a.Equal(b)), nil
	case "<", "<=", ">", ">=":
		c, err := compare(a, b)
		if err != nil {
			return Value{}, err
		}
		switch op {
		case "<":
			return BoolVal(c < 0), nil
		case "<=":
			return BoolVal(c <= 0), nil
		case ">":
			return BoolVal(c > 0), nil
		}
		return BoolVal(c >= 0), nil
	case "and", "or":
		if a.Type != ValBool {
			break
		}
		if op == "and" {
			return BoolVal(a.AsBool() && b.AsBool()), nil
		}
		return BoolVal(a.AsBool() || b.AsBool()), nil
	}

	switch {
	case a.IsIntegral():
		x, y := a.AsInt(), b.AsInt()
		var r int64
		switch op {
		case "+":
			r = x + y
		case "-":
			r = x - y
		case "*":
			r = x * y
		case "/", "%":
			if y == 0 {
				return Value{}, errors.New("division by zero in constant expression")
			}
			if op == "/" {
				r = x / y
			} else {
				r = x % y
			}
		default:
			return Value{}, errors.Errorf("operator %s does not apply to %s", op, a.Type)
		}
		return Value{Type: a.Type, Data: uint64(r)}, nil
	case a.Type == ValFloat:
		x, y := a.AsFloat(), b.AsFloat()
		switch op {
		case "+":
			return FloatVal(x + y), nil
		case "-":
			return FloatVal(x - y), nil
		case "*":
			return FloatVal(x * y), nil
		case "/":
			return FloatVal(x / y), nil
		}
	case a.Type == ValString && op == "+":
		return StringVal(a.Str + b.Str), nil
	}
	return Value{}, errors.Errorf("operator %s does not apply to %s", op, a.Type)
}

func compare(a, b Value) (int, error) {
	switch {
	case a.IsIntegral():
		x, y := a.AsInt(), b.AsInt()
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	case a.Type == ValFloat:
		x, y := a.AsFloat(), b.AsFloat()
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	case a.Type == ValString:
		switch {
		case a.Str < b.Str:
			return -1, nil
		case a.Str > b.Str:
			return 1, nil
		}
		return 0, nil
	}
	return 0, errors.Errorf("%s values are not ordered", a.Type)
}

// Evaluate folds an expression tree. lookup supplies the constant value of
// identifiers; it reports false for names that are not constant.
func Evaluate(n *ast.Node, reg *typesystem.Registry, lookup func(*ast.Node) (Value, bool)) (Value, error) {
	if n == nil {
		return Value{}, errors.New("missing operand")
	}
	switch n.Kind {
	case ast.IntLit, ast.FloatLit, ast.StringLit, ast.BoolLit:
		return LiteralValue(n, reg)
	case ast.Ident, ast.AttrRef:
		if v, ok := lookup(n); ok {
			return v, nil
		}
		return Value{}, errors.Errorf("%s is not constant", n.Value)
	case ast.Unary:
		v, err := Evaluate(n.Child(0), reg, lookup)
		if err != nil {
			return Value{}, err
		}
		return FoldUnary(n.Value, v)
	case ast.Binary:
		a, err := Evaluate(n.Child(0), reg, lookup)
		if err != nil {
			return Value{}, err
		}
		b, err := Evaluate(n.Child(1), reg, lookup)
		if err != nil {
			return Value{}, err
		}
		return FoldBinary(n.Value, a, b)
	}
	return Value{}, errors.Errorf("%s is not a constant expression", n.Kind)
}
