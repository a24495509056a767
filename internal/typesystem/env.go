package typesystem

import (
	"fmt"
	"strings"
	"sync"

	"github.com/funvibe/c4c/internal/ast"
)

// Env owns every type node of a compilation session. Nodes are appended to
// a table indexed by TypeRef; only a variable's own alias pointer (and its
// lock flag) is ever mutated after allocation.
//
// All exported methods are safe for concurrent use.
type Env struct {
	mu    sync.Mutex
	nodes []*Type
	canon map[string]TypeRef

	Error    TypeRef
	Void     TypeRef
	Bool     TypeRef
	Int      TypeRef
	Float    TypeRef
	String   TypeRef
	Duration TypeRef
	Size     TypeRef
}

// NewEnv creates an environment with the primitive types preallocated.
func NewEnv() *Env {
	e := &Env{
		nodes: []*Type{nil}, // index 0 is NoType
		canon: make(map[string]TypeRef),
	}
	e.Error = e.concrete(BaseError, nil)
	e.nodes[e.Error.index()].Flags |= FlagError | FlagLocked
	e.Void = e.concrete(BaseVoid, nil)
	e.Bool = e.concrete(BaseBool, nil)
	e.Int = e.concrete(BaseInt, nil)
	e.Float = e.concrete(BaseFloat, nil)
	e.String = e.concrete(BaseString, nil)
	e.Duration = e.concrete(BaseDuration, nil)
	e.Size = e.concrete(BaseSize, nil)
	return e
}

// Len returns the number of allocated nodes.
func (e *Env) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.nodes) - 1
}

// NewVar allocates a fresh unbound type variable.
func (e *Env) NewVar() TypeRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.newVar("")
}

func (e *Env) newVar(name string) TypeRef {
	id := TypeRef(len(e.nodes)) | VarBit
	t := &Type{ID: id, Kind: KindVariable, Base: BaseNone, Name: name}
	if name != "" {
		t.Flags |= FlagGeneric
	}
	e.nodes = append(e.nodes, t)
	return id
}

// NewConcrete returns the canonical node for base applied to params.
// It panics if the parameter count does not fit base; callers building
// types from user input validate arity first (see FromExpr).
func (e *Env) NewConcrete(base BaseType, params ...TypeRef) TypeRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.concrete(base, params)
}

func (e *Env) concrete(base BaseType, params []TypeRef) TypeRef {
	if err := checkArity(base, len(params)); err != nil {
		panic(err)
	}
	resolved := make([]TypeRef, len(params))
	var key strings.Builder
	fmt.Fprintf(&key, "%d", base)
	for i, p := range params {
		resolved[i] = e.resolve(p)
		fmt.Fprintf(&key, ",%d", uint64(resolved[i]))
	}
	if ref, ok := e.canon[key.String()]; ok {
		return ref
	}
	ref := TypeRef(len(e.nodes))
	e.nodes = append(e.nodes, &Type{ID: ref, Kind: base.Kind(), Base: base, Params: resolved})
	e.canon[key.String()] = ref
	return ref
}

func checkArity(base BaseType, n int) error {
	switch base {
	case BaseNone:
		return fmt.Errorf("type variables are allocated with NewVar")
	case BaseList, BaseDict:
		if n != base.Arity() {
			return fmt.Errorf("%s takes %d type parameters, got %d", base, base.Arity(), n)
		}
	case BaseTuple:
		if n == 0 {
			return fmt.Errorf("tuple needs at least one element type")
		}
	case BaseFunc:
		if n == 0 {
			return fmt.Errorf("function type needs a return type")
		}
	default:
		if n != 0 {
			return fmt.Errorf("%s takes no type parameters, got %d", base, n)
		}
	}
	return nil
}

// List returns list[elem].
func (e *Env) List(elem TypeRef) TypeRef { return e.NewConcrete(BaseList, elem) }

// Dict returns dict[key, value].
func (e *Env) Dict(key, value TypeRef) TypeRef { return e.NewConcrete(BaseDict, key, value) }

// Tuple returns tuple[elems...].
func (e *Env) Tuple(elems ...TypeRef) TypeRef { return e.NewConcrete(BaseTuple, elems...) }

// Func returns func(params...) -> ret.
func (e *Env) Func(params []TypeRef, ret TypeRef) TypeRef {
	all := make([]TypeRef, 0, len(params)+1)
	all = append(all, params...)
	all = append(all, ret)
	return e.NewConcrete(BaseFunc, all...)
}

// Node returns the node stored under ref without following aliases.
func (e *Env) Node(ref TypeRef) *Type {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.node(ref)
}

func (e *Env) node(ref TypeRef) *Type {
	i := ref.index()
	if ref == NoType || i >= len(e.nodes) {
		return nil
	}
	return e.nodes[i]
}

// Lookup resolves ref and returns the terminal node.
func (e *Env) Lookup(ref TypeRef) *Type {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.node(e.resolve(ref))
}

// Resolve follows alias hops until it reaches an unbound variable or a
// concrete node. Chains longer than one hop are compressed.
func (e *Env) Resolve(ref TypeRef) TypeRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolve(ref)
}

func (e *Env) resolve(ref TypeRef) TypeRef {
	root := ref
	for {
		n := e.node(root)
		if n == nil || n.Kind != KindVariable || n.link == NoType {
			break
		}
		root = n.link
	}
	for ref != root {
		n := e.node(ref)
		next := n.link
		n.link = root
		ref = next
	}
	return root
}

// IsConcrete reports whether ref resolves to a non-variable node.
func (e *Env) IsConcrete(ref TypeRef) bool {
	t := e.Lookup(ref)
	return t != nil && t.Kind != KindVariable
}

// IsError reports whether ref resolves to the error type.
func (e *Env) IsError(ref TypeRef) bool {
	t := e.Lookup(ref)
	return t != nil && t.IsError()
}

// FullyResolved reports whether no unbound variable is reachable from ref.
func (e *Env) FullyResolved(ref TypeRef) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fullyResolved(ref)
}

func (e *Env) fullyResolved(ref TypeRef) bool {
	t := e.node(e.resolve(ref))
	if t == nil || t.Kind == KindVariable {
		return false
	}
	for _, p := range t.Params {
		if !e.fullyResolved(p) {
			return false
		}
	}
	return true
}

// Lock marks every variable reachable from ref as immutable. Locked
// variables that are still unbound refuse any later binding.
func (e *Env) Lock(ref TypeRef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lock(ref)
}

func (e *Env) lock(ref TypeRef) {
	for r := ref; r != NoType; {
		n := e.node(r)
		if n == nil || n.Locked() {
			return
		}
		n.Flags |= FlagLocked
		if n.Kind == KindVariable {
			r = n.link
			continue
		}
		for _, p := range n.Params {
			e.lock(p)
		}
		return
	}
}

// Instantiate copies the structure of ref replacing every unbound generic
// variable with a fresh one. Variables that were not introduced by a user
// annotation are shared with ref.
func (e *Env) Instantiate(ref TypeRef) TypeRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instantiate(ref, make(map[TypeRef]TypeRef))
}

func (e *Env) instantiate(ref TypeRef, fresh map[TypeRef]TypeRef) TypeRef {
	r := e.resolve(ref)
	t := e.node(r)
	if t == nil {
		return r
	}
	if t.Kind == KindVariable {
		if t.Flags&FlagGeneric == 0 {
			return r
		}
		if v, ok := fresh[r]; ok {
			return v
		}
		v := e.newVar("")
		fresh[r] = v
		return v
	}
	if len(t.Params) == 0 {
		return r
	}
	params := make([]TypeRef, len(t.Params))
	changed := false
	for i, p := range t.Params {
		params[i] = e.instantiate(p, fresh)
		changed = changed || params[i] != e.resolve(p)
	}
	if !changed {
		return r
	}
	return e.concrete(t.Base, params)
}

// Equal reports structural equality of two types after resolution.
func (e *Env) Equal(a, b TypeRef) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.equal(a, b)
}

func (e *Env) equal(a, b TypeRef) bool {
	a, b = e.resolve(a), e.resolve(b)
	if a == b {
		return true
	}
	ta, tb := e.node(a), e.node(b)
	if ta == nil || tb == nil || ta.Kind == KindVariable || tb.Kind == KindVariable {
		return false
	}
	if ta.Base != tb.Base || len(ta.Params) != len(tb.Params) {
		return false
	}
	for i := range ta.Params {
		if !e.equal(ta.Params[i], tb.Params[i]) {
			return false
		}
	}
	return true
}

// TypeString renders the resolved form of ref.
func (e *Env) TypeString(ref TypeRef) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var sb strings.Builder
	e.format(&sb, ref)
	return sb.String()
}

func (e *Env) format(sb *strings.Builder, ref TypeRef) {
	t := e.node(e.resolve(ref))
	if t == nil {
		sb.WriteString("<none>")
		return
	}
	switch t.Kind {
	case KindVariable:
		if t.Name != "" {
			sb.WriteString("`" + t.Name)
		} else {
			fmt.Fprintf(sb, "`t%d", t.ID.index())
		}
	case KindError, KindPrimitive:
		sb.WriteString(t.Base.String())
	case KindFunction:
		params, ret := t.FuncParams()
		sb.WriteString("func(")
		for i, p := range params {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.format(sb, p)
		}
		sb.WriteString(") -> ")
		e.format(sb, ret)
	default:
		sb.WriteString(t.Base.String())
		sb.WriteByte('[')
		for i, p := range t.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.format(sb, p)
		}
		sb.WriteByte(']')
	}
}

// FromExpr converts a source annotation into a type. Type variables with
// the same name share one fresh variable through vars, which may be nil.
func (e *Env) FromExpr(reg *Registry, expr *ast.TypeExpr, vars map[string]TypeRef) (TypeRef, error) {
	if expr == nil {
		return e.NewVar(), nil
	}
	if vars == nil {
		vars = make(map[string]TypeRef)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fromExpr(reg, expr, vars)
}

func (e *Env) fromExpr(reg *Registry, expr *ast.TypeExpr, vars map[string]TypeRef) (TypeRef, error) {
	if expr.IsVar() {
		if v, ok := vars[expr.Var]; ok {
			return v, nil
		}
		v := e.newVar(expr.Var)
		vars[expr.Var] = v
		return v, nil
	}
	base, ok := reg.TypeName(expr.Name)
	if !ok {
		return e.Error, fmt.Errorf("unknown type name %q", expr.Name)
	}
	params := make([]TypeRef, 0, len(expr.Params)+1)
	for _, p := range expr.Params {
		ref, err := e.fromExpr(reg, p, vars)
		if err != nil {
			return e.Error, err
		}
		params = append(params, ref)
	}
	if base == BaseFunc {
		ret := e.Void
		if expr.Return != nil {
			r, err := e.fromExpr(reg, expr.Return, vars)
			if err != nil {
				return e.Error, err
			}
			ret = r
		}
		params = append(params, ret)
	}
	if err := checkArity(base, len(params)); err != nil {
		return e.Error, fmt.Errorf("in type %s: %v", expr, err)
	}
	return e.concrete(base, params), nil
}
