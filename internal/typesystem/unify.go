package typesystem

import (
	"fmt"
	"strings"
)

// UnifyErrorKind classifies unification failures.
type UnifyErrorKind int

const (
	MismatchBase  UnifyErrorKind = iota // different type constructors
	MismatchArity                       // same constructor, different parameter count
	LockedType                          // attempt to narrow a finalized variable
	InfiniteType                        // variable occurs inside the type it would be bound to
)

// UnifyError describes why two types could not be unified. Left and Right
// are rendered at the point of failure, which may be a nested parameter.
type UnifyError struct {
	Kind  UnifyErrorKind
	Left  string
	Right string
}

func (e *UnifyError) Error() string {
	switch e.Kind {
	case MismatchArity:
		return fmt.Sprintf("type parameter count mismatch: %s vs %s", e.Left, e.Right)
	case LockedType:
		return fmt.Sprintf("cannot narrow finalized type %s to %s", e.Left, e.Right)
	case InfiniteType:
		return fmt.Sprintf("infinite type: %s occurs in %s", e.Left, e.Right)
	}
	return fmt.Sprintf("cannot unify %s with %s", e.Left, e.Right)
}

// Unify merges a and b into one consistent type.
//
// On success the unified type is returned. On failure the error type is
// returned together with a *UnifyError; Unify itself never panics. If
// either side already is the error type, the error type is returned with a
// nil error so that a single root cause is reported once.
//
// Parameters of containers, tuples and functions unify invariantly and in
// positional order; function return types unify like any other parameter.
func (e *Env) Unify(a, b TypeRef) (TypeRef, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ref, err := e.unify(a, b)
	if err != nil {
		return ref, err
	}
	return ref, nil
}

func (e *Env) unify(a, b TypeRef) (TypeRef, *UnifyError) {
	a, b = e.resolve(a), e.resolve(b)
	if a == b {
		return a, nil
	}
	ta, tb := e.node(a), e.node(b)
	if ta == nil || tb == nil {
		return e.Error, &UnifyError{Kind: MismatchBase, Left: e.str(a), Right: e.str(b)}
	}
	if ta.IsError() || tb.IsError() {
		return e.Error, nil
	}

	aVar, bVar := ta.Kind == KindVariable, tb.Kind == KindVariable
	switch {
	case aVar && bVar:
		return e.linkVars(a, b)
	case aVar:
		return e.bind(a, b)
	case bVar:
		return e.bind(b, a)
	}

	if ta.Base != tb.Base {
		return e.Error, &UnifyError{Kind: MismatchBase, Left: e.str(a), Right: e.str(b)}
	}
	if len(ta.Params) != len(tb.Params) {
		return e.Error, &UnifyError{Kind: MismatchArity, Left: e.str(a), Right: e.str(b)}
	}
	for i := range ta.Params {
		if _, err := e.unify(ta.Params[i], tb.Params[i]); err != nil {
			return e.Error, err
		}
	}
	return a, nil
}

// linkVars points the newer variable at the older one. A locked variable
// never moves; the unlocked side is pointed at it instead.
func (e *Env) linkVars(a, b TypeRef) (TypeRef, *UnifyError) {
	older, newer := a, b
	if newer.index() < older.index() {
		older, newer = newer, older
	}
	no, nn := e.node(older), e.node(newer)
	switch {
	case !nn.Locked():
		nn.link = older
		return older, nil
	case !no.Locked():
		no.link = newer
		return newer, nil
	}
	return e.Error, &UnifyError{Kind: LockedType, Left: e.str(newer), Right: e.str(older)}
}

func (e *Env) bind(v, t TypeRef) (TypeRef, *UnifyError) {
	n := e.node(v)
	if n.Locked() {
		return e.Error, &UnifyError{Kind: LockedType, Left: e.str(v), Right: e.str(t)}
	}
	if e.occurs(v, t) {
		return e.Error, &UnifyError{Kind: InfiniteType, Left: e.str(v), Right: e.str(t)}
	}
	n.link = t
	return t, nil
}

func (e *Env) occurs(v, t TypeRef) bool {
	t = e.resolve(t)
	if t == v {
		return true
	}
	n := e.node(t)
	if n == nil {
		return false
	}
	for _, p := range n.Params {
		if e.occurs(v, p) {
			return true
		}
	}
	return false
}

func (e *Env) str(ref TypeRef) string {
	var sb strings.Builder
	e.format(&sb, ref)
	return sb.String()
}
