package typesystem

import (
	"fmt"
	"sort"
	"sync"
)

// LiteralModifier types a literal written with a suffix, e.g. 10s or 4kb.
// Scale converts the literal's integer text to the base unit of the type
// (microseconds for durations, bytes for sizes).
type LiteralModifier struct {
	Name  string
	Base  BaseType
	Scale int64
}

// Registry holds the per-session tables that map source spellings to
// types: type names used in annotations and literal modifiers. One Registry
// is created per compilation and passed to whoever needs it.
type Registry struct {
	mu        sync.RWMutex
	typeNames map[string]BaseType
	modifiers map[string]LiteralModifier
}

// NewRegistry returns a registry populated with the built-in names.
func NewRegistry() *Registry {
	r := &Registry{
		typeNames: map[string]BaseType{
			"void":     BaseVoid,
			"bool":     BaseBool,
			"int":      BaseInt,
			"float":    BaseFloat,
			"string":   BaseString,
			"duration": BaseDuration,
			"size":     BaseSize,
			"list":     BaseList,
			"dict":     BaseDict,
			"tuple":    BaseTuple,
			"func":     BaseFunc,
		},
		modifiers: make(map[string]LiteralModifier),
	}
	for _, m := range defaultModifiers {
		r.modifiers[m.Name] = m
	}
	return r
}

var defaultModifiers = []LiteralModifier{
	{Name: "us", Base: BaseDuration, Scale: 1},
	{Name: "ms", Base: BaseDuration, Scale: 1000},
	{Name: "s", Base: BaseDuration, Scale: 1000 * 1000},
	{Name: "min", Base: BaseDuration, Scale: 60 * 1000 * 1000},
	{Name: "h", Base: BaseDuration, Scale: 60 * 60 * 1000 * 1000},
	{Name: "d", Base: BaseDuration, Scale: 24 * 60 * 60 * 1000 * 1000},
	{Name: "b", Base: BaseSize, Scale: 1},
	{Name: "kb", Base: BaseSize, Scale: 1000},
	{Name: "kib", Base: BaseSize, Scale: 1024},
	{Name: "mb", Base: BaseSize, Scale: 1000 * 1000},
	{Name: "mib", Base: BaseSize, Scale: 1024 * 1024},
	{Name: "gb", Base: BaseSize, Scale: 1000 * 1000 * 1000},
	{Name: "gib", Base: BaseSize, Scale: 1024 * 1024 * 1024},
}

// TypeName maps an annotation name to its base type.
func (r *Registry) TypeName(name string) (BaseType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.typeNames[name]
	return b, ok
}

// Modifier looks up a literal modifier.
func (r *Registry) Modifier(name string) (LiteralModifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modifiers[name]
	return m, ok
}

// RegisterModifier adds a literal modifier. Redefining an existing one is
// an error.
func (r *Registry) RegisterModifier(m LiteralModifier) error {
	if m.Name == "" || m.Scale <= 0 {
		return fmt.Errorf("invalid literal modifier %+v", m)
	}
	if k := m.Base.Kind(); k != KindPrimitive {
		return fmt.Errorf("literal modifier %q must produce a primitive type, got %s", m.Name, m.Base)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modifiers[m.Name]; exists {
		return fmt.Errorf("literal modifier %q already registered", m.Name)
	}
	r.modifiers[m.Name] = m
	return nil
}

// Modifiers lists registered modifier names in sorted order.
func (r *Registry) Modifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modifiers))
	for n := range r.modifiers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TypeOf returns the Env type for a primitive base.
func (e *Env) TypeOf(base BaseType) TypeRef {
	switch base {
	case BaseVoid:
		return e.Void
	case BaseBool:
		return e.Bool
	case BaseInt:
		return e.Int
	case BaseFloat:
		return e.Float
	case BaseString:
		return e.String
	case BaseDuration:
		return e.Duration
	case BaseSize:
		return e.Size
	}
	return e.Error
}
