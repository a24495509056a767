// Package schema describes which configuration attributes a program may
// set: a tree of named sections, each holding typed fields and a list of
// child sections it admits.
package schema

import (
	"sort"
)

// Field is a typed attribute slot inside a section.
type Field struct {
	Name     string `yaml:"-"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required,omitempty"`
	Lock     bool   `yaml:"lock,omitempty"`
	Doc      string `yaml:"doc,omitempty"`
}

// Section describes one kind of section.
//
// A singleton section has exactly one instance, addressed by the section
// name itself (net.timeout). Other sections are instantiated by name
// (user.alice.shell).
type Section struct {
	Name            string            `yaml:"-"`
	Singleton       bool              `yaml:"singleton,omitempty"`
	AllowUserFields bool              `yaml:"user_fields,omitempty"`
	Allowed         []string          `yaml:"allowed,omitempty"`
	Required        []string          `yaml:"required,omitempty"`
	Fields          map[string]*Field `yaml:"fields,omitempty"`
}

// Admits reports whether child may appear directly under s.
func (s *Section) Admits(child string) bool {
	for _, n := range s.Allowed {
		if n == child {
			return true
		}
	}
	for _, n := range s.Required {
		if n == child {
			return true
		}
	}
	return false
}

// RequiredFields lists the names of required fields in sorted order.
func (s *Section) RequiredFields() []string {
	var out []string
	for name, f := range s.Fields {
		if f.Required {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Schema is the root section plus the map of all named section kinds.
type Schema struct {
	Root     *Section
	Sections map[string]*Section
}

// New returns an empty schema whose root admits no sections and no user
// fields.
func New() *Schema {
	return &Schema{
		Root:     &Section{Name: "", Singleton: true, Fields: map[string]*Field{}},
		Sections: map[string]*Section{},
	}
}

// AddSection registers a section kind and returns it for further setup.
func (s *Schema) AddSection(name string, singleton bool) *Section {
	sec := &Section{Name: name, Singleton: singleton, Fields: map[string]*Field{}}
	s.Sections[name] = sec
	return sec
}

// AddField adds a field to sec and returns sec.
func (sec *Section) AddField(name, typ string, required bool) *Section {
	if sec.Fields == nil {
		sec.Fields = map[string]*Field{}
	}
	sec.Fields[name] = &Field{Name: name, Type: typ, Required: required}
	return sec
}

// Allow admits child sections under sec and returns sec.
func (sec *Section) Allow(children ...string) *Section {
	sec.Allowed = append(sec.Allowed, children...)
	return sec
}

// Require admits child sections under sec as mandatory and returns sec.
func (sec *Section) Require(children ...string) *Section {
	sec.Required = append(sec.Required, children...)
	return sec
}
