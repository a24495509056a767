package schema

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// document is the on-disk layout of a schema file:
//
//	root:
//	  allowed: [net, user]
//	  fields:
//	    hostname: {type: string, required: true}
//	sections:
//	  net:
//	    singleton: true
//	    fields:
//	      timeout: {type: duration}
type document struct {
	Root     *Section            `yaml:"root"`
	Sections map[string]*Section `yaml:"sections"`
}

// Parse decodes a YAML schema.
func Parse(data []byte) (*Schema, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode schema")
	}
	s := New()
	if doc.Root != nil {
		doc.Root.Singleton = true
		s.Root = doc.Root
	}
	for name, sec := range doc.Sections {
		if sec == nil {
			sec = &Section{}
		}
		sec.Name = name
		s.Sections[name] = sec
	}
	for _, sec := range append([]*Section{s.Root}, s.sorted()...) {
		if sec.Fields == nil {
			sec.Fields = map[string]*Field{}
		}
		for name, f := range sec.Fields {
			if f == nil {
				return nil, errors.Errorf("schema: field %q of section %q has no definition", name, sec.Name)
			}
			f.Name = name
			if f.Type == "" {
				return nil, errors.Errorf("schema: field %q of section %q has no type", name, sec.Name)
			}
		}
		for _, child := range append(append([]string{}, sec.Allowed...), sec.Required...) {
			if _, ok := s.Sections[child]; !ok {
				return nil, errors.Errorf("schema: section %q admits unknown section %q", sec.Name, child)
			}
		}
	}
	return s, nil
}

// LoadFile reads and decodes a schema file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read schema %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "schema %s", path)
	}
	return s, nil
}

func (s *Schema) sorted() []*Section {
	names := make([]string, 0, len(s.Sections))
	for n := range s.Sections {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*Section, len(names))
	for i, n := range names {
		out[i] = s.Sections[n]
	}
	return out
}
