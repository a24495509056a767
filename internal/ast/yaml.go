package ast

import (
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Parse trees arrive from the external parser serialized as YAML:
//
//	kind: module
//	children:
//	  - kind: assign
//	    line: 1
//	    type: int
//	    children:
//	      - {kind: ident, value: x}
//	      - kind: binary
//	        value: "+"
//	        children: [{kind: int, value: "1"}, {kind: int, value: "2"}]

func (k *NodeKind) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	kind, ok := ParseKind(name)
	if !ok {
		return fmt.Errorf("line %d: unknown node kind %q", value.Line, name)
	}
	*k = kind
	return nil
}

func (k NodeKind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// UnmarshalYAML accepts either the textual form ("list[int]") or a mapping
// with name/var/params/return keys.
func (t *TypeExpr) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		parsed, err := ParseTypeExpr(value.Value)
		if err != nil {
			return errors.Wrapf(err, "line %d", value.Line)
		}
		*t = *parsed
		return nil
	}
	var raw struct {
		Name   string      `yaml:"name"`
		Var    string      `yaml:"var"`
		Params []*TypeExpr `yaml:"params"`
		Return *TypeExpr   `yaml:"return"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Name == "" && raw.Var == "" {
		return fmt.Errorf("line %d: type needs a name or a var", value.Line)
	}
	*t = TypeExpr{Name: raw.Name, Var: raw.Var, Params: raw.Params, Return: raw.Return}
	return nil
}

func (t *TypeExpr) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// DecodeTree decodes a YAML-serialized parse tree. file is stamped on every
// node position that does not carry one.
func DecodeTree(data []byte, file string) (*Node, error) {
	var root Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrapf(err, "decoding parse tree %s", file)
	}
	if root.Kind != Module {
		return nil, errors.Errorf("%s: root node must be a module, got %s", file, root.Kind)
	}
	SetFile(&root, file)
	if err := Validate(&root); err != nil {
		return nil, errors.Wrapf(err, "decoding parse tree %s", file)
	}
	return &root, nil
}

// EncodeTree serializes a parse tree in the same format DecodeTree reads.
func EncodeTree(root *Node) ([]byte, error) {
	return yaml.Marshal(root)
}
