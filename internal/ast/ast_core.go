// Package ast defines the parse tree consumed by the compiler core.
//
// Trees are produced by an external lexer/parser. The core only relies on
// node kinds, positions, literal payloads, optional type annotations and
// ordered children, so every construct is represented by a single Node type.
package ast

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Pos is a source location.
type Pos struct {
	File   string `yaml:"file,omitempty"`
	Line   int    `yaml:"line,omitempty"`
	Column int    `yaml:"col,omitempty"`
}

func (p Pos) String() string {
	if p.File != "" {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Node is a parse tree node.
//
// Field usage by kind:
//   - Value holds identifier names, operators, literal text, import targets
//     and dotted attribute paths.
//   - Modifier holds a literal modifier (e.g. "s" in 10s).
//   - Type holds an optional annotation (declarations, formals, function
//     return type).
type Node struct {
	Kind     NodeKind  `yaml:"kind"`
	Pos      Pos       `yaml:",inline"`
	Value    string    `yaml:"value,omitempty"`
	Modifier string    `yaml:"mod,omitempty"`
	Type     *TypeExpr `yaml:"type,omitempty"`
	Children []*Node   `yaml:"children,omitempty"`
}

// Child returns the i-th child or nil.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int {
	if n == nil {
		return 0
	}
	return len(n.Children)
}

// Path splits a dotted attribute path stored in Value.
func (n *Node) Path() []string {
	if n.Value == "" {
		return nil
	}
	return strings.Split(n.Value, ".")
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	if n.Value != "" {
		return fmt.Sprintf("%s(%s)", n.Kind, n.Value)
	}
	return n.Kind.String()
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the children of the current node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Validate reports the first nil child in the tree rooted at n, located at
// its parent.
func Validate(n *Node) error {
	if n == nil {
		return errors.New("empty parse tree")
	}
	for i, c := range n.Children {
		if c == nil {
			return errors.Errorf("%s: %s has no node at child %d", n.Pos, n.Kind, i)
		}
		if err := Validate(c); err != nil {
			return err
		}
	}
	return nil
}

// SetFile stamps file on every node position that has none.
func SetFile(n *Node, file string) {
	Walk(n, func(c *Node) bool {
		if c.Pos.File == "" {
			c.Pos.File = file
		}
		return true
	})
}
