// Package cfg builds per-function control-flow graphs from the parse tree
// and runs reachability and definite-assignment analysis over them.
package cfg

import (
	"fmt"

	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/symbols"
)

// Node is one program point. The concrete types are BlockEntrance,
// BlockExit, Branch, Use, Def, Call and Jump; consumers switch over them
// exhaustively and panic on anything else.
type Node interface {
	Base() *NodeBase
	cfgNode()
}

// NodeBase holds the fields shared by every node kind.
type NodeBase struct {
	ID     int
	Origin *ast.Node
	Preds  []Node
	Succs  []Node

	// Filled by Analyze.
	Reached       bool
	Dead          bool
	In            LiveMap
	Out           LiveMap
	UseWithoutDef bool
}

func (b *NodeBase) Base() *NodeBase { return b }
func (*NodeBase) cfgNode()          {}

// BlockEntrance starts a body, a loop head or a dead region.
type BlockEntrance struct {
	NodeBase
}

// BlockExit ends a body or joins the arms of a branch.
type BlockExit struct {
	NodeBase
}

// Branch selects one of Targets. NextToProcess is the traversal cursor
// used by Order.
type Branch struct {
	NodeBase
	Targets       []Node
	NumBranches   int
	NextToProcess int
	Merge         *BlockExit
}

// Use reads Sym.
type Use struct {
	NodeBase
	Sym *symbols.Symbol
}

// Def assigns Sym from an expression reading Deps.
type Def struct {
	NodeBase
	Sym     *symbols.Symbol
	Deps    []*symbols.Symbol
	Value   *ast.Node // right-hand side, nil for loop steps
	ConstID uint32    // constant pool id once folded
}

// Call invokes Callee, which is nil for builtins without a symbol.
type Call struct {
	NodeBase
	Callee *symbols.Symbol
}

type JumpKind int

const (
	JumpBreak JumpKind = iota
	JumpContinue
	JumpReturn
)

func (k JumpKind) String() string {
	switch k {
	case JumpBreak:
		return "break"
	case JumpContinue:
		return "continue"
	}
	return "return"
}

// Jump transfers control to Target. DeadCode lists the statements that
// structurally follow the jump and therefore can never run.
type Jump struct {
	NodeBase
	Kind     JumpKind
	Target   Node
	DeadCode []*ast.Node
}

// KindName names the variant of n.
func KindName(n Node) string {
	switch n.(type) {
	case *BlockEntrance:
		return "entrance"
	case *BlockExit:
		return "exit"
	case *Branch:
		return "branch"
	case *Use:
		return "use"
	case *Def:
		return "def"
	case *Call:
		return "call"
	case *Jump:
		return "jump"
	default:
		panic(fmt.Sprintf("cfg: unknown node type %T", n))
	}
}

// String renders a node for debugging and dumps.
func String(n Node) string {
	b := n.Base()
	switch v := n.(type) {
	case *BlockEntrance, *BlockExit:
		return fmt.Sprintf("#%d %s", b.ID, KindName(n))
	case *Branch:
		return fmt.Sprintf("#%d branch/%d", b.ID, v.NumBranches)
	case *Use:
		return fmt.Sprintf("#%d use %s", b.ID, v.Sym.Name)
	case *Def:
		return fmt.Sprintf("#%d def %s", b.ID, v.Sym.Name)
	case *Call:
		if v.Callee == nil {
			return fmt.Sprintf("#%d call", b.ID)
		}
		return fmt.Sprintf("#%d call %s", b.ID, v.Callee.Name)
	case *Jump:
		return fmt.Sprintf("#%d %s", b.ID, v.Kind)
	default:
		panic(fmt.Sprintf("cfg: unknown node type %T", n))
	}
}

// Graph is the flow graph of one function or one module top level.
type Graph struct {
	Name  string
	Entry *BlockEntrance
	Exit  *BlockExit
	Nodes []Node
	Decl  *ast.Node // function declaration, nil for a module body

	tracked map[*symbols.Symbol]bool
	foreign map[*symbols.Symbol]bool // tracked symbols assigned in other graphs
}

// Tracked reports whether definite assignment is checked for sym.
func (g *Graph) Tracked(sym *symbols.Symbol) bool { return g.tracked[sym] }

// Defs returns the Def nodes in construction order.
func (g *Graph) Defs() []*Def {
	var out []*Def
	for _, n := range g.Nodes {
		if d, ok := n.(*Def); ok {
			out = append(out, d)
		}
	}
	return out
}

// DefAt returns the Def node created for the statement origin, if any.
func (g *Graph) DefAt(origin *ast.Node) *Def {
	for _, n := range g.Nodes {
		if d, ok := n.(*Def); ok && d.Origin == origin && d.Value != nil {
			return d
		}
	}
	return nil
}

func link(from, to Node) {
	if from == nil || to == nil {
		return
	}
	fb, tb := from.Base(), to.Base()
	fb.Succs = append(fb.Succs, to)
	tb.Preds = append(tb.Preds, from)
}
