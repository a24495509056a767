package cfg

import (
	"fmt"
	"sort"

	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/symbols"
)

// Reaching is the set of definitions of one symbol that may reach a
// program point. Undef is set when some path from entry carries no
// definition at all. Opaque is set when a call on some path may have run
// a definition that lives outside this graph.
type Reaching struct {
	Defs   []*Def // sorted by node ID
	Undef  bool
	Opaque bool
}

// Single returns the only reaching definition, or nil.
func (r Reaching) Single() *Def {
	if r.Undef || r.Opaque || len(r.Defs) != 1 {
		return nil
	}
	return r.Defs[0]
}

func (r Reaching) equal(o Reaching) bool {
	if r.Undef != o.Undef || r.Opaque != o.Opaque || len(r.Defs) != len(o.Defs) {
		return false
	}
	for i := range r.Defs {
		if r.Defs[i] != o.Defs[i] {
			return false
		}
	}
	return true
}

func (r Reaching) merge(o Reaching) Reaching {
	out := Reaching{Undef: r.Undef || o.Undef, Opaque: r.Opaque || o.Opaque}
	i, j := 0, 0
	for i < len(r.Defs) || j < len(o.Defs) {
		switch {
		case j == len(o.Defs) || (i < len(r.Defs) && r.Defs[i].ID < o.Defs[j].ID):
			out.Defs = append(out.Defs, r.Defs[i])
			i++
		case i == len(r.Defs) || o.Defs[j].ID < r.Defs[i].ID:
			out.Defs = append(out.Defs, o.Defs[j])
			j++
		default:
			out.Defs = append(out.Defs, r.Defs[i])
			i++
			j++
		}
	}
	return out
}

// LiveMap maps each tracked symbol to the definitions reaching a point.
type LiveMap map[*symbols.Symbol]Reaching

func (m LiveMap) equal(o LiveMap) bool {
	if len(m) != len(o) {
		return false
	}
	for s, r := range m {
		or, ok := o[s]
		if !ok || !r.equal(or) {
			return false
		}
	}
	return true
}

func (m LiveMap) clone() LiveMap {
	out := make(LiveMap, len(m))
	for s, r := range m {
		out[s] = r
	}
	return out
}

// Analyze runs reachability and reaching-definition propagation to a fixed
// point starting at Entry, then flags uses that some path reaches without
// a definition and marks every unreached node dead.
func (g *Graph) Analyze() {
	for _, n := range g.Nodes {
		b := n.Base()
		b.Reached, b.Dead, b.UseWithoutDef = false, false, false
		b.In, b.Out = nil, nil
	}

	g.foreign = g.foreignDefs()

	start := make(LiveMap, len(g.tracked))
	for s := range g.tracked {
		start[s] = Reaching{Undef: true}
	}
	entry := g.Entry.Base()
	entry.In = start
	entry.Reached = true

	work := []Node{g.Entry}
	queued := map[Node]bool{g.Entry: true}
	for len(work) > 0 {
		n := work[0]
		work = work[1:]
		queued[n] = false
		b := n.Base()

		out := g.transfer(n, b.In)
		if b.Out != nil && out.equal(b.Out) {
			continue
		}
		b.Out = out
		for _, s := range b.Succs {
			sb := s.Base()
			in := joinPreds(s)
			if sb.Reached && in.equal(sb.In) {
				continue
			}
			sb.In = in
			sb.Reached = true
			if !queued[s] {
				queued[s] = true
				work = append(work, s)
			}
		}
	}

	for _, n := range g.Nodes {
		b := n.Base()
		if !b.Reached {
			b.Dead = true
			continue
		}
		if u, ok := n.(*Use); ok {
			if r, tracked := b.In[u.Sym]; tracked && r.Undef {
				b.UseWithoutDef = true
			}
		}
	}
}

// foreignDefs returns the tracked symbols that are also assigned outside
// this graph, for instance a module static written by a function.
func (g *Graph) foreignDefs() map[*symbols.Symbol]bool {
	local := make(map[*ast.Node]bool)
	for _, n := range g.Nodes {
		if d, ok := n.(*Def); ok {
			local[d.Origin] = true
		}
	}
	out := make(map[*symbols.Symbol]bool)
	for s := range g.tracked {
		for _, def := range s.Defs {
			if !local[def] {
				out[s] = true
				break
			}
		}
	}
	return out
}

func (g *Graph) transfer(n Node, in LiveMap) LiveMap {
	switch v := n.(type) {
	case *Def:
		if _, tracked := in[v.Sym]; !tracked {
			return in
		}
		out := in.clone()
		out[v.Sym] = Reaching{Defs: []*Def{v}}
		return out
	case *Call:
		if len(g.foreign) == 0 || (v.Callee != nil && v.Callee.Kind == symbols.ExternFuncSymbol) {
			return in
		}
		out := in.clone()
		for s := range g.foreign {
			if r, tracked := out[s]; tracked {
				r.Opaque = true
				out[s] = r
			}
		}
		return out
	case *BlockEntrance, *BlockExit, *Branch, *Use, *Jump:
		return in
	default:
		panic(fmt.Sprintf("cfg: unknown node type %T", n))
	}
}

func joinPreds(n Node) LiveMap {
	var in LiveMap
	for _, p := range n.Base().Preds {
		pb := p.Base()
		if !pb.Reached || pb.Out == nil {
			continue
		}
		if in == nil {
			in = pb.Out.clone()
			continue
		}
		for s, r := range pb.Out {
			in[s] = in[s].merge(r)
		}
	}
	if in == nil {
		in = LiveMap{}
	}
	return in
}

// FindingKind classifies a flow problem.
type FindingKind int

const (
	FindingUseWithoutDef FindingKind = iota
	FindingUnreachable
)

// Finding is a flow problem attached to a parse tree node.
type Finding struct {
	Kind FindingKind
	Node *ast.Node
	Sym  *symbols.Symbol // use-without-def only
}

// Findings reports flagged uses and, for every reached jump, the first
// statement of the dead code that follows it. Analyze must run first.
func (g *Graph) Findings() []Finding {
	var out []Finding
	for _, n := range g.Nodes {
		b := n.Base()
		switch v := n.(type) {
		case *Use:
			if b.UseWithoutDef {
				out = append(out, Finding{Kind: FindingUseWithoutDef, Node: b.Origin, Sym: v.Sym})
			}
		case *Jump:
			if b.Reached && len(v.DeadCode) > 0 {
				out = append(out, Finding{Kind: FindingUnreachable, Node: v.DeadCode[0]})
			}
		case *BlockEntrance, *BlockExit, *Branch, *Def, *Call:
		default:
			panic(fmt.Sprintf("cfg: unknown node type %T", n))
		}
	}
	return out
}

// Order returns the reachable nodes in reverse postorder from Entry.
func (g *Graph) Order() []Node {
	for _, n := range g.Nodes {
		if br, ok := n.(*Branch); ok {
			br.NextToProcess = 0
		}
	}
	visited := make(map[Node]bool, len(g.Nodes))
	var post []Node
	stack := []Node{g.Entry}
	visited[g.Entry] = true
	single := make(map[Node]bool)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		next := nextSucc(n, single)
		if next == nil {
			post = append(post, n)
			stack = stack[:len(stack)-1]
			continue
		}
		if !visited[next] {
			visited[next] = true
			stack = append(stack, next)
		}
	}
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// nextSucc advances the traversal cursor of n. Branch nodes keep the cursor
// in NextToProcess; other nodes have at most one successor, recorded in
// done once visited.
func nextSucc(n Node, done map[Node]bool) Node {
	switch v := n.(type) {
	case *Branch:
		if v.NextToProcess >= len(v.Succs) {
			return nil
		}
		s := v.Succs[v.NextToProcess]
		v.NextToProcess++
		return s
	case *BlockEntrance, *BlockExit, *Use, *Def, *Call, *Jump:
		succs := n.Base().Succs
		if done[n] || len(succs) == 0 {
			return nil
		}
		done[n] = true
		return succs[0]
	default:
		panic(fmt.Sprintf("cfg: unknown node type %T", n))
	}
}

// SortedTracked lists tracked symbols by name.
func (g *Graph) SortedTracked() []*symbols.Symbol {
	out := make([]*symbols.Symbol, 0, len(g.tracked))
	for s := range g.tracked {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
