// Package regalloc - Graph coloring register allocation
// Design: Kempe-style simplify/select, no spilling
package regalloc

import (
	"sort"

	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/ir"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/liveness"
)

// NodeState tracks a node through one coloring attempt
type NodeState int

const (
	Unvisited NodeState = iota
	Simplified
	Colored
)

// InterferenceGraph represents variable interference
type InterferenceGraph struct {
	nodes map[string]*IGNode
}

// IGNode represents a node in the interference graph
type IGNode struct {
	name      string
	neighbors map[string]bool
	color     int // register color (-1 if uncolored)
	state     NodeState
}

// BuildGraph derives the interference graph of m from its liveness sets.
// Parameters are pinned to their slots and never enter the graph.
//
// For every instruction n, each variable of in[n] interferes with each
// variable of use[n] ∪ out[n], and each variable of def[n] with each
// variable of out[n].
func BuildGraph(m *ir.Method, live *liveness.Result) *InterferenceGraph {
	ig := newInterferenceGraph()
	vertex := func(name string) bool { return !m.IsParam(name) }

	for i := range m.Insts {
		for v := range live.Def[i] {
			if vertex(v) {
				ig.addNode(v)
			}
		}
		for v := range live.Use[i] {
			if vertex(v) {
				ig.addNode(v)
			}
		}
	}

	for i := range m.Insts {
		for a := range live.In[i] {
			if !vertex(a) {
				continue
			}
			for b := range live.Use[i] {
				if vertex(b) {
					ig.addEdge(a, b)
				}
			}
			for b := range live.Out[i] {
				if vertex(b) {
					ig.addEdge(a, b)
				}
			}
		}
		for d := range live.Def[i] {
			if !vertex(d) {
				continue
			}
			for b := range live.Out[i] {
				if vertex(b) {
					ig.addEdge(d, b)
				}
			}
		}
	}
	return ig
}

func newInterferenceGraph() *InterferenceGraph {
	return &InterferenceGraph{nodes: make(map[string]*IGNode)}
}

func (ig *InterferenceGraph) addNode(name string) {
	if _, exists := ig.nodes[name]; !exists {
		ig.nodes[name] = &IGNode{
			name:      name,
			neighbors: make(map[string]bool),
			color:     -1,
		}
	}
}

func (ig *InterferenceGraph) addEdge(a, b string) {
	if a == b {
		return
	}
	ig.addNode(a)
	ig.addNode(b)
	ig.nodes[a].neighbors[b] = true
	ig.nodes[b].neighbors[a] = true
}

// Interferes reports whether a and b are joined by an edge
func (ig *InterferenceGraph) Interferes(a, b string) bool {
	n, ok := ig.nodes[a]
	return ok && n.neighbors[b]
}

// Nodes returns the vertex names in lexical order
func (ig *InterferenceGraph) Nodes() []string {
	names := make([]string, 0, len(ig.nodes))
	for name := range ig.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Neighbors returns the names interfering with name, in lexical order
func (ig *InterferenceGraph) Neighbors(name string) []string {
	n, ok := ig.nodes[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(n.neighbors))
	for nb := range n.neighbors {
		out = append(out, nb)
	}
	sort.Strings(out)
	return out
}

func (ig *InterferenceGraph) Degree(name string) int {
	if n, ok := ig.nodes[name]; ok {
		return len(n.neighbors)
	}
	return 0
}

func (ig *InterferenceGraph) EdgeCount() int {
	count := 0
	for _, n := range ig.nodes {
		count += len(n.neighbors)
	}
	return count / 2 // each edge counted twice
}

// State returns the state a node reached in the last coloring attempt
func (ig *InterferenceGraph) State(name string) NodeState {
	if n, ok := ig.nodes[name]; ok {
		return n.state
	}
	return Unvisited
}

// Color assigns each vertex a color in [0, k). On failure the error is an
// *InfeasibleError carrying k.
func (ig *InterferenceGraph) Color(k int) (map[string]int, error) {
	stack, ok := ig.simplify(k)
	if !ok {
		return nil, &InfeasibleError{K: k}
	}
	return ig.selectColors(stack), nil
}

// MinColors returns the smallest k for which Color succeeds
func (ig *InterferenceGraph) MinColors() int {
	for k := 0; ; k++ {
		if _, ok := ig.simplify(k); ok {
			return k
		}
	}
}

// simplify repeatedly removes a node with fewer than k remaining neighbors.
// It fails when nodes remain and none qualifies.
func (ig *InterferenceGraph) simplify(k int) ([]string, bool) {
	names := ig.Nodes()
	degree := make(map[string]int, len(names))
	for _, name := range names {
		node := ig.nodes[name]
		node.state = Unvisited
		node.color = -1
		degree[name] = len(node.neighbors)
	}

	stack := make([]string, 0, len(names))
	for len(stack) < len(names) {
		var picked *IGNode
		for _, name := range names {
			node := ig.nodes[name]
			if node.state == Unvisited && degree[name] < k {
				picked = node
				break
			}
		}
		if picked == nil {
			return stack, false
		}
		picked.state = Simplified
		stack = append(stack, picked.name)
		for neighbor := range picked.neighbors {
			if ig.nodes[neighbor].state == Unvisited {
				degree[neighbor]--
			}
		}
	}
	return stack, true
}

// selectColors pops the stack, giving each node the lowest color no colored
// neighbor holds
func (ig *InterferenceGraph) selectColors(stack []string) map[string]int {
	colors := make(map[string]int, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		node := ig.nodes[stack[i]]
		used := make(map[int]bool)
		for neighbor := range node.neighbors {
			if n := ig.nodes[neighbor]; n.state == Colored {
				used[n.color] = true
			}
		}
		color := 0
		for used[color] {
			color++
		}
		node.color = color
		node.state = Colored
		colors[node.name] = color
	}
	return colors
}
