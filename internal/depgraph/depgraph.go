// Package depgraph implements the task dependency graph (component L,
// §3.9, §4.8): a DAG keyed by task identity (name, args), built from
// depends/depends_post/wait_for edges, with cycle detection and reactive
// leaf-streaming for the scheduler.
//
// The DAG construction and topological layering below are adapted from the
// resource dependency graph in the teacher repo (internal/graph/dag.go),
// generalized from resource.Kind nodes to task-identity nodes and extended
// with a subscribe/remove API for incremental leaf-streaming.
package depgraph

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/rungtool/rung/internal/rerrors"
)

// NodeID uniquely identifies a task invocation by name and canonicalized args.
type NodeID string

// NewNodeID builds the identity key for a task run (§3.9: "Task identity is
// (name, args)").
func NewNodeID(name string, args []string) NodeID {
	return NodeID(fmt.Sprintf("%s %v", name, args))
}

// Node is one task invocation in the graph.
type Node struct {
	ID   NodeID
	Name string
	Args []string
}

// EdgeKind distinguishes the three dependency relations §3.9 tracks
// separately, since depends_post and wait_for affect scheduling differently
// than a plain depends edge.
type EdgeKind int

const (
	EdgeDepends EdgeKind = iota
	EdgeDependsPost
	EdgeWaitFor
)

// Layer groups nodes with no remaining dependency between them.
type Layer struct {
	Nodes []*Node
}

// Graph is a directed acyclic graph over task invocations.
type Graph struct {
	mu sync.Mutex

	nodes    map[NodeID]*Node
	edges    map[NodeID]map[NodeID]EdgeKind // from -> to -> kind ("from depends on to")
	inDegree map[NodeID]int

	// completed tracks nodes the caller has reported done via Complete, so
	// Leaves only ever returns nodes whose dependencies have all finished.
	completed map[NodeID]bool

	subs []chan *Node // leaf subscribers, see Subscribe
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		nodes:     make(map[NodeID]*Node),
		edges:     make(map[NodeID]map[NodeID]EdgeKind),
		inDegree:  make(map[NodeID]int),
		completed: make(map[NodeID]bool),
	}
}

// AddNode registers a task invocation, returning the existing node if
// already present.
func (g *Graph) AddNode(name string, args []string) *Node {
	id := NewNodeID(name, args)
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &Node{ID: id, Name: name, Args: args}
	g.nodes[id] = n
	g.inDegree[id] = 0
	return n
}

// AddEdge records that from depends on to, via the given relation. Both
// nodes must already be registered via AddNode.
func (g *Graph) AddEdge(from, to *Node, kind EdgeKind) {
	if from == nil || to == nil {
		panic("depgraph: AddEdge called with nil node")
	}
	if g.edges[from.ID] == nil {
		g.edges[from.ID] = make(map[NodeID]EdgeKind)
	}
	if _, exists := g.edges[from.ID][to.ID]; !exists {
		g.edges[from.ID][to.ID] = kind
		g.inDegree[from.ID]++
	}
}

type nodeColor int

const (
	white nodeColor = iota
	gray
	black
)

// detectCycle returns the offending cycle as a list of task names (first and
// last equal), or nil if the graph is acyclic.
func (g *Graph) detectCycle() []string {
	color := make(map[NodeID]nodeColor, len(g.nodes))
	parent := make(map[NodeID]NodeID, len(g.nodes))

	var cycle []NodeID
	var dfs func(id NodeID) bool
	dfs = func(id NodeID) bool {
		color[id] = gray
		for dep := range g.edges[id] {
			if color[dep] == gray {
				cycle = []NodeID{dep}
				for curr := id; curr != dep; curr = parent[curr] {
					cycle = append(cycle, curr)
				}
				cycle = append(cycle, dep)
				slices.Reverse(cycle)
				return true
			}
			if color[dep] == white {
				parent[dep] = id
				if dfs(dep) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for id := range g.nodes {
		if color[id] == white {
			if dfs(id) {
				break
			}
		}
	}
	if cycle == nil {
		return nil
	}
	names := make([]string, len(cycle))
	for i, id := range cycle {
		names[i] = g.nodes[id].Name
	}
	return names
}

// Validate runs cycle detection, returning a *rerrors.DependencyError if the
// graph isn't acyclic (§4.8, §8 invariant 7: "DAG soundness").
func (g *Graph) Validate() error {
	if cycle := g.detectCycle(); cycle != nil {
		return rerrors.NewCircularDependencyError(cycle)
	}
	return nil
}

// Layers returns the full topological layering via Kahn's algorithm: nodes
// within a layer have no dependency on one another and may run concurrently.
// Layers are sorted by task name within each layer for determinism.
func (g *Graph) Layers() ([]Layer, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	inDegree := make(map[NodeID]int, len(g.inDegree))
	maps.Copy(inDegree, g.inDegree)

	reverse := make(map[NodeID][]NodeID, len(g.nodes))
	for from, deps := range g.edges {
		for dep := range deps {
			reverse[dep] = append(reverse[dep], from)
		}
	}

	var queue []NodeID
	for id, d := range inDegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}

	var layers []Layer
	for len(queue) > 0 {
		layer := Layer{Nodes: make([]*Node, 0, len(queue))}
		var next []NodeID
		for _, id := range queue {
			layer.Nodes = append(layer.Nodes, g.nodes[id])
			for _, dependent := range reverse[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		slices.SortFunc(layer.Nodes, func(a, b *Node) int {
			if a.Name != b.Name {
				if a.Name < b.Name {
					return -1
				}
				return 1
			}
			return 0
		})
		layers = append(layers, layer)
		queue = next
	}
	return layers, nil
}

// Leaves returns every node whose dependencies have all been marked
// Complete, excluding nodes that are themselves already complete. Used for
// the initial seed of the scheduler's ready queue.
func (g *Graph) Leaves() []*Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readyLocked()
}

func (g *Graph) readyLocked() []*Node {
	var out []*Node
	for id, n := range g.nodes {
		if g.completed[id] {
			continue
		}
		ready := true
		for dep := range g.edges[id] {
			if !g.completed[dep] {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b *Node) int {
		if a.Name != b.Name {
			if a.Name < b.Name {
				return -1
			}
			return 1
		}
		return 0
	})
	return out
}

// Subscribe returns a channel that receives every node as it becomes ready
// to run (its dependencies are all Complete), implementing the reactive
// leaf-streaming described in §4.8. The channel is closed once every node
// has been delivered. Callers must drain it.
func (g *Graph) Subscribe() <-chan *Node {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch := make(chan *Node, len(g.nodes)+1)
	g.subs = append(g.subs, ch)
	for _, n := range g.readyLocked() {
		ch <- n
	}
	if len(g.nodes) == len(g.completed) {
		close(ch)
	}
	return ch
}

// Complete marks a node as finished, unblocking any dependents whose other
// dependencies are also done, and pushes newly-ready nodes to subscribers.
func (g *Graph) Complete(id NodeID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.completed[id] {
		return
	}
	wasReady := map[NodeID]bool{}
	for _, n := range g.readyLocked() {
		wasReady[n.ID] = true
	}
	g.completed[id] = true

	ready := g.readyLocked()
	for _, ch := range g.subs {
		for _, n := range ready {
			if wasReady[n.ID] {
				continue // ready before this call, so subscribers already have it
			}
			select {
			case ch <- n:
			default:
			}
		}
	}
	if len(g.completed) == len(g.nodes) {
		for _, ch := range g.subs {
			close(ch)
		}
		g.subs = nil
	}
}

// Remove deletes a node entirely (used when a task is skipped rather than
// run, e.g. --continue-on-error dropping its dependents' edges).
func (g *Graph) Remove(id NodeID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.nodes, id)
	delete(g.edges, id)
	delete(g.inDegree, id)
	delete(g.completed, id)
	for from, deps := range g.edges {
		if _, ok := deps[id]; ok {
			delete(deps, id)
			g.inDegree[from]--
		}
	}
}

// NodeCount returns the number of nodes currently in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }
