// Package schema derives, from field definitions, which bundles a walk
// starting at a host bundle can reach.
package schema

import "sort"

// Node is one kind/bundle pair in the traversal graph.
type Node struct {
	Key        string   // "kind:bundle"
	Kind       string
	Bundle     string
	TextFields []string // Rich-text fields scanned for embeds
	IsRoot     bool
}

// Edge is a reference from one bundle to another.
type Edge struct {
	From string
	To   string
}

// Graph holds the bundles reachable from a root bundle and the reference
// fields connecting them.
type Graph struct {
	Nodes    map[string]*Node
	Children map[string][]string // node key -> child keys (outgoing edges)
	Parents  map[string][]string // node key -> parent keys (incoming edges)
	Root     string
	fields   map[Edge][]string
}

// NodeKey builds the key of a kind/bundle pair.
func NodeKey(kind, bundle string) string {
	return kind + ":" + bundle
}

// NewGraph creates a graph holding only the root bundle.
func NewGraph(kind, bundle string) *Graph {
	root := NodeKey(kind, bundle)
	g := &Graph{
		Nodes:    make(map[string]*Node),
		Children: make(map[string][]string),
		Parents:  make(map[string][]string),
		Root:     root,
		fields:   make(map[Edge][]string),
	}
	g.Nodes[root] = &Node{Key: root, Kind: kind, Bundle: bundle, IsRoot: true}
	return g
}

// AddNode adds a bundle unless it is already present, and returns the node.
func (g *Graph) AddNode(kind, bundle string) *Node {
	key := NodeKey(kind, bundle)
	if n, ok := g.Nodes[key]; ok {
		return n
	}
	n := &Node{Key: key, Kind: kind, Bundle: bundle}
	g.Nodes[key] = n
	return n
}

// AddEdge records that field on parent references child. Several fields may
// connect the same pair; the edge itself is stored once.
func (g *Graph) AddEdge(parent, child, field string) {
	e := Edge{From: parent, To: child}
	if _, ok := g.fields[e]; !ok {
		g.Children[parent] = append(g.Children[parent], child)
		g.Parents[child] = append(g.Parents[child], parent)
	}
	g.fields[e] = append(g.fields[e], field)
}

// GetChildren returns the direct children of a node.
func (g *Graph) GetChildren(key string) []string {
	return g.Children[key]
}

// GetParents returns the direct parents of a node.
func (g *Graph) GetParents(key string) []string {
	return g.Parents[key]
}

// GetNode returns the node for key, or nil.
func (g *Graph) GetNode(key string) *Node {
	return g.Nodes[key]
}

// HasNode reports whether key is in the graph.
func (g *Graph) HasNode(key string) bool {
	_, ok := g.Nodes[key]
	return ok
}

// EdgeFields returns the reference fields on parent that point at child.
func (g *Graph) EdgeFields(parent, child string) []string {
	return g.fields[Edge{From: parent, To: child}]
}

// NodeCount returns the number of bundles in the graph.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// EdgeCount returns the number of distinct bundle-to-bundle edges.
func (g *Graph) EdgeCount() int {
	return len(g.fields)
}

// AllNodes returns every node key, sorted.
func (g *Graph) AllNodes() []string {
	keys := make([]string, 0, len(g.Nodes))
	for k := range g.Nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AllEdges returns every edge, sorted by parent then child.
func (g *Graph) AllEdges() []Edge {
	edges := make([]Edge, 0, len(g.fields))
	for e := range g.fields {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// Depths returns the shortest reference distance from the root to every
// node. The root is at depth 0.
func (g *Graph) Depths() map[string]int {
	depth := map[string]int{g.Root: 0}
	queue := []string{g.Root}
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		for _, child := range g.GetChildren(key) {
			if _, seen := depth[child]; !seen {
				depth[child] = depth[key] + 1
				queue = append(queue, child)
			}
		}
	}
	return depth
}
