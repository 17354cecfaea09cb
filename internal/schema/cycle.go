package schema

import (
	"fmt"
	"sort"
	"strings"
)

// CycleInfo describes the part of the graph Kahn's algorithm could not order.
type CycleInfo struct {
	TotalNodes        int
	ProcessedNodes    int
	UnprocessedNodes  []string // In a cycle or only reachable through one
	CycleParticipants []string // Subset of UnprocessedNodes that can reach themselves
	CyclePath         []string // e.g. [A, B, A]
}

// CycleError reports bundles that can nest inside themselves. Walks over
// such schemas still terminate because each record is visited once.
type CycleError struct {
	Info *CycleInfo
}

func (e *CycleError) Error() string {
	msg := fmt.Sprintf("reference cycle in schema: %d of %d bundles are in or below a cycle",
		len(e.Info.UnprocessedNodes), e.Info.TotalNodes)

	if len(e.Info.CyclePath) > 0 {
		msg += fmt.Sprintf("\nCycle path: %s", strings.Join(e.Info.CyclePath, " -> "))
	}
	if len(e.Info.CycleParticipants) > 0 {
		msg += fmt.Sprintf("\nBundles in cycle: %s", strings.Join(e.Info.CycleParticipants, ", "))
	}
	return msg
}

// inDegrees counts incoming edges per node.
func (g *Graph) inDegrees() map[string]int {
	deg := make(map[string]int, len(g.Nodes))
	for key := range g.Nodes {
		deg[key] = 0
	}
	for _, children := range g.Children {
		for _, child := range children {
			deg[child]++
		}
	}
	return deg
}

// DetectCycles runs Kahn's algorithm and returns nil when every node could
// be ordered.
func (g *Graph) DetectCycles() *CycleInfo {
	deg := g.inDegrees()

	var queue []string
	for _, key := range g.AllNodes() {
		if deg[key] == 0 {
			queue = append(queue, key)
		}
	}

	processed := make(map[string]bool)
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		processed[key] = true

		for _, child := range g.GetChildren(key) {
			deg[child]--
			if deg[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(processed) == len(g.Nodes) {
		return nil
	}

	remaining := make(map[string]bool)
	var unprocessed []string
	for _, key := range g.AllNodes() {
		if !processed[key] {
			remaining[key] = true
			unprocessed = append(unprocessed, key)
		}
	}

	var participants []string
	for _, key := range unprocessed {
		if g.canReachSelf(key, remaining) {
			participants = append(participants, key)
		}
	}
	sort.Strings(participants)

	var path []string
	if len(participants) > 0 {
		path = g.FindCyclePath(participants[0], remaining)
	}

	return &CycleInfo{
		TotalNodes:        len(g.Nodes),
		ProcessedNodes:    len(processed),
		UnprocessedNodes:  unprocessed,
		CycleParticipants: participants,
		CyclePath:         path,
	}
}

// HasCycle reports whether some bundle can nest inside itself.
func (g *Graph) HasCycle() bool {
	return g.DetectCycles() != nil
}

// Validate returns a *CycleError when the graph has a cycle.
func (g *Graph) Validate() error {
	if info := g.DetectCycles(); info != nil {
		return &CycleError{Info: info}
	}
	return nil
}

// FindCyclePath returns a path from start back to itself through allowed
// nodes, or nil.
func (g *Graph) FindCyclePath(start string, allowed map[string]bool) []string {
	visited := make(map[string]bool)
	path := []string{start}
	if g.dfsFindPath(start, start, visited, allowed, &path) {
		return path
	}
	return nil
}

func (g *Graph) dfsFindPath(current, target string, visited, allowed map[string]bool, path *[]string) bool {
	for _, child := range g.GetChildren(current) {
		if !allowed[child] {
			continue
		}
		if child == target {
			*path = append(*path, target)
			return true
		}
		if visited[child] {
			continue
		}

		visited[child] = true
		*path = append(*path, child)
		if g.dfsFindPath(child, target, visited, allowed, path) {
			return true
		}
		*path = (*path)[:len(*path)-1]
	}
	return false
}

func (g *Graph) canReachSelf(start string, allowed map[string]bool) bool {
	visited := make(map[string]bool)
	var dfs func(current string, first bool) bool
	dfs = func(current string, first bool) bool {
		if current == start && !first {
			return true
		}
		if visited[current] || !allowed[current] {
			return false
		}
		visited[current] = true
		for _, child := range g.GetChildren(current) {
			if dfs(child, false) {
				return true
			}
		}
		return false
	}
	return dfs(start, true)
}
