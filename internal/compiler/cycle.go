package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/simcore/internal/ir"
)

// Cycle is a loop in the wiring graph that passes through no transition.
// Interpreted evaluation of any compartment on it never terminates.
type Cycle struct {
	Path    []string `json:"path"` // ["A:x", "B:y", "A:x"]
	Message string   `json:"message"`
}

// AnalyzeCycles performs static cycle analysis on a model's wires.
//
// The algorithm:
//  1. Build compartment -> compartment edges from every wire source path
//     (including paths nested in operations) to the wire target
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop as a cycle
//
// Nodes are visited in sorted order so the result is deterministic.
func AnalyzeCycles(spec *ir.ModelSpec) []Cycle {
	if len(spec.Wires) == 0 {
		return nil
	}

	graph := buildWireGraph(spec.Wires)
	sccs := tarjanSCC(graph)

	var cycles []Cycle
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	return cycles
}

// wireGraph maps a compartment ref to the refs its value flows into.
type wireGraph map[string][]string

func buildWireGraph(wires []ir.WireSpec) wireGraph {
	graph := make(wireGraph)
	for _, w := range wires {
		if graph[w.To] == nil {
			graph[w.To] = []string{}
		}
		for _, src := range sourcePaths(w.From, nil) {
			if !slices.Contains(graph[src], w.To) {
				graph[src] = append(graph[src], w.To)
			}
		}
	}
	for node := range graph {
		slices.Sort(graph[node])
	}
	return graph
}

func sourcePaths(src ir.SourceSpec, dst []string) []string {
	if src.Op == nil {
		if src.Path != "" {
			dst = append(dst, src.Path)
		}
		return dst
	}
	for _, s := range src.Op.Sources {
		dst = sourcePaths(s, dst)
	}
	return dst
}

func hasSelfLoop(node string, graph wireGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func tarjanSCC(graph wireGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range ir.SortedKeys(graph) {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToCycle(scc []string, graph wireGraph) Cycle {
	if len(scc) == 1 {
		ref := scc[0]
		return Cycle{
			Path:    []string{ref, ref},
			Message: fmt.Sprintf("compartment wired to itself: %s -> %s", ref, ref),
		}
	}

	path := reconstructCyclePath(scc, graph)
	return Cycle{
		Path:    path,
		Message: fmt.Sprintf("wiring cycle: %s", strings.Join(path, " -> ")),
	}
}

// reconstructCyclePath starts at the first SCC member and follows edges to
// other members until it returns to the start.
func reconstructCyclePath(scc []string, graph wireGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
