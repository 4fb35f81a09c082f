// Package graph produces a read-only, in-memory view of a repo's symbols
// and edges (spec §4.E): a bulk sweep for small repos, or a bounded
// breadth-first neighborhood expansion from a seed set for large ones.
// Grounded on the teacher's UniversalSymbolGraph (internal/core/
// universal_graph.go) for the map-of-indices shape, generalized from that
// type's single all-in-memory design to the spec's two explicit load
// modes.
package graph

import (
	"sort"

	"github.com/slicegraph/slicegraph/internal/types"
)

// Direction selects which edge endpoints a neighborhood load follows.
type Direction string

const (
	DirOut  Direction = "out"
	DirIn   Direction = "in"
	DirBoth Direction = "both"
)

// Graph is an immutable snapshot: once returned by a Loader call, none of
// its maps are mutated. Callers that need a fresher view call Load again.
type Graph struct {
	Symbols      map[types.SymbolID]types.Symbol
	AdjacencyOut map[types.SymbolID][]types.Edge
	AdjacencyIn  map[types.SymbolID][]types.Edge
	Files        map[types.FileID]types.File
}

func newGraph() *Graph {
	return &Graph{
		Symbols:      make(map[types.SymbolID]types.Symbol),
		AdjacencyOut: make(map[types.SymbolID][]types.Edge),
		AdjacencyIn:  make(map[types.SymbolID][]types.Edge),
		Files:        make(map[types.FileID]types.File),
	}
}

// Symbol looks up a symbol row loaded into the graph.
func (g *Graph) Symbol(id types.SymbolID) (types.Symbol, bool) {
	s, ok := g.Symbols[id]
	return s, ok
}

// Out returns symbolID's outgoing edges, sorted by target symbol ID.
func (g *Graph) Out(id types.SymbolID) []types.Edge {
	return g.AdjacencyOut[id]
}

// In returns symbolID's incoming edges, sorted by source symbol ID.
func (g *Graph) In(id types.SymbolID) []types.Edge {
	return g.AdjacencyIn[id]
}

func (g *Graph) addEdges(edges []types.Edge) {
	for _, e := range edges {
		g.AdjacencyOut[e.FromSymbolID] = append(g.AdjacencyOut[e.FromSymbolID], e)
		g.AdjacencyIn[e.ToSymbolID] = append(g.AdjacencyIn[e.ToSymbolID], e)
	}
}

func (g *Graph) sortAdjacency() {
	for k, edges := range g.AdjacencyOut {
		sorted := append([]types.Edge(nil), edges...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ToSymbolID < sorted[j].ToSymbolID })
		g.AdjacencyOut[k] = sorted
	}
	for k, edges := range g.AdjacencyIn {
		sorted := append([]types.Edge(nil), edges...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].FromSymbolID < sorted[j].FromSymbolID })
		g.AdjacencyIn[k] = sorted
	}
}
