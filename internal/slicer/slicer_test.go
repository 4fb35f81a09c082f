package slicer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slicegraph/slicegraph/internal/graph"
	"github.com/slicegraph/slicegraph/internal/resolver"
	"github.com/slicegraph/slicegraph/internal/slicer"
	"github.com/slicegraph/slicegraph/internal/types"
)

func sym(id string) types.Symbol {
	return types.Symbol{SymbolID: types.SymbolID(id), Kind: types.KindFunction, Name: id, UpdatedAt: time.Now()}
}

func edge(from, to string, typ types.EdgeType, confidence float64) types.Edge {
	return types.Edge{FromSymbolID: types.SymbolID(from), ToSymbolID: types.SymbolID(to), Type: typ, Confidence: confidence, CreatedAt: time.Now()}
}

// buildGraph assembles a graph.Graph directly from symbols and edges
// (the graph package's own loaders are exercised separately; this test
// only needs the resulting read-only shape).
func buildGraph(symbols []types.Symbol, edges []types.Edge) *graph.Graph {
	g := &graph.Graph{
		Symbols:      make(map[types.SymbolID]types.Symbol),
		AdjacencyOut: make(map[types.SymbolID][]types.Edge),
		AdjacencyIn:  make(map[types.SymbolID][]types.Edge),
		Files:        make(map[types.FileID]types.File),
	}
	for _, s := range symbols {
		g.Symbols[s.SymbolID] = s
	}
	for _, e := range edges {
		g.AdjacencyOut[e.FromSymbolID] = append(g.AdjacencyOut[e.FromSymbolID], e)
		g.AdjacencyIn[e.ToSymbolID] = append(g.AdjacencyIn[e.ToSymbolID], e)
	}
	return g
}

func seed(id string) resolver.Seed {
	return resolver.Seed{SymbolID: types.SymbolID(id), Source: resolver.SourceExplicit, Score: 1.0}
}

func TestBuildSliceBasicTraversal(t *testing.T) {
	g := buildGraph(
		[]types.Symbol{sym("a"), sym("b"), sym("c")},
		[]types.Edge{
			edge("a", "b", types.EdgeCall, 1.0),
			edge("b", "c", types.EdgeCall, 1.0),
		},
	)
	cfg := slicer.DefaultConfig()
	cfg.Budget = slicer.Budget{MaxCards: 10}
	e := slicer.New(g, cfg)

	result, err := e.BuildSlice(context.Background(), []resolver.Seed{seed("a")}, nil)
	require.NoError(t, err)

	ids := make([]types.SymbolID, len(result.SliceSet))
	for i, item := range result.SliceSet {
		ids[i] = item.SymbolID
	}
	assert.Equal(t, []types.SymbolID{"a", "b", "c"}, ids)
	assert.False(t, result.WasTruncated)
}

func TestBuildSliceRespectsMaxCards(t *testing.T) {
	g := buildGraph(
		[]types.Symbol{sym("a"), sym("b"), sym("c")},
		[]types.Edge{
			edge("a", "b", types.EdgeCall, 1.0),
			edge("b", "c", types.EdgeCall, 1.0),
		},
	)
	cfg := slicer.DefaultConfig()
	cfg.Budget = slicer.Budget{MaxCards: 2}
	e := slicer.New(g, cfg)

	result, err := e.BuildSlice(context.Background(), []resolver.Seed{seed("a")}, nil)
	require.NoError(t, err)

	assert.Len(t, result.SliceSet, 2)
	assert.True(t, result.WasTruncated)

	require.Len(t, result.Dropped, 1, "everything left in the queue at truncation, not just the bounded Frontier snapshot")
	assert.Equal(t, types.SymbolID("c"), result.Dropped[0].SymbolID)
}

func TestBuildSliceDroppedExceedsFrontierSnapshotSize(t *testing.T) {
	symbols := []types.Symbol{sym("a")}
	var edges []types.Edge
	for i := 0; i < 30; i++ {
		id := string(rune('b' + i))
		symbols = append(symbols, sym(id))
		edges = append(edges, edge("a", id, types.EdgeCall, 0.9))
	}
	g := buildGraph(symbols, edges)

	cfg := slicer.DefaultConfig()
	cfg.Budget = slicer.Budget{MaxCards: 1}
	cfg.FrontierSnapshotSize = 5
	e := slicer.New(g, cfg)

	result, err := e.BuildSlice(context.Background(), []resolver.Seed{seed("a")}, nil)
	require.NoError(t, err)

	assert.Len(t, result.Frontier, 5, "inline wire frontier stays bounded by FrontierSnapshotSize")
	assert.Len(t, result.Dropped, 30, "the full dropped set must survive independent of the bounded snapshot")
}

func TestBuildSliceFiltersLowConfidenceEdges(t *testing.T) {
	g := buildGraph(
		[]types.Symbol{sym("a"), sym("b"), sym("d")},
		[]types.Edge{
			edge("a", "b", types.EdgeCall, 1.0),
			edge("a", "d", types.EdgeCall, 0.05),
		},
	)
	cfg := slicer.DefaultConfig()
	cfg.Budget = slicer.Budget{MaxCards: 10}
	cfg.MinConfidence = 0.3
	e := slicer.New(g, cfg)

	result, err := e.BuildSlice(context.Background(), []resolver.Seed{seed("a")}, nil)
	require.NoError(t, err)

	var ids []types.SymbolID
	for _, item := range result.SliceSet {
		ids = append(ids, item.SymbolID)
	}
	assert.Contains(t, ids, types.SymbolID("b"))
	assert.NotContains(t, ids, types.SymbolID("d"))
	assert.Positive(t, result.DroppedCount)
}

func TestBuildSliceTieBreaksBySymbolIDAscending(t *testing.T) {
	g := buildGraph(
		[]types.Symbol{sym("a"), sym("zzz"), sym("aaa")},
		[]types.Edge{
			edge("a", "zzz", types.EdgeCall, 1.0),
			edge("a", "aaa", types.EdgeCall, 1.0),
		},
	)
	cfg := slicer.DefaultConfig()
	cfg.Budget = slicer.Budget{MaxCards: 10}
	e := slicer.New(g, cfg)

	result, err := e.BuildSlice(context.Background(), []resolver.Seed{seed("a")}, nil)
	require.NoError(t, err)

	require.Len(t, result.SliceSet, 3)
	assert.Equal(t, types.SymbolID("a"), result.SliceSet[0].SymbolID)
	assert.Equal(t, types.SymbolID("aaa"), result.SliceSet[1].SymbolID, "equal-score children tie-break by ascending symbol ID")
	assert.Equal(t, types.SymbolID("zzz"), result.SliceSet[2].SymbolID)
}

func TestBuildSliceTokenBudgetTruncates(t *testing.T) {
	g := buildGraph(
		[]types.Symbol{sym("a"), sym("b")},
		[]types.Edge{edge("a", "b", types.EdgeCall, 1.0)},
	)
	cfg := slicer.DefaultConfig()
	cfg.Budget = slicer.Budget{MaxCards: 10, MaxEstimatedTokens: 100}
	cfg.BaseOverheadTokens = 0
	e := slicer.New(g, cfg)

	estimate := func(types.SymbolID) int { return 80 }
	result, err := e.BuildSlice(context.Background(), []resolver.Seed{seed("a")}, estimate)
	require.NoError(t, err)

	assert.Len(t, result.SliceSet, 2, "the card that crosses the budget is still included per spec's literal ordering")
	assert.True(t, result.WasTruncated)
}

func TestBuildSliceDeterministicWithAndWithoutParallelScoring(t *testing.T) {
	symbols := []types.Symbol{sym("a")}
	var edges []types.Edge
	for i := 0; i < 30; i++ {
		id := string(rune('b' + i))
		symbols = append(symbols, sym(id))
		edges = append(edges, edge("a", id, types.EdgeCall, 0.9))
	}

	run := func(parallelThreshold int) []types.SymbolID {
		g := buildGraph(symbols, edges)
		cfg := slicer.DefaultConfig()
		cfg.Budget = slicer.Budget{MaxCards: 100}
		cfg.ParallelThreshold = parallelThreshold
		e := slicer.New(g, cfg)
		result, err := e.BuildSlice(context.Background(), []resolver.Seed{seed("a")}, nil)
		require.NoError(t, err)
		ids := make([]types.SymbolID, len(result.SliceSet))
		for i, item := range result.SliceSet {
			ids[i] = item.SymbolID
		}
		return ids
	}

	sequential := run(0)
	parallel := run(5)
	assert.Equal(t, sequential, parallel)
}
