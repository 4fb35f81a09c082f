package graph

import (
	"context"
	"time"

	"github.com/slicegraph/slicegraph/internal/log"
	"github.com/slicegraph/slicegraph/internal/storage"
	"github.com/slicegraph/slicegraph/internal/types"
)

var logger = log.For("graph")

// defaultBulkThreshold is the symbol count below which Load prefers a full
// sweep over a seeded neighborhood expansion (spec §4.E: "used when repo
// size < threshold (default 200k symbols)").
const defaultBulkThreshold = 200_000

// defaultMaxHops and defaultMaxSymbols are LoadNeighborhood's defaults
// when the caller passes zero (spec §4.E).
const (
	defaultMaxHops    = 2
	defaultMaxSymbols = 200_000
)

// Stats is the telemetry record a load emits (spec §4.E: "{mode,
// symbolsLoaded, durationMs}", plus neighborhood's own "{hopsReached,
// symbolsLoaded}").
type Stats struct {
	Mode          string
	SymbolsLoaded int
	HopsReached   int
	DurationMs    int64
}

// Loader reads a repo's symbols and edges from storage into a Graph.
type Loader struct {
	Store *storage.Store

	BulkThreshold int
}

// NewLoader builds a loader against store with the default bulk threshold.
func NewLoader(store *storage.Store) *Loader {
	return &Loader{Store: store, BulkThreshold: defaultBulkThreshold}
}

// Load picks bulk or neighborhood mode automatically based on repo size: a
// full sweep when the repo's symbol count is under the threshold, else a
// neighborhood expansion from seeds (spec §4.E).
func (l *Loader) Load(ctx context.Context, repoID types.RepoID, seeds []types.SymbolID, maxHops int, direction Direction, maxSymbols int) (*Graph, Stats, error) {
	threshold := l.BulkThreshold
	if threshold <= 0 {
		threshold = defaultBulkThreshold
	}
	count, err := l.Store.CountSymbolsByRepo(ctx, repoID)
	if err != nil {
		return nil, Stats{}, err
	}
	if count < threshold {
		return l.LoadBulk(ctx, repoID)
	}
	return l.LoadNeighborhood(ctx, repoID, seeds, maxHops, direction, maxSymbols)
}

// LoadBulk performs one sweep per table for repoID.
func (l *Loader) LoadBulk(ctx context.Context, repoID types.RepoID) (*Graph, Stats, error) {
	start := time.Now()
	g := newGraph()

	symbols, err := l.Store.ListSymbolsByRepo(ctx, repoID)
	if err != nil {
		return nil, Stats{}, err
	}
	for _, s := range symbols {
		g.Symbols[s.SymbolID] = s
	}

	edges, err := l.Store.ListEdgesByRepo(ctx, repoID)
	if err != nil {
		return nil, Stats{}, err
	}
	g.addEdges(edges)
	g.sortAdjacency()

	files, err := l.Store.ListFilesByRepo(ctx, repoID)
	if err != nil {
		return nil, Stats{}, err
	}
	for _, f := range files {
		g.Files[f.FileID] = f
	}

	stats := Stats{Mode: "bulk", SymbolsLoaded: len(g.Symbols), DurationMs: time.Since(start).Milliseconds()}
	logger.Debugf("bulk load repo=%s symbols=%d edges=%d files=%d durationMs=%d",
		repoID, len(g.Symbols), len(edges), len(g.Files), stats.DurationMs)
	return g, stats, nil
}

// LoadNeighborhood expands breadth-first from seeds up to maxHops in
// direction, capped by maxSymbols (spec §4.E). The seeds' own edges and
// endpoints are loaded first; the record returned tallies hopsReached and
// symbolsLoaded.
func (l *Loader) LoadNeighborhood(ctx context.Context, repoID types.RepoID, seeds []types.SymbolID, maxHops int, direction Direction, maxSymbols int) (*Graph, Stats, error) {
	start := time.Now()
	if maxHops <= 0 {
		maxHops = defaultMaxHops
	}
	if maxSymbols <= 0 {
		maxSymbols = defaultMaxSymbols
	}
	if direction == "" {
		direction = DirBoth
	}

	g := newGraph()
	visited := make(map[types.SymbolID]bool, len(seeds))
	frontier := make([]types.SymbolID, 0, len(seeds))
	for _, s := range seeds {
		if !visited[s] {
			visited[s] = true
			frontier = append(frontier, s)
		}
	}

	if err := l.loadSymbolBatch(ctx, g, frontier); err != nil {
		return nil, Stats{}, err
	}

	hopsReached := 0
	for hop := 0; hop < maxHops && len(frontier) > 0 && len(g.Symbols) < maxSymbols; hop++ {
		var hopEdges []types.Edge
		if direction == DirOut || direction == DirBoth {
			out, err := l.Store.GetEdgesFromSymbolsForSlice(ctx, frontier)
			if err != nil {
				return nil, Stats{}, err
			}
			hopEdges = append(hopEdges, out...)
		}
		if direction == DirIn || direction == DirBoth {
			in, err := l.Store.GetEdgesToSymbolsForSlice(ctx, frontier)
			if err != nil {
				return nil, Stats{}, err
			}
			hopEdges = append(hopEdges, in...)
		}
		if len(hopEdges) == 0 {
			break
		}
		g.addEdges(hopEdges)

		var next []types.SymbolID
		for _, e := range hopEdges {
			for _, endpoint := range [2]types.SymbolID{e.FromSymbolID, e.ToSymbolID} {
				if types.IsUnresolved(endpoint) {
					continue
				}
				if !visited[endpoint] {
					visited[endpoint] = true
					next = append(next, endpoint)
				}
			}
		}
		if len(next) == 0 {
			break
		}
		if err := l.loadSymbolBatch(ctx, g, next); err != nil {
			return nil, Stats{}, err
		}
		hopsReached++
		frontier = next
		if len(g.Symbols) >= maxSymbols {
			logger.Debugf("neighborhood load repo=%s truncated at maxSymbols=%d", repoID, maxSymbols)
			break
		}
	}
	g.sortAdjacency()

	fileIDs := make([]types.FileID, 0, len(g.Symbols))
	seenFile := make(map[types.FileID]bool, len(g.Symbols))
	for _, s := range g.Symbols {
		if !seenFile[s.FileID] {
			seenFile[s.FileID] = true
			fileIDs = append(fileIDs, s.FileID)
		}
	}
	files, err := l.Store.GetFilesByIDs(ctx, fileIDs)
	if err != nil {
		return nil, Stats{}, err
	}
	for _, f := range files {
		g.Files[f.FileID] = f
	}

	stats := Stats{
		Mode:          "neighborhood",
		SymbolsLoaded: len(g.Symbols),
		HopsReached:   hopsReached,
		DurationMs:    time.Since(start).Milliseconds(),
	}
	logger.Debugf("neighborhood load repo=%s seeds=%d hopsReached=%d symbolsLoaded=%d durationMs=%d",
		repoID, len(seeds), hopsReached, stats.SymbolsLoaded, stats.DurationMs)
	return g, stats, nil
}

func (l *Loader) loadSymbolBatch(ctx context.Context, g *Graph, ids []types.SymbolID) error {
	var real []types.SymbolID
	for _, id := range ids {
		if !types.IsUnresolved(id) {
			real = append(real, id)
		}
	}
	if len(real) == 0 {
		return nil
	}
	symbols, err := l.Store.GetSymbolsByIDs(ctx, real)
	if err != nil {
		return err
	}
	for _, s := range symbols {
		g.Symbols[s.SymbolID] = s
	}
	return nil
}
