package resolver_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slicegraph/slicegraph/internal/resolver"
	"github.com/slicegraph/slicegraph/internal/storage"
	"github.com/slicegraph/slicegraph/internal/types"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	st, err := storage.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedRepo(t *testing.T, st *storage.Store, repoID types.RepoID) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.CreateRepo(ctx, types.Repo{RepoID: repoID, RootPath: "/repo", CreatedAt: time.Now()}))

	files := []types.File{
		{FileID: "f-main", RepoID: repoID, RelPath: "main.go", ContentHash: "h1"},
		{FileID: "f-test", RepoID: repoID, RelPath: "main_test.go", ContentHash: "h2"},
	}
	require.NoError(t, st.UpsertFiles(ctx, files, 500))

	symbols := []types.Symbol{
		{SymbolID: "sym-process", RepoID: repoID, FileID: "f-main", Kind: types.KindFunction, Name: "ProcessOrder", Exported: true, UpdatedAt: time.Now()},
		{SymbolID: "sym-process-helper", RepoID: repoID, FileID: "f-main", Kind: types.KindFunction, Name: "ProcessHelper", Exported: false, UpdatedAt: time.Now()},
		{SymbolID: "sym-validate", RepoID: repoID, FileID: "f-main", Kind: types.KindFunction, Name: "ValidateOrder", Exported: true, UpdatedAt: time.Now()},
		{SymbolID: "sym-test", RepoID: repoID, FileID: "f-test", Kind: types.KindFunction, Name: "TestProcessOrder", Exported: true, UpdatedAt: time.Now()},
	}
	require.NoError(t, st.UpsertSymbols(ctx, symbols, 500))

	edges := []types.Edge{
		{RepoID: repoID, FromSymbolID: "sym-process", ToSymbolID: "sym-validate", Type: types.EdgeCall, Weight: 1, Confidence: 1, CreatedAt: time.Now()},
	}
	require.NoError(t, st.UpsertEdges(ctx, edges, 500))
}

func TestResolveExplicitEntryPromotesDependenciesAndSiblings(t *testing.T) {
	st := openTestStore(t)
	repoID := types.RepoID("repo1")
	seedRepo(t, st, repoID)

	r := resolver.New(st, resolver.DefaultConfig())
	seeds, err := r.Resolve(context.Background(), repoID, resolver.Input{
		EntrySymbols: []types.SymbolID{"sym-process"},
	})
	require.NoError(t, err)

	bySymbol := make(map[types.SymbolID]resolver.Seed)
	for _, s := range seeds {
		bySymbol[s.SymbolID] = s
	}

	require.Contains(t, bySymbol, types.SymbolID("sym-process"))
	assert.Equal(t, resolver.SourceExplicit, bySymbol["sym-process"].Source)

	require.Contains(t, bySymbol, types.SymbolID("sym-validate"), "first-hop dependency should be promoted")
	assert.Equal(t, resolver.SourceEntryDependency, bySymbol["sym-validate"].Source)

	require.Contains(t, bySymbol, types.SymbolID("sym-process-helper"), "same-file sibling sharing a name prefix should be promoted")
	assert.Equal(t, resolver.SourceEntrySibling, bySymbol["sym-process-helper"].Source)
}

func TestResolveFailingTestPathMatchesFileSymbols(t *testing.T) {
	st := openTestStore(t)
	repoID := types.RepoID("repo2")
	seedRepo(t, st, repoID)

	r := resolver.New(st, resolver.DefaultConfig())
	seeds, err := r.Resolve(context.Background(), repoID, resolver.Input{
		FailingTestPath: "main_test.go",
	})
	require.NoError(t, err)

	require.Len(t, seeds, 1)
	assert.Equal(t, types.SymbolID("sym-test"), seeds[0].SymbolID)
	assert.Equal(t, resolver.SourceFailingTest, seeds[0].Source)
}

func TestResolveTaskTextFiltersStopWordsAndShortTokens(t *testing.T) {
	st := openTestStore(t)
	repoID := types.RepoID("repo3")
	seedRepo(t, st, repoID)

	r := resolver.New(st, resolver.DefaultConfig())
	seeds, err := r.Resolve(context.Background(), repoID, resolver.Input{
		TaskText: "the order validation is broken when we process an order",
	})
	require.NoError(t, err)
	require.NotEmpty(t, seeds)
	for _, s := range seeds {
		assert.Equal(t, resolver.SourceTaskText, s.Source)
	}
}

func TestResolveStackTraceMatchesExactFrameNames(t *testing.T) {
	st := openTestStore(t)
	repoID := types.RepoID("repo6")
	seedRepo(t, st, repoID)

	r := resolver.New(st, resolver.DefaultConfig())
	seeds, err := r.Resolve(context.Background(), repoID, resolver.Input{
		StackTrace: []string{"panic: nil pointer", "  at ProcessOrder(main.go:12)"},
	})
	require.NoError(t, err)

	require.Len(t, seeds, 1)
	assert.Equal(t, types.SymbolID("sym-process"), seeds[0].SymbolID)
	assert.Equal(t, resolver.SourceStackTrace, seeds[0].Source)
}

func TestResolveDeduplicatesKeepingHighestPrioritySource(t *testing.T) {
	st := openTestStore(t)
	repoID := types.RepoID("repo4")
	seedRepo(t, st, repoID)

	r := resolver.New(st, resolver.DefaultConfig())
	seeds, err := r.Resolve(context.Background(), repoID, resolver.Input{
		EntrySymbols: []types.SymbolID{"sym-process"},
		EditedFiles:  []string{"main.go"}, // also surfaces sym-process, sym-process-helper, sym-validate
	})
	require.NoError(t, err)

	var processSeed resolver.Seed
	for _, s := range seeds {
		if s.SymbolID == "sym-process" {
			processSeed = s
		}
	}
	assert.Equal(t, resolver.SourceExplicit, processSeed.Source, "explicit entry outranks the same symbol surfaced via edited files")
}

func TestResolveOrderingIsDeterministic(t *testing.T) {
	st := openTestStore(t)
	repoID := types.RepoID("repo5")
	seedRepo(t, st, repoID)

	r := resolver.New(st, resolver.DefaultConfig())
	in := resolver.Input{
		EntrySymbols:    []types.SymbolID{"sym-process"},
		FailingTestPath: "main_test.go",
	}
	first, err := r.Resolve(context.Background(), repoID, in)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), repoID, in)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for i := 1; i < len(first); i++ {
		a, b := first[i-1], first[i]
		if a.Source.Priority() == b.Source.Priority() && a.Score == b.Score {
			assert.True(t, a.SymbolID <= b.SymbolID)
		}
	}
}
