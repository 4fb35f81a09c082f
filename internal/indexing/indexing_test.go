package indexing_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slicegraph/slicegraph/internal/adapter"
	"github.com/slicegraph/slicegraph/internal/config"
	"github.com/slicegraph/slicegraph/internal/indexing"
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

func newTestRepo(t *testing.T, st *storage.Store, root string) types.RepoID {
	t.Helper()
	repoID := types.RepoID("test-repo")
	err := st.CreateRepo(context.Background(), types.Repo{
		RepoID:    repoID,
		RootPath:  root,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	return repoID
}

func TestIndexRepoSingleFileExportedFunction(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "greet.go"), []byte(`package greet

func Greet(name string) string {
	return "hello " + name
}
`), 0o644))

	st := openTestStore(t)
	repoID := newTestRepo(t, st, root)

	pipeline := indexing.NewPipeline(st, adapter.NewRegistry())
	repoCfg := config.RepoConfig{RepoID: string(repoID), RootPath: root}

	stats, err := pipeline.IndexRepo(context.Background(), repoCfg, 4, indexing.ModeFull, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesProcessed)
	assert.GreaterOrEqual(t, stats.SymbolsIndexed, 2) // module symbol + Greet

	symbols, err := st.SearchSymbols(context.Background(), repoID, "Greet", 10)
	require.NoError(t, err)
	// The name search is case-insensitive, so the module symbol "greet.go"
	// matches too; results are ordered by name, putting "Greet" first.
	require.Len(t, symbols, 2)
	assert.Equal(t, "Greet", symbols[0].Name)
	assert.True(t, symbols[0].Exported)
	assert.NotEmpty(t, symbols[0].ASTFingerprint)
}

func TestIndexRepoCrossFileImportAndCall(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte(`package pkg

func Helper() int {
	return 1
}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.go"), []byte(`package pkg

func UseHelper() int {
	return Helper()
}
`), 0o644))

	st := openTestStore(t)
	repoID := newTestRepo(t, st, root)

	pipeline := indexing.NewPipeline(st, adapter.NewRegistry())
	repoCfg := config.RepoConfig{RepoID: string(repoID), RootPath: root}

	stats, err := pipeline.IndexRepo(context.Background(), repoCfg, 4, indexing.ModeFull, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesProcessed)

	helperSymbols, err := st.SearchSymbols(context.Background(), repoID, "Helper", 10)
	require.NoError(t, err)
	require.NotEmpty(t, helperSymbols)

	var helperID types.SymbolID
	for _, s := range helperSymbols {
		if s.Name == "Helper" {
			helperID = s.SymbolID
		}
	}
	require.NotEmpty(t, helperID)

	edges, err := st.GetEdgesTo(context.Background(), helperID)
	require.NoError(t, err)
	var sawCall bool
	for _, e := range edges {
		if e.Type == types.EdgeCall {
			sawCall = true
			assert.Equal(t, types.StrategyRepoUniqueName, e.ResolutionStrategy)
			assert.InDelta(t, 0.7, e.Confidence, 0.0001)
		}
	}
	assert.True(t, sawCall, "expected a call edge targeting Helper")
}

func TestIndexRepoIncrementalSkipsUnchangedFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "only.go")
	require.NoError(t, os.WriteFile(path, []byte(`package only

func Only() {}
`), 0o644))

	st := openTestStore(t)
	repoID := newTestRepo(t, st, root)
	pipeline := indexing.NewPipeline(st, adapter.NewRegistry())
	repoCfg := config.RepoConfig{RepoID: string(repoID), RootPath: root}

	_, err := pipeline.IndexRepo(context.Background(), repoCfg, 4, indexing.ModeFull, nil)
	require.NoError(t, err)

	before, _, err := st.GetFileByPath(context.Background(), repoID, "only.go")
	require.NoError(t, err)

	stats, err := pipeline.IndexRepo(context.Background(), repoCfg, 4, indexing.ModeIncremental, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesProcessed)

	after, _, err := st.GetFileByPath(context.Background(), repoID, "only.go")
	require.NoError(t, err)
	assert.Equal(t, before.ContentHash, after.ContentHash)
	assert.NotEqual(t, before.LastSeenVer, after.LastSeenVer)
}

func TestIndexRepoDeterministicAcrossRuns(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "x.go"), []byte(`package x

func F() int { return 42 }
`), 0o644))

	run := func() []types.Symbol {
		st := openTestStore(t)
		repoID := newTestRepo(t, st, root)
		pipeline := indexing.NewPipeline(st, adapter.NewRegistry())
		repoCfg := config.RepoConfig{RepoID: string(repoID), RootPath: root}
		_, err := pipeline.IndexRepo(context.Background(), repoCfg, 4, indexing.ModeFull, nil)
		require.NoError(t, err)
		symbols, err := st.SearchSymbols(context.Background(), repoID, "F", 10)
		require.NoError(t, err)
		return symbols
	}

	first := run()
	second := run()
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].SymbolID, second[0].SymbolID)
	assert.Equal(t, first[0].ASTFingerprint, second[0].ASTFingerprint)
}

func TestIndexRepoUnknownRepoIsInvalid(t *testing.T) {
	st := openTestStore(t)
	pipeline := indexing.NewPipeline(st, adapter.NewRegistry())
	repoCfg := config.RepoConfig{RepoID: "does-not-exist", RootPath: t.TempDir()}

	_, err := pipeline.IndexRepo(context.Background(), repoCfg, 4, indexing.ModeFull, nil)
	require.Error(t, err)
}
