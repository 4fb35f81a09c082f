package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slicegraph/slicegraph/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RepoRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	repo := types.Repo{RepoID: "svc", RootPath: "/workspace/svc", ConfigJSON: "{}", CreatedAt: time.Now()}
	require.NoError(t, s.CreateRepo(ctx, repo))

	got, err := s.GetRepo(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, repo.RepoID, got.RepoID)
	assert.Equal(t, repo.RootPath, got.RootPath)

	_, err = s.GetRepo(ctx, "missing")
	assert.Error(t, err)
}

func TestStore_VersionOrdering(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.CreateRepo(ctx, types.Repo{RepoID: "svc", RootPath: "/r", CreatedAt: time.Now()}))

	require.NoError(t, s.CreateVersion(ctx, types.Version{VersionID: "v0001", RepoID: "svc", CreatedAt: time.Now()}))
	require.NoError(t, s.CreateVersion(ctx, types.Version{VersionID: "v0002", RepoID: "svc", CreatedAt: time.Now(), Parent: "v0001"}))

	latest, err := s.GetLatestVersion(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, types.VersionID("v0002"), latest.VersionID)
}

func TestStore_UpsertFileThenDeleteMissing(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.CreateRepo(ctx, types.Repo{RepoID: "svc", RootPath: "/r", CreatedAt: time.Now()}))

	f1 := types.File{FileID: "f1", RepoID: "svc", RelPath: "a.go", ContentHash: "h1", Language: "go", Bytes: 10, LastSeenVer: "v1"}
	f2 := types.File{FileID: "f2", RepoID: "svc", RelPath: "b.go", ContentHash: "h2", Language: "go", Bytes: 20, LastSeenVer: "v0"}
	require.NoError(t, s.UpsertFile(ctx, f1))
	require.NoError(t, s.UpsertFile(ctx, f2))

	require.NoError(t, s.DeleteFilesMissingFrom(ctx, "svc", "v1"))

	_, ok, err := s.GetFileByPath(ctx, "svc", "a.go")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = s.GetFileByPath(ctx, "svc", "b.go")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SymbolUpsertAndPrune(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.CreateRepo(ctx, types.Repo{RepoID: "svc", RootPath: "/r", CreatedAt: time.Now()}))
	require.NoError(t, s.UpsertFile(ctx, types.File{FileID: "f1", RepoID: "svc", RelPath: "a.go", ContentHash: "h1", Language: "go", LastSeenVer: "v1"}))

	sym1 := types.Symbol{SymbolID: "s1", RepoID: "svc", FileID: "f1", Kind: types.KindFunction, Name: "Foo", UpdatedAt: time.Now()}
	sym2 := types.Symbol{SymbolID: "s2", RepoID: "svc", FileID: "f1", Kind: types.KindFunction, Name: "Bar", UpdatedAt: time.Now()}
	require.NoError(t, s.UpsertSymbols(ctx, []types.Symbol{sym1, sym2}, 500))

	byFile, err := s.GetSymbolsByFile(ctx, "f1")
	require.NoError(t, err)
	assert.Len(t, byFile, 2)

	require.NoError(t, s.DeleteSymbolsNotInFile(ctx, "f1", []types.SymbolID{"s1"}))
	byFile, err = s.GetSymbolsByFile(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, byFile, 1)
	assert.Equal(t, types.SymbolID("s1"), byFile[0].SymbolID)
}

func TestStore_SearchSymbolsDeterministicTieBreak(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.CreateRepo(ctx, types.Repo{RepoID: "svc", RootPath: "/r", CreatedAt: time.Now()}))
	require.NoError(t, s.UpsertFile(ctx, types.File{FileID: "f1", RepoID: "svc", RelPath: "a.go", LastSeenVer: "v1"}))

	require.NoError(t, s.UpsertSymbols(ctx, []types.Symbol{
		{SymbolID: "zzz", RepoID: "svc", FileID: "f1", Name: "handleRequest", UpdatedAt: time.Now()},
		{SymbolID: "aaa", RepoID: "svc", FileID: "f1", Name: "handleRequest", UpdatedAt: time.Now()},
	}, 500))

	matches, err := s.SearchSymbols(ctx, "svc", "handle", 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, types.SymbolID("aaa"), matches[0].SymbolID)
	assert.Equal(t, types.SymbolID("zzz"), matches[1].SymbolID)
}

func TestStore_EdgeUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.CreateRepo(ctx, types.Repo{RepoID: "svc", RootPath: "/r", CreatedAt: time.Now()}))

	e := types.Edge{RepoID: "svc", FromSymbolID: "a", ToSymbolID: "b", Type: types.EdgeCall, Confidence: 1.0, CreatedAt: time.Now()}
	require.NoError(t, s.UpsertEdge(ctx, e))

	out, err := s.GetEdgesFrom(ctx, "a")
	require.NoError(t, err)
	require.Len(t, out, 1)

	require.NoError(t, s.DeleteEdgesFromSymbols(ctx, []types.SymbolID{"a"}))
	out, err = s.GetEdgesFrom(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestStore_SliceHandleExpiry(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.CreateRepo(ctx, types.Repo{RepoID: "svc", RootPath: "/r", CreatedAt: time.Now()}))

	h := types.SliceHandle{
		Handle: "h1", RepoID: "svc", CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(-time.Minute), MaxVersion: "v1", SliceHash: "hash",
	}
	require.NoError(t, s.CreateSliceHandle(ctx, h))

	_, err := s.GetSliceHandle(ctx, "h1")
	assert.Error(t, err)

	n, err := s.DeleteExpiredSliceHandles(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
