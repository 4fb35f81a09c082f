package ledger_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slicegraph/slicegraph/internal/adapter"
	"github.com/slicegraph/slicegraph/internal/card"
	"github.com/slicegraph/slicegraph/internal/config"
	"github.com/slicegraph/slicegraph/internal/ledger"
	"github.com/slicegraph/slicegraph/internal/resolver"
	"github.com/slicegraph/slicegraph/internal/slicer"
	"github.com/slicegraph/slicegraph/internal/storage"
	"github.com/slicegraph/slicegraph/internal/types"
)

func openTestLedger(t *testing.T) (*ledger.Ledger, types.RepoID, types.VersionID) {
	t.Helper()
	ctx := context.Background()
	store, err := storage.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	const repoID = types.RepoID("svc")
	const versionID = types.VersionID("00000000000000000001")

	require.NoError(t, store.CreateRepo(ctx, types.Repo{RepoID: repoID, RootPath: "/r", CreatedAt: time.Now()}))
	require.NoError(t, store.CreateVersion(ctx, types.Version{VersionID: versionID, RepoID: repoID, CreatedAt: time.Now()}))
	require.NoError(t, store.UpsertFile(ctx, types.File{
		FileID: "f1", RepoID: repoID, RelPath: "order.go", ContentHash: "h1", Language: "go", Bytes: 100, LastSeenVer: versionID,
	}))
	require.NoError(t, store.UpsertSymbol(ctx, types.Symbol{
		SymbolID: "sym-process", RepoID: repoID, FileID: "f1", Kind: types.KindFunction,
		Name: "ProcessOrder", Exported: true, Language: "go",
		SignatureJSON: `{"params":["order Order"],"returns":["error"]}`,
		Summary:       "Processes an order end to end.",
		UpdatedAt:     time.Now(),
	}))
	require.NoError(t, store.UpsertSymbol(ctx, types.Symbol{
		SymbolID: "sym-validate", RepoID: repoID, FileID: "f1", Kind: types.KindFunction,
		Name: "ValidateOrder", Language: "go", UpdatedAt: time.Now(),
	}))
	require.NoError(t, store.UpsertSymbol(ctx, types.Symbol{
		SymbolID: "sym-persist", RepoID: repoID, FileID: "f1", Kind: types.KindFunction,
		Name: "PersistOrder", Language: "go", UpdatedAt: time.Now(),
	}))
	require.NoError(t, store.UpsertEdge(ctx, types.Edge{
		RepoID: repoID, FromSymbolID: "sym-process", ToSymbolID: "sym-validate",
		Type: types.EdgeCall, Confidence: 1.0, CreatedAt: time.Now(),
	}))
	require.NoError(t, store.UpsertEdge(ctx, types.Edge{
		RepoID: repoID, FromSymbolID: "sym-validate", ToSymbolID: "sym-persist",
		Type: types.EdgeCall, Confidence: 1.0, CreatedAt: time.Now(),
	}))

	l := ledger.New(store, adapter.NewRegistry(), config.Default())
	return l, repoID, versionID
}

func explicitRequest(repoID types.RepoID) ledger.BuildSliceRequest {
	return ledger.BuildSliceRequest{
		RepoID:      repoID,
		Input:       resolver.Input{EntrySymbols: []types.SymbolID{"sym-process"}},
		DetailLevel: types.DetailCompact,
		WireFormat:  ledger.WireV1,
	}
}

func TestBuildSliceReturnsEnvelopeAndHandle(t *testing.T) {
	l, repoID, version := openTestLedger(t)

	result, err := l.BuildSlice(context.Background(), explicitRequest(repoID))
	require.NoError(t, err)

	assert.NotEmpty(t, result.Handle)
	assert.Equal(t, version, result.Version)
	env, ok := result.Envelope.(*card.SliceEnvelope)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(env.Cards), 1)
	assert.False(t, result.WasTruncated)
}

func TestBuildSliceCompactV2MatchesCardCount(t *testing.T) {
	l, repoID, _ := openTestLedger(t)

	req := explicitRequest(repoID)
	req.WireFormat = ledger.WireV2
	result, err := l.BuildSlice(context.Background(), req)
	require.NoError(t, err)

	v2, ok := result.Envelope.(*card.CompactV2)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(v2.Cards), 1)
}

func TestBuildSliceUnknownRepoIsInvalidRepo(t *testing.T) {
	l, _, _ := openTestLedger(t)

	_, err := l.BuildSlice(context.Background(), explicitRequest("does-not-exist"))
	assert.Error(t, err)
}

func TestGetCardReturnsNotModifiedWhenEtagMatches(t *testing.T) {
	l, repoID, _ := openTestLedger(t)
	ctx := context.Background()

	first, nm, err := l.GetCard(ctx, repoID, "sym-process", "")
	require.NoError(t, err)
	require.Nil(t, nm)
	require.NotNil(t, first)

	second, nm, err := l.GetCard(ctx, repoID, "sym-process", first.ETag)
	require.NoError(t, err)
	assert.Nil(t, second)
	require.NotNil(t, nm)
	assert.Equal(t, first.ETag, nm.ETag)
}

func TestInvalidateVersionDropsCachedCard(t *testing.T) {
	l, repoID, version := openTestLedger(t)
	ctx := context.Background()

	_, _, err := l.GetCard(ctx, repoID, "sym-process", "")
	require.NoError(t, err)
	assert.Equal(t, 1, l.CardCache.Len())

	l.InvalidateVersion(string(version))
	assert.Equal(t, 0, l.CardCache.Len())
}

func TestSearchSymbolsFindsSeeded(t *testing.T) {
	l, repoID, _ := openTestLedger(t)

	matches, err := l.SearchSymbols(context.Background(), repoID, "Order", 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(matches), 3)
}

func TestRefreshSliceReportsNotModifiedWhenVersionUnchanged(t *testing.T) {
	l, repoID, version := openTestLedger(t)
	ctx := context.Background()

	built, err := l.BuildSlice(ctx, explicitRequest(repoID))
	require.NoError(t, err)

	refreshed, err := l.RefreshSlice(ctx, built.Handle, version)
	require.NoError(t, err)
	assert.True(t, refreshed.NotModified)
	assert.Equal(t, version, refreshed.Version)
	assert.Equal(t, built.Handle, refreshed.Lease.Handle)
}

func TestRefreshSliceUnknownHandleErrors(t *testing.T) {
	l, _, version := openTestLedger(t)

	_, err := l.RefreshSlice(context.Background(), "does-not-exist", version)
	assert.Error(t, err)
}

func TestGetSpilloverUnknownHandleErrors(t *testing.T) {
	l, _, _ := openTestLedger(t)

	_, err := l.GetSpillover("spill-does-not-exist", "", 20)
	assert.Error(t, err)
}

// TestBuildSliceSpilloverRecoversFullDroppedSet mirrors the spec's
// 45-dropped-symbols scenario: with a budget small enough that only the
// seed fits, every fanned-out child is dropped. Paging the resulting
// spilloverRef in pages of 20 must recover all 45, not just the
// FrontierSnapshotSize-bounded inline frontier.
func TestBuildSliceSpilloverRecoversFullDroppedSet(t *testing.T) {
	l, repoID, version := openTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 45; i++ {
		id := types.SymbolID("sym-fanout-" + string(rune('a'+i%26)) + string(rune('0'+i/26)))
		require.NoError(t, l.Store.UpsertSymbol(ctx, types.Symbol{
			SymbolID: id, RepoID: repoID, FileID: "f1", Kind: types.KindFunction,
			Name: string(id), Language: "go", UpdatedAt: time.Now(),
		}))
		require.NoError(t, l.Store.UpsertEdge(ctx, types.Edge{
			RepoID: repoID, FromSymbolID: "sym-process", ToSymbolID: id,
			Type: types.EdgeCall, Confidence: 0.9, CreatedAt: time.Now(),
		}))
	}

	req := explicitRequest(repoID)
	req.Budget.MaxCards = 1
	result, err := l.BuildSlice(ctx, req)
	require.NoError(t, err)
	require.True(t, result.WasTruncated)
	require.NotEmpty(t, result.SpilloverRef)

	var got []string
	cursor := ""
	for {
		page, err := l.GetSpillover(result.SpilloverRef, cursor, 20)
		require.NoError(t, err)
		for _, e := range page.Entries {
			got = append(got, string(e.SymbolID))
		}
		if !page.HasMore {
			break
		}
		cursor = page.Cursor
	}

	// 45 fanned-out symbols plus the fixture's pre-existing sym-validate edge.
	assert.Len(t, got, 46, "paging the spillover handle must recover every truncation-dropped symbol, not just the bounded inline frontier")
	_ = version
}

// TestBuildSliceSmallTokenBudgetDowngradesDetailLevel mirrors the spec's
// small-maxEstimatedTokens scenario: a tight slice-level token budget must
// drive the per-card detail level down, independent of the policy's own
// window-token ceiling.
func TestBuildSliceSmallTokenBudgetDowngradesDetailLevel(t *testing.T) {
	l, repoID, _ := openTestLedger(t)
	ctx := context.Background()

	req := explicitRequest(repoID)
	req.DetailLevel = types.DetailFull
	req.Budget = slicer.Budget{MaxCards: 10, MaxEstimatedTokens: 200}

	result, err := l.BuildSlice(ctx, req)
	require.NoError(t, err)

	env, ok := result.Envelope.(*card.SliceEnvelope)
	require.True(t, ok)
	require.NotEmpty(t, env.Cards)

	type wireDetail struct {
		Effective      string `json:"effective"`
		Downgraded     bool   `json:"downgraded"`
		BudgetAdaptive bool   `json:"budgetAdaptive"`
	}
	type wireCard struct {
		DetailLevel wireDetail `json:"detailLevel"`
	}

	for _, raw := range env.Cards {
		var c wireCard
		require.NoError(t, json.Unmarshal(raw, &c))
		assert.NotEqual(t, types.DetailFull.String(), c.DetailLevel.Effective, "a 200-token budget must force a downgrade away from full")
		assert.True(t, c.DetailLevel.BudgetAdaptive)
	}
}
