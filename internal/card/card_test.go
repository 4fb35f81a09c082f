package card_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slicegraph/slicegraph/internal/card"
	"github.com/slicegraph/slicegraph/internal/slicer"
	"github.com/slicegraph/slicegraph/internal/storage"
	"github.com/slicegraph/slicegraph/internal/types"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedProcessOrder(t *testing.T, s *storage.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateRepo(ctx, types.Repo{RepoID: "svc", RootPath: "/r", CreatedAt: time.Now()}))
	require.NoError(t, s.UpsertFile(ctx, types.File{
		FileID: "f1", RepoID: "svc", RelPath: "order.go", ContentHash: "h1", Language: "go", Bytes: 100, LastSeenVer: "v1",
	}))
	require.NoError(t, s.UpsertSymbol(ctx, types.Symbol{
		SymbolID:        "sym-process",
		RepoID:          "svc",
		FileID:          "f1",
		Kind:            types.KindFunction,
		Name:            "ProcessOrder",
		Exported:        true,
		Language:        "go",
		Range:           types.Range{StartLine: 10, StartCol: 1, EndLine: 20, EndCol: 1},
		SignatureJSON:   `{"params":["order Order"],"returns":["error"]}`,
		Summary:         "Processes an order end to end, validating then persisting it.",
		InvariantsJSON:  `["order.ID must be non-empty","validated before persistence"]`,
		SideEffectsJSON: `["writes to orders table"]`,
		UpdatedAt:       time.Now(),
	}))
	require.NoError(t, s.UpsertSymbol(ctx, types.Symbol{
		SymbolID: "sym-validate", RepoID: "svc", FileID: "f1", Kind: types.KindFunction,
		Name: "ValidateOrder", Language: "go", UpdatedAt: time.Now(),
	}))
	require.NoError(t, s.UpsertEdge(ctx, types.Edge{
		RepoID: "svc", FromSymbolID: "sym-process", ToSymbolID: "sym-validate",
		Type: types.EdgeCall, Confidence: 1.0, CreatedAt: time.Now(),
	}))
	require.NoError(t, s.UpsertMetrics(ctx, types.Metrics{
		SymbolID: "sym-process", FanIn: 3, FanOut: 1, Churn30d: 2,
	}))
}

func processItem() slicer.Item {
	return slicer.Item{SymbolID: "sym-process", Score: 1.0, Hop: 0, Why: "explicit"}
}

func TestProjectMinimalOmitsHigherLevelFields(t *testing.T) {
	s := openTestStore(t)
	seedProcessOrder(t, s)
	p := card.NewProjector(s, "v1")

	c, notModified, err := p.Project(context.Background(), processItem(), types.DetailMinimal, 0, "")
	require.NoError(t, err)
	require.Nil(t, notModified)

	assert.Equal(t, types.SymbolID("sym-process"), c.SymbolID)
	assert.Equal(t, "order.go", c.File)
	assert.Equal(t, "ProcessOrder", c.Name)
	assert.Nil(t, c.Signature)
	assert.Nil(t, c.Deps)
	assert.Empty(t, c.Summary)
	assert.NotEmpty(t, c.ETag)
}

func TestProjectFullIncludesEverything(t *testing.T) {
	s := openTestStore(t)
	seedProcessOrder(t, s)
	p := card.NewProjector(s, "v1")

	c, notModified, err := p.Project(context.Background(), processItem(), types.DetailFull, 0, "")
	require.NoError(t, err)
	require.Nil(t, notModified)

	assert.NotNil(t, c.Signature)
	require.NotNil(t, c.Deps)
	assert.Contains(t, c.Deps.Calls, "sym-validate")
	assert.NotEmpty(t, c.Invariants)
	assert.NotEmpty(t, c.SideEffects)
	require.NotNil(t, c.Metrics)
	assert.Equal(t, 3, c.Metrics.FanIn)
}

func TestProjectAutoDowngradesWhenOverBudget(t *testing.T) {
	s := openTestStore(t)
	seedProcessOrder(t, s)
	p := card.NewProjector(s, "v1")

	c, notModified, err := p.Project(context.Background(), processItem(), types.DetailFull, 1, "")
	require.NoError(t, err)
	require.Nil(t, notModified)

	assert.True(t, c.DetailLevel.Downgraded)
	assert.True(t, c.DetailLevel.BudgetAdaptive, "a budget-driven downgrade must be reported as such")
	assert.NotEqual(t, types.DetailFull, c.DetailLevel.Effective)
	assert.NotEmpty(t, c.DetailLevel.Reason)

	raw, err := json.Marshal(c.DetailLevel)
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, true, wire["budgetAdaptive"])
}

func TestProjectNotDowngradedReportsBudgetAdaptiveFalse(t *testing.T) {
	s := openTestStore(t)
	seedProcessOrder(t, s)
	p := card.NewProjector(s, "v1")

	c, _, err := p.Project(context.Background(), processItem(), types.DetailFull, 0, "")
	require.NoError(t, err)

	assert.False(t, c.DetailLevel.Downgraded)
	assert.False(t, c.DetailLevel.BudgetAdaptive)
}

func TestProjectReturnsNotModifiedForMatchingEtag(t *testing.T) {
	s := openTestStore(t)
	seedProcessOrder(t, s)
	p := card.NewProjector(s, "v1")

	first, _, err := p.Project(context.Background(), processItem(), types.DetailCompact, 0, "")
	require.NoError(t, err)

	_, nm, err := p.Project(context.Background(), processItem(), types.DetailCompact, 0, first.ETag)
	require.NoError(t, err)
	require.NotNil(t, nm)
	assert.Equal(t, first.ETag, nm.ETag)
}

func TestProjectEtagIsIdempotentAcrossCalls(t *testing.T) {
	s := openTestStore(t)
	seedProcessOrder(t, s)
	p := card.NewProjector(s, "v1")

	a, _, err := p.Project(context.Background(), processItem(), types.DetailCompact, 0, "")
	require.NoError(t, err)
	b, _, err := p.Project(context.Background(), processItem(), types.DetailCompact, 0, "")
	require.NoError(t, err)

	assert.Equal(t, a.ETag, b.ETag)
}

func TestWireV3ExpandsToV2WithSameDeps(t *testing.T) {
	s := openTestStore(t)
	seedProcessOrder(t, s)
	p := card.NewProjector(s, "v1")

	c, _, err := p.Project(context.Background(), processItem(), types.DetailFull, 0, "")
	require.NoError(t, err)

	items := []any{c}
	v2 := card.EncodeV2(items, nil, false, "")
	v3 := card.EncodeV3(items, nil, false, "")

	expanded, err := card.ExpandV3ToV2(v3)
	require.NoError(t, err)

	require.Len(t, expanded.Cards, 1)
	require.Len(t, v2.Cards, 1)
	assert.ElementsMatch(t, v2.Cards[0].Calls, expanded.Cards[0].Calls)
	assert.ElementsMatch(t, v2.Cards[0].Imports, expanded.Cards[0].Imports)
	assert.Equal(t, v2.Cards[0].Sym, expanded.Cards[0].Sym)
}

func TestWireV3RejectsMismatchedConfidenceLength(t *testing.T) {
	v3 := &card.CompactV3{
		Symbols: []string{"sym-process", "sym-validate"},
		Cards: []card.CompactCardV2{
			{Sym: "A"},
		},
		EdgeGroups: []card.EdgeGroupV3{
			{From: "A", Calls: []string{"B"}, Confidence: []float64{0.9, 0.1}},
		},
	}
	_, err := card.ExpandV3ToV2(v3)
	assert.Error(t, err)
}

func TestSpilloverPagesMatchSpecExample(t *testing.T) {
	entries := make([]card.SpilloverEntry, 45)
	for i := range entries {
		entries[i] = card.SpilloverEntry{SymbolID: types.SymbolID("s"), Score: float64(45 - i), Reason: "truncated"}
	}
	list := card.NewSpilloverList(entries)

	page1, err := list.Page("", 20)
	require.NoError(t, err)
	assert.Len(t, page1.Entries, 20)
	assert.Equal(t, "20", page1.Cursor)
	assert.True(t, page1.HasMore)

	page2, err := list.Page(page1.Cursor, 20)
	require.NoError(t, err)
	assert.Len(t, page2.Entries, 20)
	assert.Equal(t, "40", page2.Cursor)
	assert.True(t, page2.HasMore)

	page3, err := list.Page(page2.Cursor, 20)
	require.NoError(t, err)
	assert.Len(t, page3.Entries, 5)
	assert.False(t, page3.HasMore)
	assert.Empty(t, page3.Cursor)
}

func TestSpilloverPagingConcatenatesToOriginalOrder(t *testing.T) {
	var entries []card.SpilloverEntry
	for i := 0; i < 13; i++ {
		entries = append(entries, card.SpilloverEntry{SymbolID: types.SymbolID(string(rune('a' + i))), Score: float64(13 - i)})
	}
	list := card.NewSpilloverList(entries)

	var got []types.SymbolID
	cursor := ""
	for {
		page, err := list.Page(cursor, 5)
		require.NoError(t, err)
		for _, e := range page.Entries {
			got = append(got, e.SymbolID)
		}
		if !page.HasMore {
			break
		}
		cursor = page.Cursor
	}

	require.Len(t, got, 13)
	for i, e := range entries {
		assert.Equal(t, e.SymbolID, got[i])
	}
}
