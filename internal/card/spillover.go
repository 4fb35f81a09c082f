package card

import (
	"strconv"

	"github.com/slicegraph/slicegraph/internal/slicer"
	"github.com/slicegraph/slicegraph/internal/types"
)

// defaultSpilloverPageSize is spec §4.I's named default for getSpillover.
const defaultSpilloverPageSize = 20

// SpilloverEntry is one symbol dropped by truncation, as recorded into a
// slice handle's spilloverRef (spec §4.I: "the dropped list (ordered by
// score, annotated with reason and priority)").
type SpilloverEntry struct {
	SymbolID types.SymbolID `json:"symbolId"`
	Score    float64        `json:"score"`
	Reason   string         `json:"reason"`

	// Priority ranks how close this entry came to making the cut. The
	// spec names the field but not its derivation; this module uses
	// negative hop distance from the nearest seed (closer symbols rank
	// higher), which is the only ordering signal BuildSlice's Frontier
	// items carry beyond score itself.
	Priority int `json:"priority"`
}

// BuildSpilloverEntries converts a BuildSlice result's dropped list
// (slicer.Result.Dropped) into the ordered dropped list spec §4.I calls
// for. frontier is already
// in priority order (score descending, symbol ID ascending); this
// preserves that order.
func BuildSpilloverEntries(frontier []slicer.Item, reason string) []SpilloverEntry {
	out := make([]SpilloverEntry, len(frontier))
	for i, item := range frontier {
		out[i] = SpilloverEntry{
			SymbolID: item.SymbolID,
			Score:    item.Score,
			Reason:   reason,
			Priority: -item.Hop,
		}
	}
	return out
}

// SpilloverList is the full dropped-symbol list recorded at truncation
// time, retrievable by page via getSpillover.
type SpilloverList struct {
	entries []SpilloverEntry
}

// NewSpilloverList wraps an already-ordered entry list for paginated
// retrieval.
func NewSpilloverList(entries []SpilloverEntry) *SpilloverList {
	return &SpilloverList{entries: entries}
}

// SpilloverPage is one page of a spillover retrieval.
type SpilloverPage struct {
	Entries []SpilloverEntry
	Cursor  string
	HasMore bool
}

// Page returns up to pageSize entries starting at cursor (the empty
// string means "from the start"), and the cursor to pass for the next
// page. Concatenating every page in order recovers the full list in the
// order it was recorded (spec §4.I invariant 8).
func (l *SpilloverList) Page(cursor string, pageSize int) (SpilloverPage, error) {
	if pageSize <= 0 {
		pageSize = defaultSpilloverPageSize
	}
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return SpilloverPage{}, errInvalidCursor
		}
		offset = n
	}
	if offset > len(l.entries) {
		offset = len(l.entries)
	}

	end := offset + pageSize
	if end > len(l.entries) {
		end = len(l.entries)
	}
	page := l.entries[offset:end]

	hasMore := end < len(l.entries)
	next := ""
	if hasMore {
		next = strconv.Itoa(end)
	}

	return SpilloverPage{Entries: page, Cursor: next, HasMore: hasMore}, nil
}

// Len reports the full dropped-list size, independent of paging.
func (l *SpilloverList) Len() int { return len(l.entries) }
