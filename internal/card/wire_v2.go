package card

import "encoding/json"

// edgeTypeTable is the fixed, shared ordering compact v2/v3 ship
// alongside their cards: the full set of edge types a decoder might
// encounter, in case a richer client wants to classify a dep reference
// beyond this package's own imports/calls split. "unknown" covers any
// type added later without breaking already-shipped table positions.
var edgeTypeTable = []string{"call", "import", "config", "unknown"}

// internTable assigns each distinct string a stable, monotonically
// increasing index and hands back its base-63 encoding, so repeated
// references (a file path shared by many cards, a symbol ID referenced
// as both a card and a dep) cost a few bytes instead of the full string
// every time.
type internTable struct {
	values []string
	index  map[string]int
}

func newInternTable() *internTable {
	return &internTable{index: make(map[string]int)}
}

func (t *internTable) intern(s string) string {
	if i, ok := t.index[s]; ok {
		return encodeCompactIndex(i)
	}
	i := len(t.values)
	t.values = append(t.values, s)
	t.index[s] = i
	return encodeCompactIndex(i)
}

// CompactV2 is the spec's compact v2 wire family (spec §4.I): shared
// file-path and symbol-ID tables so every card and dep reference is a
// short positional index rather than a repeated string, plus a fixed
// edge-type table.
type CompactV2 struct {
	Files        []string         `json:"files"`
	Symbols      []string         `json:"symbols"`
	EdgeTypes    []string         `json:"edgeTypes"`
	Cards        []CompactCardV2  `json:"cards"`
	Frontier     []CompactFrontierV2 `json:"frontier,omitempty"`
	WasTruncated bool             `json:"wasTruncated"`
	SpilloverRef string           `json:"spilloverRef,omitempty"`
}

// CompactCardV2 is one card, positionally encoded: every symbol/file
// reference is a base-63 index into CompactV2's Files/Symbols tables
// rather than the literal string.
type CompactCardV2 struct {
	Sym      string          `json:"s"`
	File     string          `json:"f"`
	Range    [4]int          `json:"r"`
	Kind     string          `json:"k"`
	Name     string          `json:"n"`
	Exported bool            `json:"x"`
	Version  string          `json:"v"`
	Detail   string          `json:"d"`
	ETag     string          `json:"e"`

	Signature json.RawMessage `json:"sig,omitempty"`

	Imports []string `json:"di,omitempty"`
	Calls   []string `json:"dc,omitempty"`

	Summary     string   `json:"sm,omitempty"`
	Invariants  []string `json:"iv,omitempty"`
	SideEffects []string `json:"se,omitempty"`

	NotModified bool `json:"nm,omitempty"`
}

// CompactFrontierV2 is a positionally encoded frontier snapshot entry.
type CompactFrontierV2 struct {
	Sym   string  `json:"s"`
	Score float64 `json:"sc"`
	Why   string  `json:"w,omitempty"`
}

// EncodeV2 builds the compact v2 envelope for a set of cards (Card or
// NotModified values) and a frontier snapshot, interning every file path
// and symbol ID referenced into the shared tables.
func EncodeV2(items []any, frontier []FrontierRef, wasTruncated bool, spilloverRef string) *CompactV2 {
	files := newInternTable()
	symbols := newInternTable()

	cards := make([]CompactCardV2, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case *Card:
			cc := CompactCardV2{
				Sym:      symbols.intern(string(v.SymbolID)),
				File:     files.intern(v.File),
				Range:    [4]int{v.Range.StartLine, v.Range.StartCol, v.Range.EndLine, v.Range.EndCol},
				Kind:     string(v.Kind),
				Name:     v.Name,
				Exported: v.Exported,
				Version:  string(v.Version),
				Detail:   v.DetailLevel.Effective.String(),
				ETag:     v.ETag,
				Signature: v.Signature,
				Summary:   v.Summary,
				Invariants:  v.Invariants,
				SideEffects: v.SideEffects,
			}
			if v.Deps != nil {
				for _, imp := range v.Deps.Imports {
					cc.Imports = append(cc.Imports, symbols.intern(imp))
				}
				for _, call := range v.Deps.Calls {
					cc.Calls = append(cc.Calls, symbols.intern(call))
				}
			}
			cards = append(cards, cc)
		case *NotModified:
			cards = append(cards, CompactCardV2{
				Sym:         symbols.intern(string(v.SymbolID)),
				ETag:        v.ETag,
				NotModified: true,
			})
		}
	}

	var compactFrontier []CompactFrontierV2
	for _, f := range frontier {
		compactFrontier = append(compactFrontier, CompactFrontierV2{
			Sym:   symbols.intern(f.SymbolID),
			Score: f.Score,
			Why:   f.Why,
		})
	}

	return &CompactV2{
		Files:        files.values,
		Symbols:      symbols.values,
		EdgeTypes:    edgeTypeTable,
		Cards:        cards,
		Frontier:     compactFrontier,
		WasTruncated: wasTruncated,
		SpilloverRef: spilloverRef,
	}
}

// resolveIndex decodes a base-63 positional reference against table,
// returning the referenced string. Used by both the v2 decoder and the
// v3-to-v2 expander.
func resolveIndex(table []string, ref string) (string, error) {
	i, err := decodeCompactIndex(ref)
	if err != nil {
		return "", err
	}
	if i < 0 || i >= len(table) {
		return "", errIndexOutOfRange
	}
	return table[i], nil
}
