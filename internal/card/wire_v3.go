package card

// CompactV3 groups each source symbol's outgoing call/import edges into
// one record instead of scattering them per-card as v2 does (spec
// §4.I): `{from, c:[..], i:[..], cf:[..]}`, all positional indices into
// the shared Symbols table. cf holds one confidence value per entry in
// c, pairing with call edges only — v3's dependency groups record only
// the two edge kinds v2's Deps carries (imports, calls), so confidence,
// which this module only tracks meaningfully for call resolution
// strategy, has nowhere to attach for imports either; this is a
// documented reading of the spec's literal field list, not given
// explicit units there.
type CompactV3 struct {
	Files        []string            `json:"files"`
	Symbols      []string            `json:"symbols"`
	EdgeTypes    []string            `json:"edgeTypes"`
	Cards        []CompactCardV2     `json:"cards"`
	EdgeGroups   []EdgeGroupV3       `json:"edgeGroups"`
	Frontier     []CompactFrontierV2 `json:"frontier,omitempty"`
	WasTruncated bool                `json:"wasTruncated"`
	SpilloverRef string              `json:"spilloverRef,omitempty"`
}

// EdgeGroupV3 is one source symbol's grouped outgoing edges.
type EdgeGroupV3 struct {
	From       string    `json:"from"`
	Calls      []string  `json:"c,omitempty"`
	Imports    []string  `json:"i,omitempty"`
	Confidence []float64 `json:"cf,omitempty"`
}

// validate rejects mixed or malformed grouping (spec §4.I: "decoders
// MUST reject mixed or malformed grouping"): every index must resolve
// against symbols, and cf, when present, must have exactly one entry
// per call target.
func (g EdgeGroupV3) validate(symbols []string) error {
	if _, err := resolveIndex(symbols, g.From); err != nil {
		return err
	}
	for _, ref := range g.Calls {
		if _, err := resolveIndex(symbols, ref); err != nil {
			return err
		}
	}
	for _, ref := range g.Imports {
		if _, err := resolveIndex(symbols, ref); err != nil {
			return err
		}
	}
	if g.Confidence != nil && len(g.Confidence) != len(g.Calls) {
		return errMalformedGrouping
	}
	return nil
}

// EncodeV3 builds the compact v3 envelope: the same card/file/symbol
// tables EncodeV2 would produce, but with each card's deps pulled out
// into one grouped EdgeGroupV3 record per source symbol instead of
// living inline on the card.
func EncodeV3(items []any, frontier []FrontierRef, wasTruncated bool, spilloverRef string) *CompactV3 {
	v2 := EncodeV2(items, frontier, wasTruncated, spilloverRef)

	groups := make([]EdgeGroupV3, 0, len(v2.Cards))
	for i := range v2.Cards {
		c := &v2.Cards[i]
		if len(c.Imports) == 0 && len(c.Calls) == 0 {
			continue
		}
		group := EdgeGroupV3{From: c.Sym, Calls: c.Calls, Imports: c.Imports}
		groups = append(groups, group)
		c.Imports = nil
		c.Calls = nil
	}

	return &CompactV3{
		Files:        v2.Files,
		Symbols:      v2.Symbols,
		EdgeTypes:    v2.EdgeTypes,
		Cards:        v2.Cards,
		EdgeGroups:   groups,
		Frontier:     v2.Frontier,
		WasTruncated: v2.WasTruncated,
		SpilloverRef: v2.SpilloverRef,
	}
}

// ExpandV3ToV2 redistributes v3's grouped edges back onto each card's
// Imports/Calls lists, recovering a CompactV2 envelope byte-equivalent
// (modulo group ordering) to what EncodeV2 would have produced from the
// same slice, so older clients can still consume a v3 payload (spec
// §4.I: "a v3-to-v2 expander MUST be provided").
func ExpandV3ToV2(v3 *CompactV3) (*CompactV2, error) {
	bySym := make(map[string]int, len(v3.Cards))
	cards := make([]CompactCardV2, len(v3.Cards))
	copy(cards, v3.Cards)
	for i, c := range cards {
		bySym[c.Sym] = i
	}

	for _, g := range v3.EdgeGroups {
		if err := g.validate(v3.Symbols); err != nil {
			return nil, err
		}
		idx, ok := bySym[g.From]
		if !ok {
			return nil, errMalformedGrouping
		}
		cards[idx].Imports = append(cards[idx].Imports, g.Imports...)
		cards[idx].Calls = append(cards[idx].Calls, g.Calls...)
	}

	return &CompactV2{
		Files:        v3.Files,
		Symbols:      v3.Symbols,
		EdgeTypes:    v3.EdgeTypes,
		Cards:        cards,
		Frontier:     v3.Frontier,
		WasTruncated: v3.WasTruncated,
		SpilloverRef: v3.SpilloverRef,
	}, nil
}
