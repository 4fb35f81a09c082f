package card

import "encoding/json"

// SliceEnvelope is the standard wire family's top-level document (spec
// §4.I "standard: structural JSON mirroring the entity model"): one
// per-symbol record per card (or a notModified stub in its place), the
// frontier snapshot the engine reported, and truncation bookkeeping.
type SliceEnvelope struct {
	Cards        []json.RawMessage `json:"cards"`
	Frontier     []FrontierRef     `json:"frontier,omitempty"`
	WasTruncated bool              `json:"wasTruncated"`
	SpilloverRef string            `json:"spilloverRef,omitempty"`
}

// FrontierRef is the standard family's representation of a bounded
// frontier snapshot entry (spec §4.H/§4.I "frontier reference indices").
type FrontierRef struct {
	SymbolID string  `json:"symbolId"`
	Score    float64 `json:"score"`
	Why      string  `json:"why,omitempty"`
}

// EncodeV1 renders cards and the reported frontier as the standard wire
// family: plain structural JSON, one record per card, either the Card
// itself or a NotModified stub.
func EncodeV1(cards []any, frontier []FrontierRef, wasTruncated bool, spilloverRef string) (*SliceEnvelope, error) {
	raw := make([]json.RawMessage, 0, len(cards))
	for _, c := range cards {
		b, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return &SliceEnvelope{
		Cards:        raw,
		Frontier:     frontier,
		WasTruncated: wasTruncated,
		SpilloverRef: spilloverRef,
	}, nil
}
