package ledger

import (
	"github.com/slicegraph/slicegraph/internal/card"
	"github.com/slicegraph/slicegraph/internal/errs"
)

// GetSpillover pages through the symbols a prior truncated buildSlice
// dropped (spec §6 getSpillover, §4.I). spilloverHandle is the
// spilloverRef a buildSlice/refreshSlice result carried; an unknown or
// already-expired one is reported the same way a stale slice handle is,
// since both name a leased, process-lifetime artifact rather than a
// persisted row.
func (l *Ledger) GetSpillover(spilloverHandle string, cursor string, pageSize int) (card.SpilloverPage, error) {
	list, ok := l.spillovers[spilloverHandle]
	if !ok {
		return card.SpilloverPage{}, errs.HandleExpired(spilloverHandle)
	}
	return list.Page(cursor, pageSize)
}
