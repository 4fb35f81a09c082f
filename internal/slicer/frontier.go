package slicer

import "container/heap"

// frontierEntry wraps an Item for container/heap; it keeps no heap index
// since the engine never updates an entry in place, only pushes and pops.
type frontierEntry struct {
	Item
}

// frontierQueue is a max-heap on Score, tie-broken by symbol ID ascending
// (spec §4.H: "within a score bucket, the order is symbol-ID ascending").
type frontierQueue []*frontierEntry

func newFrontierQueue() *frontierQueue {
	q := make(frontierQueue, 0)
	return &q
}

func (q frontierQueue) Len() int { return len(q) }

func (q frontierQueue) Less(i, j int) bool {
	if q[i].Score != q[j].Score {
		return q[i].Score > q[j].Score
	}
	return q[i].SymbolID < q[j].SymbolID
}

func (q frontierQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *frontierQueue) Push(x any) {
	*q = append(*q, x.(*frontierEntry))
}

func (q *frontierQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// snapshotFrontier returns up to k remaining frontier items in priority
// order without mutating pq (spec §4.H: "a bounded frontier snapshot
// (top-K remaining)").
func snapshotFrontier(pq *frontierQueue, k int) []Item {
	if k <= 0 || pq.Len() == 0 {
		return nil
	}
	cp := make(frontierQueue, len(*pq))
	copy(cp, *pq)

	n := k
	if n > len(cp) {
		n = len(cp)
	}
	out := make([]Item, 0, n)
	for i := 0; i < n; i++ {
		// Repeated pop-the-min-of-remaining on the copy; cheap for the
		// small K the spec calls for, and keeps the real queue untouched.
		best := 0
		for j := 1; j < len(cp); j++ {
			if cp.Less(j, best) {
				best = j
			}
		}
		out = append(out, cp[best].Item)
		cp = append(cp[:best], cp[best+1:]...)
	}
	return out
}

// drainFrontier returns every remaining frontier item in priority order,
// leaving pq untouched. Unlike snapshotFrontier's top-K (the bounded inline
// "remaining frontier" the wire envelope carries), this is the full
// truncation-dropped set a slice handle's spilloverRef must record (spec
// §4.I: "the dropped list", and §8 property 8's paging-recovers-the-full-
// set guarantee) — nothing past the snapshot size is lost here.
func drainFrontier(pq *frontierQueue) []Item {
	if pq.Len() == 0 {
		return nil
	}
	cp := make(frontierQueue, len(*pq))
	copy(cp, *pq)

	out := make([]Item, 0, len(cp))
	for cp.Len() > 0 {
		out = append(out, heap.Pop(&cp).(*frontierEntry).Item)
	}
	return out
}
