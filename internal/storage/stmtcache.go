package storage

import (
	"container/list"
	"database/sql"
	"sync"
)

// stmtCache is a bounded, LRU-evicted cache of prepared statements keyed by
// query text (spec §4.C: "prepared-query cache of bounded size; LRU on a
// secondary metric" — here, recency of use).
type stmtCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used
}

type stmtEntry struct {
	query string
	stmt  *sql.Stmt
}

func newStmtCache(capacity int) *stmtCache {
	return &stmtCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *stmtCache) get(query string) (*sql.Stmt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[query]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*stmtEntry).stmt, true
}

func (c *stmtCache) put(query string, stmt *sql.Stmt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[query]; ok {
		c.order.MoveToFront(el)
		el.Value.(*stmtEntry).stmt = stmt
		return
	}
	el := c.order.PushFront(&stmtEntry{query: query, stmt: stmt})
	c.items[query] = el
	for c.order.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *stmtCache) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	entry := el.Value.(*stmtEntry)
	delete(c.items, entry.query)
	c.order.Remove(el)
	_ = entry.stmt.Close()
}

func (c *stmtCache) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.order.Front(); el != nil; el = el.Next() {
		_ = el.Value.(*stmtEntry).stmt.Close()
	}
	c.items = make(map[string]*list.Element)
	c.order = list.New()
}
