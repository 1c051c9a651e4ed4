package crawl

import "github.com/gaurav-prasanna/docmirror/core"

// Queue collects TOC entries in discovery order, dropping repeated paths.
type Queue struct {
	items []core.TocEntry
	seen  map[string]bool
	limit int
}

// NewQueue creates an empty Queue holding at most limit entries.
// A limit of 0 means unbounded.
func NewQueue(limit int) *Queue {
	return &Queue{seen: make(map[string]bool), limit: limit}
}

// Add enqueues e unless its path was seen or the queue is full.
// It reports whether e was added.
func (q *Queue) Add(e core.TocEntry) bool {
	if q.seen[e.Path] || q.Full() {
		return false
	}
	q.seen[e.Path] = true
	q.items = append(q.items, e)
	return true
}

// Full reports whether the limit was reached.
func (q *Queue) Full() bool {
	return q.limit > 0 && len(q.items) >= q.limit
}

// Len returns the number of entries.
func (q *Queue) Len() int {
	return len(q.items)
}

// Entries returns the entries in the order they were added.
func (q *Queue) Entries() []core.TocEntry {
	if q.items == nil {
		return []core.TocEntry{}
	}
	return q.items
}
