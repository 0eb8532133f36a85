// Package locktab coordinates mutual exclusion between concurrent
// requests touching the same filesystem path.
//
// Table membership and actual locking are separate steps: Acquire only
// registers interest in a path and hands back the shared mutex for that
// path. Callers decide when to hold it and for how long (per chunk or
// for a whole request), so two writers with different lock disciplines
// still serialize against the same mutex instance.
package locktab

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Table maps canonical paths to reference-counted mutexes. Entries are
// created on first acquire and removed when the last holder releases,
// so the table stays empty while the server is idle.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Acquire registers the caller as a holder of the entry for path,
// creating it if needed. It does not lock the per-path mutex; use the
// returned handle for that. Every Acquire must be paired with exactly
// one Release.
func (t *Table) Acquire(path string) *Handle {
	t.mu.Lock()
	e, ok := t.entries[path]
	if !ok {
		e = &entry{}
		t.entries[path] = e
	}
	e.refs++
	t.mu.Unlock()
	return &Handle{table: t, path: path, entry: e}
}

// Len reports the number of live entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Handle is one caller's claim on a path's lock entry.
type Handle struct {
	table *Table
	path  string
	entry *entry
}

// Lock locks the per-path mutex shared by all holders of this path.
func (h *Handle) Lock() { h.entry.mu.Lock() }

// Unlock unlocks the per-path mutex.
func (h *Handle) Unlock() { h.entry.mu.Unlock() }

// Release drops the caller's claim. The entry is removed from the table
// when the last holder releases. The mutex must not be held.
func (h *Handle) Release() {
	h.table.mu.Lock()
	h.entry.refs--
	if h.entry.refs <= 0 {
		delete(h.table.entries, h.path)
	}
	h.table.mu.Unlock()
}
