// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"sort"
	"sync"
)

// Link is a link captured while formatting a line.
type Link struct {
	ID   LinkID
	Text string
	URL  string
}

// LinkTable binds link IDs to the URLs captured at parse time.
// Reads are safe from any goroutine; the renderer is the only writer.
type LinkTable struct {
	mu    sync.RWMutex
	links map[LinkID]Link
}

// NewLinkTable creates an empty table.
func NewLinkTable() *LinkTable {
	return &LinkTable{links: make(map[LinkID]Link)}
}

// Add registers links, replacing any previous binding for the same ID.
func (t *LinkTable) Add(links ...Link) {
	if len(links) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, l := range links {
		t.links[l.ID] = l
	}
}

// Resolve returns the URL bound to id.
func (t *LinkTable) Resolve(id LinkID) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.links[id]
	return l.URL, ok
}

// Get returns the full link record bound to id.
func (t *LinkTable) Get(id LinkID) (Link, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.links[id]
	return l, ok
}

// All returns every registered link ordered by ID.
func (t *LinkTable) All() []Link {
	t.mu.RLock()
	out := make([]Link, 0, len(t.links))
	for _, l := range t.links {
		out = append(out, l)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered links.
func (t *LinkTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.links)
}

// Clear drops every binding. IDs handed out later keep increasing.
func (t *LinkTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.links = make(map[LinkID]Link)
}
