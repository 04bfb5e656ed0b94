// Package dedup suppresses event frames replayed more than once, as happens
// when a resumed connection overlaps events already routed before the drop.
package dedup

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Window remembers the most recently seen message ids. A Window is not safe
// for concurrent use; the gateway only touches it from its reader goroutine.
type Window struct {
	seen *lru.Cache[string, struct{}]
}

// NewWindow creates a window holding up to size ids. A size of zero or less
// returns nil, and a nil *Window never reports duplicates.
func NewWindow(size int) *Window {
	if size <= 0 {
		return nil
	}

	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		// lru.New only fails for non-positive sizes
		return nil
	}
	return &Window{seen: cache}
}

// Seen reports whether id was already marked.
func (w *Window) Seen(id string) bool {
	if w == nil || id == "" {
		return false
	}
	return w.seen.Contains(id)
}

// Mark records id as routed.
func (w *Window) Mark(id string) {
	if w == nil || id == "" {
		return
	}
	w.seen.Add(id, struct{}{})
}

// Len returns the number of ids currently remembered.
func (w *Window) Len() int {
	if w == nil {
		return 0
	}
	return w.seen.Len()
}
