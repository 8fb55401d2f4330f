package listview

import (
	"net/url"
	"sync"
)

// MemoryNavigator is an in-memory browser history. It backs long-lived
// sessions (websocket consoles) and tests.
type MemoryNavigator struct {
	mu      sync.Mutex
	history []url.Values
	pos     int
}

// NewMemoryNavigator starts a history at initial.
func NewMemoryNavigator(initial url.Values) *MemoryNavigator {
	return &MemoryNavigator{history: []url.Values{cloneValues(initial)}}
}

// Query returns a copy of the current entry.
func (n *MemoryNavigator) Query() url.Values {
	n.mu.Lock()
	defer n.mu.Unlock()
	return cloneValues(n.history[n.pos])
}

// Navigate pushes q, dropping any forward entries.
func (n *MemoryNavigator) Navigate(q url.Values) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.history = append(n.history[:n.pos+1], cloneValues(q))
	n.pos = len(n.history) - 1
}

// Back moves one entry back. It reports false at the start of history.
func (n *MemoryNavigator) Back() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pos == 0 {
		return false
	}
	n.pos--
	return true
}

// Forward moves one entry forward. It reports false at the end of history.
func (n *MemoryNavigator) Forward() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pos >= len(n.history)-1 {
		return false
	}
	n.pos++
	return true
}

// Len returns the number of history entries.
func (n *MemoryNavigator) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.history)
}

func cloneValues(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, vs := range q {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
