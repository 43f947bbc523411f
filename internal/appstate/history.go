package appstate

import "strings"

// History is a fixed-capacity ring of message payloads in arrival order.
// When full, appending evicts the oldest entry. Not safe for concurrent
// use; Model guards its History.
type History struct {
	entries []string
	start   int
	count   int
}

// NewHistory creates a History retaining at most maxEntries payloads.
// A non-positive maxEntries is treated as 1.
func NewHistory(maxEntries int) *History {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &History{entries: make([]string, maxEntries)}
}

// Append adds a payload, evicting the oldest one when full.
func (h *History) Append(text string) {
	if h.count < len(h.entries) {
		h.entries[(h.start+h.count)%len(h.entries)] = text
		h.count++
		return
	}
	h.entries[h.start] = text
	h.start = (h.start + 1) % len(h.entries)
}

// Clear removes all entries.
func (h *History) Clear() {
	for i := range h.entries {
		h.entries[i] = ""
	}
	h.start = 0
	h.count = 0
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	return h.count
}

// Cap returns the retention limit.
func (h *History) Cap() int {
	return len(h.entries)
}

// Entries returns a copy of the retained payloads, oldest first.
func (h *History) Entries() []string {
	out := make([]string, h.count)
	for i := 0; i < h.count; i++ {
		out[i] = h.entries[(h.start+i)%len(h.entries)]
	}
	return out
}

// Text joins the retained payloads with newlines.
func (h *History) Text() string {
	return strings.Join(h.Entries(), "\n")
}
