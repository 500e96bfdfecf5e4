package core

import (
	"strings"
	"sync"
)

// ContextWindow holds a bounded FIFO history of recent post texts per
// conversation, supplied to the classifier as disambiguating context.
// In-memory only; conversations start empty after a restart.
type ContextWindow struct {
	capacity int
	windows  map[int64][]string
	mu       sync.RWMutex
}

// NewContextWindow creates a window keeping the last capacity texts per chat.
func NewContextWindow(capacity int) *ContextWindow {
	return &ContextWindow{
		capacity: capacity,
		windows:  make(map[int64][]string),
	}
}

// Append pushes text into a conversation's window, evicting the oldest
// entry past capacity.
func (w *ContextWindow) Append(chatID int64, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries := append(w.windows[chatID], text)
	if len(entries) > w.capacity {
		entries = entries[len(entries)-w.capacity:]
	}
	w.windows[chatID] = entries
}

// Render joins a conversation's window in chronological order with
// newline separators. An absent conversation renders as an empty string.
func (w *ContextWindow) Render(chatID int64) string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return strings.Join(w.windows[chatID], "\n")
}

// Len returns the number of entries held for a conversation.
func (w *ContextWindow) Len(chatID int64) int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return len(w.windows[chatID])
}
