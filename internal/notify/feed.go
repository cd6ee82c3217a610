// Package notify keeps the most recent command outcomes for display.
package notify

import (
	"sync"
	"time"
)

// DefaultSize is the number of notifications kept when none is configured.
const DefaultSize = 50

type Notification struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Feed is a fixed-size ring of notifications. It is safe for concurrent use.
type Feed struct {
	mu    sync.Mutex
	items []Notification
	next  int
	count int
	now   func() time.Time
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultSize
	}
	return &Feed{items: make([]Notification, size), now: time.Now}
}

// Publish records a notification, evicting the oldest when the feed is full.
func (f *Feed) Publish(level, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items[f.next] = Notification{Level: level, Message: message, At: f.now()}
	f.next = (f.next + 1) % len(f.items)
	if f.count < len(f.items) {
		f.count++
	}
}

// Recent returns the kept notifications, newest first.
func (f *Feed) Recent() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Notification, 0, f.count)
	for i := 1; i <= f.count; i++ {
		idx := (f.next - i + len(f.items)) % len(f.items)
		out = append(out, f.items[idx])
	}
	return out
}
