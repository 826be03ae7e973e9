// Package memory provides a notify.Notifier that keeps the most recent
// notifications, for display and for tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/code-payments/token-lifecycle/pkg/notify"
)

// DefaultCapacity is the number of notifications kept when none is given.
const DefaultCapacity = 32

// Notifier records notifications in a bounded ring, oldest first.
type Notifier struct {
	mu       sync.Mutex
	capacity int
	items    []notify.Notification
}

var _ notify.Notifier = (*Notifier)(nil)

// New returns a Notifier keeping up to capacity notifications.
func New(capacity int) *Notifier {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Notifier{
		capacity: capacity,
	}
}

// Success implements notify.Notifier.Success
func (n *Notifier) Success(_ context.Context, message string) {
	n.add(notify.LevelSuccess, message)
}

// Failure implements notify.Notifier.Failure
func (n *Notifier) Failure(_ context.Context, message string) {
	n.add(notify.LevelFailure, message)
}

// Recent returns up to limit of the newest notifications, oldest first. A
// limit of zero returns everything kept.
func (n *Notifier) Recent(limit int) []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	items := n.items
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}

	res := make([]notify.Notification, len(items))
	copy(res, items)
	return res
}

// Reset drops every kept notification.
func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.items = nil
}

func (n *Notifier) add(level notify.Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.items = append(n.items, notify.Notification{
		Level:     level,
		Message:   message,
		CreatedAt: time.Now(),
	})
	if len(n.items) > n.capacity {
		n.items = append([]notify.Notification(nil), n.items[len(n.items)-n.capacity:]...)
	}
}
