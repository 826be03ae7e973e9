// Package notify delivers user facing operation outcomes.
package notify

import (
	"context"
	"time"
)

type Level uint8

const (
	LevelUnknown Level = iota
	LevelSuccess
	LevelFailure
)

// Notification is a single user facing message.
type Notification struct {
	Level     Level
	Message   string
	CreatedAt time.Time
}

// Notifier delivers success and failure messages to the user. Delivery is
// best effort and never fails the caller.
type Notifier interface {
	Success(ctx context.Context, message string)
	Failure(ctx context.Context, message string)
}

type tee []Notifier

// Tee fans every notification out to all notifiers, in order.
func Tee(notifiers ...Notifier) Notifier {
	return tee(notifiers)
}

func (t tee) Success(ctx context.Context, message string) {
	for _, n := range t {
		n.Success(ctx, message)
	}
}

func (t tee) Failure(ctx context.Context, message string) {
	for _, n := range t {
		n.Failure(ctx, message)
	}
}

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelFailure:
		return "failure"
	}
	return "unknown"
}
