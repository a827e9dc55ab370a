// Package livequery re-runs a read query whenever a watched table is
// invalidated and publishes the latest result to an observer.
package livequery

import (
	"context"
	"errors"

	"github.com/yallajay/inbox/internal/services/inbox/invalidation"
)

var (
	// ErrTrackerRequired indicates Observe was called without a tracker.
	ErrTrackerRequired = errors.New("invalidation tracker is required")
	// ErrQueryRequired indicates Observe was called without a query.
	ErrQueryRequired = errors.New("query is required")
)

// Query loads the current value of an observed result set.
type Query[T any] func(ctx context.Context) (T, error)

// Result carries one evaluation of a Query.
type Result[T any] struct {
	Value T
	Err   error
}

// Observe runs query on a background goroutine, once immediately and again
// after every invalidation of tables, and publishes each result on the
// returned channel. Only the latest unread result is kept. The channel is
// closed once ctx is done.
func Observe[T any](ctx context.Context, tracker *invalidation.Tracker, tables []string, query Query[T]) <-chan Result[T] {
	out := make(chan Result[T], 1)
	switch {
	case tracker == nil:
		out <- Result[T]{Err: ErrTrackerRequired}
		close(out)
		return out
	case query == nil:
		out <- Result[T]{Err: ErrQueryRequired}
		close(out)
		return out
	}

	// Subscribe before the first run so a write racing it still triggers a refresh.
	sub := tracker.Subscribe(tables...)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			value, err := query(ctx)
			if ctx.Err() != nil {
				return
			}
			publishLatest(out, Result[T]{Value: value, Err: err})

			select {
			case <-ctx.Done():
				return
			case <-sub.C():
			}
		}
	}()
	return out
}

// publishLatest replaces an unread result with next. out must have capacity
// one and a single sender.
func publishLatest[T any](out chan Result[T], next Result[T]) {
	for {
		select {
		case out <- next:
			return
		default:
		}
		select {
		case <-out:
		default:
		}
	}
}
