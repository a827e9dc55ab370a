// Package invalidation tracks table-level changes so observers can re-run
// their queries after a write commits.
package invalidation

import (
	"strings"
	"sync"
)

// Tracker fans table invalidations out to subscriptions watching those tables.
// The zero value is not usable; construct with NewTracker.
type Tracker struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{subs: make(map[*Subscription]struct{})}
}

// Subscription receives a signal whenever one of its tables is invalidated.
// Signals coalesce: at most one is pending at a time.
type Subscription struct {
	tracker *Tracker
	tables  map[string]struct{}
	signal  chan struct{}
	once    sync.Once
}

// Subscribe registers interest in tables. Names are matched case-insensitively.
func (t *Tracker) Subscribe(tables ...string) *Subscription {
	sub := &Subscription{
		tracker: t,
		tables:  make(map[string]struct{}, len(tables)),
		signal:  make(chan struct{}, 1),
	}
	for _, table := range tables {
		if name := normalize(table); name != "" {
			sub.tables[name] = struct{}{}
		}
	}

	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()
	return sub
}

// Invalidate marks tables as changed and signals every matching subscription.
// It never blocks on slow observers.
func (t *Tracker) Invalidate(tables ...string) {
	names := make([]string, 0, len(tables))
	for _, table := range tables {
		if name := normalize(table); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for sub := range t.subs {
		if sub.watches(names) {
			sub.notify()
		}
	}
}

// Len reports the number of live subscriptions.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// C returns the signal channel. It is never closed.
func (s *Subscription) C() <-chan struct{} {
	return s.signal
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.tracker.mu.Lock()
		delete(s.tracker.subs, s)
		s.tracker.mu.Unlock()
	})
}

func (s *Subscription) watches(names []string) bool {
	for _, name := range names {
		if _, ok := s.tables[name]; ok {
			return true
		}
	}
	return false
}

func (s *Subscription) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func normalize(table string) string {
	return strings.ToLower(strings.TrimSpace(table))
}
