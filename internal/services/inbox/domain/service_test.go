package domain

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/yallajay/inbox/internal/services/inbox/storage"
)

func TestReceiveStoresUnreadNotification(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)
	store := newFakeStore()
	svc := NewService(store, fixedClock(now), sequentialIDGenerator("generated-1"))

	got, err := svc.Receive(context.Background(), PushMessage{MessageID: " fcm-1 ", Title: " Order ready ", Body: "Pick it up"})
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got.UID != 1 {
		t.Fatalf("expected assigned uid 1, got %d", got.UID)
	}
	if got.ID != " fcm-1 " {
		t.Fatalf("expected push message id, got %q", got.ID)
	}
	if got.Title != " Order ready " || got.Body != "Pick it up" {
		t.Fatalf("expected push text stored unchanged, got %+v", got)
	}
	stored := store.rows[got.UID]
	if stored.Title != " Order ready " || stored.ID != " fcm-1 " {
		t.Fatalf("expected stored row to keep push text, got %+v", stored)
	}
	if got.Timestamp != now.UnixMilli() {
		t.Fatalf("expected timestamp %d, got %d", now.UnixMilli(), got.Timestamp)
	}
	if got.IsRead {
		t.Fatal("expected received notification to be unread")
	}
	if store.count() != 1 {
		t.Fatalf("expected one stored notification, got %d", store.count())
	}
}

func TestReceiveGeneratesIDWhenMissing(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore(), fixedClock(time.Unix(0, 0)), sequentialIDGenerator("generated-1"))
	got, err := svc.Receive(context.Background(), PushMessage{MessageID: "  ", Title: "t", Body: "b"})
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got.ID != "generated-1" {
		t.Fatalf("expected generated id, got %q", got.ID)
	}
}

func TestReceiveValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message PushMessage
		want    error
	}{
		{name: "missing title", message: PushMessage{Body: "b"}, want: ErrTitleRequired},
		{name: "blank title", message: PushMessage{Title: "  ", Body: "b"}, want: ErrTitleRequired},
		{name: "missing body", message: PushMessage{Title: "t"}, want: ErrBodyRequired},
		{name: "blank body", message: PushMessage{Title: "t", Body: "\n\t"}, want: ErrBodyRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newFakeStore(), nil, nil)
			if _, err := svc.Receive(context.Background(), tt.message); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestReceivePropagatesIDGeneratorError(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore(), nil, sequentialIDGenerator())
	if _, err := svc.Receive(context.Background(), PushMessage{Title: "t", Body: "b"}); !errors.Is(err, errIDsExhausted) {
		t.Fatalf("expected generator error, got %v", err)
	}
}

func TestListClearAndReadFlags(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := NewService(store, fixedClock(base), nil)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		svc.clock = fixedClock(base.Add(time.Duration(i) * time.Minute))
		if _, err := svc.Receive(ctx, PushMessage{MessageID: id, Title: "t", Body: "b"}); err != nil {
			t.Fatalf("receive %s: %v", id, err)
		}
	}

	listed, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 3 || listed[0].ID != "c" || listed[2].ID != "a" {
		t.Fatalf("expected newest-first listing, got %+v", listed)
	}

	if err := svc.MarkRead(ctx, listed[0].UID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	unread, err := svc.UnreadCount(ctx)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if unread != 2 {
		t.Fatalf("expected 2 unread, got %d", unread)
	}
	changed, err := svc.MarkAllRead(ctx)
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if changed != 2 {
		t.Fatalf("expected 2 changed, got %d", changed)
	}

	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if store.count() != 0 {
		t.Fatalf("expected empty store after clear, got %d", store.count())
	}
}

func TestMarkReadErrors(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore(), nil, nil)
	if err := svc.MarkRead(context.Background(), 0); !errors.Is(err, ErrUIDRequired) {
		t.Fatalf("expected uid required, got %v", err)
	}
	if err := svc.MarkRead(context.Background(), 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSaveRejectsNegativeUID(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore(), nil, nil)
	if _, err := svc.Save(context.Background(), storage.Notification{UID: -1}); !errors.Is(err, ErrInvalidUID) {
		t.Fatalf("expected invalid uid, got %v", err)
	}
}

func TestServiceWithoutStore(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, nil, nil)
	ctx := context.Background()
	if _, err := svc.Receive(ctx, PushMessage{Title: "t", Body: "b"}); !errors.Is(err, ErrStoreNotConfigured) {
		t.Fatalf("receive: expected not configured, got %v", err)
	}
	if _, err := svc.List(ctx); !errors.Is(err, ErrStoreNotConfigured) {
		t.Fatalf("list: expected not configured, got %v", err)
	}
	if err := svc.Clear(ctx); !errors.Is(err, ErrStoreNotConfigured) {
		t.Fatalf("clear: expected not configured, got %v", err)
	}
	if _, err := svc.Watch(ctx); !errors.Is(err, ErrStoreNotConfigured) {
		t.Fatalf("watch: expected not configured, got %v", err)
	}
}

func TestWatchRequiresObservableStore(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore(), nil, nil)
	if _, err := svc.Watch(context.Background()); !errors.Is(err, ErrObservationUnsupported) {
		t.Fatalf("expected ErrObservationUnsupported, got %v", err)
	}
}

var errIDsExhausted = errors.New("id sequence exhausted")

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

func sequentialIDGenerator(ids ...string) func() (string, error) {
	var mu sync.Mutex
	next := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(ids) {
			return "", errIDsExhausted
		}
		id := ids[next]
		next++
		return id, nil
	}
}

type fakeStore struct {
	mu      sync.Mutex
	nextUID int64
	rows    map[int64]storage.Notification
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[int64]storage.Notification)}
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeStore) InsertNotification(_ context.Context, notification storage.Notification) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if notification.UID == 0 {
		f.nextUID++
		notification.UID = f.nextUID
	} else if notification.UID > f.nextUID {
		f.nextUID = notification.UID
	}
	f.rows[notification.UID] = notification
	return notification.UID, nil
}

func (f *fakeStore) ListNotifications(context.Context) ([]storage.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]storage.Notification, 0, len(f.rows))
	for _, row := range f.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

func (f *fakeStore) ClearAllNotifications(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = make(map[int64]storage.Notification)
	return nil
}

func (f *fakeStore) MarkNotificationRead(_ context.Context, uid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[uid]
	if !ok {
		return storage.ErrNotFound
	}
	row.IsRead = true
	f.rows[uid] = row
	return nil
}

func (f *fakeStore) MarkAllNotificationsRead(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var changed int64
	for uid, row := range f.rows {
		if !row.IsRead {
			row.IsRead = true
			f.rows[uid] = row
			changed++
		}
	}
	return changed, nil
}

func (f *fakeStore) CountUnreadNotifications(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unread := 0
	for _, row := range f.rows {
		if !row.IsRead {
			unread++
		}
	}
	return unread, nil
}
