package storage

import (
	"context"
	"errors"

	"github.com/yallajay/inbox/internal/services/inbox/livequery"
)

var (
	// ErrNotFound indicates a requested notification row is missing.
	ErrNotFound = errors.New("record not found")
	// ErrStoreNotConfigured indicates a nil or closed store was used.
	ErrStoreNotConfigured = errors.New("storage is not configured")
)

// NotificationsTable is the table every notification statement touches and
// the key observers watch for invalidation.
const NotificationsTable = "notifications"

// Notification is one locally persisted inbox item.
type Notification struct {
	// UID is the surrogate key. Zero means unset; the store assigns one.
	UID int64
	// ID is the push message id, or a generated one when the message had none.
	ID    string
	Title string
	Body  string
	// Timestamp is the receive time in Unix milliseconds.
	Timestamp int64
	IsRead    bool
}

// NotificationStore persists inbox notifications.
type NotificationStore interface {
	InsertNotification(ctx context.Context, notification Notification) (int64, error)
	ListNotifications(ctx context.Context) ([]Notification, error)
	ClearAllNotifications(ctx context.Context) error
	MarkNotificationRead(ctx context.Context, uid int64) error
	MarkAllNotificationsRead(ctx context.Context) (int64, error)
	CountUnreadNotifications(ctx context.Context) (int, error)
}

// ObservableNotificationStore publishes fresh listings whenever the
// notifications table changes.
type ObservableNotificationStore interface {
	NotificationStore
	ObserveNotifications(ctx context.Context) <-chan livequery.Result[[]Notification]
}
