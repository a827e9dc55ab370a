// Package domain holds inbox use-cases on top of the notification store.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yallajay/inbox/internal/platform/id"
	"github.com/yallajay/inbox/internal/services/inbox/livequery"
	"github.com/yallajay/inbox/internal/services/inbox/storage"
)

var (
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("notification store is not configured")
	// ErrTitleRequired indicates a push message arrived without a title.
	ErrTitleRequired = errors.New("notification title is required")
	// ErrBodyRequired indicates a push message arrived without a body.
	ErrBodyRequired = errors.New("notification body is required")
	// ErrUIDRequired indicates an operation needs a stored notification uid.
	ErrUIDRequired = errors.New("notification uid is required")
	// ErrInvalidUID indicates a negative uid was supplied.
	ErrInvalidUID = errors.New("notification uid must not be negative")
	// ErrNotFound indicates a notification record was not found.
	ErrNotFound = errors.New("notification not found")
	// ErrObservationUnsupported indicates the store cannot publish live listings.
	ErrObservationUnsupported = errors.New("notification store does not support observation")
	// ErrIDGeneratorNotConfigured indicates an ID generator is required.
	ErrIDGeneratorNotConfigured = errors.New("notification id generator is not configured")
)

// PushMessage is the part of an incoming push notification the inbox keeps.
type PushMessage struct {
	// MessageID is the push provider's message id; it may be empty.
	MessageID string
	Title     string
	Body      string
}

// Service orchestrates inbox behavior.
type Service struct {
	store storage.NotificationStore
	clock func() time.Time
	newID func() (string, error)
}

// NewService constructs inbox use-cases. Nil clock and newID fall back to
// time.Now and id.NewID.
func NewService(store storage.NotificationStore, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store: store,
		clock: clock,
		newID: newID,
	}
}

// Receive stores an incoming push message as an unread notification stamped
// with the current time. A message without an id gets a generated one.
func (s *Service) Receive(ctx context.Context, message PushMessage) (storage.Notification, error) {
	if s == nil || s.store == nil {
		return storage.Notification{}, ErrStoreNotConfigured
	}
	if s.newID == nil {
		return storage.Notification{}, ErrIDGeneratorNotConfigured
	}
	// Blank text is rejected, but the push payload is stored verbatim.
	if strings.TrimSpace(message.Title) == "" {
		return storage.Notification{}, ErrTitleRequired
	}
	if strings.TrimSpace(message.Body) == "" {
		return storage.Notification{}, ErrBodyRequired
	}

	notificationID := message.MessageID
	if strings.TrimSpace(notificationID) == "" {
		generated, err := s.newID()
		if err != nil {
			return storage.Notification{}, err
		}
		notificationID = generated
	}

	notification := storage.Notification{
		ID:        notificationID,
		Title:     message.Title,
		Body:      message.Body,
		Timestamp: s.clock().UTC().UnixMilli(),
		IsRead:    false,
	}
	uid, err := s.store.InsertNotification(ctx, notification)
	if err != nil {
		return storage.Notification{}, err
	}
	notification.UID = uid
	return notification, nil
}

// Save upserts notification as given and returns its uid.
func (s *Service) Save(ctx context.Context, notification storage.Notification) (int64, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	if notification.UID < 0 {
		return 0, ErrInvalidUID
	}
	return s.store.InsertNotification(ctx, notification)
}

// List returns the inbox newest-first.
func (s *Service) List(ctx context.Context) ([]storage.Notification, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	return s.store.ListNotifications(ctx)
}

// Clear removes every notification.
func (s *Service) Clear(ctx context.Context) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	return s.store.ClearAllNotifications(ctx)
}

// MarkRead acknowledges one notification.
func (s *Service) MarkRead(ctx context.Context, uid int64) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	if uid <= 0 {
		return ErrUIDRequired
	}
	err := s.store.MarkNotificationRead(ctx, uid)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// MarkAllRead acknowledges every unread notification.
func (s *Service) MarkAllRead(ctx context.Context) (int64, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	return s.store.MarkAllNotificationsRead(ctx)
}

// UnreadCount returns how many notifications are still unread.
func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	return s.store.CountUnreadNotifications(ctx)
}

// Watch streams the inbox listing until ctx is done. It requires a store that
// supports observation.
func (s *Service) Watch(ctx context.Context) (<-chan livequery.Result[[]storage.Notification], error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	observable, ok := s.store.(storage.ObservableNotificationStore)
	if !ok {
		return nil, ErrObservationUnsupported
	}
	return observable.ObserveNotifications(ctx), nil
}
