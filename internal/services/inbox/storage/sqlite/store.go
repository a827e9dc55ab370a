// Package sqlite is the SQLite-backed inbox notification store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	sqlitemigrate "github.com/yallajay/inbox/internal/platform/storage/sqlitemigrate"
	"github.com/yallajay/inbox/internal/platform/timeouts"
	"github.com/yallajay/inbox/internal/services/inbox/invalidation"
	"github.com/yallajay/inbox/internal/services/inbox/livequery"
	"github.com/yallajay/inbox/internal/services/inbox/storage"
	"github.com/yallajay/inbox/internal/services/inbox/storage/sqlite/migrations"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"
)

const tracerName = "github.com/yallajay/inbox/internal/services/inbox/storage/sqlite"

const (
	insertNotificationSQL       = "INSERT OR REPLACE INTO `notifications` (`uid`,`id`,`title`,`body`,`timestamp`,`isRead`) VALUES (nullif(?, 0),?,?,?,?,?)"
	clearNotificationsSQL       = "DELETE FROM notifications"
	listNotificationsSQL        = "SELECT * FROM notifications ORDER BY timestamp DESC"
	markNotificationReadSQL     = "UPDATE notifications SET isRead = 1 WHERE uid = ?"
	markAllNotificationsReadSQL = "UPDATE notifications SET isRead = 1 WHERE isRead = 0"
	countUnreadNotificationsSQL = "SELECT COUNT(1) FROM notifications WHERE isRead = 0"
)

var _ storage.ObservableNotificationStore = (*Store)(nil)

// Store provides SQLite-backed persistence for the notification inbox.
type Store struct {
	sqlDB   *sql.DB
	tracker *invalidation.Tracker
	tracer  trace.Tracer
	stmts   statements
	// closed is set once by Close; sqlDB is never reassigned after Open so
	// background observers can still read it.
	closed atomic.Bool
}

// statements are prepared once at Open and reused for the store's lifetime.
type statements struct {
	insert      *sql.Stmt
	clear       *sql.Stmt
	list        *sql.Stmt
	markRead    *sql.Stmt
	markAllRead *sql.Stmt
	countUnread *sql.Stmt
}

// Option customizes a Store at Open.
type Option func(*Store)

// WithTracker shares an invalidation tracker with other stores on the same
// database file.
func WithTracker(tracker *invalidation.Tracker) Option {
	return func(s *Store) {
		if tracker != nil {
			s.tracker = tracker
		}
	}
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(s *Store) {
		if provider != nil {
			s.tracer = provider.Tracer(tracerName)
		}
	}
}

// Open opens an inbox SQLite store at the provided path, applies migrations
// and prepares the statement set.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	// _txlock=immediate takes the write lock at BEGIN so mutations serialize.
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		filepath.Clean(path), timeouts.StoreBusy.Milliseconds())
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{
		sqlDB:   sqlDB,
		tracker: invalidation.NewTracker(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(store)
	}

	ctx := context.Background()
	if _, err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if err := store.prepare(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) prepare(ctx context.Context) error {
	for _, p := range []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.stmts.insert, insertNotificationSQL},
		{&s.stmts.clear, clearNotificationsSQL},
		{&s.stmts.list, listNotificationsSQL},
		{&s.stmts.markRead, markNotificationReadSQL},
		{&s.stmts.markAllRead, markAllNotificationsReadSQL},
		{&s.stmts.countUnread, countUnreadNotificationsSQL},
	} {
		stmt, err := s.sqlDB.PrepareContext(ctx, p.query)
		if err != nil {
			return fmt.Errorf("prepare %q: %w", p.query, err)
		}
		*p.dst = stmt
	}
	return nil
}

// Close releases prepared statements and closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil || s.closed.Swap(true) {
		return nil
	}
	var errs []error
	for _, stmt := range []*sql.Stmt{
		s.stmts.insert, s.stmts.clear, s.stmts.list,
		s.stmts.markRead, s.stmts.markAllRead, s.stmts.countUnread,
	} {
		if stmt != nil {
			errs = append(errs, stmt.Close())
		}
	}
	errs = append(errs, s.sqlDB.Close())
	return errors.Join(errs...)
}

// Tracker returns the invalidation tracker notified after each committed write.
func (s *Store) Tracker() *invalidation.Tracker {
	if s == nil {
		return nil
	}
	return s.tracker
}

// InsertNotification inserts notification, replacing any row with the same
// uid, and returns the row's uid. A zero uid is assigned by the database.
func (s *Store) InsertNotification(ctx context.Context, notification storage.Notification) (uid int64, err error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	ctx, span := s.tracer.Start(ctx, "InsertNotification")
	defer func() { endSpan(span, err) }()

	err = s.inTx(ctx, "insert notification", func(tx *sql.Tx) error {
		result, err := tx.StmtContext(ctx, s.stmts.insert).ExecContext(ctx,
			notification.UID,
			notification.ID,
			notification.Title,
			notification.Body,
			notification.Timestamp,
			boolToInt(notification.IsRead),
		)
		if err != nil {
			return err
		}
		uid, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("inbox.notification.uid", uid))
	s.tracker.Invalidate(storage.NotificationsTable)
	return uid, nil
}

// ClearAllNotifications deletes every notification row. Observers are only
// notified when rows were removed.
func (s *Store) ClearAllNotifications(ctx context.Context) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	ctx, span := s.tracer.Start(ctx, "ClearAllNotifications")
	defer func() { endSpan(span, err) }()

	var removed int64
	err = s.inTx(ctx, "clear notifications", func(tx *sql.Tx) error {
		result, err := tx.StmtContext(ctx, s.stmts.clear).ExecContext(ctx)
		if err != nil {
			return err
		}
		removed, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int64("inbox.notifications.removed", removed))
	if removed > 0 {
		s.tracker.Invalidate(storage.NotificationsTable)
	}
	return nil
}

// MarkNotificationRead flags one notification as read.
func (s *Store) MarkNotificationRead(ctx context.Context, uid int64) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if uid <= 0 {
		return fmt.Errorf("notification uid must be positive")
	}
	ctx, span := s.tracer.Start(ctx, "MarkNotificationRead",
		trace.WithAttributes(attribute.Int64("inbox.notification.uid", uid)))
	defer func() { endSpan(span, err) }()

	err = s.inTx(ctx, "mark notification read", func(tx *sql.Tx) error {
		result, err := tx.StmtContext(ctx, s.stmts.markRead).ExecContext(ctx, uid)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.tracker.Invalidate(storage.NotificationsTable)
	return nil
}

// MarkAllNotificationsRead flags every unread notification as read and
// returns how many rows changed. Observers are only notified when that is
// non-zero.
func (s *Store) MarkAllNotificationsRead(ctx context.Context) (changed int64, err error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	ctx, span := s.tracer.Start(ctx, "MarkAllNotificationsRead")
	defer func() { endSpan(span, err) }()

	err = s.inTx(ctx, "mark all notifications read", func(tx *sql.Tx) error {
		result, err := tx.StmtContext(ctx, s.stmts.markAllRead).ExecContext(ctx)
		if err != nil {
			return err
		}
		changed, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		s.tracker.Invalidate(storage.NotificationsTable)
	}
	return changed, nil
}

// ListNotifications returns every notification, newest timestamp first.
func (s *Store) ListNotifications(ctx context.Context) (notifications []storage.Notification, err error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "ListNotifications")
	defer func() { endSpan(span, err) }()

	rows, err := s.stmts.list.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications, err = scanNotifications(rows)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("inbox.notifications.count", len(notifications)))
	return notifications, nil
}

// CountUnreadNotifications returns the number of unread notifications.
func (s *Store) CountUnreadNotifications(ctx context.Context) (count int, err error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	ctx, span := s.tracer.Start(ctx, "CountUnreadNotifications")
	defer func() { endSpan(span, err) }()

	if err := s.stmts.countUnread.QueryRowContext(ctx).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// ObserveNotifications publishes the full listing now and again after every
// committed write to the notifications table, until ctx is done.
func (s *Store) ObserveNotifications(ctx context.Context) <-chan livequery.Result[[]storage.Notification] {
	return livequery.Observe[[]storage.Notification](ctx, s.Tracker(), []string{storage.NotificationsTable}, s.ListNotifications)
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil || s.closed.Load() {
		return storage.ErrStoreNotConfigured
	}
	return nil
}

// inTx runs fn in one transaction, committing on success and rolling back on
// any error.
func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", op, err)
	}
	if err := fn(tx); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			_ = tx.Rollback()
			return err
		}
		cause := fmt.Errorf("%s: %w", op, err)
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback %s: %v", cause, op, rollbackErr)
		}
		return cause
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", op, err)
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
