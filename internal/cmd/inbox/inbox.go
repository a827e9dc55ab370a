// Package inbox parses inbox command flags and runs one inbox action against
// the local notification database.
package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	entrypoint "github.com/yallajay/inbox/internal/platform/cmd"
	"github.com/yallajay/inbox/internal/services/inbox/domain"
	"github.com/yallajay/inbox/internal/services/inbox/storage"
	"github.com/yallajay/inbox/internal/services/inbox/storage/sqlite"
)

// Config holds inbox command configuration. Environment names carry the
// INBOX_ prefix.
type Config struct {
	DBPath    string        `env:"DB_PATH" envDefault:"data/inbox.db"`
	OpTimeout time.Duration `env:"OP_TIMEOUT" envDefault:"5s"`
	// Args is the action and its arguments left after flag parsing.
	Args []string
}

// ErrUnknownAction indicates an unsupported action name.
var ErrUnknownAction = errors.New("unknown action")

const usage = "usage: inbox [flags] receive|list|clear|read <uid>|read-all|unread|watch"

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The inbox SQLite database path")
	fs.DurationVar(&cfg.OpTimeout, "timeout", cfg.OpTimeout, "Timeout for one-shot actions")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.Args = fs.Args()
	return cfg, nil
}

// Run opens the inbox database and executes the configured action, writing
// JSON lines to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if len(cfg.Args) == 0 {
		return errors.New(usage)
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceInbox, func(ctx context.Context) error {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("create inbox data dir: %w", err)
		}
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open inbox store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close inbox store: %v", err)
			}
		}()
		runner := &runner{
			svc:     domain.NewService(store, nil, nil),
			out:     json.NewEncoder(out),
			timeout: cfg.OpTimeout,
		}
		return runner.run(ctx, cfg.Args[0], cfg.Args[1:])
	})
}

type runner struct {
	svc     *domain.Service
	out     *json.Encoder
	timeout time.Duration
}

type notificationView struct {
	UID       int64  `json:"uid"`
	ID        string `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
	IsRead    bool   `json:"isRead"`
}

type listingView struct {
	Notifications []notificationView `json:"notifications"`
}

func (r *runner) run(ctx context.Context, action string, args []string) error {
	action = strings.ToLower(strings.TrimSpace(action))
	if action == "watch" {
		return r.watch(ctx)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	switch action {
	case "receive":
		return r.receive(ctx, args)
	case "list":
		notifications, err := r.svc.List(ctx)
		if err != nil {
			return err
		}
		for _, notification := range notifications {
			if err := r.out.Encode(toView(notification)); err != nil {
				return err
			}
		}
		return nil
	case "clear":
		if err := r.svc.Clear(ctx); err != nil {
			return err
		}
		log.Printf("cleared all notifications")
		return nil
	case "read":
		if len(args) != 1 {
			return errors.New("read requires exactly one uid")
		}
		uid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("parse uid %q: %w", args[0], err)
		}
		return r.svc.MarkRead(ctx, uid)
	case "read-all":
		changed, err := r.svc.MarkAllRead(ctx)
		if err != nil {
			return err
		}
		return r.out.Encode(map[string]int64{"changed": changed})
	case "unread":
		count, err := r.svc.UnreadCount(ctx)
		if err != nil {
			return err
		}
		return r.out.Encode(map[string]int{"unread": count})
	default:
		return fmt.Errorf("%w %q: %s", ErrUnknownAction, action, usage)
	}
}

func (r *runner) receive(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("receive", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var message domain.PushMessage
	fs.StringVar(&message.MessageID, "id", "", "Push message id (generated when empty)")
	fs.StringVar(&message.Title, "title", "", "Notification title")
	fs.StringVar(&message.Body, "body", "", "Notification body")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse receive flags: %w", err)
	}
	notification, err := r.svc.Receive(ctx, message)
	if err != nil {
		return err
	}
	log.Printf("stored notification uid=%d id=%s", notification.UID, notification.ID)
	return r.out.Encode(toView(notification))
}

func (r *runner) watch(ctx context.Context) error {
	updates, err := r.svc.Watch(ctx)
	if err != nil {
		return err
	}
	for update := range updates {
		if update.Err != nil {
			log.Printf("watch query: %v", update.Err)
			continue
		}
		listing := listingView{Notifications: make([]notificationView, 0, len(update.Value))}
		for _, notification := range update.Value {
			listing.Notifications = append(listing.Notifications, toView(notification))
		}
		if err := r.out.Encode(listing); err != nil {
			return err
		}
	}
	return nil
}

func toView(notification storage.Notification) notificationView {
	return notificationView{
		UID:       notification.UID,
		ID:        notification.ID,
		Title:     notification.Title,
		Body:      notification.Body,
		Timestamp: notification.Timestamp,
		IsRead:    notification.IsRead,
	}
}
