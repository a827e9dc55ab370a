package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/yallajay/inbox/internal/services/inbox/storage"
)

// notificationColumns are the columns a SELECT * row must carry.
var notificationColumns = []string{"uid", "id", "title", "body", "timestamp", "isRead"}

// columnIndex maps each required column to its position in columns.
func columnIndex(columns []string, required ...string) (map[string]int, error) {
	positions := make(map[string]int, len(columns))
	for i, name := range columns {
		positions[name] = i
	}
	index := make(map[string]int, len(required))
	for _, name := range required {
		pos, ok := positions[name]
		if !ok {
			return nil, fmt.Errorf("column %q not found in result set", name)
		}
		index[name] = pos
	}
	return index, nil
}

func scanNotifications(rows *sql.Rows) ([]storage.Notification, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read notification columns: %w", err)
	}
	index, err := columnIndex(columns, notificationColumns...)
	if err != nil {
		return nil, err
	}

	results := make([]storage.Notification, 0)
	for rows.Next() {
		var (
			record storage.Notification
			isRead int64
		)
		dest := make([]any, len(columns))
		for i := range dest {
			dest[i] = new(any)
		}
		dest[index["uid"]] = &record.UID
		dest[index["id"]] = &record.ID
		dest[index["title"]] = &record.Title
		dest[index["body"]] = &record.Body
		dest[index["timestamp"]] = &record.Timestamp
		dest[index["isRead"]] = &isRead

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan notification row: %w", err)
		}
		record.IsRead = isRead != 0
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification rows: %w", err)
	}
	return results, nil
}
