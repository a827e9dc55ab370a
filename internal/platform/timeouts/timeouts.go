// Package timeouts defines shared timeout constants used across the inbox.
package timeouts

import "time"

// TelemetryShutdown caps how long span export may block process exit.
const TelemetryShutdown = 5 * time.Second

// StoreBusy is how long a SQLite connection waits on a locked database
// before failing with SQLITE_BUSY.
const StoreBusy = 5 * time.Second
