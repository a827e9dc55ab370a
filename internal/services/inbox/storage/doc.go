// Package storage defines the inbox persistence contract shared by the
// domain service and its SQLite implementation.
package storage
