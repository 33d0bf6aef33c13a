package store

import (
	"context"
	"time"
)

// EntryKind classifies a journal entry.
type EntryKind string

const (
	EntryStarted      EntryKind = "started"
	EntryStopped      EntryKind = "stopped"
	EntryConnected    EntryKind = "connected"
	EntryDisconnected EntryKind = "disconnected"
	EntryCommand      EntryKind = "command"
	EntryNote         EntryKind = "note"
	EntryRoom         EntryKind = "room"
)

// Entry is one audit record of server activity.
type Entry struct {
	ID        int64     `json:"id"`
	Kind      EntryKind `json:"kind"`
	SessionID string    `json:"session_id,omitempty"`
	Remote    string    `json:"remote,omitempty"`
	Text      string    `json:"text,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal persists an append-only audit trail.
// It never holds the room registry; rooms still live only in memory.
type Journal interface {
	// Append stores an entry and fills in its ID.
	Append(ctx context.Context, e *Entry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]*Entry, error)

	// CountByKind returns the number of entries of the given kind.
	CountByKind(ctx context.Context, kind EntryKind) (int, error)

	// Close closes the underlying database connection.
	Close() error
}
