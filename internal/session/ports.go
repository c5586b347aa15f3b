package session

import "context"

// KVStore is a string key/value slot store. Get reports ok=false for a missing key.
type KVStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// VolatileStore holds the live session. It may be cleared at any time
// (a closed tab, a reset storage partition).
type VolatileStore interface {
	KVStore
}

// DurableStore outlives the volatile store and holds backups and history.
type DurableStore interface {
	KVStore
}

// Storage keys.
const (
	CurrentSessionKey = "quiz_current_session"
	BackupKey         = "quiz_session_backup"
	BackupTimeKey     = "quiz_session_backup_time"
	HistoryKey        = "quiz_session_history"
)
