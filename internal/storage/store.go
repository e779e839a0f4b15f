// Package storage provides the key/value persistence used for the credential token and the
// conversation session identity. Backends never surface errors to callers: failures are logged
// and reads fall back to "absent".
package storage

import (
	"fmt"
	"strings"
)

// Keys persisted by the session controller.
const (
	KeyAccessToken = "access_token"
	KeySessionID   = "session_id"
)

// Store is a durable string key/value store.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open constructs the store for the named backend. Path is ignored for the memory backend.
func Open(backend, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile, "":
		if path == "" {
			return nil, fmt.Errorf("file storage requires a path")
		}
		return NewFileStore(path)
	case BackendSQLite:
		if path == "" {
			return nil, fmt.Errorf("sqlite storage requires a path")
		}
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q (expected memory, file or sqlite)", backend)
	}
}
