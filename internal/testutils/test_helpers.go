package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"foodchat/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertionHelpers provides common assertion patterns
type AssertionHelpers struct {
	t *testing.T
}

// NewAssertionHelpers creates assertion helpers for a test
func NewAssertionHelpers(t *testing.T) *AssertionHelpers {
	return &AssertionHelpers{t: t}
}

// AssertStored checks that key holds expected in the store.
func (h *AssertionHelpers) AssertStored(store storage.Store, key, expected string) {
	h.t.Helper()
	actual, ok := store.Get(key)
	assert.True(h.t, ok, "key %s should be stored", key)
	assert.Equal(h.t, expected, actual, "key %s should equal %s", key, expected)
}

// AssertNotStored checks that key is absent from the store.
func (h *AssertionHelpers) AssertNotStored(store storage.Store, key string) {
	h.t.Helper()
	value, ok := store.Get(key)
	assert.False(h.t, ok, "key %s should not be stored (found %q)", key, value)
}

// AssertNoSession checks that neither the credential nor the session identity is stored.
func (h *AssertionHelpers) AssertNoSession(store storage.Store) {
	h.t.Helper()
	h.AssertNotStored(store, storage.KeyAccessToken)
	h.AssertNotStored(store, storage.KeySessionID)
}

// SeededStore returns a memory store holding the given pairs.
func SeededStore(pairs map[string]string) *storage.MemoryStore {
	store := storage.NewMemoryStore()
	for k, v := range pairs {
		store.Set(k, v)
	}
	return store
}

// FileHelpers provides utilities for working with test files
type FileHelpers struct{}

// NewFileHelpers creates a new file helpers instance
func NewFileHelpers() *FileHelpers {
	return &FileHelpers{}
}

// CreateTempFile creates a temporary file with given content
func (f *FileHelpers) CreateTempFile(t *testing.T, filename, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, filename)

	err := os.WriteFile(filePath, []byte(content), 0644)
	require.NoError(t, err, "Should create temp file successfully")

	return filePath
}

// CreateTempDir creates a temporary directory structure
func (f *FileHelpers) CreateTempDir(t *testing.T, files map[string]string) string {
	t.Helper()
	tmpDir := t.TempDir()

	for filename, content := range files {
		filePath := filepath.Join(tmpDir, filename)

		dir := filepath.Dir(filePath)
		if dir != tmpDir {
			err := os.MkdirAll(dir, 0755)
			require.NoError(t, err, "Should create directory %s", dir)
		}

		err := os.WriteFile(filePath, []byte(content), 0644)
		require.NoError(t, err, "Should create file %s", filename)
	}

	return tmpDir
}
