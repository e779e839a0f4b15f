package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"foodchat/internal/logger"

	"gopkg.in/yaml.v3"
)

// stateFile is the on-disk layout of a FileStore.
type stateFile struct {
	UpdatedAt time.Time         `yaml:"updated_at"`
	Values    map[string]string `yaml:"values"`
}

// FileStore persists values in a single YAML document. Every mutation rewrites the file
// through a temporary file and rename so a crash never leaves a truncated document.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
}

// NewFileStore opens (or creates on first write) the YAML store at path.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	fs := &FileStore{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run
	case err != nil:
		return nil, fmt.Errorf("read storage file %s: %w", path, err)
	default:
		var doc stateFile
		if err := yaml.Unmarshal(data, &doc); err != nil {
			// A corrupt file is treated as empty; it is overwritten on the next Set.
			logger.Warn("Ignoring unreadable storage file", "path", path, "error", err)
		} else if doc.Values != nil {
			fs.values = doc.Values
		}
	}

	logger.Debug("FileStore opened", "path", path, "keys", len(fs.values))
	return fs, nil
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Get returns the value stored under key.
func (f *FileStore) Get(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[key]
	return v, ok
}

// Set stores value under key and flushes the file.
func (f *FileStore) Set(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	f.flushLocked()
}

// Remove deletes key and flushes the file.
func (f *FileStore) Remove(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return
	}
	delete(f.values, key)
	f.flushLocked()
}

func (f *FileStore) flushLocked() {
	data, err := yaml.Marshal(stateFile{UpdatedAt: time.Now().UTC(), Values: f.values})
	if err != nil {
		logger.Error("Failed to encode storage file", "path", f.path, "error", err)
		return
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".foodchat-state-*")
	if err != nil {
		logger.Error("Failed to create temporary storage file", "path", f.path, "error", err)
		return
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		logger.Error("Failed to write storage file", "path", f.path, "error", err)
		return
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		logger.Error("Failed to close storage file", "path", f.path, "error", err)
		return
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		logger.Warn("Failed to restrict storage file permissions", "path", tmpName, "error", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		logger.Error("Failed to replace storage file", "path", f.path, "error", err)
	}
}
