package score

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore implements Store using a single JSON file keyed by application identity
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file-backed score store. The file is created on the first record.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("scores file path cannot be empty")
	}

	// Create the parent directory if it doesn't exist
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create scores directory: %w", err)
		}
	}

	return &FileStore{path: path}, nil
}

// Path returns the file the store writes to
func (fs *FileStore) Path() string {
	return fs.path
}

// HighScore returns the stored high score, 0 if the file or entry is missing
func (fs *FileStore) HighScore(appID string) (int, error) {
	if appID == "" {
		return 0, ErrInvalidAppID
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := fs.load()
	if err != nil {
		return 0, err
	}
	return entries[appID].HighScore, nil
}

// Entry returns the stored entry for the application
func (fs *FileStore) Entry(appID string) (Entry, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := fs.load()
	if err != nil {
		return Entry{}, false, err
	}
	e, ok := entries[appID]
	return e, ok, nil
}

// Record overwrites the stored entry when the result beats it
func (fs *FileStore) Record(appID string, result Result) (bool, error) {
	if appID == "" {
		return false, ErrInvalidAppID
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := fs.load()
	if err != nil {
		return false, err
	}
	if result.Score <= entries[appID].HighScore {
		return false, nil
	}

	entries[appID] = entryFromResult(result)
	if err := fs.save(entries); err != nil {
		return false, err
	}
	return true, nil
}

// load reads the scores file. Must be called with fs.mu held.
func (fs *FileStore) load() (map[string]Entry, error) {
	entries := make(map[string]Entry)

	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read scores file: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}

	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scores: %w", err)
	}
	return entries, nil
}

// save writes the scores file through a temp file and rename. Must be called with fs.mu held.
func (fs *FileStore) save(entries map[string]Entry) error {
	jsonData, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scores: %w", err)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write scores file: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("failed to replace scores file: %w", err)
	}
	return nil
}
