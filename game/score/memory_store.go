package score

import "sync"

// MemoryStore implements Store in memory
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// HighScore returns the high score for the application
func (m *MemoryStore) HighScore(appID string) (int, error) {
	if appID == "" {
		return 0, ErrInvalidAppID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[appID].HighScore, nil
}

// Record keeps the result if it beats the high score
func (m *MemoryStore) Record(appID string, result Result) (bool, error) {
	if appID == "" {
		return false, ErrInvalidAppID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if result.Score <= m.entries[appID].HighScore {
		return false, nil
	}
	m.entries[appID] = entryFromResult(result)
	return true, nil
}

// Entry returns the stored entry for the application
func (m *MemoryStore) Entry(appID string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[appID]
	return e, ok
}
