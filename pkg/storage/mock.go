package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/storyweave/gamemaster/pkg/story"
)

// MockStore is an in-memory Store for testing.
type MockStore struct {
	mu      sync.Mutex
	saves   map[string][]byte
	stories map[string]*story.Template

	// Error hooks for failure-path tests.
	WriteSaveErr error
	ReadSaveErr  error
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		saves:   make(map[string][]byte),
		stories: make(map[string]*story.Template),
	}
}

// AddStory registers a story template.
func (m *MockStore) AddStory(tpl *story.Template) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stories[tpl.Name] = tpl
}

// RawSave returns the stored bytes for a slot, for assertions.
func (m *MockStore) RawSave(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.saves[name]
	return data, ok
}

// SetRawSave stores raw bytes directly, bypassing the engine. Used to
// test corrupted-payload handling.
func (m *MockStore) SetRawSave(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves[name] = data
}

func (m *MockStore) SaveExists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.saves[name]
	return ok, nil
}

func (m *MockStore) WriteSave(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteSaveErr != nil {
		return m.WriteSaveErr
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	m.saves[name] = copied
	return nil
}

func (m *MockStore) ReadSave(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadSaveErr != nil {
		return nil, m.ReadSaveErr
	}
	data, ok := m.saves[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSaveNotFound, name)
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

func (m *MockStore) ListSaves(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.saves))
	for name := range m.saves {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MockStore) DeleteSave(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saves, name)
	return nil
}

func (m *MockStore) ListStories(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.stories))
	for name := range m.stories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MockStore) LoadStory(ctx context.Context, name string) (*story.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl, ok := m.stories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrStoryNotFound, name)
	}
	return tpl, nil
}

// Ensure MockStore implements Store.
var _ Store = (*MockStore)(nil)
