// Package screenshots keeps compressed screenshots out of workflow history.
// The capture step stores the bytes and passes a reference around; the
// model call resolves the reference when it builds the request.
package screenshots

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned for an unknown reference.
var ErrNotFound = errors.New("screenshot not found")

// Store saves and loads screenshot bytes by reference.
type Store interface {
	Put(ctx context.Context, sessionID string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

var refPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+/[0-9a-f-]{36}\.jpg$`)

// DirStore stores screenshots as files under a root directory, one
// subdirectory per session.
type DirStore struct {
	root string
}

// NewDirStore creates a store rooted at dir.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create screenshot directory: %w", err)
	}
	return &DirStore{root: dir}, nil
}

// Put writes data and returns its reference.
func (s *DirStore) Put(_ context.Context, sessionID string, data []byte) (string, error) {
	if sessionID == "" {
		sessionID = "default"
	}
	ref := sessionID + "/" + uuid.NewString() + ".jpg"
	if !refPattern.MatchString(ref) {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	path := filepath.Join(s.root, filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create session directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return ref, nil
}

// Get reads the screenshot behind ref.
func (s *DirStore) Get(_ context.Context, ref string) ([]byte, error) {
	if !refPattern.MatchString(ref) {
		return nil, fmt.Errorf("%w: malformed reference %q", ErrNotFound, ref)
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(ref)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("read screenshot: %w", err)
	}
	return data, nil
}

// MemoryStore keeps screenshots in memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, sessionID string, data []byte) (string, error) {
	ref := sessionID + "/" + uuid.NewString() + ".jpg"
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[ref] = append([]byte(nil), data...)
	return ref, nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, ref string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return append([]byte(nil), data...), nil
}
