package gameai

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrModelNotFound is returned by a ModelStore that has no record for a game.
var ErrModelNotFound = errors.New("model not found")

// ModelStore persists serialized models, one record per game id.
type ModelStore interface {
	Load(ctx context.Context, gameID string) ([]byte, error)
	Save(ctx context.Context, gameID string, data []byte) error
}

// FileStore keeps one <gameID>.json file per game in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created on
// the first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the model directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(gameID string) (string, error) {
	if gameID == "" || strings.ContainsAny(gameID, `/\`) || gameID == "." || gameID == ".." {
		return "", fmt.Errorf("gameai: invalid game id %q", gameID)
	}
	return filepath.Join(s.dir, gameID+".json"), nil
}

// Load reads the model file of gameID.
func (s *FileStore) Load(_ context.Context, gameID string) ([]byte, error) {
	path, err := s.path(gameID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("gameai: read %s: %w", path, err)
	}
	return data, nil
}

// Save writes the model file atomically through a temp file and rename.
func (s *FileStore) Save(_ context.Context, gameID string, data []byte) error {
	path, err := s.path(gameID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("gameai: create model dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, gameID+".*.tmp")
	if err != nil {
		return fmt.Errorf("gameai: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("gameai: write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("gameai: sync %s: %w", tmpName, err)
	}
	_ = tmp.Close()

	// Atomic rename
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("gameai: rename %s: %w", path, err)
	}
	return nil
}

// MemoryStore keeps models in memory. Used when persistence is disabled
// and in tests.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
	// SaveErr, when set, fails every Save.
	SaveErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, gameID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[gameID]
	if !ok {
		return nil, ErrModelNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Save(_ context.Context, gameID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.data[gameID] = append([]byte(nil), data...)
	return nil
}

// Put stores raw bytes for gameID.
func (s *MemoryStore) Put(gameID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[gameID] = data
}
