package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Backing persists the serialized session log under one logical key. Load
// returns nil data when nothing has been stored yet.
type Backing interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

// MemoryBacking keeps the log in memory; used by tests and the record flow's
// dry-run mode.
type MemoryBacking struct {
	mu   sync.Mutex
	data []byte
}

func (m *MemoryBacking) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

func (m *MemoryBacking) Save(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make([]byte, len(data))
	copy(m.data, data)
	return nil
}

// FileBacking keeps the log in a single JSON file.
type FileBacking struct {
	path string
}

func NewFileBacking(path string) *FileBacking {
	return &FileBacking{path: path}
}

func (f *FileBacking) Load() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (f *FileBacking) Save(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0644)
}
