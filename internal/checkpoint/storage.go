package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// ErrCorrupt is wrapped by Read when a checkpoint file exists but cannot be
// decoded.
var ErrCorrupt = errors.New("checkpoint file is corrupt")

// Store persists one checkpoint per task. Write replaces the previous
// record as a whole.
type Store interface {
	Exists(taskID string) bool
	// Read returns nil, nil when the task has no checkpoint.
	Read(taskID string) (*Checkpoint, error)
	Write(taskID string, c *Checkpoint) error
	Delete(taskID string) error
}

// FileStore keeps checkpoints as JSON under <base>/.loopsh/tasks/<task>/.
type FileStore struct {
	fs       afero.Fs
	basePath string
}

// NewFileStore creates a FileStore rooted at basePath on fs.
func NewFileStore(fs afero.Fs, basePath string) *FileStore {
	return &FileStore{fs: fs, basePath: basePath}
}

// TasksDir returns the directory holding every task directory.
func TasksDir(basePath string) string {
	return filepath.Join(basePath, ".loopsh", "tasks")
}

// TaskDir returns the artifact directory of a task.
func TaskDir(basePath, taskID string) string {
	return filepath.Join(TasksDir(basePath), sanitizeTaskID(taskID))
}

// sanitizeTaskID maps a task identifier to a single safe directory name.
func sanitizeTaskID(taskID string) string {
	r := strings.NewReplacer("/", "-", "\\", "-", "..", "-")
	return r.Replace(strings.TrimSpace(taskID))
}

func (s *FileStore) path(taskID string) string {
	return filepath.Join(TaskDir(s.basePath, taskID), "checkpoint.json")
}

// Exists reports whether a checkpoint file is present for taskID.
func (s *FileStore) Exists(taskID string) bool {
	ok, err := afero.Exists(s.fs, s.path(taskID))
	return err == nil && ok
}

// Read loads the checkpoint for taskID.
func (s *FileStore) Read(taskID string) (*Checkpoint, error) {
	data, err := afero.ReadFile(s.fs, s.path(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &c, nil
}

// Write atomically replaces the checkpoint for taskID. The record is written
// to a temporary file in the same directory and renamed over the old one.
func (s *FileStore) Write(taskID string, c *Checkpoint) error {
	if c == nil {
		return ErrNilCheckpoint
	}
	dir := TaskDir(s.basePath, taskID)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create task directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, "checkpoint-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}
	if err := s.fs.Rename(tmpName, s.path(taskID)); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

// Delete removes the checkpoint for taskID. Deleting a missing checkpoint is
// not an error.
func (s *FileStore) Delete(taskID string) error {
	if err := s.fs.Remove(s.path(taskID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store. Dry runs use it so the real checkpoint
// on disk is never touched.
type MemoryStore struct {
	mu     sync.Mutex
	items  map[string]*Checkpoint
	writes int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*Checkpoint)}
}

// Exists reports whether taskID has a checkpoint.
func (m *MemoryStore) Exists(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[taskID]
	return ok
}

// Read returns a copy of the stored checkpoint.
func (m *MemoryStore) Read(taskID string) (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[taskID].Clone(), nil
}

// Write stores a copy of c.
func (m *MemoryStore) Write(taskID string, c *Checkpoint) error {
	if c == nil {
		return ErrNilCheckpoint
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[taskID] = c.Clone()
	m.writes++
	return nil
}

// Delete removes the checkpoint for taskID.
func (m *MemoryStore) Delete(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, taskID)
	return nil
}

// Writes returns how many times Write has succeeded.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
