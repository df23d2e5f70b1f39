package thread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"forge/internal/fileutil"
	"forge/internal/logging"
)

const currentFile = "current"

// JSONStore writes one <id>.json file per thread into a directory, plus a
// "current" file holding the current thread id. Writes are atomic.
type JSONStore struct {
	dir string
	mu  sync.Mutex
}

var _ Store = (*JSONStore)(nil)

// NewJSONStore creates dir if needed.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create thread dir: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

func (s *JSONStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *JSONStore) Get(ctx context.Context, id string) (*Thread, error) {
	if err := validID(id); err != nil {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

func (s *JSONStore) load(id string) (*Thread, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read thread %s: %w", id, err)
	}
	var t Thread
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode thread %s: %w", id, err)
	}
	return &t, nil
}

func (s *JSONStore) Put(ctx context.Context, t *Thread) error {
	if err := validID(t.ID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode thread %s: %w", t.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return fileutil.AtomicWrite(s.path(t.ID), data, 0600)
}

func (s *JSONStore) ListAll(ctx context.Context) ([]*Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	var threads []*Thread
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		t, err := s.load(id)
		if err != nil {
			logging.Warn("skipping unreadable thread", "id", id, "error", err)
			continue
		}
		threads = append(threads, t)
	}
	sortThreads(threads)
	return threads, nil
}

func (s *JSONStore) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete thread %s: %w", id, err)
	}
	if cur, _ := s.readCurrent(); cur == id {
		return s.writeCurrent("")
	}
	return nil
}

func (s *JSONStore) CurrentID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readCurrent()
}

func (s *JSONStore) SetCurrentID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeCurrent(id)
}

func (s *JSONStore) readCurrent() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read current thread: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *JSONStore) writeCurrent(id string) error {
	return fileutil.AtomicWrite(filepath.Join(s.dir, currentFile), []byte(id+"\n"), 0600)
}

func (s *JSONStore) Close() error { return nil }
