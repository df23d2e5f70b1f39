package thread

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"forge/internal/config"
)

// ErrNotFound is returned when a thread id is unknown.
var ErrNotFound = errors.New("thread not found")

// Store persists whole-thread snapshots keyed by id, plus the id of the
// current thread. Returned threads are copies owned by the caller.
type Store interface {
	Get(ctx context.Context, id string) (*Thread, error)
	Put(ctx context.Context, t *Thread) error
	ListAll(ctx context.Context) ([]*Thread, error)
	Delete(ctx context.Context, id string) error
	// CurrentID returns "" when no current thread has been recorded.
	CurrentID(ctx context.Context) (string, error)
	SetCurrentID(ctx context.Context, id string) error
	Close() error
}

// Open returns the store selected by cfg. Paths default to the data dir.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = filepath.Join(config.DataDir(), "threads.db")
		}
		return NewSQLiteStore(path)
	case "json", "":
		path := cfg.Path
		if path == "" {
			path = filepath.Join(config.DataDir(), "threads")
		}
		return NewJSONStore(path)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// sortThreads orders threads oldest first, by creation time then id.
func sortThreads(threads []*Thread) {
	sort.Slice(threads, func(i, j int) bool {
		if !threads[i].CreatedAt.Equal(threads[j].CreatedAt) {
			return threads[i].CreatedAt.Before(threads[j].CreatedAt)
		}
		return threads[i].ID < threads[j].ID
	})
}

// validID rejects ids that cannot be used as a file name.
func validID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid thread id %q", id)
	}
	return nil
}
