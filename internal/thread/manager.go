package thread

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"forge/internal/logging"
)

// Manager owns the current-thread pointer and serializes runs on a thread.
// At least one thread exists once Current has been called.
type Manager struct {
	store Store

	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewManager wraps store.
func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		locks: make(map[string]chan struct{}),
	}
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Current returns the current thread, repairing a dangling pointer by
// choosing the most recently updated thread or creating a new one.
func (m *Manager) Current(ctx context.Context) (*Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked(ctx)
}

func (m *Manager) currentLocked(ctx context.Context) (*Thread, error) {
	id, err := m.store.CurrentID(ctx)
	if err != nil {
		return nil, err
	}
	if id != "" {
		t, err := m.store.Get(ctx, id)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		logging.Warn("current thread missing, choosing another", "id", id)
	}
	return m.fallbackLocked(ctx)
}

// fallbackLocked makes the most recently updated thread current, creating
// one when the store is empty.
func (m *Manager) fallbackLocked(ctx context.Context) (*Thread, error) {
	threads, err := m.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(threads) == 0 {
		return m.createLocked(ctx, "")
	}

	latest := threads[0]
	for _, t := range threads[1:] {
		if t.UpdatedAt.After(latest.UpdatedAt) {
			latest = t
		}
	}
	if err := m.store.SetCurrentID(ctx, latest.ID); err != nil {
		return nil, err
	}
	return latest, nil
}

// Create adds a thread and makes it current.
func (m *Manager) Create(ctx context.Context, name string) (*Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(ctx, name)
}

func (m *Manager) createLocked(ctx context.Context, name string) (*Thread, error) {
	t := New(name)
	if err := m.store.Put(ctx, t); err != nil {
		return nil, fmt.Errorf("save new thread: %w", err)
	}
	if err := m.store.SetCurrentID(ctx, t.ID); err != nil {
		return nil, err
	}
	logging.Info("thread created", "id", t.ID)
	return t, nil
}

// Switch makes an existing thread current.
func (m *Manager) Switch(ctx context.Context, id string) (*Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.store.SetCurrentID(ctx, id); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns a snapshot of a thread.
func (m *Manager) Get(ctx context.Context, id string) (*Thread, error) {
	return m.store.Get(ctx, id)
}

// List returns every thread, oldest first.
func (m *Manager) List(ctx context.Context) ([]*Thread, error) {
	return m.store.ListAll(ctx)
}

// Delete removes a thread, waiting for any run on it to finish. Deleting the
// current thread moves the pointer to another thread, creating a fresh one
// if it was the last. The thread that is current afterwards is returned.
func (m *Manager) Delete(ctx context.Context, id string) (*Thread, error) {
	lock := m.lockFor(id)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-lock }()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		return nil, err
	}
	delete(m.locks, id)
	logging.Info("thread deleted", "id", id)

	return m.currentLocked(ctx)
}

// Acquire locks a thread for exclusive mutation and loads it. An empty id
// means the current thread. The caller must Release the handle.
func (m *Manager) Acquire(ctx context.Context, id string) (*Handle, error) {
	if id == "" {
		cur, err := m.Current(ctx)
		if err != nil {
			return nil, err
		}
		id = cur.ID
	}

	lock := m.lockFor(id)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	t, err := m.store.Get(ctx, id)
	if err != nil {
		<-lock
		return nil, err
	}
	return &Handle{store: m.store, thread: t, lock: lock}, nil
}

func (m *Manager) lockFor(id string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[id]
	if !ok {
		lock = make(chan struct{}, 1)
		m.locks[id] = lock
	}
	return lock
}
