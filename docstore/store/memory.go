// Package store provides docstore.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rfidlib/circulation-engine/docstore"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	root    any
	version uint64
	closed  bool
	hub     *docstore.Hub
}

func NewMemory() *Memory {
	return &Memory{hub: docstore.NewHub()}
}

// Get returns a deep copy of the value at path.
func (m *Memory) Get(ctx context.Context, path docstore.Path) (docstore.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Snapshot{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return docstore.Snapshot{}, docstore.ErrClosed
	}
	return m.snapshotLocked(path), nil
}

func (m *Memory) snapshotLocked(path docstore.Path) docstore.Snapshot {
	return docstore.NewSnapshot(path, docstore.Clone(docstore.ValueAt(m.root, path.Segments())))
}

// Subscribe registers fn and delivers the current value.
func (m *Memory) Subscribe(ctx context.Context, path docstore.Path, fn docstore.Listener) (docstore.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, docstore.ErrClosed
	}
	sub := m.hub.Add(path, fn)
	version := m.version
	snap := m.snapshotLocked(path)
	m.mu.RUnlock()

	sub.Deliver(version, snap)
	return m.hub.UnsubscribeFunc(sub), nil
}

// Update merges fields into the object at path.
func (m *Memory) Update(ctx context.Context, path docstore.Path, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	norm, err := docstore.NormalizeFields(fields)
	if err != nil {
		return err
	}
	return m.write(func() []docstore.Path {
		return m.mergeLocked(path, norm)
	})
}

// Set replaces the subtree at path.
func (m *Memory) Set(ctx context.Context, path docstore.Path, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	norm, err := docstore.Normalize(value)
	if err != nil {
		return err
	}
	return m.write(func() []docstore.Path {
		m.root = docstore.SetAt(m.root, path.Segments(), norm)
		return []docstore.Path{path}
	})
}

// Push stores value under a fresh UUIDv7 key, which sorts by creation time.
func (m *Memory) Push(ctx context.Context, path docstore.Path, value any) (string, error) {
	key, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	if err := m.Set(ctx, path.Join(key.String()), value); err != nil {
		return "", err
	}
	return key.String(), nil
}

// Transact runs fn against the current value and merges its fields while
// still holding the write lock.
func (m *Memory) Transact(ctx context.Context, path docstore.Path, fn docstore.TransactFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return docstore.ErrClosed
	}
	fields, err := fn(m.snapshotLocked(path))
	if err == nil && len(fields) == 0 {
		err = docstore.ErrAborted
	}
	var norm map[docstore.Path]any
	if err == nil {
		norm, err = docstore.NormalizeFields(fields)
	}
	if err != nil {
		m.mu.Unlock()
		return err
	}
	pending := m.commitLocked(m.mergeLocked(path, norm))
	m.mu.Unlock()

	docstore.DeliverAll(pending)
	return nil
}

// Close drops all subscribers. Later calls fail with docstore.ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.hub.Clear()
	return nil
}

// Subscribers reports the number of live subscriptions.
func (m *Memory) Subscribers() int {
	return m.hub.Len()
}

func (m *Memory) write(apply func() []docstore.Path) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return docstore.ErrClosed
	}
	pending := m.commitLocked(apply())
	m.mu.Unlock()

	docstore.DeliverAll(pending)
	return nil
}

func (m *Memory) mergeLocked(path docstore.Path, fields map[docstore.Path]any) []docstore.Path {
	changed := make([]docstore.Path, 0, len(fields))
	for rel, v := range fields {
		target := path.Join(rel.Segments()...)
		m.root = docstore.SetAt(m.root, target.Segments(), docstore.Clone(v))
		changed = append(changed, target)
	}
	return changed
}

// commitLocked bumps the version and captures the snapshots owed to every
// affected subscriber.
func (m *Memory) commitLocked(changed []docstore.Path) []docstore.Pending {
	m.version++
	subs := m.hub.Affected(changed...)
	pending := make([]docstore.Pending, len(subs))
	for i, s := range subs {
		pending[i] = docstore.Pending{Sub: s, Version: m.version, Snapshot: m.snapshotLocked(s.Path())}
	}
	return pending
}

var _ docstore.Store = (*Memory)(nil)
