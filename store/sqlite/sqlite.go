/*
Package sqlite provides a SQLite-backed implementation of docstore.Store.

PURPOSE:
  Persists the library's document tree (catalog, circulation records, gate
  analytics, student logs) so the engine survives restarts. The tree is
  stored as one row per leaf, keyed by its full slash path.

KEY TABLES:
  nodes: (path, value_json, updated_at), one row per leaf value

SUBTREE READS:
  A subtree is every row whose path equals the requested path or starts
  with "path/". The range scan uses the primary key: rows in
  ["path/", "path0") since '0' is the byte after '/'.

WRITES:
  Every write runs in a SQL transaction. Writing a subtree first deletes
  rows under the target and leaf rows at its ancestors, then inserts the
  new leaves. Update applies this per field so siblings are untouched.

SUBSCRIPTIONS:
  Change fan-out is in-process through docstore.Hub. Snapshots owed to
  subscribers are read after commit while the write lock is still held,
  then delivered once it is released.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single connection so that
  ":memory:" databases are shared by every query.

USAGE:
  store, err := sqlite.New("./data/library.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - docstore/store.go: Interface definition
  - docstore/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rfidlib/circulation-engine/docstore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store implements docstore.Store using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	hub     *docstore.Hub
	version uint64
	closed  bool

	afterCommit func() // test hook, runs once a transaction has committed
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, hub: docstore.NewHub()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close drops subscribers and closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.hub.Clear()
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- One row per leaf of the document tree
	CREATE TABLE IF NOT EXISTS nodes (
		path TEXT PRIMARY KEY,
		value_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// =============================================================================
// READS
// =============================================================================

// Get reads the subtree at path.
func (s *Store) Get(ctx context.Context, path docstore.Path) (docstore.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return docstore.Snapshot{}, docstore.ErrClosed
	}
	return s.read(ctx, s.db, path)
}

func (s *Store) read(ctx context.Context, q queryer, path docstore.Path) (docstore.Snapshot, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if path == docstore.Root {
		rows, err = q.QueryContext(ctx, "SELECT path, value_json FROM nodes")
	} else {
		lo, hi := subtreeRange(path)
		rows, err = q.QueryContext(ctx,
			"SELECT path, value_json FROM nodes WHERE path = ? OR (path >= ? AND path < ?)",
			string(path), lo, hi,
		)
	}
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	leaves := make(map[docstore.Path]any)
	for rows.Next() {
		var p, raw string
		if err := rows.Scan(&p, &raw); err != nil {
			return docstore.Snapshot{}, fmt.Errorf("failed to scan node: %w", err)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return docstore.Snapshot{}, fmt.Errorf("failed to decode node %s: %w", p, err)
		}
		leaves[docstore.Path(p)] = v
	}
	if err := rows.Err(); err != nil {
		return docstore.Snapshot{}, err
	}

	return docstore.NewSnapshot(path, docstore.Assemble(path, leaves)), nil
}

// Subscribe registers fn and delivers the current value.
func (s *Store) Subscribe(ctx context.Context, path docstore.Path, fn docstore.Listener) (docstore.Unsubscribe, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, docstore.ErrClosed
	}
	snap, err := s.read(ctx, s.db, path)
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	sub := s.hub.Add(path, fn)
	version := s.version
	s.mu.RUnlock()

	sub.Deliver(version, snap)
	return s.hub.UnsubscribeFunc(sub), nil
}

// =============================================================================
// WRITES
// =============================================================================

// Update merges fields into the object at path.
func (s *Store) Update(ctx context.Context, path docstore.Path, fields map[string]any) error {
	norm, err := docstore.NormalizeFields(fields)
	if err != nil {
		return err
	}
	return s.write(ctx, func(tx *sql.Tx) ([]docstore.Path, error) {
		return s.merge(ctx, tx, path, norm)
	})
}

// Set replaces the subtree at path.
func (s *Store) Set(ctx context.Context, path docstore.Path, value any) error {
	norm, err := docstore.Normalize(value)
	if err != nil {
		return err
	}
	return s.write(ctx, func(tx *sql.Tx) ([]docstore.Path, error) {
		if err := s.writeSubtree(ctx, tx, path, norm); err != nil {
			return nil, err
		}
		return []docstore.Path{path}, nil
	})
}

// Reset removes every document. Subscribers see their paths go empty.
func (s *Store) Reset(ctx context.Context) error {
	return s.Set(ctx, docstore.Root, nil)
}

// Push stores value under a fresh UUIDv7 key.
func (s *Store) Push(ctx context.Context, path docstore.Path, value any) (string, error) {
	key, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	if err := s.Set(ctx, path.Join(key.String()), value); err != nil {
		return "", err
	}
	return key.String(), nil
}

// Transact reads the current value inside the SQL transaction, lets fn
// decide, and merges its fields before commit.
func (s *Store) Transact(ctx context.Context, path docstore.Path, fn docstore.TransactFunc) error {
	return s.write(ctx, func(tx *sql.Tx) ([]docstore.Path, error) {
		current, err := s.read(ctx, tx, path)
		if err != nil {
			return nil, err
		}
		fields, err := fn(current)
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			return nil, docstore.ErrAborted
		}
		norm, err := docstore.NormalizeFields(fields)
		if err != nil {
			return nil, err
		}
		return s.merge(ctx, tx, path, norm)
	})
}

func (s *Store) write(ctx context.Context, apply func(tx *sql.Tx) ([]docstore.Path, error)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return docstore.ErrClosed
	}

	pending, err := s.commit(ctx, apply)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	docstore.DeliverAll(pending)
	return nil
}

func (s *Store) commit(ctx context.Context, apply func(tx *sql.Tx) ([]docstore.Path, error)) ([]docstore.Pending, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	changed, err := apply(sqlTx)
	if err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	if s.afterCommit != nil {
		s.afterCommit()
	}

	// The write is durable from here on: never report it as failed.
	readCtx := context.WithoutCancel(ctx)
	s.version++
	subs := s.hub.Affected(changed...)
	pending := make([]docstore.Pending, 0, len(subs))
	for _, sub := range subs {
		snap, err := s.read(readCtx, s.db, sub.Path())
		if err != nil {
			log.Printf("[Store] Skipping delivery to %s after commit: %v", sub.Path(), err)
			continue
		}
		pending = append(pending, docstore.Pending{Sub: sub, Version: s.version, Snapshot: snap})
	}
	return pending, nil
}

func (s *Store) merge(ctx context.Context, tx *sql.Tx, path docstore.Path, fields map[docstore.Path]any) ([]docstore.Path, error) {
	changed := make([]docstore.Path, 0, len(fields))
	for rel, v := range fields {
		target := path.Join(rel.Segments()...)
		if err := s.writeSubtree(ctx, tx, target, v); err != nil {
			return nil, err
		}
		changed = append(changed, target)
	}
	return changed, nil
}

func (s *Store) writeSubtree(ctx context.Context, q queryer, path docstore.Path, value any) error {
	if path == docstore.Root {
		if _, err := q.ExecContext(ctx, "DELETE FROM nodes"); err != nil {
			return fmt.Errorf("failed to clear nodes: %w", err)
		}
	} else {
		lo, hi := subtreeRange(path)
		if _, err := q.ExecContext(ctx,
			"DELETE FROM nodes WHERE path = ? OR (path >= ? AND path < ?)",
			string(path), lo, hi,
		); err != nil {
			return fmt.Errorf("failed to delete subtree %s: %w", path, err)
		}
		// A leaf at an ancestor would shadow the new children.
		for p := path.Parent(); p != docstore.Root; p = p.Parent() {
			if _, err := q.ExecContext(ctx, "DELETE FROM nodes WHERE path = ?", string(p)); err != nil {
				return fmt.Errorf("failed to delete ancestor %s: %w", p, err)
			}
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for p, leaf := range docstore.Flatten(path, value) {
		raw, err := json.Marshal(leaf)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", p, err)
		}
		if _, err := q.ExecContext(ctx,
			"INSERT INTO nodes (path, value_json, updated_at) VALUES (?, ?, ?)",
			string(p), string(raw), now,
		); err != nil {
			return fmt.Errorf("failed to insert %s: %w", p, err)
		}
	}
	return nil
}

// Helper functions

func subtreeRange(path docstore.Path) (string, string) {
	return string(path) + "/", string(path) + "0"
}

var _ docstore.Store = (*Store)(nil)
