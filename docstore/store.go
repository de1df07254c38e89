/*
Package docstore defines the document-tree store the engine reads from and
writes to.

PURPOSE:
  The RFID gates and the issue desk write into a hierarchical JSON store.
  The engine never talks to a concrete database; it consumes two shapes:

    subscribe(path) -> stream of full snapshots
    write(path, fields) -> merge fields without touching siblings

  Everything else (Get, Set, Push, Transact) is convenience built from the
  same primitives.

SUBSCRIPTIONS:
  Subscribe delivers the current value immediately, then the complete value
  again whenever the path, one of its descendants or one of its ancestors is
  written. Deliveries run synchronously on the writer's goroutine after the
  store lock is released. A delivery older than the last one a subscriber
  has seen is dropped, so interleaved writers never move a view backwards.

ABSENT DATA:
  Reading a path that holds nothing returns a snapshot whose Exists() is
  false. It is never an error.

IMPLEMENTATIONS:
  - docstore/store:    in-memory tree (tests, dev)
  - store/sqlite:      leaf rows in SQLite

SEE ALSO:
  - hub.go: subscriber registry shared by implementations
  - engine/engine.go: the consumer
*/
package docstore

import (
	"context"
	"errors"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrInvalidPath is returned for malformed paths or keys.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidValue is returned when a value cannot be stored in the tree.
	ErrInvalidValue = errors.New("invalid value")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")

	// ErrAborted is returned by Transact when the callback declines without
	// giving its own error.
	ErrAborted = errors.New("transaction aborted")
)

// =============================================================================
// STORE
// =============================================================================

// Unsubscribe tears a subscription down. Calling it more than once is safe.
type Unsubscribe func()

// Listener receives full snapshots of a subscribed path.
type Listener func(Snapshot)

// TransactFunc inspects the current value at a path and returns the fields
// to merge. Returning an error leaves the store untouched. It runs with the
// store locked and must not call back into the store.
type TransactFunc func(current Snapshot) (map[string]any, error)

// Store is a hierarchical document store with change subscriptions.
type Store interface {
	// Get reads the current value at path.
	Get(ctx context.Context, path Path) (Snapshot, error)

	// Subscribe registers fn for path and delivers the current value before
	// returning.
	Subscribe(ctx context.Context, path Path, fn Listener) (Unsubscribe, error)

	// Update merges fields into the object at path. Field keys may be nested
	// relative paths. A nil field value removes that field.
	Update(ctx context.Context, path Path, fields map[string]any) error

	// Set replaces the whole subtree at path. A nil value removes it.
	Set(ctx context.Context, path Path, value any) error

	// Push stores value under a new time-ordered child key of path.
	Push(ctx context.Context, path Path, value any) (string, error)

	// Transact merges the fields returned by fn atomically with respect to
	// other writes.
	Transact(ctx context.Context, path Path, fn TransactFunc) error

	Close() error
}
