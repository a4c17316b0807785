// Package ledger defines the versioned key-value store the consent core
// runs against: point read/write/delete over a current value, open range
// scans in key order, and a per-key append-only version history. The
// Fabric world state is the store of record in production; a LevelDB
// implementation backs the standalone gateway and tests.
package ledger

import (
	"context"
	"time"
)

// Entry is one (key, current value) pair produced by a range scan.
type Entry struct {
	Key   string
	Value []byte
}

// Version is one historical write to a key: the committing transaction
// id, the value bytes at that version, and the commit timestamp. Deletes
// appear as tombstone versions; history is never rewritten.
type Version struct {
	TxID      string
	Value     []byte
	Timestamp time.Time
	IsDelete  bool
}

// EntryIterator is a lazy, finite cursor over scan results. Callers must
// Close it; Next after exhaustion is an error.
type EntryIterator interface {
	HasNext() bool
	Next() (*Entry, error)
	Close() error
}

// VersionIterator is a lazy, finite cursor over a key's history,
// oldest version first.
type VersionIterator interface {
	HasNext() bool
	Next() (*Version, error)
	Close() error
}

// Store is the durable commit facility supplied by the surrounding
// platform. All operations are fallible I/O; concurrent writers to the
// same key are serialized by the implementation (Fabric MVCC read-set
// validation, or a store-local lock).
type Store interface {
	// Put overwrites the current value and appends an immutable version
	// to the key's history.
	Put(ctx context.Context, key string, value []byte) error

	// Get returns the current value, or (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the current value. The key's history retains every
	// prior version plus a deletion tombstone.
	Delete(ctx context.Context, key string) error

	// Scan iterates (key, current value) pairs in key order over
	// [startKey, endKey). Empty bounds mean unbounded on that side. The
	// iterator is bounded by ctx: a cancelled context fails the next
	// advance rather than materializing the remainder.
	Scan(ctx context.Context, startKey, endKey string) (EntryIterator, error)

	// History iterates every version ever written under key, oldest
	// first. It fails with a NOT_FOUND error when the key has no current
	// value; the gate is against current existence, not past existence.
	History(ctx context.Context, key string) (VersionIterator, error)
}
