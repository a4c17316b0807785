package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/types"
)

// LevelStore is a LevelDB-backed Store for the standalone gateway and
// tests. Three keyspaces share one database:
//
//	s:<key>            current value
//	h:<key>\x00<seq>   immutable version records, fixed-width seq
//	n:<key>            next version sequence number
//
// Writers are serialized by a store-local mutex; the read-modify-write
// pattern of the consent core would otherwise lose updates, since
// LevelDB has no commit-time read-set validation.
type LevelStore struct {
	mu  sync.Mutex
	db  *leveldb.DB
	now func() time.Time
}

type versionRecord struct {
	TxID      string    `json:"txId"`
	Value     []byte    `json:"value,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	IsDelete  bool      `json:"isDelete,omitempty"`
}

// OpenLevelStore opens (creating if needed) a LevelDB database at path.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, types.NewStoreFailureError("failed to open ledger database", err)
	}
	return &LevelStore{db: db, now: time.Now}, nil
}

// NewMemLevelStore opens a LevelDB database on in-memory storage.
func NewMemLevelStore() (*LevelStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, types.NewStoreFailureError("failed to open in-memory ledger", err)
	}
	return &LevelStore{db: db, now: time.Now}, nil
}

// Close releases the underlying database.
func (s *LevelStore) Close() error {
	return s.db.Close()
}

// SetClock overrides the commit timestamp source.
func (s *LevelStore) SetClock(now func() time.Time) {
	s.now = now
}

func currentKey(key string) []byte { return []byte("s:" + key) }
func seqKey(key string) []byte     { return []byte("n:" + key) }

func versionKey(key string, seq uint64) []byte {
	return []byte(fmt.Sprintf("h:%s\x00%016x", key, seq))
}

func versionPrefix(key string) []byte {
	return []byte("h:" + key + "\x00")
}

func (s *LevelStore) nextSeq(key string) (uint64, error) {
	raw, err := s.db.Get(seqKey(key), nil)
	if err == leveldb.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var seq uint64
	if _, err := fmt.Sscanf(string(raw), "%d", &seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *LevelStore) appendVersion(batch *leveldb.Batch, key string, value []byte, isDelete bool) error {
	seq, err := s.nextSeq(key)
	if err != nil {
		return err
	}
	rec := versionRecord{
		TxID:      uuid.NewString(),
		Value:     value,
		Timestamp: s.now().UTC(),
		IsDelete:  isDelete,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	batch.Put(versionKey(key, seq), data)
	batch.Put(seqKey(key), []byte(fmt.Sprintf("%d", seq+1)))
	return nil
}

// Put overwrites the current value and appends a version record, as one
// atomic batch.
func (s *LevelStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return types.NewStoreFailureError("put cancelled", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := new(leveldb.Batch)
	batch.Put(currentKey(key), value)
	if err := s.appendVersion(batch, key, value, false); err != nil {
		return types.NewStoreFailureError("failed to stage version record", err)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return types.NewStoreFailureError("failed to commit put", err)
	}
	return nil
}

// Get returns the current value, or (nil, nil) when absent.
func (s *LevelStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.NewStoreFailureError("get cancelled", err)
	}
	value, err := s.db.Get(currentKey(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewStoreFailureError("failed to read ledger", err)
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Delete removes the current value and appends a tombstone version.
// Deleting an absent key is a no-op.
func (s *LevelStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return types.NewStoreFailureError("delete cancelled", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Get(currentKey(key), nil); err == leveldb.ErrNotFound {
		return nil
	} else if err != nil {
		return types.NewStoreFailureError("failed to read ledger", err)
	}

	batch := new(leveldb.Batch)
	batch.Delete(currentKey(key))
	if err := s.appendVersion(batch, key, nil, true); err != nil {
		return types.NewStoreFailureError("failed to stage tombstone", err)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return types.NewStoreFailureError("failed to commit delete", err)
	}
	return nil
}

// Scan iterates current values over [startKey, endKey) in key order.
// Each call opens a fresh snapshot iterator, so scans are restartable.
func (s *LevelStore) Scan(ctx context.Context, startKey, endKey string) (EntryIterator, error) {
	slice := &util.Range{Start: currentKey(startKey)}
	if endKey == "" {
		slice.Limit = util.BytesPrefix([]byte("s:")).Limit
	} else {
		slice.Limit = currentKey(endKey)
	}
	return &levelEntryIterator{ctx: ctx, it: s.db.NewIterator(slice, nil)}, nil
}

// History iterates the key's version records, oldest first, failing with
// NOT_FOUND when the key has no current value.
func (s *LevelStore) History(ctx context.Context, key string) (VersionIterator, error) {
	if _, err := s.db.Get(currentKey(key), nil); err == leveldb.ErrNotFound {
		return nil, types.NewNotFoundError("the asset %s does not exist", key)
	} else if err != nil {
		return nil, types.NewStoreFailureError("failed to read ledger", err)
	}
	it := s.db.NewIterator(util.BytesPrefix(versionPrefix(key)), nil)
	return &levelVersionIterator{ctx: ctx, it: it}, nil
}

type levelEntryIterator struct {
	ctx     context.Context
	it      iterator.Iterator
	next    *Entry
	stepped bool
}

func (i *levelEntryIterator) advance() {
	i.next = nil
	if i.it.Next() {
		key := string(i.it.Key())
		value := make([]byte, len(i.it.Value()))
		copy(value, i.it.Value())
		i.next = &Entry{Key: key[len("s:"):], Value: value}
	}
	i.stepped = true
}

func (i *levelEntryIterator) HasNext() bool {
	if !i.stepped {
		i.advance()
	}
	return i.next != nil
}

func (i *levelEntryIterator) Next() (*Entry, error) {
	if err := i.ctx.Err(); err != nil {
		return nil, types.NewStoreFailureError("range scan cancelled", err)
	}
	if !i.HasNext() {
		return nil, types.NewStoreFailureError("no more results", i.it.Error())
	}
	entry := i.next
	i.advance()
	return entry, nil
}

func (i *levelEntryIterator) Close() error {
	i.it.Release()
	return i.it.Error()
}

type levelVersionIterator struct {
	ctx     context.Context
	it      iterator.Iterator
	next    *Version
	nextErr error
	stepped bool
}

func (i *levelVersionIterator) advance() {
	i.next, i.nextErr = nil, nil
	if i.it.Next() {
		var rec versionRecord
		if err := json.Unmarshal(i.it.Value(), &rec); err != nil {
			i.nextErr = types.NewStoreFailureError("corrupt version record", err)
			return
		}
		i.next = &Version{
			TxID:      rec.TxID,
			Value:     rec.Value,
			Timestamp: rec.Timestamp,
			IsDelete:  rec.IsDelete,
		}
	}
	i.stepped = true
}

func (i *levelVersionIterator) HasNext() bool {
	if !i.stepped {
		i.advance()
	}
	return i.next != nil || i.nextErr != nil
}

func (i *levelVersionIterator) Next() (*Version, error) {
	if err := i.ctx.Err(); err != nil {
		return nil, types.NewStoreFailureError("history scan cancelled", err)
	}
	if !i.HasNext() {
		return nil, types.NewStoreFailureError("no more results", i.it.Error())
	}
	if i.nextErr != nil {
		err := i.nextErr
		i.advance()
		return nil, err
	}
	v := i.next
	i.advance()
	return v, nil
}

func (i *levelVersionIterator) Close() error {
	i.it.Release()
	return i.it.Error()
}
