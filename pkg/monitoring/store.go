package monitoring

import (
	"context"
	"time"

	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/ledger"
)

// InstrumentedStore decorates a ledger store with operation metrics.
type InstrumentedStore struct {
	inner ledger.Store
}

// InstrumentStore wraps a store so every operation is recorded.
func InstrumentStore(inner ledger.Store) *InstrumentedStore {
	return &InstrumentedStore{inner: inner}
}

func (s *InstrumentedStore) Put(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.inner.Put(ctx, key, value)
	RecordLedgerOperation("put", time.Since(start), err)
	return err
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	value, err := s.inner.Get(ctx, key)
	RecordLedgerOperation("get", time.Since(start), err)
	return value, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	RecordLedgerOperation("delete", time.Since(start), err)
	return err
}

func (s *InstrumentedStore) Scan(ctx context.Context, startKey, endKey string) (ledger.EntryIterator, error) {
	start := time.Now()
	it, err := s.inner.Scan(ctx, startKey, endKey)
	RecordLedgerOperation("scan", time.Since(start), err)
	return it, err
}

func (s *InstrumentedStore) History(ctx context.Context, key string) (ledger.VersionIterator, error) {
	start := time.Now()
	it, err := s.inner.History(ctx, key)
	RecordLedgerOperation("history", time.Since(start), err)
	return it, err
}
