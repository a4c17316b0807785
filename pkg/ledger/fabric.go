package ledger

import (
	"context"
	"time"

	"github.com/hyperledger/fabric-chaincode-go/shim"

	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/types"
)

// FabricStore adapts a chaincode stub to the Store interface so the
// consent core runs unchanged inside a Fabric transaction. Writes are
// staged on the stub and committed atomically by the ordering service;
// reads observe the transaction's snapshot.
type FabricStore struct {
	stub shim.ChaincodeStubInterface
}

// NewFabricStore wraps a transaction's chaincode stub.
func NewFabricStore(stub shim.ChaincodeStubInterface) *FabricStore {
	return &FabricStore{stub: stub}
}

// Put writes the value to the world state.
func (f *FabricStore) Put(_ context.Context, key string, value []byte) error {
	if err := f.stub.PutState(key, value); err != nil {
		return types.NewStoreFailureError("failed to put world state", err)
	}
	return nil
}

// Get reads the current value from the world state; (nil, nil) when absent.
func (f *FabricStore) Get(_ context.Context, key string) ([]byte, error) {
	value, err := f.stub.GetState(key)
	if err != nil {
		return nil, types.NewStoreFailureError("failed to read world state", err)
	}
	return value, nil
}

// Delete removes the current value; the peer retains the key's history.
func (f *FabricStore) Delete(_ context.Context, key string) error {
	if err := f.stub.DelState(key); err != nil {
		return types.NewStoreFailureError("failed to delete world state", err)
	}
	return nil
}

// Scan opens a range query over the world state.
func (f *FabricStore) Scan(ctx context.Context, startKey, endKey string) (EntryIterator, error) {
	it, err := f.stub.GetStateByRange(startKey, endKey)
	if err != nil {
		return nil, types.NewStoreFailureError("failed to open range query", err)
	}
	return &fabricEntryIterator{ctx: ctx, it: it}, nil
}

// History opens the peer's key history, gated on current existence.
func (f *FabricStore) History(ctx context.Context, key string) (VersionIterator, error) {
	current, err := f.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, types.NewNotFoundError("the asset %s does not exist", key)
	}
	it, err := f.stub.GetHistoryForKey(key)
	if err != nil {
		return nil, types.NewStoreFailureError("failed to open history query", err)
	}
	return &fabricVersionIterator{ctx: ctx, it: it}, nil
}

type fabricEntryIterator struct {
	ctx context.Context
	it  shim.StateQueryIteratorInterface
}

func (i *fabricEntryIterator) HasNext() bool {
	return i.it.HasNext()
}

func (i *fabricEntryIterator) Next() (*Entry, error) {
	if err := i.ctx.Err(); err != nil {
		return nil, types.NewStoreFailureError("range scan cancelled", err)
	}
	kv, err := i.it.Next()
	if err != nil {
		return nil, types.NewStoreFailureError("failed to advance range query", err)
	}
	return &Entry{Key: kv.Key, Value: kv.Value}, nil
}

func (i *fabricEntryIterator) Close() error {
	return i.it.Close()
}

type fabricVersionIterator struct {
	ctx context.Context
	it  shim.HistoryQueryIteratorInterface
}

func (i *fabricVersionIterator) HasNext() bool {
	return i.it.HasNext()
}

func (i *fabricVersionIterator) Next() (*Version, error) {
	if err := i.ctx.Err(); err != nil {
		return nil, types.NewStoreFailureError("history scan cancelled", err)
	}
	km, err := i.it.Next()
	if err != nil {
		return nil, types.NewStoreFailureError("failed to advance history query", err)
	}
	v := &Version{
		TxID:     km.TxId,
		Value:    km.Value,
		IsDelete: km.IsDelete,
	}
	if ts := km.Timestamp; ts != nil {
		v.Timestamp = time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
	}
	return v, nil
}

func (i *fabricVersionIterator) Close() error {
	return i.it.Close()
}
