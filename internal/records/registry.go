// Package records stores content-addressed medical-record metadata and
// appends record references into a patient's record list.
package records

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/ledger"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/logger"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/types"
)

// Registry manages RecordRef assets on the ledger.
type Registry struct {
	store ledger.Store
	log   *logger.Logger
	now   func() time.Time
}

// NewRegistry creates a record registry over the given store.
func NewRegistry(store ledger.Store, log *logger.Logger) *Registry {
	return &Registry{store: store, log: log, now: time.Now}
}

// SetClock overrides the record creation timestamp source. Chaincode
// deployments pass the transaction timestamp for determinism across
// endorsers.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// CreateMedicalRecord writes a new RecordRef keyed by its content hash.
// There is no existence check: content addressing assumes collision
// freedom, so a colliding hash silently overwrites.
func (r *Registry) CreateMedicalRecord(ctx context.Context, patientID, doctorID, contentHash string) (*types.RecordRef, error) {
	ref := &types.RecordRef{
		ContentHash:    contentHash,
		IssuerDoctorID: doctorID,
		PatientID:      patientID,
		CreatedAt:      r.now().UTC(),
	}
	data, err := json.Marshal(ref)
	if err != nil {
		return nil, err
	}
	if err := r.store.Put(ctx, contentHash, data); err != nil {
		return nil, err
	}
	r.log.Audit(doctorID, "create_record", contentHash, true, map[string]interface{}{
		"patient_id": patientID,
	})
	return ref, nil
}

// SubmitMedicalRecord appends a copy of an existing RecordRef into the
// patient's record list. Insertion order is preserved and duplicates are
// not deduplicated.
func (r *Registry) SubmitMedicalRecord(ctx context.Context, patientID, contentHash string) error {
	patientData, err := r.store.Get(ctx, patientID)
	if err != nil {
		return err
	}
	if patientData == nil {
		return types.NewNotFoundError("the patient %s does not exist", patientID)
	}
	patient, err := types.UnmarshalPrincipal(patientData)
	if err != nil {
		return err
	}
	if patient.Role != types.RolePatient {
		return types.NewNotFoundError("the patient %s does not exist", patientID)
	}

	ref, err := r.QueryMedicalRecord(ctx, contentHash)
	if err != nil {
		return err
	}

	patient.Records = append(patient.Records, *ref)
	data, err := types.MarshalPrincipal(patient)
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, patientID, data); err != nil {
		return err
	}
	r.log.Audit(patientID, "submit_record", contentHash, true, nil)
	return nil
}

// QueryMedicalRecord looks up a RecordRef by content hash.
func (r *Registry) QueryMedicalRecord(ctx context.Context, contentHash string) (*types.RecordRef, error) {
	data, err := r.store.Get(ctx, contentHash)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, types.NewNotFoundError("the record %s does not exist", contentHash)
	}
	var ref types.RecordRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// AssetHistory opens the ledger history of a key, projecting each
// version to its committer transaction id, decoded value, and commit
// timestamp. NOT_FOUND when the key has no current value.
func (r *Registry) AssetHistory(ctx context.Context, key string) (*HistoryIterator, error) {
	inner, err := r.store.History(ctx, key)
	if err != nil {
		return nil, err
	}
	return &HistoryIterator{inner: inner}, nil
}

// RangeQuery opens a scan of current ledger values over
// [startKey, endKey), decoding each value as JSON where possible.
func (r *Registry) RangeQuery(ctx context.Context, startKey, endKey string) (*AssetIterator, error) {
	inner, err := r.store.Scan(ctx, startKey, endKey)
	if err != nil {
		return nil, err
	}
	return &AssetIterator{inner: inner}, nil
}

// HistoryIterator is a lazy cursor over projected key versions.
type HistoryIterator struct {
	inner ledger.VersionIterator
}

// HasNext reports whether another version is available.
func (i *HistoryIterator) HasNext() bool { return i.inner.HasNext() }

// Next returns the next projected version. A stored value that is not
// valid JSON is surfaced as its raw string rather than failing the scan.
func (i *HistoryIterator) Next() (*types.HistoryEntry, error) {
	v, err := i.inner.Next()
	if err != nil {
		return nil, err
	}
	return &types.HistoryEntry{
		TxID:      v.TxID,
		Value:     decodeLenient(v.Value),
		Timestamp: v.Timestamp,
		IsDelete:  v.IsDelete,
	}, nil
}

// Close releases the underlying cursor.
func (i *HistoryIterator) Close() error { return i.inner.Close() }

// AssetIterator is a lazy cursor over decoded range-scan rows.
type AssetIterator struct {
	inner ledger.EntryIterator
}

// HasNext reports whether another row is available.
func (i *AssetIterator) HasNext() bool { return i.inner.HasNext() }

// Next returns the next row; malformed stored values are reported as
// their raw string without aborting the scan.
func (i *AssetIterator) Next() (*types.QueryResult, error) {
	e, err := i.inner.Next()
	if err != nil {
		return nil, err
	}
	return &types.QueryResult{Key: e.Key, Record: decodeLenient(e.Value)}, nil
}

// Close releases the underlying cursor.
func (i *AssetIterator) Close() error { return i.inner.Close() }

// decodeLenient decodes stored bytes as JSON, falling back to the raw
// string for partially-migrated data.
func decodeLenient(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return string(data)
	}
	return decoded
}
