package records

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/internal/credential"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/ledger"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/logger"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/types"
)

func newTestRegistry(t *testing.T) (*Registry, *ledger.LevelStore) {
	t.Helper()
	store, err := ledger.NewMemLevelStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logger.New("error")
	verifier := credential.NewVerifier(store, log)
	require.NoError(t, verifier.Register(context.Background(), &types.Principal{
		Username: "alice", Organization: "hospital", Role: types.RolePatient,
	}, "pw"))

	return NewRegistry(store, log), store
}

func TestCreateAndQueryMedicalRecord(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	fixed := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	registry.SetClock(func() time.Time { return fixed })

	created, err := registry.CreateMedicalRecord(ctx, "alice", "dr-jones", "h1")
	require.NoError(t, err)
	assert.Equal(t, "h1", created.ContentHash)
	assert.True(t, fixed.Equal(created.CreatedAt))

	fetched, err := registry.QueryMedicalRecord(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "h1", fetched.ContentHash)
	assert.Equal(t, "dr-jones", fetched.IssuerDoctorID)
	assert.Equal(t, "alice", fetched.PatientID)
}

func TestQueryMedicalRecordNotFound(t *testing.T) {
	registry, _ := newTestRegistry(t)
	_, err := registry.QueryMedicalRecord(context.Background(), "h-missing")
	assert.True(t, types.HasCode(err, types.CodeNotFound))
}

func TestSubmitMedicalRecordAppendsToPatient(t *testing.T) {
	registry, store := newTestRegistry(t)
	ctx := context.Background()

	_, err := registry.CreateMedicalRecord(ctx, "alice", "dr-jones", "h1")
	require.NoError(t, err)
	require.NoError(t, registry.SubmitMedicalRecord(ctx, "alice", "h1"))

	data, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	alice, err := types.UnmarshalPrincipal(data)
	require.NoError(t, err)
	require.Len(t, alice.Records, 1)
	assert.Equal(t, "h1", alice.Records[0].ContentHash)

	// Submission does not deduplicate.
	require.NoError(t, registry.SubmitMedicalRecord(ctx, "alice", "h1"))
	data, err = store.Get(ctx, "alice")
	require.NoError(t, err)
	alice, err = types.UnmarshalPrincipal(data)
	require.NoError(t, err)
	assert.Len(t, alice.Records, 2)
}

func TestSubmitMedicalRecordValidatesBothSides(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	err := registry.SubmitMedicalRecord(ctx, "ghost", "h1")
	assert.True(t, types.HasCode(err, types.CodeNotFound))

	err = registry.SubmitMedicalRecord(ctx, "alice", "h-missing")
	assert.True(t, types.HasCode(err, types.CodeNotFound))
}

func TestAssetHistoryProjectsVersions(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := registry.CreateMedicalRecord(ctx, "alice", "dr-jones", "h1")
	require.NoError(t, err)
	_, err = registry.CreateMedicalRecord(ctx, "alice", "dr-smith", "h1")
	require.NoError(t, err)

	it, err := registry.AssetHistory(ctx, "h1")
	require.NoError(t, err)
	defer it.Close()

	var entries []*types.HistoryEntry
	for it.HasNext() {
		e, err := it.Next()
		require.NoError(t, err)
		entries = append(entries, e)
	}
	require.Len(t, entries, 2)
	assert.NotEmpty(t, entries[0].TxID)

	first, ok := entries[0].Value.(map[string]interface{})
	require.True(t, ok, "stored JSON decodes to a map")
	assert.Equal(t, "dr-jones", first["issuerDoctorId"])
	second := entries[1].Value.(map[string]interface{})
	assert.Equal(t, "dr-smith", second["issuerDoctorId"])

	_, err = registry.AssetHistory(ctx, "h-missing")
	assert.True(t, types.HasCode(err, types.CodeNotFound))
}

func TestRangeQueryDecodesLeniently(t *testing.T) {
	registry, store := newTestRegistry(t)
	ctx := context.Background()

	_, err := registry.CreateMedicalRecord(ctx, "alice", "dr-jones", "h1")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "legacy", []byte("not json")))

	it, err := registry.RangeQuery(ctx, "", "")
	require.NoError(t, err)
	defer it.Close()

	rows := map[string]interface{}{}
	for it.HasNext() {
		row, err := it.Next()
		require.NoError(t, err)
		rows[row.Key] = row.Record
	}

	assert.Contains(t, rows, "alice")
	assert.Contains(t, rows, "h1")
	assert.Equal(t, "not json", rows["legacy"], "malformed values surface as raw strings")
}
