package medrecords

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/encryption"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/types"
)

// MockTransactionContext provides a mock transaction context for testing
type MockTransactionContext struct {
	mock.Mock
}

func (m *MockTransactionContext) GetStub() shim.ChaincodeStubInterface {
	args := m.Called()
	return args.Get(0).(shim.ChaincodeStubInterface)
}

func (m *MockTransactionContext) GetClientIdentity() cid.ClientIdentity {
	args := m.Called()
	return args.Get(0).(cid.ClientIdentity)
}

// MockChaincodeStub keeps world state and per-key history in memory so a
// full transaction flow can run against it. Methods the contract never
// touches fall through to the embedded nil interface.
type MockChaincodeStub struct {
	shim.ChaincodeStubInterface
	State   map[string][]byte
	History map[string][]*queryresult.KeyModification
	txSeq   int
}

func NewMockChaincodeStub() *MockChaincodeStub {
	return &MockChaincodeStub{
		State:   map[string][]byte{},
		History: map[string][]*queryresult.KeyModification{},
	}
}

func (m *MockChaincodeStub) recordVersion(key string, value []byte, isDelete bool) {
	m.txSeq++
	m.History[key] = append(m.History[key], &queryresult.KeyModification{
		TxId:      fmt.Sprintf("tx_%d", m.txSeq),
		Value:     value,
		Timestamp: timestamppb.New(time.Date(2024, 3, 1, 9, 0, m.txSeq, 0, time.UTC)),
		IsDelete:  isDelete,
	})
}

func (m *MockChaincodeStub) GetState(key string) ([]byte, error) {
	return m.State[key], nil
}

func (m *MockChaincodeStub) PutState(key string, value []byte) error {
	m.State[key] = value
	m.recordVersion(key, value, false)
	return nil
}

func (m *MockChaincodeStub) DelState(key string) error {
	delete(m.State, key)
	m.recordVersion(key, nil, true)
	return nil
}

func (m *MockChaincodeStub) GetStateByRange(startKey, endKey string) (shim.StateQueryIteratorInterface, error) {
	var keys []string
	for k := range m.State {
		if (startKey == "" || k >= startKey) && (endKey == "" || k < endKey) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	results := make([]*queryresult.KV, 0, len(keys))
	for _, k := range keys {
		results = append(results, &queryresult.KV{Key: k, Value: m.State[k]})
	}
	return &MockStateQueryIterator{Results: results}, nil
}

func (m *MockChaincodeStub) GetHistoryForKey(key string) (shim.HistoryQueryIteratorInterface, error) {
	return &MockHistoryQueryIterator{Results: m.History[key]}, nil
}

func (m *MockChaincodeStub) GetTxTimestamp() (*timestamppb.Timestamp, error) {
	return timestamppb.New(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)), nil
}

// MockStateQueryIterator provides a mock state query iterator for testing
type MockStateQueryIterator struct {
	Results []*queryresult.KV
	Index   int
}

func (m *MockStateQueryIterator) HasNext() bool {
	return m.Index < len(m.Results)
}

func (m *MockStateQueryIterator) Next() (*queryresult.KV, error) {
	if m.Index >= len(m.Results) {
		return nil, fmt.Errorf("no more results")
	}
	result := m.Results[m.Index]
	m.Index++
	return result, nil
}

func (m *MockStateQueryIterator) Close() error {
	return nil
}

// MockHistoryQueryIterator replays recorded key versions oldest first
type MockHistoryQueryIterator struct {
	Results []*queryresult.KeyModification
	Index   int
}

func (m *MockHistoryQueryIterator) HasNext() bool {
	return m.Index < len(m.Results)
}

func (m *MockHistoryQueryIterator) Next() (*queryresult.KeyModification, error) {
	if m.Index >= len(m.Results) {
		return nil, fmt.Errorf("no more results")
	}
	result := m.Results[m.Index]
	m.Index++
	return result, nil
}

func (m *MockHistoryQueryIterator) Close() error {
	return nil
}

func newTestContext() (*MockTransactionContext, *MockChaincodeStub) {
	ctx := new(MockTransactionContext)
	stub := NewMockChaincodeStub()
	ctx.On("GetStub").Return(stub)
	return ctx, stub
}

func registerPatient(t *testing.T, contract *SmartContract, ctx *MockTransactionContext, username string) {
	t.Helper()
	_, err := contract.RegisterUser(ctx, username, "pw", "patient", "Test", "Patient", username+"@example.org", "hospital")
	require.NoError(t, err)
}

func registerDoctor(t *testing.T, contract *SmartContract, ctx *MockTransactionContext, username string) {
	t.Helper()
	_, err := contract.RegisterUser(ctx, username, "pw", "doctor", "Test", "Doctor", username+"@example.org", "clinic")
	require.NoError(t, err)
}

func TestSmartContract_RegisterAndLogin(t *testing.T) {
	contract := new(SmartContract)
	ctx, stub := newTestContext()

	profile, err := contract.RegisterUser(ctx, "alice", "pw1", "patient", "Alice", "Nguyen", "alice@example.org", "hospital")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, types.RolePatient, profile.Role)
	assert.NotNil(t, stub.State["alice"])

	result, err := contract.VerifyLogin(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, "alice", result.Username)

	_, err = contract.VerifyLogin(ctx, "alice", "wrong")
	assert.True(t, types.HasCode(err, types.CodeInvalidCredential))

	_, err = contract.VerifyLogin(ctx, "ghost", "pw")
	assert.True(t, types.HasCode(err, types.CodeNotFound))
}

func TestSmartContract_RegisterDuplicate(t *testing.T) {
	contract := new(SmartContract)
	ctx, _ := newTestContext()

	registerPatient(t, contract, ctx, "alice")
	_, err := contract.RegisterUser(ctx, "alice", "other", "patient", "A", "N", "a@example.org", "hospital")
	assert.True(t, types.HasCode(err, types.CodeAlreadyExists))
}

func TestSmartContract_QueryUserHidesDigest(t *testing.T) {
	contract := new(SmartContract)
	ctx, _ := newTestContext()

	registerPatient(t, contract, ctx, "alice")
	profile, err := contract.QueryUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)

	_, err = contract.QueryUser(ctx, "ghost")
	assert.True(t, types.HasCode(err, types.CodeNotFound))
}

func TestSmartContract_ConsentLifecycle(t *testing.T) {
	contract := new(SmartContract)
	ctx, _ := newTestContext()

	registerPatient(t, contract, ctx, "alice")
	registerDoctor(t, contract, ctx, "dr-jones")

	require.NoError(t, contract.SubmitRequest(ctx, "alice", "dr-jones"))
	require.NoError(t, contract.SubmitRequest(ctx, "alice", "dr-jones"))

	profile, err := contract.QueryUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"dr-jones"}, profile.PendingRequests)

	require.NoError(t, contract.ApproveRequest(ctx, "alice", "dr-jones"))
	profile, err = contract.QueryUser(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, profile.PendingRequests)
	assert.Equal(t, []string{"dr-jones"}, profile.ApprovedRequests)

	require.NoError(t, contract.EnableAccess(ctx, "alice", "dr-jones", "sym-key-1"))
	wrapped, err := contract.GetWrappedKey(ctx, "dr-jones", "alice")
	require.NoError(t, err)
	key, err := encryption.UnwrapKey("dr-jones", wrapped)
	require.NoError(t, err)
	assert.Equal(t, "sym-key-1", key)

	require.NoError(t, contract.RemoveRequest(ctx, "alice", "dr-jones"))
	require.NoError(t, contract.RemoveAccess(ctx, "alice", "dr-jones"))
	_, err = contract.GetWrappedKey(ctx, "dr-jones", "alice")
	assert.True(t, types.HasCode(err, types.CodeNotFound))
}

func TestSmartContract_ApproveWithoutRequest(t *testing.T) {
	contract := new(SmartContract)
	ctx, _ := newTestContext()

	registerPatient(t, contract, ctx, "alice")
	err := contract.ApproveRequest(ctx, "alice", "dr-jones")
	assert.True(t, types.HasCode(err, types.CodeInvalidTransition))

	err = contract.DenyRequest(ctx, "alice", "dr-jones")
	assert.True(t, types.HasCode(err, types.CodeInvalidTransition))
}

func TestSmartContract_MedicalRecords(t *testing.T) {
	contract := new(SmartContract)
	ctx, _ := newTestContext()

	registerPatient(t, contract, ctx, "alice")
	registerDoctor(t, contract, ctx, "dr-jones")

	ref, err := contract.CreateMedicalRecord(ctx, "alice", "dr-jones", "h1")
	require.NoError(t, err)
	assert.Equal(t, "h1", ref.ContentHash)
	// Record creation time comes from the transaction timestamp.
	assert.Equal(t, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), ref.CreatedAt)

	require.NoError(t, contract.SubmitMedicalRecord(ctx, "alice", "h1"))
	profile, err := contract.QueryUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, profile.Records, 1)
	assert.Equal(t, "h1", profile.Records[0].ContentHash)

	fetched, err := contract.QueryMedicalRecord(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "dr-jones", fetched.IssuerDoctorID)

	_, err = contract.QueryMedicalRecord(ctx, "h-missing")
	assert.True(t, types.HasCode(err, types.CodeNotFound))
}

func TestSmartContract_GetAssetHistory(t *testing.T) {
	contract := new(SmartContract)
	ctx, _ := newTestContext()

	registerPatient(t, contract, ctx, "alice")
	registerDoctor(t, contract, ctx, "dr-jones")
	require.NoError(t, contract.SubmitRequest(ctx, "alice", "dr-jones"))

	entries, err := contract.GetAssetHistory(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 2, "registration plus one consent write")
	assert.Equal(t, "tx_1", entries[0].TxID)
	assert.True(t, entries[0].Timestamp.Before(entries[1].Timestamp), "history is oldest first")

	first, ok := entries[0].Value.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "alice", first["username"])
	_, hasPending := first["pendingRequests"]
	assert.False(t, hasPending)

	second := entries[1].Value.(map[string]interface{})
	assert.Contains(t, second, "pendingRequests")

	_, err = contract.GetAssetHistory(ctx, "ghost")
	assert.True(t, types.HasCode(err, types.CodeNotFound))
}

func TestSmartContract_GetAllAssets(t *testing.T) {
	contract := new(SmartContract)
	ctx, _ := newTestContext()

	registerPatient(t, contract, ctx, "alice")
	registerPatient(t, contract, ctx, "bob")
	registerDoctor(t, contract, ctx, "dr-jones")

	results, err := contract.GetAllAssets(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "alice", results[0].Key)
	assert.Equal(t, "bob", results[1].Key)
	assert.Equal(t, "dr-jones", results[2].Key)

	bounded, err := contract.GetAllAssets(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, bounded, 1)
	assert.Equal(t, "alice", bounded[0].Key)
}
