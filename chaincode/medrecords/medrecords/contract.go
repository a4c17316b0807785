// Package medrecords exposes the consent ledger as Fabric chaincode:
// principal registration and login, the consent state machine, key
// disclosure, and the content-addressed record registry. Each
// transaction adapts the chaincode stub to the ledger store and
// delegates to the core engines; the peer commits staged writes
// atomically.
package medrecords

import (
	"context"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/internal/consent"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/internal/credential"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/internal/records"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/ledger"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/logger"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/types"
)

// SmartContract provides functions for managing medical-record consent
type SmartContract struct {
	contractapi.Contract
}

// LoginResult is the VerifyLogin success payload.
type LoginResult struct {
	Status   string `json:"status"`
	Username string `json:"username"`
}

func chaincodeLogger() *logger.Logger {
	// Chaincode containers log through the peer; keep our own output to
	// warnings and errors.
	return logger.New("warn")
}

func (s *SmartContract) engines(ctx contractapi.TransactionContextInterface) (*credential.Verifier, *consent.Engine, *records.Registry) {
	store := ledger.NewFabricStore(ctx.GetStub())
	log := chaincodeLogger()
	verifier := credential.NewVerifier(store, log)
	engine := consent.NewEngine(store, consent.Config{}, log)
	registry := records.NewRegistry(store, log)
	if ts, err := ctx.GetStub().GetTxTimestamp(); err == nil && ts != nil {
		committed := time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
		registry.SetClock(func() time.Time { return committed })
	}
	return verifier, engine, registry
}

// RegisterUser creates a patient or doctor principal keyed by username.
func (s *SmartContract) RegisterUser(ctx contractapi.TransactionContextInterface, username, password, role, firstName, lastName, email, organization string) (*types.Profile, error) {
	verifier, _, _ := s.engines(ctx)
	principal := &types.Principal{
		Username:     username,
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		Organization: organization,
		Role:         types.Role(role),
	}
	if err := verifier.Register(context.Background(), principal, password); err != nil {
		return nil, err
	}
	return principal.Profile(), nil
}

// VerifyLogin validates a username/password pair against the stored
// credential digest. Read-only.
func (s *SmartContract) VerifyLogin(ctx contractapi.TransactionContextInterface, username, password string) (*LoginResult, error) {
	verifier, _, _ := s.engines(ctx)
	if err := verifier.Verify(context.Background(), username, password); err != nil {
		return nil, err
	}
	return &LoginResult{Status: "ok", Username: username}, nil
}

// QueryUser returns a principal's public profile.
func (s *SmartContract) QueryUser(ctx contractapi.TransactionContextInterface, username string) (*types.Profile, error) {
	verifier, _, _ := s.engines(ctx)
	return verifier.Lookup(context.Background(), username)
}

// SubmitRequest records a doctor's pending access request for a patient.
func (s *SmartContract) SubmitRequest(ctx contractapi.TransactionContextInterface, patientID, doctorID string) error {
	_, engine, _ := s.engines(ctx)
	return engine.SubmitRequest(context.Background(), patientID, doctorID)
}

// DenyRequest removes a pending access request.
func (s *SmartContract) DenyRequest(ctx contractapi.TransactionContextInterface, patientID, doctorID string) error {
	_, engine, _ := s.engines(ctx)
	return engine.DenyRequest(context.Background(), patientID, doctorID)
}

// ApproveRequest moves a pending request to the approved set. Key
// disclosure requires a separate EnableAccess transaction.
func (s *SmartContract) ApproveRequest(ctx contractapi.TransactionContextInterface, patientID, doctorID string) error {
	_, engine, _ := s.engines(ctx)
	return engine.ApproveRequest(context.Background(), patientID, doctorID)
}

// RemoveRequest revokes an approved request.
func (s *SmartContract) RemoveRequest(ctx contractapi.TransactionContextInterface, patientID, doctorID string) error {
	_, engine, _ := s.engines(ctx)
	return engine.RemoveRequest(context.Background(), patientID, doctorID)
}

// EnableAccess wraps the patient's disclosure key for the doctor and
// stores it in the doctor's patients map; first writer wins.
func (s *SmartContract) EnableAccess(ctx contractapi.TransactionContextInterface, patientID, doctorID, symmetricKey string) error {
	_, engine, _ := s.engines(ctx)
	return engine.EnableAccess(context.Background(), patientID, doctorID, symmetricKey)
}

// RemoveAccess deletes the patient's wrapped key from the doctor's map.
func (s *SmartContract) RemoveAccess(ctx contractapi.TransactionContextInterface, patientID, doctorID string) error {
	_, engine, _ := s.engines(ctx)
	return engine.RemoveAccess(context.Background(), patientID, doctorID)
}

// GetWrappedKey returns the stored ciphertext of the patient's
// disclosure key for the doctor's own client to unwrap.
func (s *SmartContract) GetWrappedKey(ctx contractapi.TransactionContextInterface, doctorID, patientID string) (string, error) {
	_, engine, _ := s.engines(ctx)
	return engine.WrappedKey(context.Background(), doctorID, patientID)
}

// CreateMedicalRecord writes a content-addressed record reference.
func (s *SmartContract) CreateMedicalRecord(ctx contractapi.TransactionContextInterface, patientID, doctorID, contentHash string) (*types.RecordRef, error) {
	_, _, registry := s.engines(ctx)
	return registry.CreateMedicalRecord(context.Background(), patientID, doctorID, contentHash)
}

// SubmitMedicalRecord appends an existing record reference into the
// patient's record list.
func (s *SmartContract) SubmitMedicalRecord(ctx contractapi.TransactionContextInterface, patientID, contentHash string) error {
	_, _, registry := s.engines(ctx)
	return registry.SubmitMedicalRecord(context.Background(), patientID, contentHash)
}

// QueryMedicalRecord looks up a record reference by content hash.
func (s *SmartContract) QueryMedicalRecord(ctx contractapi.TransactionContextInterface, contentHash string) (*types.RecordRef, error) {
	_, _, registry := s.engines(ctx)
	return registry.QueryMedicalRecord(context.Background(), contentHash)
}

// GetAssetHistory returns every committed version of a key, oldest
// first, projected to transaction id, decoded value, and timestamp.
func (s *SmartContract) GetAssetHistory(ctx contractapi.TransactionContextInterface, key string) ([]*types.HistoryEntry, error) {
	_, _, registry := s.engines(ctx)
	it, err := registry.AssetHistory(context.Background(), key)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var entries []*types.HistoryEntry
	for it.HasNext() {
		entry, err := it.Next()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetAllAssets scans current ledger values over [startKey, endKey);
// empty bounds scan the whole namespace. Malformed stored values are
// returned as raw strings.
func (s *SmartContract) GetAllAssets(ctx contractapi.TransactionContextInterface, startKey, endKey string) ([]*types.QueryResult, error) {
	_, _, registry := s.engines(ctx)
	it, err := registry.RangeQuery(context.Background(), startKey, endKey)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var results []*types.QueryResult
	for it.HasNext() {
		row, err := it.Next()
		if err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, nil
}
