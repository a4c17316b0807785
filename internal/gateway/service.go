// Package gateway is the HTTP surface over the consent core: principal
// registration/login with session tokens, the consent state machine,
// key disclosure, and record registry operations. The surrounding
// platform normally fronts a Fabric channel; in standalone mode the same
// service runs against a local LevelDB ledger.
package gateway

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/internal/consent"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/internal/credential"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/internal/records"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/config"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/ledger"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/logger"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/monitoring"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/types"
)

// Service wires the core engines behind the HTTP handlers.
type Service struct {
	store    ledger.Store
	verifier *credential.Verifier
	engine   *consent.Engine
	registry *records.Registry
	cfg      *config.Config
	log      *logger.Logger
}

// NewService creates the gateway service over a ledger store.
func NewService(store ledger.Store, cfg *config.Config, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		verifier: credential.NewVerifier(store, log),
		engine:   consent.NewEngine(store, consent.Config{Organizations: cfg.Organizations}, log),
		registry: records.NewRegistry(store, log),
		cfg:      cfg,
		log:      log,
	}
}

// SessionClaims are the JWT claims issued on login.
type SessionClaims struct {
	Role         string `json:"role"`
	Organization string `json:"org"`
	jwt.RegisteredClaims
}

// Register creates a principal after checking the organization tag
// against the injected table.
func (s *Service) Register(ctx context.Context, principal *types.Principal, password string) (*types.Profile, error) {
	if !s.engine.KnownOrganization(principal.Organization) {
		return nil, types.NewNotFoundError("unknown organization %s", principal.Organization)
	}
	if err := s.verifier.Register(ctx, principal, password); err != nil {
		return nil, err
	}
	return principal.Profile(), nil
}

// Login verifies credentials and issues a session token alongside the
// public profile.
func (s *Service) Login(ctx context.Context, username, password string) (string, *types.Profile, error) {
	if err := s.verifier.Verify(ctx, username, password); err != nil {
		return "", nil, err
	}
	profile, err := s.verifier.Lookup(ctx, username)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	claims := SessionClaims{
		Role:         string(profile.Role),
		Organization: profile.Organization,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    s.cfg.JWT.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.cfg.JWT.AccessTokenTTL) * time.Second)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		return "", nil, err
	}
	return token, profile, nil
}

// ParseSession validates a session token and returns its claims.
func (s *Service) ParseSession(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, types.NewInvalidCredentialError("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWT.SecretKey), nil
	})
	if err != nil {
		return nil, types.NewInvalidCredentialError("invalid session token")
	}
	return claims, nil
}

// QueryUser fetches a principal's public profile.
func (s *Service) QueryUser(ctx context.Context, username string) (*types.Profile, error) {
	return s.verifier.Lookup(ctx, username)
}

// SubmitRequest records a doctor's pending access request.
func (s *Service) SubmitRequest(ctx context.Context, patientID, doctorID string) error {
	err := s.engine.SubmitRequest(ctx, patientID, doctorID)
	monitoring.RecordConsentTransition("submit", err)
	return err
}

// DenyRequest removes a pending access request.
func (s *Service) DenyRequest(ctx context.Context, patientID, doctorID string) error {
	err := s.engine.DenyRequest(ctx, patientID, doctorID)
	monitoring.RecordConsentTransition("deny", err)
	return err
}

// ApproveRequest approves a pending access request.
func (s *Service) ApproveRequest(ctx context.Context, patientID, doctorID string) error {
	err := s.engine.ApproveRequest(ctx, patientID, doctorID)
	monitoring.RecordConsentTransition("approve", err)
	return err
}

// RemoveRequest revokes an approved request.
func (s *Service) RemoveRequest(ctx context.Context, patientID, doctorID string) error {
	err := s.engine.RemoveRequest(ctx, patientID, doctorID)
	monitoring.RecordConsentTransition("revoke", err)
	return err
}

// EnableAccess discloses the patient's wrapped key to the doctor.
func (s *Service) EnableAccess(ctx context.Context, patientID, doctorID, symmetricKey string) error {
	err := s.engine.EnableAccess(ctx, patientID, doctorID, symmetricKey)
	monitoring.RecordConsentTransition("enable_access", err)
	return err
}

// RemoveAccess withdraws the doctor's wrapped key for the patient.
func (s *Service) RemoveAccess(ctx context.Context, patientID, doctorID string) error {
	err := s.engine.RemoveAccess(ctx, patientID, doctorID)
	monitoring.RecordConsentTransition("remove_access", err)
	return err
}

// WrappedKey returns the stored disclosure-key ciphertext for a doctor.
func (s *Service) WrappedKey(ctx context.Context, doctorID, patientID string) (string, error) {
	return s.engine.WrappedKey(ctx, doctorID, patientID)
}

// CreateMedicalRecord writes a content-addressed record reference.
func (s *Service) CreateMedicalRecord(ctx context.Context, patientID, doctorID, contentHash string) (*types.RecordRef, error) {
	return s.registry.CreateMedicalRecord(ctx, patientID, doctorID, contentHash)
}

// SubmitMedicalRecord appends a record reference to the patient's list.
func (s *Service) SubmitMedicalRecord(ctx context.Context, patientID, contentHash string) error {
	return s.registry.SubmitMedicalRecord(ctx, patientID, contentHash)
}

// QueryMedicalRecord looks up a record reference by content hash.
func (s *Service) QueryMedicalRecord(ctx context.Context, contentHash string) (*types.RecordRef, error) {
	return s.registry.QueryMedicalRecord(ctx, contentHash)
}

// AssetHistory materializes the projected history of a key under the
// request's cancellation.
func (s *Service) AssetHistory(ctx context.Context, key string) ([]*types.HistoryEntry, error) {
	it, err := s.registry.AssetHistory(ctx, key)
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

// RangeQuery materializes a bounded scan of current ledger values.
func (s *Service) RangeQuery(ctx context.Context, startKey, endKey string) ([]*types.QueryResult, error) {
	it, err := s.registry.RangeQuery(ctx, startKey, endKey)
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
