// Package credential stores one salted digest per principal and
// validates login attempts against it.
package credential

import (
	"context"
	"crypto/subtle"

	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/encryption"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/ledger"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/logger"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/types"
)

// Verifier registers principals and validates their credentials.
type Verifier struct {
	store ledger.Store
	log   *logger.Logger
}

// NewVerifier creates a credential verifier over the given store.
func NewVerifier(store ledger.Store, log *logger.Logger) *Verifier {
	return &Verifier{store: store, log: log}
}

// Register creates the principal record with its credential digest. The
// username is the ledger key; registration fails with ALREADY_EXISTS
// when the key is taken. Patient consent state and doctor key maps start
// empty.
func (v *Verifier) Register(ctx context.Context, principal *types.Principal, password string) error {
	existing, err := v.store.Get(ctx, principal.Username)
	if err != nil {
		return err
	}
	if existing != nil {
		v.log.Audit(principal.Username, "register", "principal", false, nil)
		return types.NewAlreadyExistsError("the user %s already exists", principal.Username)
	}

	principal.CredentialHash = encryption.CredentialDigest(principal.Username, password)
	if principal.Role == types.RoleDoctor && principal.Patients == nil {
		principal.Patients = map[string]string{}
	}

	data, err := types.MarshalPrincipal(principal)
	if err != nil {
		return err
	}
	if err := v.store.Put(ctx, principal.Username, data); err != nil {
		return err
	}

	v.log.Audit(principal.Username, "register", "principal", true, map[string]interface{}{
		"role":         principal.Role,
		"organization": principal.Organization,
	})
	return nil
}

// Verify recomputes the login digest and compares it to the stored one.
// Absent principals fail with NOT_FOUND, mismatches with
// INVALID_CREDENTIAL. Read-only; the caller fetches the public profile
// separately.
func (v *Verifier) Verify(ctx context.Context, username, password string) error {
	data, err := v.store.Get(ctx, username)
	if err != nil {
		return err
	}
	if data == nil {
		return types.NewNotFoundError("the user %s does not exist", username)
	}

	principal, err := types.UnmarshalPrincipal(data)
	if err != nil {
		return err
	}

	digest := encryption.CredentialDigest(username, password)
	if subtle.ConstantTimeCompare([]byte(digest), []byte(principal.CredentialHash)) != 1 {
		v.log.Audit(username, "login", "principal", false, nil)
		return types.NewInvalidCredentialError("invalid credentials for %s", username)
	}

	v.log.Audit(username, "login", "principal", true, nil)
	return nil
}

// Lookup fetches a principal's public profile by username.
func (v *Verifier) Lookup(ctx context.Context, username string) (*types.Profile, error) {
	data, err := v.store.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, types.NewNotFoundError("the user %s does not exist", username)
	}
	principal, err := types.UnmarshalPrincipal(data)
	if err != nil {
		return nil, err
	}
	return principal.Profile(), nil
}
