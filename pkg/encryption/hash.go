package encryption

import (
	"crypto/sha256"
	"fmt"
)

// HashData generates the SHA-256 hex digest used for content addressing
// of medical records.
func HashData(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// CredentialDigest computes the stored login digest: sha256 over the
// concatenation of username and password. The username acts as the only
// salt, a compatibility contract with the deployed ledger rather than a
// recommended password scheme.
func CredentialDigest(username, password string) string {
	return HashData([]byte(username + password))
}
