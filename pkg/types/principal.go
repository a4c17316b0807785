package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role distinguishes the two principal variants stored on the ledger.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// RecordRef is a content-addressed reference to a medical record. The
// record payload lives off-ledger; the hash is its identity. Immutable
// once created.
type RecordRef struct {
	ContentHash    string    `json:"contentHash"`
	IssuerDoctorID string    `json:"issuerDoctorId"`
	PatientID      string    `json:"patientId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Principal is a registered patient or doctor identity, keyed on the
// ledger by username. The patient- and doctor-only fields are optional
// so both variants share one JSON layout; field names and order are a
// compatibility contract and must not change.
type Principal struct {
	Username       string `json:"username"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	Organization   string `json:"organization"`
	Role           Role   `json:"identityRole"`
	CredentialHash string `json:"credentialHash"`

	// Patient-only consent state. A doctor id lives in at most one of
	// PendingRequests and ApprovedRequests at any time.
	PendingRequests  []string    `json:"pendingRequests,omitempty"`
	ApprovedRequests []string    `json:"approvedRequests,omitempty"`
	Records          []RecordRef `json:"records,omitempty"`

	// Doctor-only: patient id -> wrapped disclosure key ciphertext.
	Patients map[string]string `json:"patients,omitempty"`
}

// Validate checks the variant shape at the storage boundary.
func (p *Principal) Validate() error {
	if p.Username == "" {
		return fmt.Errorf("principal username is required")
	}
	switch p.Role {
	case RolePatient:
		if p.Patients != nil {
			return fmt.Errorf("patient %s must not carry a patients map", p.Username)
		}
	case RoleDoctor:
		if p.PendingRequests != nil || p.ApprovedRequests != nil || p.Records != nil {
			return fmt.Errorf("doctor %s must not carry patient consent state", p.Username)
		}
	default:
		return fmt.Errorf("unknown identity role %q for %s", p.Role, p.Username)
	}
	return nil
}

// HasPending reports whether doctorID is in the pending set.
func (p *Principal) HasPending(doctorID string) bool {
	return containsID(p.PendingRequests, doctorID)
}

// HasApproved reports whether doctorID is in the approved set.
func (p *Principal) HasApproved(doctorID string) bool {
	return containsID(p.ApprovedRequests, doctorID)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// RemovePending drops doctorID from the pending set.
func (p *Principal) RemovePending(doctorID string) {
	p.PendingRequests = removeID(p.PendingRequests, doctorID)
}

// RemoveApproved drops doctorID from the approved set.
func (p *Principal) RemoveApproved(doctorID string) {
	p.ApprovedRequests = removeID(p.ApprovedRequests, doctorID)
}

// Profile is the public projection of a principal; the credential hash
// and wrapped keys never leave the ledger through this shape.
type Profile struct {
	Username         string      `json:"username"`
	FirstName        string      `json:"firstName"`
	LastName         string      `json:"lastName"`
	Email            string      `json:"email"`
	Organization     string      `json:"organization"`
	Role             Role        `json:"identityRole"`
	PendingRequests  []string    `json:"pendingRequests,omitempty"`
	ApprovedRequests []string    `json:"approvedRequests,omitempty"`
	Records          []RecordRef `json:"records,omitempty"`
}

// Profile returns the public projection of the principal.
func (p *Principal) Profile() *Profile {
	return &Profile{
		Username:         p.Username,
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		Email:            p.Email,
		Organization:     p.Organization,
		Role:             p.Role,
		PendingRequests:  p.PendingRequests,
		ApprovedRequests: p.ApprovedRequests,
		Records:          p.Records,
	}
}

// MarshalPrincipal encodes a principal for ledger storage after shape
// validation. encoding/json emits struct fields in declaration order and
// map keys sorted, so the encoding is deterministic.
func MarshalPrincipal(p *Principal) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

// UnmarshalPrincipal decodes a stored principal and re-validates its shape.
func UnmarshalPrincipal(data []byte) (*Principal, error) {
	var p Principal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal principal: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// HistoryEntry is one projected version of a ledger key: the committing
// transaction id, the decoded value (or the raw string when the stored
// bytes are not valid JSON), and the commit wall-clock timestamp.
type HistoryEntry struct {
	TxID      string      `json:"txId"`
	Value     interface{} `json:"value"`
	Timestamp time.Time   `json:"timestamp"`
	IsDelete  bool        `json:"isDelete"`
}

// QueryResult is one row of an open range scan, mirroring the
// {Key, Record} shape of the original GetAllAssets output.
type QueryResult struct {
	Key    string      `json:"Key"`
	Record interface{} `json:"Record"`
}
