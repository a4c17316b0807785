// Package consent owns the per-patient request sets and the per-doctor
// disclosure map, and enforces the consent state machine:
//
//	NoRequest -> Pending  (submit, idempotent)
//	Pending   -> Approved (approve)
//	Pending   -> NoRequest (deny)
//	Approved  -> NoRequest (revoke)
//
// Approved -> Pending is not a legal edge. Approval alone does not grant
// key access: a caller must separately invoke EnableAccess, matching the
// two-call contract of the deployed system.
package consent

import (
	"context"

	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/encryption"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/ledger"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/logger"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/types"
)

// Config carries the engine's injected environment. The organization
// table used to be a process-wide constant map; it is passed in here so
// deployments can differ without recompiling.
type Config struct {
	// Organizations maps an organization tag to its display name.
	Organizations map[string]string
}

// Engine drives the consent state machine over the ledger store.
type Engine struct {
	store ledger.Store
	cfg   Config
	log   *logger.Logger
}

// NewEngine creates a consent engine over the given store.
func NewEngine(store ledger.Store, cfg Config, log *logger.Logger) *Engine {
	return &Engine{store: store, cfg: cfg, log: log}
}

// KnownOrganization reports whether the tag is in the injected table.
// An empty table accepts every tag.
func (e *Engine) KnownOrganization(tag string) bool {
	if len(e.cfg.Organizations) == 0 {
		return true
	}
	_, ok := e.cfg.Organizations[tag]
	return ok
}

func (e *Engine) loadPrincipal(ctx context.Context, id string, role types.Role) (*types.Principal, error) {
	data, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, types.NewNotFoundError("the %s %s does not exist", role, id)
	}
	p, err := types.UnmarshalPrincipal(data)
	if err != nil {
		return nil, err
	}
	if p.Role != role {
		return nil, types.NewNotFoundError("the %s %s does not exist", role, id)
	}
	return p, nil
}

// savePrincipal re-serializes the full record; there is no partial-field
// update primitive on the ledger.
func (e *Engine) savePrincipal(ctx context.Context, p *types.Principal) error {
	data, err := types.MarshalPrincipal(p)
	if err != nil {
		return err
	}
	return e.store.Put(ctx, p.Username, data)
}

// SubmitRequest records a doctor's access request against a patient.
// Idempotent: a doctor already pending, or already approved, leaves the
// record unchanged (a doctor id lives in at most one of the two sets).
func (e *Engine) SubmitRequest(ctx context.Context, patientID, doctorID string) error {
	patient, err := e.loadPrincipal(ctx, patientID, types.RolePatient)
	if err != nil {
		e.log.ConsentTransition(patientID, doctorID, "submit", false, "patient lookup failed")
		return err
	}

	if patient.HasPending(doctorID) || patient.HasApproved(doctorID) {
		e.log.ConsentTransition(patientID, doctorID, "submit", true, "already present")
		return nil
	}

	patient.PendingRequests = append(patient.PendingRequests, doctorID)
	if err := e.savePrincipal(ctx, patient); err != nil {
		return err
	}
	e.log.ConsentTransition(patientID, doctorID, "submit", true, "")
	return nil
}

// DenyRequest removes a still-pending request. INVALID_TRANSITION when
// the doctor has no pending request.
func (e *Engine) DenyRequest(ctx context.Context, patientID, doctorID string) error {
	patient, err := e.loadPrincipal(ctx, patientID, types.RolePatient)
	if err != nil {
		return err
	}

	if !patient.HasPending(doctorID) {
		e.log.ConsentTransition(patientID, doctorID, "deny", false, "no pending request")
		return types.NewInvalidTransitionError("doctor %s has no pending request for patient %s", doctorID, patientID)
	}

	patient.RemovePending(doctorID)
	if err := e.savePrincipal(ctx, patient); err != nil {
		return err
	}
	e.log.ConsentTransition(patientID, doctorID, "deny", true, "")
	return nil
}

// ApproveRequest moves a pending request to the approved set in one
// record write. INVALID_TRANSITION when the doctor has no pending
// request; a doctor cannot become approved without one. Key disclosure
// is a separate EnableAccess call.
func (e *Engine) ApproveRequest(ctx context.Context, patientID, doctorID string) error {
	patient, err := e.loadPrincipal(ctx, patientID, types.RolePatient)
	if err != nil {
		return err
	}

	if !patient.HasPending(doctorID) {
		e.log.ConsentTransition(patientID, doctorID, "approve", false, "no pending request")
		return types.NewInvalidTransitionError("doctor %s has no pending request for patient %s", doctorID, patientID)
	}

	patient.RemovePending(doctorID)
	patient.ApprovedRequests = append(patient.ApprovedRequests, doctorID)
	if err := e.savePrincipal(ctx, patient); err != nil {
		return err
	}
	e.log.ConsentTransition(patientID, doctorID, "approve", true, "")
	return nil
}

// RemoveRequest revokes an approval's bookkeeping entry.
// INVALID_TRANSITION when the doctor is not approved.
func (e *Engine) RemoveRequest(ctx context.Context, patientID, doctorID string) error {
	patient, err := e.loadPrincipal(ctx, patientID, types.RolePatient)
	if err != nil {
		return err
	}

	if !patient.HasApproved(doctorID) {
		e.log.ConsentTransition(patientID, doctorID, "revoke", false, "not approved")
		return types.NewInvalidTransitionError("doctor %s is not approved for patient %s", doctorID, patientID)
	}

	patient.RemoveApproved(doctorID)
	if err := e.savePrincipal(ctx, patient); err != nil {
		return err
	}
	e.log.ConsentTransition(patientID, doctorID, "revoke", true, "")
	return nil
}

// EnableAccess wraps the patient's symmetric disclosure key under the
// doctor-derived wrapping key and stores it in the doctor's patients
// map. First writer wins: an existing entry is never overwritten, so
// re-approval after revocation requires RemoveAccess to have cleared it.
func (e *Engine) EnableAccess(ctx context.Context, patientID, doctorID, symmetricKey string) error {
	doctor, err := e.loadPrincipal(ctx, doctorID, types.RoleDoctor)
	if err != nil {
		e.log.ConsentTransition(patientID, doctorID, "enable_access", false, "doctor lookup failed")
		return err
	}

	if doctor.Patients == nil {
		doctor.Patients = map[string]string{}
	}
	if _, exists := doctor.Patients[patientID]; exists {
		e.log.ConsentTransition(patientID, doctorID, "enable_access", true, "key already disclosed")
		return nil
	}

	wrapped, err := encryption.WrapKey(doctorID, symmetricKey)
	if err != nil {
		return err
	}
	doctor.Patients[patientID] = wrapped
	if err := e.savePrincipal(ctx, doctor); err != nil {
		return err
	}
	e.log.ConsentTransition(patientID, doctorID, "enable_access", true, "")
	return nil
}

// RemoveAccess deletes the patient's wrapped key from the doctor's map.
// Idempotent: absent entries (and absent doctors) are a no-op.
func (e *Engine) RemoveAccess(ctx context.Context, patientID, doctorID string) error {
	data, err := e.store.Get(ctx, doctorID)
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}
	doctor, err := types.UnmarshalPrincipal(data)
	if err != nil {
		return err
	}
	if doctor.Role != types.RoleDoctor {
		return nil
	}

	if _, exists := doctor.Patients[patientID]; !exists {
		return nil
	}
	delete(doctor.Patients, patientID)
	if len(doctor.Patients) == 0 {
		doctor.Patients = map[string]string{}
	}
	if err := e.savePrincipal(ctx, doctor); err != nil {
		return err
	}
	e.log.ConsentTransition(patientID, doctorID, "remove_access", true, "")
	return nil
}

// WrappedKey returns the stored ciphertext of the patient's disclosure
// key for the given doctor. The doctor's own client unwraps it by
// recomputing the identifier digest; the ledger never stores the key in
// the clear.
func (e *Engine) WrappedKey(ctx context.Context, doctorID, patientID string) (string, error) {
	doctor, err := e.loadPrincipal(ctx, doctorID, types.RoleDoctor)
	if err != nil {
		return "", err
	}
	wrapped, exists := doctor.Patients[patientID]
	if !exists {
		return "", types.NewNotFoundError("no disclosed key for patient %s under doctor %s", patientID, doctorID)
	}
	return wrapped, nil
}
