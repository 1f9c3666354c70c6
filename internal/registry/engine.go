package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// RemoteService is the authoritative consent registry behind the engine.
type RemoteService interface {
	Fetcher
	CreateConsent(ctx context.Context, draft ConsentRecord) (*ConsentRecord, error)
	UpdateConsentStatus(ctx context.Context, id string, status Status) (*ConsentRecord, error)
}

// IdentityProvider exposes the currently connected wallet address, if any.
type IdentityProvider interface {
	ConnectedAddress() (string, bool)
}

// ActionRecorder receives an audit record of every create/transition
// attempt. Recording is best-effort: failures are logged, never
// propagated to the caller.
type ActionRecorder interface {
	RecordAction(ctx context.Context, action string, rec *ConsentRecord, outcome error)
}

// Engine enforces the consent lifecycle. Transitions are validated
// client-side for precise errors, but the registry service is the final
// arbiter; after every acknowledged write the store is refreshed at its
// current scope rather than patched optimistically.
type Engine struct {
	binder   *Binder
	remote   RemoteService
	store    *Store
	identity IdentityProvider
	recorder ActionRecorder
	log      zerolog.Logger
}

func NewEngine(binder *Binder, remote RemoteService, store *Store, identity IdentityProvider, log zerolog.Logger) *Engine {
	return &Engine{
		binder:   binder,
		remote:   remote,
		store:    store,
		identity: identity,
		log:      log,
	}
}

// SetRecorder attaches an audit recorder for lifecycle actions.
func (e *Engine) SetRecorder(r ActionRecorder) { e.recorder = r }

// Create signs a consent statement for (subjectID, purpose) with the
// connected wallet and submits a new pending record. Identity presence is
// checked before any signing or network activity.
func (e *Engine) Create(ctx context.Context, subjectID string, purpose Purpose) (*ConsentRecord, error) {
	address, connected := e.identity.ConnectedAddress()
	if !connected {
		return nil, ErrMissingIdentity
	}
	if strings.TrimSpace(subjectID) == "" {
		return nil, ErrMissingSubject
	}
	if !purpose.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPurpose, purpose)
	}

	stmt, err := e.binder.Bind(ctx, subjectID, purpose, address)
	if err != nil {
		return nil, err
	}

	created, err := e.remote.CreateConsent(ctx, ConsentRecord{
		SubjectID:     subjectID,
		Purpose:       purpose,
		WalletAddress: address,
		Message:       stmt.Message,
		Signature:     stmt.Signature,
		Status:        StatusPending,
	})
	e.record(ctx, "consent.create", created, err)
	if err != nil {
		return nil, err
	}

	e.refresh(ctx)
	return created, nil
}

// Transition moves the record with id to target per the state machine.
// The current status is re-fetched from the registry, never taken from
// the local cache, so a stale view cannot authorize an illegal move.
func (e *Engine) Transition(ctx context.Context, id string, target Status) (*ConsentRecord, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown target status %q", ErrIllegalTransition, target)
	}

	current, err := e.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, target) {
		err := fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current.Status, target)
		e.record(ctx, "consent.transition", current, err)
		return nil, err
	}

	updated, err := e.remote.UpdateConsentStatus(ctx, id, target)
	e.record(ctx, "consent.transition", updated, err)
	if err != nil {
		return nil, err
	}

	e.refresh(ctx)
	return updated, nil
}

// Approve activates a pending record.
func (e *Engine) Approve(ctx context.Context, id string) (*ConsentRecord, error) {
	return e.Transition(ctx, id, StatusActive)
}

// Reject revokes a pending record.
func (e *Engine) Reject(ctx context.Context, id string) (*ConsentRecord, error) {
	return e.Transition(ctx, id, StatusRevoked)
}

// Revoke revokes an active record.
func (e *Engine) Revoke(ctx context.Context, id string) (*ConsentRecord, error) {
	return e.Transition(ctx, id, StatusRevoked)
}

// lookup resolves a record's current state from the registry. The wire
// contract only exposes list queries, so the record is found by scanning
// an unrestricted fetch.
func (e *Engine) lookup(ctx context.Context, id string) (*ConsentRecord, error) {
	records, err := e.remote.FetchConsents(ctx, Scope{})
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// refresh reloads the store at its current scope after an acknowledged
// write. The store fails closed on error, so a failed refresh leaves an
// empty view rather than a stale one; the failure is logged here.
func (e *Engine) refresh(ctx context.Context) {
	if e.store == nil {
		return
	}
	if _, err := e.store.Refresh(ctx); err != nil {
		e.log.Warn().Err(err).Msg("post-write refresh failed")
	}
}

func (e *Engine) record(ctx context.Context, action string, rec *ConsentRecord, outcome error) {
	if e.recorder == nil {
		return
	}
	e.recorder.RecordAction(ctx, action, rec, outcome)
}
