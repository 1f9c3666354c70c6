package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// -- Mock collaborators --

type mockRegistry struct {
	records     []ConsentRecord
	nextID      int
	fetchCalls  int
	createCalls int
	updateCalls int
	createErr   error
	updateErr   error
}

func (m *mockRegistry) FetchConsents(_ context.Context, scope Scope) ([]ConsentRecord, error) {
	m.fetchCalls++
	var out []ConsentRecord
	for _, rec := range m.records {
		if scope.SubjectID != "" && rec.SubjectID != scope.SubjectID {
			continue
		}
		if scope.Status != nil && rec.Status != *scope.Status {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *mockRegistry) CreateConsent(_ context.Context, draft ConsentRecord) (*ConsentRecord, error) {
	m.createCalls++
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.nextID++
	draft.ID = fmt.Sprintf("consent-%d", m.nextID)
	draft.CreatedAt = time.Now()
	m.records = append(m.records, draft)
	return &draft, nil
}

func (m *mockRegistry) UpdateConsentStatus(_ context.Context, id string, status Status) (*ConsentRecord, error) {
	m.updateCalls++
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i].Status = status
			rec := m.records[i]
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

type mockIdentity struct {
	address   string
	connected bool
}

func (m *mockIdentity) ConnectedAddress() (string, bool) { return m.address, m.connected }

type recordedAction struct {
	action  string
	outcome error
}

type mockRecorder struct {
	actions []recordedAction
}

func (m *mockRecorder) RecordAction(_ context.Context, action string, _ *ConsentRecord, outcome error) {
	m.actions = append(m.actions, recordedAction{action: action, outcome: outcome})
}

func newTestEngine(remote *mockRegistry, signer Signer, identity IdentityProvider) (*Engine, *Store) {
	store := NewStore(remote)
	engine := NewEngine(NewBinder(signer), remote, store, identity, zerolog.Nop())
	return engine, store
}

// -- Create --

func TestCreate(t *testing.T) {
	remote := &mockRegistry{}
	signer := &mockSigner{signature: "0xsig"}
	engine, store := newTestEngine(remote, signer, &mockIdentity{address: "0xABC", connected: true})

	rec, err := engine.Create(context.Background(), "patient-001", PurposeResearchStudy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != StatusPending {
		t.Errorf("expected pending, got %s", rec.Status)
	}
	if rec.Message != "I consent to: Research Study Participation for patient: patient-001" {
		t.Errorf("unexpected message: %q", rec.Message)
	}
	if rec.Signature != "0xsig" || rec.WalletAddress != "0xABC" {
		t.Errorf("unexpected signature binding: %q / %q", rec.Signature, rec.WalletAddress)
	}
	// The write must have been followed by a refresh of the view.
	if remote.fetchCalls != 1 {
		t.Errorf("expected 1 refresh fetch after create, got %d", remote.fetchCalls)
	}
	if len(store.Records()) != 1 {
		t.Errorf("expected refreshed view with 1 record, got %d", len(store.Records()))
	}
}

func TestCreate_EmptySubject(t *testing.T) {
	remote := &mockRegistry{}
	signer := &mockSigner{signature: "0xsig"}
	engine, _ := newTestEngine(remote, signer, &mockIdentity{address: "0xABC", connected: true})

	_, err := engine.Create(context.Background(), "  ", PurposeResearchStudy)
	if !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
	if signer.calls != 0 {
		t.Errorf("expected zero signing attempts, got %d", signer.calls)
	}
	if remote.createCalls != 0 {
		t.Errorf("expected zero create calls, got %d", remote.createCalls)
	}
}

func TestCreate_MissingIdentity(t *testing.T) {
	remote := &mockRegistry{}
	signer := &mockSigner{signature: "0xsig"}
	engine, _ := newTestEngine(remote, signer, &mockIdentity{connected: false})

	_, err := engine.Create(context.Background(), "patient-001", PurposeResearchStudy)
	if !errors.Is(err, ErrMissingIdentity) {
		t.Fatalf("expected ErrMissingIdentity, got %v", err)
	}
	if signer.calls != 0 || remote.createCalls != 0 || remote.fetchCalls != 0 {
		t.Error("expected no signing or network activity")
	}
}

func TestCreate_InvalidPurpose(t *testing.T) {
	engine, _ := newTestEngine(&mockRegistry{}, &mockSigner{}, &mockIdentity{address: "0xABC", connected: true})
	_, err := engine.Create(context.Background(), "patient-001", Purpose("Marketing Outreach"))
	if !errors.Is(err, ErrInvalidPurpose) {
		t.Fatalf("expected ErrInvalidPurpose, got %v", err)
	}
}

func TestCreate_PropagatesSignerFailure(t *testing.T) {
	remote := &mockRegistry{}
	engine, _ := newTestEngine(remote, &mockSigner{err: ErrSigningRejected}, &mockIdentity{address: "0xABC", connected: true})

	_, err := engine.Create(context.Background(), "patient-001", PurposeDataSharing)
	if !errors.Is(err, ErrSigningRejected) {
		t.Fatalf("expected ErrSigningRejected, got %v", err)
	}
	if remote.createCalls != 0 {
		t.Errorf("expected zero create calls after signing failure, got %d", remote.createCalls)
	}
}

// -- Transition --

func seededRegistry(status Status) *mockRegistry {
	return &mockRegistry{
		records: []ConsentRecord{{
			ID:            "consent-1",
			SubjectID:     "patient-001",
			Purpose:       PurposeResearchStudy,
			WalletAddress: "0xABC",
			Status:        status,
		}},
		nextID: 1,
	}
}

func TestTransition_Legal(t *testing.T) {
	cases := []struct {
		from, to Status
	}{
		{StatusPending, StatusActive},
		{StatusPending, StatusRevoked},
		{StatusActive, StatusRevoked},
	}
	for _, tc := range cases {
		remote := seededRegistry(tc.from)
		engine, _ := newTestEngine(remote, &mockSigner{}, &mockIdentity{address: "0xABC", connected: true})

		rec, err := engine.Transition(context.Background(), "consent-1", tc.to)
		if err != nil {
			t.Fatalf("%s -> %s: unexpected error: %v", tc.from, tc.to, err)
		}
		if rec.Status != tc.to {
			t.Errorf("%s -> %s: got status %s", tc.from, tc.to, rec.Status)
		}
	}
}

func TestTransition_Illegal(t *testing.T) {
	cases := []struct {
		from, to Status
	}{
		{StatusRevoked, StatusActive},
		{StatusRevoked, StatusPending},
		{StatusActive, StatusPending},
	}
	for _, tc := range cases {
		remote := seededRegistry(tc.from)
		engine, _ := newTestEngine(remote, &mockSigner{}, &mockIdentity{address: "0xABC", connected: true})

		_, err := engine.Transition(context.Background(), "consent-1", tc.to)
		if !errors.Is(err, ErrIllegalTransition) {
			t.Fatalf("%s -> %s: expected ErrIllegalTransition, got %v", tc.from, tc.to, err)
		}
		if remote.updateCalls != 0 {
			t.Errorf("%s -> %s: expected no write attempt", tc.from, tc.to)
		}
		if remote.records[0].Status != tc.from {
			t.Errorf("%s -> %s: record was mutated", tc.from, tc.to)
		}
	}
}

func TestTransition_NotFound(t *testing.T) {
	engine, _ := newTestEngine(seededRegistry(StatusPending), &mockSigner{}, &mockIdentity{address: "0xABC", connected: true})
	_, err := engine.Transition(context.Background(), "consent-999", StatusActive)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransition_RemoteRejection(t *testing.T) {
	remote := seededRegistry(StatusPending)
	remote.updateErr = fmt.Errorf("%w: concurrent update", ErrTransitionRejected)
	engine, _ := newTestEngine(remote, &mockSigner{}, &mockIdentity{address: "0xABC", connected: true})

	_, err := engine.Transition(context.Background(), "consent-1", StatusActive)
	if !errors.Is(err, ErrTransitionRejected) {
		t.Fatalf("expected ErrTransitionRejected, got %v", err)
	}
}

func TestTransition_ChecksRemoteNotCache(t *testing.T) {
	remote := seededRegistry(StatusPending)
	engine, store := newTestEngine(remote, &mockSigner{}, &mockIdentity{address: "0xABC", connected: true})

	// Materialize a view, then let the record advance behind it.
	if _, err := store.Load(context.Background(), Scope{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	remote.records[0].Status = StatusRevoked

	// The cached view still says pending, but the engine must consult the
	// registry and refuse the move.
	_, err := engine.Transition(context.Background(), "consent-1", StatusActive)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

// -- Round trip and audit --

func TestCreateThenLoad_RoundTrip(t *testing.T) {
	remote := &mockRegistry{}
	engine, store := newTestEngine(remote, &mockSigner{signature: "0xsig"}, &mockIdentity{address: "0xABC", connected: true})

	created, err := engine.Create(context.Background(), "patient-001", PurposeThirdPartyAccess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := store.Load(context.Background(), Scope{SubjectID: "patient-001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	matches := 0
	for _, rec := range records {
		if rec.ID == created.ID {
			matches++
			if rec.Message != created.Message || rec.Signature != created.Signature {
				t.Error("fetched record does not match the created statement")
			}
		}
	}
	if matches != 1 {
		t.Errorf("expected record to appear exactly once, got %d", matches)
	}
}

func TestEngine_RecordsAuditActions(t *testing.T) {
	remote := seededRegistry(StatusPending)
	engine, _ := newTestEngine(remote, &mockSigner{signature: "0xsig"}, &mockIdentity{address: "0xABC", connected: true})
	recorder := &mockRecorder{}
	engine.SetRecorder(recorder)

	if _, err := engine.Create(context.Background(), "patient-002", PurposeInsuranceAccess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := engine.Transition(context.Background(), "consent-1", StatusActive); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(recorder.actions) != 2 {
		t.Fatalf("expected 2 audit actions, got %d", len(recorder.actions))
	}
	if recorder.actions[0].action != "consent.create" || recorder.actions[0].outcome != nil {
		t.Errorf("unexpected first action: %+v", recorder.actions[0])
	}
	if recorder.actions[1].action != "consent.transition" || recorder.actions[1].outcome != nil {
		t.Errorf("unexpected second action: %+v", recorder.actions[1])
	}
}
