package registry

import (
	"context"
	"sync"
)

// Fetcher retrieves consent records from the authoritative registry
// service for a given scope.
type Fetcher interface {
	FetchConsents(ctx context.Context, scope Scope) ([]ConsentRecord, error)
}

// Store caches the most recently fetched record set for a scope. It is
// not authoritative: every status change is observed only by reloading.
// Records keep the order the registry delivered them in.
type Store struct {
	fetcher Fetcher

	mu      sync.Mutex
	scope   Scope
	gen     uint64
	records []ConsentRecord
}

func NewStore(fetcher Fetcher) *Store {
	return &Store{fetcher: fetcher}
}

// Load fetches the record set for scope and materializes it. Each load is
// tagged with a generation; if another load starts before this one's
// response arrives, the late response is discarded (ErrLoadSuperseded)
// so the view only ever shows the newest scope's data.
//
// Fail-closed: on a fetch error the prior content is dropped and replaced
// with an empty view, and the error is returned to the caller.
func (s *Store) Load(ctx context.Context, scope Scope) ([]ConsentRecord, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.scope = scope
	s.mu.Unlock()

	records, err := s.fetcher.FetchConsents(ctx, scope)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return nil, ErrLoadSuperseded
	}
	if err != nil {
		s.records = nil
		return nil, err
	}

	s.records = records
	return copyRecords(records), nil
}

// Refresh reloads the view at its current scope. Used after every
// acknowledged write so the view never silently diverges from the
// registry.
func (s *Store) Refresh(ctx context.Context) ([]ConsentRecord, error) {
	s.mu.Lock()
	scope := s.scope
	s.mu.Unlock()
	return s.Load(ctx, scope)
}

// Records returns a copy of the last materialized view.
func (s *Store) Records() []ConsentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRecords(s.records)
}

// Scope returns the scope of the last load.
func (s *Store) Scope() Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

func copyRecords(in []ConsentRecord) []ConsentRecord {
	if in == nil {
		return nil
	}
	out := make([]ConsentRecord, len(in))
	copy(out, in)
	return out
}
