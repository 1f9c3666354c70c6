package audit

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/consentry/consentry/internal/platform/auth"
	"github.com/consentry/consentry/internal/registry"
)

// Service records consent lifecycle actions. Recording is best-effort:
// a failed insert is logged and swallowed so the consent operation
// itself never fails on audit problems.
type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log.With().Str("component", "audit").Logger()}
}

// RecordAction implements registry.ActionRecorder.
func (s *Service) RecordAction(ctx context.Context, action string, rec *registry.ConsentRecord, outcome error) {
	e := &Event{
		Action:  action,
		Outcome: OutcomeOK,
		ActorID: auth.UserIDFromContext(ctx),
	}
	if outcome != nil {
		e.Outcome = OutcomeError
		e.Detail = outcome.Error()
	}
	if rec != nil {
		e.ConsentID = rec.ID
		e.SubjectID = rec.SubjectID
		e.WalletAddress = rec.WalletAddress
		e.ConsentStatus = string(rec.Status)
	}

	if err := s.repo.Create(ctx, e); err != nil {
		s.log.Error().Err(err).Str("action", action).Msg("audit insert failed")
	}
}

// Recent returns the newest events with a total count for paging.
func (s *Service) Recent(ctx context.Context, limit, offset int) ([]*Event, int, error) {
	return s.repo.ListRecent(ctx, limit, offset)
}

// Trail returns the full event history for one consent record, oldest
// first.
func (s *Service) Trail(ctx context.Context, consentID string) ([]*Event, error) {
	return s.repo.ListByConsent(ctx, consentID)
}
