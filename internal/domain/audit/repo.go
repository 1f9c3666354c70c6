package audit

import "context"

type Repository interface {
	Create(ctx context.Context, e *Event) error
	ListRecent(ctx context.Context, limit, offset int) ([]*Event, int, error)
	ListByConsent(ctx context.Context, consentID string) ([]*Event, error)
}
