package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const eventCols = `id, action, consent_id, patient_id, wallet_address,
	consent_status, outcome, detail, actor_id, created_at`

func (r *repoPG) scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.Action, &e.ConsentID, &e.SubjectID, &e.WalletAddress,
		&e.ConsentStatus, &e.Outcome, &e.Detail, &e.ActorID, &e.CreatedAt)
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, e *Event) error {
	e.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_events (id, action, consent_id, patient_id, wallet_address,
			consent_status, outcome, detail, actor_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.Action, e.ConsentID, e.SubjectID, e.WalletAddress,
		e.ConsentStatus, e.Outcome, e.Detail, e.ActorID)
	return err
}

func (r *repoPG) ListRecent(ctx context.Context, limit, offset int) ([]*Event, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+eventCols+` FROM audit_events ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Event
	for rows.Next() {
		e, err := r.scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, nil
}

func (r *repoPG) ListByConsent(ctx context.Context, consentID string) ([]*Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventCols+` FROM audit_events WHERE consent_id = $1 ORDER BY created_at ASC`, consentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Event
	for rows.Next() {
		e, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, nil
}
