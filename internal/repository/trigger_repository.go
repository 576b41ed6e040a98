package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/thread-service/internal/domain"
)

// TriggerRepository manages the deduplicated notification trigger queue.
type TriggerRepository interface {
	// CreateIfAbsent inserts the trigger unless its dedupe key already
	// exists. Returns false (and no error) when suppressed.
	CreateIfAbsent(ctx context.Context, trigger *domain.NotificationTrigger) (bool, error)
	ListUnprocessed(ctx context.Context, limit int) ([]domain.NotificationTrigger, error)
	// Claim flips processed=false → true for exactly one caller.
	Claim(ctx context.Context, id string) (bool, error)
	// Finish stamps processed_at and the badge hint used for delivery.
	Finish(ctx context.Context, id string, badgeHint *int) error
}

type triggerRepository struct {
	pool *pgxpool.Pool
}

// NewTriggerRepository builds repository.
func NewTriggerRepository(pool *pgxpool.Pool) TriggerRepository {
	return &triggerRepository{pool: pool}
}

func (r *triggerRepository) CreateIfAbsent(ctx context.Context, trigger *domain.NotificationTrigger) (bool, error) {
	const query = `
        INSERT INTO notification_triggers (recipient_user_ids, title, body, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (dedupe_key) DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query,
		trigger.RecipientUserIDs,
		trigger.Title,
		trigger.Body,
		trigger.Payload,
		trigger.DedupeKey,
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *triggerRepository) ListUnprocessed(ctx context.Context, limit int) ([]domain.NotificationTrigger, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
        SELECT id, recipient_user_ids, title, body, payload, dedupe_key,
               processed, processed_at, badge_hint, created_at
        FROM notification_triggers
        WHERE processed = FALSE
        ORDER BY created_at ASC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.NotificationTrigger
	for rows.Next() {
		var trigger domain.NotificationTrigger
		if err := rows.Scan(
			&trigger.ID,
			&trigger.RecipientUserIDs,
			&trigger.Title,
			&trigger.Body,
			&trigger.Payload,
			&trigger.DedupeKey,
			&trigger.Processed,
			&trigger.ProcessedAt,
			&trigger.BadgeHint,
			&trigger.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, trigger)
	}
	return result, rows.Err()
}

func (r *triggerRepository) Claim(ctx context.Context, id string) (bool, error) {
	// Conditional update is the claim: duplicate consumers lose the race
	// and see zero rows affected.
	cmd, err := r.pool.Exec(ctx,
		`UPDATE notification_triggers SET processed = TRUE WHERE id=$1 AND processed = FALSE`, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *triggerRepository) Finish(ctx context.Context, id string, badgeHint *int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notification_triggers SET processed_at=NOW(), badge_hint=$1 WHERE id=$2`,
		badgeHint, id)
	return err
}
