package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/thread-service/internal/domain"
)

// ThreadRepository encapsulates thread persistence.
type ThreadRepository interface {
	Create(ctx context.Context, thread *domain.Thread) error
	GetByID(ctx context.Context, id string) (*domain.Thread, error)
	ListByParticipant(ctx context.Context, userID string, limit, offset int) ([]domain.Thread, error)
	UpdateStatus(ctx context.Context, id string, status domain.ThreadStatus) error
	// SoftDelete marks the thread deleted; messages are retained.
	SoftDelete(ctx context.Context, id string) error
	AddEvent(ctx context.Context, event *domain.ThreadEvent) error
	ListEvents(ctx context.Context, threadID string, limit int) ([]domain.ThreadEvent, error)
}

type threadRepository struct {
	pool *pgxpool.Pool
}

// NewThreadRepository instantiates repository.
func NewThreadRepository(pool *pgxpool.Pool) ThreadRepository {
	return &threadRepository{pool: pool}
}

func (r *threadRepository) Create(ctx context.Context, thread *domain.Thread) error {
	const query = `
        INSERT INTO threads (title, owner_user_id, participant_ids, status)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		thread.Title,
		thread.OwnerID,
		thread.ParticipantIDs,
		thread.Status,
	).Scan(&thread.ID, &thread.CreatedAt, &thread.UpdatedAt)
}

func (r *threadRepository) GetByID(ctx context.Context, id string) (*domain.Thread, error) {
	const query = `
        SELECT id, title, owner_user_id, participant_ids, status, created_at, updated_at, deleted_at
        FROM threads WHERE id=$1`
	var thread domain.Thread
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&thread.ID,
		&thread.Title,
		&thread.OwnerID,
		&thread.ParticipantIDs,
		&thread.Status,
		&thread.CreatedAt,
		&thread.UpdatedAt,
		&thread.DeletedAt,
	); err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *threadRepository) ListByParticipant(ctx context.Context, userID string, limit, offset int) ([]domain.Thread, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, title, owner_user_id, participant_ids, status, created_at, updated_at, deleted_at
        FROM threads
        WHERE deleted_at IS NULL AND $1 = ANY(participant_ids)
        ORDER BY updated_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Thread
	for rows.Next() {
		var thread domain.Thread
		if err := rows.Scan(
			&thread.ID,
			&thread.Title,
			&thread.OwnerID,
			&thread.ParticipantIDs,
			&thread.Status,
			&thread.CreatedAt,
			&thread.UpdatedAt,
			&thread.DeletedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, thread)
	}
	return result, rows.Err()
}

func (r *threadRepository) UpdateStatus(ctx context.Context, id string, status domain.ThreadStatus) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE threads SET status=$1, updated_at=NOW() WHERE id=$2 AND deleted_at IS NULL`,
		status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *threadRepository) SoftDelete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE threads SET deleted_at=NOW(), updated_at=NOW() WHERE id=$1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *threadRepository) AddEvent(ctx context.Context, event *domain.ThreadEvent) error {
	const query = `
        INSERT INTO thread_events (thread_id, kind, actor_id, summary)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		event.ThreadID,
		event.Kind,
		event.ActorID,
		event.Summary,
	).Scan(&event.ID, &event.CreatedAt)
}

func (r *threadRepository) ListEvents(ctx context.Context, threadID string, limit int) ([]domain.ThreadEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id, thread_id, kind, actor_id, summary, created_at
        FROM thread_events WHERE thread_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, threadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ThreadEvent
	for rows.Next() {
		var event domain.ThreadEvent
		if err := rows.Scan(
			&event.ID,
			&event.ThreadID,
			&event.Kind,
			&event.ActorID,
			&event.Summary,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}
