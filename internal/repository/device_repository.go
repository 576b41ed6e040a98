package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeviceRepository stores device push tokens per user.
type DeviceRepository interface {
	Upsert(ctx context.Context, userID, token string) error
	TokensForUser(ctx context.Context, userID string) ([]string, error)
	// DeleteToken prunes a token the push provider no longer accepts.
	DeleteToken(ctx context.Context, token string) error
	// LastToken returns the most recently registered token for a user, or
	// "" when none exists.
	LastToken(ctx context.Context, userID string) (string, error)
}

type deviceRepository struct {
	pool *pgxpool.Pool
}

// NewDeviceRepository builds repository.
func NewDeviceRepository(pool *pgxpool.Pool) DeviceRepository {
	return &deviceRepository{pool: pool}
}

func (r *deviceRepository) Upsert(ctx context.Context, userID, token string) error {
	const query = `
        INSERT INTO device_registrations (token, user_id)
        VALUES ($1,$2)
        ON CONFLICT (token) DO UPDATE SET user_id=EXCLUDED.user_id, updated_at=NOW()`
	_, err := r.pool.Exec(ctx, query, token, userID)
	return err
}

func (r *deviceRepository) TokensForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT token FROM device_registrations WHERE user_id=$1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func (r *deviceRepository) DeleteToken(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM device_registrations WHERE token=$1`, token)
	return err
}

func (r *deviceRepository) LastToken(ctx context.Context, userID string) (string, error) {
	var token string
	err := r.pool.QueryRow(ctx,
		`SELECT token FROM device_registrations WHERE user_id=$1 ORDER BY updated_at DESC LIMIT 1`,
		userID).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}
