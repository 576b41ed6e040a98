package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/thread-service/internal/domain"
	apperrors "github.com/spec-kit/thread-service/pkg/util"
)

// MessageRepository manages the durable, ordered message records of a thread.
type MessageRepository interface {
	// Create persists a message with a server-assigned id and created_at.
	// When ParentMessageID is set, the parent is validated in the same
	// transaction and its reply_count incremented atomically. A retried
	// send with an already-seen client id returns the stored record and
	// a DUPLICATE_SUPPRESSED marker.
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	ListByThread(ctx context.Context, threadID string, limit int) ([]domain.Message, error)
	AddReaction(ctx context.Context, messageID, emoji, userID string) (bool, error)
	RemoveReaction(ctx context.Context, messageID, emoji, userID string) (bool, error)
	// MarkRead upserts receipts for every message in the thread authored by
	// someone else and created at or before upTo. Commutative set-add.
	MarkRead(ctx context.Context, threadID, userID, userName string, upTo time.Time) (int64, error)
	// UnreadCount is the user's true unread count across live threads they
	// participate in: messages by others with no receipt from the user.
	UnreadCount(ctx context.Context, userID string) (int, error)
	SetDeliveryStatus(ctx context.Context, messageID string, status domain.DeliveryStatus) error
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if msg.ParentMessageID != nil {
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM messages WHERE id=$1 AND thread_id=$2)`,
			*msg.ParentMessageID, msg.ThreadID,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return apperrors.NewInvalidParent(*msg.ParentMessageID)
		}
	}

	const insert = `
        INSERT INTO messages (thread_id, client_msg_id, author_id, author_name, author_kind,
                              body, attachments, parent_message_id, delivery_status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (thread_id, client_msg_id) WHERE client_msg_id <> '' DO NOTHING
        RETURNING id, created_at`
	err = tx.QueryRow(ctx, insert,
		msg.ThreadID,
		msg.ClientMsgID,
		msg.AuthorID,
		msg.AuthorName,
		msg.AuthorKind,
		msg.Body,
		msg.Attachments,
		msg.ParentMessageID,
		msg.DeliveryStatus,
	).Scan(&msg.ID, &msg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Same client id already landed; hand back the stored record.
		const existing = `
            SELECT id, created_at FROM messages WHERE thread_id=$1 AND client_msg_id=$2`
		if scanErr := tx.QueryRow(ctx, existing, msg.ThreadID, msg.ClientMsgID).
			Scan(&msg.ID, &msg.CreatedAt); scanErr != nil {
			return scanErr
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return commitErr
		}
		return apperrors.NewDuplicateSuppressed(msg.ThreadID + ":" + msg.ClientMsgID)
	}
	if err != nil {
		return err
	}

	if msg.ParentMessageID != nil {
		// Atomic increment; concurrent replies never read-modify-write.
		if _, err := tx.Exec(ctx,
			`UPDATE messages SET reply_count = reply_count + 1 WHERE id=$1`,
			*msg.ParentMessageID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	const query = `
        SELECT id, thread_id, client_msg_id, author_id, author_name, author_kind,
               body, attachments, parent_message_id, reply_count, delivery_status, created_at
        FROM messages WHERE id=$1`
	var msg domain.Message
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&msg.ID,
		&msg.ThreadID,
		&msg.ClientMsgID,
		&msg.AuthorID,
		&msg.AuthorName,
		&msg.AuthorKind,
		&msg.Body,
		&msg.Attachments,
		&msg.ParentMessageID,
		&msg.ReplyCount,
		&msg.DeliveryStatus,
		&msg.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := r.loadDecorations(ctx, []*domain.Message{&msg}); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) ListByThread(ctx context.Context, threadID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	const query = `
        SELECT id, thread_id, client_msg_id, author_id, author_name, author_kind,
               body, attachments, parent_message_id, reply_count, delivery_status, created_at
        FROM messages WHERE thread_id=$1 ORDER BY created_at ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, threadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ThreadID,
			&msg.ClientMsgID,
			&msg.AuthorID,
			&msg.AuthorName,
			&msg.AuthorKind,
			&msg.Body,
			&msg.Attachments,
			&msg.ParentMessageID,
			&msg.ReplyCount,
			&msg.DeliveryStatus,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*domain.Message, len(result))
	for i := range result {
		refs[i] = &result[i]
	}
	if err := r.loadDecorations(ctx, refs); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *messageRepository) loadDecorations(ctx context.Context, msgs []*domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, len(msgs))
	byID := make(map[string]*domain.Message, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
		byID[m.ID] = m
	}

	rows, err := r.pool.Query(ctx,
		`SELECT message_id, emoji, user_id, created_at FROM message_reactions WHERE message_id = ANY($1)`,
		ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var msgID string
		var reaction domain.Reaction
		if err := rows.Scan(&msgID, &reaction.Emoji, &reaction.UserID, &reaction.CreatedAt); err != nil {
			rows.Close()
			return err
		}
		if m := byID[msgID]; m != nil {
			m.Reactions = append(m.Reactions, reaction)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.pool.Query(ctx,
		`SELECT message_id, user_id, user_name, read_at FROM message_read_receipts WHERE message_id = ANY($1)`,
		ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var msgID string
		var receipt domain.ReadReceipt
		if err := rows.Scan(&msgID, &receipt.UserID, &receipt.UserName, &receipt.ReadAt); err != nil {
			return err
		}
		if m := byID[msgID]; m != nil {
			m.ReadReceipts = append(m.ReadReceipts, receipt)
		}
	}
	return rows.Err()
}

func (r *messageRepository) AddReaction(ctx context.Context, messageID, emoji, userID string) (bool, error) {
	cmd, err := r.pool.Exec(ctx,
		`INSERT INTO message_reactions (message_id, emoji, user_id) VALUES ($1,$2,$3)
         ON CONFLICT (message_id, emoji, user_id) DO NOTHING`,
		messageID, emoji, userID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *messageRepository) RemoveReaction(ctx context.Context, messageID, emoji, userID string) (bool, error) {
	cmd, err := r.pool.Exec(ctx,
		`DELETE FROM message_reactions WHERE message_id=$1 AND emoji=$2 AND user_id=$3`,
		messageID, emoji, userID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, threadID, userID, userName string, upTo time.Time) (int64, error) {
	// Author exclusion lives in the WHERE clause so the invariant holds at
	// write time rather than as a display filter.
	const query = `
        INSERT INTO message_read_receipts (message_id, user_id, user_name)
        SELECT id, $2, $3 FROM messages
        WHERE thread_id=$1 AND author_id <> $2 AND created_at <= $4
        ON CONFLICT (message_id, user_id) DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query, threadID, userID, userName, upTo)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *messageRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	const query = `
        SELECT COUNT(*)
        FROM messages m
        JOIN threads t ON t.id = m.thread_id
        WHERE t.deleted_at IS NULL
          AND $1 = ANY(t.participant_ids)
          AND m.author_id <> $1
          AND NOT EXISTS (
              SELECT 1 FROM message_read_receipts rr
              WHERE rr.message_id = m.id AND rr.user_id = $1)`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *messageRepository) SetDeliveryStatus(ctx context.Context, messageID string, status domain.DeliveryStatus) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE messages SET delivery_status=$1 WHERE id=$2`, status, messageID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
