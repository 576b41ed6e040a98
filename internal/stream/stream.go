// Package stream carries the per-thread change stream: every confirmed
// message write is published on the thread's channel so connected clients
// and the sync reconciler observe the server-assigned record.
package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/thread-service/internal/domain"
)

const channelPrefix = "thread:"

// MessageRecord is the change-stream envelope for one confirmed message.
type MessageRecord struct {
	MessageID      string                `json:"message_id"`
	ThreadID       string                `json:"thread_id"`
	ClientMsgID    string                `json:"client_msg_id,omitempty"`
	AuthorID       string                `json:"author_id"`
	AuthorKind     domain.AuthorKind     `json:"author_kind"`
	Body           string                `json:"body"`
	DeliveryStatus domain.DeliveryStatus `json:"delivery_status"`
	CreatedAt      time.Time             `json:"created_at"`
}

// Publisher pushes confirmed records onto a thread's channel.
type Publisher interface {
	PublishMessage(ctx context.Context, record MessageRecord) error
}

// Stream is the redis-backed change stream.
type Stream struct {
	client *redis.Client
	logger *zap.Logger
}

// NewStream builds the stream over an existing redis client.
func NewStream(client *redis.Client, logger *zap.Logger) *Stream {
	return &Stream{client: client, logger: logger}
}

func channelFor(threadID string) string {
	return channelPrefix + threadID + ":events"
}

// PublishMessage emits one record on the thread channel. Delivery is
// best-effort; the durable record already exists in the store.
func (s *Stream) PublishMessage(ctx context.Context, record MessageRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, channelFor(record.ThreadID), data).Err(); err != nil {
		s.logger.Warn("change stream publish failed",
			zap.String("thread_id", record.ThreadID), zap.Error(err))
		return err
	}
	return nil
}

// Subscribe delivers records for one thread until ctx is cancelled.
// Cancelling the ctx closes only this subscription; nothing else is
// affected (a closed thread view drops its stream, not any in-flight work).
func (s *Stream) Subscribe(ctx context.Context, threadID string) (<-chan MessageRecord, error) {
	sub := s.client.Subscribe(ctx, channelFor(threadID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan MessageRecord, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var record MessageRecord
				if err := json.Unmarshal([]byte(msg.Payload), &record); err != nil {
					s.logger.Warn("malformed stream record", zap.Error(err))
					continue
				}
				select {
				case out <- record:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
