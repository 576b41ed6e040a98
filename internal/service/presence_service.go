package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/thread-service/internal/config"
	"github.com/spec-kit/thread-service/internal/domain"
)

const typingKeyPrefix = "typing:"

// PresenceService tracks ephemeral typing indicators. Indicators live in
// redis under a TTL; repeated keystroke writes are debounced in-process so
// the store sees at most one write per debounce interval per user.
type PresenceService struct {
	client *redis.Client
	cfg    config.PresenceConfig
	logger *zap.Logger

	// mu is the single serialized access point for the debounce state.
	mu        sync.Mutex
	lastWrite map[string]time.Time

	now func() time.Time
}

// NewPresenceService constructs the service.
func NewPresenceService(client *redis.Client, cfg config.PresenceConfig, logger *zap.Logger) *PresenceService {
	return &PresenceService{
		client:    client,
		cfg:       cfg,
		logger:    logger,
		lastWrite: make(map[string]time.Time),
		now:       time.Now,
	}
}

type typingPayload struct {
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	ExpiresAt time.Time `json:"expires_at"`
}

func typingKey(threadID, userID string) string {
	return typingKeyPrefix + threadID + ":" + userID
}

// SetTyping writes or refreshes the caller's typing indicator.
// Last-write-wins; no ordering guarantee.
func (s *PresenceService) SetTyping(ctx context.Context, threadID, userID, userName string) error {
	key := typingKey(threadID, userID)
	now := s.now()

	s.mu.Lock()
	if last, ok := s.lastWrite[key]; ok && now.Sub(last) < s.cfg.Debounce() {
		s.mu.Unlock()
		return nil
	}
	s.lastWrite[key] = now
	s.mu.Unlock()

	ttl := s.cfg.TTL()
	payload, err := json.Marshal(typingPayload{
		UserID:    userID,
		UserName:  userName,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, payload, ttl).Err()
}

// ClearTyping removes the indicator, typically on send.
func (s *PresenceService) ClearTyping(ctx context.Context, threadID, userID string) error {
	key := typingKey(threadID, userID)
	s.mu.Lock()
	delete(s.lastWrite, key)
	s.mu.Unlock()
	return s.client.Del(ctx, key).Err()
}

// ActiveTypers lists indicators that have not yet expired. Entries past
// ExpiresAt are treated as absent even if redis has not evicted them.
func (s *PresenceService) ActiveTypers(ctx context.Context, threadID string) ([]domain.TypingIndicator, error) {
	pattern := typingKeyPrefix + threadID + ":*"
	var result []domain.TypingIndicator
	now := s.now()

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 64).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			raw, err := s.client.Get(ctx, key).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return nil, err
			}
			var payload typingPayload
			if err := json.Unmarshal([]byte(raw), &payload); err != nil {
				s.logger.Warn("malformed typing payload", zap.String("key", key), zap.Error(err))
				continue
			}
			if !payload.ExpiresAt.After(now) {
				continue
			}
			result = append(result, domain.TypingIndicator{
				ThreadID:  threadID,
				UserID:    payload.UserID,
				UserName:  payload.UserName,
				ExpiresAt: payload.ExpiresAt,
			})
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return result, nil
}
