package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/thread-service/internal/domain"
	"github.com/spec-kit/thread-service/internal/stream"
	apperrors "github.com/spec-kit/thread-service/pkg/util"
)

// In-memory fakes mirroring the repository contracts, safe for concurrent
// use so the atomicity properties can be exercised.

type fakeThreadRepo struct {
	mu      sync.Mutex
	threads map[string]*domain.Thread
	events  []domain.ThreadEvent
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{threads: make(map[string]*domain.Thread)}
}

func (r *fakeThreadRepo) Create(ctx context.Context, thread *domain.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	thread.ID = uuid.NewString()
	thread.CreatedAt = time.Now()
	thread.UpdatedAt = thread.CreatedAt
	clone := *thread
	r.threads[thread.ID] = &clone
	return nil
}

func (r *fakeThreadRepo) GetByID(ctx context.Context, id string) (*domain.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	thread, ok := r.threads[id]
	if !ok {
		return nil, apperrors.NewNotFound("thread", nil)
	}
	clone := *thread
	return &clone, nil
}

func (r *fakeThreadRepo) ListByParticipant(ctx context.Context, userID string, limit, offset int) ([]domain.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Thread
	for _, thread := range r.threads {
		if thread.DeletedAt != nil {
			continue
		}
		for _, participant := range thread.ParticipantIDs {
			if participant == userID {
				result = append(result, *thread)
				break
			}
		}
	}
	return result, nil
}

func (r *fakeThreadRepo) UpdateStatus(ctx context.Context, id string, status domain.ThreadStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	thread, ok := r.threads[id]
	if !ok {
		return apperrors.NewNotFound("thread", nil)
	}
	thread.Status = status
	return nil
}

func (r *fakeThreadRepo) SoftDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	thread, ok := r.threads[id]
	if !ok {
		return apperrors.NewNotFound("thread", nil)
	}
	now := time.Now()
	thread.DeletedAt = &now
	return nil
}

func (r *fakeThreadRepo) AddEvent(ctx context.Context, event *domain.ThreadEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = uuid.NewString()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	r.events = append(r.events, *event)
	return nil
}

func (r *fakeThreadRepo) ListEvents(ctx context.Context, threadID string, limit int) ([]domain.ThreadEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.ThreadEvent
	for _, event := range r.events {
		if event.ThreadID == threadID {
			result = append(result, event)
		}
	}
	return result, nil
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  map[string]*domain.Message
	order     []string
	reactions map[string]map[string]domain.Reaction    // messageID → (emoji|user) → reaction
	receipts  map[string]map[string]domain.ReadReceipt // messageID → user → receipt
	clock     time.Time
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		messages:  make(map[string]*domain.Message),
		reactions: make(map[string]map[string]domain.Reaction),
		receipts:  make(map[string]map[string]domain.ReadReceipt),
		clock:     time.Now(),
	}
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ParentMessageID != nil {
		parent, ok := r.messages[*msg.ParentMessageID]
		if !ok || parent.ThreadID != msg.ThreadID {
			return apperrors.NewInvalidParent(*msg.ParentMessageID)
		}
	}
	if msg.ClientMsgID != "" {
		for _, existing := range r.messages {
			if existing.ThreadID == msg.ThreadID && existing.ClientMsgID == msg.ClientMsgID {
				msg.ID = existing.ID
				msg.CreatedAt = existing.CreatedAt
				return apperrors.NewDuplicateSuppressed(msg.ThreadID + ":" + msg.ClientMsgID)
			}
		}
	}

	msg.ID = uuid.NewString()
	r.clock = r.clock.Add(time.Millisecond)
	msg.CreatedAt = r.clock
	clone := *msg
	r.messages[msg.ID] = &clone
	r.order = append(r.order, msg.ID)

	if msg.ParentMessageID != nil {
		r.messages[*msg.ParentMessageID].ReplyCount++
	}
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[id]
	if !ok {
		return nil, apperrors.NewNotFound("message", nil)
	}
	clone := *msg
	r.decorate(&clone)
	return &clone, nil
}

func (r *fakeMessageRepo) decorate(msg *domain.Message) {
	msg.Reactions = nil
	for _, reaction := range r.reactions[msg.ID] {
		msg.Reactions = append(msg.Reactions, reaction)
	}
	msg.ReadReceipts = nil
	for _, receipt := range r.receipts[msg.ID] {
		msg.ReadReceipts = append(msg.ReadReceipts, receipt)
	}
}

func (r *fakeMessageRepo) ListByThread(ctx context.Context, threadID string, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Message
	for _, id := range r.order {
		msg := r.messages[id]
		if msg.ThreadID != threadID {
			continue
		}
		clone := *msg
		r.decorate(&clone)
		result = append(result, clone)
	}
	return result, nil
}

func (r *fakeMessageRepo) AddReaction(ctx context.Context, messageID, emoji, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reactions[messageID] == nil {
		r.reactions[messageID] = make(map[string]domain.Reaction)
	}
	key := emoji + "|" + userID
	if _, exists := r.reactions[messageID][key]; exists {
		return false, nil
	}
	r.reactions[messageID][key] = domain.Reaction{Emoji: emoji, UserID: userID, CreatedAt: time.Now()}
	return true, nil
}

func (r *fakeMessageRepo) RemoveReaction(ctx context.Context, messageID, emoji, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := emoji + "|" + userID
	if _, exists := r.reactions[messageID][key]; !exists {
		return false, nil
	}
	delete(r.reactions[messageID], key)
	return true, nil
}

func (r *fakeMessageRepo) MarkRead(ctx context.Context, threadID, userID, userName string, upTo time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var inserted int64
	for _, msg := range r.messages {
		if msg.ThreadID != threadID || msg.AuthorID == userID || msg.CreatedAt.After(upTo) {
			continue
		}
		if r.receipts[msg.ID] == nil {
			r.receipts[msg.ID] = make(map[string]domain.ReadReceipt)
		}
		if _, exists := r.receipts[msg.ID][userID]; exists {
			continue
		}
		r.receipts[msg.ID][userID] = domain.ReadReceipt{UserID: userID, UserName: userName, ReadAt: time.Now()}
		inserted++
	}
	return inserted, nil
}

func (r *fakeMessageRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, msg := range r.messages {
		if msg.AuthorID == userID {
			continue
		}
		if _, read := r.receipts[msg.ID][userID]; !read {
			count++
		}
	}
	return count, nil
}

func (r *fakeMessageRepo) SetDeliveryStatus(ctx context.Context, messageID string, status domain.DeliveryStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[messageID]
	if !ok {
		return apperrors.NewNotFound("message", nil)
	}
	msg.DeliveryStatus = status
	return nil
}

func (r *fakeMessageRepo) receiptCount(messageID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.receipts[messageID])
}

type fakeTriggerRepo struct {
	mu       sync.Mutex
	triggers map[string]*domain.NotificationTrigger // by dedupe key
}

func newFakeTriggerRepo() *fakeTriggerRepo {
	return &fakeTriggerRepo{triggers: make(map[string]*domain.NotificationTrigger)}
}

func (r *fakeTriggerRepo) CreateIfAbsent(ctx context.Context, trigger *domain.NotificationTrigger) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.triggers[trigger.DedupeKey]; exists {
		return false, nil
	}
	trigger.ID = uuid.NewString()
	trigger.CreatedAt = time.Now()
	clone := *trigger
	r.triggers[trigger.DedupeKey] = &clone
	return true, nil
}

func (r *fakeTriggerRepo) ListUnprocessed(ctx context.Context, limit int) ([]domain.NotificationTrigger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.NotificationTrigger
	for _, trigger := range r.triggers {
		if !trigger.Processed {
			result = append(result, *trigger)
		}
	}
	return result, nil
}

func (r *fakeTriggerRepo) Claim(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, trigger := range r.triggers {
		if trigger.ID == id {
			if trigger.Processed {
				return false, nil
			}
			trigger.Processed = true
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeTriggerRepo) Finish(ctx context.Context, id string, badgeHint *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, trigger := range r.triggers {
		if trigger.ID == id {
			now := time.Now()
			trigger.ProcessedAt = &now
			trigger.BadgeHint = badgeHint
		}
	}
	return nil
}

func (r *fakeTriggerRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.triggers)
}

func (r *fakeTriggerRepo) all() []domain.NotificationTrigger {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.NotificationTrigger
	for _, trigger := range r.triggers {
		result = append(result, *trigger)
	}
	return result
}

type fakeDeviceRepo struct {
	mu     sync.Mutex
	tokens map[string]string // token → userID
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{tokens: make(map[string]string)}
}

func (r *fakeDeviceRepo) Upsert(ctx context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = userID
	return nil
}

func (r *fakeDeviceRepo) TokensForUser(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []string
	for token, owner := range r.tokens {
		if owner == userID {
			result = append(result, token)
		}
	}
	return result, nil
}

func (r *fakeDeviceRepo) DeleteToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}

func (r *fakeDeviceRepo) LastToken(ctx context.Context, userID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, owner := range r.tokens {
		if owner == userID {
			return token, nil
		}
	}
	return "", nil
}

type fakePublisher struct {
	mu      sync.Mutex
	records []stream.MessageRecord
}

func (p *fakePublisher) PublishMessage(ctx context.Context, record stream.MessageRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, record)
	return nil
}

type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
	gate  chan struct{} // when set, Complete blocks until closed
}

func (c *fakeCompleter) Complete(ctx context.Context, snapshot domain.ContextSnapshot, message string) (string, error) {
	c.mu.Lock()
	c.calls++
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if c.err != nil {
		return "", c.err
	}
	if c.reply == "" {
		return "Happy to help with " + strings.TrimSpace(message), nil
	}
	return c.reply, nil
}

func (c *fakeCompleter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
