package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/thread-service/internal/domain"
	"github.com/spec-kit/thread-service/internal/repository"
)

// ContextService builds bounded, chronologically merged snapshots of a
// thread's history (messages, status changes, attachment events) for the
// AI collaborator. Snapshots are cached per thread and invalidated when a
// qualifying event arrives.
type ContextService struct {
	messages repository.MessageRepository
	threads  repository.ThreadRepository

	// mu is the single serialized access point for the cache.
	mu    sync.Mutex
	cache map[string]domain.ContextSnapshot

	now func() time.Time
}

// NewContextService constructs the aggregator.
func NewContextService(messages repository.MessageRepository, threads repository.ThreadRepository) *ContextService {
	return &ContextService{
		messages: messages,
		threads:  threads,
		cache:    make(map[string]domain.ContextSnapshot),
		now:      time.Now,
	}
}

// BuildSnapshot returns the thread's merged history bounded to the last
// windowSize items.
func (s *ContextService) BuildSnapshot(ctx context.Context, threadID string, windowSize int) (domain.ContextSnapshot, error) {
	if windowSize <= 0 {
		windowSize = 25
	}

	s.mu.Lock()
	if cached, ok := s.cache[threadID]; ok && len(cached.Items) <= windowSize {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	msgs, err := s.messages.ListByThread(ctx, threadID, 0)
	if err != nil {
		return domain.ContextSnapshot{}, err
	}
	threadEvents, err := s.threads.ListEvents(ctx, threadID, 0)
	if err != nil {
		return domain.ContextSnapshot{}, err
	}

	items := make([]domain.SnapshotItem, 0, len(msgs)+len(threadEvents))
	for _, msg := range msgs {
		items = append(items, domain.SnapshotItem{
			Kind:       domain.EventKindMessage,
			ActorID:    msg.AuthorID,
			ActorKind:  msg.AuthorKind,
			Body:       msg.Body,
			OccurredAt: msg.CreatedAt,
		})
	}
	for _, event := range threadEvents {
		if event.Kind == domain.EventKindMessage {
			continue
		}
		items = append(items, domain.SnapshotItem{
			Kind:       event.Kind,
			ActorID:    event.ActorID,
			ActorKind:  domain.AuthorKindHuman,
			Body:       event.Summary,
			OccurredAt: event.CreatedAt,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].OccurredAt.Before(items[j].OccurredAt)
	})
	if len(items) > windowSize {
		items = items[len(items)-windowSize:]
	}

	snapshot := domain.ContextSnapshot{
		ThreadID: threadID,
		Items:    items,
		BuiltAt:  s.now(),
	}

	s.mu.Lock()
	s.cache[threadID] = snapshot
	s.mu.Unlock()
	return snapshot, nil
}

// Invalidate drops the cached snapshot after a qualifying event.
func (s *ContextService) Invalidate(threadID string) {
	s.mu.Lock()
	delete(s.cache, threadID)
	s.mu.Unlock()
}
