package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/thread-service/internal/config"
	"github.com/spec-kit/thread-service/internal/domain"
	"github.com/spec-kit/thread-service/internal/events"
	"github.com/spec-kit/thread-service/internal/observability"
	"github.com/spec-kit/thread-service/internal/repository"
)

// DispatchService converts domain events into deduplicated notification
// triggers. Rapid repeats of the same kind against the same recipients
// within one grouping window collapse into a single trigger.
type DispatchService struct {
	triggers   repository.TriggerRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	window     time.Duration

	now func() time.Time
}

// NewDispatchService creates the service.
func NewDispatchService(triggers repository.TriggerRepository, dispatcher events.Dispatcher,
	logger *zap.Logger, metrics *observability.Metrics, cfg config.NotifyConfig) *DispatchService {
	return &DispatchService{
		triggers:   triggers,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		window:     cfg.GroupingWindow(),
		now:        time.Now,
	}
}

// RegisterHandlers subscribes to the thread events that produce pushes.
func (s *DispatchService) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Subscribe(events.EventMessagePosted, s.handleMessagePosted)
	s.dispatcher.Subscribe(events.EventReplyPosted, s.handleReplyPosted)
	s.dispatcher.Subscribe(events.EventUserMentioned, s.handleUserMentioned)
	s.dispatcher.Subscribe(events.EventReactionAdded, s.handleReactionAdded)
	s.dispatcher.Subscribe(events.EventThreadStatusChanged, s.handleStatusChanged)
}

// DedupeKey derives the grouping key: kind, thread, sorted recipients and a
// coarse time bucket. Everything inside one bucket collapses.
func DedupeKey(kind events.EventType, threadID string, recipients []string, at time.Time, window time.Duration) string {
	sorted := append([]string(nil), recipients...)
	sort.Strings(sorted)
	bucket := at.Unix() / int64(window.Seconds())
	raw := fmt.Sprintf("%s|%s|%s|%d", kind, threadID, strings.Join(sorted, ","), bucket)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Enqueue creates at most one trigger for the event cluster. The acting
// user never notifies themself; duplicate recipients collapse. A suppressed
// duplicate is success, not an error.
func (s *DispatchService) Enqueue(ctx context.Context, kind events.EventType, threadID, actorID string,
	recipients []string, title, body string, payload map[string]string) error {
	seen := make(map[string]struct{}, len(recipients))
	final := make([]string, 0, len(recipients))
	for _, id := range recipients {
		if id == "" || id == actorID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		final = append(final, id)
	}
	if len(final) == 0 {
		return nil
	}
	sort.Strings(final)

	trigger := &domain.NotificationTrigger{
		RecipientUserIDs: final,
		Title:            title,
		Body:             body,
		Payload:          payload,
		DedupeKey:        DedupeKey(kind, threadID, final, s.now(), s.window),
	}

	created, err := s.triggers.CreateIfAbsent(ctx, trigger)
	if err != nil {
		return err
	}
	if !created {
		s.metrics.RecordTrigger("suppressed")
		s.logger.Debug("trigger suppressed",
			zap.String("kind", string(kind)),
			zap.String("thread_id", threadID),
			zap.String("dedupe_key", trigger.DedupeKey))
		return nil
	}
	s.metrics.RecordTrigger("created")
	return nil
}

func (s *DispatchService) handleMessagePosted(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.MessagePostedPayload)
	return s.Enqueue(ctx, event.Type, event.ThreadID, event.ActorID, event.Recipients,
		"New message", payload.BodyPreview, map[string]string{
			"thread_id":  event.ThreadID,
			"message_id": payload.MessageID,
		})
}

func (s *DispatchService) handleReplyPosted(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.MessagePostedPayload)
	return s.Enqueue(ctx, event.Type, event.ThreadID, event.ActorID, event.Recipients,
		"New reply", payload.BodyPreview, map[string]string{
			"thread_id":  event.ThreadID,
			"message_id": payload.MessageID,
		})
}

func (s *DispatchService) handleUserMentioned(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.UserMentionedPayload)
	return s.Enqueue(ctx, event.Type, event.ThreadID, event.ActorID,
		[]string{payload.MentionedUserID},
		"You were mentioned", "", map[string]string{
			"thread_id":  event.ThreadID,
			"message_id": payload.MessageID,
		})
}

func (s *DispatchService) handleReactionAdded(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.ReactionAddedPayload)
	return s.Enqueue(ctx, event.Type, event.ThreadID, event.ActorID, event.Recipients,
		"New reaction", payload.Emoji, map[string]string{
			"thread_id":  event.ThreadID,
			"message_id": payload.MessageID,
		})
}

func (s *DispatchService) handleStatusChanged(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.ThreadStatusChangedPayload)
	return s.Enqueue(ctx, event.Type, event.ThreadID, event.ActorID, event.Recipients,
		"Status updated", string(payload.NewStatus), map[string]string{
			"thread_id": event.ThreadID,
		})
}
