package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/thread-service/internal/domain"
	"github.com/spec-kit/thread-service/internal/events"
	"github.com/spec-kit/thread-service/internal/repository"
	"github.com/spec-kit/thread-service/internal/stream"
	apperrors "github.com/spec-kit/thread-service/pkg/util"
)

const bodyPreviewLen = 120

// ThreadService orchestrates the conversation timeline: replies, reactions,
// read receipts, mention detection and the automated collaborator hand-off.
type ThreadService struct {
	threads   repository.ThreadRepository
	messages  repository.MessageRepository
	dispatch  events.Dispatcher
	publisher stream.Publisher
	contexts  *ContextService
	responder *Responder
	presence  *PresenceService
	logger    *zap.Logger
}

// ThreadDependencies bundles collaborators for the thread engine.
type ThreadDependencies struct {
	ThreadRepo  repository.ThreadRepository
	MessageRepo repository.MessageRepository
	Dispatcher  events.Dispatcher
	Publisher   stream.Publisher
	Contexts    *ContextService
	Responder   *Responder
	Presence    *PresenceService
	Logger      *zap.Logger
}

// NewThreadService constructs the engine and binds it as the responder's
// poster.
func NewThreadService(deps ThreadDependencies) *ThreadService {
	s := &ThreadService{
		threads:   deps.ThreadRepo,
		messages:  deps.MessageRepo,
		dispatch:  deps.Dispatcher,
		publisher: deps.Publisher,
		contexts:  deps.Contexts,
		responder: deps.Responder,
		presence:  deps.Presence,
		logger:    deps.Logger,
	}
	if s.responder != nil {
		s.responder.BindPoster(s)
	}
	return s
}

// PostMessageInput describes a send request.
type PostMessageInput struct {
	ClientMsgID     string
	ThreadID        string
	AuthorID        string
	AuthorName      string
	AuthorKind      domain.AuthorKind
	Body            string
	ParentMessageID *string
	Attachments     []string
}

// CreateThreadInput describes thread creation.
type CreateThreadInput struct {
	Title          string
	OwnerID        string
	ParticipantIDs []string
}

// CreateThread creates the conversation container for one work item.
func (s *ThreadService) CreateThread(ctx context.Context, input CreateThreadInput) (*domain.Thread, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" || input.OwnerID == "" {
		return nil, apperrors.NewValidationError("title and owner required", nil)
	}

	participants := input.ParticipantIDs
	if !contains(participants, input.OwnerID) {
		participants = append(participants, input.OwnerID)
	}

	thread := &domain.Thread{
		Title:          title,
		OwnerID:        input.OwnerID,
		ParticipantIDs: participants,
		Status:         domain.ThreadStatusOpen,
	}
	if err := s.threads.Create(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// PostMessage persists a message and fans out its side effects: atomic
// reply counting, change-stream publication, notification triggers,
// mention triggers and the automated-response hand-off.
func (s *ThreadService) PostMessage(ctx context.Context, input PostMessageInput) (*domain.Message, error) {
	if strings.TrimSpace(input.Body) == "" && len(input.Attachments) == 0 {
		return nil, apperrors.NewValidationError("body or attachments required", nil)
	}
	if !input.AuthorKind.Valid() {
		input.AuthorKind = domain.AuthorKindHuman
	}

	thread, err := s.threads.GetByID(ctx, input.ThreadID)
	if err != nil {
		return nil, apperrors.NewNotFound("thread", map[string]any{"thread_id": input.ThreadID})
	}
	if thread.DeletedAt != nil {
		return nil, apperrors.NewNotFound("thread", map[string]any{"thread_id": input.ThreadID})
	}

	msg := &domain.Message{
		ThreadID:        input.ThreadID,
		ClientMsgID:     input.ClientMsgID,
		AuthorID:        input.AuthorID,
		AuthorName:      input.AuthorName,
		AuthorKind:      input.AuthorKind,
		Body:            input.Body,
		Attachments:     input.Attachments,
		ParentMessageID: input.ParentMessageID,
		DeliveryStatus:  domain.DeliverySent,
	}

	err = s.messages.Create(ctx, msg)
	if apperrors.IsDuplicateSuppressed(err) {
		// Retried send: the record already landed and its side effects
		// already ran once.
		return s.messages.GetByID(ctx, msg.ID)
	}
	if err != nil {
		return nil, err
	}

	if len(msg.Attachments) > 0 {
		event := &domain.ThreadEvent{
			ThreadID: msg.ThreadID,
			Kind:     domain.EventKindAttachment,
			ActorID:  msg.AuthorID,
			Summary:  strings.Join(msg.Attachments, ", "),
		}
		if err := s.threads.AddEvent(ctx, event); err != nil {
			s.logger.Warn("attachment event not recorded", zap.Error(err))
		}
	}

	s.contexts.Invalidate(msg.ThreadID)

	// Sender stops "typing" the moment the message lands.
	if s.presence != nil {
		_ = s.presence.ClearTyping(ctx, msg.ThreadID, msg.AuthorID)
	}

	_ = s.publisher.PublishMessage(ctx, stream.MessageRecord{
		MessageID:      msg.ID,
		ThreadID:       msg.ThreadID,
		ClientMsgID:    msg.ClientMsgID,
		AuthorID:       msg.AuthorID,
		AuthorKind:     msg.AuthorKind,
		Body:           msg.Body,
		DeliveryStatus: msg.DeliveryStatus,
		CreatedAt:      msg.CreatedAt,
	})

	s.fanOut(ctx, thread, msg)

	// Automated messages are never rescanned; that would loop the bot.
	if msg.AuthorKind == domain.AuthorKindHuman && s.responder != nil && ShouldRespond(msg.Body) {
		s.responder.Respond(msg.ThreadID, *msg)
	}

	return msg, nil
}

func (s *ThreadService) fanOut(ctx context.Context, thread *domain.Thread, msg *domain.Message) {
	eventType := events.EventMessagePosted
	if msg.ParentMessageID != nil {
		eventType = events.EventReplyPosted
	}
	s.publishEvent(ctx, events.Event{
		Type:       eventType,
		ThreadID:   msg.ThreadID,
		ActorID:    msg.AuthorID,
		Recipients: thread.ParticipantIDs,
		Payload: events.MessagePostedPayload{
			MessageID:   msg.ID,
			ClientMsgID: msg.ClientMsgID,
			AuthorKind:  msg.AuthorKind,
			ParentID:    msg.ParentMessageID,
			BodyPreview: preview(msg.Body),
		},
	})

	for _, mentioned := range Mentions(msg.Body) {
		if !contains(thread.ParticipantIDs, mentioned) {
			continue
		}
		s.publishEvent(ctx, events.Event{
			Type:     events.EventUserMentioned,
			ThreadID: msg.ThreadID,
			ActorID:  msg.AuthorID,
			Payload: events.UserMentionedPayload{
				MessageID:       msg.ID,
				MentionedUserID: mentioned,
			},
		})
	}
}

// PostAutomated posts the collaborator's reply as an automated author.
func (s *ThreadService) PostAutomated(ctx context.Context, threadID, body string) error {
	_, err := s.PostMessage(ctx, PostMessageInput{
		ThreadID:   threadID,
		AuthorID:   "assistant",
		AuthorName: "Assistant",
		AuthorKind: domain.AuthorKindAutomated,
		Body:       body,
	})
	return err
}

// MarkRead upserts receipts for all of the thread's messages authored by
// others up to the given timestamp. Idempotent and commutative; a message
// never carries its author's own receipt.
func (s *ThreadService) MarkRead(ctx context.Context, threadID, userID, userName string, upTo time.Time) error {
	inserted, err := s.messages.MarkRead(ctx, threadID, userID, userName, upTo)
	if err != nil {
		return err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventMessagesRead,
		ThreadID: threadID,
		ActorID:  userID,
		Payload: events.MessagesReadPayload{
			UserID:   userID,
			UpTo:     upTo,
			Receipts: inserted,
		},
	})
	return nil
}

// AddReaction toggles a reaction on. Adding twice is a no-op.
func (s *ThreadService) AddReaction(ctx context.Context, messageID, emoji, userID string) error {
	if emoji == "" {
		return apperrors.NewValidationError("emoji required", nil)
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return apperrors.NewNotFound("message", map[string]any{"message_id": messageID})
	}
	added, err := s.messages.AddReaction(ctx, messageID, emoji, userID)
	if err != nil {
		return err
	}
	if added && msg.AuthorID != userID {
		s.publishEvent(ctx, events.Event{
			Type:       events.EventReactionAdded,
			ThreadID:   msg.ThreadID,
			ActorID:    userID,
			Recipients: []string{msg.AuthorID},
			Payload: events.ReactionAddedPayload{
				MessageID: messageID,
				Emoji:     emoji,
			},
		})
	}
	return nil
}

// RemoveReaction toggles a reaction off. Removing an absent reaction is a
// no-op, not an error.
func (s *ThreadService) RemoveReaction(ctx context.Context, messageID, emoji, userID string) error {
	_, err := s.messages.RemoveReaction(ctx, messageID, emoji, userID)
	return err
}

// GetTimeline lists the thread's ordered messages.
func (s *ThreadService) GetTimeline(ctx context.Context, threadID string, limit int) ([]domain.Message, error) {
	return s.messages.ListByThread(ctx, threadID, limit)
}

// ListThreads lists the caller's live threads.
func (s *ThreadService) ListThreads(ctx context.Context, userID string, limit, offset int) ([]domain.Thread, error) {
	return s.threads.ListByParticipant(ctx, userID, limit, offset)
}

// UpdateStatus transitions the work item and records a status event for
// context aggregation.
func (s *ThreadService) UpdateStatus(ctx context.Context, threadID, actorID string, status domain.ThreadStatus) error {
	if !status.Valid() {
		return apperrors.NewValidationError("unknown status", map[string]any{"status": string(status)})
	}
	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil || thread.DeletedAt != nil {
		return apperrors.NewNotFound("thread", map[string]any{"thread_id": threadID})
	}
	if err := s.threads.UpdateStatus(ctx, threadID, status); err != nil {
		return err
	}
	event := &domain.ThreadEvent{
		ThreadID: threadID,
		Kind:     domain.EventKindStatus,
		ActorID:  actorID,
		Summary:  string(thread.Status) + " -> " + string(status),
	}
	if err := s.threads.AddEvent(ctx, event); err != nil {
		s.logger.Warn("status event not recorded", zap.Error(err))
	}
	s.contexts.Invalidate(threadID)
	s.publishEvent(ctx, events.Event{
		Type:       events.EventThreadStatusChanged,
		ThreadID:   threadID,
		ActorID:    actorID,
		Recipients: thread.ParticipantIDs,
		Payload: events.ThreadStatusChangedPayload{
			OldStatus: thread.Status,
			NewStatus: status,
		},
	})
	return nil
}

// DeleteThread soft-deletes the thread and abandons its in-flight
// automated responses. Only deletion cancels them; a closed view never does.
func (s *ThreadService) DeleteThread(ctx context.Context, threadID, actorID string) error {
	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		return apperrors.NewNotFound("thread", map[string]any{"thread_id": threadID})
	}
	if thread.OwnerID != actorID {
		return apperrors.NewPermissionDenied("only the owner may delete a thread")
	}
	if err := s.threads.SoftDelete(ctx, threadID); err != nil {
		return err
	}
	if s.responder != nil {
		s.responder.CancelThread(threadID)
	}
	s.contexts.Invalidate(threadID)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventThreadDeleted,
		ThreadID: threadID,
		ActorID:  actorID,
	})
	return nil
}

func (s *ThreadService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatch == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	if err := s.dispatch.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func preview(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > bodyPreviewLen {
		return body[:bodyPreviewLen]
	}
	return body
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
