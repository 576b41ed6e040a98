package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/thread-service/internal/config"
	"github.com/spec-kit/thread-service/internal/domain"
	"github.com/spec-kit/thread-service/internal/events"
	"github.com/spec-kit/thread-service/internal/observability"
	apperrors "github.com/spec-kit/thread-service/pkg/util"
)

type engineFixture struct {
	threads   *fakeThreadRepo
	messages  *fakeMessageRepo
	triggers  *fakeTriggerRepo
	publisher *fakePublisher
	completer *fakeCompleter
	responder *Responder
	service   *ThreadService
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	logger := zap.NewNop()
	threads := newFakeThreadRepo()
	messages := newFakeMessageRepo()
	triggers := newFakeTriggerRepo()
	publisher := &fakePublisher{}
	completer := &fakeCompleter{}

	dispatcher := events.NewInMemoryDispatcher()
	contexts := NewContextService(messages, threads)
	responder := NewResponder(contexts, completer, logger)

	dispatch := NewDispatchService(triggers, dispatcher, logger, observability.NewMetrics(),
		config.NotifyConfig{GroupingWindowSeconds: 120})
	dispatch.RegisterHandlers()

	engine := NewThreadService(ThreadDependencies{
		ThreadRepo:  threads,
		MessageRepo: messages,
		Dispatcher:  dispatcher,
		Publisher:   publisher,
		Contexts:    contexts,
		Responder:   responder,
		Logger:      logger,
	})

	return &engineFixture{
		threads:   threads,
		messages:  messages,
		triggers:  triggers,
		publisher: publisher,
		completer: completer,
		responder: responder,
		service:   engine,
	}
}

func (f *engineFixture) createThread(t *testing.T, owner string, participants ...string) *domain.Thread {
	t.Helper()
	thread, err := f.service.CreateThread(context.Background(), CreateThreadInput{
		Title:          "Leaky faucet",
		OwnerID:        owner,
		ParticipantIDs: participants,
	})
	require.NoError(t, err)
	return thread
}

func TestPostMessageRequiresBodyOrAttachments(t *testing.T) {
	f := newEngineFixture(t)
	thread := f.createThread(t, "alice")

	_, err := f.service.PostMessage(context.Background(), PostMessageInput{
		ThreadID: thread.ID,
		AuthorID: "alice",
		Body:     "   ",
	})
	require.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	// Attachments alone are enough.
	_, err = f.service.PostMessage(context.Background(), PostMessageInput{
		ThreadID:    thread.ID,
		AuthorID:    "alice",
		Attachments: []string{"photos/sink.jpg"},
	})
	require.NoError(t, err)
}

func TestPostMessageInvalidParent(t *testing.T) {
	f := newEngineFixture(t)
	thread := f.createThread(t, "alice")

	missing := "no-such-message"
	_, err := f.service.PostMessage(context.Background(), PostMessageInput{
		ThreadID:        thread.ID,
		AuthorID:        "alice",
		Body:            "hi",
		ParentMessageID: &missing,
	})
	require.True(t, apperrors.IsCode(err, "INVALID_PARENT"))
}

func TestConcurrentRepliesCountExactly(t *testing.T) {
	f := newEngineFixture(t)
	thread := f.createThread(t, "alice", "bob")

	root, err := f.service.PostMessage(context.Background(), PostMessageInput{
		ThreadID: thread.ID,
		AuthorID: "alice",
		Body:     "pipe burst in unit 4",
	})
	require.NoError(t, err)

	const repliers = 8
	var wg sync.WaitGroup
	ids := make(chan string, repliers)
	for i := 0; i < repliers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			reply, err := f.service.PostMessage(context.Background(), PostMessageInput{
				ThreadID:        thread.ID,
				AuthorID:        "bob",
				Body:            "on it",
				ParentMessageID: &root.ID,
			})
			require.NoError(t, err)
			ids <- reply.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{})
	for id := range ids {
		seen[id] = struct{}{}
	}
	require.Len(t, seen, repliers)

	parent, err := f.messages.GetByID(context.Background(), root.ID)
	require.NoError(t, err)
	require.Equal(t, repliers, parent.ReplyCount)
}

func TestPostMessageRetrySuppressed(t *testing.T) {
	f := newEngineFixture(t)
	thread := f.createThread(t, "alice", "bob")

	input := PostMessageInput{
		ClientMsgID: "client-123",
		ThreadID:    thread.ID,
		AuthorID:    "alice",
		Body:        "can you quote this?",
	}
	first, err := f.service.PostMessage(context.Background(), input)
	require.NoError(t, err)

	second, err := f.service.PostMessage(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	f.responder.Wait()

	timeline, err := f.service.GetTimeline(context.Background(), thread.ID, 0)
	require.NoError(t, err)

	var human, automated int
	for _, msg := range timeline {
		switch msg.AuthorKind {
		case domain.AuthorKindAutomated:
			automated++
		default:
			human++
		}
	}
	require.Equal(t, 1, human)
	// Exactly one automated follow-up despite the retried send.
	require.Equal(t, 1, automated)
	require.Equal(t, 1, f.completer.callCount())
}

func TestMentionTriggersOncePerUser(t *testing.T) {
	f := newEngineFixture(t)
	thread := f.createThread(t, "alice", "xavier")

	_, err := f.service.PostMessage(context.Background(), PostMessageInput{
		ThreadID: thread.ID,
		AuthorID: "alice",
		Body:     "@xavier the sink again, @xavier please look",
	})
	require.NoError(t, err)
	f.responder.Wait()

	mentionTriggers := 0
	for _, trigger := range f.triggers.all() {
		if trigger.Title == "You were mentioned" {
			mentionTriggers++
			require.Equal(t, []string{"xavier"}, trigger.RecipientUserIDs)
		}
	}
	require.Equal(t, 1, mentionTriggers)
}

func TestMarkReadIdempotentAndExcludesAuthor(t *testing.T) {
	f := newEngineFixture(t)
	thread := f.createThread(t, "alice", "bob")

	var lastID string
	for i := 0; i < 4; i++ {
		msg, err := f.service.PostMessage(context.Background(), PostMessageInput{
			ThreadID: thread.ID,
			AuthorID: "alice",
			Body:     "update",
		})
		require.NoError(t, err)
		lastID = msg.ID
	}
	own, err := f.service.PostMessage(context.Background(), PostMessageInput{
		ThreadID: thread.ID,
		AuthorID: "bob",
		Body:     "thanks",
	})
	require.NoError(t, err)

	upTo := time.Now().Add(time.Hour)
	require.NoError(t, f.service.MarkRead(context.Background(), thread.ID, "bob", "Bob", upTo))
	require.NoError(t, f.service.MarkRead(context.Background(), thread.ID, "bob", "Bob", upTo))

	total := 0
	timeline, err := f.service.GetTimeline(context.Background(), thread.ID, 0)
	require.NoError(t, err)
	for _, msg := range timeline {
		for _, receipt := range msg.ReadReceipts {
			require.NotEqual(t, msg.AuthorID, receipt.UserID)
			total++
		}
	}
	require.Equal(t, 4, total)
	require.Equal(t, 1, f.messages.receiptCount(lastID))
	require.Equal(t, 0, f.messages.receiptCount(own.ID))
}

func TestReactionToggleIdempotent(t *testing.T) {
	f := newEngineFixture(t)
	thread := f.createThread(t, "alice", "bob")

	msg, err := f.service.PostMessage(context.Background(), PostMessageInput{
		ThreadID: thread.ID,
		AuthorID: "alice",
		Body:     "done",
	})
	require.NoError(t, err)

	require.NoError(t, f.service.AddReaction(context.Background(), msg.ID, "👍", "bob"))
	require.NoError(t, f.service.AddReaction(context.Background(), msg.ID, "👍", "bob"))

	got, err := f.messages.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	require.Len(t, got.Reactions, 1)

	// Removing a reaction that is not there is a no-op, not an error.
	require.NoError(t, f.service.RemoveReaction(context.Background(), msg.ID, "🎉", "bob"))
	require.NoError(t, f.service.RemoveReaction(context.Background(), msg.ID, "👍", "bob"))
	got, err = f.messages.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	require.Len(t, got.Reactions, 0)
}

func TestAutomatedReplyNotRescanned(t *testing.T) {
	f := newEngineFixture(t)
	thread := f.createThread(t, "alice", "bob")
	f.completer.reply = "Can I schedule a visit for you?"

	_, err := f.service.PostMessage(context.Background(), PostMessageInput{
		ThreadID: thread.ID,
		AuthorID: "alice",
		Body:     "how much would this cost?",
	})
	require.NoError(t, err)
	f.responder.Wait()

	// The bot's reply contains trigger phrases but must not loop.
	require.Equal(t, 1, f.completer.callCount())
}

func TestDeleteThreadAbandonsAutomatedReply(t *testing.T) {
	f := newEngineFixture(t)
	thread := f.createThread(t, "alice", "bob")
	f.completer.gate = make(chan struct{})

	_, err := f.service.PostMessage(context.Background(), PostMessageInput{
		ThreadID: thread.ID,
		AuthorID: "alice",
		Body:     "urgent: water everywhere",
	})
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteThread(context.Background(), thread.ID, "alice"))
	close(f.completer.gate)
	f.responder.Wait()

	timeline, err := f.service.GetTimeline(context.Background(), thread.ID, 0)
	require.NoError(t, err)
	for _, msg := range timeline {
		require.NotEqual(t, domain.AuthorKindAutomated, msg.AuthorKind)
	}
}

func TestDeleteThreadRequiresOwner(t *testing.T) {
	f := newEngineFixture(t)
	thread := f.createThread(t, "alice", "bob")

	err := f.service.DeleteThread(context.Background(), thread.ID, "bob")
	require.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))
}

func TestPostMessagePublishesChangeStreamRecord(t *testing.T) {
	f := newEngineFixture(t)
	thread := f.createThread(t, "alice")

	msg, err := f.service.PostMessage(context.Background(), PostMessageInput{
		ClientMsgID: "local-9",
		ThreadID:    thread.ID,
		AuthorID:    "alice",
		Body:        "done for today",
	})
	require.NoError(t, err)

	require.Len(t, f.publisher.records, 1)
	record := f.publisher.records[0]
	require.Equal(t, msg.ID, record.MessageID)
	require.Equal(t, "local-9", record.ClientMsgID)
	require.Equal(t, domain.DeliverySent, record.DeliveryStatus)
}
