// Package worker drives the trigger queue: it claims unprocessed
// notification triggers and delivers them through the push service.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/thread-service/internal/config"
	"github.com/spec-kit/thread-service/internal/domain"
	"github.com/spec-kit/thread-service/internal/observability"
	"github.com/spec-kit/thread-service/internal/push"
	"github.com/spec-kit/thread-service/internal/repository"
)

// DispatchWorker is the queue consumer. Multiple workers may run; the
// transactional claim guarantees one delivery per trigger.
type DispatchWorker struct {
	triggers repository.TriggerRepository
	devices  repository.DeviceRepository
	messages repository.MessageRepository
	sender   push.Sender
	logger   *zap.Logger
	metrics  *observability.Metrics

	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	backoffBase  time.Duration

	sleep func(context.Context, time.Duration)
}

// NewDispatchWorker constructs the worker.
func NewDispatchWorker(triggers repository.TriggerRepository, devices repository.DeviceRepository,
	messages repository.MessageRepository, sender push.Sender, logger *zap.Logger,
	metrics *observability.Metrics, notifyCfg config.NotifyConfig, pushCfg config.PushConfig) *DispatchWorker {
	maxAttempts := pushCfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoffBase := time.Duration(pushCfg.BackoffBaseMillis) * time.Millisecond
	if backoffBase <= 0 {
		backoffBase = 200 * time.Millisecond
	}
	return &DispatchWorker{
		triggers:     triggers,
		devices:      devices,
		messages:     messages,
		sender:       sender,
		logger:       logger,
		metrics:      metrics,
		pollInterval: notifyCfg.PollInterval(),
		batchSize:    notifyCfg.BatchSize,
		maxAttempts:  maxAttempts,
		backoffBase:  backoffBase,
		sleep:        sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Run polls until ctx is cancelled.
func (w *DispatchWorker) Run(ctx context.Context) {
	w.logger.Info("dispatch worker started", zap.Duration("poll_interval", w.pollInterval))
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("dispatch worker stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *DispatchWorker) drain(ctx context.Context) {
	pending, err := w.triggers.ListUnprocessed(ctx, w.batchSize)
	if err != nil {
		w.logger.Warn("trigger poll failed", zap.Error(err))
		return
	}
	for i := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := w.Process(ctx, &pending[i]); err != nil {
			w.logger.Warn("trigger processing failed",
				zap.String("trigger_id", pending[i].ID), zap.Error(err))
		}
	}
}

// Process delivers one trigger. The claim runs first: a trigger whose
// processed flag is already set is never reprocessed, even under
// concurrent or duplicate consumer invocations.
func (w *DispatchWorker) Process(ctx context.Context, trigger *domain.NotificationTrigger) error {
	claimed, err := w.triggers.Claim(ctx, trigger.ID)
	if err != nil {
		return err
	}
	if !claimed {
		w.metrics.RecordTrigger("lost_claim")
		return nil
	}
	w.metrics.RecordTrigger("claimed")

	var badgeHint *int
	for _, recipient := range trigger.RecipientUserIDs {
		tokens, err := w.devices.TokensForUser(ctx, recipient)
		if err != nil {
			w.logger.Warn("token lookup failed", zap.String("user_id", recipient), zap.Error(err))
			continue
		}
		if len(tokens) == 0 {
			continue
		}

		// Badge is the recipient's true unread count, read fresh at
		// delivery time. Never an incremented counter, so retries and
		// reordering cannot skew it.
		badge, err := w.messages.UnreadCount(ctx, recipient)
		if err != nil {
			w.logger.Warn("unread count failed", zap.String("user_id", recipient), zap.Error(err))
		} else if len(trigger.RecipientUserIDs) == 1 {
			badgeHint = &badge
		}

		w.deliver(ctx, push.Request{
			Tokens: tokens,
			Title:  trigger.Title,
			Body:   trigger.Body,
			Data:   trigger.Payload,
			Badge:  &badge,
		})
	}

	return w.triggers.Finish(ctx, trigger.ID, badgeHint)
}

// deliver sends one batch, retrying transient per-token failures with
// bounded exponential backoff. Stale tokens are pruned silently; permanent
// failures are logged and dropped.
func (w *DispatchWorker) deliver(ctx context.Context, req push.Request) {
	tokens := req.Tokens
	backoff := w.backoffBase

	for attempt := 1; attempt <= w.maxAttempts && len(tokens) > 0; attempt++ {
		req.Tokens = tokens
		results, err := w.sender.Send(ctx, req)
		if err != nil {
			// Whole-call failure counts as transient for every token.
			w.logger.Warn("push call failed",
				zap.Int("attempt", attempt), zap.Int("tokens", len(tokens)), zap.Error(err))
			if attempt == w.maxAttempts {
				w.metrics.RecordPushToken("dropped")
				return
			}
			w.sleep(ctx, backoff)
			backoff *= 2
			continue
		}

		var retry []string
		for _, result := range results {
			switch result.Status {
			case push.StatusOK:
				w.metrics.RecordPushToken("ok")
			case push.StatusUnregistered:
				w.metrics.RecordPushToken("stale")
				if err := w.devices.DeleteToken(ctx, result.Token); err != nil {
					w.logger.Warn("stale token prune failed", zap.Error(err))
				}
			case push.StatusTransient:
				w.metrics.RecordPushToken("transient")
				retry = append(retry, result.Token)
			default:
				w.metrics.RecordPushToken("permanent")
				w.logger.Warn("push permanently failed", zap.String("detail", result.Detail))
			}
		}
		tokens = retry
		if len(tokens) == 0 {
			return
		}
		if attempt < w.maxAttempts {
			w.sleep(ctx, backoff)
			backoff *= 2
		}
	}
	if len(tokens) > 0 {
		w.metrics.RecordPushToken("dropped")
		w.logger.Warn("push retries exhausted", zap.Int("tokens", len(tokens)))
	}
}
