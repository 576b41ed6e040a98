// Package sync reconciles optimistic local writes with server-confirmed
// records arriving on the change stream.
package sync

import (
	"context"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/thread-service/internal/domain"
	"github.com/spec-kit/thread-service/internal/stream"
)

type pendingEntry struct {
	index   int
	addedAt time.Time
}

// Reconciler maintains one client's view of a thread timeline. An
// optimistic entry (deliveryStatus=sending) is replaced, not duplicated,
// when the server-confirmed record with the same client id arrives. A
// record whose client id matches nothing within the pending window is
// treated as new; that covers an app restart mid-send.
type Reconciler struct {
	logger *zap.Logger
	window time.Duration

	mu      stdsync.Mutex
	entries []domain.Message
	pending map[string]pendingEntry

	now func() time.Time
}

// NewReconciler constructs a reconciler for one thread view.
func NewReconciler(window time.Duration, logger *zap.Logger) *Reconciler {
	if window <= 0 {
		window = 30 * time.Second
	}
	return &Reconciler{
		logger:  logger,
		window:  window,
		pending: make(map[string]pendingEntry),
		now:     time.Now,
	}
}

// AddPending appends an optimistic local message awaiting confirmation.
func (r *Reconciler) AddPending(msg domain.Message) {
	msg.DeliveryStatus = domain.DeliverySending
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, msg)
	if msg.ClientMsgID != "" {
		r.pending[msg.ClientMsgID] = pendingEntry{index: len(r.entries) - 1, addedAt: r.now()}
	}
}

// Apply folds one confirmed record into the timeline.
func (r *Reconciler) Apply(record stream.MessageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record.ClientMsgID != "" {
		if p, ok := r.pending[record.ClientMsgID]; ok {
			delete(r.pending, record.ClientMsgID)
			if r.now().Sub(p.addedAt) <= r.window {
				entry := &r.entries[p.index]
				entry.ID = record.MessageID
				entry.CreatedAt = record.CreatedAt
				entry.DeliveryStatus = record.DeliveryStatus
				return
			}
			// Window elapsed; the optimistic entry was already given up
			// on, so the confirmed record stands alone.
			r.logger.Debug("pending window elapsed",
				zap.String("client_msg_id", record.ClientMsgID))
		}
	}

	r.entries = append(r.entries, domain.Message{
		ID:             record.MessageID,
		ThreadID:       record.ThreadID,
		ClientMsgID:    record.ClientMsgID,
		AuthorID:       record.AuthorID,
		AuthorKind:     record.AuthorKind,
		Body:           record.Body,
		DeliveryStatus: record.DeliveryStatus,
		CreatedAt:      record.CreatedAt,
	})
}

// MarkFailed flips an optimistic entry to failed so the client can offer a
// retry affordance.
func (r *Reconciler) MarkFailed(clientMsgID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[clientMsgID]
	if !ok {
		return
	}
	delete(r.pending, clientMsgID)
	r.entries[p.index].DeliveryStatus = domain.DeliveryFailed
}

// Entries returns a snapshot of the timeline.
func (r *Reconciler) Entries() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Message, len(r.entries))
	copy(out, r.entries)
	return out
}

// PendingCount reports how many optimistic entries await confirmation.
func (r *Reconciler) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Follow consumes a thread subscription until ctx is cancelled. Cancelling
// drops only this view's subscription.
func (r *Reconciler) Follow(ctx context.Context, records <-chan stream.MessageRecord) {
	for {
		select {
		case <-ctx.Done():
			return
		case record, ok := <-records:
			if !ok {
				return
			}
			r.Apply(record)
		}
	}
}
