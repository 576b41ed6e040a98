package service

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/thread-service/internal/ai"
	"github.com/spec-kit/thread-service/internal/domain"
)

// Poster posts the automated follow-up message back into the thread.
type Poster interface {
	PostAutomated(ctx context.Context, threadID, body string) error
}

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_.-]+)`)

// triggerPhrases are scanned case-insensitively in message bodies.
var triggerPhrases = []string{
	"quote", "schedule", "urgent", "estimate", "invoice",
	"who", "what", "when", "where", "why", "how",
	"can you", "could you", "would you",
}

// Mentions returns the distinct mention tokens in a body, in order of
// first appearance. "@X ... @X" yields X once.
func Mentions(body string) []string {
	matches := mentionPattern.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var result []string
	for _, match := range matches {
		token := match[1]
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		result = append(result, token)
	}
	return result
}

// ShouldRespond reports whether a human message warrants an automated
// follow-up: a question mark or any trigger phrase.
func ShouldRespond(body string) bool {
	if strings.Contains(body, "?") {
		return true
	}
	lower := strings.ToLower(body)
	for _, phrase := range triggerPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Responder generates automated replies. Each response runs as a detached
// task scoped to the thread's lifetime: navigating away from the view does
// not cancel it; deleting the thread does.
type Responder struct {
	contexts   *ContextService
	completer  ai.Completer
	logger     *zap.Logger
	windowSize int

	mu      sync.Mutex
	threads map[string]*threadScope
	poster  Poster

	wg sync.WaitGroup
}

type threadScope struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewResponder constructs the responder. The poster is bound later to
// break the construction cycle with the thread engine.
func NewResponder(contexts *ContextService, completer ai.Completer, logger *zap.Logger) *Responder {
	return &Responder{
		contexts:   contexts,
		completer:  completer,
		logger:     logger,
		windowSize: 25,
		threads:    make(map[string]*threadScope),
	}
}

// BindPoster wires the thread engine back in.
func (r *Responder) BindPoster(poster Poster) {
	r.mu.Lock()
	r.poster = poster
	r.mu.Unlock()
}

func (r *Responder) scopeFor(threadID string) *threadScope {
	r.mu.Lock()
	defer r.mu.Unlock()
	scope, ok := r.threads[threadID]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		scope = &threadScope{ctx: ctx, cancel: cancel}
		r.threads[threadID] = scope
	}
	return scope
}

// Respond fires the automated follow-up for a qualifying message. Fire and
// forget: the caller's context is deliberately not used. Any failure,
// including a collaborator timeout, is swallowed; no message is posted and
// no error reaches human participants.
func (r *Responder) Respond(threadID string, message domain.Message) {
	scope := r.scopeFor(threadID)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx := scope.ctx
		if ctx.Err() != nil {
			return
		}

		snapshot, err := r.contexts.BuildSnapshot(ctx, threadID, r.windowSize)
		if err != nil {
			r.logger.Debug("context snapshot failed", zap.String("thread_id", threadID), zap.Error(err))
			return
		}

		text, err := r.completer.Complete(ctx, snapshot, message.Body)
		if err != nil {
			r.logger.Debug("automated response dropped", zap.String("thread_id", threadID), zap.Error(err))
			return
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}

		r.mu.Lock()
		poster := r.poster
		r.mu.Unlock()
		if poster == nil || ctx.Err() != nil {
			return
		}
		if err := poster.PostAutomated(ctx, threadID, text); err != nil {
			r.logger.Warn("automated message post failed", zap.String("thread_id", threadID), zap.Error(err))
		}
	}()
}

// CancelThread abandons in-flight responses for a deleted thread.
func (r *Responder) CancelThread(threadID string) {
	r.mu.Lock()
	scope, ok := r.threads[threadID]
	if ok {
		delete(r.threads, threadID)
	}
	r.mu.Unlock()
	if ok {
		scope.cancel()
	}
}

// Wait blocks until in-flight responses finish. Used in shutdown and tests.
func (r *Responder) Wait() {
	r.wg.Wait()
}
