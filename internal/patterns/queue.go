// Package patterns implements the actionable-pattern queue derived from
// pattern-type notifications, plus the continuation-suggestion flow.
//
// Queue entries are first-write-wins per pattern id: within the queue's
// lifetime an updated confidence never appears as a second entry, only a
// fresh Load/notification can reintroduce a dismissed or converted pattern.
package patterns

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"patternpilot/internal/gateway"
	"patternpilot/internal/logging"
	"patternpilot/internal/types"
)

// ErrNotQueued is returned when an operation names a pattern id that is not
// (or no longer) in the queue.
var ErrNotQueued = errors.New("patterns: pattern not in queue")

// Entry is one queued pattern together with the notification that carried it,
// which the conversation layer needs for its processed-set bookkeeping.
type Entry struct {
	Pattern        types.Pattern
	NotificationID string
}

// Suggestion is a pending continuation prompt pushed by the backend.
// DefaultItems is EstimatedItems clamped into the valid range for pre-filling
// the request; EstimatedItems keeps the raw value for display.
type Suggestion struct {
	types.SuggestContinuation
	DefaultItems int
}

// Queue holds actionable patterns, oldest first.
type Queue struct {
	mu          sync.RWMutex
	gw          gateway.Gateway
	log         *zap.Logger
	entries     []Entry
	suggestions map[string]Suggestion
}

// New creates an empty queue backed by gw.
func New(gw gateway.Gateway) *Queue {
	return &Queue{
		gw:          gw,
		log:         logging.For(logging.CategoryPatterns),
		suggestions: make(map[string]Suggestion),
	}
}

// Ingest decodes the notification's data payload into a pattern and queues
// it. Non-pattern notifications are ignored; malformed payloads are dropped
// with a logged warning, never surfaced to the user. A pattern id already in
// the queue wins over the incoming copy.
func (q *Queue) Ingest(n types.Notification) {
	if n.Type != types.NotificationPattern {
		return
	}
	var p types.Pattern
	if err := json.Unmarshal(n.Data, &p); err != nil {
		q.log.Warn("dropping pattern notification with undecodable payload",
			zap.String("notification", n.ID), zap.Error(err))
		return
	}
	if err := p.Validate(); err != nil {
		q.log.Warn("dropping pattern notification with invalid payload",
			zap.String("notification", n.ID), zap.Error(err))
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.entries {
		if q.entries[i].Pattern.ID == p.ID {
			return
		}
	}
	q.entries = append(q.entries, Entry{Pattern: p, NotificationID: n.ID})
}

// Dismiss removes the pattern permanently, backend-first: the queue entry
// goes away only after the backend confirms.
func (q *Queue) Dismiss(ctx context.Context, patternID string) error {
	if _, ok := q.Get(patternID); !ok {
		return ErrNotQueued
	}
	if err := q.gw.DismissPattern(ctx, patternID); err != nil {
		q.log.Error("dismiss rejected, pattern stays queued",
			zap.String("pattern", patternID), zap.Error(err))
		return err
	}
	q.remove(patternID)
	return nil
}

// Convert saves the pattern as an automation. On success the pattern leaves
// the queue and the created automation is returned; on failure the pattern
// stays queued and the error goes back to the caller.
func (q *Queue) Convert(ctx context.Context, patternID, name, description string) (types.Automation, error) {
	if err := types.ValidateName(name); err != nil {
		return types.Automation{}, err
	}
	if err := types.ValidateDescription(description); err != nil {
		return types.Automation{}, err
	}
	if _, ok := q.Get(patternID); !ok {
		return types.Automation{}, ErrNotQueued
	}

	auto, err := q.gw.SaveAutomation(ctx, gateway.SaveAutomationRequest{
		PatternID:   patternID,
		Name:        name,
		Description: description,
	})
	if err != nil {
		q.log.Error("save automation failed, pattern stays queued",
			zap.String("pattern", patternID), zap.Error(err))
		return types.Automation{}, err
	}
	q.remove(patternID)
	return auto, nil
}

func (q *Queue) remove(patternID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.entries {
		if q.entries[i].Pattern.ID == patternID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	delete(q.suggestions, patternID)
}

// Get returns the queued entry for a pattern id.
func (q *Queue) Get(patternID string) (Entry, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for i := range q.entries {
		if q.entries[i].Pattern.ID == patternID {
			return q.entries[i], true
		}
	}
	return Entry{}, false
}

// All returns a copy of the queue, oldest first.
func (q *Queue) All() []Entry {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Len reports the number of queued patterns.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// =============================================================================
// CONTINUATION SUGGESTIONS
// =============================================================================

// OnSuggestContinuation records a pushed continuation suggestion, pre-filling
// the default item count from the backend's estimate.
func (q *Queue) OnSuggestContinuation(ev types.SuggestContinuation) {
	if ev.PatternID == "" {
		q.log.Warn("dropping continuation suggestion without pattern id")
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.suggestions[ev.PatternID] = Suggestion{
		SuggestContinuation: ev,
		DefaultItems:        types.ClampItemCount(ev.EstimatedItems),
	}
}

// Suggestion returns the pending suggestion for a pattern, if any.
func (q *Queue) Suggestion(patternID string) (Suggestion, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	s, ok := q.suggestions[patternID]
	return s, ok
}

// StartContinuation validates the item count locally and asks the backend to
// continue the pattern across itemCount items. The pending suggestion is
// cleared only on success.
func (q *Queue) StartContinuation(ctx context.Context, patternID string, itemCount int) error {
	if err := types.ValidateItemCount(itemCount); err != nil {
		return err
	}
	if err := q.gw.StartContinuation(ctx, patternID, itemCount); err != nil {
		q.log.Error("start continuation failed",
			zap.String("pattern", patternID), zap.Error(err))
		return err
	}
	q.mu.Lock()
	delete(q.suggestions, patternID)
	q.mu.Unlock()
	return nil
}
