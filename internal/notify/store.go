// Package notify implements the client-side notification inbox. The backend
// owns notification state; this store caches the latest pushed or fetched
// snapshot and derives the unread count on demand so it can never drift.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"patternpilot/internal/gateway"
	"patternpilot/internal/logging"
	"patternpilot/internal/types"
)

// Store holds the notification inbox, newest first.
//
// Dismiss and DismissAll are optimistic and deliberately never rolled back on
// backend failure: a notification the user already swiped away re-appearing
// is worse than the backend briefly disagreeing, and the next Load reconciles
// either way. Preserved as observed behavior, not "fixed" to pessimistic.
type Store struct {
	mu    sync.RWMutex
	gw    gateway.Gateway
	log   *zap.Logger
	items []types.Notification

	now func() time.Time
}

// New creates an empty store backed by gw.
func New(gw gateway.Gateway) *Store {
	return &Store{
		gw:  gw,
		log: logging.For(logging.CategoryNotify),
		now: time.Now,
	}
}

// Load replaces the inbox with the backend's full list. Idempotent.
func (s *Store) Load(ctx context.Context) error {
	items, err := s.gw.GetNotifications(ctx, "")
	if err != nil {
		s.log.Error("load failed", zap.Error(err))
		return err
	}
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return nil
}

// Receive inserts a pushed notification at the head. A duplicate id is
// ignored; the backend re-sends on reconnect and the inbox must not double up.
func (s *Store) Receive(n types.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == n.ID {
			return
		}
	}
	s.items = append([]types.Notification{n}, s.items...)
}

// Dismiss marks the notification read locally, then confirms with the
// backend. The local mark stays even when the call fails (see Store docs).
func (s *Store) Dismiss(ctx context.Context, id string) error {
	ts := s.now()
	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].DismissedAt == nil {
			s.items[i].DismissedAt = &ts
			break
		}
	}
	s.mu.Unlock()

	if err := s.gw.DismissNotification(ctx, id); err != nil {
		s.log.Warn("dismiss not confirmed by backend, keeping local state",
			zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// DismissAll marks every unread notification read, then confirms. Same
// no-rollback policy as Dismiss.
func (s *Store) DismissAll(ctx context.Context) error {
	ts := s.now()
	s.mu.Lock()
	for i := range s.items {
		if s.items[i].DismissedAt == nil {
			s.items[i].DismissedAt = &ts
		}
	}
	s.mu.Unlock()

	if err := s.gw.DismissAllNotifications(ctx); err != nil {
		s.log.Warn("dismissAll not confirmed by backend, keeping local state", zap.Error(err))
		return err
	}
	return nil
}

// UnreadCount derives the unread total from the items themselves.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for i := range s.items {
		if s.items[i].DismissedAt == nil {
			n++
		}
	}
	return n
}

// All returns a copy of the inbox, newest first.
func (s *Store) All() []types.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns the notification with the given id.
func (s *Store) Get(id string) (types.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.items {
		if s.items[i].ID == id {
			return s.items[i], true
		}
	}
	return types.Notification{}, false
}
