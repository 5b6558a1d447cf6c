// Package execution tracks the automation library and the zero-or-more
// in-flight automation runs. The backend owns execution truth: the tracker's
// executing set is a cache that only push events may drain, so the UI can
// never show idle while the backend still believes a run is live.
package execution

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"patternpilot/internal/gateway"
	"patternpilot/internal/logging"
	"patternpilot/internal/types"
)

// Store caches the automation library. ExecutionCount and LastExecuted are
// server-authoritative, refreshed by Reload after every run.
type Store struct {
	mu    sync.RWMutex
	gw    gateway.Gateway
	log   *zap.Logger
	items map[string]types.Automation
}

// NewStore creates an empty automation store.
func NewStore(gw gateway.Gateway) *Store {
	return &Store{
		gw:    gw,
		log:   logging.For(logging.CategoryExecution),
		items: make(map[string]types.Automation),
	}
}

// Reload replaces the cached library with the backend's list.
func (s *Store) Reload(ctx context.Context) error {
	autos, err := s.gw.GetAutomations(ctx)
	if err != nil {
		s.log.Error("reload failed", zap.Error(err))
		return err
	}
	next := make(map[string]types.Automation, len(autos))
	for _, a := range autos {
		next[a.ID] = a
	}
	s.mu.Lock()
	s.items = next
	s.mu.Unlock()
	return nil
}

// Get returns one automation by id.
func (s *Store) Get(id string) (types.Automation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.items[id]
	return a, ok
}

// All returns the library sorted by name.
func (s *Store) All() []types.Automation {
	s.mu.RLock()
	out := make([]types.Automation, 0, len(s.items))
	for _, a := range s.items {
		out = append(out, a)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Put inserts or replaces one automation locally. Used when a save call
// already returned the created automation, sparing a full reload.
func (s *Store) Put(a types.Automation) {
	if a.ID == "" {
		return
	}
	s.mu.Lock()
	s.items[a.ID] = a
	s.mu.Unlock()
}

// Edit updates name and description, pessimistically: the cache changes only
// after the backend confirms.
func (s *Store) Edit(ctx context.Context, id, name, description string) error {
	if err := types.ValidateName(name); err != nil {
		return err
	}
	if err := types.ValidateDescription(description); err != nil {
		return err
	}
	err := s.gw.EditAutomation(ctx, gateway.EditAutomationRequest{
		AutomationID: id,
		Name:         name,
		Description:  description,
	})
	if err != nil {
		s.log.Error("edit failed", zap.String("automation", id), zap.Error(err))
		return err
	}
	s.mu.Lock()
	if a, ok := s.items[id]; ok {
		a.Name = name
		a.Description = description
		s.items[id] = a
	}
	s.mu.Unlock()
	return nil
}

// Delete removes an automation, pessimistically.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.gw.DeleteAutomation(ctx, id); err != nil {
		s.log.Error("delete failed", zap.String("automation", id), zap.Error(err))
		return err
	}
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}
