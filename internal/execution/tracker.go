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

// Tracker follows in-flight automation runs. Membership in the executing set
// is the authority for every other decision here: progress events for ids
// outside the set are stale and ignored, and Cancel never touches local
// state — only a completion, cancellation, or error push event clears a run.
type Tracker struct {
	mu  sync.RWMutex
	gw  gateway.Gateway
	log *zap.Logger

	executing map[string]struct{}                // automation ids in flight
	progress  map[string]types.ExecutionProgress // keyed by automation id
	byExec    map[string]string                  // execution id -> automation id

	// reload is invoked after a run finishes (any outcome) and after a
	// successful execute call so server-authoritative counters refresh.
	reload func()
}

// NewTracker creates a tracker. reload may be nil.
func NewTracker(gw gateway.Gateway, reload func()) *Tracker {
	if reload == nil {
		reload = func() {}
	}
	return &Tracker{
		gw:        gw,
		log:       logging.For(logging.CategoryExecution),
		executing: make(map[string]struct{}),
		progress:  make(map[string]types.ExecutionProgress),
		byExec:    make(map[string]string),
		reload:    reload,
	}
}

// Execute starts a run. The id joins the executing set before the call is
// issued so the UI reflects "in flight" immediately; a failed call reverts
// the insert and clears any progress entry. Executing an id already in
// flight is a no-op — the set has set semantics, one tracker per automation.
func (t *Tracker) Execute(ctx context.Context, id string) error {
	t.mu.Lock()
	if _, busy := t.executing[id]; busy {
		t.mu.Unlock()
		return nil
	}
	t.executing[id] = struct{}{}
	t.mu.Unlock()

	if err := t.gw.ExecuteAutomation(ctx, id); err != nil {
		t.mu.Lock()
		delete(t.executing, id)
		delete(t.progress, id)
		t.mu.Unlock()
		t.log.Error("execute failed", zap.String("automation", id), zap.Error(err))
		return err
	}
	t.reload()
	return nil
}

// Cancel asks the backend to stop the current run. Local state is left
// alone; the completion or cancellation event is the authoritative end.
func (t *Tracker) Cancel(ctx context.Context) error {
	if err := t.gw.CancelAutomation(ctx); err != nil {
		t.log.Error("cancel failed", zap.Error(err))
		return err
	}
	return nil
}

// CancelRun cancels one execution by its execution id (continuation runs).
// Same policy as Cancel: state clears only on the push event.
func (t *Tracker) CancelRun(ctx context.Context, executionID string) error {
	if err := t.gw.CancelExecution(ctx, executionID); err != nil {
		t.log.Error("cancel run failed", zap.String("execution", executionID), zap.Error(err))
		return err
	}
	return nil
}

// resolve maps an event to its automation id, learning execution-id aliases
// from events that carry both. Must hold t.mu.
func (t *Tracker) resolve(automationID, executionID string) string {
	if automationID != "" {
		if executionID != "" {
			t.byExec[executionID] = automationID
		}
		return automationID
	}
	return t.byExec[executionID]
}

// OnProgress upserts the progress entry for an in-flight run. Events for
// automations not in the executing set are stale (a previous run finishing
// late) and do not mutate the map; steps never move backwards.
func (t *Tracker) OnProgress(ev types.ExecutionProgressEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.resolve(ev.AutomationID, ev.ExecutionID)
	if id == "" {
		t.log.Warn("dropping progress event with no resolvable automation",
			zap.String("execution", ev.ExecutionID))
		return
	}
	if _, live := t.executing[id]; !live {
		return
	}
	if prev, ok := t.progress[id]; ok && ev.Current < prev.CurrentStep {
		return
	}
	t.progress[id] = types.ExecutionProgress{
		AutomationID:    id,
		ExecutionID:     ev.ExecutionID,
		CurrentStep:     ev.Current,
		TotalSteps:      ev.Total,
		StepDescription: ev.Action,
		Screenshot:      ev.Screenshot,
	}
}

// OnComplete clears the run unconditionally, success or failure, then
// refreshes the automation library.
func (t *Tracker) OnComplete(ev types.ExecutionComplete) {
	t.finish(ev.AutomationID, ev.ExecutionID)
}

// OnCancelled clears a run ended by cancellation.
func (t *Tracker) OnCancelled(ev types.ExecutionCancelled) {
	t.finish("", ev.ExecutionID)
}

// OnError clears a run ended by an executor error.
func (t *Tracker) OnError(ev types.ExecutionError) {
	if ev.Error != "" {
		t.log.Warn("execution failed", zap.String("execution", ev.ExecutionID), zap.String("error", ev.Error))
	}
	t.finish("", ev.ExecutionID)
}

func (t *Tracker) finish(automationID, executionID string) {
	t.mu.Lock()
	id := t.resolve(automationID, executionID)
	if id == "" && len(t.executing) == 1 {
		// A terminal event can carry an execution id the client never saw
		// a progress event for. With one run in flight there is no
		// ambiguity about which run ended.
		for sole := range t.executing {
			id = sole
		}
	}
	if id == "" {
		t.mu.Unlock()
		t.log.Warn("dropping terminal event with no resolvable automation",
			zap.String("execution", executionID))
		return
	}
	delete(t.executing, id)
	delete(t.progress, id)
	if executionID != "" {
		delete(t.byExec, executionID)
	}
	t.mu.Unlock()
	t.reload()
}

// IsExecuting reports whether the automation has a live run.
func (t *Tracker) IsExecuting(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.executing[id]
	return ok
}

// Executing returns the in-flight automation ids, sorted for stable display.
func (t *Tracker) Executing() []string {
	t.mu.RLock()
	out := make([]string, 0, len(t.executing))
	for id := range t.executing {
		out = append(out, id)
	}
	t.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Progress returns the progress entry for one automation.
func (t *Tracker) Progress(id string) (types.ExecutionProgress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.progress[id]
	return p, ok
}

// ProgressMap returns a copy of all progress entries.
func (t *Tracker) ProgressMap() map[string]types.ExecutionProgress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]types.ExecutionProgress, len(t.progress))
	for k, v := range t.progress {
		out[k] = v
	}
	return out
}
