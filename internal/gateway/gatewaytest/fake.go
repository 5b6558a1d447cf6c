// Package gatewaytest provides an in-memory scriptable Gateway for store
// tests, so every store exercises its reconciliation rules without a socket.
package gatewaytest

import (
	"context"
	"sync"

	"patternpilot/internal/gateway"
	"patternpilot/internal/types"
)

// Call records one invocation against the fake.
type Call struct {
	Method string
	Args   any
}

// Fake implements gateway.Gateway. Configure per-method failures with Fail;
// inspect traffic with Calls/CallsTo. Zero value usable after New.
type Fake struct {
	mu     sync.Mutex
	calls  []Call
	errors map[string]error

	// Scripted responses.
	Notifications   []types.Notification
	Automations     []types.Automation
	SavedAutomation types.Automation
	StopRes         types.StopResult
	ActionCount     int
	SavedRecording  string
}

// New creates an empty fake.
func New() *Fake {
	return &Fake{errors: make(map[string]error)}
}

// Fail makes method return err until cleared with Fail(method, nil).
func (f *Fake) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errors, method)
		return
	}
	f.errors[method] = err
}

// Calls returns a copy of all recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo counts invocations of one method.
func (f *Fake) CallsTo(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (f *Fake) record(method string, args any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Method: method, Args: args})
	return f.errors[method]
}

func (f *Fake) GetNotifications(_ context.Context, typ types.NotificationType) ([]types.Notification, error) {
	if err := f.record("notifications.getAll", typ); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Notification, len(f.Notifications))
	copy(out, f.Notifications)
	return out, nil
}

func (f *Fake) DismissNotification(_ context.Context, id string) error {
	return f.record("notifications.dismiss", id)
}

func (f *Fake) DismissAllNotifications(_ context.Context) error {
	return f.record("notifications.dismissAll", nil)
}

func (f *Fake) DismissPattern(_ context.Context, patternID string) error {
	return f.record("pattern.dismiss", patternID)
}

func (f *Fake) SaveAutomation(_ context.Context, req gateway.SaveAutomationRequest) (types.Automation, error) {
	if err := f.record("pattern.saveAutomation", req); err != nil {
		return types.Automation{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	saved := f.SavedAutomation
	if saved.ID == "" {
		saved.ID = "auto-" + req.PatternID
	}
	if saved.Name == "" {
		saved.Name = req.Name
	}
	saved.PatternID = req.PatternID
	return saved, nil
}

func (f *Fake) CancelExecution(_ context.Context, executionID string) error {
	return f.record("pattern.cancelExecution", executionID)
}

func (f *Fake) StartContinuation(_ context.Context, patternID string, itemCount int) error {
	return f.record("pattern.startContinuation", []any{patternID, itemCount})
}

func (f *Fake) StartRecording(_ context.Context, tabID string) error {
	return f.record("recording.start", tabID)
}

func (f *Fake) StopRecording(_ context.Context) (types.StopResult, error) {
	if err := f.record("recording.stop", nil); err != nil {
		return types.StopResult{}, err
	}
	return f.StopRes, nil
}

func (f *Fake) SaveRecording(_ context.Context, req gateway.SaveRecordingRequest) (string, error) {
	if err := f.record("recording.save", req); err != nil {
		return "", err
	}
	if f.SavedRecording != "" {
		return f.SavedRecording, nil
	}
	return "auto-recorded", nil
}

func (f *Fake) GetActionCount(_ context.Context) (int, error) {
	if err := f.record("recording.getActionCount", nil); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ActionCount, nil
}

func (f *Fake) GetAutomations(_ context.Context) ([]types.Automation, error) {
	if err := f.record("automations.getAll", nil); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Automation, len(f.Automations))
	copy(out, f.Automations)
	return out, nil
}

func (f *Fake) ExecuteAutomation(_ context.Context, id string) error {
	return f.record("automations.execute", id)
}

func (f *Fake) CancelAutomation(_ context.Context) error {
	return f.record("automations.cancel", nil)
}

func (f *Fake) EditAutomation(_ context.Context, req gateway.EditAutomationRequest) error {
	return f.record("automations.edit", req)
}

func (f *Fake) DeleteAutomation(_ context.Context, id string) error {
	return f.record("automations.delete", id)
}

var _ gateway.Gateway = (*Fake)(nil)
