// Package recording models the lifecycle of the at-most-one active recording
// session. The backend enforces the single-session invariant; this machine
// mirrors it and turns the backend's busy-conflict into a typed error the UI
// can render as a takeover-or-cancel prompt. The client never auto-switches
// tabs or force-stops somebody else's session.
package recording

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

var (
	// ErrNotRecording is returned by Stop when no session is active.
	ErrNotRecording = errors.New("recording: no active session")

	// ErrNoActions is returned by Stop when the authoritative action count
	// is zero. A zero-action session is a user decision (continue or
	// discard), never an implicit stop.
	ErrNoActions = errors.New("recording: session has no captured actions")
)

// ConflictError reports that another tab already holds the recording session.
type ConflictError struct {
	TabID    string
	TabTitle string
}

func (e *ConflictError) Error() string {
	if e.TabTitle != "" {
		return "recording already active on tab " + e.TabID + " (" + e.TabTitle + ")"
	}
	return "recording already active on tab " + e.TabID
}

// Machine is the client-side recording state machine.
type Machine struct {
	mu      sync.RWMutex
	gw      gateway.Gateway
	log     *zap.Logger
	session types.RecordingSession

	// Result of the last successful Stop, held for the save/discard decision.
	lastStop *types.StopResult
}

// New creates a machine in the stopped state.
func New(gw gateway.Gateway) *Machine {
	return &Machine{
		gw:      gw,
		log:     logging.For(logging.CategoryRecording),
		session: types.RecordingSession{Status: types.RecordingStopped},
	}
}

// Session returns a copy of the current session state.
func (m *Machine) Session() types.RecordingSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Start begins recording on tabID. Pessimistic: state moves to active only on
// backend success. A RECORDING_ACTIVE conflict leaves state untouched and
// comes back as *ConflictError carrying the busy tab's identity.
func (m *Machine) Start(ctx context.Context, tabID string) error {
	if err := m.gw.StartRecording(ctx, tabID); err != nil {
		if ce, ok := gateway.AsCallError(err); ok && ce.Code == gateway.CodeRecordingActive {
			var busy gateway.BusyTab
			if len(ce.Data) > 0 {
				if derr := json.Unmarshal(ce.Data, &busy); derr != nil {
					m.log.Warn("conflict payload undecodable", zap.Error(derr))
				}
			}
			m.log.Info("start rejected, session busy",
				zap.String("requested", tabID), zap.String("busy", busy.TabID))
			return &ConflictError{TabID: busy.TabID, TabTitle: busy.TabTitle}
		}
		m.log.Error("start failed", zap.String("tab", tabID), zap.Error(err))
		return err
	}

	m.mu.Lock()
	m.session = types.RecordingSession{
		IsRecording: true,
		TabID:       tabID,
		ActionCount: 0,
		Status:      types.RecordingActive,
	}
	m.lastStop = nil
	m.mu.Unlock()
	return nil
}

// OnActionCaptured applies a pushed action-capture event. No state
// transition, only the count moves. Events arriving outside an active
// session are stale and ignored, as are duplicates and out-of-order
// deliveries — the count only ever moves forward, toward the backend's.
func (m *Machine) OnActionCaptured(ev types.ActionCaptured) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.session.IsRecording {
		return
	}
	if ev.ActionCount > m.session.ActionCount {
		m.session.ActionCount = ev.ActionCount
	}
}

// OnStatusChanged applies a backend-pushed transition (error, timeout, or a
// stop initiated elsewhere). These have no local trigger.
func (m *Machine) OnStatusChanged(ev types.RecordingStatusChanged) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch ev.Status {
	case types.RecordingActive, types.RecordingPaused:
		m.session.Status = ev.Status
		m.session.IsRecording = ev.Status == types.RecordingActive
		if ev.TabID != "" {
			m.session.TabID = ev.TabID
		}
	case types.RecordingStopped, types.RecordingTimeout, types.RecordingError:
		m.session.Status = ev.Status
		m.session.IsRecording = false
		if ev.Message != "" {
			m.log.Warn("recording ended by backend",
				zap.String("status", string(ev.Status)), zap.String("message", ev.Message))
		}
	default:
		m.log.Warn("dropping status event with unknown status", zap.String("status", string(ev.Status)))
	}
}

// SetActionCount overwrites the local count with an authoritative value from
// recording.getActionCount. Used by the periodic poll while recording.
func (m *Machine) SetActionCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.IsRecording && n >= 0 {
		m.session.ActionCount = n
	}
}

// AuthoritativeActionCount asks the backend for the real captured-action
// count. The Stop guard uses this rather than the locally tracked count.
func (m *Machine) AuthoritativeActionCount(ctx context.Context) (int, error) {
	return m.gw.GetActionCount(ctx)
}

// Stop ends the active session and returns what was captured, guarded by the
// zero-action rule: when the authoritative count is zero, Stop refuses with
// ErrNoActions and issues no stop call — the caller must offer continue vs
// discard instead.
func (m *Machine) Stop(ctx context.Context) (types.StopResult, error) {
	m.mu.RLock()
	recording := m.session.IsRecording
	m.mu.RUnlock()
	if !recording {
		return types.StopResult{}, ErrNotRecording
	}

	count, err := m.AuthoritativeActionCount(ctx)
	if err != nil {
		m.log.Error("action count query failed", zap.Error(err))
		return types.StopResult{}, err
	}
	if count == 0 {
		return types.StopResult{}, ErrNoActions
	}

	res, err := m.gw.StopRecording(ctx)
	if err != nil {
		m.log.Error("stop failed", zap.Error(err))
		return types.StopResult{}, err
	}

	m.mu.Lock()
	m.session.IsRecording = false
	m.session.Status = types.RecordingStopped
	m.session.ActionCount = len(res.Actions)
	m.lastStop = &res
	m.mu.Unlock()
	return res, nil
}

// LastStop returns the captured result of the most recent successful Stop,
// pending the user's save/discard decision.
func (m *Machine) LastStop() (types.StopResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastStop == nil {
		return types.StopResult{}, false
	}
	return *m.lastStop, true
}

// Save persists a stopped recording as an automation. Validated locally
// first; does not change session state, which is already stopped.
func (m *Machine) Save(ctx context.Context, name, description string, actions []types.CapturedAction) (string, error) {
	if err := types.ValidateName(name); err != nil {
		return "", err
	}
	if err := types.ValidateDescription(description); err != nil {
		return "", err
	}
	id, err := m.gw.SaveRecording(ctx, gateway.SaveRecordingRequest{
		Name:        name,
		Description: description,
		Actions:     actions,
	})
	if err != nil {
		m.log.Error("save failed", zap.Error(err))
		return "", err
	}
	m.mu.Lock()
	m.lastStop = nil
	m.mu.Unlock()
	return id, nil
}

// Discard resets the machine to its initial state. Local only, no backend
// call.
func (m *Machine) Discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = types.RecordingSession{Status: types.RecordingStopped}
	m.lastStop = nil
}
