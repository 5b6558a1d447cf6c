package recording

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"patternpilot/internal/gateway"
	"patternpilot/internal/gateway/gatewaytest"
	"patternpilot/internal/types"
)

func TestStartTransitionsToActive(t *testing.T) {
	m := New(gatewaytest.New())

	if err := m.Start(context.Background(), "t1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s := m.Session()
	if !s.IsRecording || s.TabID != "t1" || s.ActionCount != 0 || s.Status != types.RecordingActive {
		t.Errorf("session = %+v", s)
	}
}

func TestStartConflictLeavesStateUnchanged(t *testing.T) {
	gw := gatewaytest.New()
	m := New(gw)
	if err := m.Start(context.Background(), "t1"); err != nil {
		t.Fatal(err)
	}

	// Backend rejects the second start with the busy tab's identity.
	busy, _ := json.Marshal(gateway.BusyTab{TabID: "t1", TabTitle: "Expenses"})
	gw.Fail("recording.start", &gateway.CallError{
		Code: gateway.CodeRecordingActive, Message: "busy", Data: busy,
	})

	err := m.Start(context.Background(), "t2")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.TabID != "t1" || conflict.TabTitle != "Expenses" {
		t.Errorf("conflict = %+v", conflict)
	}
	s := m.Session()
	if !s.IsRecording || s.TabID != "t1" {
		t.Errorf("state changed on conflict: %+v", s)
	}
}

func TestActionCapturedCountsOnlyWhileRecording(t *testing.T) {
	m := New(gatewaytest.New())

	m.OnActionCaptured(types.ActionCaptured{TabID: "t1", ActionCount: 3})
	if m.Session().ActionCount != 0 {
		t.Error("stale action event counted while stopped")
	}

	m.Start(context.Background(), "t1")
	m.OnActionCaptured(types.ActionCaptured{TabID: "t1", ActionCount: 1})
	m.OnActionCaptured(types.ActionCaptured{TabID: "t1", ActionCount: 2})
	if got := m.Session().ActionCount; got != 2 {
		t.Errorf("action count = %d, want 2", got)
	}
}

func TestActionCapturedIgnoresStaleCounts(t *testing.T) {
	m := New(gatewaytest.New())
	m.Start(context.Background(), "t1")

	m.OnActionCaptured(types.ActionCaptured{TabID: "t1", ActionCount: 3})
	m.OnActionCaptured(types.ActionCaptured{TabID: "t1", ActionCount: 3}) // duplicate delivery
	m.OnActionCaptured(types.ActionCaptured{TabID: "t1", ActionCount: 2}) // out of order
	if got := m.Session().ActionCount; got != 3 {
		t.Errorf("action count = %d, want 3 (stale events must not inflate it)", got)
	}
}

func TestStopGuardsZeroActionSessions(t *testing.T) {
	gw := gatewaytest.New()
	m := New(gw)
	m.Start(context.Background(), "t1")
	gw.ActionCount = 0

	_, err := m.Stop(context.Background())
	if !errors.Is(err, ErrNoActions) {
		t.Fatalf("expected ErrNoActions, got %v", err)
	}
	if gw.CallsTo("recording.stop") != 0 {
		t.Error("stop call issued for zero-action session")
	}
	if !m.Session().IsRecording {
		t.Error("state transitioned to stopped without a user decision")
	}
}

func TestStopReturnsCapturedActions(t *testing.T) {
	gw := gatewaytest.New()
	gw.ActionCount = 2
	gw.StopRes = types.StopResult{
		Actions:  []types.CapturedAction{{Type: "click"}, {Type: "input"}},
		TabID:    "t1",
		Duration: 90 * time.Second,
	}
	m := New(gw)
	m.Start(context.Background(), "t1")

	res, err := m.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if len(res.Actions) != 2 || res.Duration != 90*time.Second {
		t.Errorf("result = %+v", res)
	}
	s := m.Session()
	if s.IsRecording || s.Status != types.RecordingStopped {
		t.Errorf("session = %+v", s)
	}
	if last, ok := m.LastStop(); !ok || len(last.Actions) != 2 {
		t.Error("LastStop not held for the save/discard decision")
	}
}

func TestStopWithoutActiveSession(t *testing.T) {
	m := New(gatewaytest.New())
	if _, err := m.Stop(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Errorf("expected ErrNotRecording, got %v", err)
	}
}

func TestBackendPushedTransitions(t *testing.T) {
	m := New(gatewaytest.New())
	m.Start(context.Background(), "t1")

	m.OnStatusChanged(types.RecordingStatusChanged{Status: types.RecordingTimeout, Message: "tab idle"})
	s := m.Session()
	if s.IsRecording || s.Status != types.RecordingTimeout {
		t.Errorf("timeout not applied: %+v", s)
	}

	m.Discard()
	m.Start(context.Background(), "t1")
	m.OnStatusChanged(types.RecordingStatusChanged{Status: types.RecordingError, Message: "tab closed"})
	if got := m.Session().Status; got != types.RecordingError {
		t.Errorf("status = %s, want error", got)
	}

	m.OnStatusChanged(types.RecordingStatusChanged{Status: "exploded"})
	if got := m.Session().Status; got != types.RecordingError {
		t.Errorf("unknown status applied: %s", got)
	}
}

func TestDiscardResetsToInitialState(t *testing.T) {
	gw := gatewaytest.New()
	m := New(gw)
	m.Start(context.Background(), "t1")
	m.OnActionCaptured(types.ActionCaptured{ActionCount: 4})

	m.Discard()

	want := types.RecordingSession{IsRecording: false, TabID: "", ActionCount: 0, Status: types.RecordingStopped}
	if got := m.Session(); got != want {
		t.Errorf("session = %+v, want %+v", got, want)
	}
	if gw.CallsTo("recording.stop") != 0 {
		t.Error("discard issued a backend call")
	}
}

func TestSaveValidatesLocally(t *testing.T) {
	gw := gatewaytest.New()
	m := New(gw)

	if _, err := m.Save(context.Background(), strings.Repeat("A", 101), "", nil); err == nil {
		t.Fatal("101-char name accepted")
	}
	if _, err := m.Save(context.Background(), "", "", nil); err == nil {
		t.Fatal("empty name accepted")
	}
	if gw.CallsTo("recording.save") != 0 {
		t.Error("invalid save still issued a call")
	}

	id, err := m.Save(context.Background(), "Login flow", "signs in", []types.CapturedAction{{Type: "click"}})
	if err != nil {
		t.Fatalf("valid save failed: %v", err)
	}
	if id == "" {
		t.Error("no automation id returned")
	}
}

func TestSetActionCountOnlyWhileRecording(t *testing.T) {
	m := New(gatewaytest.New())
	m.SetActionCount(9)
	if m.Session().ActionCount != 0 {
		t.Error("count set while stopped")
	}
	m.Start(context.Background(), "t1")
	m.SetActionCount(9)
	if m.Session().ActionCount != 9 {
		t.Error("authoritative count not applied")
	}
}
