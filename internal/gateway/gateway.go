// Package gateway defines the backend capability the stores talk to. The
// backend (pattern detector, automation executor, recorder) is the sole owner
// of durable state; this layer is request/response calls plus a push-event
// feed, and the stores treat everything they hold as a cache of it.
//
// Stores receive a Gateway, never a concrete transport, so tests run against
// a fake without a socket.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"patternpilot/internal/types"
)

// Backend error codes with structured handling on the client.
const (
	CodeRecordingActive = "RECORDING_ACTIVE"
	CodeNotFound        = "NOT_FOUND"
	CodeValidation      = "VALIDATION"
	CodeInternal        = "INTERNAL"
)

// ErrDisconnected is returned for calls issued or in flight while the
// transport is down.
var ErrDisconnected = errors.New("gateway: disconnected")

// CallError is a backend-reported failure. Code is the backend's error code,
// Data carries code-specific context (for CodeRecordingActive: the busy tab's
// id and title).
type CallError struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *CallError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error %s", e.Code)
	}
	return fmt.Sprintf("backend error %s: %s", e.Code, e.Message)
}

// AsCallError unwraps err to a CallError if it is one.
func AsCallError(err error) (*CallError, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// BusyTab is the Data payload of a CodeRecordingActive conflict.
type BusyTab struct {
	TabID    string `json:"tabId"`
	TabTitle string `json:"tabTitle,omitempty"`
}

// SaveAutomationRequest converts a queued pattern into an automation.
type SaveAutomationRequest struct {
	PatternID   string `json:"pattern_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SaveRecordingRequest persists a stopped recording as an automation.
type SaveRecordingRequest struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Actions     []types.CapturedAction `json:"actions"`
}

// EditAutomationRequest updates an automation's name and description only.
type EditAutomationRequest struct {
	AutomationID string `json:"automationId"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
}

// Gateway is the full backend call surface. Every method is asynchronous from
// the UI's perspective: callers issue it off the dispatch loop and post the
// result back.
type Gateway interface {
	// Notifications.
	GetNotifications(ctx context.Context, typ types.NotificationType) ([]types.Notification, error)
	DismissNotification(ctx context.Context, id string) error
	DismissAllNotifications(ctx context.Context) error

	// Patterns.
	DismissPattern(ctx context.Context, patternID string) error
	SaveAutomation(ctx context.Context, req SaveAutomationRequest) (types.Automation, error)
	CancelExecution(ctx context.Context, executionID string) error
	StartContinuation(ctx context.Context, patternID string, itemCount int) error

	// Recording.
	StartRecording(ctx context.Context, tabID string) error
	StopRecording(ctx context.Context) (types.StopResult, error)
	SaveRecording(ctx context.Context, req SaveRecordingRequest) (automationID string, err error)
	GetActionCount(ctx context.Context) (int, error)

	// Automations.
	GetAutomations(ctx context.Context) ([]types.Automation, error)
	ExecuteAutomation(ctx context.Context, id string) error
	CancelAutomation(ctx context.Context) error
	EditAutomation(ctx context.Context, req EditAutomationRequest) error
	DeleteAutomation(ctx context.Context, id string) error
}
