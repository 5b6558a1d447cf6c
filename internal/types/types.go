// Package types provides shared type definitions used across patternpilot packages.
// This package exists to break import cycles between the stores, the gateway, and
// the composition root. Types in this package are foundational data structures
// with no complex dependencies.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// NotificationType classifies an inbox notification.
type NotificationType string

const (
	NotificationPattern NotificationType = "pattern"
	NotificationMonitor NotificationType = "monitor"
	NotificationSystem  NotificationType = "system"
)

// Severity is the display severity of a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is one backend-pushed inbox item. Everything except DismissedAt
// is immutable after creation; DismissedAt moves nil -> timestamp exactly once.
type Notification struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	Severity    Severity         `json:"severity"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Data        json.RawMessage  `json:"data,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	DismissedAt *time.Time       `json:"dismissed_at,omitempty"`
}

// Dismissed reports whether the notification has been dismissed.
func (n *Notification) Dismissed() bool {
	return n.DismissedAt != nil
}

// =============================================================================
// PATTERNS
// =============================================================================

// PatternType identifies the kind of behavior the detector matched.
type PatternType string

const (
	PatternNavigation PatternType = "navigation"
	PatternForm       PatternType = "form"
	PatternCopyPaste  PatternType = "copy-paste"
)

// Valid reports whether t is one of the known pattern types.
func (t PatternType) Valid() bool {
	switch t {
	case PatternNavigation, PatternForm, PatternCopyPaste:
		return true
	}
	return false
}

// Pattern is a detected recurring behavior, decoded from the data payload of a
// pattern-type notification. Identity is the pattern id, not the notification id.
type Pattern struct {
	ID                    string          `json:"id"`
	Type                  PatternType     `json:"type"`
	PatternData           json.RawMessage `json:"patternData,omitempty"`
	Confidence            float64         `json:"confidence"`
	OccurrenceCount       int             `json:"occurrenceCount"`
	FirstSeen             *time.Time      `json:"firstSeen,omitempty"`
	LastSeen              *time.Time      `json:"lastSeen,omitempty"`
	IntentSummary         string          `json:"intentSummary,omitempty"`
	IntentSummaryDetailed string          `json:"intentSummaryDetailed,omitempty"`
}

// Validate checks the decoded payload for the minimum pattern shape.
func (p *Pattern) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("pattern missing id")
	}
	if !p.Type.Valid() {
		return fmt.Errorf("unknown pattern type %q", p.Type)
	}
	if p.Confidence < 0 || p.Confidence > 100 {
		return fmt.Errorf("confidence %v out of range [0,100]", p.Confidence)
	}
	if p.OccurrenceCount < 1 {
		return fmt.Errorf("occurrence count %d < 1", p.OccurrenceCount)
	}
	return nil
}

// =============================================================================
// AUTOMATIONS
// =============================================================================

// Automation is a saved, replayable encoding of a Pattern. ExecutionCount and
// LastExecuted are server-authoritative; the client refreshes them by reload.
type Automation struct {
	ID             string          `json:"id"`
	PatternID      string          `json:"patternId"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	PatternType    PatternType     `json:"patternType"`
	PatternData    json.RawMessage `json:"patternData,omitempty"`
	ExecutionCount int             `json:"executionCount"`
	LastExecuted   *time.Time      `json:"lastExecuted,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// =============================================================================
// RECORDING
// =============================================================================

// RecordingStatus is the lifecycle state of a recording session.
type RecordingStatus string

const (
	RecordingStopped RecordingStatus = "stopped"
	RecordingActive  RecordingStatus = "active"
	RecordingPaused  RecordingStatus = "paused"
	RecordingTimeout RecordingStatus = "timeout"
	RecordingError   RecordingStatus = "error"
)

// RecordingSession is the client view of the at-most-one active capture session.
type RecordingSession struct {
	IsRecording bool            `json:"isRecording"`
	TabID       string          `json:"tabId,omitempty"`
	ActionCount int             `json:"actionCount"`
	Status      RecordingStatus `json:"status"`
}

// CapturedAction is one user action recorded during a session. Selectors holds
// multiple location strategies (css, xpath, text) keyed by strategy name.
type CapturedAction struct {
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	URL       string         `json:"url,omitempty"`
	Selectors map[string]any `json:"selectors,omitempty"`
	Value     string         `json:"value,omitempty"`
	Key       string         `json:"key,omitempty"`
	TabID     string         `json:"tabId,omitempty"`
}

// StopResult is what the backend returns when a recording stops.
type StopResult struct {
	Actions  []CapturedAction `json:"actions"`
	TabID    string           `json:"tabId"`
	Duration time.Duration    `json:"duration"`
}

// =============================================================================
// EXECUTION
// =============================================================================

// ExecutionProgress is the latest progress snapshot for one in-flight run,
// keyed by automation id. CurrentStep never decreases within one run.
type ExecutionProgress struct {
	AutomationID    string `json:"automationId"`
	ExecutionID     string `json:"executionId,omitempty"`
	CurrentStep     int    `json:"currentStep"`
	TotalSteps      int    `json:"totalSteps"`
	StepDescription string `json:"stepDescription,omitempty"`
	Screenshot      string `json:"screenshot,omitempty"`
}

// =============================================================================
// CONVERSATION
// =============================================================================

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one chat or pattern-derived conversation entry.
type Message struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	IsStreaming bool      `json:"isStreaming,omitempty"`
	PatternRef  string    `json:"patternRef,omitempty"`
}

// ConversationTurn pairs at most one user message with the assistant message
// that immediately follows it. Unpaired assistant messages stand alone.
type ConversationTurn struct {
	User      *Message
	Assistant *Message
}
