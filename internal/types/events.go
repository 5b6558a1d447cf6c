package types

// Push-event payloads for the backend's named channels. Field names match the
// wire shapes the backend emits; decoding failures are dropped with a logged
// warning, never surfaced as a crash.

// The payload of "notification.received" is the Notification itself.

// ActionCaptured is the payload of "recording.action-captured".
type ActionCaptured struct {
	TabID       string `json:"tabId"`
	ActionCount int    `json:"actionCount"`
	ActionType  string `json:"actionType"`
}

// RecordingStatusChanged is the payload of "recording.status-changed".
type RecordingStatusChanged struct {
	Status  RecordingStatus `json:"status"`
	TabID   string          `json:"tabId,omitempty"`
	Message string          `json:"message,omitempty"`
}

// ExecutionProgressEvent is the payload of "execution.progress".
// The backend may identify the run by automation id, execution id, or both.
type ExecutionProgressEvent struct {
	AutomationID string `json:"automationId,omitempty"`
	ExecutionID  string `json:"executionId,omitempty"`
	Current      int    `json:"current"`
	Total        int    `json:"total"`
	Action       string `json:"action,omitempty"`
	Screenshot   string `json:"screenshot,omitempty"`
}

// ExecutionComplete is the payload of "execution.complete".
type ExecutionComplete struct {
	AutomationID string `json:"automationId,omitempty"`
	ExecutionID  string `json:"executionId,omitempty"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

// ExecutionCancelled is the payload of "execution.cancelled".
type ExecutionCancelled struct {
	ExecutionID string `json:"executionId"`
	StoppedAt   int    `json:"stoppedAt"`
}

// ExecutionError is the payload of "execution.error".
type ExecutionError struct {
	ExecutionID string `json:"executionId"`
	Error       string `json:"error"`
}

// SuggestContinuation is the payload of "pattern.suggest-continuation".
type SuggestContinuation struct {
	PatternID      string `json:"patternId"`
	IntentSummary  string `json:"intentSummary"`
	EstimatedItems int    `json:"estimatedItems"`
	MatchCount     int    `json:"matchCount"`
}
