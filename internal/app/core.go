// Package app is the composition root: it wires the gateway, the event bus,
// the dispatch loop, and the five stores into one synchronized view model.
// Rendering is a pure function of Snapshot; everything else in this package
// is reconciliation plumbing.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"patternpilot/internal/bus"
	"patternpilot/internal/conversation"
	"patternpilot/internal/execution"
	"patternpilot/internal/gateway"
	"patternpilot/internal/logging"
	"patternpilot/internal/loop"
	"patternpilot/internal/notify"
	"patternpilot/internal/patterns"
	"patternpilot/internal/recording"
	"patternpilot/internal/types"
)

// Options tunes the core's timers.
type Options struct {
	// CallTimeout bounds every backend call issued from core plumbing.
	CallTimeout time.Duration

	// ActionCountPoll is the interval for refreshing the authoritative
	// action count while a recording session is active.
	ActionCountPoll time.Duration
}

// DefaultOptions returns the core's default timers.
func DefaultOptions() Options {
	return Options{
		CallTimeout:     15 * time.Second,
		ActionCountPoll: 2 * time.Second,
	}
}

// Core owns one of each store plus the loop and bus they synchronize on.
type Core struct {
	opts Options
	loop *loop.Loop
	bus  *bus.Bus
	gw   gateway.Gateway
	log  *zap.Logger

	Notifications *notify.Store
	Patterns      *patterns.Queue
	Recording     *recording.Machine
	Automations   *execution.Store
	Tracker       *execution.Tracker
	Conversation  *conversation.Assembler

	cancels    []func()
	pollCancel func()
}

// New builds an unstarted core around gw.
func New(gw gateway.Gateway, opts Options) *Core {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultOptions().CallTimeout
	}
	if opts.ActionCountPoll <= 0 {
		opts.ActionCountPoll = DefaultOptions().ActionCountPoll
	}

	l := loop.New()
	c := &Core{
		opts: opts,
		loop: l,
		bus:  bus.New(l),
		gw:   gw,
		log:  logging.For(logging.CategoryBoot),

		Notifications: notify.New(gw),
		Patterns:      patterns.New(gw),
		Recording:     recording.New(gw),
		Automations:   execution.NewStore(gw),
		Conversation:  conversation.New(),
	}
	c.Tracker = execution.NewTracker(gw, c.reloadAutomations)
	return c
}

// Bus exposes the push-event bus so the transport can publish into it.
func (c *Core) Bus() *bus.Bus { return c.bus }

// Start performs the initial loads, mounts the push-event handlers, and arms
// the action-count poll. Load failures are joined and returned but leave the
// core running: a degraded inbox is one broken affordance, not a dead view.
func (c *Core) Start(ctx context.Context) error {
	err := errors.Join(
		c.Notifications.Load(ctx),
		c.Automations.Reload(ctx),
	)

	// Pattern entries are derived state, so the initial load feeds the same
	// path push events do. After a restart the queue and conversation come
	// back from the inbox instead of waiting for the next push.
	for _, n := range c.Notifications.All() {
		if n.Dismissed() {
			continue
		}
		c.derivePattern(n)
	}

	c.mountHandlers()

	c.pollCancel = c.loop.Every(c.opts.ActionCountPoll, func() {
		if !c.Recording.Session().IsRecording {
			return
		}
		go func() {
			cctx, cancel := c.callCtx()
			defer cancel()
			count, cerr := c.Recording.AuthoritativeActionCount(cctx)
			if cerr != nil {
				return // transient; next tick retries
			}
			c.Recording.SetActionCount(count)
		}()
	})

	return err
}

// Close unmounts handlers, stops timers, and drains the loop.
func (c *Core) Close() {
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
	c.loop.Close()
}

func (c *Core) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.opts.CallTimeout)
}

func (c *Core) reloadAutomations() {
	go func() {
		ctx, cancel := c.callCtx()
		defer cancel()
		_ = c.Automations.Reload(ctx) // logged inside the store
	}()
}

// =============================================================================
// PUSH-EVENT WIRING
// =============================================================================

// subscribe wires one channel through a json decoder into a store handler.
// Malformed payloads are dropped with a warning; a bad event degrades one
// handler invocation, never the loop.
func subscribe[T any](c *Core, channel string, handle func(T)) {
	cancel := c.bus.Subscribe(channel, func(ev bus.Event) {
		var payload T
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			c.log.Warn("dropping undecodable push event",
				zap.String("channel", ev.Channel), zap.Error(err))
			return
		}
		handle(payload)
	})
	c.cancels = append(c.cancels, cancel)
}

func (c *Core) mountHandlers() {
	subscribe(c, bus.ChannelNotificationReceived, c.onNotification)
	subscribe(c, bus.ChannelActionCaptured, c.Recording.OnActionCaptured)
	subscribe(c, bus.ChannelRecordingStatus, c.Recording.OnStatusChanged)
	subscribe(c, bus.ChannelExecutionProgress, c.Tracker.OnProgress)
	subscribe(c, bus.ChannelExecutionComplete, c.Tracker.OnComplete)
	subscribe(c, bus.ChannelExecutionCancelled, c.Tracker.OnCancelled)
	subscribe(c, bus.ChannelExecutionError, c.Tracker.OnError)
	subscribe(c, bus.ChannelSuggestContinuation, c.Patterns.OnSuggestContinuation)
}

// onNotification feeds one pushed notification into the inbox, the pattern
// queue, and — for patterns that survive ingestion — the conversation.
// Notifications are processed exactly once: a re-delivered id (backend
// retries after reconnect) must not re-queue a converted pattern.
func (c *Core) onNotification(n types.Notification) {
	if _, seen := c.Notifications.Get(n.ID); seen {
		return
	}
	c.Notifications.Receive(n)
	c.derivePattern(n)
}

// derivePattern runs one notification through pattern ingestion and, when it
// becomes the queued entry for its pattern id, adds the conversation message.
// Idempotent: first-write-wins in the queue and the processed-set guard in the
// conversation make a second pass a no-op.
func (c *Core) derivePattern(n types.Notification) {
	c.Patterns.Ingest(n)

	entry, queued := c.Patterns.Get(patternIDOf(n))
	if !queued || entry.NotificationID != n.ID {
		return
	}
	msg := patternMessage(entry)
	if err := c.Conversation.AddPatternMessage(n.ID, msg); err != nil {
		// Already acted on in a previous session view; nothing to render.
		return
	}
}

// patternIDOf extracts the pattern id from a notification's payload without
// full validation; ingestion already did that.
func patternIDOf(n types.Notification) string {
	if n.Type != types.NotificationPattern {
		return ""
	}
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(n.Data, &p); err != nil {
		return ""
	}
	return p.ID
}

// patternMessage renders a queued pattern as an assistant conversation entry.
func patternMessage(e patterns.Entry) types.Message {
	content := e.Pattern.IntentSummary
	if content == "" {
		content = "Detected a repeated " + string(e.Pattern.Type) + " pattern"
	}
	return types.Message{
		ID:         "pattern-" + e.NotificationID,
		Role:       types.RoleAssistant,
		Content:    content,
		Timestamp:  time.Now(),
		PatternRef: e.Pattern.ID,
	}
}

// =============================================================================
// CROSS-STORE OPERATIONS
// =============================================================================

// ConvertPattern saves a queued pattern as an automation. On success the
// pattern leaves the queue, the automation joins the library, and the
// originating notification is marked processed (irreversible).
func (c *Core) ConvertPattern(ctx context.Context, patternID, name, description string) (types.Automation, error) {
	entry, ok := c.Patterns.Get(patternID)
	if !ok {
		return types.Automation{}, patterns.ErrNotQueued
	}
	auto, err := c.Patterns.Convert(ctx, patternID, name, description)
	if err != nil {
		return types.Automation{}, err
	}
	c.Automations.Put(auto)
	c.Conversation.MarkProcessed(entry.NotificationID)
	return auto, nil
}

// DismissPattern removes a pattern for good and burns its notification id in
// the processed set.
func (c *Core) DismissPattern(ctx context.Context, patternID string) error {
	entry, ok := c.Patterns.Get(patternID)
	if !ok {
		return patterns.ErrNotQueued
	}
	if err := c.Patterns.Dismiss(ctx, patternID); err != nil {
		return err
	}
	c.Conversation.MarkProcessed(entry.NotificationID)
	return nil
}

// SoftDismissPattern hides the pattern's conversation message without
// touching the queue or the processed set — "not now", re-openable from the
// notification list.
func (c *Core) SoftDismissPattern(patternID string) {
	if entry, ok := c.Patterns.Get(patternID); ok {
		c.Conversation.RemovePatternMessage(entry.NotificationID)
	}
}

// ReopenPattern re-adds the conversation message for a still-queued pattern,
// the path back from a soft dismiss.
func (c *Core) ReopenPattern(patternID string) error {
	entry, ok := c.Patterns.Get(patternID)
	if !ok {
		return patterns.ErrNotQueued
	}
	return c.Conversation.AddPatternMessage(entry.NotificationID, patternMessage(entry))
}

// =============================================================================
// VIEW MODEL
// =============================================================================

// Snapshot is the render-ready view of all store state.
type Snapshot struct {
	Notifications        []types.Notification
	UnreadCount          int
	PatternQueue         []patterns.Entry
	Recording            types.RecordingSession
	Automations          []types.Automation
	Executing            []string
	Progress             map[string]types.ExecutionProgress
	Turns                []types.ConversationTurn
	ShowPendingIndicator bool
}

// Snapshot assembles the current view model. Taken on the dispatch loop so
// it is consistent with respect to every pending push event; after Close it
// falls back to a direct read.
func (c *Core) Snapshot() Snapshot {
	var s Snapshot
	if err := c.loop.Sync(func() { s = c.assemble() }); err != nil {
		s = c.assemble()
	}
	return s
}

func (c *Core) assemble() Snapshot {
	return Snapshot{
		Notifications:        c.Notifications.All(),
		UnreadCount:          c.Notifications.UnreadCount(),
		PatternQueue:         c.Patterns.All(),
		Recording:            c.Recording.Session(),
		Automations:          c.Automations.All(),
		Executing:            c.Tracker.Executing(),
		Progress:             c.Tracker.ProgressMap(),
		Turns:                c.Conversation.Turns(),
		ShowPendingIndicator: c.Conversation.ShowPendingIndicator(),
	}
}
