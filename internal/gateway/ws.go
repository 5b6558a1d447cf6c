package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"patternpilot/internal/logging"
	"patternpilot/internal/types"
)

// Publisher receives push events demuxed off the socket. Satisfied by bus.Bus.
type Publisher interface {
	Publish(channel string, payload []byte)
}

// frame is the wire envelope shared by calls, results, and push events.
type frame struct {
	Type    string          `json:"type"` // call | result | event
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Success bool            `json:"success,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *CallError      `json:"error,omitempty"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type callResult struct {
	frame frame
	err   error
}

// ClientConfig tunes the websocket gateway client.
type ClientConfig struct {
	URL            string
	DialTimeout    time.Duration
	PingInterval   time.Duration
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
}

// DefaultClientConfig returns sensible defaults for a local backend.
func DefaultClientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:          url,
		DialTimeout:  10 * time.Second,
		PingInterval: 30 * time.Second,
		ReconnectMin: 500 * time.Millisecond,
		ReconnectMax: 15 * time.Second,
	}
}

// Client implements Gateway over a websocket connection to the backend host
// process. Calls are correlated by uuid; event frames are fanned out to the
// Publisher. Run owns the connection lifecycle and reconnects with capped
// backoff; calls issued while disconnected fail fast with ErrDisconnected.
type Client struct {
	cfg    ClientConfig
	events Publisher
	log    *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan callResult
}

// NewClient creates a gateway client. Call Run to connect. events may be nil
// at construction and installed later with SetEvents, which breaks the
// construction cycle between the client and the composition root that owns
// the bus.
func NewClient(cfg ClientConfig, events Publisher) *Client {
	return &Client{
		cfg:     cfg,
		events:  events,
		log:     logging.For(logging.CategoryGateway),
		pending: make(map[string]chan callResult),
	}
}

// SetEvents installs the push-event publisher. Events arriving while no
// publisher is set are dropped.
func (c *Client) SetEvents(events Publisher) {
	c.mu.Lock()
	c.events = events
	c.mu.Unlock()
}

// Run connects and services the socket until ctx is cancelled, redialing with
// capped backoff after any drop. In-flight calls fail on disconnect; the
// stores reconcile from push events and reloads once the link returns.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.cfg.ReconnectMin
	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("connection lost, reconnecting",
			zap.Error(err), zap.Duration("backoff", backoff))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > c.cfg.ReconnectMax {
			backoff = c.cfg.ReconnectMax
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	conn, _, err := websocket.Dial(dialCtx, c.cfg.URL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	conn.SetReadLimit(8 << 20) // progress events may carry screenshots

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.log.Info("connected", zap.String("url", c.cfg.URL))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readPump(gctx, conn) })
	g.Go(func() error { return c.pingLoop(gctx, conn) })
	err = g.Wait()

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	c.failPending(ErrDisconnected)
	_ = conn.Close(websocket.StatusNormalClosure, "")
	return err
}

func (c *Client) readPump(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		switch f.Type {
		case "result":
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			delete(c.pending, f.ID)
			c.mu.Unlock()
			if ok {
				ch <- callResult{frame: f}
			}
		case "event":
			if f.Channel == "" {
				c.log.Warn("dropping event frame without channel")
				continue
			}
			c.mu.Lock()
			events := c.events
			c.mu.Unlock()
			if events != nil {
				events.Publish(f.Channel, f.Payload)
			}
		default:
			c.log.Warn("dropping frame with unknown type", zap.String("type", f.Type))
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) failPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan callResult)
	c.mu.Unlock()
	for _, ch := range pending {
		ch <- callResult{err: err}
	}
}

// call issues one request/response exchange and decodes data into out.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrDisconnected
	}

	f := frame{Type: "call", ID: uuid.NewString(), Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal %s params: %w", method, err)
		}
		f.Params = raw
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", method, err)
	}

	ch := make(chan callResult, 1)
	c.mu.Lock()
	c.pending[f.ID] = ch
	c.mu.Unlock()

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
		return fmt.Errorf("write %s: %w", method, err)
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return res.err
		}
		if !res.frame.Success {
			if res.frame.Error != nil {
				return res.frame.Error
			}
			return &CallError{Code: CodeInternal, Message: "backend reported failure without error"}
		}
		if out != nil && len(res.frame.Data) > 0 {
			if err := json.Unmarshal(res.frame.Data, out); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
		return ctx.Err()
	}
}

// =============================================================================
// GATEWAY METHOD SET
// =============================================================================

func (c *Client) GetNotifications(ctx context.Context, typ types.NotificationType) ([]types.Notification, error) {
	params := struct {
		Type types.NotificationType `json:"type,omitempty"`
	}{Type: typ}
	var out []types.Notification
	if err := c.call(ctx, "notifications.getAll", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DismissNotification(ctx context.Context, id string) error {
	return c.call(ctx, "notifications.dismiss", struct {
		ID string `json:"id"`
	}{id}, nil)
}

func (c *Client) DismissAllNotifications(ctx context.Context) error {
	return c.call(ctx, "notifications.dismissAll", nil, nil)
}

func (c *Client) DismissPattern(ctx context.Context, patternID string) error {
	return c.call(ctx, "pattern.dismiss", struct {
		PatternID string `json:"patternId"`
	}{patternID}, nil)
}

func (c *Client) SaveAutomation(ctx context.Context, req SaveAutomationRequest) (types.Automation, error) {
	var out types.Automation
	if err := c.call(ctx, "pattern.saveAutomation", req, &out); err != nil {
		return types.Automation{}, err
	}
	return out, nil
}

func (c *Client) CancelExecution(ctx context.Context, executionID string) error {
	return c.call(ctx, "pattern.cancelExecution", struct {
		ExecutionID string `json:"executionId"`
	}{executionID}, nil)
}

func (c *Client) StartContinuation(ctx context.Context, patternID string, itemCount int) error {
	return c.call(ctx, "pattern.startContinuation", struct {
		PatternID string `json:"patternId"`
		ItemCount int    `json:"itemCount"`
	}{patternID, itemCount}, nil)
}

func (c *Client) StartRecording(ctx context.Context, tabID string) error {
	return c.call(ctx, "recording.start", struct {
		TabID string `json:"tabId"`
	}{tabID}, nil)
}

// stopResultWire matches the backend's stop payload; duration is milliseconds.
type stopResultWire struct {
	Actions    []types.CapturedAction `json:"actions"`
	TabID      string                 `json:"tabId"`
	DurationMs int64                  `json:"duration"`
}

func (c *Client) StopRecording(ctx context.Context) (types.StopResult, error) {
	var wire stopResultWire
	if err := c.call(ctx, "recording.stop", nil, &wire); err != nil {
		return types.StopResult{}, err
	}
	return types.StopResult{
		Actions:  wire.Actions,
		TabID:    wire.TabID,
		Duration: time.Duration(wire.DurationMs) * time.Millisecond,
	}, nil
}

func (c *Client) SaveRecording(ctx context.Context, req SaveRecordingRequest) (string, error) {
	var out struct {
		AutomationID string `json:"automationId"`
	}
	if err := c.call(ctx, "recording.save", req, &out); err != nil {
		return "", err
	}
	return out.AutomationID, nil
}

func (c *Client) GetActionCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.call(ctx, "recording.getActionCount", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) GetAutomations(ctx context.Context) ([]types.Automation, error) {
	var out []types.Automation
	if err := c.call(ctx, "automations.getAll", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ExecuteAutomation(ctx context.Context, id string) error {
	return c.call(ctx, "automations.execute", struct {
		ID string `json:"id"`
	}{id}, nil)
}

func (c *Client) CancelAutomation(ctx context.Context) error {
	return c.call(ctx, "automations.cancel", nil, nil)
}

func (c *Client) EditAutomation(ctx context.Context, req EditAutomationRequest) error {
	return c.call(ctx, "automations.edit", req, nil)
}

func (c *Client) DeleteAutomation(ctx context.Context, id string) error {
	return c.call(ctx, "automations.delete", struct {
		ID string `json:"id"`
	}{id}, nil)
}

var _ Gateway = (*Client)(nil)
