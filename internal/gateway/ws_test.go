package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// recordingPublisher captures demuxed push events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []struct {
		channel string
		payload []byte
	}
}

func (p *recordingPublisher) Publish(channel string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, struct {
		channel string
		payload []byte
	}{channel, payload})
}

func (p *recordingPublisher) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.channel)
	}
	return out
}

// testBackend is a minimal websocket backend: one handler per test decides the
// reply for each call frame, and the server can push event frames.
type testBackend struct {
	t      *testing.T
	srv    *httptest.Server
	handle func(f frame) frame

	mu   sync.Mutex
	conn *websocket.Conn
}

func newTestBackend(t *testing.T, handle func(f frame) frame) *testBackend {
	b := &testBackend{t: t, handle: handle}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		b.mu.Lock()
		b.conn = conn
		b.mu.Unlock()
		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var f frame
			if err := json.Unmarshal(data, &f); err != nil {
				continue
			}
			reply := b.handle(f)
			reply.Type = "result"
			reply.ID = f.ID
			out, _ := json.Marshal(reply)
			if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
				return
			}
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *testBackend) pushEvent(channel string, payload string) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		b.t.Fatal("no connection to push on")
	}
	out, _ := json.Marshal(frame{Type: "event", Channel: channel, Payload: json.RawMessage(payload)})
	if err := conn.Write(context.Background(), websocket.MessageText, out); err != nil {
		b.t.Fatalf("push failed: %v", err)
	}
}

func (b *testBackend) wsURL() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

// startClient runs the client until test cleanup and waits for the link.
func startClient(t *testing.T, b *testBackend, pub Publisher) *Client {
	cfg := DefaultClientConfig(b.wsURL())
	cfg.ReconnectMin = 10 * time.Millisecond
	c := NewClient(cfg, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.After(5 * time.Second)
	for {
		c.mu.Lock()
		connected := c.conn != nil
		c.mu.Unlock()
		if connected {
			return c
		}
		select {
		case <-deadline:
			t.Fatal("client never connected")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCallRoundTrip(t *testing.T) {
	backend := newTestBackend(t, func(f frame) frame {
		if f.Method != "recording.getActionCount" {
			t.Errorf("unexpected method %s", f.Method)
		}
		return frame{Success: true, Data: json.RawMessage(`{"count":7}`)}
	})
	c := startClient(t, backend, &recordingPublisher{})

	count, err := c.GetActionCount(context.Background())
	if err != nil {
		t.Fatalf("GetActionCount failed: %v", err)
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}
}

func TestCallErrorCarriesConflictContext(t *testing.T) {
	backend := newTestBackend(t, func(f frame) frame {
		return frame{Success: false, Error: &CallError{
			Code:    CodeRecordingActive,
			Message: "recording already active",
			Data:    json.RawMessage(`{"tabId":"t1","tabTitle":"Expenses"}`),
		}}
	})
	c := startClient(t, backend, &recordingPublisher{})

	err := c.StartRecording(context.Background(), "t2")
	ce, ok := AsCallError(err)
	if !ok {
		t.Fatalf("expected CallError, got %v", err)
	}
	if ce.Code != CodeRecordingActive {
		t.Errorf("code = %s, want %s", ce.Code, CodeRecordingActive)
	}
	var busy BusyTab
	if err := json.Unmarshal(ce.Data, &busy); err != nil {
		t.Fatalf("decode busy tab: %v", err)
	}
	if busy.TabID != "t1" || busy.TabTitle != "Expenses" {
		t.Errorf("busy tab = %+v", busy)
	}
}

func TestEventFramesReachPublisher(t *testing.T) {
	backend := newTestBackend(t, func(f frame) frame {
		return frame{Success: true}
	})
	pub := &recordingPublisher{}
	c := startClient(t, backend, pub)

	// A call both exercises the link and guarantees the server saw the conn.
	if err := c.DismissAllNotifications(context.Background()); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	backend.pushEvent("execution.progress", `{"automationId":"a1","current":1,"total":3}`)

	deadline := time.After(5 * time.Second)
	for {
		if chans := pub.snapshot(); len(chans) > 0 {
			if chans[0] != "execution.progress" {
				t.Errorf("channel = %s", chans[0])
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("event never published")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCallWhileDisconnected(t *testing.T) {
	c := NewClient(DefaultClientConfig("ws://127.0.0.1:1"), &recordingPublisher{})
	if err := c.DeleteAutomation(context.Background(), "a1"); err != ErrDisconnected {
		t.Errorf("expected ErrDisconnected, got %v", err)
	}
}

func TestStopRecordingDecodesDuration(t *testing.T) {
	backend := newTestBackend(t, func(f frame) frame {
		return frame{Success: true, Data: json.RawMessage(
			`{"actions":[{"type":"click","timestamp":1}],"tabId":"t1","duration":1500}`)}
	})
	c := startClient(t, backend, &recordingPublisher{})

	res, err := c.StopRecording(context.Background())
	if err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}
	if res.TabID != "t1" || len(res.Actions) != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Duration != 1500*time.Millisecond {
		t.Errorf("duration = %v, want 1.5s", res.Duration)
	}
}

func TestUnknownBackendCodePassesThrough(t *testing.T) {
	backend := newTestBackend(t, func(f frame) frame {
		return frame{Success: false, Error: &CallError{Code: "QUOTA_EXCEEDED", Message: "slow down"}}
	})
	c := startClient(t, backend, &recordingPublisher{})

	err := c.ExecuteAutomation(context.Background(), "a1")
	ce, ok := AsCallError(err)
	if !ok || ce.Code != "QUOTA_EXCEEDED" {
		t.Errorf("expected passthrough code, got %v", err)
	}
}
