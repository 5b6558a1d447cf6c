// Package bus implements the typed publish/subscribe bus that carries backend
// push events to the stores. Unlike a fan-out bus, each named channel has at
// most one active handler (mount/unmount semantics): subscribing again
// replaces the previous handler, so a remounted store can never double-process
// an event. Handlers always run on the dispatch loop, keeping all store
// mutation single-threaded.
package bus

import (
	"sync"
	"sync/atomic"

	"patternpilot/internal/loop"
)

// Push-event channel names emitted by the backend.
const (
	ChannelNotificationReceived = "notification.received"
	ChannelActionCaptured       = "recording.action-captured"
	ChannelRecordingStatus      = "recording.status-changed"
	ChannelExecutionProgress    = "execution.progress"
	ChannelExecutionComplete    = "execution.complete"
	ChannelExecutionCancelled   = "execution.cancelled"
	ChannelExecutionError       = "execution.error"
	ChannelSuggestContinuation  = "pattern.suggest-continuation"
)

// Event is one push event. Payload is the raw JSON body; each store decodes
// its own payloads so a malformed event degrades one handler, not the bus.
type Event struct {
	Channel string
	Seq     uint64
	Payload []byte
}

// Handler processes one event. It runs on the dispatch loop.
type Handler func(Event)

type subscription struct {
	handler Handler
	gen     uint64
}

// Bus routes published events to the single active handler per channel.
type Bus struct {
	mu       sync.Mutex
	loop     *loop.Loop
	channels map[string]*subscription
	seq      atomic.Uint64
	gen      atomic.Uint64
}

// New creates a bus that dispatches on l.
func New(l *loop.Loop) *Bus {
	return &Bus{
		loop:     l,
		channels: make(map[string]*subscription),
	}
}

// Subscribe installs h as the one active handler for channel, replacing any
// previous handler. The returned cancel removes the subscription, but only if
// it is still the current one, so a stale unmount cannot tear down a newer
// mount.
func (b *Bus) Subscribe(channel string, h Handler) (cancel func()) {
	gen := b.gen.Add(1)
	b.mu.Lock()
	b.channels[channel] = &subscription{handler: h, gen: gen}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.channels[channel]; ok && sub.gen == gen {
			delete(b.channels, channel)
		}
	}
}

// Publish queues the event for the channel's handler on the dispatch loop.
// Events on channels with no handler at dispatch time are dropped; the
// backend's push channels are fire-and-forget (spec: one active handler,
// re-subscribed on mount). Safe to call from any goroutine.
func (b *Bus) Publish(channel string, payload []byte) {
	ev := Event{
		Channel: channel,
		Seq:     b.seq.Add(1),
		Payload: payload,
	}
	// Handler lookup happens on the loop so subscribe/publish order is
	// decided by dispatch order, not by racing goroutines.
	_ = b.loop.Post(func() {
		b.mu.Lock()
		sub, ok := b.channels[channel]
		b.mu.Unlock()
		if ok {
			sub.handler(ev)
		}
	})
}

// Stats reports the number of live subscriptions and events published.
func (b *Bus) Stats() (subscriptions int, published uint64) {
	b.mu.Lock()
	subscriptions = len(b.channels)
	b.mu.Unlock()
	return subscriptions, b.seq.Load()
}
