// Package conversation merges chat messages and pattern-derived messages into
// time-ordered turns for display. Turns are a pure projection recomputed from
// the merged message list on every read — never a structure mutated in place.
package conversation

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"patternpilot/internal/logging"
	"patternpilot/internal/types"
)

// ErrAlreadyProcessed is returned when a pattern message arrives for a
// notification the user already acted on irreversibly.
var ErrAlreadyProcessed = errors.New("conversation: notification already processed")

type sourceKind int

const (
	sourceChat sourceKind = iota
	sourcePattern
)

type entry struct {
	msg            types.Message
	source         sourceKind
	notificationID string // pattern-derived entries only
}

// Assembler owns the two message sources and the processed-notification set.
//
// The processed set deliberately tracks only irreversible actions (automation
// saved, pattern explicitly dismissed). A soft "not now" leaves the id out so
// the pattern message can be re-opened from the notification list later.
type Assembler struct {
	mu        sync.RWMutex
	log       *zap.Logger
	chat      []entry
	pattern   []entry
	processed map[string]struct{}
	pending   bool
}

// New creates an empty assembler.
func New() *Assembler {
	return &Assembler{
		log:       logging.For(logging.CategoryConversation),
		processed: make(map[string]struct{}),
	}
}

// AddChat appends a direct chat message.
func (a *Assembler) AddChat(m types.Message) {
	a.mu.Lock()
	a.chat = append(a.chat, entry{msg: m, source: sourceChat})
	a.mu.Unlock()
}

// AddPatternMessage appends a pattern-derived message keyed by the
// notification that produced it. Refused for processed notifications and for
// notification ids already present, so a re-pushed notification can't
// duplicate its message.
func (a *Assembler) AddPatternMessage(notificationID string, m types.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, done := a.processed[notificationID]; done {
		return ErrAlreadyProcessed
	}
	for i := range a.pattern {
		if a.pattern[i].notificationID == notificationID {
			return nil
		}
	}
	a.pattern = append(a.pattern, entry{msg: m, source: sourcePattern, notificationID: notificationID})
	return nil
}

// RemovePatternMessage drops the message for a notification without marking
// it processed — the soft-dismiss ("not now") path.
func (a *Assembler) RemovePatternMessage(notificationID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.pattern {
		if a.pattern[i].notificationID == notificationID {
			a.pattern = append(a.pattern[:i], a.pattern[i+1:]...)
			return
		}
	}
}

// MarkProcessed records an irreversible action on the notification and drops
// its message. From here on AddPatternMessage refuses the id.
func (a *Assembler) MarkProcessed(notificationID string) {
	a.mu.Lock()
	a.processed[notificationID] = struct{}{}
	a.mu.Unlock()
	a.RemovePatternMessage(notificationID)
}

// IsProcessed reports whether the notification was acted on irreversibly.
func (a *Assembler) IsProcessed(notificationID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.processed[notificationID]
	return ok
}

// SetPending flags that an assistant response is outstanding.
func (a *Assembler) SetPending(p bool) {
	a.mu.Lock()
	a.pending = p
	a.mu.Unlock()
}

// merged returns both sources stably sorted by timestamp. Ties resolve to
// chat before pattern-derived, then insertion order, because the slices are
// concatenated in that order before the stable sort.
func (a *Assembler) merged() []entry {
	a.mu.RLock()
	out := make([]entry, 0, len(a.chat)+len(a.pattern))
	out = append(out, a.chat...)
	out = append(out, a.pattern...)
	a.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].msg.Timestamp.Before(out[j].msg.Timestamp)
	})
	return out
}

// Turns recomputes the turn list. A user message starts a turn and claims the
// very next message iff it is an assistant message; assistant or system
// messages without a claiming user message stand alone.
func (a *Assembler) Turns() []types.ConversationTurn {
	merged := a.merged()
	turns := make([]types.ConversationTurn, 0, len(merged))

	for i := 0; i < len(merged); {
		m := merged[i].msg
		if m.Role == types.RoleUser {
			turn := types.ConversationTurn{User: &m}
			if i+1 < len(merged) && merged[i+1].msg.Role == types.RoleAssistant {
				next := merged[i+1].msg
				turn.Assistant = &next
				i += 2
			} else {
				i++
			}
			turns = append(turns, turn)
			continue
		}
		standalone := m
		turns = append(turns, types.ConversationTurn{Assistant: &standalone})
		i++
	}
	return turns
}

// ShowPendingIndicator reports whether the trailing loading indicator should
// render: a response is pending and the last real message is a user message.
// The indicator is a synthetic trailing element, never a turn.
func (a *Assembler) ShowPendingIndicator() bool {
	a.mu.RLock()
	pending := a.pending
	a.mu.RUnlock()
	if !pending {
		return false
	}
	merged := a.merged()
	if len(merged) == 0 {
		return false
	}
	return merged[len(merged)-1].msg.Role == types.RoleUser
}
