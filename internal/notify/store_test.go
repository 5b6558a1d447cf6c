package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"patternpilot/internal/gateway/gatewaytest"
	"patternpilot/internal/types"
)

func notif(id string, dismissed bool) types.Notification {
	n := types.Notification{
		ID:        id,
		Type:      types.NotificationSystem,
		Severity:  types.SeverityInfo,
		Title:     "t-" + id,
		CreatedAt: time.Now(),
	}
	if dismissed {
		ts := time.Now()
		n.DismissedAt = &ts
	}
	return n
}

func TestReceiveInsertsAtHeadAndCountsUnread(t *testing.T) {
	s := New(gatewaytest.New())

	s.Receive(notif("n1", false))
	s.Receive(notif("n2", false))
	s.Receive(notif("n3", true))

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("expected 3, got %d", len(all))
	}
	if all[0].ID != "n3" || all[2].ID != "n1" {
		t.Errorf("head-insert order broken: %s..%s", all[0].ID, all[2].ID)
	}
	if got := s.UnreadCount(); got != 2 {
		t.Errorf("unread = %d, want 2", got)
	}
}

func TestReceiveDeduplicatesByID(t *testing.T) {
	s := New(gatewaytest.New())
	s.Receive(notif("n1", false))
	s.Receive(notif("n1", false))

	if len(s.All()) != 1 {
		t.Errorf("duplicate id produced %d entries", len(s.All()))
	}
}

// Property from the unread invariant: after any sequence of receives and
// dismisses, UnreadCount equals the number of items without a dismissal time.
func TestUnreadCountMatchesItems(t *testing.T) {
	s := New(gatewaytest.New())
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c", "d", "e"} {
		s.Receive(notif(id, i%2 == 0))
	}
	s.Dismiss(ctx, "b")

	want := 0
	for _, n := range s.All() {
		if n.DismissedAt == nil {
			want++
		}
	}
	if got := s.UnreadCount(); got != want {
		t.Errorf("unread = %d, derived scan = %d", got, want)
	}
}

func TestDismissIsOptimisticAndNotRolledBack(t *testing.T) {
	gw := gatewaytest.New()
	gw.Fail("notifications.dismiss", errors.New("backend down"))
	s := New(gw)
	s.Receive(notif("n1", false))

	err := s.Dismiss(context.Background(), "n1")
	if err == nil {
		t.Fatal("expected error from failed dismiss")
	}
	// Local state keeps the dismissal despite the failure.
	n, _ := s.Get("n1")
	if n.DismissedAt == nil {
		t.Error("optimistic dismissal was rolled back")
	}
	if s.UnreadCount() != 0 {
		t.Errorf("unread = %d, want 0", s.UnreadCount())
	}
}

func TestDismissAll(t *testing.T) {
	gw := gatewaytest.New()
	s := New(gw)
	for _, id := range []string{"a", "b", "c"} {
		s.Receive(notif(id, false))
	}

	if err := s.DismissAll(context.Background()); err != nil {
		t.Fatalf("DismissAll failed: %v", err)
	}
	if s.UnreadCount() != 0 {
		t.Errorf("unread = %d after DismissAll", s.UnreadCount())
	}
	if gw.CallsTo("notifications.dismissAll") != 1 {
		t.Error("backend dismissAll not called exactly once")
	}
}

func TestDismissAlreadyDismissedKeepsTimestamp(t *testing.T) {
	s := New(gatewaytest.New())
	s.Receive(notif("n1", true))
	before, _ := s.Get("n1")

	s.Dismiss(context.Background(), "n1")

	after, _ := s.Get("n1")
	if !after.DismissedAt.Equal(*before.DismissedAt) {
		t.Error("dismissed_at was overwritten; must be set exactly once")
	}
}

func TestLoadReplacesInbox(t *testing.T) {
	gw := gatewaytest.New()
	gw.Notifications = []types.Notification{notif("x", false)}
	s := New(gw)
	s.Receive(notif("stale", false))

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	all := s.All()
	if len(all) != 1 || all[0].ID != "x" {
		t.Errorf("Load did not replace inbox: %+v", all)
	}
}

func TestLoadErrorLeavesInbox(t *testing.T) {
	gw := gatewaytest.New()
	gw.Fail("notifications.getAll", errors.New("nope"))
	s := New(gw)
	s.Receive(notif("n1", false))

	if err := s.Load(context.Background()); err == nil {
		t.Fatal("expected Load error")
	}
	if len(s.All()) != 1 {
		t.Error("failed Load mutated the inbox")
	}
}
