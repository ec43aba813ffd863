package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mbd888/fraudwatch/internal/notify"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

// ---------------------------------------------------------------------------
// subscription filter tests
// ---------------------------------------------------------------------------

func TestWants_AllEvents(t *testing.T) {
	client := &Client{sub: Subscription{AllEvents: true}}

	if !client.wants(notify.Event{Type: notify.EventCaseOpened}) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestWants_EventTypeFilter(t *testing.T) {
	client := &Client{sub: Subscription{
		EventTypes: []string{notify.EventCaseOpened, notify.EventCaseEscalated},
	}}

	if !client.wants(notify.Event{Type: notify.EventCaseOpened}) {
		t.Error("Should receive case_opened events")
	}
	if !client.wants(notify.Event{Type: notify.EventCaseEscalated}) {
		t.Error("Should receive case_escalated events")
	}
	if client.wants(notify.Event{Type: notify.EventAlertResolved}) {
		t.Error("Should NOT receive alert_resolved events")
	}
}

func TestWants_AccountFilter(t *testing.T) {
	client := &Client{sub: Subscription{
		AccountIDs: []string{"acct-1"},
	}}

	if !client.wants(notify.Event{Type: notify.EventCaseOpened, AccountID: "acct-1"}) {
		t.Error("Should match on account id")
	}
	if client.wants(notify.Event{Type: notify.EventCaseOpened, AccountID: "acct-2"}) {
		t.Error("Should NOT match unrelated accounts")
	}
}

func TestWants_MinRiskScoreFilter(t *testing.T) {
	client := &Client{sub: Subscription{
		MinRiskScore: 0.5,
	}}

	if !client.wants(notify.Event{Type: notify.EventHighRiskTxn, RiskScore: 0.9}) {
		t.Error("Should receive high score alert")
	}
	if client.wants(notify.Event{Type: notify.EventHighRiskTxn, RiskScore: 0.1}) {
		t.Error("Should NOT receive low score alert")
	}
}

func TestWants_EmptySubscription(t *testing.T) {
	// No filters, not AllEvents
	client := &Client{sub: Subscription{}}

	if !client.wants(notify.Event{Type: notify.EventCaseOpened}) {
		t.Error("Empty subscription (no filters) should receive events")
	}
}

// ---------------------------------------------------------------------------
// Hub lifecycle tests
// ---------------------------------------------------------------------------

func TestHub_Stats_Initial(t *testing.T) {
	h := testHub()

	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients, got %v", stats["connectedClients"])
	}
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("Expected 0 total events, got %v", stats["totalEvents"])
	}
}

func TestHub_NotifyAndStats(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	h.Notify(context.Background(), notify.Event{Type: notify.EventCaseOpened, At: time.Now()})
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["totalEvents"].(int64) != 1 {
		t.Errorf("Expected 1 total event, got %v", stats["totalEvents"])
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["connectedClients"].(int) != 1 {
		t.Errorf("Expected 1 connected client, got %v", stats["connectedClients"])
	}
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak 1, got %v", stats["peakClients"])
	}

	h.unregister <- client
	time.Sleep(50 * time.Millisecond)

	stats = h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients after unregister, got %v", stats["connectedClients"])
	}
	// Peak should still be 1
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak still 1, got %v", stats["peakClients"])
	}
}

func TestHub_BroadcastToClient(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	h.Notify(context.Background(), notify.Event{
		Type:      notify.EventCaseOpened,
		CaseID:    "CASE-AAAA0001",
		AccountID: "acct-1",
		At:        time.Now(),
	})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for broadcast")
	}
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Hub stopped
	case <-time.After(2 * time.Second):
		t.Error("Hub did not stop after context cancellation")
	}
}

func TestHub_FilteredBroadcast(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Client only wants escalations
	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{EventTypes: []string{notify.EventCaseEscalated}},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	// Send a case_opened event (should be filtered out)
	h.Notify(context.Background(), notify.Event{Type: notify.EventCaseOpened, At: time.Now()})
	time.Sleep(100 * time.Millisecond)

	select {
	case <-client.send:
		t.Error("Client should NOT receive case_opened event")
	default:
		// Good - filtered out
	}

	// Send an escalation event (should be received)
	h.Notify(context.Background(), notify.Event{Type: notify.EventCaseEscalated, At: time.Now()})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Client should receive escalation event")
	}
}
