package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ledgerline/dunning/internal/risk"
	"github.com/ledgerline/dunning/internal/riskmodel"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

func testAssessment(key string, probability float64, signal risk.Signal) *risk.Assessment {
	return &risk.Assessment{
		ID:          "ra_test",
		CustomerKey: key,
		Level:       risk.LevelMedium,
		Probability: probability,
		Signal:      signal,
		EvaluatedAt: time.Now(),
	}
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	event := &Event{Type: EventAssessment, Timestamp: time.Now()}
	if !h.shouldSend(client, event) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		EventTypes: []EventType{EventTrainingRun},
	}}

	runEvent := &Event{Type: EventTrainingRun}
	assessmentEvent := &Event{Type: EventAssessment}

	if !h.shouldSend(client, runEvent) {
		t.Error("Should receive training_run events")
	}
	if h.shouldSend(client, assessmentEvent) {
		t.Error("Should NOT receive assessment events")
	}
}

func TestShouldSend_CustomerFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		CustomerKeys: []string{"cust-1"},
	}}

	matching := &Event{
		Type: EventAssessment,
		Data: testAssessment("cust-1", 0.4, risk.SignalMedium),
	}
	notMatching := &Event{
		Type: EventAssessment,
		Data: testAssessment("cust-2", 0.4, risk.SignalMedium),
	}

	if !h.shouldSend(client, matching) {
		t.Error("Should match on customer key")
	}
	if h.shouldSend(client, notMatching) {
		t.Error("Should NOT match unrelated customers")
	}
}

func TestShouldSend_SignalFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		Signals: []risk.Signal{risk.SignalHigh, risk.SignalCritical},
	}}

	critical := &Event{
		Type: EventAssessment,
		Data: testAssessment("cust-1", 0.91, risk.SignalCritical),
	}
	low := &Event{
		Type: EventAssessment,
		Data: testAssessment("cust-1", 0.1, risk.SignalLow),
	}

	if !h.shouldSend(client, critical) {
		t.Error("Should receive critical assessments")
	}
	if h.shouldSend(client, low) {
		t.Error("Should NOT receive low assessments")
	}
}

func TestShouldSend_MinProbabilityFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		MinProbability: 0.6,
	}}

	high := &Event{
		Type: EventAssessment,
		Data: testAssessment("cust-1", 0.75, risk.SignalHigh),
	}
	low := &Event{
		Type: EventAssessment,
		Data: testAssessment("cust-1", 0.2, risk.SignalLow),
	}
	run := &Event{
		Type: EventTrainingRun,
		Data: &riskmodel.TrainingRun{ID: "tr_test", Status: riskmodel.RunSucceeded},
	}

	if !h.shouldSend(client, high) {
		t.Error("Should receive high-probability assessment")
	}
	if h.shouldSend(client, low) {
		t.Error("Should NOT receive low-probability assessment")
	}
	if !h.shouldSend(client, run) {
		t.Error("MinProbability filter should only apply to assessments")
	}
}

func TestShouldSend_EmptySubscription(t *testing.T) {
	h := testHub()

	// No filters, not AllEvents
	client := &Client{sub: Subscription{}}

	event := &Event{Type: EventAssessment}
	if !h.shouldSend(client, event) {
		t.Error("Empty subscription (no filters) should receive events")
	}
}

func TestShouldSend_NonAssessmentData(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		CustomerKeys: []string{"cust-1"},
	}}

	// Event whose payload is not an assessment should not crash
	event := &Event{
		Type: EventTrainingRun,
		Data: "string data not an assessment",
	}

	// Customer filter only applies to assessments, so event passes through
	if !h.shouldSend(client, event) {
		t.Error("Non-assessment data should pass through the customer filter")
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

func TestHub_BroadcastAndStats(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Broadcast an event
	h.Broadcast(&Event{Type: EventAssessment, Timestamp: time.Now()})
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

	h.BroadcastAssessment(testAssessment("cust-1", 0.88, risk.SignalCritical))

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for broadcast")
	}
}

func TestHub_BroadcastTrainingRun(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Should not panic
	h.BroadcastTrainingRun(&riskmodel.TrainingRun{
		ID: "tr_test", Status: riskmodel.RunSucceeded, SampleCount: 10,
	})
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

	// Client only wants training runs
	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{EventTypes: []EventType{EventTrainingRun}},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	// Send an assessment event (should be filtered out)
	h.Broadcast(&Event{Type: EventAssessment, Timestamp: time.Now()})
	time.Sleep(100 * time.Millisecond)

	select {
	case <-client.send:
		t.Error("Client should NOT receive assessment event")
	default:
		// Good - filtered out
	}

	// Send a training-run event (should be received)
	h.Broadcast(&Event{Type: EventTrainingRun, Timestamp: time.Now()})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Client should receive training-run event")
	}
}
