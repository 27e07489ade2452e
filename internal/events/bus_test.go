package events

import (
	"sync"
	"testing"
	"time"
)

// collector gathers delivered events. Subscribers run in goroutines, so
// tests wait on the group before asserting.
type collector struct {
	mu     sync.Mutex
	events []Event
	wg     sync.WaitGroup
}

func (c *collector) expect(n int) { c.wg.Add(n) }

func (c *collector) subscriber(event Event) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	c.wg.Done()
}

func (c *collector) wait(t *testing.T) []Event {
	t.Helper()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events
}

func TestSubscribeRoutesByType(t *testing.T) {
	bus := NewEventBus()
	c := &collector{}

	bus.Subscribe(EventCapitalCallSent, c.subscriber)

	c.expect(1)
	bus.PublishCapitalCallSent("call-1", "struct-1")
	bus.PublishDistributionPaid("dist-1", "struct-1", 100) // different type, not delivered

	events := c.wait(t)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != EventCapitalCallSent {
		t.Errorf("type = %s, want %s", events[0].Type, EventCapitalCallSent)
	}
	if events[0].Data["capital_call_id"] != "call-1" {
		t.Errorf("capital_call_id = %v, want call-1", events[0].Data["capital_call_id"])
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewEventBus()
	c := &collector{}

	bus.SubscribeAll(c.subscriber)

	c.expect(3)
	bus.PublishCapitalCallSent("call-1", "struct-1")
	bus.PublishDistributionPaid("dist-1", "struct-1", 100)
	bus.PublishUserLogout("user-1")

	events := c.wait(t)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
}

func TestPublishStampsTimestamp(t *testing.T) {
	bus := NewEventBus()
	c := &collector{}

	bus.SubscribeAll(c.subscriber)

	c.expect(1)
	bus.Publish(Event{Type: EventKYCUpdated, Data: map[string]interface{}{}})

	events := c.wait(t)
	if events[0].Timestamp.IsZero() {
		t.Error("Publish must stamp a zero timestamp")
	}
}

func TestPublishWaterfallAppliedPayload(t *testing.T) {
	bus := NewEventBus()
	c := &collector{}

	bus.Subscribe(EventWaterfallApplied, c.subscriber)

	c.expect(1)
	bus.PublishWaterfallApplied("dist-1", "struct-1", [4]float64{100, 50, 25, 10}, 150, 35, 5)

	events := c.wait(t)
	data := events[0].Data
	if data["tier1_amount"] != 100.0 || data["tier4_amount"] != 10.0 {
		t.Errorf("tier amounts = %v/%v, want 100/10", data["tier1_amount"], data["tier4_amount"])
	}
	if data["lp_total"] != 150.0 || data["gp_total"] != 35.0 {
		t.Errorf("lp/gp totals = %v/%v, want 150/35", data["lp_total"], data["gp_total"])
	}
	if data["management_fee"] != 5.0 {
		t.Errorf("management_fee = %v, want 5", data["management_fee"])
	}
}

func TestPublishErrorIncludesCause(t *testing.T) {
	bus := NewEventBus()
	c := &collector{}

	bus.Subscribe(EventError, c.subscriber)

	c.expect(1)
	bus.PublishError("ledger", "apply failed", errTest)

	events := c.wait(t)
	if events[0].Data["error"] != "boom" {
		t.Errorf("error = %v, want boom", events[0].Data["error"])
	}
	if events[0].Data["source"] != "ledger" {
		t.Errorf("source = %v, want ledger", events[0].Data["source"])
	}
}

var errTest = errBoom{}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
