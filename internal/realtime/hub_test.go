package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	event := &Event{Type: EventPanicTriggered, Timestamp: time.Now()}
	if !h.shouldSend(client, event) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		EventTypes: []EventType{EventPanicTriggered, EventThreatAlert},
	}}

	if !h.shouldSend(client, &Event{Type: EventPanicTriggered}) {
		t.Error("Should receive panic_triggered events")
	}
	if !h.shouldSend(client, &Event{Type: EventThreatAlert}) {
		t.Error("Should receive threat_alert events")
	}
	if h.shouldSend(client, &Event{Type: EventVaultDeposit}) {
		t.Error("Should NOT receive vault_deposit events")
	}
}

func TestShouldSend_AddressFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		Addresses: []string{"0xme"},
	}}

	asOwner := &Event{
		Type: EventPanicTriggered,
		Data: map[string]any{"owner": "0xme"},
	}
	asContact := &Event{
		Type: EventContactAlerted,
		Data: map[string]any{"owner": "0xother", "contact": "0xme"},
	}
	unrelated := &Event{
		Type: EventPanicTriggered,
		Data: map[string]any{"owner": "0xother"},
	}

	if !h.shouldSend(client, asOwner) {
		t.Error("Should receive events where the address is the owner")
	}
	if !h.shouldSend(client, asContact) {
		t.Error("Should receive events where the address is the contact")
	}
	if h.shouldSend(client, unrelated) {
		t.Error("Should NOT receive unrelated events")
	}
}

func TestShouldSend_MinScoreFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{MinScore: 80}}

	low := &Event{
		Type: EventThreatAlert,
		Data: map[string]any{"score": float64(50)},
	}
	high := &Event{
		Type: EventThreatAlert,
		Data: map[string]any{"score": float64(90)},
	}

	if h.shouldSend(client, low) {
		t.Error("Should NOT receive alerts below the score floor")
	}
	if !h.shouldSend(client, high) {
		t.Error("Should receive alerts at or above the score floor")
	}
	// MinScore only applies to threat alerts.
	if !h.shouldSend(client, &Event{Type: EventPanicTriggered}) {
		t.Error("Non-alert events are unaffected by MinScore")
	}
}

func TestHub_RegisterAndBroadcast(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	client := &Client{hub: h, send: make(chan []byte, 8), sub: Subscription{AllEvents: true}}
	h.register <- client

	h.Broadcast(&Event{Type: EventPanicTriggered, Timestamp: time.Now()})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("empty broadcast payload")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast not delivered")
	}

	stats := h.Stats()
	if stats["connectedClients"].(int) != 1 {
		t.Errorf("connectedClients = %v, want 1", stats["connectedClients"])
	}
}
