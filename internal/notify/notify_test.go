package notify

import (
	"context"
	"crypto/hmac"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatch_SignsAndDelivers(t *testing.T) {
	received := make(chan *http.Request, 1)
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		received <- r
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, &Subscription{
		ID:     "whk_1",
		Owner:  "0xowner",
		URL:    srv.URL,
		Secret: "hush",
		Events: []EventType{EventPanicTriggered},
		Active: true,
	}); err != nil {
		t.Fatal(err)
	}

	d := NewDispatcher(store, discardLogger())
	err := d.Dispatch(ctx, &Event{
		ID:        "evt_1",
		Type:      EventPanicTriggered,
		Timestamp: time.Now(),
		Data:      map[string]any{"owner": "0xowner"},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	select {
	case req := <-received:
		if got := req.Header.Get("X-Scream-Event"); got != "panic_triggered" {
			t.Errorf("event header = %q", got)
		}
		sig := req.Header.Get("X-Scream-Signature")
		if sig == "" {
			t.Fatal("missing signature header")
		}
		if !hmac.Equal([]byte(sig), []byte(Sign(body, "hush"))) {
			t.Error("signature does not verify against the body")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not delivered")
	}
}

func TestDispatch_SkipsInactiveAndUnsubscribed(t *testing.T) {
	hits := make(chan struct{}, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- struct{}{}
	}))
	defer srv.Close()

	store := NewMemoryStore()
	ctx := context.Background()
	store.Create(ctx, &Subscription{
		ID: "inactive", URL: srv.URL,
		Events: []EventType{EventPanicTriggered}, Active: false,
	})
	store.Create(ctx, &Subscription{
		ID: "other_event", URL: srv.URL,
		Events: []EventType{EventVaultDeposit}, Active: true,
	})

	d := NewDispatcher(store, discardLogger())
	if err := d.Dispatch(ctx, &Event{
		ID: "evt_1", Type: EventPanicTriggered, Timestamp: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-hits:
		t.Fatal("delivery to inactive or unsubscribed endpoint")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestMemoryStore_GetByEvent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Create(ctx, &Subscription{
		ID: "a", Owner: "0x1",
		Events: []EventType{EventPanicTriggered, EventThreatAlert},
	})
	store.Create(ctx, &Subscription{
		ID: "b", Owner: "0x2",
		Events: []EventType{EventVaultDeposit},
	})

	subs, err := store.GetByEvent(ctx, EventThreatAlert)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].ID != "a" {
		t.Errorf("GetByEvent = %+v, want only subscription a", subs)
	}
}
