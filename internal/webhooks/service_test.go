package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestSubscribeRejectsUnknownEvent(t *testing.T) {
	svc := NewService(nil, zap.NewNop())

	_, err := svc.Subscribe(context.Background(), "admin", &CreateSubscriptionRequest{
		URL:    "https://hooks.example.com/aegis",
		Events: []string{"simulation.alrt"},
	})
	if err == nil {
		t.Fatal("expected an error for a misspelled event type")
	}
}

func TestDeliverySignatureVerifiable(t *testing.T) {
	secret := "0123456789abcdef"
	body := []byte(`{"type":"simulation.alert"}`)

	var gotSignature string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Aegis-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewService(nil, zap.NewNop())
	success, status, errMsg := svc.doDelivery(context.Background(), srv.URL, body, signPayload(body, secret))
	if !success {
		t.Fatalf("delivery failed: status=%d err=%s", status, errMsg)
	}

	// The receiver recomputes the HMAC over the body it received.
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSignature != want {
		t.Errorf("signature mismatch: got %q want %q", gotSignature, want)
	}
}

func TestDeliveryReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := NewService(nil, zap.NewNop())
	success, status, errMsg := svc.doDelivery(context.Background(), srv.URL, []byte(`{}`), "sha256=x")
	if success {
		t.Fatal("a 502 response must not count as delivered")
	}
	if status != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", status)
	}
	if errMsg == "" {
		t.Error("expected an error message for a failed delivery")
	}
}

type stubSubscriptions struct {
	deliveries []*Delivery
}

func (s *stubSubscriptions) Create(context.Context, *Subscription) error { return nil }
func (s *stubSubscriptions) Delete(context.Context, uuid.UUID) error     { return nil }
func (s *stubSubscriptions) List(context.Context) ([]*Subscription, error) {
	return nil, nil
}
func (s *stubSubscriptions) ListByEvent(context.Context, string) ([]*Subscription, error) {
	return nil, nil
}
func (s *stubSubscriptions) RecordDelivery(_ context.Context, d *Delivery) error {
	s.deliveries = append(s.deliveries, d)
	return nil
}

func TestDeliverRetriesThreeTimes(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	store := &stubSubscriptions{}
	svc := NewService(store, zap.NewNop())
	svc.backoff = []time.Duration{0, 0}

	sub := &Subscription{ID: uuid.New(), URL: srv.URL, Secret: "s", Events: []string{EventSimulationAlert}}
	svc.deliver(context.Background(), sub, Event{Type: EventSimulationAlert})

	if requests != 3 {
		t.Fatalf("expected 3 delivery attempts, got %d", requests)
	}
	if len(store.deliveries) != 3 {
		t.Fatalf("expected 3 recorded deliveries, got %d", len(store.deliveries))
	}
	for i, d := range store.deliveries {
		if d.Attempt != i+1 {
			t.Errorf("delivery %d recorded attempt %d", i, d.Attempt)
		}
		if d.Success {
			t.Errorf("delivery %d must be recorded as failed", i)
		}
	}
}

func TestDeliverStopsAfterSuccess(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &stubSubscriptions{}
	svc := NewService(store, zap.NewNop())
	svc.backoff = []time.Duration{0, 0}

	sub := &Subscription{ID: uuid.New(), URL: srv.URL, Secret: "s", Events: []string{EventSimulationAlert}}
	svc.deliver(context.Background(), sub, Event{Type: EventSimulationAlert})

	if requests != 2 {
		t.Fatalf("expected delivery to stop after success, got %d requests", requests)
	}
	last := store.deliveries[len(store.deliveries)-1]
	if !last.Success || last.Attempt != 2 {
		t.Errorf("final record should be a successful attempt 2, got success=%v attempt=%d", last.Success, last.Attempt)
	}
}
