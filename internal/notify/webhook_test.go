package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sketchy/internal/domain"
)

func testNotifier(maxAttempts int) *Notifier {
	return NewNotifier(2*time.Second, maxAttempts, zerolog.Nop())
}

func TestSendDeliversPayload(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payload := Payload{
		Event:            EventCompleted,
		JobID:            "job_abc123",
		Status:           domain.StatusCompleted,
		CombinedImageURL: "http://example.com/files/job_abc123/combined.png",
		PanelsCount:      4,
		Title:            "Breaking Wind",
	}
	if err := testNotifier(3).Send(context.Background(), srv.URL, payload); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Event != EventCompleted || got.JobID != "job_abc123" || got.PanelsCount != 4 {
		t.Errorf("delivered payload = %+v", got)
	}
}

func TestSendRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := testNotifier(3).Send(context.Background(), srv.URL, Payload{Event: EventTest, JobID: "test"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestSendExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := testNotifier(2).Send(context.Background(), srv.URL, Payload{Event: EventFailed, JobID: "job_dead"})
	if err == nil {
		t.Fatal("Send succeeded, want error")
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestSendOnceMakesSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := testNotifier(3).SendOnce(context.Background(), srv.URL, Payload{Event: EventTest, JobID: "test"})
	if err == nil {
		t.Fatal("SendOnce succeeded, want error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestSendOnceDelivers(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := testNotifier(3).SendOnce(context.Background(), srv.URL, Payload{Event: EventTest, JobID: "test"}); err != nil {
		t.Fatalf("SendOnce: %v", err)
	}
	if got.Event != EventTest {
		t.Errorf("delivered payload = %+v", got)
	}
}

func TestSendUnreachableHost(t *testing.T) {
	err := testNotifier(1).Send(context.Background(), "http://127.0.0.1:1/hook", Payload{Event: EventTest})
	if err == nil {
		t.Fatal("Send succeeded, want error")
	}
}

func TestSendRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := testNotifier(3).Send(ctx, srv.URL, Payload{Event: EventTest})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
