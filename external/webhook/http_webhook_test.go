package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foxseedlab/otomaze/internal/webhook"
)

func TestSendPlaybackEvent_EmptyWebhookURL(t *testing.T) {
	sender := NewHTTPSender("")
	if err := sender.SendPlaybackEvent(context.Background(), webhook.PlaybackEvent{Event: "started"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestSendPlaybackEvent_Success(t *testing.T) {
	var got webhook.PlaybackEvent
	var contentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	sender := NewHTTPSender(server.URL)
	err := sender.SendPlaybackEvent(context.Background(), webhook.PlaybackEvent{
		Event:      "ended",
		Handle:     "5f0c6f4e-0000-4000-8000-000000000001",
		Channel:    1,
		Source:     "bell.mp3",
		EndReason:  "finished",
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if contentType != "application/json" {
		t.Fatalf("unexpected content type: %s", contentType)
	}
	if got.Event != "ended" || got.Source != "bell.mp3" || got.EndReason != "finished" || got.Channel != 1 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if !got.OccurredAt.Equal(at) {
		t.Fatalf("unexpected occurred_at: %v", got.OccurredAt)
	}
}

func TestSendPlaybackEvent_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.SendPlaybackEvent(context.Background(), webhook.PlaybackEvent{Event: "started"}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
