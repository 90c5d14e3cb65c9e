package grainai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestEnqueueSendsBearerAndBody(t *testing.T) {
	var gotAuth string
	var gotReq EnqueueRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != enqueuePath {
			t.Errorf("path = %s, want %s", r.URL.Path, enqueuePath)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": true, "message": "queued"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, "secret-token", 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ack, err := client.Enqueue(context.Background(), EnqueueRequest{
		CallbackURL: "https://api.example.com/webhook/analyze",
		Payload: EnqueuePayload{
			ExternalID:   "cl-1",
			ImageURL:     "https://api.example.com/files/images/u/photo.jpg",
			SeedCategory: "wheat",
		},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !ack.Status || ack.Message != "queued" {
		t.Fatalf("ack = %+v", ack)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotReq.Payload.ExternalID != "cl-1" || gotReq.Payload.SeedCategory != "wheat" {
		t.Fatalf("request = %+v", gotReq)
	}
}

func TestEnqueueRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "over capacity", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, "t", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Enqueue(context.Background(), EnqueueRequest{}); err == nil {
		t.Fatal("expected error for 503")
	}
}

func TestEnqueueRejectsMalformedAck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, "t", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Enqueue(context.Background(), EnqueueRequest{}); err == nil {
		t.Fatal("expected error for malformed ack")
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("   ", "t", time.Second); err == nil {
		t.Fatal("expected error for empty base url")
	}
}
