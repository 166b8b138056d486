package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookSend_PostsContent(t *testing.T) {
	var got map[string]any
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		contentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &got); err != nil {
			t.Errorf("body not JSON: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewWebhook(srv.URL, srv.Client()).Send(context.Background(), "hello → world"); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if contentType != "application/json" {
		t.Fatalf("content-type = %q", contentType)
	}
	if len(got) != 1 || got["content"] != "hello → world" {
		t.Fatalf("payload = %v, want only content", got)
	}
}

func TestWebhookSend_NonSuccessIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, srv.Client()).Send(context.Background(), "x")
	if err == nil {
		t.Fatalf("expected error")
	}
	var sErr *StatusError
	if !errors.As(err, &sErr) {
		t.Fatalf("error type = %T, want *StatusError", err)
	}
	if sErr.StatusCode != http.StatusTooManyRequests || sErr.Body != "rate limited" {
		t.Fatalf("StatusError = %+v", sErr)
	}
}

func TestWebhookSend_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	if err := NewWebhook(url, nil).Send(context.Background(), "x"); err == nil {
		t.Fatalf("expected error posting to closed server")
	}
}

func TestWebhookSend_EmptyURL(t *testing.T) {
	if err := NewWebhook("", nil).Send(context.Background(), "x"); err == nil {
		t.Fatalf("expected error")
	}
}
