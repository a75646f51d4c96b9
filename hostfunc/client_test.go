package hostfunc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClientDo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("X-Token"); got != "abc" {
			t.Errorf("expected X-Token abc, got %q", got)
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("pong"))
	}))
	defer server.Close()

	client := NewClient(DefaultClientConfig())
	resp, err := client.Do(context.Background(), OutboundRequest{
		Method: "POST",
		URL:    server.URL,
		Header: map[string]string{"X-Token": "abc"},
		Body:   []byte("ping"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != http.StatusCreated {
		t.Errorf("expected status 201, got %d", resp.Status)
	}
	if string(resp.Body) != "pong" {
		t.Errorf("expected body pong, got %q", resp.Body)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/plain" {
		t.Errorf("expected Content-Type text/plain, got %q", got)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		Timeout:      5 * time.Second,
		RetryCount:   3,
		RetryWaitMin: 10 * time.Millisecond,
		RetryWaitMax: 20 * time.Millisecond,
	})
	resp, err := client.Do(context.Background(), OutboundRequest{Method: "GET", URL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("expected status 200 after retries, got %d", resp.Status)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}
