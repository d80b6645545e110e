package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"QQQ new-high streak 3", `QQQ new\-high streak 3`},
		{"running high 449.5000", `running high 449\.5000`},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := escapeMarkdown(tt.in); got != tt.want {
			t.Errorf("escapeMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWebhookSendPayload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	alert := Alert{Level: AlertWarning, Title: "QQQ order rejected", Message: "insufficient funds"}
	if err := n.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Source != "tickerhub" || got.Level != "WARNING" || got.Title != "QQQ order rejected" {
		t.Fatalf("payload = %+v", got)
	}
}

func TestMultiKeepsGoingAfterFailure(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	var delivered int
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		delivered++
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()

	m := Multi{NewWebhookNotifier(down.URL), NewWebhookNotifier(up.URL)}
	err := m.Send(context.Background(), Alert{Level: AlertInfo, Title: "t", Message: "m"})
	if err == nil {
		t.Fatal("expected error from failed backend")
	}
	if delivered != 1 {
		t.Fatalf("healthy backend delivered %d times, want 1", delivered)
	}
}
