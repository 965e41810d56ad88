package azure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTokenSourceCurrentBeforeRefresh(t *testing.T) {
	t.Parallel()

	tokens := NewTokenSource(Config{Region: "westeurope", Key: "k"}, IceOverride{}, discardLogger())
	if _, ok := tokens.Current(); ok {
		t.Fatalf("expected no token before first refresh")
	}
	if _, ok := tokens.ClientToken(); ok {
		t.Fatalf("expected no client token before first refresh")
	}
}

func TestTokenSourceOverride(t *testing.T) {
	t.Parallel()

	tokens := NewTokenSource(Config{}, IceOverride{
		ServerURL:       "turn:local:3478",
		ServerURLRemote: "turn:remote:3478",
		Username:        "user",
		Password:        "pass",
	}, discardLogger())

	current, ok := tokens.Current()
	if !ok {
		t.Fatalf("expected override token")
	}
	if len(current.Urls) != 1 || current.Urls[0] != "turn:remote:3478" {
		t.Fatalf("expected remote url for negotiation, got %v", current.Urls)
	}
	if current.Username != "user" || current.Password != "pass" {
		t.Fatalf("unexpected credentials: %+v", current)
	}

	client, ok := tokens.ClientToken()
	if !ok {
		t.Fatalf("expected override client token")
	}
	if len(client.Urls) != 1 || client.Urls[0] != "turn:local:3478" {
		t.Fatalf("expected local url for clients, got %v", client.Urls)
	}
}

func TestTokenSourceOverrideWithoutRemote(t *testing.T) {
	t.Parallel()

	tokens := NewTokenSource(Config{}, IceOverride{
		ServerURL: "turn:local:3478",
		Username:  "user",
		Password:  "pass",
	}, discardLogger())

	current, ok := tokens.Current()
	if !ok || current.Urls[0] != "turn:local:3478" {
		t.Fatalf("expected local url fallback, got %+v", current)
	}
}

func TestTokenSourceRefresh(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cognitiveservices/avatar/relay/token/v1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "test-key" {
			t.Errorf("missing subscription key header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Urls":["turn:relay.example.com:3478"],"Username":"u","Password":"p"}`))
	}))
	defer server.Close()

	tokens := NewTokenSource(Config{PrivateEndpoint: server.URL, Key: "test-key"}, IceOverride{}, discardLogger())
	if err := tokens.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	token, ok := tokens.Current()
	if !ok {
		t.Fatalf("expected token after refresh")
	}
	if len(token.Urls) != 1 || token.Urls[0] != "turn:relay.example.com:3478" {
		t.Fatalf("unexpected token urls: %v", token.Urls)
	}
	if token.Username != "u" || token.Password != "p" {
		t.Fatalf("unexpected token credentials: %+v", token)
	}
}

func TestTokenSourceRefreshRejectsBadResponses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: ""},
		{name: "malformed json", status: http.StatusOK, body: "{not json"},
		{name: "no urls", status: http.StatusOK, body: `{"Urls":[],"Username":"u","Password":"p"}`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			tokens := NewTokenSource(Config{PrivateEndpoint: server.URL, Key: "k"}, IceOverride{}, discardLogger())
			if err := tokens.Refresh(context.Background()); err == nil {
				t.Fatalf("expected refresh error")
			}
			if _, ok := tokens.Current(); ok {
				t.Fatalf("failed refresh must not install a token")
			}
		})
	}
}
