package bootstrap

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"voicebridge/internal/config"
)

func TestBuildWithMemoryStore(t *testing.T) {
	t.Setenv("SESSION_STORE", "memory")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	services, err := Build(cfg, log)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer services.Close()

	if services.Router == nil || services.Controller == nil || services.Janitor == nil || services.Tokens == nil {
		t.Fatalf("incomplete service graph: %+v", services)
	}

	rec := httptest.NewRecorder()
	services.Router.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != 200 {
		t.Fatalf("healthz returned %d", rec.Code)
	}
}
