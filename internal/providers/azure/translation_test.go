package azure

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voicebridge/internal/domain"
	"voicebridge/internal/ports"
)

func TestProviderStartStreamingRequiresKey(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{Region: "westeurope"})
	_, err := p.StartStreaming(context.Background(), ports.StreamingConfig{})
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
}

func TestProviderStartStreamingRequiresRegionOrEndpoint(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{Key: "k"})
	_, err := p.StartStreaming(context.Background(), ports.StreamingConfig{})
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
}

func TestBuildStreamURLDefaults(t *testing.T) {
	t.Parallel()

	url, err := buildStreamURL(Config{Region: "westeurope"}, ports.StreamingConfig{
		SourceLanguage:  "en-US",
		TargetLanguages: []string{"es-ES"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(url, "wss://westeurope.stt.speech.microsoft.com/speech/translation/v1/stream") {
		t.Fatalf("unexpected stream url: %s", url)
	}
	if !strings.Contains(url, "from=en-US") {
		t.Fatalf("expected source language in url: %s", url)
	}
	if !strings.Contains(url, "to=es") {
		t.Fatalf("expected bare target language in url: %s", url)
	}
	if !strings.Contains(url, "encoding=linear16") {
		t.Fatalf("expected default encoding in url: %s", url)
	}
	if !strings.Contains(url, "sample_rate=16000") {
		t.Fatalf("expected default sample rate in url: %s", url)
	}
	if !strings.Contains(url, "channels=1") {
		t.Fatalf("expected default channels in url: %s", url)
	}
}

func TestBuildStreamURLPrivateEndpoint(t *testing.T) {
	t.Parallel()

	url, err := buildStreamURL(
		Config{PrivateEndpoint: "http://localhost:9000/"},
		ports.StreamingConfig{SourceLanguage: "de-DE", TargetLanguages: []string{"en-US"}, SampleRate: 8000, Channels: 2},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(url, "ws://localhost:9000/speech/translation/v1/stream") {
		t.Fatalf("unexpected stream url: %s", url)
	}
	if !strings.Contains(url, "sample_rate=8000") || !strings.Contains(url, "channels=2") {
		t.Fatalf("expected explicit audio params in url: %s", url)
	}
}

func TestTranslationForFallsBackToBareLanguage(t *testing.T) {
	t.Parallel()

	r := translationResponse{Translations: map[string]string{"es": " hola "}}
	if got := r.translationFor("es-ES"); got != "hola" {
		t.Fatalf("expected bare language fallback, got %q", got)
	}

	r = translationResponse{Translations: map[string]string{"es-ES": "hola", "es": "otro"}}
	if got := r.translationFor("es-ES"); got != "hola" {
		t.Fatalf("expected exact locale to win, got %q", got)
	}

	if got := (translationResponse{}).translationFor("es-ES"); got != "" {
		t.Fatalf("expected empty translation, got %q", got)
	}
}

func TestTranslationSessionSendAudioClosed(t *testing.T) {
	t.Parallel()

	s := &translationSession{sendClosed: true}
	if err := s.SendAudio([]byte("x")); err == nil {
		t.Fatalf("expected closed error")
	}
}

func TestTranslationSessionSendAudioEmptyIsNoop(t *testing.T) {
	t.Parallel()

	s := &translationSession{sendClosed: true}
	if err := s.SendAudio(nil); err != nil {
		t.Fatalf("empty chunk must be a no-op, got %v", err)
	}
}

func TestTranslationSessionCloseSendIsIdempotent(t *testing.T) {
	t.Parallel()

	s := &translationSession{audio: make(chan []byte, 1)}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected second error: %v", err)
	}
}

func TestTranslationSessionEmitWaitsForConsumer(t *testing.T) {
	t.Parallel()

	s := &translationSession{
		events: make(chan domain.TranslationEvent, 1),
		done:   make(chan struct{}),
	}
	s.emit(domain.TranslationEvent{SourceText: "one"})

	delivered := make(chan struct{})
	go func() {
		s.emit(domain.TranslationEvent{SourceText: "two"})
		close(delivered)
	}()

	// The buffer is full; the second emit must wait rather than drop.
	select {
	case <-delivered:
		t.Fatalf("emit must wait for the consumer on a full buffer")
	case <-time.After(20 * time.Millisecond):
	}

	if got := <-s.events; got.SourceText != "one" {
		t.Fatalf("unexpected first event: %q", got.SourceText)
	}
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatalf("emit did not complete after the buffer drained")
	}
	if got := <-s.events; got.SourceText != "two" {
		t.Fatalf("unexpected second event: %q", got.SourceText)
	}
}

func TestTranslationSessionEmitReleasesWhenDone(t *testing.T) {
	t.Parallel()

	s := &translationSession{
		events: make(chan domain.TranslationEvent, 1),
		done:   make(chan struct{}),
	}
	s.emit(domain.TranslationEvent{SourceText: "one"})
	close(s.done)

	finished := make(chan struct{})
	go func() {
		s.emit(domain.TranslationEvent{SourceText: "two"})
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("emit must return once the session is done")
	}
}

func TestTranslationSessionSetErrIgnoresCloseErrors(t *testing.T) {
	t.Parallel()

	s := &translationSession{}
	s.setErr(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "closed"})
	if s.waitErr() != nil {
		t.Fatalf("expected normal close to be ignored")
	}

	s.setErr(errors.New("boom"))
	if s.waitErr() == nil || s.waitErr().Error() != "boom" {
		t.Fatalf("expected non-close error to be captured")
	}
}

func TestTranslationSessionSetErrFirstWins(t *testing.T) {
	t.Parallel()

	s := &translationSession{}
	s.setErr(errors.New("first"))
	s.setErr(errors.New("second"))
	if s.waitErr() == nil || s.waitErr().Error() != "first" {
		t.Fatalf("expected first error to win")
	}
}
