package ws

import (
	"encoding/json"
	"testing"

	"voicebridge/internal/domain"
)

func TestEncodeEventCanonicalOnly(t *testing.T) {
	t.Parallel()

	messages := encodeEvent(domain.EventListenerCountUpdated, domain.ListenerCount{Count: 3}, false)
	if len(messages) != 1 {
		t.Fatalf("expected a single message, got %d", len(messages))
	}

	var decoded struct {
		Type string `json:"type"`
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	if err := json.Unmarshal(messages[0], &decoded); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if decoded.Type != "listenerCountUpdated" || decoded.Data.Count != 3 {
		t.Fatalf("unexpected envelope: %+v", decoded)
	}
}

func TestEncodeEventLegacyTranslation(t *testing.T) {
	t.Parallel()

	event := domain.TranslationEvent{
		SourceText:     "hello",
		TranslatedText: "hola",
		SourceLanguage: "en-US",
		TargetLanguage: "es-ES",
	}

	messages := encodeEvent(domain.EventTranslationResult, event, true)
	if len(messages) != 2 {
		t.Fatalf("expected canonical plus legacy message, got %d", len(messages))
	}

	var legacy struct {
		Type string `json:"type"`
		Data struct {
			Path           string `json:"path"`
			TranslatedText string `json:"translatedText"`
		} `json:"data"`
	}
	if err := json.Unmarshal(messages[1], &legacy); err != nil {
		t.Fatalf("failed to decode legacy message: %v", err)
	}
	if legacy.Type != "response" {
		t.Fatalf("unexpected legacy type: %q", legacy.Type)
	}
	if legacy.Data.Path != "api.translation" || legacy.Data.TranslatedText != "hola" {
		t.Fatalf("unexpected legacy payload: %+v", legacy.Data)
	}
}

func TestEncodeEventLegacyOnlyForTranslations(t *testing.T) {
	t.Parallel()

	messages := encodeEvent(domain.EventSessionEnded, domain.SessionEnded{SessionCode: "123456"}, true)
	if len(messages) != 1 {
		t.Fatalf("legacy shape applies only to translations, got %d messages", len(messages))
	}
}
