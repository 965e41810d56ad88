package ws

import (
	"encoding/json"

	"voicebridge/internal/domain"
)

// envelope is the single canonical event shape on the realtime channel.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// legacyTranslation mirrors the event shape older clients subscribed to
// before the envelope was introduced. Emitted only when the compatibility
// adapter is enabled.
type legacyTranslation struct {
	Path           string `json:"path"`
	SourceText     string `json:"sourceText"`
	TranslatedText string `json:"translatedText"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
}

// encodeEvent renders the messages to deliver for one logical event: the
// canonical envelope, plus the legacy shape when the adapter is on.
func encodeEvent(kind domain.EventKind, payload any, emitLegacy bool) [][]byte {
	canonical, err := json.Marshal(envelope{Type: string(kind), Data: payload})
	if err != nil {
		return nil
	}
	messages := [][]byte{canonical}

	if emitLegacy && kind == domain.EventTranslationResult {
		if event, ok := payload.(domain.TranslationEvent); ok {
			legacy, err := json.Marshal(envelope{Type: "response", Data: legacyTranslation{
				Path:           "api.translation",
				SourceText:     event.SourceText,
				TranslatedText: event.TranslatedText,
				SourceLanguage: event.SourceLanguage,
				TargetLanguage: event.TargetLanguage,
			}})
			if err == nil {
				messages = append(messages, legacy)
			}
		}
	}
	return messages
}

// inbound is a client->server message on the realtime channel.
type inbound struct {
	Type        string `json:"type"`
	SessionCode string `json:"sessionCode"`
	// ConnectionID lets a client that already holds an id (from avatar
	// signaling) claim it on its first subscribe.
	ConnectionID string `json:"connectionId"`
	Role         string `json:"role"`
	// Audio carries one base64 frame of 16 kHz mono linear PCM.
	Audio string `json:"audio"`
}

const (
	inboundSubscribe  = "subscribe"
	inboundAudioFrame = "audioFrame"

	RolePresenter = "presenter"
	RoleListener  = "listener"
)
