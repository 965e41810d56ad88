package domain

import "time"

// Session is a named, coded translation broadcast scope binding one presenter
// to zero-or-more listeners and one language pair.
type Session struct {
	Code           string       `json:"sessionCode"`
	Name           string       `json:"sessionName"`
	SourceLanguage string       `json:"sourceLanguage"`
	TargetLanguage string       `json:"targetLanguage"`
	TargetVoice    string       `json:"targetVoice,omitempty"`
	Avatar         AvatarConfig `json:"avatar"`
	CreatedAt      time.Time    `json:"createdAt"`
	LastActivity   time.Time    `json:"-"`
	Active         bool         `json:"active"`
	PresenterID    string       `json:"-"`
}

// SessionConfig is the owner-supplied configuration for a new session.
// Empty fields are filled with defaults before storage.
type SessionConfig struct {
	Name           string       `json:"sessionName"`
	SourceLanguage string       `json:"sourceLanguage"`
	TargetLanguage string       `json:"targetLanguage"`
	TargetVoice    string       `json:"targetVoice"`
	Avatar         AvatarConfig `json:"avatar"`
}

// AvatarConfig is rendering configuration passed through to the avatar
// service untouched by the core.
type AvatarConfig struct {
	Character             string `json:"avatarCharacter"`
	Style                 string `json:"avatarStyle"`
	BackgroundColor       string `json:"backgroundColor"`
	IsCustomAvatar        bool   `json:"isCustomAvatar"`
	UseBuiltInVoice       bool   `json:"useBuiltInVoice"`
	TransparentBackground bool   `json:"transparentBackground"`
	VideoCrop             bool   `json:"videoCrop"`
}

// TranslationEvent is one recognized-and-translated utterance. Produced by
// the transcription bridge, consumed once by the broadcaster, never stored.
type TranslationEvent struct {
	SourceText     string    `json:"sourceText"`
	TranslatedText string    `json:"translatedText"`
	SourceLanguage string    `json:"sourceLanguage"`
	TargetLanguage string    `json:"targetLanguage"`
	Timestamp      time.Time `json:"timestamp"`
}

// EventKind identifies a realtime event envelope on the session channel.
type EventKind string

const (
	EventTranslationResult    EventKind = "translationResult"
	EventListenerCountUpdated EventKind = "listenerCountUpdated"
	EventSessionEnded         EventKind = "sessionEnded"
	EventError                EventKind = "error"
)

// ListenerCount is the payload for EventListenerCountUpdated.
type ListenerCount struct {
	Count int `json:"count"`
}

// SessionEnded is the payload for EventSessionEnded.
type SessionEnded struct {
	SessionCode string `json:"sessionCode"`
}

// ErrorNotice is the payload for EventError.
type ErrorNotice struct {
	Message string `json:"message"`
}
