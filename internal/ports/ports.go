package ports

import (
	"context"

	"voicebridge/internal/domain"
)

// SessionStore owns session records keyed by their short code.
type SessionStore interface {
	// Create validates cfg, generates a code not currently in use and stores
	// the session with active=false.
	Create(ctx context.Context, cfg domain.SessionConfig) (domain.Session, error)
	// Get returns the session or domain.ErrSessionNotFound.
	Get(ctx context.Context, code string) (domain.Session, error)
	// SetActive toggles the streaming flag; domain.ErrSessionNotFound if absent.
	SetActive(ctx context.Context, code string, active bool) error
	// SetPresenter records the single authorized control connection. A later
	// presenter does not displace an existing one.
	SetPresenter(ctx context.Context, code string, connectionID string) error
	// Touch refreshes the idle clock for TTL expiry.
	Touch(ctx context.Context, code string) error
	// Remove deletes the session. Idempotent.
	Remove(ctx context.Context, code string) error
	// Codes lists all stored session codes.
	Codes(ctx context.Context) ([]string, error)
}

// ListenerRegistry tracks which connections are subscribed to which session.
// It carries no transport concerns; broadcasting count changes is the
// caller's obligation.
type ListenerRegistry interface {
	// Add inserts membership and returns the new size. Idempotent for a
	// duplicate add; a connection belongs to at most one session, so a
	// re-subscribe moves it.
	Add(code string, connectionID string) int
	// Remove deletes membership if present and returns the new size
	// (0 for an unknown session).
	Remove(code string, connectionID string) int
	// Count returns the current listener count for the session.
	Count(code string) int
	// SessionOf reports which session, if any, a connection is counted in.
	SessionOf(connectionID string) (string, bool)
	// Drop clears all membership for the session and returns the removed
	// connection ids.
	Drop(code string) []string
}

// Broadcaster fans one event out to every connection subscribed to the
// session, presenter included. Delivery is fire-and-forget per connection.
type Broadcaster interface {
	Publish(code string, kind domain.EventKind, payload any)
	// DropSession closes the session's realtime room after a final event has
	// been published.
	DropSession(code string)
}

// StreamingConfig describes one streaming translation channel.
type StreamingConfig struct {
	SourceLanguage  string
	TargetLanguages []string
	SampleRate      int
	Channels        int
	Encoding        string
}

// TranslationSession is an active streaming recognition+translation channel:
// an inbound audio sink and an outbound result-event source.
type TranslationSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranslationEvent
	Wait() error
	Close() error
}

// TranslationProvider opens streaming translation sessions against the
// external speech service.
type TranslationProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (TranslationSession, error)
}

// AvatarSignaler relays a viewer's SDP offer to the avatar service and
// returns its answer verbatim. One call per connection attempt.
type AvatarSignaler interface {
	Negotiate(ctx context.Context, localOffer string, cfg domain.AvatarConfig, voice string) (string, error)
}
