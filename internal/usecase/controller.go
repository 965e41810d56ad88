package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"voicebridge/internal/domain"
	"voicebridge/internal/metrics"
	"voicebridge/internal/ports"
)

// SessionSummary is the external view of a session, including the live
// listener count.
type SessionSummary struct {
	domain.Session
	ListenerCount int    `json:"listenerCount"`
	ListenerURL   string `json:"listenerUrl"`
}

// Config controls controller behavior.
type Config struct {
	// PublicBaseURL is the address viewers reach the relay on; listener
	// share links are derived from it.
	PublicBaseURL string
	// DefaultVoice is used for avatar speech when the session has none.
	DefaultVoice string
}

// SessionController composes the store, registry, bridge, signaler and
// broadcaster into the externally observable operations.
type SessionController struct {
	store    ports.SessionStore
	registry ports.ListenerRegistry
	bridge   *TranscriptionBridge
	signaler ports.AvatarSignaler
	router   ports.Broadcaster
	metrics  *metrics.Metrics
	log      *slog.Logger
	cfg      Config
}

func NewSessionController(
	store ports.SessionStore,
	registry ports.ListenerRegistry,
	bridge *TranscriptionBridge,
	signaler ports.AvatarSignaler,
	router ports.Broadcaster,
	m *metrics.Metrics,
	log *slog.Logger,
	cfg Config,
) *SessionController {
	c := &SessionController{
		store:    store,
		registry: registry,
		bridge:   bridge,
		signaler: signaler,
		router:   router,
		metrics:  m,
		log:      log,
		cfg:      cfg,
	}
	bridge.SetDownHandler(c.handleChannelDown)
	return c
}

// handleChannelDown reconciles session state after the upstream channel dies
// outside an explicit stop: the active flag is cleared so the session can be
// restarted and expired, and the room learns the translation is gone.
func (c *SessionController) handleChannelDown(code string, cause error) {
	if err := c.store.SetActive(context.Background(), code, false); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		c.log.Warn("failed to deactivate session after channel loss", "session", code, "error", err)
	}

	message := "translation stopped unexpectedly"
	if cause != nil {
		message = "translation stopped: " + cause.Error()
	}
	c.router.Publish(code, domain.EventError, domain.ErrorNotice{Message: message})
	c.log.Warn("translation channel lost", "session", code, "error", cause)
}

// CreateSession validates the config, stores a new session under a fresh
// code and returns it with its shareable listener address.
func (c *SessionController) CreateSession(ctx context.Context, cfg domain.SessionConfig) (SessionSummary, error) {
	session, err := c.store.Create(ctx, cfg)
	if err != nil {
		return SessionSummary{}, err
	}

	c.metrics.SessionsCreated.Inc()
	c.metrics.ActiveSessions.Inc()
	c.log.Info("session created", "session", session.Code, "name", session.Name,
		"source", session.SourceLanguage, "target", session.TargetLanguage)
	return c.summarize(session), nil
}

// GetSession returns the session summary including its live listener count.
func (c *SessionController) GetSession(ctx context.Context, code string) (SessionSummary, error) {
	session, err := c.store.Get(ctx, code)
	if err != nil {
		return SessionSummary{}, err
	}
	return c.summarize(session), nil
}

// StartTranslation opens the session's streaming channel. The calling
// connection becomes the presenter.
func (c *SessionController) StartTranslation(ctx context.Context, code string, connectionID string) error {
	session, err := c.store.Get(ctx, code)
	if err != nil {
		return err
	}

	if err := c.bridge.Start(ctx, session); err != nil {
		return err
	}

	if connectionID != "" {
		if err := c.store.SetPresenter(ctx, code, connectionID); err != nil {
			c.log.Warn("failed to record presenter", "session", code, "error", err)
		}
	}
	if err := c.store.SetActive(ctx, code, true); err != nil {
		// Session ended between Get and SetActive; don't leave the channel up.
		c.bridge.Stop(code)
		return err
	}
	return nil
}

// StopTranslation tears the channel down. Stopping an inactive session is
// not an error; an unknown code still is.
func (c *SessionController) StopTranslation(ctx context.Context, code string) error {
	if _, err := c.store.Get(ctx, code); err != nil {
		return err
	}

	c.bridge.Stop(code)
	if err := c.store.SetActive(ctx, code, false); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	return nil
}

// EndSession stops translation, notifies every subscriber and removes the
// session. Notification precedes removal so in-flight lookups during
// teardown still resolve.
func (c *SessionController) EndSession(ctx context.Context, code string) error {
	if _, err := c.store.Get(ctx, code); err != nil {
		return err
	}

	c.bridge.Stop(code)
	c.router.Publish(code, domain.EventSessionEnded, domain.SessionEnded{SessionCode: code})

	if err := c.store.Remove(ctx, code); err != nil {
		return err
	}
	c.registry.Drop(code)
	c.router.DropSession(code)

	c.metrics.SessionsEnded.Inc()
	c.metrics.ActiveSessions.Dec()
	c.log.Info("session ended", "session", code)
	return nil
}

// ConnectListenerAvatar relays the viewer's SDP offer to the avatar service
// using the session's rendering configuration. The listener is counted only
// after the relay succeeds.
func (c *SessionController) ConnectListenerAvatar(ctx context.Context, code string, connectionID string, localOffer string) (string, error) {
	session, err := c.store.Get(ctx, code)
	if err != nil {
		return "", err
	}
	if connectionID == "" {
		return "", fmt.Errorf("%w: connection id is required", domain.ErrInvalidOffer)
	}

	voice := session.TargetVoice
	if voice == "" {
		voice = c.cfg.DefaultVoice
	}

	c.metrics.RelayNegotiations.Inc()
	answer, err := c.signaler.Negotiate(ctx, localOffer, session.Avatar, voice)
	if err != nil {
		c.metrics.RelayFailures.Inc()
		c.log.Warn("avatar negotiation failed", "session", code, "connection", connectionID, "error", err)
		return "", err
	}

	count := c.registry.Add(code, connectionID)
	c.metrics.ListenersJoined.Inc()
	c.router.Publish(code, domain.EventListenerCountUpdated, domain.ListenerCount{Count: count})
	_ = c.store.Touch(ctx, code)

	c.log.Info("listener avatar connected", "session", code, "connection", connectionID, "listeners", count)
	return answer, nil
}

// PushAudio hands a presenter audio frame to the session's channel.
// Fire-and-forget; frames for inactive sessions are dropped silently.
func (c *SessionController) PushAudio(code string, frame []byte) {
	c.bridge.PushAudio(code, frame)
}

// Shutdown tears down all streaming channels.
func (c *SessionController) Shutdown() {
	c.bridge.StopAll()
}

func (c *SessionController) summarize(session domain.Session) SessionSummary {
	return SessionSummary{
		Session:       session,
		ListenerCount: c.registry.Count(session.Code),
		ListenerURL:   fmt.Sprintf("%s/listener/%s", c.cfg.PublicBaseURL, session.Code),
	}
}
