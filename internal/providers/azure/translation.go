package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voicebridge/internal/domain"
	"voicebridge/internal/ports"
)

// Config controls the speech service connection.
type Config struct {
	Region          string
	Key             string
	PrivateEndpoint string
}

// Provider implements ports.TranslationProvider against the cloud speech
// translation websocket endpoint.
type Provider struct {
	cfg Config
}

func NewProvider(cfg Config) *Provider {
	return &Provider{cfg: cfg}
}

func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.TranslationSession, error) {
	if strings.TrimSpace(p.cfg.Key) == "" {
		return nil, fmt.Errorf("%w: SPEECH_KEY is not configured", domain.ErrUpstreamUnavailable)
	}
	if p.cfg.Region == "" && p.cfg.PrivateEndpoint == "" {
		return nil, fmt.Errorf("%w: SPEECH_REGION is not configured", domain.ErrUpstreamUnavailable)
	}

	wsURL, err := buildStreamURL(p.cfg, cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Ocp-Apim-Subscription-Key", p.cfg.Key)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	target := ""
	if len(cfg.TargetLanguages) > 0 {
		target = cfg.TargetLanguages[0]
	}
	session := &translationSession{
		conn:           conn,
		sourceLanguage: cfg.SourceLanguage,
		targetLanguage: target,
		events:         make(chan domain.TranslationEvent, 64),
		audio:          make(chan []byte, 32),
		done:           make(chan struct{}),
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.events)
		close(session.done)
		_ = conn.Close()
	}()

	go func() {
		<-ctx.Done()
		_ = session.Close()
	}()

	return session, nil
}

type translationSession struct {
	conn *websocket.Conn

	sourceLanguage string
	targetLanguage string

	events chan domain.TranslationEvent
	audio  chan []byte
	done   chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func (s *translationSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	closed := s.sendClosed
	s.sendMu.RUnlock()
	if closed {
		return errors.New("audio stream is already closed")
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("session closed")
	}
}

func (s *translationSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *translationSession) Events() <-chan domain.TranslationEvent {
	return s.events
}

func (s *translationSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *translationSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *translationSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *translationSession) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *translationSession) writeLoop() {
	defer s.wg.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.setErr(fmt.Errorf("failed to send audio: %w", err))
			return
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stream.end"}`)); err != nil {
		s.setErr(fmt.Errorf("failed to close stream: %w", err))
	}
}

func (s *translationSession) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read translation event: %w", err))
			return
		}

		var response translationResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "speech service returned an unknown error"
			}
			s.setErr(errors.New(message))
			return
		}

		// Partial hypotheses are revised upstream; only finals fan out.
		if !strings.EqualFold(response.Type, "translation.final") {
			continue
		}

		translated := response.translationFor(s.targetLanguage)
		if response.Text == "" && translated == "" {
			continue
		}

		s.emit(domain.TranslationEvent{
			SourceText:     response.Text,
			TranslatedText: translated,
			SourceLanguage: s.sourceLanguage,
			TargetLanguage: s.targetLanguage,
			Timestamp:      time.Now().UTC(),
		})
	}
}

// emit blocks until the consumer takes the event; a recognized final result
// is never dropped on a burst. The consumer drains Events until it closes,
// so the send always completes.
func (s *translationSession) emit(event domain.TranslationEvent) {
	select {
	case s.events <- event:
	case <-s.done:
	}
}

type translationResponse struct {
	Type         string            `json:"type"`
	Message      string            `json:"message"`
	Text         string            `json:"text"`
	Translations map[string]string `json:"translations"`
}

// translationFor resolves the translation for a locale tag, falling back to
// its bare language code ("es" for "es-ES").
func (r translationResponse) translationFor(locale string) string {
	if text, ok := r.Translations[locale]; ok {
		return strings.TrimSpace(text)
	}
	lang, _, _ := strings.Cut(locale, "-")
	return strings.TrimSpace(r.Translations[lang])
}

func buildStreamURL(providerCfg Config, streamCfg ports.StreamingConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.PrivateEndpoint)
	if base == "" {
		base = fmt.Sprintf("https://%s.stt.speech.microsoft.com", providerCfg.Region)
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	streamURL, err := url.Parse(base + "/speech/translation/v1/stream")
	if err != nil {
		return "", fmt.Errorf("invalid speech endpoint: %w", err)
	}

	if streamCfg.Encoding == "" {
		streamCfg.Encoding = "linear16"
	}
	if streamCfg.SampleRate <= 0 {
		streamCfg.SampleRate = 16000
	}
	if streamCfg.Channels <= 0 {
		streamCfg.Channels = 1
	}

	targets := make([]string, 0, len(streamCfg.TargetLanguages))
	for _, locale := range streamCfg.TargetLanguages {
		lang, _, _ := strings.Cut(locale, "-")
		targets = append(targets, lang)
	}

	query := streamURL.Query()
	query.Set("from", streamCfg.SourceLanguage)
	query.Set("to", strings.Join(targets, ","))
	query.Set("encoding", streamCfg.Encoding)
	query.Set("sample_rate", fmt.Sprintf("%d", streamCfg.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", streamCfg.Channels))
	streamURL.RawQuery = query.Encode()
	return streamURL.String(), nil
}
