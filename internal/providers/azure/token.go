package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// IceToken is the relay token document the avatar service issues. Tokens are
// valid for ten minutes; the refresher renews them every nine.
type IceToken struct {
	Urls     []string `json:"Urls"`
	Username string   `json:"Username"`
	Password string   `json:"Password"`
}

// IceOverride pins a customized ICE server instead of the fetched token.
type IceOverride struct {
	ServerURL       string
	ServerURLRemote string
	Username        string
	Password        string
}

func (o IceOverride) enabled() bool {
	return o.ServerURL != "" && o.Username != "" && o.Password != ""
}

// TokenSource holds the current relay token and refreshes it in the
// background.
type TokenSource struct {
	cfg      Config
	override IceOverride
	client   *http.Client
	log      *slog.Logger

	mu    sync.RWMutex
	token *IceToken
}

func NewTokenSource(cfg Config, override IceOverride, log *slog.Logger) *TokenSource {
	return &TokenSource{
		cfg:      cfg,
		override: override,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

// Current returns the active ICE token. The second return is false until the
// first successful refresh.
func (t *TokenSource) Current() (IceToken, bool) {
	if t.override.enabled() {
		url := t.override.ServerURL
		if t.override.ServerURLRemote != "" {
			url = t.override.ServerURLRemote
		}
		return IceToken{
			Urls:     []string{url},
			Username: t.override.Username,
			Password: t.override.Password,
		}, true
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.token == nil {
		return IceToken{}, false
	}
	return *t.token, true
}

// ClientToken returns the token clients should use for their own WebRTC
// candidates; the override's local URL wins over the remote one here.
func (t *TokenSource) ClientToken() (IceToken, bool) {
	if t.override.enabled() {
		return IceToken{
			Urls:     []string{t.override.ServerURL},
			Username: t.override.Username,
			Password: t.override.Password,
		}, true
	}
	return t.Current()
}

// Run refreshes the token until ctx is cancelled.
func (t *TokenSource) Run(ctx context.Context, interval time.Duration) {
	if t.override.enabled() {
		return
	}
	if interval <= 0 {
		interval = 9 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := t.Refresh(ctx); err != nil {
			t.log.Warn("ice token refresh failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Refresh fetches a fresh relay token.
func (t *TokenSource) Refresh(ctx context.Context) error {
	url := t.tokenURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", t.cfg.Key)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch ice token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ice token endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	var token IceToken
	if err := json.Unmarshal(body, &token); err != nil {
		return fmt.Errorf("malformed ice token: %w", err)
	}
	if len(token.Urls) == 0 {
		return fmt.Errorf("ice token has no server urls")
	}

	t.mu.Lock()
	t.token = &token
	t.mu.Unlock()
	t.log.Debug("ice token refreshed")
	return nil
}

func (t *TokenSource) tokenURL() string {
	base := strings.TrimRight(t.cfg.PrivateEndpoint, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.tts.speech.microsoft.com", t.cfg.Region)
	}
	return base + "/cognitiveservices/avatar/relay/token/v1"
}
