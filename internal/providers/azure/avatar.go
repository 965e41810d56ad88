package azure

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"voicebridge/internal/domain"
)

// transparentKeyColor replaces the configured background when the session
// asks for a transparent avatar; clients key it out.
const transparentKeyColor = "#00FF00FF"

// Signaler relays a viewer's SDP offer to the avatar service's negotiation
// endpoint and returns the SDP answer verbatim. It never inspects or mutates
// SDP content, and it never retries; retry policy belongs to callers.
type Signaler struct {
	cfg    Config
	tokens *TokenSource
	client *http.Client
	log    *slog.Logger
}

func NewSignaler(cfg Config, tokens *TokenSource, log *slog.Logger) *Signaler {
	return &Signaler{
		cfg:    cfg,
		tokens: tokens,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

func (s *Signaler) Negotiate(ctx context.Context, localOffer string, cfg domain.AvatarConfig, voice string) (string, error) {
	localOffer = strings.TrimSpace(localOffer)
	if localOffer == "" {
		return "", fmt.Errorf("%w: empty offer", domain.ErrInvalidOffer)
	}
	// Offers arrive as base64-wrapped session descriptions.
	if _, err := base64.StdEncoding.DecodeString(localOffer); err != nil {
		return "", fmt.Errorf("%w: offer is not base64", domain.ErrInvalidOffer)
	}
	if strings.TrimSpace(s.cfg.Key) == "" {
		return "", fmt.Errorf("%w: SPEECH_KEY is not configured", domain.ErrUpstreamUnavailable)
	}

	ice, ok := s.tokens.Current()
	if !ok {
		return "", fmt.Errorf("%w: no ice token available yet", domain.ErrUpstreamUnavailable)
	}

	doc := buildNegotiationDocument(localOffer, cfg, voice, ice)
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.negotiateURL(), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.cfg.Key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.log.Warn("avatar negotiation rejected", "status", resp.StatusCode)
		return "", fmt.Errorf("%w: negotiation endpoint returned %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	answer := strings.TrimSpace(string(body))
	if answer == "" {
		return "", fmt.Errorf("%w: empty answer from negotiation endpoint", domain.ErrUpstreamUnavailable)
	}
	return answer, nil
}

func (s *Signaler) negotiateURL() string {
	base := strings.TrimRight(s.cfg.PrivateEndpoint, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.tts.speech.microsoft.com", s.cfg.Region)
	}
	return base + "/cognitiveservices/avatar/relay/negotiate/v1"
}

// Negotiation document shape expected by the avatar service.
type negotiationDocument struct {
	Synthesis synthesisConfig `json:"synthesis"`
	Voice     string          `json:"voice,omitempty"`
}

type synthesisConfig struct {
	Video videoConfig `json:"video"`
}

type videoConfig struct {
	Protocol      protocolConfig `json:"protocol"`
	Format        formatConfig   `json:"format"`
	TalkingAvatar avatarDocument `json:"talkingAvatar"`
}

type protocolConfig struct {
	Name         string       `json:"name"`
	WebRTCConfig webrtcConfig `json:"webrtcConfig"`
}

type webrtcConfig struct {
	ClientDescription string      `json:"clientDescription"`
	IceServers        []iceServer `json:"iceServers"`
}

type iceServer struct {
	Urls       []string `json:"urls"`
	Username   string   `json:"username"`
	Credential string   `json:"credential"`
}

type formatConfig struct {
	Crop    cropConfig `json:"crop"`
	Bitrate int        `json:"bitrate"`
}

type cropConfig struct {
	TopLeft     point `json:"topLeft"`
	BottomRight point `json:"bottomRight"`
}

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type avatarDocument struct {
	Customized      bool             `json:"customized"`
	Character       string           `json:"character"`
	Style           string           `json:"style,omitempty"`
	Background      backgroundConfig `json:"background"`
	UseBuiltInVoice bool             `json:"useBuiltInVoice"`
}

type backgroundConfig struct {
	Color string `json:"color"`
}

func buildNegotiationDocument(localOffer string, cfg domain.AvatarConfig, voice string, ice IceToken) negotiationDocument {
	character := cfg.Character
	if character == "" {
		character = domain.DefaultAvatarCharacter
	}
	// Custom avatars carry their style in the model itself.
	style := cfg.Style
	if cfg.IsCustomAvatar {
		style = ""
	}
	background := cfg.BackgroundColor
	if background == "" {
		background = domain.DefaultBackgroundColor
	}
	if cfg.TransparentBackground {
		background = transparentKeyColor
	}

	crop := cropConfig{
		TopLeft:     point{X: 0, Y: 0},
		BottomRight: point{X: 1920, Y: 1080},
	}
	if cfg.VideoCrop {
		crop.TopLeft.X = 600
		crop.BottomRight.X = 1320
	}

	return negotiationDocument{
		Voice: voice,
		Synthesis: synthesisConfig{
			Video: videoConfig{
				Protocol: protocolConfig{
					Name: "WebRTC",
					WebRTCConfig: webrtcConfig{
						ClientDescription: localOffer,
						IceServers: []iceServer{{
							Urls:       ice.Urls[:1],
							Username:   ice.Username,
							Credential: ice.Password,
						}},
					},
				},
				Format: formatConfig{
					Crop:    crop,
					Bitrate: 1000000,
				},
				TalkingAvatar: avatarDocument{
					Customized:      cfg.IsCustomAvatar,
					Character:       character,
					Style:           style,
					Background:      backgroundConfig{Color: background},
					UseBuiltInVoice: cfg.UseBuiltInVoice,
				},
			},
		},
	}
}
