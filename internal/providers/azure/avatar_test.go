package azure

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"voicebridge/internal/domain"
)

func testOffer() string {
	return base64.StdEncoding.EncodeToString([]byte("v=0 fake sdp"))
}

func overrideTokens() *TokenSource {
	return NewTokenSource(Config{}, IceOverride{
		ServerURL: "turn:relay:3478",
		Username:  "user",
		Password:  "pass",
	}, discardLogger())
}

func TestSignalerRejectsInvalidOffers(t *testing.T) {
	t.Parallel()

	s := NewSignaler(Config{Key: "k", Region: "westeurope"}, overrideTokens(), discardLogger())

	_, err := s.Negotiate(context.Background(), "   ", domain.AvatarConfig{}, "")
	if !errors.Is(err, domain.ErrInvalidOffer) {
		t.Fatalf("expected invalid offer for blank input, got %v", err)
	}

	_, err = s.Negotiate(context.Background(), "not base64 !!!", domain.AvatarConfig{}, "")
	if !errors.Is(err, domain.ErrInvalidOffer) {
		t.Fatalf("expected invalid offer for non-base64 input, got %v", err)
	}
}

func TestSignalerRequiresKeyAndToken(t *testing.T) {
	t.Parallel()

	s := NewSignaler(Config{Region: "westeurope"}, overrideTokens(), discardLogger())
	_, err := s.Negotiate(context.Background(), testOffer(), domain.AvatarConfig{}, "")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable without key, got %v", err)
	}

	noToken := NewTokenSource(Config{Region: "westeurope", Key: "k"}, IceOverride{}, discardLogger())
	s = NewSignaler(Config{Region: "westeurope", Key: "k"}, noToken, discardLogger())
	_, err = s.Negotiate(context.Background(), testOffer(), domain.AvatarConfig{}, "")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable without token, got %v", err)
	}
}

func TestSignalerNegotiateSuccess(t *testing.T) {
	t.Parallel()

	offer := testOffer()
	var doc negotiationDocument

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cognitiveservices/avatar/relay/negotiate/v1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "test-key" {
			t.Errorf("missing subscription key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			t.Errorf("failed to decode negotiation document: %v", err)
		}
		_, _ = w.Write([]byte("  answer-sdp  "))
	}))
	defer server.Close()

	s := NewSignaler(Config{PrivateEndpoint: server.URL, Key: "test-key"}, overrideTokens(), discardLogger())
	answer, err := s.Negotiate(context.Background(), offer, domain.AvatarConfig{}, "es-ES-ElviraNeural")
	if err != nil {
		t.Fatalf("negotiate failed: %v", err)
	}
	if answer != "answer-sdp" {
		t.Fatalf("unexpected answer: %q", answer)
	}

	webrtc := doc.Synthesis.Video.Protocol.WebRTCConfig
	if webrtc.ClientDescription != offer {
		t.Fatalf("offer was not relayed verbatim")
	}
	if len(webrtc.IceServers) != 1 || webrtc.IceServers[0].Urls[0] != "turn:relay:3478" {
		t.Fatalf("unexpected ice servers: %+v", webrtc.IceServers)
	}
	if doc.Voice != "es-ES-ElviraNeural" {
		t.Fatalf("unexpected voice: %q", doc.Voice)
	}
	if doc.Synthesis.Video.Protocol.Name != "WebRTC" {
		t.Fatalf("unexpected protocol: %q", doc.Synthesis.Video.Protocol.Name)
	}

	avatar := doc.Synthesis.Video.TalkingAvatar
	if avatar.Character != domain.DefaultAvatarCharacter {
		t.Fatalf("expected default character, got %q", avatar.Character)
	}
	if avatar.Background.Color != domain.DefaultBackgroundColor {
		t.Fatalf("expected default background, got %q", avatar.Background.Color)
	}
	if doc.Synthesis.Video.Format.Bitrate != 1000000 {
		t.Fatalf("unexpected bitrate: %d", doc.Synthesis.Video.Format.Bitrate)
	}
}

func TestSignalerNegotiateUpstreamRejection(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	s := NewSignaler(Config{PrivateEndpoint: server.URL, Key: "k"}, overrideTokens(), discardLogger())
	_, err := s.Negotiate(context.Background(), testOffer(), domain.AvatarConfig{}, "")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
}

func TestSignalerNegotiateEmptyAnswer(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("   "))
	}))
	defer server.Close()

	s := NewSignaler(Config{PrivateEndpoint: server.URL, Key: "k"}, overrideTokens(), discardLogger())
	_, err := s.Negotiate(context.Background(), testOffer(), domain.AvatarConfig{}, "")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable for empty answer, got %v", err)
	}
}

func TestBuildNegotiationDocumentVariants(t *testing.T) {
	t.Parallel()

	ice := IceToken{Urls: []string{"turn:a", "turn:b"}, Username: "u", Password: "p"}

	doc := buildNegotiationDocument("offer", domain.AvatarConfig{
		Character:             "meg",
		Style:                 "formal",
		IsCustomAvatar:        true,
		UseBuiltInVoice:       true,
		TransparentBackground: true,
		VideoCrop:             true,
	}, "voice", ice)

	avatar := doc.Synthesis.Video.TalkingAvatar
	if !avatar.Customized || avatar.Character != "meg" {
		t.Fatalf("unexpected avatar: %+v", avatar)
	}
	if avatar.Style != "" {
		t.Fatalf("custom avatars must not carry a style, got %q", avatar.Style)
	}
	if !avatar.UseBuiltInVoice {
		t.Fatalf("expected built-in voice flag")
	}
	if avatar.Background.Color != transparentKeyColor {
		t.Fatalf("expected transparent key color, got %q", avatar.Background.Color)
	}

	crop := doc.Synthesis.Video.Format.Crop
	if crop.TopLeft.X != 600 || crop.BottomRight.X != 1320 {
		t.Fatalf("unexpected crop: %+v", crop)
	}

	servers := doc.Synthesis.Video.Protocol.WebRTCConfig.IceServers
	if len(servers) != 1 || len(servers[0].Urls) != 1 || servers[0].Urls[0] != "turn:a" {
		t.Fatalf("expected a single ice url, got %+v", servers)
	}

	doc = buildNegotiationDocument("offer", domain.AvatarConfig{BackgroundColor: "#ABCDEF00"}, "", ice)
	if doc.Synthesis.Video.TalkingAvatar.Background.Color != "#ABCDEF00" {
		t.Fatalf("explicit background was overwritten")
	}
	crop = doc.Synthesis.Video.Format.Crop
	if crop.TopLeft.X != 0 || crop.BottomRight.X != 1920 || crop.BottomRight.Y != 1080 {
		t.Fatalf("unexpected full-frame crop: %+v", crop)
	}
}
