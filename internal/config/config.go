package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backend selectors.
const (
	StoreMemory = "memory"
	StoreValkey = "valkey"
)

// Config stores runtime configuration for the relay server.
type Config struct {
	Server  ServerConfig
	Speech  SpeechConfig
	Ice     IceConfig
	Store   StoreConfig
	Session SessionConfig
	Audio   AudioConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	ListenAddress string
	PublicBaseURL string
	// EmitLegacyEvents also sends the source-compatible "response" envelope
	// alongside each translationResult.
	EmitLegacyEvents bool
}

type SpeechConfig struct {
	Region          string
	Key             string
	PrivateEndpoint string
	DefaultVoice    string
	TokenRefresh    time.Duration
}

// IceConfig overrides the fetched relay token with a customized ICE server.
type IceConfig struct {
	ServerURL       string
	ServerURLRemote string
	Username        string
	Password        string
}

type StoreConfig struct {
	Backend       string
	ValkeyAddress string
}

type SessionConfig struct {
	// TTL expires sessions idle for longer than this. Zero disables expiry.
	TTL           time.Duration
	SweepInterval time.Duration
}

type AudioConfig struct {
	SampleRate  int
	Channels    int
	FrameBuffer int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load resolves configuration from a .env file (if present) and environment
// variables with sensible defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Server: ServerConfig{
			ListenAddress:    envOrDefault("LISTEN_ADDRESS", ":8080"),
			PublicBaseURL:    strings.TrimRight(envOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
			EmitLegacyEvents: envOrDefaultBool("EMIT_LEGACY_EVENTS", false),
		},
		Speech: SpeechConfig{
			Region:          strings.TrimSpace(os.Getenv("SPEECH_REGION")),
			Key:             strings.TrimSpace(os.Getenv("SPEECH_KEY")),
			PrivateEndpoint: strings.TrimSpace(os.Getenv("SPEECH_PRIVATE_ENDPOINT")),
			DefaultVoice:    envOrDefault("DEFAULT_TTS_VOICE", "DragonLatestNeural"),
			TokenRefresh:    envOrDefaultDuration("TOKEN_REFRESH_INTERVAL", 9*time.Minute),
		},
		Ice: IceConfig{
			ServerURL:       strings.TrimSpace(os.Getenv("ICE_SERVER_URL")),
			ServerURLRemote: strings.TrimSpace(os.Getenv("ICE_SERVER_URL_REMOTE")),
			Username:        strings.TrimSpace(os.Getenv("ICE_SERVER_USERNAME")),
			Password:        strings.TrimSpace(os.Getenv("ICE_SERVER_PASSWORD")),
		},
		Store: StoreConfig{
			Backend:       envOrDefault("SESSION_STORE", StoreMemory),
			ValkeyAddress: envOrDefault("VALKEY_ADDRESS", "127.0.0.1:6379"),
		},
		Session: SessionConfig{
			TTL:           envOrDefaultDuration("SESSION_TTL", 0),
			SweepInterval: envOrDefaultDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		},
		Audio: AudioConfig{
			SampleRate:  envOrDefaultInt("AUDIO_SAMPLE_RATE", 16000),
			Channels:    envOrDefaultInt("AUDIO_CHANNELS", 1),
			FrameBuffer: envOrDefaultInt("AUDIO_FRAME_BUFFER", 32),
		},
		Logging: LoggingConfig{
			Level:  envOrDefault("LOG_LEVEL", "info"),
			Format: envOrDefault("LOG_FORMAT", "text"),
		},
	}

	if cfg.Store.Backend != StoreMemory && cfg.Store.Backend != StoreValkey {
		return Config{}, fmt.Errorf("unknown SESSION_STORE %q", cfg.Store.Backend)
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.FrameBuffer < 8 {
		cfg.Audio.FrameBuffer = 32
	}
	if cfg.Session.SweepInterval <= 0 {
		cfg.Session.SweepInterval = time.Minute
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
