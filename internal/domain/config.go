package domain

import (
	"fmt"
	"strings"
)

// Session defaults matching the avatar service expectations.
const (
	DefaultAvatarCharacter = "lisa"
	DefaultAvatarStyle     = "casual-sitting"
	DefaultBackgroundColor = "#FFFFFFFF"
)

// NormalizeConfig trims owner-supplied values, applies avatar defaults and
// validates the required locale fields. The session name default depends on
// the generated code, so stores fill it afterwards.
func NormalizeConfig(cfg SessionConfig) (SessionConfig, error) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.SourceLanguage = strings.TrimSpace(cfg.SourceLanguage)
	cfg.TargetLanguage = strings.TrimSpace(cfg.TargetLanguage)
	cfg.TargetVoice = strings.TrimSpace(cfg.TargetVoice)
	cfg.Avatar.Character = strings.TrimSpace(cfg.Avatar.Character)
	cfg.Avatar.Style = strings.TrimSpace(cfg.Avatar.Style)
	cfg.Avatar.BackgroundColor = strings.TrimSpace(cfg.Avatar.BackgroundColor)

	if cfg.SourceLanguage == "" {
		return SessionConfig{}, fmt.Errorf("%w: sourceLanguage is required", ErrInvalidConfig)
	}
	if cfg.TargetLanguage == "" {
		return SessionConfig{}, fmt.Errorf("%w: targetLanguage is required", ErrInvalidConfig)
	}

	if cfg.Avatar.Character == "" {
		cfg.Avatar.Character = DefaultAvatarCharacter
	}
	if cfg.Avatar.Style == "" {
		cfg.Avatar.Style = DefaultAvatarStyle
	}
	if cfg.Avatar.BackgroundColor == "" {
		cfg.Avatar.BackgroundColor = DefaultBackgroundColor
	}
	return cfg, nil
}
