// Package config provides the configuration schema and loader for the
// Intervox interview client.
package config

import (
	"time"

	"github.com/intervox/intervox/internal/resilience"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Variant selects the interview style.
type Variant string

const (
	// VariantBehavioral runs the HR-style interview with warm-up questions.
	VariantBehavioral Variant = "behavioral"

	// VariantTechnical runs the role-specific technical interview.
	VariantTechnical Variant = "technical"
)

// IsValid reports whether v is a recognised interview variant.
func (v Variant) IsValid() bool {
	return v == VariantBehavioral || v == VariantTechnical
}

// Config is the root configuration structure for Intervox.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader];
// environment variables override file values.
type Config struct {
	Service   ServiceConfig          `yaml:"service"`
	Interview InterviewConfig        `yaml:"interview"`
	Providers ProvidersConfig        `yaml:"providers"`
	Retry     resilience.RetryConfig `yaml:"retry"`
	LogLevel  LogLevel               `yaml:"log_level" env:"INTERVOX_LOG_LEVEL"`
}

// ServiceConfig addresses the remote interview service.
type ServiceConfig struct {
	// BaseURL is the interview service API root (e.g., "http://localhost:8085/api/v1").
	BaseURL string `yaml:"base_url" env:"INTERVOX_SERVICE_URL"`

	// Timeout bounds a single request to the service.
	Timeout time.Duration `yaml:"timeout" env:"INTERVOX_SERVICE_TIMEOUT"`

	// BreakerMaxFailures is the consecutive fault count that opens the
	// circuit breaker.
	BreakerMaxFailures int `yaml:"breaker_max_failures"`

	// BreakerCooldown is how long the breaker stays open before probing.
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// InterviewConfig tunes the session flow.
type InterviewConfig struct {
	// Variant is "behavioral" or "technical".
	Variant Variant `yaml:"variant" env:"INTERVOX_VARIANT"`

	// MaxQuestions is the hard ceiling on interviewer questions per
	// session.
	MaxQuestions int `yaml:"max_questions"`

	// AnswerWindow is how long a text-mode answer may take before the
	// timeout placeholder is recorded.
	AnswerWindow time.Duration `yaml:"answer_window"`

	// Voice names the synthesis voice passed to the TTS provider.
	Voice string `yaml:"voice" env:"INTERVOX_VOICE"`
}

// ProvidersConfig selects the speech backends.
type ProvidersConfig struct {
	TTS TTSProviderConfig `yaml:"tts"`
	STT STTProviderConfig `yaml:"stt"`
}

// TTSProviderConfig configures speech synthesis.
type TTSProviderConfig struct {
	// Name is one of "remote", "openai", "mock".
	Name string `yaml:"name" env:"INTERVOX_TTS_PROVIDER"`

	// APIKey authorizes direct vendor access (openai). Unused for remote.
	APIKey string `yaml:"api_key" env:"OPENAI_API_KEY"`

	// Model overrides the provider's default synthesis model.
	Model string `yaml:"model"`

	// CacheTTL is how long synthesized audio stays cached. Zero disables
	// the cache.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// STTProviderConfig configures transcription.
type STTProviderConfig struct {
	// Name is one of "remote", "openai", "deepgram", "mock".
	Name string `yaml:"name" env:"INTERVOX_STT_PROVIDER"`

	// APIKey authorizes direct vendor access (openai, deepgram).
	APIKey string `yaml:"api_key" env:"INTERVOX_STT_API_KEY"`

	// Model overrides the provider's default transcription model.
	Model string `yaml:"model"`

	// Language hints the spoken language (ISO 639-1).
	Language string `yaml:"language"`
}

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"tts": {"remote", "openai", "mock"},
	"stt": {"remote", "openai", "deepgram", "mock"},
}

// applyDefaults fills zero values with the shipped defaults.
func applyDefaults(cfg *Config) {
	if cfg.Service.Timeout <= 0 {
		cfg.Service.Timeout = 30 * time.Second
	}
	if cfg.Service.BreakerMaxFailures <= 0 {
		cfg.Service.BreakerMaxFailures = 5
	}
	if cfg.Service.BreakerCooldown <= 0 {
		cfg.Service.BreakerCooldown = 15 * time.Second
	}
	if cfg.Interview.Variant == "" {
		cfg.Interview.Variant = VariantBehavioral
	}
	if cfg.Interview.MaxQuestions <= 0 {
		cfg.Interview.MaxQuestions = 10
	}
	if cfg.Interview.AnswerWindow <= 0 {
		cfg.Interview.AnswerWindow = 60 * time.Second
	}
	if cfg.Providers.TTS.Name == "" {
		cfg.Providers.TTS.Name = "remote"
	}
	if cfg.Providers.STT.Name == "" {
		cfg.Providers.STT.Name = "remote"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}
}
