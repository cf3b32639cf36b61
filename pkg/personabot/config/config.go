// Package config defines the bot configuration and its defaults.
package config

import (
	"fmt"
	"time"

	"github.com/jholhewres/personabot/pkg/personabot/personas"
	"github.com/jholhewres/personabot/pkg/personabot/ratelimit"
)

// Config holds all bot configuration.
type Config struct {
	// Name is the bot name shown in logs.
	Name string `yaml:"name"`

	// Discord configures the gateway connection.
	Discord DiscordConfig `yaml:"discord"`

	// API configures the generation backend.
	API APIConfig `yaml:"api"`

	// Persona configures the default persona for new servers.
	Persona PersonaConfig `yaml:"persona"`

	// History configures conversational context depth.
	History HistoryConfig `yaml:"history"`

	// Responses configures reply post-processing.
	Responses ResponsesConfig `yaml:"responses"`

	// RateLimits configures admission ceilings per action kind.
	RateLimits RateLimitsConfig `yaml:"rate_limits"`

	// Database configures the persistent store.
	Database DatabaseConfig `yaml:"database"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// DiscordConfig holds gateway credentials.
type DiscordConfig struct {
	// Token is the bot token.
	Token string `yaml:"token"`

	// ApplicationID is the application ID used to register slash commands.
	ApplicationID string `yaml:"application_id"`
}

// APIConfig configures the OpenAI-compatible generation endpoint.
type APIConfig struct {
	// BaseURL is the API base URL (default OpenAI).
	BaseURL string `yaml:"base_url"`

	// APIKey is the bearer token.
	APIKey string `yaml:"api_key"`

	// Model is the chat model.
	Model string `yaml:"model"`

	// MaxTokens caps generated output length.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is the sampling temperature.
	Temperature float64 `yaml:"temperature"`

	// ImageModel is the image generation model.
	ImageModel string `yaml:"image_model"`

	// ImageSize is the generated image resolution.
	ImageSize string `yaml:"image_size"`
}

// PersonaConfig selects the fallback persona for uninitialized servers.
type PersonaConfig struct {
	Default string `yaml:"default"`
}

// HistoryConfig bounds the conversational context.
type HistoryConfig struct {
	// Limit is how many recent turns are supplied to the generation call.
	Limit int `yaml:"limit"`
}

// ResponsesConfig configures reply post-processing.
type ResponsesConfig struct {
	// MaxSentences is the default sentence cap for users without a stored
	// preference. 0 disables truncation.
	MaxSentences int `yaml:"max_sentences"`
}

// LimitConfig is one ceiling: max requests per window. A zero GuildMax
// means no guild-wide ceiling for the kind.
type LimitConfig struct {
	Max            int `yaml:"max"`
	WindowSeconds  int `yaml:"window_seconds"`
	GuildMax       int `yaml:"guild_max"`
	GuildWindowSec int `yaml:"guild_window_seconds"`
}

// RateLimitsConfig holds the per-kind ceilings.
type RateLimitsConfig struct {
	Message LimitConfig `yaml:"message"`
	Command LimitConfig `yaml:"command"`
	Image   LimitConfig `yaml:"image"`
	Insult  LimitConfig `yaml:"insult"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds log level and format.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// DefaultConfig returns the stock configuration. Loaded YAML overlays it.
func DefaultConfig() *Config {
	return &Config{
		Name: "personabot",
		API: APIConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   500,
			Temperature: 0.7,
			ImageModel:  "dall-e-3",
			ImageSize:   "1024x1024",
		},
		Persona:   PersonaConfig{Default: personas.Default},
		History:   HistoryConfig{Limit: 10},
		Responses: ResponsesConfig{MaxSentences: 5},
		RateLimits: RateLimitsConfig{
			Message: LimitConfig{Max: 10, WindowSeconds: 60, GuildMax: 30, GuildWindowSec: 60},
			Command: LimitConfig{Max: 5, WindowSeconds: 60},
			Image:   LimitConfig{Max: 3, WindowSeconds: 300, GuildMax: 10, GuildWindowSec: 600},
			Insult:  LimitConfig{Max: 2, WindowSeconds: 300},
		},
		Database: DatabaseConfig{Path: "data/personabot.db"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

// Validate checks the parts of the config the bot cannot run without.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord token is required (set PERSONABOT_DISCORD_TOKEN)")
	}
	if c.API.APIKey == "" {
		return fmt.Errorf("API key is required (set PERSONABOT_API_KEY)")
	}
	if _, err := personas.Get(c.Persona.Default); err != nil {
		return fmt.Errorf("default persona: %w", err)
	}
	if c.History.Limit <= 0 {
		return fmt.Errorf("history limit must be positive, got %d", c.History.Limit)
	}
	return nil
}

// Limits converts the config ceilings into governor limits.
func (c *Config) Limits() ratelimit.Limits {
	limits := ratelimit.Limits{
		User:  make(map[ratelimit.Kind]ratelimit.Limit),
		Guild: make(map[ratelimit.Kind]ratelimit.Limit),
	}

	add := func(kind ratelimit.Kind, lc LimitConfig) {
		if lc.Max > 0 {
			limits.User[kind] = ratelimit.Limit{
				Max:    lc.Max,
				Window: time.Duration(lc.WindowSeconds) * time.Second,
			}
		}
		if lc.GuildMax > 0 {
			limits.Guild[kind] = ratelimit.Limit{
				Max:    lc.GuildMax,
				Window: time.Duration(lc.GuildWindowSec) * time.Second,
			}
		}
	}

	add(ratelimit.KindMessage, c.RateLimits.Message)
	add(ratelimit.KindCommand, c.RateLimits.Command)
	add(ratelimit.KindImage, c.RateLimits.Image)
	add(ratelimit.KindInsult, c.RateLimits.Insult)
	return limits
}
