package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jholhewres/personabot/pkg/personabot/ratelimit"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.History.Limit != 10 {
		t.Errorf("history limit = %d, want 10", cfg.History.Limit)
	}
	if cfg.Responses.MaxSentences != 5 {
		t.Errorf("max sentences = %d, want 5", cfg.Responses.MaxSentences)
	}
	if cfg.Persona.Default != "helpful_assistant" {
		t.Errorf("default persona = %q, want helpful_assistant", cfg.Persona.Default)
	}
	if cfg.API.MaxTokens != 500 {
		t.Errorf("max tokens = %d, want 500", cfg.API.MaxTokens)
	}
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
name: testbot
history:
  limit: 20
rate_limits:
  message:
    max: 3
    window_seconds: 30
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Name != "testbot" {
		t.Errorf("name = %q, want testbot", cfg.Name)
	}
	if cfg.History.Limit != 20 {
		t.Errorf("history limit = %d, want 20", cfg.History.Limit)
	}
	// Untouched fields keep defaults.
	if cfg.Responses.MaxSentences != 5 {
		t.Errorf("max sentences = %d, want default 5", cfg.Responses.MaxSentences)
	}

	limits := cfg.Limits()
	if got := limits.User[ratelimit.KindMessage]; got.Max != 3 || got.Window != 30*time.Second {
		t.Errorf("message limit = %+v, want 3 per 30s", got)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_BOT_NAME", "from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("name: ${TEST_BOT_NAME}\n"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Name != "from-env" {
		t.Errorf("name = %q, want from-env", cfg.Name)
	}
}

func TestResolveSecretsFromEnv(t *testing.T) {
	t.Setenv("PERSONABOT_DISCORD_TOKEN", "token-123")
	t.Setenv("PERSONABOT_API_KEY", "key-456")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("name: secret-test\n"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Discord.Token != "token-123" {
		t.Errorf("token = %q, want token-123", cfg.Discord.Token)
	}
	if cfg.API.APIKey != "key-456" {
		t.Errorf("api key = %q, want key-456", cfg.API.APIKey)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Discord.Token = "t"
	cfg.API.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cfg.Persona.Default = "nobody"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown default persona accepted")
	}

	cfg = DefaultConfig()
	cfg.API.APIKey = "k"
	if err := cfg.Validate(); err == nil {
		t.Error("missing discord token accepted")
	}
}

func TestLimitsSkipsZeroGuildCeilings(t *testing.T) {
	cfg := DefaultConfig()
	limits := cfg.Limits()

	if _, ok := limits.Guild[ratelimit.KindCommand]; ok {
		t.Error("command kind should have no guild ceiling")
	}
	if got := limits.Guild[ratelimit.KindImage]; got.Max != 10 || got.Window != 600*time.Second {
		t.Errorf("image guild limit = %+v, want 10 per 600s", got)
	}
}
