// Loading of YAML configuration with environment variable expansion and
// .env support.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} or $VAR_NAME in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Z_][A-Z0-9_]*)`)

// Load reads and parses a YAML configuration file. .env files are loaded
// first (without overriding the real environment), ${VAR} references in the
// YAML are expanded, and secrets are resolved from the environment when the
// file leaves them empty.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse([]byte(expandEnvVars(string(data))))
	if err != nil {
		return nil, err
	}

	resolveSecrets(cfg)
	return cfg, nil
}

// LoadOrDefault loads the config file when path is non-empty and the file
// exists; otherwise it returns defaults with secrets from the environment.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	loadEnvFiles()
	for _, candidate := range []string{"config.yaml", "config.yml", "personabot.yaml"} {
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}
	}

	cfg := DefaultConfig()
	resolveSecrets(cfg)
	return cfg, nil
}

// Parse parses YAML bytes over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

// loadEnvFiles loads .env files from standard locations.
// godotenv.Load does not overwrite existing env vars.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR} and $VAR references with environment values.
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

// resolveSecrets fills credentials from the environment when the config
// file does not carry them.
func resolveSecrets(cfg *Config) {
	if cfg.Discord.Token == "" {
		cfg.Discord.Token = os.Getenv("PERSONABOT_DISCORD_TOKEN")
	}
	if cfg.Discord.ApplicationID == "" {
		cfg.Discord.ApplicationID = os.Getenv("PERSONABOT_APPLICATION_ID")
	}
	if cfg.API.APIKey == "" {
		cfg.API.APIKey = os.Getenv("PERSONABOT_API_KEY")
		if cfg.API.APIKey == "" {
			cfg.API.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}
