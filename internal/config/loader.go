// Package config loads the RLM orchestrator's run configuration from the
// environment (optionally via a .env file) with a YAML override file layered
// on top, following the teacher codebase's env-first config loading idiom.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

// TelemetryConfig controls OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// Config is the immutable, per-process run configuration for one RLM
// orchestrator. Every field maps directly onto the Config described in
// SPEC_FULL.md §3, plus the ambient logging/telemetry knobs the teacher
// codebase always carries alongside a domain config.
type Config struct {
	// Provider selects the LM client adapter: "openai" (default), "anthropic",
	// "google", or "local" (any OpenAI-compatible server reachable at BaseURL,
	// credentialed via APIKey rather than a well-known environment variable).
	Provider string `yaml:"provider"`
	// Model is the model identifier passed to the provider for both the root
	// LM and the llm_query sub-LM.
	Model string `yaml:"model"`
	// BaseURL overrides the provider's default API endpoint (self-hosted gateways, proxies).
	BaseURL string `yaml:"base_url,omitempty"`
	// APIKey is the provider credential. When empty, the provider adapter
	// falls back to its well-known environment variable.
	APIKey string `yaml:"-"`

	Temperature     float64 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens,omitempty"`
	MaxIterations   int     `yaml:"max_iterations"`
	MaxExecRetries  int     `yaml:"max_exec_retries"`

	Verbose bool `yaml:"verbose"`
	ExecLog bool `yaml:"exec_log"`

	LogPath     string `yaml:"log_path,omitempty"`
	LogLevel    string `yaml:"log_level"`
	LogPayloads bool   `yaml:"log_payloads"`

	OTel TelemetryConfig `yaml:"otel"`
}

// Default values for fields that are awkward to express as Go zero values.
const (
	DefaultModel          = "gpt-4o"
	DefaultMaxIterations  = 20
	DefaultMaxExecRetries = 2
	DefaultTemperature    = 0.0
)

// providerAPIKeyEnv names the well-known environment variable carrying the
// credential for each supported provider, mirroring the teacher's
// OPENAI_API_KEY / ANTHROPIC_API_KEY / GOOGLE_LLM_API_KEY convention.
var providerAPIKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"google":    "GOOGLE_LLM_API_KEY",
}

// Load builds a Config from environment variables (after loading an optional
// .env file) and, when RLM_CONFIG_FILE is set, a YAML file layered underneath.
// Environment variables take precedence over file values.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{
		Provider:       "openai",
		Model:          DefaultModel,
		Temperature:    DefaultTemperature,
		MaxIterations:  DefaultMaxIterations,
		MaxExecRetries: DefaultMaxExecRetries,
		LogLevel:       "info",
		OTel:           TelemetryConfig{ServiceName: "rlm"},
	}

	if path := strings.TrimSpace(os.Getenv("RLM_CONFIG_FILE")); path != "" {
		if err := loadYAMLOverride(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load yaml override %q: %w", path, err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("RLM_PROVIDER")); v != "" {
		cfg.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("RLM_MODEL")); v != "" {
		cfg.Model = v
	}
	if v := firstNonEmpty(strings.TrimSpace(os.Getenv("RLM_BASE_URL")), strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))); v != "" {
		cfg.BaseURL = v
	}
	cfg.MaxIterations = intFromEnv("RLM_MAX_ITERATIONS", cfg.MaxIterations)
	cfg.MaxExecRetries = intFromEnv("RLM_MAX_EXEC_RETRIES", cfg.MaxExecRetries)
	if v := strings.TrimSpace(os.Getenv("RLM_MAX_OUTPUT_TOKENS")); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.MaxOutputTokens = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("RLM_TEMPERATURE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Temperature = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("RLM_VERBOSE")); v != "" {
		cfg.Verbose = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv("RLM_EXEC_LOG")); v != "" {
		cfg.ExecLog = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv("LOG_PATH")); v != "" {
		cfg.LogPath = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_PAYLOADS")); v != "" {
		cfg.LogPayloads = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		cfg.OTel.Endpoint = v
		cfg.OTel.Enabled = true
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); v != "" {
		cfg.OTel.Insecure = parseBool(v)
	}

	if key, ok := providerAPIKeyEnv[cfg.Provider]; ok {
		cfg.APIKey = strings.TrimSpace(os.Getenv(key))
	}
	if v := strings.TrimSpace(os.Getenv("RLM_API_KEY")); v != "" {
		cfg.APIKey = v
	}

	return cfg, nil
}

// Validate checks the parts of Config that must hold before an Orchestrator
// can be constructed, surfacing configuration problems eagerly rather than
// on the first LM call.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model must not be empty")
	}
	if _, ok := providerAPIKeyEnv[c.Provider]; !ok && c.Provider != "local" {
		return fmt.Errorf("unsupported provider %q", c.Provider)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.MaxExecRetries < 0 {
		return fmt.Errorf("max_exec_retries must not be negative, got %d", c.MaxExecRetries)
	}
	return nil
}

func loadYAMLOverride(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := parseInt(v)
	if err != nil {
		return def
	}
	return n
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
