// Package config defines the closed set of settings the analysis pipeline is
// parameterized by. Loading it from the process environment is the only
// concern this package owns; routing, DI wiring and the CLI launcher are the
// caller's business.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings is the closed set of recognized configuration options from
// spec.md §6. OpenAIMaxTokens, OpenAITemperature and MetricsEnabled are
// loaded but not read by any component: the LLM request is sent without a
// temperature or max-tokens parameter, and no metrics are exposed.
type Settings struct {
	LogLevel string `yaml:"log_level"`

	OpenAIAPIKey      string  `yaml:"openai_api_key"`
	OpenAIModel       string  `yaml:"openai_model"`
	OpenAIBaseURL     string  `yaml:"openai_base_url"`
	OpenAIMaxTokens   int     `yaml:"openai_max_tokens"`
	OpenAITemperature float64 `yaml:"openai_temperature"`
	LLMTimeoutSeconds int     `yaml:"llm_timeout_seconds"`
	LLMMaxRetries     int     `yaml:"llm_max_retries"`

	RedisURL        string `yaml:"redis_url"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	CacheEnabled    bool   `yaml:"cache_enabled"`

	DatabaseURL string `yaml:"database_url"`

	HeuristicConfidenceThreshold float64 `yaml:"heuristic_confidence_threshold"`
	UseLLMFallback               bool    `yaml:"use_llm_fallback"`

	DefaultTimeMinutes       int `yaml:"default_time_minutes"`
	AchievementDefaultWeight int `yaml:"achievement_default_weight"`

	MetricsEnabled      bool `yaml:"metrics_enabled"`
	PIIRedactionEnabled bool `yaml:"pii_redaction_enabled"`
}

// LLMTimeout returns the LLM call timeout as a duration. The analyzer
// applies it once to the whole LLM call, retries included.
func (s Settings) LLMTimeout() time.Duration {
	return time.Duration(s.LLMTimeoutSeconds) * time.Second
}

// CacheTTL returns the configured cache TTL as a duration.
func (s Settings) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// Defaults returns the baseline Settings, matching config/settings.py's
// field defaults in the original implementation except LLMMaxRetries,
// which is 3 here (see DESIGN.md).
func Defaults() Settings {
	return Settings{
		LogLevel: "info",

		OpenAIModel:       "gpt-4-turbo-preview",
		OpenAIMaxTokens:   2000,
		OpenAITemperature: 0.3,
		LLMTimeoutSeconds: 10,
		LLMMaxRetries:     3,

		RedisURL:        "redis://localhost:6379/0",
		CacheTTLSeconds: 604800,
		CacheEnabled:    true,

		DatabaseURL: "postgres://localhost:5432/diarynlp",

		HeuristicConfidenceThreshold: 0.8,
		UseLLMFallback:               true,

		DefaultTimeMinutes:       10,
		AchievementDefaultWeight: 10,

		MetricsEnabled:      true,
		PIIRedactionEnabled: true,
	}
}

// Load builds Settings from the process environment, optionally loading a
// ".env" file first (missing file is not an error, matching the host's
// godotenv.Load usage). Recognized environment variables are the upper-snake
// form of the yaml tags above, e.g. OPENAI_API_KEY, CACHE_TTL_SECONDS.
func Load() Settings {
	_ = godotenv.Load()

	s := Defaults()

	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		s.LogLevel = v
	}
	if v, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
		s.OpenAIAPIKey = v
	}
	if v, ok := os.LookupEnv("OPENAI_MODEL"); ok {
		s.OpenAIModel = v
	}
	if v, ok := os.LookupEnv("OPENAI_BASE_URL"); ok {
		s.OpenAIBaseURL = v
	}
	if v, ok := envInt("OPENAI_MAX_TOKENS"); ok {
		s.OpenAIMaxTokens = v
	}
	if v, ok := envFloat("OPENAI_TEMPERATURE"); ok {
		s.OpenAITemperature = v
	}
	if v, ok := envInt("LLM_TIMEOUT_SECONDS"); ok {
		s.LLMTimeoutSeconds = v
	}
	if v, ok := envInt("LLM_MAX_RETRIES"); ok {
		s.LLMMaxRetries = v
	}
	if v, ok := os.LookupEnv("REDIS_URL"); ok {
		s.RedisURL = v
	}
	if v, ok := envInt("CACHE_TTL_SECONDS"); ok {
		s.CacheTTLSeconds = v
	}
	if v, ok := envBool("CACHE_ENABLED"); ok {
		s.CacheEnabled = v
	}
	if v, ok := os.LookupEnv("DATABASE_URL"); ok {
		s.DatabaseURL = v
	}
	if v, ok := envFloat("HEURISTIC_CONFIDENCE_THRESHOLD"); ok {
		s.HeuristicConfidenceThreshold = v
	}
	if v, ok := envBool("USE_LLM_FALLBACK"); ok {
		s.UseLLMFallback = v
	}
	if v, ok := envInt("DEFAULT_TIME_MINUTES"); ok {
		s.DefaultTimeMinutes = v
	}
	if v, ok := envInt("ACHIEVEMENT_DEFAULT_WEIGHT"); ok {
		s.AchievementDefaultWeight = v
	}
	if v, ok := envBool("METRICS_ENABLED"); ok {
		s.MetricsEnabled = v
	}
	if v, ok := envBool("PII_REDACTION_ENABLED"); ok {
		s.PIIRedactionEnabled = v
	}

	return s
}

// LoadFromFile overlays YAML configuration onto the defaults, for
// deployments that prefer a config file to environment variables (the
// host's internal/config carries both loading styles).
func LoadFromFile(path string) (Settings, error) {
	s := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, err
	}
	return s, nil
}

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, false
	}
	return b, true
}
