// Package config loads seriesbot configuration.
// Source priority (highest to lowest): environment variables,
// an optional YAML file (SERIESBOT_CONFIG or ~/.config/seriesbot/config.yaml),
// then built-in defaults.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LLM provider names accepted in configuration.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// TVDB catalog access
	TVDBURL    string
	TVDBAPIKey string
	TVDBPin    string

	// LLM
	LLMProvider     string
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Conversation
	HistoryWindow  int
	SearchLimit    int
	SessionTTL     time.Duration
	MaxSessions    int
	LLMTimeout     time.Duration
	CatalogTimeout time.Duration

	// Server
	ServerPort string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig mirrors the YAML config file layout. All fields are optional;
// anything unset falls through to the defaults.
type fileConfig struct {
	TVDB struct {
		URL    string `yaml:"url"`
		APIKey string `yaml:"api_key"`
		Pin    string `yaml:"pin"`
	} `yaml:"tvdb"`
	LLM struct {
		Provider        string `yaml:"provider"`
		Model           string `yaml:"model"`
		OllamaHost      string `yaml:"ollama_host"`
		OpenAIAPIKey    string `yaml:"openai_api_key"`
		AnthropicAPIKey string `yaml:"anthropic_api_key"`
	} `yaml:"llm"`
	Chat struct {
		HistoryWindow  int    `yaml:"history_window"`
		SearchLimit    int    `yaml:"search_limit"`
		SessionTTL     string `yaml:"session_ttl"`
		MaxSessions    int    `yaml:"max_sessions"`
		LLMTimeout     string `yaml:"llm_timeout"`
		CatalogTimeout string `yaml:"catalog_timeout"`
	} `yaml:"chat"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		File  string `yaml:"file"`
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads configuration from the YAML file (if present) and the environment.
func Load() Config {
	fc := loadFile()

	return Config{
		TVDBURL:    getEnv("TVDB_API_URL", or(fc.TVDB.URL, "https://api4.thetvdb.com/v4")),
		TVDBAPIKey: getEnv("TVDB_API_KEY", fc.TVDB.APIKey),
		TVDBPin:    getEnv("TVDB_PIN", fc.TVDB.Pin),

		LLMProvider:     getEnv("SERIESBOT_LLM_PROVIDER", or(fc.LLM.Provider, ProviderOllama)),
		LLMModel:        getEnv("SERIESBOT_LLM_MODEL", or(fc.LLM.Model, "llama3.2")),
		OllamaHost:      getEnv("OLLAMA_HOST", or(fc.LLM.OllamaHost, "http://localhost:11434")),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", fc.LLM.OpenAIAPIKey),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", fc.LLM.AnthropicAPIKey),

		HistoryWindow:  getEnvInt("SERIESBOT_HISTORY_WINDOW", orInt(fc.Chat.HistoryWindow, 10)),
		SearchLimit:    getEnvInt("SERIESBOT_SEARCH_LIMIT", orInt(fc.Chat.SearchLimit, 5)),
		SessionTTL:     getEnvDuration("SERIESBOT_SESSION_TTL", orDuration(fc.Chat.SessionTTL, 24*time.Hour)),
		MaxSessions:    getEnvInt("SERIESBOT_MAX_SESSIONS", orInt(fc.Chat.MaxSessions, 1000)),
		LLMTimeout:     getEnvDuration("SERIESBOT_LLM_TIMEOUT", orDuration(fc.Chat.LLMTimeout, 30*time.Second)),
		CatalogTimeout: getEnvDuration("SERIESBOT_CATALOG_TIMEOUT", orDuration(fc.Chat.CatalogTimeout, 10*time.Second)),

		ServerPort: getEnv("SERIESBOT_SERVER_PORT", or(fc.Server.Port, "8487")),

		LogFile:  getEnv("SERIESBOT_LOG_FILE", or(fc.Log.File, "/tmp/seriesbot.log")),
		LogLevel: parseLogLevel(getEnv("SERIESBOT_LOG_LEVEL", or(fc.Log.Level, "INFO"))),
	}
}

// loadFile reads the optional YAML config. Missing or malformed files are
// ignored; env vars and defaults still apply.
func loadFile() fileConfig {
	var fc fileConfig

	path := os.Getenv("SERIESBOT_CONFIG")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fc
		}
		path = filepath.Join(home, ".config", "seriesbot", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fc
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		slog.Warn("ignoring malformed config file", "path", path, "error", err)
		return fileConfig{}
	}
	return fc
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func or(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

func orInt(val, defaultVal int) int {
	if val > 0 {
		return val
	}
	return defaultVal
}

func orDuration(val string, defaultVal time.Duration) time.Duration {
	if val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
