package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Feed       FeedConfig
	ElevenLabs ElevenLabsConfig
	Voice      VoiceConfig
	Matcher    MatcherConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// FeedConfig holds catalog feed configuration
type FeedConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	SheetPath string        `mapstructure:"sheet_path"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// ElevenLabsConfig holds speech API configuration. The API key may be
// empty at boot: a missing credential surfaces as an auth error when a
// session starts, not as a startup failure.
type ElevenLabsConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	AgentID string `mapstructure:"agent_id"`
}

// VoiceConfig holds voice session configuration
type VoiceConfig struct {
	Debounce     time.Duration `mapstructure:"debounce"`
	FirstMessage string        `mapstructure:"first_message"`
}

// MatcherConfig holds product matching configuration
type MatcherConfig struct {
	MaxResults         int  `mapstructure:"max_results"`
	EnableDebugLogging bool `mapstructure:"enable_debug_logging"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/marine-demo/")

	// Environment variable settings
	v.SetEnvPrefix("MARINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})

	// Feed defaults
	v.SetDefault("feed.base_url", "https://opensheet.elk.sh")
	v.SetDefault("feed.sheet_path", "1euKbdyTecaQmPZmupqmWfkVhVqp9ZJ4BCTFJHHGmdXI/1")
	v.SetDefault("feed.cache_ttl", "24h")

	// ElevenLabs defaults
	v.SetDefault("elevenlabs.base_url", "https://api.elevenlabs.io")
	v.SetDefault("elevenlabs.agent_id", "sLkZceb7wwYGFIpbKZgT")

	// Voice defaults
	v.SetDefault("voice.debounce", "300ms")

	// Matcher defaults
	v.SetDefault("matcher.max_results", 5)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Feed.BaseURL == "" {
		return fmt.Errorf("feed base URL is required (set MARINE_FEED_BASE_URL)")
	}

	if config.Feed.SheetPath == "" {
		return fmt.Errorf("feed sheet path is required (set MARINE_FEED_SHEET_PATH)")
	}

	if config.ElevenLabs.AgentID == "" {
		return fmt.Errorf("ElevenLabs agent id is required (set MARINE_ELEVENLABS_AGENT_ID)")
	}

	if config.Matcher.MaxResults < 1 {
		return fmt.Errorf("matcher max results must be at least 1, got: %d", config.Matcher.MaxResults)
	}

	return nil
}
