package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling and env for environment variable binding.
type ServerConfig struct {
	HTTPPort  string `mapstructure:"HTTP_PORT"`
	PublicURL string `mapstructure:"PUBLIC_URL"` // Externally visible base URL, used in redirects and discovery

	RedisAddr     string `mapstructure:"REDIS_ADDR"` // Empty selects the in-memory store
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	StorePrefix   string `mapstructure:"STORE_PREFIX"`

	SlackAPIURL string `mapstructure:"SLACK_API_URL"`

	OAuthClientID   string        `mapstructure:"OAUTH_CLIENT_ID"`
	OAuthCodeTTL    time.Duration `mapstructure:"OAUTH_CODE_TTL"`
	AdminKey        string        `mapstructure:"ADMIN_KEY"` // Empty disables the admin surface
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	LogPretty       bool          `mapstructure:"LOG_PRETTY"`
	OtelServiceName string        `mapstructure:"OTEL_SERVICE_NAME"`
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/remote-slack-server/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("PUBLIC_URL", "http://localhost:8080")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("STORE_PREFIX", "smcp")
	v.SetDefault("SLACK_API_URL", "https://slack.com/api")
	v.SetDefault("OAUTH_CLIENT_ID", "slack-mcp-server")
	v.SetDefault("OAUTH_CODE_TTL", 10*time.Minute)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "remote-slack-server")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, we fall back to defaults and env.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
