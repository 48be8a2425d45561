package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "JAILEON"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabasePath    = "jaileon.db"
	defaultLogLevel        = "info"
	defaultCookieName      = "jaileon_session"
	defaultTimezone        = "Asia/Tokyo"
	defaultGoldenStartHour = 7
	defaultGoldenEndHour   = 10
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress           string
	SessionSigningKey     string
	SessionCookieName     string
	DatabasePath          string
	LogLevel              string
	OracleSeed            string
	Timezone              *time.Location
	GoldenWindowStartHour int
	GoldenWindowEndHour   int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("game.timezone", defaultTimezone)
	configViper.SetDefault("game.golden_start_hour", defaultGoldenStartHour)
	configViper.SetDefault("game.golden_end_hour", defaultGoldenEndHour)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:           configViper.GetString("http.address"),
		SessionSigningKey:     configViper.GetString("session.signing_secret"),
		SessionCookieName:     configViper.GetString("session.cookie_name"),
		DatabasePath:          configViper.GetString("database.path"),
		LogLevel:              configViper.GetString("log.level"),
		OracleSeed:            configViper.GetString("oracle.seed"),
		GoldenWindowStartHour: configViper.GetInt("game.golden_start_hour"),
		GoldenWindowEndHour:   configViper.GetInt("game.golden_end_hour"),
	}

	timezone, err := time.LoadLocation(configViper.GetString("game.timezone"))
	if err != nil {
		return AppConfig{}, fmt.Errorf("game.timezone is invalid: %w", err)
	}
	cfg.Timezone = timezone

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningKey) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.OracleSeed) == "" {
		return fmt.Errorf("oracle.seed is required")
	}
	if c.GoldenWindowStartHour < 0 || c.GoldenWindowStartHour > 23 {
		return fmt.Errorf("game.golden_start_hour must be between 0 and 23")
	}
	if c.GoldenWindowEndHour <= c.GoldenWindowStartHour || c.GoldenWindowEndHour > 24 {
		return fmt.Errorf("game.golden_end_hour must be after game.golden_start_hour and at most 24")
	}
	return nil
}
