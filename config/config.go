/*
Package config loads runtime configuration.

Sources, lowest to highest precedence: built-in defaults, an optional
config file (workforce.yaml), and WORKFORCE_* environment variables
(dots become underscores, e.g. WORKFORCE_BILLING_HOURLY_RATE).
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Billing BillingConfig
	Auth    AuthConfig
}

type ServerConfig struct {
	Port           int
	DBPath         string
	RequestTimeout time.Duration
}

type BillingConfig struct {
	HourlyRate decimal.Decimal
	UnitRate   decimal.Decimal
}

type AuthConfig struct {
	// SessionKey signs the session cookie. Random per-process when empty.
	SessionKey string

	// AdminUsername/AdminPassword seed the admin account on startup.
	AdminUsername string
	AdminPassword string
}

// Load reads configuration. path may name a config file; empty means
// defaults plus environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.db_path", "workforce.db")
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("billing.hourly_rate", 50.0)
	v.SetDefault("billing.unit_rate", 5.0)
	v.SetDefault("auth.session_key", "")
	v.SetDefault("auth.admin_username", "admin")
	v.SetDefault("auth.admin_password", "")

	v.SetEnvPrefix("WORKFORCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	timeout, err := time.ParseDuration(v.GetString("server.request_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid server.request_timeout: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           v.GetInt("server.port"),
			DBPath:         v.GetString("server.db_path"),
			RequestTimeout: timeout,
		},
		Billing: BillingConfig{
			HourlyRate: decimal.NewFromFloat(v.GetFloat64("billing.hourly_rate")),
			UnitRate:   decimal.NewFromFloat(v.GetFloat64("billing.unit_rate")),
		},
		Auth: AuthConfig{
			SessionKey:    v.GetString("auth.session_key"),
			AdminUsername: v.GetString("auth.admin_username"),
			AdminPassword: v.GetString("auth.admin_password"),
		},
	}, nil
}
