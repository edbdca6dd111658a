package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all SDK configuration.
type Config struct {
	APIKey      string
	Environment string

	API     APIConfig
	Cache   CacheConfig
	Redis   RedisConfig
	Sentry  SentryConfig
	Billing BillingConfig

	// VerboseLogging enables pretty-printed HTTP traffic logs.
	VerboseLogging bool
}

// APIConfig holds transport configuration.
type APIConfig struct {
	BaseURL         string
	FallbackHostURL string
	// ConnectTimeout applies to the first attempt; retries use a longer
	// per-attempt connect timeout.
	ConnectTimeout time.Duration
	// RegistrationReadTimeout applies only to the customers endpoint, which
	// can be slower server-side.
	RegistrationReadTimeout time.Duration
	ReadTimeout             time.Duration
}

// CacheConfig holds persistent store configuration.
type CacheConfig struct {
	// Dir is where the file-backed store and rule screen cache live.
	Dir string
	// StalenessWindow is how long a registration result stays fresh.
	StalenessWindow time.Duration
}

// RedisConfig holds the optional redis store backend configuration.
// When URL is empty the file-backed store is used.
type RedisConfig struct {
	URL      string
	PoolSize int
}

// SentryConfig holds error reporting configuration.
type SentryConfig struct {
	DSN     string
	Release string
}

// BillingConfig holds store-side verification configuration.
type BillingConfig struct {
	// PackageName is the Android application id used for Play purchase
	// token verification.
	PackageName string
	// GoogleServiceAccountJSON enables server-side token verification when
	// set; empty disables it (client observer mode).
	GoogleServiceAccountJSON string
}

// Load loads configuration from environment variables with an optional
// .env file.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		APIKey:         viper.GetString("apphud_api_key"),
		Environment:    viper.GetString("apphud_environment"),
		VerboseLogging: viper.GetBool("apphud_verbose_logging"),
		API: APIConfig{
			BaseURL:                 viper.GetString("apphud_base_url"),
			FallbackHostURL:         viper.GetString("apphud_fallback_host_url"),
			ConnectTimeout:          viper.GetDuration("apphud_connect_timeout"),
			RegistrationReadTimeout: viper.GetDuration("apphud_registration_read_timeout"),
			ReadTimeout:             viper.GetDuration("apphud_read_timeout"),
		},
		Cache: CacheConfig{
			Dir:             viper.GetString("apphud_cache_dir"),
			StalenessWindow: viper.GetDuration("apphud_cache_staleness_window"),
		},
		Redis: RedisConfig{
			URL:      viper.GetString("apphud_redis_url"),
			PoolSize: viper.GetInt("apphud_redis_pool_size"),
		},
		Sentry: SentryConfig{
			DSN:     viper.GetString("apphud_sentry_dsn"),
			Release: viper.GetString("apphud_sentry_release"),
		},
		Billing: BillingConfig{
			PackageName:              viper.GetString("apphud_package_name"),
			GoogleServiceAccountJSON: viper.GetString("apphud_google_service_account_json"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("apphud_environment", "production")
	viper.SetDefault("apphud_base_url", "https://api.apphud.com")
	viper.SetDefault("apphud_fallback_host_url", "https://apphud.blob.core.windows.net/apphud-gateway/fallback.txt")
	viper.SetDefault("apphud_connect_timeout", 2*time.Second)
	viper.SetDefault("apphud_registration_read_timeout", 7*time.Second)
	viper.SetDefault("apphud_read_timeout", 5*time.Second)
	viper.SetDefault("apphud_cache_dir", ".apphud")
	viper.SetDefault("apphud_cache_staleness_window", 25*time.Hour)
	viper.SetDefault("apphud_redis_pool_size", 10)
}

func validate(cfg *Config) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("APPHUD_API_KEY is required")
	}
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("APPHUD_BASE_URL must not be empty")
	}
	return nil
}
