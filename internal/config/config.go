package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=salesforecast port=5432 sslmode=disable"

type Config struct {
	HTTPPort    string        `envconfig:"HTTP_PORT" default:"8080"`
	DatabaseDSN string        `envconfig:"DATABASE_DSN" default:"host=localhost user=postgres password=postgres dbname=salesforecast port=5432 sslmode=disable"`
	JWTSecret   string        `envconfig:"JWT_SECRET"`
	JWTTTL      time.Duration `envconfig:"JWT_TTL" default:"24h"`
	CORSOrigins string        `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	UploadMaxBytes int `envconfig:"UPLOAD_MAX_BYTES" default:"10485760"`

	Forecast ForecastConfig
	Redis    RedisConfig
}

type ForecastConfig struct {
	Timeout        time.Duration `envconfig:"FORECAST_TIMEOUT" default:"30s"`
	MaxConcurrency int           `envconfig:"FORECAST_MAX_CONCURRENCY" default:"0"` // 0 = runtime.NumCPU()
	// Fit on the scenario columns stored with each row instead of the all-zero baseline.
	UseObservedRegressors bool          `envconfig:"FORECAST_USE_OBSERVED_REGRESSORS" default:"false"`
	CacheTTL              time.Duration `envconfig:"FORECAST_CACHE_TTL" default:"10m"`
}

// RedisConfig: an empty Addr disables the forecast cache.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Load reads the .env file (if any) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("[INFO] no .env file loaded, using process environment: %v", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.DatabaseDSN == defaultDSN {
		log.Println("[WARN] DATABASE_DSN default value in use, set your own Postgres connection for production.")
	}
	if cfg.CORSOrigins == "http://localhost:3000" {
		log.Println("[WARN] CORS_ALLOWED_ORIGINS default value in use, set your own domain for production.")
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.Forecast.Timeout <= 0 {
		return fmt.Errorf("FORECAST_TIMEOUT must be positive")
	}
	if c.Forecast.MaxConcurrency < 0 {
		return fmt.Errorf("FORECAST_MAX_CONCURRENCY must not be negative")
	}
	return nil
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	origins := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
