// Package config loads server configuration from YAML, .env files and the
// process environment, in that order of precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the YAML file read by Load when no path is supplied.
var DefaultPath = filepath.Join("config", "choperia.yaml")

// Config is the complete server configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
	Estoque     EstoqueConfig     `yaml:"estoque"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	MercadoPago MercadoPagoConfig `yaml:"mercado_pago"`
	Seed        bool              `yaml:"seed" env:"SEED_DATA"`
	Timezone    string            `yaml:"timezone" env:"TZ_NAME"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr" env:"HTTP_ADDR"`
	AllowedOrigins string        `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RateLimit      int           `yaml:"rate_limit" env:"RATE_LIMIT_RPS"`
	RateBurst      int           `yaml:"rate_burst" env:"RATE_LIMIT_BURST"`
}

type DatabaseConfig struct {
	URL            string `yaml:"url" env:"DATABASE_URL"`
	MaxOpenConns   int    `yaml:"max_open_conns"`
	MigrateOnStart bool   `yaml:"migrate_on_start" env:"DB_MIGRATE"`
}

type RedisConfig struct {
	URL string `yaml:"url" env:"REDIS_URL"`
}

type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTExpMinutes int    `yaml:"jwt_exp_minutes" env:"JWT_EXP_MINUTES"`
	CookieSecure  bool   `yaml:"cookie_secure" env:"COOKIE_SECURE"`
	AdminPassword string `yaml:"admin_password" env:"ADMIN_PASSWORD"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

type EstoqueConfig struct {
	ReservaTimeout time.Duration `yaml:"reserva_timeout" env:"RESERVA_TIMEOUT"`
	ExpirySchedule string        `yaml:"expiry_schedule"`
}

type DashboardConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"DASHBOARD_REFRESH"`
	ReportSchedule  string        `yaml:"report_schedule"`
}

type MercadoPagoConfig struct {
	AccessToken    string `yaml:"access_token" env:"MERCADO_PAGO_ACCESS_TOKEN"`
	AltAccessToken string `yaml:"-" env:"MP_ACCESS_TOKEN"`
	ForceSandbox   bool   `yaml:"force_sandbox" env:"MP_FORCE_SANDBOX"`
	BaseURL        string `yaml:"base_url" env:"MP_BASE_URL"`
	WebhookSecret  string `yaml:"webhook_secret" env:"MP_WEBHOOK_SECRET"`
}

// Default returns the configuration used when nothing else is provided.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8000",
			AllowedOrigins: "http://localhost:8080,http://192.168.1.112:8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			RateLimit:      50,
			RateBurst:      100,
		},
		Database: DatabaseConfig{MaxOpenConns: 10, MigrateOnStart: true},
		Auth:     AuthConfig{JWTSecret: "devsecret", JWTExpMinutes: 60 * 24, AdminPassword: "admin123"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Estoque: EstoqueConfig{
			ReservaTimeout: 30 * time.Minute,
			ExpirySchedule: "@every 1m",
		},
		Dashboard: DashboardConfig{
			RefreshInterval: 15 * time.Second,
			ReportSchedule:  "@daily",
		},
		MercadoPago: MercadoPagoConfig{BaseURL: "https://api.mercadopago.com"},
		Seed:        true,
		Timezone:    "America/Sao_Paulo",
	}
}

// Load reads path (DefaultPath when empty) if it exists, then .env, then the
// environment. A missing YAML file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	// StrictDecode reports ErrInvalidTarget when no variable is set.
	if err := envdecode.StrictDecode(&cfg); err != nil && !errors.Is(err, envdecode.ErrInvalidTarget) {
		return Config{}, fmt.Errorf("failed to decode environment: %w", err)
	}

	cfg.normalize()
	return cfg, cfg.Validate()
}

func (c *Config) normalize() {
	if c.MercadoPago.AccessToken == "" {
		c.MercadoPago.AccessToken = c.MercadoPago.AltAccessToken
	}
	c.Server.AllowedOrigins = strings.TrimSpace(c.Server.AllowedOrigins)
}

// Validate checks invariants that would otherwise surface as runtime errors.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.JWTExpMinutes <= 0 {
		return fmt.Errorf("auth.jwt_exp_minutes must be positive")
	}
	if c.Estoque.ReservaTimeout <= 0 {
		return fmt.Errorf("estoque.reserva_timeout must be positive")
	}
	if c.Dashboard.RefreshInterval <= 0 {
		return fmt.Errorf("dashboard.refresh_interval must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Origins splits the comma-separated allowed origins list.
func (c Config) Origins() []string {
	var out []string
	for _, origin := range strings.Split(c.Server.AllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// TokenLifetime returns the JWT lifetime as a duration.
func (c Config) TokenLifetime() time.Duration {
	return time.Duration(c.Auth.JWTExpMinutes) * time.Minute
}

// Location returns the configured time zone, UTC when it cannot be loaded.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
