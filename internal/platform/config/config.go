// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/yomira-identity/internal/platform/constants"
)

// # Configuration Schema

// Config holds all runtime configuration for the identity service.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL      string `env:"DATABASE_URL,required"`
	DatabaseMaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"25"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./migrations"`

	// Key-Value Cache (Redis). Empty selects the in-process cache.
	RedisURL      string        `env:"REDIS_URL"`
	RedisPoolSize int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	CacheTTL      time.Duration `env:"CACHE_TTL"       envDefault:"5m"`

	// Cache calls run on their own pool so a sick Redis cannot starve the database.
	CacheWorkerPoolSize int           `env:"CACHE_WORKER_POOL_SIZE" envDefault:"16"`
	CacheCallTimeout    time.Duration `env:"CACHE_CALL_TIMEOUT"     envDefault:"250ms"`

	// Token signing
	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"yomira.app"`
	TokenTTL  time.Duration `env:"TOKEN_TTL"  envDefault:"24h"`

	// Password hashing work factor
	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`

	// Bounded dispatch of store calls
	WorkerPoolSize      int           `env:"WORKER_POOL_SIZE"      envDefault:"32"`
	PoolCheckoutTimeout time.Duration `env:"POOL_CHECKOUT_TIMEOUT" envDefault:"2s"`

	// Providers whose email_verified assertion upgrades the local account
	TrustedProviders []string `env:"TRUSTED_PROVIDERS" envSeparator:"," envDefault:"google,facebook"`

	// Provider userinfo endpoints used by token-based external login
	GoogleUserInfoURL   string `env:"GOOGLE_USERINFO_URL"   envDefault:"https://openidconnect.googleapis.com/v1/userinfo"`
	FacebookUserInfoURL string `env:"FACEBOOK_USERINFO_URL" envDefault:"https://graph.facebook.com/me?fields=id,email"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses configuration from an explicit variable map instead of the process environment.
func LoadFrom(environment map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(options env.Options) (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.ParseWithOptions(cfg, options); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// normalize lower-cases provider names and drops empty entries.
func (c *Config) normalize() {
	providers := make([]string, 0, len(c.TrustedProviders))
	for _, provider := range c.TrustedProviders {
		if provider = strings.ToLower(strings.TrimSpace(provider)); provider != "" {
			providers = append(providers, provider)
		}
	}
	c.TrustedProviders = providers

	if c.JWTIssuer == "" {
		c.JWTIssuer = constants.AuthIssuer
	}
}

// Validate rejects values that would make the service unsafe or unusable.
func (c *Config) Validate() error {
	var problems []error

	if len(c.JWTSecret) < 32 {
		problems = append(problems, errors.New("JWT_SECRET must be at least 32 bytes"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		problems = append(problems, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.TokenTTL <= 0 {
		problems = append(problems, errors.New("TOKEN_TTL must be positive"))
	}
	if c.CacheTTL <= 0 {
		problems = append(problems, errors.New("CACHE_TTL must be positive"))
	}
	if c.WorkerPoolSize <= 0 {
		problems = append(problems, errors.New("WORKER_POOL_SIZE must be positive"))
	}
	if c.PoolCheckoutTimeout <= 0 {
		problems = append(problems, errors.New("POOL_CHECKOUT_TIMEOUT must be positive"))
	}
	if c.DatabaseMaxConns <= 0 {
		problems = append(problems, errors.New("DATABASE_MAX_CONNS must be positive"))
	}
	if c.RedisPoolSize <= 0 {
		problems = append(problems, errors.New("REDIS_POOL_SIZE must be positive"))
	}
	if c.CacheWorkerPoolSize <= 0 {
		problems = append(problems, errors.New("CACHE_WORKER_POOL_SIZE must be positive"))
	}
	if c.CacheCallTimeout <= 0 {
		problems = append(problems, errors.New("CACHE_CALL_TIMEOUT must be positive"))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(problems...))
	}

	return nil
}

// AllowedOrigins returns the CORS domains: the platform domain plus EXTRA_ORIGINS.
func (c *Config) AllowedOrigins() []string {
	origins := []string{"yomira.app"}
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// Port returns the HTTP listen port.
func (c *Config) Port() string {
	return c.ServerPort
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
