package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultAllowedDomain is the email domain admitted when ALLOWED_DOMAIN is unset.
const DefaultAllowedDomain = "presh.ai"

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling and env for environment variable binding.
type ServerConfig struct {
	HTTPPort        string `mapstructure:"HTTP_PORT"`
	MongoURI        string `mapstructure:"MONGO_URI"`
	MongoDBName     string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// OAuth provider selection and credentials.
	AuthProvider  string `mapstructure:"AUTH_PROVIDER"`
	AllowedDomain string `mapstructure:"ALLOWED_DOMAIN"`

	StackProjectID    string `mapstructure:"STACK_PROJECT_ID"`
	StackClientID     string `mapstructure:"STACK_PUBLISHABLE_CLIENT_KEY"`
	StackClientSecret string `mapstructure:"STACK_SECRET_SERVER_KEY"`
	StackMetadataURL  string `mapstructure:"STACK_OIDC_METADATA_URL"`

	// The frontend build injects NEXT_PUBLIC_* variants; honor them as fallbacks.
	PublicStackProjectID string `mapstructure:"NEXT_PUBLIC_STACK_PROJECT_ID"`
	PublicStackClientID  string `mapstructure:"NEXT_PUBLIC_STACK_PUBLISHABLE_CLIENT_KEY"`

	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`

	RawFrontendOrigin      string `mapstructure:"FRONTEND_ORIGIN"`
	RawSessionCookieDomain string `mapstructure:"SESSION_COOKIE_DOMAIN"`
	SessionTTLHours        int    `mapstructure:"SESSION_TTL_HOURS"`
}

// LoadConfig reads configuration from environment variables and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/training_portal_dev")
	v.SetDefault("MONGO_DB_NAME", "training_portal_dev")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "training-portal")
	v.SetDefault("AUTH_PROVIDER", "stack")
	v.SetDefault("ALLOWED_DOMAIN", DefaultAllowedDomain)
	v.SetDefault("SESSION_TTL_HOURS", 168)

	// Viper only unmarshals env-bound keys that have been touched at least once.
	for _, key := range []string{
		"STACK_PROJECT_ID", "STACK_PUBLISHABLE_CLIENT_KEY", "STACK_SECRET_SERVER_KEY",
		"STACK_OIDC_METADATA_URL", "NEXT_PUBLIC_STACK_PROJECT_ID",
		"NEXT_PUBLIC_STACK_PUBLISHABLE_CLIENT_KEY", "GOOGLE_CLIENT_ID",
		"GOOGLE_CLIENT_SECRET", "FRONTEND_ORIGIN", "SESSION_COOKIE_DOMAIN",
	} {
		v.SetDefault(key, "")
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}

// clean strips stray whitespace that tends to leak into copy-pasted env values.
func clean(s string) string {
	return strings.TrimSpace(s)
}

// FrontendOrigin returns the configured frontend origin, cleaned and without a
// trailing slash. Empty when unset.
func (c *ServerConfig) FrontendOrigin() string {
	return strings.TrimRight(clean(c.RawFrontendOrigin), "/")
}

// SessionCookieDomain returns the cleaned cookie domain, or empty for host-only cookies.
func (c *ServerConfig) SessionCookieDomain() string {
	return clean(c.RawSessionCookieDomain)
}

// IsLocalFrontend reports whether the frontend origin points at a local dev
// server. Local frontends get relaxed session-cookie attributes since browsers
// refuse SameSite=None cookies without Secure on plain http.
func (c *ServerConfig) IsLocalFrontend() bool {
	origin := c.FrontendOrigin()
	return strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
}

// Provider returns the normalized AUTH_PROVIDER preference ("stack" or "google").
func (c *ServerConfig) Provider() string {
	p := strings.ToLower(clean(c.AuthProvider))
	if p == "" {
		return "stack"
	}
	return p
}

// Domain returns the cleaned allow-listed email domain.
func (c *ServerConfig) Domain() string {
	d := clean(c.AllowedDomain)
	if d == "" {
		return DefaultAllowedDomain
	}
	return d
}

// MongoScheme returns the scheme of the configured Mongo URI ("mongodb" or
// "mongodb+srv"). Used by diagnostics; never exposes credentials.
func (c *ServerConfig) MongoScheme() string {
	uri := clean(c.MongoURI)
	if i := strings.Index(uri, "://"); i > 0 {
		return uri[:i]
	}
	return ""
}

// EffectiveStackProjectID resolves the Stack project id, honoring the
// NEXT_PUBLIC fallback the frontend build exports.
func (c *ServerConfig) EffectiveStackProjectID() string {
	if id := clean(c.StackProjectID); id != "" {
		return id
	}
	return clean(c.PublicStackProjectID)
}

// EffectiveStackClientID resolves the Stack publishable client key, honoring
// the NEXT_PUBLIC fallback.
func (c *ServerConfig) EffectiveStackClientID() string {
	if id := clean(c.StackClientID); id != "" {
		return id
	}
	return clean(c.PublicStackClientID)
}

// EffectiveStackMetadataURL returns the OIDC discovery document URL for the
// Stack project, deriving it from the project id when not set explicitly.
func (c *ServerConfig) EffectiveStackMetadataURL() string {
	if u := clean(c.StackMetadataURL); u != "" {
		return u
	}
	projectID := c.EffectiveStackProjectID()
	if projectID == "" {
		return ""
	}
	return fmt.Sprintf("https://api.stack-auth.com/api/v1/projects/%s/.well-known/openid-configuration", projectID)
}
