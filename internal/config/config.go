package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/everest/authsvc/internal/idp"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL    string `envconfig:"REDIS_URL" default:""`
	Version     string `envconfig:"VERSION" default:"dev"`

	IdPBaseURL           string        `envconfig:"IDP_BASE_URL" required:"true"`
	IdPRealm             string        `envconfig:"IDP_REALM" required:"true"`
	IdPAdminClientID     string        `envconfig:"IDP_ADMIN_CLIENT_ID" required:"true"`
	IdPAdminClientSecret string        `envconfig:"IDP_ADMIN_CLIENT_SECRET" required:"true"`
	IdPPublicClientID    string        `envconfig:"IDP_PUBLIC_CLIENT_ID" required:"true"`
	IdPTimeout           time.Duration `envconfig:"IDP_TIMEOUT" default:"30s"`
	IdPTokenSkew         time.Duration `envconfig:"IDP_TOKEN_SKEW" default:"60s"`

	ClaimsCacheTTL time.Duration `envconfig:"CLAIMS_CACHE_TTL" default:"60s"`

	// ReconcilerInterval is in seconds; 0 disables the reconciler.
	ReconcilerInterval int `envconfig:"RECONCILER_INTERVAL" default:"300"`

	LoginRatePerMinute int `envconfig:"LOGIN_RATE_PER_MINUTE" default:"30"`
	LoginRateBurst     int `envconfig:"LOGIN_RATE_BURST" default:"10"`
	// TrustProxy honours forwarded client address headers. Leave off unless
	// a reverse proxy overwrites them.
	TrustProxy bool `envconfig:"TRUST_PROXY" default:"false"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IdP returns the identity provider client settings.
func (c *Config) IdP() idp.Config {
	return idp.Config{
		BaseURL:           c.IdPBaseURL,
		Realm:             c.IdPRealm,
		AdminClientID:     c.IdPAdminClientID,
		AdminClientSecret: c.IdPAdminClientSecret,
		PublicClientID:    c.IdPPublicClientID,
		Timeout:           c.IdPTimeout,
		TokenSkew:         c.IdPTokenSkew,
	}
}
