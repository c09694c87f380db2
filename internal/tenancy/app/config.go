package app

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, loaded from environment variables.
type Config struct {
	// Issuer is the iss/aud claim stamped into session tokens.
	Issuer string `env:"TENANCY_ISSUER" envDefault:"tenancy"`

	// SessionKeyFile holds the Ed25519 session signing key (PKCS8 PEM).
	// Empty means an ephemeral key, invalidating sessions on restart.
	SessionKeyFile string `env:"TENANCY_SESSION_KEY_FILE"`

	// SessionTTL bounds session token lifetime.
	SessionTTL time.Duration `env:"TENANCY_SESSION_TTL" envDefault:"12h"`

	DatabaseFile string `env:"TENANCY_DATABASE_FILE" envDefault:"tenancy.db"`
	PepperFile   string `env:"TENANCY_PEPPER_FILE" envDefault:"pepper"`

	// Bootstrap credentials create the first platform owner when the store
	// is empty. Both must be set together.
	BootstrapEmail    string `env:"BOOTSTRAP_EMAIL"`
	BootstrapPassword string `env:"BOOTSTRAP_PASSWORD"`

	// PremiumDisabled is the process-wide premium kill switch.
	PremiumDisabled bool `env:"PREMIUM_DISABLED"`

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	Port      int    `env:"PORT" envDefault:"8080"`

	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
