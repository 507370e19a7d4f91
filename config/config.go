// Package config loads service settings from the environment, with an
// optional .env file for local runs.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"tournament-factory/escrow"
	"tournament-factory/factory"
	"tournament-factory/services"
)

type Config struct {
	DatabaseURL    string   `env:"DATABASE_URL,required"`
	DatabaseDriver string   `env:"DATABASE_DRIVER" envDefault:"postgres"`
	ListenAddr     string   `env:"LISTEN_ADDR" envDefault:":5200"`
	ServiceToken   string   `env:"TOURNAMENT_SERVICE_TOKEN,required,notEmpty"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	Factory FactoryConfig

	KeeperInterval  time.Duration `env:"KEEPER_INTERVAL" envDefault:"1m"`
	ArchiveInterval time.Duration `env:"ARCHIVE_INTERVAL" envDefault:"10m"`

	R2 R2Config
}

// FactoryConfig holds the constructor arguments used when the journal is empty.
type FactoryConfig struct {
	Owner               string        `env:"FACTORY_OWNER,required,notEmpty"`
	DisplayName         string        `env:"FACTORY_NAME" envDefault:"Test Warrior"`
	Symbol              string        `env:"FACTORY_SYMBOL" envDefault:"WRR"`
	DefaultEntryFee     escrow.Amount `env:"FACTORY_DEFAULT_ENTRY_FEE" envDefault:"1.0"`
	VerificationEnabled bool          `env:"FACTORY_VERIFICATION_ENABLED" envDefault:"true"`
	Resolver            string        `env:"FACTORY_RESOLVER"`
	MaxResolveAttempts  int           `env:"FACTORY_MAX_RESOLVE_ATTEMPTS" envDefault:"3"`
}

// R2Config configures snapshot archiving. Archiving is off when Bucket is empty.
type R2Config struct {
	AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string `env:"R2_BUCKET_NAME"`
	Endpoint        string `env:"R2_ENDPOINT"`
}

func (r R2Config) Enabled() bool {
	return r.Bucket != ""
}

// Deploy returns the deployment arguments for a fresh journal.
func (c Config) Deploy() services.DeployArgs {
	return services.DeployArgs{
		Owner: c.Factory.Owner,
		Config: factory.Config{
			DisplayName:         c.Factory.DisplayName,
			Symbol:              c.Factory.Symbol,
			DefaultEntryFee:     c.Factory.DefaultEntryFee,
			VerificationEnabled: c.Factory.VerificationEnabled,
			Resolver:            c.Factory.Resolver,
			MaxResolveAttempts:  c.Factory.MaxResolveAttempts,
		},
	}
}

// Load reads .env when present and parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return Parse()
}

func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	for i, o := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(o)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.Factory.DefaultEntryFee == 0 {
		return errors.New("config: FACTORY_DEFAULT_ENTRY_FEE must be positive")
	}
	if c.KeeperInterval <= 0 || c.ArchiveInterval <= 0 {
		return errors.New("config: worker intervals must be positive")
	}
	if c.R2.Enabled() && c.R2.AccountID == "" && c.R2.Endpoint == "" {
		return errors.New("config: R2_BUCKET_NAME needs CLOUDFLARE_ACCOUNT_ID or R2_ENDPOINT")
	}
	return nil
}
