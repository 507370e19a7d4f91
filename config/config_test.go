package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tournament-factory/escrow"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("TOURNAMENT_SERVICE_TOKEN", "secret")
	t.Setenv("FACTORY_OWNER", "deployer")
}

func TestParseDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, ":5200", cfg.ListenAddr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, time.Minute, cfg.KeeperInterval)
	assert.False(t, cfg.R2.Enabled())

	d := cfg.Deploy()
	assert.Equal(t, "deployer", d.Owner)
	assert.Equal(t, "Test Warrior", d.DisplayName)
	assert.Equal(t, "WRR", d.Symbol)
	assert.Equal(t, escrow.Unit, d.DefaultEntryFee)
	assert.True(t, d.VerificationEnabled)
	assert.Equal(t, 3, d.MaxResolveAttempts)
}

func TestParseOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("FACTORY_DEFAULT_ENTRY_FEE", "0.5")
	t.Setenv("FACTORY_VERIFICATION_ENABLED", "false")
	t.Setenv("FACTORY_RESOLVER", "seed")
	t.Setenv("R2_BUCKET_NAME", "archive")
	t.Setenv("CLOUDFLARE_ACCOUNT_ID", "acct")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, escrow.Unit/2, cfg.Factory.DefaultEntryFee)
	assert.False(t, cfg.Factory.VerificationEnabled)
	assert.Equal(t, "seed", cfg.Factory.Resolver)
	assert.True(t, cfg.R2.Enabled())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad driver", map[string]string{"DATABASE_DRIVER": "mysql"}},
		{"zero fee", map[string]string{"FACTORY_DEFAULT_ENTRY_FEE": "0"}},
		{"bad fee", map[string]string{"FACTORY_DEFAULT_ENTRY_FEE": "one"}},
		{"bucket without endpoint", map[string]string{"R2_BUCKET_NAME": "archive"}},
		{"missing owner", map[string]string{"FACTORY_OWNER": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}
