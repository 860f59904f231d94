package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/pipewatch")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenExpiry)
	assert.Equal(t, 4233, cfg.NATSPort)
	assert.Equal(t, 20*time.Second, cfg.RefreshInterval)
	assert.InDelta(t, 0.8, cfg.IssueProbability, 1e-9)
	assert.Equal(t, "gpt-4.1-nano", cfg.OpenAIModel)
	assert.InDelta(t, 0.7, cfg.OpenAITemperature, 1e-6)
	assert.Equal(t, "petro", cfg.AdminUsername)
	assert.False(t, cfg.ChatEnabled())
	assert.False(t, cfg.InfluxEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/pipewatch")
	t.Setenv("REFRESH_INTERVAL", "45s")
	t.Setenv("ISSUE_PROBABILITY", "0.25")
	t.Setenv("SIMULATION_SEED", "1234")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173, https://ops.example.com")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.RefreshInterval)
	assert.InDelta(t, 0.25, cfg.IssueProbability, 1e-9)
	assert.Equal(t, uint64(1234), cfg.SimulationSeed)
	assert.Equal(t, []string{"http://localhost:5173", "https://ops.example.com"}, cfg.CORSOrigins)
	assert.True(t, cfg.ChatEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"missing database":   {},
		"bad interval":       {"DATABASE_URL": "x", "REFRESH_INTERVAL": "soon"},
		"short interval":     {"DATABASE_URL": "x", "REFRESH_INTERVAL": "10ms"},
		"probability > 1":    {"DATABASE_URL": "x", "ISSUE_PROBABILITY": "1.5"},
		"bad expiry":         {"DATABASE_URL": "x", "ACCESS_TOKEN_EXPIRE_MINUTES": "thirty"},
		"default secret prd": {"DATABASE_URL": "x", "ENV": "production"},
	}

	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			for k, v := range env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
