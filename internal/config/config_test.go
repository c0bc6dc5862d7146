package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsPorts(t *testing.T) {
	t.Setenv("FLEET_API_URL", "https://fleet.example.com")
	t.Setenv("SHARED_SECRET", "s3cret")
	t.Setenv("TCP_PORT", "")
	t.Setenv("STATUS_PORT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://fleet.example.com", cfg.FleetAPIURL)
	assert.Equal(t, "s3cret", cfg.SharedSecret)
	assert.Equal(t, "5000", cfg.TCPPort)
	assert.Equal(t, "3000", cfg.StatusPort)
}

func TestLoadMissingFleetAPIURL(t *testing.T) {
	t.Setenv("FLEET_API_URL", "")
	t.Setenv("SHARED_SECRET", "s3cret")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsRelativeFleetAPIURL(t *testing.T) {
	t.Setenv("FLEET_API_URL", "not-a-url")
	t.Setenv("SHARED_SECRET", "s3cret")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadMissingSharedSecret(t *testing.T) {
	t.Setenv("FLEET_API_URL", "https://fleet.example.com")
	t.Setenv("SHARED_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}
