package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDistributorConfigDefaults(t *testing.T) {
	os.Unsetenv("DISTRIBUTOR_POOL_SIZE")
	os.Unsetenv("DISTRIBUTOR_POOL_BASE_NAME")
	os.Unsetenv("DISTRIBUTOR_HIGH_WATER_MARK")
	os.Unsetenv("DISTRIBUTOR_REALM")
	os.Unsetenv("DISTRIBUTOR_NONCE_TIMEOUT")
	os.Unsetenv("DISTRIBUTOR_BOOT_GATE_OPEN")

	cfg := LoadDistributorConfig("", nil)

	assert.Equal(t, 31, cfg.PoolSize)
	assert.Equal(t, "pjsip/distributor", cfg.PoolBaseName)
	assert.Equal(t, 500, cfg.OverloadHighWaterMark)
	assert.Equal(t, "asterisk", cfg.Realm)
	assert.Equal(t, 5*time.Minute, cfg.NonceTimeout)
	assert.False(t, cfg.BootGateOpen)
	assert.False(t, cfg.RateLimitEnabled)
}

func TestLoadDistributorConfigFromEnvironment(t *testing.T) {
	os.Setenv("DISTRIBUTOR_POOL_SIZE", "7")
	os.Setenv("DISTRIBUTOR_POOL_BASE_NAME", "sip/worker")
	os.Setenv("DISTRIBUTOR_HIGH_WATER_MARK", "50")
	os.Setenv("DISTRIBUTOR_REALM", "example.org")
	os.Setenv("DISTRIBUTOR_NONCE_TIMEOUT", "90s")
	os.Setenv("DISTRIBUTOR_BOOT_GATE_OPEN", "true")
	os.Setenv("DISTRIBUTOR_RATE_LIMIT_ENABLED", "true")
	os.Setenv("DISTRIBUTOR_RATE_LIMIT_INVITE_RPS", "2.5")
	defer func() {
		os.Unsetenv("DISTRIBUTOR_POOL_SIZE")
		os.Unsetenv("DISTRIBUTOR_POOL_BASE_NAME")
		os.Unsetenv("DISTRIBUTOR_HIGH_WATER_MARK")
		os.Unsetenv("DISTRIBUTOR_REALM")
		os.Unsetenv("DISTRIBUTOR_NONCE_TIMEOUT")
		os.Unsetenv("DISTRIBUTOR_BOOT_GATE_OPEN")
		os.Unsetenv("DISTRIBUTOR_RATE_LIMIT_ENABLED")
		os.Unsetenv("DISTRIBUTOR_RATE_LIMIT_INVITE_RPS")
	}()

	cfg := LoadDistributorConfig("", nil)

	assert.Equal(t, 7, cfg.PoolSize)
	assert.Equal(t, "sip/worker", cfg.PoolBaseName)
	assert.Equal(t, 50, cfg.OverloadHighWaterMark)
	assert.Equal(t, "example.org", cfg.Realm)
	assert.Equal(t, 90*time.Second, cfg.NonceTimeout)
	assert.True(t, cfg.BootGateOpen)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Equal(t, 2.5, cfg.RateLimitInviteRPS)
}

func TestLoadDistributorConfigIgnoresInvalidValues(t *testing.T) {
	os.Setenv("DISTRIBUTOR_POOL_SIZE", "not-a-number")
	os.Setenv("DISTRIBUTOR_HIGH_WATER_MARK", "-3")
	defer func() {
		os.Unsetenv("DISTRIBUTOR_POOL_SIZE")
		os.Unsetenv("DISTRIBUTOR_HIGH_WATER_MARK")
	}()

	cfg := LoadDistributorConfig("", nil)

	assert.Equal(t, 31, cfg.PoolSize)
	assert.Equal(t, 500, cfg.OverloadHighWaterMark)
}
