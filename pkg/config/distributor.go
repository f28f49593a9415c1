package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// DistributorConfig holds the tunables for the request distributor
// subsystem: the serializer pool, the overload alert, and the synthetic
// endpoint/auth used when no real endpoint can be identified.
type DistributorConfig struct {
	// PoolSize is the number of serializers (P) in the fallback pool.
	// Should be a small prime; 31 mirrors Asterisk's DISTRIBUTOR_POOL_SIZE.
	PoolSize int `json:"pool_size" env:"DISTRIBUTOR_POOL_SIZE" default:"31"`

	// PoolBaseName seeds the generated, unique serializer names.
	PoolBaseName string `json:"pool_base_name" env:"DISTRIBUTOR_POOL_BASE_NAME" default:"pjsip/distributor"`

	// OverloadHighWaterMark is the per-serializer queue depth at or above
	// which the process-wide overload alert is set.
	OverloadHighWaterMark int `json:"overload_high_water_mark" env:"DISTRIBUTOR_HIGH_WATER_MARK" default:"500"`

	// Realm is used for the synthetic auth (and, in cmd/distributor, for the
	// seeded example endpoint). It is not a fallback for other endpoints: an
	// endpoint whose first inbound auth has no realm is challenged with
	// realm "asterisk" whatever this is set to.
	Realm string `json:"realm" env:"DISTRIBUTOR_REALM" default:"asterisk"`

	// NonceTimeout bounds how long a generated digest nonce remains valid.
	NonceTimeout time.Duration `json:"nonce_timeout" env:"DISTRIBUTOR_NONCE_TIMEOUT" default:"5m"`

	// BootGateOpen controls the initial value of the "fully booted" flag.
	// cmd/distributor leaves it false and calls Subsystem.Boot once the
	// subsystem has been created.
	BootGateOpen bool `json:"boot_gate_open" env:"DISTRIBUTOR_BOOT_GATE_OPEN" default:"false"`

	// RateLimitEnabled turns on the ingress SIP rate limiter in front of
	// the pipeline (defense-in-depth ahead of the overload alert itself).
	RateLimitEnabled      bool    `json:"rate_limit_enabled" env:"DISTRIBUTOR_RATE_LIMIT_ENABLED" default:"false"`
	RateLimitInviteRPS    float64 `json:"rate_limit_invite_rps" env:"DISTRIBUTOR_RATE_LIMIT_INVITE_RPS" default:"10"`
	RateLimitInviteBurst  int     `json:"rate_limit_invite_burst" env:"DISTRIBUTOR_RATE_LIMIT_INVITE_BURST" default:"50"`
	RateLimitRequestRPS   float64 `json:"rate_limit_request_rps" env:"DISTRIBUTOR_RATE_LIMIT_REQUEST_RPS" default:"100"`
	RateLimitRequestBurst int     `json:"rate_limit_request_burst" env:"DISTRIBUTOR_RATE_LIMIT_REQUEST_BURST" default:"200"`
}

// DefaultDistributorConfig returns the documented defaults.
func DefaultDistributorConfig() *DistributorConfig {
	return &DistributorConfig{
		PoolSize:              31,
		PoolBaseName:          "pjsip/distributor",
		OverloadHighWaterMark: 500,
		Realm:                 "asterisk",
		NonceTimeout:          5 * time.Minute,
		BootGateOpen:          false,
		RateLimitEnabled:      false,
		RateLimitInviteRPS:    10,
		RateLimitInviteBurst:  50,
		RateLimitRequestRPS:   100,
		RateLimitRequestBurst: 200,
	}
}

// LoadDistributorConfig loads configuration from the environment, optionally
// reading a .env file first, falling back to DefaultDistributorConfig() for
// anything unset.
func LoadDistributorConfig(envFile string, logger *logrus.Logger) *DistributorConfig {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && logger != nil {
			logger.WithError(err).WithField("env_file", envFile).
				Debug("No .env file loaded, relying on process environment")
		}
	}

	cfg := DefaultDistributorConfig()

	if v := os.Getenv("DISTRIBUTOR_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PoolSize = n
		}
	}
	if v := os.Getenv("DISTRIBUTOR_POOL_BASE_NAME"); v != "" {
		cfg.PoolBaseName = v
	}
	if v := os.Getenv("DISTRIBUTOR_HIGH_WATER_MARK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OverloadHighWaterMark = n
		}
	}
	if v := os.Getenv("DISTRIBUTOR_REALM"); v != "" {
		cfg.Realm = v
	}
	if v := os.Getenv("DISTRIBUTOR_NONCE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.NonceTimeout = d
		}
	}
	if v := os.Getenv("DISTRIBUTOR_BOOT_GATE_OPEN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.BootGateOpen = b
		}
	}
	if v := os.Getenv("DISTRIBUTOR_RATE_LIMIT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RateLimitEnabled = b
		}
	}
	if v := os.Getenv("DISTRIBUTOR_RATE_LIMIT_INVITE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitInviteRPS = f
		}
	}
	if v := os.Getenv("DISTRIBUTOR_RATE_LIMIT_INVITE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitInviteBurst = n
		}
	}
	if v := os.Getenv("DISTRIBUTOR_RATE_LIMIT_REQUEST_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRequestRPS = f
		}
	}
	if v := os.Getenv("DISTRIBUTOR_RATE_LIMIT_REQUEST_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitRequestBurst = n
		}
	}

	return cfg
}
