package config

import (
	"os"
	"strconv"
	"time"
)

// AuthLimitConfig tunes the fixed-window rate limits on the unauthenticated
// auth endpoints.  Login/register share one allowance; password-reset requests
// get a tighter one because each of them sends an email.
type AuthLimitConfig struct {
	Enabled     bool
	Window      time.Duration // length of the counting window
	LoginMax    int           // login/register attempts allowed per window per client
	ResetWindow time.Duration
	ResetMax    int // password-reset requests allowed per reset window
	Prefix      string
}

// LoadAuthLimitConfig reads limiter settings from the environment with
// defaults matching the production deployment (50 auth calls / 15 min,
// 10 reset calls / hour).
func LoadAuthLimitConfig() AuthLimitConfig {
	cfg := AuthLimitConfig{
		Enabled:     envBool("AUTH_RATE_LIMIT_ENABLED", true),
		Window:      envDur("AUTH_RATE_LIMIT_WINDOW", 15*time.Minute),
		LoginMax:    envNum("AUTH_RATE_LIMIT_MAX", 50),
		ResetWindow: envDur("AUTH_RESET_LIMIT_WINDOW", time.Hour),
		ResetMax:    envNum("AUTH_RESET_LIMIT_MAX", 10),
		Prefix:      envText("AUTH_RATE_LIMIT_PREFIX", "authrl"),
	}
	if cfg.LoginMax < 1 {
		cfg.LoginMax = 1
	}
	if cfg.ResetMax < 1 {
		cfg.ResetMax = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.ResetWindow <= 0 {
		cfg.ResetWindow = time.Hour
	}
	return cfg
}

func envText(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envNum(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
