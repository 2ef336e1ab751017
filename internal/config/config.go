package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time durations for token lifetimes and lockout windows
)

// Config holds all runtime configuration values.  It is built once in main
// and passed into the constructors that need it; nothing reads the
// environment after startup.  Secrets and database coordinates are required
// and missing values abort the process.  The security tunables (token
// lifetimes, bcrypt cost, lockout policy) have defaults matching the
// production deployment and can be overridden per environment.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	AccessSecret  string // secret used to sign access tokens
	RefreshSecret string // secret used to sign refresh tokens; must differ from AccessSecret

	AccessTTL  time.Duration // access token lifetime (default 7 days)
	RefreshTTL time.Duration // refresh token lifetime (default 30 days)
	BcryptCost int           // bcrypt cost for password hashing (default 12)

	LoginMaxAttempts int           // failed logins before an account is locked (default 5)
	LockoutDuration  time.Duration // how long a locked account stays locked (default 2 hours)
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:              must("APP_ENV"),
		Port:             must("APP_PORT"),
		DBUser:           must("DB_USER"),
		DBPass:           os.Getenv("DB_PASS"), // empty allowed
		DBHost:           must("DB_HOST"),
		DBPort:           must("DB_PORT"),
		DBName:           must("DB_NAME"),
		AccessSecret:     must("JWT_ACCESS_SECRET"),
		RefreshSecret:    must("JWT_REFRESH_SECRET"),
		AccessTTL:        time.Duration(envInt("ACCESS_TOKEN_TTL_HOURS", 168)) * time.Hour,
		RefreshTTL:       time.Duration(envInt("REFRESH_TOKEN_TTL_HOURS", 720)) * time.Hour,
		BcryptCost:       envInt("BCRYPT_COST", 12),
		LoginMaxAttempts: envInt("LOGIN_MAX_ATTEMPTS", 5),
		LockoutDuration:  time.Duration(envInt("LOCKOUT_MINUTES", 120)) * time.Minute,
	}
	// The two signing secrets must be independent so that a refresh token can
	// never be presented where an access token is expected.
	if cfg.AccessSecret == cfg.RefreshSecret {
		log.Fatal("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// envInt reads an integer environment variable, falling back to the given
// default when the variable is unset or empty.  A malformed value is a
// configuration error and aborts startup.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}
