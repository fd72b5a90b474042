package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/realminvite/internal/invites/service"
	"github.com/aussiebroadwan/realminvite/pkg/cryptox"
	"github.com/aussiebroadwan/realminvite/pkg/idpclient"
	"github.com/aussiebroadwan/realminvite/pkg/jwtx"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)

	DatabaseDriver string // sqlite or postgres (default: sqlite)
	DatabaseFile   string // SQLite database file (default: ./invites.db)
	DatabaseURL    string // Postgres connection URL, required for postgres

	TokenBytes     int    // Random bytes per invite token (default: 32)
	SaltBytes      int    // Random bytes per salt (default: 16)
	HMACAlgorithm  string // Token hash algorithm (default: HmacSHA256)
	HMACSecret     string // Hash key; when empty HMACSecretFile is used
	HMACSecretFile string // Generated on first start when missing (default: ./invite-secret)

	DefaultExpiry time.Duration // Invite lifetime when none is given (default: 72h)
	MinExpiry     time.Duration // Shortest lifetime accepted (default: 5m)
	MaxExpiry     time.Duration // Longest lifetime accepted (default: 720h)
	Retention     time.Duration // How long expired invites are kept (default: 0)
	RealmRoles    string        // "realm=role1,role2;realm2=role3"
	RealmsFile    string        // Optional YAML file with per-realm defaults

	HousekeepingInterval time.Duration // Cleanup interval (default: 1h)

	IDPBaseURL         string
	IDPTokenRealm      string // Realm the service account authenticates in (default: master)
	IDPClientID        string
	IDPClientSecret    string
	IDPConnectTimeout  time.Duration // (default: 5s)
	IDPResponseTimeout time.Duration // (default: 15s)
	IDPMaxAttempts     int           // (default: 3)
	IDPBaseDelay       time.Duration // (default: 200ms)
	IDPActions         []string      // Onboarding email actions (default: VERIFY_EMAIL,UPDATE_PASSWORD)

	AdminJWTSecret string // Shared secret for operator tokens
	AdminJWTIssuer string // Optional required issuer
}

// LoadConfig reads the configuration from the environment, after loading a
// .env file when one is present.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		DatabaseDriver: strings.ToLower(getEnvOrDefault("DATABASE_DRIVER", DriverSQLite)),
		DatabaseFile:   getEnvOrDefault("DATABASE_FILE", "invites.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		TokenBytes:     getEnvIntOrDefault("INVITES_TOKEN_BYTES", cryptox.DefaultTokenBytes),
		SaltBytes:      getEnvIntOrDefault("INVITES_SALT_BYTES", cryptox.DefaultSaltBytes),
		HMACAlgorithm:  getEnvOrDefault("INVITES_HMAC_ALGORITHM", cryptox.DefaultAlgorithm),
		HMACSecret:     os.Getenv("INVITES_HMAC_SECRET"),
		HMACSecretFile: getEnvOrDefault("INVITES_HMAC_SECRET_FILE", "invite-secret"),

		DefaultExpiry: getEnvDurationOrDefault("INVITES_DEFAULT_EXPIRY", service.DefaultInviteExpiry),
		MinExpiry:     getEnvDurationOrDefault("INVITES_MIN_EXPIRY", service.DefaultMinInviteExpiry),
		MaxExpiry:     getEnvDurationOrDefault("INVITES_MAX_EXPIRY", service.DefaultMaxInviteExpiry),
		Retention:     getEnvDurationOrDefault("INVITES_RETENTION", 0),
		RealmRoles:    os.Getenv("INVITES_REALM_ROLES"),
		RealmsFile:    os.Getenv("INVITES_REALMS_FILE"),

		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),

		IDPBaseURL:         os.Getenv("IDP_BASE_URL"),
		IDPTokenRealm:      getEnvOrDefault("IDP_TOKEN_REALM", "master"),
		IDPClientID:        os.Getenv("IDP_CLIENT_ID"),
		IDPClientSecret:    os.Getenv("IDP_CLIENT_SECRET"),
		IDPConnectTimeout:  getEnvDurationOrDefault("IDP_CONNECT_TIMEOUT", idpclient.DefaultConnectTimeout),
		IDPResponseTimeout: getEnvDurationOrDefault("IDP_RESPONSE_TIMEOUT", idpclient.DefaultResponseTimeout),
		IDPMaxAttempts:     getEnvIntOrDefault("IDP_MAX_ATTEMPTS", idpclient.DefaultMaxAttempts),
		IDPBaseDelay:       getEnvDurationOrDefault("IDP_BASE_DELAY", idpclient.DefaultBaseDelay),
		IDPActions:         splitList(os.Getenv("IDP_ACTIONS")),

		AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
		AdminJWTIssuer: os.Getenv("ADMIN_JWT_ISSUER"),
	}
}

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case DriverSQLite:
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("DATABASE_FILE is required for sqlite"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER %q is not sqlite or postgres", c.DatabaseDriver))
	}

	if c.HMACSecret != "" && len(c.HMACSecret) < cryptox.MinSecretBytes {
		errs = append(errs, fmt.Errorf("INVITES_HMAC_SECRET must be at least %d bytes", cryptox.MinSecretBytes))
	}
	if c.HMACSecret == "" && c.HMACSecretFile == "" {
		errs = append(errs, errors.New("one of INVITES_HMAC_SECRET or INVITES_HMAC_SECRET_FILE is required"))
	}

	if c.MinExpiry <= 0 || c.MaxExpiry < c.MinExpiry {
		errs = append(errs, errors.New("INVITES_MIN_EXPIRY must be positive and not above INVITES_MAX_EXPIRY"))
	} else if c.DefaultExpiry < c.MinExpiry || c.DefaultExpiry > c.MaxExpiry {
		errs = append(errs, errors.New("INVITES_DEFAULT_EXPIRY must be between the min and max expiry"))
	}
	if c.Retention < 0 {
		errs = append(errs, errors.New("INVITES_RETENTION cannot be negative"))
	}

	if c.IDPBaseURL == "" {
		errs = append(errs, errors.New("IDP_BASE_URL is required"))
	}
	if c.IDPClientID == "" || c.IDPClientSecret == "" {
		errs = append(errs, errors.New("IDP_CLIENT_ID and IDP_CLIENT_SECRET are required"))
	}
	if c.IDPMaxAttempts < 1 {
		errs = append(errs, errors.New("IDP_MAX_ATTEMPTS must be at least 1"))
	}

	if len(c.AdminJWTSecret) < jwtx.MinHS256SecretBytes {
		errs = append(errs, fmt.Errorf("ADMIN_JWT_SECRET must be at least %d bytes", jwtx.MinHS256SecretBytes))
	}

	if _, err := parseRealmRoles(c.RealmRoles); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
