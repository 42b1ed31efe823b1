package config

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by LEADFLOW_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("LEADFLOW_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

// Validate reports the settings the server cannot start without.
func Validate() error {
	var missing []string
	for _, k := range []string{"DATABASE_URL", "JWT_SECRET", "API_KEY_PEPPER"} {
		if os.Getenv(k) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func JWTSecret() string {
	return os.Getenv("JWT_SECRET")
}

func APIKeyPepper() string {
	return os.Getenv("API_KEY_PEPPER")
}

// APIKeyEncryptionKey decodes API_KEY_ENCRYPTION_KEY (hex or base64). An empty
// value disables the reveal operation.
func APIKeyEncryptionKey() ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv("API_KEY_ENCRYPTION_KEY"))
	if raw == "" {
		return nil, nil
	}
	if b, err := hex.DecodeString(raw); err == nil {
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("API_KEY_ENCRYPTION_KEY must be hex or base64")
	}
	return b, nil
}

// CronSecret guards the /internal/cron endpoints. Empty disables them.
func CronSecret() string {
	return os.Getenv("CRON_SECRET")
}

func FacebookVerifyToken() string {
	return os.Getenv("FACEBOOK_VERIFY_TOKEN")
}

// FacebookAppSecret enables X-Hub-Signature-256 verification on the page
// webhook when set.
func FacebookAppSecret() string {
	return os.Getenv("FACEBOOK_APP_SECRET")
}

// FacebookGraphVersion defaults to v19.0 if not set.
func FacebookGraphVersion() string {
	v := os.Getenv("FACEBOOK_GRAPH_VERSION")
	if v == "" {
		return "v19.0"
	}
	return v
}

// AdPlatform returns the lead-form fetcher to use.
// Valid values: facebook, mock
func AdPlatform() string {
	p := os.Getenv("ADPLATFORM")
	if p == "" {
		return "facebook"
	}
	return p
}

// RedisURL enables shared webhook dedup when set.
func RedisURL() string {
	return os.Getenv("REDIS_URL")
}

// AMQPURL enables RabbitMQ event publishing when set; events are logged otherwise.
func AMQPURL() string {
	return os.Getenv("AMQP_URL")
}

// AllowedOrigins is the static CORS allow-list for the dashboard, comma separated.
// Tenant-configured origins are accepted in addition.
func AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		o = strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// RateLimitRPS returns requests per second limit.
// Defaults to 10 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 10
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// SLAScanInterval defaults to one hour. Zero disables the background scan.
func SLAScanInterval() time.Duration {
	return durationOr("SLA_SCAN_INTERVAL", time.Hour)
}

// FacebookSyncInterval defaults to five minutes. Zero disables the background sweep.
func FacebookSyncInterval() time.Duration {
	return durationOr("FACEBOOK_SYNC_INTERVAL", 5*time.Minute)
}

func durationOr(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
