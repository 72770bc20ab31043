package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port int

	// postgres | memory
	StorageDriver string
	DBURL         string

	DBMaxConns    int32
	DBAutoMigrate bool

	JWTSecret string
	JWTTTL    time.Duration

	// token | owner_or_admin
	BugMutationPolicy string

	AdminEmail    string
	AdminPassword string
	AdminName     string

	CORSAllowedOrigins []string
	MaxBodyBytes       int64

	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTelEndpoint    string
	OTelSampleRatio float64

	jwtTTLErr error
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	// a missing .env is fine, real deployments set the environment directly
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "dev")

	// a bad value is kept as an error for Validate, never replaced
	ttl, ttlErr := ParseTTL(getEnv("JWT_EXPIRES", "2d"))

	return Config{
		Env:  env,
		Port: getEnvInt("PORT", 5000),

		StorageDriver: getEnv("STORAGE_DRIVER", "postgres"),
		DBURL:         getEnv("DATABASE_URL", buildDBURL()),

		DBMaxConns:    int32(getEnvInt("DB_MAX_CONNS", 10)),
		DBAutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),

		JWTSecret: getEnv("JWT_SECRET", devSecret(env)),
		JWTTTL:    ttl,
		jwtTTLErr: ttlErr,

		BugMutationPolicy: getEnv("BUG_MUTATION_POLICY", "token"),

		AdminEmail:    strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		AdminName:     getEnv("ADMIN_NAME", "Admin"),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),

		CacheTTL:      time.Duration(getEnvInt("CACHE_TTL_SECONDS", 0)) * time.Second,
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OTelEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelSampleRatio: getEnvFloat("OTEL_SAMPLE_RATIO", 1),
	}
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set when APP_ENV=%s", c.Env)
	}

	if c.jwtTTLErr != nil {
		return fmt.Errorf("JWT_EXPIRES: %w", c.jwtTTLErr)
	}

	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_EXPIRES must be positive")
	}

	switch c.StorageDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch c.BugMutationPolicy {
	case "token", "owner_or_admin":
	default:
		return fmt.Errorf("unknown BUG_MUTATION_POLICY %q", c.BugMutationPolicy)
	}

	return nil
}

// ParseTTL accepts Go durations ("36h", "90m") and whole days ("2d").
func ParseTTL(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)

	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day duration %q", raw)
		}

		return time.Duration(n) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	return d, nil
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "bugzapp")
	pass := getEnv("DB_PASSWORD", "bugzapp")
	name := getEnv("DB_NAME", "bugzapp")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

// only dev gets a built-in secret
func devSecret(env string) string {
	if env == "dev" {
		return "dev-insecure-secret"
	}

	return ""
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fallback
		}
		return f
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}

	return out
}
