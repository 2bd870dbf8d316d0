package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port int

	// comma separated list of allowed browser origins
	ClientURL string

	JWTSecret string
	JWTTTL    time.Duration

	StoreDriver string
	DBURL       string
	MongoURI    string
	MongoDB     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MLServiceURL       string
	MLTimeout          time.Duration
	MLFailureThreshold int
	MLCooldown         time.Duration

	GraphURI      string
	GraphUsername string
	GraphPassword string
	GraphDatabase string

	OTelEnabled  bool
	OTelEndpoint string

	AuthRateLimit  int
	AuthRateWindow time.Duration

	// per-user budget for routes that call the ML service
	MLRateLimit  int
	MLRateWindow time.Duration

	SeedMentorEmail    string
	SeedMentorPassword string
	SeedMentorName     string
}

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

var ErrMissingSecret = errors.New("JWT_SECRET must be set outside dev/test")

func Load() Config {
	return Config{
		Env:       getEnv("APP_ENV", "dev"),
		Port:      getEnvInt("PORT", 5000),
		ClientURL: getEnv("CLIENT_URL", "http://localhost:5173"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    getEnvDuration("JWT_EXPIRE", 7*24*time.Hour),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),
		DBURL:       buildDBURL(),
		MongoURI:    getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:     getEnv("MONGO_DB", "herapt"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MLServiceURL:       strings.TrimRight(getEnv("ML_SERVICE_URL", "http://127.0.0.1:8000"), "/"),
		MLTimeout:          getEnvDuration("ML_TIMEOUT", 10*time.Second),
		MLFailureThreshold: getEnvInt("ML_BREAKER_FAILURES", 5),
		MLCooldown:         getEnvDuration("ML_BREAKER_COOLDOWN", 30*time.Second),

		GraphURI:      os.Getenv("GRAPH_URI"),
		GraphUsername: os.Getenv("GRAPH_USERNAME"),
		GraphPassword: os.Getenv("GRAPH_PASSWORD"),
		GraphDatabase: os.Getenv("GRAPH_DATABASE"),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		AuthRateLimit:  getEnvInt("RATE_LIMIT_AUTH", 20),
		AuthRateWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		MLRateLimit:  getEnvInt("RATE_LIMIT_ML", 10),
		MLRateWindow: getEnvDuration("RATE_LIMIT_ML_WINDOW", time.Minute),

		SeedMentorEmail:    os.Getenv("SEED_MENTOR_EMAIL"),
		SeedMentorPassword: os.Getenv("SEED_MENTOR_PASSWORD"),
		SeedMentorName:     getEnv("SEED_MENTOR_NAME", "Demo Mentor"),
	}
}

// Validate fills in the dev signing secret and rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		if !c.IsDev() {
			return ErrMissingSecret
		}
		c.JWTSecret = "dev-secret-change-me"
	}

	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_EXPIRE must be positive, got %s", c.JWTTTL)
	}

	switch c.StoreDriver {
	case StoreMemory, StorePostgres, StoreMongo:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	return nil
}

func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "test"
}

func (c Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

func (c Config) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(c.ClientURL, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

func buildDBURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "herapt")
	pass := getEnv("DB_PASSWORD", "herapt")
	name := getEnv("DB_NAME", "herapt")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

// WithTimeout bounds a store or shutdown call under the request's context.
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, duration)
}

// ParseDuration accepts Go durations plus a whole-day suffix, e.g. "7d".
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)

	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q: %w", v, err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	return time.ParseDuration(v)
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
			return fallback
		}

		return num
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fallback
		}
		return d
	}
	return fallback
}
