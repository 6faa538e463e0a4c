package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// StoreKind selects the persistence backend for users, exams and results.
type StoreKind string

const (
	StoreSQL StoreKind = "sql" // sqlite or postgres through internal/db
	StoreKV  StoreKind = "kv"  // local-storage key schema kept in Redis (or memory)
)

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string

	Store StoreKind

	DBDriver string
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BlobBasePath string

	AuthSecret string
	TokenTTL   time.Duration

	EnableSignup bool

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	// AMQP_URL empty disables event publishing.
	AMQPURL      string
	AMQPExchange string

	// Optional YAML/JSON file overriding proctoring weights and thresholds.
	PolicyFile string

	ShutdownTimeout time.Duration
}

// FromEnv reads .env (if present) and the process environment.
func FromEnv() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		Mode:               mode,
		HTTPAddr:           addr,
		PublicURL:          os.Getenv("PUBLIC_URL"),
		Store:              StoreKind(envOr("STORE", string(StoreSQL))),
		DBDriver:           envOr("DB_DRIVER", "sqlite"),
		DBDSN:              envOr("DB_DSN", ""),
		RedisAddr:          envOr("REDIS_ADDR", ""),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            envInt("REDIS_DB", 0),
		BlobBasePath:       envOr("BLOB_BASE_PATH", "./data"),
		AuthSecret:         envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		TokenTTL:           time.Duration(envInt("TOKEN_TTL_HOURS", 8)) * time.Hour,
		EnableSignup:       envBool("ENABLE_SIGNUP", true),
		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://integriguard.app"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:5173"),
		AMQPURL:            os.Getenv("AMQP_URL"),
		AMQPExchange:       envOr("AMQP_EXCHANGE", "integriguard.events"),
		PolicyFile:         os.Getenv("PROCTOR_POLICY_FILE"),
		ShutdownTimeout:    time.Duration(envInt("SHUTDOWN_TIMEOUT_SEC", 15)) * time.Second,
	}
}

// CORSOrigins returns the allow-list for the current mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
