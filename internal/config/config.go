package config

import (
	"fmt"
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

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string
	DBDSN    string

	AuthHMACSecret  string
	AuthTokenTTL    time.Duration
	EnableLocalAuth bool
	LoginRatePerMin int

	CORSOrigins []string

	LogLevel string
	LogFile  string // empty: console only

	AMQPURL      string // empty: events are not published
	AMQPExchange string
	SiteID       string

	SubmitTimeout       time.Duration
	QuestionOptionCount int
	SelectionSeed       uint64 // 0: seeded from the clock
}

// Load reads an optional .env file and then the environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	cfg := FromEnv()
	return cfg, cfg.Validate()
}

func FromEnv() Config {
	mode := Mode(envOr("MODE", string(ModeOffline)))
	return Config{
		Mode:                mode,
		HTTPAddr:            envOr("HTTP_ADDR", ":8080"),
		DBDriver:            envOr("DB_DRIVER", "sqlite"),
		DBDSN:               envOr("DB_DSN", ""),
		AuthHMACSecret:      envOr("AUTH_HMAC_SECRET", "dev-secret-change-me"),
		AuthTokenTTL:        envDuration("AUTH_TOKEN_TTL", 8*time.Hour),
		EnableLocalAuth:     envBool("ENABLE_LOCAL_AUTH", true),
		LoginRatePerMin:     envInt("LOGIN_RATE_PER_MIN", 20),
		CORSOrigins:         csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		LogLevel:            envOr("LOG_LEVEL", "info"),
		LogFile:             envOr("LOG_FILE", ""),
		AMQPURL:             envOr("AMQP_URL", ""),
		AMQPExchange:        envOr("AMQP_EXCHANGE", "examroom.events"),
		SiteID:              envOr("SITE_ID", "local"),
		SubmitTimeout:       envDuration("SUBMIT_TIMEOUT", 15*time.Second),
		QuestionOptionCount: envInt("QUESTION_OPTION_COUNT", 4),
		SelectionSeed:       uint64(envInt("SELECTION_SEED", 0)),
	}
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeOffline, ModeOnline:
	default:
		return fmt.Errorf("MODE %q: want offline or online", c.Mode)
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER %q: want sqlite or postgres", c.DBDriver)
	}
	if c.QuestionOptionCount < 2 {
		return fmt.Errorf("QUESTION_OPTION_COUNT %d: need at least 2", c.QuestionOptionCount)
	}
	if c.Mode == ModeOnline && c.AuthHMACSecret == "dev-secret-change-me" {
		return fmt.Errorf("AUTH_HMAC_SECRET must be set in online mode")
	}
	if c.SubmitTimeout <= 0 {
		return fmt.Errorf("SUBMIT_TIMEOUT must be positive")
	}
	return nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
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
func envInt(k string, def int) int {
	n, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return n
}
func envDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil {
		return def
	}
	return d
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
