package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	APIBaseURL    string
	SourceTimeout time.Duration

	DBHost       string
	DBPort       int
	DBUser       string
	DBPassword   string
	SourceDBName string
	TargetDBName string
	SourceDBURL  string
	TargetDBURL  string

	DBConnAttempts int
	DBConnDelay    time.Duration

	HTTPAddr        string
	APIAddr         string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Scheduler configuration.
	ScheduleHourUTC     int
	ScheduleCatchupDays int
	ScheduleMaxAttempts int
	LedgerPath          string

	// Run event publishing.
	KafkaBrokers   []string
	KafkaRunsTopic string
	KafkaEnabled   bool

	// Synthetic seeding.
	SeedDays     int
	SeedPageSize int
}

// Load reads configuration from environment variables (and a .env file when
// present), applying defaults where unset.
func Load() (*Config, error) {
	_ = godotenv.Load() // a missing .env is fine

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	sourceTimeout, err := parseDuration("SOURCE_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	connDelay, err := parseDuration("DB_CONN_DELAY", "1s")
	if err != nil {
		return nil, err
	}

	ints := map[string]int{}
	for _, p := range []struct {
		key      string
		def      int
		min, max int
	}{
		{"DB_PORT", 5432, 1, 65535},
		{"DB_CONN_ATTEMPTS", 30, 1, 1000},
		{"SCHEDULE_HOUR_UTC", 1, 0, 23},
		{"SCHEDULE_CATCHUP_DAYS", 3, 0, 31},
		{"SCHEDULE_MAX_ATTEMPTS", 3, 1, 20},
		{"SEED_DAYS", 10, 1, 366},
		{"SEED_PAGE_SIZE", 5000, 1, 100000},
	} {
		n, err := parseInt(p.key, p.def, p.min, p.max)
		if err != nil {
			return nil, err
		}
		ints[p.key] = n
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		APIBaseURL:    strings.TrimRight(sharedcfg.EnvOrDefault("API_BASE_URL", "http://localhost:8000"), "/"),
		SourceTimeout: sourceTimeout,

		DBHost:       sharedcfg.EnvOrDefault("DB_HOST", "localhost"),
		DBPort:       ints["DB_PORT"],
		DBUser:       sharedcfg.EnvOrDefault("DB_USER", "postgres"),
		DBPassword:   sharedcfg.EnvOrDefault("DB_PASSWORD", "postgres"),
		SourceDBName: sharedcfg.EnvOrDefault("DB_SOURCE_NAME", sharedcfg.EnvOrDefault("DB_NAME", "source")),
		TargetDBName: sharedcfg.EnvOrDefault("DB_TARGET_NAME", "target"),

		DBConnAttempts: ints["DB_CONN_ATTEMPTS"],
		DBConnDelay:    connDelay,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		APIAddr:         sharedcfg.EnvOrDefault("API_ADDR", ":8000"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		ScheduleHourUTC:     ints["SCHEDULE_HOUR_UTC"],
		ScheduleCatchupDays: ints["SCHEDULE_CATCHUP_DAYS"],
		ScheduleMaxAttempts: ints["SCHEDULE_MAX_ATTEMPTS"],
		LedgerPath:          sharedcfg.EnvOrDefault("LEDGER_PATH", "data/ledger"),

		KafkaBrokers:   brokers,
		KafkaRunsTopic: sharedcfg.EnvOrDefault("KAFKA_RUNS_TOPIC", "etl-runs"),
		KafkaEnabled:   kafkaEnabled,

		SeedDays:     ints["SEED_DAYS"],
		SeedPageSize: ints["SEED_PAGE_SIZE"],
	}

	cfg.SourceDBURL = sharedcfg.EnvOrDefault("SOURCE_DATABASE_URL", cfg.DatabaseURL(cfg.SourceDBName))
	cfg.TargetDBURL = sharedcfg.EnvOrDefault("TARGET_DATABASE_URL", cfg.DatabaseURL(cfg.TargetDBName))

	if _, err := url.ParseRequestURI(cfg.APIBaseURL); err != nil {
		return nil, fmt.Errorf("invalid API_BASE_URL: %w", err)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaRunsTopic == "" {
		return nil, errors.New("KAFKA_RUNS_TOPIC is required when Kafka is enabled")
	}
	if !isValidDBName(cfg.SourceDBName) || !isValidDBName(cfg.TargetDBName) {
		return nil, errors.New("DB_SOURCE_NAME and DB_TARGET_NAME must be alphanumeric or underscore")
	}

	return cfg, nil
}

// DatabaseURL returns a postgres connection URL for the named database on the
// configured server.
func (c *Config) DatabaseURL(dbName string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:   "/" + dbName,
	}
	return u.String()
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer in [%d, %d]", key, lo, hi)
	}
	return n, nil
}

func isValidDBName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
