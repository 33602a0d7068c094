package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v4"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Normalize  NormalizeConfig  `yaml:"normalize"`
	LLM        LLMConfig        `yaml:"llm"`
	Pricelist  PricelistConfig  `yaml:"pricelist"`
	Redis      RedisConfig      `yaml:"redis"`
	Events     EventsConfig     `yaml:"events"`
	Access     AccessConfig     `yaml:"access"`
	Onboarding OnboardingConfig `yaml:"onboarding"`
	Reports    ReportsConfig    `yaml:"reports"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Inbox      InboxConfig      `yaml:"inbox"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
}

// ServerConfig holds listener addresses
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// NormalizeConfig holds converter binaries and the scratch directory
type NormalizeConfig struct {
	Pdftoppm string `yaml:"pdftoppm"`
	Antiword string `yaml:"antiword"`
	Unrar    string `yaml:"unrar"`
	WorkDir  string `yaml:"work_dir"`
}

// LLMConfig holds extraction-service configuration
type LLMConfig struct {
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"-"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// PricelistConfig holds catalog source configuration
type PricelistConfig struct {
	CSVURL  string        `yaml:"csv_url"`
	TTL     time.Duration `yaml:"ttl"`
	Timeout time.Duration `yaml:"timeout"`
}

// RedisConfig holds the shared store address; empty means in-process store
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// EventsConfig selects the batch event publisher
type EventsConfig struct {
	Backend      string   `yaml:"backend"` // none | kafka | nats
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
	NatsURL      string   `yaml:"nats_url"`
	NatsSubject  string   `yaml:"nats_subject"`
}

// AccessConfig holds the approver allow-list
type AccessConfig struct {
	AdminIDs []int64 `yaml:"admin_ids"`
}

// OnboardingConfig holds conversation settings
type OnboardingConfig struct {
	StateTTL time.Duration `yaml:"state_ttl"`
}

// ReportsConfig holds weekly report settings
type ReportsConfig struct {
	Dir     string       `yaml:"dir"`
	Weekday time.Weekday `yaml:"weekday"`
	Hour    int          `yaml:"hour"`
}

// IngestConfig holds background queue settings
type IngestConfig struct {
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
}

// InboxConfig enables the drop directory watcher when Dir is set.
type InboxConfig struct {
	Dir      string        `yaml:"dir"`
	Debounce time.Duration `yaml:"debounce"`
}

// LoadConfig loads configuration from environment variables, then applies
// the YAML file named by CONFIG_FILE on top when present.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", "file:orders.db"),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr: getEnv("GRPC_ADDR", ":8081"),
		},
		Normalize: NormalizeConfig{
			Pdftoppm: getEnv("PDFTOPPM", "pdftoppm"),
			Antiword: getEnv("ANTIWORD", "antiword"),
			Unrar:    getEnv("UNRAR", "unrar"),
			WorkDir:  getEnv("WORK_DIR", os.TempDir()),
		},
		LLM: LLMConfig{
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
		},
		Pricelist: PricelistConfig{
			CSVURL:  getEnv("PRICELIST_CSV_URL", ""),
			TTL:     getEnvAsDuration("PRICELIST_TTL", time.Hour),
			Timeout: getEnvAsDuration("PRICELIST_TIMEOUT", 15*time.Second),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", ""),
		},
		Events: EventsConfig{
			Backend:      getEnv("EVENTS_BACKEND", "none"),
			KafkaBrokers: getEnvAsList("KAFKA_BROKERS"),
			KafkaTopic:   getEnv("KAFKA_TOPIC", "repair-orders.batches"),
			NatsURL:      getEnv("NATS_URL", "nats://127.0.0.1:4222"),
			NatsSubject:  getEnv("NATS_SUBJECT", "repair-orders.batches"),
		},
		Access: AccessConfig{
			AdminIDs: getEnvAsInt64List("ADMIN_IDS"),
		},
		Onboarding: OnboardingConfig{
			StateTTL: getEnvAsDuration("ONBOARDING_TTL", 30*time.Minute),
		},
		Reports: ReportsConfig{
			Dir:     getEnv("REPORTS_DIR", "./reports"),
			Weekday: time.Weekday(getEnvAsInt("REPORT_WEEKDAY", int(time.Monday))),
			Hour:    getEnvAsInt("REPORT_HOUR", 9),
		},
		Ingest: IngestConfig{
			Workers:        getEnvAsInt("INGEST_WORKERS", 2),
			QueueSize:      getEnvAsInt("INGEST_QUEUE_SIZE", 64),
			ProcessTimeout: getEnvAsDuration("INGEST_TIMEOUT", 5*time.Minute),
		},
		Inbox: InboxConfig{
			Dir:      getEnv("INBOX_DIR", ""),
			Debounce: getEnvAsDuration("INBOX_DEBOUNCE", 2*time.Second),
		},
	}

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// applyFile overlays non-zero values from a YAML file.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnvAsInt64List skips entries that are not integers.
func getEnvAsInt64List(key string) []int64 {
	var out []int64
	for _, part := range getEnvAsList(key) {
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	switch c.Events.Backend {
	case "", "none", "nats":
	case "kafka":
		if len(c.Events.KafkaBrokers) == 0 {
			return NewAppError("CONFIG_ERROR", "KAFKA_BROKERS is required for kafka events", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "unknown EVENTS_BACKEND "+c.Events.Backend, ErrInvalidInput)
	}
	if c.Reports.Hour < 0 || c.Reports.Hour > 23 {
		return NewAppError("CONFIG_ERROR", "REPORT_HOUR must be 0..23", ErrInvalidInput)
	}
	return nil
}
