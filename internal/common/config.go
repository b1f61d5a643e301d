package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/taxsyncpro/taxsync/constants"
)

// Mapping assignment policies for the column-role inferencer.
const (
	MappingPolicyExclusive  = "exclusive"
	MappingPolicyPermissive = "permissive"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Import   ImportConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr     string
	GRPCAddr     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    int
}

// ImportConfig holds bulk-import pipeline settings
type ImportConfig struct {
	MaxFileSize    int64
	MappingPolicy  string
	RulesPath      string
	PresetsPath    string
	InboxDir       string
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
	SessionTTL     time.Duration
	Debounce       time.Duration
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// LoadDotEnv primes the environment from the given files (".env" when none
// are given). Missing files are ignored; existing variables win.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", "taxsync.db"),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr:     getEnv("GRPC_ADDR", ":9090"),
			ReadTimeout:  getEnvAsDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			BodyLimit:    getEnvAsInt("HTTP_BODY_LIMIT", int(constants.MaxImportFileSize)+1<<20),
		},
		Import: ImportConfig{
			MaxFileSize:    getEnvAsInt64("IMPORT_MAX_FILE_SIZE", constants.MaxImportFileSize),
			MappingPolicy:  strings.ToLower(getEnv("IMPORT_MAPPING_POLICY", MappingPolicyExclusive)),
			RulesPath:      getEnv("IMPORT_RULES_PATH", ""),
			PresetsPath:    getEnv("IMPORT_PRESETS_PATH", ""),
			InboxDir:       getEnv("IMPORT_INBOX_DIR", ""),
			Workers:        getEnvAsInt("IMPORT_WORKERS", 2),
			QueueSize:      getEnvAsInt("IMPORT_QUEUE_SIZE", 32),
			ProcessTimeout: getEnvAsDuration("IMPORT_PROCESS_TIMEOUT", 2*time.Minute),
			SessionTTL:     getEnvAsDuration("IMPORT_SESSION_TTL", 30*time.Minute),
			Debounce:       getEnvAsDuration("IMPORT_WATCH_DEBOUNCE", 500*time.Millisecond),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	if c.Import.MaxFileSize <= 0 {
		return NewAppError(CodeConfig, "IMPORT_MAX_FILE_SIZE must be positive", ErrInvalidInput)
	}
	switch c.Import.MappingPolicy {
	case MappingPolicyExclusive, MappingPolicyPermissive:
	default:
		return NewAppError(CodeConfig, "IMPORT_MAPPING_POLICY must be exclusive or permissive", ErrInvalidInput)
	}
	if c.Import.Workers <= 0 {
		return NewAppError(CodeConfig, "IMPORT_WORKERS must be positive", ErrInvalidInput)
	}
	if c.Import.QueueSize <= 0 {
		return NewAppError(CodeConfig, "IMPORT_QUEUE_SIZE must be positive", ErrInvalidInput)
	}
	return nil
}
