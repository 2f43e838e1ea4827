package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Tehran must resolve on hosts without zoneinfo.

	"github.com/rs/zerolog/log"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Store     string
	Migrate   bool
	Database  DatabaseConfig
	JWT       JWTConfig
	Server    ServerConfig
	Calendar  CalendarConfig
	Log       LogConfig
	Rules     RulesConfig
	Bootstrap BootstrapConfig
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// JWTConfig holds JWT authentication settings.
type JWTConfig struct {
	Secret    string //nolint:gosec // G117: JWT signing secret config
	AccessTTL time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	CORSOrigins    []string
	LoginRateLimit float64
	LoginBurst     int
}

// CalendarConfig selects the calendar and zone operators enter times in.
type CalendarConfig struct {
	Kind     string
	Timezone string
	Location *time.Location
}

type LogConfig struct {
	Level  string
	Format string
}

// RulesConfig holds the tunable limits of the write paths and reports.
type RulesConfig struct {
	DeleteWindow      time.Duration
	ReportConcurrency int
	ImportMaxRows     int
}

// BootstrapConfig seeds an empty installation.
type BootstrapConfig struct {
	PumpCount     int
	AdminUsername string
	AdminPassword string //nolint:gosec // G117: bootstrap credential
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("PUMPWATCH_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("PUMPWATCH_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	migrate, err := getEnvBool("PUMPWATCH_MIGRATE", true)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	accessTTL, err := getEnvDuration("PUMPWATCH_JWT_ACCESS_TTL", 12*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("PUMPWATCH_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("PUMPWATCH_SERVER_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	loginRate, err := getEnvFloat("PUMPWATCH_LOGIN_RATE_LIMIT", 1)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	loginBurst, err := getEnvInt("PUMPWATCH_LOGIN_BURST", 5)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	deleteWindow, err := getEnvDuration("PUMPWATCH_DELETE_WINDOW", 48*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	concurrency, err := getEnvInt("PUMPWATCH_REPORT_CONCURRENCY", 8)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxRows, err := getEnvInt("PUMPWATCH_IMPORT_MAX_ROWS", 10000)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	pumpCount, err := getEnvInt("PUMPWATCH_PUMP_COUNT", 58)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Store:   getEnv("PUMPWATCH_STORE", StorePostgres),
		Migrate: migrate,
		Database: DatabaseConfig{
			Host:     getEnv("PUMPWATCH_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("PUMPWATCH_DB_USER", "pumpwatch"),
			Password: getEnv("PUMPWATCH_DB_PASSWORD", ""),
			DBName:   getEnv("PUMPWATCH_DB_NAME", "pumpwatch_dev"),
			SSLMode:  getEnv("PUMPWATCH_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		JWT: JWTConfig{
			Secret:    getEnv("PUMPWATCH_JWT_SECRET", ""),
			AccessTTL: accessTTL,
		},
		Server: ServerConfig{
			Addr:           getEnv("PUMPWATCH_SERVER_ADDR", ":8080"),
			ReadTimeout:    readTimeout,
			WriteTimeout:   writeTimeout,
			CORSOrigins:    getEnvList("PUMPWATCH_CORS_ORIGINS", []string{"http://localhost:5173"}),
			LoginRateLimit: loginRate,
			LoginBurst:     loginBurst,
		},
		Calendar: CalendarConfig{
			Kind:     strings.ToLower(getEnv("PUMPWATCH_CALENDAR", "jalali")),
			Timezone: getEnv("PUMPWATCH_TIMEZONE", "Asia/Tehran"),
		},
		Log: LogConfig{
			Level:  getEnv("PUMPWATCH_LOG_LEVEL", "info"),
			Format: getEnv("PUMPWATCH_LOG_FORMAT", "json"),
		},
		Rules: RulesConfig{
			DeleteWindow:      deleteWindow,
			ReportConcurrency: concurrency,
			ImportMaxRows:     maxRows,
		},
		Bootstrap: BootstrapConfig{
			PumpCount:     pumpCount,
			AdminUsername: getEnv("PUMPWATCH_ADMIN_USERNAME", "admin"),
			AdminPassword: getEnv("PUMPWATCH_ADMIN_PASSWORD", ""),
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds and resolves the
// calendar location.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("PUMPWATCH_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("PUMPWATCH_JWT_SECRET must be at least 32 characters")
	}

	switch c.Store {
	case StorePostgres:
		if c.Database.SSLMode == "disable" {
			log.Warn().Msg("PUMPWATCH_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
		}
	case StoreMemory:
		log.Warn().Msg("PUMPWATCH_STORE=memory keeps all data in process; it is lost on restart")
	default:
		return fmt.Errorf("PUMPWATCH_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}

	if c.Calendar.Kind != "jalali" && c.Calendar.Kind != "gregorian" {
		return fmt.Errorf("PUMPWATCH_CALENDAR must be jalali or gregorian, got %q", c.Calendar.Kind)
	}
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return fmt.Errorf("PUMPWATCH_TIMEZONE=%q: %w", c.Calendar.Timezone, err)
	}
	c.Calendar.Location = loc

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("PUMPWATCH_LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("PUMPWATCH_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("PUMPWATCH_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("PUMPWATCH_JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("PUMPWATCH_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("PUMPWATCH_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.LoginRateLimit <= 0 {
		return fmt.Errorf("PUMPWATCH_LOGIN_RATE_LIMIT must be positive, got %g", c.Server.LoginRateLimit)
	}
	if c.Server.LoginBurst < 1 {
		return fmt.Errorf("PUMPWATCH_LOGIN_BURST must be >= 1, got %d", c.Server.LoginBurst)
	}
	if c.Rules.DeleteWindow <= 0 {
		return fmt.Errorf("PUMPWATCH_DELETE_WINDOW must be positive, got %s", c.Rules.DeleteWindow)
	}
	if c.Rules.ReportConcurrency < 1 {
		return fmt.Errorf("PUMPWATCH_REPORT_CONCURRENCY must be >= 1, got %d", c.Rules.ReportConcurrency)
	}
	if c.Rules.ImportMaxRows < 1 {
		return fmt.Errorf("PUMPWATCH_IMPORT_MAX_ROWS must be >= 1, got %d", c.Rules.ImportMaxRows)
	}
	if c.Bootstrap.PumpCount < 0 {
		return fmt.Errorf("PUMPWATCH_PUMP_COUNT must be >= 0, got %d", c.Bootstrap.PumpCount)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
