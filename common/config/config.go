package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Events    EventsConfig
	Telemetry TelemetryConfig
	Workflow  WorkflowConfig
	Paths     PathsConfig
	SafeOps   SafeOpsConfig
	Clients   ClientsConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Host        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Backend     string // "memory" for MVP/tests, "postgres" for production
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// EventsConfig holds live event publishing settings
type EventsConfig struct {
	Backend  string // "memory" for MVP/tests, "redis" for production
	RedisURL string
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof   bool
	PprofPort     int
	EnableMetrics bool
	MetricsPort   int
}

// WorkflowConfig holds workflow engine settings
type WorkflowConfig struct {
	TraceDir                string
	DefaultTimeout          time.Duration
	AllowSelfHeal           bool
	SuppressSummaryArtifact bool
}

// PathsConfig holds well-known on-disk locations
type PathsConfig struct {
	EvidencePath  string
	AuditDir      string
	MessageBusDir string
	CLITraceDir   string
	EnginesPath   string
	RolesPath     string
	SigningKey    string
}

// SafeOpsConfig holds the automation policy level
type SafeOpsConfig struct {
	AutomationLevel string // manual | auto-safeops | auto-all
}

// ClientsConfig holds base URLs for outbound HTTP calls
type ClientsConfig struct {
	APIBase     string
	SignalsBase string
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Host:        getEnv("HOST", "127.0.0.1"),
			Port:        getEnvInt("PORT", 8000),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"), // Default to text for development
		},
		Database: DatabaseConfig{
			Backend:     getEnv("DB_BACKEND", "memory"),
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "missions_hub"),
			User:        getEnv("POSTGRES_USER", "missions"),
			Password:    getEnv("POSTGRES_PASSWORD", "missions"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 50),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Events: EventsConfig{
			Backend:  getEnv("EVENTS_BACKEND", "memory"),
			RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Telemetry: TelemetryConfig{
			EnablePprof:   getEnvBool("ENABLE_PPROF", true),
			PprofPort:     getEnvInt("PPROF_PORT", 6060),
			EnableMetrics: getEnvBool("ENABLE_METRICS", true),
			MetricsPort:   getEnvInt("METRICS_PORT", 9090),
		},
		Workflow: WorkflowConfig{
			TraceDir:                getEnv("WORKFLOW_TRACE_DIR", "data/logs/current/workflows"),
			DefaultTimeout:          getEnvDuration("AGENT_TIMEOUT", 5*time.Minute),
			AllowSelfHeal:           getEnvBool("WORKFLOW_ALLOW_SELF_HEAL", true),
			SuppressSummaryArtifact: getEnvBool("WORKFLOW_SUPPRESS_SUMMARY_ARTIFACT", false),
		},
		Paths: PathsConfig{
			EvidencePath:  getEnv("EVIDENCE_PATH", "observability/policy/ci_evidence.jsonl"),
			AuditDir:      getEnv("AUDIT_DIR", "data/logs/current/audit"),
			MessageBusDir: getEnv("MESSAGE_BUS_DIR", "data/logs/current/audit/message_bus"),
			CLITraceDir:   getEnv("CLI_TRACE_DIR", "data/logs/current/audit/cli_runs"),
			EnginesPath:   getEnv("ENGINES_CONFIG", "config/engines.yaml"),
			RolesPath:     getEnv("ROLES_CONFIG", "config/roles.json"),
			SigningKey:    getEnv("COSIGN_KEY", ""),
		},
		SafeOps: SafeOpsConfig{
			AutomationLevel: getEnv("AUTOMATION_LEVEL", "manual"),
		},
		Clients: ClientsConfig{
			APIBase:     getEnv("MISSIONS_HUB_API_BASE", "http://127.0.0.1:8000"),
			SignalsBase: getEnv("MISSIONS_HUB_SIGNALS_BASE", "http://127.0.0.1:3020"),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	switch c.Database.Backend {
	case "memory":
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns must be >= min_conns")
		}
	default:
		return fmt.Errorf("unknown db backend: %s", c.Database.Backend)
	}

	switch c.Events.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown events backend: %s", c.Events.Backend)
	}

	switch c.SafeOps.AutomationLevel {
	case "manual", "auto-safeops", "auto-all":
	default:
		return fmt.Errorf("unknown automation level: %s", c.SafeOps.AutomationLevel)
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// Addr returns the host:port the HTTP server listens on
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Service.Host, c.Service.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
