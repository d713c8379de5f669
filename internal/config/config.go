package config // package config loads application configuration from environment variables

import (
    "fmt"
    "log"
    "os"
    "strings"
    "time"

    "github.com/joho/godotenv"
)

// Store backends selectable with STORE_BACKEND.
const (
    BackendMySQL  = "mysql"
    BackendMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; the Redis-backed middleware settings are loaded
// separately by LoadRateLimitConfig and LoadCacheConfig.
type Config struct {
    Env          string // application environment (e.g. "dev", "prod")
    Port         string // HTTP port to listen on
    StoreBackend string // "mysql" or "memory"

    DBUser string // database username
    DBPass string // database password (optional)
    DBHost string // database host address
    DBPort string // database port number
    DBName string // database name

    JWTSecret string // secret used to verify access tokens

    InitialStatus        string        // status of newly booked tickets: "paid" or "pending"
    MaxTicketsPerBooking int           // upper bound on quantity per booking, 0 for none
    BulkValidateLimit    int           // upper bound on tokens per bulk validation
    ScanBaseURL          string        // origin embedded in ticket scan URLs
    RequestTimeout       time.Duration // deadline applied to each storage call chain

    RabbitURL   string // AMQP URL; empty disables publishing and the audit consumer
    AuditLogDir string // directory the audit consumer appends to
}

// Load reads .env (when present) and the environment, and exits the
// process on invalid configuration.
func Load() Config {
    // A missing .env is normal outside local development.
    _ = godotenv.Load()
    cfg, err := Parse()
    if err != nil {
        log.Fatalf("config: %v", err)
    }
    return cfg
}

// Parse builds a Config from the current environment without side effects.
func Parse() (Config, error) {
    cfg := Config{
        Env:                  envStr("APP_ENV", "dev"),
        Port:                 envStr("APP_PORT", "8080"),
        StoreBackend:         strings.ToLower(envStr("STORE_BACKEND", BackendMySQL)),
        DBUser:               os.Getenv("DB_USER"),
        DBPass:               os.Getenv("DB_PASS"), // empty allowed
        DBHost:               os.Getenv("DB_HOST"),
        DBPort:               envStr("DB_PORT", "3306"),
        DBName:               os.Getenv("DB_NAME"),
        JWTSecret:            os.Getenv("JWT_SECRET"),
        InitialStatus:        strings.ToLower(envStr("TICKET_INITIAL_STATUS", "paid")),
        MaxTicketsPerBooking: envInt("MAX_TICKETS_PER_BOOKING", 0),
        BulkValidateLimit:    envInt("BULK_VALIDATE_LIMIT", 100),
        ScanBaseURL:          envStr("SCAN_BASE_URL", "http://localhost:8080"),
        RequestTimeout:       envDur("REQUEST_TIMEOUT", 5*time.Second),
        RabbitURL:            os.Getenv("RABBITMQ_URL"),
        AuditLogDir:          envStr("AUDIT_LOG_DIR", "logs"),
    }
    if cfg.RabbitURL == "" {
        cfg.RabbitURL = os.Getenv("AMQP_URL")
    }

    if cfg.JWTSecret == "" {
        return Config{}, fmt.Errorf("missing required env var: JWT_SECRET")
    }
    switch cfg.StoreBackend {
    case BackendMemory:
    case BackendMySQL:
        for k, v := range map[string]string{"DB_USER": cfg.DBUser, "DB_HOST": cfg.DBHost, "DB_NAME": cfg.DBName} {
            if v == "" {
                return Config{}, fmt.Errorf("missing required env var: %s", k)
            }
        }
    default:
        return Config{}, fmt.Errorf("invalid STORE_BACKEND %q", cfg.StoreBackend)
    }
    if cfg.InitialStatus != "paid" && cfg.InitialStatus != "pending" {
        return Config{}, fmt.Errorf("invalid TICKET_INITIAL_STATUS %q: want paid or pending", cfg.InitialStatus)
    }
    if cfg.MaxTicketsPerBooking < 0 {
        return Config{}, fmt.Errorf("invalid MAX_TICKETS_PER_BOOKING %d", cfg.MaxTicketsPerBooking)
    }
    if cfg.BulkValidateLimit < 1 {
        return Config{}, fmt.Errorf("invalid BULK_VALIDATE_LIMIT %d", cfg.BulkValidateLimit)
    }
    if cfg.RequestTimeout <= 0 {
        cfg.RequestTimeout = 5 * time.Second
    }
    return cfg, nil
}
