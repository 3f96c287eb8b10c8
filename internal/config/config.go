package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "time/tzdata"

	"github.com/joho/godotenv"

	"stockdash/internal/paging"
	"stockdash/internal/retry"
)

const (
	DriverPostgREST = "postgrest"
	DriverPostgres  = "postgres"
	DriverMemory    = "memory"

	StorageSupabase = "supabase"
	StorageGCS      = "gcs"
	StorageNone     = "none"
)

type Config struct {
	Port     int
	LogLevel string

	GatewayDriver string
	SupabaseURL   string
	SupabaseKey   string
	DatabaseURL   string

	StorageDriver      string
	StorageBucket      string
	GCSBucket          string
	GCSCredentialsJSON string

	RedisAddr   string
	RPCCacheTTL time.Duration

	PageSize       int
	RetryAttempts  int
	RetryBaseDelay time.Duration
	ServerStock    bool
	ImportFunction string

	ReportCron  string
	RefreshCron string
	Timezone    string
}

// Load reads ./.env (when present) and lets the process environment win over it.
func Load() (Config, error) {
	return LoadFrom(filepath.Join(".", ".env"))
}

func LoadFrom(envPath string) (Config, error) {
	values := map[string]string{}
	if envPath != "" {
		fileValues, err := godotenv.Read(envPath)
		switch {
		case err == nil:
			values = fileValues
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read %s: %w", envPath, err)
		}
	}
	get := func(key string) string {
		return firstNonEmpty(os.Getenv(key), values[key])
	}

	cfg := Config{
		Port:           8080,
		LogLevel:       firstNonEmpty(get("LOG_LEVEL"), "info"),
		GatewayDriver:  strings.ToLower(firstNonEmpty(get("GATEWAY_DRIVER"), DriverPostgREST)),
		SupabaseURL:    strings.TrimRight(get("SUPABASE_URL"), "/"),
		SupabaseKey:    get("SUPABASE_KEY"),
		DatabaseURL:    get("DATABASE_URL"),
		StorageDriver:  strings.ToLower(get("STORAGE_DRIVER")),
		StorageBucket:  firstNonEmpty(get("STORAGE_BUCKET"), "produtos"),
		GCSBucket:      get("GCS_BUCKET"),
		RedisAddr:      get("REDIS_ADDR"),
		RPCCacheTTL:    time.Minute,
		PageSize:       paging.DefaultPageSize,
		RetryAttempts:  retry.DefaultAttempts,
		RetryBaseDelay: retry.DefaultBaseDelay,
		ServerStock:    true,
		ImportFunction: firstNonEmpty(get("IMPORT_FUNCTION"), "import-planilha"),
		ReportCron:     get("REPORT_CRON"),
		RefreshCron:    get("REFRESH_CRON"),
		Timezone:       firstNonEmpty(get("TIMEZONE"), "America/Sao_Paulo"),
	}
	// Credentials JSON may span lines in the environment; keep it untrimmed.
	cfg.GCSCredentialsJSON = os.Getenv("GCS_CREDENTIALS_JSON")
	if cfg.GCSCredentialsJSON == "" {
		cfg.GCSCredentialsJSON = values["GCS_CREDENTIALS_JSON"]
	}

	var err error
	if cfg.Port, err = positiveInt("PORT", get("PORT"), cfg.Port); err != nil {
		return Config{}, err
	}
	if cfg.PageSize, err = positiveInt("PAGE_SIZE", get("PAGE_SIZE"), cfg.PageSize); err != nil {
		return Config{}, err
	}
	if cfg.RetryAttempts, err = positiveInt("RETRY_ATTEMPTS", get("RETRY_ATTEMPTS"), cfg.RetryAttempts); err != nil {
		return Config{}, err
	}
	if cfg.RetryBaseDelay, err = duration("RETRY_BASE_DELAY", get("RETRY_BASE_DELAY"), cfg.RetryBaseDelay); err != nil {
		return Config{}, err
	}
	if cfg.RPCCacheTTL, err = duration("RPC_CACHE_TTL", get("RPC_CACHE_TTL"), cfg.RPCCacheTTL); err != nil {
		return Config{}, err
	}
	if raw := get("SERVER_STOCK"); raw != "" {
		if cfg.ServerStock, err = strconv.ParseBool(raw); err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_STOCK: %q", raw)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected drivers have what they need.
func (c *Config) Validate() error {
	switch c.GatewayDriver {
	case DriverPostgREST:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_KEY are required for GATEWAY_DRIVER=%s (environment variable or .env)", c.GatewayDriver)
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for GATEWAY_DRIVER=%s (environment variable or .env)", c.GatewayDriver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid GATEWAY_DRIVER: %q", c.GatewayDriver)
	}

	if c.StorageDriver == "" {
		c.StorageDriver = StorageNone
		if c.GatewayDriver == DriverPostgREST {
			c.StorageDriver = StorageSupabase
		}
	}
	switch c.StorageDriver {
	case StorageSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return errors.New("STORAGE_DRIVER=supabase needs SUPABASE_URL and SUPABASE_KEY")
		}
	case StorageGCS:
		if c.GCSBucket == "" {
			return errors.New("GCS_BUCKET is required for STORAGE_DRIVER=gcs")
		}
	case StorageNone:
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER: %q", c.StorageDriver)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// ImageBucket is the bucket product images go to for the selected storage driver.
func (c Config) ImageBucket() string {
	if c.StorageDriver == StorageGCS {
		return c.GCSBucket
	}
	return c.StorageBucket
}

func positiveInt(key, raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

func duration(key, raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func firstNonEmpty(candidates ...string) string {
	for _, candidate := range candidates {
		if value := strings.TrimSpace(candidate); value != "" {
			return value
		}
	}
	return ""
}
