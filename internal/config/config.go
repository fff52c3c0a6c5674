package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Inventory InventoryConfig
	Scan      ScanConfig
	Reconcile ReconcileConfig
	Sheets    SheetsConfig
	MongoDB   MongoDBConfig
	Debug     bool
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// InventoryConfig contains connection options for the remote inventory service.
type InventoryConfig struct {
	BaseURL       string
	APIToken      string
	SubmitTimeout time.Duration
}

// ScanConfig holds scan session tuning knobs.
type ScanConfig struct {
	Cooldown time.Duration
}

// ReconcileConfig holds scheduler-related settings.
type ReconcileConfig struct {
	SweepSchedule  string
	ExportSchedule string
	RefreshDelay   time.Duration
}

// SheetsConfig contains configuration required to export the mutation
// journal to Google Sheets. Both fields empty means the export is disabled.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	cooldown, err := durationFromMillis("SCAN_COOLDOWN_MS", 2000)
	if err != nil {
		return nil, err
	}

	submitTimeout, err := durationFromMillis("SUBMIT_TIMEOUT_MS", 15000)
	if err != nil {
		return nil, err
	}

	refreshDelay, err := durationFromMillis("RECONCILE_REFRESH_DELAY_MS", 3000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Inventory: InventoryConfig{
			BaseURL:       os.Getenv("INVENTORY_API_BASE_URL"),
			APIToken:      os.Getenv("INVENTORY_API_TOKEN"),
			SubmitTimeout: submitTimeout,
		},
		Scan: ScanConfig{
			Cooldown: cooldown,
		},
		Reconcile: ReconcileConfig{
			SweepSchedule:  getenvWithDefault("RECONCILE_SWEEP_SCHEDULE", "*/5 * * * *"),
			ExportSchedule: getenvWithDefault("JOURNAL_EXPORT_SCHEDULE", "0 20 * * *"),
			RefreshDelay:   refreshDelay,
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_JOURNAL_ID"),
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "stockly"),
		},
		Debug: getenvWithDefault("DEBUG", "false") == "true",
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch {
	case c.Inventory.BaseURL == "":
		return errors.New("INVENTORY_API_BASE_URL must be provided")
	case c.Inventory.APIToken == "":
		return errors.New("INVENTORY_API_TOKEN must be provided")
	}

	if c.Scan.Cooldown <= 0 {
		return errors.New("SCAN_COOLDOWN_MS must be positive")
	}

	if c.Inventory.SubmitTimeout <= 0 {
		return errors.New("SUBMIT_TIMEOUT_MS must be positive")
	}

	if c.Reconcile.SweepSchedule == "" {
		return errors.New("RECONCILE_SWEEP_SCHEDULE must be provided")
	}

	if c.Reconcile.ExportSchedule == "" {
		return errors.New("JOURNAL_EXPORT_SCHEDULE must be provided")
	}

	// Sheets export is optional, but half a configuration is a mistake.
	if (c.Sheets.CredentialsPath == "") != (c.Sheets.SpreadsheetID == "") {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH and GOOGLE_SHEET_JOURNAL_ID must be set together")
	}

	if c.MongoDB.URI == "" {
		return errors.New("MONGODB_URI must be provided")
	}

	return nil
}

// SheetsEnabled reports whether the journal export target is configured.
func (c *Config) SheetsEnabled() bool {
	return c.Sheets.CredentialsPath != "" && c.Sheets.SpreadsheetID != ""
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationFromMillis(key string, fallback int) (time.Duration, error) {
	raw := getenvWithDefault(key, strconv.Itoa(fallback))
	ms, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer millisecond count: %w", key, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
