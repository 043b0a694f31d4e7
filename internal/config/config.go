package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverMongoDB  = "mongodb"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Audit sinks.
const (
	AuditCSV    = "csv"
	AuditSheets = "sheets"
)

// Config represents the full application configuration surface.
type Config struct {
	Server         ServerConfig
	Store          StoreConfig
	MongoDB        MongoDBConfig
	Postgres       PostgresConfig
	Reconciliation ReconciliationConfig
	Audit          AuditConfig
	Sheets         SheetsConfig
	WhatsApp       WhatsAppConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port  string
	Debug bool
}

// StoreConfig selects the event store backend.
type StoreConfig struct {
	Driver string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// PostgresConfig holds settings for PostgreSQL.
type PostgresConfig struct {
	DSN string
}

// ReconciliationConfig holds batch and scheduler settings.
type ReconciliationConfig struct {
	PageSize     int
	CronSchedule string
	Timezone     string
	// MaxRecords caps scheduled runs; zero processes every candidate.
	MaxRecords int
}

// AuditConfig selects where reconciliation audit rows go.
type AuditConfig struct {
	Sink       string
	OutputDir  string
	SheetRange string
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
// Notifications are disabled when AccessToken is empty.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
	Recipient     string
}

// Enabled reports whether WhatsApp notifications are configured.
func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != ""
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
		// missing .env files are acceptable when configuration comes from the environment directly
		_ = godotenv.Load()
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Server: ServerConfig{
			Port:  v.GetString("APP_PORT"),
			Debug: v.GetBool("DEBUG"),
		},
		Store: StoreConfig{
			Driver: v.GetString("STORE_DRIVER"),
		},
		MongoDB: MongoDBConfig{
			URI:    v.GetString("MONGODB_URI"),
			DBName: v.GetString("MONGODB_DB_NAME"),
		},
		Postgres: PostgresConfig{
			DSN: v.GetString("DATABASE_URL"),
		},
		Reconciliation: ReconciliationConfig{
			PageSize:     v.GetInt("RECONCILE_PAGE_SIZE"),
			CronSchedule: v.GetString("RECONCILE_CRON_SCHEDULE"),
			Timezone:     v.GetString("TIMEZONE"),
			MaxRecords:   v.GetInt("RECONCILE_MAX_RECORDS"),
		},
		Audit: AuditConfig{
			Sink:       v.GetString("AUDIT_SINK"),
			OutputDir:  v.GetString("AUDIT_OUTPUT_DIR"),
			SheetRange: v.GetString("AUDIT_SHEET_RANGE"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: v.GetString("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   v.GetString("GOOGLE_SHEET_DATABASE_ID"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   v.GetString("WHATSAPP_TOKEN"),
			PhoneNumberID: v.GetString("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:       v.GetString("WHATSAPP_BASE_URL"),
			APIVersion:    v.GetString("WHATSAPP_API_VERSION"),
			Recipient:     v.GetString("WHATSAPP_RECIPIENT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("DEBUG", false)
	v.SetDefault("STORE_DRIVER", DriverMongoDB)
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("MONGODB_DB_NAME", "milkwatch")
	v.SetDefault("RECONCILE_PAGE_SIZE", 100)
	v.SetDefault("RECONCILE_CRON_SCHEDULE", "0 2 * * *")
	v.SetDefault("TIMEZONE", "Africa/Conakry")
	v.SetDefault("RECONCILE_MAX_RECORDS", 0)
	v.SetDefault("AUDIT_SINK", AuditCSV)
	v.SetDefault("AUDIT_OUTPUT_DIR", "var/log")
	v.SetDefault("AUDIT_SHEET_RANGE", "Lactations!A:C")
	v.SetDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com")
	v.SetDefault("WHATSAPP_API_VERSION", "v20.0")
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Store.Driver {
	case DriverMongoDB:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided")
		}
		if c.MongoDB.DBName == "" {
			return errors.New("MONGODB_DB_NAME must be provided")
		}
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("DATABASE_URL must be provided")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER %q is not supported", c.Store.Driver)
	}

	if c.Reconciliation.PageSize <= 0 {
		return errors.New("RECONCILE_PAGE_SIZE must be positive")
	}
	if c.Reconciliation.MaxRecords < 0 {
		return errors.New("RECONCILE_MAX_RECORDS must not be negative")
	}
	if c.Reconciliation.CronSchedule == "" {
		return errors.New("RECONCILE_CRON_SCHEDULE must be provided")
	}
	if _, err := time.LoadLocation(c.Reconciliation.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	switch c.Audit.Sink {
	case AuditCSV:
		if c.Audit.OutputDir == "" {
			return errors.New("AUDIT_OUTPUT_DIR must be provided")
		}
	case AuditSheets:
		if c.Audit.SheetRange == "" {
			return errors.New("AUDIT_SHEET_RANGE must be provided")
		}
		if c.Sheets.CredentialsPath == "" {
			return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided")
		}
		if c.Sheets.SpreadsheetID == "" {
			return errors.New("GOOGLE_SHEET_DATABASE_ID must be provided")
		}
	default:
		return fmt.Errorf("AUDIT_SINK %q is not supported", c.Audit.Sink)
	}

	if c.WhatsApp.Enabled() {
		switch {
		case c.WhatsApp.PhoneNumberID == "":
			return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided")
		case c.WhatsApp.Recipient == "":
			return errors.New("WHATSAPP_RECIPIENT must be provided")
		case c.WhatsApp.BaseURL == "":
			return errors.New("WHATSAPP_BASE_URL must not be empty")
		case c.WhatsApp.APIVersion == "":
			return errors.New("WHATSAPP_API_VERSION must not be empty")
		}
	}

	return nil
}
