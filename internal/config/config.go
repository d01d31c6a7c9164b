package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the top-level datasage configuration.
type Config struct {
	DataDir    string                    `json:"data_dir"`
	Providers  map[string]ProviderConfig `json:"providers"`
	Warehouse  WarehouseConfig           `json:"warehouse"`
	Catalog    CatalogConfig             `json:"catalog"`
	Connectors ConnectorConfig           `json:"connectors"`
	API        APIConfig                 `json:"api"`
}

// ProviderConfig holds LLM provider settings.
type ProviderConfig struct {
	Type    string `json:"type,omitempty"` // "openai" (default) or "anthropic"
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model"`
}

// WarehouseConfig selects and configures the warehouse backend.
type WarehouseConfig struct {
	Backend string `json:"backend"` // "bigquery" or "sqlite"

	// BigQuery settings.
	ProjectID       string `json:"project_id,omitempty"`
	Location        string `json:"location,omitempty"`
	CredentialsFile string `json:"credentials_file,omitempty"`
	MaxBytesBilled  int64  `json:"max_bytes_billed,omitempty"`

	// SQLite settings.
	Path string `json:"path,omitempty"`

	// Shared row cap for run_query results.
	MaxRows int `json:"max_rows,omitempty"`
}

// CatalogConfig controls the background catalog refresher.
type CatalogConfig struct {
	RefreshSchedule string `json:"refresh_schedule,omitempty"` // cron expression, default "@every 1h"
}

// ConnectorConfig holds settings for external platform connectors.
type ConnectorConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token     string  `json:"token"`
	AllowFrom []int64 `json:"allow_from,omitempty"`
}

// APIConfig holds REST API server settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"api_key"`
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a config from environment variables with DATASAGE_ prefix.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DataDir:   getenv("DATASAGE_DATA_DIR", "/data"),
		Providers: make(map[string]ProviderConfig),
		Warehouse: WarehouseConfig{
			Backend:         getenv("DATASAGE_WAREHOUSE_BACKEND", "bigquery"),
			ProjectID:       os.Getenv("DATASAGE_BIGQUERY_PROJECT"),
			Location:        os.Getenv("DATASAGE_BIGQUERY_LOCATION"),
			CredentialsFile: os.Getenv("DATASAGE_BIGQUERY_CREDENTIALS"),
			Path:            os.Getenv("DATASAGE_SQLITE_PATH"),
		},
		Catalog: CatalogConfig{
			RefreshSchedule: os.Getenv("DATASAGE_CATALOG_SCHEDULE"),
		},
		API: APIConfig{
			Host: getenv("DATASAGE_API_HOST", "0.0.0.0"),
			Port: getenvInt("DATASAGE_API_PORT", 8080),
			Key:  os.Getenv("DATASAGE_API_KEY"),
		},
	}

	if v := os.Getenv("DATASAGE_MAX_BYTES_BILLED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: DATASAGE_MAX_BYTES_BILLED: invalid integer %q", v)
		}
		cfg.Warehouse.MaxBytesBilled = n
	}
	cfg.Warehouse.MaxRows = getenvInt("DATASAGE_MAX_ROWS", 0)

	// Default provider from env
	if apiKey := os.Getenv("DATASAGE_ANTHROPIC_API_KEY"); apiKey != "" {
		cfg.Providers["default"] = ProviderConfig{
			Type:   "anthropic",
			APIKey: apiKey,
			Model:  getenv("DATASAGE_MODEL", "claude-sonnet-4-20250514"),
		}
	} else if apiKey := os.Getenv("DATASAGE_OPENAI_API_KEY"); apiKey != "" {
		cfg.Providers["default"] = ProviderConfig{
			Type:    "openai",
			APIKey:  apiKey,
			BaseURL: os.Getenv("DATASAGE_OPENAI_BASE_URL"),
			Model:   getenv("DATASAGE_MODEL", "gpt-4o"),
		}
	}

	// Telegram connector from env
	if token := os.Getenv("DATASAGE_TELEGRAM_TOKEN"); token != "" {
		cfg.Connectors.Telegram = &TelegramConfig{Token: token}
		if ids := os.Getenv("DATASAGE_TELEGRAM_ALLOW_FROM"); ids != "" {
			parsed, err := parseInt64List(ids)
			if err != nil {
				return nil, fmt.Errorf("config: DATASAGE_TELEGRAM_ALLOW_FROM: %w", err)
			}
			cfg.Connectors.Telegram.AllowFrom = parsed
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Catalog.RefreshSchedule == "" {
		c.Catalog.RefreshSchedule = "@every 1h"
	}
}

// Validate checks for required fields.
func (c *Config) Validate() error {
	var errs []string

	if c.DataDir == "" {
		errs = append(errs, "data_dir is required")
	}

	if len(c.Providers) == 0 {
		errs = append(errs, "at least one provider is required")
	}
	for name, p := range c.Providers {
		if p.APIKey == "" {
			errs = append(errs, fmt.Sprintf("providers.%s.api_key is required", name))
		}
		if p.Model == "" {
			errs = append(errs, fmt.Sprintf("providers.%s.model is required", name))
		}
	}

	switch c.Warehouse.Backend {
	case "bigquery":
		if c.Warehouse.ProjectID == "" {
			errs = append(errs, "warehouse.project_id is required for bigquery")
		}
	case "sqlite":
		if c.Warehouse.Path == "" {
			errs = append(errs, "warehouse.path is required for sqlite")
		}
	case "":
		errs = append(errs, "warehouse.backend is required")
	default:
		errs = append(errs, fmt.Sprintf("warehouse.backend %q is not supported", c.Warehouse.Backend))
	}

	if c.Connectors.Telegram != nil && c.Connectors.Telegram.Token == "" {
		errs = append(errs, "connectors.telegram.token is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseInt64List(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		result = append(result, n)
	}
	return result, nil
}
