// Package config loads the service settings from the environment, optionally
// seeded from a .env file, and turns them into the component configurations.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"cash-interchange-service/internal/ledger"
	"cash-interchange-service/internal/mapping"
	"cash-interchange-service/internal/pipeline"
	"cash-interchange-service/pkg/logger"
)

// Ledger backends
const (
	BackendPostgres = "postgres"
	BackendAPI      = "api"
)

// Settings holds everything the service reads from the environment
type Settings struct {
	// Input folders, one per channel. An empty folder disables the channel.
	XMLInputDir   string
	TextInputDir  string
	SheetInputDir string

	// Terminal folders.
	ManagedDir   string
	NoveltiesDir string
	ErrorsDir    string
	AckDir       string

	AckPartner   string
	PollInterval time.Duration

	// SheetLayouts assigns a spreadsheet layout per client code, written as
	// "45=standard,47=cassette_based,48=kit_based".
	SheetLayouts map[int]mapping.LayoutKind

	// Reference database, read side: point and client lookups.
	ReferenceDatabaseURL string

	// Ledger write side: direct database or remote API.
	LedgerBackend     string
	LedgerDatabaseURL string
	LedgerAPIURL      string
	LedgerAPIEmail    string
	LedgerAPIPassword string
	LedgerAPITimeout  time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads settings from the environment. A non-empty envFile is loaded
// first; variables already set in the environment win over the file.
func Load(envFile string) (*Settings, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	} else {
		// A .env in the working directory is optional.
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetEnvPrefix("INTERCHANGE")
	v.AutomaticEnv()

	v.SetDefault("xml_input_dir", "")
	v.SetDefault("text_input_dir", "")
	v.SetDefault("sheet_input_dir", "")
	v.SetDefault("managed_dir", "gestionados")
	v.SetDefault("novelties_dir", "novedades")
	v.SetDefault("errors_dir", "errores")
	v.SetDefault("ack_dir", "respuestas")
	v.SetDefault("ack_partner", "")
	v.SetDefault("poll_interval", "1m")
	v.SetDefault("sheet_layouts", "")
	v.SetDefault("ledger_backend", BackendPostgres)
	v.SetDefault("ledger_api_timeout", "30s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	layouts, err := ParseSheetLayouts(v.GetString("sheet_layouts"))
	if err != nil {
		return nil, err
	}

	s := &Settings{
		XMLInputDir:          v.GetString("xml_input_dir"),
		TextInputDir:         v.GetString("text_input_dir"),
		SheetInputDir:        v.GetString("sheet_input_dir"),
		ManagedDir:           v.GetString("managed_dir"),
		NoveltiesDir:         v.GetString("novelties_dir"),
		ErrorsDir:            v.GetString("errors_dir"),
		AckDir:               v.GetString("ack_dir"),
		AckPartner:           v.GetString("ack_partner"),
		PollInterval:         v.GetDuration("poll_interval"),
		SheetLayouts:         layouts,
		ReferenceDatabaseURL: v.GetString("reference_database_url"),
		LedgerBackend:        strings.ToLower(v.GetString("ledger_backend")),
		LedgerDatabaseURL:    v.GetString("ledger_database_url"),
		LedgerAPIURL:         v.GetString("ledger_api_url"),
		LedgerAPIEmail:       v.GetString("ledger_api_email"),
		LedgerAPIPassword:    v.GetString("ledger_api_password"),
		LedgerAPITimeout:     v.GetDuration("ledger_api_timeout"),
		LogLevel:             v.GetString("log_level"),
		LogFormat:            v.GetString("log_format"),
	}

	return s, nil
}

// Validate checks the settings are complete enough to start the service
func (s *Settings) Validate() error {
	if s.XMLInputDir == "" && s.TextInputDir == "" && s.SheetInputDir == "" {
		return fmt.Errorf("no input folder configured; set at least one of INTERCHANGE_XML_INPUT_DIR, INTERCHANGE_TEXT_INPUT_DIR, INTERCHANGE_SHEET_INPUT_DIR")
	}
	if s.ReferenceDatabaseURL == "" {
		return fmt.Errorf("INTERCHANGE_REFERENCE_DATABASE_URL is required")
	}

	switch s.LedgerBackend {
	case BackendPostgres:
		if s.LedgerDatabaseURL == "" {
			return fmt.Errorf("INTERCHANGE_LEDGER_DATABASE_URL is required for the postgres backend")
		}
	case BackendAPI:
		apiCfg := s.APIConfig()
		if err := apiCfg.Validate(); err != nil {
			return fmt.Errorf("api backend: %w", err)
		}
	default:
		return fmt.Errorf("unknown ledger backend %q; use %q or %q", s.LedgerBackend, BackendPostgres, BackendAPI)
	}

	return nil
}

// PipelineConfig builds the pipeline configuration from the settings
func (s *Settings) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		XMLInput:     s.XMLInputDir,
		TextInput:    s.TextInputDir,
		SheetInput:   s.SheetInputDir,
		ManagedDir:   s.ManagedDir,
		NoveltiesDir: s.NoveltiesDir,
		ErrorsDir:    s.ErrorsDir,
		AckDir:       s.AckDir,
		Partner:      s.AckPartner,
		PollInterval: s.PollInterval,
		SheetLayouts: s.SheetLayouts,
	}
}

// APIConfig builds the remote ledger configuration from the settings
func (s *Settings) APIConfig() ledger.APIConfig {
	return ledger.APIConfig{
		BaseURL:  s.LedgerAPIURL,
		Email:    s.LedgerAPIEmail,
		Password: s.LedgerAPIPassword,
		Timeout:  s.LedgerAPITimeout,
	}
}

// LoggerConfig builds the logger configuration from the settings
func (s *Settings) LoggerConfig() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.Level(strings.ToLower(s.LogLevel))
	cfg.Format = logger.Format(strings.ToLower(s.LogFormat))
	return cfg
}

// ParseSheetLayouts parses the per-client layout table, written as
// comma-separated "clientCode=layout" pairs
func ParseSheetLayouts(spec string) (map[int]mapping.LayoutKind, error) {
	layouts := make(map[int]mapping.LayoutKind)

	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed sheet layout entry %q, want clientCode=layout", pair)
		}

		code, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || code <= 0 {
			return nil, fmt.Errorf("sheet layout entry %q has no client code", pair)
		}

		kind, err := mapping.ParseLayoutKind(parts[1])
		if err != nil {
			return nil, fmt.Errorf("sheet layout entry %q: %w", pair, err)
		}

		layouts[code] = kind
	}

	return layouts, nil
}
