// Package config loads respreport settings from defaults, a YAML file, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // zone database for images without one

	"respreport/internal/extract"
	"respreport/internal/models"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Source types.
const (
	SourceJSONL  = "jsonl"
	SourceICS    = "ics"
	SourceCalDAV = "caldav"
)

// Sink types.
const (
	SinkXLSX     = "xlsx"
	SinkSQLite   = "sqlite"
	SinkPostgres = "postgres"
	SinkSheets   = "sheets"
)

const (
	defaultReportName = "response_report"
	defaultTokenPath  = "token-sheets.json"
)

// Config holds the configuration for a report run.
type Config struct {
	LogLevel string `yaml:"log_level"`
	Timezone string `yaml:"timezone"`
	Schedule string `yaml:"schedule"`

	Source   SourceConfig   `yaml:"source"`
	Sink     SinkConfig     `yaml:"sink"`
	CalDAV   CalDAVConfig   `yaml:"caldav"`
	Postgres PostgresConfig `yaml:"postgres"`
	Google   GoogleConfig   `yaml:"google"`
	Extract  ExtractConfig  `yaml:"extract"`
}

type SourceConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

type SinkConfig struct {
	Type  string `yaml:"type"`
	Path  string `yaml:"path"`  // xlsx workbook or sqlite database
	Sheet string `yaml:"sheet"` // xlsx and sheets tab name
	Table string `yaml:"table"` // sqlite and postgres table name
}

type CalDAVConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Calendar string `yaml:"calendar"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type GoogleConfig struct {
	ClientID      string `yaml:"client_id"`
	ClientSecret  string `yaml:"client_secret"`
	SpreadsheetID string `yaml:"spreadsheet_id"`
	TokenPath     string `yaml:"token_path"`
}

// ExtractConfig overrides the extraction rules. Unset fields keep the
// built-in Outlook defaults.
type ExtractConfig struct {
	TopicPrefix     *string           `yaml:"topic_prefix"`
	IgnoredClasses  []string          `yaml:"ignored_classes"`
	ResponseClasses map[string]string `yaml:"response_classes"` // message class -> positive|negative|tentative
	AddressMarker   string            `yaml:"address_marker"`
	AddressWidth    int               `yaml:"address_width"`
}

// Overrides are the values given on the command line. Empty fields are ignored.
type Overrides struct {
	SourceType string
	SourcePath string
	SinkType   string
	SinkPath   string
	Schedule   string
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Source:   SourceConfig{Type: SourceJSONL},
		Sink: SinkConfig{
			Type:  SinkXLSX,
			Sheet: defaultReportName,
			Table: defaultReportName,
		},
		Google: GoogleConfig{TokenPath: defaultTokenPath},
	}
}

// Load builds the configuration and validates it. configFile may be empty.
func Load(configFile string, o Overrides) (*Config, error) {
	cfg, err := build(configFile, o)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSink is Load for commands that only touch the report sink. Source
// settings are not validated.
func LoadSink(configFile string, o Overrides) (*Config, error) {
	cfg, err := build(configFile, o)
	if err != nil {
		return nil, err
	}
	if err := errors.Join(cfg.validateCommon(), cfg.ValidateSink()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func build(configFile string, o Overrides) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyOverrides(o)
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	for env, field := range map[string]*string{
		"LOG_LEVEL":             &c.LogLevel,
		"REPORT_SOURCE_TYPE":    &c.Source.Type,
		"REPORT_SOURCE_PATH":    &c.Source.Path,
		"REPORT_SINK_TYPE":      &c.Sink.Type,
		"REPORT_SINK_PATH":      &c.Sink.Path,
		"REPORT_SHEET":          &c.Sink.Sheet,
		"REPORT_SCHEDULE":       &c.Schedule,
		"REPORT_TIMEZONE":       &c.Timezone,
		"CALDAV_URL":            &c.CalDAV.URL,
		"CALDAV_USERNAME":       &c.CalDAV.Username,
		"CALDAV_PASSWORD":       &c.CalDAV.Password,
		"CALDAV_CALENDAR":       &c.CalDAV.Calendar,
		"POSTGRES_DSN":          &c.Postgres.DSN,
		"GOOGLE_CLIENT_ID":      &c.Google.ClientID,
		"GOOGLE_CLIENT_SECRET":  &c.Google.ClientSecret,
		"GOOGLE_SPREADSHEET_ID": &c.Google.SpreadsheetID,
		"GOOGLE_TOKEN_PATH":     &c.Google.TokenPath,
	} {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
}

func (c *Config) applyOverrides(o Overrides) {
	set := func(field *string, flag string) {
		if flag != "" {
			*field = flag
		}
	}
	set(&c.Source.Type, o.SourceType)
	set(&c.Source.Path, o.SourcePath)
	set(&c.Sink.Type, o.SinkType)
	set(&c.Sink.Path, o.SinkPath)
	set(&c.Schedule, o.Schedule)
}

// applyDefaults fills values whose default depends on other settings.
func (c *Config) applyDefaults() {
	c.Source.Type = strings.ToLower(c.Source.Type)
	c.Sink.Type = strings.ToLower(c.Sink.Type)
	c.LogLevel = strings.ToLower(c.LogLevel)

	if c.Sink.Path == "" {
		switch c.Sink.Type {
		case SinkXLSX:
			c.Sink.Path = defaultReportName + ".xlsx"
		case SinkSQLite:
			c.Sink.Path = defaultReportName + ".db"
		}
	}
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	return errors.Join(c.validateCommon(), c.validateSource(), c.ValidateSink())
}

func (c *Config) validateCommon() error {
	var errs []error

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel))
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err))
		}
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid schedule %q: %w", c.Schedule, err))
		}
	}

	for class, kind := range c.Extract.ResponseClasses {
		switch models.ResponseKind(kind) {
		case models.ResponsePositive, models.ResponseNegative, models.ResponseTentative:
		default:
			errs = append(errs, fmt.Errorf("response class %q maps to unknown response %q", class, kind))
		}
	}
	if c.Extract.IgnoredClasses != nil && len(c.Extract.IgnoredClasses) == 0 {
		errs = append(errs, fmt.Errorf("ignored_classes must not be empty; omit it to keep the default note and forward classes"))
	}
	if c.Extract.AddressWidth < 0 {
		errs = append(errs, fmt.Errorf("address_width must not be negative"))
	}

	return errors.Join(errs...)
}

func (c *Config) validateSource() error {
	switch c.Source.Type {
	case SourceJSONL, SourceICS:
		if c.Source.Path == "" {
			return fmt.Errorf("source path must be provided via --source-path flag, REPORT_SOURCE_PATH environment variable, or config file")
		}
	case SourceCalDAV:
		if c.CalDAV.URL == "" || c.CalDAV.Username == "" || c.CalDAV.Calendar == "" {
			return fmt.Errorf("caldav source requires CALDAV_URL, CALDAV_USERNAME and CALDAV_CALENDAR")
		}
	default:
		return fmt.Errorf("unknown source type %q (want jsonl, ics or caldav)", c.Source.Type)
	}
	return nil
}

// ValidateSink checks the sink settings alone.
func (c *Config) ValidateSink() error {
	var errs []error

	switch c.Sink.Type {
	case SinkXLSX, SinkSQLite:
		if c.Sink.Path == "" {
			errs = append(errs, fmt.Errorf("sink path must not be empty"))
		}
	case SinkPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, fmt.Errorf("postgres sink requires POSTGRES_DSN"))
		}
	case SinkSheets:
		if c.Google.SpreadsheetID == "" {
			errs = append(errs, fmt.Errorf("sheets sink requires GOOGLE_SPREADSHEET_ID"))
		}
		if c.Google.TokenPath == "" {
			errs = append(errs, fmt.Errorf("sheets sink requires a token path"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sink type %q (want xlsx, sqlite, postgres or sheets)", c.Sink.Type))
	}
	if (c.Sink.Type == SinkXLSX || c.Sink.Type == SinkSheets) && c.Sink.Sheet == "" {
		errs = append(errs, fmt.Errorf("sheet name must not be empty"))
	}

	return errors.Join(errs...)
}

// Location returns the configured timezone, or nil when none is set.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil
	}
	return loc
}

// ExtractorConfig converts the extraction settings for extract.New.
func (c *Config) ExtractorConfig() extract.Config {
	cfg := extract.DefaultConfig()
	if c.Extract.TopicPrefix != nil {
		cfg.TopicPrefix = *c.Extract.TopicPrefix
	}
	if c.Extract.IgnoredClasses != nil {
		cfg.IgnoredClasses = c.Extract.IgnoredClasses
	}
	if len(c.Extract.ResponseClasses) > 0 {
		cfg.ResponseClasses = make(map[string]models.ResponseKind, len(c.Extract.ResponseClasses))
		for class, kind := range c.Extract.ResponseClasses {
			cfg.ResponseClasses[class] = models.ResponseKind(kind)
		}
	}
	if c.Extract.AddressMarker != "" {
		cfg.Address.Marker = c.Extract.AddressMarker
	}
	if c.Extract.AddressWidth > 0 {
		cfg.Address.Width = c.Extract.AddressWidth
	}
	cfg.Location = c.Location()
	return cfg
}
