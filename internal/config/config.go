// Package config loads the run configuration: where the copybook, mapping and data
// live, where artifacts go, and the optional load target, schedule and watch settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"copyflat/internal/decode"
	"copyflat/internal/domain"
	"copyflat/internal/mapping"
	"copyflat/internal/secret"
)

// DefaultFile is the config path used when none is given.
const DefaultFile = "copyflat.yaml"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Mapping selects the mapping source and its location. The memory type reads
// Entries instead of a file.
type Mapping struct {
	Type      string `yaml:"type" toml:"type" json:"type"` // csv | xlsx | sqlite | memory
	Path      string `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty"`
	Sheet     string `yaml:"sheet,omitempty" toml:"sheet,omitempty" json:"sheet,omitempty"`
	Table     string `yaml:"table,omitempty" toml:"table,omitempty" json:"table,omitempty"`
	Delimiter string `yaml:"delimiter,omitempty" toml:"delimiter,omitempty" json:"delimiter,omitempty"`

	Entries []domain.TableFile `yaml:"entries,omitempty" toml:"entries,omitempty" json:"entries,omitempty"`
}

// SourceConfig converts the section into the opaque map mapping sources read.
func (m Mapping) SourceConfig() mapping.SourceConfig {
	cfg := mapping.SourceConfig{"path": m.Path}
	if m.Sheet != "" {
		cfg["sheet"] = m.Sheet
	}
	if m.Table != "" {
		cfg["table"] = m.Table
	}
	if m.Delimiter != "" {
		cfg["delimiter"] = m.Delimiter
	}
	if len(m.Entries) > 0 {
		cfg["entries"] = m.Entries
	}
	return cfg
}

// Config is one conversion setup.
type Config struct {
	Copybook       string             `yaml:"copybook" toml:"copybook" json:"copybook"`
	SchemaDir      string             `yaml:"schemaDir" toml:"schemaDir" json:"schemaDir"`
	Mapping        Mapping            `yaml:"mapping" toml:"mapping" json:"mapping"`
	DataDir        string             `yaml:"dataDir" toml:"dataDir" json:"dataDir"`
	OutputDir      string             `yaml:"outputDir" toml:"outputDir" json:"outputDir"`
	LayoutDir      string             `yaml:"layoutDir,omitempty" toml:"layoutDir,omitempty" json:"layoutDir,omitempty"`
	FieldDelimiter string             `yaml:"fieldDelimiter,omitempty" toml:"fieldDelimiter,omitempty" json:"fieldDelimiter,omitempty"`
	GroupDelimiter string             `yaml:"groupDelimiter,omitempty" toml:"groupDelimiter,omitempty" json:"groupDelimiter,omitempty"`
	StateDB        string             `yaml:"stateDB,omitempty" toml:"stateDB,omitempty" json:"stateDB,omitempty"`
	Load           *domain.LoadTarget `yaml:"load,omitempty" toml:"load,omitempty" json:"load,omitempty"`
	Schedule       string             `yaml:"schedule,omitempty" toml:"schedule,omitempty" json:"schedule,omitempty"`
	Watch          bool               `yaml:"watch,omitempty" toml:"watch,omitempty" json:"watch,omitempty"`
}

type format int

const (
	formatYAML format = iota
	formatTOML
)

func formatOf(path string) format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return formatTOML
	}
	return formatYAML
}

// Load reads, defaults and validates the config at path. Relative paths inside
// the file are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := parse(data, formatOf(path))
	if err != nil {
		return nil, err
	}
	cfg.resolve(filepath.Dir(path))
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(data []byte, f format) (*Config, error) {
	var cfg Config
	switch f {
	case formatTOML:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config TOML: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	}
	return &cfg, nil
}

func (c *Config) resolve(base string) {
	for _, p := range []*string{
		&c.Copybook, &c.SchemaDir, &c.Mapping.Path, &c.DataDir,
		&c.OutputDir, &c.LayoutDir, &c.StateDB,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	if c.Load != nil && c.Load.Driver == domain.DatabaseDriverSQLite &&
		c.Load.Host != "" && !filepath.IsAbs(c.Load.Host) {
		c.Load.Host = filepath.Join(base, c.Load.Host)
	}
}

// applyDefaults fills in default values for optional fields.
func (c *Config) applyDefaults() {
	if c.FieldDelimiter == "" {
		c.FieldDelimiter = decode.DefaultFieldDelimiter
	}
	if c.GroupDelimiter == "" {
		c.GroupDelimiter = decode.DefaultGroupDelimiter
	}
	if c.OutputDir != "" {
		if c.LayoutDir == "" {
			c.LayoutDir = filepath.Join(c.OutputDir, "Layout")
		}
		if c.SchemaDir == "" {
			c.SchemaDir = filepath.Join(c.OutputDir, "Schema")
		}
		if c.StateDB == "" {
			c.StateDB = filepath.Join(c.OutputDir, ".copyflat", "state.db")
		}
	}
	if c.Mapping.Type == "" {
		if c.Mapping.Path == "" && len(c.Mapping.Entries) > 0 {
			c.Mapping.Type = "memory"
		} else {
			c.Mapping.Type = mappingTypeOf(c.Mapping.Path)
		}
	}
	if c.Load != nil && c.Load.Mode == "" {
		c.Load.Mode = domain.LoadReplace
	}
}

func mappingTypeOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return "xlsx"
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	default:
		return "csv"
	}
}

// Validate reports the first problem of the config, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	mappingRef := c.Mapping.Path
	mappingField := "mapping.path"
	if c.Mapping.Type == "memory" {
		mappingField = "mapping.entries"
		if len(c.Mapping.Entries) == 0 {
			mappingRef = ""
		} else {
			mappingRef = "inline"
		}
	}
	for _, req := range []struct{ name, value string }{
		{"copybook", c.Copybook},
		{mappingField, mappingRef},
		{"dataDir", c.DataDir},
		{"outputDir", c.OutputDir},
	} {
		if strings.TrimSpace(req.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalid, req.name)
		}
	}
	if c.FieldDelimiter == "" || c.GroupDelimiter == "" || c.FieldDelimiter == c.GroupDelimiter {
		return fmt.Errorf("%w: fieldDelimiter and groupDelimiter must be non-empty and differ", ErrInvalid)
	}
	if _, err := mapping.GetSource(c.Mapping.Type); err != nil {
		return fmt.Errorf("%w: mapping.type: %v", ErrInvalid, err)
	}
	if c.Load != nil {
		switch c.Load.Driver {
		case domain.DatabaseDriverSQLite, domain.DatabaseDriverMySQL,
			domain.DatabaseDriverPostgres, domain.DatabaseDriverMongoDB:
		default:
			return fmt.Errorf("%w: load.driver %q", ErrInvalid, c.Load.Driver)
		}
		if c.Load.Mode != domain.LoadReplace && c.Load.Mode != domain.LoadAppend {
			return fmt.Errorf("%w: load.mode %q", ErrInvalid, c.Load.Mode)
		}
		if c.Load.PasswordSecret != "" {
			if _, _, err := secret.ParseReference(c.Load.PasswordSecret); err != nil {
				return fmt.Errorf("%w: load.passwordSecret: %v", ErrInvalid, err)
			}
		}
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("%w: schedule: %v", ErrInvalid, err)
		}
	}
	return nil
}

// Marshal serializes a config in the format implied by path.
func Marshal(c *Config, path string) ([]byte, error) {
	if formatOf(path) == formatTOML {
		return toml.Marshal(c)
	}
	return yaml.Marshal(c)
}

// WriteFile writes a config to path.
func WriteFile(c *Config, path string) error {
	data, err := Marshal(c, path)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Sample is the starter config written by the init command.
func Sample() *Config {
	return &Config{
		Copybook:  "copybook.txt",
		SchemaDir: "out/Schema",
		Mapping:   Mapping{Type: "csv", Path: "mapping.csv"},
		DataDir:   "data",
		OutputDir: "out",
	}
}
