// Package config provides configuration structures and loading for embedadopt.
package config

import "github.com/slattery/paragraphs-inline-entity-form-extras/internal/content"

// Supported database drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config represents the complete application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Adoption AdoptionConfig `yaml:"adoption" mapstructure:"adoption"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents the record store connection.
type DatabaseConfig struct {
	Driver             string `yaml:"driver" mapstructure:"driver"` // mysql, postgres, sqlite
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	DSN                string `yaml:"dsn" mapstructure:"dsn"`   // postgres: full connection string, overrides host/port
	Path               string `yaml:"path" mapstructure:"path"` // sqlite: database file
	TLS                string `yaml:"tls" mapstructure:"tls"`   // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
	TablePrefix        string `yaml:"table_prefix" mapstructure:"table_prefix"`
}

// AdoptionConfig names the kinds, fields, filter and module the engine works with.
type AdoptionConfig struct {
	HostKind        string       `yaml:"host_kind" mapstructure:"host_kind"`
	BlockKind       string       `yaml:"block_kind" mapstructure:"block_kind"`
	LibraryItemKind string       `yaml:"library_item_kind" mapstructure:"library_item_kind"`
	CollectorField  string       `yaml:"collector_field" mapstructure:"collector_field"`
	EmbedFilter     string       `yaml:"embed_filter" mapstructure:"embed_filter"`
	RequiredModule  string       `yaml:"required_module" mapstructure:"required_module"` // empty disables the check
	Markup          MarkupConfig `yaml:"markup" mapstructure:"markup"`
}

// MarkupConfig describes the embed tag the text processor looks for.
type MarkupConfig struct {
	Tag           string `yaml:"tag" mapstructure:"tag"`
	TypeAttribute string `yaml:"type_attribute" mapstructure:"type_attribute"`
	TypeValue     string `yaml:"type_value" mapstructure:"type_value"`
	IDAttribute   string `yaml:"id_attribute" mapstructure:"id_attribute"`
}

// MetricsConfig controls the prometheus registry export.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Textfile string `yaml:"textfile" mapstructure:"textfile"` // node-exporter textfile path
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultAdoption returns the adoption settings matching the stock schema.
func DefaultAdoption() AdoptionConfig {
	return AdoptionConfig{
		HostKind:        content.KindNode,
		BlockKind:       content.KindParagraph,
		LibraryItemKind: content.KindLibraryItem,
		CollectorField:  "field_embedded_paragraphs",
		EmbedFilter:     "entity_embed",
		RequiredModule:  "paragraphs_inline_entity_form",
		Markup: MarkupConfig{
			Tag:           "drupal-entity",
			TypeAttribute: "data-entity-type",
			TypeValue:     content.KindParagraph,
			IDAttribute:   "data-entity-uuid",
		},
	}
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:             DriverMySQL,
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Adoption: DefaultAdoption(),
		Metrics: MetricsConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}
