package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateDatabase()...)
	errors = append(errors, c.validateAdoption()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateDatabase() ValidationErrors {
	var errors ValidationErrors
	db := &c.Database

	switch db.Driver {
	case DriverSQLite:
		if db.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "database.path",
				Message: "path is required for the sqlite driver",
			})
		}
	case DriverPostgres:
		if db.DSN == "" {
			errors = append(errors, c.validateNetworkDatabase()...)
		}
	case DriverMySQL:
		errors = append(errors, c.validateNetworkDatabase()...)

		validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
		if !validTLS[db.TLS] {
			errors = append(errors, ValidationError{
				Field:   "database.tls",
				Message: "tls must be 'disable', 'preferred', or 'required'",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "database.driver",
			Message: "driver must be 'mysql', 'postgres', or 'sqlite'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "database.max_connections",
			Message: "max_connections cannot be negative",
		})
	} else if db.MaxConnections == 1 && db.Driver != DriverSQLite {
		// adopt pins one connection for its run lock.
		errors = append(errors, ValidationError{
			Field:   "database.max_connections",
			Message: "max_connections must be at least 2 for network databases",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "database.max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	if db.TablePrefix != "" && !validPrefix(db.TablePrefix) {
		errors = append(errors, ValidationError{
			Field:   "database.table_prefix",
			Message: "table_prefix may only contain letters, digits and underscores",
		})
	}

	return errors
}

func (c *Config) validateNetworkDatabase() ValidationErrors {
	var errors ValidationErrors
	db := &c.Database

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "database.host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "database.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   "database.user",
			Message: "user is required",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "database.database",
			Message: "database name is required",
		})
	}

	return errors
}

func (c *Config) validateAdoption() ValidationErrors {
	var errors ValidationErrors
	a := &c.Adoption

	required := []struct {
		field string
		value string
	}{
		{"adoption.host_kind", a.HostKind},
		{"adoption.block_kind", a.BlockKind},
		{"adoption.library_item_kind", a.LibraryItemKind},
		{"adoption.collector_field", a.CollectorField},
		{"adoption.embed_filter", a.EmbedFilter},
		{"adoption.markup.tag", a.Markup.Tag},
		{"adoption.markup.id_attribute", a.Markup.IDAttribute},
	}
	for _, r := range required {
		if r.value == "" {
			errors = append(errors, ValidationError{
				Field:   r.field,
				Message: "value is required",
			})
		}
	}

	if a.BlockKind != "" && a.BlockKind == a.LibraryItemKind {
		errors = append(errors, ValidationError{
			Field:   "adoption.library_item_kind",
			Message: "library_item_kind must differ from block_kind",
		})
	}

	if a.Markup.TypeAttribute != "" && a.Markup.TypeValue == "" {
		errors = append(errors, ValidationError{
			Field:   "adoption.markup.type_value",
			Message: "type_value is required when type_attribute is set",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}

func validPrefix(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
