// Package sqlutil provides dialect-aware SQL helpers for the record store.
package sqlutil

import (
	"regexp"
	"strconv"
	"strings"
)

// Dialect identifies the SQL flavour a query is written for.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect maps a driver name to its dialect. Unknown names fall back to MySQL.
func ParseDialect(driver string) Dialect {
	switch driver {
	case "postgres", "pgx":
		return Postgres
	case "sqlite", "sqlite3":
		return SQLite
	default:
		return MySQL
	}
}

// QuoteIdentifier quotes an identifier (table name, column name) for the dialect.
// MySQL uses backticks; Postgres and SQLite use double quotes. Embedded quote
// characters are doubled.
// Example: MySQL.QuoteIdentifier("my`table") -> "`my``table`"
func (d Dialect) QuoteIdentifier(name string) string {
	if d == MySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// validIdentifierRegex restricts identifiers to alphanumerics and underscore.
var validIdentifierRegex = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// IsValidIdentifier checks if a name only contains alphanumeric characters and underscores.
func IsValidIdentifier(name string) bool {
	return validIdentifierRegex.MatchString(name)
}

// QuoteIdentifierSafe quotes an identifier after validating it.
// Use this when identifiers come from configuration, such as a table prefix.
func (d Dialect) QuoteIdentifierSafe(name string) (string, error) {
	if !IsValidIdentifier(name) {
		return "", &InvalidIdentifierError{Name: name}
	}
	return d.QuoteIdentifier(name), nil
}

// Rebind rewrites '?' placeholders into the dialect's bind syntax.
// Only Postgres needs rewriting ($1, $2, ...). Question marks inside
// single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inLiteral := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inLiteral = !inLiteral
			b.WriteByte(c)
		case c == '?' && !inLiteral:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// InvalidIdentifierError is returned when an identifier contains invalid characters.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must contain only alphanumeric characters and underscores)"
}
