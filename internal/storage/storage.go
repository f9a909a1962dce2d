// Package storage defines the table contract the CRUD core consumes and
// provides SQL implementations of it for PostgreSQL, SQLite and MySQL.
//
// The core never builds SQL text. It hands the storage layer structured
// predicates and orders built from whitelisted column names; the engine
// renders them with its own identifier quoting and placeholder syntax so
// user-supplied values always travel as bound parameters.
package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Record is one row keyed by column name.
type Record map[string]any

// Kind is the coarse type family of a column, derived from its declared type.
type Kind int

const (
	KindUnknown Kind = iota
	KindText
	KindInteger
	KindNumeric
	KindBool
	KindDate
	KindTimestamp
	KindUUID
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindNumeric:
		return "numeric"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	case KindUUID:
		return "uuid"
	default:
		return "unknown"
	}
}

// Column describes one column as reported by the engine's metadata.
type Column struct {
	Name       string
	DBType     string // declared type, e.g. "character varying", "INTEGER"
	Kind       Kind
	Nullable   bool
	HasDefault bool // includes serial / auto-increment keys
	MaxLength  int  // 0 when unbounded or unknown
	// KeyPosition is the 1-based position inside the primary key, 0 otherwise.
	KeyPosition int
}

var integerTypes = map[string]bool{
	"integer": true, "int": true, "int2": true, "int4": true, "int8": true,
	"smallint": true, "bigint": true, "tinyint": true, "mediumint": true,
	"serial": true, "smallserial": true, "bigserial": true,
}

// KindOf maps a declared SQL type name onto a Kind.
func KindOf(dbType string) Kind {
	t := strings.ToLower(strings.TrimSpace(dbType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}

	switch {
	case t == "uuid":
		return KindUUID
	case t == "boolean" || t == "bool":
		return KindBool
	case integerTypes[t]:
		return KindInteger
	case t == "numeric" || t == "decimal" || t == "real" || t == "float" ||
		t == "double" || t == "double precision" || strings.HasPrefix(t, "float"):
		return KindNumeric
	case t == "date":
		return KindDate
	case strings.HasPrefix(t, "timestamp") || t == "datetime":
		return KindTimestamp
	case strings.Contains(t, "char") || strings.Contains(t, "text") || t == "clob" || t == "":
		return KindText
	default:
		return KindUnknown
	}
}

// Operator is a comparison supported in predicates.
type Operator string

const (
	OpEquals   Operator = "eq"
	OpContains Operator = "contains"
)

// Condition compares a single column with a bound value.
type Condition struct {
	Column string
	Op     Operator
	Value  any
}

// Predicate is a conjunction of conditions. A nil Predicate matches every row.
type Predicate []Condition

// Direction is a sort direction literal.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Valid reports whether d is one of the two accepted literals.
func (d Direction) Valid() bool {
	return d == Asc || d == Desc
}

// Order is a single ORDER BY column.
type Order struct {
	Column    string
	Direction Direction
}

// Query describes a paged read.
type Query struct {
	Columns []string // projection; empty selects every column
	Where   Predicate
	Order   *Order
	// KeyOrder is appended after Order so paging stays deterministic.
	KeyOrder []string
	Limit    int
	Offset   int
}

// Page is the result of Query.
type Page struct {
	Records []Record
	Total   int64
}

// Table is the per-entity storage contract consumed by the CRUD controller.
type Table interface {
	Name() string
	Columns(ctx context.Context) ([]Column, error)
	PrimaryKey(ctx context.Context) ([]string, error)
	FindByPrimaryKey(ctx context.Context, key Predicate) (Record, bool, error)
	Insert(ctx context.Context, values Record) (any, error)
	Update(ctx context.Context, values Record, where Predicate) (int64, error)
	Delete(ctx context.Context, where Predicate) (int64, error)
	Query(ctx context.Context, q Query) (Page, error)
}

// Engine hands out table handles over one pooled connection.
type Engine interface {
	Table(name string) (Table, error)
	Ping(ctx context.Context) error
	Close() error
}
