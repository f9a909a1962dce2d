package crud

import (
	"context"
	"slices"

	"github.com/JonMunkholm/crud/internal/storage"
)

// EntitySchema is the introspected shape of one resource. It is computed
// once when the controller is built and never mutated afterwards.
type EntitySchema struct {
	Table      string
	Columns    []string // operable columns, table order, hidden ones removed
	PrimaryKey []string // full key in key order; may include hidden columns
	Hidden     map[string]bool
	Meta       []storage.Column // every column, table order
}

// DeriveSchema reads the table's metadata and applies the hide-list.
func DeriveSchema(ctx context.Context, table storage.Table, hidden []string) (EntitySchema, error) {
	if table == nil {
		return EntitySchema{}, &ConfigurationError{Reason: "no storage table configured"}
	}
	name := table.Name()

	meta, err := table.Columns(ctx)
	if err != nil {
		return EntitySchema{}, &ConfigurationError{Resource: name, Reason: "cannot read columns", Err: err}
	}
	if len(meta) == 0 {
		return EntitySchema{}, &ConfigurationError{Resource: name, Reason: "table has no columns"}
	}

	pk, err := table.PrimaryKey(ctx)
	if err != nil {
		return EntitySchema{}, &ConfigurationError{Resource: name, Reason: "cannot read primary key", Err: err}
	}
	if len(pk) == 0 {
		return EntitySchema{}, &ConfigurationError{Resource: name, Reason: "table has no primary key"}
	}

	s := EntitySchema{
		Table:      name,
		PrimaryKey: slices.Clone(pk),
		Hidden:     make(map[string]bool, len(hidden)),
		Meta:       slices.Clone(meta),
	}
	for _, h := range hidden {
		s.Hidden[h] = true
	}

	for _, col := range meta {
		if !s.Hidden[col.Name] {
			s.Columns = append(s.Columns, col.Name)
		}
	}
	for _, k := range pk {
		if _, ok := s.Column(k); !ok {
			return EntitySchema{}, &ConfigurationError{Resource: name, Reason: "primary key column " + k + " is not a table column"}
		}
	}
	if len(s.Columns) == 0 {
		return EntitySchema{}, &ConfigurationError{Resource: name, Reason: "every column is hidden"}
	}

	return s, nil
}

// Column returns the metadata of name from the full column set.
func (s EntitySchema) Column(name string) (storage.Column, bool) {
	for _, c := range s.Meta {
		if c.Name == name {
			return c, true
		}
	}
	return storage.Column{}, false
}

// IsOperable reports whether name may be searched, sorted, shown or edited.
func (s EntitySchema) IsOperable(name string) bool {
	return slices.Contains(s.Columns, name)
}

// Operable returns the metadata of the operable columns in order.
func (s EntitySchema) Operable() []storage.Column {
	out := make([]storage.Column, 0, len(s.Columns))
	for _, c := range s.Meta {
		if !s.Hidden[c.Name] {
			out = append(out, c)
		}
	}
	return out
}

// projection is the column list read for a list page: the operable columns
// plus any hidden key column needed to address each row.
func (s EntitySchema) projection() []string {
	cols := slices.Clone(s.Columns)
	for _, k := range s.PrimaryKey {
		if !slices.Contains(cols, k) {
			cols = append(cols, k)
		}
	}
	return cols
}

// visible drops hidden columns from rec.
func (s EntitySchema) visible(rec storage.Record) storage.Record {
	out := make(storage.Record, len(rec))
	for k, v := range rec {
		if !s.Hidden[k] {
			out[k] = v
		}
	}
	return out
}
