package crud

import (
	"context"

	"github.com/JonMunkholm/crud/internal/storage"
)

type updateCall struct {
	values storage.Record
	where  storage.Predicate
}

// fakeTable records every call the controller makes against storage.
type fakeTable struct {
	name    string
	cols    []storage.Column
	pk      []string
	colsErr error

	records  []storage.Record
	page     storage.Page
	insertID any
	affected int64
	err      error // returned by every data call when set

	metaCalls int
	queries   []storage.Query
	finds     []storage.Predicate
	inserts   []storage.Record
	updates   []updateCall
	deletes   []storage.Predicate
}

func (f *fakeTable) Name() string { return f.name }

func (f *fakeTable) Columns(context.Context) ([]storage.Column, error) {
	f.metaCalls++
	return f.cols, f.colsErr
}

func (f *fakeTable) PrimaryKey(context.Context) ([]string, error) {
	f.metaCalls++
	return f.pk, f.colsErr
}

func (f *fakeTable) FindByPrimaryKey(_ context.Context, key storage.Predicate) (storage.Record, bool, error) {
	f.finds = append(f.finds, key)
	if f.err != nil {
		return nil, false, f.err
	}
	for _, rec := range f.records {
		if matches(rec, key) {
			return rec, true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeTable) Insert(_ context.Context, values storage.Record) (any, error) {
	f.inserts = append(f.inserts, values)
	return f.insertID, f.err
}

func (f *fakeTable) Update(_ context.Context, values storage.Record, where storage.Predicate) (int64, error) {
	f.updates = append(f.updates, updateCall{values: values, where: where})
	return f.affected, f.err
}

func (f *fakeTable) Delete(_ context.Context, where storage.Predicate) (int64, error) {
	f.deletes = append(f.deletes, where)
	return f.affected, f.err
}

func (f *fakeTable) Query(_ context.Context, q storage.Query) (storage.Page, error) {
	f.queries = append(f.queries, q)
	return f.page, f.err
}

// dataCalls counts every non-metadata storage call.
func (f *fakeTable) dataCalls() int {
	return len(f.queries) + len(f.finds) + len(f.inserts) + len(f.updates) + len(f.deletes)
}

func matches(rec storage.Record, key storage.Predicate) bool {
	for _, c := range key {
		if rec[c.Column] != c.Value {
			return false
		}
	}
	return true
}

// usersTable is {id, name, email} keyed by id.
func usersTable() *fakeTable {
	return &fakeTable{
		name: "users",
		cols: []storage.Column{
			{Name: "id", DBType: "integer", Kind: storage.KindInteger, HasDefault: true, KeyPosition: 1},
			{Name: "name", DBType: "character varying", Kind: storage.KindText, MaxLength: 40},
			{Name: "email", DBType: "text", Kind: storage.KindText, Nullable: true},
		},
		pk: []string{"id"},
		records: []storage.Record{
			{"id": int64(5), "name": "Ann", "email": "ann@example.com"},
			{"id": int64(42), "name": "Bob", "email": nil},
		},
		affected: 1,
	}
}
