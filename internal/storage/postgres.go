package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the subset of pgx used by the Postgres table.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// PgEngine serves tables from a pgx connection pool.
type PgEngine struct {
	pool *pgxpool.Pool
	db   DBTX
}

// NewPgEngine wraps an existing pool. The pool stays owned by the caller
// unless Close is called.
func NewPgEngine(pool *pgxpool.Pool) *PgEngine {
	return &PgEngine{pool: pool, db: pool}
}

// Table returns a handle for name, optionally schema-qualified ("sales.orders").
func (e *PgEngine) Table(name string) (Table, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("table name is required")
	}
	return &pgTable{db: e.db, name: name}, nil
}

// Ping verifies the connection.
func (e *PgEngine) Ping(ctx context.Context) error {
	if e.pool == nil {
		return nil
	}
	if err := e.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close closes the pool.
func (e *PgEngine) Close() error {
	if e.pool != nil {
		e.pool.Close()
	}
	return nil
}

type pgTable struct {
	db   DBTX
	name string

	mu   sync.Mutex
	cols []Column
}

func (t *pgTable) Name() string { return t.name }

// schemaAndName splits the table reference, defaulting to the public schema.
func (t *pgTable) schemaAndName() (string, string) {
	if i := strings.IndexByte(t.name, '.'); i > 0 {
		return t.name[:i], t.name[i+1:]
	}
	return "public", t.name
}

const pgColumnsQuery = `
SELECT c.column_name::text, c.data_type::text, c.is_nullable = 'YES',
       c.column_default IS NOT NULL OR c.is_identity = 'YES',
       COALESCE(c.character_maximum_length, 0)::int4,
       COALESCE(k.ordinal_position, 0)::int4
FROM information_schema.columns c
LEFT JOIN information_schema.table_constraints tc
  ON tc.table_schema = c.table_schema AND tc.table_name = c.table_name
 AND tc.constraint_type = 'PRIMARY KEY'
LEFT JOIN information_schema.key_column_usage k
  ON k.constraint_schema = tc.constraint_schema AND k.constraint_name = tc.constraint_name
 AND k.table_name = c.table_name AND k.column_name = c.column_name
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`

func (t *pgTable) Columns(ctx context.Context) ([]Column, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cols != nil {
		return t.cols, nil
	}

	schema, name := t.schemaAndName()
	rows, err := t.db.Query(ctx, pgColumnsQuery, schema, name)
	if err != nil {
		return nil, fmt.Errorf("load columns of %s: %w", t.name, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			col     Column
			maxLen  int32
			keyPos  int32
			nullOK  bool
			hasDflt bool
		)
		if err := rows.Scan(&col.Name, &col.DBType, &nullOK, &hasDflt, &maxLen, &keyPos); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.Kind = KindOf(col.DBType)
		col.Nullable = nullOK
		col.HasDefault = hasDflt
		col.MaxLength = int(maxLen)
		col.KeyPosition = int(keyPos)
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s does not exist", t.name)
	}

	t.cols = cols
	return cols, nil
}

func (t *pgTable) PrimaryKey(ctx context.Context) ([]string, error) {
	cols, err := t.Columns(ctx)
	if err != nil {
		return nil, err
	}
	return primaryKeyOf(cols), nil
}

func (t *pgTable) FindByPrimaryKey(ctx context.Context, key Predicate) (Record, bool, error) {
	st, err := findStatement(Postgres{}, t.name, key)
	if err != nil {
		return nil, false, err
	}
	records, err := t.query(ctx, st)
	if err != nil {
		return nil, false, fmt.Errorf("find in %s: %w", t.name, err)
	}
	switch len(records) {
	case 0:
		return nil, false, nil
	case 1:
		return records[0], true, nil
	default:
		return nil, false, fmt.Errorf("find in %s: key matched more than one row", t.name)
	}
}

func (t *pgTable) Insert(ctx context.Context, values Record) (any, error) {
	cols, err := t.Columns(ctx)
	if err != nil {
		return nil, err
	}
	pk := primaryKeyOf(cols)

	st := insertStatement(Postgres{}, t.name, values, columnNames(cols), pk)
	records, err := t.query(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", t.name, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	vals := make([]any, len(pk))
	for i, k := range pk {
		vals[i] = records[0][k]
	}
	return keyValue(vals), nil
}

func (t *pgTable) Update(ctx context.Context, values Record, where Predicate) (int64, error) {
	st, err := updateStatement(Postgres{}, t.name, values, where, nil)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", t.name, err)
	}
	tag, err := t.db.Exec(ctx, st.SQL, st.Args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", t.name, err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTable) Delete(ctx context.Context, where Predicate) (int64, error) {
	st, err := deleteStatement(Postgres{}, t.name, where)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", t.name, err)
	}
	tag, err := t.db.Exec(ctx, st.SQL, st.Args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", t.name, err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTable) Query(ctx context.Context, q Query) (Page, error) {
	page, count, err := selectStatements(Postgres{}, t.name, q)
	if err != nil {
		return Page{}, fmt.Errorf("query %s: %w", t.name, err)
	}

	var total int64
	if err := t.db.QueryRow(ctx, count.SQL, count.Args...).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count rows: %w", err)
	}

	records, err := t.query(ctx, page)
	if err != nil {
		return Page{}, fmt.Errorf("query rows: %w", err)
	}
	return Page{Records: records, Total: total}, nil
}

// query runs st and collects every row keyed by field name.
func (t *pgTable) query(ctx context.Context, st statement) ([]Record, error) {
	rows, err := t.db.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()

	var records []Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}

		rec := make(Record, len(fields))
		for i, f := range fields {
			rec[f.Name] = normalizePgValue(values[i])
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}

// normalizePgValue turns pgx wire types into plain Go values the form and
// view layers understand.
func normalizePgValue(v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val).String()
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case pgtype.Text:
		if !val.Valid {
			return nil
		}
		return val.String
	case pgtype.Date:
		if !val.Valid {
			return nil
		}
		return val.Time
	case pgtype.Time:
		if !val.Valid {
			return nil
		}
		return fmt.Sprintf("%02d:%02d:%02d",
			val.Microseconds/3600e6, (val.Microseconds/60e6)%60, (val.Microseconds/1e6)%60)
	case []byte:
		return string(val)
	default:
		return v
	}
}
