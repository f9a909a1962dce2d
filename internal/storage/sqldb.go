package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql" // registers "mysql"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

// metadataFunc loads the ordered column list of a table.
type metadataFunc func(ctx context.Context, db *sql.DB, table string) ([]Column, error)

// SQLEngine serves tables from a database/sql pool (SQLite or MySQL).
type SQLEngine struct {
	db       *sql.DB
	dialect  Dialect
	metadata metadataFunc
}

// PoolOptions sizes a database/sql pool.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// OpenSQL opens a database/sql pool for driver ("sqlite" or "mysql").
func OpenSQL(ctx context.Context, driver, dsn string, opts PoolOptions) (*SQLEngine, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	e, err := NewSQLEngine(db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := e.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

// NewSQLEngine wraps an existing pool. driver selects the dialect.
func NewSQLEngine(db *sql.DB, driver string) (*SQLEngine, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return &SQLEngine{db: db, dialect: SQLite{}, metadata: sqliteColumns}, nil
	case "mysql":
		return &SQLEngine{db: db, dialect: MySQL{}, metadata: mysqlColumns}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}

// Table returns a handle for name. The table is not checked until its
// metadata is first requested.
func (e *SQLEngine) Table(name string) (Table, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("table name is required")
	}
	return &sqlTable{engine: e, name: name}, nil
}

// Ping verifies the connection.
func (e *SQLEngine) Ping(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", e.dialect.Name(), err)
	}
	return nil
}

// Close closes the pool.
func (e *SQLEngine) Close() error {
	return e.db.Close()
}

// Dialect returns the engine's SQL dialect.
func (e *SQLEngine) Dialect() Dialect {
	return e.dialect
}

type sqlTable struct {
	engine *SQLEngine
	name   string

	mu   sync.Mutex
	cols []Column // loaded on first use
}

func (t *sqlTable) Name() string { return t.name }

func (t *sqlTable) Columns(ctx context.Context) ([]Column, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cols != nil {
		return t.cols, nil
	}
	cols, err := t.engine.metadata(ctx, t.engine.db, t.name)
	if err != nil {
		return nil, fmt.Errorf("load columns of %s: %w", t.name, err)
	}
	t.cols = cols
	return cols, nil
}

func (t *sqlTable) PrimaryKey(ctx context.Context) ([]string, error) {
	cols, err := t.Columns(ctx)
	if err != nil {
		return nil, err
	}
	return primaryKeyOf(cols), nil
}

func (t *sqlTable) FindByPrimaryKey(ctx context.Context, key Predicate) (Record, bool, error) {
	st, err := findStatement(t.engine.dialect, t.name, key)
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

func (t *sqlTable) Insert(ctx context.Context, values Record) (any, error) {
	cols, err := t.Columns(ctx)
	if err != nil {
		return nil, err
	}
	pk := primaryKeyOf(cols)
	d := t.engine.dialect
	st := insertStatement(d, t.name, values, columnNames(cols), pk)

	if d.Returning() && len(pk) > 0 {
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

	res, err := t.engine.db.ExecContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", t.name, err)
	}

	// Supplied key values win over the driver's auto-increment id.
	vals := make([]any, 0, len(pk))
	for _, k := range pk {
		if v, ok := values[k]; ok {
			vals = append(vals, v)
		}
	}
	if len(pk) > 0 && len(vals) == len(pk) {
		return keyValue(vals), nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, nil
	}
	return id, nil
}

func (t *sqlTable) Update(ctx context.Context, values Record, where Predicate) (int64, error) {
	st, err := updateStatement(t.engine.dialect, t.name, values, where, nil)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", t.name, err)
	}
	return t.exec(ctx, "update", st)
}

func (t *sqlTable) Delete(ctx context.Context, where Predicate) (int64, error) {
	st, err := deleteStatement(t.engine.dialect, t.name, where)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", t.name, err)
	}
	return t.exec(ctx, "delete from", st)
}

func (t *sqlTable) Query(ctx context.Context, q Query) (Page, error) {
	page, count, err := selectStatements(t.engine.dialect, t.name, q)
	if err != nil {
		return Page{}, fmt.Errorf("query %s: %w", t.name, err)
	}

	var total int64
	if err := t.engine.db.QueryRowContext(ctx, count.SQL, count.Args...).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count rows: %w", err)
	}

	records, err := t.query(ctx, page)
	if err != nil {
		return Page{}, fmt.Errorf("query rows: %w", err)
	}
	return Page{Records: records, Total: total}, nil
}

func (t *sqlTable) exec(ctx context.Context, verb string, st statement) (int64, error) {
	res, err := t.engine.db.ExecContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", verb, t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s %s: rows affected: %w", verb, t.name, err)
	}
	return n, nil
}

// query runs st and collects every row as a Record.
func (t *sqlTable) query(ctx context.Context, st statement) ([]Record, error) {
	rows, err := t.engine.db.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []Record
	for rows.Next() {
		values := make([]any, len(names))
		dest := make([]any, len(names))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rec := make(Record, len(names))
		for i, name := range names {
			rec[name] = normalizeValue(values[i])
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}

// sqliteColumns reads column metadata through pragma_table_info. The pk field
// is the 1-based position inside the primary key, 0 for other columns.
func sqliteColumns(ctx context.Context, db *sql.DB, table string) ([]Column, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	keys := 0
	for rows.Next() {
		var (
			name, typ string
			notNull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		if pk > 0 {
			keys++
		}
		cols = append(cols, Column{
			Name:        name,
			DBType:      typ,
			Kind:        KindOf(typ),
			Nullable:    notNull == 0 && pk == 0,
			HasDefault:  dflt.Valid,
			MaxLength:   declaredLength(typ),
			KeyPosition: pk,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}

	// A single-column INTEGER PRIMARY KEY aliases the rowid and is assigned
	// on insert. Composite keys never do.
	if keys == 1 {
		for i := range cols {
			if cols[i].KeyPosition == 1 && strings.EqualFold(cols[i].DBType, "integer") {
				cols[i].HasDefault = true
			}
		}
	}
	return cols, nil
}

// mysqlColumns reads column metadata from information_schema for the current database.
func mysqlColumns(ctx context.Context, db *sql.DB, table string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.COLUMN_NAME, c.DATA_TYPE, c.IS_NULLABLE, c.COLUMN_DEFAULT,
		       c.CHARACTER_MAXIMUM_LENGTH, c.EXTRA, COALESCE(k.ORDINAL_POSITION, 0)
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE k
		  ON k.TABLE_SCHEMA = c.TABLE_SCHEMA AND k.TABLE_NAME = c.TABLE_NAME
		 AND k.COLUMN_NAME = c.COLUMN_NAME AND k.CONSTRAINT_NAME = 'PRIMARY'
		WHERE c.TABLE_SCHEMA = DATABASE() AND c.TABLE_NAME = ?
		ORDER BY c.ORDINAL_POSITION`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			name, typ, nullable, extra string
			dflt                       sql.NullString
			maxLen                     sql.NullInt64
			keyPos                     int
		)
		if err := rows.Scan(&name, &typ, &nullable, &dflt, &maxLen, &extra, &keyPos); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col := Column{
			Name:        name,
			DBType:      typ,
			Kind:        KindOf(typ),
			Nullable:    nullable == "YES",
			HasDefault:  dflt.Valid || strings.Contains(strings.ToLower(extra), "auto_increment"),
			KeyPosition: keyPos,
		}
		if maxLen.Valid && maxLen.Int64 < 1<<20 {
			col.MaxLength = int(maxLen.Int64)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	return cols, nil
}
