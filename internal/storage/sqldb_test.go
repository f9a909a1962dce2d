package storage

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockEngine(t *testing.T, driverName string) (*SQLEngine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e, err := NewSQLEngine(db, driverName)
	require.NoError(t, err)
	return e, mock
}

func expectSQLiteItems(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta(`FROM pragma_table_info(?)`)).
		WithArgs("items").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "notnull", "dflt_value", "pk"}).
			AddRow("id", "INTEGER", 0, nil, 1).
			AddRow("name", "VARCHAR(40)", 1, nil, 0).
			AddRow("price", "REAL", 0, nil, 0))
}

func TestNewSQLEngine_UnknownDriver(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLEngine(db, "oracle")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestSQLTable_ColumnsSQLite(t *testing.T) {
	e, mock := newMockEngine(t, "sqlite")
	expectSQLiteItems(mock)

	table, err := e.Table("items")
	require.NoError(t, err)

	cols, err := table.Columns(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 3)

	assert.Equal(t, Column{Name: "id", DBType: "INTEGER", Kind: KindInteger, HasDefault: true, KeyPosition: 1}, cols[0])
	assert.Equal(t, Column{Name: "name", DBType: "VARCHAR(40)", Kind: KindText, MaxLength: 40}, cols[1])
	assert.Equal(t, Column{Name: "price", DBType: "REAL", Kind: KindNumeric, Nullable: true}, cols[2])

	// cached after the first load
	pk, err := table.PrimaryKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, pk)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTable_ColumnsSQLiteCompositeKey(t *testing.T) {
	e, mock := newMockEngine(t, "sqlite")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM pragma_table_info(?)`)).
		WithArgs("order_lines").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "notnull", "dflt_value", "pk"}).
			AddRow("order_id", "INTEGER", 1, nil, 1).
			AddRow("line", "INTEGER", 1, nil, 2).
			AddRow("sku", "TEXT", 0, nil, 0))

	table, err := e.Table("order_lines")
	require.NoError(t, err)

	cols, err := table.Columns(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 3)

	// neither key column aliases the rowid
	assert.False(t, cols[0].HasDefault)
	assert.False(t, cols[1].HasDefault)
	assert.Equal(t, 2, cols[1].KeyPosition)

	pk, err := table.PrimaryKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"order_id", "line"}, pk)
}

func TestSQLTable_ColumnsMissingTable(t *testing.T) {
	e, mock := newMockEngine(t, "sqlite")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM pragma_table_info(?)`)).
		WithArgs("ghosts").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "notnull", "dflt_value", "pk"}))

	table, err := e.Table("ghosts")
	require.NoError(t, err)

	_, err = table.Columns(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestSQLTable_ColumnsMySQL(t *testing.T) {
	e, mock := newMockEngine(t, "mysql")
	mock.ExpectQuery(regexp.QuoteMeta("FROM INFORMATION_SCHEMA.COLUMNS")).
		WithArgs("items").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE", "COLUMN_DEFAULT", "CHARACTER_MAXIMUM_LENGTH", "EXTRA", "ORDINAL_POSITION"}).
			AddRow("id", "int", "NO", nil, nil, "auto_increment", 1).
			AddRow("title", "varchar", "YES", nil, 120, "", 0))

	table, err := e.Table("items")
	require.NoError(t, err)

	cols, err := table.Columns(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 2)

	assert.Equal(t, KindInteger, cols[0].Kind)
	assert.True(t, cols[0].HasDefault)
	assert.Equal(t, 1, cols[0].KeyPosition)
	assert.Equal(t, 120, cols[1].MaxLength)
	assert.True(t, cols[1].Nullable)
}

func TestSQLTable_Query(t *testing.T) {
	e, mock := newMockEngine(t, "sqlite")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "items" WHERE CAST("name" AS TEXT) LIKE ? ESCAPE '\'`)).
		WithArgs("%wid%").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(int64(2)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id", "name" FROM "items" WHERE CAST("name" AS TEXT) LIKE ? ESCAPE '\' ORDER BY "id" ASC LIMIT ? OFFSET ?`)).
		WithArgs("%wid%", int64(30), int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), []byte("widget")).
			AddRow(int64(2), "wide"))

	table, err := e.Table("items")
	require.NoError(t, err)

	page, err := table.Query(context.Background(), Query{
		Columns:  []string{"id", "name"},
		Where:    Predicate{{Column: "name", Op: OpContains, Value: "wid"}},
		KeyOrder: []string{"id"},
		Limit:    30,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Records, 2)
	assert.Equal(t, Record{"id": int64(1), "name": "widget"}, page.Records[0])
	assert.Equal(t, Record{"id": int64(2), "name": "wide"}, page.Records[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTable_QueryCountError(t *testing.T) {
	e, mock := newMockEngine(t, "sqlite")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "items"`)).
		WillReturnError(assert.AnError)

	table, err := e.Table("items")
	require.NoError(t, err)

	_, err = table.Query(context.Background(), Query{})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSQLTable_FindByPrimaryKey(t *testing.T) {
	key := Predicate{{Column: "id", Op: OpEquals, Value: int64(5)}}
	findSQL := regexp.QuoteMeta(`SELECT * FROM "items" WHERE "id" = ? LIMIT ?`)

	tests := []struct {
		name      string
		rows      *sqlmock.Rows
		wantFound bool
		expectErr bool
	}{
		{
			name:      "found",
			rows:      sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(5), "widget"),
			wantFound: true,
		},
		{
			name: "not found",
			rows: sqlmock.NewRows([]string{"id", "name"}),
		},
		{
			name: "ambiguous key",
			rows: sqlmock.NewRows([]string{"id", "name"}).
				AddRow(int64(5), "widget").
				AddRow(int64(5), "gadget"),
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, mock := newMockEngine(t, "sqlite")
			mock.ExpectQuery(findSQL).WithArgs(int64(5), int64(2)).WillReturnRows(tt.rows)

			table, err := e.Table("items")
			require.NoError(t, err)

			rec, found, err := table.FindByPrimaryKey(context.Background(), key)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			if tt.wantFound {
				assert.Equal(t, "widget", rec["name"])
			}
		})
	}
}

func TestSQLTable_InsertReturning(t *testing.T) {
	e, mock := newMockEngine(t, "sqlite")
	expectSQLiteItems(mock)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "items" ("name", "price") VALUES (?, ?) RETURNING "id"`)).
		WithArgs("Widget", 9.5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	table, err := e.Table("items")
	require.NoError(t, err)

	id, err := table.Insert(context.Background(), Record{"name": "Widget", "price": 9.5})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTable_InsertLastInsertID(t *testing.T) {
	e, mock := newMockEngine(t, "mysql")
	mock.ExpectQuery(regexp.QuoteMeta("FROM INFORMATION_SCHEMA.COLUMNS")).
		WithArgs("items").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE", "COLUMN_DEFAULT", "CHARACTER_MAXIMUM_LENGTH", "EXTRA", "ORDINAL_POSITION"}).
			AddRow("id", "int", "NO", nil, nil, "auto_increment", 1).
			AddRow("name", "varchar", "NO", nil, 40, "", 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `items` (`name`) VALUES (?)")).
		WithArgs("Widget").
		WillReturnResult(sqlmock.NewResult(42, 1))

	table, err := e.Table("items")
	require.NoError(t, err)

	id, err := table.Insert(context.Background(), Record{"name": "Widget"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestSQLTable_UpdateAndDelete(t *testing.T) {
	e, mock := newMockEngine(t, "mysql")
	where := Predicate{{Column: "id", Op: OpEquals, Value: int64(3)}}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `items` SET `name` = ? WHERE `id` = ?")).
		WithArgs("Gadget", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `items` WHERE `id` = ?")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	table, err := e.Table("items")
	require.NoError(t, err)

	n, err := table.Update(context.Background(), Record{"name": "Gadget"}, where)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = table.Delete(context.Background(), where)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTable_DeleteRequiresPredicate(t *testing.T) {
	e, mock := newMockEngine(t, "sqlite")

	table, err := e.Table("items")
	require.NoError(t, err)

	_, err = table.Delete(context.Background(), nil)
	assert.ErrorIs(t, err, errUnboundedMutation)
	assert.NoError(t, mock.ExpectationsWereMet())
}
