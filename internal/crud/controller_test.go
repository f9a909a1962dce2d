package crud

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/crud/internal/storage"
)

func newUsers(t *testing.T, hidden ...string) (*Controller, *fakeTable) {
	t.Helper()
	table := usersTable()
	c, err := New(context.Background(), Config{Name: "users", Table: table, Hidden: hidden})
	require.NoError(t, err)
	return c, table
}

func get(params url.Values) Request  { return Request{Params: params} }
func post(params url.Values) Request { return Request{Mutating: true, Params: params} }

func TestNew_Defaults(t *testing.T) {
	c, table := newUsers(t)

	assert.Equal(t, "users", c.Name())
	assert.Equal(t, DefaultTitle, c.Title())
	assert.Equal(t, DefaultPageSize, c.PageSize())
	assert.Len(t, c.Fields(), 3)
	assert.Equal(t, 2, table.metaCalls)

	// schema is cached: operations never go back to metadata
	_, _ = c.List(context.Background(), get(nil))
	_, _ = c.Read(context.Background(), get(url.Values{"id": {"5"}}))
	assert.Equal(t, 2, table.metaCalls)
}

func TestNew_ConfigurationError(t *testing.T) {
	table := usersTable()
	table.pk = nil

	_, err := New(context.Background(), Config{Name: "users", Table: table})
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "users", ce.Resource)

	_, err = New(context.Background(), Config{Name: "ghost"})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "ghost", ce.Resource)
}

func TestIndex_RedirectsToList(t *testing.T) {
	c, table := newUsers(t)

	res, err := c.Index(context.Background(), get(nil))
	require.NoError(t, err)
	assert.Equal(t, OpList, res.Redirect)
	assert.Zero(t, table.dataCalls())
}

func TestList_Defaults(t *testing.T) {
	c, table := newUsers(t)
	table.page = storage.Page{Records: table.records, Total: 61}

	res, err := c.List(context.Background(), get(nil))
	require.NoError(t, err)

	require.Len(t, table.queries, 1)
	q := table.queries[0]
	assert.Equal(t, []string{"id", "name", "email"}, q.Columns)
	assert.Nil(t, q.Where)
	assert.Nil(t, q.Order)
	assert.Equal(t, []string{"id"}, q.KeyOrder)
	assert.Equal(t, 30, q.Limit)
	assert.Equal(t, 0, q.Offset)

	assert.Equal(t, ViewList, res.View)
	assert.Equal(t, int64(61), res.List.Total)
	assert.Equal(t, 3, res.List.TotalPages)
	assert.Nil(t, res.List.Order)
	assert.Equal(t, storage.Desc, res.List.Reverse)
	assert.Len(t, res.List.Records, 2)
}

func TestList_PageCoercion(t *testing.T) {
	tests := []struct {
		p          string
		wantPage   int
		wantOffset int
	}{
		{"0", 1, 0},
		{"-4", 1, 0},
		{"x", 1, 0},
		{"1", 1, 0},
		{"3", 3, 60},
	}

	for _, tt := range tests {
		t.Run("p="+tt.p, func(t *testing.T) {
			c, table := newUsers(t)

			res, err := c.List(context.Background(), get(url.Values{"p": {tt.p}}))
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, res.List.Page)
			assert.Equal(t, tt.wantOffset, table.queries[0].Offset)
		})
	}
}

func TestList_SortByNameDescending(t *testing.T) {
	c, table := newUsers(t)

	res, err := c.List(context.Background(), get(url.Values{"o": {"name"}, "ot": {"DESC"}}))
	require.NoError(t, err)

	want := &storage.Order{Column: "name", Direction: storage.Desc}
	assert.Equal(t, want, table.queries[0].Order)
	assert.Equal(t, want, res.List.Order)
	assert.Equal(t, storage.Asc, res.List.Reverse)
}

func TestList_SortDefaultsToAscending(t *testing.T) {
	c, table := newUsers(t)

	res, err := c.List(context.Background(), get(url.Values{"o": {"email"}}))
	require.NoError(t, err)
	assert.Equal(t, storage.Asc, table.queries[0].Order.Direction)
	assert.Equal(t, storage.Desc, res.List.Reverse)
}

func TestList_InvalidSortRunsNoQuery(t *testing.T) {
	tests := []struct {
		name   string
		params url.Values
	}{
		{"unknown column", url.Values{"o": {"password"}, "ot": {"ASC"}}},
		{"injected column", url.Values{"o": {"name DESC; --"}}},
		{"bad direction", url.Values{"o": {"name"}, "ot": {"SIDEWAYS"}}},
		{"direction without column", url.Values{"ot": {"DESC"}}},
		{"hidden column", url.Values{"o": {"email"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, table := newUsers(t, "email")

			res, err := c.List(context.Background(), get(tt.params))

			var se *InvalidSortError
			require.ErrorAs(t, err, &se)
			assert.Empty(t, table.queries)
			assert.Equal(t, ViewList, res.View)
			assert.Nil(t, res.List.Order, "default sort left in place")
			assert.Equal(t, err, res.Err)
		})
	}
}

func TestList_SubstringSearch(t *testing.T) {
	c, table := newUsers(t)

	res, err := c.List(context.Background(), get(url.Values{
		"columns": {"1"},
		"search":  {"ann"},
		"exact":   {"0"},
	}))
	require.NoError(t, err)

	assert.Equal(t, storage.Predicate{{Column: "name", Op: storage.OpContains, Value: "ann"}}, table.queries[0].Where)
	assert.Equal(t, SearchState{Active: true, Column: 1, Text: "ann"}, res.List.Search)
}

func TestList_ExactSearchUsesColumnType(t *testing.T) {
	c, table := newUsers(t)

	_, err := c.List(context.Background(), get(url.Values{
		"columns": {"0"},
		"search":  {"42"},
		"exact":   {"on"},
	}))
	require.NoError(t, err)
	assert.Equal(t, storage.Predicate{{Column: "id", Op: storage.OpEquals, Value: int64(42)}}, table.queries[0].Where)
}

func TestList_EmptySearchAppliesNoFilter(t *testing.T) {
	c, table := newUsers(t)

	_, err := c.List(context.Background(), get(url.Values{"search": {""}, "columns": {"2"}}))
	require.NoError(t, err)
	assert.Nil(t, table.queries[0].Where)
}

func TestList_InvalidSearchRunsNoQuery(t *testing.T) {
	tests := []struct {
		name   string
		params url.Values
	}{
		{"index out of range", url.Values{"columns": {"99"}, "search": {"x"}}},
		{"negative index", url.Values{"columns": {"-1"}, "search": {"x"}}},
		{"index not a number", url.Values{"columns": {"name"}, "search": {"x"}}},
		{"bad exact flag", url.Values{"columns": {"1"}, "search": {"x"}, "exact": {"maybe"}}},
		{"exact text on integer column", url.Values{"columns": {"0"}, "search": {"abc"}, "exact": {"1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, table := newUsers(t)

			res, err := c.List(context.Background(), get(tt.params))

			var se *InvalidSearchError
			require.ErrorAs(t, err, &se)
			assert.Empty(t, table.queries, "must not fall back to an unfiltered query")
			assert.Equal(t, ViewList, res.View)
			assert.Nil(t, res.List.Records)
			assert.True(t, res.List.Search.Active)
		})
	}
}

func TestList_InvalidTypedSearchRunsNoQuery(t *testing.T) {
	table := &fakeTable{
		name: "events",
		cols: []storage.Column{
			{Name: "ref", DBType: "uuid", Kind: storage.KindUUID, KeyPosition: 1},
			{Name: "day", DBType: "date", Kind: storage.KindDate},
			{Name: "at", DBType: "timestamp with time zone", Kind: storage.KindTimestamp, Nullable: true},
		},
		pk: []string{"ref"},
	}
	c, err := New(context.Background(), Config{Name: "events", Table: table})
	require.NoError(t, err)

	for _, col := range []string{"0", "1", "2"} {
		t.Run("column "+col, func(t *testing.T) {
			_, err := c.List(context.Background(), get(url.Values{"columns": {col}, "search": {"not-valid"}, "exact": {"1"}}))

			var se *InvalidSearchError
			require.ErrorAs(t, err, &se)
			assert.Empty(t, table.queries)
		})
	}

	_, err = c.List(context.Background(), get(url.Values{"columns": {"1"}, "search": {"2024-03-01"}, "exact": {"1"}}))
	require.NoError(t, err)
	require.Len(t, table.queries, 1)
	assert.IsType(t, time.Time{}, table.queries[0].Where[0].Value)
}

func TestList_HiddenKeyStillProjected(t *testing.T) {
	c, table := newUsers(t, "id")

	_, err := c.List(context.Background(), get(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "email", "id"}, table.queries[0].Columns)
}

func TestList_StorageError(t *testing.T) {
	c, table := newUsers(t)
	table.err = errors.New("connection refused")

	res, err := c.List(context.Background(), get(nil))

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "list", se.Op)
	assert.Equal(t, ViewList, res.View)
}

func TestRead(t *testing.T) {
	t.Run("missing id redirects to list", func(t *testing.T) {
		c, table := newUsers(t)

		res, err := c.Read(context.Background(), get(nil))
		require.NoError(t, err)
		assert.Equal(t, OpList, res.Redirect)
		assert.Zero(t, table.dataCalls())
	})

	t.Run("found", func(t *testing.T) {
		c, table := newUsers(t, "email")

		res, err := c.Read(context.Background(), get(url.Values{"id": {"5"}}))
		require.NoError(t, err)
		assert.Equal(t, ViewDetail, res.View)
		assert.Equal(t, storage.Record{"id": int64(5), "name": "Ann"}, res.Record)
		assert.Equal(t, []string{"5"}, res.Key)
		assert.Equal(t, storage.Predicate{{Column: "id", Op: storage.OpEquals, Value: int64(5)}}, table.finds[0])
	})

	t.Run("not found is distinct from missing", func(t *testing.T) {
		c, _ := newUsers(t)

		_, err := c.Read(context.Background(), get(url.Values{"id": {"777"}}))
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, []string{"777"}, nf.ID)
	})

	t.Run("non-integer id never reaches storage", func(t *testing.T) {
		c, table := newUsers(t)

		_, err := c.Read(context.Background(), get(url.Values{"id": {"5 OR 1=1"}}))
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Zero(t, table.dataCalls())
	})

	t.Run("not found names the resource, not the table", func(t *testing.T) {
		table := usersTable()
		c, err := New(context.Background(), Config{Name: "people", Table: table})
		require.NoError(t, err)

		for _, id := range []string{"abc", "777"} {
			_, err := c.Read(context.Background(), get(url.Values{"id": {id}}))
			var nf *NotFoundError
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, "people", nf.Resource, "id %s", id)
		}

		_, err = c.Delete(context.Background(), post(url.Values{"id": {"abc"}}))
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "people", nf.Resource)
	})
}

func TestCreate(t *testing.T) {
	t.Run("get renders empty form", func(t *testing.T) {
		c, table := newUsers(t)

		res, err := c.Create(context.Background(), get(nil))
		require.NoError(t, err)
		assert.Equal(t, ViewForm, res.View)
		assert.Empty(t, res.Form.Values)
		assert.False(t, res.Form.Editing)
		assert.Zero(t, table.dataCalls())
	})

	t.Run("valid post inserts and redirects", func(t *testing.T) {
		c, table := newUsers(t)
		table.insertID = int64(43)

		res, err := c.Create(context.Background(), post(url.Values{
			"id":    {""},
			"name":  {"Cleo"},
			"email": {""},
		}))
		require.NoError(t, err)
		assert.Equal(t, OpList, res.Redirect)
		assert.NotEmpty(t, res.Flash)

		require.Len(t, table.inserts, 1)
		assert.Equal(t, storage.Record{"name": "Cleo", "email": nil}, table.inserts[0])
	})

	t.Run("invalid post re-renders without inserting", func(t *testing.T) {
		c, table := newUsers(t)

		res, err := c.Create(context.Background(), post(url.Values{"email": {"x@y.z"}}))

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, ViewForm, res.View)
		assert.Equal(t, "is required", res.Form.Errors["name"])
		assert.Equal(t, "x@y.z", res.Form.Values["email"])
		assert.Empty(t, table.inserts)
	})

	t.Run("storage failure surfaces", func(t *testing.T) {
		c, table := newUsers(t)
		table.err = errors.New(`duplicate key value violates unique constraint "users_name_key"`)

		res, err := c.Create(context.Background(), post(url.Values{"name": {"Ann"}}))

		var se *StorageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, ViewForm, res.View)
		assert.Equal(t, "DB001", MapError(err).Code)
	})
}

func TestEdit(t *testing.T) {
	t.Run("missing id fails before storage", func(t *testing.T) {
		for _, req := range []Request{get(nil), post(url.Values{"name": {"X"}}), post(url.Values{"id": {""}})} {
			c, table := newUsers(t)

			_, err := c.Edit(context.Background(), req)
			var mp *MissingParameterError
			require.ErrorAs(t, err, &mp)
			assert.Zero(t, table.dataCalls())
		}
	})

	t.Run("get populates form from the stored record", func(t *testing.T) {
		c, _ := newUsers(t)

		res, err := c.Edit(context.Background(), get(url.Values{"id": {"5"}}))
		require.NoError(t, err)
		assert.Equal(t, ViewForm, res.View)
		assert.True(t, res.Form.Editing)
		assert.Equal(t, "Ann", res.Form.Values["name"])
		assert.Equal(t, "ann@example.com", res.Form.Values["email"])
		assert.Equal(t, []string{"5"}, res.Key)
	})

	t.Run("get unknown id", func(t *testing.T) {
		c, _ := newUsers(t)

		_, err := c.Edit(context.Background(), get(url.Values{"id": {"9"}}))
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf)
	})

	t.Run("valid post updates by key", func(t *testing.T) {
		c, table := newUsers(t)

		res, err := c.Edit(context.Background(), post(url.Values{
			"id":    {"5"},
			"name":  {"Annie"},
			"email": {"annie@example.com"},
		}))
		require.NoError(t, err)
		assert.Equal(t, OpList, res.Redirect)

		require.Len(t, table.updates, 1)
		assert.Equal(t, storage.Record{"name": "Annie", "email": "annie@example.com"}, table.updates[0].values)
		assert.Equal(t, storage.Predicate{{Column: "id", Op: storage.OpEquals, Value: int64(5)}}, table.updates[0].where)
	})

	t.Run("invalid post keeps submitted values", func(t *testing.T) {
		c, table := newUsers(t)

		long := "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz"
		res, err := c.Edit(context.Background(), post(url.Values{"id": {"5"}, "name": {long}}))

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, long, res.Form.Values["name"])
		assert.Equal(t, "5", res.Form.Values["id"])
		assert.NotEmpty(t, res.Form.Errors["name"])
		assert.Empty(t, table.updates)
		assert.Empty(t, table.finds)
	})

	t.Run("missing required field keeps the key shown", func(t *testing.T) {
		c, table := newUsers(t)

		res, err := c.Edit(context.Background(), post(url.Values{"id": {"5"}, "name": {""}}))

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "5", res.Form.Values["id"])
		assert.Equal(t, []string{"5"}, res.Key)
		assert.Empty(t, table.updates)
	})

	t.Run("zero rows affected is not found", func(t *testing.T) {
		c, table := newUsers(t)
		table.affected = 0

		_, err := c.Edit(context.Background(), post(url.Values{"id": {"5"}, "name": {"Annie"}}))
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf)
	})
}

func TestDelete_TwoPhase(t *testing.T) {
	c, table := newUsers(t)
	params := url.Values{"id": {"42"}}

	res, err := c.Delete(context.Background(), get(params))
	require.NoError(t, err)
	assert.Equal(t, ViewConfirm, res.View)
	assert.Equal(t, []string{"42"}, res.Key)
	assert.Zero(t, table.dataCalls(), "confirmation never touches storage")

	res, err = c.Delete(context.Background(), post(params))
	require.NoError(t, err)
	assert.Equal(t, OpList, res.Redirect)

	require.Len(t, table.deletes, 1)
	assert.Equal(t, storage.Predicate{{Column: "id", Op: storage.OpEquals, Value: int64(42)}}, table.deletes[0])
	assert.Equal(t, 1, table.dataCalls())
}

func TestDelete_Errors(t *testing.T) {
	t.Run("missing id fails before storage", func(t *testing.T) {
		for _, req := range []Request{get(nil), post(nil)} {
			c, table := newUsers(t)

			_, err := c.Delete(context.Background(), req)
			var mp *MissingParameterError
			require.ErrorAs(t, err, &mp)
			assert.Zero(t, table.dataCalls())
		}
	})

	t.Run("nothing deleted is not found", func(t *testing.T) {
		c, table := newUsers(t)
		table.affected = 0

		_, err := c.Delete(context.Background(), post(url.Values{"id": {"42"}}))
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf)
	})

	t.Run("storage failure is terminal", func(t *testing.T) {
		c, table := newUsers(t)
		table.err = errors.New("violates foreign key constraint")

		_, err := c.Delete(context.Background(), post(url.Values{"id": {"42"}}))
		var se *StorageError
		require.ErrorAs(t, err, &se)
		assert.Len(t, table.deletes, 1)
	})
}

func TestCompositeKey(t *testing.T) {
	table := &fakeTable{
		name: "order_lines",
		cols: []storage.Column{
			{Name: "order_id", Kind: storage.KindInteger, KeyPosition: 1},
			{Name: "line", Kind: storage.KindInteger, KeyPosition: 2},
			{Name: "sku", Kind: storage.KindText},
		},
		pk:       []string{"order_id", "line"},
		records:  []storage.Record{{"order_id": int64(4), "line": int64(2), "sku": "A-1"}},
		affected: 1,
	}
	c, err := New(context.Background(), Config{Table: table})
	require.NoError(t, err)
	assert.Equal(t, "order_lines", c.Name())

	res, err := c.Read(context.Background(), get(url.Values{"id": {"4", "2"}}))
	require.NoError(t, err)
	assert.Equal(t, "A-1", res.Record["sku"])

	_, err = c.Delete(context.Background(), get(url.Values{"id": {"4"}}))
	var mp *MissingParameterError
	require.ErrorAs(t, err, &mp)

	_, err = c.Delete(context.Background(), post(url.Values{"id": {"4", "2"}}))
	require.NoError(t, err)
	assert.Equal(t, storage.Predicate{
		{Column: "order_id", Op: storage.OpEquals, Value: int64(4)},
		{Column: "line", Op: storage.OpEquals, Value: int64(2)},
	}, table.deletes[0])

	list, err := c.List(context.Background(), get(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"order_id", "line"}, list.List.PrimaryKey)
	assert.Equal(t, []string{"order_id", "line"}, table.queries[0].KeyOrder)
}
