package crud

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/crud/internal/storage"
)

var userColumns = []string{"id", "name", "email"}

func TestBuildSort(t *testing.T) {
	tests := []struct {
		name      string
		column    string
		direction string
		wantErr   bool
	}{
		{"allowed ascending", "name", "ASC", false},
		{"allowed descending", "email", "DESC", false},
		{"unknown column", "password", "ASC", true},
		{"injection attempt", "name; DROP TABLE users", "ASC", true},
		{"lowercase direction", "name", "desc", true},
		{"bogus direction", "name", "ASC, id", true},
		{"empty column", "", "ASC", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := BuildSort(tt.column, tt.direction, userColumns)
			if tt.wantErr {
				var se *InvalidSortError
				assert.ErrorAs(t, err, &se)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, storage.Order{Column: tt.column, Direction: storage.Direction(tt.direction)}, order)
		})
	}
}

func TestBuildSearchPredicate(t *testing.T) {
	t.Run("substring match is a bound contains condition", func(t *testing.T) {
		p, err := BuildSearchPredicate(SearchCriterion{ColumnIndex: 1, Text: "ann"}, userColumns)
		require.NoError(t, err)
		assert.Equal(t, storage.Predicate{{Column: "name", Op: storage.OpContains, Value: "ann"}}, p)
	})

	t.Run("exact match is an equality", func(t *testing.T) {
		p, err := BuildSearchPredicate(SearchCriterion{ColumnIndex: 2, Text: "a@b.c", Exact: true}, userColumns)
		require.NoError(t, err)
		assert.Equal(t, storage.Predicate{{Column: "email", Op: storage.OpEquals, Value: "a@b.c"}}, p)
	})

	t.Run("metacharacters stay in the value", func(t *testing.T) {
		p, err := BuildSearchPredicate(SearchCriterion{ColumnIndex: 1, Text: "x' OR '1'='1"}, userColumns)
		require.NoError(t, err)
		assert.Equal(t, "name", p[0].Column)
		assert.Equal(t, "x' OR '1'='1", p[0].Value)
	})

	t.Run("empty text means no filter", func(t *testing.T) {
		p, err := BuildSearchPredicate(SearchCriterion{ColumnIndex: 0}, userColumns)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	for _, idx := range []int{-1, 3, 99} {
		_, err := BuildSearchPredicate(SearchCriterion{ColumnIndex: idx, Text: "x"}, userColumns)
		var se *InvalidSearchError
		assert.ErrorAs(t, err, &se, "index %d", idx)
	}
}

func TestIdentifierPredicates(t *testing.T) {
	want := storage.Predicate{{Column: "id", Op: storage.OpEquals, Value: int64(42)}}
	assert.Equal(t, want, BuildDeletePredicate("id", int64(42)))
	assert.Equal(t, want, BuildUpdatePredicate("id", int64(42)))

	p := BuildKeyPredicate([]string{"order_id", "line"}, []any{int64(4), int64(2)}, BuildDeletePredicate)
	assert.Equal(t, storage.Predicate{
		{Column: "order_id", Op: storage.OpEquals, Value: int64(4)},
		{Column: "line", Op: storage.OpEquals, Value: int64(2)},
	}, p)
}

func TestToggleDirection(t *testing.T) {
	assert.Equal(t, storage.Desc, ToggleDirection(storage.Asc))
	assert.Equal(t, storage.Asc, ToggleDirection(storage.Desc))

	for _, d := range []storage.Direction{storage.Asc, storage.Desc} {
		assert.Equal(t, d, ToggleDirection(ToggleDirection(d)))
	}
}

func TestParsePage(t *testing.T) {
	tests := map[string]int{
		"":    1,
		"0":   1,
		"-5":  1,
		"abc": 1,
		"1":   1,
		"7":   7,
		" 3 ": 3,
	}
	for raw, want := range tests {
		assert.Equal(t, want, ParsePage(raw), "p=%q", raw)
	}

	assert.Equal(t, 0, ListQuery{Page: 1, PageSize: 30}.Offset())
	assert.Equal(t, 60, ListQuery{Page: 3, PageSize: 30}.Offset())
}

func TestNormalizeIdentifier(t *testing.T) {
	const id = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

	tests := []struct {
		name    string
		raw     string
		kind    storage.Kind
		want    any
		wantErr bool
	}{
		{"integer key", "42", storage.KindInteger, int64(42), false},
		{"integer key rejects text", "abc", storage.KindInteger, nil, true},
		{"integer key rejects fraction", "4.2", storage.KindInteger, nil, true},
		{"uuid passes through", id, storage.KindUUID, id, false},
		{"uuid rejects garbage", "not-a-uuid", storage.KindUUID, nil, true},
		{"text key untouched", "0042", storage.KindText, "0042", false},
		{"numeric-looking text key stays text", "42", storage.KindText, "42", false},
		{"unknown kind canonical integer", "42", storage.KindUnknown, int64(42), false},
		{"unknown kind leading zero stays string", "0042", storage.KindUnknown, "0042", false},
		{"unknown kind uuid stays string", id, storage.KindUnknown, id, false},
		{"numeric key", "1.5", storage.KindNumeric, 1.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeIdentifier(tt.raw, tt.kind)
			if tt.wantErr {
				assert.True(t, errors.Is(err, errInvalidIdentifier))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearchValue(t *testing.T) {
	v, err := searchValue(storage.Column{Name: "id", Kind: storage.KindInteger}, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	_, err = searchValue(storage.Column{Name: "id", Kind: storage.KindInteger}, "forty")
	var se *InvalidSearchError
	assert.ErrorAs(t, err, &se)

	v, err = searchValue(storage.Column{Name: "active", Kind: storage.KindBool}, "yes")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = searchValue(storage.Column{Name: "name", Kind: storage.KindText}, " Ann ")
	require.NoError(t, err)
	assert.Equal(t, " Ann ", v)

	v, err = searchValue(storage.Column{Name: "ref", Kind: storage.KindUUID}, "6F9619FF-8B86-D011-B42D-00C04FC964FF")
	require.NoError(t, err)
	assert.Equal(t, "6f9619ff-8b86-d011-b42d-00c04fc964ff", v)

	v, err = searchValue(storage.Column{Name: "day", Kind: storage.KindDate}, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), v)

	v, err = searchValue(storage.Column{Name: "at", Kind: storage.KindTimestamp}, "2024-03-01T10:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), v)
}

func TestSearchValue_RejectsMismatchedKinds(t *testing.T) {
	tests := []struct {
		name string
		col  storage.Column
		text string
	}{
		{"integer", storage.Column{Name: "id", Kind: storage.KindInteger}, "forty"},
		{"numeric", storage.Column{Name: "price", Kind: storage.KindNumeric}, "cheap"},
		{"bool", storage.Column{Name: "active", Kind: storage.KindBool}, "maybe"},
		{"uuid", storage.Column{Name: "ref", Kind: storage.KindUUID}, "not-valid"},
		{"date", storage.Column{Name: "day", Kind: storage.KindDate}, "not-valid"},
		{"timestamp", storage.Column{Name: "at", Kind: storage.KindTimestamp}, "not-valid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := searchValue(tt.col, tt.text)

			var se *InvalidSearchError
			require.ErrorAs(t, err, &se)
			assert.Contains(t, se.Reason, tt.col.Name)
		})
	}
}
