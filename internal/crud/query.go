package crud

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crud/internal/storage"
)

// errInvalidIdentifier marks an id that can never match the key column's type.
var errInvalidIdentifier = errors.New("identifier does not fit key column type")

// SearchCriterion is one search form submission.
type SearchCriterion struct {
	ColumnIndex int // index into EntitySchema.Columns
	Text        string
	Exact       bool
}

// ListQuery is the validated shape of one List request.
type ListQuery struct {
	Where    storage.Predicate
	Order    *storage.Order
	Page     int
	PageSize int
}

// Offset returns the row offset of the page.
func (q ListQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}

// ParsePage reads the p parameter. Missing, malformed and non-positive
// values all mean page 1.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// BuildSort validates a requested order against the allowed columns.
func BuildSort(column, direction string, allowed []string) (storage.Order, error) {
	dir := storage.Direction(direction)
	if !slices.Contains(allowed, column) || !dir.Valid() {
		return storage.Order{}, &InvalidSortError{Column: column, Direction: direction}
	}
	return storage.Order{Column: column, Direction: dir}, nil
}

// BuildSearchPredicate resolves c against the allowed columns. Empty search
// text yields a nil predicate. The text is carried as a bound value; the
// storage engine escapes it for substring matches.
func BuildSearchPredicate(c SearchCriterion, allowed []string) (storage.Predicate, error) {
	if c.ColumnIndex < 0 || c.ColumnIndex >= len(allowed) {
		return nil, &InvalidSearchError{
			Reason: fmt.Sprintf("column index %d out of range [0,%d)", c.ColumnIndex, len(allowed)),
		}
	}
	if c.Text == "" {
		return nil, nil
	}

	op := storage.OpContains
	if c.Exact {
		op = storage.OpEquals
	}
	return storage.Predicate{{Column: allowed[c.ColumnIndex], Op: op, Value: c.Text}}, nil
}

// BuildDeletePredicate matches the row whose key column equals id.
func BuildDeletePredicate(column string, id any) storage.Predicate {
	return keyEquals(column, id)
}

// BuildUpdatePredicate matches the row whose key column equals id.
func BuildUpdatePredicate(column string, id any) storage.Predicate {
	return keyEquals(column, id)
}

func keyEquals(column string, id any) storage.Predicate {
	return storage.Predicate{{Column: column, Op: storage.OpEquals, Value: id}}
}

// BuildKeyPredicate ANDs one equality per key column, in key order. build
// renders each single-column equality.
func BuildKeyPredicate(columns []string, ids []any, build func(string, any) storage.Predicate) storage.Predicate {
	var p storage.Predicate
	for i, col := range columns {
		p = append(p, build(col, ids[i])...)
	}
	return p
}

// ToggleDirection returns the opposite sort direction.
func ToggleDirection(d storage.Direction) storage.Direction {
	if d == storage.Desc {
		return storage.Asc
	}
	return storage.Desc
}

// NormalizeIdentifier converts a raw id parameter to the value compared
// against a key column of the given kind. Integer keys need a canonical
// integer; UUID and text keys keep the raw string. For columns of unknown
// type only canonical integers are converted.
func NormalizeIdentifier(raw string, kind storage.Kind) (any, error) {
	switch kind {
	case storage.KindInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", errInvalidIdentifier, raw)
		}
		return n, nil

	case storage.KindNumeric:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", errInvalidIdentifier, raw)
		}
		return f, nil

	case storage.KindUUID:
		if _, err := uuid.Parse(raw); err != nil {
			return nil, fmt.Errorf("%w: %q is not a uuid", errInvalidIdentifier, raw)
		}
		return raw, nil

	case storage.KindText:
		return raw, nil

	default:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && strconv.FormatInt(n, 10) == raw {
			return n, nil
		}
		return raw, nil
	}
}

// keyValues normalizes the id parameters against the schema's primary key.
// resource names the route in NotFoundError.
func (s EntitySchema) keyValues(resource string, raw []string) ([]any, error) {
	if len(raw) == 0 {
		return nil, &MissingParameterError{Param: "id"}
	}
	if len(raw) != len(s.PrimaryKey) {
		return nil, &MissingParameterError{
			Param:  "id",
			Reason: fmt.Sprintf("expected %d key values, got %d", len(s.PrimaryKey), len(raw)),
		}
	}

	vals := make([]any, len(raw))
	for i, r := range raw {
		if r == "" {
			return nil, &MissingParameterError{Param: "id"}
		}
		col, _ := s.Column(s.PrimaryKey[i])
		v, err := NormalizeIdentifier(r, col.Kind)
		if err != nil {
			return nil, &NotFoundError{Resource: resource, ID: raw}
		}
		vals[i] = v
	}
	return vals, nil
}

// searchValue converts exact-match text to the column's type so the bound
// parameter compares like for like. Substring matches stay text.
func searchValue(col storage.Column, text string) (any, error) {
	switch col.Kind {
	case storage.KindText, storage.KindUnknown:
		return text, nil
	}
	v, _, err := convertField(FieldDescriptor{Name: col.Name, Kind: col.Kind}, text)
	if err != nil {
		return nil, &InvalidSearchError{Reason: fmt.Sprintf("%s %v", col.Name, err)}
	}
	return v, nil
}

// parseBool accepts the values HTML forms and query strings use for flags.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true, true
	case "", "0", "false", "off", "no":
		return false, true
	default:
		return false, false
	}
}
