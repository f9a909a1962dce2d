package storage

import (
	"errors"
	"fmt"
	"strings"
)

// errNoValues is returned when an UPDATE has nothing to set.
var errNoValues = errors.New("no values to update")

// errUnboundedMutation guards UPDATE and DELETE against an empty predicate.
var errUnboundedMutation = errors.New("refusing to mutate without a predicate")

// statement is a rendered SQL statement with its bound arguments.
type statement struct {
	SQL  string
	Args []any
}

// selectStatements renders the page query and its matching COUNT(*) query.
func selectStatements(d Dialect, table string, q Query) (page, count statement, err error) {
	where, args, next, err := renderWhere(d, q.Where, 1)
	if err != nil {
		return page, count, err
	}
	order, err := renderOrder(d, q.Order, q.KeyOrder)
	if err != nil {
		return page, count, err
	}

	count = statement{
		SQL:  fmt.Sprintf("SELECT COUNT(*) FROM %s%s", qualified(d, table), where),
		Args: args,
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s%s",
		renderColumns(d, q.Columns), qualified(d, table), where, order)
	pageArgs := append([]any(nil), args...)
	if q.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %s OFFSET %s", d.Placeholder(next), d.Placeholder(next+1))
		pageArgs = append(pageArgs, q.Limit, q.Offset)
	}
	page = statement{SQL: sql, Args: pageArgs}
	return page, count, nil
}

// findStatement renders a single-row lookup by key.
func findStatement(d Dialect, table string, key Predicate) (statement, error) {
	if len(key) == 0 {
		return statement{}, errUnboundedMutation
	}
	where, args, next, err := renderWhere(d, key, 1)
	if err != nil {
		return statement{}, err
	}
	sql := fmt.Sprintf("SELECT * FROM %s%s LIMIT %s", qualified(d, table), where, d.Placeholder(next))
	return statement{SQL: sql, Args: append(args, 2)}, nil
}

// insertStatement renders an INSERT, with RETURNING when the dialect has it.
func insertStatement(d Dialect, table string, values Record, order, returning []string) statement {
	keys := sortedKeys(values, order)

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(qualified(d, table))

	args := make([]any, 0, len(keys))
	if len(keys) == 0 {
		b.WriteString(" ")
		b.WriteString(d.EmptyInsert())
	} else {
		cols := make([]string, len(keys))
		marks := make([]string, len(keys))
		for i, k := range keys {
			cols[i] = d.QuoteIdentifier(k)
			marks[i] = d.Placeholder(i + 1)
			args = append(args, values[k])
		}
		fmt.Fprintf(&b, " (%s) VALUES (%s)", strings.Join(cols, ", "), strings.Join(marks, ", "))
	}

	if d.Returning() && len(returning) > 0 {
		b.WriteString(" RETURNING ")
		b.WriteString(renderColumns(d, returning))
	}
	return statement{SQL: b.String(), Args: args}
}

// updateStatement renders an UPDATE limited by where.
func updateStatement(d Dialect, table string, values Record, where Predicate, order []string) (statement, error) {
	if len(values) == 0 {
		return statement{}, errNoValues
	}
	if len(where) == 0 {
		return statement{}, errUnboundedMutation
	}

	keys := sortedKeys(values, order)
	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		sets[i] = fmt.Sprintf("%s = %s", d.QuoteIdentifier(k), d.Placeholder(i+1))
		args = append(args, values[k])
	}

	clause, wargs, _, err := renderWhere(d, where, len(keys)+1)
	if err != nil {
		return statement{}, err
	}
	sql := fmt.Sprintf("UPDATE %s SET %s%s", qualified(d, table), strings.Join(sets, ", "), clause)
	return statement{SQL: sql, Args: append(args, wargs...)}, nil
}

// deleteStatement renders a DELETE limited by where.
func deleteStatement(d Dialect, table string, where Predicate) (statement, error) {
	if len(where) == 0 {
		return statement{}, errUnboundedMutation
	}
	clause, args, _, err := renderWhere(d, where, 1)
	if err != nil {
		return statement{}, err
	}
	return statement{
		SQL:  fmt.Sprintf("DELETE FROM %s%s", qualified(d, table), clause),
		Args: args,
	}, nil
}

// qualified quotes a possibly schema-qualified table name part by part.
func qualified(d Dialect, table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// keyValue collapses the returned key columns into the identifier shape the
// controller reports: the bare value for single-column keys, a slice otherwise.
func keyValue(vals []any) any {
	switch len(vals) {
	case 0:
		return nil
	case 1:
		return vals[0]
	default:
		return vals
	}
}
