package storage

import (
	"fmt"
	"sort"
	"strings"
)

// Dialect captures the SQL flavor differences between engines.
type Dialect interface {
	Name() string
	// Placeholder returns the bind marker for the n-th argument (1-based).
	Placeholder(n int) string
	QuoteIdentifier(name string) string
	// Like renders a substring match of column against a bound pattern. The
	// pattern uses backslash as its escape character.
	Like(column, placeholder string) string
	// Returning reports whether INSERT ... RETURNING is available.
	Returning() bool
	// EmptyInsert is the VALUES clause for an insert with no explicit columns.
	EmptyInsert() string
}

// Postgres uses $n placeholders and double-quoted identifiers.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Postgres) QuoteIdentifier(s string) string { return quoteWith(s, `"`) }

func (Postgres) Like(column, placeholder string) string {
	return "CAST(" + column + " AS TEXT) LIKE " + placeholder + ` ESCAPE '\'`
}

func (Postgres) Returning() bool { return true }

func (Postgres) EmptyInsert() string { return "DEFAULT VALUES" }

// SQLite uses ? placeholders and double-quoted identifiers.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) QuoteIdentifier(s string) string { return quoteWith(s, `"`) }

func (SQLite) Like(column, placeholder string) string {
	return "CAST(" + column + " AS TEXT) LIKE " + placeholder + ` ESCAPE '\'`
}

func (SQLite) Returning() bool { return true }

func (SQLite) EmptyInsert() string { return "DEFAULT VALUES" }

// MySQL uses ? placeholders and backtick-quoted identifiers. Backslash is
// already the default LIKE escape there, and '\' would not be a valid literal.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) Placeholder(int) string { return "?" }

func (MySQL) QuoteIdentifier(s string) string { return quoteWith(s, "`") }

func (MySQL) Like(column, placeholder string) string {
	return "CAST(" + column + " AS CHAR) LIKE " + placeholder
}

func (MySQL) Returning() bool { return false }

func (MySQL) EmptyInsert() string { return "() VALUES ()" }

// quoteWith wraps name in q, doubling any embedded q.
func quoteWith(name, q string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// escapeLike escapes LIKE metacharacters so search text matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// renderCondition renders one condition starting at argument index argIdx.
// It returns the SQL fragment, its bound arguments and the next free index.
func renderCondition(d Dialect, c Condition, argIdx int) (string, []any, int, error) {
	col := d.QuoteIdentifier(c.Column)

	switch c.Op {
	case OpEquals:
		if c.Value == nil {
			return col + " IS NULL", nil, argIdx, nil
		}
		return fmt.Sprintf("%s = %s", col, d.Placeholder(argIdx)),
			[]any{c.Value}, argIdx + 1, nil

	case OpContains:
		pattern := "%" + escapeLike(fmt.Sprint(c.Value)) + "%"
		return d.Like(col, d.Placeholder(argIdx)), []any{pattern}, argIdx + 1, nil

	default:
		return "", nil, argIdx, fmt.Errorf("unsupported operator %q", c.Op)
	}
}

// renderWhere renders p as " WHERE ..." (or "" for an empty predicate).
func renderWhere(d Dialect, p Predicate, argIdx int) (string, []any, int, error) {
	if len(p) == 0 {
		return "", nil, argIdx, nil
	}

	parts := make([]string, 0, len(p))
	var args []any
	for _, c := range p {
		frag, cargs, next, err := renderCondition(d, c, argIdx)
		if err != nil {
			return "", nil, argIdx, err
		}
		parts = append(parts, frag)
		args = append(args, cargs...)
		argIdx = next
	}
	return " WHERE " + strings.Join(parts, " AND "), args, argIdx, nil
}

// renderOrder renders the ORDER BY clause, or "" when there is nothing to order by.
func renderOrder(d Dialect, o *Order, keyOrder []string) (string, error) {
	var parts []string
	seen := make(map[string]bool)

	if o != nil {
		if !o.Direction.Valid() {
			return "", fmt.Errorf("invalid sort direction %q", o.Direction)
		}
		parts = append(parts, d.QuoteIdentifier(o.Column)+" "+string(o.Direction))
		seen[o.Column] = true
	}
	for _, k := range keyOrder {
		if seen[k] {
			continue
		}
		parts = append(parts, d.QuoteIdentifier(k)+" ASC")
		seen[k] = true
	}

	if len(parts) == 0 {
		return "", nil
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// renderColumns renders a projection list, "*" when cols is empty.
func renderColumns(d Dialect, cols []string) string {
	if len(cols) == 0 {
		return "*"
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

// sortedKeys returns the record's keys in a stable order for statement building.
func sortedKeys(r Record, order []string) []string {
	keys := make([]string, 0, len(r))
	seen := make(map[string]bool, len(r))
	for _, name := range order {
		if _, ok := r[name]; ok {
			keys = append(keys, name)
			seen[name] = true
		}
	}
	var rest []string
	for k := range r {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
