package storage

import (
	"sort"
	"strconv"
	"strings"
)

// primaryKeyOf returns the key column names ordered by KeyPosition.
func primaryKeyOf(cols []Column) []string {
	var keyed []Column
	for _, c := range cols {
		if c.KeyPosition > 0 {
			keyed = append(keyed, c)
		}
	}
	sort.SliceStable(keyed, func(i, j int) bool {
		return keyed[i].KeyPosition < keyed[j].KeyPosition
	})

	names := make([]string, len(keyed))
	for i, c := range keyed {
		names[i] = c.Name
	}
	return names
}

// columnNames returns the names of cols in order.
func columnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// declaredLength extracts n from declarations such as "VARCHAR(n)".
func declaredLength(dbType string) int {
	open := strings.IndexByte(dbType, '(')
	end := strings.IndexByte(dbType, ')')
	if open < 0 || end <= open {
		return 0
	}
	inner := dbType[open+1 : end]
	if comma := strings.IndexByte(inner, ','); comma >= 0 {
		return 0 // precision/scale, not a length
	}
	n, err := strconv.Atoi(strings.TrimSpace(inner))
	if err != nil || n < 0 {
		return 0
	}
	if KindOf(dbType) != KindText {
		return 0
	}
	return n
}

// normalizeValue converts driver byte slices to strings so records render
// and compare predictably across drivers.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return v
	}
}
