// Package tuple defines the in-flight record shape that flows through the
// iterator operator pipeline: a fixed-length sequence of string values
// paired with an equally-sized sequence of qualified column names.
package tuple

import "strings"

// Tuple is immutable once constructed. Join-composed tuples are built by
// Concat, the concatenation of the left and right attribute sequences.
type Tuple struct {
	columns []string
	values  []string
}

// New builds a Tuple from parallel columns/values slices. Both are copied
// so the caller's backing arrays can be reused.
func New(columns, values []string) Tuple {
	cols := make([]string, len(columns))
	copy(cols, columns)
	vals := make([]string, len(values))
	copy(vals, values)
	return Tuple{columns: cols, values: vals}
}

// Columns returns the tuple's qualified column names, e.g. "Movies.title".
func (t Tuple) Columns() []string { return t.columns }

// Values returns the tuple's values in column order.
func (t Tuple) Values() []string { return t.values }

// Get returns the value of a named column. Lookup is exact-match first,
// falling back to a suffix match on ".column" so callers can address a
// column without knowing which side of a join qualified it.
func (t Tuple) Get(column string) (string, bool) {
	for i, c := range t.columns {
		if c == column {
			return t.values[i], true
		}
	}
	suffix := "." + column
	for i, c := range t.columns {
		if strings.HasSuffix(c, suffix) {
			return t.values[i], true
		}
	}
	return "", false
}

// Concat returns the concatenation of two tuples' attribute sequences,
// the shape every join operator emits.
func Concat(left, right Tuple) Tuple {
	columns := make([]string, 0, len(left.columns)+len(right.columns))
	columns = append(columns, left.columns...)
	columns = append(columns, right.columns...)
	values := make([]string, 0, len(left.values)+len(right.values))
	values = append(values, left.values...)
	values = append(values, right.values...)
	return Tuple{columns: columns, values: values}
}

// Project rearranges/renames a tuple's fields according to mapping, an
// ordered list of (inputColumn, outputColumn) pairs. A missing input
// column yields an empty string value for that output column.
func Project(in Tuple, mapping []ColumnMapping) Tuple {
	columns := make([]string, len(mapping))
	values := make([]string, len(mapping))
	for i, m := range mapping {
		columns[i] = m.Output
		v, _ := in.Get(m.Input)
		values[i] = v
	}
	return Tuple{columns: columns, values: values}
}

// ColumnMapping renames an input column to an output column name as it
// passes through a projection operator.
type ColumnMapping struct {
	Input  string
	Output string
}
