package storage

import (
	"fmt"
	"strings"
)

// TableKind selects one of the three fixed IMDB row layouts. B+-tree node
// pages do not use a TableKind; they encode their own layout directly.
type TableKind int

const (
	Movies TableKind = iota
	WorkedOn
	People
)

func (t TableKind) String() string {
	switch t {
	case Movies:
		return "Movies"
	case WorkedOn:
		return "WorkedOn"
	case People:
		return "People"
	default:
		return "Unknown"
	}
}

// column describes one fixed-width, right-space-padded field.
type column struct {
	name  string
	width int
}

// RowCodec encodes and decodes the fixed-width rows of one table. It is
// the mechanical, table-specific half of the paged record store: the page
// itself only knows about slots of a given size, the codec knows what the
// bytes in a slot mean.
type RowCodec struct {
	table   TableKind
	columns []column
}

var codecs = map[TableKind]*RowCodec{
	Movies: {
		table: Movies,
		columns: []column{
			{"movieId", 9},
			{"title", 30},
		},
	},
	WorkedOn: {
		table: WorkedOn,
		columns: []column{
			{"movieId", 9},
			{"personId", 10},
			{"category", 20},
		},
	},
	People: {
		table: People,
		columns: []column{
			{"personId", 10},
			{"name", 105},
		},
	},
}

// CodecFor returns the fixed-width codec for a table.
func CodecFor(t TableKind) *RowCodec {
	c, ok := codecs[t]
	if !ok {
		panic(fmt.Sprintf("storage: no codec registered for table kind %d", t))
	}
	return c
}

// RowSize is the fixed byte width of one encoded row, all columns summed.
func (c *RowCodec) RowSize() int {
	size := 0
	for _, col := range c.columns {
		size += col.width
	}
	return size
}

// ColumnNames returns the table's columns in on-disk order, unqualified.
func (c *RowCodec) ColumnNames() []string {
	names := make([]string, len(c.columns))
	for i, col := range c.columns {
		names[i] = col.name
	}
	return names
}

// QualifiedColumnNames returns column names qualified with the table name
// (e.g. "Movies.title"), the form tuples carry through the pipeline.
func (c *RowCodec) QualifiedColumnNames() []string {
	names := make([]string, len(c.columns))
	for i, col := range c.columns {
		names[i] = c.table.String() + "." + col.name
	}
	return names
}

// MaxRowsPerPage is floor((PageSize-HeaderSize)/rowSize).
func (c *RowCodec) MaxRowsPerPage() int {
	return (PageSize - HeaderSize) / c.RowSize()
}

// Encode concatenates values into a fixed-width, right-space-padded row.
// values must be given in the codec's column order; a shorter value is
// padded and a longer one is truncated to the column width.
func (c *RowCodec) Encode(values []string) ([]byte, error) {
	if len(values) != len(c.columns) {
		return nil, fmt.Errorf("storage: %s row expects %d values, got %d", c.table, len(c.columns), len(values))
	}
	buf := make([]byte, 0, c.RowSize())
	for i, col := range c.columns {
		buf = append(buf, padOrTruncate(values[i], col.width)...)
	}
	return buf, nil
}

// Decode splits a fixed-width row back into trimmed column values.
func (c *RowCodec) Decode(buf []byte) ([]string, error) {
	if len(buf) < c.RowSize() {
		return nil, fmt.Errorf("storage: %s row buffer too short: want %d, got %d", c.table, c.RowSize(), len(buf))
	}
	values := make([]string, len(c.columns))
	offset := 0
	for i, col := range c.columns {
		values[i] = strings.TrimRight(string(buf[offset:offset+col.width]), " ")
		offset += col.width
	}
	return values, nil
}

func padOrTruncate(s string, width int) []byte {
	buf := make([]byte, width)
	n := copy(buf, s)
	for i := n; i < width; i++ {
		buf[i] = ' '
	}
	return buf
}
