package operator

import (
	"github.com/otterlake/imdbengine/internal/buffer"
	"github.com/otterlake/imdbengine/internal/storage"
	"github.com/otterlake/imdbengine/internal/tuple"
)

// Scan produces every row of a table's file as a tuple, in
// (pageId, slotId) order. At most one page is kept pinned at a time: on
// crossing a page boundary the current page is unpinned before the next
// is fetched.
type Scan struct {
	pool    *buffer.SinglePool
	table   storage.TableKind
	columns []string // qualified column names to emit; nil means all

	pageID   storage.PageID
	slot     storage.SlotID
	current  *storage.RowPage
	rowCount int
	opened   bool
}

// NewScan constructs a sequential scan over the given table's file.
// columns restricts the emitted tuple to a subset of the table's
// qualified columns; pass nil to emit every column.
func NewScan(pool *buffer.SinglePool, table storage.TableKind, columns []string) *Scan {
	return &Scan{pool: pool, table: table, columns: columns}
}

func (s *Scan) Open() error {
	if s.opened {
		return nil
	}
	s.opened = true
	s.pageID = 0
	s.slot = 0
	s.current = nil
	return nil
}

func (s *Scan) Next() (tuple.Tuple, bool, error) {
	for {
		if s.current == nil {
			page, err := s.pool.GetPage(s.pageID)
			if err != nil {
				return tuple.Tuple{}, false, err
			}
			if page == nil {
				return tuple.Tuple{}, false, nil
			}
			s.current = storage.NewRowPage(page, s.table)
			s.slot = 0
		}

		row, ok := s.current.GetRow(s.slot)
		if !ok {
			s.pool.UnpinPage(s.current.PageID())
			s.current = nil
			s.pageID++
			continue
		}
		s.slot++
		return rowToTuple(row, s.table, s.columns), true, nil
	}
}

func (s *Scan) Close() error {
	if s.current != nil {
		s.pool.UnpinPage(s.current.PageID())
		s.current = nil
	}
	s.opened = false
	return nil
}

// rowToTuple projects a decoded row into a tuple restricted to columns
// (qualified names); a nil/empty columns selects every column.
func rowToTuple(row storage.Row, table storage.TableKind, columns []string) tuple.Tuple {
	codec := storage.CodecFor(table)
	qualified := codec.QualifiedColumnNames()
	if len(columns) == 0 {
		return tuple.New(qualified, row.Values)
	}
	values := make([]string, len(columns))
	for i, col := range columns {
		for j, q := range qualified {
			if q == col {
				values[i] = row.Values[j]
				break
			}
		}
	}
	return tuple.New(columns, values)
}
