package operator

import (
	"github.com/otterlake/imdbengine/internal/btree"
	"github.com/otterlake/imdbengine/internal/buffer"
	"github.com/otterlake/imdbengine/internal/storage"
	"github.com/otterlake/imdbengine/internal/tuple"
)

// IndexScan produces every tuple whose indexed key lies in [lo, hi], in
// ascending key order, by walking a B+-tree's RID iterator and fetching
// each matching row. If a page fetch for a given RID fails, that RID is
// silently skipped: a missing page is not fatal to an index scan.
type IndexScan struct {
	tree    *btree.Tree
	pool    *buffer.SinglePool
	table   storage.TableKind
	columns []string
	lo, hi  string

	it     *btree.RIDIterator
	opened bool
}

// NewIndexScan constructs an index scan over tree's [lo, hi] range,
// fetching matching rows from table's file through pool.
func NewIndexScan(tree *btree.Tree, pool *buffer.SinglePool, table storage.TableKind, columns []string, lo, hi string) *IndexScan {
	return &IndexScan{tree: tree, pool: pool, table: table, columns: columns, lo: lo, hi: hi}
}

func (s *IndexScan) Open() error {
	if s.opened {
		return nil
	}
	it, err := s.tree.RangeSearch(s.lo, s.hi)
	if err != nil {
		return err
	}
	s.it = it
	s.opened = true
	return nil
}

func (s *IndexScan) Next() (tuple.Tuple, bool, error) {
	for {
		rid, ok := s.it.Next()
		if !ok {
			return tuple.Tuple{}, false, nil
		}
		page, err := s.pool.GetPage(rid.PageID)
		if err != nil || page == nil {
			continue // missing page: skip this RID, not fatal
		}
		rowPage := storage.NewRowPage(page, s.table)
		row, ok := rowPage.GetRow(rid.SlotID)
		s.pool.UnpinPage(rid.PageID)
		if !ok {
			continue
		}
		return rowToTuple(row, s.table, s.columns), true, nil
	}
}

func (s *IndexScan) Close() error {
	s.opened = false
	s.it = nil
	return nil
}
