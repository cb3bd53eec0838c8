package storage

import "fmt"

// Row is a single decoded record from one table, tagged with the slot it
// occupies so callers can build an RID without a second lookup.
type Row struct {
	Table  TableKind
	RID    RID
	Values []string
}

// RowPage is a Page interpreted as a fixed-width row store for one table:
// the generic header's count field holds the row count, and the payload
// is a sequence of RowSize()-byte rows appended in insertion order. Rows
// are never deleted or shrunk; InsertRow only ever appends.
type RowPage struct {
	page  *Page
	codec *RowCodec
}

// NewRowPage wraps a page (freshly created or freshly fetched) with the
// row codec for its table.
func NewRowPage(page *Page, table TableKind) *RowPage {
	return &RowPage{page: page, codec: CodecFor(table)}
}

func (rp *RowPage) PageID() PageID { return rp.page.ID() }

func (rp *RowPage) RawBytes() []byte { return rp.page.RawBytes() }

func (rp *RowPage) LoadFromBytes(buf []byte) error { return rp.page.LoadFromBytes(buf) }

// IsFull reports whether one more row would not fit.
func (rp *RowPage) IsFull() bool {
	return int(rp.page.Count()) >= rp.codec.MaxRowsPerPage()
}

func (rp *RowPage) rowOffset(slot SlotID) int {
	return HeaderSize + int(slot)*rp.codec.RowSize()
}

// GetRow returns the row at slot, or (Row{}, false) if slot is out of
// range for the page's current row count.
func (rp *RowPage) GetRow(slot SlotID) (Row, bool) {
	if int(slot) >= int(rp.page.Count()) {
		return Row{}, false
	}
	offset := rp.rowOffset(slot)
	values, err := rp.codec.Decode(rp.page.RawBytes()[offset : offset+rp.codec.RowSize()])
	if err != nil {
		return Row{}, false
	}
	return Row{
		Table:  rp.codec.table,
		RID:    RID{PageID: rp.page.ID(), SlotID: slot},
		Values: values,
	}, true
}

// InsertRow appends values as a new row and returns its slot. If the page
// is already full it returns (0, false) — the FULL sentinel of §4.1 — and
// leaves the page header and payload unmodified.
func (rp *RowPage) InsertRow(values []string) (SlotID, bool) {
	if rp.IsFull() {
		return 0, false
	}
	encoded, err := rp.codec.Encode(values)
	if err != nil {
		return 0, false
	}
	slot := SlotID(rp.page.Count())
	offset := rp.rowOffset(slot)
	copy(rp.page.RawBytes()[offset:offset+len(encoded)], encoded)
	rp.page.SetCount(rp.page.Count() + 1)
	return slot, true
}

// RowCount returns the number of rows currently stored on the page.
func (rp *RowPage) RowCount() int { return int(rp.page.Count()) }

// String is a debugging helper.
func (rp *RowPage) String() string {
	return fmt.Sprintf("RowPage{table=%s, id=%d, rows=%d}", rp.codec.table, rp.page.ID(), rp.page.Count())
}
