// Package storage implements the paged record store that the buffer pool
// caches: fixed-size pages, table-specific fixed-width row
// layouts, and record identifiers stable for the life of a file.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// PageSize is the fixed size of every page in every file, table or index.
	PageSize = 4096
	// HeaderSize is the size of the row-page header: page identifier
	// followed by a row count, both big-endian uint32s.
	HeaderSize = 8
)

// ErrCorruptPage is returned when a page's embedded identifier does not
// agree with the identifier it was fetched under.
var ErrCorruptPage = errors.New("storage: corrupt page")

// PageID identifies a page within a single file by its zero-based offset
// in units of PageSize.
type PageID uint32

// SlotID identifies a row within a page.
type SlotID uint32

// RID (record identifier) locates a row on disk. RIDs are stable: once a
// row is inserted at (PageID, SlotID) those bytes never move.
type RID struct {
	PageID PageID
	SlotID SlotID
}

func (r RID) String() string {
	return fmt.Sprintf("(%d,%d)", r.PageID, r.SlotID)
}

// Page is a raw 4096-byte block whose first 4 bytes hold the page
// identifier. Page itself is content-agnostic: the row store reads bytes
// 4-7 as a row count followed by fixed-width rows, while the B+-tree lays
// its own node header (isLeaf, parent, key count) and entries over
// everything after the identifier.
type Page struct {
	data []byte
}

// NewPage allocates a fresh, zeroed page stamped with id.
func NewPage(id PageID) *Page {
	p := &Page{data: make([]byte, PageSize)}
	p.SetID(id)
	return p
}

// LoadPage wraps an existing PageSize-length buffer as a Page. The buffer
// is copied so the caller's slice can be reused.
func LoadPage(buf []byte) (*Page, error) {
	if len(buf) != PageSize {
		return nil, fmt.Errorf("storage: page buffer must be %d bytes, got %d", PageSize, len(buf))
	}
	data := make([]byte, PageSize)
	copy(data, buf)
	return &Page{data: data}, nil
}

// ID returns the page identifier embedded in the header.
func (p *Page) ID() PageID {
	return PageID(binary.BigEndian.Uint32(p.data[0:4]))
}

// SetID overwrites the embedded page identifier.
func (p *Page) SetID(id PageID) {
	binary.BigEndian.PutUint32(p.data[0:4], uint32(id))
}

// Count returns the row count of a table page (bytes 4-7). A B+-tree node
// keeps other header fields in those bytes and does not use it.
func (p *Page) Count() uint32 {
	return binary.BigEndian.Uint32(p.data[4:8])
}

// SetCount overwrites the generic header count field.
func (p *Page) SetCount(n uint32) {
	binary.BigEndian.PutUint32(p.data[4:8], n)
}

// RawBytes returns the full backing buffer, header included.
func (p *Page) RawBytes() []byte {
	return p.data
}

// Payload returns the bytes following the generic 8-byte header.
func (p *Page) Payload() []byte {
	return p.data[HeaderSize:]
}

// LoadFromBytes replaces the page's contents in place.
func (p *Page) LoadFromBytes(buf []byte) error {
	if len(buf) != PageSize {
		return fmt.Errorf("storage: page buffer must be %d bytes, got %d", PageSize, len(buf))
	}
	if p.data == nil {
		p.data = make([]byte, PageSize)
	}
	copy(p.data, buf)
	return nil
}

// Clone returns a deep copy of the page.
func (p *Page) Clone() *Page {
	data := make([]byte, PageSize)
	copy(data, p.data)
	return &Page{data: data}
}

// CheckID verifies the page's embedded identifier agrees with the
// identifier it was fetched under. A mismatch is a corruption fault.
func (p *Page) CheckID(want PageID) error {
	if p.ID() != want {
		return fmt.Errorf("%w: page fetched as %d carries embedded id %d", ErrCorruptPage, want, p.ID())
	}
	return nil
}
