package operator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/otterlake/imdbengine/internal/buffer"
	"github.com/otterlake/imdbengine/internal/storage"
	"github.com/otterlake/imdbengine/internal/tuple"
)

// Projection wraps a child operator and an explicit mapping from input
// column names to output column names. In pipelining mode (the default)
// each Next pulls one child tuple and rearranges/renames its fields. In
// materializing mode the child is consumed to completion into a fresh
// file on the first Next, then re-read from that file — decoupling
// downstream readers from the original stream so a block nested loop
// join can rewind the inner side by closing and reopening this operator.
type Projection struct {
	child   Operator
	mapping []tuple.ColumnMapping

	// materializing mode
	pool     *buffer.Pool
	fileKey  string
	filePath string
	idColumn string

	single      *buffer.SinglePool
	materialize bool
	built       bool
	readPageID  storage.PageID
	readSlot    storage.SlotID
	readPage    *storage.RowPage
}

// NewProjection constructs a pipelining-mode projection.
func NewProjection(child Operator, mapping []tuple.ColumnMapping) *Projection {
	return &Projection{child: child, mapping: mapping}
}

// NewMaterializingProjection constructs a materializing-mode projection.
// idColumn names the output column (if any) that should be carried in
// the materialized row's 9-byte identifier field; every other output
// column is concatenated into the remaining 30-byte field. filePath is
// the physical path of the backing file (its parent directory is created
// if missing, and any pre-existing file of the same name is removed so
// re-execution is idempotent); fileKey is the logical name registered
// with pool.
func NewMaterializingProjection(child Operator, mapping []tuple.ColumnMapping, pool *buffer.Pool, fileKey, filePath, idColumn string) *Projection {
	return &Projection{
		child:       child,
		mapping:     mapping,
		pool:        pool,
		fileKey:     fileKey,
		filePath:    filePath,
		idColumn:    idColumn,
		materialize: true,
	}
}

func (p *Projection) Open() error {
	if err := p.child.Open(); err != nil {
		return err
	}
	if p.materialize {
		if p.readPage != nil {
			p.single.UnpinPage(p.readPage.PageID())
		}
		p.readPage = nil
		p.readPageID = 0
		p.readSlot = 0
	}
	return nil
}

func (p *Projection) Next() (tuple.Tuple, bool, error) {
	if !p.materialize {
		t, ok, err := p.child.Next()
		if err != nil || !ok {
			return tuple.Tuple{}, false, err
		}
		return tuple.Project(t, p.mapping), true, nil
	}

	if !p.built {
		if err := p.build(); err != nil {
			return tuple.Tuple{}, false, err
		}
		p.built = true
	}
	return p.readNext()
}

func (p *Projection) Close() error {
	if p.readPage != nil {
		p.single.UnpinPage(p.readPageID)
		p.readPage = nil
	}
	return p.child.Close()
}

// build consumes the child to completion, writing every projected tuple
// into the backing file via the buffer pool, flushing full pages as it
// goes and forcing at the end.
func (p *Projection) build() error {
	if err := os.MkdirAll(filepath.Dir(p.filePath), 0o755); err != nil {
		return fmt.Errorf("operator: creating directory for materialized file: %w", err)
	}
	_ = os.Remove(p.filePath)

	f, err := os.OpenFile(p.filePath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("operator: creating materialized file %q: %w", p.filePath, err)
	}
	if err := p.pool.RegisterFile(p.fileKey, f, 0); err != nil {
		return err
	}
	p.single = buffer.NewSinglePool(p.pool, p.fileKey)

	var current *storage.RowPage
	flush := func() {
		if current != nil {
			p.single.UnpinPage(current.PageID())
			current = nil
		}
	}
	defer flush()

	for {
		t, ok, err := p.child.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		out := tuple.Project(t, p.mapping)
		row := p.encodeRow(out)

		for {
			if current == nil {
				page, err := p.single.CreatePage()
				if err != nil {
					return err
				}
				current = storage.NewRowPage(page, storage.Movies)
			}
			if _, ok := current.InsertRow(row); ok {
				p.single.MarkDirty(current.PageID())
				break
			}
			flush()
		}
	}
	flush()
	return p.single.Force()
}

// encodeRow packs an output tuple into the Movies-shaped {id, rest} row
// layout of §4.4.4: idColumn (if present in the output schema) fills the
// 9-byte identifier field, every other output column is concatenated
// into the 30-byte remainder.
func (p *Projection) encodeRow(t tuple.Tuple) []string {
	id := ""
	rest := ""
	for i, col := range t.Columns() {
		if col == p.idColumn {
			id = t.Values()[i]
			continue
		}
		rest += t.Values()[i]
	}
	return []string{id, rest}
}

func (p *Projection) readNext() (tuple.Tuple, bool, error) {
	for {
		if p.readPage == nil {
			page, err := p.single.GetPage(p.readPageID)
			if err != nil {
				return tuple.Tuple{}, false, err
			}
			if page == nil {
				return tuple.Tuple{}, false, nil
			}
			p.readPage = storage.NewRowPage(page, storage.Movies)
			p.readSlot = 0
		}
		row, ok := p.readPage.GetRow(p.readSlot)
		if !ok {
			p.single.UnpinPage(p.readPage.PageID())
			p.readPage = nil
			p.readPageID++
			continue
		}
		p.readSlot++
		return p.decodeRow(row.Values), true, nil
	}
}

// decodeRow is the inverse of encodeRow for the common two-output-column
// shape (an id column plus exactly one other), the shape every use in
// the canonical plan takes.
func (p *Projection) decodeRow(values []string) tuple.Tuple {
	columns := make([]string, len(p.mapping))
	out := make([]string, len(p.mapping))
	for i, m := range p.mapping {
		columns[i] = m.Output
		if m.Output == p.idColumn {
			out[i] = values[0]
		} else {
			out[i] = values[1]
		}
	}
	return tuple.New(columns, out)
}
