package btree

import (
	"fmt"

	"github.com/otterlake/imdbengine/internal/storage"
)

// getAny fetches the node at id and returns it typed: exactly one of the
// two return values is non-nil.
func (t *Tree) getAny(id storage.PageID) (*LeafNode, *InternalNode, error) {
	page, err := t.pool.GetPage(id)
	if err != nil {
		return nil, nil, err
	}
	if page == nil {
		return nil, nil, fmt.Errorf("btree: page %d does not exist", id)
	}
	defer t.pool.UnpinPage(id)

	buf := page.RawBytes()
	if len(buf) < 5 {
		return nil, nil, fmt.Errorf("%w: page %d too short to hold a node header", storage.ErrCorruptPage, id)
	}
	if buf[4] == 1 {
		leaf, err := UnmarshalLeaf(buf)
		if err != nil {
			t.logger.Sugar().Warnw("corrupt leaf node, degrading", "page", id, "error", err)
		}
		return leaf, nil, nil
	}
	internal, err := UnmarshalInternal(buf)
	if err != nil {
		t.logger.Sugar().Warnw("corrupt internal node, degrading", "page", id, "error", err)
	}
	return nil, internal, nil
}

func (t *Tree) getLeaf(id storage.PageID) (*LeafNode, error) {
	leaf, internal, err := t.getAny(id)
	if err != nil {
		return nil, err
	}
	if leaf == nil {
		return nil, fmt.Errorf("btree: page %d (parent %d) is not a leaf", id, internal.Parent)
	}
	return leaf, nil
}

func (t *Tree) getInternal(id storage.PageID) (*InternalNode, error) {
	leaf, internal, err := t.getAny(id)
	if err != nil {
		return nil, err
	}
	if internal == nil {
		return nil, fmt.Errorf("btree: page %d (parent %d) is not an internal node", id, leaf.Parent)
	}
	return internal, nil
}

func (t *Tree) putLeaf(n *LeafNode) error {
	page, err := t.pool.GetPage(n.PageID)
	if err != nil {
		return err
	}
	if page == nil {
		return fmt.Errorf("btree: cannot save leaf, page %d does not exist", n.PageID)
	}
	defer t.pool.UnpinPage(n.PageID)

	buf := make([]byte, storage.PageSize)
	if err := n.Marshal(buf); err != nil {
		return err
	}
	if err := page.LoadFromBytes(buf); err != nil {
		return err
	}
	t.pool.MarkDirty(n.PageID)
	return nil
}

func (t *Tree) putInternal(n *InternalNode) error {
	page, err := t.pool.GetPage(n.PageID)
	if err != nil {
		return err
	}
	if page == nil {
		return fmt.Errorf("btree: cannot save internal node, page %d does not exist", n.PageID)
	}
	defer t.pool.UnpinPage(n.PageID)

	buf := make([]byte, storage.PageSize)
	if err := n.Marshal(buf); err != nil {
		return err
	}
	if err := page.LoadFromBytes(buf); err != nil {
		return err
	}
	t.pool.MarkDirty(n.PageID)
	return nil
}

// Flush force-flushes the tree's owning file, per §4.3's persistence
// rule that a batch (bulk load, end of query) ends with a force-flush.
func (t *Tree) Flush() error {
	return t.pool.Force()
}
