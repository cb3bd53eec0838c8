// Package btree implements the persistent, disk-resident, order-
// parameterized B+-tree keyed by string with RID-list values described in
// §4.3. Every node occupies exactly one storage.Page; splits, parent
// links and leaf forward-links follow the standard B+-tree maintenance
// invariants, generalized from a fixed SQL row key to an arbitrary
// string key.
package btree

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/otterlake/imdbengine/internal/storage"
)

// NoPage is the sentinel meaning "none": used for a leaf's forward link
// when it is the last leaf, and for a node's parent link at the root.
const NoPage = storage.PageID(math.MaxUint32)

const headerSize = 4 + 1 + 4 + 4 // pageId, isLeaf, parentPageId, keyCount

// nodeHeader is the common prefix of every serialized node.
type nodeHeader struct {
	PageID   storage.PageID
	IsLeaf   bool
	Parent   storage.PageID
	KeyCount int
}

func (h nodeHeader) marshal(buf []byte) int {
	binary.BigEndian.PutUint32(buf[0:4], uint32(h.PageID))
	if h.IsLeaf {
		buf[4] = 1
	} else {
		buf[4] = 0
	}
	binary.BigEndian.PutUint32(buf[5:9], uint32(h.Parent))
	binary.BigEndian.PutUint32(buf[9:13], uint32(h.KeyCount))
	return headerSize
}

func unmarshalHeader(buf []byte) (nodeHeader, int) {
	h := nodeHeader{
		PageID:   storage.PageID(binary.BigEndian.Uint32(buf[0:4])),
		IsLeaf:   buf[4] == 1,
		Parent:   storage.PageID(binary.BigEndian.Uint32(buf[5:9])),
		KeyCount: int(binary.BigEndian.Uint32(buf[9:13])),
	}
	return h, headerSize
}

// LeafNode is a B+-tree leaf: an ordered sequence of keys, each mapping
// to a non-empty list of RIDs, plus a forward link to the next leaf.
type LeafNode struct {
	nodeHeader
	NextLeaf storage.PageID
	Keys     []string
	RIDs     [][]storage.RID
}

// NewLeafNode returns an empty leaf stamped with id, no parent, no next.
func NewLeafNode(id storage.PageID) *LeafNode {
	return &LeafNode{
		nodeHeader: nodeHeader{PageID: id, IsLeaf: true, Parent: NoPage},
		NextLeaf:   NoPage,
	}
}

// InternalNode is a B+-tree internal node: k separator keys and k+1
// children. All keys in child i are < Separators[i]; all keys in child
// i+1 are >= Separators[i].
type InternalNode struct {
	nodeHeader
	Separators []string
	Children   []storage.PageID
}

// NewInternalNode returns an empty internal node stamped with id.
func NewInternalNode(id storage.PageID) *InternalNode {
	return &InternalNode{
		nodeHeader: nodeHeader{PageID: id, IsLeaf: false, Parent: NoPage},
	}
}

// EncodedSize returns the number of bytes Marshal would need for this leaf.
func (n *LeafNode) EncodedSize() int {
	size := headerSize + 4 // NextLeaf
	for i, k := range n.Keys {
		size += 2 + len(k) + 4 + len(n.RIDs[i])*8
	}
	return size
}

// Marshal writes the leaf into buf, which must be storage.PageSize bytes.
// If the node's true content would overflow the page, trailing entries
// are dropped deterministically (same input, same truncation) rather
// than corrupting the page; callers are expected to split before this
// ever triggers (see Tree.insertIntoLeaf), so it is a last-resort guard.
func (n *LeafNode) Marshal(buf []byte) error {
	if len(buf) != storage.PageSize {
		return fmt.Errorf("btree: leaf marshal buffer must be %d bytes", storage.PageSize)
	}
	offset := n.nodeHeader.marshal(buf)
	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(n.NextLeaf))
	offset += 4

	kept := 0
	for i, k := range n.Keys {
		entrySize := 2 + len(k) + 4 + len(n.RIDs[i])*8
		if offset+entrySize > storage.PageSize {
			break
		}
		binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(k)))
		offset += 2
		copy(buf[offset:offset+len(k)], k)
		offset += len(k)
		binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(n.RIDs[i])))
		offset += 4
		for _, rid := range n.RIDs[i] {
			binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(rid.PageID))
			offset += 4
			binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(rid.SlotID))
			offset += 4
		}
		kept++
	}
	binary.BigEndian.PutUint32(buf[9:13], uint32(kept))
	return nil
}

// UnmarshalLeaf reads a leaf node back out of a page buffer. A negative
// or absurdly large key count is treated as CorruptPage: the node is
// returned with zero entries rather than panicking, so the tree stays
// traversable per §7.
func UnmarshalLeaf(buf []byte) (*LeafNode, error) {
	h, offset := unmarshalHeader(buf)
	n := &LeafNode{nodeHeader: h}
	n.NextLeaf = storage.PageID(binary.BigEndian.Uint32(buf[offset : offset+4]))
	offset += 4

	if h.KeyCount < 0 || h.KeyCount > storage.PageSize {
		return n, fmt.Errorf("%w: leaf %d reports implausible key count %d", storage.ErrCorruptPage, h.PageID, h.KeyCount)
	}

	for i := 0; i < h.KeyCount; i++ {
		if offset+2 > storage.PageSize {
			return n, fmt.Errorf("%w: leaf %d truncated while reading key %d", storage.ErrCorruptPage, h.PageID, i)
		}
		keyLen := int(binary.BigEndian.Uint16(buf[offset : offset+2]))
		offset += 2
		if keyLen < 0 || offset+keyLen > storage.PageSize {
			return n, fmt.Errorf("%w: leaf %d oversized key length at entry %d", storage.ErrCorruptPage, h.PageID, i)
		}
		key := string(buf[offset : offset+keyLen])
		offset += keyLen
		ridCount := int(binary.BigEndian.Uint32(buf[offset : offset+4]))
		offset += 4
		if ridCount < 0 || offset+ridCount*8 > storage.PageSize {
			return n, fmt.Errorf("%w: leaf %d oversized rid count at entry %d", storage.ErrCorruptPage, h.PageID, i)
		}
		rids := make([]storage.RID, ridCount)
		for j := 0; j < ridCount; j++ {
			rids[j] = storage.RID{
				PageID: storage.PageID(binary.BigEndian.Uint32(buf[offset : offset+4])),
				SlotID: storage.SlotID(binary.BigEndian.Uint32(buf[offset+4 : offset+8])),
			}
			offset += 8
		}
		n.Keys = append(n.Keys, key)
		n.RIDs = append(n.RIDs, rids)
	}
	n.nodeHeader.KeyCount = len(n.Keys)
	return n, nil
}

// EncodedSize returns the number of bytes Marshal would need.
func (n *InternalNode) EncodedSize() int {
	size := headerSize
	for _, k := range n.Separators {
		size += 2 + len(k) + 4
	}
	size += 4 // trailing child
	return size
}

// Marshal writes the internal node into buf. See LeafNode.Marshal for the
// truncation guarantee.
func (n *InternalNode) Marshal(buf []byte) error {
	if len(buf) != storage.PageSize {
		return fmt.Errorf("btree: internal marshal buffer must be %d bytes", storage.PageSize)
	}
	offset := n.nodeHeader.marshal(buf)

	kept := 0
	for i, k := range n.Separators {
		entrySize := 2 + len(k) + 4
		if offset+entrySize+4 > storage.PageSize { // +4 reserves room for the trailing child
			break
		}
		binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(k)))
		offset += 2
		copy(buf[offset:offset+len(k)], k)
		offset += len(k)
		binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(n.Children[i]))
		offset += 4
		kept++
	}
	trailing := storage.PageID(0)
	if kept < len(n.Children) {
		trailing = n.Children[kept]
	}
	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(trailing))
	binary.BigEndian.PutUint32(buf[9:13], uint32(kept))
	return nil
}

// UnmarshalInternal reads an internal node back out of a page buffer.
func UnmarshalInternal(buf []byte) (*InternalNode, error) {
	h, offset := unmarshalHeader(buf)
	n := &InternalNode{nodeHeader: h}

	if h.KeyCount < 0 || h.KeyCount > storage.PageSize {
		return n, fmt.Errorf("%w: internal node %d reports implausible key count %d", storage.ErrCorruptPage, h.PageID, h.KeyCount)
	}

	for i := 0; i < h.KeyCount; i++ {
		if offset+2 > storage.PageSize {
			return n, fmt.Errorf("%w: internal node %d truncated while reading key %d", storage.ErrCorruptPage, h.PageID, i)
		}
		keyLen := int(binary.BigEndian.Uint16(buf[offset : offset+2]))
		offset += 2
		if keyLen < 0 || offset+keyLen+4 > storage.PageSize {
			return n, fmt.Errorf("%w: internal node %d oversized key length at entry %d", storage.ErrCorruptPage, h.PageID, i)
		}
		key := string(buf[offset : offset+keyLen])
		offset += keyLen
		child := storage.PageID(binary.BigEndian.Uint32(buf[offset : offset+4]))
		offset += 4
		n.Separators = append(n.Separators, key)
		n.Children = append(n.Children, child)
	}
	trailing := storage.PageID(binary.BigEndian.Uint32(buf[offset : offset+4]))
	n.Children = append(n.Children, trailing)
	n.nodeHeader.KeyCount = len(n.Separators)
	return n, nil
}
