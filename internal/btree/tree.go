package btree

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/otterlake/imdbengine/internal/buffer"
	"github.com/otterlake/imdbengine/internal/storage"
)

// ErrUnsortedBulkLoad is a ProgrammerError per §7: bulk-load mode assumes
// non-decreasing key order and refuses to silently misplace an entry.
var ErrUnsortedBulkLoad = errors.New("btree: bulk-load received a key smaller than the last inserted key")

// rootPage is where the tree's root always lives. Root splits keep the
// root's page identifier fixed at 0 and move the pre-split root's content
// to a freshly allocated page instead, so that reopening a tree only
// needs to probe page 0 per §4.3's persistence rule, without needing a
// separately stored root pointer.
const rootPage = storage.PageID(0)

// Tree is a persistent B+-tree mapping string keys to non-empty RID
// lists, backed by its own file and sharing the caller's buffer pool.
type Tree struct {
	pool   *buffer.SinglePool
	logger *zap.Logger
	order  int // M: max keys per node before a normal-mode split

	bulkLoad     bool
	rightmost    storage.PageID
	hasBulkKey   bool
	lastBulkKey  string
}

// Open probes page 0 of pool's bound file. If it does not yet exist a
// fresh empty tree (a single empty root leaf) is created; otherwise the
// existing tree is opened as-is.
func Open(pool *buffer.SinglePool, logger *zap.Logger, order int) (*Tree, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if order < 3 {
		order = 3
	}
	t := &Tree{pool: pool, logger: logger, order: order, rightmost: rootPage}

	page, err := pool.GetPage(rootPage)
	if err != nil {
		return nil, err
	}
	if page == nil {
		root, err := pool.CreatePage()
		if err != nil {
			return nil, fmt.Errorf("btree: creating root leaf: %w", err)
		}
		leaf := NewLeafNode(root.ID())
		if err := t.putLeaf(leaf); err != nil {
			return nil, err
		}
		pool.UnpinPage(root.ID())
		return t, nil
	}
	pool.UnpinPage(rootPage)

	// Recompute the rightmost leaf so a reopened tree can resume bulk
	// loading exactly where it left off.
	rightmost, err := t.findRightmostLeaf()
	if err != nil {
		return nil, err
	}
	t.rightmost = rightmost
	return t, nil
}

// SetBulkLoad toggles bulk-load mode. Callers must deliver keys in
// non-decreasing order once bulk-load mode is enabled.
func (t *Tree) SetBulkLoad(enabled bool) {
	t.bulkLoad = enabled
	t.hasBulkKey = false
}

func (t *Tree) splitThreshold() int {
	if t.bulkLoad {
		return t.order - 1
	}
	return t.order
}

// Insert adds rid under key, creating the key if it did not already
// exist. See §4.3 for the normal-mode vs. bulk-load-mode navigation
// difference.
func (t *Tree) Insert(key string, rid storage.RID) error {
	if t.bulkLoad {
		return t.bulkInsert(key, rid)
	}
	leafID, err := t.descendToLeaf(key)
	if err != nil {
		return err
	}
	return t.insertIntoLeaf(leafID, key, rid)
}

func (t *Tree) bulkInsert(key string, rid storage.RID) error {
	if t.hasBulkKey && key < t.lastBulkKey {
		return fmt.Errorf("%w: got %q after %q", ErrUnsortedBulkLoad, key, t.lastBulkKey)
	}
	t.hasBulkKey = true
	t.lastBulkKey = key
	return t.insertIntoLeaf(t.rightmost, key, rid)
}

func (t *Tree) insertIntoLeaf(leafID storage.PageID, key string, rid storage.RID) error {
	leaf, err := t.getLeaf(leafID)
	if err != nil {
		return err
	}

	inserted := false
	for i, k := range leaf.Keys {
		if k == key {
			leaf.RIDs[i] = append(leaf.RIDs[i], rid)
			inserted = true
			break
		}
		if key < k {
			leaf.Keys = append(leaf.Keys[:i], append([]string{key}, leaf.Keys[i:]...)...)
			leaf.RIDs = append(leaf.RIDs[:i], append([][]storage.RID{{rid}}, leaf.RIDs[i:]...)...)
			inserted = true
			break
		}
	}
	if !inserted {
		leaf.Keys = append(leaf.Keys, key)
		leaf.RIDs = append(leaf.RIDs, []storage.RID{rid})
	}

	if len(leaf.Keys) < t.splitThreshold() {
		return t.putLeaf(leaf)
	}
	return t.splitLeaf(leaf)
}

// splitLeaf splits an overfull leaf at floor(size/2), promoting the
// sibling's first key to the parent (or performing a root split).
func (t *Tree) splitLeaf(leaf *LeafNode) error {
	mid := len(leaf.Keys) / 2

	sibling, err := t.pool.CreatePage()
	if err != nil {
		return fmt.Errorf("btree: allocating leaf sibling: %w", err)
	}
	// putLeaf pins the page again when it writes the node, so the
	// allocation pin is released now rather than held across the
	// recursive parent update.
	t.pool.UnpinPage(sibling.ID())
	siblingNode := &LeafNode{
		nodeHeader: nodeHeader{PageID: sibling.ID(), IsLeaf: true, Parent: leaf.Parent},
		NextLeaf:   leaf.NextLeaf,
		Keys:       append([]string(nil), leaf.Keys[mid:]...),
		RIDs:       append([][]storage.RID(nil), leaf.RIDs[mid:]...),
	}
	leaf.Keys = leaf.Keys[:mid]
	leaf.RIDs = leaf.RIDs[:mid]
	leaf.NextLeaf = sibling.ID()
	promoted := siblingNode.Keys[0]

	if t.bulkLoad && t.rightmost == leaf.PageID {
		t.rightmost = siblingNode.PageID
	}

	if err := t.putLeaf(siblingNode); err != nil {
		return err
	}

	wasRoot := leaf.Parent == NoPage && leaf.PageID == rootPage
	if wasRoot {
		return t.splitRoot(leaf, promoted, siblingNode.PageID)
	}
	if err := t.putLeaf(leaf); err != nil {
		return err
	}
	return t.insertIntoParent(leaf.Parent, leaf.PageID, promoted, siblingNode.PageID)
}

// splitInternal splits an overfull internal node at floor(size/2). The
// middle key is promoted, not duplicated; children are partitioned
// around it and their parent pointers reassigned.
func (t *Tree) splitInternal(node *InternalNode) error {
	mid := len(node.Separators) / 2
	promoted := node.Separators[mid]

	sibling, err := t.pool.CreatePage()
	if err != nil {
		return fmt.Errorf("btree: allocating internal sibling: %w", err)
	}
	t.pool.UnpinPage(sibling.ID())
	siblingNode := &InternalNode{
		nodeHeader: nodeHeader{PageID: sibling.ID(), IsLeaf: false, Parent: node.Parent},
		Separators: append([]string(nil), node.Separators[mid+1:]...),
		Children:   append([]storage.PageID(nil), node.Children[mid+1:]...),
	}
	node.Separators = node.Separators[:mid]
	node.Children = node.Children[:mid+1]

	if err := t.reparentChildren(siblingNode.Children, siblingNode.PageID); err != nil {
		return err
	}
	if err := t.putInternal(siblingNode); err != nil {
		return err
	}

	wasRoot := node.Parent == NoPage && node.PageID == rootPage
	if wasRoot {
		return t.splitRoot(node, promoted, siblingNode.PageID)
	}
	if err := t.putInternal(node); err != nil {
		return err
	}
	return t.insertIntoParent(node.Parent, node.PageID, promoted, siblingNode.PageID)
}

// splitRoot handles a split that propagates up through the current root.
// The pre-split (already truncated to its lower half) root content is
// relocated to a freshly allocated page; page 0 is reformatted as a new
// internal root whose two children are the relocated node and the new
// sibling, so the root's page identifier never moves.
func (t *Tree) splitRoot(lowerHalf any, promoted string, siblingID storage.PageID) error {
	moved, err := t.pool.CreatePage()
	if err != nil {
		return fmt.Errorf("btree: allocating relocated root: %w", err)
	}
	t.pool.UnpinPage(moved.ID())

	switch n := lowerHalf.(type) {
	case *LeafNode:
		n.PageID = moved.ID()
		n.Parent = rootPage
		if t.bulkLoad && t.rightmost == rootPage {
			// only possible if the whole tree is this one leaf, i.e. no
			// split has happened yet: safe to relocate without breaking
			// any predecessor's forward link.
			t.rightmost = moved.ID()
		}
		if err := t.putLeaf(n); err != nil {
			return err
		}
	case *InternalNode:
		n.PageID = moved.ID()
		n.Parent = rootPage
		if err := t.reparentChildren(n.Children, moved.ID()); err != nil {
			return err
		}
		if err := t.putInternal(n); err != nil {
			return err
		}
	default:
		return fmt.Errorf("btree: splitRoot got unexpected node type %T", lowerHalf)
	}

	if err := t.setParent(siblingID, rootPage); err != nil {
		return err
	}

	newRoot := &InternalNode{
		nodeHeader: nodeHeader{PageID: rootPage, IsLeaf: false, Parent: NoPage},
		Separators: []string{promoted},
		Children:   []storage.PageID{moved.ID(), siblingID},
	}
	return t.putInternal(newRoot)
}

// insertIntoParent inserts a newly promoted separator/child pair into an
// existing internal node, splitting it further if it overflows.
func (t *Tree) insertIntoParent(parentID storage.PageID, existingChild storage.PageID, key string, newChild storage.PageID) error {
	parent, err := t.getInternal(parentID)
	if err != nil {
		return err
	}

	pos := len(parent.Children)
	for i, c := range parent.Children {
		if c == existingChild {
			pos = i
			break
		}
	}
	parent.Separators = append(parent.Separators[:pos], append([]string{key}, parent.Separators[pos:]...)...)
	insertAt := pos + 1
	parent.Children = append(parent.Children[:insertAt], append([]storage.PageID{newChild}, parent.Children[insertAt:]...)...)

	if len(parent.Separators) < t.splitThreshold() {
		return t.putInternal(parent)
	}
	return t.splitInternal(parent)
}

func (t *Tree) reparentChildren(children []storage.PageID, newParent storage.PageID) error {
	for _, c := range children {
		if err := t.setParent(c, newParent); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) setParent(id storage.PageID, parent storage.PageID) error {
	leaf, internal, err := t.getAny(id)
	if err != nil {
		return err
	}
	if leaf != nil {
		leaf.Parent = parent
		return t.putLeaf(leaf)
	}
	internal.Parent = parent
	return t.putInternal(internal)
}

// descendToLeaf walks from the root to the leaf that would contain key.
func (t *Tree) descendToLeaf(key string) (storage.PageID, error) {
	id := rootPage
	for {
		leaf, internal, err := t.getAny(id)
		if err != nil {
			return 0, err
		}
		if leaf != nil {
			return id, nil
		}
		id = internal.childFor(key)
	}
}

func (n *InternalNode) childFor(key string) storage.PageID {
	for i, sep := range n.Separators {
		if key < sep {
			return n.Children[i]
		}
	}
	return n.Children[len(n.Children)-1]
}

func (t *Tree) findRightmostLeaf() (storage.PageID, error) {
	id := rootPage
	for {
		leaf, internal, err := t.getAny(id)
		if err != nil {
			return 0, err
		}
		if leaf != nil {
			return id, nil
		}
		id = internal.Children[len(internal.Children)-1]
	}
}
