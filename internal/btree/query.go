package btree

import "github.com/otterlake/imdbengine/internal/storage"

// Search returns an iterator over the RID list stored for key, or an
// empty iterator if the key is absent.
func (t *Tree) Search(key string) (*RIDIterator, error) {
	leafID, err := t.descendToLeaf(key)
	if err != nil {
		return nil, err
	}
	leaf, err := t.getLeaf(leafID)
	if err != nil {
		return nil, err
	}
	for i, k := range leaf.Keys {
		if k == key {
			return newRIDIterator(leaf.RIDs[i]), nil
		}
	}
	return newRIDIterator(nil), nil
}

// RangeSearch returns an iterator over every RID for every key in
// [lo, hi], inclusive on both ends, in ascending key order. lo > hi
// yields an empty iterator; lo == hi reduces to a point lookup.
func (t *Tree) RangeSearch(lo, hi string) (*RIDIterator, error) {
	if lo > hi {
		return newRIDIterator(nil), nil
	}

	leafID, err := t.descendToLeaf(lo)
	if err != nil {
		return nil, err
	}

	var out []storage.RID
	for leafID != NoPage {
		leaf, err := t.getLeaf(leafID)
		if err != nil {
			return nil, err
		}
		done := false
		for i, k := range leaf.Keys {
			if k < lo {
				continue
			}
			if k > hi {
				done = true
				break
			}
			out = append(out, leaf.RIDs[i]...)
		}
		if done {
			break
		}
		leafID = leaf.NextLeaf
	}
	return newRIDIterator(out), nil
}
