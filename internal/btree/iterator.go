package btree

import "github.com/otterlake/imdbengine/internal/storage"

// RIDIterator yields RIDs one at a time. A zero-value iterator (or one
// built over an absent key) is immediately exhausted.
type RIDIterator struct {
	rids []storage.RID
	pos  int
}

func newRIDIterator(rids []storage.RID) *RIDIterator {
	return &RIDIterator{rids: rids}
}

// Next returns the next RID, or (RID{}, false) when exhausted.
func (it *RIDIterator) Next() (storage.RID, bool) {
	if it == nil || it.pos >= len(it.rids) {
		return storage.RID{}, false
	}
	rid := it.rids[it.pos]
	it.pos++
	return rid, true
}
