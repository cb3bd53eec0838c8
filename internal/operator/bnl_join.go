package operator

import (
	"go.uber.org/multierr"

	"github.com/otterlake/imdbengine/internal/tuple"
)

// rowsPerPageBudget is the table-independent constant used to translate
// a page-denominated block size into a tuple-denominated one (§4.3's
// open question leaves this multiplier to the implementer, requiring
// only that it be bounded and deterministic).
const rowsPerPageBudget = 100

// BlockNestedLoopJoin is the central join algorithm of §4.4.5: an outer
// child is buffered in blocks of tuples; for each block, the inner child
// is rewound (closed and reopened) once per outer tuple and scanned to
// completion, emitting every match. Inner operators must therefore be
// idempotent across open/close cycles — a materializing Projection is,
// a pipelined one generally is not.
type BlockNestedLoopJoin struct {
	outer, inner  Operator
	pred          JoinPredicate
	blockCapacity int

	block          []tuple.Tuple
	outerIdx       int
	needRewind     bool
	outerExhausted bool
	opened         bool
	innerOpened    bool
}

// NewBlockNestedLoopJoin constructs a BNL join. bufferSize is the total
// buffer pool size B in pages; the block size is
// floor((bufferSize-2)/2) pages, floored to at least 1 page, translated
// into a tuple budget via rowsPerPageBudget.
func NewBlockNestedLoopJoin(outer, inner Operator, pred JoinPredicate, bufferSize int) *BlockNestedLoopJoin {
	const reserved = 2 // one inner page frame, one output page frame
	blockPages := (bufferSize - reserved) / 2
	if blockPages < 1 {
		blockPages = 1
	}
	return &BlockNestedLoopJoin{
		outer:         outer,
		inner:         inner,
		pred:          pred,
		blockCapacity: blockPages * rowsPerPageBudget,
	}
}

func (j *BlockNestedLoopJoin) Open() error {
	if j.opened {
		return nil
	}
	if err := j.outer.Open(); err != nil {
		return err
	}
	// The inner side is opened lazily, on the first rewind: an outer that
	// turns out to be empty must never touch the inner child at all.
	j.opened = true
	j.block = nil
	j.outerIdx = 0
	j.outerExhausted = false
	j.innerOpened = false
	return nil
}

func (j *BlockNestedLoopJoin) Next() (tuple.Tuple, bool, error) {
	for {
		if j.outerIdx >= len(j.block) {
			if j.outerExhausted && len(j.block) == 0 {
				return tuple.Tuple{}, false, nil
			}
			if err := j.loadNextBlock(); err != nil {
				return tuple.Tuple{}, false, err
			}
			if len(j.block) == 0 {
				continue // outer just became exhausted with an empty final block
			}
			j.outerIdx = 0
			j.needRewind = true
		}

		if j.needRewind {
			if j.innerOpened {
				if err := j.inner.Close(); err != nil {
					return tuple.Tuple{}, false, err
				}
			}
			if err := j.inner.Open(); err != nil {
				return tuple.Tuple{}, false, err
			}
			j.innerOpened = true
			j.needRewind = false
		}

		innerTuple, ok, err := j.inner.Next()
		if err != nil {
			return tuple.Tuple{}, false, err
		}
		if !ok {
			j.outerIdx++
			j.needRewind = true
			continue
		}

		outerTuple := j.block[j.outerIdx]
		if j.pred(outerTuple, innerTuple) {
			return tuple.Concat(outerTuple, innerTuple), true, nil
		}
	}
}

func (j *BlockNestedLoopJoin) loadNextBlock() error {
	j.block = j.block[:0]
	for len(j.block) < j.blockCapacity {
		t, ok, err := j.outer.Next()
		if err != nil {
			return err
		}
		if !ok {
			j.outerExhausted = true
			break
		}
		j.block = append(j.block, t)
	}
	return nil
}

func (j *BlockNestedLoopJoin) Close() error {
	j.opened = false
	j.block = nil
	outerErr := j.outer.Close()
	if !j.innerOpened {
		return outerErr
	}
	j.innerOpened = false
	innerErr := j.inner.Close()
	return multierr.Append(outerErr, innerErr)
}
