// Package operator implements the iterator-model physical operators of
// §4.4: uniform Open/Next/Close producers composed into the fixed pull-
// based pipeline that executes the canonical query. Each operator is an
// explicit external-iterator state machine rather than a goroutine
// pulling over a channel: a bounded struct plus Close-time cleanup, no
// background goroutine to leak if a caller stops iterating early.
package operator

import "github.com/otterlake/imdbengine/internal/tuple"

// Operator is the uniform three-method contract every physical operator
// implements. Open is idempotent on repeated calls before Close. Next
// must not be called after Close. Close releases pinned pages and any
// temporary storage and must be safe to call even if Open failed or was
// never called.
type Operator interface {
	Open() error
	Next() (tuple.Tuple, bool, error)
	Close() error
}
