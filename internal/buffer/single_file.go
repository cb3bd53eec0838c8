package buffer

import "github.com/otterlake/imdbengine/internal/storage"

// SinglePool is the single-file entry-point shape of §4.2: one implicit
// file bound at construction. It shares the same frame pool as any other
// SinglePool or the underlying Pool composed with it, so a table's row
// store and its secondary index can coexist under one buffer budget.
type SinglePool struct {
	pool *Pool
	file string
}

// NewSinglePool binds name to an already-registered file inside pool.
func NewSinglePool(pool *Pool, name string) *SinglePool {
	return &SinglePool{pool: pool, file: name}
}

func (s *SinglePool) GetPage(id storage.PageID) (*storage.Page, error) {
	return s.pool.GetPage(s.file, id)
}

func (s *SinglePool) CreatePage() (*storage.Page, error) {
	return s.pool.CreatePage(s.file)
}

func (s *SinglePool) MarkDirty(id storage.PageID) {
	s.pool.MarkDirty(s.file, id)
}

func (s *SinglePool) UnpinPage(id storage.PageID) {
	s.pool.UnpinPage(s.file, id)
}

func (s *SinglePool) Force() error {
	return s.pool.Force(s.file)
}

// Pool exposes the underlying multi-file pool for callers that need to
// coordinate across files (e.g. a table and its secondary index).
func (s *SinglePool) Pool() *Pool { return s.pool }

// File returns the name this SinglePool is bound to.
func (s *SinglePool) File() string { return s.file }
