// Package buffer implements the fixed-capacity buffer pool manager: a
// page cache with pin/unpin lifecycle, LRU eviction, dirty tracking, and
// write-back across multiple files. Eviction respects outstanding pins:
// a pinned frame is never a victim, regardless of recency.
package buffer

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/otterlake/imdbengine/internal/storage"
)

// File is the on-disk handle a registered table or index file must
// provide. A flat sequence of PageSize-byte pages addressed by byte
// offset = pageId * PageSize.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
}

type frame struct {
	page  *storage.Page
	file  string
	dirty bool
	pin   int
}

type fileEntry struct {
	handle    File
	highWater storage.PageID // one past the last allocated page id
}

type key struct {
	file string
	id   storage.PageID
}

// Pool is the multi-file buffer pool manager. A single-file caller should
// use SinglePool, a thin wrapper sharing the same frame array.
type Pool struct {
	mu       sync.Mutex
	logger   *zap.Logger
	capacity int

	frames  []*frame
	index   map[key]int
	recency *recencyList
	files   map[string]*fileEntry
}

// NewPool creates a buffer pool with a fixed number of frames.
func NewPool(logger *zap.Logger, capacity int) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		logger:   logger,
		capacity: capacity,
		frames:   make([]*frame, capacity),
		index:    make(map[key]int),
		recency:  newRecencyList(),
		files:    make(map[string]*fileEntry),
	}
}

// RegisterFile binds a name to an open file handle whose current size is
// sizeBytes. On fresh open, the file's high-water page count is
// floor(sizeBytes / PageSize), per §4.2.
func (p *Pool) RegisterFile(name string, handle File, sizeBytes int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.files[name] = &fileEntry{
		handle:    handle,
		highWater: storage.PageID(sizeBytes / storage.PageSize),
	}
	return nil
}

// GetPage returns the page, pinned. If already cached its LRU position is
// refreshed; otherwise a victim frame is evicted (writing it back if
// dirty) and the page is read from disk. Returns (nil, nil) when pageId
// is beyond the file's high-water mark — end of file, not an error.
func (p *Pool) GetPage(file string, id storage.PageID) (*storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.files[file]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFile, file)
	}

	k := key{file, id}
	if idx, ok := p.index[k]; ok {
		p.frames[idx].pin++
		p.recency.touch(idx)
		return p.frames[idx].page, nil
	}

	if id >= entry.highWater {
		return nil, nil
	}

	idx, ok := p.evict()
	if !ok {
		return nil, ErrBufferExhausted
	}

	buf := make([]byte, storage.PageSize)
	if _, err := entry.handle.ReadAt(buf, int64(id)*storage.PageSize); err != nil {
		return nil, fmt.Errorf("buffer: reading page %d of %q: %w", id, file, err)
	}
	page, err := storage.LoadPage(buf)
	if err != nil {
		return nil, err
	}
	if err := page.CheckID(id); err != nil {
		p.logger.Sugar().Warnw("corrupt page: embedded id disagrees with offset, using as-is",
			"file", file, "wantId", id, "gotId", page.ID())
	}

	p.frames[idx] = &frame{page: page, file: file, pin: 1}
	p.index[k] = idx
	p.recency.touch(idx)
	return page, nil
}

// CreatePage allocates the next page identifier for file, installs a
// fresh empty page in a frame, and returns it pinned. The new page counts
// toward the file's persistent extent even before it is flushed.
func (p *Pool) CreatePage(file string) (*storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.files[file]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFile, file)
	}

	idx, ok := p.evict()
	if !ok {
		return nil, ErrBufferExhausted
	}

	id := entry.highWater
	entry.highWater++

	page := storage.NewPage(id)
	p.frames[idx] = &frame{page: page, file: file, dirty: true, pin: 1}
	p.index[key{file, id}] = idx
	p.recency.touch(idx)
	return page, nil
}

// MarkDirty sets the dirty flag on a resident frame. A no-op if the page
// is not currently cached.
func (p *Pool) MarkDirty(file string, id storage.PageID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx, ok := p.index[key{file, id}]; ok {
		p.frames[idx].dirty = true
	}
}

// UnpinPage decrements a frame's pin count, saturating at zero. Unpinning
// a page that is not resident is a silent no-op, to accommodate late
// callers racing an eviction.
func (p *Pool) UnpinPage(file string, id storage.PageID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.index[key{file, id}]
	if !ok {
		return
	}
	if p.frames[idx].pin > 0 {
		p.frames[idx].pin--
	}
}

// Force writes every dirty resident frame belonging to file back to disk
// and clears its dirty flag.
func (p *Pool) Force(file string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.forceLocked(file)
}

func (p *Pool) forceLocked(file string) error {
	entry, ok := p.files[file]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFile, file)
	}
	var errs error
	for idx, f := range p.frames {
		if f == nil || f.file != file || !f.dirty {
			continue
		}
		if err := p.flushFrame(entry, f); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		p.frames[idx].dirty = false
	}
	return errs
}

// ForceAll flushes every registered file's dirty frames, combining any
// per-file errors with multierr rather than stopping at the first.
func (p *Pool) ForceAll() error {
	p.mu.Lock()
	files := make([]string, 0, len(p.files))
	for name := range p.files {
		files = append(files, name)
	}
	p.mu.Unlock()

	var errs error
	for _, name := range files {
		if err := p.Force(name); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (p *Pool) flushFrame(entry *fileEntry, f *frame) error {
	_, err := entry.handle.WriteAt(f.page.RawBytes(), int64(f.page.ID())*storage.PageSize)
	if err != nil {
		return fmt.Errorf("buffer: writing page %d of %q: %w", f.page.ID(), f.file, err)
	}
	return nil
}

// Reclaim is the "aggressive cleanup" safety valve of §5: it forcibly
// zeroes every pin count and flushes dirty frames. It should never be
// necessary in a correctly-paired acquire/release pipeline; it exists so
// a leaking caller cannot wedge the pool permanently.
func (p *Pool) Reclaim() error {
	err := p.ForceAll()
	p.mu.Lock()
	for _, f := range p.frames {
		if f != nil {
			f.pin = 0
		}
	}
	p.mu.Unlock()
	return err
}

// Close force-flushes and closes every registered file.
func (p *Pool) Close() error {
	errs := p.ForceAll()
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, entry := range p.files {
		if err := entry.handle.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("buffer: closing %q: %w", name, err))
		}
	}
	return errs
}

// evict selects a frame for reuse: an empty frame if one exists, else the
// least-recently-used frame with a zero pin count, writing it back first
// if dirty. Returns (0, false) if every frame is pinned.
func (p *Pool) evict() (int, bool) {
	for idx, f := range p.frames {
		if f == nil {
			return idx, true
		}
	}
	for _, idx := range p.recency.leastRecentFirst() {
		f := p.frames[idx]
		if f == nil || f.pin != 0 {
			continue
		}
		if f.dirty {
			if entry, ok := p.files[f.file]; ok {
				if err := p.flushFrame(entry, f); err != nil {
					p.logger.Sugar().Errorw("failed to write back victim frame", "error", err)
					continue
				}
			}
		}
		delete(p.index, key{f.file, f.page.ID()})
		p.recency.remove(idx)
		p.frames[idx] = nil
		return idx, true
	}
	return 0, false
}
