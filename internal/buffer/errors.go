package buffer

import "errors"

// ErrBufferExhausted is surfaced when no frame can be freed for a
// getPage/createPage request: every resident frame is pinned.
var ErrBufferExhausted = errors.New("buffer: no unpinnable frame available")

// ErrUnknownFile is returned when an operation names a file the pool was
// never told to open via RegisterFile.
var ErrUnknownFile = errors.New("buffer: file not registered with pool")
