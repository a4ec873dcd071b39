// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pool implements the fixed-size block pool from spec.md §4.1:
// a pool of equally sized byte blocks, reclaimed when a Block's lifetime
// ends, with a capacity cap that can drop blocks above it rather than
// growing forever.
//
// The pool mirrors memory_pool.{h,cpp} in original_source/: blocks hold a
// weak reference back to their owning pool (here, a *Pool pointer guarded
// by a "destroyed" flag rather than a C++ weak_ptr, since Go has no
// manual free and the pool's backing array can simply outlive an
// individual Block) so that a Block returned after its Pool has been
// torn down is released to the runtime GC instead of panicking.
package pool

import (
	"sync"

	"aurcor.io/x/aurcor/aurcorerr"
)

// Pool is a fixed block-size allocator with a soft capacity cap.
type Pool struct {
	blockSize int

	mu        sync.Mutex
	free      [][]byte
	used      int
	capacity  int
	destroyed bool
}

// New creates a pool of blocks of blockSize bytes. capacity is the
// initial+maximum number of blocks kept on the free list; Resize can
// change it later.
func New(blockSize, capacity int) *Pool {
	p := &Pool{blockSize: blockSize}
	_ = p.Resize(capacity)
	return p
}

// BlockSize returns the fixed size of blocks handed out by this pool.
func (p *Pool) BlockSize() int {
	return p.blockSize
}

// Resize sets the pool's cap to count blocks, matching
// MemoryPool::resize: it grows the free list until lent-out plus free
// blocks reach count, or shrinks it by dropping free blocks. When more
// blocks are lent out than the new cap allows, the excess is dropped as
// those blocks are released. Growing never fails in Go (unlike the
// embedded heap_caps_malloc source this was grounded on) since the
// runtime allocator does not return nil; the error return is kept for
// API parity and is always nil.
func (p *Pool) Resize(count int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.free)+p.used < count {
		p.free = append(p.free, make([]byte, p.blockSize))
	}
	for len(p.free)+p.used > count && len(p.free) > 0 {
		p.free = p.free[:len(p.free)-1]
	}
	p.capacity = count
	return nil
}

// InUse reports the number of blocks currently allocated and not yet
// returned.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.used
}

// Free reports the number of blocks currently on the free list.
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Allocate pops a free, zeroed block and returns a Block handle, or
// aurcorerr.ErrAllocFailed if the pool is empty.
func (p *Pool) Allocate() (*Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		return nil, aurcorerr.ErrAllocFailed
	}

	data := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.used++

	for i := range data {
		data[i] = 0
	}

	return &Block{pool: p, data: data}, nil
}

// restore returns a block's backing array to the free list iff doing so
// would not exceed capacity, otherwise it is dropped (released to the
// GC), matching MemoryPool::restore.
func (p *Pool) restore(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return
	}

	if len(p.free)+p.used <= p.capacity {
		p.free = append(p.free, data)
	}
	p.used--
}

// Destroy marks the pool as gone: blocks already lent out simply release
// their memory to the GC on Release instead of trying to push back onto
// a destroyed free list. Mirrors a MemoryPool whose shared_ptr refcount
// has dropped to zero while MemoryBlocks still hold a weak_ptr to it.
func (p *Pool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroyed = true
	p.free = nil
}

// Block is a borrowed, fixed-size byte buffer. It must be released via
// Release exactly once; Release is idempotent for caller convenience but
// a block used after Release is a programming error (unlike C++, Go has
// no destructor to enforce this automatically).
type Block struct {
	pool     *Pool
	data     []byte
	released bool
}

// Bytes returns the block's backing storage. The slice is only valid
// until Release is called.
func (b *Block) Bytes() []byte {
	return b.data
}

// Release returns the block to its originating pool, or drops it if the
// pool has been destroyed or the cap has since been lowered.
func (b *Block) Release() {
	if b.released {
		return
	}
	b.released = true
	b.pool.restore(b.data)
	b.data = nil
}
