// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package iobuf implements the bounded byte ring buffer from spec.md §4.2,
// grounded directly on original_source/src/io_buffer.cpp: one mutex, two
// condition variables (one per direction), a monotonic stop flag, and
// contiguous-span peek/consume so callers can avoid an extra copy.
package iobuf

import "sync"

// IOBuffer is a fixed-capacity byte ring supporting blocking and
// non-blocking read/write from multiple producers/consumers.
type IOBuffer struct {
	mu       sync.Mutex
	readCV   *sync.Cond
	writeCV  *sync.Cond
	buf      []byte
	readPos  int
	writePos int
	used     int
	stopped  bool
}

// New creates a ring buffer with the given fixed capacity.
func New(capacity int) *IOBuffer {
	b := &IOBuffer{buf: make([]byte, capacity)}
	b.readCV = sync.NewCond(&b.mu)
	b.writeCV = sync.NewCond(&b.mu)
	return b
}

// Cap returns the buffer's fixed capacity.
func (b *IOBuffer) Cap() int {
	return len(b.buf)
}

func (b *IOBuffer) readAvailableLocked() int {
	if len(b.buf)-b.readPos >= b.used {
		return b.used
	}
	return len(b.buf) - b.readPos
}

func (b *IOBuffer) writeAvailableLocked() int {
	if len(b.buf)-b.writePos >= len(b.buf)-b.used {
		return len(b.buf) - b.used
	}
	return len(b.buf) - b.writePos
}

// ReadAvailable returns the number of bytes immediately readable.
func (b *IOBuffer) ReadAvailable() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// WriteAvailable returns the number of bytes immediately writable.
func (b *IOBuffer) WriteAvailable() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf) - b.used
}

// Read pops a single byte. If wait is true and the buffer is empty it
// blocks until data arrives or Stop is called; on stop it returns -1.
// If wait is false and the buffer is empty it returns -1 immediately.
func (b *IOBuffer) Read(wait bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if b.stopped {
			return -1
		}
		if b.readAvailableLocked() > 0 {
			break
		}
		if !wait {
			return -1
		}
		b.readCV.Wait()
		if b.stopped {
			return -1
		}
	}

	c := b.buf[b.readPos]
	b.advanceRead(1)
	b.takeLocked(1)
	return int(c)
}

func (b *IOBuffer) advanceRead(count int) {
	if len(b.buf)-b.readPos > count {
		b.readPos += count
	} else {
		b.readPos = count - (len(b.buf) - b.readPos)
	}
}

func (b *IOBuffer) advanceWrite(count int) {
	if len(b.buf)-b.writePos > count {
		b.writePos += count
	} else {
		b.writePos = count - (len(b.buf) - b.writePos)
	}
}

func (b *IOBuffer) takeLocked(count int) {
	if b.used == len(b.buf) {
		b.writeCV.Broadcast()
	}
	b.used -= count
}

func (b *IOBuffer) giveLocked(count int) {
	if b.used == 0 {
		b.readCV.Broadcast()
	}
	b.used += count
}

// Peek returns a contiguous readable span without consuming it (the
// zero-copy path: callers follow up with Consume). If wait is true and
// the buffer is empty it blocks until data arrives or Stop is called.
// ok is false iff the buffer is stopped and still empty.
func (b *IOBuffer) Peek(wait bool) (span []byte, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		avail := b.readAvailableLocked()
		if avail > 0 {
			return b.buf[b.readPos : b.readPos+avail], true
		}
		if b.stopped {
			return nil, false
		}
		if !wait {
			return nil, false
		}
		b.readCV.Wait()
		if b.stopped && b.readAvailableLocked() == 0 {
			return nil, false
		}
	}
}

// Consume advances the read cursor by count bytes, previously returned
// by Peek.
func (b *IOBuffer) Consume(count int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceRead(count)
	b.takeLocked(count)
}

// WriteByte writes a single byte, dropping it (matching the source's
// single-byte write(int c), which silently discards c == -1) only when
// c is the EOF sentinel -1.
func (b *IOBuffer) WriteByte(c int) {
	if c == -1 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf[b.writePos] = byte(c)
	b.advanceWrite(1)
	b.giveLocked(1)
}

// Write writes up to len(data) bytes, blocking while the buffer is full
// and wait is true. Returns the number of bytes actually written: 0 if
// stopped, or if wait is false and the buffer was full.
func (b *IOBuffer) Write(data []byte, wait bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	var avail int
	for {
		if b.stopped {
			return 0
		}
		avail = b.writeAvailableLocked()
		if avail > 0 {
			break
		}
		if !wait {
			return 0
		}
		b.writeCV.Wait()
		if b.stopped {
			return 0
		}
	}

	if avail > len(data) {
		avail = len(data)
	}

	// writeAvailableLocked never returns more than the contiguous span to
	// the end of the buffer, so this copy never wraps; advanceWrite moves
	// the cursor (and wraps it) for the next call.
	copy(b.buf[b.writePos:b.writePos+avail], data[:avail])
	b.advanceWrite(avail)
	b.giveLocked(avail)
	return avail
}

// Stop sets the terminal flag and wakes every blocked reader/writer.
// Stop is monotonic: once set it cannot be unset.
func (b *IOBuffer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	b.readCV.Broadcast()
	b.writeCV.Broadcast()
}

// Stopped reports whether Stop has been called.
func (b *IOBuffer) Stopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped
}
