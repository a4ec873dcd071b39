// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pool

import (
	"errors"
	"testing"

	"aurcor.io/x/aurcor/aurcorerr"
)

func TestAllocateRelease(t *testing.T) {
	p := New(16, 2)
	if p.Free() != 2 || p.InUse() != 0 {
		t.Fatalf("free=%d used=%d, want 2/0", p.Free(), p.InUse())
	}

	b1, err := p.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	if len(b1.Bytes()) != 16 {
		t.Fatalf("block size = %d, want 16", len(b1.Bytes()))
	}
	if p.Free() != 1 || p.InUse() != 1 {
		t.Fatalf("free=%d used=%d, want 1/1", p.Free(), p.InUse())
	}

	b1.Bytes()[0] = 0xFF
	b1.Release()
	if p.Free() != 2 || p.InUse() != 0 {
		t.Fatalf("after release free=%d used=%d, want 2/0", p.Free(), p.InUse())
	}

	// Released blocks must come back zeroed on the next allocate.
	b2, err := p.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	if b2.Bytes()[0] != 0 {
		t.Fatalf("reallocated block not zeroed: %v", b2.Bytes()[0])
	}
}

func TestAllocateExhausted(t *testing.T) {
	p := New(4, 1)
	b, err := p.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Allocate(); !errors.Is(err, aurcorerr.ErrAllocFailed) {
		t.Fatalf("err = %v, want ErrAllocFailed", err)
	}
	b.Release()
	if _, err := p.Allocate(); err != nil {
		t.Fatalf("allocate after release: %v", err)
	}
}

func TestResizeShrinkDropsAboveCapacity(t *testing.T) {
	p := New(4, 4)
	blocks := make([]*Block, 4)
	for i := range blocks {
		b, err := p.Allocate()
		if err != nil {
			t.Fatal(err)
		}
		blocks[i] = b
	}
	if p.InUse() != 4 {
		t.Fatalf("used = %d, want 4", p.InUse())
	}

	// Lower the cap below the number of blocks currently lent out.
	if err := p.Resize(2); err != nil {
		t.Fatal(err)
	}

	// Returning blocks above the new cap must drop them, not reinsert.
	for _, b := range blocks {
		b.Release()
	}
	if p.Free() != 2 {
		t.Fatalf("free = %d, want 2 (excess blocks should be dropped)", p.Free())
	}
}

func TestReleaseAfterDestroyDoesNotPanic(t *testing.T) {
	p := New(8, 1)
	b, err := p.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	p.Destroy()
	b.Release() // must not panic: the pool's weak back-reference is gone.
}

func TestReleaseIdempotent(t *testing.T) {
	p := New(8, 1)
	b, err := p.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	b.Release()
	b.Release()
	if p.Free() != 1 {
		t.Fatalf("free = %d, want 1 (double release must not double-count)", p.Free())
	}
}
