// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package iobuf

import (
	"testing"
	"time"
)

func TestWriteReadRoundTrip(t *testing.T) {
	b := New(8)
	n := b.Write([]byte("hello"), false)
	if n != 5 {
		t.Fatalf("write = %d, want 5", n)
	}
	for _, want := range "hello" {
		if got := b.Read(false); got != int(want) {
			t.Fatalf("read = %d, want %d", got, want)
		}
	}
	if got := b.Read(false); got != -1 {
		t.Fatalf("read on empty = %d, want -1", got)
	}
}

func TestWrapAround(t *testing.T) {
	b := New(4)
	b.Write([]byte{1, 2, 3}, false)
	b.Read(false)
	b.Read(false)
	// write_ wraps around before read_ does. A single call only writes up
	// to the contiguous span before the wrap point, same as the source's
	// write(): the caller must loop to push the remainder.
	rest := []byte{4, 5, 6}
	for len(rest) > 0 {
		n := b.Write(rest, false)
		if n == 0 {
			t.Fatal("write stalled before all data was written")
		}
		rest = rest[n:]
	}
	var got []int
	for i := 0; i < 4; i++ {
		c := b.Read(false)
		if c == -1 {
			break
		}
		got = append(got, c)
	}
	want := []int{3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestStopUnblocksReadersAndWriters(t *testing.T) {
	b := New(2)
	b.Write([]byte{1, 2}, false) // fill it

	readDone := make(chan int, 1)
	writeDone := make(chan int, 1)

	go func() { readDone <- b.Read(false) }() // non-blocking, should just work
	<-readDone

	b.Write([]byte{3}, false) // full again

	go func() { writeDone <- b.Write([]byte{9, 9}, true) }()
	go func() {
		time.Sleep(20 * time.Millisecond)
		b.Stop()
	}()

	select {
	case n := <-writeDone:
		if n != 0 {
			t.Fatalf("write after stop = %d, want 0", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked writer was not woken by Stop")
	}

	if got := b.Read(true); got != -1 {
		t.Fatalf("read after stop = %d, want -1", got)
	}
	if !b.Stopped() {
		t.Fatal("Stopped() = false after Stop()")
	}
}

func TestPeekConsume(t *testing.T) {
	b := New(8)
	b.Write([]byte{1, 2, 3, 4}, false)
	span, ok := b.Peek(false)
	if !ok || len(span) != 4 {
		t.Fatalf("peek = %v, %v", span, ok)
	}
	if span[0] != 1 || span[3] != 4 {
		t.Fatalf("peek contents = %v", span)
	}
	b.Consume(2)
	if b.ReadAvailable() != 2 {
		t.Fatalf("read available = %d, want 2", b.ReadAvailable())
	}
}
