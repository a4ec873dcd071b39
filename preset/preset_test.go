// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package preset

import (
	"sync"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"

	"aurcor.io/x/aurcor/bus"
	"aurcor.io/x/aurcor/interp"
	"aurcor.io/x/aurcor/pool"
	"aurcor.io/x/aurcor/transmit/transmittest"
)

type fakeClock struct {
	mu  sync.Mutex
	now int64
}

func (c *fakeClock) NowUs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
func (c *fakeClock) SleepUntilUs(d int64) {
	c.mu.Lock()
	if d > c.now {
		c.now = d
	}
	c.mu.Unlock()
}
func (c *fakeClock) Advance(us int64) {
	c.mu.Lock()
	c.now += us
	c.mu.Unlock()
}

func testPools() Pools {
	return Pools{
		Heap:      pool.New(1024, 4),
		WorkStack: pool.New(256, 4),
		LEDBuffer: pool.New(64, 4),
	}
}

func noopBind(p *Preset, heap, workStack, ledBuffer *pool.Block) interp.Binder {
	return func(L *lua.LState) error { return nil }
}

func TestLoopStartsInterpreterOnFirstCall(t *testing.T) {
	clock := &fakeClock{}
	b := bus.New("strip0", 5, bus.FormatRGB, 50, clock, transmittest.New(), 4)
	source := func(name string) (string, error) { return "x = 1", nil }
	p := New("main", b, testPools(), source, noopBind, clock)
	p.SetScript("hello")

	p.Loop()
	time.Sleep(10 * time.Millisecond) // let the goroutine finish a trivial script

	if p.task == nil {
		t.Fatal("expected a task to be attached after Loop")
	}
}

func TestLoopRetriesAfterFailedLoad(t *testing.T) {
	clock := &fakeClock{}
	b := bus.New("strip0", 5, bus.FormatRGB, 50, clock, transmittest.New(), 4)
	calls := 0
	source := func(name string) (string, error) {
		calls++
		return "", errNotFound{}
	}
	p := New("main", b, testPools(), source, noopBind, clock)
	p.SetScript("missing")

	p.Loop()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	p.mu.Lock()
	set := p.stopTimeSet
	p.mu.Unlock()
	if !set {
		t.Fatal("expected stopTimeSet after a failed load")
	}

	// Immediately looping again should not retry yet (cooldown active).
	p.Loop()
	if calls != 1 {
		t.Fatalf("calls after immediate re-loop = %d, want still 1", calls)
	}

	clock.Advance((RestartTimeMs + 1) * 1000) // clock is in microseconds; stopTimeMs compares milliseconds
	p.Loop()
	if calls != 2 {
		t.Fatalf("calls after cooldown elapsed = %d, want 2", calls)
	}
}

type errNotFound struct{}

func (errNotFound) Error() string { return "script not found" }
