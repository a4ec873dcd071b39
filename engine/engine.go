// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package engine owns the process-wide resources spec.md §3's design
// note calls for: the three shared memory pools, the bus registry, and
// the preset registry, plus the script_api.go file that wires the
// pipeline/color/scriptconfig packages into the gopher-lua VM each
// running preset gets. This is the one place that imports bus, preset,
// pipeline, color, and interp together; every other package stays
// leaf-level, matching the teacher's host.go/fs.go role of being the
// one file that wires leaf packages into a running device.
package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"aurcor.io/x/aurcor/bus"
	"aurcor.io/x/aurcor/pool"
	"aurcor.io/x/aurcor/preset"
)

// PoolSizes configures the three process-wide pools' block size and
// capacity, per spec.md §3 ("script heap", "work stack", "LED output
// buffer").
type PoolSizes struct {
	HeapBlockSize      int
	HeapCapacity       int
	WorkStackBlockSize int
	WorkStackCapacity  int
	LEDBufferBlockSize int
	LEDBufferCapacity  int
}

// Engine is the running device: a set of buses, the presets bound to
// them, and the pools every preset's interpreter task borrows from.
type Engine struct {
	Pools preset.Pools
	Clock bus.Clock

	mu      sync.RWMutex
	buses   map[string]*bus.Bus
	presets map[string]*preset.Preset
}

// New constructs an Engine with freshly sized pools.
func New(sizes PoolSizes, clock bus.Clock) *Engine {
	return &Engine{
		Clock: clock,
		Pools: preset.Pools{
			Heap:      pool.New(sizes.HeapBlockSize, sizes.HeapCapacity),
			WorkStack: pool.New(sizes.WorkStackBlockSize, sizes.WorkStackCapacity),
			LEDBuffer: pool.New(sizes.LEDBufferBlockSize, sizes.LEDBufferCapacity),
		},
		buses:   make(map[string]*bus.Bus),
		presets: make(map[string]*preset.Preset),
	}
}

// AddBus registers b under its own name.
func (e *Engine) AddBus(b *bus.Bus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buses[b.Name] = b
}

// Bus looks up a registered bus by name.
func (e *Engine) Bus(name string) (*bus.Bus, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.buses[name]
	return b, ok
}

// Buses returns every registered bus, for a scheduler loop to poll.
func (e *Engine) Buses() []*bus.Bus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*bus.Bus, 0, len(e.buses))
	for _, b := range e.buses {
		out = append(out, b)
	}
	return out
}

// NewPreset constructs a preset bound to bus busName and this engine's
// pools/binder/clock, and registers it under name.
func (e *Engine) NewPreset(name, busName string, source preset.ScriptSource) (*preset.Preset, error) {
	b, ok := e.Bus(busName)
	if !ok {
		return nil, busNotFound(busName)
	}
	p := preset.New(name, b, e.Pools, source, e.bindFactory, e.Clock)
	e.mu.Lock()
	e.presets[name] = p
	e.mu.Unlock()
	return p, nil
}

// Preset looks up a registered preset by name.
func (e *Engine) Preset(name string) (*preset.Preset, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.presets[name]
	return p, ok
}

// Presets returns every registered preset, for a scheduler loop to poll.
func (e *Engine) Presets() []*preset.Preset {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*preset.Preset, 0, len(e.presets))
	for _, p := range e.presets {
		out = append(out, p)
	}
	return out
}

// RunLoops calls Loop once on every registered preset, concurrently,
// and waits for every preset's scheduler step to finish before
// returning. The caller (the cmd/aurcord scheduler) drives this on a
// ticker, matching the firmware's single scheduler task walking every
// bus in spec.md §4.9 — concurrently here because Loop only manages
// task lifecycle (it never blocks on the script itself, which runs on
// its own goroutine once started), so one preset stuck allocating a
// pool block should never delay another preset's tick.
func (e *Engine) RunLoops() {
	g, _ := errgroup.WithContext(context.Background())
	for _, p := range e.Presets() {
		p := p
		g.Go(func() error {
			p.Loop()
			return nil
		})
	}
	_ = g.Wait()
}

type busNotFound string

func (b busNotFound) Error() string { return "engine: bus " + string(b) + " not registered" }
