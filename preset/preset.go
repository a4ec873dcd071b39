// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package preset implements Preset from spec.md §3/§4.9/§6: a named
// (script, description, reverse flag, ScriptConfig) bundle bound to one
// bus, its CBOR load/save, and the bus scheduler loop that starts,
// restarts, and retries the bound interpreter task.
package preset

import (
	"fmt"
	"sync"

	"aurcor.io/x/aurcor/aurcorlog"
	"aurcor.io/x/aurcor/bus"
	"aurcor.io/x/aurcor/interp"
	"aurcor.io/x/aurcor/pool"
	"aurcor.io/x/aurcor/scriptconfig"
)

var log = aurcorlog.New("preset", nil)

// RestartTimeMs is the cooldown between a preset's interpreter exiting
// (or failing to start) and the scheduler trying again, pinned directly
// from original_source/src/aurcor/preset.h's RESTART_TIME_MS.
const RestartTimeMs = 10000

// ScriptSource loads a script's text by name; the filesystem behind it
// is an external collaborator per spec.md's Non-goals.
type ScriptSource func(name string) (string, error)

// Pools is the subset of the engine's process-wide pools a preset needs
// to hand a fresh interpreter task its three borrowed blocks.
type Pools struct {
	Heap      *pool.Pool
	WorkStack *pool.Pool
	LEDBuffer *pool.Pool
}

// BindFactory builds the Binder for one run of a script, given the
// preset, its bus, and the three pool blocks this run borrowed — it is
// supplied by the engine package, which owns wiring the pipeline/
// output_* surface (and the LED buffer block backing it) into the VM.
type BindFactory func(p *Preset, heap, workStack, ledBuffer *pool.Block) interp.Binder

// DescriptionCache memoizes a script's one-line description without
// rerunning it, keyed by script name only, supplementing
// the distilled spec from the firmware's preset_description_cache.
type DescriptionCache struct {
	mu      sync.Mutex
	entries map[string]string // scriptName -> description
}

func NewDescriptionCache() *DescriptionCache {
	return &DescriptionCache{entries: make(map[string]string)}
}

func (c *DescriptionCache) Get(script string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.entries[script]
	return d, ok
}

func (c *DescriptionCache) Set(script, description string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[script] = description
}

func (c *DescriptionCache) Invalidate(script string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, script)
}

// Preset binds a script plus its configuration to one bus.
type Preset struct {
	Name        string
	Bus         *bus.Bus
	ScriptName  string
	Description string
	Reverse     bool
	Config      *scriptconfig.Config

	mu              sync.Mutex
	task            *interp.Task
	scriptChanged   bool
	stopTimeSet     bool
	stopTimeMs      int64
	modified        bool
	scriptsImported map[string]bool

	pools   Pools
	source  ScriptSource
	bindFor BindFactory
	clock   bus.Clock
}

// New constructs a preset bound to b, with no interpreter running yet.
func New(name string, b *bus.Bus, pools Pools, source ScriptSource, bindFor BindFactory, clock bus.Clock) *Preset {
	return &Preset{
		Name:            name,
		Bus:             b,
		Config:          scriptconfig.New(),
		scriptsImported: make(map[string]bool),
		pools:           pools,
		source:          source,
		bindFor:         bindFor,
		clock:           clock,
	}
}

// SetScript changes the bound script and marks a restart as due.
func (p *Preset) SetScript(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ScriptName = name
	p.scriptChanged = true
	p.modified = true
}

// Modified reports whether the preset has unsaved changes.
func (p *Preset) Modified() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.modified
}

func (p *Preset) markSaved() {
	p.mu.Lock()
	p.modified = false
	p.mu.Unlock()
}

// running reports whether the currently attached task is still alive.
func (p *Preset) running() bool {
	return p.task != nil && p.task.State() != interp.Stopped
}

// Loop implements spec.md §4.9's scheduler step, to be called
// periodically (by the engine's bus scheduler) for every preset.
func (p *Preset) Loop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.task != nil && p.task.State() == interp.Stopped && !p.stopTimeSet {
		p.markStoppedLocked()
	}

	restartDue := p.scriptChanged ||
		(!p.running() && (!p.stopTimeSet || p.clock.NowUs()/1000-p.stopTimeMs >= RestartTimeMs))
	if !restartDue {
		return
	}

	p.detachLocked()
	p.scriptChanged = false

	source, err := p.source(p.ScriptName)
	if err != nil {
		log.Exception(fmt.Sprintf("preset %q: loading script %q", p.Name, p.ScriptName), err)
		p.markStoppedLocked()
		return
	}

	heap, err := p.pools.Heap.Allocate()
	if err != nil {
		p.markStoppedLocked()
		return
	}
	workStack, err := p.pools.WorkStack.Allocate()
	if err != nil {
		heap.Release()
		p.markStoppedLocked()
		return
	}
	ledBuffer, err := p.pools.LEDBuffer.Allocate()
	if err != nil {
		heap.Release()
		workStack.Release()
		p.markStoppedLocked()
		return
	}

	bind := p.bindFor(p, heap, workStack, ledBuffer)
	task := interp.New(p.Name, source, bind, heap, workStack, ledBuffer)
	if err := task.Start(); err != nil {
		log.Exception(fmt.Sprintf("preset %q: starting interpreter", p.Name), err)
		p.markStoppedLocked()
		return
	}

	p.task = task
	p.stopTimeSet = false
	p.stopTimeMs = 0
}

// markStoppedLocked records "the bus became idle/retry-eligible at
// now"; caller must hold p.mu.
func (p *Preset) markStoppedLocked() {
	p.stopTimeMs = p.clock.NowUs() / 1000
	p.stopTimeSet = true
}

// detachLocked force-stops any running task and clears the import
// cache, the two side effects spec.md §4.9 bundles into "detach the
// bus" before constructing a replacement task. Caller must hold p.mu.
func (p *Preset) detachLocked() {
	if p.task != nil {
		p.task.Stop()
		p.task = nil
	}
	p.scriptsImported = make(map[string]bool)
}

// Stop force-stops the bound interpreter, if any.
func (p *Preset) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detachLocked()
}
