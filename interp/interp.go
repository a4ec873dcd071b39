// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package interp implements the isolated per-bus scripting runtime from
// spec.md §4.7: a task that owns borrowed pool blocks, runs a sandboxed
// script on its own goroutine, and can be force-stopped at a checkpoint.
//
// The embedded runtime is github.com/yuin/gopher-lua, standing in for
// the original firmware's MicroPython: both are small, embeddable,
// GC'd, single-threaded-cooperative VMs, and gopher-lua's
// LState.SetContext hook is the direct structural analogue of the
// source's setjmp/longjmp "force_exit" checkpoint (spec.md §9's
// exception-control-flow note) — cancelling the context raises an
// interrupt the VM observes at its next instruction boundary, which
// this package catches and turns into the task's own terminal state
// instead of letting it escape as a Go panic.
package interp

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"aurcor.io/x/aurcor/aurcorerr"
	"aurcor.io/x/aurcor/aurcorlog"
	"aurcor.io/x/aurcor/pool"
)

var log = aurcorlog.New("interp", nil)

// State is the task lifecycle from spec.md §4.7.
type State int

const (
	Unstarted State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return "invalid"
}

// Binder installs the script-facing API (output_*, register_config,
// ulogging, etc.) into a fresh *lua.LState. It is built by the engine
// package's preset.BindFactory, which knows the bus/config/profile this
// run is bound to; interp itself only owns the task's lifecycle and
// pool blocks.
type Binder func(L *lua.LState) error

// Task is one running (or finished) script instance.
type Task struct {
	name   string
	source string
	bind   Binder

	heap      *pool.Block
	workStack *pool.Block
	ledBuffer *pool.Block

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// New constructs a detached task. Start must be called to actually run
// it; the three blocks are borrowed from the engine's process-wide
// pools by the caller and handed in already allocated, matching
// spec.md §3's "script heap / work-stack / LED output buffer" pools.
func New(name, source string, bind Binder, heap, workStack, ledBuffer *pool.Block) *Task {
	return &Task{
		name:      name,
		source:    source,
		bind:      bind,
		heap:      heap,
		workStack: workStack,
		ledBuffer: ledBuffer,
		state:     Unstarted,
	}
}

func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the terminal error, if the script aborted or failed to
// start; nil if it is still running or exited cleanly.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Start spawns the task's goroutine. It requires the task to still be
// Unstarted and to hold its pool blocks.
func (t *Task) Start() error {
	t.mu.Lock()
	if t.state != Unstarted {
		t.mu.Unlock()
		return aurcorerr.ErrBusy
	}
	if t.heap == nil || t.workStack == nil || t.ledBuffer == nil {
		t.mu.Unlock()
		return aurcorerr.ErrAllocFailed
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	t.state = Running
	t.mu.Unlock()

	go t.run(ctx)
	return nil
}

func (t *Task) run(ctx context.Context) {
	defer close(t.done)
	defer t.releaseBlocks()

	runErr := t.runScript(ctx)

	t.mu.Lock()
	t.err = runErr
	t.state = Stopped
	t.mu.Unlock()

	if runErr != nil {
		log.Exception(fmt.Sprintf("preset %q", t.name), runErr)
	}
}

// runScript contains the actual VM lifetime; it is isolated in its own
// function (rather than inlined into run) so a recovered VM panic —
// gopher-lua's closest analogue to the source's fatal NLR abort — maps
// to a single, well-known re-entry boundary, per spec.md §4.7.
func (t *Task) runScript(ctx context.Context) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("%w: %v", aurcorerr.ErrScriptFault, r)
		}
	}()

	L := lua.NewState(lua.Options{
		CallStackSize:       256,
		RegistrySize:        1024,
		SkipOpenLibs:        false,
		IncludeGoStackTrace: false,
	})
	defer L.Close()
	L.SetContext(ctx)

	if err := t.bind(L); err != nil {
		return fmt.Errorf("%w: binding script environment: %v", aurcorerr.ErrScriptFault, err)
	}

	if err := L.DoString(t.source); err != nil {
		if ctx.Err() != nil {
			return aurcorerr.ErrStopped
		}
		return fmt.Errorf("%w: %v", aurcorerr.ErrScriptFault, err)
	}
	return nil
}

func (t *Task) releaseBlocks() {
	if t.heap != nil {
		t.heap.Release()
	}
	if t.workStack != nil {
		t.workStack.Release()
	}
	if t.ledBuffer != nil {
		t.ledBuffer.Release()
	}
}

// Stop signals force-exit and waits for the goroutine to join. It is
// idempotent: calling it on an already-Stopped task is a no-op that
// reports joined=true. On an Unstarted task it releases the task's pool
// blocks, marks it Stopped and reports joined=true.
func (t *Task) Stop() (joined bool) {
	t.mu.Lock()
	switch t.state {
	case Unstarted:
		t.state = Stopped
		t.mu.Unlock()
		t.releaseBlocks()
		return true
	case Stopped:
		t.mu.Unlock()
		return true
	case Running:
		t.state = Stopping
	}
	cancel := t.cancel
	done := t.done
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return true
}
