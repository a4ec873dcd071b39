// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package transmittest is a fake transmit.Transmitter for bus/preset/
// pipeline tests, grounded on conn/spi/spitest.Record's record-and-
// replay shape.
package transmittest

import (
	"context"
	"sync"

	"aurcor.io/x/aurcor/transmit"
)

// Record is a transmit.Transmitter that captures every frame it is
// asked to send, instead of writing to real hardware.
type Record struct {
	mu      sync.Mutex
	Frames  []transmit.Frame
	started int
	closed  bool

	// StartErr, when set, is returned by the next call to Start.
	StartErr error
}

func New() *Record { return &Record{} }

func (r *Record) Start(ctx context.Context, frame transmit.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.StartErr != nil {
		err := r.StartErr
		r.StartErr = nil
		return err
	}
	cp := make([]byte, len(frame.Bytes))
	copy(cp, frame.Bytes)
	frame.Bytes = cp
	r.Frames = append(r.Frames, frame)
	r.started++
	return nil
}

func (r *Record) Finish(ctx context.Context) error { return nil }

func (r *Record) FinishISR() bool { return true }

func (r *Record) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Last returns the most recently started frame, or ok=false if none.
func (r *Record) Last() (transmit.Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Frames) == 0 {
		return transmit.Frame{}, false
	}
	return r.Frames[len(r.Frames)-1], true
}

// Count reports how many frames Start has accepted.
func (r *Record) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Closed reports whether Close has been called.
func (r *Record) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

var _ transmit.Transmitter = (*Record)(nil)
