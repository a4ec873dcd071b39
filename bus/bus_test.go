// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bus

import (
	"context"
	"sync"
	"testing"

	"aurcor.io/x/aurcor/aurcorerr"
	"aurcor.io/x/aurcor/transmit/transmittest"
)

// fakeClock is a manually advanced Clock so frame pacing tests never
// depend on real wall-clock timing.
type fakeClock struct {
	mu  sync.Mutex
	now int64
}

func (c *fakeClock) NowUs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) SleepUntilUs(deadlineUs int64) {
	c.mu.Lock()
	if deadlineUs > c.now {
		c.now = deadlineUs
	}
	c.mu.Unlock()
}

func (c *fakeClock) Advance(us int64) {
	c.mu.Lock()
	c.now += us
	c.mu.Unlock()
}

func TestStartTransmissionGoesIdleToTransmitting(t *testing.T) {
	clock := &fakeClock{}
	rec := transmittest.New()
	b := New("strip0", 5, FormatRGB, 50, clock, rec, 4)

	if err := b.StartTransmission(context.Background(), make([]byte, 15), false); err != nil {
		t.Fatal(err)
	}
	if b.State() != Transmitting {
		t.Fatalf("state = %v, want Transmitting", b.State())
	}
	b.Finish()
	if b.State() != Idle {
		t.Fatalf("state after Finish = %v, want Idle", b.State())
	}
	if rec.Count() != 1 {
		t.Fatalf("transmitter saw %d frames, want 1", rec.Count())
	}
}

func TestStartTransmissionForwardsReverseAndChainLength(t *testing.T) {
	clock := &fakeClock{}
	rec := transmittest.New()
	b := New("strip0", 5, FormatRGB, 50, clock, rec, 4)

	if err := b.StartTransmission(context.Background(), make([]byte, 9), true); err != nil {
		t.Fatal(err)
	}
	frame, ok := rec.Last()
	if !ok {
		t.Fatal("expected a frame to reach the transmitter")
	}
	if !frame.Reverse {
		t.Fatal("frame.Reverse = false, want true")
	}
	if frame.NumPixels != 5 {
		t.Fatalf("frame.NumPixels = %d, want 5 (bus length)", frame.NumPixels)
	}
	if frame.ChainBytes != 15 {
		t.Fatalf("frame.ChainBytes = %d, want 15 (bus length * bytes/pixel)", frame.ChainBytes)
	}
}

func TestStartTransmissionAfterStopFails(t *testing.T) {
	clock := &fakeClock{}
	rec := transmittest.New()
	b := New("strip0", 5, FormatRGB, 50, clock, rec, 4)
	b.Stop()

	err := b.StartTransmission(context.Background(), make([]byte, 15), false)
	if err != aurcorerr.ErrStopped {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestStartTransmissionWaitsOutPriorDeadline(t *testing.T) {
	clock := &fakeClock{}
	rec := transmittest.New()
	b := New("strip0", 5, FormatRGB, 50, clock, rec, 4)

	if err := b.StartTransmission(context.Background(), make([]byte, 15), false); err != nil {
		t.Fatal(err)
	}
	// Do not call Finish: the second StartTransmission must block until
	// the clock reaches the first frame's deadline, then proceed.
	firstDeadline := b.deadlineUs

	done := make(chan error, 1)
	go func() { done <- b.StartTransmission(context.Background(), make([]byte, 15), false) }()

	clock.Advance(firstDeadline + TimingDelayUs + 10)

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if rec.Count() != 2 {
		t.Fatalf("transmitter saw %d frames, want 2", rec.Count())
	}
}
