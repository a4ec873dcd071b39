// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bus implements LEDBus from spec.md §3/§4.5: per-chain state,
// the start_transmission/finish pacing protocol, and the UDP ingress
// queue. The platform HAL (timers, task yields) is an external
// collaborator per spec.md's Non-goals, so time is injected via a Clock
// so tests never depend on a wall clock; grounded on the
// start/finish-callback shape of devices/apa102.Dev and
// conn/spi.Conn.Tx's synchronous-transfer contract.
package bus

import (
	"context"
	"sync"
	"time"

	"aurcor.io/x/aurcor/aurcorerr"
	"aurcor.io/x/aurcor/bus/udpqueue"
	"aurcor.io/x/aurcor/color"
	"aurcor.io/x/aurcor/transmit"
)

const (
	MinLEDs = 1
	MaxLEDs = 1500

	// TimingDelayUs is how far ahead of a computed deadline the caller
	// switches from coarse sleeping to a tight busy-wait, to absorb
	// OS-scheduler jitter right at the frame boundary.
	TimingDelayUs = 200

	// FIFOMaxUs bounds the "transfer is still draining the hardware
	// FIFO" portion of a deadline estimate for very long chains.
	FIFOMaxUs = 5000

	// PerByteUs is the nominal wire time budget per output byte, used
	// only to estimate the busy-wait deadline, not the real bit clock.
	PerByteUs = 2
)

// Format names a wire byte order / channel count, keyed by the
// human-readable names accepted in the bus config file (spec.md §6).
type Format int

const (
	FormatRGB Format = iota
	FormatGRB
	FormatRGBW
)

var formatNames = map[Format]string{
	FormatRGB:  "rgb",
	FormatGRB:  "grb",
	FormatRGBW: "rgbw",
}

func (f Format) String() string { return formatNames[f] }

// BytesPerPixel reports the wire byte count of one pixel in this format.
func (f Format) BytesPerPixel() int {
	if f == FormatRGBW {
		return 4
	}
	return 3
}

// State is the bus's tri-state lifecycle from spec.md §3.
type State int

const (
	Idle State = iota
	Transmitting
	Stopped
)

// Clock supplies monotonic microseconds, injected so tests never race a
// wall clock; the HAL-backed default lives in the engine package.
type Clock interface {
	NowUs() int64
	SleepUntilUs(deadlineUs int64)
}

// Bus is one electrically independent LED chain.
type Bus struct {
	Name              string
	Length            int
	Format            Format
	ResetTimeUs       int64
	ReverseDefault    bool
	DefaultPresetName string
	DefaultFPS        int
	UDPPort           int

	Profile *color.Profile
	UDP     *udpqueue.Queue

	clock       Clock
	transmitter transmit.Transmitter

	mu         sync.Mutex
	state      State
	deadlineUs int64
}

// New constructs a bus from length and udpQueueSize as given: it does
// not clamp length into [MinLEDs,MaxLEDs] or check the UDP queue size,
// so callers pass values that are already in range.
func New(name string, length int, format Format, resetTimeUs int64, clock Clock, xmit transmit.Transmitter, udpQueueSize int) *Bus {
	return &Bus{
		Name:        name,
		Length:      length,
		Format:      format,
		ResetTimeUs: resetTimeUs,
		Profile:     color.NewProfile(),
		UDP:         udpqueue.New(udpQueueSize),
		clock:       clock,
		transmitter: xmit,
	}
}

// State reports the bus's current lifecycle state.
func (b *Bus) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// StartTransmission implements spec.md §4.5 start_transmission: the
// caller is paced to at least ResetTimeUs since the prior frame. If the
// bus is already Transmitting, the call blocks (coarse sleep, then a
// tight busy-wait of the final TimingDelayUs) until the previous frame's
// deadline, exactly as a script's back-to-back output_* calls are
// expected to pace themselves. reverse is the preset's reverse_order
// setting: when frameBytes is shorter than the chain, it tells the
// transmitter to place the produced bytes at the chain's tail (blanking
// the head) instead of the head (blanking the tail).
func (b *Bus) StartTransmission(ctx context.Context, frameBytes []byte, reverse bool) error {
	b.mu.Lock()
	for b.state == Transmitting && b.clock.NowUs() < b.deadlineUs {
		deadline := b.deadlineUs
		b.mu.Unlock()
		b.clock.SleepUntilUs(deadline - TimingDelayUs)
		b.busyWaitUntil(deadline)
		b.mu.Lock()
	}
	if b.state == Stopped {
		b.mu.Unlock()
		return aurcorerr.ErrStopped
	}

	waitUs := int64(PerByteUs) * int64(len(frameBytes))
	if waitUs > FIFOMaxUs {
		waitUs = FIFOMaxUs
	}
	b.deadlineUs = b.clock.NowUs() + b.ResetTimeUs + waitUs + 1
	b.state = Transmitting
	b.mu.Unlock()

	err := b.transmitter.Start(ctx, transmit.Frame{
		Bytes:       frameBytes,
		ChainBytes:  b.Length * b.Format.BytesPerPixel(),
		Reverse:     reverse,
		ResetTimeUs: int(b.ResetTimeUs),
		NumPixels:   b.Length,
	})
	if err != nil {
		b.mu.Lock()
		b.state = Idle
		b.mu.Unlock()
		return err
	}
	return nil
}

func (b *Bus) busyWaitUntil(deadlineUs int64) {
	for b.clock.NowUs() < deadlineUs {
		// Tight spin: the final sliver of the reset window is too short
		// to trust an OS sleep to wake up on time.
	}
}

// Finish is the transmitter's normal-context completion callback: it
// returns the bus to Idle.
func (b *Bus) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Transmitting {
		b.state = Idle
	}
}

// FinishISR is the interrupt-context completion callback: it must never
// block on contended state, so it only ever attempts the lock and, since
// Finish's critical section is a single field write, is safe to call
// from a context that cannot tolerate a real OS wait. If the lock is
// held elsewhere it returns without changing the state; a waiting
// StartTransmission still proceeds once the frame's deadline passes.
func (b *Bus) FinishISR() {
	if !b.mu.TryLock() {
		return
	}
	defer b.mu.Unlock()
	if b.state == Transmitting {
		b.state = Idle
	}
}

// Stop moves the bus to its terminal state and wakes the UDP queue's
// waiters.
func (b *Bus) Stop() {
	b.mu.Lock()
	b.state = Stopped
	b.mu.Unlock()
	b.UDP.Stop()
}

// RealClock is the production Clock, backed by the standard library.
type RealClock struct{}

func (RealClock) NowUs() int64 { return time.Now().UnixMicro() }

func (RealClock) SleepUntilUs(deadlineUs int64) {
	d := time.Duration(deadlineUs-time.Now().UnixMicro()) * time.Microsecond
	if d > 0 {
		time.Sleep(d)
	}
}

var _ Clock = RealClock{}
