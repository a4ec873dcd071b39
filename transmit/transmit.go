// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package transmit defines the Transmitter contract from spec.md §4.6:
// the hardware-facing collaborator that a bus hands a rendered frame to.
// The physical peripheral backend itself is out of scope (it is an
// external collaborator per spec.md's Non-goals); this package only
// carries the contract and its frame-pacing/reset-time invariants,
// grounded on periph.io/x/periph/conn/spi.Conn and
// devices/apa102.Dev's Write/Halt shape.
package transmit

import "context"

// Frame is a single rendered buffer of RGB-ordered LED bytes, as the
// pipeline produced them, ready for Start; no reordering for the bus's
// Format is applied before Start. Bytes may be
// shorter than the chain (when the script produced fewer LEDs than the
// bus is long, or the pool's LED buffer block is smaller than the
// chain); NumPixels/ChainBytes describe the full physical chain so a
// transmitter can place the produced bytes within it and blank the
// remainder, per spec.md §4.6's reverse_order contract.
type Frame struct {
	Bytes []byte

	// ChainBytes is the full chain's byte length in the bus's source
	// pixel format (the same units as Bytes), always >= len(Bytes).
	ChainBytes int

	// Reverse selects where a short Bytes lands within ChainBytes: false
	// places it at the head and blanks the tail; true places it at the
	// tail and blanks the head, matching spi_led_bus's write(buffer,
	// out_bytes, reverse) placement.
	Reverse bool

	ResetTimeUs int
	// NumPixels is the full chain's LED count, for transmitters (like
	// spitransmit) whose wire framing is pixel-counted rather than
	// byte-counted.
	NumPixels int
}

// Transmitter is implemented by whatever actually pushes bytes onto the
// wire (an NRZ bit-banger, a SPI-backed encoder, or — in tests — a fake
// that records frames). Start must not block past returning once the
// transfer is merely queued; completion is reported by Finish/FinishISR
// so a bus can pipeline the next frame's preparation while the current
// one is still on the wire, matching the start_transmission/finish
// protocol in spec.md §4.6.
type Transmitter interface {
	// Start begins transmitting frame and returns immediately once the
	// transfer has been queued to the underlying peripheral.
	Start(ctx context.Context, frame Frame) error

	// Finish blocks until the in-flight transfer (plus its mandatory
	// reset-time gap) has completed.
	Finish(ctx context.Context) error

	// FinishISR is the non-blocking poll variant used from a context
	// that must never block (e.g. a hardware completion callback): it
	// reports whether the transfer has completed without waiting.
	FinishISR() bool

	// Close releases any underlying peripheral handle.
	Close() error
}
