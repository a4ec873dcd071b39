// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package spitransmit drives a SPI-framed LED chain (the APA102/SK9822
// family: a per-LED 1-byte global-brightness header plus BGR, bracketed
// by an all-zero start frame and a half-bit-per-LED end frame), grounded
// on devices/apa102.Dev.raster and conn/spi.Conn.
package spitransmit

import (
	"context"
	"fmt"

	"aurcor.io/x/aurcor/transmit"
)

// Conn is the subset of periph.io/x/periph/conn/spi.Conn this
// transmitter needs: a single full-duplex transfer.
type Conn interface {
	Tx(w, r []byte) error
}

// Dev transmits over a SPI-framed chain.
type Dev struct {
	conn   Conn
	scratch []byte
}

// New wraps conn, already opened at the chain's required clock/mode.
func New(conn Conn) *Dev {
	return &Dev{conn: conn}
}

const (
	headerFrameBytes = 4
	brightnessBase   = 0xE0
	maxBrightness    = 0x1F
)

// Start frames frame.Bytes (RGB triples, already profile-corrected) in
// the SPI global-brightness protocol and transmits it synchronously. The
// wire frame always spans frame.NumPixels (the full chain): when
// frame.Bytes covers fewer LEDs, the unproduced ones are written off
// (zero brightness) at the head or tail per frame.Reverse.
func (d *Dev) Start(ctx context.Context, frame transmit.Frame) error {
	n := frame.NumPixels
	endFrameBytes := (n + 15) / 16 // >= n/2 bits, rounded up to whole bytes
	total := headerFrameBytes + n*4 + endFrameBytes
	if cap(d.scratch) < total {
		d.scratch = make([]byte, total)
	}
	buf := d.scratch[:total]
	for i := range buf[:headerFrameBytes] {
		buf[i] = 0x00
	}
	body := buf[headerFrameBytes : headerFrameBytes+n*4]
	for i := 0; i < n; i++ {
		j := i * 4
		body[j] = brightnessBase
		body[j+1], body[j+2], body[j+3] = 0, 0, 0
	}
	produced := len(frame.Bytes) / 3
	start := 0
	if frame.Reverse {
		start = n - produced
	}
	for i := 0; i < produced; i++ {
		j := (start + i) * 4
		r, g, b := frame.Bytes[i*3], frame.Bytes[i*3+1], frame.Bytes[i*3+2]
		body[j] = brightnessBase | maxBrightness
		body[j+1] = b
		body[j+2] = g
		body[j+3] = r
	}
	end := buf[headerFrameBytes+n*4:]
	for i := range end {
		end[i] = 0xFF
	}
	if err := d.conn.Tx(buf, nil); err != nil {
		return fmt.Errorf("spitransmit: transmit: %w", err)
	}
	return nil
}

func (d *Dev) Finish(ctx context.Context) error { return nil }

func (d *Dev) FinishISR() bool { return true }

func (d *Dev) Close() error { return nil }

var _ transmit.Transmitter = (*Dev)(nil)
