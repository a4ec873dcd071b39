// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package nrz bit-bangs a WS281x-family NRZ frame over a SPI MOSI line
// at 4x oversample, grounded on the byte-expansion shape of
// experimental/devices/nrzled's raster/nrzMSB4 (that exact table wasn't
// among the retrieved files, so the expansion is rebuilt here from the
// documented bit-timing technique: each data bit becomes a 4-bit SPI
// symbol, "1" -> 1110, "0" -> 1000, two input bits packed per output
// byte).
package nrz

import (
	"context"
	"fmt"

	"aurcor.io/x/aurcor/transmit"
)

const (
	bitsPerSymbol  = 4
	symbolOne      = 0b1110
	symbolZero     = 0b1000
	bytesPerSrcByte = 4 // 8 bits * 4-bit symbols / 8 bits-per-output-byte
)

// byteTable[b] is the 4-byte NRZ expansion of source byte b, MSB-first.
var byteTable [256][bytesPerSrcByte]byte

func init() {
	for b := 0; b < 256; b++ {
		var bits uint32
		for i := 0; i < 8; i++ {
			bit := (b >> uint(7-i)) & 1
			sym := uint32(symbolZero)
			if bit == 1 {
				sym = symbolOne
			}
			bits = (bits << bitsPerSymbol) | sym
		}
		byteTable[b] = [bytesPerSrcByte]byte{
			byte(bits >> 24), byte(bits >> 16), byte(bits >> 8), byte(bits),
		}
	}
}

// Bus is the subset of a SPI-like port this transmitter drives: a
// single blocking write of a prepared byte stream, and a close.
type Bus interface {
	Tx(w []byte) error
	Close() error
}

// Dev bit-bangs rendered RGB frames as an NRZ byte stream.
type Dev struct {
	bus    Bus
	encode []byte // scratch buffer, reused across frames
}

// New wraps bus. The SPI clock must already be configured by the caller
// to the protocol's bit rate (4 SPI bits per data bit).
func New(bus Bus) *Dev {
	return &Dev{bus: bus}
}

// Start expands frame.Bytes (raw RGB-ordered pixel bytes, already
// profile-corrected, encoded in the order given) into its NRZ
// representation and writes it out. The wire frame always spans
// frame.ChainBytes (the full chain): when frame.Bytes covers fewer
// LEDs, the rest of the chain is encoded as all-zero (off) bytes at the
// head or tail per frame.Reverse. Start is synchronous: this
// transmitter has no queue depth beyond the OS write, so Finish/FinishISR
// always report complete.
func (d *Dev) Start(ctx context.Context, frame transmit.Frame) error {
	needed := frame.ChainBytes * bytesPerSrcByte
	if cap(d.encode) < needed {
		d.encode = make([]byte, needed)
	}
	d.encode = d.encode[:needed]
	for i := 0; i < frame.ChainBytes; i++ {
		copy(d.encode[i*bytesPerSrcByte:], byteTable[0][:])
	}
	start := 0
	if frame.Reverse {
		start = frame.ChainBytes - len(frame.Bytes)
	}
	for i, b := range frame.Bytes {
		copy(d.encode[(start+i)*bytesPerSrcByte:], byteTable[b][:])
	}
	if err := d.bus.Tx(d.encode); err != nil {
		return fmt.Errorf("nrz: transmit: %w", err)
	}
	return nil
}

func (d *Dev) Finish(ctx context.Context) error { return nil }

func (d *Dev) FinishISR() bool { return true }

func (d *Dev) Close() error { return d.bus.Close() }

var _ transmit.Transmitter = (*Dev)(nil)
