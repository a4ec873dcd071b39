// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package spitransmit

import (
	"context"
	"testing"

	"aurcor.io/x/aurcor/transmit"
)

type fakeConn struct {
	written []byte
}

func (f *fakeConn) Tx(w, r []byte) error {
	f.written = append([]byte(nil), w...)
	return nil
}

func TestStartFramesSingleLED(t *testing.T) {
	conn := &fakeConn{}
	d := New(conn)
	if err := d.Start(context.Background(), transmit.Frame{Bytes: []byte{0x10, 0x20, 0x30}, NumPixels: 1}); err != nil {
		t.Fatal(err)
	}
	// 4 header zero bytes + 4 LED bytes + >=1 end-frame byte.
	if len(conn.written) < 9 {
		t.Fatalf("written len = %d, too short", len(conn.written))
	}
	for i := 0; i < headerFrameBytes; i++ {
		if conn.written[i] != 0x00 {
			t.Fatalf("start frame byte %d = %#x, want 0x00", i, conn.written[i])
		}
	}
	led := conn.written[headerFrameBytes : headerFrameBytes+4]
	if led[0] != brightnessBase|maxBrightness {
		t.Fatalf("brightness header = %#x", led[0])
	}
	if led[1] != 0x30 || led[2] != 0x20 || led[3] != 0x10 {
		t.Fatalf("led bytes = %v, want BGR order [0x30 0x20 0x10]", led)
	}
}

// TestStartPlacesShortFrameAtHeadByDefault covers spec.md §4.6's
// reverse_order contract: a frame shorter than the chain lands at the
// head, blanking the tail, unless Reverse is set.
func TestStartPlacesShortFrameAtHeadByDefault(t *testing.T) {
	conn := &fakeConn{}
	d := New(conn)
	if err := d.Start(context.Background(), transmit.Frame{
		Bytes: []byte{0x10, 0x20, 0x30}, NumPixels: 3,
	}); err != nil {
		t.Fatal(err)
	}
	led0 := conn.written[headerFrameBytes : headerFrameBytes+4]
	if led0[0] != brightnessBase|maxBrightness {
		t.Fatalf("led0 brightness = %#x, want lit", led0[0])
	}
	for i := 1; i < 3; i++ {
		ledN := conn.written[headerFrameBytes+i*4 : headerFrameBytes+i*4+4]
		if ledN[0] != brightnessBase {
			t.Fatalf("led%d brightness = %#x, want blank", i, ledN[0])
		}
	}
}

// TestStartPlacesShortFrameAtTailWhenReverse covers the other half of the
// same contract: Reverse moves the short frame to the tail and blanks
// the head instead.
func TestStartPlacesShortFrameAtTailWhenReverse(t *testing.T) {
	conn := &fakeConn{}
	d := New(conn)
	if err := d.Start(context.Background(), transmit.Frame{
		Bytes: []byte{0x10, 0x20, 0x30}, NumPixels: 3, Reverse: true,
	}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		ledN := conn.written[headerFrameBytes+i*4 : headerFrameBytes+i*4+4]
		if ledN[0] != brightnessBase {
			t.Fatalf("led%d brightness = %#x, want blank", i, ledN[0])
		}
	}
	led2 := conn.written[headerFrameBytes+2*4 : headerFrameBytes+2*4+4]
	if led2[0] != brightnessBase|maxBrightness {
		t.Fatalf("led2 brightness = %#x, want lit", led2[0])
	}
	if led2[1] != 0x30 || led2[2] != 0x20 || led2[3] != 0x10 {
		t.Fatalf("led2 bytes = %v, want BGR order [0x30 0x20 0x10]", led2)
	}
}
