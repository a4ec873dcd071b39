// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pipeline

import (
	"errors"

	"aurcor.io/x/aurcor/aurcorerr"
	"aurcor.io/x/aurcor/color"
)

// Kind is the output_* color-space family from spec.md §4.8.
type Kind int

const (
	RGB Kind = iota
	HSV
	ExpHSV
	SetDefaults
)

const (
	MinFPS     = 1
	MaxFPS     = 1000
	MaxWaitMs  = 60_000
	MaxWaitUs  = MaxWaitMs * 1000

	// TimingDelayUs mirrors bus.TimingDelayUs: the last sliver of a wait
	// is absorbed by busy-waiting rather than trusting an OS sleep.
	TimingDelayUs = 200
)

var (
	ErrMultipleWaitArgs = errors.New("pipeline: exactly one of fps, wait_ms, wait_us may be given")
	ErrFPSOutOfRange    = errors.New("pipeline: fps out of range")
	ErrWaitOutOfRange   = errors.New("pipeline: wait out of range")
	ErrRotateWithIterator = errors.New("pipeline: rotate must be 0 with an iterator value")
	ErrBadItemType      = errors.New("pipeline: unsupported item shape for this output kind")
)

// WaitSpec carries exactly one of FPS/WaitMs/WaitUs; the zero value
// means "none given".
type WaitSpec struct {
	FPS    int
	WaitMs int
	WaitUs int
}

func (w WaitSpec) count() int {
	n := 0
	if w.FPS != 0 {
		n++
	}
	if w.WaitMs != 0 {
		n++
	}
	if w.WaitUs != 0 {
		n++
	}
	return n
}

// resolveWaitUs implements step 1 of spec.md §4.8's algorithm.
func resolveWaitUs(w WaitSpec, defaultFPS int) (int, error) {
	if w.count() > 1 {
		return 0, ErrMultipleWaitArgs
	}
	switch {
	case w.FPS != 0:
		if w.FPS < MinFPS || w.FPS > MaxFPS {
			return 0, ErrFPSOutOfRange
		}
		return 1_000_000 / w.FPS, nil
	case w.WaitMs != 0:
		if w.WaitMs < 0 || w.WaitMs > MaxWaitMs {
			return 0, ErrWaitOutOfRange
		}
		return w.WaitMs * 1000, nil
	case w.WaitUs != 0:
		if w.WaitUs < 0 || w.WaitUs > MaxWaitUs {
			return 0, ErrWaitOutOfRange
		}
		return w.WaitUs, nil
	default:
		if defaultFPS > 0 {
			return 1_000_000 / defaultFPS, nil
		}
		return 0, nil
	}
}

// Clock is the minimal time dependency, structurally compatible with
// bus.Clock so the two packages don't need to import one another.
type Clock interface {
	NowUs() int64
	SleepUntilUs(deadlineUs int64)
}

// Request is one output_* call's full argument set.
type Request struct {
	Values    ScriptValue
	Kind      Kind
	Profile   *color.Profile
	Wait      WaitSpec
	Repeat    bool
	Reverse   bool
	Rotate    int
	BusLength int
	// BufferSize is the pool LED-buffer block's byte capacity.
	BufferSize int
	DefaultFPS int
}

// Result is the rendered frame plus the resolved wait, which the caller
// (the engine's output_* bindings in script_api.go) uses to pace the
// next output_* call before handing Bytes to bus.StartTransmission.
type Result struct {
	Bytes  []byte
	WaitUs int
}

// Render executes spec.md §4.8's algorithm (steps 2-7; steps 8-9, the
// deadline wait and the handoff to bus.StartTransmission, are the
// caller's responsibility since they need the bus's prior-frame-end
// timestamp and Transmitter).
func Render(req Request) (Result, error) {
	waitUs, err := resolveWaitUs(req.Wait, req.DefaultFPS)
	if err != nil {
		return Result{}, err
	}

	maxPixels := req.BusLength
	if bufPixels := req.BufferSize / color.BytesPerLED; bufPixels < maxPixels {
		maxPixels = bufPixels
	}
	maxBytes := maxPixels * color.BytesPerLED
	out := make([]color.RGB, maxPixels)

	if req.Kind == SetDefaults {
		for i := range out {
			out[i] = req.Profile.CurveAt(i)
		}
	} else if req.Values.Kind == KindIterator {
		if req.Rotate != 0 {
			return Result{}, ErrRotateWithIterator
		}
		if err := renderFromIterator(req, out); err != nil {
			return Result{}, err
		}
	} else {
		pixels, err := decodeKnownLength(req.Kind, req.Values)
		if err != nil {
			return Result{}, err
		}
		renderFromSlice(pixels, req.Rotate, req.Reverse, req.Repeat, out)
	}

	if req.Kind != SetDefaults {
		for i, px := range out {
			out[i] = req.Profile.Apply(px)
		}
	}

	buf := make([]byte, maxBytes)
	for i, px := range out {
		buf[i*3], buf[i*3+1], buf[i*3+2] = px.R, px.G, px.B
	}
	return Result{Bytes: buf, WaitUs: waitUs}, nil
}

func normalizeRotate(k, n int) int {
	if n == 0 {
		return 0
	}
	m := k % n
	if m < 0 {
		m += n
	}
	return m
}

// renderFromSlice implements the array/sequence branches (spec.md
// §4.8 steps 3-4, 6): known total length n, written into out (length
// maxPixels) with rotate/reverse/repeat.
func renderFromSlice(pixels []color.RGB, rotate int, reverse bool, repeat bool, out []color.RGB) {
	n := len(pixels)
	if n == 0 {
		return
	}
	maxPixels := len(out)
	produced := n
	if produced > maxPixels {
		produced = maxPixels
	}
	rotate = normalizeRotate(rotate, n)

	for i := 0; i < produced; i++ {
		var srcIdx int
		if reverse {
			srcIdx = n - 1 - i
		} else {
			srcIdx = (rotate + i) % n
		}
		out[i] = pixels[srcIdx]
	}

	if repeat && produced > 0 && produced < maxPixels {
		for i := produced; i < maxPixels; i++ {
			out[i] = out[i%produced]
		}
	}
}

// renderFromIterator implements spec.md §4.8 step 5/6: pull until full
// or STOP_ITERATION; reverse mode fills from the tail backwards.
func renderFromIterator(req Request, out []color.RGB) error {
	maxPixels := len(out)
	produced := 0

	if !req.Reverse {
		for produced < maxPixels {
			item, ok := req.Values.Next()
			if !ok {
				break
			}
			px, err := decodePixelItem(req.Kind, item)
			if err != nil {
				return err
			}
			out[produced] = px
			produced++
		}
		if req.Repeat && produced > 0 && produced < maxPixels {
			for i := produced; i < maxPixels; i++ {
				out[i] = out[i%produced]
			}
		}
		return nil
	}

	// Generator-reverse mode: write toward decreasing offset from the
	// tail; the first pulled item lands at out[maxPixels-1].
	for produced < maxPixels {
		item, ok := req.Values.Next()
		if !ok {
			break
		}
		px, err := decodePixelItem(req.Kind, item)
		if err != nil {
			return err
		}
		out[maxPixels-1-produced] = px
		produced++
	}
	if req.Repeat && produced > 0 && produced < maxPixels {
		// Shift the produced suffix (which currently occupies the top
		// `produced` slots) down to fill the lower addresses too.
		filled := out[maxPixels-produced:]
		for i := 0; i < maxPixels-produced; i++ {
			out[i] = filled[((i-(maxPixels-produced))%produced+produced)%produced]
		}
	}
	return nil
}

// decodeKnownLength resolves shapes #1-#5 from spec.md §4.8 into a
// concrete RGB slice.
func decodeKnownLength(kind Kind, v ScriptValue) ([]color.RGB, error) {
	switch v.Kind {
	case KindBytes, KindArrayU8:
		raw := v.Bytes
		if v.Kind == KindArrayU8 {
			raw = v.U8
		}
		if len(raw)%color.BytesPerLED != 0 {
			return nil, aurcorerr.ErrParse
		}
		out := make([]color.RGB, len(raw)/3)
		for i := range out {
			out[i] = color.RGB{R: raw[i*3], G: raw[i*3+1], B: raw[i*3+2]}
		}
		return out, nil

	case KindArrayU16:
		out := make([]color.RGB, len(v.U16))
		for i, h := range v.U16 {
			px, err := hueToRGB(kind, int(h))
			if err != nil {
				return nil, err
			}
			out[i] = px
		}
		return out, nil

	case KindArrayI16:
		out := make([]color.RGB, len(v.I16))
		for i, h := range v.I16 {
			px, err := hueToRGB(kind, int(h))
			if err != nil {
				return nil, err
			}
			out[i] = px
		}
		return out, nil

	case KindArrayF32:
		out := make([]color.RGB, len(v.F32))
		for i, h := range v.F32 {
			hue, err := color.NormalizeHueFloat(float64(h), kind == ExpHSV)
			if err != nil {
				return nil, err
			}
			out[i] = hsvToRGB(kind, hue, color.MaxSaturation, color.MaxValue)
		}
		return out, nil

	case KindArrayI32:
		out := make([]color.RGB, len(v.I32))
		for i, packed := range v.I32 {
			out[i] = color.UnpackRGB(packed)
		}
		return out, nil

	case KindSequence:
		out := make([]color.RGB, len(v.Seq))
		for i, item := range v.Seq {
			px, err := decodePixelItem(kind, item)
			if err != nil {
				return nil, err
			}
			out[i] = px
		}
		return out, nil
	}
	return nil, ErrBadItemType
}

func hueToRGB(kind Kind, hue int) (color.RGB, error) {
	h := color.NormalizeHueInt(hue, kind == ExpHSV)
	return hsvToRGB(kind, h, color.MaxSaturation, color.MaxValue), nil
}

func hsvToRGB(kind Kind, hue, saturation, value int) color.RGB {
	if kind == ExpHSV {
		return color.ExpHSVToRGB(hue, saturation, value)
	}
	return color.HSVToRGB(hue, saturation, value)
}

// decodePixelItem implements append_led's per-item interpretation from
// spec.md §4.8: item is either a packed int, a float hue (HSV kinds
// only), or a 1/2/3-element tuple.
func decodePixelItem(kind Kind, item ScriptValue) (color.RGB, error) {
	switch item.Kind {
	case KindInt:
		if kind == RGB {
			return color.UnpackRGB(int32(item.Int)), nil
		}
		h := color.NormalizeHueInt(int(item.Int), kind == ExpHSV)
		return hsvToRGB(kind, h, color.MaxSaturation, color.MaxValue), nil

	case KindFloat:
		if kind == RGB {
			return color.RGB{}, ErrBadItemType
		}
		h, err := color.NormalizeHueFloat(item.Float, kind == ExpHSV)
		if err != nil {
			return color.RGB{}, err
		}
		return hsvToRGB(kind, h, color.MaxSaturation, color.MaxValue), nil

	case KindTuple1:
		return decodeTupleHSV(kind, item.Tuple[0], nil, nil)
	case KindTuple2:
		return decodeTupleHSVOrRGB2(kind, item.Tuple[0], item.Tuple[1])
	case KindTuple3:
		return decodeTuple3(kind, item.Tuple[0], item.Tuple[1], item.Tuple[2])
	}
	return color.RGB{}, ErrBadItemType
}

func scalarInt(v ScriptValue) (int, error) {
	switch v.Kind {
	case KindInt:
		return int(v.Int), nil
	case KindFloat:
		return 0, ErrBadItemType // only hue itself may be float; s/v must clamp explicitly
	}
	return 0, ErrBadItemType
}

func decodeTupleHSV(kind Kind, h ScriptValue, s, v *int) (color.RGB, error) {
	hue, err := hueArgToInt(kind, h)
	if err != nil {
		return color.RGB{}, err
	}
	sat, val := color.MaxSaturation, color.MaxValue
	if s != nil {
		sat = *s
	}
	if v != nil {
		val = *v
	}
	return hsvToRGB(kind, hue, sat, val), nil
}

func hueArgToInt(kind Kind, h ScriptValue) (int, error) {
	switch h.Kind {
	case KindFloat:
		return color.NormalizeHueFloat(h.Float, kind == ExpHSV)
	case KindInt:
		return color.NormalizeHueInt(int(h.Int), kind == ExpHSV), nil
	}
	return 0, ErrBadItemType
}

func decodeTupleHSVOrRGB2(kind Kind, a, b ScriptValue) (color.RGB, error) {
	// [h, v] per spec.md §4.8: 2-element tuples are HSV-only ([r,g,b]
	// requires all three channels).
	if kind == RGB {
		return color.RGB{}, ErrBadItemType
	}
	hue, err := hueArgToInt(kind, a)
	if err != nil {
		return color.RGB{}, err
	}
	val, err := scalarInt(b)
	if err != nil {
		return color.RGB{}, err
	}
	return hsvToRGB(kind, hue, color.MaxSaturation, val), nil
}

func decodeTuple3(kind Kind, a, b, c ScriptValue) (color.RGB, error) {
	if kind == RGB {
		r, err := scalarInt(a)
		if err != nil {
			return color.RGB{}, err
		}
		g, err := scalarInt(b)
		if err != nil {
			return color.RGB{}, err
		}
		bl, err := scalarInt(c)
		if err != nil {
			return color.RGB{}, err
		}
		return color.RGB{R: uint8(r), G: uint8(g), B: uint8(bl)}, nil
	}
	hue, err := hueArgToInt(kind, a)
	if err != nil {
		return color.RGB{}, err
	}
	sat, err := scalarInt(b)
	if err != nil {
		return color.RGB{}, err
	}
	val, err := scalarInt(c)
	if err != nil {
		return color.RGB{}, err
	}
	return hsvToRGB(kind, hue, sat, val), nil
}

// WaitForDeadline blocks until prevFrameEndUs+waitUs, coarse-sleeping
// then busy-waiting the final TimingDelayUs, per spec.md §4.8 step 8.
// prevFrameEndUs of 0 means "no previous frame": returns immediately.
func WaitForDeadline(clock Clock, prevFrameEndUs int64, waitUs int) {
	if waitUs <= 0 || prevFrameEndUs == 0 {
		return
	}
	deadline := prevFrameEndUs + int64(waitUs)
	clock.SleepUntilUs(deadline - TimingDelayUs)
	for clock.NowUs() < deadline {
	}
}
