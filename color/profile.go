// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package color

import (
	"sort"

	"github.com/maruel/temperature"
)

// Profile is the sparse, sorted LED color-correction table from spec.md
// §3: index -> (r,g,b), index 0 always present (defaulting to (8,8,8) so
// an empty chain stays dimly visible rather than fully black).
// Intermediate indices interpolate linearly per channel.
//
// original_source's led_profile.h/led_profiles.h were dropped by the
// retrieval filter (they were not among the kept files), so the exact
// firmware algorithm for "apply" isn't available to transliterate; this
// is a from-spec design grounded on the same family of curve as the
// teacher's devices/apa102 ramp/lut (a per-brightness multiplicative
// correction applied before the hardware-specific byte expansion). See
// DESIGN.md for the decision record:
//
//   - With only the default single entry at index 0 (the "normal"
//     profile, or any profile reset by Clear), Apply is the identity
//     transform for every pixel whose max channel is nonzero, and
//     substitutes the index-0 entry directly for an all-zero (fully
//     black) pixel — matching spec.md §4.3's "identity minus the clamp
//     to (8,8,8) at index 0" exactly.
//   - Once a profile has two or more entries (real calibration data),
//     Apply finds the bracketing floor/ceiling entries by the pixel's
//     max channel, linearly interpolates a per-channel curve value in
//     [0,255], and scales each input channel by curve/255 — the same
//     shape of correction as a ramp/LUT, generalized from a single point
//     to a calibration curve.
type Profile struct {
	entries map[int]RGB
	indices []int // sorted, kept in sync with entries

	// tint is an optional correlated-color-temperature correction
	// layered on top of the §4.3 curve, grounded on devices/apa102.Dev's
	// Temperature field (github.com/maruel/temperature.ToRGB). It
	// defaults to (255,255,255), i.e. no-op, so the default/explicit-
	// identity profile paths pinned by the byte-exact test vectors are
	// untouched unless a script opts in via SetTemperature.
	tint RGB
}

// DefaultZeroEntry is the index-0 fallback color used when no explicit
// entry has been set there.
var DefaultZeroEntry = RGB{R: 8, G: 8, B: 8}

// NewProfile returns the identity profile: only index 0, set to
// DefaultZeroEntry.
func NewProfile() *Profile {
	return &Profile{
		entries: map[int]RGB{0: DefaultZeroEntry},
		indices: []int{0},
		tint:    noTint,
	}
}

// noTint is the identity correlated-color-temperature correction.
var noTint = RGB{R: 255, G: 255, B: 255}

// Clear resets the profile back to its default single entry; it leaves
// any temperature tint in place (tint is an operator preference on the
// bus, not part of the calibration table being cleared).
func (p *Profile) Clear() {
	p.entries = map[int]RGB{0: DefaultZeroEntry}
	p.indices = []int{0}
}

// SetTemperature installs a correlated-color-temperature tint (in
// Kelvin) applied multiplicatively after the profile curve, the same
// correction devices/apa102.Dev applies via its Temperature field.
func (p *Profile) SetTemperature(kelvin uint16) {
	r, g, b := temperature.ToRGB(kelvin)
	p.tint = RGB{R: r, G: g, B: b}
}

// ClearTemperature removes any tint, returning to the identity
// correction.
func (p *Profile) ClearTemperature() {
	p.tint = noTint
}

// Set installs or replaces the entry at index; index 0 may be
// overridden (it no longer then falls back to DefaultZeroEntry).
func (p *Profile) Set(index int, c RGB) {
	if _, exists := p.entries[index]; !exists {
		i := sort.SearchInts(p.indices, index)
		p.indices = append(p.indices, 0)
		copy(p.indices[i+1:], p.indices[i:])
		p.indices[i] = index
	}
	p.entries[index] = c
}

// Len reports the number of explicit entries in the table.
func (p *Profile) Len() int {
	return len(p.indices)
}

// Entry is a single (index, color) pair, used by Entries and by CBOR
// persistence (store.SaveProfile).
type Entry struct {
	Index int
	Color RGB
}

// Entries returns the profile's sorted (index, color) pairs.
func (p *Profile) Entries() []Entry {
	out := make([]Entry, len(p.indices))
	for i, idx := range p.indices {
		out[i] = Entry{idx, p.entries[idx]}
	}
	return out
}

// Apply transforms a single input RGB pixel through the profile, using
// the pixel's own max channel as the lookup index. See the Profile
// doc comment for the identity/clamp/scale decision.
func (p *Profile) Apply(in RGB) RGB {
	m := in.R
	if in.G > m {
		m = in.G
	}
	if in.B > m {
		m = in.B
	}
	return p.ApplyIndex(int(m), in)
}

// ApplyIndex transforms in using an explicit lookup index rather than
// the pixel's own max channel; Apply calls it with that max channel.
func (p *Profile) ApplyIndex(index int, in RGB) RGB {
	var out RGB
	if len(p.indices) == 1 {
		if in.R == 0 && in.G == 0 && in.B == 0 {
			out = p.entries[p.indices[0]]
		} else {
			out = in
		}
	} else {
		floor, ceil := p.bracket(index)
		curve := p.entries[floor]
		if floor != ceil {
			ceilColor := p.entries[ceil]
			span := ceil - floor
			offset := index - floor
			curve = RGB{
				R: lerp(curve.R, ceilColor.R, offset, span),
				G: lerp(curve.G, ceilColor.G, offset, span),
				B: lerp(curve.B, ceilColor.B, offset, span),
			}
		}
		out = scaleByCurve(in, curve)
	}
	if p.tint == noTint {
		return out
	}
	return scaleByCurve(out, p.tint)
}

// scaleByCurve multiplies each source channel by curve/255 using the
// rounding integer divide shared with the color-space math.
func scaleByCurve(in RGB, curve RGB) RGB {
	return RGB{
		R: uint8(uintDivide(uint64(in.R)*uint64(curve.R), 255, 1)),
		G: uint8(uintDivide(uint64(in.G)*uint64(curve.G), 255, 1)),
		B: uint8(uintDivide(uint64(in.B)*uint64(curve.B), 255, 1)),
	}
}

func lerp(a, b uint8, offset, span int) uint8 {
	return uint8(int(a) + (int(b)-int(a))*offset/span)
}

// CurveAt returns the profile's own correction curve at index, without
// scaling any source pixel — used by the output_defaults pipeline kind
// to preview the calibration curve directly.
func (p *Profile) CurveAt(index int) RGB {
	var out RGB
	if len(p.indices) == 1 {
		out = p.entries[p.indices[0]]
	} else {
		floor, ceil := p.bracket(index)
		if floor == ceil {
			out = p.entries[floor]
		} else {
			floorColor, ceilColor := p.entries[floor], p.entries[ceil]
			span := ceil - floor
			offset := index - floor
			out = RGB{
				R: lerp(floorColor.R, ceilColor.R, offset, span),
				G: lerp(floorColor.G, ceilColor.G, offset, span),
				B: lerp(floorColor.B, ceilColor.B, offset, span),
			}
		}
	}
	if p.tint == noTint {
		return out
	}
	return scaleByCurve(out, p.tint)
}

// bracket returns the largest table index <= target and smallest table
// index >= target.
func (p *Profile) bracket(target int) (floor, ceil int) {
	floor, ceil = p.indices[0], p.indices[len(p.indices)-1]
	for _, idx := range p.indices {
		if idx <= target {
			floor = idx
		}
		if idx >= target {
			ceil = idx
			break
		}
	}
	return floor, ceil
}
