// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package color

import "testing"

func TestHSVToRGBRedAtZero(t *testing.T) {
	got := HSVToRGB(0, MaxSaturation, MaxValue)
	want := RGB{255, 0, 0}
	if got != want {
		t.Fatalf("HSVToRGB(0,max,max) = %+v, want %+v", got, want)
	}
}

func TestHSVToRGBBlackAtZeroValue(t *testing.T) {
	got := HSVToRGB(0, MaxSaturation, 0)
	if got != (RGB{0, 0, 0}) {
		t.Fatalf("HSVToRGB(0,max,0) = %+v, want (0,0,0)", got)
	}
}

func TestHSVToRGBWhiteAtZeroSaturation(t *testing.T) {
	got := HSVToRGB(0, 0, MaxValue)
	if got != (RGB{255, 255, 255}) {
		t.Fatalf("HSVToRGB(0,0,max) = %+v, want (255,255,255)", got)
	}
}

func TestRGBToHSVRoundTrip(t *testing.T) {
	for hue := 0; hue < HueRange; hue += 17 {
		for _, sv := range [][2]int{{255, 255}, {128, 200}, {50, 10}} {
			rgb := HSVToRGB(hue, sv[0], sv[1])
			h2, s2, v2 := RGBToHSV(rgb.R, rgb.G, rgb.B)
			rgb2 := HSVToRGB(h2, s2, v2)
			if absDiff(int(rgb.R), int(rgb2.R)) > 1 || absDiff(int(rgb.G), int(rgb2.G)) > 1 || absDiff(int(rgb.B), int(rgb2.B)) > 1 {
				t.Fatalf("round trip mismatch at hue=%d sv=%v: %+v vs %+v", hue, sv, rgb, rgb2)
			}
		}
	}
}

func TestRGBToHSVZeroValueIsExactBlack(t *testing.T) {
	h, s, v := RGBToHSV(0, 0, 0)
	if h != 0 || s != 0 || v != 0 {
		t.Fatalf("RGBToHSV(0,0,0) = (%d,%d,%d), want (0,0,0)", h, s, v)
	}
}

func TestFloatAndFixedPointAgreeWithinOneUnit(t *testing.T) {
	for hue := 0; hue < HueRange; hue += 7 {
		for _, sv := range [][2]int{{255, 255}, {100, 200}, {0, 128}} {
			fixed := HSVToRGB(hue, sv[0], sv[1])
			float := HSVToRGBFloat(hue, sv[0], sv[1])
			if absDiff(int(fixed.R), int(float.R)) > 1 ||
				absDiff(int(fixed.G), int(float.G)) > 1 ||
				absDiff(int(fixed.B), int(float.B)) > 1 {
				t.Fatalf("hue=%d sv=%v: fixed=%+v float=%+v disagree by >1", hue, sv, fixed, float)
			}
		}
	}
}

func TestExpHSVRoundTrip(t *testing.T) {
	for eh := 0; eh < ExpandedHueRange; eh += 13 {
		rgb := ExpHSVToRGB(eh, MaxSaturation, MaxValue)
		eh2, _, _ := RGBToExpHSV(rgb.R, rgb.G, rgb.B)
		rgb2 := ExpHSVToRGB(eh2, MaxSaturation, MaxValue)
		if absDiff(int(rgb.R), int(rgb2.R)) > 1 || absDiff(int(rgb.G), int(rgb2.G)) > 1 || absDiff(int(rgb.B), int(rgb2.B)) > 1 {
			t.Fatalf("exp hue round trip mismatch at eh=%d: %+v vs %+v", eh, rgb, rgb2)
		}
	}
}

func TestExpHSVEighthRangeIsWarmBand(t *testing.T) {
	// One-eighth of the expanded range must map into the widened warm
	// (red-orange) section of linear hue space, per spec.md §8 example 5.
	eh := ExpandedHueRange / 8
	rgb := ExpHSVToRGB(eh, MaxSaturation, MaxValue)
	if rgb.R != 255 {
		t.Fatalf("expected red channel maxed in warm band, got %+v", rgb)
	}
	if rgb.G == 0 || rgb.B != 0 {
		// red-orange: some green bleeding in, no blue.
		t.Fatalf("expected red-orange (G>0,B=0), got %+v", rgb)
	}
}

func TestNormalizeHueFloatNegativeWraps(t *testing.T) {
	h, err := NormalizeHueFloat(-0.25, false)
	if err != nil {
		t.Fatal(err)
	}
	want := int(0.75 * HueRange)
	if h != want {
		t.Fatalf("NormalizeHueFloat(-0.25) = %d, want %d", h, want)
	}
}

func TestNormalizeHueFloatNonFinite(t *testing.T) {
	if _, err := NormalizeHueFloat(posInf(), false); err != ErrNonFiniteHue {
		t.Fatalf("err = %v, want ErrNonFiniteHue", err)
	}
}

func posInf() float64 {
	var zero float64
	return 1 / zero
}

func TestProfileIdentityWithClampAtZero(t *testing.T) {
	p := NewProfile()
	if got := p.Apply(RGB{0, 0, 0}); got != DefaultZeroEntry {
		t.Fatalf("Apply(black) = %+v, want %+v", got, DefaultZeroEntry)
	}
	in := RGB{10, 20, 30}
	if got := p.Apply(in); got != in {
		t.Fatalf("Apply(nonblack) = %+v, want identity %+v", got, in)
	}
}

func TestProfileClearResetsToSingleEntry(t *testing.T) {
	p := NewProfile()
	p.Set(128, RGB{100, 100, 100})
	p.Set(255, RGB{255, 255, 255})
	if p.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", p.Len())
	}
	p.Clear()
	if p.Len() != 1 {
		t.Fatalf("Len() after Clear = %d, want 1", p.Len())
	}
	if got := p.Apply(RGB{0, 0, 0}); got != DefaultZeroEntry {
		t.Fatalf("Apply(black) after clear = %+v, want %+v", got, DefaultZeroEntry)
	}
}

func TestProfileInterpolation(t *testing.T) {
	p := NewProfile()
	p.Set(255, RGB{255, 255, 255})
	// index 0 -> (8,8,8), index 255 -> (255,255,255); midpoint ~131ish.
	curveAt128 := p.ApplyIndex(128, RGB{255, 255, 255})
	if curveAt128.R < 100 || curveAt128.R > 160 {
		t.Fatalf("interpolated curve at 128 = %+v, expected roughly mid-range", curveAt128)
	}
}

func TestProfileTemperatureLeavesDefaultUntouchedUntilSet(t *testing.T) {
	p := NewProfile()
	in := RGB{200, 150, 100}
	if got := p.Apply(in); got != in {
		t.Fatalf("Apply with no temperature set = %+v, want identity %+v", got, in)
	}
	p.SetTemperature(3000) // warm tint: biases toward red, away from blue
	warm := p.Apply(in)
	if warm.B >= in.B {
		t.Fatalf("warm tint should reduce blue: got %+v from %+v", warm, in)
	}
	p.ClearTemperature()
	if got := p.Apply(in); got != in {
		t.Fatalf("Apply after ClearTemperature = %+v, want identity %+v", got, in)
	}
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
