// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package scriptconfig

import (
	"testing"

	"aurcor.io/x/aurcor/aurcorerr"
)

func TestRegisterAndDefaultValue(t *testing.T) {
	c := New()
	err := c.RegisterProperties([]Descriptor{
		{Key: "brightness", Type: S32, Default: int32(100)},
		{Key: "enabled", Type: Bool, Default: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	v, ok := c.Value("brightness")
	if !ok || v.(int32) != 100 {
		t.Fatalf("brightness = %v, %v", v, ok)
	}
	v, ok = c.Value("enabled")
	if !ok || v.(bool) != true {
		t.Fatalf("enabled = %v, %v", v, ok)
	}
}

func TestSetOverridesDefault(t *testing.T) {
	c := New()
	if err := c.RegisterProperties([]Descriptor{{Key: "brightness", Type: S32, Default: int32(100)}}); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("brightness", int32(42)); err != nil {
		t.Fatal(err)
	}
	v, _ := c.Value("brightness")
	if v.(int32) != 42 {
		t.Fatalf("brightness = %v, want 42", v)
	}
	if err := c.Unset("brightness"); err != nil {
		t.Fatal(err)
	}
	v, _ = c.Value("brightness")
	if v.(int32) != 100 {
		t.Fatalf("brightness after unset = %v, want 100 (default)", v)
	}
}

func TestSetUnknownKeyNotFound(t *testing.T) {
	c := New()
	if err := c.Set("nope", int32(1)); err != aurcorerr.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRegisterRejectsBadKey(t *testing.T) {
	c := New()
	err := c.RegisterProperties([]Descriptor{
		{Key: "bad key!", Type: S32, Default: int32(1)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Value("bad key!"); ok {
		t.Fatal("bad key should not have registered")
	}
}

func TestRegisterDropsUndeclaredKeys(t *testing.T) {
	c := New()
	c.RegisterProperties([]Descriptor{{Key: "a", Type: S32, Default: int32(1)}})
	c.RegisterProperties([]Descriptor{{Key: "b", Type: S32, Default: int32(2)}})
	if _, ok := c.Value("a"); ok {
		t.Fatal("a should have been dropped on re-register without it")
	}
	if _, ok := c.Value("b"); !ok {
		t.Fatal("b should be present")
	}
}

func TestModifyListAddAndDelete(t *testing.T) {
	c := New()
	c.RegisterProperties([]Descriptor{{Key: "steps", Type: ListS32, Default: []int64{}}})
	if err := c.Modify("steps", "5", OpAdd, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.Modify("steps", "7", OpAdd, 0, 0); err != nil {
		t.Fatal(err)
	}
	v, _ := c.Value("steps")
	list := v.([]int64)
	if len(list) != 2 || list[0] != 5 || list[1] != 7 {
		t.Fatalf("list = %v", list)
	}
	if err := c.Modify("steps", "5", OpDelValue, 0, 0); err != nil {
		t.Fatal(err)
	}
	v, _ = c.Value("steps")
	list = v.([]int64)
	if len(list) != 1 || list[0] != 7 {
		t.Fatalf("list after delete = %v", list)
	}
}

func TestModifySetIsSortedUnique(t *testing.T) {
	c := New()
	c.RegisterProperties([]Descriptor{{Key: "channels", Type: SetU16, Default: []int64{}}})
	c.Modify("channels", "3", OpAdd, 0, 0)
	c.Modify("channels", "1", OpAdd, 0, 0)
	c.Modify("channels", "3", OpAdd, 0, 0) // duplicate, no-op
	v, _ := c.Value("channels")
	list := v.([]int64)
	if len(list) != 2 || list[0] != 1 || list[1] != 3 {
		t.Fatalf("set = %v, want sorted unique [1 3]", list)
	}
}

func TestModifyOutOfRangePosition(t *testing.T) {
	c := New()
	c.RegisterProperties([]Descriptor{{Key: "steps", Type: ListS32, Default: []int64{}}})
	if err := c.Modify("steps", "", OpDelPosition, 5, 0); err != aurcorerr.ErrOutOfRange {
		t.Fatalf("err = %v, want ErrOutOfRange", err)
	}
}

func TestModifyRGBTextParsing(t *testing.T) {
	c := New()
	c.RegisterProperties([]Descriptor{{Key: "palette", Type: ListRGB, Default: []int64{}}})
	if err := c.Modify("palette", "#ff8000", OpAdd, 0, 0); err != nil {
		t.Fatal(err)
	}
	v, _ := c.Value("palette")
	list := v.([]int64)
	if list[0] != 0xff8000 {
		t.Fatalf("palette[0] = %#x, want 0xff8000", list[0])
	}
}

func TestCleanupRemovesUnreferencedKey(t *testing.T) {
	c := New()
	c.RegisterProperties([]Descriptor{{Key: "a", Type: S32, Default: int32(1)}})
	c.Set("a", int32(2))
	c.RegisterProperties(nil) // script no longer declares "a"; value survives as unregistered leftover
	if _, ok := c.Value("a"); !ok {
		t.Fatal("a should still hold its operator value after deregistration")
	}
	c.Unset("a")
	if !c.Cleanup() {
		t.Fatal("Cleanup() should have removed the now-empty unregistered key")
	}
	if _, ok := c.Value("a"); ok {
		t.Fatal("a should be gone after Cleanup")
	}
}

func TestPopulateDictTracksChanges(t *testing.T) {
	c := New()
	if c.PopulateDict() {
		t.Fatal("fresh config should report no change")
	}
	c.RegisterProperties([]Descriptor{{Key: "a", Type: S32, Default: int32(1)}})
	if !c.PopulateDict() {
		t.Fatal("register should mark changed")
	}
	if c.PopulateDict() {
		t.Fatal("second call should report no further change")
	}
}
