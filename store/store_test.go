// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurcor.io/x/aurcor/color"
	"aurcor.io/x/aurcor/scriptconfig"
)

func u64p(v uint64) *uint64 { return &v }

func TestSaveLoadBusRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strip0.cbor")
	format := "grb"
	bf := BusFile{Length: u64p(144), Format: &format, ResetTimeUs: u64p(300)}
	require.NoError(t, SaveBus(path, bf))
	got, err := LoadBus(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(144), *got.Length)
	assert.Equal(t, "grb", *got.Format)
	assert.Equal(t, uint64(300), *got.ResetTimeUs)
}

func TestLoadBusCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.cbor")
	require.NoError(t, atomicWrite(path, []byte{0xff, 0xff, 0xff}))
	_, err := LoadBus(path)
	assert.Error(t, err, "expected an error decoding a corrupt file")
}

func TestSaveLoadProfileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strip0.normal.cbor")
	entries := []color.Entry{{Index: 0, Color: color.RGB{R: 1, G: 2, B: 3}}, {Index: 255, Color: color.RGB{R: 255, G: 255, B: 255}}}
	require.NoError(t, SaveProfile(path, entries))
	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())
}

func TestConfigRoundTripThroughCBOR(t *testing.T) {
	c := scriptconfig.New()
	if err := c.RegisterProperties([]scriptconfig.Descriptor{
		{Key: "brightness", Type: scriptconfig.S32, Default: int32(10)},
		{Key: "enabled", Type: scriptconfig.Bool, Default: false},
	}); err != nil {
		t.Fatal(err)
	}
	c.Set("brightness", int32(77))
	c.Set("enabled", true)

	entries, err := EncodeConfig(c)
	if err != nil {
		t.Fatal(err)
	}

	c2 := scriptconfig.New()
	c2.RegisterProperties([]scriptconfig.Descriptor{
		{Key: "brightness", Type: scriptconfig.S32, Default: int32(10)},
		{Key: "enabled", Type: scriptconfig.Bool, Default: false},
	})
	if err := ApplyConfig(c2, entries); err != nil {
		t.Fatal(err)
	}
	v, _ := c2.Value("brightness")
	if v.(int32) != 77 {
		t.Fatalf("brightness = %v, want 77", v)
	}
	v, _ = c2.Value("enabled")
	if v.(bool) != true {
		t.Fatalf("enabled = %v, want true", v)
	}
}

func TestApplyConfigSkipsUnregisteredKey(t *testing.T) {
	c := scriptconfig.New()
	entries := map[string]ConfigFileEntry{"ghost": {Tag: tagS32}}
	if err := ApplyConfig(c, entries); err != nil {
		t.Fatal(err)
	}
}
