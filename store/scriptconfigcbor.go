// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package store

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"aurcor.io/x/aurcor/aurcorerr"
	"aurcor.io/x/aurcor/scriptconfig"
)

// Type tags from spec.md §6. Float and Profile aren't named in the
// spec's explicit tag list (only the 9 collection/scalar tags it needs
// for its own worked examples are); "f" and "P" extend the same
// one-letter-scalar / bracketed-collection convention for the two
// scriptconfig.Type values the spec's enumeration in §4.4 names but its
// §6 wire-format table doesn't — see DESIGN.md.
const (
	tagBool    = "o"
	tagS32     = "i"
	tagRGB     = "C"
	tagFloat   = "f"
	tagProfile = "P"
	tagListU16 = "[H"
	tagListS32 = "[i"
	tagListRGB = "[C"
	tagSetU16  = "{H"
	tagSetS32  = "{i"
	tagSetRGB  = "{C"
)

// EncodeConfig converts a live scriptconfig.Config's effective values
// (the operator value if set, otherwise the default) into the on-disk
// `config` map shape, one entry per stored key. Defaults are not told
// apart from operator values: a key holding only its default is written
// too.
func EncodeConfig(c *scriptconfig.Config) (map[string]ConfigFileEntry, error) {
	out := make(map[string]ConfigFileEntry)
	for _, key := range c.Keys() {
		typ, _ := c.KeyType(key)
		v, ok := c.Value(key)
		if !ok {
			continue
		}
		tag, payload, err := encodeValue(typ, v)
		if err != nil {
			return nil, err
		}
		raw, err := cbor.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", aurcorerr.ErrIO, err)
		}
		out[key] = ConfigFileEntry{Tag: tag, Payload: raw}
	}
	return out, nil
}

func encodeValue(typ scriptconfig.Type, v interface{}) (string, interface{}, error) {
	switch typ {
	case scriptconfig.Bool:
		return tagBool, v.(bool), nil
	case scriptconfig.S32:
		return tagS32, v.(int32), nil
	case scriptconfig.RGB:
		return tagRGB, v.(int32), nil
	case scriptconfig.Profile:
		return tagProfile, v.(int32), nil
	case scriptconfig.Float:
		return tagFloat, v.(float64), nil
	case scriptconfig.ListU16:
		return tagListU16, v.([]int64), nil
	case scriptconfig.ListS32:
		return tagListS32, v.([]int64), nil
	case scriptconfig.ListRGB:
		return tagListRGB, v.([]int64), nil
	case scriptconfig.SetU16:
		return tagSetU16, v.([]int64), nil
	case scriptconfig.SetS32:
		return tagSetS32, v.([]int64), nil
	case scriptconfig.SetRGB:
		return tagSetRGB, v.([]int64), nil
	}
	return "", nil, aurcorerr.ErrTypeMismatch
}

// ApplyConfig installs decoded file entries as operator values on c.
// Entries whose key isn't currently registered, or whose tag doesn't
// match the registered type, are skipped (the key is not currently
// declared by the running script, or the script's declared type has
// changed since the file was written); this matches spec.md §4.4's
// "unknown keys are skipped iff well-formed" persistence rule.
func ApplyConfig(c *scriptconfig.Config, entries map[string]ConfigFileEntry) error {
	for key, entry := range entries {
		typ, ok := c.KeyType(key)
		if !ok {
			continue
		}
		wantTag, _, err := encodeValue(typ, zeroValue(typ))
		if err != nil {
			continue
		}
		if entry.Tag != wantTag {
			continue
		}
		if err := applyEntry(c, key, typ, entry.Payload); err != nil {
			return err
		}
	}
	return nil
}

func zeroValue(typ scriptconfig.Type) interface{} {
	switch typ {
	case scriptconfig.Bool:
		return false
	case scriptconfig.S32, scriptconfig.RGB, scriptconfig.Profile:
		return int32(0)
	case scriptconfig.Float:
		return float64(0)
	default:
		return []int64(nil)
	}
}

func applyEntry(c *scriptconfig.Config, key string, typ scriptconfig.Type, payload cbor.RawMessage) error {
	switch typ {
	case scriptconfig.Bool:
		var b bool
		if err := cbor.Unmarshal(payload, &b); err != nil {
			return aurcorerr.ErrParse
		}
		return c.Set(key, b)
	case scriptconfig.S32, scriptconfig.RGB, scriptconfig.Profile:
		var i int32
		if err := cbor.Unmarshal(payload, &i); err != nil {
			return aurcorerr.ErrParse
		}
		return c.Set(key, i)
	case scriptconfig.Float:
		var f float64
		if err := cbor.Unmarshal(payload, &f); err != nil {
			return aurcorerr.ErrParse
		}
		return c.Set(key, f)
	default:
		var list []int64
		if err := cbor.Unmarshal(payload, &list); err != nil {
			return aurcorerr.ErrParse
		}
		for _, v := range list {
			text := itoa(v)
			if typ == scriptconfig.ListRGB || typ == scriptconfig.SetRGB {
				text = fmt.Sprintf("%06x", v)
			}
			if err := c.Modify(key, text, scriptconfig.OpAdd, 0, 0); err != nil {
				return err
			}
		}
		return nil
	}
}

func itoa(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	if v == 0 {
		return "0"
	}
	var digits [20]byte
	i := len(digits)
	for v > 0 {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		digits[i] = '-'
	}
	return string(digits[i:])
}
