// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package store implements the filesystem-backed persistence contract
// from spec.md §6: CBOR codecs for the bus/preset/profile file formats,
// one process-wide shared/exclusive lock (the filesystem itself is an
// external collaborator per spec.md's Non-goals — this package only
// owns the locking discipline and the encode/decode shape), and
// atomic write-then-rename saves.
package store

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"aurcor.io/x/aurcor/aurcorerr"
	"aurcor.io/x/aurcor/color"
)

// FileLock is the single process-wide readers/writer lock spec.md §5
// describes for filesystem access: readers take shared, writers take
// exclusive. sync.RWMutex is the direct stdlib match for that shape;
// no pack repo models a file-level rwlock, so this is the one ambient
// concern in this module built on the standard library — see
// DESIGN.md.
var FileLock sync.RWMutex

// BusFile mirrors the bus config file shape from spec.md §6.
type BusFile struct {
	Length        *uint64 `cbor:"length,omitempty"`
	Format        *string `cbor:"format,omitempty"`
	ResetTimeUs   *uint64 `cbor:"reset_time_us,omitempty"`
	Reverse       *bool   `cbor:"reverse,omitempty"`
	DefaultPreset *string `cbor:"default_preset,omitempty"`
	DefaultFPS    *uint64 `cbor:"default_fps,omitempty"`
	UDPPort       *uint64 `cbor:"udp_port,omitempty"`
	UDPQueueSize  *uint64 `cbor:"udp_queue_size,omitempty"`
}

// PresetFile mirrors /presets/<name>.cbor.
type PresetFile struct {
	Desc    string                     `cbor:"desc"`
	Script  string                     `cbor:"script"`
	Reverse bool                       `cbor:"reverse"`
	Config  map[string]ConfigFileEntry `cbor:"config"`
}

// ConfigFileEntry is the `[type_tag, payload]` pair from spec.md §6.
type ConfigFileEntry struct {
	_       struct{} `cbor:",toarray"`
	Tag     string
	Payload cbor.RawMessage
}

// ProfileEntryFile is one [index, [r,g,b]] pair, index first;
// /profiles/<bus>.<profile>.cbor is an array of them.
type ProfileEntryFile struct {
	_     struct{} `cbor:",toarray"`
	Index int
	RGB   [3]uint8
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(aurcorerr.ErrIO, err.Error())
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(aurcorerr.ErrIO, err.Error())
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(aurcorerr.ErrIO, err.Error())
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(aurcorerr.ErrIO, err.Error())
	}
	return nil
}

// SaveBus writes bf to path atomically: encode to a temp file in the
// same directory, fsync-via-close, rename over the target. Any failure
// removes the partial file, per spec.md §4.4's "a write failure closes
// and deletes the partial file."
func SaveBus(path string, bf BusFile) error {
	FileLock.Lock()
	defer FileLock.Unlock()
	data, err := cbor.Marshal(bf)
	if err != nil {
		return errors.Wrap(aurcorerr.ErrIO, err.Error())
	}
	return atomicWrite(path, data)
}

// LoadBus reads and decodes a bus file. A malformed file is reported as
// aurcorerr.ErrParse.
func LoadBus(path string) (BusFile, error) {
	FileLock.RLock()
	defer FileLock.RUnlock()
	var bf BusFile
	data, err := os.ReadFile(path)
	if err != nil {
		return bf, errors.Wrap(aurcorerr.ErrIO, err.Error())
	}
	if err := cbor.Unmarshal(data, &bf); err != nil {
		return BusFile{}, aurcorerr.ErrParse
	}
	return bf, nil
}

func SavePreset(path string, pf PresetFile) error {
	FileLock.Lock()
	defer FileLock.Unlock()
	data, err := cbor.Marshal(pf)
	if err != nil {
		return errors.Wrap(aurcorerr.ErrIO, err.Error())
	}
	return atomicWrite(path, data)
}

func LoadPreset(path string) (PresetFile, error) {
	FileLock.RLock()
	defer FileLock.RUnlock()
	var pf PresetFile
	data, err := os.ReadFile(path)
	if err != nil {
		return pf, errors.Wrap(aurcorerr.ErrIO, err.Error())
	}
	// Unknown keys are skipped iff the map is otherwise well-formed;
	// cbor.Unmarshal already does field-name matching leniently, so a
	// decode error here means genuine corruption, not an unknown key.
	if err := cbor.Unmarshal(data, &pf); err != nil {
		return PresetFile{}, aurcorerr.ErrParse
	}
	return pf, nil
}

// RemovePreset deletes a preset file under the same exclusive lock
// discipline as Save/Rename.
func RemovePreset(path string) error {
	FileLock.Lock()
	defer FileLock.Unlock()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(aurcorerr.ErrIO, err.Error())
	}
	return nil
}

// RenamePreset renames a preset file under the exclusive lock.
func RenamePreset(oldPath, newPath string) error {
	FileLock.Lock()
	defer FileLock.Unlock()
	if err := os.Rename(oldPath, newPath); err != nil {
		return errors.Wrap(aurcorerr.ErrIO, err.Error())
	}
	return nil
}

func SaveProfile(path string, entries []color.Entry) error {
	FileLock.Lock()
	defer FileLock.Unlock()
	out := make([]ProfileEntryFile, len(entries))
	for i, e := range entries {
		out[i] = ProfileEntryFile{Index: e.Index, RGB: [3]uint8{e.Color.R, e.Color.G, e.Color.B}}
	}
	data, err := cbor.Marshal(out)
	if err != nil {
		return errors.Wrap(aurcorerr.ErrIO, err.Error())
	}
	return atomicWrite(path, data)
}

func LoadProfile(path string) (*color.Profile, error) {
	FileLock.RLock()
	defer FileLock.RUnlock()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(aurcorerr.ErrIO, err.Error())
	}
	var entries []ProfileEntryFile
	if err := cbor.Unmarshal(data, &entries); err != nil {
		return nil, aurcorerr.ErrParse
	}
	p := color.NewProfile()
	for _, e := range entries {
		p.Set(e.Index, color.RGB{R: e.RGB[0], G: e.RGB[1], B: e.RGB[2]})
	}
	return p, nil
}
