// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package preset

import (
	"fmt"
	"path/filepath"

	"aurcor.io/x/aurcor/scriptconfig"
	"aurcor.io/x/aurcor/store"
)

// Path returns the on-disk path for preset name under dir, per spec.md
// §6's "/presets/<name>.cbor".
func Path(dir, name string) string {
	return filepath.Join(dir, name+".cbor")
}

// Load reads the preset file at path and applies it onto an otherwise
// freshly constructed Preset: script name/description/reverse flag, and
// any config entries whose key/type the script has already registered.
func Load(p *Preset, path string) error {
	pf, err := store.LoadPreset(path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.Description = pf.Desc
	p.ScriptName = pf.Script
	p.Reverse = pf.Reverse
	p.scriptChanged = true
	p.mu.Unlock()
	return store.ApplyConfig(p.Config, pf.Config)
}

// Save writes p's current state to path atomically.
func Save(p *Preset, path string) error {
	p.mu.Lock()
	desc, script, reverse := p.Description, p.ScriptName, p.Reverse
	p.mu.Unlock()

	entries, err := store.EncodeConfig(p.Config)
	if err != nil {
		return err
	}
	if err := store.SavePreset(path, store.PresetFile{
		Desc: desc, Script: script, Reverse: reverse, Config: entries,
	}); err != nil {
		return err
	}
	p.markSaved()
	return nil
}

// Rename moves a preset file from oldPath to newPath under the store's
// file-mutex discipline.
func Rename(oldPath, newPath string) error {
	return store.RenamePreset(oldPath, newPath)
}

// Remove deletes a preset file under the store's file-mutex discipline.
func Remove(path string) error {
	return store.RemovePreset(path)
}

// RegisterProperties forwards to the bound ScriptConfig, wrapping the
// error with the preset's name for diagnostics.
func (p *Preset) RegisterProperties(descs []scriptconfig.Descriptor) error {
	if err := p.Config.RegisterProperties(descs); err != nil {
		return fmt.Errorf("preset %q: %w", p.Name, err)
	}
	return nil
}
