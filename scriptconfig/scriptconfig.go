// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package scriptconfig implements the typed, size-bounded key/value
// store from spec.md §4.4, grounded on
// original_source/src/aurcor/script_config.h and script_config.cpp.
//
// Sets (Type Set*) are backed by github.com/deckarep/golang-set/v2,
// iterated in sorted order on every read to satisfy the "sorted-unique
// for sets" invariant in spec.md §3.
package scriptconfig

import (
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"aurcor.io/x/aurcor/aurcorerr"
)

// Type is the closed set of property type tags from spec.md §4.4.
type Type int

const (
	Bool Type = iota
	S32
	RGB
	Float
	Profile
	ListU16
	ListS32
	ListRGB
	SetU16
	SetS32
	SetRGB
	invalid
)

const (
	MaxKeyLength   = 48
	MaxDefaults    = 1024 * 8 // MAX_DEFAULTS_SIZE: 1024 * sizeof(uintptr_t), sizeof(uintptr_t)=8 on esp32/LP64 reference
	MaxValuesSize  = 1024 * 8
	elementRounded = 16 // rounded_sizeof<Property> approximation for size accounting
)

// ContainerOp is the operation applied by Modify to a collection
// property, per spec.md §4.4.
type ContainerOp int

const (
	OpAdd ContainerOp = iota
	OpDelValue
	OpDelPosition
	OpMovePosition
	OpCopyPosition
	OpSetPosition
)

// property holds the registered/default/value triple for one key. Only
// one of the typed fields is meaningful, selected by typ.
type property struct {
	typ        Type
	registered bool

	hasDefaultBool bool
	defaultBool    bool
	hasValueBool   bool
	valueBool      bool

	hasDefaultS32 bool
	defaultS32    int32
	hasValueS32   bool
	valueS32      int32

	hasDefaultFloat bool
	defaultFloat    float64
	hasValueFloat   bool
	valueFloat      float64

	defaultList []int64 // LIST_* defaults, insertion order
	valueList   []int64 // LIST_* values, insertion order

	defaultSet mapset.Set[int64] // SET_*
	valueSet   mapset.Set[int64]
}

func newProperty(typ Type, registered bool) *property {
	return &property{typ: typ, registered: registered}
}

func (p *property) isCollection() bool {
	switch p.typ {
	case ListU16, ListS32, ListRGB, SetU16, SetS32, SetRGB:
		return true
	}
	return false
}

func (p *property) isSet() bool {
	switch p.typ {
	case SetU16, SetS32, SetRGB:
		return true
	}
	return false
}

func (p *property) hasDefault() bool {
	switch p.typ {
	case Bool:
		return p.hasDefaultBool
	case S32, RGB, Profile:
		return p.hasDefaultS32
	case Float:
		return p.hasDefaultFloat
	case ListU16, ListS32, ListRGB:
		return len(p.defaultList) > 0
	case SetU16, SetS32, SetRGB:
		return p.defaultSet != nil && p.defaultSet.Cardinality() > 0
	}
	return false
}

func (p *property) hasValue() bool {
	switch p.typ {
	case Bool:
		return p.hasValueBool
	case S32, RGB, Profile:
		return p.hasValueS32
	case Float:
		return p.hasValueFloat
	case ListU16, ListS32, ListRGB:
		return len(p.valueList) > 0
	case SetU16, SetS32, SetRGB:
		return p.valueSet != nil && p.valueSet.Cardinality() > 0
	}
	return false
}

func (p *property) clearDefault() {
	p.hasDefaultBool = false
	p.hasDefaultS32 = false
	p.hasDefaultFloat = false
	p.defaultList = nil
	if p.defaultSet != nil {
		p.defaultSet.Clear()
	}
}

func (p *property) clearValue() bool {
	p.hasValueBool = false
	p.hasValueS32 = false
	p.hasValueFloat = false
	p.valueList = nil
	if p.valueSet != nil {
		p.valueSet.Clear()
	}
	return p.registered
}

// size estimates the in-memory/on-disk footprint of either the default
// or the value side, used to enforce MaxDefaults/MaxValuesSize.
func (p *property) size(values bool) int {
	base := elementRounded
	switch p.typ {
	case ListU16, ListS32, ListRGB:
		n := len(p.defaultList)
		if values {
			n = len(p.valueList)
		}
		return base + n*8
	case SetU16, SetS32, SetRGB:
		s := p.defaultSet
		if values {
			s = p.valueSet
		}
		n := 0
		if s != nil {
			n = s.Cardinality()
		}
		return base + n*8
	}
	return base
}

// Config is a ScriptConfig: a registered-keys store mutated by the
// operator and read by the running script.
type Config struct {
	props map[string]*property

	defaultsSize int
	valuesSize   int

	changed bool // set by any mutation since the last PopulateDict call
}

// New returns an empty config.
func New() *Config {
	return &Config{props: make(map[string]*property)}
}

// Descriptor is what a script passes to RegisterProperties: the
// declared type and default for one key.
type Descriptor struct {
	Key     string
	Type    Type
	Default interface{}
}

// allowedKey implements the safe-filename predicate referenced by
// spec.md §4.4 ("Keys must satisfy the safe-filename predicate"),
// grounded on allowed_file_name in original_source/src/util.cpp.
func allowedKey(key string) bool {
	if key == "" || len(key) > MaxKeyLength {
		return false
	}
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '+' || c == ',' || c == '-' || c == '.':
		case c == '_':
		default:
			return false
		}
	}
	return true
}

// RegisterProperties implements §4.4 register_properties: a key missing
// from descs (or whose type changed) loses its default and its
// registered status, but is only actually erased if it also has no
// operator-set value — an unregistered, valued property survives so a
// script that conditionally omits a previously-declared key doesn't
// silently wipe what the operator configured, grounded on
// original_source/src/script_config.cpp's register_properties, which
// erases a dropped property only when clear_default's return (really
// has_value()) says it's otherwise empty. It then re-ingests new
// defaults for descs, enforcing the size budget incrementally so an
// overflow on one key does not leave that key partially populated.
func (c *Config) RegisterProperties(descs []Descriptor) error {
	declared := make(map[string]bool, len(descs))
	for _, d := range descs {
		declared[d.Key] = true
	}

	for key, p := range c.props {
		if !declared[key] {
			c.defaultsSize -= p.size(false)
			p.clearDefault()
			p.registered = false
			if !p.hasValue() {
				delete(c.props, key)
			}
			continue
		}
	}

	for _, d := range descs {
		existing, ok := c.props[d.Key]
		if ok && existing.typ != d.Type {
			c.defaultsSize -= existing.size(false)
			delete(c.props, d.Key)
			ok = false
		}
		if !ok {
			if !allowedKey(d.Key) {
				continue
			}
			existing = newProperty(d.Type, true)
			c.props[d.Key] = existing
		} else {
			c.defaultsSize -= existing.size(false)
			existing.clearDefault()
			existing.registered = true
		}

		if err := setDefault(existing, d.Default); err != nil {
			delete(c.props, d.Key)
			continue
		}

		added := existing.size(false)
		if c.defaultsSize+added > MaxDefaults {
			delete(c.props, d.Key)
			return aurcorerr.ErrConfigFull
		}
		c.defaultsSize += added
	}

	c.changed = true
	return nil
}

func setDefault(p *property, v interface{}) error {
	switch p.typ {
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return aurcorerr.ErrTypeMismatch
		}
		p.defaultBool, p.hasDefaultBool = b, true
	case S32, RGB, Profile:
		i, ok := toInt32(v)
		if !ok {
			return aurcorerr.ErrTypeMismatch
		}
		p.defaultS32, p.hasDefaultS32 = i, true
	case Float:
		f, ok := toFloat(v)
		if !ok {
			return aurcorerr.ErrTypeMismatch
		}
		p.defaultFloat, p.hasDefaultFloat = f, true
	case ListU16, ListS32, ListRGB:
		l, ok := v.([]int64)
		if !ok {
			return aurcorerr.ErrTypeMismatch
		}
		p.defaultList = append([]int64(nil), l...)
	case SetU16, SetS32, SetRGB:
		l, ok := v.([]int64)
		if !ok {
			return aurcorerr.ErrTypeMismatch
		}
		p.defaultSet = mapset.NewSet(l...)
	}
	return nil
}

func toInt32(v interface{}) (int32, bool) {
	switch n := v.(type) {
	case int32:
		return n, true
	case int:
		return int32(n), true
	case int64:
		return int32(n), true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

// Value returns the effective value of key: value if set, else default,
// else the type's zero value, per spec.md §4.4's accessor invariant.
// ok is false if the key isn't stored at all; a key the script no
// longer registers but that still holds an operator value is returned.
func (c *Config) Value(key string) (interface{}, bool) {
	p, ok := c.props[key]
	if !ok {
		return nil, false
	}
	switch p.typ {
	case Bool:
		if p.hasValueBool {
			return p.valueBool, true
		}
		return p.defaultBool, true
	case S32, RGB, Profile:
		if p.hasValueS32 {
			return p.valueS32, true
		}
		return p.defaultS32, true
	case Float:
		if p.hasValueFloat {
			return p.valueFloat, true
		}
		return p.defaultFloat, true
	case ListU16, ListS32, ListRGB:
		if len(p.valueList) > 0 {
			return append([]int64(nil), p.valueList...), true
		}
		return append([]int64(nil), p.defaultList...), true
	case SetU16, SetS32, SetRGB:
		s := p.defaultSet
		if p.valueSet != nil && p.valueSet.Cardinality() > 0 {
			s = p.valueSet
		}
		return sortedSet(s), true
	}
	return nil, false
}

func sortedSet(s mapset.Set[int64]) []int64 {
	if s == nil {
		return nil
	}
	out := s.ToSlice()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PopulateDict reports whether anything observable has changed since
// the last call, matching populate_dict's boolean return in spec.md
// §4.4. It writes no values anywhere; scripts read values through
// Value.
func (c *Config) PopulateDict() bool {
	changed := c.changed
	c.changed = false
	return changed
}

// Keys returns the registered keys whose type is in types (or all keys
// if types is empty), sorted.
func (c *Config) Keys(types ...Type) []string {
	var filter map[Type]bool
	if len(types) > 0 {
		filter = make(map[Type]bool, len(types))
		for _, t := range types {
			filter[t] = true
		}
	}
	var keys []string
	for k, p := range c.props {
		if filter != nil && !filter[p.typ] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KeyType returns the type of key, or invalid with ok=false.
func (c *Config) KeyType(key string) (Type, bool) {
	p, ok := c.props[key]
	if !ok {
		return invalid, false
	}
	return p.typ, true
}

// Set implements the scalar "set" mutation: sets key's operator value.
func (c *Config) Set(key string, value interface{}) error {
	p, ok := c.props[key]
	if !ok {
		return aurcorerr.ErrNotFound
	}
	if p.isCollection() {
		return aurcorerr.ErrTypeMismatch
	}

	oldSize := p.size(true)
	switch p.typ {
	case Bool:
		b, ok := value.(bool)
		if !ok {
			return aurcorerr.ErrParse
		}
		p.valueBool, p.hasValueBool = b, true
	case S32, RGB, Profile:
		i, ok := toInt32(value)
		if !ok {
			return aurcorerr.ErrParse
		}
		p.valueS32, p.hasValueS32 = i, true
	case Float:
		f, ok := toFloat(value)
		if !ok {
			return aurcorerr.ErrParse
		}
		p.valueFloat, p.hasValueFloat = f, true
	}
	if err := c.chargeValues(p.size(true) - oldSize); err != nil {
		return err
	}
	c.changed = true
	return nil
}

// Unset clears key's operator value, falling back to the default.
func (c *Config) Unset(key string) error {
	p, ok := c.props[key]
	if !ok {
		return aurcorerr.ErrNotFound
	}
	c.valuesSize -= p.size(true)
	p.clearValue()
	c.changed = true
	return nil
}

func (c *Config) chargeValues(delta int) error {
	if c.valuesSize+delta > MaxValuesSize {
		return aurcorerr.ErrConfigFull
	}
	c.valuesSize += delta
	return nil
}

// Modify applies a collection ContainerOp to key's value-side
// collection, per spec.md §4.4. idx1/idx2 are 0-based positions used by
// DEL_POSITION/MOVE_POSITION/COPY_POSITION/SET_POSITION.
func (c *Config) Modify(key string, value string, op ContainerOp, idx1, idx2 int) error {
	p, ok := c.props[key]
	if !ok {
		return aurcorerr.ErrNotFound
	}
	if !p.isCollection() {
		return aurcorerr.ErrTypeMismatch
	}

	parsed, err := parseElement(p.typ, value)
	if err != nil && op == OpAdd {
		return aurcorerr.ErrParse
	}

	oldSize := p.size(true)
	var modErr error
	if p.isSet() {
		modErr = c.modifySet(p, parsed, op, idx1)
	} else {
		modErr = c.modifyList(p, parsed, op, idx1, idx2)
	}
	if modErr != nil {
		return modErr
	}

	if err := c.chargeValues(p.size(true) - oldSize); err != nil {
		return err
	}
	c.changed = true
	return nil
}

func (c *Config) modifySet(p *property, value int64, op ContainerOp, idx1 int) error {
	if p.valueSet == nil {
		p.valueSet = mapset.NewSet[int64]()
	}
	switch op {
	case OpAdd:
		p.valueSet.Add(value)
	case OpDelValue:
		if !p.valueSet.Contains(value) {
			return aurcorerr.ErrNotFound
		}
		p.valueSet.Remove(value)
	case OpDelPosition:
		sorted := sortedSet(p.valueSet)
		if idx1 < 0 || idx1 >= len(sorted) {
			return aurcorerr.ErrOutOfRange
		}
		p.valueSet.Remove(sorted[idx1])
	default:
		return aurcorerr.ErrTypeMismatch // sets have no positional order to move/copy/set
	}
	return nil
}

func (c *Config) modifyList(p *property, value int64, op ContainerOp, idx1, idx2 int) error {
	list := p.valueList
	switch op {
	case OpAdd:
		if idx1 > 0 && idx1 <= len(list) {
			list = append(list[:idx1], append([]int64{value}, list[idx1:]...)...)
		} else {
			list = append(list, value)
		}
	case OpDelValue:
		found := -1
		for i, v := range list {
			if v == value {
				found = i
				break
			}
		}
		if found == -1 {
			return aurcorerr.ErrNotFound
		}
		list = append(list[:found], list[found+1:]...)
	case OpDelPosition:
		if idx1 < 0 || idx1 >= len(list) {
			return aurcorerr.ErrOutOfRange
		}
		list = append(list[:idx1], list[idx1+1:]...)
	case OpMovePosition:
		if idx1 < 0 || idx1 >= len(list) || idx2 < 0 || idx2 >= len(list) {
			return aurcorerr.ErrOutOfRange
		}
		v := list[idx1]
		list = append(list[:idx1], list[idx1+1:]...)
		list = append(list[:idx2], append([]int64{v}, list[idx2:]...)...)
	case OpCopyPosition:
		if idx1 < 0 || idx1 >= len(list) || idx2 < 0 || idx2 > len(list) {
			return aurcorerr.ErrOutOfRange
		}
		v := list[idx1]
		list = append(list[:idx2], append([]int64{v}, list[idx2:]...)...)
	case OpSetPosition:
		if idx1 < 0 || idx1 >= len(list) {
			return aurcorerr.ErrOutOfRange
		}
		list[idx1] = value
	}
	p.valueList = list
	return nil
}

func parseElement(typ Type, value string) (int64, error) {
	value = strings.TrimSpace(value)
	switch typ {
	case ListRGB, SetRGB:
		return parseRGBText(value)
	default:
		var neg bool
		s := value
		if strings.HasPrefix(s, "-") {
			neg = true
			s = s[1:]
		}
		var n int64
		if s == "" {
			return 0, aurcorerr.ErrParse
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return 0, aurcorerr.ErrParse
			}
			n = n*10 + int64(r-'0')
		}
		if neg {
			n = -n
		}
		return n, nil
	}
}

func parseRGBText(value string) (int64, error) {
	value = strings.TrimPrefix(value, "#")
	value = strings.TrimPrefix(value, "0x")
	if len(value) != 6 {
		return 0, aurcorerr.ErrParse
	}
	var n int64
	for _, r := range value {
		n <<= 4
		switch {
		case r >= '0' && r <= '9':
			n |= int64(r - '0')
		case r >= 'a' && r <= 'f':
			n |= int64(r-'a') + 10
		case r >= 'A' && r <= 'F':
			n |= int64(r-'A') + 10
		default:
			return 0, aurcorerr.ErrParse
		}
	}
	return n, nil
}

// Clear drops all registered properties.
func (c *Config) Clear() {
	c.props = make(map[string]*property)
	c.defaultsSize = 0
	c.valuesSize = 0
	c.changed = true
}

// Cleanup drops properties that are registered=false and have neither a
// default nor a value (i.e. pure leftovers from a prior run whose
// script no longer declares them and whose operator value has also been
// cleared).
func (c *Config) Cleanup() bool {
	removedAny := false
	for key, p := range c.props {
		if !p.registered && !p.hasDefault() && !p.hasValue() {
			delete(c.props, key)
			removedAny = true
		}
	}
	return removedAny
}

// DefaultsSize / ValuesSize expose the running size totals for tests and
// diagnostics.
func (c *Config) DefaultsSize() int { return c.defaultsSize }
func (c *Config) ValuesSize() int   { return c.valuesSize }
