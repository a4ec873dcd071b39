// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package aurcorerr defines the closed set of abstract error kinds shared
// across the engine core, and a priority-ordered Combine for callers (such
// as scriptconfig's container modify) that fold several results into one.
package aurcorerr

import "errors"

// Sentinel errors for the abstract kinds in spec.md §7. They are plain
// error values with no numeric order of their own; Combine ranks the
// combinable ones through the priority map below (see §4.4, §7).
var (
	// ErrOK is never returned; it exists so Combine has a zero value to
	// start folding from.
	ErrOK = errors.New("aurcorerr: ok")

	ErrFull       = errors.New("aurcorerr: full")
	ErrNotFound   = errors.New("aurcorerr: not found")
	ErrOutOfRange = errors.New("aurcorerr: out of range")
	ErrParse      = errors.New("aurcorerr: parse error")
	ErrIO         = errors.New("aurcorerr: io error")

	ErrAllocFailed   = errors.New("aurcorerr: pool allocation failed")
	ErrBusy          = errors.New("aurcorerr: bus busy")
	ErrConfigFull    = errors.New("aurcorerr: config size budget exceeded")
	ErrScriptFault   = errors.New("aurcorerr: uncaught script exception")
	ErrStopped       = errors.New("aurcorerr: operation on stopped object")
	ErrTypeMismatch  = errors.New("aurcorerr: type mismatch")
	ErrValueOutOfRng = errors.New("aurcorerr: value out of range")
)

// priority assigns each of the combinable §4.4/§7 results a rank; Combine
// keeps whichever of two errors has the higher rank. Errors outside this
// table (ErrAllocFailed, ErrBusy, ErrConfigFull, ErrScriptFault, ErrStopped,
// ErrTypeMismatch, ErrValueOutOfRng) are not combinable results and are
// returned as-is by Combine without ranking.
var priority = map[error]int{
	nil:           0,
	ErrFull:       1,
	ErrNotFound:   2,
	ErrOutOfRange: 3,
	ErrParse:      4,
	ErrIO:         5,
}

// Combine folds result into current, keeping whichever has the higher
// priority (IoError > ParseError > OutOfRange > NotFound > Full > OK), per
// spec.md §7. Both arguments must be nil or one of the five combinable
// sentinels above.
func Combine(current, result error) error {
	cp, ok := priority[current]
	if !ok {
		cp = -1
	}
	rp, ok := priority[result]
	if !ok {
		rp = -1
	}
	if rp > cp {
		return result
	}
	return current
}
