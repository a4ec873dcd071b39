// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pipeline implements the output pipeline from spec.md §4.8:
// it turns the heterogeneous values a script passes to output_rgb/
// output_hsv/output_exp_hsv/output_defaults into a wire-ready pixel
// buffer, applying rotate/reverse/repeat and the bus's LED profile,
// and returns the buffer to its caller, which hands it to the bus for
// transmission.
//
// ScriptValue is the tagged union named in spec.md §9's "Dynamic
// dispatch at the script boundary" design note: the engine package
// (decodeScriptValue in engine/script_api.go) builds one of these from
// whatever the sandboxed script passed, this package never touches the
// scripting runtime directly.
package pipeline

// ValueKind tags which branch of the ScriptValue union is populated.
type ValueKind int

const (
	KindInt ValueKind = iota
	KindFloat
	KindBytes
	KindArrayU8
	KindArrayU16
	KindArrayI16
	KindArrayI32
	KindArrayF32
	KindSequence
	KindIterator
	KindTuple1
	KindTuple2
	KindTuple3
)

// ScriptValue is one item or one whole `values` argument from the
// script boundary.
type ScriptValue struct {
	Kind ValueKind

	Int     int64
	Float   float64
	Bytes   []byte
	U8      []uint8
	U16     []uint16
	I16     []int16
	I32     []int32
	F32     []float32
	Seq     []ScriptValue
	Tuple   [3]ScriptValue // first Kind-{Tuple1,2,3} elements are meaningful

	// Next pulls the next element of an iterator-kind value; ok is false
	// at STOP_ITERATION.
	Next func() (ScriptValue, bool)
}

func Int(v int64) ScriptValue         { return ScriptValue{Kind: KindInt, Int: v} }
func Float(v float64) ScriptValue     { return ScriptValue{Kind: KindFloat, Float: v} }
func Bytes(v []byte) ScriptValue      { return ScriptValue{Kind: KindBytes, Bytes: v} }
func ArrayU8(v []uint8) ScriptValue   { return ScriptValue{Kind: KindArrayU8, U8: v} }
func ArrayU16(v []uint16) ScriptValue { return ScriptValue{Kind: KindArrayU16, U16: v} }
func ArrayI16(v []int16) ScriptValue  { return ScriptValue{Kind: KindArrayI16, I16: v} }
func ArrayI32(v []int32) ScriptValue  { return ScriptValue{Kind: KindArrayI32, I32: v} }
func ArrayF32(v []float32) ScriptValue {
	return ScriptValue{Kind: KindArrayF32, F32: v}
}
func Sequence(v []ScriptValue) ScriptValue {
	return ScriptValue{Kind: KindSequence, Seq: v}
}
func Iterator(next func() (ScriptValue, bool)) ScriptValue {
	return ScriptValue{Kind: KindIterator, Next: next}
}
func Tuple1(h ScriptValue) ScriptValue {
	return ScriptValue{Kind: KindTuple1, Tuple: [3]ScriptValue{h}}
}
func Tuple2(a, b ScriptValue) ScriptValue {
	return ScriptValue{Kind: KindTuple2, Tuple: [3]ScriptValue{a, b}}
}
func Tuple3(a, b, c ScriptValue) ScriptValue {
	return ScriptValue{Kind: KindTuple3, Tuple: [3]ScriptValue{a, b, c}}
}
