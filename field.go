// field.go: typed structured-logging field values
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package ttlog

// kind identifies which union member of a Field holds the value.
type kind uint8

const (
	kindBool kind = iota + 1
	kindInt8
	kindInt16
	kindInt32
	kindInt64
	kindUint8
	kindUint16
	kindUint32
	kindUint64
	kindFloat32
	kindFloat64
	kindString
)

// Field is a single structured key/value pair attached to a log call. It
// uses a union-like layout so that constructing one never allocates: scalar
// values live in I64/U64/F64, strings live in Str (interned at event-build
// time, not here).
//
// Only the value types spec'd for LogEvent fields are representable: bool,
// signed/unsigned 8/16/32/64-bit integers, float32/float64, and string.
type Field struct {
	K   string
	T   kind
	I64 int64
	U64 uint64
	F64 float64
	Str string
}

// Key returns the field's key name.
func (f Field) Key() string { return f.K }

// Bool creates a boolean field.
func Bool(k string, v bool) Field {
	var i int64
	if v {
		i = 1
	}
	return Field{K: k, T: kindBool, I64: i}
}

// Int8 creates a signed 8-bit integer field.
func Int8(k string, v int8) Field { return Field{K: k, T: kindInt8, I64: int64(v)} }

// Int16 creates a signed 16-bit integer field.
func Int16(k string, v int16) Field { return Field{K: k, T: kindInt16, I64: int64(v)} }

// Int32 creates a signed 32-bit integer field.
func Int32(k string, v int32) Field { return Field{K: k, T: kindInt32, I64: int64(v)} }

// Int64 creates a signed 64-bit integer field.
func Int64(k string, v int64) Field { return Field{K: k, T: kindInt64, I64: v} }

// Int creates a signed integer field from a platform int.
func Int(k string, v int) Field { return Int64(k, int64(v)) }

// Uint8 creates an unsigned 8-bit integer field.
func Uint8(k string, v uint8) Field { return Field{K: k, T: kindUint8, U64: uint64(v)} }

// Uint16 creates an unsigned 16-bit integer field.
func Uint16(k string, v uint16) Field { return Field{K: k, T: kindUint16, U64: uint64(v)} }

// Uint32 creates an unsigned 32-bit integer field.
func Uint32(k string, v uint32) Field { return Field{K: k, T: kindUint32, U64: uint64(v)} }

// Uint64 creates an unsigned 64-bit integer field.
func Uint64(k string, v uint64) Field { return Field{K: k, T: kindUint64, U64: v} }

// Uint creates an unsigned integer field from a platform uint.
func Uint(k string, v uint) Field { return Uint64(k, uint64(v)) }

// Float32 creates a 32-bit floating-point field.
func Float32(k string, v float32) Field { return Field{K: k, T: kindFloat32, F64: float64(v)} }

// Float64 creates a 64-bit floating-point field.
func Float64(k string, v float64) Field { return Field{K: k, T: kindFloat64, F64: v} }

// Str creates a string field. The value is interned into the field-key
// namespace when the event is built (see intern.go).
func Str(k, v string) Field { return Field{K: k, T: kindString, Str: v} }

// String is an alias for Str matching common Go logging-library naming.
func String(k, v string) Field { return Str(k, v) }
