// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package epsilon

import "math"

// value is the internal 64-bit payload shared by all four number types. The
// tag living alongside it (on the operand stack, in a TypedValue, ...)
// determines how the bits are interpreted; value itself never checks.
type value struct {
	bits uint64
}

func i32(v int32) value { return value{bits: uint64(uint32(v))} }
func i64(v int64) value { return value{bits: uint64(v)} }
func f32(v float32) value {
	return value{bits: uint64(math.Float32bits(v))}
}
func f64(v float64) value { return value{bits: math.Float64bits(v)} }

func (v value) int32() int32     { return int32(uint32(v.bits)) }
func (v value) int64() int64     { return int64(v.bits) }
func (v value) float32() float32 { return math.Float32frombits(uint32(v.bits)) }
func (v value) float64() float64 { return math.Float64frombits(v.bits) }

func defaultValue(t ValueType) value {
	return value{}
}

// TypedValue is a (ValueType, payload) pair, the host-facing representation
// of a single WASM value. Its payload bits must match the declared tag.
type TypedValue struct {
	Type ValueType
	v    value
}

func NewI32(v int32) TypedValue     { return TypedValue{Type: I32, v: i32(v)} }
func NewI64(v int64) TypedValue     { return TypedValue{Type: I64, v: i64(v)} }
func NewF32(v float32) TypedValue   { return TypedValue{Type: F32, v: f32(v)} }
func NewF64(v float64) TypedValue   { return TypedValue{Type: F64, v: f64(v)} }

func (t TypedValue) I32() int32     { return t.v.int32() }
func (t TypedValue) I64() int64     { return t.v.int64() }
func (t TypedValue) F32() float32   { return t.v.float32() }
func (t TypedValue) F64() float64   { return t.v.float64() }

// Any returns the value boxed as its native Go type: int32, int64, float32,
// or float64.
func (t TypedValue) Any() any {
	switch t.Type {
	case I32:
		return t.v.int32()
	case I64:
		return t.v.int64()
	case F32:
		return t.v.float32()
	case F64:
		return t.v.float64()
	default:
		panic("unreachable")
	}
}

// typedValueFromAny boxes a native Go value (int32, int64, float32, float64)
// into a TypedValue, inferring the ValueType from its dynamic type.
func typedValueFromAny(v any) (TypedValue, bool) {
	switch val := v.(type) {
	case int32:
		return NewI32(val), true
	case int64:
		return NewI64(val), true
	case float32:
		return NewF32(val), true
	case float64:
		return NewF64(val), true
	default:
		return TypedValue{}, false
	}
}

func anyMatchesType(v any, t ValueType) bool {
	switch t {
	case I32:
		_, ok := v.(int32)
		return ok
	case I64:
		_, ok := v.(int64)
		return ok
	case F32:
		_, ok := v.(float32)
		return ok
	case F64:
		_, ok := v.(float64)
		return ok
	default:
		return false
	}
}
