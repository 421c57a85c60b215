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

import "slices"

// ValueType classifies the values that WASM code computes with. The MVP
// subset this interpreter supports is the four number types plus a void
// marker used for block types with no result.
// See https://webassembly.github.io/spec/core/syntax/types.html#number-types.
type ValueType byte

const (
	I32  ValueType = 0x7F
	I64  ValueType = 0x7E
	F32  ValueType = 0x7D
	F64  ValueType = 0x7C
	Void ValueType = 0x40
)

func (t ValueType) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Void:
		return "void"
	default:
		return "invalid"
	}
}

func (t ValueType) valid() bool {
	switch t {
	case I32, I64, F32, F64:
		return true
	default:
		return false
	}
}

// FuncType classifies the signature of a function: an ordered list of
// parameter types mapped to an ordered list of result types. The MVP
// allows at most one result.
// See https://webassembly.github.io/spec/core/syntax/types.html#function-types.
type FuncType struct {
	Params  []ValueType
	Results []ValueType
}

func (ft *FuncType) Equal(other *FuncType) bool {
	if ft == other {
		return true
	}
	if ft == nil || other == nil {
		return false
	}
	return slices.Equal(ft.Params, other.Params) &&
		slices.Equal(ft.Results, other.Results)
}

// Limits define the min/max page or element constraints for memories and
// tables.
// See https://webassembly.github.io/spec/core/binary/types.html#limits
type Limits struct {
	Min uint32
	Max *uint32
}

func (l Limits) hasMax() bool { return l.Max != nil }
