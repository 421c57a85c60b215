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

// valueStack is the shared LIFO operand stack. Arguments flow down into
// calls and results flow back up across call frames, so there is exactly
// one valueStack per vm, not one per frame.
type valueStack struct {
	data []value
}

func newValueStack() *valueStack {
	return &valueStack{data: make([]value, 0, 512)}
}

func (s *valueStack) size() uint { return uint(len(s.data)) }

func (s *valueStack) pushInt32(v int32)     { s.data = append(s.data, i32(v)) }
func (s *valueStack) pushInt64(v int64)     { s.data = append(s.data, i64(v)) }
func (s *valueStack) pushFloat32(v float32) { s.data = append(s.data, f32(v)) }
func (s *valueStack) pushFloat64(v float64) { s.data = append(s.data, f64(v)) }

func (s *valueStack) pushAny(v any) error {
	tv, ok := typedValueFromAny(v)
	if !ok {
		return interpErrorf("cannot push value of type %T onto the operand stack", v)
	}
	s.data = append(s.data, tv.v)
	return nil
}

// drop discards the top value without inspecting its type.
func (s *valueStack) drop() error {
	if len(s.data) == 0 {
		return interpErrorf("drop on an empty operand stack")
	}
	s.data = s.data[:len(s.data)-1]
	return nil
}

// pop returns the raw top-of-stack value with no type assertion.
func (s *valueStack) pop() (value, error) {
	n := len(s.data)
	if n == 0 {
		return value{}, interpErrorf("pop on an empty operand stack")
	}
	v := s.data[n-1]
	s.data = s.data[:n-1]
	return v, nil
}

func (s *valueStack) peek() (value, error) {
	n := len(s.data)
	if n == 0 {
		return value{}, interpErrorf("peek on an empty operand stack")
	}
	return s.data[n-1], nil
}

func (s *valueStack) popInt32() (int32, error) {
	v, err := s.pop()
	if err != nil {
		return 0, err
	}
	return v.int32(), nil
}

func (s *valueStack) popInt64() (int64, error) {
	v, err := s.pop()
	if err != nil {
		return 0, err
	}
	return v.int64(), nil
}

func (s *valueStack) popFloat32() (float32, error) {
	v, err := s.pop()
	if err != nil {
		return 0, err
	}
	return v.float32(), nil
}

func (s *valueStack) popFloat64() (float64, error) {
	v, err := s.pop()
	if err != nil {
		return 0, err
	}
	return v.float64(), nil
}

// popN pops n raw values, returning them in original (bottom-to-top)
// order — the order WASM parameters are declared in, since they were
// pushed left-to-right and must be popped right-to-left.
func (s *valueStack) popN(n int) ([]value, error) {
	if len(s.data) < n {
		return nil, interpErrorf("cannot pop %d values from a stack of size %d", n, len(s.data))
	}
	newLen := len(s.data) - n
	popped := make([]value, n)
	copy(popped, s.data[newLen:])
	s.data = s.data[:newLen]
	return popped, nil
}

// popTyped pops n values and boxes them according to types (in
// declaration order), used to pull declared results off the stack after a
// call returns.
func (s *valueStack) popTyped(types []ValueType) ([]TypedValue, error) {
	raw, err := s.popN(len(types))
	if err != nil {
		return nil, err
	}
	out := make([]TypedValue, len(types))
	for i, t := range types {
		out[i] = TypedValue{Type: t, v: raw[i]}
	}
	return out, nil
}

// unwind implements the stack-truncation half of a structured branch
// (spec.md §4.4.3): it keeps the top preserveCount values, drops
// everything above targetHeight, then re-pushes the preserved values.
func (s *valueStack) unwind(targetHeight uint, preserveCount uint) error {
	if uint(len(s.data)) < preserveCount {
		return interpErrorf("not enough operands to preserve across a branch")
	}
	preserved := make([]value, preserveCount)
	copy(preserved, s.data[uint(len(s.data))-preserveCount:])
	if targetHeight > uint(len(s.data)) {
		return interpErrorf("branch target height exceeds current stack size")
	}
	s.data = append(s.data[:targetHeight], preserved...)
	return nil
}
