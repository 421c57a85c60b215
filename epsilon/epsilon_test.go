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

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddI32I32ReturnsI32(t *testing.T) {
	b := newModuleBuilder()
	ft := b.addType([]ValueType{I32, I32}, I32)
	fn := b.addFunc(ft, nil, []byte{
		byte(opLocalGet), 0,
		byte(opLocalGet), 1,
		byte(opI32Add),
	})
	b.exportFunc("add", fn)

	inst, err := NewRuntime().InstantiateModuleFromBytes(b.build())
	require.NoError(t, err)

	results, err := inst.Call("add", NewI32(2), NewI32(3))
	require.NoError(t, err)
	require.Equal(t, int32(5), results[0].I32())
}

func TestLoopSumsOneToFive(t *testing.T) {
	b := newModuleBuilder()
	ft := b.addType(nil, I32)
	// locals: 0=sum, 1=i
	body := []byte{
		byte(opI32Const), 0x01, // i = 1
		byte(opLocalSet), 1,
		byte(opLoop), byte(Void),
		byte(opLocalGet), 0,
		byte(opLocalGet), 1,
		byte(opI32Add),
		byte(opLocalSet), 0,
		byte(opLocalGet), 1,
		byte(opI32Const), 0x01,
		byte(opI32Add),
		byte(opLocalSet), 1,
		byte(opLocalGet), 1,
		byte(opI32Const), 0x06,
		byte(opI32LtS),
		byte(opBrIf), 0x00,
		byte(opEnd),
		byte(opLocalGet), 0,
	}
	fn := b.addFunc(ft, []ValueType{I32, I32}, body)
	b.exportFunc("sum", fn)

	inst, err := NewRuntime().InstantiateModuleFromBytes(b.build())
	require.NoError(t, err)

	results, err := inst.Call("sum")
	require.NoError(t, err)
	require.Equal(t, int32(15), results[0].I32())
}

func TestDivSTrapsOnMinInt32OverNegOne(t *testing.T) {
	b := newModuleBuilder()
	ft := b.addType([]ValueType{I32, I32}, I32)
	fn := b.addFunc(ft, nil, []byte{
		byte(opLocalGet), 0,
		byte(opLocalGet), 1,
		byte(opI32DivS),
	})
	b.exportFunc("div", fn)

	inst, err := NewRuntime().InstantiateModuleFromBytes(b.build())
	require.NoError(t, err)

	_, err = inst.Call("div", NewI32(math.MinInt32), NewI32(-1))
	require.Error(t, err)
	var tr *Trap
	require.ErrorAs(t, err, &tr)
	require.ErrorIs(t, err, ErrIntegerOverflow)
}

func TestF32SqrtOfFourAndNegativeOne(t *testing.T) {
	b := newModuleBuilder()
	ft := b.addType([]ValueType{F32}, F32)
	fn := b.addFunc(ft, nil, []byte{
		byte(opLocalGet), 0,
		byte(opF32Sqrt),
	})
	b.exportFunc("sqrt", fn)

	inst, err := NewRuntime().InstantiateModuleFromBytes(b.build())
	require.NoError(t, err)

	results, err := inst.Call("sqrt", NewF32(4.0))
	require.NoError(t, err)
	require.InDelta(t, float32(2.0), results[0].F32(), 0.0001)

	results, err = inst.Call("sqrt", NewF32(-1.0))
	require.NoError(t, err)
	require.True(t, math.IsNaN(float64(results[0].F32())))
}

func TestDataSegmentAndI32Load8U(t *testing.T) {
	b := newModuleBuilder()
	b.addMemory(1)
	b.addDataSegment(0, []byte("Hello"))

	ft := b.addType([]ValueType{I32}, I32)
	fn := b.addFunc(ft, nil, []byte{
		byte(opLocalGet), 0,
		byte(opI32Load8U), 0x00, 0x00, // align=0, offset=0
	})
	b.exportFunc("byteAt", fn)
	b.exportMemory("mem", 0)

	inst, err := NewRuntime().InstantiateModuleFromBytes(b.build())
	require.NoError(t, err)

	results, err := inst.Call("byteAt", NewI32(0))
	require.NoError(t, err)
	require.Equal(t, int32('H'), results[0].I32())

	results, err = inst.Call("byteAt", NewI32(4))
	require.NoError(t, err)
	require.Equal(t, int32('o'), results[0].I32())
}

func TestCallIndirectAgainstTableOfTwoFunctions(t *testing.T) {
	b := newModuleBuilder()
	ft := b.addType([]ValueType{I32}, I32)

	inc := b.addFunc(ft, nil, []byte{
		byte(opLocalGet), 0,
		byte(opI32Const), 0x01,
		byte(opI32Add),
	})
	dec := b.addFunc(ft, nil, []byte{
		byte(opLocalGet), 0,
		byte(opI32Const), 0x01,
		byte(opI32Sub),
	})

	b.addTable(2)
	b.addElemSegment(0, []uint32{inc, dec})

	callerType := b.addType([]ValueType{I32, I32}, I32)
	caller := b.addFunc(callerType, nil, []byte{
		byte(opLocalGet), 0,
		byte(opLocalGet), 1,
		byte(opCallIndirect), byte(ft), 0x00,
	})
	b.exportFunc("invoke", caller)

	inst, err := NewRuntime().InstantiateModuleFromBytes(b.build())
	require.NoError(t, err)

	results, err := inst.Call("invoke", NewI32(10), NewI32(0))
	require.NoError(t, err)
	require.Equal(t, int32(11), results[0].I32())

	results, err = inst.Call("invoke", NewI32(10), NewI32(1))
	require.NoError(t, err)
	require.Equal(t, int32(9), results[0].I32())

	_, err = inst.Call("invoke", NewI32(10), NewI32(7))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUndefinedElement)
}
