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
	"encoding/binary"
	"math"
)

// moduleBuilder hand-assembles minimal WASM binaries for tests, without
// shelling out to wat2wasm.
type moduleBuilder struct {
	types    [][]byte
	funcs    []uint32 // type index per function
	codes    [][]byte
	exports  []byte
	numExp   int
	tables   []byte
	numTable int
	elems    []byte
	numElems int
	mems     []byte
	numMems  int
	datas    []byte
	numDatas int
	imports  []byte
	numImp   int
	start    *uint32
}

func newModuleBuilder() *moduleBuilder { return &moduleBuilder{} }

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}

func sleb32(v int32) []byte {
	return sleb64(int64(v))
}

func sleb64(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), []byte(s)...)
}

func section(id SectionID, payload []byte) []byte {
	out := []byte{byte(id)}
	out = append(out, uleb(uint32(len(payload)))...)
	return append(out, payload...)
}

// funcType encodes a function type: params..., then results (0 or 1).
func funcType(params []ValueType, results ...ValueType) []byte {
	out := []byte{0x60}
	out = append(out, uleb(uint32(len(params)))...)
	for _, p := range params {
		out = append(out, byte(p))
	}
	out = append(out, uleb(uint32(len(results)))...)
	for _, r := range results {
		out = append(out, byte(r))
	}
	return out
}

func (b *moduleBuilder) addType(params []ValueType, results ...ValueType) uint32 {
	b.types = append(b.types, funcType(params, results...))
	return uint32(len(b.types) - 1)
}

// addFunc registers a function of typeIdx with the given locals and raw
// body bytes (NOT including the terminating end, which is appended here).
func (b *moduleBuilder) addFunc(typeIdx uint32, locals []ValueType, body []byte) uint32 {
	b.funcs = append(b.funcs, typeIdx)
	code := vec(localRunsFor(locals)...)
	code = append(code, body...)
	code = append(code, byte(opEnd))
	sized := append(uleb(uint32(len(code))), code...)
	b.codes = append(b.codes, sized)
	return uint32(len(b.funcs) - 1 + b.numImp)
}

func localRunsFor(locals []ValueType) [][]byte {
	var runs [][]byte
	for _, t := range locals {
		run := append(uleb(1), byte(t))
		runs = append(runs, run)
	}
	return runs
}

func (b *moduleBuilder) exportFunc(n string, idx uint32) {
	b.exports = append(b.exports, name(n)...)
	b.exports = append(b.exports, byte(FunctionImport))
	b.exports = append(b.exports, uleb(idx)...)
	b.numExp++
}

func (b *moduleBuilder) exportMemory(n string, idx uint32) {
	b.exports = append(b.exports, name(n)...)
	b.exports = append(b.exports, byte(MemoryImport))
	b.exports = append(b.exports, uleb(idx)...)
	b.numExp++
}

func (b *moduleBuilder) addTable(min uint32) uint32 {
	b.tables = append(b.tables, 0x70, 0x00)
	b.tables = append(b.tables, uleb(min)...)
	b.numTable++
	return uint32(b.numTable - 1)
}

func (b *moduleBuilder) addElemSegment(offset int32, funcIndices []uint32) {
	seg := uleb(0) // flags: active, table 0
	seg = append(seg, byte(opI32Const))
	seg = append(seg, sleb32(offset)...)
	seg = append(seg, byte(opEnd))
	idxVec := make([][]byte, len(funcIndices))
	for i, idx := range funcIndices {
		idxVec[i] = uleb(idx)
	}
	seg = append(seg, vec(idxVec...)...)
	b.elems = append(b.elems, seg...)
	b.numElems++
}

func (b *moduleBuilder) addMemory(min uint32) uint32 {
	b.mems = append(b.mems, 0x00)
	b.mems = append(b.mems, uleb(min)...)
	b.numMems++
	return uint32(b.numMems - 1)
}

func (b *moduleBuilder) addDataSegment(offset int32, data []byte) {
	seg := uleb(0) // mode 0: active, memory 0
	seg = append(seg, byte(opI32Const))
	seg = append(seg, sleb32(offset)...)
	seg = append(seg, byte(opEnd))
	seg = append(seg, uleb(uint32(len(data)))...)
	seg = append(seg, data...)
	b.datas = append(b.datas, seg...)
	b.numDatas++
}

func (b *moduleBuilder) importFunc(modName, fieldName string, typeIdx uint32) uint32 {
	b.imports = append(b.imports, name(modName)...)
	b.imports = append(b.imports, name(fieldName)...)
	b.imports = append(b.imports, byte(FunctionImport))
	b.imports = append(b.imports, uleb(typeIdx)...)
	b.numImp++
	return uint32(b.numImp - 1)
}

func (b *moduleBuilder) setStart(idx uint32) { b.start = &idx }

func (b *moduleBuilder) build() []byte {
	out := []byte(wasmMagic)
	out = binary.LittleEndian.AppendUint32(out, supportedWasmVersion)

	if len(b.types) > 0 {
		out = append(out, section(typeSection, vec(b.types...))...)
	}
	if b.numImp > 0 {
		out = append(out, section(importSection, append(uleb(uint32(b.numImp)), b.imports...))...)
	}
	if len(b.funcs) > 0 {
		typeIdxBytes := make([][]byte, len(b.funcs))
		for i, t := range b.funcs {
			typeIdxBytes[i] = uleb(t)
		}
		out = append(out, section(functionSection, vec(typeIdxBytes...))...)
	}
	if b.numTable > 0 {
		out = append(out, section(tableSection, append(uleb(uint32(b.numTable)), b.tables...))...)
	}
	if b.numMems > 0 {
		out = append(out, section(memorySection, append(uleb(uint32(b.numMems)), b.mems...))...)
	}
	if b.numExp > 0 {
		out = append(out, section(exportSection, append(uleb(uint32(b.numExp)), b.exports...))...)
	}
	if b.start != nil {
		out = append(out, section(startSection, uleb(*b.start))...)
	}
	if b.numElems > 0 {
		out = append(out, section(elementSection, append(uleb(uint32(b.numElems)), b.elems...))...)
	}
	if len(b.codes) > 0 {
		payload := uleb(uint32(len(b.codes)))
		for _, c := range b.codes {
			payload = append(payload, c...)
		}
		out = append(out, section(codeSection, payload)...)
	}
	if b.numDatas > 0 {
		out = append(out, section(dataSection, append(uleb(uint32(b.numDatas)), b.datas...))...)
	}
	return out
}

// f32Bytes/f64Bytes encode an immediate float constant's little-endian
// payload, for tests that assemble f32.const/f64.const opcodes by hand.
func f32Bytes(v float32) []byte {
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))
}

func f64Bytes(v float64) []byte {
	return binary.LittleEndian.AppendUint64(nil, math.Float64bits(v))
}
