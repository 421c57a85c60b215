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
	"io"
	"math"
)

const (
	wasmMagic            = "\x00asm"
	supportedWasmVersion = uint32(1)

	// maxInitExpressionLen caps how many bytes a constant expression
	// (global init, data offset, element offset) may occupy before the
	// decoder gives up. It guards against pathological inputs that never
	// produce an `end`.
	maxInitExpressionLen = 1024
)

// SectionID identifies a top-level section of the binary format.
// See https://webassembly.github.io/spec/core/binary/modules.html#sections
type SectionID byte

const (
	customSection   SectionID = 0
	typeSection     SectionID = 1
	importSection   SectionID = 2
	functionSection SectionID = 3
	tableSection    SectionID = 4
	memorySection   SectionID = 5
	globalSection   SectionID = 6
	exportSection   SectionID = 7
	startSection    SectionID = 8
	elementSection  SectionID = 9
	codeSection     SectionID = 10
	dataSection     SectionID = 11
)

// cursor is a byte-slice reader that tracks the absolute offset for error
// reporting, per spec.md §4.3: "every decoder error carries the byte
// offset".
type cursor struct {
	data []byte
	pos  int
}

func newCursor(data []byte) *cursor { return &cursor{data: data} }

func (c *cursor) offset() int { return c.pos }

func (c *cursor) remaining() int { return len(c.data) - c.pos }

func (c *cursor) readByte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, io.ErrUnexpectedEOF
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) readBytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, io.ErrUnexpectedEOF
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) readU32LE() (uint32, error) {
	b, err := c.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) readF32() (float32, error) {
	b, err := c.readBytes(4)
	if err != nil {
		return 0, err
	}
	return float32FromBits(binary.LittleEndian.Uint32(b)), nil
}

func (c *cursor) readF64() (float64, error) {
	b, err := c.readBytes(8)
	if err != nil {
		return 0, err
	}
	return float64FromBits(binary.LittleEndian.Uint64(b)), nil
}

func (c *cursor) readName() (string, error) {
	n, err := c.readVaruint32()
	if err != nil {
		return "", err
	}
	b, err := c.readBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *cursor) readValueType() (ValueType, error) {
	b, err := c.readByte()
	if err != nil {
		return 0, err
	}
	vt := ValueType(b)
	if !vt.valid() {
		return 0, decodeErrorf(c.pos-1, "invalid value type 0x%x", b)
	}
	return vt, nil
}

func (c *cursor) readBlockType() (ValueType, error) {
	b, err := c.readByte()
	if err != nil {
		return 0, err
	}
	vt := ValueType(b)
	if vt == Void || vt.valid() {
		return vt, nil
	}
	return 0, decodeErrorf(c.pos-1, "invalid block type 0x%x", b)
}

func (c *cursor) readLimits() (Limits, error) {
	flag, err := c.readByte()
	if err != nil {
		return Limits{}, err
	}
	min, err := c.readVaruint32()
	if err != nil {
		return Limits{}, err
	}
	if flag&1 == 0 {
		return Limits{Min: min}, nil
	}
	max, err := c.readVaruint32()
	if err != nil {
		return Limits{}, err
	}
	return Limits{Min: min, Max: &max}, nil
}

// Decode parses a complete WASM binary into a Module. It is a streaming,
// single-pass parser: LEB128 integers, fixed-width floats, section
// headers, and vectors are each consumed exactly once.
func Decode(data []byte) (*Module, error) {
	c := newCursor(data)
	if err := c.readHeader(); err != nil {
		return nil, err
	}

	m := &Module{}
	var functionTypeIndices []uint32
	var sawCode bool

	for c.remaining() > 0 {
		idByte, err := c.readByte()
		if err != nil {
			return nil, decodeErrorf(c.offset(), "reading section id: %w", err)
		}
		id := SectionID(idByte)
		size, err := c.readVaruint32()
		if err != nil {
			return nil, decodeErrorf(c.offset(), "reading section size: %w", err)
		}
		sectionStart := c.pos
		sectionEnd := sectionStart + int(size)
		if sectionEnd > len(c.data) {
			return nil, decodeErrorf(c.offset(), "section overruns input: %w", ErrTruncatedInput)
		}

		switch id {
		case customSection:
			// Custom sections are skipped entirely.
		case typeSection:
			m.Types, err = decodeVector(c, decodeFuncType)
		case importSection:
			m.Imports, err = decodeVector(c, decodeImport)
		case functionSection:
			functionTypeIndices, err = decodeVector(c, (*cursor).readVaruint32)
		case tableSection:
			var tables []TableType
			tables, err = decodeVector(c, decodeTableType)
			m.Tables = tables
		case memorySection:
			m.Memories, err = decodeVector(c, decodeMemoryType)
		case globalSection:
			m.Globals, err = decodeVector(c, decodeGlobalDef)
		case exportSection:
			m.Exports, err = decodeVector(c, decodeExport)
		case startSection:
			var idx uint32
			idx, err = c.readVaruint32()
			if err == nil {
				m.StartFuncIndex = &idx
			}
		case elementSection:
			m.ElementSegments, err = decodeVector(c, decodeElementSegment)
		case codeSection:
			sawCode = true
			m.Funcs, err = decodeVector(c, decodeFunction)
		case dataSection:
			m.DataSegments, err = decodeVector(c, decodeDataSegment)
		default:
			return nil, decodeErrorf(sectionStart, "%w: %d", ErrUnknownSection, id)
		}
		if err != nil {
			if _, ok := err.(*DecodeError); ok {
				return nil, err
			}
			return nil, decodeErrorf(c.offset(), "section %d: %w", id, err)
		}

		// Guard against under-read: the section parser may have consumed
		// fewer bytes than declared (or, in principle, more). Advance the
		// cursor to the declared section end rather than trusting the
		// parser's internal bookkeeping.
		if c.pos > sectionEnd {
			return nil, decodeErrorf(sectionEnd, "section %d over-read its declared size", id)
		}
		c.pos = sectionEnd
	}

	if sawCode || len(functionTypeIndices) > 0 {
		if len(functionTypeIndices) != len(m.Funcs) {
			return nil, decodeErrorf(c.offset(), "%w: %d function indices, %d code bodies",
				ErrFuncCodeCountMismatch, len(functionTypeIndices), len(m.Funcs))
		}
		for i := range m.Funcs {
			m.Funcs[i].TypeIndex = functionTypeIndices[i]
		}
	}

	for _, imp := range m.Imports {
		switch p := imp.Payload.(type) {
		case FunctionTypeIndex:
			m.ImportedFuncTypeIndices = append(m.ImportedFuncTypeIndices, uint32(p))
		case TableType:
			m.ImportedTableCount++
		case MemoryType:
			m.ImportedMemoryCount++
		case GlobalType:
			m.ImportedGlobalCount++
		}
	}

	return m, nil
}

func (c *cursor) readHeader() error {
	if c.remaining() < 8 {
		return decodeErrorf(c.offset(), "%w: need at least 8 bytes for header", ErrTruncatedInput)
	}
	magic, _ := c.readBytes(4)
	if string(magic) != wasmMagic {
		return decodeErrorf(0, "%w", ErrBadMagicOrVersion)
	}
	version, err := c.readU32LE()
	if err != nil || version != supportedWasmVersion {
		return decodeErrorf(4, "%w", ErrBadMagicOrVersion)
	}
	return nil
}

func decodeVector[T any](c *cursor, decodeOne func(*cursor) (T, error)) ([]T, error) {
	count, err := c.readVaruint32()
	if err != nil {
		return nil, err
	}
	items := make([]T, count)
	for i := range items {
		items[i], err = decodeOne(c)
		if err != nil {
			return nil, err
		}
	}
	return items, nil
}

func decodeFuncType(c *cursor) (FuncType, error) {
	b, err := c.readByte()
	if err != nil {
		return FuncType{}, err
	}
	if b != 0x60 {
		return FuncType{}, decodeErrorf(c.pos-1, "invalid function type prefix 0x%x", b)
	}
	params, err := decodeVector(c, (*cursor).readValueType)
	if err != nil {
		return FuncType{}, err
	}
	results, err := decodeVector(c, (*cursor).readValueType)
	if err != nil {
		return FuncType{}, err
	}
	if len(results) > 1 {
		return FuncType{}, decodeErrorf(c.pos, "multi-value results are not supported")
	}
	return FuncType{Params: params, Results: results}, nil
}

func decodeImport(c *cursor) (Import, error) {
	moduleName, err := c.readName()
	if err != nil {
		return Import{}, err
	}
	name, err := c.readName()
	if err != nil {
		return Import{}, err
	}
	kindByte, err := c.readByte()
	if err != nil {
		return Import{}, err
	}
	kind := ImportKind(kindByte)
	var payload any
	switch kind {
	case FunctionImport:
		idx, err := c.readVaruint32()
		if err != nil {
			return Import{}, err
		}
		payload = FunctionTypeIndex(idx)
	case TableImport:
		payload, err = decodeTableType(c)
	case MemoryImport:
		payload, err = decodeMemoryType(c)
	case GlobalImport:
		payload, err = decodeGlobalType(c)
	default:
		return Import{}, decodeErrorf(c.pos-1, "invalid import kind 0x%x", kindByte)
	}
	if err != nil {
		return Import{}, err
	}
	return Import{ModuleName: moduleName, Name: name, Kind: kind, Payload: payload}, nil
}

func decodeTableType(c *cursor) (TableType, error) {
	refType, err := c.readByte()
	if err != nil {
		return TableType{}, err
	}
	if refType != 0x70 {
		return TableType{}, decodeErrorf(c.pos-1, "only funcref tables are supported, got 0x%x", refType)
	}
	limits, err := c.readLimits()
	if err != nil {
		return TableType{}, err
	}
	return TableType{Limits: limits}, nil
}

func decodeMemoryType(c *cursor) (MemoryType, error) {
	limits, err := c.readLimits()
	if err != nil {
		return MemoryType{}, err
	}
	return MemoryType{Limits: limits}, nil
}

func decodeGlobalType(c *cursor) (GlobalType, error) {
	vt, err := c.readValueType()
	if err != nil {
		return GlobalType{}, err
	}
	m, err := c.readByte()
	if err != nil {
		return GlobalType{}, err
	}
	if m != 0 && m != 1 {
		return GlobalType{}, decodeErrorf(c.pos-1, "invalid global mutability 0x%x", m)
	}
	return GlobalType{Type: vt, IsMutable: m == 1}, nil
}

func decodeGlobalDef(c *cursor) (GlobalDef, error) {
	gt, err := decodeGlobalType(c)
	if err != nil {
		return GlobalDef{}, err
	}
	expr, err := c.readConstExpression()
	if err != nil {
		return GlobalDef{}, err
	}
	return GlobalDef{Type: gt, InitExpression: expr}, nil
}

func decodeExport(c *cursor) (Export, error) {
	name, err := c.readName()
	if err != nil {
		return Export{}, err
	}
	kindByte, err := c.readByte()
	if err != nil {
		return Export{}, err
	}
	idx, err := c.readVaruint32()
	if err != nil {
		return Export{}, err
	}
	return Export{Name: name, Kind: ExportKind(kindByte), Index: idx}, nil
}

func decodeElementSegment(c *cursor) (ElementSegment, error) {
	// The MVP only supports flags==0: an active segment targeting table 0
	// with a literal vector of function indices.
	flags, err := c.readVaruint32()
	if err != nil {
		return ElementSegment{}, err
	}
	if flags != 0 {
		return ElementSegment{}, decodeErrorf(c.pos-1, "unsupported element segment flags %d", flags)
	}
	offset, err := c.readConstExpression()
	if err != nil {
		return ElementSegment{}, err
	}
	indices, err := decodeVector(c, (*cursor).readVaruint32)
	if err != nil {
		return ElementSegment{}, err
	}
	return ElementSegment{OffsetExpression: offset, FuncIndices: indices}, nil
}

func decodeFunction(c *cursor) (Function, error) {
	bodySize, err := c.readVaruint32()
	if err != nil {
		return Function{}, err
	}
	bodyStart := c.pos
	bodyEnd := bodyStart + int(bodySize)
	if bodyEnd > len(c.data) {
		return Function{}, decodeErrorf(c.pos, "%w", ErrTruncatedInput)
	}

	localRuns, err := decodeVector(c, decodeLocalRun)
	if err != nil {
		return Function{}, err
	}
	var locals []ValueType
	for _, run := range localRuns {
		for i := uint32(0); i < run.count; i++ {
			locals = append(locals, run.valueType)
		}
	}

	if c.pos > bodyEnd {
		return Function{}, decodeErrorf(bodyEnd, "local declarations overran function body")
	}
	body := c.data[c.pos:bodyEnd]
	c.pos = bodyEnd

	if len(body) == 0 || body[len(body)-1] != byte(opEnd) {
		return Function{}, decodeErrorf(bodyEnd, "function body must end with the end opcode")
	}

	return Function{Locals: locals, Body: body}, nil
}

type localRun struct {
	count     uint32
	valueType ValueType
}

func decodeLocalRun(c *cursor) (localRun, error) {
	count, err := c.readVaruint32()
	if err != nil {
		return localRun{}, err
	}
	vt, err := c.readValueType()
	if err != nil {
		return localRun{}, err
	}
	return localRun{count: count, valueType: vt}, nil
}

func decodeDataSegment(c *cursor) (DataSegment, error) {
	// The MVP only supports mode 0: an active segment targeting memory 0.
	mode, err := c.readVaruint32()
	if err != nil {
		return DataSegment{}, err
	}
	if mode != 0 {
		return DataSegment{}, decodeErrorf(c.pos-1, "unsupported data segment mode %d", mode)
	}
	offset, err := c.readConstExpression()
	if err != nil {
		return DataSegment{}, err
	}
	n, err := c.readVaruint32()
	if err != nil {
		return DataSegment{}, err
	}
	content, err := c.readBytes(int(n))
	if err != nil {
		return DataSegment{}, err
	}
	return DataSegment{OffsetExpression: offset, Bytes: content}, nil
}

// readConstExpression reads bytes up to and including the first `end`,
// returning the bytes before it. A safety cap prevents pathological inputs
// that never terminate.
func (c *cursor) readConstExpression() ([]byte, error) {
	start := c.pos
	for {
		if c.pos-start > maxInitExpressionLen {
			return nil, decodeErrorf(start, "%w", ErrInitExpressionTooLong)
		}
		b, err := c.readByte()
		if err != nil {
			return nil, decodeErrorf(c.offset(), "unterminated constant expression: %w", err)
		}
		if opcode(b) == opEnd {
			return c.data[start : c.pos-1], nil
		}
	}
}

func float32FromBits(bits uint32) float32 { return math.Float32frombits(bits) }

func float64FromBits(bits uint64) float64 { return math.Float64frombits(bits) }

func float32Bits(v float32) uint32 { return math.Float32bits(v) }

func float64Bits(v float64) uint64 { return math.Float64bits(v) }
