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

// Function is a module-defined function: its signature is looked up via
// TypeIndex, Locals excludes parameters, and Body is the raw bytecode
// including the terminating `end` (0x0B).
type Function struct {
	TypeIndex uint32
	Locals    []ValueType
	Body      []byte
}

// GlobalType defines the type and mutability of a global variable.
// See https://webassembly.github.io/spec/core/syntax/modules.html#globals
type GlobalType struct {
	Type      ValueType
	IsMutable bool
}

// GlobalDef is a module-defined global: InitExpression is the constant
// expression that yields the global's initial value, with its terminating
// `end` already stripped by the decoder.
type GlobalDef struct {
	Type           GlobalType
	InitExpression []byte
}

// TableType classifies a table. The MVP only has funcref tables; the
// reference type is implied and not separately modeled.
type TableType struct {
	Limits Limits
}

// MemoryType classifies a linear memory by its page limits.
type MemoryType struct {
	Limits Limits
}

// ImportKind distinguishes the four things a module may import.
type ImportKind byte

const (
	FunctionImport ImportKind = 0x00
	TableImport    ImportKind = 0x01
	MemoryImport   ImportKind = 0x02
	GlobalImport   ImportKind = 0x03
)

// Import describes one entry of the import section. Payload holds the
// kind-specific description: FunctionTypeIndex for functions, TableType,
// MemoryType, or GlobalType.
type Import struct {
	ModuleName string
	Name       string
	Kind       ImportKind
	Payload    any
}

// FunctionTypeIndex is the Payload type for a FunctionImport.
type FunctionTypeIndex uint32

// ExportKind mirrors ImportKind for the export section.
type ExportKind = ImportKind

// Export makes a module-internal index visible to the host under Name.
type Export struct {
	Name  string
	Kind  ExportKind
	Index uint32
}

// ElementSegment populates a range of table slots with function indices at
// instantiation time. The MVP only supports active segments targeting
// table 0 with a literal list of function indices.
type ElementSegment struct {
	TableIndex       uint32
	OffsetExpression []byte
	FuncIndices      []uint32
}

// DataSegment copies Bytes into linear memory starting at the offset
// OffsetExpression evaluates to. The MVP only supports active segments
// targeting memory 0.
type DataSegment struct {
	MemoryIndex      uint32
	OffsetExpression []byte
	Bytes            []byte
}

// Module is the decoded, validated-at-parse-time representation of a WASM
// binary. It is constructed exclusively by the Decoder and is consumed by
// the executor at instantiation time: the executor never copies the
// bytecode buffers, only references them, so a Module must not be mutated
// or shared across instances after instantiation begins.
type Module struct {
	Types           []FuncType
	Imports         []Import
	Funcs           []Function
	Tables          []TableType
	Memories        []MemoryType
	Globals         []GlobalDef
	Exports         []Export
	StartFuncIndex  *uint32
	ElementSegments []ElementSegment
	DataSegments    []DataSegment

	// ImportedFuncTypeIndices holds, in declaration order, the type index of
	// every imported function. A module-wide function index below
	// len(ImportedFuncTypeIndices) refers to an imported function; indices
	// at or above it refer to Funcs[index-len(ImportedFuncTypeIndices)].
	ImportedFuncTypeIndices []uint32
	ImportedTableCount      uint32
	ImportedMemoryCount     uint32
	ImportedGlobalCount     uint32
}

// ImportedFuncCount is the number of module-wide function indices that
// resolve to an imported function rather than a Funcs entry.
func (m *Module) ImportedFuncCount() uint32 {
	return uint32(len(m.ImportedFuncTypeIndices))
}

// FuncTypeOf returns the FuncType of the function at the given module-wide
// function index, accounting for imported functions occupying the low
// indices.
func (m *Module) FuncTypeOf(index uint32) (*FuncType, error) {
	imported := m.ImportedFuncCount()
	if index < imported {
		return &m.Types[m.ImportedFuncTypeIndices[index]], nil
	}
	local := index - imported
	if int(local) >= len(m.Funcs) {
		return nil, interpErrorf("invalid function index %d", index)
	}
	return &m.Types[m.Funcs[local].TypeIndex], nil
}
