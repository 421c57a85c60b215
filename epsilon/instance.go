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

// Global is the runtime representation of a global variable.
type Global struct {
	value   value
	Type    ValueType
	Mutable bool
}

func (g *Global) get() value { return g.value }

func (g *Global) set(v value) error {
	if !g.Mutable {
		return trap(ErrImmutableGlobal)
	}
	g.value = v
	return nil
}

// FunctionInstance is implemented by both module-defined (WasmFunction) and
// host-provided (HostFunc) callables.
type FunctionInstance interface {
	GetType() *FuncType
}

// WasmFunction is the runtime representation of a function defined inside
// the module.
type WasmFunction struct {
	Type FuncType
	Code Function

	// jumpCache memoizes, for a block/if opcode at a given PC (the position
	// of the opcode byte itself), the PC immediately after its matching
	// `end`; loops need no scan and are never cached. jumpElseCache holds,
	// for an `if` with an else arm, the PC immediately after its matching
	// `else`; an `if` without one has no entry. Both are safe to share
	// across invocations of the same function since bytecode never
	// mutates; see spec.md §9's "branch search as fast-path cache" note.
	jumpCache     map[uint32]uint32
	jumpElseCache map[uint32]uint32
}

func newWasmFunction(t FuncType, code Function) *WasmFunction {
	return &WasmFunction{
		Type:          t,
		Code:          code,
		jumpCache:     map[uint32]uint32{},
		jumpElseCache: map[uint32]uint32{},
	}
}

func (f *WasmFunction) GetType() *FuncType { return &f.Type }

// HostFunc is a function implemented by the host (the embedding Go
// program), including the built-in WASI fd_write.
type HostFunc struct {
	Type FuncType
	Code func(inst *ModuleInstance, args []TypedValue) ([]TypedValue, error)
}

func (f *HostFunc) GetType() *FuncType { return &f.Type }

// ExportInstance is a named, runtime-resolved export.
type ExportInstance struct {
	Name  string
	Kind  ExportKind
	Value any
}

// ModuleInstance is the runtime representation of an instantiated module:
// owns the linear memory, the resolved globals, the table, and the
// function instances, plus the export directory used to look functions up
// by name.
type ModuleInstance struct {
	module  *Module
	funcs   []FunctionInstance
	table   *Table
	memory  *Memory
	globals []*Global
	exports map[string]ExportInstance

	rt *Runtime
}

// Call invokes an exported function by name with the given arguments,
// returning its declared results or a decode/interpreter/trap error.
func (m *ModuleInstance) Call(name string, args ...TypedValue) ([]TypedValue, error) {
	return m.rt.call(m, name, args)
}

// CallFunction invokes the function at the given module-wide index
// directly, bypassing export lookup.
func (m *ModuleInstance) CallFunction(index uint32, args ...TypedValue) ([]TypedValue, error) {
	return m.rt.callFunction(m, index, args)
}

// Memory returns the instance's linear memory, or nil if none was
// declared or imported.
func (m *ModuleInstance) Memory() *Memory { return m.memory }

// GlobalValue returns the boxed value of an exported global.
func (m *ModuleInstance) GlobalValue(name string) (TypedValue, error) {
	export, ok := m.exports[name]
	if !ok || export.Kind != GlobalImport {
		return TypedValue{}, interpErrorf("no exported global named %q", name)
	}
	g := export.Value.(*Global)
	return TypedValue{Type: g.Type, v: g.value}, nil
}
