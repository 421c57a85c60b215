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
	"bytes"
	"fmt"
	"io"
	"maps"

	"go.uber.org/zap"
)

// Runtime hosts zero or more instantiated modules sharing a Config and a
// registry of host functions importable by module name and field name.
type Runtime struct {
	config    Config
	hostFuncs map[string]map[string]*HostFunc
}

// NewRuntime builds a Runtime with DefaultConfig and the built-in WASI
// fd_write host function already registered under "wasi_snapshot_preview1".
func NewRuntime() *Runtime {
	return WithConfig(DefaultConfig())
}

// WithConfig builds a Runtime with the given resource limits and logger.
func WithConfig(cfg Config) *Runtime {
	rt := &Runtime{config: cfg, hostFuncs: map[string]map[string]*HostFunc{}}
	registerWASI(rt)
	return rt
}

// RegisterHostFunction makes fn callable by any module that imports
// (moduleName, name), without the embedder having to supply it again at
// every InstantiateModule call. Registering under a name a module never
// imports is harmless; registering one it does is how host functions other
// than fd_write get wired in.
func (rt *Runtime) RegisterHostFunction(moduleName, name string, ft FuncType, fn func(*ModuleInstance, []TypedValue) ([]TypedValue, error)) {
	mod, ok := rt.hostFuncs[moduleName]
	if !ok {
		mod = map[string]*HostFunc{}
		rt.hostFuncs[moduleName] = mod
	}
	mod[name] = &HostFunc{Type: ft, Code: fn}
}

// InstantiateModule decodes wasm and instantiates it with no imports beyond
// the runtime's registered host functions.
func (rt *Runtime) InstantiateModule(wasm io.Reader) (*ModuleInstance, error) {
	return rt.InstantiateModuleWithImports(wasm)
}

// InstantiateModuleFromBytes is InstantiateModule for an in-memory buffer.
func (rt *Runtime) InstantiateModuleFromBytes(data []byte) (*ModuleInstance, error) {
	return rt.InstantiateModule(bytes.NewReader(data))
}

// InstantiateModuleWithImports decodes wasm and instantiates it, resolving
// imports against the supplied maps (moduleName -> fieldName -> Go value,
// later maps overriding earlier ones on key collision) and, failing that,
// against the runtime's host-function registry.
func (rt *Runtime) InstantiateModuleWithImports(wasm io.Reader, imports ...map[string]map[string]any) (*ModuleInstance, error) {
	data, err := io.ReadAll(wasm)
	if err != nil {
		return nil, fmt.Errorf("reading module bytes: %w", err)
	}
	module, err := Decode(data)
	if err != nil {
		return nil, err
	}
	merged := map[string]map[string]any{}
	for _, m := range imports {
		for modName, fields := range m {
			dst, ok := merged[modName]
			if !ok {
				dst = map[string]any{}
				merged[modName] = dst
			}
			maps.Copy(dst, fields)
		}
	}
	return rt.instantiate(module, merged)
}

func (rt *Runtime) instantiate(module *Module, imports map[string]map[string]any) (*ModuleInstance, error) {
	resolved, err := resolveImports(module, imports, rt.hostFuncs)
	if err != nil {
		return nil, err
	}

	inst := &ModuleInstance{module: module, rt: rt}

	inst.globals = append([]*Global{}, resolved.globals...)
	for _, g := range module.Globals {
		val, err := evalConstExpr(g.InitExpression, inst.globals)
		if err != nil {
			return nil, err
		}
		inst.globals = append(inst.globals, &Global{value: val, Type: g.Type.Type, Mutable: g.Type.IsMutable})
	}

	inst.funcs = append([]FunctionInstance{}, resolved.functions...)
	for _, fn := range module.Funcs {
		inst.funcs = append(inst.funcs, newWasmFunction(module.Types[fn.TypeIndex], fn))
	}

	if len(resolved.tables) > 0 {
		inst.table = resolved.tables[0]
	} else if len(module.Tables) > 0 {
		inst.table = NewTable(module.Tables[0].Limits)
	}

	if len(resolved.memories) > 0 {
		inst.memory = resolved.memories[0]
	} else if len(module.Memories) > 0 {
		mem, err := newMemory(module.Memories[0].Limits, rt.config.maxMemoryPages())
		if err != nil {
			return nil, err
		}
		inst.memory = mem
	}

	for _, seg := range module.ElementSegments {
		if inst.table == nil {
			return nil, interpErrorf("element segment targets table %d but the module has no table", seg.TableIndex)
		}
		offsetVal, err := evalConstExpr(seg.OffsetExpression, inst.globals)
		if err != nil {
			return nil, err
		}
		if err := inst.table.placeSegment(offsetVal.int32(), seg.FuncIndices); err != nil {
			return nil, err
		}
	}

	for _, seg := range module.DataSegments {
		if inst.memory == nil {
			return nil, interpErrorf("data segment targets memory %d but the module has no memory", seg.MemoryIndex)
		}
		offsetVal, err := evalConstExpr(seg.OffsetExpression, inst.globals)
		if err != nil {
			return nil, err
		}
		if err := inst.memory.Initialize(uint32(offsetVal.int32()), seg.Bytes); err != nil {
			return nil, err
		}
	}

	inst.exports = map[string]ExportInstance{}
	for _, exp := range module.Exports {
		switch exp.Kind {
		case FunctionImport:
			inst.exports[exp.Name] = ExportInstance{Name: exp.Name, Kind: exp.Kind, Value: inst.funcs[exp.Index]}
		case TableImport:
			inst.exports[exp.Name] = ExportInstance{Name: exp.Name, Kind: exp.Kind, Value: inst.table}
		case MemoryImport:
			inst.exports[exp.Name] = ExportInstance{Name: exp.Name, Kind: exp.Kind, Value: inst.memory}
		case GlobalImport:
			inst.exports[exp.Name] = ExportInstance{Name: exp.Name, Kind: exp.Kind, Value: inst.globals[exp.Index]}
		}
	}

	rt.config.logger().Debug("module instantiated",
		zap.Int("funcs", len(inst.funcs)),
		zap.Int("exports", len(inst.exports)))

	if module.StartFuncIndex != nil {
		if _, err := rt.callFunction(inst, *module.StartFuncIndex, nil); err != nil {
			return nil, err
		}
	}

	return inst, nil
}

// evalConstExpr evaluates a constant expression (global init, element/data
// segment offset): a single const or global.get instruction. expr is
// exactly that instruction's bytes — the decoder's readConstExpression
// already strips the terminating `end`.
func evalConstExpr(expr []byte, globals []*Global) (value, error) {
	c := &cursor{data: expr, pos: 0}
	op, err := c.readByte()
	if err != nil {
		return value{}, err
	}
	var result value
	switch opcode(op) {
	case opI32Const:
		v, err := c.readVarint32()
		if err != nil {
			return value{}, err
		}
		result = i32(v)
	case opI64Const:
		v, err := c.readVarint64()
		if err != nil {
			return value{}, err
		}
		result = i64(v)
	case opF32Const:
		v, err := c.readF32()
		if err != nil {
			return value{}, err
		}
		result = f32(v)
	case opF64Const:
		v, err := c.readF64()
		if err != nil {
			return value{}, err
		}
		result = f64(v)
	case opGlobalGet:
		idx, err := c.readVaruint32()
		if err != nil {
			return value{}, err
		}
		if int(idx) >= len(globals) {
			return value{}, interpErrorf("const expression references out-of-range global %d", idx)
		}
		result = globals[idx].get()
	default:
		return value{}, interpErrorf("unsupported constant expression opcode 0x%02x", op)
	}
	return result, nil
}

// call resolves name to an export and invokes it.
func (rt *Runtime) call(inst *ModuleInstance, name string, args []TypedValue) ([]TypedValue, error) {
	exp, ok := inst.exports[name]
	if !ok || exp.Kind != FunctionImport {
		return nil, interpErrorf("no exported function named %q", name)
	}
	fn := exp.Value.(FunctionInstance)
	return rt.invoke(inst, fn, args)
}

// callFunction invokes the function at a module-wide index directly.
func (rt *Runtime) callFunction(inst *ModuleInstance, index uint32, args []TypedValue) ([]TypedValue, error) {
	if int(index) >= len(inst.funcs) {
		return nil, interpErrorf("function index %d out of range", index)
	}
	return rt.invoke(inst, inst.funcs[index], args)
}

func (rt *Runtime) invoke(inst *ModuleInstance, fn FunctionInstance, args []TypedValue) ([]TypedValue, error) {
	ft := fn.GetType()
	if len(args) != len(ft.Params) {
		return nil, interpErrorf("expected %d arguments, got %d", len(ft.Params), len(args))
	}
	ex := &executor{rt: rt, inst: inst, stack: newValueStack()}
	for i, a := range args {
		if a.Type != ft.Params[i] {
			return nil, interpErrorf("argument %d: expected %s, got %s", i, ft.Params[i], a.Type)
		}
		ex.stack.data = append(ex.stack.data, a.v)
	}
	if err := ex.call(fn); err != nil {
		return nil, err
	}
	return ex.stack.popTyped(ft.Results)
}

// ModuleImportBuilder assembles the moduleName -> fieldName -> value map
// InstantiateModuleWithImports expects, a small fluent convenience on top of
// a plain nested map.
type ModuleImportBuilder struct {
	moduleName string
	fields     map[string]any
}

// NewModuleImportBuilder starts building the import object for moduleName.
func NewModuleImportBuilder(moduleName string) *ModuleImportBuilder {
	return &ModuleImportBuilder{moduleName: moduleName, fields: map[string]any{}}
}

// AddHostFunc registers a function under name, callable from the target
// module's import of (moduleName, name).
func (b *ModuleImportBuilder) AddHostFunc(name string, ft FuncType, fn func(*ModuleInstance, []TypedValue) ([]TypedValue, error)) *ModuleImportBuilder {
	b.fields[name] = &HostFunc{Type: ft, Code: fn}
	return b
}

// AddMemory exposes an existing Memory under name, for cross-module memory
// sharing.
func (b *ModuleImportBuilder) AddMemory(name string, mem *Memory) *ModuleImportBuilder {
	b.fields[name] = mem
	return b
}

// AddTable exposes an existing Table under name.
func (b *ModuleImportBuilder) AddTable(name string, tbl *Table) *ModuleImportBuilder {
	b.fields[name] = tbl
	return b
}

// AddGlobal exposes an existing Global under name.
func (b *ModuleImportBuilder) AddGlobal(name string, g *Global) *ModuleImportBuilder {
	b.fields[name] = g
	return b
}

// AddModuleExports re-exports every export of an already-instantiated
// module under this builder's module name, the common case for linking one
// module's memory/table/functions into another's imports.
func (b *ModuleImportBuilder) AddModuleExports(inst *ModuleInstance) *ModuleImportBuilder {
	for name, exp := range inst.exports {
		b.fields[name] = exp.Value
	}
	return b
}

// Build returns the single-entry import map ready to hand to
// InstantiateModuleWithImports.
func (b *ModuleImportBuilder) Build() map[string]map[string]any {
	return map[string]map[string]any{b.moduleName: b.fields}
}
