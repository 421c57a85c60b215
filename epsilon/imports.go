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

import "fmt"

// resolvedImports holds, in declaration order, the concrete objects that
// satisfy a module's import section.
type resolvedImports struct {
	functions []FunctionInstance
	tables    []*Table
	memories  []*Memory
	globals   []*Global
}

// resolveImports matches module.Imports against the host-supplied object
// map (moduleName -> fieldName -> Go value) and the runtime's registered
// host functions. A HostFunc import is synthesized for any (moduleName,
// fieldName) pair found in the registry but absent from the supplied
// imports, so callers never need to pre-register fd_write themselves.
func resolveImports(module *Module, imports map[string]map[string]any, hostFuncs map[string]map[string]*HostFunc) (*resolvedImports, error) {
	out := &resolvedImports{}
	for _, imp := range module.Imports {
		obj, fromHost, found := lookupImport(imports, hostFuncs, imp)
		switch payload := imp.Payload.(type) {
		case FunctionTypeIndex:
			ft := &module.Types[payload]
			fn, err := resolveFunctionImport(imp, obj, fromHost, found, ft)
			if err != nil {
				return nil, err
			}
			out.functions = append(out.functions, fn)
		case GlobalType:
			g, err := resolveGlobalImport(imp, obj, found, payload)
			if err != nil {
				return nil, err
			}
			out.globals = append(out.globals, g)
		case MemoryType:
			mem, err := resolveMemoryImport(imp, obj, found, payload)
			if err != nil {
				return nil, err
			}
			out.memories = append(out.memories, mem)
		case TableType:
			tbl, err := resolveTableImport(imp, obj, found, payload)
			if err != nil {
				return nil, err
			}
			out.tables = append(out.tables, tbl)
		}
	}
	return out, nil
}

func lookupImport(imports map[string]map[string]any, hostFuncs map[string]map[string]*HostFunc, imp Import) (obj any, fromHost bool, found bool) {
	if mod, ok := imports[imp.ModuleName]; ok {
		if v, ok := mod[imp.Name]; ok {
			return v, false, true
		}
	}
	if mod, ok := hostFuncs[imp.ModuleName]; ok {
		if fn, ok := mod[imp.Name]; ok {
			return fn, true, true
		}
	}
	return nil, false, false
}

func resolveFunctionImport(imp Import, obj any, fromHost, found bool, ft *FuncType) (FunctionInstance, error) {
	if !found {
		// Accepted at decode time; traps only if actually called.
		// See spec.md §4.4.1 and §7.
		return &HostFunc{Type: *ft, Code: unresolvedImportedFunc}, nil
	}
	if fromHost {
		return obj.(*HostFunc), nil
	}
	switch f := obj.(type) {
	case func(*ModuleInstance, []TypedValue) ([]TypedValue, error):
		return &HostFunc{Type: *ft, Code: f}, nil
	case FunctionInstance:
		if !f.GetType().Equal(ft) {
			return nil, fmt.Errorf("type mismatch for imported function %s.%s", imp.ModuleName, imp.Name)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%s.%s is not a function", imp.ModuleName, imp.Name)
	}
}

func unresolvedImportedFunc(*ModuleInstance, []TypedValue) ([]TypedValue, error) {
	return nil, trap(ErrUnresolvedImportedFunc)
}

func resolveGlobalImport(imp Import, obj any, found bool, gt GlobalType) (*Global, error) {
	if !found {
		return nil, fmt.Errorf("missing import %s.%s", imp.ModuleName, imp.Name)
	}
	switch v := obj.(type) {
	case *Global:
		if v.Mutable != gt.IsMutable || v.Type != gt.Type {
			return nil, fmt.Errorf("incompatible global import %s.%s", imp.ModuleName, imp.Name)
		}
		return v, nil
	default:
		if !anyMatchesType(v, gt.Type) {
			return nil, fmt.Errorf("incompatible global import %s.%s: value type mismatch", imp.ModuleName, imp.Name)
		}
		tv, _ := typedValueFromAny(v)
		return &Global{value: tv.v, Type: gt.Type, Mutable: gt.IsMutable}, nil
	}
}

func resolveMemoryImport(imp Import, obj any, found bool, mt MemoryType) (*Memory, error) {
	if !found {
		return nil, fmt.Errorf("missing import %s.%s", imp.ModuleName, imp.Name)
	}
	mem, ok := obj.(*Memory)
	if !ok {
		return nil, fmt.Errorf("%s.%s is not a memory", imp.ModuleName, imp.Name)
	}
	provided := Limits{Min: mem.Size(), Max: mem.limits.Max}
	if !limitsSatisfy(provided, mt.Limits) {
		return nil, fmt.Errorf("incompatible memory import %s.%s: limits mismatch", imp.ModuleName, imp.Name)
	}
	return mem, nil
}

func resolveTableImport(imp Import, obj any, found bool, tt TableType) (*Table, error) {
	if !found {
		return nil, fmt.Errorf("missing import %s.%s", imp.ModuleName, imp.Name)
	}
	tbl, ok := obj.(*Table)
	if !ok {
		return nil, fmt.Errorf("%s.%s is not a table", imp.ModuleName, imp.Name)
	}
	provided := Limits{Min: uint32(tbl.Size())}
	if !limitsSatisfy(provided, tt.Limits) {
		return nil, fmt.Errorf("incompatible table import %s.%s: limits mismatch", imp.ModuleName, imp.Name)
	}
	return tbl, nil
}

func limitsSatisfy(provided, required Limits) bool {
	if provided.Min < required.Min {
		return false
	}
	if required.Max == nil {
		return true
	}
	if provided.Max == nil || *provided.Max > *required.Max {
		return false
	}
	return true
}
