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

// NullElement marks a table slot with no function assigned.
const NullElement int32 = -1

// Table is the runtime representation of a funcref table: a mapping from
// small non-negative indices to module-wide function indices.
//
// Per spec.md §9's design note, the reference behavior is to resolve
// call_indirect by searching element segments at call time; this
// implementation instead materializes the equivalent flat mapping once,
// at instantiation, since the two are observably identical (same
// resolution result, same trap conditions) and the flat form is the
// better-performing choice the design note explicitly allows.
type Table struct {
	elements []int32
}

// NewTable creates a Table with limits.Min slots, all initially empty.
func NewTable(limits Limits) *Table {
	elements := make([]int32, limits.Min)
	for i := range elements {
		elements[i] = NullElement
	}
	return &Table{elements: elements}
}

func (t *Table) Size() int32 { return int32(len(t.elements)) }

// Get resolves a table index to a function index, or traps with
// ErrUndefinedElement if the slot is out of range or empty.
func (t *Table) Get(index int32) (uint32, error) {
	if index < 0 || index >= t.Size() {
		return 0, trap(ErrUndefinedElement)
	}
	fn := t.elements[index]
	if fn == NullElement {
		return 0, trap(ErrUndefinedElement)
	}
	return uint32(fn), nil
}

// placeSegment writes a contiguous run of function indices into the table
// starting at offset, as done for active element segments during
// instantiation.
func (t *Table) placeSegment(offset int32, funcIndices []uint32) error {
	if offset < 0 {
		return interpErrorf("negative element segment offset %d", offset)
	}
	end := int64(offset) + int64(len(funcIndices))
	if end > int64(len(t.elements)) {
		return interpErrorf("element segment at offset %d (len %d) exceeds table size %d", offset, len(funcIndices), len(t.elements))
	}
	for i, fn := range funcIndices {
		t.elements[int(offset)+i] = int32(fn)
	}
	return nil
}
