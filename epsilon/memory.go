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

import "encoding/binary"

const (
	// pageSize is the WASM page granularity: 64KiB.
	pageSize = 65536
	// maxPages is the hard limit of 4GiB of addressable linear memory.
	maxPages = uint32(65536)
)

// Memory is a page-granular linear memory instance.
// See https://webassembly.github.io/spec/core/exec/runtime.html#memory-instances
type Memory struct {
	limits    Limits
	hardLimit uint32
	data      []byte
}

// NewMemory allocates a Memory sized to limits.Min pages, bounded by the
// hard cap (the 65536-page spec maximum, or a smaller Config override).
// It fails (the module is rejected) if the limits are not representable:
// min above the hard cap, or a max below min or above the hard cap.
func NewMemory(limits Limits) (*Memory, error) {
	return newMemory(limits, maxPages)
}

func newMemory(limits Limits, hardLimit uint32) (*Memory, error) {
	if limits.Min > hardLimit {
		return nil, interpErrorf("memory minimum %d exceeds the %d page hard limit", limits.Min, hardLimit)
	}
	if limits.hasMax() {
		if *limits.Max > hardLimit {
			return nil, interpErrorf("memory maximum %d exceeds the %d page hard limit", *limits.Max, hardLimit)
		}
		if limits.Min > *limits.Max {
			return nil, interpErrorf("memory minimum %d exceeds its maximum %d", limits.Min, *limits.Max)
		}
	}
	return &Memory{limits: limits, hardLimit: hardLimit, data: make([]byte, uint64(limits.Min)*pageSize)}, nil
}

// Size returns the current size in pages.
func (m *Memory) Size() uint32 { return uint32(len(m.data) / pageSize) }

func (m *Memory) byteLen() uint64 { return uint64(len(m.data)) }

// Grow attempts to increase the memory by delta pages. On success it
// returns the previous page count; on failure (32-bit overflow, exceeding
// the declared max, or exceeding the hard page limit: 65536, or a smaller
// Config override) it returns -1
// and leaves the memory unchanged.
func (m *Memory) Grow(delta int32) int32 {
	if delta < 0 {
		return -1
	}
	current := m.Size()
	newSize := uint64(current) + uint64(uint32(delta))
	hardLimit := m.hardLimit
	if hardLimit == 0 {
		hardLimit = maxPages
	}
	if newSize > uint64(hardLimit) {
		return -1
	}
	limit := hardLimit
	if m.limits.hasMax() {
		limit = *m.limits.Max
	}
	if newSize > uint64(limit) {
		return -1
	}
	m.data = append(m.data, make([]byte, uint64(uint32(delta))*pageSize)...)
	return int32(current)
}

// effectiveAddress combines a base address (popped from the stack) with a
// memarg offset, computed in 64 bits so the addition itself can never wrap
// around 32 bits silently. It traps if the result would not fit in 32
// bits.
func effectiveAddress(base int32, offset uint32) (uint32, error) {
	addr := uint64(uint32(base)) + uint64(offset)
	if addr > 0xFFFFFFFF {
		return 0, trap(ErrMemoryAddressOverflow)
	}
	return uint32(addr), nil
}

func (m *Memory) bounds(addr uint32, size uint32) error {
	end := uint64(addr) + uint64(size)
	if end > m.byteLen() {
		return trap(ErrOutOfBoundsMemoryAccess)
	}
	return nil
}

func (m *Memory) LoadI8(addr uint32) (int8, error) {
	if err := m.bounds(addr, 1); err != nil {
		return 0, err
	}
	return int8(m.data[addr]), nil
}

func (m *Memory) LoadU8(addr uint32) (uint8, error) {
	if err := m.bounds(addr, 1); err != nil {
		return 0, err
	}
	return m.data[addr], nil
}

func (m *Memory) LoadI16(addr uint32) (int16, error) {
	if err := m.bounds(addr, 2); err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(m.data[addr:])), nil
}

func (m *Memory) LoadU16(addr uint32) (uint16, error) {
	if err := m.bounds(addr, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.data[addr:]), nil
}

func (m *Memory) LoadI32(addr uint32) (int32, error) {
	if err := m.bounds(addr, 4); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(m.data[addr:])), nil
}

func (m *Memory) LoadU32(addr uint32) (uint32, error) {
	if err := m.bounds(addr, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[addr:]), nil
}

func (m *Memory) LoadI64(addr uint32) (int64, error) {
	if err := m.bounds(addr, 8); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(m.data[addr:])), nil
}

func (m *Memory) LoadU64(addr uint32) (uint64, error) {
	if err := m.bounds(addr, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.data[addr:]), nil
}

func (m *Memory) StoreU8(addr uint32, v uint8) error {
	if err := m.bounds(addr, 1); err != nil {
		return err
	}
	m.data[addr] = v
	return nil
}

func (m *Memory) StoreU16(addr uint32, v uint16) error {
	if err := m.bounds(addr, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.data[addr:], v)
	return nil
}

func (m *Memory) StoreU32(addr uint32, v uint32) error {
	if err := m.bounds(addr, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[addr:], v)
	return nil
}

func (m *Memory) StoreU64(addr uint32, v uint64) error {
	if err := m.bounds(addr, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[addr:], v)
	return nil
}

// ReadBytes returns a read-only view of n bytes starting at addr. The
// returned slice aliases the memory backing array.
func (m *Memory) ReadBytes(addr, n uint32) ([]byte, error) {
	if err := m.bounds(addr, n); err != nil {
		return nil, err
	}
	return m.data[addr : addr+n], nil
}

// Initialize copies bytes into memory at offset, as done for data segments
// during instantiation. It reports an InterpreterError (not a Trap) on
// overflow, since an out-of-bounds data segment means the module itself is
// malformed.
func (m *Memory) Initialize(offset uint32, bytes []byte) error {
	end := uint64(offset) + uint64(len(bytes))
	if end > m.byteLen() {
		return interpErrorf("data segment at offset %d (len %d) exceeds memory size %d", offset, len(bytes), m.byteLen())
	}
	copy(m.data[offset:], bytes)
	return nil
}
