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

// wasiModuleName is the import module name WASI-targeting modules compiled
// by wasi-libc/wasi-sdk expect fd_write under.
const wasiModuleName = "wasi_snapshot_preview1"

// registerWASI wires the one WASI import this interpreter recognizes:
// fd_write, registered on every Runtime so callers never have to register
// it themselves. Its signature is
// fd_write(fd: i32, iovs: i32, iovs_len: i32, nwritten_ptr: i32) -> i32.
func registerWASI(rt *Runtime) {
	rt.RegisterHostFunction(wasiModuleName, "fd_write", FuncType{
		Params:  []ValueType{I32, I32, I32, I32},
		Results: []ValueType{I32},
	}, wasiFdWrite)
}

// wasiFdWrite reads a WASI __wasi_ciovec_t array (iovsCount entries of
// (bufPtr u32, bufLen u32), little-endian) starting at iovsPtr, writes each
// buffer to the destination stream identified by fd, and stores the total
// number of bytes written at nwrittenPtr. Only stdout (1) and stderr (2)
// resolve to anything; writes to other descriptors are silently discarded,
// though their buffer lengths still count toward the stored total.
func wasiFdWrite(inst *ModuleInstance, args []TypedValue) ([]TypedValue, error) {
	fd := args[0].I32()
	iovsPtr := uint32(args[1].I32())
	iovsCount := uint32(args[2].I32())
	nwrittenPtr := uint32(args[3].I32())

	mem := inst.memory
	if mem == nil {
		return nil, interpErrorf("%w", ErrNoMemory)
	}

	var total uint32
	for i := uint32(0); i < iovsCount; i++ {
		entry, err := mem.ReadBytes(iovsPtr+i*8, 8)
		if err != nil {
			return nil, err
		}
		bufPtr := leU32(entry[0:4])
		bufLen := leU32(entry[4:8])

		buf, err := mem.ReadBytes(bufPtr, bufLen)
		if err != nil {
			return nil, err
		}
		n, err := wasiWrite(fd, buf)
		if err != nil {
			return nil, err
		}
		total += uint32(n)
	}

	if err := mem.StoreU32(nwrittenPtr, total); err != nil {
		return nil, err
	}
	return []TypedValue{NewI32(0)}, nil
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
