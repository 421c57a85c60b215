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

//go:build unix

package epsilon

import "golang.org/x/sys/unix"

// wasiWrite writes buf to the host file descriptor fd corresponds to.
// Only stdout (1) and stderr (2) are wired; every other descriptor is a
// discard, matching the sandboxed subset of WASI this interpreter exposes.
// unix.Write is used directly (rather than os.Stdout/os.Stderr) so writes
// go straight to the underlying descriptor with no *os.File buffering or
// finalizer overhead in the way.
func wasiWrite(fd int32, buf []byte) (int, error) {
	switch fd {
	case 1, 2:
		return unix.Write(int(fd), buf)
	default:
		return len(buf), nil
	}
}
