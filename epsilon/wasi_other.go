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

//go:build !unix

package epsilon

import "os"

// wasiWrite is the non-unix fallback: golang.org/x/sys/unix has no portable
// write primitive outside the unix build family, so this falls back to the
// standard streams instead.
func wasiWrite(fd int32, buf []byte) (int, error) {
	switch fd {
	case 1:
		return os.Stdout.Write(buf)
	case 2:
		return os.Stderr.Write(buf)
	default:
		return len(buf), nil
	}
}
