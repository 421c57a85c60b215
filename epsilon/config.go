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

import "go.uber.org/zap"

// Config controls the resource limits and diagnostics of a Runtime.
type Config struct {
	// MaxCallStackDepth is the hard limit on call-stack nesting, enforced
	// per spec.md §4.2/§5. Default: 1024.
	MaxCallStackDepth int

	// MaxMemoryPages overrides the hard 65536-page (4GiB) ceiling on linear
	// memory with a smaller one. Zero means "use the hard limit".
	MaxMemoryPages uint32

	// Logger receives structured diagnostics: each module instantiation is
	// logged at Debug level. Decoding and traps are not logged. Defaults to
	// a no-op logger; supply a real *zap.Logger to observe instantiation.
	Logger *zap.Logger
}

// DefaultConfig returns a Config with the limits spec.md §5 requires and a
// no-op logger.
func DefaultConfig() Config {
	return Config{
		MaxCallStackDepth: 1024,
		Logger:            zap.NewNop(),
	}
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c Config) maxMemoryPages() uint32 {
	if c.MaxMemoryPages == 0 || c.MaxMemoryPages > maxPages {
		return maxPages
	}
	return c.MaxMemoryPages
}
