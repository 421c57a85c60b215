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

const (
	continuationBit = 0x80
	payloadMask     = 0x7F
	signBit         = 0x40
)

// readVaruint32 decodes an unsigned LEB128 integer capped at the 5 bytes
// needed to represent a 32-bit value (7 bits per byte).
func (c *cursor) readVaruint32() (uint32, error) {
	v, err := c.readUleb128(5)
	if err != nil {
		return 0, err
	}
	if v > 0xFFFFFFFF {
		return 0, ErrIntegerTooLarge
	}
	return uint32(v), nil
}

// readVaruint64 decodes an unsigned LEB128 integer capped at the 10 bytes
// needed to represent a 64-bit value.
func (c *cursor) readVaruint64() (uint64, error) {
	return c.readUleb128(10)
}

// readVarint32 decodes a signed LEB128 integer capped at 5 bytes,
// sign-extending using bit 6 of the final byte.
func (c *cursor) readVarint32() (int32, error) {
	v, err := c.readSleb128(5, 32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

// readVarint64 decodes a signed LEB128 integer capped at 10 bytes.
func (c *cursor) readVarint64() (int64, error) {
	return c.readSleb128(10, 64)
}

func (c *cursor) readUleb128(maxBytes int) (uint64, error) {
	var result uint64
	var shift uint
	read := 0
	for {
		b, err := c.readByte()
		if err != nil {
			return 0, err
		}
		read++
		if read > maxBytes {
			return 0, ErrIntRepresentationTooLong
		}
		result |= uint64(b&payloadMask) << shift
		if b&continuationBit == 0 {
			return result, nil
		}
		shift += 7
	}
}

func (c *cursor) readSleb128(maxBytes int, width uint) (int64, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	read := 0
	for {
		b, err = c.readByte()
		if err != nil {
			return 0, err
		}
		read++
		if read > maxBytes {
			return 0, ErrIntRepresentationTooLong
		}
		result |= int64(b&payloadMask) << shift
		shift += 7
		if b&continuationBit == 0 {
			break
		}
	}
	if shift < width && (b&signBit) != 0 {
		result |= -1 << shift
	}
	return result, nil
}
