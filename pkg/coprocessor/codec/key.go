// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package codec

import (
	"encoding/binary"
	"math"
)

// The key-part primitives below are order-preserving and memcmp-comparable,
// the property the whole key codec exists to provide (spec §4.1). The float
// sign-flip trick is the same one pkg/container/types/tuple.go uses for its
// own order-preserving float encoding (adjustFloatBytes); we keep it fixed
// width instead of FoundationDB-tuple variable width because the spec's key
// columns are statically typed and fixed size is simpler to reason about.

// encodeKeyInt64 encodes v big-endian after flipping the sign bit, so that
// memcmp order matches signed numeric order.
func encodeKeyInt64(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v)^(uint64(1)<<63))
	return buf
}

func decodeKeyInt64(b []byte) int64 {
	u := binary.BigEndian.Uint64(b[:8])
	return int64(u ^ (uint64(1) << 63))
}

func encodeKeyInt32(v int32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(v)^(uint32(1)<<31))
	return buf
}

func decodeKeyInt32(b []byte) int32 {
	u := binary.BigEndian.Uint32(b[:4])
	return int32(u ^ (uint32(1) << 31))
}

// adjustFloatKeyBytes applies the order-preserving float transform in place:
// on encode, a set sign bit (negative number) means flip every bit; a clear
// sign bit (non-negative) means flip only the sign bit. The encoders fold -0
// into +0 before calling this, so both zeros take the sign-bit-only path.
// Decoding applies the inverse, keyed off the now-transformed sign bit.
func adjustFloatKeyBytes(b []byte, encode bool) {
	negative := b[0]&0x80 != 0
	if (encode && negative) || (!encode && !negative) {
		for i := range b {
			b[i] ^= 0xff
		}
	} else {
		b[0] ^= 0x80
	}
}

func encodeKeyFloat64(v float64) []byte {
	if v == 0 {
		v = 0 // fold -0 into +0 so both zeros encode identically
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
	adjustFloatKeyBytes(buf, true)
	return buf
}

func decodeKeyFloat64(b []byte) float64 {
	buf := make([]byte, 8)
	copy(buf, b[:8])
	adjustFloatKeyBytes(buf, false)
	return math.Float64frombits(binary.BigEndian.Uint64(buf))
}

func encodeKeyFloat32(v float32) []byte {
	if v == 0 {
		v = 0 // fold -0 into +0 so both zeros encode identically
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, math.Float32bits(v))
	adjustFloatKeyBytes(buf, true)
	return buf
}

func decodeKeyFloat32(b []byte) float32 {
	buf := make([]byte, 4)
	copy(buf, b[:4])
	adjustFloatKeyBytes(buf, false)
	return math.Float32frombits(binary.BigEndian.Uint32(buf))
}

func encodeKeyBool(v bool) []byte {
	if v {
		return []byte{0x01}
	}
	return []byte{0x00}
}

func decodeKeyBool(b []byte) bool {
	return b[0] != 0x00
}

const (
	groupSize      = 8
	fullGroupPad   = 0xFF
	lastGroupBase  = 0xF8
)

// encodeKeyBytes applies the repeating 8-byte group scheme: every 8 raw
// bytes are followed by a marker byte, 0xFF for a full group or
// (0xF8 - unused) for the final, zero-padded group. This is strictly
// order-preserving and uniquely decodable over arbitrary byte strings.
func encodeKeyBytes(s []byte) []byte {
	out := make([]byte, 0, (len(s)/groupSize+1)*(groupSize+1))
	i := 0
	for {
		remaining := len(s) - i
		if remaining >= groupSize {
			out = append(out, s[i:i+groupSize]...)
			out = append(out, fullGroupPad)
			i += groupSize
			continue
		}
		var chunk [groupSize]byte
		copy(chunk[:], s[i:])
		out = append(out, chunk[:]...)
		out = append(out, byte(lastGroupBase-(groupSize-remaining)))
		break
	}
	return out
}

// decodeKeyBytes reverses encodeKeyBytes, returning the decoded raw bytes
// and the number of encoded bytes consumed.
func decodeKeyBytes(b []byte) ([]byte, int) {
	var out []byte
	i := 0
	for {
		group := b[i : i+groupSize+1]
		marker := group[groupSize]
		if marker == fullGroupPad {
			out = append(out, group[:groupSize]...)
			i += groupSize + 1
			continue
		}
		unused := int(lastGroupBase - marker)
		out = append(out, group[:groupSize-unused]...)
		i += groupSize + 1
		break
	}
	return out, i
}
