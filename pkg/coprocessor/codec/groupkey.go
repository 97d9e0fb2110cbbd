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

import "github.com/matrixorigin/mo-pushdown/pkg/coprocessor/types"

// EncodeGroupKey produces the canonical byte encoding of a group-key tuple,
// reusing the key part's order-preserving primitives (spec §4.4/§9: hashing
// group keys via the key codec's canonical bytes means equal floats with
// different bit patterns, or -0.0 vs +0.0, still hash and compare equal).
// Unlike a schema's key part, every column here is treated as nullable --
// group-by columns are arbitrary projected columns, not necessarily is_key
// schema columns -- and each is tagged with its type so values of different
// declared types never collide.
func EncodeGroupKey(values []types.Value) []byte {
	var out []byte
	for _, v := range values {
		out = append(out, byte(v.Type()))
		if v.IsNull() {
			out = append(out, 0x00)
			continue
		}
		out = append(out, 0x01)
		switch v.Type() {
		case types.Bool:
			out = append(out, encodeKeyBool(v.Bool())...)
		case types.Int32:
			out = append(out, encodeKeyInt32(v.Int32())...)
		case types.Int64:
			out = append(out, encodeKeyInt64(v.Int64())...)
		case types.Float32:
			out = append(out, encodeKeyFloat32(v.Float32())...)
		case types.Float64:
			out = append(out, encodeKeyFloat64(v.Float64())...)
		case types.String:
			out = append(out, encodeKeyBytes(v.Bytes())...)
		}
	}
	return out
}
