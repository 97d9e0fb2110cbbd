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

// Package codec is the Record Codec (C2): it packs a Tuple into
// (key_bytes, value_bytes) with an order-preserving, memcmp-comparable key
// part and a length-prefixed value part, and reverses the process on Decode.
package codec

import (
	"encoding/binary"

	"github.com/matrixorigin/mo-pushdown/pkg/coperr"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/schema"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/types"
)

// DefaultNamespace is the namespace byte used when the caller doesn't need
// to distinguish multiple logical key spaces sharing one keyspace.
const DefaultNamespace byte = 0x01

const headerLen = 1 + 8 + 4 // namespace + common_id + schema_version
const tailLen = 1

// Encode packs t according to layout into (key_bytes, value_bytes). commonID
// and schemaVersion are embedded in the key header so all rows of one
// logical table share a memcmp-ordered prefix (spec §3/§6).
func Encode(t types.Tuple, layout *schema.Layout, namespace byte, commonID int64, schemaVersion uint32) (keyBytes, valueBytes []byte, err error) {
	s := layout.Schema
	if len(t) != s.Len() {
		return nil, nil, coperr.NewSchemaMismatch("tuple has %d values, schema has %d columns", len(t), s.Len())
	}

	keyBytes, err = encodeKeyPart(t, layout, namespace, commonID, schemaVersion)
	if err != nil {
		return nil, nil, err
	}
	valueBytes, err = encodeValuePart(t, layout)
	if err != nil {
		return nil, nil, err
	}
	return keyBytes, valueBytes, nil
}

func encodeKeyPart(t types.Tuple, layout *schema.Layout, namespace byte, commonID int64, schemaVersion uint32) ([]byte, error) {
	s := layout.Schema
	out := make([]byte, headerLen, headerLen+tailLen+32)
	out[0] = namespace
	binary.BigEndian.PutUint64(out[1:9], uint64(commonID))
	binary.BigEndian.PutUint32(out[9:13], schemaVersion)

	for _, logical := range layout.KeyLogical {
		col := s.Columns[logical]
		v := t[logical]
		if v.IsNull() {
			if !col.IsNullable {
				return nil, coperr.NewSchemaMismatch("key column %d is not nullable but value is null", logical)
			}
			out = append(out, 0x00) // null sorts before every non-null value
			continue
		}
		if v.Type() != col.Type {
			return nil, coperr.NewTypeMismatch("key column %d declared %s, value is %s", logical, col.Type, v.Type())
		}
		if col.IsNullable {
			out = append(out, 0x01)
		}
		switch col.Type {
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
	out = append(out, 0x00) // tail: complete key, no further padding bookkeeping needed
	return out, nil
}

func encodeValuePart(t types.Tuple, layout *schema.Layout) ([]byte, error) {
	s := layout.Schema
	n := len(layout.ValueLogical)
	bitmapLen := (n + 7) / 8
	out := make([]byte, bitmapLen)

	for i, logical := range layout.ValueLogical {
		col := s.Columns[logical]
		v := t[logical]
		if v.IsNull() {
			if !col.IsNullable {
				return nil, coperr.NewSchemaMismatch("value column %d is not nullable but value is null", logical)
			}
			out[i/8] |= 1 << uint(i%8)
			continue
		}
		if v.Type() != col.Type {
			return nil, coperr.NewTypeMismatch("value column %d declared %s, value is %s", logical, col.Type, v.Type())
		}
		switch col.Type {
		case types.Bool:
			out = append(out, encodeKeyBool(v.Bool())...)
		case types.Int32:
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(v.Int32()))
			out = append(out, b[:]...)
		case types.Int64:
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(v.Int64()))
			out = append(out, b[:]...)
		case types.Float32:
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], floatBits32(v.Float32()))
			out = append(out, b[:]...)
		case types.Float64:
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], floatBits64(v.Float64()))
			out = append(out, b[:]...)
		case types.String:
			var lenBuf [binary.MaxVarintLen64]byte
			ln := binary.PutUvarint(lenBuf[:], uint64(len(v.Bytes())))
			out = append(out, lenBuf[:ln]...)
			out = append(out, v.Bytes()...)
		}
	}
	return out, nil
}

// Decode reconstructs a Tuple from (key_bytes, value_bytes) per layout.
// Decoding never allocates beyond what the output tuple requires: fixed
// width fields are read directly out of the input slices.
func Decode(keyBytes, valueBytes []byte, layout *schema.Layout) (types.Tuple, error) {
	s := layout.Schema
	if len(keyBytes) < headerLen+tailLen {
		return nil, coperr.NewDecode("key_bytes too short: %d bytes", len(keyBytes))
	}
	t := make(types.Tuple, s.Len())

	cursor := keyBytes[headerLen : len(keyBytes)-tailLen]
	for _, logical := range layout.KeyLogical {
		col := s.Columns[logical]
		if len(cursor) == 0 {
			return nil, coperr.NewDecode("key part exhausted decoding column %d", logical)
		}
		if col.IsNullable {
			present := cursor[0]
			cursor = cursor[1:]
			if present == 0x00 {
				t[logical] = types.Null(col.Type)
				continue
			}
		}
		switch col.Type {
		case types.Bool:
			t[logical] = types.NewBool(decodeKeyBool(cursor))
			cursor = cursor[1:]
		case types.Int32:
			t[logical] = types.NewInt32(decodeKeyInt32(cursor))
			cursor = cursor[4:]
		case types.Int64:
			t[logical] = types.NewInt64(decodeKeyInt64(cursor))
			cursor = cursor[8:]
		case types.Float32:
			t[logical] = types.NewFloat32(decodeKeyFloat32(cursor))
			cursor = cursor[4:]
		case types.Float64:
			t[logical] = types.NewFloat64(decodeKeyFloat64(cursor))
			cursor = cursor[8:]
		case types.String:
			raw, n := decodeKeyBytes(cursor)
			t[logical] = types.NewString(raw)
			cursor = cursor[n:]
		}
	}

	if err := decodeValuePart(valueBytes, layout, t); err != nil {
		return nil, err
	}
	return t, nil
}

// DecodeKeyOnly reconstructs only the key-part columns of a tuple, leaving
// every value-part column as a typed null. This is the executor's key_only
// fast path (spec §4.6): when a plan never reads a non-key column, the
// value_bytes never need to be fetched from the iterator at all.
func DecodeKeyOnly(keyBytes []byte, layout *schema.Layout) (types.Tuple, error) {
	s := layout.Schema
	if len(keyBytes) < headerLen+tailLen {
		return nil, coperr.NewDecode("key_bytes too short: %d bytes", len(keyBytes))
	}
	t := make(types.Tuple, s.Len())
	for _, logical := range layout.ValueLogical {
		t[logical] = types.Null(s.Columns[logical].Type)
	}

	cursor := keyBytes[headerLen : len(keyBytes)-tailLen]
	for _, logical := range layout.KeyLogical {
		col := s.Columns[logical]
		if len(cursor) == 0 {
			return nil, coperr.NewDecode("key part exhausted decoding column %d", logical)
		}
		if col.IsNullable {
			present := cursor[0]
			cursor = cursor[1:]
			if present == 0x00 {
				t[logical] = types.Null(col.Type)
				continue
			}
		}
		switch col.Type {
		case types.Bool:
			t[logical] = types.NewBool(decodeKeyBool(cursor))
			cursor = cursor[1:]
		case types.Int32:
			t[logical] = types.NewInt32(decodeKeyInt32(cursor))
			cursor = cursor[4:]
		case types.Int64:
			t[logical] = types.NewInt64(decodeKeyInt64(cursor))
			cursor = cursor[8:]
		case types.Float32:
			t[logical] = types.NewFloat32(decodeKeyFloat32(cursor))
			cursor = cursor[4:]
		case types.Float64:
			t[logical] = types.NewFloat64(decodeKeyFloat64(cursor))
			cursor = cursor[8:]
		case types.String:
			raw, n := decodeKeyBytes(cursor)
			t[logical] = types.NewString(raw)
			cursor = cursor[n:]
		}
	}
	return t, nil
}

func decodeValuePart(valueBytes []byte, layout *schema.Layout, t types.Tuple) error {
	s := layout.Schema
	n := len(layout.ValueLogical)
	bitmapLen := (n + 7) / 8
	if len(valueBytes) < bitmapLen {
		return coperr.NewDecode("value_bytes shorter than null bitmap: %d bytes", len(valueBytes))
	}
	cursor := valueBytes[bitmapLen:]
	for i, logical := range layout.ValueLogical {
		col := s.Columns[logical]
		null := valueBytes[i/8]&(1<<uint(i%8)) != 0
		if null {
			t[logical] = types.Null(col.Type)
			continue
		}
		if len(cursor) == 0 && col.Type != types.String {
			return coperr.NewDecode("value part exhausted decoding column %d", logical)
		}
		switch col.Type {
		case types.Bool:
			t[logical] = types.NewBool(decodeKeyBool(cursor))
			cursor = cursor[1:]
		case types.Int32:
			t[logical] = types.NewInt32(int32(binary.LittleEndian.Uint32(cursor[:4])))
			cursor = cursor[4:]
		case types.Int64:
			t[logical] = types.NewInt64(int64(binary.LittleEndian.Uint64(cursor[:8])))
			cursor = cursor[8:]
		case types.Float32:
			t[logical] = types.NewFloat32(float32FromBits(binary.LittleEndian.Uint32(cursor[:4])))
			cursor = cursor[4:]
		case types.Float64:
			t[logical] = types.NewFloat64(float64FromBits(binary.LittleEndian.Uint64(cursor[:8])))
			cursor = cursor[8:]
		case types.String:
			ln, n := binary.Uvarint(cursor)
			if n <= 0 {
				return coperr.NewDecode("invalid varint length prefix for column %d", logical)
			}
			cursor = cursor[n:]
			str := make([]byte, ln)
			copy(str, cursor[:ln])
			t[logical] = types.NewString(str)
			cursor = cursor[ln:]
		}
	}
	return nil
}
