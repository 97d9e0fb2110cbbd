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

// Package types holds the cell-level data model shared by every stage of the
// coprocessor pipeline: the column type enum, the tagged-variant Value, and
// the fixed-length Tuple they compose into.
package types

import "fmt"

// ColumnType is one of the six semantic types a column may declare.
type ColumnType uint8

const (
	Bool ColumnType = iota
	Int32
	Int64
	Float32
	Float64
	String
)

func (t ColumnType) String() string {
	switch t {
	case Bool:
		return "BOOL"
	case Int32:
		return "INT32"
	case Int64:
		return "INT64"
	case Float32:
		return "FLOAT32"
	case Float64:
		return "FLOAT64"
	case String:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

// IsNumeric reports whether the type is numeric (BOOL counts as numeric),
// i.e. a legal SUM operand. MAX/MIN accept every numeric type and STRING.
func (t ColumnType) IsNumeric() bool {
	switch t {
	case Int32, Int64, Float32, Float64, Bool:
		return true
	default:
		return false
	}
}

// Value is a tagged-variant cell: {null} union {bool,i32,i64,f32,f64,bytes}.
// Encoders and decoders dispatch on the owning column's declared ColumnType,
// not on typ -- typ only has to match, it is never used to pick the wire
// representation.
type Value struct {
	typ  ColumnType
	null bool

	b   bool
	i32 int32
	i64 int64
	f32 float32
	f64 float64
	str []byte
}

func Null(t ColumnType) Value { return Value{typ: t, null: true} }

func NewBool(v bool) Value       { return Value{typ: Bool, b: v} }
func NewInt32(v int32) Value     { return Value{typ: Int32, i32: v} }
func NewInt64(v int64) Value     { return Value{typ: Int64, i64: v} }
func NewFloat32(v float32) Value { return Value{typ: Float32, f32: v} }
func NewFloat64(v float64) Value { return Value{typ: Float64, f64: v} }
func NewString(v []byte) Value   { return Value{typ: String, str: v} }

func (v Value) IsNull() bool    { return v.null }
func (v Value) Type() ColumnType { return v.typ }

func (v Value) Bool() bool       { return v.b }
func (v Value) Int32() int32     { return v.i32 }
func (v Value) Int64() int64     { return v.i64 }
func (v Value) Float32() float32 { return v.f32 }
func (v Value) Float64() float64 { return v.f64 }
func (v Value) Bytes() []byte    { return v.str }

// AsInt64 returns the value widened to int64, for the SUM/SUM0 promotion
// table (BOOL, INT32, INT64 -> INT64). Panics if v is not one of those types
// or is null; callers must check IsNull and Type first.
func (v Value) AsInt64() int64 {
	switch v.typ {
	case Bool:
		if v.b {
			return 1
		}
		return 0
	case Int32:
		return int64(v.i32)
	case Int64:
		return v.i64
	default:
		panic(fmt.Sprintf("AsInt64: value of type %s cannot widen to int64", v.typ))
	}
}

// AsFloat64 returns the value widened to float64, for the SUM/SUM0 promotion
// table (FLOAT32, FLOAT64 -> FLOAT64).
func (v Value) AsFloat64() float64 {
	switch v.typ {
	case Float32:
		return float64(v.f32)
	case Float64:
		return v.f64
	default:
		panic(fmt.Sprintf("AsFloat64: value of type %s cannot widen to float64", v.typ))
	}
}

// Equal reports value equality under the type's natural equality, treating
// -0.0 and +0.0 as equal the way the key codec's ordering does.
func (v Value) Equal(o Value) bool {
	if v.null != o.null {
		return false
	}
	if v.null {
		return v.typ == o.typ
	}
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case Bool:
		return v.b == o.b
	case Int32:
		return v.i32 == o.i32
	case Int64:
		return v.i64 == o.i64
	case Float32:
		return v.f32 == o.f32
	case Float64:
		return v.f64 == o.f64
	case String:
		return string(v.str) == string(o.str)
	}
	return false
}

// Compare orders two non-null values of the same declared type the way
// bytes.Compare orders byte slices: <0, 0, >0. Both the filter stage and the
// MAX/MIN accumulators need exactly this, so it lives once, here.
func Compare(a, b Value) (int, error) {
	if a.typ != b.typ {
		return 0, fmt.Errorf("cannot compare %s with %s", a.typ, b.typ)
	}
	switch a.typ {
	case Bool:
		switch {
		case a.b == b.b:
			return 0, nil
		case !a.b && b.b:
			return -1, nil
		default:
			return 1, nil
		}
	case Int32:
		return compareInt64(int64(a.i32), int64(b.i32)), nil
	case Int64:
		return compareInt64(a.i64, b.i64), nil
	case Float32:
		return compareFloat64(float64(a.f32), float64(b.f32)), nil
	case Float64:
		return compareFloat64(a.f64, b.f64), nil
	case String:
		return compareBytes(a.str, b.str), nil
	default:
		return 0, fmt.Errorf("unsupported type %s in comparison", a.typ)
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBytes(a, b []byte) int {
	la, lb := len(a), len(b)
	for i := 0; i < la && i < lb; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case la < lb:
		return -1
	case la > lb:
		return 1
	default:
		return 0
	}
}

func (v Value) String() string {
	if v.null {
		return "NULL"
	}
	switch v.typ {
	case Bool:
		return fmt.Sprintf("%v", v.b)
	case Int32:
		return fmt.Sprintf("%d", v.i32)
	case Int64:
		return fmt.Sprintf("%d", v.i64)
	case Float32:
		return fmt.Sprintf("%v", v.f32)
	case Float64:
		return fmt.Sprintf("%v", v.f64)
	case String:
		return string(v.str)
	default:
		return "?"
	}
}

// Tuple is a fixed-length vector of optional values, one per logical column.
type Tuple []Value

func (t Tuple) Equal(o Tuple) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if !t[i].Equal(o[i]) {
			return false
		}
	}
	return true
}
