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

// Package schema is the Schema Registry (C1): it holds the original,
// selection, and result schemas for one open coprocessor plan and exposes
// the logical <-> physical column mapping every downstream stage needs.
package schema

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/matrixorigin/mo-pushdown/pkg/coperr"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/types"
)

// ColumnDescriptor is one entry of a Schema's declared column list. Its
// position in Schema.Columns is the logical index; Index is the physical
// index -- the position the column occupies in the serialized tuple.
type ColumnDescriptor struct {
	Type       types.ColumnType
	IsKey      bool
	IsNullable bool
	Index      int
}

// Schema is an ordered list of column descriptors sharing one CommonID and
// Version. Schemas are immutable from Open to Close.
type Schema struct {
	CommonID int64
	Version  uint32
	Columns  []ColumnDescriptor
}

func (s *Schema) Len() int { return len(s.Columns) }

// Layout is the schema's derived, physical-order view: which logical column
// goes in the key part and which in the value part, each sorted by physical
// index ascending, matching the wire format in spec §4.1/§6.
type Layout struct {
	Schema *Schema

	// KeyLogical[i] is the logical index of the i-th key column in physical order.
	KeyLogical []int
	// ValueLogical[i] is the logical index of the i-th value column in physical order.
	ValueLogical []int
}

// NewLayout validates s and derives its Layout. It is the "Open-time"
// validation pass of the schema registry: every physical index must be
// unique and fill [0, N) densely (checked with a roaring bitmap the way
// pkg/sql/plan/function/functionAgg/bitmap_or.go accumulates a column's
// seen-value set). The is_key columns, sorted by physical index, form the
// key part; where they sit among the physical indices is not checked.
func NewLayout(s *Schema) (*Layout, error) {
	n := s.Len()
	seen := roaring.New()
	for _, c := range s.Columns {
		if c.Index < 0 || c.Index >= n {
			return nil, coperr.NewInvalidPlan("physical index %d out of range [0,%d)", c.Index, n)
		}
		if seen.Contains(uint32(c.Index)) {
			return nil, coperr.NewInvalidPlan("duplicate physical index %d", c.Index)
		}
		seen.Add(uint32(c.Index))
	}
	if int(seen.GetCardinality()) != n {
		return nil, coperr.NewInvalidPlan("physical indices do not densely cover [0,%d)", n)
	}

	type idxLogical struct {
		phys, logical int
	}
	var keys, values []idxLogical
	for logical, c := range s.Columns {
		if c.IsKey {
			keys = append(keys, idxLogical{c.Index, logical})
		} else {
			values = append(values, idxLogical{c.Index, logical})
		}
	}
	sortByPhys := func(s []idxLogical) []int {
		for i := 1; i < len(s); i++ {
			for j := i; j > 0 && s[j-1].phys > s[j].phys; j-- {
				s[j-1], s[j] = s[j], s[j-1]
			}
		}
		out := make([]int, len(s))
		for i, e := range s {
			out[i] = e.logical
		}
		return out
	}

	return &Layout{
		Schema:       s,
		KeyLogical:   sortByPhys(keys),
		ValueLogical: sortByPhys(values),
	}, nil
}

// Compatible reports whether two schemas may appear together in one plan
// (spec §3: "two schemas are compatible only if their versions match").
func Compatible(a, b *Schema) bool {
	return a.Version == b.Version
}
