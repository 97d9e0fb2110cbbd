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

// Package project is the Selector (C3): it projects a decoded source tuple
// down to the columns named by selection_columns, in the order given,
// duplicates allowed.
package project

import (
	"github.com/matrixorigin/mo-pushdown/pkg/coperr"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/schema"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/types"
)

// Selector holds a compiled selection_columns list against an original
// schema. An empty selection list means "pass the original row through
// unchanged" (spec §4.2).
type Selector struct {
	original *schema.Schema
	columns  []int32 // logical indices into original; empty means identity
}

// New validates selection against original and returns a compiled Selector.
func New(original *schema.Schema, selectionColumns []int32) (*Selector, error) {
	n := int32(original.Len())
	for _, idx := range selectionColumns {
		if idx < 0 || idx >= n {
			return nil, coperr.NewIndexOutOfRange("selection column %d out of range [0,%d)", idx, n)
		}
	}
	return &Selector{original: original, columns: selectionColumns}, nil
}

// OutputLen reports the width of the tuples Select produces.
func (s *Selector) OutputLen() int {
	if len(s.columns) == 0 {
		return s.original.Len()
	}
	return len(s.columns)
}

// OutputType reports the type of selected column k, for result-schema
// validation at Open time.
func (s *Selector) OutputType(k int) types.ColumnType {
	if len(s.columns) == 0 {
		return s.original.Columns[k].Type
	}
	return s.original.Columns[s.columns[k]].Type
}

// OriginalIndex reports the original schema's logical index that feeds
// output position k, for callers that need to map projected columns back
// to the columns a plan actually reads (e.g. the executor's key_only
// feasibility check).
func (s *Selector) OriginalIndex(k int) int {
	if len(s.columns) == 0 {
		return k
	}
	return int(s.columns[k])
}

// Select projects t according to the compiled selection.
func (s *Selector) Select(t types.Tuple) types.Tuple {
	if len(s.columns) == 0 {
		return t
	}
	out := make(types.Tuple, len(s.columns))
	for k, idx := range s.columns {
		out[k] = t[idx]
	}
	return out
}
