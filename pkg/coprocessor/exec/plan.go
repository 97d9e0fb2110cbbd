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

package exec

import (
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/aggfuncs"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/schema"
)

// AggregationOperator is one entry of a Plan's aggregation_operators list:
// an operator plus the projected-tuple column (or sentinel) it consumes.
type AggregationOperator struct {
	Op            aggfuncs.Op
	IndexOfColumn int32
}

// Plan is the declarative wire struct spec §6 describes. It is immutable
// for the lifetime of one Open/Close pair.
type Plan struct {
	SchemaVersion uint32

	OriginalSchema   *schema.Schema
	SelectionColumns []int32 // logical indices into OriginalSchema; empty means pass-through

	ResultSchema *schema.Schema

	GroupByColumns       []int32 // indices into the projected tuple
	AggregationOperators []AggregationOperator

	// GroupMapRowCeiling and GroupMapByteCeiling, if > 0, bound the
	// Aggregator's buffered group-by map before Execute fails with
	// ResourceExhausted (spec §5's resource ceiling). A caller normally
	// fills these from copconfig.Config rather than setting them directly.
	GroupMapRowCeiling  int
	GroupMapByteCeiling int
}
