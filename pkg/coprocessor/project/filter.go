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

package project

import (
	"github.com/matrixorigin/mo-pushdown/pkg/coperr"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/types"
)

// CompareOp is a scalar comparison operator a Filter can apply between a
// projected column and a literal. This is a row-at-a-time analog of the
// per-type BinOp dispatch in pkg/sql/colexec/extend/overload, scaled down to
// the single scalar predicate the spec's optional filter stage needs --
// there is no vectorized batch here, one projected tuple in, one bool out.
type CompareOp uint8

const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

// Filter evaluates `column <op> literal` against a projected tuple. A null
// operand makes the predicate false, matching SQL three-valued-logic
// collapsed to a boolean accept/reject decision (the coprocessor doesn't
// surface NULL/UNKNOWN up the pipeline, only row admission).
type Filter struct {
	column  int
	op      CompareOp
	literal types.Value
}

// NewFilter validates column against the projected tuple's width. The
// literal's type is not checked here; Eval reports a TypeMismatch when it
// differs from the column value's type.
func NewFilter(projectedLen int, column int, op CompareOp, literal types.Value) (*Filter, error) {
	if column < 0 || column >= projectedLen {
		return nil, coperr.NewIndexOutOfRange("filter column %d out of range [0,%d)", column, projectedLen)
	}
	return &Filter{column: column, op: op, literal: literal}, nil
}

// Eval reports whether t passes the filter.
func (f *Filter) Eval(t types.Tuple) (bool, error) {
	v := t[f.column]
	if v.IsNull() || f.literal.IsNull() {
		return false, nil
	}
	if v.Type() != f.literal.Type() {
		return false, coperr.NewTypeMismatch("filter column is %s, literal is %s", v.Type(), f.literal.Type())
	}
	cmp, err := types.Compare(v, f.literal)
	if err != nil {
		return false, coperr.NewTypeMismatch("%s", err)
	}
	switch f.op {
	case Eq:
		return cmp == 0, nil
	case Ne:
		return cmp != 0, nil
	case Lt:
		return cmp < 0, nil
	case Le:
		return cmp <= 0, nil
	case Gt:
		return cmp > 0, nil
	case Ge:
		return cmp >= 0, nil
	default:
		return false, coperr.NewInvalidPlan("unknown compare op %d", f.op)
	}
}

