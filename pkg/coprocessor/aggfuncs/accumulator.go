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

// Package aggfuncs is the Accumulator Set (C4): per (group, aggregation
// slot) running state for the six operators, with the null-skip and type
// promotion rules from spec §4.3. Shaped after the Fill/Flush/Copy contract
// of pkg/sql/colexec/aggexec.AggFuncExec, scaled down to one row at a time
// (the coprocessor has no vector batches to fill).
package aggfuncs

import (
	"math/big"

	"github.com/matrixorigin/mo-pushdown/pkg/coperr"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/types"
)

// Op is one of the six aggregation operators spec §4.3 defines.
type Op uint8

const (
	Count Op = iota
	CountWithNull
	Sum
	Sum0
	Max
	Min
)

func (o Op) String() string {
	switch o {
	case Count:
		return "COUNT"
	case CountWithNull:
		return "COUNT_WITH_NULL"
	case Sum:
		return "SUM"
	case Sum0:
		return "SUM0"
	case Max:
		return "MAX"
	case Min:
		return "MIN"
	default:
		return "UNKNOWN"
	}
}

// NoColumn is the canonical "no column" sentinel for index_of_column. Any
// negative index, or any index at or past the end of the projected tuple,
// is an equivalent sentinel (spec §9 open question) -- IsSentinel below is
// the single place that equivalence is decided.
const NoColumn = -1

// IsSentinel reports whether idx denotes "no column" against a projected
// tuple of width projectedLen.
func IsSentinel(idx int32, projectedLen int) bool {
	return idx < 0 || int(idx) >= projectedLen
}

// OutputType returns the result type of op applied to an input of type in,
// applying the SUM/SUM0 promotion table of spec §4.3. COUNT/COUNT_WITH_NULL
// always produce INT64 regardless of in.
func OutputType(op Op, in types.ColumnType) (types.ColumnType, error) {
	switch op {
	case Count, CountWithNull:
		return types.Int64, nil
	case Sum, Sum0:
		switch in {
		case types.Bool, types.Int32, types.Int64:
			return types.Int64, nil
		case types.Float32, types.Float64:
			return types.Float64, nil
		default:
			return 0, coperr.NewTypeMismatch("%s does not accept %s input", op, in)
		}
	case Max, Min:
		if !in.IsNumeric() && in != types.String {
			return 0, coperr.NewTypeMismatch("%s does not accept %s input", op, in)
		}
		return in, nil
	default:
		return 0, coperr.NewInvalidPlan("unknown aggregation operator %d", op)
	}
}

// Accumulator is one running (group, slot) state. Add is called once per
// input row (possibly with a null Value, including the virtual null the
// NoColumn sentinel produces); Flush produces the final result and must be
// callable exactly once, at group-emit time.
type Accumulator interface {
	Add(v types.Value) error
	Flush() (types.Value, error)
}

// New constructs the Accumulator for op over operand type inTyp.
func New(op Op, inTyp types.ColumnType) (Accumulator, error) {
	outTyp, err := OutputType(op, inTyp)
	if err != nil {
		return nil, err
	}
	switch op {
	case Count:
		return &countAcc{withNull: false}, nil
	case CountWithNull:
		return &countAcc{withNull: true}, nil
	case Sum:
		return &sumAcc{outTyp: outTyp, zeroOnAllNull: false}, nil
	case Sum0:
		return &sumAcc{outTyp: outTyp, zeroOnAllNull: true}, nil
	case Max:
		return &extremeAcc{typ: outTyp, wantMax: true}, nil
	case Min:
		return &extremeAcc{typ: outTyp, wantMax: false}, nil
	default:
		return nil, coperr.NewInvalidPlan("unknown aggregation operator %d", op)
	}
}

type countAcc struct {
	withNull bool
	n        int64
}

func (a *countAcc) Add(v types.Value) error {
	if v.IsNull() && !a.withNull {
		return nil
	}
	a.n++
	return nil
}

func (a *countAcc) Flush() (types.Value, error) {
	return types.NewInt64(a.n), nil
}

// sumAcc accumulates INT64 sums in arbitrary precision (math/big) rather
// than wrapping int64 arithmetic: a running total that transiently exceeds
// int64's range but is brought back in bounds by a later compensating
// addend (e.g. SUM(MaxInt64, 1, -1)) is not an overflow, so the check has
// to happen once, against the final total, not on every intermediate Add
// (spec §7: overflow is detected "at final encode"). FLOAT64 sums have no
// such concern and accumulate directly.
type sumAcc struct {
	outTyp        types.ColumnType
	zeroOnAllNull bool
	seenNonNull   bool
	iSum          *big.Int
	f64           float64
}

func (a *sumAcc) Add(v types.Value) error {
	if v.IsNull() {
		return nil
	}
	a.seenNonNull = true
	switch a.outTyp {
	case types.Int64:
		if a.iSum == nil {
			a.iSum = new(big.Int)
		}
		a.iSum.Add(a.iSum, big.NewInt(v.AsInt64()))
	case types.Float64:
		a.f64 += v.AsFloat64()
	}
	return nil
}

func (a *sumAcc) Flush() (types.Value, error) {
	if !a.seenNonNull {
		if !a.zeroOnAllNull {
			return types.Null(a.outTyp), nil
		}
		if a.outTyp == types.Int64 {
			return types.NewInt64(0), nil
		}
		return types.NewFloat64(0), nil
	}
	if a.outTyp == types.Int64 {
		if !a.iSum.IsInt64() {
			return types.Value{}, coperr.NewOverflow("integer SUM overflow: total %s exceeds int64 range", a.iSum.String())
		}
		return types.NewInt64(a.iSum.Int64()), nil
	}
	return types.NewFloat64(a.f64), nil
}

type extremeAcc struct {
	typ     types.ColumnType
	wantMax bool
	seen    bool
	cur     types.Value
}

func (a *extremeAcc) Add(v types.Value) error {
	if v.IsNull() {
		return nil
	}
	if !a.seen {
		a.cur = v
		a.seen = true
		return nil
	}
	cmp, err := types.Compare(v, a.cur)
	if err != nil {
		return coperr.NewTypeMismatch("%s", err)
	}
	if (a.wantMax && cmp > 0) || (!a.wantMax && cmp < 0) {
		a.cur = v
	}
	return nil
}

func (a *extremeAcc) Flush() (types.Value, error) {
	if !a.seen {
		return types.Null(a.typ), nil
	}
	return a.cur, nil
}

