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

package aggregate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/mo-pushdown/pkg/coperr"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/aggfuncs"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/types"
)

func TestPassThroughModeAIsIdentity(t *testing.T) {
	a := New(nil, nil)
	require.Equal(t, PassThrough, a.Mode())
	require.True(t, a.Streaming())

	row := types.Tuple{types.NewInt32(1)}
	out, ok, err := a.Add(row)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, row.Equal(out))

	rows, err := a.Finish()
	require.NoError(t, err)
	require.Nil(t, rows)
}

func TestGroupOnlyModeB(t *testing.T) {
	a := New([]int32{0}, nil)
	require.Equal(t, GroupOnly, a.Mode())
	require.False(t, a.Streaming())

	for _, v := range []int32{1, 2, 1, 3, 2} {
		_, ok, err := a.Add(types.Tuple{types.NewInt32(v)})
		require.NoError(t, err)
		require.False(t, ok)
	}
	rows, err := a.Finish()
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

func TestAggOnlyModeCSingletonIdempotence(t *testing.T) {
	slots := []Slot{
		{Op: aggfuncs.Count, IndexOfColumn: 0, OperandType: types.Int64},
		{Op: aggfuncs.Sum, IndexOfColumn: 0, OperandType: types.Int64},
		{Op: aggfuncs.Max, IndexOfColumn: 0, OperandType: types.Int64},
		{Op: aggfuncs.Min, IndexOfColumn: 0, OperandType: types.Int64},
		{Op: aggfuncs.CountWithNull, IndexOfColumn: 0, OperandType: types.Int64},
	}
	a := New(nil, slots)
	require.Equal(t, AggOnly, a.Mode())

	_, ok, err := a.Add(types.Tuple{types.NewInt64(42)})
	require.NoError(t, err)
	require.False(t, ok)

	rows, err := a.Finish()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	require.True(t, row[0].Equal(types.NewInt64(1)))  // COUNT
	require.True(t, row[1].Equal(types.NewInt64(42))) // SUM
	require.True(t, row[2].Equal(types.NewInt64(42))) // MAX
	require.True(t, row[3].Equal(types.NewInt64(42))) // MIN
	require.True(t, row[4].Equal(types.NewInt64(1)))  // COUNT_WITH_NULL
}

func TestAggOnlySingletonNullRow(t *testing.T) {
	slots := []Slot{{Op: aggfuncs.CountWithNull, IndexOfColumn: 0, OperandType: types.Int64}}
	a := New(nil, slots)
	_, _, err := a.Add(types.Tuple{types.Null(types.Int64)})
	require.NoError(t, err)
	rows, err := a.Finish()
	require.NoError(t, err)
	require.True(t, rows[0][0].Equal(types.NewInt64(1)))
}

func TestCountStarViaSentinel(t *testing.T) {
	slots := []Slot{{Op: aggfuncs.CountWithNull, IndexOfColumn: aggfuncs.NoColumn, OperandType: types.Bool}}
	a := New(nil, slots)
	for i := 0; i < 8; i++ {
		_, _, err := a.Add(types.Tuple{types.NewInt32(int32(i))})
		require.NoError(t, err)
	}
	rows, err := a.Finish()
	require.NoError(t, err)
	require.True(t, rows[0][0].Equal(types.NewInt64(8)))
}

func TestGroupAndAggModeD(t *testing.T) {
	slots := []Slot{{Op: aggfuncs.Count, IndexOfColumn: 1, OperandType: types.Int32}}
	a := New([]int32{0}, slots)
	require.Equal(t, GroupAndAgg, a.Mode())

	rows := []types.Tuple{
		{types.NewBool(true), types.NewInt32(1)},
		{types.NewBool(true), types.NewInt32(2)},
		{types.NewBool(false), types.Null(types.Int32)},
		{types.Null(types.Bool), types.NewInt32(3)},
	}
	for _, r := range rows {
		_, _, err := a.Add(r)
		require.NoError(t, err)
	}
	out, err := a.Finish()
	require.NoError(t, err)
	require.Len(t, out, 3)

	total := int64(0)
	for _, r := range out {
		total += r[1].Int64()
	}
	require.Equal(t, int64(3), total) // non-null INT32 cells: true-group has 2, null-group has 1, false-group has 0
}

func TestResourceCeiling(t *testing.T) {
	a := New([]int32{0}, nil)
	a.RowCeiling = 2
	_, _, err := a.Add(types.Tuple{types.NewInt32(1)})
	require.NoError(t, err)
	_, _, err = a.Add(types.Tuple{types.NewInt32(2)})
	require.NoError(t, err)
	_, _, err = a.Add(types.Tuple{types.NewInt32(3)})
	require.Error(t, err)
	require.True(t, coperr.Is(err, coperr.ResourceExhausted))
}

func TestGroupByNullFormsOwnGroup(t *testing.T) {
	a := New([]int32{0}, nil)
	_, _, err := a.Add(types.Tuple{types.Null(types.Int32)})
	require.NoError(t, err)
	_, _, err = a.Add(types.Tuple{types.Null(types.Int32)})
	require.NoError(t, err)
	_, _, err = a.Add(types.Tuple{types.NewInt32(1)})
	require.NoError(t, err)
	rows, err := a.Finish()
	require.NoError(t, err)
	require.Len(t, rows, 2)
}
