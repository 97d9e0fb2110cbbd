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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/mo-pushdown/pkg/coperr"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/aggfuncs"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/schema"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/types"
)

// original is a 3-column schema: two key columns (Bool at physical 0,
// Int64 at physical 1) followed by one value column (Int32 at physical 2).
func testOriginalSchema() *schema.Schema {
	return &schema.Schema{
		CommonID: 7,
		Version:  1,
		Columns: []schema.ColumnDescriptor{
			{Type: types.Bool, IsKey: true, Index: 0},
			{Type: types.Int64, IsKey: true, Index: 1},
			{Type: types.Int32, Index: 2},
		},
	}
}

func passThroughPlan() *Plan {
	original := testOriginalSchema()
	return &Plan{
		SchemaVersion:    1,
		OriginalSchema:   original,
		SelectionColumns: nil,
		ResultSchema:     original,
	}
}

func TestOpenRejectsZeroSchemaVersion(t *testing.T) {
	c := New(0x01)
	plan := passThroughPlan()
	plan.SchemaVersion = 0
	err := c.Open(plan)
	require.Error(t, err)
	require.True(t, coperr.Is(err, coperr.InvalidPlan))
}

func TestOpenRejectsSchemaVersionMismatch(t *testing.T) {
	c := New(0x01)
	plan := passThroughPlan()
	plan.ResultSchema = &schema.Schema{
		CommonID: plan.OriginalSchema.CommonID,
		Version:  2,
		Columns:  plan.OriginalSchema.Columns,
	}
	err := c.Open(plan)
	require.Error(t, err)
	require.True(t, coperr.Is(err, coperr.InvalidPlan))
}

func TestOpenRejectsCommonIDMismatch(t *testing.T) {
	c := New(0x01)
	plan := passThroughPlan()
	plan.ResultSchema = &schema.Schema{
		CommonID: plan.OriginalSchema.CommonID + 1,
		Version:  plan.SchemaVersion,
		Columns:  plan.OriginalSchema.Columns,
	}
	err := c.Open(plan)
	require.Error(t, err)
	require.True(t, coperr.Is(err, coperr.InvalidPlan))
}

func TestOpenRejectsOutOfRangeSelection(t *testing.T) {
	c := New(0x01)
	plan := passThroughPlan()
	plan.SelectionColumns = []int32{99}
	err := c.Open(plan)
	require.Error(t, err)
	require.True(t, coperr.Is(err, coperr.IndexOutOfRange))
}

func TestOpenRejectsOutOfRangeGroupBy(t *testing.T) {
	c := New(0x01)
	plan := passThroughPlan()
	plan.GroupByColumns = []int32{99}
	err := c.Open(plan)
	require.Error(t, err)
	require.True(t, coperr.Is(err, coperr.IndexOutOfRange))
}

func TestOpenRejectsResultSchemaColumnCountMismatch(t *testing.T) {
	c := New(0x01)
	plan := passThroughPlan()
	plan.ResultSchema = &schema.Schema{
		CommonID: plan.OriginalSchema.CommonID,
		Version:  plan.SchemaVersion,
		Columns:  plan.OriginalSchema.Columns[:2],
	}
	err := c.Open(plan)
	require.Error(t, err)
	require.True(t, coperr.Is(err, coperr.InvalidPlan))
}

func TestOpenRejectsResultSchemaTypeMismatch(t *testing.T) {
	c := New(0x01)
	plan := passThroughPlan()
	cols := append([]schema.ColumnDescriptor(nil), plan.OriginalSchema.Columns...)
	cols[2].Type = types.String
	plan.ResultSchema = &schema.Schema{
		CommonID: plan.OriginalSchema.CommonID,
		Version:  plan.SchemaVersion,
		Columns:  cols,
	}
	err := c.Open(plan)
	require.Error(t, err)
	require.True(t, coperr.Is(err, coperr.TypeMismatch))
}

func TestOpenAggregationResultSchema(t *testing.T) {
	c := New(0x01)
	original := testOriginalSchema()
	plan := &Plan{
		SchemaVersion:  1,
		OriginalSchema: original,
		ResultSchema: &schema.Schema{
			CommonID: original.CommonID,
			Version:  1,
			Columns: []schema.ColumnDescriptor{
				{Type: types.Int64, Index: 0}, // COUNT
			},
		},
		AggregationOperators: []AggregationOperator{
			{Op: aggfuncs.CountWithNull, IndexOfColumn: aggfuncs.NoColumn},
		},
	}
	require.NoError(t, c.Open(plan))
	require.True(t, c.canKeyOnly) // COUNT(*) reads no column at all
	require.NoError(t, c.Close())
}

func TestOpenIdempotentAcrossReopen(t *testing.T) {
	c := New(0x01)
	require.NoError(t, c.Open(passThroughPlan()))
	require.True(t, c.open)
	require.NoError(t, c.Open(passThroughPlan()))
	require.True(t, c.open)
	require.NoError(t, c.Close())
	require.False(t, c.open)
}

func TestCanKeyOnlyFalseWhenValueColumnSelected(t *testing.T) {
	c := New(0x01)
	original := testOriginalSchema()
	plan := &Plan{
		SchemaVersion:    1,
		OriginalSchema:   original,
		SelectionColumns: []int32{2}, // the non-key Int32 column
		ResultSchema: &schema.Schema{
			CommonID: original.CommonID,
			Version:  1,
			Columns:  []schema.ColumnDescriptor{{Type: types.Int32, Index: 0}},
		},
	}
	require.NoError(t, c.Open(plan))
	require.False(t, c.canKeyOnly)
}
