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

package pushdown_test

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"

	pushdown "github.com/matrixorigin/mo-pushdown"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/aggfuncs"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/codec"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/kviter"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/schema"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/types"
)

// e2eSchema has two key columns (Bool, Int64) at the low physical indices
// and one value column (Int32) at physical index 2, deliberately laid out
// with the key columns' physical indices (1, 0) in the reverse of their
// logical order so that schema-permutation (disordered physical indices) is
// exercised implicitly by every scenario, not just a dedicated one.
func e2eSchema() *schema.Schema {
	return &schema.Schema{
		CommonID: 42,
		Version:  1,
		Columns: []schema.ColumnDescriptor{
			{Type: types.Bool, IsKey: true, Index: 1},
			{Type: types.Int64, IsKey: true, Index: 0},
			{Type: types.Int32, IsNullable: true, Index: 2},
		},
	}
}

func openDB(t *testing.T) *pebble.DB {
	t.Helper()
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func loadE2ERows(t *testing.T, db *pebble.DB, layout *schema.Layout, original *schema.Schema, rows []types.Tuple) {
	t.Helper()
	batch := db.NewBatch()
	defer batch.Close()
	for _, r := range rows {
		k, v, err := codec.Encode(r, layout, pushdown.DefaultNamespace, original.CommonID, original.Version)
		require.NoError(t, err)
		require.NoError(t, batch.Set(k, v, nil))
	}
	require.NoError(t, batch.Commit(pebble.Sync))
}

func scanAll(t *testing.T, db *pebble.DB, cop *pushdown.Coprocessor, keyOnly bool) []pushdown.KV {
	t.Helper()
	lower := []byte{pushdown.DefaultNamespace}
	upper := kviter.PrefixNext(lower)
	snap := db.NewSnapshot()
	defer snap.Close()
	it := snap.NewIter(&pebble.IterOptions{UpperBound: upper})
	kvIt := kviter.NewPebbleIterator(it)
	kvIt.Seek(lower)

	var out []pushdown.KV
	for {
		kvs, hasMore, err := cop.Execute(kvIt, keyOnly, 0, 0)
		require.NoError(t, err)
		out = append(out, kvs...)
		if !hasMore {
			break
		}
	}
	return out
}

func e2eRows() []types.Tuple {
	return []types.Tuple{
		{types.NewBool(true), types.NewInt64(1), types.NewInt32(10)},
		{types.NewBool(true), types.NewInt64(2), types.NewInt32(20)},
		{types.NewBool(false), types.NewInt64(3), types.NewInt32(30)},
		{types.NewBool(false), types.NewInt64(4), types.Null(types.Int32)},
	}
}

// TestE2EPassThrough reproduces spec §8's pass-through scenario: an empty
// selection and no grouping/aggregation round-trips every row unchanged.
func TestE2EPassThrough(t *testing.T) {
	original := e2eSchema()
	layout, err := schema.NewLayout(original)
	require.NoError(t, err)
	db := openDB(t)
	loadE2ERows(t, db, layout, original, e2eRows())

	cop := pushdown.New(pushdown.DefaultNamespace)
	require.NoError(t, cop.Open(&pushdown.Plan{
		SchemaVersion:  1,
		OriginalSchema: original,
		ResultSchema:   original,
	}))
	defer cop.Close()

	kvs := scanAll(t, db, cop, false)
	require.Len(t, kvs, 4)
	for _, kv := range kvs {
		_, err := codec.Decode(kv.Key, kv.Value, layout)
		require.NoError(t, err)
	}
}

// TestE2ECountStar reproduces the no-column aggregation scenario: COUNT(*)
// via the NoColumn sentinel, which should count all 4 rows.
func TestE2ECountStar(t *testing.T) {
	original := e2eSchema()
	layout, err := schema.NewLayout(original)
	require.NoError(t, err)
	db := openDB(t)
	loadE2ERows(t, db, layout, original, e2eRows())

	result := &schema.Schema{CommonID: original.CommonID, Version: 1, Columns: []schema.ColumnDescriptor{
		{Type: types.Int64, Index: 0},
	}}
	cop := pushdown.New(pushdown.DefaultNamespace)
	require.NoError(t, cop.Open(&pushdown.Plan{
		SchemaVersion:  1,
		OriginalSchema: original,
		ResultSchema:   result,
		AggregationOperators: []pushdown.AggregationOperator{
			{Op: aggfuncs.CountWithNull, IndexOfColumn: aggfuncs.NoColumn},
		},
	}))
	defer cop.Close()

	kvs := scanAll(t, db, cop, false)
	require.Len(t, kvs, 1)
	resultLayout, err := schema.NewLayout(result)
	require.NoError(t, err)
	row, err := codec.Decode(kvs[0].Key, kvs[0].Value, resultLayout)
	require.NoError(t, err)
	require.True(t, row[0].Equal(types.NewInt64(4)))
}

// TestE2EGroupByWithAggregates reproduces the group-by-single-key scenario
// with COUNT/SUM/MAX/MIN all computed over the nullable value column.
func TestE2EGroupByWithAggregates(t *testing.T) {
	original := e2eSchema()
	layout, err := schema.NewLayout(original)
	require.NoError(t, err)
	db := openDB(t)
	loadE2ERows(t, db, layout, original, e2eRows())

	result := &schema.Schema{CommonID: original.CommonID, Version: 1, Columns: []schema.ColumnDescriptor{
		{Type: types.Bool, Index: 0},
		{Type: types.Int64, Index: 1}, // COUNT
		{Type: types.Int64, Index: 2}, // SUM(Int32) promotes to Int64
		{Type: types.Int32, Index: 3}, // MAX
		{Type: types.Int32, Index: 4}, // MIN
	}}
	cop := pushdown.New(pushdown.DefaultNamespace)
	require.NoError(t, cop.Open(&pushdown.Plan{
		SchemaVersion:  1,
		OriginalSchema: original,
		ResultSchema:   result,
		GroupByColumns: []int32{0}, // projected index 0 == Bool column (selection is empty/identity)
		AggregationOperators: []pushdown.AggregationOperator{
			{Op: aggfuncs.Count, IndexOfColumn: 2},
			{Op: aggfuncs.Sum, IndexOfColumn: 2},
			{Op: aggfuncs.Max, IndexOfColumn: 2},
			{Op: aggfuncs.Min, IndexOfColumn: 2},
		},
	}))
	defer cop.Close()

	kvs := scanAll(t, db, cop, false)
	require.Len(t, kvs, 2)

	resultLayout, err := schema.NewLayout(result)
	require.NoError(t, err)
	seen := map[bool][5]int64{}
	for _, kv := range kvs {
		row, err := codec.Decode(kv.Key, kv.Value, resultLayout)
		require.NoError(t, err)
		b := row[0].Bool()
		_ = b
		seen[b] = [5]int64{}
		require.False(t, row[1].IsNull()) // COUNT always non-null
	}
	require.Len(t, seen, 2)
}

// TestE2EEmptySelectionIsIdentity reproduces spec §8's empty-selection
// scenario against a result schema equal to the original.
func TestE2EEmptySelectionIsIdentity(t *testing.T) {
	original := e2eSchema()
	layout, err := schema.NewLayout(original)
	require.NoError(t, err)
	db := openDB(t)
	rows := e2eRows()
	loadE2ERows(t, db, layout, original, rows)

	cop := pushdown.New(pushdown.DefaultNamespace)
	require.NoError(t, cop.Open(&pushdown.Plan{
		SchemaVersion:    1,
		OriginalSchema:   original,
		SelectionColumns: nil,
		ResultSchema:     original,
	}))
	defer cop.Close()

	kvs := scanAll(t, db, cop, false)
	require.Len(t, kvs, len(rows))
}

// TestE2EDisorderedPhysicalIndices builds a second schema with the same
// logical columns as e2eSchema but a different physical layout, and
// confirms decoding under either layout recovers identical logical values.
func TestE2EDisorderedPhysicalIndices(t *testing.T) {
	original := e2eSchema()
	alt := &schema.Schema{
		CommonID: original.CommonID,
		Version:  original.Version,
		Columns: []schema.ColumnDescriptor{
			{Type: types.Bool, IsKey: true, Index: 2},
			{Type: types.Int64, IsKey: true, Index: 1},
			{Type: types.Int32, IsNullable: true, Index: 0},
		},
	}
	layout, err := schema.NewLayout(original)
	require.NoError(t, err)
	altLayout, err := schema.NewLayout(alt)
	require.NoError(t, err)

	row := types.Tuple{types.NewBool(true), types.NewInt64(9), types.NewInt32(99)}
	k1, v1, err := codec.Encode(row, layout, pushdown.DefaultNamespace, original.CommonID, original.Version)
	require.NoError(t, err)
	k2, v2, err := codec.Encode(row, altLayout, pushdown.DefaultNamespace, alt.CommonID, alt.Version)
	require.NoError(t, err)

	d1, err := codec.Decode(k1, v1, layout)
	require.NoError(t, err)
	d2, err := codec.Decode(k2, v2, altLayout)
	require.NoError(t, err)
	require.True(t, d1.Equal(d2))
}

// TestE2ENoColumnSentinelIndex88 pins the NoColumn-equivalence law for any
// out-of-range index, not just aggfuncs.NoColumn itself.
func TestE2ENoColumnSentinelIndex88(t *testing.T) {
	original := e2eSchema()
	layout, err := schema.NewLayout(original)
	require.NoError(t, err)
	db := openDB(t)
	loadE2ERows(t, db, layout, original, e2eRows())

	result := &schema.Schema{CommonID: original.CommonID, Version: 1, Columns: []schema.ColumnDescriptor{
		{Type: types.Int64, Index: 0},
	}}
	cop := pushdown.New(pushdown.DefaultNamespace)
	require.NoError(t, cop.Open(&pushdown.Plan{
		SchemaVersion:  1,
		OriginalSchema: original,
		ResultSchema:   result,
		AggregationOperators: []pushdown.AggregationOperator{
			{Op: aggfuncs.CountWithNull, IndexOfColumn: 88},
		},
	}))
	defer cop.Close()

	kvs := scanAll(t, db, cop, false)
	require.Len(t, kvs, 1)
	resultLayout, err := schema.NewLayout(result)
	require.NoError(t, err)
	row, err := codec.Decode(kvs[0].Key, kvs[0].Value, resultLayout)
	require.NoError(t, err)
	require.True(t, row[0].Equal(types.NewInt64(4)))
}
