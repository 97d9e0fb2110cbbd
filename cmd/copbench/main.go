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

// copbench loads a synthetic table into an in-memory pebble instance, runs
// a pushdown plan against it to exhaustion, and reports the row/byte
// throughput. It exists to exercise the coprocessor end to end the way an
// engineer would from a shell, without standing up a storage node.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"

	"github.com/matrixorigin/mo-pushdown/pkg/copconfig"
	"github.com/matrixorigin/mo-pushdown/pkg/coplog"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/aggfuncs"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/codec"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/kviter"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/schema"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/types"
	pushdown "github.com/matrixorigin/mo-pushdown"
)

var (
	configFile = flag.String("cfg", "", "toml configuration file (optional; defaults are used if empty)")
	rowCount   = flag.Int("rows", 10000, "synthetic rows to load before benchmarking")
	fetchCnt   = flag.Int("max-fetch-cnt", 0, "Execute's max_fetch_cnt budget (0 uses cfg's default_max_fetch_count)")
	bytesRPC   = flag.Int("max-bytes-rpc", 0, "Execute's max_bytes_rpc budget (0 uses cfg's default_max_bytes_rpc)")
	groupBy    = flag.Bool("group-by", false, "group by the bool key column instead of a flat count")
)

func main() {
	flag.Parse()

	cfg := copconfig.Default()
	if *configFile != "" {
		var err error
		cfg, err = copconfig.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.SetupLogger()

	// A zero flag means "caller did not set a cap" (spec §4.6's own
	// convention for Execute's budget fields), so an unset flag falls
	// through to cfg's configured default rather than silently discarding it.
	if *fetchCnt == 0 {
		*fetchCnt = cfg.DefaultMaxFetchCount
	}
	if *bytesRPC == 0 {
		*bytesRPC = cfg.DefaultMaxBytesRPC
	}

	ctx := coplog.WithRequestID(context.Background(), "copbench")

	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		coplog.Error(ctx, "open pebble", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	original := benchSchema()
	layout, err := schema.NewLayout(original)
	if err != nil {
		coplog.Error(ctx, "build layout", zap.Error(err))
		os.Exit(1)
	}

	coplog.Info(ctx, "loading synthetic rows", zap.Int("count", *rowCount))
	if err := loadRows(db, original, layout, *rowCount); err != nil {
		coplog.Error(ctx, "load rows", zap.Error(err))
		os.Exit(1)
	}

	plan := benchPlan(original, *groupBy, cfg)
	cop := pushdown.New(pushdown.DefaultNamespace)
	if err := cop.Open(plan); err != nil {
		coplog.Error(ctx, "open plan", zap.Error(err))
		os.Exit(1)
	}
	defer cop.Close()

	lower := []byte{codec.DefaultNamespace}
	upper := kviter.PrefixNext(lower)
	snap := db.NewSnapshot()
	defer snap.Close()
	it := snap.NewIter(&pebble.IterOptions{UpperBound: upper})
	kvIt := kviter.NewPebbleIterator(it)
	kvIt.Seek(lower)

	start := time.Now()
	var totalRows, totalBytes int
	for {
		kvs, hasMore, err := cop.Execute(kvIt, false, *fetchCnt, *bytesRPC)
		if err != nil {
			coplog.Error(ctx, "execute", zap.Error(err))
			os.Exit(1)
		}
		for _, kv := range kvs {
			totalBytes += len(kv.Key) + len(kv.Value)
		}
		totalRows += len(kvs)
		if !hasMore {
			break
		}
	}
	elapsed := time.Since(start)
	fmt.Printf("rows=%d bytes=%d elapsed=%s\n", totalRows, totalBytes, elapsed)
}

func benchSchema() *schema.Schema {
	return &schema.Schema{
		CommonID: 1,
		Version:  1,
		Columns: []schema.ColumnDescriptor{
			{Type: types.Bool, IsKey: true, Index: 0},
			{Type: types.Int32, IsNullable: true, Index: 3},
			{Type: types.Float32, IsNullable: true, Index: 4},
			{Type: types.Int64, IsNullable: true, Index: 5},
			{Type: types.Float64, IsKey: true, Index: 1},
			{Type: types.String, IsKey: true, Index: 2},
		},
	}
}

func benchPlan(original *schema.Schema, grouped bool, cfg *copconfig.Config) *pushdown.Plan {
	if !grouped {
		result := &schema.Schema{CommonID: original.CommonID, Version: original.Version, Columns: []schema.ColumnDescriptor{
			{Type: types.Int64, Index: 0},
		}}
		return &pushdown.Plan{
			SchemaVersion:  1,
			OriginalSchema: original,
			ResultSchema:   result,
			AggregationOperators: []pushdown.AggregationOperator{
				{Op: aggfuncs.CountWithNull, IndexOfColumn: aggfuncs.NoColumn},
			},
			GroupMapRowCeiling:  cfg.GroupMapRowCeiling,
			GroupMapByteCeiling: cfg.GroupMapByteCeiling,
		}
	}
	result := &schema.Schema{CommonID: original.CommonID, Version: original.Version, Columns: []schema.ColumnDescriptor{
		{Type: types.Bool, Index: 0},
		{Type: types.Int64, Index: 1},
	}}
	return &pushdown.Plan{
		SchemaVersion:  1,
		OriginalSchema: original,
		ResultSchema:   result,
		GroupByColumns: []int32{0},
		AggregationOperators: []pushdown.AggregationOperator{
			{Op: aggfuncs.Count, IndexOfColumn: 1},
		},
		GroupMapRowCeiling:  cfg.GroupMapRowCeiling,
		GroupMapByteCeiling: cfg.GroupMapByteCeiling,
	}
}

func loadRows(db *pebble.DB, original *schema.Schema, layout *schema.Layout, n int) error {
	rng := rand.New(rand.NewSource(1))
	batch := db.NewBatch()
	defer batch.Close()
	for i := 0; i < n; i++ {
		row := types.Tuple{
			types.NewBool(rng.Intn(2) == 0),
			types.NewInt32(rng.Int31n(1000)),
			types.NewFloat32(rng.Float32()),
			types.NewInt64(int64(i)),
			types.NewFloat64(float64(i) * 0.5),
			types.NewString([]byte(fmt.Sprintf("row-%08d", i))),
		}
		key, value, err := codec.Encode(row, layout, codec.DefaultNamespace, original.CommonID, original.Version)
		if err != nil {
			return err
		}
		if err := batch.Set(key, value, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}
