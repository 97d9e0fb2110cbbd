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

// Package exec is Plan Open/Close (C7) and the Executor (C6): it compiles
// a declarative Plan into the C2-C5 stages and drives one iterator through
// them under the caller's fetch-count / byte-budget law.
package exec

import (
	"context"

	"github.com/matrixorigin/mo-pushdown/pkg/coperr"
	"github.com/matrixorigin/mo-pushdown/pkg/coplog"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/aggfuncs"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/aggregate"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/project"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/schema"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/types"
	"go.uber.org/zap"
)

// KV is one output row's encoded form, ready to cross the wire.
type KV struct {
	Key   []byte
	Value []byte
}

// Coprocessor is one instance driving C1-C6 over a declared Plan. It is
// re-Openable after Close (spec §4.5: "Open is idempotent across a
// Close/Open pair on the same coprocessor instance") and is driven by
// exactly one goroutine at a time (spec §5).
type Coprocessor struct {
	namespace byte

	plan           *Plan
	originalLayout *schema.Layout
	resultLayout   *schema.Layout
	selector       *project.Selector
	groupByColumns []int32
	aggSlots       []aggregate.Slot

	// canKeyOnly is true iff every column the plan reads is a key column of
	// the original schema, computed once at Open (spec §9 "supplemented":
	// key_only is an optimisation the executor itself must validate, not
	// blindly trust from the caller).
	canKeyOnly bool

	open bool

	// scan state, reset by each fresh Seek-then-Execute-to-exhaustion chain
	aggregator   *aggregate.Aggregator
	pending      []types.Tuple
	pendingPos   int
	bufferedDone bool
}

// New constructs a closed Coprocessor. Namespace is the key-header byte
// every encoded row of this instance carries (spec §3/§6); most callers
// use codec.DefaultNamespace.
func New(namespace byte) *Coprocessor {
	return &Coprocessor{namespace: namespace}
}

// Open validates plan and compiles C1-C5 (spec §4.5). Calling Open on an
// already-open instance first closes it.
func (c *Coprocessor) Open(plan *Plan) error {
	if c.open {
		c.Close()
	}

	ctx := context.Background()

	if plan.SchemaVersion == 0 {
		err := coperr.NewInvalidPlan("schema_version must be > 0")
		coplog.Error(ctx, "open rejected", zap.Error(err))
		return err
	}
	if plan.OriginalSchema.Version != plan.SchemaVersion || plan.ResultSchema.Version != plan.SchemaVersion {
		err := coperr.NewInvalidPlan("schema_version %d does not match original (%d) or result (%d) schema version",
			plan.SchemaVersion, plan.OriginalSchema.Version, plan.ResultSchema.Version)
		coplog.Error(ctx, "open rejected", zap.Error(err))
		return err
	}
	if plan.OriginalSchema.CommonID != plan.ResultSchema.CommonID {
		err := coperr.NewInvalidPlan("original common_id %d does not match result common_id %d",
			plan.OriginalSchema.CommonID, plan.ResultSchema.CommonID)
		coplog.Error(ctx, "open rejected", zap.Error(err))
		return err
	}

	originalLayout, err := schema.NewLayout(plan.OriginalSchema)
	if err != nil {
		coplog.Error(ctx, "open rejected", zap.Error(err))
		return err
	}
	resultLayout, err := schema.NewLayout(plan.ResultSchema)
	if err != nil {
		coplog.Error(ctx, "open rejected", zap.Error(err))
		return err
	}
	selector, err := project.New(plan.OriginalSchema, plan.SelectionColumns)
	if err != nil {
		coplog.Error(ctx, "open rejected", zap.Error(err))
		return err
	}
	projectedLen := selector.OutputLen()

	for _, idx := range plan.GroupByColumns {
		if idx < 0 || int(idx) >= projectedLen {
			err := coperr.NewIndexOutOfRange("group_by column %d out of range [0,%d)", idx, projectedLen)
			coplog.Error(ctx, "open rejected", zap.Error(err))
			return err
		}
	}

	slots := make([]aggregate.Slot, len(plan.AggregationOperators))
	for i, op := range plan.AggregationOperators {
		var operandType types.ColumnType
		if aggfuncs.IsSentinel(op.IndexOfColumn, projectedLen) {
			// The virtual-null column has no declared type; Bool is an
			// arbitrary placeholder that only matters to COUNT/COUNT_WITH_NULL
			// (the only operators the sentinel is meant to drive), which
			// ignore the operand type entirely.
			operandType = types.Bool
		} else {
			operandType = selector.OutputType(int(op.IndexOfColumn))
		}
		if _, err := aggfuncs.OutputType(op.Op, operandType); err != nil {
			coplog.Error(ctx, "open rejected", zap.Error(err))
			return err
		}
		slots[i] = aggregate.Slot{Op: op.Op, IndexOfColumn: op.IndexOfColumn, OperandType: operandType}
	}

	if err := validateResultSchema(plan, selector, slots); err != nil {
		coplog.Error(ctx, "open rejected", zap.Error(err))
		return err
	}

	c.plan = plan
	c.originalLayout = originalLayout
	c.resultLayout = resultLayout
	c.selector = selector
	c.groupByColumns = plan.GroupByColumns
	c.aggSlots = slots
	c.canKeyOnly = computeCanKeyOnly(plan, selector, projectedLen)
	c.aggregator = aggregate.New(plan.GroupByColumns, slots)
	c.aggregator.RowCeiling = plan.GroupMapRowCeiling
	c.aggregator.ByteCeiling = plan.GroupMapByteCeiling
	c.pending = nil
	c.pendingPos = 0
	c.bufferedDone = false
	c.open = true

	coplog.Debug(ctx, "coprocessor opened",
		zap.Int64("common_id", plan.OriginalSchema.CommonID),
		zap.Uint32("schema_version", plan.SchemaVersion),
		zap.Int("mode", int(c.aggregator.Mode())),
		zap.Bool("key_only_eligible", c.canKeyOnly))
	return nil
}

// Close releases the schema registry and any buffered groups. Re-Open is
// always safe afterward (spec §5).
func (c *Coprocessor) Close() error {
	c.plan = nil
	c.originalLayout = nil
	c.resultLayout = nil
	c.selector = nil
	c.groupByColumns = nil
	c.aggSlots = nil
	c.aggregator = nil
	c.pending = nil
	c.pendingPos = 0
	c.bufferedDone = false
	c.open = false
	return nil
}

func validateResultSchema(plan *Plan, selector *project.Selector, slots []aggregate.Slot) error {
	grouped := len(plan.GroupByColumns) > 0
	aggregated := len(slots) > 0

	var wantTypes []types.ColumnType
	switch {
	case grouped:
		wantTypes = make([]types.ColumnType, 0, len(plan.GroupByColumns)+len(slots))
		for _, idx := range plan.GroupByColumns {
			wantTypes = append(wantTypes, selector.OutputType(int(idx)))
		}
		for _, s := range slots {
			ot, err := aggfuncs.OutputType(s.Op, s.OperandType)
			if err != nil {
				return err
			}
			wantTypes = append(wantTypes, ot)
		}
	case aggregated:
		wantTypes = make([]types.ColumnType, 0, len(slots))
		for _, s := range slots {
			ot, err := aggfuncs.OutputType(s.Op, s.OperandType)
			if err != nil {
				return err
			}
			wantTypes = append(wantTypes, ot)
		}
	default:
		n := selector.OutputLen()
		wantTypes = make([]types.ColumnType, n)
		for k := 0; k < n; k++ {
			wantTypes[k] = selector.OutputType(k)
		}
	}

	if plan.ResultSchema.Len() != len(wantTypes) {
		return coperr.NewInvalidPlan("result schema has %d columns, expected %d", plan.ResultSchema.Len(), len(wantTypes))
	}
	for i, wt := range wantTypes {
		if plan.ResultSchema.Columns[i].Type != wt {
			return coperr.NewTypeMismatch("result column %d declared %s, producer yields %s",
				i, plan.ResultSchema.Columns[i].Type, wt)
		}
	}
	return nil
}

// computeCanKeyOnly reports whether every original column the plan reads is
// an is_key column, the precondition for the executor to honor a caller's
// key_only request. In pass-through mode the plan reads every projected
// column (the whole row if selection is empty); in grouped or aggregated
// modes it reads only the group-by columns and the aggregation operand
// columns, so COUNT(*) via the "no column" sentinel reads none.
func computeCanKeyOnly(plan *Plan, selector *project.Selector, projectedLen int) bool {
	var read []int // projected positions whose values reach the output
	if len(plan.GroupByColumns) == 0 && len(plan.AggregationOperators) == 0 {
		for k := 0; k < projectedLen; k++ {
			read = append(read, k)
		}
	}
	for _, idx := range plan.GroupByColumns {
		read = append(read, int(idx))
	}
	for _, op := range plan.AggregationOperators {
		if !aggfuncs.IsSentinel(op.IndexOfColumn, projectedLen) {
			read = append(read, int(op.IndexOfColumn))
		}
	}
	for _, k := range read {
		if !plan.OriginalSchema.Columns[selector.OriginalIndex(k)].IsKey {
			return false
		}
	}
	return true
}
