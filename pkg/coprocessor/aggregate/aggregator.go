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

// Package aggregate is the Aggregator (C5): it maintains group_key ->
// AccumulatorSet across the four modes of spec §4.4 and decides when a
// group is complete enough to emit. Grouping storage is a plain Go map
// keyed by the codec's canonical group-key bytes (spec §9: "Hashing tuples
// directly is error-prone ... reusing the key-codec's canonical bytes for
// the group-key projection unifies equality and hashing"); this is exactly
// what the spec prescribes, so there is no grounds to adapt the heavier
// pkg/common/hashmap.StrHashMap from the teacher (see DESIGN.md).
package aggregate

import (
	"github.com/matrixorigin/mo-pushdown/pkg/coperr"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/aggfuncs"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/codec"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/types"
)

// Slot is one declared aggregation operator.
type Slot struct {
	Op            aggfuncs.Op
	IndexOfColumn int32 // index into the projected tuple, or the NoColumn sentinel
	OperandType   types.ColumnType
}

// Mode is the aggregator's operating mode, derived at Open time from
// whether group_by_columns and aggregation_operators are empty.
type Mode uint8

const (
	PassThrough Mode = iota // A: no grouping, no aggregation
	GroupOnly                // B: grouping without aggregation
	AggOnly                  // C: aggregation without grouping
	GroupAndAgg              // D: both
)

// groupState is one group's running accumulator set plus its (already
// materialized) group-key tuple, so Finish doesn't need to re-derive it.
type groupState struct {
	key  types.Tuple
	accs []aggfuncs.Accumulator
}

// Aggregator drives one Execute scan's worth of grouping/aggregation state.
// It is not safe for concurrent use -- spec §5 gives it exactly one caller.
type Aggregator struct {
	mode           Mode
	groupByColumns []int32
	slots          []Slot

	// RowCeiling, if > 0, bounds the number of distinct groups before Add
	// returns ResourceExhausted (spec §5's resource ceiling).
	RowCeiling int

	// ByteCeiling, if > 0, bounds the total size in bytes of the buffered
	// group keys before Add returns ResourceExhausted -- the same ceiling
	// as RowCeiling, measured in bytes instead of group count (spec §5;
	// copconfig.Config.GroupMapByteCeiling).
	ByteCeiling int
	groupBytes  int

	groups map[string]*groupState
	order  []string // first-seen order, for deterministic iteration (not a sortedness guarantee)

	implicit *groupState // the single group of AggOnly; unused by the other modes

	passThroughSeen bool
}

// New constructs an Aggregator for the given groupByColumns (indices into
// the projected tuple) and aggregation slots. Both may be empty.
func New(groupByColumns []int32, slots []Slot) *Aggregator {
	mode := PassThrough
	switch {
	case len(groupByColumns) > 0 && len(slots) > 0:
		mode = GroupAndAgg
	case len(groupByColumns) > 0:
		mode = GroupOnly
	case len(slots) > 0:
		mode = AggOnly
	}
	a := &Aggregator{
		mode:           mode,
		groupByColumns: groupByColumns,
		slots:          slots,
		groups:         make(map[string]*groupState),
	}
	return a
}

func (a *Aggregator) Mode() Mode { return a.mode }

// Streaming reports whether output rows are available per input row
// (PassThrough) or only after the iterator is exhausted (every grouped
// mode, per spec §4.4's emission policy).
func (a *Aggregator) Streaming() bool { return a.mode == PassThrough }

// Add feeds one projected tuple into the aggregator. For PassThrough it
// returns the tuple unchanged and ok=true; every other mode buffers and
// returns ok=false.
func (a *Aggregator) Add(projected types.Tuple) (out types.Tuple, ok bool, err error) {
	switch a.mode {
	case PassThrough:
		return projected, true, nil
	case GroupOnly:
		return nil, false, a.addGroup(projected, nil)
	case AggOnly:
		return nil, false, a.addImplicit(projected)
	case GroupAndAgg:
		return nil, false, a.addGroup(projected, projected)
	}
	return nil, false, coperr.NewInvalidPlan("unknown aggregator mode %d", a.mode)
}

func (a *Aggregator) groupKeyTuple(projected types.Tuple) types.Tuple {
	key := make(types.Tuple, len(a.groupByColumns))
	for i, idx := range a.groupByColumns {
		key[i] = projected[idx]
	}
	return key
}

func (a *Aggregator) newAccumulators() ([]aggfuncs.Accumulator, error) {
	accs := make([]aggfuncs.Accumulator, len(a.slots))
	for i, s := range a.slots {
		acc, err := aggfuncs.New(s.Op, s.OperandType)
		if err != nil {
			return nil, err
		}
		accs[i] = acc
	}
	return accs, nil
}

func (a *Aggregator) feedAccumulators(accs []aggfuncs.Accumulator, projected types.Tuple) error {
	for i, s := range a.slots {
		var v types.Value
		if aggfuncs.IsSentinel(s.IndexOfColumn, len(projected)) {
			v = types.Null(s.OperandType)
		} else {
			v = projected[s.IndexOfColumn]
		}
		if err := accs[i].Add(v); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) addGroup(projected types.Tuple, aggInput types.Tuple) error {
	key := a.groupKeyTuple(projected)
	keyBytes := codec.EncodeGroupKey(key)
	gs, found := a.groups[string(keyBytes)]
	if !found {
		if a.RowCeiling > 0 && len(a.groups) >= a.RowCeiling {
			return coperr.NewResourceExhausted("group-by map exceeded %d groups", a.RowCeiling)
		}
		if a.ByteCeiling > 0 && a.groupBytes+len(keyBytes) > a.ByteCeiling {
			return coperr.NewResourceExhausted("group-by map exceeded %d bytes", a.ByteCeiling)
		}
		accs, err := a.newAccumulators()
		if err != nil {
			return err
		}
		gs = &groupState{key: key, accs: accs}
		a.groups[string(keyBytes)] = gs
		a.order = append(a.order, string(keyBytes))
		a.groupBytes += len(keyBytes)
	}
	if aggInput != nil {
		return a.feedAccumulators(gs.accs, aggInput)
	}
	return nil
}

func (a *Aggregator) addImplicit(projected types.Tuple) error {
	if a.implicit == nil {
		accs, err := a.newAccumulators()
		if err != nil {
			return err
		}
		a.implicit = &groupState{accs: accs}
	}
	return a.feedAccumulators(a.implicit.accs, projected)
}

// Finish materializes every buffered group (or the single implicit/empty
// result) into output tuples, in the shape spec §4.4 declares per mode:
// group-key columns, then aggregation results in declared order.
func (a *Aggregator) Finish() ([]types.Tuple, error) {
	switch a.mode {
	case PassThrough:
		return nil, nil
	case GroupOnly:
		out := make([]types.Tuple, 0, len(a.order))
		for _, k := range a.order {
			out = append(out, a.groups[k].key)
		}
		return out, nil
	case AggOnly:
		if a.implicit == nil {
			accs, err := a.newAccumulators()
			if err != nil {
				return nil, err
			}
			a.implicit = &groupState{accs: accs}
		}
		row, err := flushRow(nil, a.implicit.accs)
		if err != nil {
			return nil, err
		}
		return []types.Tuple{row}, nil
	case GroupAndAgg:
		out := make([]types.Tuple, 0, len(a.order))
		for _, k := range a.order {
			gs := a.groups[k]
			row, err := flushRow(gs.key, gs.accs)
			if err != nil {
				return nil, err
			}
			out = append(out, row)
		}
		return out, nil
	}
	return nil, coperr.NewInvalidPlan("unknown aggregator mode %d", a.mode)
}

func flushRow(key types.Tuple, accs []aggfuncs.Accumulator) (types.Tuple, error) {
	row := make(types.Tuple, 0, len(key)+len(accs))
	row = append(row, key...)
	for _, acc := range accs {
		v, err := acc.Flush()
		if err != nil {
			return nil, err
		}
		row = append(row, v)
	}
	return row, nil
}
