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
	"context"

	"github.com/matrixorigin/mo-pushdown/pkg/coperr"
	"github.com/matrixorigin/mo-pushdown/pkg/coplog"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/codec"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/kviter"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/types"
	"go.uber.org/zap"
)

// logAggregatorErr logs a group-by map ceiling breach at Warn -- every other
// aggregator error (a bad operand type, an unknown mode) is an Open-time
// validation bug, not a steady-state condition worth a dedicated log line.
func logAggregatorErr(err error) {
	if coperr.Is(err, coperr.ResourceExhausted) {
		coplog.Warn(context.Background(), "aggregator resource ceiling exceeded", zap.Error(err))
	}
}

// Execute drives it through C2->C3->C4/C5 and re-encodes results through C2
// under the result schema, per spec §4.6.
//
//   - keyOnly requests that value_bytes never be fetched; honored only when
//     Open determined every column the plan reads is a key column, so a
//     caller that passes keyOnly=true against a plan that needs value
//     columns is silently corrected rather than corrupting output.
//   - maxFetchCnt <= 0 means no row cap; maxBytesRPC <= 0 means no byte cap.
//   - hasMore is true iff the underlying iterator (or, in grouped modes, the
//     buffered result set) still has rows and the budget was the reason this
//     call stopped short of them.
func (c *Coprocessor) Execute(it kviter.Iterator, keyOnly bool, maxFetchCnt, maxBytesRPC int) (kvs []KV, hasMore bool, err error) {
	if !c.open {
		return nil, false, coperr.NewInvalidPlan("Execute called on a closed coprocessor")
	}
	effectiveKeyOnly := keyOnly && c.canKeyOnly

	if c.aggregator.Streaming() {
		return c.executeStreaming(it, effectiveKeyOnly, maxFetchCnt, maxBytesRPC)
	}
	return c.executeBuffered(it, effectiveKeyOnly, maxFetchCnt, maxBytesRPC)
}

func exceedsBudget(emitted, bytesSoFar, rowLen, maxFetchCnt, maxBytesRPC int) bool {
	if emitted == 0 {
		return false // always make forward progress (spec §4.6 invariant 3)
	}
	if maxFetchCnt > 0 && emitted >= maxFetchCnt {
		return true
	}
	if maxBytesRPC > 0 && bytesSoFar+rowLen > maxBytesRPC {
		return true
	}
	return false
}

func (c *Coprocessor) executeStreaming(it kviter.Iterator, keyOnly bool, maxFetchCnt, maxBytesRPC int) ([]KV, bool, error) {
	var out []KV
	bytesSoFar := 0

	for it.Valid() {
		row, err := c.decodeRow(it, keyOnly)
		if err != nil {
			return nil, false, err
		}
		projected := c.selector.Select(row)

		aggOut, ok, err := c.aggregator.Add(projected)
		if err != nil {
			logAggregatorErr(err)
			return nil, false, err
		}
		if ok {
			outKey, outVal, err := codec.Encode(aggOut, c.resultLayout, c.namespace, c.plan.ResultSchema.CommonID, c.plan.SchemaVersion)
			if err != nil {
				return nil, false, err
			}
			rowLen := len(outKey) + len(outVal)
			if exceedsBudget(len(out), bytesSoFar, rowLen, maxFetchCnt, maxBytesRPC) {
				coplog.Debug(context.Background(), "execute budget exhausted",
					zap.Int("emitted", len(out)), zap.Int("bytes", bytesSoFar))
				return out, true, nil
			}
			out = append(out, KV{Key: outKey, Value: outVal})
			bytesSoFar += rowLen
		}
		it.Next()
	}
	return out, false, nil
}

func (c *Coprocessor) executeBuffered(it kviter.Iterator, keyOnly bool, maxFetchCnt, maxBytesRPC int) ([]KV, bool, error) {
	if !c.bufferedDone {
		for it.Valid() {
			row, err := c.decodeRow(it, keyOnly)
			if err != nil {
				return nil, false, err
			}
			projected := c.selector.Select(row)
			if _, _, err := c.aggregator.Add(projected); err != nil {
				logAggregatorErr(err)
				return nil, false, err
			}
			it.Next()
		}
		pending, err := c.aggregator.Finish()
		if err != nil {
			return nil, false, err
		}
		c.pending = pending
		c.pendingPos = 0
		c.bufferedDone = true
	}

	var out []KV
	bytesSoFar := 0
	for c.pendingPos < len(c.pending) {
		row := c.pending[c.pendingPos]
		outKey, outVal, err := codec.Encode(row, c.resultLayout, c.namespace, c.plan.ResultSchema.CommonID, c.plan.SchemaVersion)
		if err != nil {
			return nil, false, err
		}
		rowLen := len(outKey) + len(outVal)
		if exceedsBudget(len(out), bytesSoFar, rowLen, maxFetchCnt, maxBytesRPC) {
			coplog.Debug(context.Background(), "execute budget exhausted",
				zap.Int("emitted", len(out)), zap.Int("bytes", bytesSoFar))
			return out, true, nil
		}
		out = append(out, KV{Key: outKey, Value: outVal})
		bytesSoFar += rowLen
		c.pendingPos++
	}
	return out, false, nil
}

// decodeRow reads one row at the iterator's current position and decodes it
// against the original schema, honoring the key_only fast path: when true,
// it.Value() is never called.
func (c *Coprocessor) decodeRow(it kviter.Iterator, keyOnly bool) (types.Tuple, error) {
	keyBytes := cloneBytes(it.Key())
	if keyOnly {
		return codec.DecodeKeyOnly(keyBytes, c.originalLayout)
	}
	valueBytes := cloneBytes(it.Value())
	return codec.Decode(keyBytes, valueBytes, c.originalLayout)
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
