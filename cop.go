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

// Package pushdown is the storage node's pushdown coprocessor: given an
// already-positioned ordered key/value iterator and a declarative plan, it
// decodes, projects, aggregates, and re-encodes rows without shipping the
// raw range across the network. A Plan carries no filter predicate, so every
// projected row reaches the aggregation stage. pkg/coprocessor holds
// the pipeline stages (C1-C7); this file is the single entry point that
// wires them together the way a storage-node RPC handler would use them.
package pushdown

import (
	"github.com/matrixorigin/mo-pushdown/pkg/coperr"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/codec"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/exec"
	"github.com/matrixorigin/mo-pushdown/pkg/coprocessor/kviter"
)

// Plan is re-exported so callers outside pkg/coprocessor never need to
// import the exec package directly.
type Plan = exec.Plan

// AggregationOperator is re-exported for the same reason.
type AggregationOperator = exec.AggregationOperator

// KV is one output row's wire-ready encoded form.
type KV = exec.KV

// Coprocessor is a reusable, re-Openable pushdown coprocessor instance.
// One instance is driven by one goroutine at a time (spec §5); a storage
// node typically keeps a small pool of instances, one per concurrent scan.
type Coprocessor struct {
	inner *exec.Coprocessor
}

// New constructs a Coprocessor in the closed state, tagging every row it
// encodes with namespace. Pass codec.DefaultNamespace unless the caller
// multiplexes several key spaces over one keyspace.
func New(namespace byte) *Coprocessor {
	return &Coprocessor{inner: exec.New(namespace)}
}

// Open compiles plan into the pipeline stages. It is always safe to call,
// including on an already-open instance (it closes first) or a previously
// closed one.
func (c *Coprocessor) Open(plan *Plan) error {
	return c.inner.Open(plan)
}

// Close releases the compiled pipeline and any buffered group state.
func (c *Coprocessor) Close() error {
	return c.inner.Close()
}

// Execute drives it to produce up to maxFetchCnt rows / maxBytesRPC bytes
// of output. See exec.Coprocessor.Execute for the full budget contract.
func (c *Coprocessor) Execute(it kviter.Iterator, keyOnly bool, maxFetchCnt, maxBytesRPC int) (kvs []KV, hasMore bool, err error) {
	return c.inner.Execute(it, keyOnly, maxFetchCnt, maxBytesRPC)
}

// DefaultNamespace is the namespace byte to use when the caller has no
// reason to distinguish multiple logical key spaces.
const DefaultNamespace = codec.DefaultNamespace

// IsErrorKind reports whether err is (or wraps) a coprocessor error of the
// given kind, letting callers branch on coperr.SchemaMismatch and friends
// without importing pkg/coperr directly.
func IsErrorKind(err error, kind coperr.Kind) bool {
	return coperr.Is(err, kind)
}
