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

// Package kviter declares the forward-iterator contract the coprocessor
// consumes from "the underlying ordered key/value engine" (spec §1, an
// out-of-scope collaborator) and a pebble-backed adapter satisfying it.
package kviter

// Iterator is a forward cursor over an ordered key/value range, already
// positioned by Seek with its upper bound configured by the caller that
// constructed it. It is consumed by exactly one goroutine for its lifetime
// (spec §5: no internal parallelism).
type Iterator interface {
	Seek(key []byte) bool
	Valid() bool
	Key() []byte
	Value() []byte
	Next() bool
	Close() error
}

// PrefixNext computes the lexicographically smallest key strictly greater
// than every key with prefix k: increment the last byte that isn't 0xFF,
// dropping any trailing run of 0xFF bytes first. A prefix of all 0xFF bytes
// has no successor within the keyspace and returns nil.
func PrefixNext(k []byte) []byte {
	out := make([]byte, len(k))
	copy(out, k)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] == 0xFF {
			continue
		}
		out[i]++
		return out[:i+1]
	}
	return nil
}
