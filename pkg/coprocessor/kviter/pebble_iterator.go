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

package kviter

import "github.com/cockroachdb/pebble"

// PebbleIterator adapts a *pebble.Iterator to the Iterator contract. Pebble
// is the LSM-style engine spec §1 assumes sits underneath the coprocessor;
// this adapter is how the executor talks to a real one in tests and in
// cmd/copbench, rather than to a hand-rolled fake.
type PebbleIterator struct {
	it *pebble.Iterator
}

// NewPebbleIterator wraps it. The caller must have already set it's upper
// bound (pebble.IterOptions.UpperBound) before calling Seek.
func NewPebbleIterator(it *pebble.Iterator) *PebbleIterator {
	return &PebbleIterator{it: it}
}

func (p *PebbleIterator) Seek(key []byte) bool { return p.it.SeekGE(key) }
func (p *PebbleIterator) Valid() bool          { return p.it.Valid() }
func (p *PebbleIterator) Key() []byte          { return p.it.Key() }
func (p *PebbleIterator) Value() []byte        { return p.it.Value() }
func (p *PebbleIterator) Next() bool           { return p.it.Next() }
func (p *PebbleIterator) Close() error         { return p.it.Close() }
