// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

// TraceEvent describes a single add/spend/uncache occurring in a
// CoinsViewCache.
type TraceEvent struct {
	Hash       [32]byte
	Index      uint32
	Height     int32
	Value      int64
	IsCoinbase bool
}

// TraceFn is a callback invoked for every add/spend/uncache a cache
// performs. Implementations must not alter cache semantics; the default is
// a no-op.
type TraceFn func(event TraceEvent)

func noopTrace(TraceEvent) {}
