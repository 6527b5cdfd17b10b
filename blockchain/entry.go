// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

// EntryFlags is a bitmask of the dirty/fresh/flush state of a cache entry.
type EntryFlags uint8

const (
	// EntryDirty means the entry differs from what the backing store
	// holds and must be written down on flush.
	EntryDirty EntryFlags = 1 << 0

	// EntryFresh means the backing store is known to hold no unspent
	// entry for this outpoint, so a dirty, spent, fresh entry can be
	// dropped instead of written.
	EntryFresh EntryFlags = 1 << 1

	// EntryFlush marks an entry as prioritized for partial flushing.
	EntryFlush EntryFlags = 1 << 2
)

// CacheEntry pairs a coin with its dirty/fresh/flush flag set. The legal
// attr encodings (dirty?1 + fresh?2 + spent?4) are exactly {0, 1, 3, 5, 6};
// {2, 4, 7} must never occur. See CacheEntry.attr and SanityCheck.
type CacheEntry struct {
	Coin  Coin
	Flags EntryFlags
}

// attr computes the SanityCheck encoding for this entry.
func (e *CacheEntry) attr() int {
	a := 0
	if e.Flags&EntryDirty != 0 {
		a |= 1
	}
	if e.Flags&EntryFresh != 0 {
		a |= 2
	}
	if e.Coin.IsSpent() {
		a |= 4
	}
	return a
}

// legalAttrs are the only attr values SanityCheck permits.
var legalAttrs = map[int]bool{0: true, 1: true, 3: true, 5: true, 6: true}
