// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

// memStore is a trivial in-memory BackingStore used as the bottom of a
// cache stack in tests. It has no notion of head blocks or a cursor.
type memStore struct {
	coins     map[Outpoint]Coin
	bestBlock chainhash.Hash
}

func newMemStore() *memStore {
	return &memStore{coins: make(map[Outpoint]Coin)}
}

func (s *memStore) GetCoin(outpoint Outpoint) (Coin, bool, error) {
	c, ok := s.coins[outpoint]
	return c, ok, nil
}

func (s *memStore) HaveCoin(outpoint Outpoint) (bool, error) {
	return HaveCoinDefault(s, outpoint)
}

func (s *memStore) BestBlock() chainhash.Hash {
	return s.bestBlock
}

func (s *memStore) HeadBlocks() []chainhash.Hash {
	return nil
}

func (s *memStore) BatchWrite(entries map[Outpoint]*CacheEntry, bestBlock chainhash.Hash, erase, partial bool) (bool, error) {
	for outpoint, entry := range entries {
		if entry.Coin.IsSpent() {
			delete(s.coins, outpoint)
		} else {
			s.coins[outpoint] = entry.Coin
		}
		if erase {
			delete(entries, outpoint)
		}
	}
	s.bestBlock = bestBlock
	return true, nil
}

func (s *memStore) Cursor() (Cursor, bool) {
	return nil, false
}

func (s *memStore) EstimateSize() int64 {
	return int64(len(s.coins)) * avgEntrySize
}

var _ BackingStore = (*memStore)(nil)

func outpointAt(n byte) Outpoint {
	var h chainhash.Hash
	h[0] = n
	return Outpoint{Hash: h, Index: 0}
}

func TestAddCoinThenSpendDropsFreshEntry(t *testing.T) {
	// S1: bottom layer empty; top AddCoin -> {DIRTY, FRESH}; SpendCoin
	// erases the entry outright; flush leaves the bottom layer empty.
	bottom := newMemStore()
	top := NewCoinsViewCache(bottom)

	op := outpointAt(1)
	coin := NewCoin(1000, []byte{0x51}, 10, false)
	top.AddCoin(op, coin, false)
	require.Equal(t, 1, top.EntryCount())

	moved, found, err := top.SpendCoin(op)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, btcutil.Amount(1000), moved.Amount)
	require.Equal(t, 0, top.EntryCount())

	ok, err := top.Flush(false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, bottom.coins)
}

func TestSpendPropagatesToBackend(t *testing.T) {
	// S2: bottom has a coin; top fetches and spends it; flush publishes
	// the spend down.
	bottom := newMemStore()
	op := outpointAt(2)
	coin := NewCoin(5000, []byte{0x51}, 5, false)
	bottom.coins[op] = coin

	top := NewCoinsViewCache(bottom)
	_, found, err := top.SpendCoin(op)
	require.NoError(t, err)
	require.True(t, found)

	ok, err := top.Flush(false)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotContains(t, bottom.coins, op)
}

func TestBatchWriteRejectsFreshMisapplication(t *testing.T) {
	// S3: top already has an unspent entry; a middle layer claiming
	// FRESH on the same outpoint must trip the FRESH-misapplied panic.
	bottom := newMemStore()
	op := outpointAt(3)
	coin := NewCoin(7000, []byte{0x51}, 1, false)
	bottom.coins[op] = coin

	top := NewCoinsViewCache(bottom)
	_, _, err := top.GetCoin(op) // populate top's entry, unspent
	require.NoError(t, err)

	middleEntries := map[Outpoint]*CacheEntry{
		op: {Coin: NewCoin(7000, []byte{0x51}, 1, false), Flags: EntryDirty | EntryFresh},
	}

	require.Panics(t, func() {
		top.BatchWrite(middleEntries, chainhash.Hash{}, true, false)
	})
}

func TestFlushChoosesFullOrPartialByThreshold(t *testing.T) {
	// S4: small FLUSH-tagged share (~5%) forces a full flush; a larger
	// share (~50%) forces a partial flush that drops only that subset.
	bottom := newMemStore()
	top := NewCoinsViewCache(bottom)

	var flushTagged []Outpoint
	for i := 0; i < 100; i++ {
		op := outpointAt(byte(i))
		top.AddCoin(op, NewCoin(1, make([]byte, 25), 1, false), false)
		if i < 5 {
			top.SetFlushFlag(op, true)
			flushTagged = append(flushTagged, op)
		}
	}

	ok, err := top.Flush(true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, top.EntryCount(), "5%% flush share should force a full flush")

	top2 := NewCoinsViewCache(newMemStore())
	for i := 0; i < 100; i++ {
		op := outpointAt(byte(i))
		top2.AddCoin(op, NewCoin(1, make([]byte, 25), 1, false), false)
		if i < 50 {
			top2.SetFlushFlag(op, true)
		}
	}

	before := top2.CachedCoinsUsage()
	flushUsage := top2.FlushCoinsUsage()
	ok, err = top2.Flush(true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 50, top2.EntryCount(), "50%% flush share should force a partial flush")
	require.Equal(t, 0, top2.FlushCount())
	require.Equal(t, before-flushUsage, top2.CachedCoinsUsage())
}

func TestSanityCheckCatchesIllegalAttr(t *testing.T) {
	bottom := newMemStore()
	top := NewCoinsViewCache(bottom)

	op := outpointAt(9)
	top.AddCoin(op, NewCoin(1, []byte{0x51}, 1, false), false)
	require.NoError(t, top.SanityCheck())

	// Force an illegal FRESH-on-unspent-without-DIRTY encoding (attr=2).
	entry := top.entries[op]
	entry.Flags = EntryFresh

	err := top.SanityCheck()
	require.Error(t, err)
}

func TestAccessByTxidFindsFirstUnspentOutput(t *testing.T) {
	bottom := newMemStore()
	top := NewCoinsViewCache(bottom)

	var h chainhash.Hash
	h[0] = 0xAA

	top.AddCoin(Outpoint{Hash: h, Index: 0}, NewCoin(1, []byte{0x51}, 1, false), false)
	top.SpendCoin(Outpoint{Hash: h, Index: 0})
	top.AddCoin(Outpoint{Hash: h, Index: 1}, NewCoin(2, []byte{0x51}, 1, false), false)

	coin := top.AccessByTxid(h)
	require.False(t, coin.IsSpent())
	require.Equal(t, btcutil.Amount(2), coin.Amount)

	var missing chainhash.Hash
	missing[0] = 0xBB
	require.True(t, top.AccessByTxid(missing).IsSpent())
}

func TestUnspentOverwriteWithoutFlagPanics(t *testing.T) {
	bottom := newMemStore()
	top := NewCoinsViewCache(bottom)

	op := outpointAt(7)
	top.AddCoin(op, NewCoin(1, []byte{0x51}, 1, false), false)

	require.Panics(t, func() {
		top.AddCoin(op, NewCoin(2, []byte{0x51}, 1, false), false)
	})
}

func TestSyncPublishesWithoutDroppingResetsFlagsErasesSpent(t *testing.T) {
	bottom := newMemStore()
	spentOp := outpointAt(20)
	bottom.coins[spentOp] = NewCoin(1000, []byte{0x51}, 1, false)

	top := NewCoinsViewCache(bottom)

	// Fetched from the backend unspent, then spent through the cache:
	// not FRESH, so Sync must publish the spend and erase the entry.
	_, found, err := top.SpendCoin(spentOp)
	require.NoError(t, err)
	require.True(t, found)

	// A brand new unspent entry: DIRTY|FRESH. Sync must publish it and
	// reset its flags to empty without dropping it.
	unspentOp := outpointAt(21)
	top.AddCoin(unspentOp, NewCoin(2000, []byte{0x51}, 1, false), false)

	// Fetched from the backend unspent and never touched: flags already
	// empty, Sync leaves it resident and untouched.
	untouchedOp := outpointAt(22)
	bottom.coins[untouchedOp] = NewCoin(3000, []byte{0x51}, 1, false)
	_, _, err = top.GetCoin(untouchedOp)
	require.NoError(t, err)

	ok, err := top.Sync()
	require.NoError(t, err)
	require.True(t, ok)

	require.NotContains(t, bottom.coins, spentOp)
	require.NotContains(t, top.entries, spentOp)

	require.Contains(t, bottom.coins, unspentOp)
	require.Equal(t, btcutil.Amount(2000), bottom.coins[unspentOp].Amount)
	require.Contains(t, top.entries, unspentOp)
	require.Equal(t, EntryFlags(0), top.entries[unspentOp].Flags)

	require.Contains(t, top.entries, untouchedOp)
	require.Equal(t, EntryFlags(0), top.entries[untouchedOp].Flags)
}

func TestUncacheDropsCleanEntryButNotDirty(t *testing.T) {
	bottom := newMemStore()
	top := NewCoinsViewCache(bottom)

	dirtyOp := outpointAt(30)
	top.AddCoin(dirtyOp, NewCoin(1, []byte{0x51}, 1, false), false)
	top.Uncache(dirtyOp)
	require.Contains(t, top.entries, dirtyOp, "Uncache must not drop a DIRTY entry")

	cleanOp := outpointAt(31)
	bottom.coins[cleanOp] = NewCoin(1, []byte{0x51}, 1, false)
	_, _, err := top.GetCoin(cleanOp)
	require.NoError(t, err)
	require.Contains(t, top.entries, cleanOp)

	top.Uncache(cleanOp)
	require.NotContains(t, top.entries, cleanOp, "Uncache must drop an entry with no pending flags")
}

func TestHaveCoinCacheHitAndBackendFetch(t *testing.T) {
	bottom := newMemStore()
	op := outpointAt(40)
	bottom.coins[op] = NewCoin(1, []byte{0x51}, 1, false)

	top := NewCoinsViewCache(bottom)
	require.False(t, top.HaveCoinInCache(op), "nothing fetched yet")

	have, err := top.HaveCoin(op)
	require.NoError(t, err)
	require.True(t, have, "backend-fetch path")
	require.True(t, top.HaveCoinInCache(op), "now resident after the fetch")

	missing := outpointAt(41)
	have, err = top.HaveCoin(missing)
	require.NoError(t, err)
	require.False(t, have)

	_, _, err = top.SpendCoin(op)
	require.NoError(t, err)
	have, err = top.HaveCoin(op)
	require.NoError(t, err)
	require.False(t, have, "cache-hit path on a now-spent entry")
}

func TestBestBlockLazyLoadsThenCachesOverride(t *testing.T) {
	bottom := newMemStore()
	var want chainhash.Hash
	want[0] = 0xEE
	bottom.bestBlock = want

	top := NewCoinsViewCache(bottom)
	require.Equal(t, want, top.BestBlock(), "lazily loaded from the backend")

	var override chainhash.Hash
	override[0] = 0xFF
	top.SetBestBlock(override)
	require.Equal(t, override, top.BestBlock())

	bottom.bestBlock = chainhash.Hash{}
	require.Equal(t, override, top.BestBlock(), "cached override must not be re-fetched from the backend")
}

func TestTwoLayerStackMatchesDirectApplication(t *testing.T) {
	// Property 4: a sequence of operations applied through a two-layer
	// stack, flushed, must equal the same sequence applied directly to
	// the bottom layer.
	direct := newMemStore()
	directCache := NewCoinsViewCache(direct)

	bottom := newMemStore()
	child := NewCoinsViewCache(bottom)
	parent := NewCoinsViewCache(child)

	ops := []Outpoint{outpointAt(1), outpointAt(2), outpointAt(3)}
	coin := func(v btcutil.Amount) Coin { return NewCoin(v, []byte{0x51}, 1, false) }

	directCache.AddCoin(ops[0], coin(10), false)
	parent.AddCoin(ops[0], coin(10), false)

	directCache.AddCoin(ops[1], coin(20), false)
	parent.AddCoin(ops[1], coin(20), false)

	directCache.SpendCoin(ops[0])
	parent.SpendCoin(ops[0])

	directCache.AddCoin(ops[2], coin(30), false)
	parent.AddCoin(ops[2], coin(30), false)

	_, err := directCache.Flush(false)
	require.NoError(t, err)

	_, err = parent.Flush(false)
	require.NoError(t, err)
	_, err = child.Flush(false)
	require.NoError(t, err)

	for _, op := range ops {
		wantCoin, wantFound, _ := direct.GetCoin(op)
		gotCoin, gotFound, _ := bottom.GetCoin(op)
		require.Equal(t, wantFound, gotFound)
		if wantFound {
			require.Equal(t, wantCoin.Amount, gotCoin.Amount)
			require.Equal(t, wantCoin.IsSpent(), gotCoin.IsSpent())
		}
	}
}
