// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

// coinEmpty is the process-wide sentinel AccessCoin and AccessByTxid return
// for "no such coin." It is always spent, so callers checking IsSpent()
// treat it the same as a legitimate absent outpoint. Callers must not
// mutate it.
var coinEmpty = Coin{spent: true}

// CoinsViewCache is a write-through cache layered on top of a BackingStore.
// It is the central component of the package: reads consult the local
// table before falling through to the backend; writes stage into the local
// table and are only published to the backend on Sync or Flush.
//
// CoinsViewCache has no internal synchronization; callers must serialize
// access, typically via a host-level chainstate lock. It implements
// BackingStore itself, so cache layers may be stacked arbitrarily deep.
type CoinsViewCache struct {
	*BackedView

	entries map[Outpoint]*CacheEntry

	bestBlockHash  chainhash.Hash
	bestBlockKnown bool

	cachedCoinsUsage int
	flushCoinsUsage  int
	flushCount       int

	trace TraceFn
}

// NewCoinsViewCache returns an empty cache layered over backend.
func NewCoinsViewCache(backend BackingStore) *CoinsViewCache {
	return &CoinsViewCache{
		BackedView: NewBackedView(backend),
		entries:    make(map[Outpoint]*CacheEntry),
		trace:      noopTrace,
	}
}

// SetTraceFn installs fn as the trace callback invoked on add/spend/uncache.
// A nil fn restores the no-op default.
func (c *CoinsViewCache) SetTraceFn(fn TraceFn) {
	if fn == nil {
		fn = noopTrace
	}
	c.trace = fn
}

// memoryAdd accounts for e's coin having just been (re)inserted.
func (c *CoinsViewCache) memoryAdd(e *CacheEntry) {
	sz := e.Coin.DynamicMemoryUsage()
	c.cachedCoinsUsage += sz
	if e.Flags&EntryFlush != 0 {
		c.flushCoinsUsage += sz
		c.flushCount++
	}
}

// memorySub accounts for e's coin being about to be replaced or removed.
func (c *CoinsViewCache) memorySub(e *CacheEntry) {
	sz := e.Coin.DynamicMemoryUsage()
	c.cachedCoinsUsage -= sz
	if e.Flags&EntryFlush != 0 {
		c.flushCoinsUsage -= sz
		c.flushCount--
	}
}

// fetchEntry returns the local entry for outpoint, fetching and caching it
// from the backend on a local miss. A backend hit that returns a spent coin
// (a tombstone propagated down from a higher cache layer) is cached as
// FRESH, since the backend is now known to hold no unspent entry here.
func (c *CoinsViewCache) fetchEntry(outpoint Outpoint) (*CacheEntry, error) {
	if entry, ok := c.entries[outpoint]; ok {
		return entry, nil
	}

	coin, found, err := c.Backend().GetCoin(outpoint)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	entry := &CacheEntry{Coin: coin}
	if coin.IsSpent() {
		entry.Flags = EntryFresh
	}
	c.entries[outpoint] = entry
	c.memoryAdd(entry)
	return entry, nil
}

// GetCoin returns the coin cached or fetched for outpoint and whether it is
// present at all (spent or not), satisfying BackingStore so a CoinsViewCache
// can itself be used as the backend of another CoinsViewCache.
func (c *CoinsViewCache) GetCoin(outpoint Outpoint) (Coin, bool, error) {
	entry, err := c.fetchEntry(outpoint)
	if err != nil {
		return Coin{}, false, err
	}
	if entry == nil {
		return Coin{}, false, nil
	}
	return entry.Coin, true, nil
}

// HaveCoin reports whether outpoint has an unspent entry, fetching from the
// backend if necessary.
func (c *CoinsViewCache) HaveCoin(outpoint Outpoint) (bool, error) {
	entry, err := c.fetchEntry(outpoint)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	return !entry.Coin.IsSpent(), nil
}

// HaveCoinInCache reports whether outpoint has an unspent entry already
// resident in this layer, without touching the backend.
func (c *CoinsViewCache) HaveCoinInCache(outpoint Outpoint) bool {
	entry, ok := c.entries[outpoint]
	return ok && !entry.Coin.IsSpent()
}

// AccessCoin returns a borrow of the cached coin for outpoint, fetching it
// if necessary, or the coinEmpty sentinel if there is none. Callers must
// not mutate the return. A backend I/O failure is treated the same as
// "no such coin" at this layer; fatal backend failures belong to the
// error-trapping view, not to this read path.
func (c *CoinsViewCache) AccessCoin(outpoint Outpoint) *Coin {
	entry, err := c.fetchEntry(outpoint)
	if err != nil || entry == nil {
		return &coinEmpty
	}
	return &entry.Coin
}

// AccessByTxid scans index 0..MaxOutputsPerBlock for txid and returns the
// first unspent coin found, or the coinEmpty sentinel if none exists. The
// scan bound equals MaxBlockWeight / MinTransactionOutputWeight, the most
// outputs a single block could contain.
func (c *CoinsViewCache) AccessByTxid(txid chainhash.Hash) *Coin {
	for index := uint32(0); index < MaxOutputsPerBlock; index++ {
		coin := c.AccessCoin(Outpoint{Hash: txid, Index: index})
		if !coin.IsSpent() {
			return coin
		}
	}
	return &coinEmpty
}

// AddCoin inserts coin at outpoint. It is a precondition that coin is not
// already spent. If coin's locking script is statically unspendable this
// is a silent no-op. possibleOverwrite must be true for the one legitimate
// double-write case, pre-BIP30 coinbase collisions; any other attempt to
// overwrite an unspent coin is an unrecoverable logic error.
func (c *CoinsViewCache) AddCoin(outpoint Outpoint, coin Coin, possibleOverwrite bool) {
	if coin.IsSpent() {
		assertf("AddCoin called with an already-spent coin for %s", outpoint)
	}
	if txscript.IsUnspendable(coin.PkScript) {
		return
	}

	entry, existed := c.entries[outpoint]
	if existed {
		c.memorySub(entry)
	} else {
		entry = &CacheEntry{}
		c.entries[outpoint] = entry
	}

	if !possibleOverwrite && existed && !entry.Coin.IsSpent() {
		assertf("unspent-overwrite: AddCoin called on unspent %s without possibleOverwrite", outpoint)
	}

	fresh := !existed || (entry.Coin.IsSpent() && entry.Flags&EntryDirty == 0)
	if possibleOverwrite {
		fresh = false
	}

	entry.Coin = coin
	entry.Flags |= EntryDirty
	if fresh {
		entry.Flags |= EntryFresh
	}
	entry.Flags &^= EntryFlush

	c.memoryAdd(entry)

	c.trace(TraceEvent{
		Hash: outpoint.Hash, Index: outpoint.Index,
		Height: coin.Height, Value: int64(coin.Amount), IsCoinbase: coin.IsCoinbase,
	})
}

// SpendCoin marks outpoint spent, fetching it from the backend first if
// necessary. found is false if outpoint is unknown altogether. The coin's
// value prior to spending is returned for callers that need it (e.g. fee
// calculation) even though the entry itself is now cleared or erased.
func (c *CoinsViewCache) SpendCoin(outpoint Outpoint) (moved Coin, found bool, err error) {
	entry, err := c.fetchEntry(outpoint)
	if err != nil {
		return Coin{}, false, err
	}
	if entry == nil {
		return Coin{}, false, nil
	}

	moved = entry.Coin
	c.memorySub(entry)

	if entry.Flags&EntryFresh != 0 {
		delete(c.entries, outpoint)
	} else {
		entry.Flags |= EntryDirty
		entry.Flags &^= EntryFlush
		entry.Coin.Spend()
		c.memoryAdd(entry)
	}

	c.trace(TraceEvent{
		Hash: outpoint.Hash, Index: outpoint.Index,
		Height: moved.Height, Value: int64(moved.Amount), IsCoinbase: moved.IsCoinbase,
	})
	return moved, true, nil
}

// BestBlock returns the hash of the block this cache's state reflects,
// lazily consulting the backend the first time it's needed.
func (c *CoinsViewCache) BestBlock() chainhash.Hash {
	if !c.bestBlockKnown {
		c.bestBlockHash = c.Backend().BestBlock()
		c.bestBlockKnown = true
	}
	return c.bestBlockHash
}

// SetBestBlock sets the cached best-block marker without consulting the
// backend.
func (c *CoinsViewCache) SetBestBlock(hash chainhash.Hash) {
	c.bestBlockHash = hash
	c.bestBlockKnown = true
}

// HeadBlocks forwards to the backend; a cache layer tracks no unfinished
// flush markers of its own.
func (c *CoinsViewCache) HeadBlocks() []chainhash.Hash {
	return c.Backend().HeadBlocks()
}

// BatchWrite coalesces a child layer's staged entries into this layer.
// When partial is true, the caller has already filtered entries down to
// only those tagged EntryFlush; BatchWrite does not re-check the flag
// itself and processes every entry it is given.
func (c *CoinsViewCache) BatchWrite(entries map[Outpoint]*CacheEntry, bestBlock chainhash.Hash, erase, partial bool) (bool, error) {
	for outpoint, childEntry := range entries {
		if childEntry.Flags&EntryDirty == 0 {
			if erase {
				delete(entries, outpoint)
			}
			continue
		}

		parentEntry, present := c.entries[outpoint]
		switch {
		case !present:
			if !(childEntry.Flags&EntryFresh != 0 && childEntry.Coin.IsSpent()) {
				newEntry := &CacheEntry{
					Coin:  childEntry.Coin,
					Flags: EntryDirty | (childEntry.Flags & (EntryFresh | EntryFlush)),
				}
				c.entries[outpoint] = newEntry
				c.memoryAdd(newEntry)
			}

		case childEntry.Flags&EntryFresh != 0 && !parentEntry.Coin.IsSpent():
			assertf("FRESH-misapplied: child marked %s FRESH but parent already holds an unspent entry", outpoint)

		case childEntry.Coin.IsSpent() && parentEntry.Flags&EntryFresh != 0:
			c.memorySub(parentEntry)
			delete(c.entries, outpoint)

		default:
			c.memorySub(parentEntry)
			parentEntry.Coin = childEntry.Coin
			parentEntry.Flags &^= EntryFlush
			parentEntry.Flags |= (childEntry.Flags & EntryFlush) | EntryDirty
			c.memoryAdd(parentEntry)
		}

		if erase {
			delete(entries, outpoint)
		}
	}

	c.bestBlockHash = bestBlock
	c.bestBlockKnown = true
	return true, nil
}

// flushPartial reports whether a Flush(partialOk=true) should choose a
// partial flush: strictly between 10% and 90% of cached_coins_usage is
// tagged FLUSH. Both extremes favor a full flush, since the savings from
// either the flushed or the retained set would be trivial.
func (c *CoinsViewCache) flushPartial(partialOk bool) bool {
	if !partialOk || c.cachedCoinsUsage <= 0 {
		return false
	}
	ratio := float64(c.flushCoinsUsage) / float64(c.cachedCoinsUsage)
	return ratio > 0.10 && ratio < 0.90
}

// Flush publishes staged entries to the backend and drops them. When
// partialOk allows it and the FLUSH-tagged share of memory usage is
// strictly between 10% and 90%, only the FLUSH-tagged subset is published
// and dropped; otherwise every entry is.
func (c *CoinsViewCache) Flush(partialOk bool) (bool, error) {
	if !c.flushPartial(partialOk) {
		log.Tracef("flushing coins cache, partial=false entries=%d", len(c.entries))

		ok, err := c.Backend().BatchWrite(c.entries, c.BestBlock(), true, false)
		if err != nil || !ok {
			return false, err
		}
		if len(c.entries) != 0 {
			assertf("incomplete-erase: %d entries remained in the cache after a full flush", len(c.entries))
		}
		c.cachedCoinsUsage = 0
		c.flushCoinsUsage = 0
		c.flushCount = 0
		c.entries = make(map[Outpoint]*CacheEntry)
		return true, nil
	}

	// BackingStore.BatchWrite's partial contract requires the caller to
	// pre-filter down to the FLUSH-tagged subset, so build that subset
	// here rather than handing the backend the full table.
	outpoints := make([]Outpoint, 0, c.flushCount)
	filtered := make(map[Outpoint]*CacheEntry, c.flushCount)
	for outpoint, entry := range c.entries {
		if entry.Flags&EntryFlush != 0 {
			filtered[outpoint] = entry
			outpoints = append(outpoints, outpoint)
		}
	}

	log.Tracef("flushing coins cache, partial=true entries=%d of %d", len(filtered), len(c.entries))

	ok, err := c.Backend().BatchWrite(filtered, c.BestBlock(), true, true)
	if err != nil || !ok {
		return false, err
	}

	for _, outpoint := range outpoints {
		delete(c.entries, outpoint)
	}
	c.cachedCoinsUsage -= c.flushCoinsUsage
	c.flushCoinsUsage = 0
	c.flushCount = 0
	return true, nil
}

// Sync publishes every staged entry to the backend like Flush(false) but
// does not drop them: entries that are now spent are erased (nothing more
// to track), everything else has its flags reset to empty.
func (c *CoinsViewCache) Sync() (bool, error) {
	log.Tracef("syncing coins cache, entries=%d", len(c.entries))

	ok, err := c.Backend().BatchWrite(c.entries, c.BestBlock(), false, false)
	if err != nil || !ok {
		return false, err
	}

	for outpoint, entry := range c.entries {
		if entry.Coin.IsSpent() {
			c.memorySub(entry)
			delete(c.entries, outpoint)
			continue
		}
		if entry.Flags != 0 {
			c.memorySub(entry)
			entry.Flags = 0
			c.memoryAdd(entry)
		}
	}
	return true, nil
}

// Uncache drops the entry for outpoint iff its flag set is empty, i.e.
// nothing about it is pending. Callers use this to release memory for
// outpoints no longer of interest.
func (c *CoinsViewCache) Uncache(outpoint Outpoint) {
	entry, ok := c.entries[outpoint]
	if !ok || entry.Flags != 0 {
		return
	}
	c.memorySub(entry)
	delete(c.entries, outpoint)
	c.trace(TraceEvent{Hash: outpoint.Hash, Index: outpoint.Index})
}

// SetFlushFlag sets or clears the FLUSH priority hint on outpoint's entry,
// updating memory accounting accordingly. It reports false if outpoint has
// no local entry. This is the only sanctioned way to mark an entry for
// partial flushing; no implicit side channel ever sets it.
func (c *CoinsViewCache) SetFlushFlag(outpoint Outpoint, flush bool) bool {
	entry, ok := c.entries[outpoint]
	if !ok {
		return false
	}
	if flush == (entry.Flags&EntryFlush != 0) {
		return true
	}
	c.memorySub(entry)
	if flush {
		entry.Flags |= EntryFlush
	} else {
		entry.Flags &^= EntryFlush
	}
	c.memoryAdd(entry)
	return true
}

// Cursor forwards to the backend; a cache layer has no scan state of its
// own to offer beyond what the backend supports.
func (c *CoinsViewCache) Cursor() (Cursor, bool) {
	return c.Backend().Cursor()
}

// EstimateSize estimates this layer's total memory usage: the entry table's
// own map overhead plus the dynamic usage of every cached coin.
func (c *CoinsViewCache) EstimateSize() int64 {
	return int64(calculateRoughMapSize(len(c.entries), bucketSize)) + int64(c.cachedCoinsUsage)
}

// CachedCoinsUsage returns the current value of cached_coins_usage.
func (c *CoinsViewCache) CachedCoinsUsage() int {
	return c.cachedCoinsUsage
}

// FlushCoinsUsage returns the current value of flush_coins_usage.
func (c *CoinsViewCache) FlushCoinsUsage() int {
	return c.flushCoinsUsage
}

// FlushCount returns the current value of flush_count.
func (c *CoinsViewCache) FlushCount() int {
	return c.flushCount
}

// EntryCount returns the number of entries currently resident in this
// layer's table.
func (c *CoinsViewCache) EntryCount() int {
	return len(c.entries)
}

// SanityCheck recomputes memory accounting and every entry's attr encoding
// from scratch and returns an error on the first mismatch or illegal
// encoding found.
func (c *CoinsViewCache) SanityCheck() error {
	cachedUsage := 0
	flushUsage := 0
	flushCount := 0

	for outpoint, entry := range c.entries {
		a := entry.attr()
		if !legalAttrs[a] {
			return AssertError(fmt.Sprintf("illegal cache entry attr %d at %s", a, outpoint))
		}
		sz := entry.Coin.DynamicMemoryUsage()
		cachedUsage += sz
		if entry.Flags&EntryFlush != 0 {
			flushUsage += sz
			flushCount++
		}
	}

	if cachedUsage != c.cachedCoinsUsage {
		return AssertError(fmt.Sprintf("cached_coins_usage mismatch: tracked %d, recomputed %d", c.cachedCoinsUsage, cachedUsage))
	}
	if flushUsage != c.flushCoinsUsage {
		return AssertError(fmt.Sprintf("flush_coins_usage mismatch: tracked %d, recomputed %d", c.flushCoinsUsage, flushUsage))
	}
	if flushCount != c.flushCount {
		return AssertError(fmt.Sprintf("flush_count mismatch: tracked %d, recomputed %d", c.flushCount, flushCount))
	}
	return nil
}

var _ BackingStore = (*CoinsViewCache)(nil)
