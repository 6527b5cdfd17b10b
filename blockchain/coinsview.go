// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Cursor is an optional scan interface a BackingStore may expose. Stores
// that cannot support a scan return (nil, false) from Cursor.
type Cursor interface {
	// Valid reports whether the cursor currently points at an entry.
	Valid() bool

	// Next advances the cursor.
	Next()

	// Outpoint returns the outpoint the cursor currently points at.
	Outpoint() Outpoint

	// Coin returns the coin the cursor currently points at.
	Coin() Coin
}

// BackingStore is the abstract read/write contract for a durable UTXO view.
// A CoinsViewCache (component D) is itself a BackingStore, so caches may be
// stacked arbitrarily deep; the bottom of the stack is a concrete, durable
// implementation the host provides.
type BackingStore interface {
	// GetCoin returns the coin for outpoint and whether it was found.
	// found is false if the outpoint is unknown to this store. An error
	// indicates a lower-layer I/O failure.
	GetCoin(outpoint Outpoint) (coin Coin, found bool, err error)

	// HaveCoin reports whether outpoint has an unspent entry.
	HaveCoin(outpoint Outpoint) (bool, error)

	// BestBlock returns the hash of the block whose state this store
	// reflects, or the zero hash before it has ever been set.
	BestBlock() chainhash.Hash

	// HeadBlocks returns the unfinished-flush marker list; empty when
	// the store is in a consistent state.
	HeadBlocks() []chainhash.Hash

	// BatchWrite bulk-applies entries into this store. erase indicates
	// the caller wants written entries dropped from entries afterward.
	// partial indicates the caller has already filtered entries down to
	// only those tagged EntryFlush; an implementation receiving
	// partial=true may assume every entry present is eligible for
	// coalescing and erasure and need not re-check EntryFlush itself.
	// See CoinsViewCache.BatchWrite for the coalescing semantics a cache
	// layer must implement.
	BatchWrite(entries map[Outpoint]*CacheEntry, bestBlock chainhash.Hash, erase, partial bool) (bool, error)

	// Cursor returns a scan cursor if this store supports one.
	Cursor() (Cursor, bool)

	// EstimateSize estimates the store's total size in bytes.
	EstimateSize() int64
}

// HaveCoinDefault is the default presence-and-unspent check: present and
// unspent. Concrete stores that can answer more cheaply than a full GetCoin
// should implement their own HaveCoin instead of calling this.
func HaveCoinDefault(store BackingStore, outpoint Outpoint) (bool, error) {
	coin, found, err := store.GetCoin(outpoint)
	if err != nil {
		return false, err
	}
	return found && !coin.IsSpent(), nil
}

// BackedView forwards every BackingStore operation to another BackingStore.
// SetBackend is the sole mechanism for swapping the lower layer at runtime.
type BackedView struct {
	backend BackingStore
}

// NewBackedView returns a BackedView forwarding to backend.
func NewBackedView(backend BackingStore) *BackedView {
	return &BackedView{backend: backend}
}

// SetBackend swaps the backend this view forwards to.
func (v *BackedView) SetBackend(backend BackingStore) {
	v.backend = backend
}

// Backend returns the current backend.
func (v *BackedView) Backend() BackingStore {
	return v.backend
}

func (v *BackedView) GetCoin(outpoint Outpoint) (Coin, bool, error) {
	return v.backend.GetCoin(outpoint)
}

func (v *BackedView) HaveCoin(outpoint Outpoint) (bool, error) {
	return v.backend.HaveCoin(outpoint)
}

func (v *BackedView) BestBlock() chainhash.Hash {
	return v.backend.BestBlock()
}

func (v *BackedView) HeadBlocks() []chainhash.Hash {
	return v.backend.HeadBlocks()
}

func (v *BackedView) BatchWrite(entries map[Outpoint]*CacheEntry, bestBlock chainhash.Hash, erase, partial bool) (bool, error) {
	return v.backend.BatchWrite(entries, bestBlock, erase, partial)
}

func (v *BackedView) Cursor() (Cursor, bool) {
	return v.backend.Cursor()
}

func (v *BackedView) EstimateSize() int64 {
	return v.backend.EstimateSize()
}

var _ BackingStore = (*BackedView)(nil)
