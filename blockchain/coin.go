// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/btcsuite/btcd/btcutil"
)

// Coin is the value and metadata of a single unspent transaction output. It
// is value-typed: owned by exactly one cache entry at a time; moving a coin
// between cache layers copies the struct into the receiving layer's entry.
type Coin struct {
	// Amount is the value of the output.
	Amount btcutil.Amount

	// PkScript is the opaque locking script of the output.
	PkScript []byte

	// Height is the height of the block that created this output.
	Height int32

	// IsCoinbase marks outputs created by a block-reward transaction.
	IsCoinbase bool

	spent bool
}

// NewCoin returns a coin in the unspent state for the given output.
func NewCoin(amount btcutil.Amount, pkScript []byte, height int32, isCoinbase bool) Coin {
	return Coin{
		Amount:     amount,
		PkScript:   pkScript,
		Height:     height,
		IsCoinbase: isCoinbase,
	}
}

// IsSpent reports whether the coin has been spent.
func (c *Coin) IsSpent() bool {
	return c.spent
}

// Spend marks the coin spent and clears its payload, matching Bitcoin
// Core's Coin::Clear(): a spent coin retains no script so that its dynamic
// memory usage collapses to zero.
func (c *Coin) Spend() {
	c.spent = true
	c.PkScript = nil
	c.Amount = 0
}

// Clear resets the coin to its zero, spent state.
func (c *Coin) Clear() {
	*c = Coin{spent: true}
}

// DynamicMemoryUsage returns the cost of the coin's owned heap: the script
// payload, rounded up the way the Go allocator would round up the backing
// array. A spent coin owns no payload and costs nothing. This accounts for
// the coin alone, never the entry or its map bucket; CoinsViewCache tracks
// bucket overhead separately.
func (c *Coin) DynamicMemoryUsage() int {
	if c.spent {
		return 0
	}
	return int(roundupsize(uintptr(len(c.PkScript))))
}
