// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Outpoint uniquely identifies a transaction output by the hash of the
// transaction that created it and the output's index within that
// transaction.
type Outpoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// NewOutpoint returns a new outpoint for the given hash and output index.
func NewOutpoint(hash *chainhash.Hash, index uint32) Outpoint {
	return Outpoint{Hash: *hash, Index: index}
}

// String returns the outpoint in the canonical "hash:index" form.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash, o.Index)
}
