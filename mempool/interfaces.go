// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Tx is the narrow read-only view MiniMiner needs of a single mempool
// transaction. Implementations typically wrap a node in the host's real
// transaction graph.
type Tx interface {
	// Hash returns the transaction's id.
	Hash() chainhash.Hash

	// ModifiedFee returns the transaction's policy-adjusted fee.
	ModifiedFee() btcutil.Amount

	// VSize returns the transaction's virtual size.
	VSize() int64

	// Parents yields this transaction's in-mempool parents.
	Parents() []Tx

	// Children yields this transaction's in-mempool children.
	Children() []Tx
}

// Mempool is the narrow read-only surface MiniMiner consumes. A host's real
// mempool satisfies this with a thin adapter; it never needs to expose any
// more of itself than this.
type Mempool interface {
	// Exists reports whether txid is currently in the mempool.
	Exists(txid chainhash.Hash) bool

	// CalculateCluster returns the transitive parent/child closure of
	// the named transactions: every Tx reachable by walking parents and
	// children repeatedly from the given starting set.
	CalculateCluster(txids []chainhash.Hash) []Tx
}
