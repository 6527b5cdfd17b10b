// Package mempool provides a narrow read-only view of an unconfirmed
// transaction pool together with the mini-miner bump-fee calculator that
// consumes it.
//
// # Mempool interface
//
// Callers of the mini-miner only ever need to know whether a transaction
// exists, and what cluster (transitive parent/child closure) a set of
// transactions belongs to. The Mempool interface exposes exactly that:
//
//	if mp.Exists(txid) {
//	    cluster := mp.CalculateCluster([]chainhash.Hash{txid})
//	}
//
// A Tx handle returned from a cluster exposes its fee, virtual size, and its
// in-mempool parents and children.
//
// # Mini-miner
//
// MiniMiner computes, for a set of outpoints a caller might spend, the
// additional fee ("bump fee") required to raise the feerate of the
// transaction and its unconfirmed ancestors to a target feerate. It builds
// the cluster DAG once in its constructor, topologically sorts it, and
// simulates mining it in repeated passes:
//
//	mm, err := mempool.NewMiniMiner(mp, outpoints)
//	bumpFees := mm.CalculateBumpFees(targetFeerate)
//
// The miner holds no lock on the mempool after construction and is safe to
// query repeatedly, though not concurrently.
package mempool
