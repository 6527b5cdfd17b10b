// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Outpoint identifies a transaction output the caller wants a bump fee for.
// MiniMiner only ever reads the hash half of it; Index exists so callers can
// round-trip their own outputs through CalculateBumpFees.
type Outpoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// minerTx is a cluster member's state, addressed by slot index rather than
// by pointer so that the arena (MiniMiner.txs) can be reallocated freely
// while parent/child edges keep working.
type minerTx struct {
	hash     chainhash.Hash
	fee      btcutil.Amount
	vsize    int64
	parents  []int
	children []int

	mined bool

	// ancestorFee and ancestorVSize are recomputed by BuildMockTemplate on
	// every pass; they are the tx's own fee/vsize plus those of its
	// still-unmined ancestors.
	ancestorFee   btcutil.Amount
	ancestorVSize int64
}

// MiniMiner simulates, without touching any real block template, which
// transactions in a mempool cluster a miner would include first if filling
// blocks purely by ancestor feerate. It answers "how much would I need to
// pay, on top of what I've already paid, to get this transaction mined at
// a given feerate" without requiring a live node or a real template build.
//
// A MiniMiner is built once against a snapshot of its cluster and is not
// safe for concurrent use; BuildMockTemplate mutates mined state and must
// not race with itself or with CalculateBumpFees/CalculateTotalBumpFees.
type MiniMiner struct {
	txs     []*minerTx
	byHash  map[chainhash.Hash]int
	topSort []int

	// zeroBump holds outpoints whose transaction was never in the mempool
	// to begin with; they always report a zero bump fee.
	zeroBump map[Outpoint]bool

	outpoints []Outpoint
}

// NewMiniMiner snapshots the cluster containing outpoints' transactions out
// of mp and builds the index-based graph BuildMockTemplate walks. Outpoints
// whose transaction is absent from the mempool are recorded as always
// requiring a zero bump fee; they do not participate in clustering.
func NewMiniMiner(mp Mempool, outpoints []Outpoint) (*MiniMiner, error) {
	m := &MiniMiner{
		byHash:    make(map[chainhash.Hash]int),
		zeroBump:  make(map[Outpoint]bool),
		outpoints: outpoints,
	}

	var seeds []chainhash.Hash
	for _, op := range outpoints {
		if !mp.Exists(op.Hash) {
			m.zeroBump[op] = true
			continue
		}
		seeds = append(seeds, op.Hash)
	}

	if len(seeds) == 0 {
		return m, nil
	}

	cluster := mp.CalculateCluster(seeds)
	for _, member := range cluster {
		m.register(member)
	}
	for _, member := range cluster {
		idx := m.byHash[member.Hash()]
		for _, p := range member.Parents() {
			pIdx := m.register(p)
			m.txs[idx].parents = append(m.txs[idx].parents, pIdx)
		}
		for _, c := range member.Children() {
			cIdx := m.register(c)
			m.txs[idx].children = append(m.txs[idx].children, cIdx)
		}
	}

	if err := m.sortTopologically(); err != nil {
		return nil, err
	}
	return m, nil
}

// register returns handle's slot index, creating one if this is the first
// time handle's hash has been seen. Cluster members reachable only through
// a Parents()/Children() walk (rather than CalculateCluster's own return
// value) are registered lazily here too, so a host whose cluster closure is
// slightly loose still produces a correct graph.
func (m *MiniMiner) register(handle Tx) int {
	hash := handle.Hash()
	if idx, ok := m.byHash[hash]; ok {
		return idx
	}
	idx := len(m.txs)
	m.txs = append(m.txs, &minerTx{
		hash:  hash,
		fee:   handle.ModifiedFee(),
		vsize: handle.VSize(),
	})
	m.byHash[hash] = idx
	return idx
}

// sortTopologically runs Kahn's algorithm over the parent/child edges
// registered in m.txs, producing a parents-before-children order that
// BuildMockTemplate's ancestor-sum recomputation depends on.
func (m *MiniMiner) sortTopologically() error {
	inDegree := make([]int, len(m.txs))
	for i, t := range m.txs {
		inDegree[i] = len(t.parents)
	}

	queue := NewQueue[int](len(m.txs))
	for i, d := range inDegree {
		if d == 0 {
			queue.Enqueue(i)
		}
	}

	order := make([]int, 0, len(m.txs))
	for !queue.IsEmpty() {
		idx, _ := queue.Dequeue()
		order = append(order, idx)
		for _, c := range m.txs[idx].children {
			inDegree[c]--
			if inDegree[c] == 0 {
				queue.Enqueue(c)
			}
		}
	}

	if len(order) != len(m.txs) {
		return errors.New("mempool: cluster parent/child edges are not a DAG")
	}
	m.topSort = order
	return nil
}

// BuildMockTemplate simulates filling a block with the cluster's
// transactions, marking every transaction whose ancestor feerate meets or
// exceeds targetFeerate as mined, along with whatever unmined ancestors that
// requires mining too. Each pass walks the topological order and mines the
// first transaction that qualifies, then starts a new pass; it does not
// pick the highest-feerate candidate first.
// It is idempotent for a fixed targetFeerate: once a transaction is mined
// it stays mined, and a second call at the same rate finds nothing new to
// do. Calling it again with a lower rate mines further into the cluster;
// it never un-mines anything, so a call at a higher rate after a lower-rate
// call leaves the lower-rate call's mined set in place.
func (m *MiniMiner) BuildMockTemplate(targetFeerate FeeRate) {
	log.Debugf("building mock template, target feerate=%v cluster size=%d", targetFeerate, len(m.txs))

	for pass := 0; ; pass++ {
		progressed := false
		for _, idx := range m.topSort {
			if m.txs[idx].mined {
				continue
			}

			ancestorFee, ancestorVSize := m.ancestorFeeAndVSize(idx)
			m.txs[idx].ancestorFee = ancestorFee
			m.txs[idx].ancestorVSize = ancestorVSize

			ancestorFeerate := FeeRateFromFeeAndVSize(ancestorFee, ancestorVSize)
			if ancestorFeerate < targetFeerate {
				continue
			}

			log.Tracef("pass %d: mining %s and unmined ancestors, ancestor feerate=%v", pass, m.txs[idx].hash, ancestorFeerate)
			m.mineWithAncestors(idx)
			progressed = true
			break
		}
		if !progressed {
			log.Debugf("mock template built after %d pass(es)", pass)
			break
		}
	}
}

// ancestorFeeAndVSize sums the fee and vsize of idx together with every
// one of its unmined ancestors, each counted exactly once. A naive sum of
// each parent's own ancestor total would double-count an ancestor reachable
// through more than one parent path, so this walks the union of unmined
// ancestors explicitly with a visited set.
func (m *MiniMiner) ancestorFeeAndVSize(idx int) (btcutil.Amount, int64) {
	visited := make(map[int]bool)
	var fee btcutil.Amount
	var vsize int64

	stack := NewStack[int]()
	stack.Push(idx)
	for !stack.IsEmpty() {
		cur, _ := stack.Pop()
		if visited[cur] {
			continue
		}
		visited[cur] = true

		t := m.txs[cur]
		fee += t.fee
		vsize += t.vsize
		for _, p := range t.parents {
			if !m.txs[p].mined && !visited[p] {
				stack.Push(p)
			}
		}
	}
	return fee, vsize
}

// mineWithAncestors marks idx and every one of its unmined ancestors as
// mined, walked depth-first with an explicit stack rather than recursion.
func (m *MiniMiner) mineWithAncestors(idx int) {
	stack := NewStack[int]()
	stack.Push(idx)
	for !stack.IsEmpty() {
		cur, _ := stack.Pop()
		t := m.txs[cur]
		if t.mined {
			continue
		}
		t.mined = true
		for _, p := range t.parents {
			if !m.txs[p].mined {
				stack.Push(p)
			}
		}
	}
}

// CalculateBumpFees runs BuildMockTemplate at targetFeerate and returns,
// for each outpoint passed to NewMiniMiner, the additional fee its
// transaction (and whatever unmined ancestors it depends on) would need in
// order to be mined at that feerate. A transaction already mined, or never
// in the mempool to begin with, maps to zero.
func (m *MiniMiner) CalculateBumpFees(targetFeerate FeeRate) map[Outpoint]btcutil.Amount {
	m.BuildMockTemplate(targetFeerate)

	result := make(map[Outpoint]btcutil.Amount, len(m.outpoints))
	for _, op := range m.outpoints {
		if m.zeroBump[op] {
			result[op] = 0
			continue
		}
		idx, ok := m.byHash[op.Hash]
		if !ok || m.txs[idx].mined {
			result[op] = 0
			continue
		}
		t := m.txs[idx]
		result[op] = targetFeerate.Fee(t.ancestorVSize) - t.ancestorFee
	}
	return result
}

// CalculateTotalBumpFees is CalculateBumpFees with the shared-ancestor cost
// counted once rather than once per outpoint: it unions every requested
// transaction's unmined ancestor set before pricing it, so two outpoints
// that depend on the same unconfirmed parent don't double-pay for it.
func (m *MiniMiner) CalculateTotalBumpFees(targetFeerate FeeRate) btcutil.Amount {
	m.BuildMockTemplate(targetFeerate)

	union := make(map[int]bool)
	var totalVSize int64
	var totalFee btcutil.Amount

	stack := NewStack[int]()
	for _, op := range m.outpoints {
		if m.zeroBump[op] {
			continue
		}
		idx, ok := m.byHash[op.Hash]
		if !ok || m.txs[idx].mined {
			continue
		}
		stack.Push(idx)
	}

	for !stack.IsEmpty() {
		idx, _ := stack.Pop()
		if union[idx] {
			continue
		}
		t := m.txs[idx]
		if t.mined {
			continue
		}
		union[idx] = true
		totalFee += t.fee
		totalVSize += t.vsize
		for _, p := range t.parents {
			if !m.txs[p].mined && !union[p] {
				stack.Push(p)
			}
		}
	}

	if totalVSize == 0 {
		return 0
	}
	return targetFeerate.Fee(totalVSize) - totalFee
}
