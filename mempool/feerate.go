// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"math"

	"github.com/btcsuite/btcd/btcutil"
)

// FeeRate is a fee per virtual byte, the ordering metric the mini-miner
// optimizes for, grounded on Bitcoin Core's CFeeRate.
type FeeRate float64

// FeeRateFromFeeAndVSize returns the feerate implied by paying fee over
// vsize virtual bytes. A non-positive vsize yields a zero feerate.
func FeeRateFromFeeAndVSize(fee btcutil.Amount, vsize int64) FeeRate {
	if vsize <= 0 {
		return 0
	}
	return FeeRate(float64(fee) / float64(vsize))
}

// Fee returns the fee required to pay this rate over vsize virtual bytes,
// rounded up so that paying exactly this much never leaves the resulting
// feerate fractionally below the target.
func (r FeeRate) Fee(vsize int64) btcutil.Amount {
	return btcutil.Amount(math.Ceil(float64(r) * float64(vsize)))
}
