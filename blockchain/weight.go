// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

const (
	// MaxBlockWeight defines the maximum block weight, where "block
	// weight" is interpreted as defined in BIP0141. A block's weight is
	// calculated as the sum of the of bytes in the existing transactions
	// and header, plus the weight of each byte within a transaction. The
	// weight of a "base" byte is 4, while the weight of a witness byte is
	// 1. As a result, for a block to be valid, the BlockWeight MUST be
	// less than, or equal to MaxBlockWeight.
	MaxBlockWeight = 4000000

	// WitnessScaleFactor determines the level of "discount" witness data
	// receives compared to "base" data. A scale factor of 4, denotes that
	// witness data is 1/4 as cheap as regular non-witness data.
	WitnessScaleFactor = 4

	// MinTransactionOutputWeight is the minimum weight of a single
	// transaction output: an empty, non-witness output consisting of an
	// 8-byte value and a 1-byte script length, scaled by
	// WitnessScaleFactor.
	MinTransactionOutputWeight = 4 * (8 + 1)

	// MaxOutputsPerBlock is the maximum number of transaction outputs
	// that can appear in a block of MaxBlockWeight, used to bound scans
	// such as access_by_txid over same-block outputs.
	MaxOutputsPerBlock = MaxBlockWeight / MinTransactionOutputWeight
)
