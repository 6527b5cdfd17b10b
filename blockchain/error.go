// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
)

// AssertError identifies an error that indicates an internal code consistency
// issue and should be treated as a critical and unrecoverable error.
//
// The UTXO cache raises this for the handful of invariant violations that
// indicate a bug in the caller rather than a normal runtime condition: an
// unspent-overwrite in AddCoin, a FRESH flag misapplied during BatchWrite,
// and an incomplete erase after a full Flush.
type AssertError string

// Error returns the assertion error as a human-readable string and satisfies
// the error interface.
func (e AssertError) Error() string {
	return "assertion failed: " + string(e)
}

// assertf panics with an AssertError built from the given format string.
// Callers use this instead of a plain panic so that invariant violations are
// recognizable by type when they bubble up through recover() in tests.
func assertf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Criticalf("%s", msg)
	panic(AssertError(msg))
}
