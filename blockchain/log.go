// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import "github.com/btcsuite/btclog"

// log is the logger used by the blockchain package. It defaults to
// disabled so the package is silent until a caller installs a logger via
// UseLogger.
var log = btclog.Disabled

// UseLogger sets the package-level logger used by the blockchain package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
