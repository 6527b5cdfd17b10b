// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"os"
)

// ErrorCallback is invoked, along with every other registered callback,
// before an ErrorCatcher terminates the process on a backend I/O failure.
type ErrorCallback func(err error)

// ErrorCatcher wraps a BackingStore and converts read failures into
// process-fatal shutdown. A silent "not found" on an I/O failure would be
// indistinguishable from a legitimate absent outpoint and could cause
// double-spending, so GetCoin failures never propagate as ordinary errors:
// the failure is logged, every registered callback runs, and the process
// exits. ErrorCatcher must not be used for writes.
type ErrorCatcher struct {
	*BackedView

	callbacks []ErrorCallback

	// exit is called after the callbacks run. It defaults to os.Exit(1)
	// and is overridable so tests can observe the fatal path without
	// terminating the test binary.
	exit func()
}

// NewErrorCatcher returns an ErrorCatcher wrapping backend with no
// callbacks registered.
func NewErrorCatcher(backend BackingStore) *ErrorCatcher {
	return &ErrorCatcher{
		BackedView: NewBackedView(backend),
		exit:       func() { os.Exit(1) },
	}
}

// AddCallback registers fn to run before process termination.
func (v *ErrorCatcher) AddCallback(fn ErrorCallback) {
	v.callbacks = append(v.callbacks, fn)
}

// GetCoin forwards to the backend. A non-nil error logs the failure, runs
// every registered callback, and terminates the process; it never returns.
func (v *ErrorCatcher) GetCoin(outpoint Outpoint) (Coin, bool, error) {
	coin, found, err := v.Backend().GetCoin(outpoint)
	if err != nil {
		v.fatal(err)
	}
	return coin, found, nil
}

// HaveCoin forwards to the backend with the same fatal-on-error behavior as
// GetCoin.
func (v *ErrorCatcher) HaveCoin(outpoint Outpoint) (bool, error) {
	have, err := v.Backend().HaveCoin(outpoint)
	if err != nil {
		v.fatal(err)
	}
	return have, nil
}

func (v *ErrorCatcher) fatal(err error) {
	log.Criticalf("fatal error reading UTXO set: %v", err)
	for _, cb := range v.callbacks {
		cb(err)
	}
	v.exit()
}

var _ BackingStore = (*ErrorCatcher)(nil)
