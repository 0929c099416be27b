// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpctest

import (
	"context"
	"time"

	"github.com/decred/dcrwallet/errors"
	"github.com/decred/walletscenario/internal/cfgutil"
)

// fileCheckInterval is the pause between two checks of WaitForFile.
var fileCheckInterval = time.Second

// FileExists reports whether path exists.  Errors other than a missing file
// are reported as the file not existing.
func FileExists(path string) bool {
	e, err := cfgutil.FileExists(path)
	if err != nil {
		return false
	}
	return e
}

// WaitForFile sleeps until the file is created or the timeout is reached.
// dcrd and dcrwallet write their RPC certificates once they accept
// connections.
func WaitForFile(ctx context.Context, file string, timeout time.Duration) error {
	const op errors.Op = "rpctest.WaitForFile"
	deadline := time.Now().Add(timeout)
	for !FileExists(file) {
		if time.Now().After(deadline) {
			return errors.E(op, errors.NotExist, errors.Errorf("file not found after %v: %v", timeout, file))
		}
		log.Debugf("Waiting for %s", file)
		select {
		case <-ctx.Done():
			return errors.E(op, ctx.Err())
		case <-time.After(fileCheckInterval):
		}
	}
	return nil
}
