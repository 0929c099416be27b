// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package scenario drives a small network of ledger nodes through a fixed,
// ordered sequence of mining and transfer steps and checks balances and
// unspent output sets at each checkpoint.
//
// Package structure:
//
// - `Node` is the narrow action/query surface a participant must expose.
// Implementations live in the simnet (in-process) and rpctest (dcrd and
// dcrwallet processes) packages.
//
// - `Step` is a closed set of variants: Mine, Pay, Sync, BroadcastRaw, Sweep,
// ShowRawTx and Assert.  Steps never branch or retry; the first failure
// aborts the run.
//
// - `SyncAll` is the convergence barrier.  It blocks until every node reports
// the same best block and mempool, or fails with a ConvergenceError.
//
// - `Ledger` records which node mined each height and what was paid or swept
// so expected balances can be expressed as `Expr` values resolved at
// assertion time.
//
// - `WalletScenario` builds the three node wallet walkthrough.
package scenario
