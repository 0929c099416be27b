// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package rpctest runs scenarios against real simnet dcrd and dcrwallet
// processes.
//
// Package structure:
//
// - `Harness` is one dcrd process with a temporary dcrwallet attached.
// Deploy launches both, asks the wallet for a mining address and restarts
// dcrd mining to it.
//
// - `Network` deploys several harnesses, reserving three consecutive ports
// per harness from a base port, and peers every pair of dcrd nodes.
//
// - `RPCNode` implements scenario.Node over the JSON-RPC interfaces of a
// harness.
//
// The dcrd and dcrwallet executables must be installed.  Tests that need
// them are skipped in short mode or when the executables are missing.
package rpctest
