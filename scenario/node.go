// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scenario

import (
	"context"
	"fmt"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrutil/v2"
	"github.com/decred/dcrd/wire"
)

// Node is the action and query surface of one network participant: a ledger
// node paired with its wallet.  Implementations must be safe for use by a
// single goroutine at a time; SyncAll queries distinct nodes concurrently.
type Node interface {
	// Generate mines count blocks on top of the node's best block,
	// paying the coinbase to the node's wallet.
	Generate(ctx context.Context, count uint32) ([]chainhash.Hash, error)

	// Balance returns the wallet balance: mature, unspent, trusted
	// outputs at the node's tip.
	Balance(ctx context.Context) (dcrutil.Amount, error)

	// NewAddress returns a fresh receiving address of the wallet.
	NewAddress(ctx context.Context, label string) (string, error)

	// SendToAddress pays amount to addr, choosing inputs and change and
	// paying any fee the relay policy demands.
	SendToAddress(ctx context.Context, addr string, amount dcrutil.Amount) (chainhash.Hash, error)

	// ListUnspent returns the wallet's spendable outputs with at least
	// minConf confirmations.
	ListUnspent(ctx context.Context, minConf int32) ([]Utxo, error)

	// CreateRawTransaction returns the hex encoding of an unsigned
	// transaction spending inputs and paying outputs (address to amount).
	CreateRawTransaction(ctx context.Context, inputs []TxInput, outputs map[string]dcrutil.Amount) (string, error)

	// SignRawTransaction signs every input of the hex encoded transaction
	// the wallet holds keys for.
	SignRawTransaction(ctx context.Context, txHex string) (*SignResult, error)

	// SendRawTransaction submits the hex encoded transaction to the node's
	// mempool and relays it.
	SendRawTransaction(ctx context.Context, txHex string, allowHighFees bool) (chainhash.Hash, error)

	// RawTransaction looks up a transaction in the mempool or the chain.
	// The decoded inputs and outputs are only filled in when verbose is
	// set.
	RawTransaction(ctx context.Context, txid *chainhash.Hash, verbose bool) (*TxRecord, error)

	// BestBlock returns the hash and height of the node's chain tip.
	BestBlock(ctx context.Context) (chainhash.Hash, int64, error)

	// RawMempool returns the hashes of all transactions in the mempool.
	RawMempool(ctx context.Context) ([]chainhash.Hash, error)

	// BlockSubsidy returns the coinbase subsidy paid to the miner of a
	// block at height.
	BlockSubsidy(ctx context.Context, height int64) (dcrutil.Amount, error)

	// CoinbaseMaturity returns the number of blocks a coinbase output must
	// be buried under before it may be spent.
	CoinbaseMaturity() int64
}

// Utxo describes one unspent output reported by a wallet.
type Utxo struct {
	TxID          chainhash.Hash
	Vout          uint32
	Tree          int8
	Amount        dcrutil.Amount
	Confirmations int64
	Address       string
	Coinbase      bool
}

// OutPoint returns the outpoint the output is identified by.
func (u *Utxo) OutPoint() wire.OutPoint {
	return wire.OutPoint{Hash: u.TxID, Index: u.Vout, Tree: u.Tree}
}

func (u *Utxo) String() string {
	return fmt.Sprintf("%v:%d (%v, %d confs)", &u.TxID, u.Vout, u.Amount, u.Confirmations)
}

// TxInput references a previous output to spend in a raw transaction.
type TxInput struct {
	TxID chainhash.Hash
	Vout uint32
	Tree int8

	// Amount is the value of the referenced output.  Signers fill in the
	// input value from their own view when it is zero.
	Amount dcrutil.Amount
}

// SignResult is the outcome of SignRawTransaction.
type SignResult struct {
	Hex      string
	Complete bool
	Errors   []SignError
}

// SignError describes an input that could not be signed.
type SignError struct {
	TxID  chainhash.Hash
	Vout  uint32
	Error string
}

// TxRecord is a transaction as reported by RawTransaction.
type TxRecord struct {
	TxID          chainhash.Hash
	Hex           string
	BlockHash     *chainhash.Hash
	BlockHeight   int64
	Confirmations int64
	Vin           []TxRecordInput
	Vout          []TxRecordOutput
}

// TxRecordInput is a decoded transaction input.
type TxRecordInput struct {
	TxID     chainhash.Hash
	Vout     uint32
	AmountIn dcrutil.Amount
	Coinbase bool
}

// TxRecordOutput is a decoded transaction output.
type TxRecordOutput struct {
	N         uint32
	Value     dcrutil.Amount
	Addresses []string
}

func (r *TxRecord) String() string {
	s := fmt.Sprintf("tx %v (%d confs)", &r.TxID, r.Confirmations)
	if r.BlockHash != nil {
		s += fmt.Sprintf(" in block %v at height %d", r.BlockHash, r.BlockHeight)
	}
	for _, in := range r.Vin {
		if in.Coinbase {
			s += fmt.Sprintf("\n  in  coinbase %v", in.AmountIn)
			continue
		}
		s += fmt.Sprintf("\n  in  %v:%d %v", &in.TxID, in.Vout, in.AmountIn)
	}
	for _, out := range r.Vout {
		s += fmt.Sprintf("\n  out %d %v %v", out.N, out.Value, out.Addresses)
	}
	return s
}

// nodeName returns the letter naming the node at index i (A, B, C, ...).
func nodeName(i int) string {
	if i >= 0 && i < 26 {
		return string(rune('A' + i))
	}
	return fmt.Sprintf("node%d", i)
}
