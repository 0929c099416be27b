// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scenario

import (
	"context"
	"fmt"
	"sync"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrutil/v2"
	"github.com/decred/dcrwallet/errors"
)

// fakeNode is a scripted node.  Generate advances the height by count and
// pays subsidy for every block; the other wallet calls return the fields
// set by the test.
type fakeNode struct {
	mu       sync.Mutex
	height   int64
	hash     chainhash.Hash
	mempool  []chainhash.Hash
	balance  dcrutil.Amount
	utxos    []Utxo
	subsidy  dcrutil.Amount
	maturity int64
	sent     []dcrutil.Amount
	addrs    int
	bestErr  error
}

func (f *fakeNode) Generate(ctx context.Context, count uint32) ([]chainhash.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hashes := make([]chainhash.Hash, count)
	for i := range hashes {
		f.height++
		f.hash = chainhash.HashH([]byte(fmt.Sprint(f.height)))
		hashes[i] = f.hash
	}
	return hashes, nil
}

func (f *fakeNode) Balance(ctx context.Context) (dcrutil.Amount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

func (f *fakeNode) NewAddress(ctx context.Context, label string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addrs++
	return fmt.Sprintf("addr%d", f.addrs), nil
}

func (f *fakeNode) SendToAddress(ctx context.Context, addr string, amount dcrutil.Amount) (chainhash.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if amount > f.balance {
		return chainhash.Hash{}, errors.E(errors.InsufficientBalance, "not enough funds")
	}
	f.balance -= amount
	f.sent = append(f.sent, amount)
	return chainhash.HashH([]byte(addr)), nil
}

func (f *fakeNode) ListUnspent(ctx context.Context, minConf int32) ([]Utxo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Utxo(nil), f.utxos...), nil
}

func (f *fakeNode) CreateRawTransaction(ctx context.Context, inputs []TxInput, outputs map[string]dcrutil.Amount) (string, error) {
	return "00", nil
}

func (f *fakeNode) SignRawTransaction(ctx context.Context, txHex string) (*SignResult, error) {
	return &SignResult{Hex: txHex, Complete: true}, nil
}

func (f *fakeNode) SendRawTransaction(ctx context.Context, txHex string, allowHighFees bool) (chainhash.Hash, error) {
	return chainhash.HashH([]byte(txHex)), nil
}

func (f *fakeNode) RawTransaction(ctx context.Context, txid *chainhash.Hash, verbose bool) (*TxRecord, error) {
	return &TxRecord{TxID: *txid}, nil
}

func (f *fakeNode) BestBlock(ctx context.Context) (chainhash.Hash, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hash, f.height, f.bestErr
}

func (f *fakeNode) RawMempool(ctx context.Context) ([]chainhash.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chainhash.Hash(nil), f.mempool...), nil
}

func (f *fakeNode) BlockSubsidy(ctx context.Context, height int64) (dcrutil.Amount, error) {
	return f.subsidy, nil
}

func (f *fakeNode) CoinbaseMaturity() int64 { return f.maturity }

func (f *fakeNode) setTip(height int64) {
	f.mu.Lock()
	f.height = height
	f.hash = chainhash.HashH([]byte(fmt.Sprint(height)))
	f.mu.Unlock()
}

func fakeNodes(n int, subsidy dcrutil.Amount) ([]*fakeNode, []Node) {
	fakes := make([]*fakeNode, n)
	nodes := make([]Node, n)
	for i := range fakes {
		fakes[i] = &fakeNode{subsidy: subsidy}
		nodes[i] = fakes[i]
	}
	return fakes, nodes
}
