// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package simnet

import (
	"context"
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrutil/v2"
	"github.com/decred/dcrwallet/errors"
	"github.com/decred/walletscenario/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSync = scenario.SyncOptions{Timeout: 30 * time.Second, PollInterval: 5 * time.Millisecond}

func newTestNetwork(t *testing.T, cfg *Config) *Network {
	t.Helper()
	net, err := NewNetwork(cfg)
	require.NoError(t, err)
	return net
}

func coins(n int64) dcrutil.Amount { return dcrutil.Amount(n * dcrutil.AtomsPerCoin) }

func balance(t *testing.T, n *Node) dcrutil.Amount {
	t.Helper()
	b, err := n.Balance(context.Background())
	require.NoError(t, err)
	return b
}

func TestWalletScenario(t *testing.T) {
	net := newTestNetwork(t, &Config{Nodes: scenario.WalletNodes})
	defer net.Close()

	r := scenario.NewRunner("wallet", net.Nodes(),
		scenario.WalletScenario(scenario.DefaultWalletOptions()), testSync)
	err := r.Run(context.Background())
	require.NoError(t, err)

	j := r.Journal()
	assert.Equal(t, scenario.StatusOK, j.Result)
	assert.Equal(t, "17500000 DCR", j.Entry(5).Values["balance A"])
	assert.Equal(t, "80000 DCR", j.Entry(6).Values["balance B"])
	assert.Equal(t, "0 DCR", j.Entry(7).Values["balance C"])
	assert.Equal(t, "17509299 DCR", j.Entry(15).Values["balance A"])
	assert.Equal(t, "701 DCR", j.Entry(17).Values["balance C"])
	assert.Equal(t, "3", j.Entry(18).Values["unspent A"])

	l := r.Ledger()
	assert.Equal(t, int64(52), l.Tip())
	assert.Len(t, l.Swept(), 3)
	assert.Equal(t, coins(17510000), l.Received(scenario.NodeC))

	assert.Zero(t, balance(t, net.Node(scenario.NodeA)))
	assert.Equal(t, coins(165000), balance(t, net.Node(scenario.NodeB)))
	assert.Equal(t, coins(17510000), balance(t, net.Node(scenario.NodeC)))
}

func TestFlatSubsidy(t *testing.T) {
	const s = 50 * dcrutil.AtomsPerCoin
	net := newTestNetwork(t, &Config{
		Params:  FlatParams(s),
		Nodes:   3,
		Latency: 2 * time.Millisecond,
	})
	defer net.Close()

	steps := []scenario.Step{
		&scenario.Mine{Node: 0, Count: 1},
		scenario.Sync{},
		&scenario.Mine{Node: 1, Count: 32},
		scenario.Sync{},
		&scenario.Assert{Check: &scenario.BalanceExpectation{Node: 0, Relation: scenario.Equals, Amount: scenario.Fixed(s)}},
		&scenario.Assert{Check: &scenario.BalanceExpectation{Node: 1, Relation: scenario.Equals, Amount: scenario.Fixed(32 * s)}},
		&scenario.Assert{Check: &scenario.BalanceExpectation{Node: 2, Relation: scenario.Equals, Amount: scenario.Fixed(0)}},
		&scenario.Assert{Check: &scenario.BalanceExpectation{Node: 1, Relation: scenario.Equals, Amount: scenario.MaturedSubsidy(1)}},
	}
	r := scenario.NewRunner("flat", net.Nodes(), steps, testSync)
	require.NoError(t, r.Run(context.Background()))
}

func TestSyncAllIdempotent(t *testing.T) {
	net := newTestNetwork(t, &Config{Params: FlatParams(coins(1)), Nodes: 3})
	defer net.Close()

	ctx := context.Background()
	_, err := net.Node(0).Generate(ctx, 3)
	require.NoError(t, err)
	first, err := scenario.SyncAll(ctx, net.Nodes(), testSync)
	require.NoError(t, err)
	second, err := scenario.SyncAll(ctx, net.Nodes(), testSync)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(3), first[2].Height)
}

func TestPartition(t *testing.T) {
	net := newTestNetwork(t, &Config{Params: FlatParams(coins(1)), Nodes: 3})
	defer net.Close()
	ctx := context.Background()

	net.Disconnect(0, 1)
	net.Disconnect(0, 2)
	_, err := net.Node(0).Generate(ctx, 2)
	require.NoError(t, err)

	short := scenario.SyncOptions{Timeout: 100 * time.Millisecond, PollInterval: 5 * time.Millisecond}
	_, err = scenario.SyncAll(ctx, net.Nodes(), short)
	cerr, ok := err.(*scenario.ConvergenceError)
	require.True(t, ok, "%T: %v", err, err)
	assert.Equal(t, int64(2), cerr.Views[0].Height)
	assert.Equal(t, int64(0), cerr.Views[1].Height)

	net.Connect(0, 1)
	net.Connect(0, 2)
	views, err := scenario.SyncAll(ctx, net.Nodes(), testSync)
	require.NoError(t, err)
	assert.Equal(t, int64(2), views[1].Height)
}

// spendOutput builds and signs on owner a transaction paying the full value
// of u to a fresh address of to.
func spendOutput(t *testing.T, owner, to *Node, u scenario.Utxo, amount dcrutil.Amount) string {
	t.Helper()
	ctx := context.Background()
	addr, err := to.NewAddress(ctx, "")
	require.NoError(t, err)
	raw, err := owner.CreateRawTransaction(ctx, []scenario.TxInput{{
		TxID: u.TxID, Vout: u.Vout, Tree: u.Tree, Amount: u.Amount,
	}}, map[string]dcrutil.Amount{addr: amount})
	require.NoError(t, err)
	res, err := owner.SignRawTransaction(ctx, raw)
	require.NoError(t, err)
	require.True(t, res.Complete, "%v", res.Errors)
	return res.Hex
}

func TestDoubleSpend(t *testing.T) {
	net := newTestNetwork(t, &Config{Params: FlatParams(coins(10)), Nodes: 3})
	defer net.Close()
	ctx := context.Background()
	a, b, c := net.Node(0), net.Node(1), net.Node(2)

	_, err := a.Generate(ctx, 2)
	require.NoError(t, err)
	_, err = scenario.SyncAll(ctx, net.Nodes(), testSync)
	require.NoError(t, err)

	utxos, err := a.ListUnspent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	u := utxos[0]

	first := spendOutput(t, a, c, u, u.Amount)
	_, err = b.SendRawTransaction(ctx, first, true)
	require.NoError(t, err)

	second := spendOutput(t, a, c, u, u.Amount-1)
	_, err = b.SendRawTransaction(ctx, second, true)
	assert.True(t, errors.Is(errors.DoubleSpend, err), "%v", err)

	_, err = b.Generate(ctx, 1)
	require.NoError(t, err)
	_, err = b.SendRawTransaction(ctx, second, true)
	assert.True(t, errors.Is(errors.DoubleSpend, err), "%v", err)

	// The runner rejects a batch claiming one output twice before any
	// transaction is submitted.
	steps := []scenario.Step{
		&scenario.BroadcastRaw{Owner: 0, Via: 1, To: 2, Amount: u.Amount,
			Inputs: []scenario.TxInput{{TxID: u.TxID, Vout: u.Vout, Amount: u.Amount},
				{TxID: u.TxID, Vout: u.Vout, Amount: u.Amount}}},
	}
	r := scenario.NewRunner("reuse", net.Nodes(), steps, testSync)
	err = r.Run(ctx)
	assert.True(t, errors.Is(errors.DoubleSpend, err), "%v", err)
}

func TestRejectedRelay(t *testing.T) {
	net := newTestNetwork(t, &Config{Params: FlatParams(coins(10)), Nodes: 2})
	defer net.Close()
	ctx := context.Background()
	a, b := net.Node(0), net.Node(1)

	_, err := a.Generate(ctx, 2)
	require.NoError(t, err)
	_, err = scenario.SyncAll(ctx, net.Nodes(), testSync)
	require.NoError(t, err)
	utxos, err := a.ListUnspent(ctx, 2)
	require.NoError(t, err)
	require.NotEmpty(t, utxos)

	signed := spendOutput(t, a, b, utxos[0], utxos[0].Amount)
	good, err := decodeTx(signed)
	require.NoError(t, err)
	bad, err := decodeTx(signed)
	require.NoError(t, err)
	bad.TxIn[0].SignatureScript[10] ^= 1

	b.handleTx(a, bad)
	badHash := bad.TxHashFull()
	assert.True(t, b.rejected.Contains(&badHash))
	b.handleTx(a, bad)
	assert.Equal(t, 1, b.rejected.Len())

	// The correctly signed transaction shares the txid and is accepted.
	b.handleTx(a, good)
	mempool, err := b.RawMempool(ctx)
	require.NoError(t, err)
	assert.Equal(t, []chainhash.Hash{good.TxHash()}, mempool)
}

func TestImmatureCoinbase(t *testing.T) {
	net := newTestNetwork(t, &Config{Nodes: 2})
	defer net.Close()
	ctx := context.Background()
	a, b := net.Node(0), net.Node(1)

	_, err := a.Generate(ctx, 1)
	require.NoError(t, err)
	utxos, err := a.ListUnspent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, utxos)
	assert.Zero(t, balance(t, a))

	a.mu.Lock()
	cb := a.chain.blocks[1].Transactions[0]
	a.mu.Unlock()
	u := scenario.Utxo{TxID: cb.TxHash(), Amount: dcrutil.Amount(cb.TxOut[0].Value)}
	signed := spendOutput(t, a, b, u, u.Amount)
	_, err = a.SendRawTransaction(ctx, signed, true)
	assert.True(t, errors.Is(errors.Consensus, err), "%v", err)

	_, err = a.Generate(ctx, uint32(a.CoinbaseMaturity()))
	require.NoError(t, err)
	assert.Equal(t, coins(17500000), balance(t, a))
	_, err = a.SendRawTransaction(ctx, signed, true)
	assert.NoError(t, err)
}

func TestRelayFeePolicy(t *testing.T) {
	net := newTestNetwork(t, &Config{Params: FlatParams(coins(10)), Nodes: 2})
	defer net.Close()
	ctx := context.Background()
	a, b := net.Node(0), net.Node(1)

	_, err := a.Generate(ctx, 1)
	require.NoError(t, err)
	utxos, err := a.ListUnspent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	assert.Equal(t, int64(1), utxos[0].Confirmations)

	// A free spend of an output with one confirmation is refused.
	free := spendOutput(t, a, b, utxos[0], utxos[0].Amount)
	_, err = a.SendRawTransaction(ctx, free, false)
	assert.True(t, errors.Is(errors.Policy, err), "%v", err)

	// Paying far above the relay fee needs explicit permission.
	costly := spendOutput(t, a, b, utxos[0], coins(5))
	_, err = a.SendRawTransaction(ctx, costly, false)
	assert.True(t, errors.Is(errors.Policy, err), "%v", err)

	// The wallet pays the relay fee itself.
	addr, err := b.NewAddress(ctx, "")
	require.NoError(t, err)
	txid, err := a.SendToAddress(ctx, addr, coins(4))
	require.NoError(t, err)
	rec, err := a.RawTransaction(ctx, &txid, true)
	require.NoError(t, err)
	require.Len(t, rec.Vin, 1)
	require.Len(t, rec.Vout, 2)
	var out dcrutil.Amount
	for _, o := range rec.Vout {
		out += o.Value
	}
	assert.Equal(t, dcrutil.Amount(dcrutil.AtomsPerCent), rec.Vin[0].AmountIn-out)
	assert.Nil(t, rec.BlockHash)

	// Unconfirmed change is counted toward the balance.
	assert.Equal(t, coins(6)-dcrutil.AtomsPerCent, balance(t, a))

	_, err = a.SendToAddress(ctx, addr, coins(100))
	assert.True(t, errors.Is(errors.InsufficientBalance, err), "%v", err)
}

func TestPersistence(t *testing.T) {
	dir, err := ioutil.TempDir("", "simnet")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	ctx := context.Background()
	cfg := &Config{Params: FlatParams(coins(10)), Nodes: 2, DataDir: dir}

	net := newTestNetwork(t, cfg)
	_, err = net.Node(0).Generate(ctx, 5)
	require.NoError(t, err)
	addr, err := net.Node(1).NewAddress(ctx, "")
	require.NoError(t, err)
	_, err = net.Node(0).SendToAddress(ctx, addr, coins(3))
	require.NoError(t, err)
	_, err = net.Node(0).Generate(ctx, 1)
	require.NoError(t, err)
	views, err := scenario.SyncAll(ctx, net.Nodes(), testSync)
	require.NoError(t, err)
	balanceA := balance(t, net.Node(0))
	require.NoError(t, net.Close())

	net = newTestNetwork(t, cfg)
	defer net.Close()
	hash, height, err := net.Node(1).BestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, views[1].Hash, hash)
	assert.Equal(t, int64(6), height)
	assert.Equal(t, balanceA, balance(t, net.Node(0)))
	assert.Equal(t, coins(3), balance(t, net.Node(1)))

	// Fresh addresses do not reuse keys handed out before the restart.
	again, err := net.Node(1).NewAddress(ctx, "")
	require.NoError(t, err)
	assert.NotEqual(t, addr, again)
}

func TestNewNetworkInvalid(t *testing.T) {
	_, err := NewNetwork(&Config{})
	assert.True(t, errors.Is(errors.Invalid, err))
}

func TestCloseTwice(t *testing.T) {
	net := newTestNetwork(t, &Config{Nodes: 2})
	require.NoError(t, net.Close())
	assert.NotPanics(t, func() { assert.NoError(t, net.Close()) })
}
