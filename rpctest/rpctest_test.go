// Copyright (c) 2016 The decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpctest

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrjson/v2"
	"github.com/decred/dcrd/dcrutil/v2"
	"github.com/decred/dcrd/wire"
	"github.com/decred/dcrwallet/errors"
	walletjson "github.com/decred/dcrwallet/rpc/jsonrpc/types"
	"github.com/decred/walletscenario/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireProcesses skips t unless the dcrd and dcrwallet executables can be
// run.
func requireProcesses(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping process harness test in short mode")
	}
	for _, exe := range []string{"dcrd", "dcrwallet"} {
		if _, err := exec.LookPath(exe); err != nil {
			t.Skipf("skipping process harness test: %v", err)
		}
	}
}

func TestArgumentsToStringArray(t *testing.T) {
	args := map[string]interface{}{
		"simnet":     NoArgumentValue,
		"rpclisten":  "127.0.0.1:20001",
		"skipped":    NoArgument,
		"skippednil": NoArgumentNil,
		"debuglevel": "info",
		"port":       20000,
	}
	assert.Equal(t, []string{
		"--debuglevel=info",
		"--port=20000",
		"--rpclisten=127.0.0.1:20001",
		"--simnet",
	}, ArgumentsToStringArray(args))

	extra := ArgumentsCopyTo(map[string]interface{}{"debuglevel": "trace"}, args)
	assert.Equal(t, "trace", extra["debuglevel"])
}

func TestGenerateListeningPorts(t *testing.T) {
	p2p, dcrdRPC, walletRPC := generateListeningPorts(2, DefaultBasePort)
	assert.Equal(t, 20006, p2p)
	assert.Equal(t, 20007, dcrdRPC)
	assert.Equal(t, 20008, walletRPC)
}

func TestCookArguments(t *testing.T) {
	h := NewHarness(&HarnessConfig{
		Name:          "cook",
		WorkingDir:    "/tmp/cook",
		P2PHost:       "127.0.0.1",
		P2PPort:       20000,
		DcrdRPCHost:   "127.0.0.1",
		DcrdRPCPort:   20001,
		WalletRPCHost: "127.0.0.1",
		WalletRPCPort: 20002,
	})
	h.MiningAddress = "SsWKp7wtdTZYabYFYSc9cnxhwFEjA5g4pFc"
	la := h.newLaunchArguments()

	dcrd := h.DcrdServer.cookArguments(la.DcrdExtraArgs)
	assert.Equal(t, NoArgumentValue, dcrd["simnet"])
	assert.Equal(t, NoArgumentValue, dcrd["txindex"])
	assert.Equal(t, "127.0.0.1:20001", dcrd["rpclisten"])
	assert.Equal(t, h.MiningAddress, dcrd["miningaddr"])
	assert.Equal(t, "info", dcrd["debuglevel"])

	wallet := h.WalletServer.cookArguments(h.DcrdServer.CertFile(), la.WalletExtraArguments)
	assert.Equal(t, "127.0.0.1:20001", wallet["rpcconnect"])
	assert.Equal(t, "127.0.0.1:20002", wallet["rpclisten"])
	assert.Equal(t, h.DcrdServer.CertFile(), wallet["cafile"])
	assert.Equal(t, NoArgumentValue, wallet["createtemp"])
	assert.Equal(t, NoArgumentValue, wallet["nogrpc"])
	assert.Contains(t, h.DcrdServer.FullConsoleCommand(), "dcrd ")
}

func TestConvertResults(t *testing.T) {
	const addr = "SsWKp7wtdTZYabYFYSc9cnxhwFEjA5g4pFc"
	const txidStr = "4b6a1b3b4b9b1e0c2c6a1f2f5d0b33d8a3d1e6c2b7a95d2c6c0f1e7a9b3c5d7e"

	u, err := utxoFromResult(&walletjson.ListUnspentResult{
		TxID:          txidStr,
		Vout:          1,
		Address:       addr,
		Amount:        351,
		Confirmations: 17,
		Spendable:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, txidStr, u.TxID.String())
	assert.Equal(t, uint32(1), u.Vout)
	assert.Equal(t, dcrutil.Amount(351*dcrutil.AtomsPerCoin), u.Amount)
	assert.Equal(t, int64(17), u.Confirmations)

	_, err = utxoFromResult(&walletjson.ListUnspentResult{TxID: "not a hash"})
	assert.True(t, errors.Is(errors.Encoding, err), "%v", err)

	txid, err := chainhash.NewHashFromStr(txidStr)
	require.NoError(t, err)
	res := &dcrjson.TxRawResult{
		Hex:       "01",
		Txid:      txidStr,
		BlockHash: txidStr,
		Vin: []dcrjson.Vin{
			{Coinbase: "00", AmountIn: 5000},
			{Txid: txidStr, Vout: 2, AmountIn: 1.5},
		},
		Vout: []dcrjson.Vout{{Value: 5000, N: 0,
			ScriptPubKey: dcrjson.ScriptPubKeyResult{Addresses: []string{addr}}}},
		BlockHeight:   34,
		Confirmations: 18,
	}
	rec, err := txRecordFromResult(txid, res, true)
	require.NoError(t, err)
	assert.Equal(t, *txid, *rec.BlockHash)
	assert.Equal(t, int64(34), rec.BlockHeight)
	require.Len(t, rec.Vin, 2)
	assert.True(t, rec.Vin[0].Coinbase)
	assert.False(t, rec.Vin[1].Coinbase)
	assert.Equal(t, *txid, rec.Vin[1].TxID)
	assert.Equal(t, dcrutil.Amount(150000000), rec.Vin[1].AmountIn)
	require.Len(t, rec.Vout, 1)
	assert.Equal(t, []string{addr}, rec.Vout[0].Addresses)

	rec, err = txRecordFromResult(txid, res, false)
	require.NoError(t, err)
	assert.Empty(t, rec.Vin)
	assert.Empty(t, rec.Vout)
}

func TestEncodeDecodeTx(t *testing.T) {
	tx := wire.NewMsgTx()
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{1}, 0, wire.TxTreeRegular), 100, nil))
	tx.AddTxOut(wire.NewTxOut(90, []byte{0x6a}))

	s, err := encodeTx(tx)
	require.NoError(t, err)
	got, err := decodeTx(s)
	require.NoError(t, err)
	assert.Equal(t, tx.TxHash(), got.TxHash())

	_, err = decodeTx("zz")
	assert.True(t, errors.Is(errors.Encoding, err), "%v", err)
}

func TestWaitForFileTimeout(t *testing.T) {
	fileCheckInterval = 10 * time.Millisecond
	err := WaitForFile(context.Background(), "/nonexistent/rpc.cert", 30*time.Millisecond)
	assert.Error(t, err)
}

// TestScenarioOnProcesses runs a payment round trip between two harnesses.
func TestScenarioOnProcesses(t *testing.T) {
	requireProcesses(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	net, err := NewNetwork(ctx, &Config{Nodes: 2, BasePort: 21000})
	require.NoError(t, err)
	defer net.Close()

	maturity := uint32(net.Nodes()[0].CoinbaseMaturity())
	steps := []scenario.Step{
		&scenario.Mine{Node: 0, Count: maturity + 2},
		scenario.Sync{},
		&scenario.Pay{From: 0, To: 1, Amount: 10 * dcrutil.AtomsPerCoin},
		&scenario.Mine{Node: 0, Count: 1},
		scenario.Sync{},
		&scenario.Assert{Check: &scenario.BalanceExpectation{Node: 1,
			Relation: scenario.Equals, Amount: scenario.Received(1)}},
		&scenario.Assert{Check: &scenario.UnspentSumIsBalance{Node: 1, MinConf: 1}},
	}
	r := scenario.NewRunner("processes", net.Nodes(), steps,
		scenario.SyncOptions{Timeout: 2 * time.Minute})
	require.NoError(t, r.Run(ctx))
}
