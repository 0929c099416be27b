// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpctest

import (
	"bytes"
	"context"
	"encoding/hex"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/chaincfg/v2"
	"github.com/decred/dcrd/dcrjson/v2"
	dcrutilv1 "github.com/decred/dcrd/dcrutil"
	"github.com/decred/dcrd/dcrutil/v2"
	"github.com/decred/dcrd/rpcclient/v2"
	"github.com/decred/dcrd/wire"
	"github.com/decred/dcrwallet/errors"
	walletjson "github.com/decred/dcrwallet/rpc/jsonrpc/types"
	"github.com/decred/walletscenario/scenario"
)

// RPCNode drives a harness through the JSON-RPC interfaces of its dcrd and
// dcrwallet.  Chain queries go to dcrd and wallet operations to dcrwallet.
type RPCNode struct {
	harness *Harness
	params  *chaincfg.Params
}

var _ scenario.Node = (*RPCNode)(nil)

// NewRPCNode returns a node handle for a deployed harness.
func NewRPCNode(h *Harness) *RPCNode {
	return &RPCNode{harness: h, params: chaincfg.SimNetParams()}
}

func (n *RPCNode) dcrd() *rpcclient.Client   { return n.harness.DcrdClient.Client() }
func (n *RPCNode) wallet() *rpcclient.Client { return n.harness.WalletClient.Client() }

func decodeHash(s string) (chainhash.Hash, error) {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, errors.E(errors.Encoding, err)
	}
	return *h, nil
}

func amount(f float64) (dcrutil.Amount, error) {
	a, err := dcrutil.NewAmount(f)
	if err != nil {
		return 0, errors.E(errors.Encoding, err)
	}
	return a, nil
}

func derefHashes(hashes []*chainhash.Hash) []chainhash.Hash {
	res := make([]chainhash.Hash, len(hashes))
	for i, h := range hashes {
		res[i] = *h
	}
	return res
}

func encodeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	buf.Grow(tx.SerializeSize())
	if err := tx.Serialize(&buf); err != nil {
		return "", errors.E(errors.Encoding, err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

func decodeTx(s string) (*wire.MsgTx, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.E(errors.Encoding, err)
	}
	tx := new(wire.MsgTx)
	if err := tx.FromBytes(b); err != nil {
		return nil, errors.E(errors.Encoding, err)
	}
	return tx, nil
}

// utxoFromResult converts a listunspent entry.
func utxoFromResult(r *walletjson.ListUnspentResult) (scenario.Utxo, error) {
	txid, err := decodeHash(r.TxID)
	if err != nil {
		return scenario.Utxo{}, err
	}
	amt, err := amount(r.Amount)
	if err != nil {
		return scenario.Utxo{}, err
	}
	return scenario.Utxo{
		TxID:          txid,
		Vout:          r.Vout,
		Tree:          r.Tree,
		Amount:        amt,
		Confirmations: r.Confirmations,
		Address:       r.Address,
	}, nil
}

// txRecordFromResult converts a verbose getrawtransaction result.  Inputs
// and outputs are only filled in when verbose is set.
func txRecordFromResult(txid *chainhash.Hash, res *dcrjson.TxRawResult, verbose bool) (*scenario.TxRecord, error) {
	rec := &scenario.TxRecord{
		TxID:          *txid,
		Hex:           res.Hex,
		BlockHeight:   res.BlockHeight,
		Confirmations: res.Confirmations,
	}
	if res.BlockHash != "" {
		h, err := decodeHash(res.BlockHash)
		if err != nil {
			return nil, err
		}
		rec.BlockHash = &h
	}
	if !verbose {
		return rec, nil
	}
	for _, in := range res.Vin {
		amt, err := amount(in.AmountIn)
		if err != nil {
			return nil, err
		}
		ri := scenario.TxRecordInput{Vout: in.Vout, AmountIn: amt, Coinbase: in.Coinbase != ""}
		if in.Txid != "" {
			ri.TxID, err = decodeHash(in.Txid)
			if err != nil {
				return nil, err
			}
		}
		rec.Vin = append(rec.Vin, ri)
	}
	for _, out := range res.Vout {
		amt, err := amount(out.Value)
		if err != nil {
			return nil, err
		}
		rec.Vout = append(rec.Vout, scenario.TxRecordOutput{
			N:         out.N,
			Value:     amt,
			Addresses: out.ScriptPubKey.Addresses,
		})
	}
	return rec, nil
}

// Generate implements scenario.Node.
func (n *RPCNode) Generate(ctx context.Context, count uint32) ([]chainhash.Hash, error) {
	hashes, err := n.dcrd().Generate(count)
	if err != nil {
		return nil, errors.E(errors.Op("dcrd.Generate"), errors.IO, err)
	}
	return derefHashes(hashes), nil
}

// Balance implements scenario.Node.  It reports the wallet's spendable
// balance over all accounts.
func (n *RPCNode) Balance(ctx context.Context) (dcrutil.Amount, error) {
	res, err := n.wallet().GetBalanceMinConf("*", 1)
	if err != nil {
		return 0, errors.E(errors.Op("dcrwallet.GetBalance"), errors.IO, err)
	}
	return amount(res.TotalSpendable)
}

// NewAddress implements scenario.Node.  dcrwallet has no address labels;
// every address is taken from the default account.
func (n *RPCNode) NewAddress(ctx context.Context, label string) (string, error) {
	if label != "" {
		log.Tracef("Harness %s: new address for %q", n.harness.Config.Name, label)
	}
	addr, err := n.wallet().GetNewAddress("default")
	if err != nil {
		return "", errors.E(errors.Op("dcrwallet.GetNewAddress"), errors.IO, err)
	}
	return addr.EncodeAddress(), nil
}

// SendToAddress implements scenario.Node.
func (n *RPCNode) SendToAddress(ctx context.Context, addr string, amt dcrutil.Amount) (chainhash.Hash, error) {
	const op errors.Op = "dcrwallet.SendToAddress"
	a, err := dcrutilv1.DecodeAddress(addr)
	if err != nil {
		return chainhash.Hash{}, errors.E(op, errors.Encoding, err)
	}
	txid, err := n.wallet().SendToAddress(a, dcrutilv1.Amount(amt))
	if err != nil {
		return chainhash.Hash{}, errors.E(op, errors.IO, err)
	}
	return *txid, nil
}

// ListUnspent implements scenario.Node.  Unspendable outputs, such as
// those of watching-only addresses, are left out.
func (n *RPCNode) ListUnspent(ctx context.Context, minConf int32) ([]scenario.Utxo, error) {
	res, err := n.wallet().ListUnspentMin(int(minConf))
	if err != nil {
		return nil, errors.E(errors.Op("dcrwallet.ListUnspent"), errors.IO, err)
	}
	utxos := make([]scenario.Utxo, 0, len(res))
	for i := range res {
		if !res[i].Spendable {
			continue
		}
		u, err := utxoFromResult(&res[i])
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, u)
	}
	return utxos, nil
}

// CreateRawTransaction implements scenario.Node.
func (n *RPCNode) CreateRawTransaction(ctx context.Context, inputs []scenario.TxInput,
	outputs map[string]dcrutil.Amount) (string, error) {

	const op errors.Op = "dcrd.CreateRawTransaction"
	ins := make([]dcrjson.TransactionInput, len(inputs))
	for i, in := range inputs {
		ins[i] = dcrjson.TransactionInput{
			Amount: in.Amount.ToCoin(),
			Txid:   in.TxID.String(),
			Vout:   in.Vout,
			Tree:   in.Tree,
		}
	}
	outs := make(map[dcrutilv1.Address]dcrutilv1.Amount, len(outputs))
	for addr, amt := range outputs {
		a, err := dcrutilv1.DecodeAddress(addr)
		if err != nil {
			return "", errors.E(op, errors.Encoding, err)
		}
		outs[a] = dcrutilv1.Amount(amt)
	}
	tx, err := n.dcrd().CreateRawTransaction(ins, outs, nil, nil)
	if err != nil {
		return "", errors.E(op, errors.IO, err)
	}
	return encodeTx(tx)
}

// SignRawTransaction implements scenario.Node.  dcrwallet reports
// completeness only, so the result never carries per-input errors.
func (n *RPCNode) SignRawTransaction(ctx context.Context, txHex string) (*scenario.SignResult, error) {
	tx, err := decodeTx(txHex)
	if err != nil {
		return nil, err
	}
	signed, complete, err := n.wallet().SignRawTransaction(tx)
	if err != nil {
		return nil, errors.E(errors.Op("dcrwallet.SignRawTransaction"), errors.IO, err)
	}
	signedHex, err := encodeTx(signed)
	if err != nil {
		return nil, err
	}
	return &scenario.SignResult{Hex: signedHex, Complete: complete}, nil
}

// SendRawTransaction implements scenario.Node.
func (n *RPCNode) SendRawTransaction(ctx context.Context, txHex string, allowHighFees bool) (chainhash.Hash, error) {
	tx, err := decodeTx(txHex)
	if err != nil {
		return chainhash.Hash{}, err
	}
	txid, err := n.dcrd().SendRawTransaction(tx, allowHighFees)
	if err != nil {
		return chainhash.Hash{}, errors.E(errors.Op("dcrd.SendRawTransaction"), errors.IO, err)
	}
	return *txid, nil
}

// RawTransaction implements scenario.Node.
func (n *RPCNode) RawTransaction(ctx context.Context, txid *chainhash.Hash, verbose bool) (*scenario.TxRecord, error) {
	res, err := n.dcrd().GetRawTransactionVerbose(txid)
	if err != nil {
		return nil, errors.E(errors.Op("dcrd.GetRawTransaction"), errors.IO, err)
	}
	return txRecordFromResult(txid, res, verbose)
}

// BestBlock implements scenario.Node.
func (n *RPCNode) BestBlock(ctx context.Context) (chainhash.Hash, int64, error) {
	hash, height, err := n.dcrd().GetBestBlock()
	if err != nil {
		return chainhash.Hash{}, 0, errors.E(errors.Op("dcrd.GetBestBlock"), errors.IO, err)
	}
	return *hash, height, nil
}

// RawMempool implements scenario.Node.
func (n *RPCNode) RawMempool(ctx context.Context) ([]chainhash.Hash, error) {
	hashes, err := n.dcrd().GetRawMempool(dcrjson.GRMAll)
	if err != nil {
		return nil, errors.E(errors.Op("dcrd.GetRawMempool"), errors.IO, err)
	}
	return derefHashes(hashes), nil
}

// BlockSubsidy implements scenario.Node.  It returns the proof-of-work
// share the miner receives.  The first block pays the premine ledger
// instead of the miner.
func (n *RPCNode) BlockSubsidy(ctx context.Context, height int64) (dcrutil.Amount, error) {
	if height <= 1 {
		return 0, nil
	}
	res, err := n.dcrd().GetBlockSubsidy(height, n.params.TicketsPerBlock)
	if err != nil {
		return 0, errors.E(errors.Op("dcrd.GetBlockSubsidy"), errors.IO, err)
	}
	return dcrutil.Amount(res.PoW), nil
}

// CoinbaseMaturity implements scenario.Node.
func (n *RPCNode) CoinbaseMaturity() int64 { return int64(n.params.CoinbaseMaturity) }
