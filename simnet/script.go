// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package simnet

import (
	"github.com/decred/dcrd/chaincfg/v2/chainec"
	"github.com/decred/dcrd/dcrec"
	"github.com/decred/dcrd/dcrutil/v2"
	"github.com/decred/dcrd/txscript/v2"
	"github.com/decred/dcrd/wire"
	"github.com/decred/dcrwallet/errors"
)

// verifyFlags are the script flags every relayed input is checked with.
const verifyFlags = txscript.ScriptDiscourageUpgradableNops |
	txscript.ScriptVerifyCleanStack

// isPubKeyHash reports whether pkScript is a secp256k1 pay-to-pubkey-hash
// script, the only output kind the ledger lets wallets spend.
func isPubKeyHash(pkScript []byte) bool {
	return txscript.GetScriptClass(0, pkScript) == txscript.PubKeyHashTy
}

// scriptAddress returns the encoded address paid by pkScript, if any.
func scriptAddress(pkScript []byte, params *Params) (string, bool) {
	if !isPubKeyHash(pkScript) {
		return "", false
	}
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(0, pkScript, params.Net)
	if err != nil || len(addrs) != 1 {
		return "", false
	}
	return addrs[0].Address(), true
}

// addressScript decodes addr and returns the script paying it.
func addressScript(addr string, params *Params) ([]byte, error) {
	a, err := dcrutil.DecodeAddress(addr, params.Net)
	if err != nil {
		return nil, errors.E(errors.Encoding, err)
	}
	pkScript, err := txscript.PayToAddrScript(a)
	if err != nil {
		return nil, errors.E(errors.Encoding, err)
	}
	if !isPubKeyHash(pkScript) {
		return nil, errors.E(errors.Invalid, errors.Errorf("address %s is "+
			"not a secp256k1 pubkey hash address", addr))
	}
	return pkScript, nil
}

// nullDataScript returns an unspendable script carrying data.
func nullDataScript(data []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN).AddData(data).Script()
}

// signInput sets the signature script of input idx, which spends an output
// paying k.
func signInput(tx *wire.MsgTx, idx int, k *walletKey, params *Params) error {
	getKey := txscript.KeyClosure(func(addr dcrutil.Address) (chainec.PrivateKey, bool, error) {
		if addr.Address() != k.address {
			return nil, false, errors.Errorf("no key for address %s", addr.Address())
		}
		return k.priv, true, nil
	})
	getScript := txscript.ScriptClosure(func(addr dcrutil.Address) ([]byte, error) {
		return nil, errors.E(errors.NotExist, "no redeem scripts")
	})
	script, err := txscript.SignTxOutput(params.Net, tx, idx, k.pkScript,
		txscript.SigHashAll, getKey, getScript, tx.TxIn[idx].SignatureScript,
		dcrec.STEcdsaSecp256k1)
	if err != nil {
		return errors.E(errors.Op("txscript.SignTxOutput"), errors.ScriptFailure, err)
	}
	tx.TxIn[idx].SignatureScript = script
	return nil
}

// verifyInput executes the signature script of input idx against the script
// of the output it spends.
func verifyInput(tx *wire.MsgTx, idx int, pkScript []byte) error {
	vm, err := txscript.NewEngine(pkScript, tx, idx, verifyFlags, 0, nil)
	if err != nil {
		return errors.E(errors.ScriptFailure, err)
	}
	if err := vm.Execute(); err != nil {
		return errors.E(errors.ScriptFailure, err)
	}
	return nil
}
