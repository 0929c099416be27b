// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package simnet

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/chaincfg/v2/chainec"
	"github.com/decred/dcrd/dcrec"
	"github.com/decred/dcrd/dcrutil/v2"
	"github.com/decred/dcrd/txscript/v2"
	"github.com/decred/dcrwallet/errors"
	"golang.org/x/crypto/hkdf"
)

// keyInfo is the HKDF context of wallet key derivation.
var keyInfo = []byte("simnet wallet key")

// walletKey is one derived key of a wallet.
type walletKey struct {
	priv     chainec.PrivateKey
	address  string
	pkScript []byte
	label    string
}

// wallet derives secp256k1 keys from a seed and recognizes the outputs paying
// them.  Keys are derived in order; only the seed and the number of keys
// handed out are persisted.
type wallet struct {
	params  *Params
	store   *store
	seed    []byte
	keys    []*walletKey
	scripts map[string]int
}

// loadWallet opens the wallet kept in st.  A wallet without a stored seed
// is created from seed.  The first key receives mining rewards.
func loadWallet(params *Params, st *store, seed []byte) (*wallet, error) {
	const op errors.Op = "simnet.loadWallet"
	stored, err := st.walletSeed()
	if err != nil {
		return nil, errors.E(op, err)
	}
	if stored == nil {
		if len(seed) != chainhash.HashSize {
			return nil, errors.E(op, errors.Invalid, "wallet seed must be 32 bytes")
		}
		if err := st.putWalletSeed(seed); err != nil {
			return nil, errors.E(op, err)
		}
		stored = seed
	}
	n, err := st.keyCount()
	if err != nil {
		return nil, errors.E(op, err)
	}
	if n == 0 {
		n = 1
		if err := st.putKeyCount(n); err != nil {
			return nil, errors.E(op, err)
		}
	}

	w := &wallet{
		params:  params,
		store:   st,
		seed:    stored,
		scripts: make(map[string]int),
	}
	for i := uint32(0); i < n; i++ {
		if _, err := w.deriveKey(""); err != nil {
			return nil, errors.E(op, err)
		}
	}
	w.keys[0].label = "mining"
	return w, nil
}

// deriveKey derives the next key in memory.
func (w *wallet) deriveKey(label string) (*walletKey, error) {
	info := make([]byte, len(keyInfo)+4)
	copy(info, keyInfo)
	binary.BigEndian.PutUint32(info[len(keyInfo):], uint32(len(w.keys)))
	var secret [chainhash.HashSize]byte
	if _, err := io.ReadFull(hkdf.New(sha256.New, w.seed, nil, info), secret[:]); err != nil {
		return nil, errors.E(errors.Bug, err)
	}
	priv, pub := chainec.Secp256k1.PrivKeyFromBytes(secret[:])

	pkHash := dcrutil.Hash160(pub.SerializeCompressed())
	addr, err := dcrutil.NewAddressPubKeyHash(pkHash, w.params.Net, dcrec.STEcdsaSecp256k1)
	if err != nil {
		return nil, errors.E(errors.Encoding, err)
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, errors.E(errors.Bug, err)
	}
	k := &walletKey{
		priv:     priv,
		address:  addr.Address(),
		pkScript: pkScript,
		label:    label,
	}
	w.scripts[string(pkScript)] = len(w.keys)
	w.keys = append(w.keys, k)
	return k, nil
}

// newAddress hands out a fresh address.
func (w *wallet) newAddress(label string) (*walletKey, error) {
	k, err := w.deriveKey(label)
	if err != nil {
		return nil, err
	}
	if err := w.store.putKeyCount(uint32(len(w.keys))); err != nil {
		return nil, err
	}
	return k, nil
}

func (w *wallet) miningScript() []byte { return w.keys[0].pkScript }

// key returns the key an output script pays, if the wallet holds it.
func (w *wallet) key(pkScript []byte) (*walletKey, bool) {
	i, ok := w.scripts[string(pkScript)]
	if !ok {
		return nil, false
	}
	return w.keys[i], true
}
