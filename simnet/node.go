// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package simnet

import (
	"bytes"
	"context"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrutil/v2"
	"github.com/decred/dcrd/wire"
	"github.com/decred/dcrwallet/errors"
	"github.com/decred/walletscenario/lru"
	"github.com/decred/walletscenario/scenario"
)

// rejectedCacheSize bounds the number of invalid transactions a node
// remembers.
const rejectedCacheSize = 1000

// Node is a simulated ledger node with an attached wallet.  Blocks and
// transactions it creates are relayed to connected peers; messages from
// peers are processed in arrival order by the node's own goroutine.
type Node struct {
	id     int
	net    *Network
	params *Params

	mu      sync.Mutex
	chain   *chain
	mempool *mempool
	wallet  *wallet
	store   *store

	// rejected holds relayed transactions that can never become valid.
	rejected *lru.Cache

	inbox *queue
	quit  chan struct{}
	wg    sync.WaitGroup
}

var _ scenario.Node = (*Node)(nil)

// ID returns the node's index in its network.
func (n *Node) ID() int { return n.id }

func (n *Node) run() {
	defer n.wg.Done()
	for {
		msg, ok := n.inbox.pop(n.quit)
		if !ok {
			return
		}
		switch {
		case msg.block != nil:
			n.handleBlock(msg.from, msg.block)
		case msg.tx != nil:
			n.handleTx(msg.from, msg.tx)
		}
	}
}

// replay rebuilds the chain from blocks loaded from the store.  The first
// block must be the genesis block.
func (n *Node) replay(blocks []*wire.MsgBlock) error {
	if len(blocks) == 0 {
		return n.store.putBlock(n.chain.blocks[0])
	}
	if blocks[0].BlockHash() != n.chain.hashes[0] {
		return errors.E(errors.Consensus, "stored chain has a different genesis block")
	}
	for _, b := range blocks[1:] {
		v, err := n.chain.checkBlock(b)
		if err != nil {
			return err
		}
		n.chain.connect(b, v)
	}
	return nil
}

// connectBlock validates, stores and connects block.  n.mu must be held.
func (n *Node) connectBlock(block *wire.MsgBlock) error {
	v, err := n.chain.checkBlock(block)
	if err != nil {
		return err
	}
	if err := n.store.putBlock(block); err != nil {
		return err
	}
	n.chain.connect(block, v)
	n.mempool.blockConnected(n.chain, block)
	return nil
}

func (n *Node) handleBlock(from *Node, block *wire.MsgBlock) {
	hash := block.BlockHash()
	n.mu.Lock()
	if n.chain.blockHeight(&hash) >= 0 {
		n.mu.Unlock()
		return
	}
	err := n.connectBlock(block)
	n.mu.Unlock()
	if err != nil {
		log.Debugf("Node %d dropped block %v from node %d: %v", n.id, &hash, from.id, err)
		return
	}
	log.Tracef("Node %d connected block %v at height %d from node %d",
		n.id, &hash, block.Header.Height, from.id)
	n.net.relay(n, from, message{block: block})
}

func (n *Node) handleTx(from *Node, tx *wire.MsgTx) {
	// Keyed by the full hash so a correctly signed copy is still accepted.
	fullHash := tx.TxHashFull()
	if n.rejected.Contains(&fullHash) {
		return
	}
	n.mu.Lock()
	m, err := n.mempool.accept(n.chain, tx, true)
	n.mu.Unlock()
	if err != nil {
		if errors.Is(errors.ScriptFailure, err) {
			n.rejected.Add(fullHash)
		}
		if !errors.Is(errors.Exist, err) {
			log.Debugf("Node %d rejected transaction %v from node %d: %v",
				n.id, tx.TxHash(), from.id, err)
		}
		return
	}
	log.Tracef("Node %d accepted transaction %v from node %d", n.id, &m.hash, from.id)
	n.net.relay(n, from, message{tx: tx})
}

// Generate mines count blocks on the node's tip, including every mempool
// transaction, and relays them.
func (n *Node) Generate(ctx context.Context, count uint32) ([]chainhash.Hash, error) {
	const op errors.Op = "simnet.Generate"
	hashes := make([]chainhash.Hash, 0, count)
	for i := uint32(0); i < count; i++ {
		if err := ctx.Err(); err != nil {
			return hashes, errors.E(op, err)
		}
		n.mu.Lock()
		block, err := n.newBlock()
		if err == nil {
			err = n.connectBlock(block)
		}
		n.mu.Unlock()
		if err != nil {
			return hashes, errors.E(op, err)
		}
		hashes = append(hashes, block.BlockHash())
		n.net.relay(n, nil, message{block: block})
	}
	return hashes, nil
}

// newBlock assembles the next block.  n.mu must be held.
func (n *Node) newBlock() (*wire.MsgBlock, error) {
	tipHash, tip := n.chain.tip()
	height := tip + 1

	var fees int64
	pending := n.mempool.sorted()
	txs := make([]*wire.MsgTx, 1, len(pending)+1)
	for _, m := range pending {
		txs = append(txs, m.tx)
		fees += m.fee
	}
	cb, err := newCoinbase(height, int64(n.params.Subsidy(height))+fees, n.wallet.miningScript())
	if err != nil {
		return nil, err
	}
	txs[0] = cb

	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:    1,
			PrevBlock:  tipHash,
			MerkleRoot: merkleRoot(txs),
			Height:     uint32(height),
			Timestamp:  n.chain.blockTime(height),
			Nonce:      uint32(n.id),
		},
		Transactions: txs,
	}
	return block, nil
}

// BestBlock returns the hash and height of the node's tip.
func (n *Node) BestBlock(ctx context.Context) (chainhash.Hash, int64, error) {
	n.mu.Lock()
	hash, height := n.chain.tip()
	n.mu.Unlock()
	return hash, height, nil
}

// RawMempool returns the hashes of the mempool transactions.
func (n *Node) RawMempool(ctx context.Context) ([]chainhash.Hash, error) {
	n.mu.Lock()
	hashes := make([]chainhash.Hash, 0, len(n.mempool.txs))
	for h := range n.mempool.txs {
		hashes = append(hashes, h)
	}
	n.mu.Unlock()
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})
	return hashes, nil
}

// BlockSubsidy returns the subsidy of a block at height.
func (n *Node) BlockSubsidy(ctx context.Context, height int64) (dcrutil.Amount, error) {
	if height < 0 {
		return 0, errors.E(errors.Invalid, "negative height")
	}
	return n.params.Subsidy(height), nil
}

// CoinbaseMaturity returns the coinbase maturity of the network.
func (n *Node) CoinbaseMaturity() int64 { return n.params.CoinbaseMaturity }

// NewAddress returns a fresh wallet address.
func (n *Node) NewAddress(ctx context.Context, label string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	k, err := n.wallet.newAddress(label)
	if err != nil {
		return "", errors.E(errors.Op("simnet.NewAddress"), err)
	}
	return k.address, nil
}

// ownedOutput is a wallet output with its confirmation depth.
type ownedOutput struct {
	op    wire.OutPoint
	entry *utxoEntry
	key   *walletKey
	confs int64
}

// unspent returns the wallet's spendable outputs with at least minConf
// confirmations: mature, not spent by a mempool transaction, and, when
// minConf is zero, including outputs of mempool transactions.  Results are
// ordered by confirmations (most first), then value (largest first).
// n.mu must be held.
func (n *Node) unspent(minConf int64) []*ownedOutput {
	var outs []*ownedOutput
	tip := n.chain.height()
	for op, e := range n.chain.utxos {
		k, ok := n.wallet.key(e.pkScript)
		if !ok {
			continue
		}
		if e.coinbase && !n.params.mature(e.height, tip) {
			continue
		}
		if _, spent := n.mempool.spender(op); spent {
			continue
		}
		confs := tip - e.height + 1
		if confs < minConf {
			continue
		}
		outs = append(outs, &ownedOutput{op: op, entry: e, key: k, confs: confs})
	}
	if minConf <= 0 {
		outs = append(outs, n.unconfirmed()...)
	}
	sort.Slice(outs, func(i, j int) bool {
		a, b := outs[i], outs[j]
		if a.confs != b.confs {
			return a.confs > b.confs
		}
		if a.entry.value != b.entry.value {
			return a.entry.value > b.entry.value
		}
		if c := bytes.Compare(a.op.Hash[:], b.op.Hash[:]); c != 0 {
			return c < 0
		}
		return a.op.Index < b.op.Index
	})
	return outs
}

// unconfirmed returns wallet outputs created by mempool transactions.
// n.mu must be held.
func (n *Node) unconfirmed() []*ownedOutput {
	var outs []*ownedOutput
	for _, m := range n.mempool.txs {
		for i, o := range m.tx.TxOut {
			k, ok := n.wallet.key(o.PkScript)
			if !ok {
				continue
			}
			op := wire.OutPoint{Hash: m.hash, Index: uint32(i), Tree: wire.TxTreeRegular}
			outs = append(outs, &ownedOutput{
				op:    op,
				entry: &utxoEntry{value: o.Value, pkScript: o.PkScript, height: n.chain.height() + 1},
				key:   k,
			})
		}
	}
	return outs
}

// trusted reports whether every input of tx spends a wallet output, making
// its outputs count toward the balance before confirmation.  n.mu must be
// held.
func (n *Node) trusted(tx *wire.MsgTx) bool {
	for _, in := range tx.TxIn {
		out, ok := n.chainOutput(in.PreviousOutPoint)
		if !ok {
			return false
		}
		if _, ok := n.wallet.key(out.PkScript); !ok {
			return false
		}
	}
	return true
}

// chainOutput returns an unspent output of the main chain.  n.mu must be
// held.
func (n *Node) chainOutput(op wire.OutPoint) (*wire.TxOut, bool) {
	e, ok := n.chain.utxos[op]
	if !ok {
		return nil, false
	}
	return &wire.TxOut{Value: e.value, PkScript: e.pkScript}, true
}

// Balance returns the sum of mature confirmed wallet outputs not spent in
// the mempool plus outputs of the wallet's own unconfirmed transactions.
func (n *Node) Balance(ctx context.Context) (dcrutil.Amount, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var sum int64
	for _, o := range n.unspent(1) {
		sum += o.entry.value
	}
	for _, m := range n.mempool.sorted() {
		if !n.trusted(m.tx) {
			continue
		}
		for _, o := range m.tx.TxOut {
			if _, ok := n.wallet.key(o.PkScript); ok {
				sum += o.Value
			}
		}
	}
	return dcrutil.Amount(sum), nil
}

// ListUnspent returns spendable wallet outputs with at least minConf
// confirmations.
func (n *Node) ListUnspent(ctx context.Context, minConf int32) ([]scenario.Utxo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	outs := n.unspent(int64(minConf))
	utxos := make([]scenario.Utxo, len(outs))
	for i, o := range outs {
		utxos[i] = scenario.Utxo{
			TxID:          o.op.Hash,
			Vout:          o.op.Index,
			Tree:          o.op.Tree,
			Amount:        dcrutil.Amount(o.entry.value),
			Confirmations: o.confs,
			Address:       o.key.address,
			Coinbase:      o.entry.coinbase,
		}
	}
	return utxos, nil
}

// SendToAddress pays amount to addr from confirmed wallet outputs, adding a
// change output and paying the relay fee when an input has too few
// confirmations to relay for free.
func (n *Node) SendToAddress(ctx context.Context, addr string, amount dcrutil.Amount) (chainhash.Hash, error) {
	const op errors.Op = "simnet.SendToAddress"
	if amount <= 0 {
		return chainhash.Hash{}, errors.E(op, errors.Invalid, "non-positive amount")
	}
	pkScript, err := addressScript(addr, n.params)
	if err != nil {
		return chainhash.Hash{}, errors.E(op, err)
	}

	n.mu.Lock()
	tx, err := n.buildPayment(pkScript, int64(amount))
	var m *mempoolTx
	if err == nil {
		m, err = n.mempool.accept(n.chain, tx, false)
	}
	n.mu.Unlock()
	if err != nil {
		return chainhash.Hash{}, errors.E(op, err)
	}
	log.Debugf("Node %d sent %v to %s in %v (fee %v)", n.id, amount, addr,
		&m.hash, dcrutil.Amount(m.fee))
	n.net.relay(n, nil, message{tx: tx})
	return m.hash, nil
}

// buildPayment selects inputs, adds change and signs.  n.mu must be held.
func (n *Node) buildPayment(pkScript []byte, amount int64) (*wire.MsgTx, error) {
	candidates := n.unspent(1)
	var selected []*ownedOutput
	var in, fee int64
	for _, o := range candidates {
		if in >= amount+fee && len(selected) > 0 {
			break
		}
		selected = append(selected, o)
		in += o.entry.value
		if o.confs < n.params.FreeRelayConfirmations {
			fee = int64(n.params.RelayFee)
		}
	}
	if in < amount+fee {
		return nil, errors.E(errors.InsufficientBalance, errors.Errorf("need %v, "+
			"have %v spendable", dcrutil.Amount(amount+fee), dcrutil.Amount(in)))
	}

	tx := wire.NewMsgTx()
	for _, o := range selected {
		prev := o.op
		tx.AddTxIn(wire.NewTxIn(&prev, o.entry.value, nil))
	}
	tx.AddTxOut(wire.NewTxOut(amount, pkScript))
	if change := in - amount - fee; change > 0 {
		k, err := n.wallet.newAddress("change")
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(wire.NewTxOut(change, k.pkScript))
	}
	for i, o := range selected {
		if err := signInput(tx, i, o.key, n.params); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

// CreateRawTransaction returns an unsigned transaction spending inputs and
// paying outputs.  Outputs are ordered by address.
func (n *Node) CreateRawTransaction(ctx context.Context, inputs []scenario.TxInput,
	outputs map[string]dcrutil.Amount) (string, error) {

	const op errors.Op = "simnet.CreateRawTransaction"
	if len(inputs) == 0 || len(outputs) == 0 {
		return "", errors.E(op, errors.Invalid, "no inputs or outputs")
	}
	tx := wire.NewMsgTx()
	for i := range inputs {
		in := &inputs[i]
		prev := wire.NewOutPoint(&in.TxID, in.Vout, in.Tree)
		tx.AddTxIn(wire.NewTxIn(prev, int64(in.Amount), nil))
	}
	addrs := make([]string, 0, len(outputs))
	for addr := range outputs {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	for _, addr := range addrs {
		amount := outputs[addr]
		if amount < 0 || amount > dcrutil.MaxAmount {
			return "", errors.E(op, errors.Invalid, errors.Errorf("amount %v out of range", amount))
		}
		pkScript, err := addressScript(addr, n.params)
		if err != nil {
			return "", errors.E(op, err)
		}
		tx.AddTxOut(wire.NewTxOut(int64(amount), pkScript))
	}
	return encodeTx(tx)
}

// SignRawTransaction signs every input spending a wallet output, filling in
// missing input values.
func (n *Node) SignRawTransaction(ctx context.Context, txHex string) (*scenario.SignResult, error) {
	const op errors.Op = "simnet.SignRawTransaction"
	tx, err := decodeTx(txHex)
	if err != nil {
		return nil, errors.E(op, err)
	}

	n.mu.Lock()
	res := &scenario.SignResult{Complete: true}
	for i, in := range tx.TxIn {
		prev := in.PreviousOutPoint
		out, ok := n.chainOutput(prev)
		if !ok {
			out, ok = n.mempoolOutput(prev)
		}
		var k *walletKey
		if ok {
			k, ok = n.wallet.key(out.PkScript)
		}
		if !ok {
			res.Complete = false
			res.Errors = append(res.Errors, scenario.SignError{
				TxID:  prev.Hash,
				Vout:  prev.Index,
				Error: "unknown output or missing key",
			})
			continue
		}
		if in.ValueIn == 0 {
			in.ValueIn = out.Value
		}
		if err := signInput(tx, i, k, n.params); err != nil {
			n.mu.Unlock()
			return nil, errors.E(op, err)
		}
	}
	n.mu.Unlock()

	res.Hex, err = encodeTx(tx)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return res, nil
}

// mempoolOutput returns an output of a mempool transaction.  n.mu must be
// held.
func (n *Node) mempoolOutput(op wire.OutPoint) (*wire.TxOut, bool) {
	m, ok := n.mempool.txs[op.Hash]
	if !ok || int(op.Index) >= len(m.tx.TxOut) {
		return nil, false
	}
	return m.tx.TxOut[op.Index], true
}

// SendRawTransaction adds a signed transaction to the mempool and relays
// it.
func (n *Node) SendRawTransaction(ctx context.Context, txHex string, allowHighFees bool) (chainhash.Hash, error) {
	const op errors.Op = "simnet.SendRawTransaction"
	tx, err := decodeTx(txHex)
	if err != nil {
		return chainhash.Hash{}, errors.E(op, err)
	}
	n.mu.Lock()
	m, err := n.mempool.accept(n.chain, tx, allowHighFees)
	n.mu.Unlock()
	if err != nil {
		return chainhash.Hash{}, errors.E(op, err)
	}
	n.net.relay(n, nil, message{tx: tx})
	return m.hash, nil
}

// RawTransaction looks up a transaction in the mempool or the main chain.
func (n *Node) RawTransaction(ctx context.Context, txid *chainhash.Hash, verbose bool) (*scenario.TxRecord, error) {
	const op errors.Op = "simnet.RawTransaction"
	n.mu.Lock()
	defer n.mu.Unlock()

	rec := &scenario.TxRecord{TxID: *txid}
	var tx *wire.MsgTx
	if m, ok := n.mempool.txs[*txid]; ok {
		tx = m.tx
	} else if mined, loc, ok := n.chain.tx(txid); ok {
		tx = mined
		hash := n.chain.hashes[loc.height]
		rec.BlockHash = &hash
		rec.BlockHeight = loc.height
		rec.Confirmations = n.chain.confirmations(loc.height)
	} else {
		return nil, errors.E(op, errors.NotExist, errors.Errorf("no transaction %v", txid))
	}

	var err error
	rec.Hex, err = encodeTx(tx)
	if err != nil {
		return nil, errors.E(op, err)
	}
	if !verbose {
		return rec, nil
	}
	coinbase := isCoinbase(tx)
	for _, in := range tx.TxIn {
		rec.Vin = append(rec.Vin, scenario.TxRecordInput{
			TxID:     in.PreviousOutPoint.Hash,
			Vout:     in.PreviousOutPoint.Index,
			AmountIn: dcrutil.Amount(in.ValueIn),
			Coinbase: coinbase,
		})
	}
	for i, out := range tx.TxOut {
		o := scenario.TxRecordOutput{N: uint32(i), Value: dcrutil.Amount(out.Value)}
		if addr, ok := scriptAddress(out.PkScript, n.params); ok {
			o.Addresses = []string{addr}
		}
		rec.Vout = append(rec.Vout, o)
	}
	return rec, nil
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
	if err := tx.Deserialize(bytes.NewReader(b)); err != nil {
		return nil, errors.E(errors.Encoding, err)
	}
	return tx, nil
}
