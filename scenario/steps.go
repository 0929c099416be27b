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
	"github.com/decred/dcrwallet/errors"
)

// Step is one entry of a scenario.  The set of steps is closed: Mine, Pay,
// Sync, BroadcastRaw, Sweep, ShowRawTx and Assert.
type Step interface {
	// Execute runs the step.  index is the 1-based position of the step
	// in its scenario.
	Execute(ctx context.Context, r *Runner, index int) error
	String() string

	// nodes returns the node indexes the step refers to.
	nodes() []int
}

// Mine has a node generate Count blocks on its own chain tip.
type Mine struct {
	Node  int
	Count uint32
}

// Execute implements Step.
func (m *Mine) Execute(ctx context.Context, r *Runner, index int) error {
	n := r.nodes[m.Node]
	_, before, err := n.BestBlock(ctx)
	if err != nil {
		return err
	}
	hashes, err := n.Generate(ctx, m.Count)
	if err != nil {
		return err
	}
	_, after, err := n.BestBlock(ctx)
	if err != nil {
		return err
	}
	if after != before+int64(m.Count) || len(hashes) != int(m.Count) {
		return errors.E(errors.Consensus, errors.Errorf("generated %d "+
			"blocks but tip moved from %d to %d", len(hashes), before, after))
	}
	for h := before + 1; h <= after; h++ {
		subsidy, err := n.BlockSubsidy(ctx, h)
		if err != nil {
			return err
		}
		r.ledger.recordBlock(m.Node, h, subsidy)
	}
	r.journal.value(index, "tip", fmt.Sprintf("%d %v", after, &hashes[len(hashes)-1]))
	return nil
}

func (m *Mine) String() string {
	return fmt.Sprintf("%s mines %d %s", nodeName(m.Node), m.Count, pickNoun(int(m.Count), "block", "blocks"))
}

func (m *Mine) nodes() []int { return []int{m.Node} }

// Pay sends Amount from one wallet to a fresh address of another.
type Pay struct {
	From   int
	To     int
	Amount dcrutil.Amount
	Label  string
}

// Execute implements Step.
func (p *Pay) Execute(ctx context.Context, r *Runner, index int) error {
	addr, err := r.nodes[p.To].NewAddress(ctx, p.Label)
	if err != nil {
		return err
	}
	txid, err := r.nodes[p.From].SendToAddress(ctx, addr, p.Amount)
	if err != nil {
		return err
	}
	log.Debugf("%s paid %v to %s address %s in %v", nodeName(p.From),
		p.Amount, nodeName(p.To), addr, &txid)
	r.ledger.recordPayment(p.From, p.To, p.Amount)
	r.journal.value(index, "txid", txid.String())
	return nil
}

func (p *Pay) String() string {
	return fmt.Sprintf("%s pays %v to %s", nodeName(p.From), p.Amount, nodeName(p.To))
}

func (p *Pay) nodes() []int { return []int{p.From, p.To} }

// Sync waits for all nodes to converge.
type Sync struct{}

// Execute implements Step.
func (Sync) Execute(ctx context.Context, r *Runner, index int) error {
	views, err := SyncAll(ctx, r.nodes, r.opts)
	if err != nil {
		return err
	}
	r.journal.value(index, "height", fmt.Sprint(views[0].Height))
	r.journal.value(index, "tip", views[0].Hash.String())
	return nil
}

func (Sync) String() string { return "sync all nodes" }

func (Sync) nodes() []int { return nil }

// BroadcastRaw builds a transaction spending Inputs owned by Owner that pays
// Amount to a fresh address of To, signs it on Owner and submits it through
// Via.
type BroadcastRaw struct {
	Owner         int
	Via           int
	To            int
	Label         string
	Inputs        []TxInput
	Amount        dcrutil.Amount
	AllowHighFees bool
}

// Execute implements Step.
func (b *BroadcastRaw) Execute(ctx context.Context, r *Runner, index int) error {
	claimed := make(map[wire.OutPoint]struct{})
	if err := claimInputs(claimed, b.Inputs); err != nil {
		return err
	}
	signed, err := b.prepare(ctx, r)
	if err != nil {
		return err
	}
	txid, err := b.relay(ctx, r, signed)
	if err != nil {
		return err
	}
	r.ledger.recordPayment(b.Owner, b.To, b.Amount)
	r.ledger.recordRelay(&txid)
	r.journal.value(index, "txid", txid.String())
	return nil
}

// prepare creates the transaction on the owner and signs it there.
func (b *BroadcastRaw) prepare(ctx context.Context, r *Runner) (string, error) {
	owner := r.nodes[b.Owner]
	addr, err := r.nodes[b.To].NewAddress(ctx, b.Label)
	if err != nil {
		return "", err
	}
	outputs := map[string]dcrutil.Amount{addr: b.Amount}
	raw, err := owner.CreateRawTransaction(ctx, b.Inputs, outputs)
	if err != nil {
		return "", err
	}
	res, err := owner.SignRawTransaction(ctx, raw)
	if err != nil {
		return "", err
	}
	if !res.Complete {
		msg := "signing incomplete"
		if len(res.Errors) > 0 {
			e := &res.Errors[0]
			msg = fmt.Sprintf("%s: input %v:%d: %s", msg, &e.TxID, e.Vout, e.Error)
		}
		return "", errors.E(errors.ScriptFailure, msg)
	}
	return res.Hex, nil
}

func (b *BroadcastRaw) relay(ctx context.Context, r *Runner, signed string) (chainhash.Hash, error) {
	txid, err := r.nodes[b.Via].SendRawTransaction(ctx, signed, b.AllowHighFees)
	if err != nil {
		return txid, err
	}
	log.Debugf("%s relayed %v paying %v from %s to %s", nodeName(b.Via), &txid,
		b.Amount, nodeName(b.Owner), nodeName(b.To))
	return txid, nil
}

func (b *BroadcastRaw) String() string {
	return fmt.Sprintf("%s relays raw tx of %s spending %d %s to %s (%v)",
		nodeName(b.Via), nodeName(b.Owner), len(b.Inputs),
		pickNoun(len(b.Inputs), "input", "inputs"), nodeName(b.To), b.Amount)
}

func (b *BroadcastRaw) nodes() []int { return []int{b.Owner, b.Via, b.To} }

// Sweep moves every output Owner lists with at least MinConf confirmations
// to fresh addresses of To, one raw transaction per output.  All
// transactions are created and signed on Owner before any is submitted
// through Via.  Each pays the full output value less Fee.
type Sweep struct {
	Owner         int
	To            int
	Via           int
	MinConf       int32
	Label         string
	Fee           dcrutil.Amount
	AllowHighFees bool
}

// Execute implements Step.
func (s *Sweep) Execute(ctx context.Context, r *Runner, index int) error {
	utxos, err := r.nodes[s.Owner].ListUnspent(ctx, s.MinConf)
	if err != nil {
		return err
	}
	if len(utxos) == 0 {
		return errors.E(errors.InsufficientBalance,
			fmt.Sprintf("%s has no outputs to sweep", nodeName(s.Owner)))
	}

	claimed := make(map[wire.OutPoint]struct{})
	raws := make([]*BroadcastRaw, len(utxos))
	signed := make([]string, len(utxos))
	for i := range utxos {
		u := &utxos[i]
		if u.Amount <= s.Fee {
			return errors.E(errors.Invalid, errors.Errorf("output %v "+
				"does not cover fee %v", u, s.Fee))
		}
		raws[i] = &BroadcastRaw{
			Owner: s.Owner,
			Via:   s.Via,
			To:    s.To,
			Label: s.Label,
			Inputs: []TxInput{{
				TxID:   u.TxID,
				Vout:   u.Vout,
				Tree:   u.Tree,
				Amount: u.Amount,
			}},
			Amount:        u.Amount - s.Fee,
			AllowHighFees: s.AllowHighFees,
		}
		if err := claimInputs(claimed, raws[i].Inputs); err != nil {
			return err
		}
		signed[i], err = raws[i].prepare(ctx, r)
		if err != nil {
			return err
		}
	}

	for i, raw := range raws {
		txid, err := raw.relay(ctx, r, signed[i])
		if err != nil {
			return err
		}
		r.ledger.recordSweep(SweptOutput{
			Owner:    s.Owner,
			Receiver: s.To,
			Utxo:     utxos[i],
			Value:    raw.Amount,
			TxID:     txid,
		})
		r.journal.value(index, fmt.Sprintf("txid %d", i), txid.String())
	}
	return nil
}

func (s *Sweep) String() string {
	return fmt.Sprintf("%s relays %s's outputs (minconf %d) to %s",
		nodeName(s.Via), nodeName(s.Owner), s.MinConf, nodeName(s.To))
}

func (s *Sweep) nodes() []int { return []int{s.Owner, s.To, s.Via} }

// ShowRawTx logs the last relayed raw transaction as decoded by Node.
type ShowRawTx struct {
	Node int
}

// Execute implements Step.
func (s *ShowRawTx) Execute(ctx context.Context, r *Runner, index int) error {
	txid := r.ledger.LastRelayed()
	if txid == nil {
		return errors.E(errors.NotExist, "no raw transaction was relayed")
	}
	rec, err := r.nodes[s.Node].RawTransaction(ctx, txid, true)
	if err != nil {
		return err
	}
	if rec.TxID != *txid {
		return errors.E(errors.Bug, errors.Errorf("asked for %v, got %v",
			txid, &rec.TxID))
	}
	log.Infof("Transaction as decoded by %s: %v", nodeName(s.Node), rec)
	r.journal.value(index, "tx", rec.String())
	return nil
}

func (s *ShowRawTx) String() string {
	return fmt.Sprintf("%s decodes the last relayed transaction", nodeName(s.Node))
}

func (s *ShowRawTx) nodes() []int { return []int{s.Node} }

// Assert evaluates a checkpoint.
type Assert struct {
	Check Predicate
}

// Execute implements Step.
func (a *Assert) Execute(ctx context.Context, r *Runner, index int) error {
	return a.Check.Check(ctx, r, index)
}

func (a *Assert) String() string { return "assert " + a.Check.String() }

func (a *Assert) nodes() []int {
	switch p := a.Check.(type) {
	case *BalanceExpectation:
		return []int{p.Node}
	case *UnspentCount:
		return []int{p.Node}
	case *UnspentSumIsBalance:
		return []int{p.Node}
	}
	return nil
}

// claimInputs records inputs as spent by the batch being built and fails
// when one of them was already claimed.
func claimInputs(claimed map[wire.OutPoint]struct{}, inputs []TxInput) error {
	for i := range inputs {
		op := wire.OutPoint{Hash: inputs[i].TxID, Index: inputs[i].Vout, Tree: inputs[i].Tree}
		if _, ok := claimed[op]; ok {
			return errors.E(errors.DoubleSpend, errors.Errorf("output %v "+
				"is spent twice in one batch", &op))
		}
		claimed[op] = struct{}{}
	}
	return nil
}

func pickNoun(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
