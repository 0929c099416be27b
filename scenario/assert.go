// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scenario

import (
	"context"
	"fmt"

	"github.com/decred/dcrd/dcrutil/v2"
	"github.com/decred/dcrd/wire"
	"github.com/stretchr/testify/assert"
)

// Predicate is a checkpoint evaluated by an Assert step.  Check returns an
// *AssertionError on mismatch and any other error when querying a node
// failed.
type Predicate interface {
	Check(ctx context.Context, r *Runner, step int) error
	String() string
}

// AssertEqual returns an *AssertionError when actual differs from expected.
// Values are compared deeply, so slices and maps may be passed.
func AssertEqual(step, node int, desc string, expected, actual interface{}) error {
	if !assert.ObjectsAreEqual(expected, actual) {
		return &AssertionError{Step: step, Node: node, Desc: desc,
			Expected: expected, Actual: actual}
	}
	return nil
}

// AssertTrue returns an *AssertionError when cond is false.  expected
// describes the condition that failed to hold.
func AssertTrue(step, node int, cond bool, desc string, expected, actual interface{}) error {
	if !cond {
		return &AssertionError{Step: step, Node: node, Desc: desc,
			Expected: expected, Actual: actual}
	}
	return nil
}

// Relation compares an observed balance against an expected amount.
type Relation int

// Relations.
const (
	Equals Relation = iota
	GreaterThan
	LessThan
)

func (r Relation) String() string {
	switch r {
	case Equals:
		return "="
	case GreaterThan:
		return ">"
	case LessThan:
		return "<"
	}
	return fmt.Sprintf("Relation(%d)", int(r))
}

func (r Relation) valid() bool {
	return r >= Equals && r <= LessThan
}

// holds reports whether actual relates to expected.  Unknown relations
// never hold.
func (r Relation) holds(actual, expected dcrutil.Amount) bool {
	switch r {
	case Equals:
		return actual == expected
	case GreaterThan:
		return actual > expected
	case LessThan:
		return actual < expected
	}
	return false
}

// BalanceExpectation checks a node's reported balance against an amount.
type BalanceExpectation struct {
	Node     int
	Relation Relation
	Amount   Expr
}

// Check implements Predicate.
func (b *BalanceExpectation) Check(ctx context.Context, r *Runner, step int) error {
	balance, err := r.nodes[b.Node].Balance(ctx)
	if err != nil {
		return err
	}
	expected := b.Amount.Resolve(r.ledger)
	log.Debugf("Balance of %s is %v (want %v %v)", nodeName(b.Node),
		balance, b.Relation, expected)
	r.journal.value(step, "balance "+nodeName(b.Node), balance.String())
	return AssertTrue(step, b.Node, b.Relation.holds(balance, expected),
		"balance", fmt.Sprintf("%v %v [%v]", b.Relation, expected, b.Amount), balance)
}

func (b *BalanceExpectation) String() string {
	return fmt.Sprintf("balance(%s) %v %v", nodeName(b.Node), b.Relation, b.Amount)
}

// UnspentCount checks the number of outputs a wallet lists.
type UnspentCount struct {
	Node    int
	MinConf int32
	Count   int
}

// Check implements Predicate.
func (u *UnspentCount) Check(ctx context.Context, r *Runner, step int) error {
	utxos, err := r.nodes[u.Node].ListUnspent(ctx, u.MinConf)
	if err != nil {
		return err
	}
	for i := range utxos {
		log.Debugf("Unspent output of %s: %v", nodeName(u.Node), &utxos[i])
	}
	r.journal.value(step, "unspent "+nodeName(u.Node), fmt.Sprint(len(utxos)))
	return AssertEqual(step, u.Node, fmt.Sprintf("unspent output count (minconf %d)", u.MinConf),
		u.Count, len(utxos))
}

func (u *UnspentCount) String() string {
	return fmt.Sprintf("|listunspent(%s, %d)| = %d", nodeName(u.Node), u.MinConf, u.Count)
}

// UnspentSumIsBalance checks that the listed outputs add up to the balance.
type UnspentSumIsBalance struct {
	Node    int
	MinConf int32
}

// Check implements Predicate.
func (u *UnspentSumIsBalance) Check(ctx context.Context, r *Runner, step int) error {
	n := r.nodes[u.Node]
	utxos, err := n.ListUnspent(ctx, u.MinConf)
	if err != nil {
		return err
	}
	balance, err := n.Balance(ctx)
	if err != nil {
		return err
	}
	var sum dcrutil.Amount
	for i := range utxos {
		sum += utxos[i].Amount
	}
	return AssertEqual(step, u.Node, "sum of unspent outputs", balance, sum)
}

func (u *UnspentSumIsBalance) String() string {
	return fmt.Sprintf("sum(listunspent(%s, %d)) = balance(%[1]s)", nodeName(u.Node), u.MinConf)
}

// SweepSettled checks that every output moved by Sweep steps is gone from
// its owner and an output of the swept value exists on the receiver.
type SweepSettled struct{}

// Check implements Predicate.
func (SweepSettled) Check(ctx context.Context, r *Runner, step int) error {
	swept := r.ledger.Swept()
	if len(swept) == 0 {
		return &AssertionError{Step: step, Node: -1, Desc: "swept outputs",
			Expected: "at least one", Actual: 0}
	}

	unspent := make(map[int]map[wire.OutPoint]dcrutil.Amount)
	list := func(node int) (map[wire.OutPoint]dcrutil.Amount, error) {
		if m, ok := unspent[node]; ok {
			return m, nil
		}
		utxos, err := r.nodes[node].ListUnspent(ctx, 0)
		if err != nil {
			return nil, err
		}
		m := make(map[wire.OutPoint]dcrutil.Amount, len(utxos))
		for i := range utxos {
			m[utxos[i].OutPoint()] = utxos[i].Amount
		}
		unspent[node] = m
		return m, nil
	}

	for _, s := range swept {
		owned, err := list(s.Owner)
		if err != nil {
			return err
		}
		op := s.Utxo.OutPoint()
		if _, ok := owned[op]; ok {
			return &AssertionError{Step: step, Node: s.Owner,
				Desc: "swept output still unspent", Expected: "spent", Actual: op.String()}
		}
		received, err := list(s.Receiver)
		if err != nil {
			return err
		}
		var found bool
		for out, amount := range received {
			if out.Hash == s.TxID && amount == s.Value {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{Step: step, Node: s.Receiver,
				Desc:     "swept output missing",
				Expected: fmt.Sprintf("%v paid by %v", s.Value, &s.TxID),
				Actual:   "none"}
		}
	}
	return nil
}

func (SweepSettled) String() string { return "swept outputs moved to receivers" }
