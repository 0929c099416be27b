// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scenario

import (
	"github.com/decred/dcrd/dcrutil/v2"
)

// Node positions used by the wallet scenario.
const (
	NodeA = iota
	NodeB
	NodeC

	// WalletNodes is the number of nodes the wallet scenario runs on.
	WalletNodes
)

// WalletOptions tunes the wallet scenario.
type WalletOptions struct {
	// FirstPayment and SecondPayment are paid from A to C.  The second
	// payment spends change confirmed only once and so pays a fee.
	FirstPayment  dcrutil.Amount
	SecondPayment dcrutil.Amount

	// FeeSlack bounds how far below its matured subsidies less payments
	// A's balance may fall because of fees.
	FeeSlack dcrutil.Amount

	// SweepFee is deducted from every output swept from A to C.
	SweepFee dcrutil.Amount

	// ReceiveLabel labels the addresses C receives the sweep on.
	ReceiveLabel string
}

// DefaultWalletOptions returns the amounts of the reference walkthrough.
func DefaultWalletOptions() WalletOptions {
	return WalletOptions{
		FirstPayment:  351 * dcrutil.AtomsPerCoin,
		SecondPayment: 350 * dcrutil.AtomsPerCoin,
		FeeSlack:      5001 * dcrutil.AtomsPerCoin,
		ReceiveLabel:  "from1",
	}
}

// WalletScenario returns the steps of the three node wallet walkthrough:
//
//  1. A mines a block, B mines 32 blocks; balances equal matured subsidies.
//  2. A pays C twice, mining a block in between, then mines once more to
//     collect its own fee.
//  3. B mines 16 blocks so A's fee-bearing block matures; C holds both
//     payments and A holds its subsidies less the payments and fees.
//  4. A lists three unspent outputs adding up to its balance.
//  5. Each output is spent to C in its own raw transaction, signed by A and
//     relayed by B.
//  6. After B mines a block A is empty and C holds everything.
func WalletScenario(o WalletOptions) []Step {
	paid := o.FirstPayment + o.SecondPayment
	return []Step{
		// Mine the initial coins.
		&Mine{Node: NodeA, Count: 1},
		Sync{},
		&Mine{Node: NodeB, Count: 32},
		Sync{},
		&Assert{&BalanceExpectation{NodeA, Equals, MaturedSubsidy(NodeA)}},
		&Assert{&BalanceExpectation{NodeB, Equals, MaturedSubsidy(NodeB)}},
		&Assert{&BalanceExpectation{NodeC, Equals, Fixed(0)}},

		// Pay C twice; the second payment is a child of the first.
		&Pay{From: NodeA, To: NodeC, Amount: o.FirstPayment},
		&Mine{Node: NodeA, Count: 1},
		&Pay{From: NodeA, To: NodeC, Amount: o.SecondPayment},

		// A collects its own fee, B matures that block.
		&Mine{Node: NodeA, Count: 1},
		Sync{},
		&Mine{Node: NodeB, Count: 16},
		Sync{},
		&Assert{&BalanceExpectation{NodeA, GreaterThan, Minus{
			MaturedSubsidy(NodeA), Sum{Sent(NodeA), Fixed(o.FeeSlack)}}}},
		&Assert{&BalanceExpectation{NodeA, LessThan, MaturedSubsidy(NodeA)}},
		&Assert{&BalanceExpectation{NodeC, Equals, Fixed(paid)}},

		// A holds change plus two coinbases.
		&Assert{&UnspentCount{Node: NodeA, MinConf: 1, Count: 3}},
		&Assert{&UnspentSumIsBalance{Node: NodeA, MinConf: 1}},

		// Sweep A to C through B and confirm.
		&Sweep{Owner: NodeA, To: NodeC, Via: NodeB, MinConf: 1,
			Label: o.ReceiveLabel, Fee: o.SweepFee, AllowHighFees: true},
		&Mine{Node: NodeB, Count: 1},
		Sync{},
		&ShowRawTx{Node: NodeC},
		&Assert{&BalanceExpectation{NodeA, Equals, Fixed(0)}},
		&Assert{&UnspentCount{Node: NodeA, MinConf: 0, Count: 0}},
		&Assert{SweepSettled{}},
		&Assert{&BalanceExpectation{NodeC, Equals, Received(NodeC)}},
	}
}
