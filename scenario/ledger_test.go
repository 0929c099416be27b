// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scenario

import (
	"testing"

	"github.com/decred/dcrd/dcrutil/v2"
	"github.com/stretchr/testify/assert"
)

func TestLedgerMaturedSubsidy(t *testing.T) {
	l := newLedger(16)
	l.recordBlock(NodeA, 1, 17500000*dcrutil.AtomsPerCoin)
	for h := int64(2); h <= 33; h++ {
		l.recordBlock(NodeB, h, 5000*dcrutil.AtomsPerCoin)
	}

	assert.Equal(t, int64(33), l.Tip())
	assert.True(t, l.Mature(17))
	assert.False(t, l.Mature(18))
	assert.Equal(t, []int64{1}, l.MinedHeights(NodeA))
	assert.Len(t, l.MinedHeights(NodeB), 32)
	assert.Empty(t, l.MinedHeights(NodeC))

	assert.Equal(t, dcrutil.Amount(17500000*dcrutil.AtomsPerCoin), l.MaturedSubsidy(NodeA))
	assert.Equal(t, dcrutil.Amount(80000*dcrutil.AtomsPerCoin), l.MaturedSubsidy(NodeB))
	assert.Zero(t, l.MaturedSubsidy(NodeC))
}

func TestLedgerZeroMaturity(t *testing.T) {
	l := newLedger(0)
	for h := int64(1); h <= 32; h++ {
		l.recordBlock(NodeB, h, dcrutil.AtomsPerCoin)
	}
	l.recordBlock(NodeA, 33, dcrutil.AtomsPerCoin)
	assert.Equal(t, dcrutil.Amount(32*dcrutil.AtomsPerCoin), l.MaturedSubsidy(NodeB))
	assert.Equal(t, dcrutil.Amount(dcrutil.AtomsPerCoin), l.MaturedSubsidy(NodeA))
}

func TestLedgerPayments(t *testing.T) {
	l := newLedger(16)
	l.recordPayment(NodeA, NodeC, 351*dcrutil.AtomsPerCoin)
	l.recordPayment(NodeA, NodeC, 350*dcrutil.AtomsPerCoin)
	assert.Equal(t, dcrutil.Amount(701*dcrutil.AtomsPerCoin), l.Sent(NodeA))
	assert.Equal(t, dcrutil.Amount(701*dcrutil.AtomsPerCoin), l.Received(NodeC))
	assert.Zero(t, l.Received(NodeA))
	assert.Nil(t, l.LastRelayed())

	s := SweptOutput{Owner: NodeA, Receiver: NodeC, Value: 10 * dcrutil.AtomsPerCoin}
	s.TxID[0] = 1
	l.recordSweep(s)
	assert.Equal(t, dcrutil.Amount(711*dcrutil.AtomsPerCoin), l.Received(NodeC))
	assert.Len(t, l.Swept(), 1)
	if assert.NotNil(t, l.LastRelayed()) {
		assert.Equal(t, s.TxID, *l.LastRelayed())
	}
}

func TestExprResolve(t *testing.T) {
	l := newLedger(16)
	l.recordBlock(NodeA, 1, 17500000*dcrutil.AtomsPerCoin)
	l.recordBlock(NodeA, 34, 5000*dcrutil.AtomsPerCoin)
	l.recordBlock(NodeA, 35, 5000*dcrutil.AtomsPerCoin)
	l.recordBlock(NodeB, 51, 5000*dcrutil.AtomsPerCoin)
	l.recordPayment(NodeA, NodeC, 701*dcrutil.AtomsPerCoin)

	floor := Minus{MaturedSubsidy(NodeA), Sum{Sent(NodeA), Coins(5001)}}
	tests := []struct {
		expr Expr
		want dcrutil.Amount
	}{
		{Fixed(0), 0},
		{Coins(701), 701 * dcrutil.AtomsPerCoin},
		{MaturedSubsidy(NodeA), 17510000 * dcrutil.AtomsPerCoin},
		{Sent(NodeA), 701 * dcrutil.AtomsPerCoin},
		{Received(NodeC), 701 * dcrutil.AtomsPerCoin},
		{floor, 17504298 * dcrutil.AtomsPerCoin},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, test.expr.Resolve(l), test.expr.String())
	}
	assert.Equal(t, "(matured subsidy of A - (sent by A + 5001 DCR))", floor.String())
}
