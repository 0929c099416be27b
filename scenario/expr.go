// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scenario

import (
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrutil/v2"
)

// Expr is an amount resolved against the ledger when a checkpoint is
// evaluated.
type Expr interface {
	Resolve(l *Ledger) dcrutil.Amount
	String() string
}

// Fixed is a constant amount.
type Fixed dcrutil.Amount

// Resolve implements Expr.
func (f Fixed) Resolve(*Ledger) dcrutil.Amount { return dcrutil.Amount(f) }

func (f Fixed) String() string { return dcrutil.Amount(f).String() }

// Coins returns a Fixed expression of a whole number of coins.
func Coins(n int64) Fixed { return Fixed(n * dcrutil.AtomsPerCoin) }

// MaturedSubsidy resolves to the subsidies of every mature block the node
// mined.
type MaturedSubsidy int

// Resolve implements Expr.
func (m MaturedSubsidy) Resolve(l *Ledger) dcrutil.Amount { return l.MaturedSubsidy(int(m)) }

func (m MaturedSubsidy) String() string {
	return fmt.Sprintf("matured subsidy of %s", nodeName(int(m)))
}

// Sent resolves to the total paid out by the node.
type Sent int

// Resolve implements Expr.
func (s Sent) Resolve(l *Ledger) dcrutil.Amount { return l.Sent(int(s)) }

func (s Sent) String() string { return fmt.Sprintf("sent by %s", nodeName(int(s))) }

// Received resolves to the total paid to the node.
type Received int

// Resolve implements Expr.
func (r Received) Resolve(l *Ledger) dcrutil.Amount { return l.Received(int(r)) }

func (r Received) String() string { return fmt.Sprintf("received by %s", nodeName(int(r))) }

// Sum adds its terms.
type Sum []Expr

// Resolve implements Expr.
func (s Sum) Resolve(l *Ledger) dcrutil.Amount {
	var total dcrutil.Amount
	for _, e := range s {
		total += e.Resolve(l)
	}
	return total
}

func (s Sum) String() string {
	terms := make([]string, len(s))
	for i, e := range s {
		terms[i] = e.String()
	}
	return "(" + strings.Join(terms, " + ") + ")"
}

// Minus subtracts Sub from From.
type Minus struct {
	From Expr
	Sub  Expr
}

// Resolve implements Expr.
func (m Minus) Resolve(l *Ledger) dcrutil.Amount {
	return m.From.Resolve(l) - m.Sub.Resolve(l)
}

func (m Minus) String() string {
	return "(" + m.From.String() + " - " + m.Sub.String() + ")"
}
