// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package simnet

import (
	"time"

	"github.com/decred/dcrd/chaincfg/v2"
	"github.com/decred/dcrd/dcrutil/v2"
)

// Params are the ledger rules of a simulated network.
type Params struct {
	Name string

	// BlockOneSubsidy is paid to the miner of the first block after
	// genesis; every later block pays BaseSubsidy.
	BlockOneSubsidy dcrutil.Amount
	BaseSubsidy     dcrutil.Amount

	// CoinbaseMaturity is the number of blocks a coinbase output must be
	// buried under before it may be spent: an output mined at height h
	// is spendable at tip t when t-h+1 > CoinbaseMaturity.
	CoinbaseMaturity int64

	// Transactions spending an output with fewer than
	// FreeRelayConfirmations confirmations must pay at least RelayFee.
	FreeRelayConfirmations int64
	RelayFee               dcrutil.Amount

	// Fees above HighFee are rejected unless explicitly allowed.
	HighFee dcrutil.Amount

	// GenesisTime is the timestamp of the genesis block.  Block i is
	// stamped TargetTimePerBlock*i later.
	GenesisTime        time.Time
	TargetTimePerBlock time.Duration

	// Net encodes wallet addresses.
	Net *chaincfg.Params
}

// WalletTestParams returns the rules of the reference wallet walkthrough: a
// large first block subsidy, small later subsidies and a coinbase maturity
// of 16 blocks.
func WalletTestParams() *Params {
	return &Params{
		Name:                   "wallettest",
		BlockOneSubsidy:        17500000 * dcrutil.AtomsPerCoin,
		BaseSubsidy:            5000 * dcrutil.AtomsPerCoin,
		CoinbaseMaturity:       16,
		FreeRelayConfirmations: 2,
		RelayFee:               dcrutil.AtomsPerCent,
		HighFee:                dcrutil.AtomsPerCoin,
		GenesisTime:            time.Unix(1401292357, 0),
		TargetTimePerBlock:     time.Minute,
		Net:                    chaincfg.SimNetParams(),
	}
}

// FlatParams returns rules paying subsidy for every block, genesis
// excluded, with coinbase outputs spendable immediately.
func FlatParams(subsidy dcrutil.Amount) *Params {
	p := WalletTestParams()
	p.Name = "flat"
	p.BlockOneSubsidy = subsidy
	p.BaseSubsidy = subsidy
	p.CoinbaseMaturity = 0
	return p
}

// Subsidy returns the coinbase subsidy of a block at height.
func (p *Params) Subsidy(height int64) dcrutil.Amount {
	switch {
	case height <= 0:
		return 0
	case height == 1:
		return p.BlockOneSubsidy
	}
	return p.BaseSubsidy
}

// mature reports whether a coinbase mined at height may be spent at tip.
func (p *Params) mature(height, tip int64) bool {
	return tip-height+1 > p.CoinbaseMaturity
}
