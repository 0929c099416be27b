// Copyright (c) 2015-2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrutil/v2"
	"github.com/decred/slog"
	"github.com/decred/walletscenario/scenario"
	"github.com/decred/walletscenario/simnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := defaultConfig()
	cfg.AppDataDir = t.Name()
	require.NoError(t, cfg.validate())
	assert.Equal(t, filepath.Join(t.Name(), defaultJournalName), cfg.Journal)

	// Defaults reproduce the reference walkthrough.
	assert.Equal(t, scenario.DefaultWalletOptions(), cfg.walletOptions())
	assert.Equal(t, simnet.WalletTestParams(), cfg.simnetParams())
	assert.Equal(t, scenario.DefaultSyncTimeout, cfg.syncOptions().Timeout)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config)
	}{
		{"backend", func(c *config) { c.Backend = "btcd" }},
		{"nodes", func(c *config) { c.Nodes = 2 }},
		{"timeout", func(c *config) { c.SyncTimeout = 0 }},
		{"poll", func(c *config) { c.PollInterval = 2 * c.SyncTimeout }},
		{"payment", func(c *config) { c.SecondPayment.Amount = 0 }},
		{"sweepfee", func(c *config) { c.SweepFee.Amount = -1 }},
		{"maturity", func(c *config) { c.SimnetOpts.CoinbaseMaturity = -1 }},
		{"relayfee", func(c *config) { c.SimnetOpts.RelayFee.Amount = -1 }},
	}
	for _, test := range tests {
		cfg := defaultConfig()
		test.modify(&cfg)
		assert.Error(t, cfg.validate(), test.name)
	}
}

func TestConfigSimnetParams(t *testing.T) {
	cfg := defaultConfig()
	cfg.SimnetOpts.BlockOneSubsidy.Amount = 50 * dcrutil.AtomsPerCoin
	cfg.SimnetOpts.BaseSubsidy.Amount = 50 * dcrutil.AtomsPerCoin
	cfg.SimnetOpts.CoinbaseMaturity = 0
	cfg.SimnetOpts.Latency = time.Millisecond

	p := cfg.simnetParams()
	assert.Equal(t, dcrutil.Amount(50*dcrutil.AtomsPerCoin), p.Subsidy(1))
	assert.Equal(t, dcrutil.Amount(50*dcrutil.AtomsPerCoin), p.Subsidy(40))
	assert.Zero(t, p.CoinbaseMaturity)
}

func TestParseAndSetDebugLevels(t *testing.T) {
	defer setLogLevels(defaultLogLevel)

	require.NoError(t, parseAndSetDebugLevels("debug"))
	for id, l := range subsystemLoggers {
		assert.Equal(t, slog.LevelDebug, l.Level(), id)
	}

	require.NoError(t, parseAndSetDebugLevels("SCEN=trace,SIMN=warn"))
	assert.Equal(t, slog.LevelTrace, scenLog.Level())
	assert.Equal(t, slog.LevelWarn, simnLog.Level())
	assert.Equal(t, slog.LevelDebug, rpctLog.Level())

	assert.Error(t, parseAndSetDebugLevels("loud"))
	assert.Error(t, parseAndSetDebugLevels("SCEN"))
	assert.Error(t, parseAndSetDebugLevels("XXXX=info"))
	assert.Error(t, parseAndSetDebugLevels("SCEN=loud"))
}
