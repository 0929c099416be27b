// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2015-2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"runtime"

	"github.com/decred/dcrwallet/errors"
	"github.com/decred/walletscenario/rpctest"
	"github.com/decred/walletscenario/scenario"
	"github.com/decred/walletscenario/simnet"
	"github.com/decred/walletscenario/version"
)

func init() {
	// Format nested errors without newlines (better for logs).
	errors.Separator = ":: "
}

// network is a started set of nodes the scenario runs against.
type network interface {
	Nodes() []scenario.Node
	Close() error
}

func main() {
	// Create a context that is cancelled when a shutdown request is received
	// through an interrupt signal.
	ctx := withShutdownCancel(context.Background())
	go shutdownListener()

	// Run the scenario until it passes, fails or shutdown is requested.
	if err := run(ctx); err != nil {
		os.Exit(1)
	}
}

// run is the main startup and teardown logic performed by the main package.
// It parses the config, starts the selected network, runs the wallet
// scenario against it and writes the run journal.
func run(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	log.Infof("Version %s (Go version %s %s/%s)", version.String(), runtime.Version(),
		runtime.GOOS, runtime.GOARCH)

	net, err := startNetwork(ctx, cfg)
	if err != nil {
		log.Errorf("Unable to start %s network: %v", cfg.Backend, err)
		return err
	}
	defer func() {
		log.Infof("Stopping %s network", cfg.Backend)
		if err := net.Close(); err != nil {
			log.Errorf("Failed to stop network: %v", err)
		}
	}()

	steps := scenario.WalletScenario(cfg.walletOptions())
	r := scenario.NewRunner("wallet", net.Nodes(), steps, cfg.syncOptions())
	runErr := r.Run(ctx)

	if err := r.Journal().Save(cfg.Journal); err != nil {
		log.Errorf("Unable to write journal: %v", err)
	} else {
		log.Infof("Journal written to %s", cfg.Journal)
	}

	switch {
	case runErr == nil:
		return nil
	case ctx.Err() != nil:
		log.Warnf("Scenario interrupted: %v", runErr)
	default:
		log.Errorf("Scenario failed: %v", runErr)
	}
	return runErr
}

// startNetwork builds the nodes of the configured backend.
func startNetwork(ctx context.Context, cfg *config) (network, error) {
	switch cfg.Backend {
	case backendDcrd:
		o := &cfg.DcrdOpts
		// Per subsystem levels are not understood by dcrd.
		debugLevel := cfg.DebugLevel
		if !validLogLevel(debugLevel) {
			debugLevel = ""
		}
		return rpctest.NewNetwork(ctx, &rpctest.Config{
			Nodes:       cfg.Nodes,
			WorkingDir:  o.WorkingDir,
			BasePort:    o.BasePort,
			DcrdExe:     o.DcrdExe,
			WalletExe:   o.WalletExe,
			DebugLevel:  debugLevel,
			DebugOutput: o.DebugOutput,
		})
	default:
		return simnet.NewNetwork(&simnet.Config{
			Params:  cfg.simnetParams(),
			Nodes:   cfg.Nodes,
			Latency: cfg.SimnetOpts.Latency,
			DataDir: cfg.SimnetOpts.DataDir,
		})
	}
}
