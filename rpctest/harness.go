// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpctest

import (
	"context"
	"io/ioutil"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/decred/dcrd/rpcclient/v2"
	"github.com/decred/dcrwallet/errors"
)

// Startup timeouts.  dcrwallet creates its temporary wallet before it
// writes the certificate, which takes much longer than dcrd.
const (
	dcrdCertTimeout   = 7 * time.Second
	walletCertTimeout = 90 * time.Second
)

// Harness is one simnet dcrd process with a dcrwallet attached to it.
type Harness struct {
	Config *HarnessConfig

	DcrdServer   *DcrdTestServer
	WalletServer *WalletTestServer

	DcrdClient   *RPCConnection
	WalletClient *RPCConnection

	// MiningAddress receives the coinbase of every block dcrd generates.
	MiningAddress string
}

// HarnessConfig describes where a harness keeps its files and listens.
type HarnessConfig struct {
	Name string

	WorkingDir string

	DcrdExe   string
	WalletExe string

	P2PHost string
	P2PPort int

	DcrdRPCHost string
	DcrdRPCPort int

	WalletRPCHost string
	WalletRPCPort int

	DebugLevel  string
	DebugOutput bool
}

// P2PAddress is the address dcrd accepts peers on.
func (c *HarnessConfig) P2PAddress() string {
	return net.JoinHostPort(c.P2PHost, strconv.Itoa(c.P2PPort))
}

// NewHarness creates a harness.  No process is started.
func NewHarness(config *HarnessConfig) *Harness {
	dcrdExe, walletExe := config.DcrdExe, config.WalletExe
	if dcrdExe == "" {
		dcrdExe = "dcrd"
	}
	if walletExe == "" {
		walletExe = "dcrwallet"
	}
	debugLevel := config.DebugLevel
	if debugLevel == "" {
		debugLevel = "info"
	}
	dcrdRPC := net.JoinHostPort(config.DcrdRPCHost, strconv.Itoa(config.DcrdRPCPort))

	dcrd := &DcrdTestServer{
		listen:          config.P2PAddress(),
		rpcListen:       dcrdRPC,
		rpcUser:         "user",
		rpcPass:         "pass",
		debugLevel:      debugLevel,
		appDir:          filepath.Join(config.WorkingDir, "dcrd"),
		endpoint:        "ws",
		externalProcess: &ExternalProcess{CommandName: dcrdExe},
	}

	wallet := &WalletTestServer{
		rpcConnect:      dcrdRPC,
		rpcListen:       net.JoinHostPort(config.WalletRPCHost, strconv.Itoa(config.WalletRPCPort)),
		rpcUser:         "user",
		rpcPass:         "pass",
		debugLevel:      debugLevel,
		appDir:          filepath.Join(config.WorkingDir, "dcrwallet"),
		endpoint:        "ws",
		externalProcess: &ExternalProcess{CommandName: walletExe},
	}

	return &Harness{
		Config:       config,
		DcrdClient:   &RPCConnection{MaxConnRetries: 20},
		WalletClient: &RPCConnection{MaxConnRetries: 20},
		DcrdServer:   dcrd,
		WalletServer: wallet,
	}
}

func connConfig(certFile, host, endpoint, user, pass string) (*rpcclient.ConnConfig, error) {
	cert, err := ioutil.ReadFile(certFile)
	if err != nil {
		return nil, errors.E(errors.IO, err)
	}
	return &rpcclient.ConnConfig{
		Host:                 host,
		Endpoint:             endpoint,
		User:                 user,
		Pass:                 pass,
		Certificates:         cert,
		DisableAutoReconnect: true,
	}, nil
}

// DcrdConnectionConfig creates the RPC client config of dcrd.
func (h *Harness) DcrdConnectionConfig() (*rpcclient.ConnConfig, error) {
	s := h.DcrdServer
	return connConfig(s.CertFile(), s.rpcListen, s.endpoint, s.rpcUser, s.rpcPass)
}

// WalletConnectionConfig creates the RPC client config of dcrwallet.
func (h *Harness) WalletConnectionConfig() (*rpcclient.ConnConfig, error) {
	s := h.WalletServer
	return connConfig(s.CertFile(), s.rpcListen, s.endpoint, s.rpcUser, s.rpcPass)
}

// launchArguments bundles the arguments of launchSequence.
type launchArguments struct {
	DcrdExtraArgs        map[string]interface{}
	WalletExtraArguments map[string]interface{}
}

func (h *Harness) newLaunchArguments() *launchArguments {
	args := &launchArguments{
		DcrdExtraArgs:        make(map[string]interface{}),
		WalletExtraArguments: make(map[string]interface{}),
	}
	args.DcrdExtraArgs["simnet"] = NoArgumentValue
	args.WalletExtraArguments["simnet"] = NoArgumentValue
	args.WalletExtraArguments["nogrpc"] = NoArgumentValue
	args.WalletExtraArguments["createtemp"] = NoArgumentValue
	if h.MiningAddress != "" {
		args.DcrdExtraArgs["miningaddr"] = h.MiningAddress
	}
	return args
}

// launchSequence
// 1. launches dcrd
// 2. connects to it via RPC
// 3. launches the wallet and connects it to dcrd
// 4. connects to the wallet via RPC and unlocks it
func (h *Harness) launchSequence(ctx context.Context, args *launchArguments) error {
	debug := h.Config.DebugOutput
	if err := h.DcrdServer.Start(args.DcrdExtraArgs, debug); err != nil {
		return err
	}
	if err := WaitForFile(ctx, h.DcrdServer.CertFile(), dcrdCertTimeout); err != nil {
		return err
	}
	cfg, err := h.DcrdConnectionConfig()
	if err != nil {
		return err
	}
	if err := h.DcrdClient.Connect(ctx, cfg); err != nil {
		return err
	}
	log.Debugf("Harness %s: dcrd RPC client connected", h.Config.Name)

	err = h.WalletServer.Start(h.DcrdServer.CertFile(), args.WalletExtraArguments, debug)
	if err != nil {
		return err
	}
	if err := WaitForFile(ctx, h.WalletServer.CertFile(), walletCertTimeout); err != nil {
		return err
	}
	cfg, err = h.WalletConnectionConfig()
	if err != nil {
		return err
	}
	if err := h.WalletClient.Connect(ctx, cfg); err != nil {
		return err
	}
	log.Debugf("Harness %s: wallet RPC client connected", h.Config.Name)

	// Temporary simnet wallets are created with this private passphrase.
	err = h.WalletClient.Client().WalletPassphrase("password", 0)
	if err != nil {
		return errors.E(errors.Op("dcrwallet.WalletPassphrase"), errors.IO, err)
	}
	return nil
}

// shutdownSequence reverses launchSequence and deletes the certificates so
// the next launch can wait for them again.
func (h *Harness) shutdownSequence() error {
	h.WalletClient.Disconnect()
	var firstErr error
	if h.WalletServer.IsRunning() {
		firstErr = h.WalletServer.Stop()
	}
	h.DcrdClient.Disconnect()
	if h.DcrdServer.IsRunning() {
		if err := h.DcrdServer.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, f := range []string{h.DcrdServer.CertFile(), h.DcrdServer.KeyFile(),
		h.WalletServer.CertFile(), h.WalletServer.KeyFile()} {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = errors.E(errors.IO, err)
		}
	}
	return firstErr
}

// Deploy brings the harness up:
//   1. Starts dcrd with a fresh simnet chain and a temporary wallet.
//   2. Gets a new address from the wallet for mining rewards.
//   3. Restarts dcrd with that mining address.
func (h *Harness) Deploy(ctx context.Context) error {
	op := errors.Op("rpctest.Deploy " + h.Config.Name)
	if err := h.launchSequence(ctx, h.newLaunchArguments()); err != nil {
		return errors.E(op, err)
	}
	addr, err := h.WalletClient.Client().GetNewAddress("default")
	if err != nil {
		return errors.E(op, errors.IO, err)
	}
	h.MiningAddress = addr.EncodeAddress()
	log.Debugf("Harness %s: mining address %s", h.Config.Name, h.MiningAddress)

	if err := h.shutdownSequence(); err != nil {
		return errors.E(op, err)
	}
	if err := h.launchSequence(ctx, h.newLaunchArguments()); err != nil {
		return errors.E(op, err)
	}
	log.Infof("Harness %s is ready", h.Config.Name)
	return nil
}

// Dispose stops the processes and removes the working directory.
func (h *Harness) Dispose() error {
	err := h.shutdownSequence()
	if rmErr := os.RemoveAll(h.Config.WorkingDir); rmErr != nil && err == nil {
		err = errors.E(errors.IO, rmErr)
	}
	return err
}
