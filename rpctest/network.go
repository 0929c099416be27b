// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpctest

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/decred/dcrd/rpcclient/v2"
	"github.com/decred/dcrwallet/errors"
	"github.com/decred/walletscenario/scenario"
)

// DefaultBasePort is the first port harnesses listen on.
const DefaultBasePort = 20000

// Config describes a network of harnesses.
type Config struct {
	// Nodes is the number of dcrd and dcrwallet pairs.
	Nodes int

	// WorkingDir holds one directory per harness.  When empty, a temporary
	// directory is created and removed on Close.
	WorkingDir string

	// BasePort is the first of three consecutive ports reserved by every
	// harness.
	BasePort int

	DcrdExe     string
	WalletExe   string
	DebugLevel  string
	DebugOutput bool
}

// Network is a set of deployed harnesses whose dcrd nodes peer with each
// other.
type Network struct {
	harnesses  []*Harness
	nodes      []*RPCNode
	workingDir string
	tempDir    bool
}

// generateListeningPorts returns the p2p, dcrd RPC and wallet RPC ports of
// harness index.
func generateListeningPorts(index, base int) (int, int, int) {
	x := base + index*3 + 0
	y := base + index*3 + 1
	z := base + index*3 + 2
	return x, y, z
}

// NewNetwork deploys cfg.Nodes harnesses and connects every pair of dcrd
// nodes.  Processes already started are stopped when deployment fails.
func NewNetwork(ctx context.Context, cfg *Config) (_ *Network, err error) {
	const op errors.Op = "rpctest.NewNetwork"
	if cfg.Nodes <= 0 {
		return nil, errors.E(op, errors.Invalid, "network needs at least one node")
	}

	net := &Network{workingDir: cfg.WorkingDir}
	if net.workingDir == "" {
		net.workingDir, err = ioutil.TempDir("", "rpctest")
		if err != nil {
			return nil, errors.E(op, errors.IO, err)
		}
		net.tempDir = true
	}
	defer func() {
		if err != nil {
			externalProcesses.emergencyKillAll()
			net.Close()
		}
	}()

	basePort := cfg.BasePort
	if basePort == 0 {
		basePort = DefaultBasePort
	}
	const localhost = "127.0.0.1"
	for i := 0; i < cfg.Nodes; i++ {
		p2p, dcrdRPC, walletRPC := generateListeningPorts(i, basePort)
		name := fmt.Sprintf("node%d", i)
		h := NewHarness(&HarnessConfig{
			Name:          name,
			WorkingDir:    filepath.Join(net.workingDir, "harness-"+name),
			DcrdExe:       cfg.DcrdExe,
			WalletExe:     cfg.WalletExe,
			P2PHost:       localhost,
			P2PPort:       p2p,
			DcrdRPCHost:   localhost,
			DcrdRPCPort:   dcrdRPC,
			WalletRPCHost: localhost,
			WalletRPCPort: walletRPC,
			DebugLevel:    cfg.DebugLevel,
			DebugOutput:   cfg.DebugOutput,
		})
		net.harnesses = append(net.harnesses, h)
		if err = h.Deploy(ctx); err != nil {
			return nil, errors.E(op, err)
		}
		net.nodes = append(net.nodes, NewRPCNode(h))
	}

	for i := range net.harnesses {
		for j := i + 1; j < len(net.harnesses); j++ {
			if err = net.Connect(i, j); err != nil {
				return nil, errors.E(op, err)
			}
		}
	}
	log.Infof("Deployed %d harnesses in %s", len(net.harnesses), net.workingDir)
	return net, nil
}

// Harness returns harness i.
func (net *Network) Harness(i int) *Harness { return net.harnesses[i] }

// Nodes returns the harnesses as scenario node handles.
func (net *Network) Nodes() []scenario.Node {
	nodes := make([]scenario.Node, len(net.nodes))
	for i, n := range net.nodes {
		nodes[i] = n
	}
	return nodes
}

// Connect makes dcrd i peer with dcrd j.
func (net *Network) Connect(i, j int) error {
	addr := net.harnesses[j].Config.P2PAddress()
	err := net.harnesses[i].DcrdClient.Client().AddNode(addr, rpcclient.ANAdd)
	if err != nil {
		return errors.E(errors.Op("dcrd.AddNode"), errors.IO, err)
	}
	return nil
}

// Disconnect drops the peering of dcrd i with dcrd j.
func (net *Network) Disconnect(i, j int) error {
	addr := net.harnesses[j].Config.P2PAddress()
	err := net.harnesses[i].DcrdClient.Client().AddNode(addr, rpcclient.ANRemove)
	if err != nil {
		return errors.E(errors.Op("dcrd.AddNode"), errors.IO, err)
	}
	return nil
}

// Close disposes every harness.
func (net *Network) Close() error {
	var firstErr error
	for _, h := range net.harnesses {
		if err := h.Dispose(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if net.tempDir {
		if err := os.RemoveAll(net.workingDir); err != nil && firstErr == nil {
			firstErr = errors.E(errors.IO, err)
		}
	}
	return firstErr
}
