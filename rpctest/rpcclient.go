// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpctest

import (
	"context"
	"math"
	"time"

	"github.com/decred/dcrd/rpcclient/v2"
	"github.com/decred/dcrwallet/errors"
)

// RPCConnection is a JSON-RPC client of a dcrd or dcrwallet process.
type RPCConnection struct {
	rpcClient      *rpcclient.Client
	MaxConnRetries int
	isConnected    bool
}

// Connect dials the server, retrying while it starts up.
func (c *RPCConnection) Connect(ctx context.Context, rpcConf *rpcclient.ConnConfig) error {
	if c.isConnected {
		return errors.E(errors.Op("rpctest.Connect"), errors.Invalid,
			errors.Errorf("%v is already connected", rpcConf.Host))
	}
	client, err := NewRPCConnection(ctx, rpcConf, c.MaxConnRetries)
	if err != nil {
		return err
	}
	c.rpcClient = client
	c.isConnected = true
	return nil
}

// Disconnect shuts the client down.
func (c *RPCConnection) Disconnect() {
	if !c.isConnected {
		return
	}
	c.isConnected = false
	c.rpcClient.Shutdown()
	c.rpcClient.WaitForShutdown()
}

// IsConnected reports whether Connect succeeded and Disconnect was not
// called since.
func (c *RPCConnection) IsConnected() bool { return c.isConnected }

// Client returns the underlying client.
func (c *RPCConnection) Client() *rpcclient.Client { return c.rpcClient }

// NewRPCConnection creates a client, retrying with a growing backoff up to
// maxConnRetries times.
func NewRPCConnection(ctx context.Context, config *rpcclient.ConnConfig, maxConnRetries int) (*rpcclient.Client, error) {
	const op errors.Op = "rpctest.NewRPCConnection"
	var err error
	for i := 0; i < maxConnRetries; i++ {
		var client *rpcclient.Client
		client, err = rpcclient.New(config, nil)
		if err == nil {
			return client, nil
		}
		log.Debugf("Connection to %s failed: %v", config.Host, err)
		backoff := time.Duration(math.Log(float64(i+3))) * 50 * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, errors.E(op, ctx.Err())
		case <-time.After(backoff):
		}
	}
	return nil, errors.E(op, errors.IO, errors.Errorf("connection to %s timed out: %v", config.Host, err))
}
