// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpctest

import (
	"os"
	"path/filepath"

	"github.com/decred/dcrwallet/errors"
)

// DcrdTestServer is a simnet dcrd process.
type DcrdTestServer struct {
	rpcUser    string
	rpcPass    string
	listen     string
	rpcListen  string
	debugLevel string
	appDir     string
	endpoint   string

	externalProcess *ExternalProcess
}

// CertFile is the RPC certificate the server writes when it is ready.
func (server *DcrdTestServer) CertFile() string {
	return filepath.Join(server.appDir, "rpc.cert")
}

// KeyFile is the RPC key of the server.
func (server *DcrdTestServer) KeyFile() string {
	return filepath.Join(server.appDir, "rpc.key")
}

// IsRunning reports whether the process is running.
func (server *DcrdTestServer) IsRunning() bool {
	return server.externalProcess.IsRunning()
}

// Start launches dcrd with the standard harness arguments plus
// extraArguments.
func (server *DcrdTestServer) Start(extraArguments map[string]interface{}, debugOutput bool) error {
	const op errors.Op = "rpctest.DcrdTestServer.Start"
	if server.IsRunning() {
		return errors.E(op, errors.Invalid, "dcrd is already running")
	}
	log.Debugf("Start dcrd process in %s", server.appDir)
	if err := os.MkdirAll(server.appDir, 0700); err != nil {
		return errors.E(op, errors.IO, err)
	}
	server.externalProcess.Arguments = server.cookArguments(extraArguments)
	server.externalProcess.WorkingDir = server.appDir
	if err := server.externalProcess.Launch(debugOutput); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// Stop interrupts dcrd.
func (server *DcrdTestServer) Stop() error {
	log.Debugf("Stop dcrd process in %s", server.appDir)
	return server.externalProcess.Stop()
}

func (server *DcrdTestServer) cookArguments(extraArguments map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	result["txindex"] = NoArgumentValue
	result["rpcuser"] = server.rpcUser
	result["rpcpass"] = server.rpcPass
	result["rpclisten"] = server.rpcListen
	result["listen"] = server.listen
	result["appdata"] = server.appDir
	result["debuglevel"] = server.debugLevel
	result["rpccert"] = server.CertFile()
	result["rpckey"] = server.KeyFile()

	return ArgumentsCopyTo(extraArguments, result)
}

// FullConsoleCommand returns the dcrd command line.
func (server *DcrdTestServer) FullConsoleCommand() string {
	return server.externalProcess.FullConsoleCommand()
}
