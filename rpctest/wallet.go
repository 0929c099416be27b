// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpctest

import (
	"os"
	"path/filepath"

	"github.com/decred/dcrwallet/errors"
)

// WalletTestServer is a dcrwallet process attached to a DcrdTestServer.
type WalletTestServer struct {
	rpcUser    string
	rpcPass    string
	rpcConnect string
	rpcListen  string
	appDir     string
	debugLevel string
	endpoint   string

	externalProcess *ExternalProcess
}

// CertFile is the RPC certificate the wallet writes when it is ready.
func (server *WalletTestServer) CertFile() string {
	return filepath.Join(server.appDir, "rpc.cert")
}

// KeyFile is the RPC key of the wallet.
func (server *WalletTestServer) KeyFile() string {
	return filepath.Join(server.appDir, "rpc.key")
}

// IsRunning reports whether the process is running.
func (server *WalletTestServer) IsRunning() bool {
	return server.externalProcess.IsRunning()
}

// Start launches dcrwallet connected to the dcrd whose certificate is
// dcrdCertificateFile.
func (server *WalletTestServer) Start(dcrdCertificateFile string, extraArguments map[string]interface{}, debugOutput bool) error {
	const op errors.Op = "rpctest.WalletTestServer.Start"
	if server.IsRunning() {
		return errors.E(op, errors.Invalid, "dcrwallet is already running")
	}
	log.Debugf("Start dcrwallet process in %s", server.appDir)
	if err := os.MkdirAll(server.appDir, 0700); err != nil {
		return errors.E(op, errors.IO, err)
	}
	server.externalProcess.Arguments = server.cookArguments(dcrdCertificateFile, extraArguments)
	server.externalProcess.WorkingDir = server.appDir
	if err := server.externalProcess.Launch(debugOutput); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// Stop interrupts dcrwallet.
func (server *WalletTestServer) Stop() error {
	log.Debugf("Stop dcrwallet process in %s", server.appDir)
	return server.externalProcess.Stop()
}

func (server *WalletTestServer) cookArguments(dcrdCertificateFile string, extraArguments map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	result["username"] = server.rpcUser
	result["password"] = server.rpcPass
	result["rpcconnect"] = server.rpcConnect
	result["rpclisten"] = server.rpcListen
	result["appdata"] = server.appDir
	result["debuglevel"] = server.debugLevel
	result["cafile"] = dcrdCertificateFile
	result["rpccert"] = server.CertFile()
	result["rpckey"] = server.KeyFile()

	return ArgumentsCopyTo(extraArguments, result)
}

// FullConsoleCommand returns the dcrwallet command line.
func (server *WalletTestServer) FullConsoleCommand() string {
	return server.externalProcess.FullConsoleCommand()
}
