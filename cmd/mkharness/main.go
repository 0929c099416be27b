// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// mkharness brings up a network of simnet dcrd and dcrwallet pairs, prints
// the commands to reach them, and waits for a keypress to terminate them.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/decred/walletscenario/rpctest"
	"github.com/jessevdk/go-flags"
)

var newlineBytes = []byte{'\n'}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Stderr.Write(newlineBytes)
	os.Exit(1)
}

// Flags.
var opts = struct {
	Nodes       int    `short:"n" long:"nodes" description:"Number of dcrd and dcrwallet pairs"`
	BasePort    int    `long:"baseport" description:"First port reserved by the harnesses"`
	WorkingDir  string `long:"workingdir" description:"Directory for harness data (temporary when unset)"`
	DcrdExe     string `long:"dcrdexe" description:"Path of the dcrd executable"`
	WalletExe   string `long:"dcrwalletexe" description:"Path of the dcrwallet executable"`
	DebugOutput bool   `long:"debugoutput" description:"Copy process output to the console"`
}{
	Nodes:    3,
	BasePort: rpctest.DefaultBasePort,
}

func main() {
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	net, err := rpctest.NewNetwork(context.Background(), &rpctest.Config{
		Nodes:       opts.Nodes,
		WorkingDir:  opts.WorkingDir,
		BasePort:    opts.BasePort,
		DcrdExe:     opts.DcrdExe,
		WalletExe:   opts.WalletExe,
		DebugOutput: opts.DebugOutput,
	})
	if err != nil {
		fatalf("Unable to deploy harnesses: %v", err)
	}

	for i := 0; i < opts.Nodes; i++ {
		h := net.Harness(i)
		fmt.Printf("Harness %s\n", h.Config.Name)
		fmt.Printf("  Dcrd command:\n\t%s\n", h.DcrdServer.FullConsoleCommand())
		fmt.Printf("  Wallet command:\n\t%s\n", h.WalletServer.FullConsoleCommand())

		if cn, err := h.DcrdConnectionConfig(); err == nil {
			fmt.Println("  Command for dcrd's dcrctl:")
			fmt.Printf("\tdcrctl -u %s -P %s -s %s -c %s\n", cn.User, cn.Pass,
				cn.Host, h.DcrdServer.CertFile())
		}
		if cw, err := h.WalletConnectionConfig(); err == nil {
			fmt.Println("  Command for wallet's dcrctl:")
			fmt.Printf("\tdcrctl -u %s -P %s -s %s -c %s --wallet\n", cw.User, cw.Pass,
				cw.Host, h.WalletServer.CertFile())
		}
		fmt.Printf("  Mining address: %s\n", h.MiningAddress)
	}

	fmt.Print("Press Enter to terminate harnesses.")
	bufio.NewReader(os.Stdin).ReadBytes('\n')

	if err := net.Close(); err != nil {
		fatalf("Unable to tear down harnesses: %v", err)
	}
}
