// Copyright (c) 2013-2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"os/signal"
)

// shutdownSignaled is closed whenever shutdown is invoked through an interrupt
// signal.  Any contexts created using withShutdownCancel are cancelled when
// this is closed.
var shutdownSignaled = make(chan struct{})

// signals defines the signals that are handled to do a clean shutdown.
// Conditional compilation is used to also include SIGTERM on Unix.
var signals = []os.Signal{os.Interrupt}

// withShutdownCancel creates a copy of a context that is cancelled whenever
// shutdown is invoked through an interrupt signal.
func withShutdownCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-shutdownSignaled
		cancel()
	}()
	return ctx
}

// shutdownListener listens for shutdown signals and cancels all contexts
// created from withShutdownCancel.  This function never returns and is intended
// to be spawned in a new goroutine.
func shutdownListener() {
	interruptChannel := make(chan os.Signal, 1)
	signal.Notify(interruptChannel, signals...)

	sig := <-interruptChannel
	log.Infof("Received signal (%s).  Shutting down...", sig)
	close(shutdownSignaled)

	// Started nodes are stopped by the deferred network teardown; further
	// signals are only logged.
	for range interruptChannel {
		log.Info("Shutdown signaled.  Already shutting down...")
	}
}
