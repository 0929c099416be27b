// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// +build darwin dragonfly freebsd linux netbsd openbsd solaris

package main

import "syscall"

// Service managers stop the harness with SIGTERM.
func init() {
	signals = append(signals, syscall.SIGTERM)
}
