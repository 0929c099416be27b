// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpctest

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/decred/dcrwallet/errors"
)

// ExternalProcess is a dcrd or dcrwallet process started by a harness.
type ExternalProcess struct {
	CommandName string
	Arguments   map[string]interface{}
	WorkingDir  string

	isRunning bool

	runningCommand *exec.Cmd
}

// externalProcesses keeps track of all running processes so they can be
// killed when harness setup fails halfway.
var externalProcesses = &externalProcessList{
	set: make(map[*ExternalProcess]struct{}),
}

type externalProcessList struct {
	mu  sync.Mutex
	set map[*ExternalProcess]struct{}
}

// emergencyKillAll terminates every process started by this package that
// was not stopped yet.
func (list *externalProcessList) emergencyKillAll() {
	list.mu.Lock()
	defer list.mu.Unlock()
	for p := range list.set {
		if err := killProcess(p); err != nil {
			log.Errorf("Failed to kill process %v: %v", p.CommandName, err)
		}
		p.isRunning = false
		delete(list.set, p)
	}
}

func (list *externalProcessList) add(p *ExternalProcess) {
	list.mu.Lock()
	list.set[p] = struct{}{}
	list.mu.Unlock()
}

func (list *externalProcessList) remove(p *ExternalProcess) {
	list.mu.Lock()
	delete(list.set, p)
	list.mu.Unlock()
}

// FullConsoleCommand returns the command line the process was started with.
func (p *ExternalProcess) FullConsoleCommand() string {
	cmd := p.runningCommand
	if cmd == nil {
		return p.CommandName + " " + strings.Join(ArgumentsToStringArray(p.Arguments), " ")
	}
	return cmd.Path + " " + strings.Join(cmd.Args[1:], " ")
}

// IsRunning reports whether the process was launched and not stopped.
func (p *ExternalProcess) IsRunning() bool { return p.isRunning }

// Launch starts the process.  Its output is copied to the console when
// debugOutput is set.
func (p *ExternalProcess) Launch(debugOutput bool) error {
	const op errors.Op = "rpctest.Launch"
	if p.isRunning {
		return errors.E(op, errors.Invalid, errors.Errorf("process is already running: %v", p.runningCommand))
	}

	cmd := exec.Command(p.CommandName, ArgumentsToStringArray(p.Arguments)...)
	cmd.Dir = p.WorkingDir
	if debugOutput {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	log.Debugf("Run command %s %s", cmd.Path, strings.Join(cmd.Args[1:], " "))
	if err := cmd.Start(); err != nil {
		return errors.E(op, errors.IO, err)
	}
	p.runningCommand = cmd
	p.isRunning = true
	externalProcesses.add(p)
	return nil
}

// Stop interrupts the process and waits for it to exit.
func (p *ExternalProcess) Stop() error {
	if !p.isRunning {
		return errors.E(errors.Op("rpctest.Stop"), errors.Invalid,
			errors.Errorf("process is not running: %v", p.CommandName))
	}
	p.isRunning = false
	externalProcesses.remove(p)
	return killProcess(p)
}

func killProcess(p *ExternalProcess) error {
	cmd := p.runningCommand
	defer cmd.Wait()

	sig := os.Interrupt
	if runtime.GOOS == "windows" {
		sig = os.Kill
	}
	if err := cmd.Process.Signal(sig); err != nil {
		return errors.E(errors.IO, err)
	}
	return nil
}

var (
	// NoArgumentValue indicates flag has name but no value to provide,
	// example: "--someflag"
	NoArgumentValue interface{} = &struct{}{}

	// NoArgument and NoArgumentNil indicate the key should be ignored.
	NoArgument                = ""
	NoArgumentNil interface{} = nil
)

// ArgumentsToStringArray converts map to a sorted array of command line
// arguments, taking into account the NoArgumentValue and NoArgument
// indicators above.
func ArgumentsToStringArray(args map[string]interface{}) []string {
	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var result []string
	for _, key := range keys {
		value := args[key]
		switch {
		case value == NoArgument || value == NoArgumentNil:
		case value == NoArgumentValue:
			result = append(result, "--"+key)
		default:
			result = append(result, fmt.Sprintf("--%s=%v", key, value))
		}
	}
	return result
}

// ArgumentsCopyTo copies every argument of from into to and returns to.
func ArgumentsCopyTo(from map[string]interface{}, to map[string]interface{}) map[string]interface{} {
	for key, value := range from {
		to[key] = value
	}
	return to
}
