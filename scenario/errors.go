// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scenario

import (
	"bytes"
	"fmt"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

// AssertionError reports a checkpoint whose observed value did not match
// the expected one.
type AssertionError struct {
	Step     int
	Node     int
	Desc     string
	Expected interface{}
	Actual   interface{}
}

func (e *AssertionError) Error() string {
	node := ""
	if e.Node >= 0 {
		node = " node " + nodeName(e.Node)
	}
	return fmt.Sprintf("step %d:%s %s: expected %v, got %v", e.Step, node,
		e.Desc, e.Expected, e.Actual)
}

// NodeView is one node's observation of the chain during a barrier round.
type NodeView struct {
	Node    int
	Hash    chainhash.Hash
	Height  int64
	Mempool []chainhash.Hash
}

func (v *NodeView) String() string {
	return fmt.Sprintf("%s: height %d tip %v mempool %d", nodeName(v.Node),
		v.Height, &v.Hash, len(v.Mempool))
}

// ConvergenceError reports that SyncAll gave up waiting for the nodes to
// agree.  Views holds the last observation of every node.
type ConvergenceError struct {
	Timeout time.Duration
	Rounds  int
	Views   []NodeView
}

func (e *ConvergenceError) Error() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "nodes did not converge within %v (%d polls)",
		e.Timeout, e.Rounds)
	for i := range e.Views {
		buf.WriteString("; ")
		buf.WriteString(e.Views[i].String())
	}
	return buf.String()
}
