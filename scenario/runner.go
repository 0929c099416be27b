// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/decred/dcrwallet/errors"
)

// Runner executes a scenario against a fixed set of nodes.  Steps run
// strictly in order; the first failing step aborts the run.
type Runner struct {
	name    string
	nodes   []Node
	steps   []Step
	opts    SyncOptions
	ledger  *Ledger
	journal *Journal
}

// NewRunner returns a runner executing steps against nodes.  Node indexes
// in steps refer to positions in nodes.
func NewRunner(name string, nodes []Node, steps []Step, opts SyncOptions) *Runner {
	var maturity int64
	if len(nodes) > 0 {
		maturity = nodes[0].CoinbaseMaturity()
	}
	return &Runner{
		name:    name,
		nodes:   nodes,
		steps:   steps,
		opts:    opts.withDefaults(),
		ledger:  newLedger(maturity),
		journal: &Journal{Scenario: name, Nodes: len(nodes)},
	}
}

// Ledger returns the bookkeeping of the steps run so far.
func (r *Runner) Ledger() *Ledger { return r.ledger }

// Journal returns the record of the steps run so far.
func (r *Runner) Journal() *Journal { return r.journal }

// Steps returns the scenario steps.
func (r *Runner) Steps() []Step { return r.steps }

// validate checks every step refers to existing nodes.
func (r *Runner) validate() error {
	const op errors.Op = "scenario.validate"
	if len(r.nodes) == 0 {
		return errors.E(op, errors.Invalid, "no nodes")
	}
	for i, s := range r.steps {
		for _, n := range s.nodes() {
			if n < 0 || n >= len(r.nodes) {
				return errors.E(op, errors.Invalid, errors.Errorf("step %d "+
					"(%v) refers to node %d of %d", i+1, s, n, len(r.nodes)))
			}
		}
		switch s := s.(type) {
		case *Mine:
			if s.Count == 0 {
				return errors.E(op, errors.Invalid, errors.Errorf("step %d mines no blocks", i+1))
			}
		case *Pay:
			if s.Amount <= 0 {
				return errors.E(op, errors.Invalid, errors.Errorf("step %d pays non-positive amount", i+1))
			}
		case *Assert:
			if s.Check == nil {
				return errors.E(op, errors.Invalid, errors.Errorf("step %d has no predicate", i+1))
			}
			if b, ok := s.Check.(*BalanceExpectation); ok && !b.Relation.valid() {
				return errors.E(op, errors.Invalid, errors.Errorf("step %d "+
					"has unknown relation %v", i+1, b.Relation))
			}
		}
	}
	return nil
}

// Run executes every step in order.  Checkpoint failures are returned as
// *AssertionError and barrier timeouts as *ConvergenceError.  Any other
// failure is returned wrapped with the index of the failing step.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.validate(); err != nil {
		r.journal.Result = StatusFailed
		return err
	}
	r.journal.Started = time.Now()

	for i, s := range r.steps {
		index := i + 1
		log.Infof("Step %d/%d: %v", index, len(r.steps), s)

		entry := r.journal.begin(index, s)
		start := time.Now()
		err := s.Execute(ctx, r, index)
		entry.Elapsed = time.Since(start)
		if err != nil {
			entry.Status = StatusFailed
			entry.Error = err.Error()
			r.journal.Result = StatusFailed
			return wrapStepError(index, s, err)
		}
		entry.Status = StatusOK
	}

	r.journal.Result = StatusOK
	log.Infof("Scenario %q passed (%d steps)", r.name, len(r.steps))
	return nil
}

func wrapStepError(index int, s Step, err error) error {
	switch err.(type) {
	case *AssertionError, *ConvergenceError:
		return err
	}
	return errors.E(errors.Op(fmt.Sprintf("step %d (%v)", index, s)), err)
}
