// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scenario

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/decred/dcrwallet/errors"
	"gopkg.in/yaml.v3"
)

// Step outcomes recorded in the journal.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// JournalEntry records one executed step.
type JournalEntry struct {
	Index   int               `yaml:"index"`
	Step    string            `yaml:"step"`
	Status  string            `yaml:"status"`
	Error   string            `yaml:"error,omitempty"`
	Elapsed time.Duration     `yaml:"elapsed"`
	Values  map[string]string `yaml:"values,omitempty"`
}

// Journal is the record of a scenario run, written as YAML for replay and
// debugging.
type Journal struct {
	Scenario string          `yaml:"scenario"`
	Nodes    int             `yaml:"nodes"`
	Started  time.Time       `yaml:"started"`
	Result   string          `yaml:"result"`
	Entries  []*JournalEntry `yaml:"steps"`
}

func (j *Journal) begin(index int, step Step) *JournalEntry {
	e := &JournalEntry{Index: index, Step: step.String()}
	j.Entries = append(j.Entries, e)
	return e
}

// value attaches an observed value to the entry of step.
func (j *Journal) value(step int, key, value string) {
	for i := len(j.Entries) - 1; i >= 0; i-- {
		e := j.Entries[i]
		if e.Index != step {
			continue
		}
		if e.Values == nil {
			e.Values = make(map[string]string)
		}
		e.Values[key] = value
		return
	}
}

// Entry returns the journal entry of step, or nil when the step has not run.
func (j *Journal) Entry(step int) *JournalEntry {
	for _, e := range j.Entries {
		if e.Index == step {
			return e
		}
	}
	return nil
}

// WriteYAML encodes the journal to w.
func (j *Journal) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(j); err != nil {
		return errors.E(errors.Encoding, err)
	}
	return enc.Close()
}

// Save writes the journal to the file at path, creating parent directories
// as needed.
func (j *Journal) Save(path string) error {
	const op errors.Op = "scenario.Journal.Save"
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.E(op, errors.IO, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.E(op, errors.IO, err)
	}
	if err := j.WriteYAML(f); err != nil {
		f.Close()
		return errors.E(op, err)
	}
	if err := f.Close(); err != nil {
		return errors.E(op, errors.IO, err)
	}
	return nil
}

// ReadJournal decodes a journal previously written by WriteYAML.
func ReadJournal(r io.Reader) (*Journal, error) {
	j := new(Journal)
	if err := yaml.NewDecoder(r).Decode(j); err != nil {
		return nil, errors.E(errors.Encoding, err)
	}
	return j, nil
}
