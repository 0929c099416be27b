// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scenario

import (
	"testing"

	"github.com/decred/dcrd/dcrutil/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertEqual(t *testing.T) {
	assert.NoError(t, AssertEqual(1, 0, "slice", []int{1}, []int{1}))
	assert.NoError(t, AssertEqual(1, 0, "map",
		map[string]int{"a": 1}, map[string]int{"a": 1}))
	assert.NoError(t, AssertEqual(1, 0, "amount", dcrutil.Amount(5), dcrutil.Amount(5)))

	err := AssertEqual(2, 1, "slice", []int{1}, []int{2})
	require.Error(t, err)
	ae, ok := err.(*AssertionError)
	require.True(t, ok, "%T", err)
	assert.Equal(t, 2, ae.Step)
	assert.Equal(t, 1, ae.Node)
	assert.Equal(t, []int{2}, ae.Actual)
}

func TestRelationHolds(t *testing.T) {
	tests := []struct {
		rel              Relation
		actual, expected dcrutil.Amount
		holds            bool
	}{
		{Equals, 5, 5, true},
		{Equals, 4, 5, false},
		{GreaterThan, 6, 5, true},
		{GreaterThan, 5, 5, false},
		{LessThan, 4, 5, true},
		{LessThan, 5, 5, false},
		{Relation(7), 5, 5, false},
		{Relation(-1), 5, 5, false},
	}
	for _, test := range tests {
		assert.Equal(t, test.holds, test.rel.holds(test.actual, test.expected),
			"%v %v %v", test.actual, test.rel, test.expected)
	}
	assert.True(t, LessThan.valid())
	assert.False(t, Relation(3).valid())
}
