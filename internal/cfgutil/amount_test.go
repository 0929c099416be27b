// Copyright (c) 2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/decred/dcrd/dcrutil/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountFlag(t *testing.T) {
	tests := []struct {
		in   string
		want dcrutil.Amount
	}{
		{"351", 351 * dcrutil.AtomsPerCoin},
		{"5001 DCR", 5001 * dcrutil.AtomsPerCoin},
		{"0.01", dcrutil.AtomsPerCent},
		{"0", 0},
	}
	for _, test := range tests {
		var f AmountFlag
		require.NoError(t, f.UnmarshalFlag(test.in), test.in)
		assert.Equal(t, test.want, f.Amount, test.in)

		s, err := f.MarshalFlag()
		require.NoError(t, err)
		var again AmountFlag
		require.NoError(t, again.UnmarshalFlag(s))
		assert.Equal(t, f.Amount, again.Amount)
	}

	var f AmountFlag
	assert.Error(t, f.UnmarshalFlag("many"))
}

func TestFileExists(t *testing.T) {
	dir, err := ioutil.TempDir("", "cfgutil")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	ok, err := FileExists(dir)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = FileExists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}
