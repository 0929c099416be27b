// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package version reports the semantic version of the walletscenario
// harness.
package version

import (
	"fmt"
	"strings"
)

// Release number of the harness.
const (
	Major = 0
	Minor = 1
	Patch = 0
)

// PreRelease and BuildMetadata are appended to the release number after a
// hyphen and a plus.  Both may be replaced at link time, for example
//
//	-ldflags "-X github.com/decred/walletscenario/version.BuildMetadata=ci.42"
//
// Characters outside the semver alphabet are dropped.
var (
	PreRelease    = "pre"
	BuildMetadata = ""
)

// String formats the version per semantic versioning 2.0.0.
func String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d.%d", Major, Minor, Patch)
	if pre := normalizeVerString(PreRelease); pre != "" {
		b.WriteString("-" + pre)
	}
	if meta := normalizeVerString(BuildMetadata); meta != "" {
		b.WriteString("+" + meta)
	}
	return b.String()
}

// normalizeVerString keeps only the characters allowed in semver
// prerelease and build metadata identifiers.
func normalizeVerString(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r == '-', r == '.':
			return r
		}
		return -1
	}, s)
}
