// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainhash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashHRoundTrip(t *testing.T) {
	h1 := HashH([]byte("block validation core"))
	h2 := HashH([]byte("block validation core"))
	require.True(t, h1.IsEqual(&h2))

	h3 := HashH([]byte("different payload"))
	require.False(t, h1.IsEqual(&h3))
}

func TestNewHashFromStrRoundTrip(t *testing.T) {
	h := HashH([]byte("round trip me"))
	s := h.String()

	parsed, err := NewHashFromStr(s)
	require.NoError(t, err)
	require.True(t, h.IsEqual(parsed))
}

func TestNewHashFromStrRejectsOversize(t *testing.T) {
	oversize := make([]byte, MaxHashStringSize+2)
	for i := range oversize {
		oversize[i] = 'a'
	}
	_, err := NewHashFromStr(string(oversize))
	require.ErrorIs(t, err, ErrHashStrSize)
}

func TestZeroHashIsEqualToItself(t *testing.T) {
	var z Hash
	require.True(t, z.IsEqual(&ZeroHash))
}

func TestHashLess(t *testing.T) {
	a := Hash{0x01}
	b := Hash{0x02}
	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
}
