// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crypto-coin-world/libbitcoin-blockchain/chainhash"
)

func TestBIP30ExceptionHeights(t *testing.T) {
	p := MainNetParams()
	require.True(t, p.IsBIP30Exception(91842))
	require.True(t, p.IsBIP30Exception(91880))
	require.False(t, p.IsBIP30Exception(91843))
	require.False(t, p.IsBIP30Exception(0))
}

func TestCheckpointLookup(t *testing.T) {
	p := MainNetParams()
	p.Checkpoints = []Checkpoint{
		{Height: 11111, Hash: chainhash.HashH([]byte("cp-11111"))},
		{Height: 33333, Hash: chainhash.HashH([]byte("cp-33333"))},
	}

	cp, ok := p.Checkpoint(11111)
	require.True(t, ok)
	require.Equal(t, int32(11111), cp.Height)

	_, ok = p.Checkpoint(22222)
	require.False(t, ok)
}

func TestLatestCheckpoint(t *testing.T) {
	p := MainNetParams()
	p.Checkpoints = []Checkpoint{
		{Height: 11111, Hash: chainhash.HashH([]byte("cp-11111"))},
		{Height: 33333, Hash: chainhash.HashH([]byte("cp-33333"))},
	}

	cp, ok := p.LatestCheckpoint(40000)
	require.True(t, ok)
	require.Equal(t, int32(33333), cp.Height)

	cp, ok = p.LatestCheckpoint(20000)
	require.True(t, ok)
	require.Equal(t, int32(11111), cp.Height)

	_, ok = p.LatestCheckpoint(100)
	require.False(t, ok)
}

func TestDeploymentFlagHas(t *testing.T) {
	flags := DeploymentP2SH | DeploymentBIP34
	require.True(t, flags.Has(DeploymentP2SH))
	require.True(t, flags.Has(DeploymentBIP34))
	require.False(t, flags.Has(DeploymentBIP65))
	require.True(t, flags.Has(DeploymentP2SH|DeploymentBIP34))
}

func TestTestNetParamsEnablesReducedDifficultyException(t *testing.T) {
	p := TestNetParams()
	require.True(t, p.ReduceMinDifficulty)
	require.Empty(t, p.BIP30ExceptionHeights)
}
