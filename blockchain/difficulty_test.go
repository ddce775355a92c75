// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crypto-coin-world/libbitcoin-blockchain/consensus"
)

func TestCompactToBigBigToCompactRoundTrip(t *testing.T) {
	cases := []uint32{0x1d00ffff, 0x1b0404cb, 0x207fffff, 0x1d00ff00}
	for _, compact := range cases {
		n := CompactToBig(compact)
		back := BigToCompact(n)
		require.Equal(t, compact, back, "round trip mismatch for %#x", compact)
	}
}

func TestCompactToBigKnownValue(t *testing.T) {
	// mainnet genesis bits 0x1d00ffff.
	n := CompactToBig(0x1d00ffff)
	expected := new(big.Int).Lsh(big.NewInt(0x00ffff), 8*(0x1d-3))
	require.Equal(t, 0, n.Cmp(expected))
}

func TestBigToCompactZero(t *testing.T) {
	require.Equal(t, uint32(0), BigToCompact(big.NewInt(0)))
}

func TestHashToBigReversesByteOrder(t *testing.T) {
	var h [32]byte
	h[31] = 0x01
	n := HashToBig(h)
	require.Equal(t, 0, n.Cmp(new(big.Int).Lsh(big.NewInt(1), 248)))
}

func TestWorkRequiredGenesisIsPowLimit(t *testing.T) {
	p := consensus.MainNetParams()
	bits := WorkRequired(p, 0, p.PowLimitBits, 0, 0)
	require.Equal(t, p.PowLimitBits, bits)
}

func TestWorkRequiredNonBoundaryKeepsPrevBits(t *testing.T) {
	p := consensus.MainNetParams()
	const prevBits = 0x1b0404cb
	bits := WorkRequired(p, 100, prevBits, 0, 0)
	require.Equal(t, uint32(prevBits), bits)
}

func TestWorkRequiredBoundaryRetargetsOnSchedule(t *testing.T) {
	p := consensus.MainNetParams()
	const prevBits = 0x1b0404cb
	// exactly on schedule: actual timespan equals target timespan, so the
	// retargeted bits should equal the previous bits unchanged.
	base := int64(1000000)
	top := base + p.TargetTimespan
	bits := WorkRequired(p, p.RetargetInterval, prevBits, top, base)
	require.Equal(t, uint32(prevBits), bits)
}

func TestWorkRequiredClampsExcessiveTimespan(t *testing.T) {
	p := consensus.MainNetParams()
	const prevBits = 0x1b0404cb
	base := int64(0)
	// far longer than target*factor: clamped to target*factor, producing
	// the maximum permitted easing of difficulty for one retarget.
	top := base + p.TargetTimespan*p.RetargetAdjustmentFactor*100
	bits := WorkRequired(p, p.RetargetInterval, prevBits, top, base)

	clampedTop := base + p.TargetTimespan*p.RetargetAdjustmentFactor
	expectedBits := WorkRequired(p, p.RetargetInterval, prevBits, clampedTop, base)
	require.Equal(t, expectedBits, bits)
}

func TestWorkRequiredNeverExceedsPowLimit(t *testing.T) {
	p := consensus.MainNetParams()
	base := int64(0)
	top := base + p.TargetTimespan*p.RetargetAdjustmentFactor
	bits := WorkRequired(p, p.RetargetInterval, p.PowLimitBits, top, base)
	newTarget := CompactToBig(bits)
	require.True(t, newTarget.Cmp(p.PowLimit) <= 0)
}

func TestCalcEasiestDifficultyNoElapsedTimeKeepsBits(t *testing.T) {
	p := consensus.MainNetParams()
	const bits = 0x1b0404cb
	require.Equal(t, uint32(bits), calcEasiestDifficulty(p, bits, 0))
}

func TestCalcEasiestDifficultyLongElapsedEasesToPowLimit(t *testing.T) {
	p := consensus.MainNetParams()
	const bits = 0x1b0404cb
	eased := calcEasiestDifficulty(p, bits, p.TargetTimespan*p.RetargetAdjustmentFactor*1000)
	require.Equal(t, p.PowLimitBits, eased)
}

func TestCalcEasiestDifficultyTestnetReduction(t *testing.T) {
	p := consensus.TestNetParams()
	const bits = 0x1b0404cb
	eased := calcEasiestDifficulty(p, bits, int64(p.MinDiffReductionTime.Seconds())+1)
	require.Equal(t, p.PowLimitBits, eased)
}
