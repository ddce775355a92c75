// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"math/big"

	"github.com/crypto-coin-world/libbitcoin-blockchain/consensus"
)

var bigOne = big.NewInt(1)

// CompactToBig converts the compact ("bits") representation of a target to
// a big.Int, bit-for-bit identical to the classic bitcoind/btcsuite
// encoding (spec.md §3 "bits: u32 (compact target)").
func CompactToBig(compact uint32) *big.Int {
	mantissa := compact & 0x007fffff
	isNegative := compact&0x00800000 != 0
	exponent := uint(compact >> 24)

	var bn *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, 8*(exponent-3))
	}

	if isNegative {
		bn = bn.Neg(bn)
	}
	return bn
}

// BigToCompact converts a whole number to its compact ("bits")
// representation.
func BigToCompact(n *big.Int) uint32 {
	if n.Sign() == 0 {
		return 0
	}

	var mantissa uint32
	exponent := uint(len(n.Bytes()))
	if exponent <= 3 {
		mantissa = uint32(n.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		tn := new(big.Int).Set(n)
		mantissa = uint32(tn.Rsh(tn, 8*(exponent-3)).Bits()[0])
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := uint32(exponent<<24) | mantissa
	if n.Sign() < 0 {
		compact |= 0x00800000
	}
	return compact
}

// HashToBig converts a chainhash.Hash (little-endian) into a big.Int for
// target comparisons.
func HashToBig(h [32]byte) *big.Int {
	buf := h
	for i := 0; i < len(buf)/2; i++ {
		buf[i], buf[len(buf)-1-i] = buf[len(buf)-1-i], buf[i]
	}
	return new(big.Int).SetBytes(buf[:])
}

// clampTimespan bounds actual between [target/4, target*4], matching the
// spec's "clamp to [target_timespan/4, target_timespan·4]".
func clampTimespan(actual, target int64, factor int64) int64 {
	min := target / factor
	max := target * factor
	switch {
	case actual < min:
		return min
	case actual > max:
		return max
	default:
		return actual
	}
}

// WorkRequired implements the difficulty retarget rule (spec.md §4.1,
// "Difficulty retarget"). height is the candidate's height; prevBits is the
// immediately preceding block's bits; retargetBaseTimestamp is the
// timestamp of block (height - params.RetargetInterval) when height is a
// retarget boundary (ignored otherwise); topTimestamp is the timestamp of
// the immediately preceding block.
func WorkRequired(params *consensus.ConsensusParams, height int32, prevBits uint32, topTimestamp, retargetBaseTimestamp int64) uint32 {
	if height == 0 {
		return params.PowLimitBits
	}
	if height%params.RetargetInterval != 0 {
		return prevBits
	}

	actualTimespan := topTimestamp - retargetBaseTimestamp
	adjustedTimespan := clampTimespan(actualTimespan, params.TargetTimespan, params.RetargetAdjustmentFactor)

	oldTarget := CompactToBig(prevBits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(adjustedTimespan))
	newTarget.Div(newTarget, big.NewInt(params.TargetTimespan))

	if newTarget.Cmp(params.PowLimit) > 0 {
		newTarget.Set(params.PowLimit)
	}
	if newTarget.Sign() < 1 {
		newTarget.Set(bigOne)
	}

	return BigToCompact(newTarget)
}

// calcEasiestDifficulty bounds the easiest difficulty a block may validly
// claim given a known-good starting bits and elapsed duration, used to
// sanity-check claimed work since the last checkpoint (spec.md §9
// supplemented feature, grounded on the teacher's calcEasiestDifficulty).
func calcEasiestDifficulty(params *consensus.ConsensusParams, bits uint32, elapsedSeconds int64) uint32 {
	if params.ReduceMinDifficulty && elapsedSeconds > int64(params.MinDiffReductionTime.Seconds()) {
		return params.PowLimitBits
	}

	newTarget := CompactToBig(bits)
	maxRetargetTimespan := params.TargetTimespan * params.RetargetAdjustmentFactor

	for elapsedSeconds > 0 && newTarget.Cmp(params.PowLimit) < 0 {
		newTarget.Mul(newTarget, big.NewInt(params.RetargetAdjustmentFactor))
		elapsedSeconds -= maxRetargetTimespan
	}

	if newTarget.Cmp(params.PowLimit) > 0 {
		newTarget.Set(params.PowLimit)
	}
	return BigToCompact(newTarget)
}
