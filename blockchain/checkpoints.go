// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"

	"github.com/crypto-coin-world/libbitcoin-blockchain/consensus"
)

// VerifyCheckpointFork rejects a fork point that falls strictly below the
// highest checkpoint at or below the current best height, refusing to
// rewrite history a checkpoint has already pinned down (spec.md §9
// supplemented feature, grounded on the teacher's findPreviousCheckpoint /
// checkpoint-too-old rejection in core/blockchain/checkpoints.go).
func VerifyCheckpointFork(params *consensus.ConsensusParams, bestHeight, forkPointHeight int32) error {
	cp, ok := params.LatestCheckpoint(bestHeight)
	if !ok {
		return nil
	}
	if forkPointHeight < cp.Height {
		return ruleError(ErrForkTooOld, fmt.Sprintf("fork point at height %d is older than the most recent checkpoint at height %d", forkPointHeight, cp.Height))
	}
	return nil
}

// VerifyCheckpointClaimedWork bounds the easiest difficulty a competing
// branch may legitimately claim since the last checkpoint, rejecting a fork
// whose header bits imply implausibly little cumulative work for the
// elapsed time (spec.md §9 supplemented feature, grounded on the teacher's
// checkpoint claimed-work comparison).
func VerifyCheckpointClaimedWork(params *consensus.ConsensusParams, cpBits uint32, cpTimestamp, candidateTimestamp int64, candidateBits uint32) error {
	elapsed := candidateTimestamp - cpTimestamp
	if elapsed <= 0 {
		return nil
	}
	easiest := calcEasiestDifficulty(params, cpBits, elapsed)
	candidateTarget := CompactToBig(candidateBits)
	easiestTarget := CompactToBig(easiest)
	if candidateTarget.Cmp(easiestTarget) > 0 {
		return ruleError(ErrForkTooOld, "fork claims implausibly little work since the last checkpoint")
	}
	return nil
}
