// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
	"time"

	"github.com/crypto-coin-world/libbitcoin-blockchain/consensus"
	"github.com/crypto-coin-world/libbitcoin-blockchain/wire"
)

// minBIP34Version is the minimum header version once BIP-34 activates
// (spec.md §4.1). The BIP-65/66 version floors are not checked here.
const minBIP34Version = 2

// AcceptBlock performs contextual header validation of a candidate block
// against the chain state built by the populator (C2), independent of any
// particular UTXO set (spec.md §4.1, "accept_block").
func AcceptBlock(params *consensus.ConsensusParams, block *wire.Block, state *ChainStateData) error {
	header := &block.Header

	// (a) bits must equal the value computed from context.
	expectedBits := WorkRequired(params, state.Height, firstOr(state.AncestorBits, params.PowLimitBits), lastAncestorTimestamp(state), state.RetargetBaseTimestamp)
	if header.Bits != expectedBits {
		return ruleError(ErrUnexpectedDifficulty, fmt.Sprintf("block difficulty of %08x is not the expected value of %08x", header.Bits, expectedBits))
	}

	// (b) timestamp strictly exceeds the median time past of the last 11
	// ancestors.
	mtp := state.MedianTimePast()
	if header.Timestamp.Unix() <= mtp {
		return ruleError(ErrTimeTooOld, fmt.Sprintf("block timestamp %v is not after median time past %v", header.Timestamp, time.Unix(mtp, 0)))
	}

	// (c) checkpoint agreement.
	if state.CheckpointHash != nil {
		got := block.BlockHash()
		if !got.IsEqual(state.CheckpointHash) {
			return ruleError(ErrBadCheckpoint, fmt.Sprintf("block at height %d does not match checkpoint hash %v", state.Height, state.CheckpointHash))
		}
	}

	// (d) every transaction's lock_time is satisfied at this height/time.
	for i := range block.Transactions {
		if !lockTimeSatisfied(&block.Transactions[i], state.Height, header.Timestamp.Unix()) {
			return ruleError(ErrUnfinalizedTx, fmt.Sprintf("block contains unfinalized transaction %v", block.Transactions[i].TxHash()))
		}
	}

	// (e) BIP-34: once a supermajority of the last 100 ancestor versions
	// is >= 2, the candidate's own version must be >= 2, and its coinbase
	// must push its own height as the first script element.
	if bip34Active(params, state) {
		if header.Version < minBIP34Version {
			return ruleError(ErrBlockVersionTooOld, fmt.Sprintf("new blocks require version %d or greater", minBIP34Version))
		}
		coinbaseHeight, err := wire.ExtractCoinbaseHeight(block.Transactions[0].Inputs[0].SignatureScript)
		if err != nil {
			return ruleError(ErrCoinbaseHeight, fmt.Sprintf("coinbase does not encode a height: %v", err))
		}
		if coinbaseHeight != state.Height {
			return ruleError(ErrCoinbaseHeight, fmt.Sprintf("coinbase height %d does not match expected height %d", coinbaseHeight, state.Height))
		}
	}

	return nil
}

func firstOr(bits []uint32, fallback uint32) uint32 {
	if len(bits) == 0 {
		return fallback
	}
	return bits[0]
}

func lastAncestorTimestamp(state *ChainStateData) int64 {
	if len(state.AncestorTimestamps) == 0 {
		return 0
	}
	return state.AncestorTimestamps[0]
}

// bip34Active reports whether a supermajority of the retained ancestor
// versions meet the BIP-34 floor, or the chain has simply passed the
// network's known BIP-34 activation height (spec.md §4.1: "if height >
// 237 370, header.version >= 2" — strictly greater than the threshold).
func bip34Active(params *consensus.ConsensusParams, state *ChainStateData) bool {
	if !params.Deployments.Has(consensus.DeploymentBIP34) {
		return false
	}
	if params.BIP34Height > 0 && state.Height > params.BIP34Height {
		return true
	}
	if len(state.AncestorVersions) < ancestorVersionWindow {
		return false
	}
	const window = 100
	threshold := (window * 75) / 100
	n := 0
	for i := 0; i < window && i < len(state.AncestorVersions); i++ {
		if state.AncestorVersions[i] >= minBIP34Version {
			n++
		}
	}
	return n >= threshold
}

// lockTimeSatisfied reports whether tx's lock_time has been reached, either
// interpreted as a block height or a Unix timestamp depending on its
// magnitude, per the classic nLockTime rule. A transaction whose inputs all
// carry a final sequence number is always satisfied.
func lockTimeSatisfied(tx *wire.Transaction, height int32, medianOrBlockTime int64) bool {
	if tx.LockTime == 0 {
		return true
	}

	const lockTimeThreshold = 500000000
	var blockTimeOrHeight int64
	if tx.LockTime < lockTimeThreshold {
		blockTimeOrHeight = int64(height)
	} else {
		blockTimeOrHeight = medianOrBlockTime
	}
	if int64(tx.LockTime) < blockTimeOrHeight {
		return true
	}

	for i := range tx.Inputs {
		if tx.Inputs[i].Sequence != 0xffffffff {
			return false
		}
	}
	return true
}
