// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
	"time"

	"github.com/crypto-coin-world/libbitcoin-blockchain/chainhash"
	"github.com/crypto-coin-world/libbitcoin-blockchain/consensus"
	"github.com/crypto-coin-world/libbitcoin-blockchain/wire"
)

// CheckBlock performs context-free validation of a candidate block
// (spec.md §4.1, "check_block"). now is the validator's adjusted current
// time (spec.md §5's MedianTimeSource collaborator, simplified to a plain
// value here since clock skew estimation is a networking concern). stop is
// polled between checks for cooperative cancellation (spec.md §5).
func CheckBlock(params *consensus.ConsensusParams, block *wire.Block, now time.Time, stop <-chan struct{}) error {
	if isStopped(stop) {
		return ErrStopped
	}

	// (a) transactions non-empty and serialized block size within limit.
	if len(block.Transactions) == 0 {
		return ruleError(ErrNoTransactions, "block has no transactions")
	}
	if size := block.SerializeSize(); int64(size) > params.MaxBlockSize {
		return ruleError(ErrBlockTooBig, fmt.Sprintf("serialized block is too big - got %d, max %d", size, params.MaxBlockSize))
	}

	if isStopped(stop) {
		return ErrStopped
	}

	// (b) proof of work: hash <= target, target within (0, max_target].
	if err := checkProofOfWork(params, &block.Header); err != nil {
		return err
	}

	// (c) futuristic timestamp.
	maxTimestamp := now.Add(time.Duration(params.MaxTimeOffsetSeconds) * time.Second)
	if block.Header.Timestamp.After(maxTimestamp) {
		return ruleError(ErrTimeTooNew, fmt.Sprintf("block timestamp %v is too far in the future (max %v)", block.Header.Timestamp, maxTimestamp))
	}

	if isStopped(stop) {
		return ErrStopped
	}

	// (d) first transaction is coinbase, no other is.
	if !block.Transactions[0].IsCoinBase() {
		return ruleError(ErrFirstTxNotCoinbase, "first transaction in block is not a coinbase")
	}
	for i := 1; i < len(block.Transactions); i++ {
		if block.Transactions[i].IsCoinBase() {
			return ruleError(ErrMultipleCoinbases, fmt.Sprintf("block contains second coinbase at index %d", i))
		}
	}

	if isStopped(stop) {
		return ErrStopped
	}

	// (e) per-transaction syntax checks.
	for i := range block.Transactions {
		if err := CheckTransactionSanity(&block.Transactions[i]); err != nil {
			return err
		}
	}

	if isStopped(stop) {
		return ErrStopped
	}

	// (f) transaction identifiers within the block are pairwise distinct.
	seen := make(map[chainhash.Hash]struct{}, len(block.Transactions))
	for i := range block.Transactions {
		h := block.Transactions[i].TxHash()
		if _, exists := seen[h]; exists {
			return ruleError(ErrDuplicateTx, fmt.Sprintf("block contains duplicate transaction %v", h))
		}
		seen[h] = struct{}{}
	}

	if isStopped(stop) {
		return ErrStopped
	}

	// (g) legacy sigop count across the block.
	totalSigOps := int64(0)
	for i := range block.Transactions {
		last := totalSigOps
		totalSigOps += int64(CountSigOps(&block.Transactions[i]))
		if totalSigOps < last || totalSigOps > params.MaxSigOpsPerBlock {
			return ruleError(ErrTooManySigOps, fmt.Sprintf("block contains too many signature operations - got %d, max %d", totalSigOps, params.MaxSigOpsPerBlock))
		}
	}

	if isStopped(stop) {
		return ErrStopped
	}

	// (h) merkle root matches.
	calculated := block.CalcMerkleRoot()
	if !calculated.IsEqual(&block.Header.MerkleRoot) {
		return ruleError(ErrBadMerkleRoot, fmt.Sprintf("block merkle root is invalid - header indicates %v, calculated %v", block.Header.MerkleRoot, calculated))
	}

	return nil
}

// checkProofOfWork ensures the header's bits are within (0, max_target]
// and that the header hash satisfies the claimed target.
func checkProofOfWork(params *consensus.ConsensusParams, header *wire.Header) error {
	target := CompactToBig(header.Bits)
	if target.Sign() <= 0 {
		return ruleError(ErrInvalidPoWTarget, "claimed target is not positive")
	}
	if target.Cmp(params.PowLimit) > 0 {
		return ruleError(ErrInvalidPoWTarget, "claimed target exceeds maximum allowed target")
	}

	hash := header.BlockHash()
	hashNum := HashToBig(hash)
	if hashNum.Cmp(target) > 0 {
		return ruleError(ErrHighHash, fmt.Sprintf("block hash %v is higher than expected target %v", hash, target))
	}
	return nil
}

// CheckTransactionSanity performs context-free syntax checks on a single
// transaction: value bounds, non-empty in/out, no negative outputs, unique
// outpoints within the transaction.
func CheckTransactionSanity(tx *wire.Transaction) error {
	if len(tx.Inputs) == 0 {
		return ruleError(ErrNoTxInputs, "transaction has no inputs")
	}
	if len(tx.Outputs) == 0 {
		return ruleError(ErrNoTxOutputs, "transaction has no outputs")
	}

	var totalOut int64
	for i := range tx.Outputs {
		v := tx.Outputs[i].Value
		if v < 0 {
			return ruleError(ErrInvalidTxOutValue, fmt.Sprintf("transaction output %d has negative value %d", i, v))
		}
		if v > wire.MaxSatoshi {
			return ruleError(ErrInvalidTxOutValue, fmt.Sprintf("transaction output %d value %d exceeds max allowed value", i, v))
		}
		totalOut += v
		if totalOut < 0 || totalOut > wire.MaxSatoshi {
			return ruleError(ErrInvalidTxOutValue, "total transaction output value exceeds max allowed value")
		}
	}

	if !tx.IsCoinBase() {
		seen := make(map[wire.OutPoint]struct{}, len(tx.Inputs))
		for i := range tx.Inputs {
			op := tx.Inputs[i].PreviousOutPoint
			if op.IsNull() {
				return ruleError(ErrNoTxInputs, fmt.Sprintf("transaction input %d has null previous outpoint", i))
			}
			if _, exists := seen[op]; exists {
				return ruleError(ErrDuplicateTxInputs, fmt.Sprintf("transaction references outpoint %v more than once", op))
			}
			seen[op] = struct{}{}
		}
	} else {
		sigLen := len(tx.Inputs[0].SignatureScript)
		if sigLen < 2 || sigLen > 100 {
			return ruleError(ErrNoTxInputs, fmt.Sprintf("coinbase signature script length %d out of range [2, 100]", sigLen))
		}
	}

	return nil
}

// CountSigOps returns the accurate count of legacy signature-verifying
// opcodes in every input and output script of tx, using the "accurate" OP_N
// rule for CHECKMULTISIG (spec.md §4.1).
func CountSigOps(tx *wire.Transaction) int {
	n := 0
	for i := range tx.Inputs {
		n += wire.CountSigOps(tx.Inputs[i].SignatureScript, true)
	}
	for i := range tx.Outputs {
		n += wire.CountSigOps(tx.Outputs[i].Script, true)
	}
	return n
}

// isStopped reports whether stop has fired without blocking.
func isStopped(stop <-chan struct{}) bool {
	if stop == nil {
		return false
	}
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
