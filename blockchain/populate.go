// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/crypto-coin-world/libbitcoin-blockchain/consensus"
	"github.com/crypto-coin-world/libbitcoin-blockchain/dispatch"
	"github.com/crypto-coin-world/libbitcoin-blockchain/wire"
)

// defaultPopulationWorkers is the default fan-out width (B) for input population
// (spec.md §4.3, "partitions a block's inputs across a fixed number of
// worker routines"), grounded on the teacher's parallel validation fan-out
// in core/blockchain/validate.go's checkConnectBlock goroutine pool.
const defaultPopulationWorkers = 8

// PopulatedInput carries everything ConnectBlock needs about a single
// input's previous output, resolved once up front so the connection pass
// itself never blocks on the database (spec.md §4.3).
type PopulatedInput struct {
	PrevoutScript   wire.Script
	PrevoutValue    int64
	PrevoutFound    bool
	PrevoutSpent    bool
	PrevoutCoinbase bool
	PrevoutHeight   int32
}

// BlockPopulator resolves the previous outputs referenced by every
// non-coinbase input in a candidate block (C3).
type BlockPopulator struct {
	reader  Reader
	workers int
	params  *consensus.ConsensusParams
}

// NewBlockPopulator constructs a populator bound to reader, fanning input
// resolution out across workers goroutines (0 or negative selects the
// default). params may be nil, in which case the collision-detecting
// prevout lookup (spec.md §4.3) always runs.
func NewBlockPopulator(reader Reader, workers int, params *consensus.ConsensusParams) *BlockPopulator {
	if workers <= 0 {
		workers = defaultPopulationWorkers
	}
	return &BlockPopulator{reader: reader, workers: workers, params: params}
}

// skipCollisionCheck reports whether the spent-output lookup may be skipped
// as an optimization: when the chain is stale (tip far behind now) or the
// allow_collisions soft fork is live, a duplicate or already-spent prevout
// cannot occur in practice, so the extra round trip is wasted (spec.md §4.3,
// "When the chain is stale ... or the allow_collisions soft fork is active
// and not enforced, the collision-detecting prevout lookup is skipped").
func (p *BlockPopulator) skipCollisionCheck() (bool, error) {
	if p.params != nil && p.params.Deployments.Has(consensus.DeploymentAllowCollisions) {
		return true, nil
	}
	stale, err := p.reader.IsBlocksStale()
	if err != nil {
		return false, err
	}
	return stale, nil
}

// inBlockOutput locates an output produced earlier in the same candidate
// block, so a transaction spending another transaction's output within the
// same block resolves correctly even though neither is visible to the
// database yet (spec.md §4.3, "sees spends made earlier in the same
// candidate branch").
type inBlockOutput struct {
	script wire.Script
	value  int64
}

// Populate resolves every non-coinbase input's previous output across
// block's transactions, fanned out across the populator's worker pool
// (spec.md §4.3). stop is polled for cooperative cancellation; on stop, or
// on the first irrecoverable database error, Populate returns promptly with
// that error and the per-transaction inputs slice is left unusable.
func (p *BlockPopulator) Populate(block *wire.Block, stop <-chan struct{}) ([][]PopulatedInput, error) {
	result := make([][]PopulatedInput, len(block.Transactions))
	for i := range block.Transactions {
		if !block.Transactions[i].IsCoinBase() {
			result[i] = make([]PopulatedInput, len(block.Transactions[i].Inputs))
		}
	}

	inBlock := make(map[wire.OutPoint]inBlockOutput)
	for i := range block.Transactions {
		tx := &block.Transactions[i]
		h := tx.TxHash()
		for k := range tx.Outputs {
			inBlock[wire.OutPoint{Hash: h, Index: uint32(k)}] = inBlockOutput{
				script: tx.Outputs[k].Script,
				value:  tx.Outputs[k].Value,
			}
		}
	}

	type job struct{ txIdx, inIdx int }
	var jobs []job
	for i := range block.Transactions {
		if block.Transactions[i].IsCoinBase() {
			continue
		}
		for j := range block.Transactions[i].Inputs {
			jobs = append(jobs, job{i, j})
		}
	}

	if len(jobs) == 0 {
		return result, nil
	}

	skipSpentCheck, err := p.skipCollisionCheck()
	if err != nil {
		return nil, operationError(err)
	}

	buckets := make([][]job, p.workers)
	for i, jb := range jobs {
		b := i % p.workers
		buckets[b] = append(buckets[b], jb)
	}

	err = dispatch.Parallel(len(buckets), stop, func(b int) error {
		for _, jb := range buckets[b] {
			if isStopped(stop) {
				return ErrStopped
			}
			in := &block.Transactions[jb.txIdx].Inputs[jb.inIdx]
			op := in.PreviousOutPoint

			if local, ok := inBlock[op]; ok {
				result[jb.txIdx][jb.inIdx] = PopulatedInput{
					PrevoutFound:  true,
					PrevoutScript: local.script,
					PrevoutValue:  local.value,
					PrevoutHeight: -1,
				}
				continue
			}

			out, found, err := p.reader.PopulateOutput(op)
			if err != nil {
				return operationError(err)
			}

			pi := PopulatedInput{PrevoutFound: found}
			if found {
				pi.PrevoutScript = out.Script
				pi.PrevoutValue = out.Value

				if !skipSpentCheck {
					spentBefore, err := p.reader.IsOutputSpent(op)
					if err != nil {
						return operationError(err)
					}
					pi.PrevoutSpent = spentBefore
				}

				_, confirmedHeight, isCoinbase, err := p.reader.PopulateTransaction(op.Hash)
				if err != nil {
					return operationError(err)
				}
				pi.PrevoutCoinbase = isCoinbase
				pi.PrevoutHeight = confirmedHeight
			}

			result[jb.txIdx][jb.inIdx] = pi
		}
		return nil
	})
	if err != nil {
		if isStopped(stop) {
			return nil, ErrStopped
		}
		return nil, err
	}
	return result, nil
}

