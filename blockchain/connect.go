// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"

	"github.com/crypto-coin-world/libbitcoin-blockchain/consensus"
	"github.com/crypto-coin-world/libbitcoin-blockchain/wire"
)

// ConnectBlock performs full consensus validation of a candidate block
// against the UTXO set, given the previous outputs the populator (C3) has
// already resolved (spec.md §4.1, "connect_block"). engine decides
// signature validity for each input; state.Height feeds the BIP-30,
// coinbase-maturity and subsidy checks.
func ConnectBlock(
	params *consensus.ConsensusParams,
	block *wire.Block,
	inputs [][]PopulatedInput,
	reader Reader,
	engine ScriptEngine,
	state *ChainStateData,
) error {
	if err := checkBIP30(params, block, state.Height, reader); err != nil {
		return err
	}

	p2shActive := params.Deployments.Has(consensus.DeploymentP2SH)
	totalSigOps := int64(0)
	totalFees := int64(0)

	for i := range block.Transactions {
		tx := &block.Transactions[i]

		if tx.IsCoinBase() {
			sigOps := int64(wire.CountSigOps(tx.Inputs[0].SignatureScript, true))
			for k := range tx.Outputs {
				sigOps += int64(wire.CountSigOps(tx.Outputs[k].Script, true))
			}
			totalSigOps += sigOps
			if totalSigOps > params.MaxSigOpsPerBlock {
				return ruleError(ErrTooManySigOps, "block exceeds max sigops after accounting for P2SH")
			}
			continue
		}

		var totalIn int64
		for j := range tx.Inputs {
			pi := &inputs[i][j]
			op := tx.Inputs[j].PreviousOutPoint

			if !pi.PrevoutFound || pi.PrevoutSpent {
				return ruleError(ErrMissingTxOut, fmt.Sprintf("transaction %v input %d references missing or already-spent output %v", tx.TxHash(), j, op))
			}

			if pi.PrevoutCoinbase {
				maturity := int32(params.CoinbaseMaturity)
				originHeight := pi.PrevoutHeight
				if originHeight >= 0 && state.Height-originHeight < maturity {
					return ruleError(ErrImmatureSpend, fmt.Sprintf("tried to spend coinbase output %v from height %d at height %d before required maturity of %d blocks", op, originHeight, state.Height, maturity))
				}
			}

			if totalIn += pi.PrevoutValue; totalIn < 0 || totalIn > wire.MaxSatoshi {
				return ruleError(ErrSpendTooHigh, "total input value exceeds max allowed value")
			}

			sigOps := int64(wire.CountSigOps(tx.Inputs[j].SignatureScript, true))
			if p2shActive && wire.IsPayToScriptHash(pi.PrevoutScript) {
				sigOps += int64(countP2SHSigOps(tx.Inputs[j].SignatureScript))
			}
			totalSigOps += sigOps
			if totalSigOps > params.MaxSigOpsPerBlock {
				return ruleError(ErrTooManySigOps, fmt.Sprintf("block exceeds max sigops - got %d, max %d", totalSigOps, params.MaxSigOpsPerBlock))
			}

			if engine != nil && !engine.ValidateConsensus(pi.PrevoutScript, tx, j, block.Header, state.Height) {
				return ruleError(ErrScriptValidation, fmt.Sprintf("signature validation failed for transaction %v input %d", tx.TxHash(), j))
			}
		}

		var totalOut int64
		for k := range tx.Outputs {
			totalOut += tx.Outputs[k].Value
		}

		if totalOut > totalIn {
			return ruleError(ErrSpendTooHigh, fmt.Sprintf("transaction %v outputs %d exceed inputs %d", tx.TxHash(), totalOut, totalIn))
		}
		fee := totalIn - totalOut
		totalFees += fee
		if totalFees < 0 {
			return ruleError(ErrBadFees, "total block fees overflow")
		}
	}

	expectedSubsidy := CalcBlockSubsidy(state.Height, params)
	var coinbaseOut int64
	for k := range block.Transactions[0].Outputs {
		coinbaseOut += block.Transactions[0].Outputs[k].Value
	}
	if coinbaseOut > expectedSubsidy+totalFees {
		return ruleError(ErrBadFees, fmt.Sprintf("coinbase pays %d which exceeds expected subsidy plus fees of %d", coinbaseOut, expectedSubsidy+totalFees))
	}

	return nil
}

// checkBIP30 rejects any transaction, the coinbase included, whose hash collides with
// an existing transaction that still has at least one unspent output,
// unless the candidate height is one of the network's known historical
// exceptions (spec.md §4.1, "BIP-30 duplicate coin check").
func checkBIP30(params *consensus.ConsensusParams, block *wire.Block, height int32, reader Reader) error {
	if !params.Deployments.Has(consensus.DeploymentBIP30) {
		return nil
	}
	if params.IsBIP30Exception(height) {
		return nil
	}
	if params.Deployments.Has(consensus.DeploymentAllowCollisions) {
		return nil
	}
	for i := range block.Transactions {
		tx := &block.Transactions[i]
		h := tx.TxHash()
		exists, err := reader.TransactionExists(h)
		if err != nil {
			return operationError(err)
		}
		if !exists {
			continue
		}
		for k := range tx.Outputs {
			spent, err := reader.IsOutputSpent(wire.OutPoint{Hash: h, Index: uint32(k)})
			if err != nil {
				return operationError(err)
			}
			if !spent {
				return ruleError(ErrDuplicateOrSpent, fmt.Sprintf("transaction %v already exists with unspent outputs", h))
			}
		}
	}
	return nil
}

// countP2SHSigOps decodes the final push of a P2SH signature script (the
// serialized redeem script) and counts its sigops using the accurate OP_N
// rule.
func countP2SHSigOps(sigScript wire.Script) int {
	pushes := lastPush(sigScript)
	if pushes == nil {
		return 0
	}
	return wire.CountSigOps(pushes, true)
}

// lastPush returns the data of the final push-only opcode in script, or
// nil if script is empty or not push-only.
func lastPush(script wire.Script) wire.Script {
	if len(script) == 0 || !wire.IsPushOnly(script) {
		return nil
	}
	var last wire.Script
	for i := 0; i < len(script); {
		op := int(script[i])
		switch {
		case op <= 0x4b:
			start := i + 1
			end := start + op
			if end > len(script) {
				return nil
			}
			last = script[start:end]
			i = end
		case op == wire.OP_PUSHDATA1:
			if i+1 >= len(script) {
				return nil
			}
			n := int(script[i+1])
			start := i + 2
			end := start + n
			if end > len(script) {
				return nil
			}
			last = script[start:end]
			i = end
		case op == wire.OP_PUSHDATA2:
			if i+2 >= len(script) {
				return nil
			}
			n := int(script[i+1]) | int(script[i+2])<<8
			start := i + 3
			end := start + n
			if end > len(script) {
				return nil
			}
			last = script[start:end]
			i = end
		case op == wire.OP_PUSHDATA4:
			if i+4 >= len(script) {
				return nil
			}
			n := int(script[i+1]) | int(script[i+2])<<8 | int(script[i+3])<<16 | int(script[i+4])<<24
			start := i + 5
			end := start + n
			if end > len(script) {
				return nil
			}
			last = script[start:end]
			i = end
		default:
			i++
		}
	}
	return last
}
