// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import "github.com/crypto-coin-world/libbitcoin-blockchain/consensus"

// CalcBlockSubsidy returns the block reward at height: the network's base
// subsidy halved once per SubsidyReductionInterval, floored at zero once it
// would halve past the smallest representable unit (spec.md §4.1, "coinbase
// value <= subsidy(height) + fees").
func CalcBlockSubsidy(height int32, params *consensus.ConsensusParams) int64 {
	if params.SubsidyReductionInterval <= 0 {
		return params.BaseSubsidy
	}
	halvings := int64(height) / params.SubsidyReductionInterval
	if halvings >= 64 {
		return 0
	}
	return params.BaseSubsidy >> uint(halvings)
}
