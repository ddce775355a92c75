// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/crypto-coin-world/libbitcoin-blockchain/consensus"
)

// Config bundles the value-type dependencies a Mempool needs at
// construction, mirroring the organizer's preference for an explicit
// consensus_params value over process-wide globals (spec.md §9 "Global
// state").
type Config struct {
	Params   *consensus.ConsensusParams
	Capacity int
}
