// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package consensus packages the network-wide constants the validator,
// organizer, and mempool are parameterized over, so mainnet/testnet/regtest
// never require process-wide globals.
package consensus

import (
	"math/big"
	"time"

	"github.com/crypto-coin-world/libbitcoin-blockchain/chainhash"
)

// DeploymentFlag is a bitmask selecting which soft-fork rules are live.
type DeploymentFlag uint32

const (
	// DeploymentP2SH activates BIP-16 pay-to-script-hash evaluation.
	DeploymentP2SH DeploymentFlag = 1 << iota
	// DeploymentBIP30 activates the duplicate-transaction-id check.
	DeploymentBIP30
	// DeploymentBIP34 requires the coinbase height push and version>=2.
	DeploymentBIP34
	// DeploymentBIP65 activates CHECKLOCKTIMEVERIFY.
	DeploymentBIP65
	// DeploymentBIP66 activates strict DER signature encoding.
	DeploymentBIP66
	// DeploymentCSV activates BIP-68/112/113 relative lock-time rules.
	DeploymentCSV
	// DeploymentSegWit activates BIP-141 witness accounting.
	DeploymentSegWit
	// DeploymentAllowCollisions relaxes the BIP-30 duplicate-coin check,
	// treating it as an optimization hint rather than a hard rule (see
	// spec.md §4.3's "allow_collisions soft fork").
	DeploymentAllowCollisions
)

// Has reports whether every bit in want is set in f.
func (f DeploymentFlag) Has(want DeploymentFlag) bool {
	return f&want == want
}

// Checkpoint is a hard-coded (height, hash) pair used to reject forks that
// would rewrite history before it and to bound claimed difficulty.
type Checkpoint struct {
	Height int32
	Hash   chainhash.Hash
}

// ConsensusParams is the constant value passed to every constructor that
// needs network parameters (spec.md Design Notes, "Global state").
type ConsensusParams struct {
	Name string

	GenesisHash chainhash.Hash

	// PowLimitBits is the compact-form minimum difficulty (maximum
	// target) permitted on this network.
	PowLimitBits uint32
	// PowLimit is the same value as a big.Int, precomputed to avoid
	// repeated compact-to-big conversions on the hot path.
	PowLimit *big.Int

	// RetargetInterval is the number of blocks between difficulty
	// adjustments (2016 on mainnet).
	RetargetInterval int32
	// TargetTimespan is the intended duration, in seconds, of one
	// retarget interval (1,209,600 = 2 weeks on mainnet).
	TargetTimespan int64
	// TargetTimePerBlock is the intended spacing, in seconds, between
	// blocks (600 on mainnet).
	TargetTimePerBlock int64
	// RetargetAdjustmentFactor bounds how much the new target may differ
	// from the old one in a single retarget (4x on mainnet).
	RetargetAdjustmentFactor int64

	// ReduceMinDifficulty enables the "20-minute exception": once this
	// much time has elapsed without a block, the next block may claim
	// the network minimum difficulty. Resolves spec.md §9's testnet
	// open question as a parameter rather than a build-time toggle.
	ReduceMinDifficulty  bool
	MinDiffReductionTime time.Duration

	// SubsidyReductionInterval is the number of blocks between coinbase
	// subsidy halvings.
	SubsidyReductionInterval int64
	// BaseSubsidy is the block 1 coinbase subsidy, in satoshis.
	BaseSubsidy int64

	// CoinbaseMaturity is the number of confirmations a coinbase output
	// must have before it may be spent.
	CoinbaseMaturity int32

	// BIP34Height is the height at which block.version>=2 and the
	// coinbase-height push become mandatory.
	BIP34Height int32

	// BIP30ExceptionHeights are the two historical heights (91842,
	// 91880 on mainnet) at which a duplicate, not-fully-spent coinbase
	// is tolerated.
	BIP30ExceptionHeights []int32

	// MaxBlockSize is the maximum serialized block size in bytes.
	MaxBlockSize int64
	// MaxSigOpsPerBlock is the maximum legacy-counted signature
	// operations permitted per block.
	MaxSigOpsPerBlock int64

	// MaxTimeOffsetSeconds bounds how far a block's timestamp may sit
	// ahead of the validator's adjusted current time.
	MaxTimeOffsetSeconds int64

	// Deployments selects which soft-fork rules are live.
	Deployments DeploymentFlag

	// Checkpoints is the ordered list of (height, hash) pairs consulted
	// by AcceptBlock and the chain-state populator.
	Checkpoints []Checkpoint
}

// Checkpoint looks up the checkpoint at the given height, if any.
func (p *ConsensusParams) Checkpoint(height int32) (Checkpoint, bool) {
	for _, c := range p.Checkpoints {
		if c.Height == height {
			return c, true
		}
	}
	return Checkpoint{}, false
}

// LatestCheckpoint returns the highest checkpoint at or below height, if
// any, used to reject forks attempting to rewrite history before it.
func (p *ConsensusParams) LatestCheckpoint(height int32) (Checkpoint, bool) {
	best, ok := Checkpoint{}, false
	for _, c := range p.Checkpoints {
		if c.Height <= height && (!ok || c.Height > best.Height) {
			best, ok = c, true
		}
	}
	return best, ok
}

// IsBIP30Exception reports whether height is one of the two historical
// BIP-30 exception heights.
func (p *ConsensusParams) IsBIP30Exception(height int32) bool {
	for _, h := range p.BIP30ExceptionHeights {
		if h == height {
			return true
		}
	}
	return false
}

// MainNetParams returns the Bitcoin-mainnet-compatible consensus
// parameters, grounded on params/params_mainnet.go.
func MainNetParams() *ConsensusParams {
	powLimit := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 224), big.NewInt(1))
	return &ConsensusParams{
		Name:                     "mainnet",
		PowLimitBits:             0x1d00ffff,
		PowLimit:                 powLimit,
		RetargetInterval:         2016,
		TargetTimespan:           14 * 24 * 60 * 60,
		TargetTimePerBlock:       10 * 60,
		RetargetAdjustmentFactor: 4,
		ReduceMinDifficulty:      false,
		SubsidyReductionInterval: 210000,
		BaseSubsidy:              50 * 1e8,
		CoinbaseMaturity:         100,
		BIP34Height:              237370,
		BIP30ExceptionHeights:    []int32{91842, 91880},
		MaxBlockSize:             1000000,
		MaxSigOpsPerBlock:        20000,
		MaxTimeOffsetSeconds:     2 * 60 * 60,
		Deployments: DeploymentP2SH | DeploymentBIP30 | DeploymentBIP34 |
			DeploymentBIP65 | DeploymentBIP66 | DeploymentCSV,
		Checkpoints: nil,
	}
}

// TestNetParams returns testnet consensus parameters, enabling the
// 20-minute minimum-difficulty exception.
func TestNetParams() *ConsensusParams {
	p := MainNetParams()
	p.Name = "testnet"
	p.ReduceMinDifficulty = true
	p.MinDiffReductionTime = 20 * time.Minute
	p.BIP30ExceptionHeights = nil
	return p
}

// RegTestParams returns regression-test consensus parameters: minimal
// difficulty, no checkpoints, no BIP-30 exceptions, and the mainnet
// 2016-block retarget interval, with the 20-minute minimum-difficulty
// exception enabled.
func RegTestParams() *ConsensusParams {
	powLimit := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	return &ConsensusParams{
		Name:                     "regtest",
		PowLimitBits:             0x207fffff,
		PowLimit:                 powLimit,
		RetargetInterval:         2016,
		TargetTimespan:           14 * 24 * 60 * 60,
		TargetTimePerBlock:       10 * 60,
		RetargetAdjustmentFactor: 4,
		ReduceMinDifficulty:      true,
		MinDiffReductionTime:     20 * time.Minute,
		SubsidyReductionInterval: 150,
		BaseSubsidy:              50 * 1e8,
		CoinbaseMaturity:         100,
		BIP34Height:              0,
		MaxBlockSize:             1000000,
		MaxSigOpsPerBlock:        20000,
		MaxTimeOffsetSeconds:     2 * 60 * 60,
		Deployments: DeploymentP2SH | DeploymentBIP30 | DeploymentBIP34 |
			DeploymentBIP65 | DeploymentBIP66 | DeploymentCSV,
	}
}
