// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"sort"

	"github.com/crypto-coin-world/libbitcoin-blockchain/chainhash"
	"github.com/crypto-coin-world/libbitcoin-blockchain/consensus"
	"github.com/crypto-coin-world/libbitcoin-blockchain/wire"
)

// medianTimeBlocks is the number of previous blocks used to calculate the
// median time past used to validate block timestamps.
const medianTimeBlocks = 11

// ancestorVersionWindow is the number of ancestor versions retained for
// soft-fork majority evaluation (spec.md §3 ChainStateData "versions[N_ver]").
const ancestorVersionWindow = 100

// ChainStateData is the immutable context a validator needs at a candidate
// height, built once by the chain-state populator (C2) and shared across
// the three validation phases (spec.md §3, §4.2).
type ChainStateData struct {
	Height int32
	Hash   chainhash.Hash

	// AncestorBits holds the bits of the immediately preceding block
	// (index 0) needed for the retarget formula.
	AncestorBits []uint32
	// AncestorVersions holds up to ancestorVersionWindow immediately
	// preceding header versions, most recent first.
	AncestorVersions []int32
	// AncestorTimestamps holds up to medianTimeBlocks immediately
	// preceding header timestamps, most recent first, used for
	// median-time-past.
	AncestorTimestamps []int64

	// RetargetBaseTimestamp is the timestamp of the ancestor
	// params.RetargetInterval blocks back, populated only when Height is
	// a retarget boundary.
	RetargetBaseTimestamp int64

	// CheckpointHash is the hash a checkpoint at this height expects, if
	// any.
	CheckpointHash *chainhash.Hash
}

// MedianTimePast returns the median of the ancestor timestamp window.
func (c *ChainStateData) MedianTimePast() int64 {
	if len(c.AncestorTimestamps) == 0 {
		return 0
	}
	sorted := append([]int64(nil), c.AncestorTimestamps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[len(sorted)/2]
}

// headerSource resolves headers either from an in-flight branch (blocks
// already appended above the stored tip but not yet confirmed) or falling
// back to the stored chain database, so a chain-state query for a fork in
// progress sees its own not-yet-committed ancestors (spec.md §4.2,
// "transparently falls back from the branch to the stored database").
type headerSource struct {
	reader Reader
	// branch maps height -> header for blocks appended above the stored
	// tip that have not yet been confirmed via Reorganize.
	branch map[int32]wire.Header
}

func newHeaderSource(reader Reader, branch []wire.Block, branchBaseHeight int32) *headerSource {
	hs := &headerSource{reader: reader, branch: make(map[int32]wire.Header, len(branch))}
	for i, blk := range branch {
		hs.branch[branchBaseHeight+int32(i)+1] = blk.Header
	}
	return hs
}

func (hs *headerSource) headerAt(height int32) (wire.Header, error) {
	if h, ok := hs.branch[height]; ok {
		return h, nil
	}
	hash, err := hs.reader.BlockHashByHeight(height)
	if err != nil {
		return wire.Header{}, err
	}
	return hs.reader.PopulateHeader(hash)
}

// ChainStatePopulator builds ChainStateData for a candidate height (C2).
type ChainStatePopulator struct {
	params *consensus.ConsensusParams
	reader Reader
}

// NewChainStatePopulator constructs a populator bound to the given
// consensus parameters and database reader.
func NewChainStatePopulator(params *consensus.ConsensusParams, reader Reader) *ChainStatePopulator {
	return &ChainStatePopulator{params: params, reader: reader}
}

// Populate gathers the ancestor windows needed to validate a candidate at
// height, whose previous hash is prevHash. branch is the (possibly empty)
// sequence of not-yet-confirmed blocks already appended above the stored
// tip, ordered oldest-first, ending at the candidate's parent;
// branchBaseHeight is the height of the block immediately before branch[0].
//
// Missing ancestor data is treated as a failure per spec.md §4.2 ("the
// request is abandoned").
func (p *ChainStatePopulator) Populate(height int32, prevHash chainhash.Hash, branch []wire.Block, branchBaseHeight int32) (*ChainStateData, error) {
	hs := newHeaderSource(p.reader, branch, branchBaseHeight)

	data := &ChainStateData{Height: height, Hash: prevHash}

	if height > 0 {
		prevBits, err := p.lookupBits(hs, height-1, prevHash)
		if err != nil {
			return nil, operationError(err)
		}
		data.AncestorBits = []uint32{prevBits}
	}

	verWindow := ancestorVersionWindow
	for i := int32(0); i < int32(verWindow) && height-1-i >= 0; i++ {
		h, err := hs.headerAt(height - 1 - i)
		if err != nil {
			return nil, operationError(err)
		}
		data.AncestorVersions = append(data.AncestorVersions, h.Version)
	}

	for i := int32(0); i < medianTimeBlocks && height-1-i >= 0; i++ {
		h, err := hs.headerAt(height - 1 - i)
		if err != nil {
			return nil, operationError(err)
		}
		data.AncestorTimestamps = append(data.AncestorTimestamps, h.Timestamp.Unix())
	}

	// Retarget base timestamp is fetched only on a difficulty boundary
	// (spec.md §4.2, "fetched only when the next height is a difficulty
	// boundary").
	if height > 0 && height%p.params.RetargetInterval == 0 {
		baseHeight := height - p.params.RetargetInterval
		h, err := hs.headerAt(baseHeight)
		if err != nil {
			return nil, operationError(err)
		}
		data.RetargetBaseTimestamp = h.Timestamp.Unix()
	}

	// Checkpoint-agreement hash is fetched only when configured
	// (spec.md §4.2).
	if cp, ok := p.params.Checkpoint(height); ok {
		h := cp.Hash
		data.CheckpointHash = &h
	}

	return data, nil
}

func (p *ChainStatePopulator) lookupBits(hs *headerSource, height int32, hash chainhash.Hash) (uint32, error) {
	if h, ok := hs.branch[height]; ok {
		return h.Bits, nil
	}
	return p.reader.HeaderBits(hash)
}
