// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/crypto-coin-world/libbitcoin-blockchain/chainhash"
	"github.com/crypto-coin-world/libbitcoin-blockchain/chainio"
	"github.com/crypto-coin-world/libbitcoin-blockchain/consensus"
	"github.com/crypto-coin-world/libbitcoin-blockchain/dispatch"
	"github.com/crypto-coin-world/libbitcoin-blockchain/log"
	"github.com/crypto-coin-world/libbitcoin-blockchain/wire"
)

// organizerQueue is the dispatcher owner key serializing all organizer
// intake, so no two reorganizations are ever in flight at once (spec.md §5,
// "at most one reorganization is in flight at any time").
const organizerQueue = "organizer"

// organizerState is the Stopped/Running state machine (spec.md §4.5).
type organizerState int32

const (
	stateStopped organizerState = iota
	stateRunning
)

// Organizer is the single writer to the stored chain (C5): it drives the
// intake pipeline (check -> accept/connect -> replace_chain -> notify) and
// owns the orphan pool, grounded on the teacher's blockManager.processBlock
// plus core/blockchain.connectBestChain.
type Organizer struct {
	params         *consensus.ConsensusParams
	reader         Reader
	writer         Writer
	engine         ScriptEngine
	orphans        *OrphanPool
	statePopulator *ChainStatePopulator
	blockPopulator *BlockPopulator
	disp           *dispatch.Dispatcher
	log            log.Logger
	now            func() time.Time

	mu    sync.Mutex
	state organizerState
	stop  chan struct{}

	// chain mirrors the organizer's own view of the best chain's block
	// bodies by height, since the abstract Reader surface only exposes
	// header-level queries (spec.md §6).
	chain     map[int32]wire.Block
	tipHeight int32
	tipHash   chainhash.Hash

	subsMu      sync.Mutex
	subscribers []chainio.Subscriber
}

// NewOrganizer constructs an organizer seeded with a genesis block already
// considered part of the stored chain at height 0.
func NewOrganizer(
	params *consensus.ConsensusParams,
	reader Reader,
	writer Writer,
	engine ScriptEngine,
	genesis wire.Block,
	logger log.Logger,
) *Organizer {
	if logger == nil {
		logger = log.Disabled
	}
	o := &Organizer{
		params:         params,
		reader:         reader,
		writer:         writer,
		engine:         engine,
		orphans:        NewOrphanPool(0),
		statePopulator: NewChainStatePopulator(params, reader),
		blockPopulator: NewBlockPopulator(reader, 0, params),
		disp:           dispatch.New(),
		log:            logger,
		now:            time.Now,
		chain:          map[int32]wire.Block{0: genesis},
		tipHeight:      0,
		tipHash:        genesis.BlockHash(),
	}
	return o
}

// Start transitions the organizer from Stopped to Running, accepting
// intake.
func (o *Organizer) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == stateRunning {
		return
	}
	o.state = stateRunning
	o.stop = make(chan struct{})
}

// Stop transitions the organizer to Stopped, signaling every in-flight
// validator to short-circuit and rejecting subsequent intake with
// ErrStopped (spec.md §4.5, §5).
func (o *Organizer) Stop() {
	o.mu.Lock()
	if o.state == stateStopped {
		o.mu.Unlock()
		return
	}
	o.state = stateStopped
	close(o.stop)
	o.mu.Unlock()

	o.disp.Stop()
}

func (o *Organizer) stopSignal() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stop
}

func (o *Organizer) isRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == stateRunning
}

// SubscribeReorganize registers handler to receive the next reorganize
// event. Per one-shot semantics (spec.md §6), handler must call
// SubscribeReorganize again if it wants to see further events.
func (o *Organizer) SubscribeReorganize(handler chainio.Subscriber) {
	o.subsMu.Lock()
	defer o.subsMu.Unlock()
	o.subscribers = append(o.subscribers, handler)
}

func (o *Organizer) notify(event chainio.ReorganizeEvent, err error) {
	o.subsMu.Lock()
	subs := o.subscribers
	o.subscribers = nil
	o.subsMu.Unlock()

	for _, sub := range subs {
		sub(event, err)
	}
}

// Submit hands block to the organizer's ordered intake queue and blocks
// until it has been fully processed (spec.md §4.5 steps 1-8). The returned
// error is nil both when the block is successfully organized into the best
// chain and when it is merely parked in the orphan pool awaiting a parent,
// or retained there because its chain is not heavier than the stored one.
// It is non-nil when check_block rejects the block, when the chain it
// completes forks below a checkpoint (ErrForkTooOld), when any block of
// that chain fails accept_block or connect_block, when the service is
// stopped, or when a database error occurs. A database error
// (OperationError) is fatal: Submit stops the organizer and notifies
// subscribers with ErrStopped before returning it.
func (o *Organizer) Submit(block wire.Block) error {
	if !o.isRunning() {
		return ErrStopped
	}

	result := make(chan error, 1)
	o.disp.Ordered(organizerQueue, func() {
		result <- o.process(block)
	})
	err := <-result
	var opErr OperationError
	if errors.As(err, &opErr) {
		o.Stop()
		o.notify(chainio.ReorganizeEvent{}, ErrStopped)
	}
	return err
}

func (o *Organizer) process(block wire.Block) error {
	if !o.isRunning() {
		return ErrStopped
	}
	stop := o.stopSignal()

	if err := CheckBlock(o.params, &block, o.now(), stop); err != nil {
		o.log.Debug("rejected block at check_block", "hash", block.BlockHash(), "err", err)
		return err
	}

	o.orphans.Insert(block)

	tipOfArrival := block.BlockHash()
	if descendants := o.orphans.ExtendForward(tipOfArrival); len(descendants) > 0 {
		tipOfArrival = descendants[len(descendants)-1].BlockHash()
	}

	chain := o.orphans.TakeChainTo(tipOfArrival, o.isInStoredChainLocked)
	if chain == nil {
		// Parent still unknown; block (and any already-parked
		// descendants) remain parked.
		return nil
	}

	forkHeight, found, err := o.reader.BlockHeight(chain[0].Header.PreviousHash)
	if err != nil {
		return operationError(err)
	}
	if !found {
		// Should not happen: TakeChainTo only terminates at a hash the
		// stored-chain predicate accepted.
		return operationError(fmt.Errorf("fork point %v vanished from stored chain", chain[0].Header.PreviousHash))
	}

	if err := VerifyCheckpointFork(o.params, o.TipHeight(), forkHeight); err != nil {
		for i := range chain {
			o.orphans.RemoveSubtree(chain[i].BlockHash())
		}
		return err
	}

	orphanWork := big.NewInt(0)
	for i := range chain {
		orphanWork.Add(orphanWork, workFromBits(chain[i].Header.Bits))
	}
	storedWork, err := o.reader.CumulativeWork(o.params.PowLimitBits, forkHeight)
	if err != nil {
		return operationError(err)
	}

	if orphanWork.Cmp(storedWork) <= 0 {
		// Not heavier: retain as orphans for a future heavier sibling.
		for i := range chain {
			o.orphans.Insert(chain[i])
		}
		return nil
	}

	validated, err := o.validateChain(chain, forkHeight, stop)
	if err != nil {
		// Any failure aborts the whole switch: spec §4.5 step 6 and §2
		// require every block in the candidate chain to validate before
		// any of it is committed. Committing the validated prefix here
		// would let a chain lighter than the stored chain above
		// forkHeight replace it, violating the heaviest-chain invariant
		// the orphanWork/storedWork comparison above was meant to
		// enforce.
		return err
	}

	return o.replaceChain(forkHeight, validated)
}

// isInStoredChainLocked reports whether hash identifies a block in the
// organizer's own view of the best chain.
func (o *Organizer) isInStoredChainLocked(hash chainhash.Hash) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return hash.IsEqual(&o.tipHash) || hashAtAnyTrackedHeight(o.chain, hash)
}

func hashAtAnyTrackedHeight(chain map[int32]wire.Block, hash chainhash.Hash) bool {
	for _, b := range chain {
		h := b.BlockHash()
		if h.IsEqual(&hash) {
			return true
		}
	}
	return false
}

// validateChain runs accept_block then connect_block over chain in height
// order, stopping at the first failure and evicting the failing block (and
// its parked descendants) from the orphan pool (spec.md §4.5 step 6). It
// returns the validated prefix alongside any error; the caller discards the
// prefix on error rather than committing a partial, possibly-lighter-than-
// stored chain.
func (o *Organizer) validateChain(chain []wire.Block, forkHeight int32, stop <-chan struct{}) ([]wire.Block, error) {
	branch := make([]wire.Block, 0, len(chain))
	prevHash := chain[0].Header.PreviousHash

	for i := range chain {
		if isStopped(stop) {
			return branch, ErrStopped
		}

		height := forkHeight + int32(i) + 1
		state, err := o.statePopulator.Populate(height, prevHash, branch, forkHeight)
		if err != nil {
			o.evictFailed(chain[i].BlockHash(), err)
			return branch, err
		}
		state.Hash = chain[i].BlockHash()

		if err := AcceptBlock(o.params, &chain[i], state); err != nil {
			o.evictFailed(chain[i].BlockHash(), err)
			return branch, err
		}

		inputs, err := o.blockPopulator.Populate(&chain[i], stop)
		if err != nil {
			o.evictFailed(chain[i].BlockHash(), err)
			return branch, err
		}

		if err := ConnectBlock(o.params, &chain[i], inputs, o.reader, o.engine, state); err != nil {
			o.evictFailed(chain[i].BlockHash(), err)
			return branch, err
		}

		branch = append(branch, chain[i])
		prevHash = chain[i].BlockHash()
	}

	return branch, nil
}

func (o *Organizer) evictFailed(hash chainhash.Hash, err error) {
	o.log.Debug("rejected orphan chain block", "hash", hash, "err", err)
	o.orphans.RemoveSubtree(hash)
}

// replaceChain detaches the stored chain above forkHeight, returning those
// blocks to the orphan pool, then attaches incoming above forkHeight,
// atomically from the point of view of readers (spec.md §4.5 steps 7-8).
func (o *Organizer) replaceChain(forkHeight int32, incoming []wire.Block) error {
	o.mu.Lock()
	var outgoing []wire.Block
	for h := o.tipHeight; h > forkHeight; h-- {
		if b, ok := o.chain[h]; ok {
			outgoing = append([]wire.Block{b}, outgoing...)
		}
	}
	o.mu.Unlock()

	if err := o.writer.Reorganize(forkHeight, incoming, outgoing); err != nil {
		return operationError(err)
	}

	o.mu.Lock()
	for h := o.tipHeight; h > forkHeight; h-- {
		delete(o.chain, h)
	}
	for i, b := range incoming {
		o.chain[forkHeight+int32(i)+1] = b
	}
	o.tipHeight = forkHeight + int32(len(incoming))
	o.tipHash = incoming[len(incoming)-1].BlockHash()
	o.mu.Unlock()

	for i := range outgoing {
		o.orphans.Insert(outgoing[i])
	}

	o.notify(chainio.ReorganizeEvent{
		ForkPointHeight: forkHeight,
		Incoming:        incoming,
		Outgoing:        outgoing,
	}, nil)
	return nil
}

// TipHeight returns the organizer's current best-chain height.
func (o *Organizer) TipHeight() int32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tipHeight
}

// TipHash returns the organizer's current best-chain tip hash.
func (o *Organizer) TipHash() chainhash.Hash {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tipHash
}

var workLimit = new(big.Int).Lsh(big.NewInt(1), 256)

// workFromBits converts a compact target into the amount of proof-of-work
// represented by a single block at that difficulty: floor(2^256 /
// (target+1)), the conventional cumulative-work measure (spec.md §4.1,
// grounded on the teacher's CalcWork in core/blockchain/chainwork.go).
func workFromBits(bits uint32) *big.Int {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	denom := new(big.Int).Add(target, bigOne)
	work := new(big.Int).Div(workLimit, denom)
	return work
}
