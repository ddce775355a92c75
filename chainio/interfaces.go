// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainio defines the external interfaces this core consumes: the
// blockchain database (spec.md §6 "Database interface") and the script
// consensus oracle. Both are treated as pure collaborators — no concrete
// storage or script-interpreter implementation lives in this module.
package chainio

import (
	"math/big"
	"time"

	"github.com/crypto-coin-world/libbitcoin-blockchain/chainhash"
	"github.com/crypto-coin-world/libbitcoin-blockchain/wire"
)

// Reader is the thread-safe, non-blocking read surface of the blockchain
// database, grounded on the teacher's populate_header/populate_transaction/
// populate_output database calls (core/blockchain/dbhelper.go).
type Reader interface {
	// BlockHeight returns the height of the block with the given hash in
	// the stored chain, if present.
	BlockHeight(hash chainhash.Hash) (height int32, found bool, err error)
	// BlockHashByHeight returns the hash of the stored-chain block at
	// height.
	BlockHashByHeight(height int32) (chainhash.Hash, error)
	// HeaderBits returns the compact difficulty bits of the header with
	// the given hash.
	HeaderBits(hash chainhash.Hash) (uint32, error)
	// HeaderTimestamp returns the timestamp of the header with the given
	// hash.
	HeaderTimestamp(hash chainhash.Hash) (time.Time, error)
	// HeaderVersion returns the version field of the header with the
	// given hash.
	HeaderVersion(hash chainhash.Hash) (int32, error)
	// CumulativeWork returns the cumulative proof-of-work above
	// aboveHeight in the stored chain, clamped to blocks whose bits are
	// no easier than maximumBits (used to bound easiest-difficulty
	// checks against a checkpoint).
	CumulativeWork(maximumBits uint32, aboveHeight int32) (*big.Int, error)
	// BlockError returns the recorded validation error for a
	// previously-rejected block hash, if any.
	BlockError(hash chainhash.Hash) (err error, found bool)
	// TransactionError returns the recorded validation error for a
	// previously-rejected transaction hash, if any.
	TransactionError(hash chainhash.Hash) (err error, found bool)
	// PopulateHeader returns the full header for the given hash.
	PopulateHeader(hash chainhash.Hash) (wire.Header, error)
	// PopulateTransaction returns the full transaction for the given
	// hash, the height at which it confirmed, and whether it is a
	// coinbase.
	PopulateTransaction(hash chainhash.Hash) (tx wire.Transaction, confirmedHeight int32, isCoinbase bool, err error)
	// PopulateOutput returns the output referenced by op along with
	// whether it exists.
	PopulateOutput(op wire.OutPoint) (out wire.Output, found bool, err error)
	// IsOutputSpent reports whether op has already been spent in the
	// stored chain.
	IsOutputSpent(op wire.OutPoint) (bool, error)
	// TransactionExists reports whether a transaction with the given
	// hash is present anywhere in the stored chain (used for the BIP-30
	// duplicate-coin check).
	TransactionExists(hash chainhash.Hash) (bool, error)
	// IsBlocksStale reports whether the stored chain's tip timestamp is
	// older than the configured staleness threshold.
	IsBlocksStale() (bool, error)
	// IsHeadersStale reports the same for the header-only chain, when
	// the node is running in headers-first mode.
	IsHeadersStale() (bool, error)
}

// Writer is the mutating surface of the blockchain database. Only the
// organizer (C5) invokes Reorganize; no component in this module invokes
// Push.
type Writer interface {
	// Push appends a validated, currently-unconfirmed transaction.
	Push(tx wire.Transaction) error
	// Reorganize atomically swaps the header branch above forkPoint,
	// detaching outgoing and attaching incoming.
	Reorganize(forkPoint int32, incoming, outgoing []wire.Block) error
}

// Database is the full external collaborator surface (spec.md §6).
type Database interface {
	Reader
	Writer
}

// ScriptEngine is the script-consensus oracle: a pure function deciding
// whether a spending transaction's input satisfies the referenced
// output's script under the given block context.
type ScriptEngine interface {
	ValidateConsensus(prevoutScript wire.Script, tx *wire.Transaction, inputIndex int, header wire.Header, height int32) bool
}

// ReorganizeEvent is the payload delivered to a Subscriber: the fork point
// height plus the blocks that became and stopped being part of the best
// chain.
type ReorganizeEvent struct {
	ForkPointHeight int32
	Incoming        []wire.Block
	Outgoing        []wire.Block
}

// Subscriber receives one-shot reorganize notifications: after each call
// the subscriber must re-subscribe via SubscribeReorganize to keep
// receiving further events (spec.md §6, "one-shot semantics").
type Subscriber func(event ReorganizeEvent, err error)

// Notifier is the provided subscribe interface (spec.md §6).
type Notifier interface {
	SubscribeReorganize(handler Subscriber)
}

// Configuration is the set of recognized options (spec.md §6). It is a
// plain value, never a package-level global.
type Configuration struct {
	// NotifyLimitHours is the number of hours of no new tip after which
	// the chain is considered stale.
	NotifyLimitHours int
	// MempoolCapacity is the maximum number of transactions the mempool
	// (C6) may hold at once.
	MempoolCapacity int
}
