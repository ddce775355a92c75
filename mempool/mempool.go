// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mempool implements the bounded FIFO buffer of validated
// unconfirmed transactions (C6), reactive to chain reorganizations
// published by the organizer (spec.md §4.6).
package mempool

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/crypto-coin-world/libbitcoin-blockchain/blockchain"
	"github.com/crypto-coin-world/libbitcoin-blockchain/chainhash"
	"github.com/crypto-coin-world/libbitcoin-blockchain/chainio"
	"github.com/crypto-coin-world/libbitcoin-blockchain/dispatch"
	"github.com/crypto-coin-world/libbitcoin-blockchain/wire"
)

// mempoolQueue is the dispatcher owner key every mempool operation runs
// through, making the buffer effectively single-writer (spec.md §4.6, §5).
const mempoolQueue = "mempool"

// ConfirmCallback is invoked exactly once per entry: with a nil error when
// the entry confirms normally, or with a mempool Error (ErrPoolFilled,
// ErrBlockchainReorganized) when it is evicted for another reason.
type ConfirmCallback func(err error)

// Entry is a single buffered unconfirmed transaction (spec.md §3
// "MempoolEntry").
type Entry struct {
	Hash      chainhash.Hash
	Tx        wire.Transaction
	OnConfirm ConfirmCallback
}

// Mempool is the fixed-capacity circular buffer of validated unconfirmed
// transactions.
type Mempool struct {
	cfg    Config
	reader chainio.Reader
	engine chainio.ScriptEngine
	disp   *dispatch.Dispatcher

	mu        sync.Mutex
	buffer    *list.List // front = oldest
	byHash    map[chainhash.Hash]*list.Element
	tipHeight int32
}

// New constructs an empty mempool bound to reader (for confirmed-chain
// lookups) and engine (for input script consensus). disp is the shared
// dispatcher whose ordered queue serializes every operation; a nil disp
// creates a private dispatcher.
func New(cfg Config, reader chainio.Reader, engine chainio.ScriptEngine, disp *dispatch.Dispatcher) *Mempool {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 5000
	}
	if disp == nil {
		disp = dispatch.New()
	}
	return &Mempool{
		cfg:    cfg,
		reader: reader,
		engine: engine,
		disp:   disp,
		buffer: list.New(),
		byHash: make(map[chainhash.Hash]*list.Element),
	}
}

// Validate runs the transaction-level checks against the current chain
// state plus the buffer's own contents, allowing inputs that reference
// other still-unconfirmed buffered transactions (spec.md §4.6 "validate").
// On success it returns the indices of inputs whose referenced output was
// unconfirmed-but-present in the buffer.
func (m *Mempool) Validate(tx *wire.Transaction) ([]int, error) {
	result := make(chan struct {
		idx []int
		err error
	}, 1)
	m.disp.Ordered(mempoolQueue, func() {
		idx, err := m.validateLocked(tx)
		result <- struct {
			idx []int
			err error
		}{idx, err}
	})
	r := <-result
	return r.idx, r.err
}

func (m *Mempool) validateLocked(tx *wire.Transaction) ([]int, error) {
	if err := blockchain.CheckTransactionSanity(tx); err != nil {
		return nil, err
	}

	if exists, err := m.reader.TransactionExists(tx.TxHash()); err != nil {
		return nil, err
	} else if exists {
		return nil, mempoolError(ErrAlreadyConfirmed, "transaction already confirmed")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var unconfirmed []int
	var totalIn int64

	for i := range tx.Inputs {
		op := tx.Inputs[i].PreviousOutPoint

		if out, ok := m.findBufferedOutputLocked(op); ok {
			unconfirmed = append(unconfirmed, i)
			totalIn += out.Value
			continue
		}

		out, found, err := m.reader.PopulateOutput(op)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, inputError(ErrInputNotFound, i, fmt.Sprintf("input %d references unknown output %v", i, op))
		}
		spent, err := m.reader.IsOutputSpent(op)
		if err != nil {
			return nil, err
		}
		if spent {
			return nil, inputError(ErrInputNotFound, i, fmt.Sprintf("input %d references already-spent output %v", i, op))
		}

		if m.engine != nil && !m.engine.ValidateConsensus(out.Script, tx, i, wire.Header{}, m.tipHeight+1) {
			return nil, inputError(ErrValidateInputsFailed, i, fmt.Sprintf("input %d failed script validation", i))
		}

		totalIn += out.Value
	}

	var totalOut int64
	for i := range tx.Outputs {
		totalOut += tx.Outputs[i].Value
	}
	if totalOut > totalIn {
		return nil, mempoolError(ErrValidateInputsFailed, "transaction outputs exceed inputs")
	}

	return unconfirmed, nil
}

func (m *Mempool) findBufferedOutputLocked(op wire.OutPoint) (wire.Output, bool) {
	elem, ok := m.byHash[op.Hash]
	if !ok {
		return wire.Output{}, false
	}
	entry := elem.Value.(*Entry)
	if int(op.Index) >= len(entry.Tx.Outputs) {
		return wire.Output{}, false
	}
	return entry.Tx.Outputs[op.Index], true
}

// Store validates tx and, on success, appends it to the buffer's tail,
// evicting the oldest entry first if the buffer is already at capacity
// (spec.md §4.6 "store"). onValidate, if non-nil, is invoked with the
// validate outcome before the entry is (or is not) stored.
func (m *Mempool) Store(tx wire.Transaction, onConfirm ConfirmCallback, onValidate func([]int, error)) error {
	result := make(chan error, 1)
	m.disp.Ordered(mempoolQueue, func() {
		idx, err := m.validateLocked(&tx)
		if onValidate != nil {
			onValidate(idx, err)
		}
		if err != nil {
			result <- err
			return
		}
		m.storeLocked(tx, onConfirm)
		result <- nil
	})
	return <-result
}

func (m *Mempool) storeLocked(tx wire.Transaction, onConfirm ConfirmCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.buffer.Len() >= m.cfg.Capacity {
		front := m.buffer.Front()
		evicted := front.Value.(*Entry)
		m.buffer.Remove(front)
		delete(m.byHash, evicted.Hash)
		if evicted.OnConfirm != nil {
			evicted.OnConfirm(mempoolError(ErrPoolFilled, "evicted: pool filled"))
		}
	}

	hash := tx.TxHash()
	entry := &Entry{Hash: hash, Tx: tx, OnConfirm: onConfirm}
	elem := m.buffer.PushBack(entry)
	m.byHash[hash] = elem
}

// Fetch returns the buffered transaction with the given hash, if present.
func (m *Mempool) Fetch(hash chainhash.Hash) (wire.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	elem, ok := m.byHash[hash]
	if !ok {
		return wire.Transaction{}, false
	}
	return elem.Value.(*Entry).Tx, true
}

// Exists reports whether hash is present in the buffer.
func (m *Mempool) Exists(hash chainhash.Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byHash[hash]
	return ok
}

// Len reports the number of buffered entries.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffer.Len()
}

// Reorganize reacts to a chain reorganization published by the organizer
// (spec.md §4.6 "reorganize"). When outgoing is empty (a pure extension),
// entries confirmed by the transactions in incoming are removed and their
// on_confirm fired with a nil error; otherwise every entry is invalidated
// with ErrBlockchainReorganized and the buffer is cleared.
func (m *Mempool) Reorganize(event chainio.ReorganizeEvent) {
	done := make(chan struct{})
	m.disp.Ordered(mempoolQueue, func() {
		defer close(done)
		m.reorganizeLocked(event)
	})
	<-done
}

func (m *Mempool) reorganizeLocked(event chainio.ReorganizeEvent) {
	m.mu.Lock()
	m.tipHeight = event.ForkPointHeight + int32(len(event.Incoming))
	m.mu.Unlock()

	if len(event.Outgoing) > 0 {
		m.invalidateAll()
		return
	}

	confirmed := make(map[chainhash.Hash]struct{})
	for i := range event.Incoming {
		for j := range event.Incoming[i].Transactions {
			confirmed[event.Incoming[i].Transactions[j].TxHash()] = struct{}{}
		}
	}

	m.mu.Lock()
	var toRemove []*list.Element
	for h := range confirmed {
		if elem, ok := m.byHash[h]; ok {
			toRemove = append(toRemove, elem)
		}
	}
	removed := make([]*Entry, 0, len(toRemove))
	for _, elem := range toRemove {
		entry := elem.Value.(*Entry)
		m.buffer.Remove(elem)
		delete(m.byHash, entry.Hash)
		removed = append(removed, entry)
	}
	m.mu.Unlock()

	for _, entry := range removed {
		if entry.OnConfirm != nil {
			entry.OnConfirm(nil)
		}
	}
}

func (m *Mempool) invalidateAll() {
	m.mu.Lock()
	entries := make([]*Entry, 0, m.buffer.Len())
	for e := m.buffer.Front(); e != nil; e = e.Next() {
		entries = append(entries, e.Value.(*Entry))
	}
	m.buffer.Init()
	m.byHash = make(map[chainhash.Hash]*list.Element)
	m.mu.Unlock()

	for _, entry := range entries {
		if entry.OnConfirm != nil {
			entry.OnConfirm(mempoolError(ErrBlockchainReorganized, "blockchain reorganized"))
		}
	}
}
