// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"math/big"
	"time"

	"github.com/crypto-coin-world/libbitcoin-blockchain/chainhash"
	"github.com/crypto-coin-world/libbitcoin-blockchain/wire"
)

// fakeReader is an in-memory stand-in for chainio.Reader, used by tests to
// avoid depending on any concrete storage implementation (spec.md Design
// Notes, "Tests provide an in-memory oracle").
type fakeReader struct {
	heights      map[chainhash.Hash]int32
	hashByHeight map[int32]chainhash.Hash
	headers      map[chainhash.Hash]wire.Header
	txs          map[chainhash.Hash]fakeTx
	outputs      map[wire.OutPoint]wire.Output
	spent        map[wire.OutPoint]bool

	// cumulativeWork overrides CumulativeWork's canned zero return, letting
	// tests exercise the organizer's heavier-branch comparison.
	cumulativeWork *big.Int

	// blocksStale overrides IsBlocksStale's canned false return, letting
	// tests exercise the populator's stale-chain collision-check skip.
	blocksStale bool
}

type fakeTx struct {
	tx       wire.Transaction
	height   int32
	coinbase bool
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		heights:      make(map[chainhash.Hash]int32),
		hashByHeight: make(map[int32]chainhash.Hash),
		headers:      make(map[chainhash.Hash]wire.Header),
		txs:          make(map[chainhash.Hash]fakeTx),
		outputs:      make(map[wire.OutPoint]wire.Output),
		spent:        make(map[wire.OutPoint]bool),
	}
}

func (f *fakeReader) addOutput(op wire.OutPoint, out wire.Output) {
	f.outputs[op] = out
}

func (f *fakeReader) markSpent(op wire.OutPoint) {
	f.spent[op] = true
}

func (f *fakeReader) BlockHeight(hash chainhash.Hash) (int32, bool, error) {
	h, ok := f.heights[hash]
	return h, ok, nil
}

func (f *fakeReader) BlockHashByHeight(height int32) (chainhash.Hash, error) {
	return f.hashByHeight[height], nil
}

func (f *fakeReader) HeaderBits(hash chainhash.Hash) (uint32, error) {
	return f.headers[hash].Bits, nil
}

func (f *fakeReader) HeaderTimestamp(hash chainhash.Hash) (time.Time, error) {
	return f.headers[hash].Timestamp, nil
}

func (f *fakeReader) HeaderVersion(hash chainhash.Hash) (int32, error) {
	return f.headers[hash].Version, nil
}

func (f *fakeReader) CumulativeWork(maximumBits uint32, aboveHeight int32) (*big.Int, error) {
	if f.cumulativeWork != nil {
		return f.cumulativeWork, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeReader) BlockError(hash chainhash.Hash) (error, bool) {
	return nil, false
}

func (f *fakeReader) TransactionError(hash chainhash.Hash) (error, bool) {
	return nil, false
}

func (f *fakeReader) PopulateHeader(hash chainhash.Hash) (wire.Header, error) {
	return f.headers[hash], nil
}

func (f *fakeReader) PopulateTransaction(hash chainhash.Hash) (wire.Transaction, int32, bool, error) {
	t, ok := f.txs[hash]
	if !ok {
		return wire.Transaction{}, 0, false, nil
	}
	return t.tx, t.height, t.coinbase, nil
}

func (f *fakeReader) PopulateOutput(op wire.OutPoint) (wire.Output, bool, error) {
	out, ok := f.outputs[op]
	return out, ok, nil
}

func (f *fakeReader) IsOutputSpent(op wire.OutPoint) (bool, error) {
	return f.spent[op], nil
}

func (f *fakeReader) TransactionExists(hash chainhash.Hash) (bool, error) {
	_, ok := f.txs[hash]
	return ok, nil
}

func (f *fakeReader) IsBlocksStale() (bool, error) { return f.blocksStale, nil }
func (f *fakeReader) IsHeadersStale() (bool, error) { return false, nil }

// fakeScriptEngine always reports the configured verdict, regardless of
// input, standing in for the real script-consensus oracle in tests.
type fakeScriptEngine struct {
	valid bool
}

func (e *fakeScriptEngine) ValidateConsensus(prevoutScript wire.Script, tx *wire.Transaction, inputIndex int, header wire.Header, height int32) bool {
	return e.valid
}

// fakeDatabase is a fakeReader plus the mutating Writer surface, so the
// organizer's replace_chain step observes a database that actually moves:
// Reorganize updates the height/header/transaction indexes the way a real
// storage engine would after an atomic chain swap.
type fakeDatabase struct {
	*fakeReader
	pushed []wire.Transaction
}

func newFakeDatabase(genesis wire.Block) *fakeDatabase {
	db := &fakeDatabase{fakeReader: newFakeReader()}
	h := genesis.BlockHash()
	db.heights[h] = 0
	db.hashByHeight[0] = h
	db.headers[h] = genesis.Header
	for _, tx := range genesis.Transactions {
		db.txs[tx.TxHash()] = fakeTx{tx: tx, height: 0, coinbase: tx.IsCoinBase()}
	}
	return db
}

func (db *fakeDatabase) Push(tx wire.Transaction) error {
	db.pushed = append(db.pushed, tx)
	return nil
}

func (db *fakeDatabase) Reorganize(forkPoint int32, incoming, outgoing []wire.Block) error {
	for _, b := range outgoing {
		h := b.BlockHash()
		height, ok := db.heights[h]
		if !ok {
			continue
		}
		delete(db.heights, h)
		delete(db.hashByHeight, height)
		delete(db.headers, h)
		for _, tx := range b.Transactions {
			delete(db.txs, tx.TxHash())
		}
	}

	for i, b := range incoming {
		height := forkPoint + int32(i) + 1
		h := b.BlockHash()
		db.heights[h] = height
		db.hashByHeight[height] = h
		db.headers[h] = b.Header
		for _, tx := range b.Transactions {
			db.txs[tx.TxHash()] = fakeTx{tx: tx, height: height, coinbase: tx.IsCoinBase()}
		}
	}
	return nil
}
