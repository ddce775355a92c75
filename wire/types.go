// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wire defines the wire-level data model the validator operates
// over: headers, outpoints, inputs, outputs, transactions, and blocks.
// Serialized bytes are treated as opaque except for the canonical
// double-SHA-256 hash and merkle-root computation (spec.md §6).
package wire

import (
	"encoding/binary"
	"time"

	"github.com/crypto-coin-world/libbitcoin-blockchain/chainhash"
)

// MaxBlockPayload is the maximum serialized block size, in bytes. CheckBlock
// does not read it; it enforces ConsensusParams.MaxBlockSize instead.
const MaxBlockPayload = 1000000

// Header is the 80-byte-equivalent block header. It is immutable once
// constructed.
type Header struct {
	Version      int32
	PreviousHash chainhash.Hash
	MerkleRoot   chainhash.Hash
	Timestamp    time.Time
	Bits         uint32
	Nonce        uint32
}

// Serialize returns the canonical byte encoding of the header.
func (h *Header) Serialize() []byte {
	buf := make([]byte, 0, 80)
	var tmp [4]byte

	binary.LittleEndian.PutUint32(tmp[:], uint32(h.Version))
	buf = append(buf, tmp[:]...)
	buf = append(buf, h.PreviousHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	binary.LittleEndian.PutUint32(tmp[:], uint32(h.Timestamp.Unix()))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint32(tmp[:], h.Bits)
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint32(tmp[:], h.Nonce)
	buf = append(buf, tmp[:]...)
	return buf
}

// BlockHash returns the double SHA-256 hash of the serialized header.
func (h *Header) BlockHash() chainhash.Hash {
	return chainhash.HashH(h.Serialize())
}

// OutPoint identifies a single previous transaction output.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// IsNull reports whether op is the coinbase sentinel previous-output.
func (op *OutPoint) IsNull() bool {
	return op.Index == ^uint32(0) && op.Hash.IsEqual(&chainhash.ZeroHash)
}

// CoinbaseOutPoint is the sentinel previous-output for the sole input of a
// coinbase transaction.
var CoinbaseOutPoint = OutPoint{Hash: chainhash.ZeroHash, Index: ^uint32(0)}

// Input is a single transaction input.
type Input struct {
	PreviousOutPoint OutPoint
	SignatureScript  Script
	Sequence         uint32
}

func (in *Input) serialize() []byte {
	buf := make([]byte, 0, 36+len(in.SignatureScript)+13)
	var tmp [4]byte

	buf = append(buf, in.PreviousOutPoint.Hash[:]...)
	binary.LittleEndian.PutUint32(tmp[:], in.PreviousOutPoint.Index)
	buf = append(buf, tmp[:]...)
	buf = appendVarBytes(buf, in.SignatureScript)
	binary.LittleEndian.PutUint32(tmp[:], in.Sequence)
	buf = append(buf, tmp[:]...)
	return buf
}

// MaxSatoshi is the maximum value, in satoshis, any single output may hold
// (21,000,000 BTC expressed in satoshis).
const MaxSatoshi = 21000000 * 1e8

// Output is a single transaction output.
type Output struct {
	Value  int64
	Script Script
}

func (out *Output) serialize() []byte {
	buf := make([]byte, 0, 8+len(out.Script))
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(out.Value))
	buf = append(buf, tmp[:]...)
	buf = appendVarBytes(buf, out.Script)
	return buf
}

// Transaction is a single transaction: one or more inputs, one or more
// outputs. Identity is the double-SHA-256 of its canonical serialization.
type Transaction struct {
	Version  int32
	Inputs   []Input
	Outputs  []Output
	LockTime uint32
}

// IsCoinBase reports whether tx is a coinbase transaction: exactly one
// input whose previous output is the null sentinel.
func (tx *Transaction) IsCoinBase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].PreviousOutPoint.IsNull()
}

// Serialize returns the canonical byte encoding of the transaction.
func (tx *Transaction) Serialize() []byte {
	buf := make([]byte, 0, 256)
	var tmp [4]byte

	binary.LittleEndian.PutUint32(tmp[:], uint32(tx.Version))
	buf = append(buf, tmp[:]...)

	buf = appendVarInt(buf, uint64(len(tx.Inputs)))
	for i := range tx.Inputs {
		buf = append(buf, tx.Inputs[i].serialize()...)
	}

	buf = appendVarInt(buf, uint64(len(tx.Outputs)))
	for i := range tx.Outputs {
		buf = append(buf, tx.Outputs[i].serialize()...)
	}

	binary.LittleEndian.PutUint32(tmp[:], tx.LockTime)
	buf = append(buf, tmp[:]...)
	return buf
}

// SerializeSize returns the number of bytes tx occupies when serialized.
func (tx *Transaction) SerializeSize() int {
	return len(tx.Serialize())
}

// TxHash returns the double-SHA-256 identity of the transaction.
func (tx *Transaction) TxHash() chainhash.Hash {
	return chainhash.HashH(tx.Serialize())
}

// Block is a header plus its ordered, non-empty transaction list, first of
// which must be the coinbase.
type Block struct {
	Header       Header
	Transactions []Transaction
}

// SerializeSize returns the total serialized size of the block in bytes.
func (b *Block) SerializeSize() int {
	n := len(b.Header.Serialize())
	n += varIntSize(uint64(len(b.Transactions)))
	for i := range b.Transactions {
		n += b.Transactions[i].SerializeSize()
	}
	return n
}

// TxHashes returns the identity hash of every transaction in the block, in
// order, suitable as merkle-tree leaves.
func (b *Block) TxHashes() []chainhash.Hash {
	hashes := make([]chainhash.Hash, len(b.Transactions))
	for i := range b.Transactions {
		hashes[i] = b.Transactions[i].TxHash()
	}
	return hashes
}

// CalcMerkleRoot recomputes the transaction merkle root from the block's
// transactions.
func (b *Block) CalcMerkleRoot() chainhash.Hash {
	return chainhash.MerkleRoot(b.TxHashes())
}

// BlockHash returns the header's double-SHA-256 identity.
func (b *Block) BlockHash() chainhash.Hash {
	return b.Header.BlockHash()
}

func appendVarInt(buf []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(buf, byte(n))
	case n <= 0xffff:
		tmp := make([]byte, 2)
		binary.LittleEndian.PutUint16(tmp, uint16(n))
		return append(append(buf, 0xfd), tmp...)
	case n <= 0xffffffff:
		tmp := make([]byte, 4)
		binary.LittleEndian.PutUint32(tmp, uint32(n))
		return append(append(buf, 0xfe), tmp...)
	default:
		tmp := make([]byte, 8)
		binary.LittleEndian.PutUint64(tmp, n)
		return append(append(buf, 0xff), tmp...)
	}
}

func varIntSize(n uint64) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

func appendVarBytes(buf []byte, b []byte) []byte {
	buf = appendVarInt(buf, uint64(len(b)))
	return append(buf, b...)
}
