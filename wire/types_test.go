// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crypto-coin-world/libbitcoin-blockchain/chainhash"
)

func sampleTx(outValue int64) Transaction {
	return Transaction{
		Version: 1,
		Inputs: []Input{
			{
				PreviousOutPoint: OutPoint{Hash: chainhash.HashH([]byte("prev")), Index: 0},
				SignatureScript:  Script{0x01, 0x02},
				Sequence:         0xffffffff,
			},
		},
		Outputs: []Output{
			{Value: outValue, Script: Script{OP_DUP, OP_HASH160}},
		},
		LockTime: 0,
	}
}

func TestTransactionSerializeHashRoundTrip(t *testing.T) {
	tx := sampleTx(5000)
	h1 := tx.TxHash()
	h2 := chainhash.HashH(tx.Serialize())
	require.True(t, h1.IsEqual(&h2))

	other := sampleTx(5001)
	h3 := other.TxHash()
	require.False(t, h1.IsEqual(&h3))
}

func TestTransactionSerializeSizeMatchesSerialize(t *testing.T) {
	tx := sampleTx(1000)
	require.Equal(t, len(tx.Serialize()), tx.SerializeSize())
}

func TestIsCoinBase(t *testing.T) {
	coinbase := Transaction{
		Inputs: []Input{
			{PreviousOutPoint: CoinbaseOutPoint, SignatureScript: Script{0x03, 0x01, 0x02, 0x03}},
		},
		Outputs: []Output{{Value: 5000000000, Script: Script{}}},
	}
	require.True(t, coinbase.IsCoinBase())

	normal := sampleTx(1000)
	require.False(t, normal.IsCoinBase())
}

func TestOutPointIsNull(t *testing.T) {
	require.True(t, CoinbaseOutPoint.IsNull())

	notNull := OutPoint{Hash: chainhash.HashH([]byte("x")), Index: 0}
	require.False(t, notNull.IsNull())

	zeroHashNonMaxIndex := OutPoint{Hash: chainhash.ZeroHash, Index: 0}
	require.False(t, zeroHashNonMaxIndex.IsNull())
}

func TestBlockCalcMerkleRootAndBlockHash(t *testing.T) {
	tx1 := sampleTx(1000)
	tx2 := sampleTx(2000)
	block := Block{
		Header: Header{
			Version:      1,
			PreviousHash: chainhash.ZeroHash,
			Timestamp:    time.Unix(1231006505, 0),
			Bits:         0x1d00ffff,
			Nonce:        2083236893,
		},
		Transactions: []Transaction{tx1, tx2},
	}
	block.Header.MerkleRoot = block.CalcMerkleRoot()

	expectedRoot := chainhash.MerkleRoot([]chainhash.Hash{tx1.TxHash(), tx2.TxHash()})
	require.True(t, block.Header.MerkleRoot.IsEqual(&expectedRoot))

	expectedHash := block.Header.BlockHash()
	actualHash := block.BlockHash()
	require.True(t, expectedHash.IsEqual(&actualHash))
}

func TestBlockSerializeSizeMatchesComponents(t *testing.T) {
	tx := sampleTx(1000)
	block := Block{
		Header:       Header{Timestamp: time.Unix(0, 0)},
		Transactions: []Transaction{tx},
	}
	expected := len(block.Header.Serialize()) + 1 + tx.SerializeSize()
	require.Equal(t, expected, block.SerializeSize())
}
