// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crypto-coin-world/libbitcoin-blockchain/chainhash"
	"github.com/crypto-coin-world/libbitcoin-blockchain/consensus"
	"github.com/crypto-coin-world/libbitcoin-blockchain/wire"
)

func TestBlockPopulatorResolvesFromDatabase(t *testing.T) {
	reader := newFakeReader()
	prevHash := chainhash.HashH([]byte("db-parent"))
	op := wire.OutPoint{Hash: prevHash, Index: 0}
	reader.addOutput(op, wire.Output{Value: 5000, Script: wire.Script{wire.OP_DUP}})

	cb := coinbaseTx(0x01)
	spend := spendTx(prevHash, 1000)
	block := &wire.Block{Transactions: []wire.Transaction{cb, spend}}

	pop := NewBlockPopulator(reader, 2, nil)
	result, err := pop.Populate(block, nil)
	require.NoError(t, err)

	require.Nil(t, result[0])
	require.True(t, result[1][0].PrevoutFound)
	require.Equal(t, int64(5000), result[1][0].PrevoutValue)
	require.False(t, result[1][0].PrevoutSpent)
}

func TestBlockPopulatorResolvesInBlockChainedSpend(t *testing.T) {
	reader := newFakeReader()
	cb := coinbaseTx(0x01)
	earlier := spendTx(chainhash.HashH([]byte("db-parent")), 2000)
	reader.addOutput(wire.OutPoint{Hash: chainhash.HashH([]byte("db-parent")), Index: 0}, wire.Output{Value: 5000})

	earlierHash := earlier.TxHash()
	chained := spendTx(earlierHash, 500)

	block := &wire.Block{Transactions: []wire.Transaction{cb, earlier, chained}}

	pop := NewBlockPopulator(reader, 4, nil)
	result, err := pop.Populate(block, nil)
	require.NoError(t, err)

	require.True(t, result[2][0].PrevoutFound)
	require.Equal(t, int64(2000), result[2][0].PrevoutValue)
	require.Equal(t, int32(-1), result[2][0].PrevoutHeight)
}

func TestBlockPopulatorMissingOutput(t *testing.T) {
	reader := newFakeReader()
	cb := coinbaseTx(0x01)
	spend := spendTx(chainhash.HashH([]byte("nowhere")), 1000)
	block := &wire.Block{Transactions: []wire.Transaction{cb, spend}}

	pop := NewBlockPopulator(reader, 3, nil)
	result, err := pop.Populate(block, nil)
	require.NoError(t, err)
	require.False(t, result[1][0].PrevoutFound)
}

func TestBlockPopulatorSkipsSpentCheckWhenChainStale(t *testing.T) {
	reader := newFakeReader()
	reader.blocksStale = true
	prevHash := chainhash.HashH([]byte("db-parent"))
	op := wire.OutPoint{Hash: prevHash, Index: 0}
	reader.addOutput(op, wire.Output{Value: 5000})
	reader.markSpent(op)

	cb := coinbaseTx(0x01)
	spend := spendTx(prevHash, 1000)
	block := &wire.Block{Transactions: []wire.Transaction{cb, spend}}

	pop := NewBlockPopulator(reader, 2, nil)
	result, err := pop.Populate(block, nil)
	require.NoError(t, err)

	require.True(t, result[1][0].PrevoutFound)
	require.False(t, result[1][0].PrevoutSpent, "spent-check must be skipped while the chain is stale")
}

func TestBlockPopulatorSkipsSpentCheckWhenAllowCollisionsLive(t *testing.T) {
	reader := newFakeReader()
	prevHash := chainhash.HashH([]byte("db-parent"))
	op := wire.OutPoint{Hash: prevHash, Index: 0}
	reader.addOutput(op, wire.Output{Value: 5000})
	reader.markSpent(op)

	cb := coinbaseTx(0x01)
	spend := spendTx(prevHash, 1000)
	block := &wire.Block{Transactions: []wire.Transaction{cb, spend}}

	params := &consensus.ConsensusParams{Deployments: consensus.DeploymentAllowCollisions}
	pop := NewBlockPopulator(reader, 2, params)
	result, err := pop.Populate(block, nil)
	require.NoError(t, err)

	require.True(t, result[1][0].PrevoutFound)
	require.False(t, result[1][0].PrevoutSpent, "spent-check must be skipped while allow_collisions is live")
}

func TestBlockPopulatorRunsSpentCheckByDefault(t *testing.T) {
	reader := newFakeReader()
	prevHash := chainhash.HashH([]byte("db-parent"))
	op := wire.OutPoint{Hash: prevHash, Index: 0}
	reader.addOutput(op, wire.Output{Value: 5000})
	reader.markSpent(op)

	cb := coinbaseTx(0x01)
	spend := spendTx(prevHash, 1000)
	block := &wire.Block{Transactions: []wire.Transaction{cb, spend}}

	pop := NewBlockPopulator(reader, 2, nil)
	result, err := pop.Populate(block, nil)
	require.NoError(t, err)

	require.True(t, result[1][0].PrevoutFound)
	require.True(t, result[1][0].PrevoutSpent)
}

func TestBlockPopulatorStopSignalAborts(t *testing.T) {
	reader := newFakeReader()
	cb := coinbaseTx(0x01)
	spend := spendTx(chainhash.HashH([]byte("nowhere")), 1000)
	block := &wire.Block{Transactions: []wire.Transaction{cb, spend}}

	stop := make(chan struct{})
	close(stop)

	pop := NewBlockPopulator(reader, 2, nil)
	_, err := pop.Populate(block, stop)
	require.True(t, IsErrorCode(err, ErrServiceStopped))
}
