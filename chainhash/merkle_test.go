// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainhash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMerkleRootSingleLeaf(t *testing.T) {
	leaf := HashH([]byte("only tx"))
	root := MerkleRoot([]Hash{leaf})
	require.True(t, root.IsEqual(&leaf))
}

func TestMerkleRootEmptyIsZero(t *testing.T) {
	root := MerkleRoot(nil)
	require.True(t, root.IsEqual(&ZeroHash))
}

func TestMerkleRootOddLeavesDuplicatesLast(t *testing.T) {
	a := HashH([]byte("a"))
	b := HashH([]byte("b"))
	c := HashH([]byte("c"))

	withThree := MerkleRoot([]Hash{a, b, c})
	withDuplicated := MerkleRoot([]Hash{a, b, c, c})
	require.True(t, withThree.IsEqual(&withDuplicated))
}

func TestMerkleRootDeterministic(t *testing.T) {
	leaves := []Hash{HashH([]byte("1")), HashH([]byte("2")), HashH([]byte("3")), HashH([]byte("4"))}
	r1 := MerkleRoot(leaves)
	r2 := MerkleRoot(leaves)
	require.True(t, r1.IsEqual(&r2))
}
