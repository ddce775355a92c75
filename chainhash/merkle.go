// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainhash

// nextPowerOfTwo returns the next highest power of two from a given number
// if it is not already a power of two, matching the classic bitcoind merkle
// tree sizing used to avoid reallocating the backing array as levels merge.
func nextPowerOfTwo(n int) int {
	if n&(n-1) == 0 {
		return n
	}
	exponent := 0
	for n > 0 {
		n >>= 1
		exponent++
	}
	return 1 << uint(exponent)
}

// hashMerkleBranches takes two hashes, treated as the left and right tree
// nodes, and returns the hash of their concatenation as double SHA-256.
func hashMerkleBranches(left, right *Hash) Hash {
	var buf [HashSize * 2]byte
	copy(buf[:HashSize], left[:])
	copy(buf[HashSize:], right[:])
	return HashH(buf[:])
}

// BuildMerkleTreeStore creates a merkle tree from the ordered slice of leaf
// hashes and returns the array of each level's nodes, with the root as the
// final element. Following RFC 6962-incompatible, bitcoin-style convention,
// when a level has an odd number of nodes the last node is duplicated to
// produce the next level's pair.
//
// The interior nodes are `nil` at unused array slots; this matches the
// classic fixed-size-array merkle tree layout and lets the tree be extended
// incrementally without reshaping, though this implementation always builds
// the whole tree at once.
func BuildMerkleTreeStore(leaves []Hash) []*Hash {
	if len(leaves) == 0 {
		return []*Hash{}
	}

	nextPoT := nextPowerOfTwo(len(leaves))
	arraySize := nextPoT*2 - 1
	merkles := make([]*Hash, arraySize)

	for i := range leaves {
		h := leaves[i]
		merkles[i] = &h
	}

	offset := nextPoT
	for i := 0; i < arraySize-offset; i += 2 {
		switch {
		case merkles[i] == nil:
			merkles[offset] = nil
		case merkles[i+1] == nil:
			newHash := hashMerkleBranches(merkles[i], merkles[i])
			merkles[offset] = &newHash
		default:
			newHash := hashMerkleBranches(merkles[i], merkles[i+1])
			merkles[offset] = &newHash
		}
		offset++
	}

	return merkles
}

// MerkleRoot computes the merkle root of the given ordered leaf hashes. It
// returns the zero hash for an empty leaf set.
func MerkleRoot(leaves []Hash) Hash {
	if len(leaves) == 0 {
		return ZeroHash
	}
	if len(leaves) == 1 {
		return leaves[0]
	}
	tree := BuildMerkleTreeStore(leaves)
	root := tree[len(tree)-1]
	if root == nil {
		return ZeroHash
	}
	return *root
}
