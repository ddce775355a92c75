// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"container/list"
	"sync"

	"github.com/crypto-coin-world/libbitcoin-blockchain/chainhash"
	"github.com/crypto-coin-world/libbitcoin-blockchain/wire"
)

// OrphanPool holds blocks whose parent is not yet in the stored chain,
// deduplicated by hash, with a bounded capacity and least-recently-inserted
// eviction (spec.md §4.4). It is owned by the organizer and accessed only
// from its ordered task, so it takes its own mutex only to guard against
// the rare case of a caller reaching in directly (e.g. from tests).
type OrphanPool struct {
	mu       sync.Mutex
	capacity int

	byHash   map[chainhash.Hash]*list.Element
	children map[chainhash.Hash][]chainhash.Hash
	lri      *list.List // front = least recently inserted
}

type orphanEntry struct {
	hash  chainhash.Hash
	block wire.Block
}

// NewOrphanPool constructs an empty pool bounded to capacity entries (0 or
// negative selects a sane default of 100, matching common node defaults).
func NewOrphanPool(capacity int) *OrphanPool {
	if capacity <= 0 {
		capacity = 100
	}
	return &OrphanPool{
		capacity: capacity,
		byHash:   make(map[chainhash.Hash]*list.Element),
		children: make(map[chainhash.Hash][]chainhash.Hash),
		lri:      list.New(),
	}
}

// Insert adds block to the pool, keyed by its hash; re-inserting an
// already-present hash is a no-op (spec.md §4.4 "idempotent by hash"). If
// the pool is at capacity, the least-recently-inserted orphan (and its
// bookkeeping) is evicted first.
func (p *OrphanPool) Insert(block wire.Block) {
	p.mu.Lock()
	defer p.mu.Unlock()

	hash := block.BlockHash()
	if _, exists := p.byHash[hash]; exists {
		return
	}

	if len(p.byHash) >= p.capacity {
		p.evictOldestLocked()
	}

	elem := p.lri.PushBack(&orphanEntry{hash: hash, block: block})
	p.byHash[hash] = elem
	parent := block.Header.PreviousHash
	p.children[parent] = append(p.children[parent], hash)
}

func (p *OrphanPool) evictOldestLocked() {
	front := p.lri.Front()
	if front == nil {
		return
	}
	entry := front.Value.(*orphanEntry)
	p.removeOneLocked(entry.hash)
}

// removeOneLocked removes a single orphan's own bookkeeping; it does not
// recurse into descendants (see RemoveSubtree for that).
func (p *OrphanPool) removeOneLocked(hash chainhash.Hash) {
	elem, ok := p.byHash[hash]
	if !ok {
		return
	}
	entry := elem.Value.(*orphanEntry)
	p.lri.Remove(elem)
	delete(p.byHash, hash)

	parent := entry.block.Header.PreviousHash
	siblings := p.children[parent]
	for i, h := range siblings {
		if h.IsEqual(&hash) {
			siblings = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(siblings) == 0 {
		delete(p.children, parent)
	} else {
		p.children[parent] = siblings
	}
}

// TakeChainTo returns the ordered sequence of orphans leading from the
// first block whose parent is already in the stored chain (identified by
// inStoredChain) through tipHash, removing each returned block from the
// pool (spec.md §4.4). It returns nil if tipHash is not in the pool or the
// chain to it is broken.
func (p *OrphanPool) TakeChainTo(tipHash chainhash.Hash, inStoredChain func(chainhash.Hash) bool) []wire.Block {
	p.mu.Lock()
	defer p.mu.Unlock()

	var chain []wire.Block
	hash := tipHash
	for {
		elem, ok := p.byHash[hash]
		if !ok {
			return nil
		}
		entry := elem.Value.(*orphanEntry)
		chain = append(chain, entry.block)
		if inStoredChain(entry.block.Header.PreviousHash) {
			break
		}
		hash = entry.block.Header.PreviousHash
	}

	// Reverse to oldest-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	for i := range chain {
		p.removeOneLocked(chain[i].BlockHash())
	}
	return chain
}

// ExtendForward walks the children index forward from parentHash, appending
// one descendant orphan chain already waiting in the pool, so an
// out-of-order arrival (child before parent) is reassembled the moment the
// parent shows up (spec.md §4.5 step 3, "extend the orphan chain forward").
// At each step it follows only the first-inserted child; sibling branches
// are not returned. It does not remove anything from the pool.
func (p *OrphanPool) ExtendForward(parentHash chainhash.Hash) []wire.Block {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []wire.Block
	frontier := []chainhash.Hash{parentHash}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		kids := p.children[next]
		if len(kids) == 0 {
			continue
		}
		// Deterministic order: pick the first child by insertion order;
		// siblings represent competing forks and are left parked.
		childHash := kids[0]
		elem, ok := p.byHash[childHash]
		if !ok {
			continue
		}
		entry := elem.Value.(*orphanEntry)
		out = append(out, entry.block)
		frontier = append(frontier, childHash)
	}
	return out
}

// RemoveSubtree removes rootHash and every orphan transitively parented by
// it from the pool (spec.md §4.4, invoked when a block is rejected so its
// orphan descendants do not linger forever).
func (p *OrphanPool) RemoveSubtree(rootHash chainhash.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()

	queue := []chainhash.Hash{rootHash}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		kids := append([]chainhash.Hash(nil), p.children[h]...)
		queue = append(queue, kids...)
		p.removeOneLocked(h)
	}
}

// Len reports the number of orphans currently held.
func (p *OrphanPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byHash)
}

// Contains reports whether hash is present in the pool.
func (p *OrphanPool) Contains(hash chainhash.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.byHash[hash]
	return ok
}
