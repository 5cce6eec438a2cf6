// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package simcache

import "math/rand/v2"

const rripMax uint8 = 3

// evictionPolicy selects a victim way within a set and updates whatever
// per-line/per-set replacement state the algorithm needs. Implementations
// never look past the set they are handed; the invalid-way-first rule
// (spec §4.1 "edge cases") is enforced once by CacheLevel before a policy
// is ever consulted, so policies only need to handle the all-valid case.
type evictionPolicy interface {
	// selectVictim returns the way index to evict. Called only when every
	// way in the set is valid.
	selectVictim(set *cacheSet, assoc int) int
	// onHit updates replacement state for a way that was just accessed.
	onHit(set *cacheSet, way int, clock uint64)
	// onInstall updates replacement state for a way that was just filled.
	onInstall(set *cacheSet, way int, clock uint64)
}

func newEvictionPolicy(e Eviction) evictionPolicy {
	switch e {
	case EvictionPLRU:
		return plruPolicy{}
	case EvictionRandom:
		return randomPolicy{}
	case EvictionSRRIP:
		return srripPolicy{}
	case EvictionBRRIP:
		return brripPolicy{}
	default:
		return lruPolicy{}
	}
}

// lruPolicy evicts the way with the smallest lru_time stamp, breaking ties
// toward the lowest way index (spec §4.1).
type lruPolicy struct{}

func (lruPolicy) selectVictim(set *cacheSet, assoc int) int {
	victim := 0
	best := set.lines[0].lruTime
	for w := 1; w < assoc; w++ {
		if set.lines[w].lruTime < best {
			best = set.lines[w].lruTime
			victim = w
		}
	}
	return victim
}

func (lruPolicy) onHit(set *cacheSet, way int, clock uint64)     { set.lines[way].lruTime = clock }
func (lruPolicy) onInstall(set *cacheSet, way int, clock uint64) { set.lines[way].lruTime = clock }

// randomPolicy picks uniformly among all ways (invalid ways are already
// filtered out by the caller before this is reached).
type randomPolicy struct{}

func (randomPolicy) selectVictim(set *cacheSet, assoc int) int {
	return rand.IntN(assoc)
}

func (randomPolicy) onHit(set *cacheSet, way int, clock uint64)     {}
func (randomPolicy) onInstall(set *cacheSet, way int, clock uint64) {}

// plruPolicy implements tree-pseudo-LRU over a power-of-two associativity
// using a bitmap of associativity-1 internal-node bits (spec §4.1). Each
// bit records which subtree currently holds the less-recently-used half;
// a touch on a way flips the bits along its root-to-leaf path to point
// away from it.
type plruPolicy struct{}

func (plruPolicy) selectVictim(set *cacheSet, assoc int) int {
	node := 0
	lo, hi := 0, assoc-1
	for lo < hi {
		mid := (lo + hi) / 2
		if set.plruBit(node) == 0 {
			hi = mid
			node = 2*node + 1
		} else {
			lo = mid + 1
			node = 2*node + 2
		}
	}
	return lo
}

func (plruPolicy) touch(set *cacheSet, way int, assoc int) {
	node := 0
	lo, hi := 0, assoc-1
	for lo < hi {
		mid := (lo + hi) / 2
		if way <= mid {
			set.setPLRUBit(node, 1)
			hi = mid
			node = 2*node + 1
		} else {
			set.setPLRUBit(node, 0)
			lo = mid + 1
			node = 2*node + 2
		}
	}
}

func (p plruPolicy) onHit(set *cacheSet, way int, clock uint64) {
	p.touch(set, way, len(set.lines))
}

func (p plruPolicy) onInstall(set *cacheSet, way int, clock uint64) {
	p.touch(set, way, len(set.lines))
}

// srripPolicy implements static re-reference interval prediction: a hit
// resets the way's counter to near-immediate re-reference (0), an install
// sets long re-reference (2), and eviction picks any way at the
// saturating-max distance (3), aging the whole set if none qualifies yet
// (spec §4.1).
type srripPolicy struct{}

func srripSelectVictim(set *cacheSet, assoc int) int {
	for {
		for w := 0; w < assoc; w++ {
			if set.lines[w].rrip == rripMax {
				return w
			}
		}
		for w := 0; w < assoc; w++ {
			if set.lines[w].rrip < rripMax {
				set.lines[w].rrip++
			}
		}
	}
}

func (srripPolicy) selectVictim(set *cacheSet, assoc int) int { return srripSelectVictim(set, assoc) }
func (srripPolicy) onHit(set *cacheSet, way int, clock uint64) { set.lines[way].rrip = 0 }
func (srripPolicy) onInstall(set *cacheSet, way int, clock uint64) {
	set.lines[way].rrip = 2
}

// brripPolicy is SRRIP with bimodal insertion: most installs use the
// distant re-reference prediction (3, evict soon), and with low
// probability (1/32) use the long re-reference prediction (2) instead,
// guarding against thrashing on streaming workloads (spec §4.1).
type brripPolicy struct{}

func (brripPolicy) selectVictim(set *cacheSet, assoc int) int { return srripSelectVictim(set, assoc) }
func (brripPolicy) onHit(set *cacheSet, way int, clock uint64) { set.lines[way].rrip = 0 }
func (brripPolicy) onInstall(set *cacheSet, way int, clock uint64) {
	if rand.IntN(32) == 0 {
		set.lines[way].rrip = 2
	} else {
		set.lines[way].rrip = rripMax
	}
}
