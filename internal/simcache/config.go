// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

/*
Package simcache implements the per-level set-associative cache array: tag/
index/offset decomposition, pluggable eviction policies, and 3C miss
classification. It has no notion of a multi-level hierarchy, coherence, or
prefetching; those live in internal/hierarchy, internal/coherence, and
internal/prefetch respectively.
*/
package simcache

import (
	"math/bits"

	"github.com/pkg/errors"
)

// WritePolicy controls how stores are propagated on a write hit/miss.
type WritePolicy int

const (
	WriteBack WritePolicy = iota
	WriteThrough
)

func (p WritePolicy) String() string {
	if p == WriteThrough {
		return "write-through"
	}
	return "write-back"
}

// Eviction names the victim-selection algorithm a CacheLevel uses.
type Eviction int

const (
	EvictionLRU Eviction = iota
	EvictionPLRU
	EvictionRandom
	EvictionSRRIP
	EvictionBRRIP
)

func (e Eviction) String() string {
	switch e {
	case EvictionLRU:
		return "lru"
	case EvictionPLRU:
		return "plru"
	case EvictionRandom:
		return "random"
	case EvictionSRRIP:
		return "srrip"
	case EvictionBRRIP:
		return "brrip"
	default:
		return "unknown"
	}
}

// ParseEviction maps a preset/flag name to an Eviction, returning
// ErrUnknownPolicy if the name is not recognized. The CLI layer is
// responsible for turning that into a usage error or panic (spec §7.5);
// the core itself never panics on a bad string.
func ParseEviction(name string) (Eviction, error) {
	switch name {
	case "lru":
		return EvictionLRU, nil
	case "plru":
		return EvictionPLRU, nil
	case "random":
		return EvictionRandom, nil
	case "srrip":
		return EvictionSRRIP, nil
	case "brrip":
		return EvictionBRRIP, nil
	default:
		return 0, errors.Wrapf(ErrUnknownPolicy, "eviction policy %q", name)
	}
}

// ErrUnknownPolicy and ErrInvalidConfig are the sentinel causes behind the
// wrapped errors returned by ParseEviction and NewCacheConfig; callers can
// test for them with errors.Is.
var (
	ErrUnknownPolicy = errors.New("unknown eviction policy")
	ErrInvalidConfig = errors.New("invalid cache configuration")
)

// CacheConfig describes the geometry of one cache level. NumSets,
// OffsetBits, and IndexBits are derived once by NewCacheConfig and cached
// on the struct so hot-path access code never recomputes them.
type CacheConfig struct {
	KBSize        int
	Associativity int
	LineSize      int
	Eviction      Eviction
	WritePolicy   WritePolicy

	NumSets    int
	OffsetBits uint
	IndexBits  uint
}

// NewCacheConfig validates the raw parameters and derives NumSets,
// OffsetBits, and IndexBits. It fails with ErrInvalidConfig when LineSize
// or NumSets would not be a power of two, or when KBSize/Associativity/
// LineSize are non-positive — the constructor rejects such configs before
// any access is ever attempted (spec §4.1).
func NewCacheConfig(kbSize, associativity, lineSize int, eviction Eviction, writePolicy WritePolicy) (CacheConfig, error) {
	if kbSize <= 0 {
		return CacheConfig{}, errors.Wrap(ErrInvalidConfig, "kb_size must be positive")
	}
	if associativity <= 0 {
		return CacheConfig{}, errors.Wrap(ErrInvalidConfig, "associativity must be positive")
	}
	if lineSize <= 0 || !isPowerOfTwo(lineSize) {
		return CacheConfig{}, errors.Wrapf(ErrInvalidConfig, "line_size %d must be a positive power of two", lineSize)
	}
	totalBytes := kbSize * 1024
	lineBytes := lineSize * associativity
	if totalBytes%lineBytes != 0 {
		return CacheConfig{}, errors.Wrapf(ErrInvalidConfig, "kb_size %dKB is not a whole multiple of line_size*associativity (%d bytes)", kbSize, lineBytes)
	}
	numSets := totalBytes / lineBytes
	if !isPowerOfTwo(numSets) {
		return CacheConfig{}, errors.Wrapf(ErrInvalidConfig, "num_sets %d must be a power of two", numSets)
	}
	if (eviction == EvictionPLRU || eviction == EvictionSRRIP || eviction == EvictionBRRIP) && associativity > 64 {
		return CacheConfig{}, errors.Wrapf(ErrInvalidConfig, "associativity %d too large for %s state bitmap", associativity, eviction)
	}
	return CacheConfig{
		KBSize:        kbSize,
		Associativity: associativity,
		LineSize:      lineSize,
		Eviction:      eviction,
		WritePolicy:   writePolicy,
		NumSets:       numSets,
		OffsetBits:    uint(bits.TrailingZeros(uint(lineSize))),
		IndexBits:     uint(bits.TrailingZeros(uint(numSets))),
	}, nil
}

func isPowerOfTwo(v int) bool {
	return v > 0 && v&(v-1) == 0
}

// decompose splits an address into tag, set index, and line-aligned base
// address. When IndexBits is zero (a fully-associative single-set cache,
// spec §8 "num_sets == 1") the index mask is zero, not a 64-bit shift —
// shifting a uint64 by 64 is undefined in Go's spec for non-constant
// shifts of that width and spec §7.3 calls this out explicitly.
func (c CacheConfig) decompose(addr uint64) (tag uint64, index int, lineAddr uint64) {
	lineAddr = addr &^ (uint64(c.LineSize) - 1)
	lineNumber := lineAddr >> c.OffsetBits
	if c.IndexBits == 0 {
		return lineNumber, 0, lineAddr
	}
	mask := uint64(c.NumSets) - 1
	index = int(lineNumber & mask)
	tag = lineNumber >> c.IndexBits
	return
}

// rebuildAddress reconstructs a line-aligned address from a tag and the
// set index that held it. Spec §4.1/§9 insist this uses the victim's own
// set index, not the accessor's — the two are equal for a correctly
// decomposed address but must not be assumed so when refactoring.
func (c CacheConfig) rebuildAddress(tag uint64, setIndex int) uint64 {
	lineNumber := (tag << c.IndexBits) | uint64(setIndex)
	return lineNumber << c.OffsetBits
}
