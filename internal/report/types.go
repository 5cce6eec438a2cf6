// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

/*
Package report renders a completed simulation run to the stable JSON
schema of spec §6, an XLSX workbook, and a Prometheus text exposition,
and derives human-readable optimization suggestions from the same stats.
*/
package report

// LevelStats is one cache level's result block (spec §6 "levels").
type LevelStats struct {
	Hits           uint64          `json:"hits"`
	Misses         uint64          `json:"misses"`
	HitRate        float64         `json:"hitRate"`
	Writebacks     uint64          `json:"writebacks"`
	Classification *Classification `json:"classification,omitempty"`
}

// Classification is the 3C miss breakdown (spec §4.1 MissClass).
type Classification struct {
	Compulsory uint64 `json:"compulsory"`
	Capacity   uint64 `json:"capacity"`
	Conflict   uint64 `json:"conflict"`
}

// CoherenceStats is the multi-core MESI summary (spec §4.4/§4.5).
type CoherenceStats struct {
	Invalidations      uint64 `json:"invalidations"`
	FalseSharingEvents int    `json:"falseSharingEvents"`
}

// HotLine is one ranked source-attribution row (spec §4.6).
type HotLine struct {
	File     string   `json:"file"`
	Line     uint32   `json:"line"`
	Hits     uint64   `json:"hits"`
	Misses   uint64   `json:"misses"`
	MissRate float64  `json:"missRate"`
	Threads  []uint32 `json:"threads,omitempty"`
}

// FalseSharingLine is one cache line flagged by the false-sharing detector
// (spec §4.5).
type FalseSharingLine struct {
	Address uint64 `json:"address"`
}

// PrefetchStats mirrors internal/prefetch.Stats plus the policy/degree
// used for the run (spec §4.3).
type PrefetchStats struct {
	Policy   string  `json:"policy"`
	Degree   int     `json:"degree"`
	Issued   uint64  `json:"issued"`
	Useful   uint64  `json:"useful"`
	Late     uint64  `json:"late"`
	Useless  uint64  `json:"useless"`
	Accuracy float64 `json:"accuracy"`
}

// TLBStats echoes the configured DTLB/ITLB entry counts; it carries no
// TLB hit or miss counts.
type TLBStats struct {
	DTLBEntries int `json:"dtlbEntries"`
	ITLBEntries int `json:"itlbEntries"`
}

// CacheConfigSummary is a terse echo of the hierarchy.Config used for the
// run, for the JSON "cacheConfig" key.
type CacheConfigSummary struct {
	L1D       CacheLevelSummary  `json:"l1d"`
	L1I       CacheLevelSummary  `json:"l1i"`
	L2        CacheLevelSummary  `json:"l2"`
	L3        *CacheLevelSummary `json:"l3,omitempty"`
	Inclusion string             `json:"inclusion"`
}

// CacheLevelSummary echoes one level's geometry.
type CacheLevelSummary struct {
	NumSets       int    `json:"numSets"`
	Associativity int    `json:"associativity"`
	LineSize      int    `json:"lineSize"`
	Eviction      string `json:"eviction"`
	WritePolicy   string `json:"writePolicy"`
}

// Levels bundles the per-level result blocks (spec §6 "levels").
type Levels struct {
	L1D LevelStats  `json:"l1d"`
	L1I LevelStats  `json:"l1i"`
	L2  LevelStats  `json:"l2"`
	L3  *LevelStats `json:"l3,omitempty"`
}

// Report is the full top-level JSON object of spec §6.
type Report struct {
	Config       string             `json:"config"`
	Events       uint64             `json:"events"`
	Multicore    bool               `json:"multicore"`
	Cores        int                `json:"cores"`
	Threads      int                `json:"threads"`
	CacheConfig  CacheConfigSummary `json:"cacheConfig"`
	Levels       Levels             `json:"levels"`
	Coherence    *CoherenceStats    `json:"coherence,omitempty"`
	HotLines     []HotLine          `json:"hotLines"`
	FalseSharing []FalseSharingLine `json:"falseSharing,omitempty"`
	Suggestions  []string           `json:"suggestions"`
	Prefetch     PrefetchStats      `json:"prefetch"`
	TLB          TLBStats           `json:"tlb"`
}
