// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

/*
Package hierarchy implements CacheSystem, the multi-level engine described
in spec §4.2: it composes L1d/L1i/L2/optional-L3 built from internal/
simcache, drives them through the fixed TLB -> L1 -> prefetch -> L2 -> L3
-> memory -> inclusion-maintenance order, and accumulates timing stats.
*/
package hierarchy

import "cachexplorer/internal/simcache"

// Inclusion is the hierarchy's inter-level containment policy (spec §3).
type Inclusion int

const (
	Inclusive Inclusion = iota
	Exclusive
	NINE
)

func (i Inclusion) String() string {
	switch i {
	case Exclusive:
		return "exclusive"
	case NINE:
		return "nine"
	default:
		return "inclusive"
	}
}

// LatencyConfig is the per-level cycle cost used to accumulate TimingStats
// (spec §4.2).
type LatencyConfig struct {
	L1Hit          uint64
	L2Hit          uint64
	L3Hit          uint64
	Memory         uint64
	TLBMissPenalty uint64
}

// DefaultLatency is a reasonable modern-desktop-class latency table, used
// whenever a caller does not supply its own.
func DefaultLatency() LatencyConfig {
	return LatencyConfig{
		L1Hit:          4,
		L2Hit:          12,
		L3Hit:          40,
		Memory:         200,
		TLBMissPenalty: 20,
	}
}

// Config bundles every per-level CacheConfig plus the cross-cutting
// inclusion/latency/prefetch policy a CacheSystem needs to build itself
// (spec §3 "HierarchyConfig").
type Config struct {
	L1D simcache.CacheConfig
	L1I simcache.CacheConfig
	L2  simcache.CacheConfig
	L3  *simcache.CacheConfig // nil when absent (spec §9 "Optional L3")

	Inclusion Inclusion
	Latency   LatencyConfig

	DTLBEntries int
	ITLBEntries int
	PageShift   uint
}
