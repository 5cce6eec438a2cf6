// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package report

import (
	"fmt"

	"cachexplorer/internal/coherence"
	"cachexplorer/internal/hierarchy"
	"cachexplorer/internal/trace"
)

// Suggest derives human-readable optimization hints from a completed run's
// stats (spec §6 "suggestions"). Exactly one of cs/m is non-nil.
func Suggest(cs *hierarchy.CacheSystem, m *coherence.MultiCoreEngine, proc *trace.Processor) []string {
	var out []string

	l1Stats := func() (hits, misses uint64) {
		if cs != nil {
			s := cs.L1D.Stats()
			return s.Hits, s.Misses
		}
		for core := 0; core < m.NumCores(); core++ {
			s := m.L1D(core).Stats()
			hits += s.Hits
			misses += s.Misses
		}
		return
	}
	hits, misses := l1Stats()
	total := hits + misses
	if total > 0 && float64(misses)/float64(total) > 0.2 {
		out = append(out, "L1D miss rate exceeds 20%; consider a larger or more associative L1D, or restructuring the working set for locality.")
	}

	hot := proc.GetHotLines(5)
	for _, s := range hot {
		if s.MissRate() > 0.5 && s.Accesses() >= 16 {
			out = append(out, fmt.Sprintf("%s:%d has a %.0f%% miss rate across %d accesses; a likely hot loop worth optimizing for locality.", s.File, s.Line, s.MissRate()*100, s.Accesses()))
		}
	}

	if m != nil {
		if inv := m.CoherenceInvalidations(); inv > 0 {
			out = append(out, fmt.Sprintf("%d coherence invalidations observed; consider thread-to-data affinity to reduce cross-core contention.", inv))
		}
		if n := len(m.FalseSharingLines()); n > 0 {
			out = append(out, fmt.Sprintf("%d cache line(s) show false sharing between threads; pad or separate the conflicting fields.", n))
		}
	}

	if proc.SoftwarePrefetch.Issued > 0 && proc.SoftwarePrefetch.Redundant > proc.SoftwarePrefetch.Useful {
		out = append(out, "software prefetches are more often redundant than useful; consider removing or retuning their distance.")
	}

	return out
}
