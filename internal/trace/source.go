// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package trace

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// SourceStats accumulates hit/miss counts for one (file, line) pair (spec
// §3). Created on first sight, never destroyed within a run.
type SourceStats struct {
	File    string
	Line    uint32
	Hits    uint64
	Misses  uint64
	Threads mapset.Set[uint32]
}

// Accesses returns Hits+Misses.
func (s SourceStats) Accesses() uint64 { return s.Hits + s.Misses }

// MissRate returns Misses/Accesses, or 0 before any access.
func (s SourceStats) MissRate() float64 {
	total := s.Accesses()
	if total == 0 {
		return 0
	}
	return float64(s.Misses) / float64(total)
}

func newSourceStats(file string, line uint32) *SourceStats {
	return &SourceStats{File: file, Line: line, Threads: mapset.NewThreadUnsafeSet[uint32]()}
}

// hotLines sorts stats by misses descending, tie-broken lexicographically
// on (misses, hits, file, line) per spec §4.6, and caps the result at
// limit. limit <= 0 means unbounded.
func hotLines(stats map[Source]*SourceStats, limit int) []*SourceStats {
	out := make([]*SourceStats, 0, len(stats))
	for _, s := range stats {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Misses != b.Misses {
			return a.Misses > b.Misses
		}
		if a.Hits != b.Hits {
			return a.Hits > b.Hits
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
