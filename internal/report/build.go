// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package report

import (
	"cachexplorer/internal/coherence"
	"cachexplorer/internal/hierarchy"
	"cachexplorer/internal/prefetch"
	"cachexplorer/internal/simcache"
	"cachexplorer/internal/trace"
)

func levelSummary(cfg simcache.CacheConfig) CacheLevelSummary {
	return CacheLevelSummary{
		NumSets:       cfg.NumSets,
		Associativity: cfg.Associativity,
		LineSize:      cfg.LineSize,
		Eviction:      cfg.Eviction.String(),
		WritePolicy:   cfg.WritePolicy.String(),
	}
}

func levelStats(l *simcache.CacheLevel) LevelStats {
	s := l.Stats()
	return LevelStats{
		Hits:       s.Hits,
		Misses:     s.Misses,
		HitRate:    s.HitRate(),
		Writebacks: s.Writebacks,
		Classification: &Classification{
			Compulsory: s.Compulsory,
			Capacity:   s.Capacity,
			Conflict:   s.Conflict,
		},
	}
}

func sumLevelStats(a, b LevelStats) LevelStats {
	out := LevelStats{
		Hits:       a.Hits + b.Hits,
		Misses:     a.Misses + b.Misses,
		Writebacks: a.Writebacks + b.Writebacks,
	}
	if a.Classification != nil && b.Classification != nil {
		out.Classification = &Classification{
			Compulsory: a.Classification.Compulsory + b.Classification.Compulsory,
			Capacity:   a.Classification.Capacity + b.Classification.Capacity,
			Conflict:   a.Classification.Conflict + b.Classification.Conflict,
		}
	}
	total := out.Hits + out.Misses
	if total > 0 {
		out.HitRate = float64(out.Hits) / float64(total)
	}
	return out
}

// Options carries the run's configuration context into the built Report.
type Options struct {
	ConfigName     string
	Cfg            hierarchy.Config
	PrefetchPolicy prefetch.Policy
	PrefetchDegree int
	HotLineLimit   int
}

// BuildSingleCore assembles a Report from a single-core run.
func BuildSingleCore(opts Options, cs *hierarchy.CacheSystem, proc *trace.Processor) Report {
	r := Report{
		Config:      opts.ConfigName,
		Events:      proc.EventsProcessed(),
		Multicore:   false,
		Cores:       1,
		Threads:     1,
		CacheConfig: cacheConfigSummary(opts.Cfg),
		Levels: Levels{
			L1D: levelStats(cs.L1D),
			L1I: levelStats(cs.L1I),
			L2:  levelStats(cs.L2),
		},
		HotLines:    toHotLines(proc.GetHotLines(opts.HotLineLimit)),
		Suggestions: Suggest(cs, nil, proc),
		Prefetch:    prefetchStats(opts.PrefetchPolicy, opts.PrefetchDegree, cs.Prefetcher.Stats()),
		TLB:         TLBStats{DTLBEntries: opts.Cfg.DTLBEntries, ITLBEntries: opts.Cfg.ITLBEntries},
	}
	if cs.L3 != nil {
		l3 := levelStats(cs.L3)
		r.Levels.L3 = &l3
	}
	return r
}

// BuildMultiCore assembles a Report from a multi-core run, summing
// per-core L1 stats and reporting the shared L2/L3 once.
func BuildMultiCore(opts Options, m *coherence.MultiCoreEngine, proc *trace.Processor) Report {
	var l1d, l1i LevelStats
	for core := 0; core < m.NumCores(); core++ {
		l1d = sumLevelStats(l1d, levelStats(m.L1D(core)))
		l1i = sumLevelStats(l1i, levelStats(m.L1I(core)))
	}
	r := Report{
		Config:      opts.ConfigName,
		Events:      proc.EventsProcessed(),
		Multicore:   true,
		Cores:       m.NumCores(),
		Threads:     len(m.Threads()),
		CacheConfig: cacheConfigSummary(opts.Cfg),
		Levels: Levels{
			L1D: l1d,
			L1I: l1i,
			L2:  levelStats(m.SharedL2()),
		},
		Coherence: &CoherenceStats{
			Invalidations:      m.CoherenceInvalidations(),
			FalseSharingEvents: len(m.FalseSharingLines()),
		},
		HotLines:    toHotLines(proc.GetHotLines(opts.HotLineLimit)),
		Suggestions: Suggest(nil, m, proc),
		Prefetch:    prefetchStats(opts.PrefetchPolicy, opts.PrefetchDegree, m.PrefetchStats()),
		TLB:         TLBStats{DTLBEntries: opts.Cfg.DTLBEntries, ITLBEntries: opts.Cfg.ITLBEntries},
	}
	if m.SharedL3() != nil {
		l3 := levelStats(m.SharedL3())
		r.Levels.L3 = &l3
	}
	for _, addr := range m.FalseSharingLines() {
		r.FalseSharing = append(r.FalseSharing, FalseSharingLine{Address: addr})
	}
	return r
}

func cacheConfigSummary(cfg hierarchy.Config) CacheConfigSummary {
	out := CacheConfigSummary{
		L1D:       levelSummary(cfg.L1D),
		L1I:       levelSummary(cfg.L1I),
		L2:        levelSummary(cfg.L2),
		Inclusion: cfg.Inclusion.String(),
	}
	if cfg.L3 != nil {
		l3 := levelSummary(*cfg.L3)
		out.L3 = &l3
	}
	return out
}

func toHotLines(stats []*trace.SourceStats) []HotLine {
	out := make([]HotLine, 0, len(stats))
	for _, s := range stats {
		out = append(out, HotLine{
			File:     s.File,
			Line:     s.Line,
			Hits:     s.Hits,
			Misses:   s.Misses,
			MissRate: s.MissRate(),
			Threads:  s.Threads.ToSlice(),
		})
	}
	return out
}

func prefetchStats(policy prefetch.Policy, degree int, s prefetch.Stats) PrefetchStats {
	return PrefetchStats{
		Policy:   policy.String(),
		Degree:   degree,
		Issued:   s.Issued,
		Useful:   s.Useful,
		Late:     s.Late,
		Useless:  s.Useless,
		Accuracy: s.Accuracy(),
	}
}
