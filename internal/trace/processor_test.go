// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package trace

import (
	"fmt"
	"testing"

	"cachexplorer/internal/coherence"
	"cachexplorer/internal/hierarchy"
	"cachexplorer/internal/prefetch"
	"cachexplorer/internal/simcache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSingleCore(t *testing.T) Engine {
	t.Helper()
	l1, err := simcache.NewCacheConfig(4, 4, 64, simcache.EvictionLRU, simcache.WriteBack)
	require.NoError(t, err)
	l2, err := simcache.NewCacheConfig(256, 8, 64, simcache.EvictionLRU, simcache.WriteBack)
	require.NoError(t, err)
	cfg := hierarchy.Config{L1D: l1, L1I: l1, L2: l2, Inclusion: hierarchy.Inclusive, Latency: hierarchy.DefaultLatency()}
	cs := hierarchy.New(cfg, prefetch.New(prefetch.PolicyNone, 0, 64))
	return SingleCoreEngine{System: cs}
}

func TestSequentialReadsCompulsoryOnlyViaProcessor(t *testing.T) {
	p := NewProcessor(newSingleCore(t))
	for i := 0; i < 1024; i++ {
		addr := 0x1000 + uint64(i)*4
		p.Process(Event{Op: Load, Address: addr, Size: 4, Thread: 1})
	}
	assert.Equal(t, uint64(1024), p.EventsProcessed())
}

func TestStrideAccessAlwaysMissesViaProcessor(t *testing.T) {
	p := NewProcessor(newSingleCore(t))
	for i := 0; i < 64; i++ {
		addr := 0x1000 + uint64(i)*64
		line := fmt.Sprintf("L %x 4 a.c:1", addr)
		ev, ok := ParseLine(line)
		require.True(t, ok)
		p.Process(ev)
	}
	stats := p.GetHotLines(10)
	require.Len(t, stats, 1)
	assert.Equal(t, uint64(64), stats[0].Misses)
	assert.Equal(t, uint64(0), stats[0].Hits)
}

func TestHotReReadHitsAfterFirstMiss(t *testing.T) {
	p := NewProcessor(newSingleCore(t))
	for i := 0; i < 16; i++ {
		p.Process(Event{Op: Load, Address: 0x1000, Size: 4, Thread: 1, Source: Source{File: "a.c", Line: 10}})
	}
	stats := p.GetHotLines(10)
	require.Len(t, stats, 1)
	assert.Equal(t, uint64(1), stats[0].Misses)
	assert.Equal(t, uint64(15), stats[0].Hits)
}

func TestByteRangeCrossingOneLineBoundarySplitsIntoTwoAccesses(t *testing.T) {
	p := NewProcessor(newSingleCore(t))
	p.Process(Event{Op: Load, Address: 0x103c, Size: 8, Thread: 1, Source: Source{File: "a.c", Line: 1}})
	stats := p.GetHotLines(10)
	require.Len(t, stats, 1)
	assert.Equal(t, uint64(2), stats[0].Accesses())
}

func TestGetHotLinesSortsByMissesDescending(t *testing.T) {
	p := NewProcessor(newSingleCore(t))
	p.Process(Event{Op: Load, Address: 0x1000, Size: 4, Source: Source{File: "a.c", Line: 1}, Thread: 1})
	p.Process(Event{Op: Load, Address: 0x2000, Size: 4, Source: Source{File: "b.c", Line: 2}, Thread: 1})
	p.Process(Event{Op: Load, Address: 0x3000, Size: 4, Source: Source{File: "c.c", Line: 3}, Thread: 1})

	hot := p.GetHotLines(2)
	assert.Len(t, hot, 2)
	for _, s := range hot {
		assert.Equal(t, uint64(1), s.Misses)
	}
}

func TestSoftwarePrefetchCreditsUsefulOnDemandHit(t *testing.T) {
	p := NewProcessor(newSingleCore(t))
	p.Process(Event{Op: Prefetch, Address: 0x1000, Size: 4, Thread: 1})
	p.Process(Event{Op: Load, Address: 0x1000, Size: 4, Thread: 1})
	assert.Equal(t, uint64(1), p.SoftwarePrefetch.Issued)
	assert.Equal(t, uint64(1), p.SoftwarePrefetch.Useful)
}

func newMultiCore(t *testing.T, numCores int) *coherence.MultiCoreEngine {
	t.Helper()
	l1, err := simcache.NewCacheConfig(4, 4, 64, simcache.EvictionLRU, simcache.WriteBack)
	require.NoError(t, err)
	l2, err := simcache.NewCacheConfig(256, 8, 64, simcache.EvictionLRU, simcache.WriteBack)
	require.NoError(t, err)
	cfg := hierarchy.Config{L1D: l1, L1I: l1, L2: l2, Inclusion: hierarchy.Inclusive, Latency: hierarchy.DefaultLatency()}
	return coherence.New(numCores, cfg, prefetch.PolicyNone, 0)
}

func TestFalseSharingScenario(t *testing.T) {
	m := newMultiCore(t, 2)
	engine := MultiCoreEngineAdapter{Engine: m, LineSize: 64}
	p := NewProcessor(engine)

	for i := 0; i < 1000; i++ {
		p.Process(Event{Op: Store, Address: 0x1000, Size: 4, Thread: 1})
		p.Process(Event{Op: Store, Address: 0x1004, Size: 4, Thread: 2})
	}

	assert.Len(t, m.FalseSharingLines(), 1)
	assert.GreaterOrEqual(t, m.CoherenceInvalidations(), uint64(1000))
}
