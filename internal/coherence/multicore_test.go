// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package coherence

import (
	"testing"

	"cachexplorer/internal/hierarchy"
	"cachexplorer/internal/prefetch"
	"cachexplorer/internal/simcache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallPerCoreConfig(t *testing.T) hierarchy.Config {
	t.Helper()
	l1, err := simcache.NewCacheConfig(4, 4, 64, simcache.EvictionLRU, simcache.WriteBack)
	require.NoError(t, err)
	l2, err := simcache.NewCacheConfig(16, 8, 64, simcache.EvictionLRU, simcache.WriteBack)
	require.NoError(t, err)
	return hierarchy.Config{L1D: l1, L1I: l1, L2: l2, Inclusion: hierarchy.Inclusive, Latency: hierarchy.DefaultLatency()}
}

func tinyPerCoreConfig(t *testing.T) hierarchy.Config {
	t.Helper()
	l1, err := simcache.NewCacheConfig(1, 1, 64, simcache.EvictionLRU, simcache.WriteBack)
	require.NoError(t, err)
	l2, err := simcache.NewCacheConfig(16, 8, 64, simcache.EvictionLRU, simcache.WriteBack)
	require.NoError(t, err)
	return hierarchy.Config{L1D: l1, L1I: l1, L2: l2, Inclusion: hierarchy.Inclusive, Latency: hierarchy.DefaultLatency()}
}

func TestCapacityEvictionClearsDirectoryOwnership(t *testing.T) {
	// Direct-mapped L1D (1 KB, 16 sets x 1 way): a second write 16 lines
	// (0x400 bytes) away lands in the same set and evicts the first line,
	// and that eviction must reach the directory.
	m := New(2, tinyPerCoreConfig(t), prefetch.PolicyNone, 0)

	m.Write(0x1000, 0, "", 0) // core 0 owns line A Modified
	m.Write(0x1400, 0, "", 0) // same set -> evicts A to install B

	before := m.CoherenceInvalidations()
	m.Read(0x1000, 1, "", 0) // core 1 requests A; directory must no longer think core 0 owns it
	assert.Equal(t, before, m.CoherenceInvalidations())
	assert.True(t, m.L1D(1).Probe(0x1000))
}

func TestWriteUpgradesToModifiedAndInvalidatesRemoteSharer(t *testing.T) {
	m := New(2, smallPerCoreConfig(t), prefetch.PolicyNone, 0)
	m.Read(0x1000, 0, "", 0)  // thread 0 -> core 0, Shared/Exclusive
	m.Read(0x1000, 1, "", 0)  // thread 1 -> core 1, now Shared in both

	m.Write(0x1000, 1, "", 0) // core 1 takes it Modified, core 0 must be invalidated

	assert.False(t, m.L1D(0).Probe(0x1000))
	assert.True(t, m.L1D(1).Probe(0x1000))
	assert.GreaterOrEqual(t, m.CoherenceInvalidations(), uint64(1))
}

func TestReadAfterRemoteWriteDowngradesOwnerToShared(t *testing.T) {
	m := New(2, smallPerCoreConfig(t), prefetch.PolicyNone, 0)
	m.Write(0x2000, 0, "", 0) // core 0 owns it Modified
	m.Read(0x2000, 1, "", 0)  // core 1 reads it -> core 0 downgraded, not invalidated

	assert.True(t, m.L1D(0).Probe(0x2000))
	assert.True(t, m.L1D(1).Probe(0x2000))
}

func TestFalseSharingDetectedOnDistinctOffsetsSameLine(t *testing.T) {
	m := New(2, smallPerCoreConfig(t), prefetch.PolicyNone, 0)
	for i := 0; i < 1000; i++ {
		m.Write(0x3000, 0, "a.c", 10)
		m.Write(0x3004, 1, "a.c", 11)
	}
	assert.Contains(t, m.FalseSharingLines(), uint64(0x3000))
	assert.GreaterOrEqual(t, m.CoherenceInvalidations(), uint64(1000))
}

func TestNoFalseSharingWhenSameThreadTouchesBothOffsets(t *testing.T) {
	m := New(2, smallPerCoreConfig(t), prefetch.PolicyNone, 0)
	for i := 0; i < 100; i++ {
		m.Write(0x4000, 0, "a.c", 10)
		m.Write(0x4004, 0, "a.c", 11)
	}
	assert.Empty(t, m.FalseSharingLines())
}

func TestCoreForThreadBindsRoundRobin(t *testing.T) {
	m := New(2, smallPerCoreConfig(t), prefetch.PolicyNone, 0)
	assert.Equal(t, 0, m.CoreForThread(10))
	assert.Equal(t, 1, m.CoreForThread(11))
	assert.Equal(t, 0, m.CoreForThread(12))
	assert.Equal(t, 0, m.CoreForThread(10)) // sticky on repeat
}

func TestFetchUsesPrivateL1IAndSharedL2(t *testing.T) {
	m := New(2, smallPerCoreConfig(t), prefetch.PolicyNone, 0)
	m.Fetch(0x5000, 0)
	assert.True(t, m.L1I(0).Probe(0x5000))
	assert.False(t, m.L1D(0).Probe(0x5000))
	assert.True(t, m.SharedL2().Probe(0x5000))
}

func TestPrefetchStatsSumsAcrossCores(t *testing.T) {
	m := New(2, smallPerCoreConfig(t), prefetch.PolicyStream, 2)
	for i := 0; i < 4; i++ {
		m.Read(uint64(i)*64, 0, "", 0)
	}
	for i := 0; i < 4; i++ {
		m.Read(uint64(i)*64, 1, "", 0)
	}
	stats := m.PrefetchStats()
	assert.Greater(t, stats.Issued, uint64(0))
}
