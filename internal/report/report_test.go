// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package report

import (
	"encoding/json"
	"testing"

	"cachexplorer/internal/hierarchy"
	"cachexplorer/internal/prefetch"
	"cachexplorer/internal/simcache"
	"cachexplorer/internal/trace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestSystem(t *testing.T) *hierarchy.CacheSystem {
	t.Helper()
	l1, err := simcache.NewCacheConfig(4, 4, 64, simcache.EvictionLRU, simcache.WriteBack)
	require.NoError(t, err)
	l2, err := simcache.NewCacheConfig(256, 8, 64, simcache.EvictionLRU, simcache.WriteBack)
	require.NoError(t, err)
	cfg := hierarchy.Config{L1D: l1, L1I: l1, L2: l2, Inclusion: hierarchy.Inclusive, Latency: hierarchy.DefaultLatency()}
	return hierarchy.New(cfg, prefetch.New(prefetch.PolicyNone, 0, 64))
}

func TestBuildSingleCoreJSONRoundTrips(t *testing.T) {
	cs := buildTestSystem(t)
	proc := trace.NewProcessor(trace.SingleCoreEngine{System: cs})
	for i := 0; i < 32; i++ {
		proc.Process(trace.Event{Op: trace.Load, Address: uint64(i) * 64, Size: 4, Thread: 1, Source: trace.Source{File: "a.c", Line: 1}})
	}

	r := BuildSingleCore(Options{ConfigName: "custom", Cfg: hierarchy.Config{L1D: cs.L1D.Config, L1I: cs.L1I.Config, L2: cs.L2.Config, Inclusion: hierarchy.Inclusive}, HotLineLimit: 10}, cs, proc)

	data, err := RenderJSON(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "custom", decoded["config"])
	assert.EqualValues(t, 32, decoded["events"])
}

func TestRenderXLSXProducesLevelSheets(t *testing.T) {
	cs := buildTestSystem(t)
	proc := trace.NewProcessor(trace.SingleCoreEngine{System: cs})
	proc.Process(trace.Event{Op: trace.Load, Address: 0x1000, Size: 4, Thread: 1})

	r := BuildSingleCore(Options{ConfigName: "custom", Cfg: hierarchy.Config{L1D: cs.L1D.Config, L1I: cs.L1I.Config, L2: cs.L2.Config}}, cs, proc)
	f, err := RenderXLSX(r)
	require.NoError(t, err)
	assert.Contains(t, f.GetSheetList(), "L1D")
	assert.Contains(t, f.GetSheetList(), "Hot Lines")
}

func TestRenderPrometheusEmitsLevelGauges(t *testing.T) {
	cs := buildTestSystem(t)
	proc := trace.NewProcessor(trace.SingleCoreEngine{System: cs})
	proc.Process(trace.Event{Op: trace.Load, Address: 0x1000, Size: 4, Thread: 1})
	r := BuildSingleCore(Options{ConfigName: "custom", Cfg: hierarchy.Config{L1D: cs.L1D.Config, L1I: cs.L1I.Config, L2: cs.L2.Config}}, cs, proc)

	text, err := RenderPrometheus(r)
	require.NoError(t, err)
	assert.Contains(t, string(text), "cachexplorer_level_accesses_total")
}

func TestSuggestFlagsHighMissRateHotLine(t *testing.T) {
	cs := buildTestSystem(t)
	proc := trace.NewProcessor(trace.SingleCoreEngine{System: cs})
	for i := 0; i < 64; i++ {
		proc.Process(trace.Event{Op: trace.Load, Address: uint64(i) * 4096, Size: 4, Thread: 1, Source: trace.Source{File: "hot.c", Line: 42}})
	}
	suggestions := Suggest(cs, nil, proc)
	assert.NotEmpty(t, suggestions)
}
