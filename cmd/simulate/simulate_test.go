// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package simulate

import (
	"strings"
	"testing"

	"cachexplorer/internal/hierarchy"
	"cachexplorer/internal/prefetch"
	"cachexplorer/internal/trace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfigBuiltinPreset(t *testing.T) {
	flagConfig = "intel"
	flagConfigFile = ""
	cfg, err := resolveConfig()
	require.NoError(t, err)
	assert.Greater(t, cfg.L1D.NumSets, 0)
}

func TestResolveConfigCustomFlags(t *testing.T) {
	flagConfig = "custom"
	flagConfigFile = ""
	flagL1Size, flagL1Assoc, flagL1Line = 32, 8, 64
	flagL2Size, flagL2Assoc = 256, 8
	flagL3Size = 0
	flagEviction = "lru"
	flagWritePolicy = "write-back"
	flagInclusion = "inclusive"
	cfg, err := resolveConfig()
	require.NoError(t, err)
	assert.Nil(t, cfg.L3)
	assert.Equal(t, 64, cfg.L1D.LineSize)
}

func TestResolveConfigUnknownInclusionErrors(t *testing.T) {
	flagConfig = "custom"
	flagConfigFile = ""
	flagL1Size, flagL1Assoc, flagL1Line = 32, 8, 64
	flagL2Size, flagL2Assoc = 256, 8
	flagL3Size = 0
	flagEviction = "lru"
	flagWritePolicy = "write-back"
	flagInclusion = "bogus"
	_, err := resolveConfig()
	assert.Error(t, err)
}

func TestProcessCountsEventsAndSkips(t *testing.T) {
	flagConfig = "intel"
	flagConfigFile = ""
	hcfg, rcErr := resolveConfig()
	require.NoError(t, rcErr)

	cs := hierarchy.New(hcfg, prefetch.New(prefetch.PolicyNone, 0, hcfg.L1D.LineSize))
	proc := trace.NewProcessor(trace.SingleCoreEngine{System: cs})

	reader := strings.NewReader("L 1000 4\nbogus line\nS 1004 4\n")
	flagStream = false
	require.NoError(t, process(reader, proc))
	assert.Equal(t, uint64(2), proc.EventsProcessed())
}
