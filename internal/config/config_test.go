// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"testing"

	"cachexplorer/internal/hierarchy"
	"cachexplorer/internal/simcache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetNamesIncludesEveryDocumentedPreset(t *testing.T) {
	names, err := PresetNames()
	require.NoError(t, err)
	for _, want := range []string{
		"intel", "intel12", "intel14", "xeon", "xeon8488c", "zen3", "amd",
		"epyc", "apple", "apple_m2", "apple_m3", "graviton3", "rpi4",
		"embedded", "educational",
	} {
		assert.Contains(t, names, want)
	}
}

func TestLoadEveryPresetBuildsCleanly(t *testing.T) {
	names, err := PresetNames()
	require.NoError(t, err)
	for _, name := range names {
		cfg, err := Load(name)
		require.NoError(t, err, name)
		assert.Greater(t, cfg.L1D.NumSets, 0, name)
		assert.Greater(t, cfg.L2.NumSets, 0, name)
	}
}

func TestLoadUnknownPresetReturnsConfigError(t *testing.T) {
	_, err := Load("nonexistent")
	require.Error(t, err)
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestBuildCustomAssemblesHierarchyConfig(t *testing.T) {
	cfg, err := BuildCustom(CustomFlags{
		L1Size: 32, L1Assoc: 8, L1Line: 64,
		L2Size: 256, L2Assoc: 8,
		Eviction:    simcache.EvictionLRU,
		WritePolicy: simcache.WriteBack,
		Inclusion:   hierarchy.Inclusive,
	})
	require.NoError(t, err)
	assert.Nil(t, cfg.L3)
	assert.Equal(t, 64, cfg.L1D.LineSize)
}

func TestBuildCustomWithL3(t *testing.T) {
	cfg, err := BuildCustom(CustomFlags{
		L1Size: 32, L1Assoc: 8, L1Line: 64,
		L2Size: 256, L2Assoc: 8,
		L3Size: 8192, L3Assoc: 16,
		Eviction:    simcache.EvictionLRU,
		WritePolicy: simcache.WriteBack,
		Inclusion:   hierarchy.Inclusive,
	})
	require.NoError(t, err)
	require.NotNil(t, cfg.L3)
	assert.Greater(t, cfg.L3.NumSets, 0)
}
