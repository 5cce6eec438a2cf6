// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

/*
Package config builds internal/hierarchy.Config values from the built-in
presets (§6's `--config <preset>` table) or from explicit flags/a user YAML
file for `--config custom`.
*/
package config

import (
	"embed"
	"os"
	"sort"

	"cachexplorer/internal/hierarchy"
	"cachexplorer/internal/simcache"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

//go:embed presets.yaml
var presetsFS embed.FS

// ConfigError wraps a configuration construction failure (spec §7.1
// ConfigurationError), constructed with errors.Wrap the way the teacher
// wraps script/parse failures.
type ConfigError struct {
	cause error
}

func (e *ConfigError) Error() string { return e.cause.Error() }
func (e *ConfigError) Unwrap() error { return e.cause }

func wrap(cause error) error {
	if cause == nil {
		return nil
	}
	return &ConfigError{cause: cause}
}

type cacheSpec struct {
	KBSize        int    `yaml:"kb_size"`
	Associativity int    `yaml:"associativity"`
	LineSize      int    `yaml:"line_size"`
	Eviction      string `yaml:"eviction"`
	WritePolicy   string `yaml:"write_policy"`
}

type latencySpec struct {
	L1Hit          uint64 `yaml:"l1_hit"`
	L2Hit          uint64 `yaml:"l2_hit"`
	L3Hit          uint64 `yaml:"l3_hit"`
	Memory         uint64 `yaml:"memory"`
	TLBMissPenalty uint64 `yaml:"tlb_miss_penalty"`
}

type presetSpec struct {
	L1D         cacheSpec    `yaml:"l1d"`
	L1I         cacheSpec    `yaml:"l1i"`
	L2          cacheSpec    `yaml:"l2"`
	L3          *cacheSpec   `yaml:"l3,omitempty"`
	Inclusion   string       `yaml:"inclusion"`
	DTLBEntries int          `yaml:"dtlb_entries"`
	ITLBEntries int          `yaml:"itlb_entries"`
	PageShift   uint         `yaml:"page_shift"`
	Latency     latencySpec  `yaml:"latency"`
}

var writePolicyNames = map[string]simcache.WritePolicy{
	"write-back":    simcache.WriteBack,
	"write-through": simcache.WriteThrough,
}

func (s cacheSpec) build() (simcache.CacheConfig, error) {
	eviction, err := simcache.ParseEviction(s.Eviction)
	if err != nil {
		return simcache.CacheConfig{}, err
	}
	wp, ok := writePolicyNames[s.WritePolicy]
	if !ok {
		return simcache.CacheConfig{}, errors.Wrapf(simcache.ErrUnknownPolicy, "write policy %q", s.WritePolicy)
	}
	return simcache.NewCacheConfig(s.KBSize, s.Associativity, s.LineSize, eviction, wp)
}

func parseInclusion(name string) (hierarchy.Inclusion, error) {
	switch name {
	case "inclusive":
		return hierarchy.Inclusive, nil
	case "exclusive":
		return hierarchy.Exclusive, nil
	case "nine":
		return hierarchy.NINE, nil
	default:
		return 0, errors.Wrapf(simcache.ErrUnknownPolicy, "inclusion policy %q", name)
	}
}

func (s presetSpec) build() (hierarchy.Config, error) {
	l1d, err := s.L1D.build()
	if err != nil {
		return hierarchy.Config{}, errors.Wrap(err, "l1d")
	}
	l1i, err := s.L1I.build()
	if err != nil {
		return hierarchy.Config{}, errors.Wrap(err, "l1i")
	}
	l2, err := s.L2.build()
	if err != nil {
		return hierarchy.Config{}, errors.Wrap(err, "l2")
	}
	inclusion, err := parseInclusion(s.Inclusion)
	if err != nil {
		return hierarchy.Config{}, err
	}

	cfg := hierarchy.Config{
		L1D:       l1d,
		L1I:       l1i,
		L2:        l2,
		Inclusion: inclusion,
		Latency: hierarchy.LatencyConfig{
			L1Hit:          s.Latency.L1Hit,
			L2Hit:          s.Latency.L2Hit,
			L3Hit:          s.Latency.L3Hit,
			Memory:         s.Latency.Memory,
			TLBMissPenalty: s.Latency.TLBMissPenalty,
		},
		DTLBEntries: s.DTLBEntries,
		ITLBEntries: s.ITLBEntries,
		PageShift:   s.PageShift,
	}
	if s.L3 != nil {
		l3, err := s.L3.build()
		if err != nil {
			return hierarchy.Config{}, errors.Wrap(err, "l3")
		}
		cfg.L3 = &l3
	}
	return cfg, nil
}

func loadPresetTable() (map[string]presetSpec, error) {
	data, err := presetsFS.ReadFile("presets.yaml")
	if err != nil {
		return nil, errors.Wrap(err, "reading embedded presets.yaml")
	}
	var table map[string]presetSpec
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, errors.Wrap(err, "parsing embedded presets.yaml")
	}
	return table, nil
}

// PresetNames returns every built-in preset name, sorted, excluding
// "custom" (which is not a table entry; it is built from flags or
// --config-file).
func PresetNames() ([]string, error) {
	table, err := loadPresetTable()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Load resolves a built-in preset name to a hierarchy.Config (spec §6
// `--config <preset>`).
func Load(name string) (hierarchy.Config, error) {
	table, err := loadPresetTable()
	if err != nil {
		return hierarchy.Config{}, wrap(err)
	}
	spec, ok := table[name]
	if !ok {
		return hierarchy.Config{}, wrap(errors.Wrapf(simcache.ErrUnknownPolicy, "unknown config preset %q", name))
	}
	cfg, err := spec.build()
	if err != nil {
		return hierarchy.Config{}, wrap(errors.Wrapf(err, "preset %q", name))
	}
	return cfg, nil
}

// LoadFile reads a single preset definition (the same schema as one entry
// of presets.yaml) from a user-supplied YAML file, for `--config custom
// --config-file <path>`.
func LoadFile(path string) (hierarchy.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return hierarchy.Config{}, wrap(errors.Wrapf(err, "reading config file %q", path))
	}
	var spec presetSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return hierarchy.Config{}, wrap(errors.Wrapf(err, "parsing config file %q", path))
	}
	cfg, err := spec.build()
	if err != nil {
		return hierarchy.Config{}, wrap(errors.Wrapf(err, "config file %q", path))
	}
	return cfg, nil
}

// CustomFlags is the raw `--l1-*/--l2-*/--l3-*` geometry for
// `--config custom` without a `--config-file` (spec §6). L3 fields are
// zero when no L3 is wanted.
type CustomFlags struct {
	L1Size, L1Assoc, L1Line int
	L2Size, L2Assoc         int
	L3Size, L3Assoc         int

	Eviction    simcache.Eviction
	WritePolicy simcache.WritePolicy
	Inclusion   hierarchy.Inclusion
}

// BuildCustom constructs a hierarchy.Config directly from CustomFlags,
// using DefaultLatency and 64-entry DTLB and ITLB with 4 KB pages.
func BuildCustom(f CustomFlags) (hierarchy.Config, error) {
	l1d, err := simcache.NewCacheConfig(f.L1Size, f.L1Assoc, f.L1Line, f.Eviction, f.WritePolicy)
	if err != nil {
		return hierarchy.Config{}, wrap(errors.Wrap(err, "l1"))
	}
	l2, err := simcache.NewCacheConfig(f.L2Size, f.L2Assoc, f.L1Line, f.Eviction, f.WritePolicy)
	if err != nil {
		return hierarchy.Config{}, wrap(errors.Wrap(err, "l2"))
	}
	cfg := hierarchy.Config{
		L1D:         l1d,
		L1I:         l1d,
		L2:          l2,
		Inclusion:   f.Inclusion,
		Latency:     hierarchy.DefaultLatency(),
		DTLBEntries: 64,
		ITLBEntries: 64,
		PageShift:   12,
	}
	if f.L3Size > 0 {
		l3, err := simcache.NewCacheConfig(f.L3Size, f.L3Assoc, f.L1Line, f.Eviction, f.WritePolicy)
		if err != nil {
			return hierarchy.Config{}, wrap(errors.Wrap(err, "l3"))
		}
		cfg.L3 = &l3
	}
	return cfg, nil
}
