// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package simcache

import mapset "github.com/deckarep/golang-set/v2"

// AccessResult is the outcome CacheLevel.Access reports for one access.
type AccessResult int

const (
	Hit AccessResult = iota
	Miss
	MissWithEviction
)

func (r AccessResult) String() string {
	switch r {
	case Hit:
		return "hit"
	case MissWithEviction:
		return "miss-with-eviction"
	default:
		return "miss"
	}
}

// MissClass is the 3C classification of a miss (spec §4.1). Unclassified
// is reported when fast mode is enabled and classification was skipped.
type MissClass int

const (
	Unclassified MissClass = iota
	Compulsory
	Capacity
	Conflict
)

// AccessInfo is CacheLevel.Access's return value.
type AccessInfo struct {
	Result         AccessResult
	WasDirty       bool
	EvictedAddress uint64
	HadEviction    bool
	Class          MissClass
}

// Stats accumulates the hit/miss/writeback/classification counters spec
// §6's JSON schema reports per level.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Writebacks  uint64
	Compulsory  uint64
	Capacity    uint64
	Conflict    uint64
}

// Accesses returns hits+misses; Conservation (spec §8) requires this to
// equal the number of Access calls made against the level.
func (s Stats) Accesses() uint64 { return s.Hits + s.Misses }

// HitRate returns Hits/Accesses, or 0 when the level has never been
// accessed (Conservation's "0 <= hit_rate <= 1" holds trivially).
func (s Stats) HitRate() float64 {
	total := s.Accesses()
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// CacheLevel is one set-associative array: L1d, L1i, L2, or L3. It owns
// its sets exclusively (spec §3 "Ownership").
type CacheLevel struct {
	Config CacheConfig

	sets        []*cacheSet
	policy      evictionPolicy
	globalClock uint64
	stats       Stats

	fastMode        bool
	everAccessed    mapset.Set[uint64]
	uniqueLinesSeen uint64
}

// NewCacheLevel constructs a CacheLevel from an already-validated config.
func NewCacheLevel(cfg CacheConfig) *CacheLevel {
	sets := make([]*cacheSet, cfg.NumSets)
	for i := range sets {
		sets[i] = newCacheSet(cfg.Associativity)
	}
	return &CacheLevel{
		Config:       cfg,
		sets:         sets,
		policy:       newEvictionPolicy(cfg.Eviction),
		everAccessed: mapset.NewThreadUnsafeSet[uint64](),
	}
}

// SetFastMode toggles 3C classification bookkeeping. Switching it off also
// stops populating everAccessed and the per-set uniqueness counters (spec
// §9 "Fast mode").
func (c *CacheLevel) SetFastMode(fast bool) { c.fastMode = fast }

// Stats returns a copy of the level's current counters.
func (c *CacheLevel) Stats() Stats { return c.stats }

// Access performs a demand access: tag/index/offset decomposition, hit/
// miss determination, replacement-state update, and (on miss) victim
// selection and install (spec §4.1).
func (c *CacheLevel) Access(addr uint64, isWrite bool) AccessInfo {
	c.globalClock++
	tag, index, lineAddr := c.Config.decompose(addr)
	set := c.sets[index]

	if way := set.find(tag); way >= 0 {
		set.lines[way].dirty = set.lines[way].dirty || isWrite
		c.policy.onHit(set, way, c.globalClock)
		c.stats.Hits++
		return AccessInfo{Result: Hit}
	}

	c.stats.Misses++
	class := c.classifyMiss(lineAddr, index, set)
	switch class {
	case Compulsory:
		c.stats.Compulsory++
	case Capacity:
		c.stats.Capacity++
	case Conflict:
		c.stats.Conflict++
	}

	info := c.installVictim(set, tag, index, isWrite, Exclusive)
	info.Result = Miss
	if info.HadEviction {
		info.Result = MissWithEviction
		if info.WasDirty {
			c.stats.Writebacks++
		}
	}
	info.Class = class
	return info
}

// classifyMiss applies the 3C rules of spec §4.1. It is a no-op
// (Unclassified) in fast mode; in fast mode installVictim also skips the
// ever-accessed/uniqueness bookkeeping, so lines installed while fast mode
// is on are not recorded in that history.
func (c *CacheLevel) classifyMiss(lineAddr uint64, index int, set *cacheSet) MissClass {
	if c.fastMode {
		return Unclassified
	}
	if !c.everAccessed.Contains(lineAddr) {
		return Compulsory
	}
	if len(set.uniqueTags) > c.Config.Associativity {
		return Conflict
	}
	if c.uniqueLinesSeen >= uint64(len(c.sets)*c.Config.Associativity) {
		return Capacity
	}
	return Conflict
}

// installVictim picks a victim (invalid ways first, per spec §4.1 edge
// cases), evicts it if valid, and installs the new tag with the given
// coherence state.
func (c *CacheLevel) installVictim(set *cacheSet, tag uint64, index int, isWrite bool, state CoherenceState) AccessInfo {
	way := set.findInvalid()
	var info AccessInfo
	if way < 0 {
		way = c.policy.selectVictim(set, c.Config.Associativity)
		victim := set.lines[way]
		if victim.valid {
			info.HadEviction = true
			info.WasDirty = victim.dirty
			info.EvictedAddress = c.Config.rebuildAddress(victim.tag, index)
		}
	}

	if !c.fastMode {
		if !c.everAccessed.Contains(c.Config.rebuildAddress(tag, index)) {
			c.everAccessed.Add(c.Config.rebuildAddress(tag, index))
			c.uniqueLinesSeen++
		}
		set.recordTag(tag)
	}

	set.lines[way] = cacheLine{
		tag:       tag,
		valid:     true,
		dirty:     isWrite,
		coherence: state,
	}
	c.policy.onInstall(set, way, c.globalClock)
	return info
}

// Install force-installs a line without counting a statistical access,
// used by upper-level refills (spec §4.1).
func (c *CacheLevel) Install(addr uint64, isDirty bool) AccessInfo {
	return c.InstallWithState(addr, Exclusive, isDirty)
}

// InstallWithState is Install but lets the caller pick the resulting
// coherence state, used when the hierarchy/coherence layer already knows
// the correct MESI state for the fill.
func (c *CacheLevel) InstallWithState(addr uint64, state CoherenceState, isDirty bool) AccessInfo {
	tag, index, _ := c.Config.decompose(addr)
	set := c.sets[index]
	if way := set.find(tag); way >= 0 {
		set.lines[way].coherence = state
		set.lines[way].dirty = set.lines[way].dirty || isDirty
		return AccessInfo{Result: Hit}
	}
	return c.installVictim(set, tag, index, isDirty, state)
}

// Invalidate clears any line matching addr (valid<-false, coherence<-
// Invalid), used for inclusive back-invalidation and coherence snoops.
func (c *CacheLevel) Invalidate(addr uint64) {
	tag, index, _ := c.Config.decompose(addr)
	set := c.sets[index]
	if way := set.find(tag); way >= 0 {
		set.lines[way] = cacheLine{}
	}
}

// Probe reports whether addr is resident, without any state change.
func (c *CacheLevel) Probe(addr uint64) bool {
	tag, index, _ := c.Config.decompose(addr)
	return c.sets[index].find(tag) >= 0
}

// GetCoherenceState returns the MESI state of addr, or Invalid if absent.
func (c *CacheLevel) GetCoherenceState(addr uint64) CoherenceState {
	tag, index, _ := c.Config.decompose(addr)
	set := c.sets[index]
	if way := set.find(tag); way >= 0 {
		return set.lines[way].coherence
	}
	return Invalid
}

// SetCoherenceState force-sets the MESI state of a resident line; a no-op
// if addr is not resident.
func (c *CacheLevel) SetCoherenceState(addr uint64, state CoherenceState) {
	tag, index, _ := c.Config.decompose(addr)
	set := c.sets[index]
	if way := set.find(tag); way >= 0 {
		set.lines[way].coherence = state
	}
}

// UpgradeToModified transitions a resident line to Modified and marks it
// dirty, used on a local write hit once the directory has invalidated
// remote copies (spec §4.5).
func (c *CacheLevel) UpgradeToModified(addr uint64) {
	tag, index, _ := c.Config.decompose(addr)
	set := c.sets[index]
	if way := set.find(tag); way >= 0 {
		set.lines[way].coherence = Modified
		set.lines[way].dirty = true
	}
}

// MarkDirty sets the dirty bit of a resident line without counting an
// access; a no-op if addr is not resident. Used when a lower-level copy
// must absorb the dirtiness of a line evicted from the level above it
// under Inclusive/NINE (spec §9's handle_exclusive_eviction note applies
// the analogous idea to the Exclusive path via InstallWithState).
func (c *CacheLevel) MarkDirty(addr uint64) {
	tag, index, _ := c.Config.decompose(addr)
	set := c.sets[index]
	if way := set.find(tag); way >= 0 {
		set.lines[way].dirty = true
	}
}

// DowngradeToShared transitions a resident Modified/Exclusive line to
// Shared, used when another core's read snoops this line.
func (c *CacheLevel) DowngradeToShared(addr uint64) {
	c.SetCoherenceState(addr, Shared)
}

// GetAllAddresses returns every resident line's full address, for
// visualization/debugging tooling.
func (c *CacheLevel) GetAllAddresses() []uint64 {
	var out []uint64
	for index, set := range c.sets {
		for _, l := range set.lines {
			if l.valid {
				out = append(out, c.Config.rebuildAddress(l.tag, index))
			}
		}
	}
	return out
}

// NumSets exposes the set count for reporting/visualization.
func (c *CacheLevel) NumSets() int { return len(c.sets) }
